package witchver

import (
	"fmt"
	"strings"
)

// Formatter renders the display string of a RepositoryVersion
type Formatter interface {
	Format(rv *RepositoryVersion) string
}

// FormatterFunc adapts a function to the Formatter interface
type FormatterFunc func(rv *RepositoryVersion) string

func (f FormatterFunc) Format(rv *RepositoryVersion) string {
	return f(rv)
}

// Style names one of the built-in formatters
type Style int

const (
	StyleSemVer Style = iota
	StylePEP440
	StyleGitDescribe
	StyleGitDescribeLong
)

var styleNames = map[Style]string{
	StyleSemVer:          "semver",
	StylePEP440:          "pep440",
	StyleGitDescribe:     "git-describe",
	StyleGitDescribeLong: "git-describe-long",
}

// StyleNames lists the accepted style names in declaration order
func StyleNames() []string {
	return []string{"semver", "pep440", "git-describe", "git-describe-long"}
}

// ParseStyle converts a style name such as "pep440" into a Style
func ParseStyle(s string) (Style, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for style, n := range styleNames {
		if n == name {
			return style, nil
		}
	}
	return StyleSemVer, fmt.Errorf("%w: unknown format style %q", ErrFormat, s)
}

func (s Style) String() string {
	if n, ok := styleNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Style(%d)", int(s))
}

// Formatter returns the built-in formatter for the style
func (s Style) Formatter() Formatter {
	switch s {
	case StylePEP440:
		return FormatterFunc(FormatPEP440)
	case StyleGitDescribe:
		return FormatterFunc(FormatGitDescribe)
	case StyleGitDescribeLong:
		return FormatterFunc(FormatGitDescribeLong)
	default:
		return FormatterFunc(func(rv *RepositoryVersion) string {
			return rv.SemVer().String()
		})
	}
}

// FormatPEP440 renders a PEP 440 compliant version with the tag prefix stripped.
//
//	TAG                          at a tag with a clean tree
//	TAG+DISTANCE.gSHA[.dirty]    otherwise ("." instead of "+" if TAG has a "+")
//	0+untagged.DISTANCE.gSHA     without a tag
func FormatPEP440(rv *RepositoryVersion) string {
	buf := "0+untagged"
	if tag, ok := rv.Tag(); ok {
		buf = strings.TrimPrefix(tag, rv.TagPrefix())
	}

	if rv.Distance() == 0 && !rv.IsDirty() {
		return buf
	}

	if strings.Contains(buf, "+") {
		buf += "."
	} else {
		buf += "+"
	}
	buf += fmt.Sprintf("%d.g%s", rv.Distance(), rv.ShaAbbrev())
	if rv.IsDirty() {
		buf += ".dirty"
	}
	return buf
}

// FormatGitDescribe matches `git describe --tags --dirty --always`
func FormatGitDescribe(rv *RepositoryVersion) string {
	if tag, ok := rv.Tag(); ok && rv.Distance() == 0 {
		if rv.IsDirty() {
			return tag + "-dirty"
		}
		return tag
	}
	return FormatGitDescribeLong(rv)
}

// FormatGitDescribeLong matches `git describe --tags --dirty --always --long`.
// A repository without commits renders as {prefix}0.0.0-untagged-0-g.
func FormatGitDescribeLong(rv *RepositoryVersion) string {
	var buf string
	if tag, ok := rv.Tag(); ok {
		buf = fmt.Sprintf("%s-%d-g%s", tag, rv.Distance(), rv.ShaAbbrev())
	} else if rv.Distance() == 0 {
		buf = rv.TagPrefix() + "0.0.0-untagged-0-g"
	} else {
		buf = rv.ShaAbbrev()
	}
	if rv.IsDirty() {
		buf += "-dirty"
	}
	return buf
}

// Pretty selects the display string of a RepositoryVersion: a fixed text,
// a built-in style or a custom Formatter. The zero value uses the SemVer string.
type Pretty struct {
	text      *string
	formatter Formatter
}

// PrettyText uses a precomputed display string
func PrettyText(s string) Pretty {
	return Pretty{text: &s}
}

// PrettyStyle uses one of the built-in formatters
func PrettyStyle(s Style) Pretty {
	return Pretty{formatter: s.Formatter()}
}

// PrettyFormatter uses a custom formatter
func PrettyFormatter(f Formatter) Pretty {
	return Pretty{formatter: f}
}

// IsZero reports whether no display string was selected
func (p Pretty) IsZero() bool {
	return p.text == nil && p.formatter == nil
}

func (p Pretty) resolve(rv *RepositoryVersion) (string, bool) {
	switch {
	case p.text != nil:
		return *p.text, true
	case p.formatter != nil:
		return p.formatter.Format(rv), true
	default:
		return "", false
	}
}
