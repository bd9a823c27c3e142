// Package witchver derives semantic versions from Git repository state.
package witchver

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultTagPrefix is the prefix stripped from tags such as v1.2.3
const DefaultTagPrefix = "v"

// Signals holds the repository facts a version is composed from.
// Nil pointers mark a signal as absent, which differs from an empty value:
// an empty Sha still produces a "g" identifier.
type Signals struct {
	Tag       *string
	Sha       *string
	ShaAbbrev *string
	Branch    *string
	Date      *time.Time
	Dirty     bool
	Distance  *int

	// GitDir is the repository metadata directory, empty when unknown
	GitDir string
}

// HasHistory reports whether the repository had at least one commit.
// A repository without commits has an empty (not absent) Sha.
func (s Signals) HasHistory() bool {
	return s.Sha == nil || *s.Sha != ""
}

// Detached reports whether HEAD has history but no named branch contains it
func (s Signals) Detached() bool {
	return s.HasHistory() && s.Branch == nil
}

// Placement selects where a signal lands in the composed version
type Placement int

const (
	// Omit leaves the signal out
	Omit Placement = iota
	// Prerelease appends the signal to the prerelease identifiers
	Prerelease
	// Build appends the signal to the build identifiers
	Build
)

// ParsePlacement accepts prerelease|pre|true, build|false and omit|none|null or empty
func ParsePlacement(s string) (Placement, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prerelease", "pre", "true":
		return Prerelease, nil
	case "build", "false":
		return Build, nil
	case "omit", "none", "null", "":
		return Omit, nil
	default:
		return Omit, fmt.Errorf("%w: unknown placement %q", ErrFormat, s)
	}
}

func (p Placement) String() string {
	switch p {
	case Prerelease:
		return "prerelease"
	case Build:
		return "build"
	default:
		return "omit"
	}
}

// MarshalText implements encoding.TextMarshaler
func (p Placement) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *Placement) UnmarshalText(text []byte) error {
	parsed, err := ParsePlacement(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Policy places each repository signal in the composed version
type Policy struct {
	Dirty     Placement
	Distance  Placement
	Sha       Placement
	ShaAbbrev Placement
	Date      Placement
}

// DefaultPolicy puts distance, dirty and the abbreviated SHA in the prerelease
// identifiers and the commit date in the build identifiers
func DefaultPolicy() Policy {
	return Policy{
		Dirty:     Prerelease,
		Distance:  Prerelease,
		Sha:       Omit,
		ShaAbbrev: Prerelease,
		Date:      Build,
	}
}

// Options configures a repository inspection
type Options struct {
	// Path is the repository working directory (default: current directory)
	Path string

	// TagPrefix filters and strips version tags, empty disables the prefix
	TagPrefix string

	// DescribeArgs overrides the arguments given to git describe
	DescribeArgs []string

	// Policy places the repository signals in the version
	Policy Policy

	// Pretty selects the display string of the resulting version
	Pretty Pretty

	// Cache is a previously exported record reused when HEAD and its tag are unchanged
	Cache *Record

	// Runner executes git, nil uses ExecRunner
	Runner Runner

	// Logger receives debug output for each step, nil discards it
	Logger *slog.Logger
}

// DefaultOptions returns options with the "v" tag prefix and the default policy
func DefaultOptions() Options {
	return Options{
		TagPrefix: DefaultTagPrefix,
		Policy:    DefaultPolicy(),
	}
}

func ptr[T any](v T) *T {
	return &v
}
