// Package witchver derives semantic versions from Git repository state.
package witchver

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the layout of the commit date identifier, always rendered in UTC
const DateLayout = "20060102T150405Z"

// VersionOptions configures how signals are composed into a RepositoryVersion
type VersionOptions struct {
	TagPrefix string
	Policy    Policy
	Pretty    Pretty
}

// RepositoryVersion is a SemanticVersion composed from repository signals.
// The tag (or 0.0.0-untagged) provides the core; the Policy decides where the
// distance, dirty flag, SHAs and commit date are appended.
type RepositoryVersion struct {
	semver    SemanticVersion
	signals   Signals
	tagPrefix string
	policy    Policy
	pretty    *string
}

// NewRepositoryVersion composes a version from signals. Identifiers are appended
// in the fixed order distance, dirty, sha, abbreviated sha, date.
func NewRepositoryVersion(signals Signals, opts VersionOptions) (*RepositoryVersion, error) {
	rv := &RepositoryVersion{
		signals:   signals,
		tagPrefix: opts.TagPrefix,
		policy:    opts.Policy,
	}

	if signals.Tag == nil {
		rv.semver = NewVersion(0, 0, 0)
		if err := rv.semver.AppendPrerelease("untagged"); err != nil {
			return nil, err
		}
	} else {
		tag := strings.TrimPrefix(*signals.Tag, opts.TagPrefix)
		if tag == "" {
			return nil, fmt.Errorf("%w: tag %q holds no version after prefix %q", ErrFormat, *signals.Tag, opts.TagPrefix)
		}
		sv, err := Parse(tag)
		if err != nil {
			return nil, fmt.Errorf("parsing tag %q: %w", *signals.Tag, err)
		}
		rv.semver = sv
	}

	if err := rv.compose(); err != nil {
		return nil, err
	}

	if s, ok := opts.Pretty.resolve(rv); ok {
		rv.pretty = &s
	}
	return rv, nil
}

func (rv *RepositoryVersion) compose() error {
	s := rv.signals
	type identifier struct {
		placement Placement
		value     string
	}

	// Distance is kept when zero, dirty only when set
	var ids []identifier
	if s.Distance != nil {
		ids = append(ids, identifier{rv.policy.Distance, fmt.Sprintf("p%d", *s.Distance)})
	}
	if s.Dirty {
		ids = append(ids, identifier{rv.policy.Dirty, "dirty"})
	}
	if s.Sha != nil {
		ids = append(ids, identifier{rv.policy.Sha, "g" + *s.Sha})
	}
	if s.ShaAbbrev != nil {
		ids = append(ids, identifier{rv.policy.ShaAbbrev, "g" + *s.ShaAbbrev})
	}
	if s.Date != nil {
		ids = append(ids, identifier{rv.policy.Date, s.Date.UTC().Format(DateLayout)})
	}

	for _, id := range ids {
		var err error
		switch id.placement {
		case Prerelease:
			err = rv.semver.AppendPrerelease(id.value)
		case Build:
			err = rv.semver.AppendBuild(id.value)
		}
		if err != nil {
			return fmt.Errorf("composing version: %w", err)
		}
	}
	return nil
}

// String returns the display string, falling back to the SemVer string
func (rv *RepositoryVersion) String() string {
	if rv.pretty != nil {
		return *rv.pretty
	}
	return rv.semver.String()
}

// SemVer returns a copy of the composed semantic version
func (rv *RepositoryVersion) SemVer() SemanticVersion {
	return rv.semver.clone()
}

// Compare compares the composed versions by SemVer precedence
func (rv *RepositoryVersion) Compare(o *RepositoryVersion) int {
	return rv.semver.Compare(o.semver)
}

// Equal reports whether the composed versions match exactly
func (rv *RepositoryVersion) Equal(o *RepositoryVersion) bool {
	return rv.semver.Equal(o.semver)
}

// CompareTo is SemanticVersion.CompareTo on the composed version
func (rv *RepositoryVersion) CompareTo(other any) (int, error) {
	return rv.semver.CompareTo(other)
}

// Signals returns the signals the version was composed from
func (rv *RepositoryVersion) Signals() Signals { return rv.signals }

func (rv *RepositoryVersion) Policy() Policy    { return rv.policy }
func (rv *RepositoryVersion) TagPrefix() string { return rv.tagPrefix }
func (rv *RepositoryVersion) IsDirty() bool     { return rv.signals.Dirty }
func (rv *RepositoryVersion) GitDir() string    { return rv.signals.GitDir }

// Tag returns the closest tag, false when the repository is untagged
func (rv *RepositoryVersion) Tag() (string, bool) {
	return deref(rv.signals.Tag)
}

// Branch returns the current branch, false when HEAD is not on a named branch
func (rv *RepositoryVersion) Branch() (string, bool) {
	return deref(rv.signals.Branch)
}

func (rv *RepositoryVersion) Sha() string {
	s, _ := deref(rv.signals.Sha)
	return s
}

func (rv *RepositoryVersion) ShaAbbrev() string {
	s, _ := deref(rv.signals.ShaAbbrev)
	return s
}

// Distance is the number of commits since the tag, or since the root when untagged
func (rv *RepositoryVersion) Distance() int {
	d, _ := deref(rv.signals.Distance)
	return d
}

// Date is the commit date, the zero time when unknown
func (rv *RepositoryVersion) Date() time.Time {
	d, _ := deref(rv.signals.Date)
	return d
}

func deref[T any](p *T) (T, bool) {
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}
