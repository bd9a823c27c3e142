package witchver

import (
	"fmt"
	"slices"
	"strings"

	"github.com/blang/semver"
)

// SemanticVersion is a Semantic Versioning 2.0.0 value (https://semver.org).
// The zero value is 0.0.0.
type SemanticVersion struct {
	v semver.Version
}

// Fields holds the components used to build a SemanticVersion without a string.
// Major, Minor and Patch are required.
type Fields struct {
	Major      *uint64
	Minor      *uint64
	Patch      *uint64
	Prerelease []string
	Build      []string
}

// Parse parses a version string such as "1.2.3-rc.1+build.5"
//
// Major, minor, patch and numeric prerelease identifiers must fit in a uint64.
// Larger values are rejected with ErrFormat rather than compared as digit strings.
func Parse(s string) (SemanticVersion, error) {
	if s == "" {
		return SemanticVersion{}, fmt.Errorf("%w: a version string or major, minor and patch are required", ErrMissingArguments)
	}

	v, err := semver.Parse(s)
	if err != nil {
		return SemanticVersion{}, fmt.Errorf("%w: %q is not a semantic version: %v", ErrFormat, s, err)
	}
	return SemanticVersion{v: v}, nil
}

// MustParse is like Parse but panics if the string cannot be parsed
func MustParse(s string) SemanticVersion {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// NewVersion returns major.minor.patch with no prerelease or build identifiers
func NewVersion(major, minor, patch uint64) SemanticVersion {
	return SemanticVersion{v: semver.Version{Major: major, Minor: minor, Patch: patch}}
}

// FromFields builds a version from explicit components
func FromFields(f Fields) (SemanticVersion, error) {
	if f.Major == nil || f.Minor == nil || f.Patch == nil {
		return SemanticVersion{}, fmt.Errorf("%w: major, minor and patch are all required", ErrMissingArguments)
	}

	sv := NewVersion(*f.Major, *f.Minor, *f.Patch)
	if err := sv.AppendPrerelease(f.Prerelease...); err != nil {
		return SemanticVersion{}, err
	}
	if err := sv.AppendBuild(f.Build...); err != nil {
		return SemanticVersion{}, err
	}
	return sv, nil
}

func (sv SemanticVersion) Major() uint64 { return sv.v.Major }
func (sv SemanticVersion) Minor() uint64 { return sv.v.Minor }
func (sv SemanticVersion) Patch() uint64 { return sv.v.Patch }

// Prerelease returns a copy of the prerelease identifiers
func (sv SemanticVersion) Prerelease() []string {
	ids := make([]string, 0, len(sv.v.Pre))
	for _, pr := range sv.v.Pre {
		ids = append(ids, pr.String())
	}
	return ids
}

// Build returns a copy of the build identifiers
func (sv SemanticVersion) Build() []string {
	return append([]string{}, sv.v.Build...)
}

// String renders major.minor.patch[-prerelease][+build]
func (sv SemanticVersion) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d.%d", sv.v.Major, sv.v.Minor, sv.v.Patch)
	if len(sv.v.Pre) > 0 {
		b.WriteByte('-')
		b.WriteString(strings.Join(sv.Prerelease(), "."))
	}
	if len(sv.v.Build) > 0 {
		b.WriteByte('+')
		b.WriteString(strings.Join(sv.v.Build, "."))
	}
	return b.String()
}

// BumpMajor increments major and resets everything below it
func (sv *SemanticVersion) BumpMajor() {
	sv.v = semver.Version{Major: sv.v.Major + 1}
}

// BumpMinor increments minor and resets everything below it
func (sv *SemanticVersion) BumpMinor() {
	sv.v = semver.Version{Major: sv.v.Major, Minor: sv.v.Minor + 1}
}

// BumpPatch increments patch and clears prerelease and build identifiers
func (sv *SemanticVersion) BumpPatch() {
	sv.v = semver.Version{Major: sv.v.Major, Minor: sv.v.Minor, Patch: sv.v.Patch + 1}
}

// AppendPrerelease appends prerelease identifiers. Each argument may hold several
// dot-separated identifiers. Nothing is appended if any identifier is invalid.
func (sv *SemanticVersion) AppendPrerelease(ids ...string) error {
	var parsed []semver.PRVersion
	for _, id := range splitIdentifiers(ids) {
		pr, err := semver.NewPRVersion(id)
		if err != nil {
			return fmt.Errorf("%w: prerelease identifier %q: %v", ErrFormat, id, err)
		}
		parsed = append(parsed, pr)
	}
	sv.v.Pre = append(slices.Clip(sv.v.Pre), parsed...)
	return nil
}

// AppendBuild appends build identifiers. Each argument may hold several
// dot-separated identifiers. Nothing is appended if any identifier is invalid.
func (sv *SemanticVersion) AppendBuild(ids ...string) error {
	var parsed []string
	for _, id := range splitIdentifiers(ids) {
		b, err := semver.NewBuildVersion(id)
		if err != nil {
			return fmt.Errorf("%w: build identifier %q: %v", ErrFormat, id, err)
		}
		parsed = append(parsed, b)
	}
	sv.v.Build = append(slices.Clip(sv.v.Build), parsed...)
	return nil
}

func (sv *SemanticVersion) ClearPrerelease() { sv.v.Pre = nil }
func (sv *SemanticVersion) ClearBuild()      { sv.v.Build = nil }

func (sv SemanticVersion) clone() SemanticVersion {
	c := sv
	c.v.Pre = slices.Clone(sv.v.Pre)
	c.v.Build = slices.Clone(sv.v.Build)
	return c
}

func splitIdentifiers(ids []string) []string {
	var out []string
	for _, id := range ids {
		out = append(out, strings.Split(id, ".")...)
	}
	return out
}

// Compare returns -1, 0 or 1 following SemVer precedence. Build metadata is ignored.
func (sv SemanticVersion) Compare(o SemanticVersion) int {
	return sv.v.Compare(o.v)
}

// Equal reports whether every component matches, build metadata included
func (sv SemanticVersion) Equal(o SemanticVersion) bool {
	if sv.v.Major != o.v.Major || sv.v.Minor != o.v.Minor || sv.v.Patch != o.v.Patch {
		return false
	}
	if !slices.Equal(sv.Prerelease(), o.Prerelease()) {
		return false
	}
	return slices.Equal(sv.v.Build, o.v.Build)
}

func (sv SemanticVersion) GreaterThan(o SemanticVersion) bool { return sv.Compare(o) > 0 }
func (sv SemanticVersion) LessThan(o SemanticVersion) bool    { return sv.Compare(o) < 0 }

// CompareTo compares against a SemanticVersion, a *RepositoryVersion or a version string
func (sv SemanticVersion) CompareTo(other any) (int, error) {
	o, err := asSemanticVersion(other)
	if err != nil {
		return 0, err
	}
	return sv.Compare(o), nil
}

// EqualTo is the Equal counterpart of CompareTo
func (sv SemanticVersion) EqualTo(other any) (bool, error) {
	o, err := asSemanticVersion(other)
	if err != nil {
		return false, err
	}
	return sv.Equal(o), nil
}

func asSemanticVersion(other any) (SemanticVersion, error) {
	switch o := other.(type) {
	case SemanticVersion:
		return o, nil
	case *SemanticVersion:
		if o != nil {
			return *o, nil
		}
	case *RepositoryVersion:
		if o != nil {
			return o.SemVer(), nil
		}
	case string:
		return Parse(o)
	}
	return SemanticVersion{}, fmt.Errorf("%w: cannot compare SemanticVersion to %T", ErrType, other)
}

// MarshalText implements encoding.TextMarshaler
func (sv SemanticVersion) MarshalText() ([]byte, error) {
	return []byte(sv.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (sv *SemanticVersion) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*sv = v
	return nil
}
