package witchver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Record is the flat, persisted shape of a RepositoryVersion.
// Null values mark absent signals.
type Record struct {
	Tag       *string    `json:"tag" yaml:"tag"`
	TagPrefix *string    `json:"tag_prefix" yaml:"tag_prefix"`
	Sha       *string    `json:"sha" yaml:"sha"`
	ShaAbbrev *string    `json:"sha_abbrev" yaml:"sha_abbrev"`
	Branch    *string    `json:"branch" yaml:"branch"`
	Date      *time.Time `json:"date" yaml:"date"`
	Dirty     *bool      `json:"dirty" yaml:"dirty"`
	Distance  *int       `json:"distance" yaml:"distance"`
	PrettyStr *string    `json:"pretty_str" yaml:"pretty_str"`
	GitDir    *string    `json:"git_dir" yaml:"git_dir"`

	// keys present in the decoded document, nil when built in code
	keys map[string]bool
}

var recordKeys = map[string]bool{
	"tag": true, "tag_prefix": true, "sha": true, "sha_abbrev": true, "branch": true,
	"date": true, "dirty": true, "distance": true, "pretty_str": true, "git_dir": true,
}

// Has reports whether key was present in the decoded document, null or not.
// A record built in code holds every key.
func (r Record) Has(key string) bool {
	if r.keys == nil {
		return recordKeys[key]
	}
	return r.keys[key]
}

// Record exports the signals, tag prefix and display string. The metadata
// directory is only exported when includeGitDir is set.
func (rv *RepositoryVersion) Record(includeGitDir bool) Record {
	s := rv.signals
	rec := Record{
		Tag:       clonePtr(s.Tag),
		Sha:       clonePtr(s.Sha),
		ShaAbbrev: clonePtr(s.ShaAbbrev),
		Branch:    clonePtr(s.Branch),
		Date:      clonePtr(s.Date),
		Dirty:     ptr(s.Dirty),
		Distance:  clonePtr(s.Distance),
		PrettyStr: clonePtr(rv.pretty),
	}
	if rv.tagPrefix != "" {
		rec.TagPrefix = ptr(rv.tagPrefix)
	}
	if includeGitDir && s.GitDir != "" {
		rec.GitDir = ptr(s.GitDir)
	}
	return rec
}

// Signals converts the record back into signals
func (r Record) Signals() Signals {
	s := Signals{
		Tag:       clonePtr(r.Tag),
		Sha:       clonePtr(r.Sha),
		ShaAbbrev: clonePtr(r.ShaAbbrev),
		Branch:    clonePtr(r.Branch),
		Date:      clonePtr(r.Date),
		Distance:  clonePtr(r.Distance),
	}
	s.Dirty, _ = deref(r.Dirty)
	s.GitDir, _ = deref(r.GitDir)
	return s
}

// NewFromRecord rebuilds a version from a persisted record. The stored display
// string is kept as is.
func NewFromRecord(r Record, policy Policy) (*RepositoryVersion, error) {
	opts := VersionOptions{Policy: policy}
	opts.TagPrefix, _ = deref(r.TagPrefix)
	if r.PrettyStr != nil {
		opts.Pretty = PrettyText(*r.PrettyStr)
	}
	return NewRepositoryVersion(r.Signals(), opts)
}

// cachedKeys must all be present in a record for it to replace an inspection
var cachedKeys = []string{"sha", "sha_abbrev", "branch", "date", "distance", "tag"}

// mergeCached reuses sha, sha_abbrev, branch, date, distance and tag from the
// cache when its sha and tag match the fresh ones. Dirty and GitDir always come
// from fresh. Every reused key must be present; branch and tag may be null.
func mergeCached(fresh Signals, cache *Record) (Signals, bool) {
	if cache == nil {
		return fresh, false
	}
	for _, key := range cachedKeys {
		if !cache.Has(key) {
			return fresh, false
		}
	}
	if cache.Sha == nil || cache.ShaAbbrev == nil || cache.Date == nil || cache.Distance == nil {
		return fresh, false
	}
	if fresh.Sha == nil || *cache.Sha != *fresh.Sha || !equalPtr(cache.Tag, fresh.Tag) {
		return fresh, false
	}

	merged := fresh
	merged.Sha = clonePtr(cache.Sha)
	merged.ShaAbbrev = clonePtr(cache.ShaAbbrev)
	merged.Branch = clonePtr(cache.Branch)
	merged.Date = clonePtr(cache.Date)
	merged.Distance = clonePtr(cache.Distance)
	merged.Tag = clonePtr(cache.Tag)
	return merged, true
}

// Codec selects the text encoding of a persisted record
type Codec int

const (
	CodecJSON Codec = iota
	CodecYAML
)

// CodecForPath picks a codec from the file extension
func CodecForPath(path string) (Codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return CodecJSON, nil
	case ".yaml", ".yml":
		return CodecYAML, nil
	default:
		return CodecJSON, fmt.Errorf("%w: no record codec for %q", ErrFormat, path)
	}
}

// EncodeRecord writes the record with every key present
func EncodeRecord(w io.Writer, r Record, codec Codec) error {
	switch codec {
	case CodecYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding record: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding record: %w", err)
		}
		return nil
	}
}

// DecodeRecord reads a record, rejecting unknown keys with ErrUnexpectedArgument.
// The keys found are kept so Has can tell a missing key from a null one.
func DecodeRecord(r io.Reader, codec Codec) (Record, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return Record{}, fmt.Errorf("reading record: %w", err)
	}

	unmarshal := json.Unmarshal
	if codec == CodecYAML {
		unmarshal = yaml.Unmarshal
	}

	var raw map[string]any
	if err := unmarshal(buf, &raw); err != nil {
		return Record{}, fmt.Errorf("%w: decoding record: %v", ErrFormat, err)
	}
	keys := make(map[string]bool, len(raw))
	var unknown []string
	for k := range raw {
		if !recordKeys[k] {
			unknown = append(unknown, k)
		}
		keys[k] = true
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Record{}, fmt.Errorf("%w: %s", ErrUnexpectedArgument, strings.Join(unknown, ", "))
	}

	var rec Record
	if err := unmarshal(bytes.TrimSpace(buf), &rec); err != nil {
		return Record{}, fmt.Errorf("%w: decoding record: %v", ErrFormat, err)
	}
	rec.keys = keys
	return rec, nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	return ptr(*p)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
