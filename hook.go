package witchver

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// Hook resolves a repository version once and keeps a persisted record of it.
// If the repository cannot be inspected (for example a source archive without
// .git) the persisted record is used instead.
type Hook struct {
	// Options configures the inspection, Options.Cache is filled from CachePath
	Options Options

	// FS holds the record file, nil uses the host filesystem rooted at Options.Path
	FS billy.Filesystem

	// CachePath is the record file relative to FS, empty disables persistence
	CachePath string

	once    sync.Once
	version *RepositoryVersion
	err     error
}

// Version returns the resolved version, inspecting the repository on first use only
func (h *Hook) Version() (*RepositoryVersion, error) {
	h.once.Do(func() {
		h.version, h.err = h.resolve()
	})
	return h.version, h.err
}

func (h *Hook) filesystem() billy.Filesystem {
	if h.FS == nil {
		root := h.Options.Path
		if root == "" {
			root = "."
		}
		h.FS = osfs.New(root)
	}
	return h.FS
}

func (h *Hook) resolve() (*RepositoryVersion, error) {
	cache, err := h.readCache()
	if err != nil {
		return nil, err
	}

	opts := h.Options
	opts.Cache = cache
	rv, err := Fetch(opts)
	if err != nil {
		if !errors.Is(err, ErrRuntime) {
			return nil, err
		}
		if cache == nil {
			return nil, fmt.Errorf("unable to fetch version from git nor cache: %w", err)
		}
		if opts.Logger != nil {
			opts.Logger.Warn("falling back to cached version", "path", h.CachePath, "error", err)
		}
		return NewFromRecord(*cache, opts.Policy)
	}

	if err := h.writeCache(rv); err != nil {
		return nil, err
	}
	return rv, nil
}

func (h *Hook) readCache() (*Record, error) {
	if h.CachePath == "" {
		return nil, nil
	}
	codec, err := CodecForPath(h.CachePath)
	if err != nil {
		return nil, err
	}

	f, err := h.filesystem().Open(h.CachePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening cache %q: %w", h.CachePath, err)
	}
	defer f.Close()

	rec, err := DecodeRecord(f, codec)
	if err != nil {
		return nil, fmt.Errorf("reading cache %q: %w", h.CachePath, err)
	}
	return &rec, nil
}

func (h *Hook) writeCache(rv *RepositoryVersion) error {
	if h.CachePath == "" {
		return nil
	}
	codec, err := CodecForPath(h.CachePath)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := EncodeRecord(&buf, rv.Record(false), codec); err != nil {
		return err
	}
	_, err = WriteMatchingNewline(h.filesystem(), h.CachePath, buf.Bytes())
	return err
}

// WriteMatchingNewline writes data to path, converting LF to CRLF when the
// existing file uses CRLF. Identical content is not rewritten so the
// modification time is kept. It reports whether the file was written.
func WriteMatchingNewline(fs billy.Filesystem, path string, data []byte) (bool, error) {
	existing, err := util.ReadFile(fs, path)
	switch {
	case err == nil:
		if bytes.Contains(existing, []byte("\r\n")) {
			data = bytes.ReplaceAll(data, []byte("\n"), []byte("\r\n"))
		}
		if bytes.Equal(existing, data) {
			return false, nil
		}
	case !errors.Is(err, os.ErrNotExist):
		return false, fmt.Errorf("reading %q: %w", path, err)
	}

	if err := util.WriteFile(fs, path, data, 0o644); err != nil {
		return false, fmt.Errorf("writing %q: %w", path, err)
	}
	return true, nil
}
