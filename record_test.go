package witchver

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	signals := testSignals()
	signals.GitDir = "/repo/.git"
	rv, err := NewRepositoryVersion(signals, VersionOptions{TagPrefix: "v", Policy: DefaultPolicy(), Pretty: PrettyStyle(StylePEP440)})
	require.NoError(t, err)

	t.Run("Git dir only on request", func(t *testing.T) {
		require.Nil(t, rv.Record(false).GitDir)
		require.Equal(t, ptr("/repo/.git"), rv.Record(true).GitDir)
	})

	t.Run("Fields", func(t *testing.T) {
		rec := rv.Record(false)
		require.Equal(t, ptr("v1.2.3-rc1"), rec.Tag)
		require.Equal(t, ptr("v"), rec.TagPrefix)
		require.Equal(t, ptr(true), rec.Dirty)
		require.Equal(t, ptr(0), rec.Distance)
		require.Equal(t, ptr(rv.String()), rec.PrettyStr)
	})

	t.Run("Empty prefix is null", func(t *testing.T) {
		signals := testSignals()
		signals.Tag = ptr("1.0.0")
		rv, err := NewRepositoryVersion(signals, VersionOptions{})
		require.NoError(t, err)
		rec := rv.Record(false)
		require.Nil(t, rec.TagPrefix)
		require.Nil(t, rec.PrettyStr)
	})

	t.Run("Rebuilt from record", func(t *testing.T) {
		restored, err := NewFromRecord(rv.Record(true), DefaultPolicy())
		require.NoError(t, err)
		require.Equal(t, rv.String(), restored.String())
		require.True(t, rv.SemVer().Equal(restored.SemVer()))
		require.Equal(t, "/repo/.git", restored.GitDir())
	})

	codecs := map[string]Codec{"JSON": CodecJSON, "YAML": CodecYAML}
	for name, codec := range codecs {
		t.Run(name+" round trip", func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, EncodeRecord(&buf, rv.Record(false), codec))
			require.Contains(t, buf.String(), "pretty_str")

			rec, err := DecodeRecord(&buf, codec)
			require.NoError(t, err)
			restored, err := NewFromRecord(rec, DefaultPolicy())
			require.NoError(t, err)
			require.Equal(t, rv.String(), restored.String())
			require.True(t, testDate.Equal(restored.Date()))
		})
	}
}

func TestDecodeRecord(t *testing.T) {
	t.Run("Unknown keys", func(t *testing.T) {
		_, err := DecodeRecord(strings.NewReader(`{"sha": "abc", "extra": 1, "another": 2}`), CodecJSON)
		require.ErrorIs(t, err, ErrUnexpectedArgument)
		require.Contains(t, err.Error(), "another, extra")

		_, err = DecodeRecord(strings.NewReader("sha: abc\nextra: 1\n"), CodecYAML)
		require.ErrorIs(t, err, ErrUnexpectedArgument)
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := DecodeRecord(strings.NewReader(`{"sha": `), CodecJSON)
		require.ErrorIs(t, err, ErrFormat)

		_, err = DecodeRecord(strings.NewReader(`{"distance": "far"}`), CodecJSON)
		require.ErrorIs(t, err, ErrFormat)
	})

	t.Run("Nulls are absent", func(t *testing.T) {
		rec, err := DecodeRecord(strings.NewReader(`{"tag": null, "branch": null, "sha": "abc"}`), CodecJSON)
		require.NoError(t, err)
		require.Nil(t, rec.Tag)
		require.Nil(t, rec.Branch)
		require.Equal(t, ptr("abc"), rec.Sha)
	})
}

func TestRecordHas(t *testing.T) {
	t.Run("Built in code", func(t *testing.T) {
		rec := Record{}
		for key := range recordKeys {
			require.True(t, rec.Has(key), key)
		}
		require.False(t, rec.Has("extra"))
	})

	t.Run("Decoded", func(t *testing.T) {
		rec, err := DecodeRecord(strings.NewReader(`{"sha": "abc", "branch": null}`), CodecJSON)
		require.NoError(t, err)
		require.True(t, rec.Has("sha"))
		require.True(t, rec.Has("branch"))
		require.False(t, rec.Has("tag"))
		require.Nil(t, rec.Branch)
	})

	t.Run("Exported versions hold every key", func(t *testing.T) {
		rv, err := NewRepositoryVersion(testSignals(), VersionOptions{TagPrefix: "v"})
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, EncodeRecord(&buf, rv.Record(false), CodecYAML))
		rec, err := DecodeRecord(&buf, CodecYAML)
		require.NoError(t, err)
		for _, key := range cachedKeys {
			require.True(t, rec.Has(key), key)
		}
	})
}

func TestCodecForPath(t *testing.T) {
	tests := map[string]Codec{
		"version.json":     CodecJSON,
		"dir/version.yaml": CodecYAML,
		"VERSION.YML":      CodecYAML,
	}
	for path, expected := range tests {
		codec, err := CodecForPath(path)
		require.NoError(t, err)
		require.Equal(t, expected, codec, path)
	}

	_, err := CodecForPath("version.txt")
	require.ErrorIs(t, err, ErrFormat)
}

func TestMergeCached(t *testing.T) {
	fresh := Signals{
		Tag:       ptr("v1.0.0"),
		Sha:       ptr(testSha),
		ShaAbbrev: ptr(testShaAbbrev),
		Dirty:     true,
		Distance:  ptr(3),
		GitDir:    "/repo/.git",
	}
	cache := &Record{
		Tag:       ptr("v1.0.0"),
		Sha:       ptr(testSha),
		ShaAbbrev: ptr(testShaAbbrev),
		Branch:    nil,
		Date:      ptr(testDate),
		Dirty:     ptr(false),
		Distance:  ptr(3),
	}

	merged, hit := mergeCached(fresh, cache)
	require.True(t, hit)
	require.True(t, merged.Dirty)
	require.Equal(t, "/repo/.git", merged.GitDir)
	require.Nil(t, merged.Branch)
	require.True(t, testDate.Equal(*merged.Date))

	t.Run("Misses", func(t *testing.T) {
		_, hit := mergeCached(fresh, nil)
		require.False(t, hit)

		otherSha := *cache
		otherSha.Sha = ptr("0000000")
		_, hit = mergeCached(fresh, &otherSha)
		require.False(t, hit)

		untagged := *cache
		untagged.Tag = nil
		_, hit = mergeCached(fresh, &untagged)
		require.False(t, hit)

		noDistance := *cache
		noDistance.Distance = nil
		_, hit = mergeCached(fresh, &noDistance)
		require.False(t, hit)

		noBranchKey := *cache
		noBranchKey.keys = map[string]bool{"sha": true, "sha_abbrev": true, "date": true, "distance": true, "tag": true}
		_, hit = mergeCached(fresh, &noBranchKey)
		require.False(t, hit)
	})
}
