// Package config loads witch-ver settings from a TOML file.
//
//	tag_prefix = "v"
//	describe_args = ["--tags", "--always", "--long", "--match", "v*"]
//	format = "pep440"
//	cache = "version.json"
//
//	[placement]
//	dirty = "prerelease"
//	distance = "prerelease"
//	sha = "omit"
//	sha_abbrev = "prerelease"
//	date = "build"
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	witchver "github.com/WattsUp/witch-ver"
)

// DefaultFormat is the display format used when none is configured
const DefaultFormat = "pep440"

// Config mirrors the TOML file. Unset keys keep the library defaults.
type Config struct {
	TagPrefix    *string   `toml:"tag_prefix"`
	DescribeArgs []string  `toml:"describe_args"`
	Format       string    `toml:"format"`
	Cache        string    `toml:"cache"`
	Placement    Placement `toml:"placement"`
}

// Placement overrides individual entries of the default policy
type Placement struct {
	Dirty     *witchver.Placement `toml:"dirty"`
	Distance  *witchver.Placement `toml:"distance"`
	Sha       *witchver.Placement `toml:"sha"`
	ShaAbbrev *witchver.Placement `toml:"sha_abbrev"`
	Date      *witchver.Placement `toml:"date"`
}

// Default returns an empty configuration with the default format
func Default() *Config {
	return &Config{Format: DefaultFormat}
}

// Load reads a TOML configuration file on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := Default()
	md, err := toml.Decode(string(data), config)
	if err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("%w: unknown config keys %s", witchver.ErrUnexpectedArgument, strings.Join(keys, ", "))
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if _, err := witchver.ParseStyle(c.Format); err != nil {
		return err
	}
	if c.Cache != "" {
		if _, err := witchver.CodecForPath(c.Cache); err != nil {
			return err
		}
	}
	return nil
}

// Options builds inspection options from the configuration
func (c *Config) Options() (witchver.Options, error) {
	opts := witchver.DefaultOptions()
	if c.TagPrefix != nil {
		opts.TagPrefix = *c.TagPrefix
	}
	opts.DescribeArgs = c.DescribeArgs

	apply := func(dst *witchver.Placement, src *witchver.Placement) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&opts.Policy.Dirty, c.Placement.Dirty)
	apply(&opts.Policy.Distance, c.Placement.Distance)
	apply(&opts.Policy.Sha, c.Placement.Sha)
	apply(&opts.Policy.ShaAbbrev, c.Placement.ShaAbbrev)
	apply(&opts.Policy.Date, c.Placement.Date)

	style, err := witchver.ParseStyle(c.Format)
	if err != nil {
		return witchver.Options{}, err
	}
	opts.Pretty = witchver.PrettyStyle(style)
	return opts, nil
}
