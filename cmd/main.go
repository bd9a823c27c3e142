package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/lmittmann/tint"

	witchver "github.com/WattsUp/witch-ver"
	"github.com/WattsUp/witch-ver/internal/config"
)

// Version will be set by build process
var Version = "dev"

type CLI struct {
	Semver      string  `arg:"" optional:"" help:"Version string to validate or bump instead of inspecting a repository"`
	Bump        string  `default:"none" enum:"none,major,minor,patch" help:"Bump the given version"`
	Repo        string  `short:"r" help:"Repository path (default: current directory)"`
	Format      *string `short:"f" enum:"semver,pep440,git-describe,git-describe-long" help:"Output format (default: pep440)"`
	TagPrefix   string  `help:"Prefix of version tags (default: v)"`
	NoTagPrefix bool    `help:"Match every tag and strip nothing"`
	Dirty       *string `enum:"prerelease,build,omit" help:"Placement of the dirty flag"`
	Distance    *string `enum:"prerelease,build,omit" help:"Placement of the commit distance"`
	Sha         *string `enum:"prerelease,build,omit" help:"Placement of the full commit SHA"`
	ShaAbbrev   *string `enum:"prerelease,build,omit" help:"Placement of the abbreviated commit SHA"`
	Date        *string `enum:"prerelease,build,omit" help:"Placement of the commit date"`
	Cache       string  `short:"c" help:"Record file (.json, .yaml) reused when HEAD is unchanged and used when git is unavailable"`
	Config      string  `help:"TOML configuration file"`
	JSON        bool    `short:"j" help:"Output the version record as JSON"`
	Verbose     bool    `short:"v" help:"Log each git invocation"`
	NoColor     bool    `help:"Disable colored log output"`
	ShowVersion bool    `help:"Show version information" name:"version"`
}

func parserOptions() []kong.Option {
	return []kong.Option{
		kong.Name("witch-ver"),
		kong.Description("Derive a semantic version from Git repository state or validate a version string"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": Version,
		},
	}
}

func main() {
	var cli CLI

	kong.Parse(&cli, parserOptions()...)

	err := cli.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (c *CLI) Run() error {
	if c.ShowVersion {
		return c.showVersion()
	}

	if c.Semver != "" {
		return c.convertVersion()
	}

	return c.calculateVersion()
}

func (c *CLI) showVersion() error {
	versionInfo := map[string]string{
		"version": Version,
		"name":    "witch-ver",
	}

	if c.JSON {
		return json.NewEncoder(os.Stdout).Encode(versionInfo)
	}

	fmt.Printf("witch-ver version %s\n", Version)
	return nil
}

func (c *CLI) convertVersion() error {
	version, err := witchver.Parse(strings.TrimPrefix(c.Semver, "v"))
	if err != nil {
		return fmt.Errorf("parsing version: %w", err)
	}

	switch strings.ToLower(c.Bump) {
	case "", "none":
	case "major":
		version.BumpMajor()
	case "minor":
		version.BumpMinor()
	case "patch":
		version.BumpPatch()
	default:
		return fmt.Errorf("unknown bump %q, expected major, minor or patch", c.Bump)
	}

	if c.JSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"version":    version.String(),
			"major":      version.Major(),
			"minor":      version.Minor(),
			"patch":      version.Patch(),
			"prerelease": version.Prerelease(),
			"build":      version.Build(),
		})
	}

	fmt.Println(version.String())
	return nil
}

func (c *CLI) calculateVersion() error {
	repoPath := c.Repo
	if repoPath == "" {
		var err error
		repoPath, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
	}

	// Outside a repository the given path is kept so a cached record can still be used
	root, err := witchver.RepositoryRoot(repoPath)
	if err != nil {
		root = repoPath
	}

	cfg := config.Default()
	if c.Config != "" {
		cfg, err = config.Load(c.Config)
		if err != nil {
			return err
		}
	}

	opts, err := c.options(cfg)
	if err != nil {
		return err
	}
	opts.Path = root
	opts.Logger = newLogger(c.Verbose, c.NoColor)

	hook := &witchver.Hook{Options: opts}
	cachePath := c.Cache
	if cachePath == "" {
		cachePath = cfg.Cache
	}
	if cachePath != "" {
		if !filepath.IsAbs(cachePath) {
			cachePath = filepath.Join(root, cachePath)
		}
		hook.FS = osfs.New(filepath.Dir(cachePath))
		hook.CachePath = filepath.Base(cachePath)
	}

	version, err := hook.Version()
	if err != nil {
		return fmt.Errorf("calculating version: %w", err)
	}

	if c.JSON {
		return json.NewEncoder(os.Stdout).Encode(version.Record(true))
	}

	fmt.Println(version.String())
	return nil
}

// options layers the command line flags over the configuration file
func (c *CLI) options(cfg *config.Config) (witchver.Options, error) {
	if c.Format != nil {
		cfg.Format = *c.Format
	}

	opts, err := cfg.Options()
	if err != nil {
		return witchver.Options{}, err
	}

	switch {
	case c.NoTagPrefix:
		opts.TagPrefix = ""
	case c.TagPrefix != "":
		opts.TagPrefix = c.TagPrefix
	}

	placements := []struct {
		flag *string
		dst  *witchver.Placement
	}{
		{c.Dirty, &opts.Policy.Dirty},
		{c.Distance, &opts.Policy.Distance},
		{c.Sha, &opts.Policy.Sha},
		{c.ShaAbbrev, &opts.Policy.ShaAbbrev},
		{c.Date, &opts.Policy.Date},
	}
	for _, p := range placements {
		if p.flag == nil {
			continue
		}
		placement, err := witchver.ParsePlacement(*p.flag)
		if err != nil {
			return witchver.Options{}, err
		}
		*p.dst = placement
	}

	return opts, nil
}

func newLogger(verbose, noColor bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:   level,
		NoColor: noColor,
	}))
}
