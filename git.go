// Package witchver derives semantic versions from Git repository state.
package witchver

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
)

// describePattern matches `git describe --long` output: <tag>-<distance>-g<sha>
var describePattern = regexp.MustCompile(`^(.+)-(\d+)-g([0-9a-f]+)$`)

// commitDateLayout is the layout of `git show --format=%ci`
const commitDateLayout = "2006-01-02 15:04:05 -0700"

// RepositoryRoot returns the worktree root of the repository containing path
func RepositoryRoot(path string) (string, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return "", fmt.Errorf("%w: opening %q: %v", ErrNotRepository, path, err)
	}

	workTree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("%w: getting worktree of %q: %v", ErrNotRepository, path, err)
	}
	return workTree.Filesystem.Root(), nil
}

// DescribeArgs returns the default git describe arguments for a tag prefix
func DescribeArgs(tagPrefix string) []string {
	args := []string{"--tags", "--always", "--long"}
	if tagPrefix != "" {
		args = append(args, "--match", tagPrefix+"*")
	}
	return args
}

// Fetch inspects the repository at opts.Path with git and composes its version.
// When opts.Cache holds a record for the same HEAD and tag, the branch and
// commit date lookups are skipped and the cached values reused; the dirty flag
// is always recomputed.
func Fetch(opts Options) (*RepositoryVersion, error) {
	path := opts.Path
	if path == "" {
		path = "."
	}
	dir, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %q: %v", ErrRuntime, path, err)
	}

	in := &inspection{dir: dir, runner: opts.Runner, log: opts.Logger}
	if in.runner == nil {
		in.runner = ExecRunner{}
	}
	if in.log == nil {
		in.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	in.log = in.log.With("path", dir)

	versionOpts := VersionOptions{
		TagPrefix: opts.TagPrefix,
		Policy:    opts.Policy,
		Pretty:    opts.Pretty,
	}

	gitDir, err := in.gitDir()
	if err != nil {
		return nil, err
	}

	head := in.run("rev-parse", "HEAD")
	if !head.Started {
		return nil, &CommandError{Step: "resolving HEAD", Args: []string{"rev-parse", "HEAD"}}
	}
	if head.ExitCode != 0 {
		// HEAD points nowhere: the repository has no commits
		in.log.Debug("repository has no commits")
		status, err := in.check("reading status", "status", "--porcelain")
		if err != nil {
			return nil, err
		}
		signals := Signals{
			Sha:       ptr(""),
			ShaAbbrev: ptr(""),
			Branch:    ptr(in.defaultBranch()),
			Date:      ptr(time.Now().UTC()),
			Dirty:     status != "",
			Distance:  ptr(0),
			GitDir:    gitDir,
		}
		return NewRepositoryVersion(signals, versionOpts)
	}
	sha := head.Stdout

	dirty, err := in.dirty()
	if err != nil {
		return nil, err
	}

	describeArgs := opts.DescribeArgs
	if describeArgs == nil {
		describeArgs = DescribeArgs(opts.TagPrefix)
	}
	tag, shaAbbrev, distance, err := in.describe(describeArgs)
	if err != nil {
		return nil, err
	}

	signals := Signals{
		Tag:       tag,
		Sha:       &sha,
		ShaAbbrev: &shaAbbrev,
		Dirty:     dirty,
		Distance:  &distance,
		GitDir:    gitDir,
	}

	if merged, ok := mergeCached(signals, opts.Cache); ok {
		in.log.Debug("reusing cached signals", "sha", sha)
		return NewRepositoryVersion(merged, versionOpts)
	}

	signals.Branch, err = in.branch()
	if err != nil {
		return nil, err
	}

	date, err := in.commitDate()
	if err != nil {
		return nil, err
	}
	signals.Date = &date

	return NewRepositoryVersion(signals, versionOpts)
}

type inspection struct {
	dir    string
	runner Runner
	log    *slog.Logger
}

func (in *inspection) run(args ...string) Result {
	res := in.runner.Run(in.dir, "git", args...)
	in.log.Debug("git", "args", args, "exit", res.ExitCode, "started", res.Started)
	return res
}

// check runs git and fails unless it exits with status zero
func (in *inspection) check(step string, args ...string) (string, error) {
	res := in.run(args...)
	if !res.OK() {
		return "", &CommandError{Step: step, Args: args, ExitCode: res.ExitCode, Started: res.Started}
	}
	return res.Stdout, nil
}

func (in *inspection) gitDir() (string, error) {
	res := in.run("rev-parse", "--git-dir")
	if !res.OK() {
		return "", fmt.Errorf("%w: %q", ErrNotRepository, in.dir)
	}

	gitDir := res.Stdout
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(in.dir, gitDir)
	}
	return filepath.Clean(gitDir), nil
}

// defaultBranch is init.defaultBranch, or master for git before 2.28
func (in *inspection) defaultBranch() string {
	res := in.run("config", "init.defaultBranch")
	if res.OK() && res.Stdout != "" {
		return res.Stdout
	}
	return "master"
}

// dirty compares the working tree with HEAD. An index change reverted in the
// working tree is clean; an untracked, unignored file is dirty.
func (in *inspection) dirty() (bool, error) {
	args := []string{"diff", "--quiet", "HEAD"}
	res := in.run(args...)
	if !res.Started {
		return false, &CommandError{Step: "comparing working tree", Args: args}
	}
	if res.ExitCode != 0 {
		return true, nil
	}

	status, err := in.check("reading status", "status", "--porcelain")
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(status, "\n") {
		if strings.HasPrefix(line, "?") {
			return true, nil
		}
	}
	return false, nil
}

// describe returns the closest tag (nil when untagged), the abbreviated SHA and
// the distance. Untagged repositories count every commit reachable from HEAD.
func (in *inspection) describe(describeArgs []string) (*string, string, int, error) {
	out, err := in.check("describing HEAD", append([]string{"describe"}, describeArgs...)...)
	if err != nil {
		return nil, "", 0, err
	}

	if strings.Contains(out, "-") {
		m := describePattern.FindStringSubmatch(out)
		if m == nil {
			return nil, "", 0, fmt.Errorf("%w: git describe output %q does not match <tag>-<distance>-g<sha>", ErrFormat, out)
		}
		distance, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, "", 0, fmt.Errorf("%w: git describe distance %q: %v", ErrFormat, m[2], err)
		}
		return &m[1], m[3], distance, nil
	}

	count, err := in.check("counting commits", "rev-list", "HEAD", "--count")
	if err != nil {
		return nil, "", 0, err
	}
	distance, err := strconv.Atoi(count)
	if err != nil {
		return nil, "", 0, fmt.Errorf("%w: commit count %q: %v", ErrFormat, count, err)
	}
	return nil, out, distance, nil
}

// branch returns the current branch. A detached HEAD prefers, among the branches
// containing it, the default branch, master, main, then the first one listed.
func (in *inspection) branch() (*string, error) {
	name, err := in.check("resolving branch", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, err
	}
	if name != "HEAD" {
		return &name, nil
	}

	out, err := in.check("listing branches", "branch", "--format=%(refname:lstrip=2)", "--contains")
	if err != nil {
		return nil, err
	}

	var branches []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		// Skip "(HEAD detached at ...)" entries
		if line == "" || strings.HasPrefix(line, "(") {
			continue
		}
		branches = append(branches, line)
	}
	if len(branches) == 0 {
		return nil, nil
	}

	for _, candidate := range []string{in.defaultBranch(), "master", "main"} {
		if slices.Contains(branches, candidate) {
			return &candidate, nil
		}
	}
	return &branches[0], nil
}

func (in *inspection) commitDate() (time.Time, error) {
	raw, err := in.check("reading commit date", "show", "-s", "--format=%ci", "HEAD")
	if err != nil {
		return time.Time{}, err
	}
	date, err := time.Parse(commitDateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: commit date %q: %v", ErrFormat, raw, err)
	}
	return date, nil
}
