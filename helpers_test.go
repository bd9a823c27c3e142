package witchver

import (
	"os/exec"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

var testSignature = &object.Signature{
	Name:  "test",
	Email: "test@example.com",
	When:  testDate,
}

// requireGit skips tests that shell out when git is not installed
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git executable not found")
	}
}

// testRepoCreate initializes an on-disk repository the git CLI can read,
// with HEAD on master regardless of the host's init.defaultBranch
func testRepoCreate(t *testing.T) (*git.Repository, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	cfg, err := repo.Config()
	require.NoError(t, err)
	cfg.Raw.Section("init").SetOption("defaultBranch", "master")
	require.NoError(t, repo.SetConfig(cfg))
	return repo, dir
}

// testRepoCommit writes a file, stages it and commits it
func testRepoCommit(t *testing.T, repo *git.Repository, filename, content string) plumbing.Hash {
	t.Helper()
	workTree, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, writeFile(workTree.Filesystem, filename, content))
	_, err = workTree.Add(filename)
	require.NoError(t, err)

	hash, err := workTree.Commit("Commit "+filename, &git.CommitOptions{Author: testSignature, Committer: testSignature})
	require.NoError(t, err)
	return hash
}

// testRepoTag creates a lightweight tag, as git describe --tags expects
func testRepoTag(t *testing.T, repo *git.Repository, name string, hash plumbing.Hash) {
	t.Helper()
	_, err := repo.CreateTag(name, hash, nil)
	require.NoError(t, err)
}

// testRepoDetach checks out a commit without a branch
func testRepoDetach(t *testing.T, repo *git.Repository, hash plumbing.Hash) {
	t.Helper()
	workTree, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, workTree.Checkout(&git.CheckoutOptions{Hash: hash}))
}

// testRepoBranch creates a branch pointing at hash
func testRepoBranch(t *testing.T, repo *git.Repository, name string, hash plumbing.Hash) {
	t.Helper()
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), hash)
	require.NoError(t, repo.Storer.SetReference(ref))
}

// writeFile writes content to a file in the given filesystem
func writeFile(fs billy.Filesystem, filename, content string) error {
	return util.WriteFile(fs, filename, []byte(content), 0o644)
}

// fakeRunner answers git invocations from a table keyed by the joined arguments.
// Unknown invocations exit with status 128 like git does for bad revisions.
type fakeRunner struct {
	responses map[string]Result
	calls     []string
}

func (f *fakeRunner) Run(dir, name string, args ...string) Result {
	key := strings.Join(args, " ")
	f.calls = append(f.calls, key)
	if res, ok := f.responses[key]; ok {
		return res
	}
	return Result{ExitCode: 128, Started: true}
}

func (f *fakeRunner) called(key string) bool {
	for _, c := range f.calls {
		if c == key {
			return true
		}
	}
	return false
}

// countingRunner counts the programs run through the wrapped Runner
type countingRunner struct {
	Runner
	calls int
}

func (c *countingRunner) Run(dir, name string, args ...string) Result {
	c.calls++
	return c.Runner.Run(dir, name, args...)
}

// requireSameSignals compares every signal, dates by instant
func requireSameSignals(t *testing.T, expected, actual Signals) {
	t.Helper()
	require.Equal(t, expected.Tag, actual.Tag)
	require.Equal(t, expected.Sha, actual.Sha)
	require.Equal(t, expected.ShaAbbrev, actual.ShaAbbrev)
	require.Equal(t, expected.Branch, actual.Branch)
	require.Equal(t, expected.Dirty, actual.Dirty)
	require.Equal(t, expected.Distance, actual.Distance)
	require.Equal(t, expected.GitDir, actual.GitDir)
	require.NotNil(t, expected.Date)
	require.NotNil(t, actual.Date)
	require.True(t, expected.Date.Equal(*actual.Date), "%s != %s", expected.Date, actual.Date)
}

func gitOK(stdout string) Result {
	return Result{Stdout: stdout, Started: true}
}

func gitExit(code int) Result {
	return Result{ExitCode: code, Started: true}
}

// taggedResponses describes a clean checkout of master one commit past v0.0.0
func taggedResponses() map[string]Result {
	return map[string]Result{
		"rev-parse --git-dir":                        gitOK(".git"),
		"rev-parse HEAD":                             gitOK(testSha),
		"diff --quiet HEAD":                          gitOK(""),
		"status --porcelain":                         gitOK(""),
		"describe --tags --always --long --match v*": gitOK("v0.0.0-1-g" + testShaAbbrev),
		"rev-parse --abbrev-ref HEAD":                gitOK("master"),
		"show -s --format=%ci HEAD":                  gitOK("2022-07-18 11:01:26 -0700"),
		"config init.defaultBranch":                  gitOK("master"),
	}
}
