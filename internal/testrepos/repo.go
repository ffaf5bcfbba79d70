// Package testrepos builds throwaway git repositories for crewd tests.
package testrepos

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TempRepo represents a temporary git repository that can be reused in tests.
type TempRepo struct {
	Root string
}

// New creates a temporary git repository with an initial commit on main.
func New(tb testing.TB) *TempRepo {
	tb.Helper()
	root, err := os.MkdirTemp("", "crewd-test-repo-*")
	if err != nil {
		tb.Fatalf("create temp repo directory: %v", err)
	}
	// macOS temp dirs are symlinks under /var; git reports resolved paths.
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	repo := &TempRepo{Root: root}
	tb.Cleanup(func() {
		if err := os.RemoveAll(repo.Root); err != nil && !os.IsNotExist(err) {
			tb.Fatalf("cleanup temp repo: %v", err)
		}
	})

	repo.initialize(tb)
	return repo
}

// RunGit executes git in the repository directory and fails the test on error.
func (r *TempRepo) RunGit(tb testing.TB, args ...string) string {
	tb.Helper()
	return runGitIn(tb, r.Root, args...)
}

// RunGitIn executes git in an arbitrary directory (e.g. a worktree).
func (r *TempRepo) RunGitIn(tb testing.TB, dir string, args ...string) string {
	tb.Helper()
	return runGitIn(tb, dir, args...)
}

// WriteFile writes a file relative to the repository root.
func (r *TempRepo) WriteFile(tb testing.TB, relPath, content string) string {
	tb.Helper()
	return writeFileIn(tb, r.Root, relPath, content)
}

// WriteFileIn writes a file relative to an arbitrary directory.
func (r *TempRepo) WriteFileIn(tb testing.TB, dir, relPath, content string) string {
	tb.Helper()
	return writeFileIn(tb, dir, relPath, content)
}

// Commit stages everything and commits with the given message.
func (r *TempRepo) Commit(tb testing.TB, message string) string {
	tb.Helper()
	r.RunGit(tb, "add", "-A")
	r.RunGit(tb, "commit", "-m", message)
	return r.RunGit(tb, "rev-parse", "HEAD")
}

func (r *TempRepo) initialize(tb testing.TB) {
	tb.Helper()
	r.RunGit(tb, "init", "--initial-branch=main")
	r.RunGit(tb, "config", "user.name", "Crewd Test")
	r.RunGit(tb, "config", "user.email", "test@example.com")
	r.RunGit(tb, "config", "commit.gpgsign", "false")

	r.WriteFile(tb, "README.md", "# Temp Crewd Repository\n")
	r.RunGit(tb, "add", "README.md")
	r.RunGit(tb, "commit", "-m", "Initial commit")
}

func writeFileIn(tb testing.TB, dir, relPath, content string) string {
	tb.Helper()
	path := filepath.Join(dir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("create dir for %s: %v", relPath, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		tb.Fatalf("write %s: %v", relPath, err)
	}
	return path
}

func runGitIn(tb testing.TB, dir string, args ...string) string {
	tb.Helper()
	output, err := gitOutput(dir, args...)
	if err != nil {
		tb.Fatalf("git %s failed: %v: %s", strings.Join(args, " "), err, output)
	}
	return output
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := gitCommand(dir, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(out)), fmt.Errorf("run git: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
