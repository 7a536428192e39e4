package gitops

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAuthor = Author{Name: "Test Author", Email: "test@example.com"}

func requireGit(t *testing.T) {
	t.Helper()
	if !Available() {
		t.Skip("git not installed")
	}
}

func gitOutput(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	require.NoError(t, err)
	return string(out)
}

func TestInit(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	require.NoError(t, Init(context.Background(), dir))

	_, err := os.Stat(filepath.Join(dir, ".git"))
	require.NoError(t, err, ".git directory should exist")
}

func TestIsRepo(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	assert.False(t, IsRepo(dir), "empty dir should not be a repo")

	require.NoError(t, Init(context.Background(), dir))
	assert.True(t, IsRepo(dir), "initialized dir should be a repo")
}

func TestCommit(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, Init(ctx, dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "equitax.yaml"), []byte("log: {}\n"), 0o644))

	hash, err := Commit(ctx, dir, "init: equitax project", testAuthor)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	assert.Contains(t, gitOutput(t, dir, "log", "--format=%s", "-1"), "init: equitax project")
	assert.Contains(t, gitOutput(t, dir, "log", "--format=%an <%ae>", "-1"), "Test Author <test@example.com>")
}

func TestCommit_OnlyGivenPaths(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, Init(ctx, dir))

	out := filepath.Join(dir, "processed.csv")
	require.NoError(t, os.WriteFile(out, []byte("x\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scratch.txt"), []byte("y\n"), 0o644))

	hash, err := Commit(ctx, dir, "process: 2024", testAuthor, out)
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	files := gitOutput(t, dir, "show", "--name-only", "--format=", "HEAD")
	assert.Contains(t, files, "processed.csv")
	assert.NotContains(t, files, "scratch.txt")
}

func TestCommit_NothingToCommit(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, Init(ctx, dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("a\n"), 0o644))

	_, err := Commit(ctx, dir, "first", testAuthor)
	require.NoError(t, err)

	hash, err := Commit(ctx, dir, "second", testAuthor)
	require.NoError(t, err)
	assert.Empty(t, hash)
}

func TestRelTo(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "out.csv", relTo(dir, filepath.Join(dir, "out.csv")))
	assert.Equal(t, "out.csv", relTo(dir, "out.csv"))
	assert.Equal(t, "/elsewhere/out.csv", relTo(dir, "/elsewhere/out.csv"))
}
