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

func initRepo(t *testing.T) *Adapter {
	t.Helper()
	repo := t.TempDir()
	for _, args := range [][]string{
		{"init"},
		{"config", "user.email", "dev@example.com"},
		{"config", "user.name", "dev"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = repo
		require.NoError(t, cmd.Run(), "git %v", args)
	}
	return &Adapter{Repo: repo}
}

func TestIsRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	a := initRepo(t)
	ctx := context.Background()
	assert.True(t, a.IsRepo(ctx))

	bare := &Adapter{Repo: t.TempDir()}
	assert.False(t, bare.IsRepo(ctx))
}

func TestCommitAndPushWithoutRemote(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	a := initRepo(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(a.Repo, "x.txt"), []byte("x\n"), 0o644))

	dirty, err := a.IsDirty(ctx)
	require.NoError(t, err)
	assert.True(t, dirty)

	// No remote configured: commit succeeds, push is silently skipped.
	res, err := a.CommitAndPush(ctx, "add x", true)
	require.NoError(t, err)
	assert.True(t, res.Committed)
	assert.False(t, res.Pushed)

	dirty, err = a.IsDirty(ctx)
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestCommitNothingStaged(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	a := initRepo(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(a.Repo, "x.txt"), []byte("x\n"), 0o644))
	_, err := a.CommitAndPush(ctx, "first", false)
	require.NoError(t, err)

	res, err := a.CommitAndPush(ctx, "empty", false)
	require.NoError(t, err)
	assert.False(t, res.Committed)
}
