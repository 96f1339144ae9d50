package promote

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patchgate/internal/safety"
	"patchgate/internal/stage"
)

// setup builds a repo with one committed file and a stage holding the
// given touches, with matching content in the worktree.
func setup(t *testing.T) (*Promoter, *stage.Stage, string) {
	t.Helper()
	repo := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(repo, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "src", "old.go"), []byte("old content\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "src", "gone.go"), []byte("to delete\n"), 0o644))

	s, _, err := stage.OpenOrCreate(repo)
	require.NoError(t, err)

	p := &Promoter{Repo: repo, Validator: safety.NewPathValidator()}
	return p, s, repo
}

func stageWrite(t *testing.T, s *stage.Stage, rel, content string) {
	t.Helper()
	target := filepath.Join(s.Worktree, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte(content), 0o644))
	require.NoError(t, s.RecordTouch(rel, stage.TouchWrite))
}

func TestPromoteWritesAndDeletes(t *testing.T) {
	p, s, repo := setup(t)
	stageWrite(t, s, "src/old.go", "new content\n")
	stageWrite(t, s, "src/fresh.go", "fresh\n")
	require.NoError(t, s.RecordTouch("src/gone.go", stage.TouchDelete))

	res, err := p.Promote(s)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"src/old.go", "src/fresh.go"}, res.Written)
	assert.Equal(t, []string{"src/gone.go"}, res.Deleted)

	data, err := os.ReadFile(filepath.Join(repo, "src", "old.go"))
	require.NoError(t, err)
	assert.Equal(t, "new content\n", string(data))
	assert.FileExists(t, filepath.Join(repo, "src", "fresh.go"))
	assert.NoFileExists(t, filepath.Join(repo, "src", "gone.go"))
}

func TestPromoteBackupSetMirrorsPriorState(t *testing.T) {
	p, s, _ := setup(t)
	stageWrite(t, s, "src/old.go", "new content\n")
	stageWrite(t, s, "src/fresh.go", "fresh\n")

	res, err := p.Promote(s)
	require.NoError(t, err)

	backup, err := os.ReadFile(filepath.Join(res.BackupDir, "src", "old.go"))
	require.NoError(t, err)
	assert.Equal(t, "old content\n", string(backup))

	raw, err := os.ReadFile(filepath.Join(res.BackupDir, "_deleted.json"))
	require.NoError(t, err)
	var absent []string
	require.NoError(t, json.Unmarshal(raw, &absent))
	assert.Equal(t, []string{"src/fresh.go"}, absent)
}

func TestPromoteRejectsUnsafeTargets(t *testing.T) {
	p, s, _ := setup(t)
	require.NoError(t, s.RecordTouch(".git/hooks/pre-commit", stage.TouchWrite))

	_, err := p.Promote(s)
	require.Error(t, err)
	var pathErr *safety.PathError
	assert.True(t, errors.As(err, &pathErr))
}

func TestPromoteEmptyTouchedSetFails(t *testing.T) {
	p, s, _ := setup(t)
	_, err := p.Promote(s)
	assert.Error(t, err)
}

func TestPromoteFailureRollsBack(t *testing.T) {
	p, s, repo := setup(t)
	stageWrite(t, s, "src/first.go", "first\n")
	stageWrite(t, s, "blocked/second.go", "second\n")

	// A regular file where the parent directory should be makes the
	// second write fail after the first has landed.
	require.NoError(t, os.WriteFile(filepath.Join(repo, "blocked"), []byte("in the way"), 0o644))

	_, err := p.Promote(s)
	var promoteErr *Error
	require.True(t, errors.As(err, &promoteErr))
	assert.Equal(t, "blocked/second.go", promoteErr.Path)
	assert.True(t, promoteErr.RolledBack)

	// The first write must be undone since it did not exist before.
	assert.NoFileExists(t, filepath.Join(repo, "src", "first.go"))
	data, err := os.ReadFile(filepath.Join(repo, "src", "old.go"))
	require.NoError(t, err)
	assert.Equal(t, "old content\n", string(data))
}

func TestPromoteRollbackRestoresOverwrites(t *testing.T) {
	p, s, repo := setup(t)
	stageWrite(t, s, "src/old.go", "replacement\n")
	stageWrite(t, s, "blocked/x.go", "x\n")
	require.NoError(t, os.WriteFile(filepath.Join(repo, "blocked"), []byte("in the way"), 0o644))

	_, err := p.Promote(s)
	var promoteErr *Error
	require.True(t, errors.As(err, &promoteErr))
	require.True(t, promoteErr.RolledBack)

	data, err := os.ReadFile(filepath.Join(repo, "src", "old.go"))
	require.NoError(t, err)
	assert.Equal(t, "old content\n", string(data))
}
