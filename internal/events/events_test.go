package events

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendWritesOneLinePerEvent(t *testing.T) {
	repo := t.TempDir()
	log := Open(repo)
	log.now = func() time.Time { return time.Unix(1700000000, 0) }

	log.Append(ApplyStarted, map[string]any{"files": 2})
	log.Append(FileWritten, map[string]any{"path": "src/main.go"})

	data, err := os.ReadFile(filepath.Join(repo, ".patchgate", "events.jsonl"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"tag":"apply_started"`)
	assert.Contains(t, lines[0], `"timestamp":1700000000`)
	assert.Contains(t, lines[1], `"path":"src/main.go"`)
}

func TestAppendNeverFails(t *testing.T) {
	// Pointing the log at a path whose parent is a file makes every
	// write fail; Append must swallow it.
	repo := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(repo, ".patchgate"), []byte("not a dir"), 0o644))

	log := Open(repo)
	log.Append(StageCreated, nil)
}

func TestReadSkipsMalformedLines(t *testing.T) {
	repo := t.TempDir()
	log := Open(repo)
	log.Append(StageCreated, map[string]any{"id": "abc"})

	path := filepath.Join(repo, ".patchgate", "events.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{broken\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	log.Append(PromoteSucceeded, nil)

	evs := log.Read()
	require.Len(t, evs, 2)
	assert.Equal(t, StageCreated, evs[0].Kind.Tag)
	assert.Equal(t, PromoteSucceeded, evs[1].Kind.Tag)
}

func TestReadMissingLogIsEmpty(t *testing.T) {
	log := Open(t.TempDir())
	assert.Empty(t, log.Read())
}
