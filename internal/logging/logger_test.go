package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetState() {
	Close()
	configMu.Lock()
	config = loggingConfig{}
	configMu.Unlock()
	logsDir = ""
	workspace = ""
}

func TestInitializeWithoutConfigIsSilent(t *testing.T) {
	resetState()
	defer resetState()

	ws := t.TempDir()
	require.NoError(t, Initialize(ws))

	assert.False(t, IsDebugMode())

	// No logs directory created in production mode.
	_, err := os.Stat(filepath.Join(ws, ".patchgate", "logs"))
	assert.True(t, os.IsNotExist(err))
}

func TestInitializeDebugModeWritesCategoryFile(t *testing.T) {
	resetState()
	defer resetState()

	ws := t.TempDir()
	cfgDir := filepath.Join(ws, ".patchgate")
	require.NoError(t, os.MkdirAll(cfgDir, 0755))
	cfg := "logging:\n  debug_mode: true\n  level: debug\n"
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte(cfg), 0644))

	require.NoError(t, Initialize(ws))
	require.True(t, IsDebugMode())

	Stage("stage opened: %s", "abc123")
	Close()

	data, err := os.ReadFile(filepath.Join(cfgDir, "logs", "stage.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "stage opened: abc123")
}

func TestCategoryFilterSuppressesDisabledCategories(t *testing.T) {
	resetState()
	defer resetState()

	ws := t.TempDir()
	cfgDir := filepath.Join(ws, ".patchgate")
	require.NoError(t, os.MkdirAll(cfgDir, 0755))
	cfg := "logging:\n  debug_mode: true\n  level: debug\n  categories:\n    stage: true\n    promote: false\n"
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte(cfg), 0644))

	require.NoError(t, Initialize(ws))

	Promote("should be filtered")
	Stage("should appear")
	Close()

	stageLog, err := os.ReadFile(filepath.Join(cfgDir, "logs", "stage.log"))
	require.NoError(t, err)
	assert.Contains(t, string(stageLog), "should appear")

	promoteLog, err := os.ReadFile(filepath.Join(cfgDir, "logs", "promote.log"))
	if err == nil {
		assert.NotContains(t, string(promoteLog), "should be filtered")
	}
}
