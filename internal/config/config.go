// Package config loads .patchgate/config.yaml. Missing file means
// defaults; unknown fields are tolerated so older binaries keep working
// against newer configs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"patchgate/internal/logging"
)

// CheckCommand is one external verification step.
type CheckCommand struct {
	Name    string `yaml:"name"`
	Command string `yaml:"command"`
}

// GitConfig controls the post-promote git adapter.
type GitConfig struct {
	AutoCommit      bool   `yaml:"auto_commit"`
	AutoPush        bool   `yaml:"auto_push"`
	MessageTemplate string `yaml:"message_template"`
}

// PromoteConfig controls stage disposition after a promotion.
type PromoteConfig struct {
	// KeepStage keeps the worktree (with an empty touched set) instead
	// of deleting the stage after a successful promotion.
	KeepStage bool `yaml:"keep_stage"`
}

// SafetyConfig extends the built-in protections.
type SafetyConfig struct {
	ProtectedPaths []string `yaml:"protected_paths"`
}

// VerifyConfig tunes the check pipeline.
type VerifyConfig struct {
	Checks     []CheckCommand `yaml:"checks"`
	ExtraNoise []string       `yaml:"extra_noise"`
}

// LoggingConfig mirrors what internal/logging reads from the same file.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

// Config is the full .patchgate/config.yaml shape.
type Config struct {
	Verify  VerifyConfig  `yaml:"verify"`
	Git     GitConfig     `yaml:"git"`
	Promote PromoteConfig `yaml:"promote"`
	Safety  SafetyConfig  `yaml:"safety"`
	Logging LoggingConfig `yaml:"logging"`

	// AdvisoryThreshold is the touched-path count above which the
	// orchestrator warns that the edit volume is large.
	AdvisoryThreshold int `yaml:"advisory_threshold"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Git: GitConfig{
			MessageTemplate: "patchgate: apply %d file(s)",
		},
		AdvisoryThreshold: 24,
	}
}

// Load reads <repo>/.patchgate/config.yaml, falling back to defaults
// when the file is absent, then applies PATCHGATE_* env overrides.
func Load(repo string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(repo, ".patchgate", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.AdvisoryThreshold <= 0 {
		cfg.AdvisoryThreshold = Default().AdvisoryThreshold
	}
	if cfg.Git.MessageTemplate == "" {
		cfg.Git.MessageTemplate = Default().Git.MessageTemplate
	}

	cfg.applyEnvOverrides()
	logging.Boot("config loaded from %s (%d checks)", path, len(cfg.Verify.Checks))
	return cfg, nil
}

// applyEnvOverrides lets the environment flip the booleans without
// editing the file. Values parse per strconv.ParseBool.
func (c *Config) applyEnvOverrides() {
	if v, ok := envBool("PATCHGATE_AUTO_COMMIT"); ok {
		c.Git.AutoCommit = v
	}
	if v, ok := envBool("PATCHGATE_AUTO_PUSH"); ok {
		c.Git.AutoPush = v
	}
	if v, ok := envBool("PATCHGATE_KEEP_STAGE"); ok {
		c.Promote.KeepStage = v
	}
	if v, ok := envBool("PATCHGATE_DEBUG"); ok {
		c.Logging.DebugMode = v
	}
	if raw := os.Getenv("PATCHGATE_ADVISORY_THRESHOLD"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			c.AdvisoryThreshold = n
		}
	}
}

func envBool(name string) (bool, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		logging.BootWarn("ignoring %s=%q: not a boolean", name, raw)
		return false, false
	}
	return v, true
}

// CommitMessage renders the configured template against the number of
// promoted files. A template without a %d verb is used verbatim so a
// plain message never picks up a trailing %!(EXTRA ...) artifact.
func (c *Config) CommitMessage(fileCount int) string {
	if !strings.Contains(c.Git.MessageTemplate, "%d") {
		return c.Git.MessageTemplate
	}
	return fmt.Sprintf(c.Git.MessageTemplate, fileCount)
}
