// Package logging provides config-driven categorized file-based logging
// for patchgate. Logs are written to .patchgate/logs/ with separate files
// per category. Logging is controlled by the logging section of
// .patchgate/config.yaml - when debug mode is off, no logs are written.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, config loading
	CategoryParse   Category = "parse"   // Delivery parsing
	CategorySafety  Category = "safety"  // Path/content validation
	CategoryPatch   Category = "patch"   // Patch engine
	CategoryStage   Category = "stage"   // Stage lifecycle, writer
	CategoryVerify  Category = "verify"  // External checks, scanner
	CategoryPromote Category = "promote" // Promotion, backup, rollback
	CategoryGit     Category = "git"     // Git adapter
)

// loggingConfig mirrors the logging section of config.Config to avoid a
// circular import.
type loggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

type configFile struct {
	Logging loggingConfig `yaml:"logging"`
}

// Logger wraps a standard logger bound to a category file.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	workspace string
	config    loggingConfig
	configMu  sync.RWMutex
	logLevel  int
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Initialize sets up the logging directory and loads config.
// Should be called once at startup with the workspace path.
func Initialize(ws string) error {
	if ws == "" {
		return fmt.Errorf("workspace path required")
	}

	workspace = ws
	logsDir = filepath.Join(workspace, ".patchgate", "logs")

	if err := loadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not load config: %v\n", err)
		config.DebugMode = false
	}

	if !config.DebugMode {
		return nil // Silent no-op in production mode.
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== patchgate logging initialized ===")
	boot.Info("Workspace: %s", workspace)
	boot.Info("Log level: %s", config.Level)

	return nil
}

// loadConfig reads the logging config from .patchgate/config.yaml.
func loadConfig() error {
	configMu.Lock()
	defer configMu.Unlock()

	configPath := filepath.Join(workspace, ".patchgate", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// No config = production mode (no logging).
			config.DebugMode = false
			return nil
		}
		return err
	}

	var cf configFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	config = cf.Logging

	switch config.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}

	return nil
}

// IsDebugMode reports whether debug logging is enabled.
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.DebugMode
}

// categoryEnabled checks the per-category filter. An empty filter map
// enables everything.
func categoryEnabled(cat Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()
	if len(config.Categories) == 0 {
		return true
	}
	enabled, ok := config.Categories[string(cat)]
	return ok && enabled
}

// Get returns the logger for a category, creating it on first use.
func Get(category Category) *Logger {
	loggersMu.RLock()
	l, ok := loggers[category]
	loggersMu.RUnlock()
	if ok {
		return l
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	l = &Logger{category: category}
	if IsDebugMode() && logsDir != "" {
		path := filepath.Join(logsDir, string(category)+".log")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			l.file = file
			l.logger = log.New(file, "", log.LstdFlags|log.Lmicroseconds)
		}
	}
	loggers[category] = l
	return l
}

// Close flushes and closes all category log files.
func Close() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			_ = l.file.Close()
			l.file = nil
			l.logger = nil
		}
	}
	loggers = make(map[Category]*Logger)
}

func (l *Logger) write(level int, prefix, format string, args ...interface{}) {
	if l.logger == nil || !IsDebugMode() || level < logLevel || !categoryEnabled(l.category) {
		return
	}
	l.logger.Printf(prefix+format, args...)
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(LevelDebug, "[DEBUG] ", format, args...)
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.write(LevelInfo, "[INFO] ", format, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(LevelWarn, "[WARN] ", format, args...)
}

// Error logs at error level.
func (l *Logger) Error(format string, args ...interface{}) {
	l.write(LevelError, "[ERROR] ", format, args...)
}

// Convenience helpers, one set per category.

func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }
func BootWarn(format string, args ...interface{}) { Get(CategoryBoot).Warn(format, args...) }
func Parse(format string, args ...interface{}) { Get(CategoryParse).Info(format, args...) }
func ParseDebug(format string, args ...interface{}) { Get(CategoryParse).Debug(format, args...) }
func ParseWarn(format string, args ...interface{}) { Get(CategoryParse).Warn(format, args...) }
func Safety(format string, args ...interface{}) { Get(CategorySafety).Info(format, args...) }
func SafetyWarn(format string, args ...interface{}) { Get(CategorySafety).Warn(format, args...) }
func Patch(format string, args ...interface{}) { Get(CategoryPatch).Info(format, args...) }
func PatchDebug(format string, args ...interface{}) { Get(CategoryPatch).Debug(format, args...) }
func PatchWarn(format string, args ...interface{}) { Get(CategoryPatch).Warn(format, args...) }
func Stage(format string, args ...interface{}) { Get(CategoryStage).Info(format, args...) }
func StageDebug(format string, args ...interface{}) { Get(CategoryStage).Debug(format, args...) }
func StageWarn(format string, args ...interface{}) { Get(CategoryStage).Warn(format, args...) }
func StageError(format string, args ...interface{}) { Get(CategoryStage).Error(format, args...) }
func Verify(format string, args ...interface{}) { Get(CategoryVerify).Info(format, args...) }
func VerifyWarn(format string, args ...interface{}) { Get(CategoryVerify).Warn(format, args...) }
func Promote(format string, args ...interface{}) { Get(CategoryPromote).Info(format, args...) }
func PromoteWarn(format string, args ...interface{}) { Get(CategoryPromote).Warn(format, args...) }
func PromoteError(format string, args ...interface{}) {
	Get(CategoryPromote).Error(format, args...)
}
func Git(format string, args ...interface{}) { Get(CategoryGit).Info(format, args...) }
func GitWarn(format string, args ...interface{}) { Get(CategoryGit).Warn(format, args...) }
