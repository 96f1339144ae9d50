// patchgate is the developer-side gatekeeper for model-authored edits:
// deliveries are parsed, validated, applied to a shadow worktree,
// verified there, and only then promoted into the real workspace.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"patchgate/internal/logging"
)

var (
	verbose bool
	repoDir string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "patchgate",
	Short: "Gatekeeper for AI-authored source edits",
	Long: `patchgate takes a delivery (manifest + file bodies + patches) from a
model, applies it to a shadow worktree, runs the project's checks there,
and promotes the result into the workspace only when everything passes.

Nothing touches your working tree until validation, patching, and
verification have all succeeded.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := logging.Initialize(repoDir); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.Close()
	},
}

// exitError carries a stable exit code through cobra's error path.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")
	rootCmd.PersistentFlags().StringVar(&repoDir, "repo", ".", "repository root")

	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(branchCmd)
	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(abortCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if ee, ok := err.(*exitError); ok {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}
