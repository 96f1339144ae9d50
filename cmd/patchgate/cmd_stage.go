package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"patchgate/internal/config"
	"patchgate/internal/events"
	"patchgate/internal/orchestrator"
	"patchgate/internal/stage"
	"patchgate/internal/verify"
)

var (
	branchForce   bool
	promoteDryRun bool
)

var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Create the shadow worktree without applying anything",
	Long: `Copies the workspace into the shadow worktree so later applies and
checks run against a stable snapshot. With --force an existing stage is
discarded and rebuilt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if branchForce {
			if err := stage.Reset(repoDir); err != nil {
				return &exitError{code: 1, msg: err.Error()}
			}
		} else if stage.Exists(repoDir) {
			return &exitError{code: 1, msg: "a stage already exists; use --force to rebuild it"}
		}

		s, _, err := stage.OpenOrCreate(repoDir)
		if err != nil {
			return &exitError{code: 1, msg: err.Error()}
		}
		events.Open(repoDir).Append(events.StageCreated, map[string]any{"id": s.State.ID})
		fmt.Printf("Stage %s created at %s\n", s.State.ID, s.Worktree)
		return nil
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Verify and promote the live stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(repoDir)
		if err != nil {
			return &exitError{code: 1, msg: err.Error()}
		}
		o := orchestrator.New(repoDir, cfg)
		o.Scanner = verify.NopScanner{}

		res := o.PromoteStage(cmd.Context(), orchestrator.Options{DryRun: promoteDryRun})
		return report(res)
	},
}

var abortCmd = &cobra.Command{
	Use:   "abort",
	Short: "Discard the live stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(repoDir)
		if err != nil {
			return &exitError{code: 1, msg: err.Error()}
		}
		if err := orchestrator.New(repoDir, cfg).Abort(); err != nil {
			return &exitError{code: 1, msg: err.Error()}
		}
		fmt.Println("Stage discarded.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the live stage and its touched paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !stage.Exists(repoDir) {
			fmt.Println("No live stage.")
			return nil
		}
		s, err := stage.Open(repoDir)
		if err != nil {
			return &exitError{code: 1, msg: err.Error()}
		}

		fmt.Printf("Stage %s (age %s)\n", s.State.ID, s.Age().Round(time.Second))
		if len(s.State.Touched) == 0 {
			fmt.Println("No touched paths.")
			return nil
		}
		fmt.Printf("%d touched path(s):\n", len(s.State.Touched))
		for _, t := range s.State.Touched {
			mark := "W"
			if t.Kind == stage.TouchDelete {
				mark = "D"
			}
			fmt.Printf("  %s %s\n", mark, t.Path)
		}
		return nil
	},
}

func init() {
	branchCmd.Flags().BoolVar(&branchForce, "force", false, "discard and rebuild an existing stage")
	promoteCmd.Flags().BoolVar(&promoteDryRun, "dry-run", false, "print the pending diff without promoting")
}
