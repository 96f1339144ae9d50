package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"patchgate/internal/config"
	"patchgate/internal/hud"
	"patchgate/internal/orchestrator"
	"patchgate/internal/verify"
)

var (
	applyForce    bool
	applyDryRun   bool
	applyStdin    bool
	applyFile     string
	applyNoCommit bool
	applyNoPush   bool
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a delivery through the staged pipeline",
	Long: `Reads a delivery from the clipboard (default), stdin, or a file,
applies it to the shadow worktree, verifies it there, and promotes the
result into the workspace.

Exit codes: 0 success, 1 error, 2 invalid input, 3 safety violation,
4 patch failure, 5 promote failure, 6 check failed.`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&applyForce, "force", false, "skip the confirmation prompt")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "validate and stage only; print a diff summary")
	applyCmd.Flags().BoolVar(&applyStdin, "stdin", false, "read the delivery from stdin")
	applyCmd.Flags().StringVar(&applyFile, "file", "", "read the delivery from a file")
	applyCmd.Flags().BoolVar(&applyNoCommit, "no-commit", false, "skip the post-promote git commit")
	applyCmd.Flags().BoolVar(&applyNoPush, "no-push", false, "commit but do not push")
}

func runApply(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(repoDir)
	if err != nil {
		return &exitError{code: 1, msg: err.Error()}
	}

	var src orchestrator.InputSource = orchestrator.ClipboardSource{}
	switch {
	case applyStdin:
		src = orchestrator.StdinSource{}
	case applyFile != "":
		src = orchestrator.FileSource{Path: applyFile}
	}

	// Stdin input cannot double as a confirmation terminal.
	if !applyForce && !applyStdin && !applyDryRun {
		if !confirm(fmt.Sprintf("Apply delivery from %s?", src.Name())) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	o := orchestrator.New(repoDir, cfg)
	o.Scanner = verify.NopScanner{}

	h := hud.New("patchgate apply", 8)
	o.Progress = h
	res := o.Apply(cmd.Context(), src, orchestrator.Options{
		DryRun:   applyDryRun,
		Force:    applyForce,
		NoCommit: applyNoCommit,
		NoPush:   applyNoPush,
	})
	h.Finish()

	return report(res)
}

// report prints the result and maps the outcome to the exit contract.
func report(res *orchestrator.Result) error {
	if res.DiffSummary != "" {
		fmt.Print(res.DiffSummary)
	}
	for _, adv := range res.Advisories {
		fmt.Fprintln(os.Stderr, "advisory:", adv)
	}

	if res.Outcome == orchestrator.Success {
		if len(res.Written)+len(res.Deleted) > 0 {
			fmt.Printf("Promoted %d write(s), %d delete(s).\n", len(res.Written), len(res.Deleted))
		} else {
			fmt.Println("OK.")
		}
		return nil
	}

	var checkErr *verify.CheckError
	if errors.As(res.Err, &checkErr) {
		fmt.Fprintf(os.Stderr, "check %q failed:\n", checkErr.Name)
		for _, line := range checkErr.Summary {
			fmt.Fprintln(os.Stderr, " ", line)
		}
	}

	return &exitError{code: res.Outcome.ExitCode(), msg: fmt.Sprintf("%s: %v", res.Outcome, res.Err)}
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
