// Package gitops is the optional post-promote git adapter: stage all
// changes, commit when anything is staged, push when a remote exists.
// A repository without a remote or upstream is a normal case, not an
// error.
package gitops

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"patchgate/internal/logging"
)

// Adapter runs git in one repository.
type Adapter struct {
	Repo string
}

// CommitResult reports what the adapter did.
type CommitResult struct {
	Committed bool
	Pushed    bool
}

// IsRepo reports whether the directory is inside a git work tree.
func (a *Adapter) IsRepo(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = a.Repo
	return cmd.Run() == nil
}

// IsDirty reports whether the work tree has uncommitted changes.
func (a *Adapter) IsDirty(ctx context.Context) (bool, error) {
	out, err := a.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// CommitAndPush stages everything, commits with the given message if
// anything is staged, and pushes if an upstream is configured.
func (a *Adapter) CommitAndPush(ctx context.Context, message string, push bool) (*CommitResult, error) {
	res := &CommitResult{}

	if _, err := a.run(ctx, "add", "-A"); err != nil {
		return res, fmt.Errorf("git add: %w", err)
	}

	// Nothing staged means nothing to commit; that is success.
	if err := a.runQuiet(ctx, "diff", "--cached", "--quiet"); err == nil {
		logging.Git("nothing staged, skipping commit")
		return res, nil
	}

	if _, err := a.run(ctx, "commit", "-m", message); err != nil {
		return res, fmt.Errorf("git commit: %w", err)
	}
	res.Committed = true
	logging.Git("committed: %s", message)

	if !push {
		return res, nil
	}
	if !a.hasUpstream(ctx) {
		logging.Git("no upstream configured, skipping push")
		return res, nil
	}
	if _, err := a.run(ctx, "push"); err != nil {
		return res, fmt.Errorf("git push: %w", err)
	}
	res.Pushed = true
	logging.Git("pushed")
	return res, nil
}

// hasUpstream reports whether the current branch tracks a remote.
func (a *Adapter) hasUpstream(ctx context.Context) bool {
	return a.runQuiet(ctx, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{upstream}") == nil
}

func (a *Adapter) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = a.Repo
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		logging.GitWarn("git %s: %v: %s", strings.Join(args, " "), err, strings.TrimSpace(out.String()))
		return out.String(), fmt.Errorf("git %s: %w", args[0], err)
	}
	return out.String(), nil
}

func (a *Adapter) runQuiet(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = a.Repo
	return cmd.Run()
}
