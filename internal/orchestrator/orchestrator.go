// Package orchestrator ties the pipeline together: parse, validate,
// stage, write, verify, promote, log. It owns outcome classification
// and the advisory messages shown after an apply.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"patchgate/internal/clipboard"
	"patchgate/internal/config"
	"patchgate/internal/delivery"
	"patchgate/internal/diffview"
	"patchgate/internal/events"
	"patchgate/internal/gitops"
	"patchgate/internal/logging"
	"patchgate/internal/promote"
	"patchgate/internal/safety"
	"patchgate/internal/stage"
	"patchgate/internal/verify"
)

// InputSource yields the raw delivery text. Adapters exist for the
// clipboard, stdin, and files.
type InputSource interface {
	Name() string
	Read() (string, error)
}

// ClipboardSource reads the delivery from the system clipboard.
type ClipboardSource struct{}

func (ClipboardSource) Name() string { return "clipboard" }
func (ClipboardSource) Read() (string, error) {
	return clipboard.Read()
}

// StdinSource reads the delivery from standard input.
type StdinSource struct{}

func (StdinSource) Name() string { return "stdin" }
func (StdinSource) Read() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	return string(data), err
}

// FileSource reads the delivery from a file.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return s.Path }
func (s FileSource) Read() (string, error) {
	data, err := os.ReadFile(s.Path)
	return string(data), err
}

// Options are the per-invocation flags.
type Options struct {
	DryRun   bool
	Force    bool
	NoCommit bool
	NoPush   bool
}

// Progress receives step updates; the CLI backs it with the HUD.
type Progress interface {
	SetStep(step string)
	Warn(msg string)
}

// Result is everything the CLI needs to report one apply.
type Result struct {
	Outcome     Outcome
	Err         error
	Written     []string
	Deleted     []string
	DiffSummary string
	Advisories  []string
}

// Orchestrator runs applies against one repository.
type Orchestrator struct {
	Repo     string
	Config   *config.Config
	Events   *events.Log
	Scanner  verify.Scanner
	Progress Progress
}

// New builds an orchestrator with validators wired from config.
func New(repo string, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		Repo:   repo,
		Config: cfg,
		Events: events.Open(repo),
	}
}

// Apply runs the full pipeline for one delivery.
func (o *Orchestrator) Apply(ctx context.Context, src InputSource, opts Options) *Result {
	o.step("reading input")
	text, err := src.Read()
	if err != nil {
		return o.fail(GenericError, fmt.Errorf("reading %s: %w", src.Name(), err))
	}
	o.Events.Append(events.ApplyStarted, map[string]any{"source": src.Name(), "bytes": len(text)})

	o.step("parsing delivery")
	d, err := delivery.Parse(text)
	if err == nil {
		err = d.Validate()
	}
	if err != nil {
		return o.reject(err)
	}
	if len(d.Warnings) > 0 {
		o.Events.Append(events.SanitizationPerformed, map[string]any{"warnings": d.Warnings})
	}

	o.step("validating paths and content")
	if err := o.validate(d); err != nil {
		return o.reject(err)
	}

	o.step("opening stage")
	s, created, err := stage.OpenOrCreate(o.Repo)
	if err != nil {
		return o.fail(GenericError, err)
	}
	if created {
		o.Events.Append(events.StageCreated, map[string]any{"id": s.State.ID})
	}

	o.step("writing to stage")
	res, err := stage.Apply(s, d)
	if err != nil {
		o.Events.Append(events.ApplyRejected, map[string]any{"reason": err.Error()})
		return o.fail(classify(err), err)
	}

	result := &Result{Written: res.Written, Deleted: res.Deleted}
	o.advise(result, s)

	if opts.DryRun {
		o.step("computing diff summary")
		result.DiffSummary = o.diffSummary(s)
		result.Outcome = Success
		return result
	}

	return o.verifyAndPromote(ctx, s, opts, result)
}

// PromoteStage runs verification and promotion against a stage that was
// built by earlier applies. With DryRun it only renders the pending
// diff.
func (o *Orchestrator) PromoteStage(ctx context.Context, opts Options) *Result {
	s, err := stage.Open(o.Repo)
	if err != nil {
		return o.fail(GenericError, fmt.Errorf("no live stage: %w", err))
	}
	result := &Result{}
	if opts.DryRun {
		result.DiffSummary = o.diffSummary(s)
		result.Outcome = Success
		return result
	}
	return o.verifyAndPromote(ctx, s, opts, result)
}

func (o *Orchestrator) verifyAndPromote(ctx context.Context, s *stage.Stage, opts Options, result *Result) *Result {
	o.step("verifying")
	runner := &verify.Runner{
		Dir:             stage.EffectiveCwd(o.Repo),
		Checks:          toChecks(o.Config.Verify.Checks),
		ExtraNoise:      o.Config.Verify.ExtraNoise,
		Scanner:         o.Scanner,
		Events:          o.Events,
		CopyToClipboard: true,
	}
	if err := runner.Run(ctx); err != nil {
		result.Outcome = CheckFailed
		result.Err = err
		return result
	}

	o.step("promoting")
	p := &promote.Promoter{Repo: o.Repo, Validator: safety.NewPathValidator(), Events: o.Events}
	promoted, err := p.Promote(s)
	if err != nil {
		result.Outcome = classify(err)
		if result.Outcome == GenericError {
			result.Outcome = PromoteFailure
		}
		result.Err = err
		return result
	}
	result.Written = promoted.Written
	result.Deleted = promoted.Deleted

	o.Events.Append(events.ApplySucceeded, map[string]any{
		"files_written": len(promoted.Written),
		"files_deleted": len(promoted.Deleted),
	})

	o.step("finishing")
	o.finishStage(s, result)
	o.runGit(ctx, opts, len(promoted.Written)+len(promoted.Deleted), result)

	result.Outcome = Success
	return result
}

// Abort removes the live stage and records the reset.
func (o *Orchestrator) Abort() error {
	var id string
	if s, err := stage.Open(o.Repo); err == nil {
		id = s.State.ID
	}
	if err := stage.Reset(o.Repo); err != nil {
		return err
	}
	o.Events.Append(events.StageReset, map[string]any{"id": id})
	return nil
}

// validate runs path and content validation over the whole delivery and
// returns the first error of the dominant class.
func (o *Orchestrator) validate(d *delivery.Delivery) error {
	pathV := safety.NewPathValidator()
	roadmap := safety.DefaultRoadmapStore()
	roadmap.Paths = append(roadmap.Paths, o.Config.Safety.ProtectedPaths...)
	contentV := safety.NewContentValidator(roadmap)

	var safetyErrs, inputErrs []error
	for _, entry := range d.Manifest {
		if err := pathV.Validate(entry.Path); err != nil {
			safetyErrs = append(safetyErrs, err)
		}
	}
	for path, body := range d.Files {
		if err := contentV.Validate(path, body.Content); err != nil {
			if classify(err) == SafetyViolation {
				safetyErrs = append(safetyErrs, err)
			} else {
				inputErrs = append(inputErrs, err)
			}
		}
	}

	switch {
	case len(safetyErrs) > 0 && len(safetyErrs) >= len(inputErrs):
		return safetyErrs[0]
	case len(inputErrs) > 0:
		return inputErrs[0]
	case len(safetyErrs) > 0:
		return safetyErrs[0]
	}
	return nil
}

// advise attaches warnings computed from stage state.
func (o *Orchestrator) advise(result *Result, s *stage.Stage) {
	if n := len(s.State.Touched); n > o.Config.AdvisoryThreshold {
		msg := fmt.Sprintf("high edit volume: %d paths touched (threshold %d); consider splitting the delivery",
			n, o.Config.AdvisoryThreshold)
		result.Advisories = append(result.Advisories, msg)
		o.warn(msg)
	}
}

// diffSummary renders stage-vs-workspace for every touched path.
func (o *Orchestrator) diffSummary(s *stage.Stage) string {
	var summaries []*diffview.FileSummary
	for _, t := range s.State.Touched {
		staged := readOrEmpty(filepath.Join(s.Worktree, filepath.FromSlash(t.Path)))
		real := readOrEmpty(filepath.Join(o.Repo, filepath.FromSlash(t.Path)))
		if t.Kind == stage.TouchDelete {
			staged = ""
		}
		summaries = append(summaries, diffview.Summarize(t.Path, real, staged))
	}
	return diffview.Render(summaries)
}

// finishStage clears or removes the stage after a successful promotion.
func (o *Orchestrator) finishStage(s *stage.Stage, result *Result) {
	if o.Config.Promote.KeepStage {
		if err := s.ClearTouched(); err != nil {
			o.warnResult(result, fmt.Sprintf("could not clear stage state: %v", err))
		}
		return
	}
	if err := stage.Reset(o.Repo); err != nil {
		o.warnResult(result, fmt.Sprintf("could not remove stage: %v", err))
		return
	}
	o.Events.Append(events.StageReset, map[string]any{"id": s.State.ID})
}

// runGit invokes the adapter when configured. A git failure after a
// successful promotion downgrades to an advisory, never a failed apply.
func (o *Orchestrator) runGit(ctx context.Context, opts Options, fileCount int, result *Result) {
	if !o.Config.Git.AutoCommit || opts.NoCommit {
		return
	}
	adapter := &gitops.Adapter{Repo: o.Repo}
	if !adapter.IsRepo(ctx) {
		logging.Git("not a git repository, skipping commit")
		return
	}
	push := o.Config.Git.AutoPush && !opts.NoPush
	if _, err := adapter.CommitAndPush(ctx, o.Config.CommitMessage(fileCount), push); err != nil {
		o.warnResult(result, fmt.Sprintf("promotion succeeded but git failed: %v", err))
	}
}

func (o *Orchestrator) reject(err error) *Result {
	o.Events.Append(events.ApplyRejected, map[string]any{"reason": err.Error()})
	out := classify(err)
	if out != SafetyViolation {
		out = InvalidInput
	}
	return o.fail(out, err)
}

func (o *Orchestrator) fail(out Outcome, err error) *Result {
	logging.BootWarn("apply failed: %s: %v", out, err)
	return &Result{Outcome: out, Err: err}
}

func (o *Orchestrator) step(name string) {
	if o.Progress != nil {
		o.Progress.SetStep(name)
	}
	logging.Boot("step: %s", name)
}

func (o *Orchestrator) warn(msg string) {
	if o.Progress != nil {
		o.Progress.Warn(msg)
	}
}

func (o *Orchestrator) warnResult(result *Result, msg string) {
	result.Advisories = append(result.Advisories, msg)
	o.warn(msg)
	logging.PromoteWarn("%s", msg)
}

func toChecks(cc []config.CheckCommand) []verify.Check {
	out := make([]verify.Check, 0, len(cc))
	for _, c := range cc {
		out = append(out, verify.Check{Name: c.Name, Command: c.Command})
	}
	return out
}

func readOrEmpty(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
