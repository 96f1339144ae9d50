// Package verify runs the configured check pipeline inside the stage
// worktree and condenses failing output into something short enough to
// hand back to the model.
package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"patchgate/internal/clipboard"
	"patchgate/internal/events"
	"patchgate/internal/logging"
)

// maxSummaryLines bounds the condensed failure output.
const maxSummaryLines = 40

// Check is one external command in the pipeline. Success iff exit 0.
type Check struct {
	Name    string
	Command string
}

// Scanner is the structural scan run after the external checks pass.
// Implementations live outside this package; NopScanner is the default.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, dir string) error
}

// NopScanner accepts everything.
type NopScanner struct{}

func (NopScanner) Name() string { return "none" }

func (NopScanner) Scan(ctx context.Context, _ string) error { return nil }

// CheckError reports a failing pipeline step with its condensed output.
type CheckError struct {
	Name     string
	ExitCode int
	Summary  []string
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("check %q failed (exit %d)", e.Name, e.ExitCode)
}

// Runner executes the pipeline. Dir is the effective working directory;
// callers pass the stage worktree so checks see the staged edits.
type Runner struct {
	Dir     string
	Checks  []Check
	Scanner Scanner
	Events  *events.Log

	// ExtraNoise holds config-supplied regexes dropped from failure
	// output on top of the built-in noise patterns.
	ExtraNoise []string

	// CopyToClipboard puts the failure summary on the clipboard so the
	// user can paste it back to the model. Best-effort.
	CopyToClipboard bool

	extra []*regexp.Regexp
}

// Run executes every check in order, then the scanner. The first
// failure stops the pipeline and returns a CheckError.
func (r *Runner) Run(ctx context.Context) error {
	for _, raw := range r.ExtraNoise {
		p, err := regexp.Compile(raw)
		if err != nil {
			logging.VerifyWarn("ignoring extra noise pattern %q: %v", raw, err)
			continue
		}
		r.extra = append(r.extra, p)
	}

	for _, check := range r.Checks {
		if err := r.runCheck(ctx, check); err != nil {
			return err
		}
	}

	scanner := r.Scanner
	if scanner == nil {
		scanner = NopScanner{}
	}
	r.emit(events.CheckStarted, map[string]any{"name": scanner.Name()})
	if err := scanner.Scan(ctx, r.Dir); err != nil {
		r.emit(events.CheckFailed, map[string]any{"name": scanner.Name(), "error": err.Error()})
		return &CheckError{Name: scanner.Name(), ExitCode: 1, Summary: []string{err.Error()}}
	}
	r.emit(events.CheckPassed, map[string]any{"name": scanner.Name()})
	return nil
}

func (r *Runner) runCheck(ctx context.Context, check Check) error {
	argv := splitCommand(check.Command)
	if len(argv) == 0 {
		logging.VerifyWarn("check %q has an empty command, skipping", check.Name)
		return nil
	}

	r.emit(events.CheckStarted, map[string]any{"name": check.Name, "command": check.Command})
	logging.Verify("running check %q: %s", check.Name, check.Command)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.Dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err == nil {
		r.emit(events.CheckPassed, map[string]any{"name": check.Name})
		return nil
	}

	exitCode := 1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	summary := Summarize(out.String(), r.extra...)
	r.emit(events.CheckFailed, map[string]any{
		"name":  check.Name,
		"exit":  exitCode,
		"lines": len(summary),
	})
	logging.VerifyWarn("check %q failed with exit %d", check.Name, exitCode)

	if r.CopyToClipboard && len(summary) > 0 {
		clipboard.Write(strings.Join(summary, "\n"))
	}
	return &CheckError{Name: check.Name, ExitCode: exitCode, Summary: summary}
}

func (r *Runner) emit(tag events.Tag, fields map[string]any) {
	if r.Events != nil {
		r.Events.Append(tag, fields)
	}
}

// noisePatterns match build chatter and per-test ticks that carry no
// signal about what failed.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*Compiling\s`),
	regexp.MustCompile(`^\s*Downloading\s|^go: downloading\s`),
	regexp.MustCompile(`^\s*Finished\s`),
	regexp.MustCompile(`^\s*Checking\s`),
	regexp.MustCompile(`^=== RUN\s|^--- PASS:|^=== PAUSE\s|^=== CONT\s`),
	regexp.MustCompile(`^ok\s+\S+\s`),
	regexp.MustCompile(`^test .* \.\.\. ok$`),
	regexp.MustCompile(`^running \d+ tests?$`),
	regexp.MustCompile(`^\s*warning: unused\s`),
}

// Summarize drops known-noise lines and blank lines, then truncates to
// maxSummaryLines with a trailer counting what was cut.
func Summarize(output string, extra ...*regexp.Regexp) []string {
	var kept []string
	total := 0
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if isNoise(line, extra) {
			continue
		}
		total++
		if len(kept) < maxSummaryLines {
			kept = append(kept, line)
		}
	}
	if total > maxSummaryLines {
		kept = append(kept, fmt.Sprintf("... %d more lines omitted", total-maxSummaryLines))
	}
	return kept
}

func isNoise(line string, extra []*regexp.Regexp) bool {
	for _, p := range noisePatterns {
		if p.MatchString(line) {
			return true
		}
	}
	for _, p := range extra {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// splitCommand breaks a configured command string into argv, honoring
// single and double quotes so paths with spaces survive.
func splitCommand(command string) []string {
	var argv []string
	var cur strings.Builder
	var quote rune
	flush := func() {
		if cur.Len() > 0 {
			argv = append(argv, cur.String())
			cur.Reset()
		}
	}
	for _, r := range command {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ' ' || r == '\t':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return argv
}
