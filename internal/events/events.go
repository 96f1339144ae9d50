// Package events appends audit records to .patchgate/events.jsonl, one
// JSON object per line. The log is append-only and best-effort: a write
// failure is reported to the debug log and otherwise swallowed, so
// auditing can never break an apply.
package events

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"patchgate/internal/logging"
)

// Tag names the event variants. The set is closed; consumers key on it.
type Tag string

const (
	StageCreated          Tag = "stage_created"
	StageReset            Tag = "stage_reset"
	ApplyStarted          Tag = "apply_started"
	ApplySucceeded        Tag = "apply_succeeded"
	ApplyRejected         Tag = "apply_rejected"
	FileWritten           Tag = "file_written"
	FileDeleted           Tag = "file_deleted"
	CheckStarted          Tag = "check_started"
	CheckPassed           Tag = "check_passed"
	CheckFailed           Tag = "check_failed"
	PromoteStarted        Tag = "promote_started"
	PromoteSucceeded      Tag = "promote_succeeded"
	PromoteFailed         Tag = "promote_failed"
	SanitizationPerformed Tag = "sanitization_performed"
)

// Kind is the tagged payload of one event.
type Kind struct {
	Tag    Tag            `json:"tag"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Event is one line of the log.
type Event struct {
	Timestamp int64 `json:"timestamp"`
	Kind      Kind  `json:"kind"`
}

// Log appends events for one repository.
type Log struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// Open returns a log writing to <repo>/.patchgate/events.jsonl. The
// file is created lazily on first append.
func Open(repo string) *Log {
	return &Log{
		path: filepath.Join(repo, ".patchgate", "events.jsonl"),
		now:  time.Now,
	}
}

// Append writes one event. Errors never propagate; the log is advisory.
func (l *Log) Append(tag Tag, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev := Event{
		Timestamp: l.now().Unix(),
		Kind:      Kind{Tag: tag, Fields: fields},
	}
	data, err := json.Marshal(ev)
	if err != nil {
		logging.BootWarn("event %s not recorded: %v", tag, err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		logging.BootWarn("event %s not recorded: %v", tag, err)
		return
	}
	// Open per write so concurrent invocations interleave whole lines
	// instead of fighting over one handle.
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logging.BootWarn("event %s not recorded: %v", tag, err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		logging.BootWarn("event %s not recorded: %v", tag, err)
	}
}

// Read returns every event currently in the log, oldest first. Used by
// the status command; malformed lines are skipped.
func (l *Log) Read() []Event {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil
	}
	var out []Event
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out
}
