// Package promote copies touched paths from the stage worktree into the
// real workspace. Every promotion writes a backup set first; any mid-way
// failure rolls the workspace back to its pre-promotion state from that
// set.
package promote

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"patchgate/internal/events"
	"patchgate/internal/logging"
	"patchgate/internal/safety"
	"patchgate/internal/stage"
)

const deletedManifest = "_deleted.json"

// Error reports a failed promotion. RolledBack tells the caller whether
// the workspace was restored from the backup set.
type Error struct {
	Path       string
	RolledBack bool
	Err        error
}

func (e *Error) Error() string {
	state := "workspace restored from backup"
	if !e.RolledBack {
		state = "rollback incomplete, inspect the backup set"
	}
	return fmt.Sprintf("promoting %s: %v (%s)", e.Path, e.Err, state)
}

func (e *Error) Unwrap() error { return e.Err }

// Result describes a successful promotion.
type Result struct {
	BackupDir string
	Written   []string
	Deleted   []string
}

// Promoter applies a stage's touched set to the repository.
type Promoter struct {
	Repo      string
	Validator *safety.PathValidator
	Events    *events.Log
}

// Promote copies every touched path back into the workspace. Writes go
// first, deletes last. Only paths in the touched set are ever examined.
func (p *Promoter) Promote(s *stage.Stage) (*Result, error) {
	touched := s.State.Touched
	if len(touched) == 0 {
		return nil, errors.New("stage has no touched paths to promote")
	}

	// Defense in depth: every target is re-validated even though the
	// writer validated it on the way into the stage.
	for _, t := range touched {
		if stage.ShouldPreserve(t.Path) {
			return nil, &safety.PathError{Path: t.Path, Reason: "target is inside a preserved subtree"}
		}
		if p.Validator != nil {
			if err := p.Validator.Validate(t.Path); err != nil {
				return nil, err
			}
		}
	}

	p.emit(events.PromoteStarted, map[string]any{"paths": len(touched)})

	backupDir, deleted, err := p.writeBackupSet(touched)
	if err != nil {
		p.emit(events.PromoteFailed, map[string]any{"error": err.Error()})
		return nil, err
	}
	logging.Promote("backup set at %s (%d pre-existing absent)", backupDir, len(deleted))

	res := &Result{BackupDir: backupDir}
	var writes, deletes []stage.Touch
	for _, t := range touched {
		if t.Kind == stage.TouchDelete {
			deletes = append(deletes, t)
		} else {
			writes = append(writes, t)
		}
	}

	for _, t := range writes {
		src := filepath.Join(s.Worktree, filepath.FromSlash(t.Path))
		dst := filepath.Join(p.Repo, filepath.FromSlash(t.Path))
		if err := copyFile(src, dst); err != nil {
			return nil, p.fail(t.Path, err, backupDir, res)
		}
		res.Written = append(res.Written, t.Path)
		p.emit(events.FileWritten, map[string]any{"path": t.Path})
	}
	for _, t := range deletes {
		dst := filepath.Join(p.Repo, filepath.FromSlash(t.Path))
		if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, p.fail(t.Path, err, backupDir, res)
		}
		res.Deleted = append(res.Deleted, t.Path)
		p.emit(events.FileDeleted, map[string]any{"path": t.Path})
	}

	p.emit(events.PromoteSucceeded, map[string]any{
		"written": len(res.Written),
		"deleted": len(res.Deleted),
		"backup":  backupDir,
	})
	logging.Promote("promoted %d writes, %d deletes", len(res.Written), len(res.Deleted))
	return res, nil
}

// writeBackupSet copies the current content of every touched target
// into a fresh timestamped directory. Targets that do not exist yet are
// listed in _deleted.json so rollback removes them.
func (p *Promoter) writeBackupSet(touched []stage.Touch) (string, []string, error) {
	base := filepath.Join(p.Repo, stage.StateDir, "backups")
	dir := filepath.Join(base, strconv.FormatInt(time.Now().Unix(), 10))
	for i := 1; ; i++ {
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			break
		}
		dir = filepath.Join(base, fmt.Sprintf("%d-%d", time.Now().Unix(), i))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating backup set: %w", err)
	}

	var absent []string
	for _, t := range touched {
		target := filepath.Join(p.Repo, filepath.FromSlash(t.Path))
		if _, err := os.Stat(target); err != nil {
			absent = append(absent, t.Path)
			continue
		}
		if err := copyFile(target, filepath.Join(dir, filepath.FromSlash(t.Path))); err != nil {
			return "", nil, fmt.Errorf("backing up %s: %w", t.Path, err)
		}
	}

	data, err := json.MarshalIndent(absent, "", "  ")
	if err != nil {
		return "", nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, deletedManifest), data, 0o644); err != nil {
		return "", nil, fmt.Errorf("writing backup manifest: %w", err)
	}
	return dir, absent, nil
}

// fail rolls the workspace back and wraps the original error.
func (p *Promoter) fail(path string, cause error, backupDir string, res *Result) error {
	rolledBack := true
	if err := p.rollback(backupDir); err != nil {
		logging.PromoteError("rollback from %s incomplete: %v", backupDir, err)
		rolledBack = false
	}
	p.emit(events.PromoteFailed, map[string]any{
		"path":        path,
		"error":       cause.Error(),
		"rolled_back": rolledBack,
	})
	return &Error{Path: path, RolledBack: rolledBack, Err: cause}
}

// rollback restores every file in the backup set and removes files that
// did not exist before the promotion started.
func (p *Promoter) rollback(backupDir string) error {
	var firstErr error

	data, err := os.ReadFile(filepath.Join(backupDir, deletedManifest))
	if err != nil {
		return fmt.Errorf("reading backup manifest: %w", err)
	}
	var absent []string
	if err := json.Unmarshal(data, &absent); err != nil {
		return fmt.Errorf("decoding backup manifest: %w", err)
	}
	for _, rel := range absent {
		target := filepath.Join(p.Repo, filepath.FromSlash(rel))
		if err := os.Remove(target); err != nil {
			// Only a removal error for something still on disk counts;
			// a target that never materialized needs no cleanup.
			if _, statErr := os.Stat(target); statErr == nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	err = filepath.WalkDir(backupDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return walkErr
		}
		rel, err := filepath.Rel(backupDir, path)
		if err != nil || rel == deletedManifest {
			return nil
		}
		if err := copyFile(path, filepath.Join(p.Repo, rel)); err != nil && firstErr == nil {
			firstErr = err
		}
		return nil
	})
	if err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr == nil {
		logging.Promote("workspace restored from %s", backupDir)
	}
	return firstErr
}

func (p *Promoter) emit(tag events.Tag, fields map[string]any) {
	if p.Events != nil {
		p.Events.Append(tag, fields)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
