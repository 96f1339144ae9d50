// Package stage owns the shadow worktree: a full copy of the workspace
// where deliveries are applied and verified before anything touches the
// real tree. The stage lives under .patchgate/stage/ and persists across
// invocations until promoted or reset.
package stage

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"patchgate/internal/logging"
)

const (
	// StateDir is the tool's state directory inside the repository.
	StateDir    = ".patchgate"
	stageSubdir = "stage"
	worktreeDir = "worktree"
	stateName   = "state.json"
)

// TouchKind records what happened to a path inside the stage.
type TouchKind string

const (
	TouchWrite  TouchKind = "Write"
	TouchDelete TouchKind = "Delete"
)

// Touch is one entry in the stage's touched set. Paths are relative and
// forward-slashed.
type Touch struct {
	Path string    `json:"path"`
	Kind TouchKind `json:"kind"`
}

// State is the persisted stage state. Unknown fields in an on-disk
// state.json are tolerated on read.
type State struct {
	ID        string  `json:"id"`
	CreatedAt int64   `json:"created_at"`
	Touched   []Touch `json:"touched"`
}

// Stage is an open shadow worktree.
type Stage struct {
	Root     string // <repo>/.patchgate/stage
	Worktree string // <repo>/.patchgate/stage/worktree
	State    State

	repo string
}

// IOError wraps a filesystem failure inside the stage.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("stage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// preservedNames are directory names the stage never mirrors and the
// promoter never writes into, at any depth. ShouldPreserve is the
// single authority; both sides consult it.
var preservedNames = map[string]bool{
	StateDir:       true,
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"target":       true,
	"dist":         true,
	"build":        true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
}

// ShouldPreserve reports whether a repo-relative path belongs to a
// subtree that must not be mirrored into the stage or promoted back.
// Preserved names match at any depth, so frontend/node_modules is
// skipped the same as a top-level node_modules.
func ShouldPreserve(rel string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if preservedNames[seg] {
			return true
		}
	}
	return false
}

func stageRoot(repo string) string {
	return filepath.Join(repo, StateDir, stageSubdir)
}

// Exists reports whether a live stage is present for the repository.
func Exists(repo string) bool {
	info, err := os.Stat(filepath.Join(stageRoot(repo), worktreeDir))
	return err == nil && info.IsDir()
}

// OpenOrCreate returns the live stage, creating one from a fresh copy of
// the workspace when none exists. The second return reports whether a
// new stage was created.
func OpenOrCreate(repo string) (*Stage, bool, error) {
	if Exists(repo) {
		s, err := Open(repo)
		return s, false, err
	}
	s, err := create(repo)
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// Open loads an existing stage. It fails if no worktree is on disk.
func Open(repo string) (*Stage, error) {
	root := stageRoot(repo)
	s := &Stage{
		Root:     root,
		Worktree: filepath.Join(root, worktreeDir),
		repo:     repo,
	}
	data, err := os.ReadFile(filepath.Join(root, stateName))
	if err != nil {
		return nil, &IOError{Op: "read", Path: stateName, Err: err}
	}
	if err := json.Unmarshal(data, &s.State); err != nil {
		return nil, &IOError{Op: "decode", Path: stateName, Err: err}
	}
	logging.Stage("opened stage %s (%d touched)", s.State.ID, len(s.State.Touched))
	return s, nil
}

// create copies the workspace into a fresh worktree and writes a new
// state file. A partial copy is removed before the error is returned so
// the stage either exists fully or not at all.
func create(repo string) (*Stage, error) {
	root := stageRoot(repo)
	s := &Stage{
		Root:     root,
		Worktree: filepath.Join(root, worktreeDir),
		repo:     repo,
		State: State{
			ID:        uuid.NewString(),
			CreatedAt: time.Now().Unix(),
		},
	}

	if err := os.MkdirAll(s.Worktree, 0o755); err != nil {
		return nil, &IOError{Op: "mkdir", Path: s.Worktree, Err: err}
	}
	if err := copyTree(repo, s.Worktree); err != nil {
		os.RemoveAll(root)
		return nil, err
	}
	if err := s.save(); err != nil {
		os.RemoveAll(root)
		return nil, err
	}
	logging.Stage("created stage %s from %s", s.State.ID, repo)
	return s, nil
}

// RecordTouch upserts a path into the touched set. Latest kind wins.
func (s *Stage) RecordTouch(path string, kind TouchKind) error {
	path = filepath.ToSlash(path)
	for i, t := range s.State.Touched {
		if t.Path == path {
			s.State.Touched[i].Kind = kind
			return s.save()
		}
	}
	s.State.Touched = append(s.State.Touched, Touch{Path: path, Kind: kind})
	return s.save()
}

// ClearTouched empties the touched set, keeping the worktree. Used after
// a successful promotion when the stage is configured to persist.
func (s *Stage) ClearTouched() error {
	s.State.Touched = nil
	return s.save()
}

// Age returns how long ago the stage was created.
func (s *Stage) Age() time.Duration {
	return time.Since(time.Unix(s.State.CreatedAt, 0))
}

// save writes state.json via a temp file and rename so a crash never
// leaves a half-written state.
func (s *Stage) save() error {
	data, err := json.MarshalIndent(s.State, "", "  ")
	if err != nil {
		return &IOError{Op: "encode", Path: stateName, Err: err}
	}
	tmp := filepath.Join(s.Root, stateName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &IOError{Op: "write", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, filepath.Join(s.Root, stateName)); err != nil {
		return &IOError{Op: "rename", Path: stateName, Err: err}
	}
	return nil
}

// Reset removes the stage directory recursively. Removing a stage that
// does not exist is not an error.
func Reset(repo string) error {
	root := stageRoot(repo)
	if err := os.RemoveAll(root); err != nil {
		return &IOError{Op: "remove", Path: root, Err: err}
	}
	logging.Stage("stage reset at %s", root)
	return nil
}

// EffectiveCwd is the directory downstream tools run in: the stage
// worktree when one exists, else the repo root. Callers never need to
// know whether a stage is live.
func EffectiveCwd(repo string) string {
	if Exists(repo) {
		return filepath.Join(stageRoot(repo), worktreeDir)
	}
	return repo
}

// copyTree mirrors src into dst, skipping preserved subtrees and
// anything that is not a regular file or directory.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil || rel == "." {
			return nil
		}
		if ShouldPreserve(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, rel)
		if d.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return &IOError{Op: "mkdir", Path: rel, Err: err}
			}
			return nil
		}
		if !d.Type().IsRegular() {
			logging.StageDebug("skipping non-regular file %s", rel)
			return nil
		}
		if err := copyFile(path, target); err != nil {
			return &IOError{Op: "copy", Path: rel, Err: err}
		}
		return nil
	})
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
