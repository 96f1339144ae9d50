package stage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"patchgate/internal/delivery"
	"patchgate/internal/logging"
	"patchgate/internal/patch"
)

// EscapeError reports a path that resolves outside the stage worktree,
// typically via a symlinked ancestor.
type EscapeError struct {
	Path string
}

func (e *EscapeError) Error() string {
	return fmt.Sprintf("path %q resolves outside the stage worktree", e.Path)
}

// WriteResult reports what Apply materialized in the stage.
type WriteResult struct {
	Written []string
	Deleted []string
}

// Apply materializes every manifest entry inside the stage worktree, in
// manifest order. File bodies are written verbatim; patch documents run
// through the patch engine against the staged copy of the file. The
// real workspace is never touched.
func Apply(s *Stage, d *delivery.Delivery) (*WriteResult, error) {
	res := &WriteResult{}
	for _, entry := range d.Manifest {
		switch entry.Op {
		case delivery.OpDelete:
			if err := s.deleteFile(entry.Path); err != nil {
				return res, err
			}
			res.Deleted = append(res.Deleted, entry.Path)

		default:
			if err := s.writeFile(entry.Path, d); err != nil {
				return res, err
			}
			res.Written = append(res.Written, entry.Path)
		}
	}
	return res, nil
}

func (s *Stage) writeFile(path string, d *delivery.Delivery) error {
	target, err := s.resolve(path)
	if err != nil {
		return err
	}

	var content string
	if body, ok := d.Files[path]; ok {
		content = body.Content
	} else {
		doc := d.Patches[path]
		current, err := os.ReadFile(target)
		if err != nil {
			return &IOError{Op: "read", Path: path, Err: err}
		}
		content, err = patch.Apply(doc, string(current))
		if err != nil {
			return fmt.Errorf("patching %s: %w", path, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: path, Err: err}
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	logging.Stage("wrote %s (%d bytes)", path, len(content))
	return s.RecordTouch(path, TouchWrite)
}

// deleteFile unlinks a staged file. A missing target is fine; the
// delete still lands in the touched set so promotion removes the real
// file.
func (s *Stage) deleteFile(path string) error {
	target, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &IOError{Op: "delete", Path: path, Err: err}
	}
	logging.Stage("deleted %s", path)
	return s.RecordTouch(path, TouchDelete)
}

// resolve joins a relative path onto the worktree root and verifies the
// result stays inside it after following symlinks in the nearest
// existing ancestor.
func (s *Stage) resolve(path string) (string, error) {
	target := filepath.Join(s.Worktree, filepath.FromSlash(path))

	root, err := filepath.EvalSymlinks(s.Worktree)
	if err != nil {
		return "", &IOError{Op: "resolve", Path: path, Err: err}
	}

	// Follow the deepest ancestor that exists on disk; anything below
	// it will be created fresh and cannot redirect the write.
	probe := target
	for {
		if _, err := os.Lstat(probe); err == nil {
			break
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			break
		}
		probe = parent
	}
	resolved, err := filepath.EvalSymlinks(probe)
	if err != nil {
		return "", &IOError{Op: "resolve", Path: path, Err: err}
	}
	if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		logging.StageError("rejected %s: resolves to %s outside %s", path, resolved, root)
		return "", &EscapeError{Path: path}
	}
	return target, nil
}
