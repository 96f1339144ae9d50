// Package delivery parses and models the textual payload a model
// produces for one apply: a manifest of path operations plus whole-file
// bodies and localized patch documents. The format is semi-structured
// by nature, so parsing is strict and line-anchored with explicit
// warnings instead of silent recovery.
package delivery

import (
	"fmt"
	"strings"

	"patchgate/internal/patch"
)

// Operation is the manifest verb for a path.
type Operation int

const (
	OpUpdate Operation = iota // Default when no marker is given
	OpNew
	OpDelete
)

func (op Operation) String() string {
	switch op {
	case OpNew:
		return "new"
	case OpDelete:
		return "delete"
	default:
		return "update"
	}
}

// ManifestEntry is one ordered (path, operation) pair.
type ManifestEntry struct {
	Path string
	Op   Operation
}

// FileBody is a whole-file replacement body.
type FileBody struct {
	Content   string
	LineCount int
}

// Delivery is the parsed, composed payload of one apply invocation.
type Delivery struct {
	Manifest []ManifestEntry
	Files    map[string]FileBody
	Patches  map[string]*patch.Document

	// Warnings collected during parsing (skipped blocks, ignored
	// attributes). Warnings never fail the parse.
	Warnings []string
}

// ParseError reports an unusable delivery text.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "delivery parse error: " + e.Reason
}

// Validate enforces the structural invariants: paths are unique and
// every non-delete manifest entry carries exactly one body or a
// non-empty patch list.
func (d *Delivery) Validate() error {
	if len(d.Manifest) == 0 {
		return &ParseError{Reason: "delivery has no manifest entries"}
	}

	seen := make(map[string]bool, len(d.Manifest))
	for _, entry := range d.Manifest {
		if seen[entry.Path] {
			return &ParseError{Reason: fmt.Sprintf("duplicate manifest entry for %q", entry.Path)}
		}
		seen[entry.Path] = true

		if entry.Op == OpDelete {
			continue
		}

		_, hasBody := d.Files[entry.Path]
		doc, hasPatch := d.Patches[entry.Path]
		switch {
		case hasBody && hasPatch:
			return &ParseError{Reason: fmt.Sprintf("%q has both a file body and a patch; exactly one is required", entry.Path)}
		case !hasBody && !hasPatch:
			return &ParseError{Reason: fmt.Sprintf("%q is listed as %s but has no file body or patch", entry.Path, entry.Op)}
		case hasPatch && len(doc.Instructions) == 0:
			return &ParseError{Reason: fmt.Sprintf("%q has an empty patch document", entry.Path)}
		}
	}

	// Bodies or patches for paths missing from the manifest are a
	// protocol slip by the model; flag them.
	for path := range d.Files {
		if !seen[path] {
			return &ParseError{Reason: fmt.Sprintf("file block for %q has no manifest entry", path)}
		}
	}
	for path := range d.Patches {
		if !seen[path] {
			return &ParseError{Reason: fmt.Sprintf("patch block for %q has no manifest entry", path)}
		}
	}

	return nil
}

// Summary renders a one-line description for logs and events.
func (d *Delivery) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d manifest entries", len(d.Manifest))
	if len(d.Files) > 0 {
		fmt.Fprintf(&sb, ", %d file bodies", len(d.Files))
	}
	if len(d.Patches) > 0 {
		fmt.Fprintf(&sb, ", %d patch documents", len(d.Patches))
	}
	return sb.String()
}
