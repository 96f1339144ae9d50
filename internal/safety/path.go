// Package safety provides the path and content validators that gate
// every delivery before it touches the stage. Philosophy follows the
// rest of the pipeline: trust nothing the model produced, verify
// everything, and fail with a reason the user can act on.
package safety

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// PathError reports a rejected path.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("path rejected: %q: %s", e.Path, e.Reason)
}

// ProtectedFileError reports an attempt to overwrite a file whose
// contents must flow through a dedicated command surface instead.
type ProtectedFileError struct {
	Path    string
	Surface string // The command surface the user should use instead.
}

func (e *ProtectedFileError) Error() string {
	return fmt.Sprintf("%q is protected and cannot be overwritten by a delivery; use %s instead", e.Path, e.Surface)
}

// blockedDirs are directory components that may never appear in a
// delivery path. Matching is case-insensitive.
var blockedDirs = map[string]bool{
	".git":         true,
	".ssh":         true,
	".patchgate":   true,
	"node_modules": true,
	"target":       true,
	"dist":         true,
	"build":        true,
	"vendor":       true,
	"__pycache__":  true,
}

// blockedFilenames are filenames that may never be written, regardless
// of directory. Matching is case-insensitive.
var blockedFilenames = map[string]bool{
	".env":              true,
	".env.local":        true,
	".env.production":   true,
	"id_rsa":            true,
	"id_ed25519":        true,
	"id_ecdsa":          true,
	"cargo.lock":        true,
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"go.sum":            true,
}

// privateKeyPattern catches key material filenames beyond the explicit list.
var privateKeyPattern = regexp.MustCompile(`(?i)(\.pem|\.key|_rsa|_dsa|_ed25519|_ecdsa)$`)

// hiddenAllowList is the set of dotfiles a delivery may legitimately
// create or update.
var hiddenAllowList = map[string]bool{
	".gitignore":     true,
	".gitattributes": true,
	".editorconfig":  true,
	".dockerignore":  true,
	".prettierrc":    true,
	".eslintrc":      true,
	".eslintrc.json": true,
	".nvmrc":         true,
	".golangci.yml":  true,
	".golangci.yaml": true,
}

// PathValidator rejects unsafe or protected delivery paths.
type PathValidator struct {
	// ExtraProtected lists additional relative paths from config that
	// behave like the built-in protected files.
	ExtraProtected []string
}

// NewPathValidator creates a validator with no extra protected paths.
func NewPathValidator() *PathValidator {
	return &PathValidator{}
}

// Validate checks a single delivery path. The path must be relative,
// forward-slashed, and free of traversal or protected components.
func (v *PathValidator) Validate(p string) error {
	if p == "" {
		return &PathError{Path: p, Reason: "empty path"}
	}
	if strings.ContainsRune(p, 0) {
		return &PathError{Path: p, Reason: "contains null byte"}
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return &PathError{Path: p, Reason: "absolute paths are not allowed"}
	}
	// Windows drive letter (C:...) or UNC (\\host\share).
	if len(p) >= 2 && p[1] == ':' {
		return &PathError{Path: p, Reason: "absolute paths are not allowed"}
	}
	if strings.HasPrefix(p, `\\`) {
		return &PathError{Path: p, Reason: "UNC paths are not allowed"}
	}

	normalized := strings.ReplaceAll(p, "\\", "/")
	for _, component := range strings.Split(normalized, "/") {
		if component == ".." {
			return &PathError{Path: p, Reason: "path traversal (..) is not allowed"}
		}
		if component == "." || component == "" {
			return &PathError{Path: p, Reason: "path must be normalized (no . or empty components)"}
		}
		if blockedDirs[strings.ToLower(component)] {
			return &PathError{Path: p, Reason: fmt.Sprintf("writes under %q are blocked", component)}
		}
	}

	base := strings.ToLower(path.Base(normalized))
	if blockedFilenames[base] {
		return &PathError{Path: p, Reason: fmt.Sprintf("%q is a protected filename", path.Base(normalized))}
	}
	if privateKeyPattern.MatchString(base) {
		return &PathError{Path: p, Reason: "looks like private key material"}
	}
	if strings.HasPrefix(base, ".") && !hiddenAllowList[base] {
		return &PathError{Path: p, Reason: fmt.Sprintf("hidden file %q is not on the allow-list", path.Base(normalized))}
	}

	for _, protected := range v.ExtraProtected {
		if strings.EqualFold(normalized, strings.ReplaceAll(protected, "\\", "/")) {
			return &ProtectedFileError{Path: p, Surface: "the patchgate configuration commands"}
		}
	}

	return nil
}

// NormalizePath converts a delivery path to the canonical relative
// forward-slash form used in state files and event records.
func NormalizePath(p string) string {
	return strings.TrimPrefix(path.Clean(strings.ReplaceAll(p, "\\", "/")), "./")
}
