package safety

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathValidatorRejectsUnsafePaths(t *testing.T) {
	v := NewPathValidator()

	tests := []struct {
		name string
		path string
	}{
		{"traversal", "../etc/passwd"},
		{"nested traversal", "src/../../etc/passwd"},
		{"absolute unix", "/etc/passwd"},
		{"absolute windows", `C:\Windows\system32\drivers`},
		{"unc", `\\server\share\x`},
		{"null byte", "src/a\x00b.go"},
		{"git dir", ".git/config"},
		{"git dir nested", "src/.git/hooks/pre-commit"},
		{"ssh dir", ".ssh/authorized_keys"},
		{"node_modules", "node_modules/left-pad/index.js"},
		{"tool state dir", ".patchgate/state.json"},
		{"env file", ".env"},
		{"env file cased", "config/.ENV"},
		{"private key", "deploy/id_rsa"},
		{"pem file", "certs/server.pem"},
		{"lockfile", "Cargo.lock"},
		{"hidden not allowed", ".secret-notes"},
		{"empty", ""},
		{"dot component", "src/./main.go"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.path)
			require.Error(t, err)
			var pathErr *PathError
			assert.True(t, errors.As(err, &pathErr), "expected *PathError, got %T", err)
		})
	}
}

func TestPathValidatorAcceptsNormalPaths(t *testing.T) {
	v := NewPathValidator()

	for _, p := range []string{
		"src/main.go",
		"README.md",
		"internal/deep/nested/file.rs",
		".gitignore",
		".editorconfig",
		"docs/guide.md",
	} {
		assert.NoError(t, v.Validate(p), "path %q should be accepted", p)
	}
}

func TestPathValidatorExtraProtected(t *testing.T) {
	v := NewPathValidator()
	v.ExtraProtected = []string{"ROADMAP.md"}

	err := v.Validate("ROADMAP.md")
	require.Error(t, err)
	var protErr *ProtectedFileError
	require.True(t, errors.As(err, &protErr))
	assert.Contains(t, protErr.Error(), "protected")
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "src/main.go", NormalizePath(`src\main.go`))
	assert.Equal(t, "src/main.go", NormalizePath("./src/main.go"))
}
