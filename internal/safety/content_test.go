package safety

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoadmap struct{}

func (fakeRoadmap) IsStorePath(relPath string) bool { return relPath == ".patchgate-roadmap.json" }

func (fakeRoadmap) CommandSurface() string { return "`patchgate roadmap` commands" }

func TestContentValidatorRejectsEmpty(t *testing.T) {
	v := NewContentValidator(nil)

	for _, content := range []string{"", "   ", "\n\n\t\n"} {
		err := v.Validate("src/a.go", content)
		require.Error(t, err)
		var contentErr *ContentError
		require.True(t, errors.As(err, &contentErr))
		assert.Contains(t, contentErr.Reasons[0], "empty")
	}
}

func TestContentValidatorRejectsTruncationIndicators(t *testing.T) {
	v := NewContentValidator(nil)

	tests := []struct {
		name    string
		content string
	}{
		{"line comment ellipsis", "fn main() {\n// ...\n}\n"},
		{"block comment ellipsis", "fn main() {\n/* ... */\n}\n"},
		{"hash ellipsis", "def f():\n# ...\n"},
		{"rest of file", "fn main() {}\n// rest of the file unchanged\n"},
		{"remaining code", "fn main() {}\n// remaining code omitted\n"},
		{"unicode ellipsis", "fn main() {\n    …\n}\n"},
		{"markdown fence in code", "fn main() {}\n```\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate("src/lib.rs", tt.content)
			require.Error(t, err, "content should be rejected: %q", tt.content)
		})
	}
}

func TestContentValidatorIgnoreTag(t *testing.T) {
	v := NewContentValidator(nil)

	err := v.Validate("src/lib.rs", "fn main() {\n// ... patchgate:ignore\n}\n")
	assert.NoError(t, err)
}

func TestContentValidatorAllowsFencesInMarkdown(t *testing.T) {
	v := NewContentValidator(nil)

	err := v.Validate("docs/guide.md", "# Title\n\n```go\nfunc main() {}\n```\n")
	assert.NoError(t, err)
}

func TestContentValidatorSyntaxCheck(t *testing.T) {
	v := NewContentValidator(nil)

	assert.NoError(t, v.Validate("pkg/a.go", "package a\n\nfunc A() int { return 1 }\n"))

	err := v.Validate("pkg/a.go", "package a\n\nfunc A() int { return \n")
	require.Error(t, err)
	var contentErr *ContentError
	require.True(t, errors.As(err, &contentErr))
	assert.Contains(t, contentErr.Reasons[0], "syntax error")

	assert.NoError(t, v.Validate("cfg/a.json", "{\"a\": 1}\n"))
	assert.Error(t, v.Validate("cfg/a.json", "{\"a\": }\n"))

	assert.NoError(t, v.Validate("cfg/a.yaml", "a: 1\nb:\n  - x\n"))
	assert.Error(t, v.Validate("cfg/a.yaml", "a: [1, 2\n"))
}

func TestContentValidatorProtectedRoadmapFile(t *testing.T) {
	v := NewContentValidator(fakeRoadmap{})

	err := v.Validate(".patchgate-roadmap.json", "{\"tasks\": []}")
	require.Error(t, err)
	var protErr *ProtectedFileError
	require.True(t, errors.As(err, &protErr))
	assert.Contains(t, protErr.Error(), "roadmap")
}
