package diffview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeCountsLineChanges(t *testing.T) {
	old := "a\nb\nc\n"
	new := "a\nB\nc\nd\n"

	s := Summarize("src/x.go", old, new)
	assert.Equal(t, 2, s.Added)
	assert.Equal(t, 1, s.Removed)
	assert.False(t, s.IsNew)
	assert.False(t, s.IsDelete)
	assert.Contains(t, s.Preview, "-b")
	assert.Contains(t, s.Preview, "+B")
}

func TestSummarizeNewAndDeletedFiles(t *testing.T) {
	added := Summarize("new.go", "", "one\ntwo\n")
	assert.True(t, added.IsNew)
	assert.Equal(t, 2, added.Added)

	removed := Summarize("gone.go", "one\n", "")
	assert.True(t, removed.IsDelete)
	assert.Equal(t, 1, removed.Removed)
}

func TestRender(t *testing.T) {
	out := Render([]*FileSummary{
		{Path: "a.go", Added: 3, Removed: 1, Preview: []string{"+x"}},
		{Path: "b.go", IsNew: true, Added: 5},
		{Path: "c.go", IsDelete: true, Removed: 2},
	})
	assert.Contains(t, out, "M a.go (+3 -1)")
	assert.Contains(t, out, "A b.go (+5)")
	assert.Contains(t, out, "D c.go (-2)")
	assert.Contains(t, out, "    +x")
}
