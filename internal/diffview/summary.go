// Package diffview renders the dry-run summary: per touched path, how
// many lines the promotion would add and remove, with a short preview
// of the changed regions.
package diffview

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// previewLines caps how many changed lines are shown per file.
const previewLines = 8

// FileSummary is the dry-run view of one touched path.
type FileSummary struct {
	Path     string
	IsNew    bool
	IsDelete bool
	Added    int
	Removed  int
	Preview  []string
}

var dmp = func() *diffmatchpatch.DiffMatchPatch {
	d := diffmatchpatch.New()
	d.DiffTimeout = 0
	return d
}()

// Summarize compares the workspace content (old) against the staged
// content (new) for one path.
func Summarize(path, oldContent, newContent string) *FileSummary {
	s := &FileSummary{
		Path:     path,
		IsNew:    oldContent == "",
		IsDelete: newContent == "",
	}

	// Line-level reduction avoids newline boundary artifacts.
	a, b, lineArray := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	for _, d := range diffs {
		lines := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			s.Added += len(lines)
			s.addPreview("+", lines)
		case diffmatchpatch.DiffDelete:
			s.Removed += len(lines)
			s.addPreview("-", lines)
		}
	}
	return s
}

func (s *FileSummary) addPreview(sign string, lines []string) {
	for _, line := range lines {
		if len(s.Preview) >= previewLines {
			return
		}
		s.Preview = append(s.Preview, sign+line)
	}
}

// Render formats a set of summaries for the terminal.
func Render(summaries []*FileSummary) string {
	var b strings.Builder
	for _, s := range summaries {
		switch {
		case s.IsDelete:
			fmt.Fprintf(&b, "D %s (-%d)\n", s.Path, s.Removed)
		case s.IsNew:
			fmt.Fprintf(&b, "A %s (+%d)\n", s.Path, s.Added)
		default:
			fmt.Fprintf(&b, "M %s (+%d -%d)\n", s.Path, s.Added, s.Removed)
		}
		for _, line := range s.Preview {
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}
	return b.String()
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
