package patch

import (
	"strings"

	"patchgate/internal/hash"
	"patchgate/internal/logging"
)

// minProbeLen is the shortest search-text prefix worth reporting in a
// zero-match diagnostic.
const minProbeLen = 20

// Apply runs every instruction of the document against content, in
// document order, and returns the patched content. The base hash is
// checked once, against content as given, never against intermediate
// states. The result uses the line-ending convention detected in the
// original content.
func Apply(doc *Document, content string) (string, error) {
	if doc.BaseSHA256 != "" {
		actual := hash.Fingerprint(content)
		if actual != doc.BaseSHA256 {
			return "", &HashMismatchError{Declared: doc.BaseSHA256, Actual: actual}
		}
	}

	ending := hash.Detect(content)
	running := hash.Normalize(content)

	for idx, in := range doc.Instructions {
		search := hash.Normalize(in.EffectiveSearch())
		replace := hash.Normalize(in.EffectiveReplace())

		next, err := applyOne(running, search, replace)
		if err != nil {
			logging.PatchWarn("instruction %d (%s) failed: %v", idx+1, in.Version, err)
			return "", err
		}
		running = next
	}

	return hash.Restore(running, ending), nil
}

// applyOne splices replace over the unique occurrence of search.
func applyOne(content, search, replace string) (string, error) {
	if search == "" {
		return "", &ProtocolError{Reason: "empty search text"}
	}

	count := strings.Count(content, search)
	switch {
	case count == 0:
		return "", &ZeroMatchError{Search: search, Probe: probe(content, search)}
	case count > 1:
		return "", &AmbiguousError{Count: count, Lines: occurrenceLines(content, search)}
	}

	pos := strings.Index(content, search)
	return content[:pos] + replace + content[pos+len(search):], nil
}

// occurrenceLines returns the 1-based line numbers where search occurs.
// Occurrences are counted without overlap, matching strings.Count, so
// the ambiguity count and the reported lines always agree.
func occurrenceLines(content, search string) []int {
	var lines []int
	offset := 0
	for {
		pos := strings.Index(content[offset:], search)
		if pos < 0 {
			return lines
		}
		abs := offset + pos
		lines = append(lines, 1+strings.Count(content[:abs], "\n"))
		offset = abs + len(search)
	}
}

// probe locates the longest contiguous prefix of search (at least
// minProbeLen chars) that occurs in content, and reports the region
// around it. Returns nil when no plausible prefix exists.
func probe(content, search string) *ProbeDiagnostic {
	if len(search) < minProbeLen {
		return nil
	}

	// Binary search the longest matching prefix length.
	lo, hi := minProbeLen, len(search)
	if strings.Index(content, search[:lo]) < 0 {
		return nil
	}
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if strings.Index(content, search[:mid]) >= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	// Anchor the report on the divergence point: the end of the matched
	// prefix is where the expected text stops agreeing with the file.
	pos := strings.Index(content, search[:lo])
	anchor := pos + lo
	if anchor >= len(content) {
		anchor = len(content) - 1
	}
	if anchor > 0 && content[anchor] == '\n' {
		anchor--
	}

	line := 1 + strings.Count(content[:anchor], "\n")

	lineStart := strings.LastIndexByte(content[:anchor], '\n') + 1
	lineEnd := strings.IndexByte(content[anchor:], '\n')
	if lineEnd < 0 {
		lineEnd = len(content)
	} else {
		lineEnd += anchor
	}

	return &ProbeDiagnostic{
		PrefixLen: lo,
		Line:      line,
		Region:    content[lineStart:lineEnd],
	}
}
