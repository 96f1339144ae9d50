package delivery

import (
	"fmt"
	"regexp"
	"strings"

	"patchgate/internal/hash"
	"patchgate/internal/logging"
	"patchgate/internal/patch"
	"patchgate/internal/safety"
)

// Block markers. The open marker may carry attributes (notably path=),
// and every marker must occupy its own line; inline occurrences within
// prose never open a block.
const (
	markerManifest = "===MANIFEST==="
	markerEnd      = "===END==="
)

var (
	// ===FILE path=src/a.go=== / ===PATCH path=src/a.go===
	openPattern = regexp.MustCompile(`^===(FILE|PATCH)((?:\s+[A-Za-z_]+=\S+)*)===$`)
	attrPattern = regexp.MustCompile(`([A-Za-z_]+)=(\S+)`)

	// "- path [NEW]", "1. path [DELETE]", "* path", bare "path"
	manifestLine = regexp.MustCompile(`^(?:[-*]|\d+[.)])?\s*(\S+?)\s*(?:\[(NEW|DELETE)\])?$`)
)

// Parse extracts the manifest, file bodies, and patch documents from
// free-form delivery text. Multiple blocks compose additively; blocks
// with no resolvable path are skipped with a warning.
func Parse(text string) (*Delivery, error) {
	d := &Delivery{
		Files:   make(map[string]FileBody),
		Patches: make(map[string]*patch.Document),
	}

	lines := strings.Split(hash.Normalize(text), "\n")

	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])

		switch {
		case line == markerManifest:
			body, next, err := collectBlock(lines, i+1)
			if err != nil {
				return nil, err
			}
			if err := d.parseManifest(body); err != nil {
				return nil, err
			}
			i = next

		case openPattern.MatchString(line):
			m := openPattern.FindStringSubmatch(line)
			kind, attrs := m[1], parseAttrs(m[2], &d.Warnings)

			body, next, err := collectBlock(lines, i+1)
			if err != nil {
				return nil, err
			}
			i = next

			path, ok := attrs["path"]
			if !ok || path == "" {
				d.Warnings = append(d.Warnings, fmt.Sprintf("%s block with no path attribute skipped", kind))
				logging.ParseWarn("%s block with no path attribute skipped", kind)
				continue
			}
			path = safety.NormalizePath(path)

			switch kind {
			case "FILE":
				content := stripOuterFence(strings.Join(body, "\n"))
				if _, dup := d.Files[path]; dup {
					return nil, &ParseError{Reason: fmt.Sprintf("multiple file blocks for %q", path)}
				}
				d.Files[path] = FileBody{
					Content:   content,
					LineCount: len(strings.Split(strings.TrimSuffix(content, "\n"), "\n")),
				}
			case "PATCH":
				doc, err := patch.ParseDocument(strings.Join(body, "\n"))
				if err != nil {
					return nil, fmt.Errorf("patch block for %q: %w", path, err)
				}
				if existing, ok := d.Patches[path]; ok {
					if err := existing.Merge(doc); err != nil {
						return nil, fmt.Errorf("patch block for %q: %w", path, err)
					}
				} else {
					d.Patches[path] = doc
				}
			}

		default:
			i++
		}
	}

	logging.Parse("parsed delivery: %s (%d warnings)", d.Summary(), len(d.Warnings))
	return d, nil
}

// collectBlock gathers lines from start until the ===END=== marker,
// returning the body and the index past the marker.
func collectBlock(lines []string, start int) ([]string, int, error) {
	for i := start; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == markerEnd {
			return lines[start:i], i + 1, nil
		}
	}
	return nil, 0, &ParseError{Reason: "unterminated block: missing " + markerEnd}
}

// parseAttrs extracts key=value pairs from an open marker. Unknown
// attributes are tolerated and reported as warnings.
func parseAttrs(s string, warnings *[]string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrPattern.FindAllStringSubmatch(s, -1) {
		key := strings.ToLower(m[1])
		if key != "path" {
			*warnings = append(*warnings, fmt.Sprintf("unknown block attribute %q ignored", m[1]))
		}
		attrs[key] = m[2]
	}
	return attrs
}

// parseManifest reads bulleted/numbered entries of the form
// "<path> [NEW|DELETE]"; update is the default operation.
func (d *Delivery) parseManifest(body []string) error {
	for _, raw := range body {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		m := manifestLine.FindStringSubmatch(line)
		if m == nil {
			return &ParseError{Reason: fmt.Sprintf("unparseable manifest line: %q", line)}
		}

		entry := ManifestEntry{Path: safety.NormalizePath(m[1])}
		switch m[2] {
		case "NEW":
			entry.Op = OpNew
		case "DELETE":
			entry.Op = OpDelete
		}
		d.Manifest = append(d.Manifest, entry)
	}
	return nil
}

// stripOuterFence removes a single outermost markdown fence pair, if
// the body is wholly wrapped in one. Inner fences are untouched.
func stripOuterFence(content string) string {
	lines := strings.Split(content, "\n")

	// Skip leading/trailing blank lines when looking for the fence.
	first, last := 0, len(lines)-1
	for first <= last && strings.TrimSpace(lines[first]) == "" {
		first++
	}
	for last >= first && strings.TrimSpace(lines[last]) == "" {
		last--
	}
	if first >= last {
		return content
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[first]), "```") || strings.TrimSpace(lines[last]) != "```" {
		return content
	}
	return strings.Join(lines[first+1:last], "\n")
}
