package patch

import (
	"fmt"
	"regexp"
	"strings"

	"patchgate/internal/hash"
	"patchgate/internal/logging"
)

// Wire-format keywords. Every marker must occupy its own line.
const (
	kwSearchOpen  = "<<<< SEARCH"
	kwSeparator   = "===="
	kwSearchClose = ">>>>"
	kwBaseSHA     = "BASE_SHA256:"
	kwMaxMatches  = "MAX_MATCHES:"
	kwLeftCtx     = "LEFT_CTX:"
	kwOld         = "OLD:"
	kwRightCtx    = "RIGHT_CTX:"
	kwNew         = "NEW:"
)

var hexPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// ParseDocument parses a patch document, auto-detecting the wire format
// by the first recognized keyword. Line endings are normalized to LF
// before parsing; section bodies are therefore always LF.
func ParseDocument(text string) (*Document, error) {
	lines := strings.Split(hash.Normalize(text), "\n")

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case line == kwSearchOpen:
			logging.PatchDebug("detected v0 document (keyword at line %d)", i+1)
			return parseV0(lines)
		case strings.HasPrefix(line, kwMaxMatches), line == kwLeftCtx:
			logging.PatchDebug("detected v1 document (keyword at line %d)", i+1)
			return parseV1(lines)
		}
	}

	return nil, &ParseError{Reason: "no recognized patch keyword (expected '<<<< SEARCH' or 'MAX_MATCHES:')"}
}

// parseBaseSHA extracts and validates the hex digest from a
// "BASE_SHA256: <hex>" line.
func parseBaseSHA(line string, lineNum int) (string, error) {
	val := strings.TrimSpace(strings.TrimPrefix(line, kwBaseSHA))
	if !hexPattern.MatchString(val) {
		return "", &ParseError{Line: lineNum, Reason: fmt.Sprintf("BASE_SHA256 must be 64 hex chars, got %q", val)}
	}
	return strings.ToLower(val), nil
}

// parseV0 parses search/replace blocks. Both the '====' separator and
// the '>>>>' terminator are mandatory and must sit on their own lines.
func parseV0(lines []string) (*Document, error) {
	doc := &Document{}

	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])

		switch {
		case strings.HasPrefix(line, kwBaseSHA):
			sha, err := parseBaseSHA(line, i+1)
			if err != nil {
				return nil, err
			}
			if doc.BaseSHA256 != "" && doc.BaseSHA256 != sha {
				return nil, &ProtocolError{Reason: "conflicting BASE_SHA256 declarations in one document"}
			}
			doc.BaseSHA256 = sha
			i++

		case strings.HasPrefix(line, kwMaxMatches):
			return nil, &ProtocolError{Reason: "MAX_MATCHES is a v1 keyword and is not valid in a v0 document"}

		case line == kwSearchOpen:
			openLine := i + 1
			i++
			var search []string
			for i < len(lines) && strings.TrimSpace(lines[i]) != kwSeparator {
				search = append(search, lines[i])
				i++
			}
			if i >= len(lines) {
				return nil, &ParseError{Line: openLine, Reason: "SEARCH block is missing its '====' separator"}
			}
			i++ // Consume '===='.
			var replace []string
			for i < len(lines) && strings.TrimSpace(lines[i]) != kwSearchClose {
				replace = append(replace, lines[i])
				i++
			}
			if i >= len(lines) {
				return nil, &ParseError{Line: openLine, Reason: "SEARCH block is missing its '>>>>' terminator"}
			}
			i++ // Consume '>>>>'.

			doc.Instructions = append(doc.Instructions, Instruction{
				Version: V0,
				Search:  strings.Join(search, "\n"),
				Replace: strings.Join(replace, "\n"),
			})

		default:
			// Prose between blocks is tolerated; markers inside prose
			// lines never open a block.
			i++
		}
	}

	if len(doc.Instructions) == 0 {
		return nil, &ParseError{Reason: "v0 document contains no instructions"}
	}
	return doc, nil
}

// v1Builder accumulates the four sections of one v1 instruction.
type v1Builder struct {
	left, old, right, new []string
	seenLeft, seenOld     bool
	seenRight, seenNew    bool
	started               bool
}

func (b *v1Builder) complete() bool {
	return b.seenLeft && b.seenOld && b.seenRight && b.seenNew
}

func (b *v1Builder) build() Instruction {
	return Instruction{
		Version:  V1,
		LeftCtx:  strings.Join(b.left, "\n"),
		Old:      strings.Join(b.old, "\n"),
		RightCtx: strings.Join(b.right, "\n"),
		New:      strings.Join(b.new, "\n"),
	}
}

// parseV1 parses context-anchored instructions. MAX_MATCHES: 1 is
// mandatory; a LEFT_CTX without a completed instruction is a protocol
// violation.
func parseV1(lines []string) (*Document, error) {
	doc := &Document{}
	sawMaxMatches := false
	builder := &v1Builder{}
	var section *[]string

	finish := func() {
		if builder.complete() {
			doc.Instructions = append(doc.Instructions, builder.build())
			*builder = v1Builder{}
		}
	}

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		// Headers are recognized only before the first section opens.
		if !builder.started && len(doc.Instructions) == 0 && section == nil {
			if strings.HasPrefix(line, kwBaseSHA) {
				sha, err := parseBaseSHA(line, i+1)
				if err != nil {
					return nil, err
				}
				doc.BaseSHA256 = sha
				continue
			}
			if strings.HasPrefix(line, kwMaxMatches) {
				val := strings.TrimSpace(strings.TrimPrefix(line, kwMaxMatches))
				if val != "1" {
					return nil, &ProtocolError{Reason: fmt.Sprintf("MAX_MATCHES must be 1, got %q", val)}
				}
				sawMaxMatches = true
				continue
			}
		}

		switch line {
		case kwLeftCtx:
			finish()
			builder.started = true
			builder.seenLeft = true
			section = &builder.left
		case kwOld:
			builder.seenOld = true
			section = &builder.old
		case kwRightCtx:
			builder.seenRight = true
			section = &builder.right
		case kwNew:
			builder.seenNew = true
			section = &builder.new
		default:
			if section != nil {
				*section = append(*section, lines[i])
			}
			// Lines before the first section are prose; skip.
		}
	}
	finish()

	if builder.started {
		return nil, &ProtocolError{Reason: "LEFT_CTX seen but no complete instruction assembled (missing OLD, RIGHT_CTX, or NEW)"}
	}
	if len(doc.Instructions) == 0 {
		return nil, &ProtocolError{Reason: "v1 document contains no complete instructions"}
	}
	if !sawMaxMatches {
		return nil, &ProtocolError{Reason: "v1 document is missing the required 'MAX_MATCHES: 1' header"}
	}

	return doc, nil
}

// Merge appends other's instructions to d. Conflicting base hashes are
// a protocol violation; a hash declared by either side is kept.
func (d *Document) Merge(other *Document) error {
	if d.BaseSHA256 != "" && other.BaseSHA256 != "" && d.BaseSHA256 != other.BaseSHA256 {
		return &ProtocolError{Reason: fmt.Sprintf("conflicting BASE_SHA256 for the same file: %s vs %s", d.BaseSHA256, other.BaseSHA256)}
	}
	if d.BaseSHA256 == "" {
		d.BaseSHA256 = other.BaseSHA256
	}
	d.Instructions = append(d.Instructions, other.Instructions...)
	return nil
}
