// Package patch implements the localized edit engine. Two wire formats
// are supported: V0 search/replace blocks and V1 context-anchored
// instructions. Formats are a tagged variant with a single dispatch
// point in the applier; new formats extend the tag.
package patch

import "fmt"

// Version tags the wire format an instruction was parsed from.
type Version int

const (
	V0 Version = iota // <<<< SEARCH / ==== / >>>> blocks
	V1                // LEFT_CTX / OLD / RIGHT_CTX / NEW sections
)

func (v Version) String() string {
	if v == V1 {
		return "v1"
	}
	return "v0"
}

// Instruction is one localized edit. For V0 only Search/Replace are
// set; for V1 the four context sections are set and the effective
// search/replace strings are derived.
type Instruction struct {
	Version Version

	// V0 fields.
	Search  string
	Replace string

	// V1 fields.
	LeftCtx  string
	Old      string
	RightCtx string
	New      string
}

// EffectiveSearch returns the text the engine looks for in the file.
func (in Instruction) EffectiveSearch() string {
	if in.Version == V1 {
		return in.LeftCtx + in.Old + in.RightCtx
	}
	return in.Search
}

// EffectiveReplace returns the text spliced in place of the match.
func (in Instruction) EffectiveReplace() string {
	if in.Version == V1 {
		return in.LeftCtx + in.New + in.RightCtx
	}
	return in.Replace
}

// Document is a parsed patch document for a single file: an optional
// expected base fingerprint plus the ordered instruction list.
type Document struct {
	// BaseSHA256 is the expected fingerprint of the file before any
	// instruction is applied. Empty means unchecked. Always lowercase.
	BaseSHA256 string

	Instructions []Instruction
}

// ParseError reports a malformed patch document.
type ParseError struct {
	Line   int // 1-based line in the document, 0 if unknown
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("patch parse error at line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("patch parse error: %s", e.Reason)
}

// ProtocolError reports a document that parses but violates the patch
// protocol (bad MAX_MATCHES, incomplete V1 instruction, conflicting
// hashes).
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "patch protocol violation: " + e.Reason
}

// HashMismatchError reports a BASE_SHA256 guard failure.
type HashMismatchError struct {
	Declared string
	Actual   string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("HashMismatch: declared base %s but file fingerprints to %s (fingerprints are computed over LF-normalized content)",
		e.Declared, e.Actual)
}

// ZeroMatchError reports a search text that was not found, with an
// optional probe diagnostic pointing at the most plausible region.
type ZeroMatchError struct {
	Search string
	Probe  *ProbeDiagnostic
}

func (e *ZeroMatchError) Error() string {
	msg := fmt.Sprintf("search text not found (0 occurrences of %d-char search)", len(e.Search))
	if e.Probe != nil {
		msg += "\n" + e.Probe.Hint()
	}
	return msg
}

// AmbiguousError reports a search text that matched more than once.
type AmbiguousError struct {
	Count int
	Lines []int // 1-based lines where each occurrence starts
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("Found %d occurrences of the search text at lines %v; the patch must match exactly once", e.Count, e.Lines)
}

// ProbeDiagnostic locates the longest prefix of a failed search that
// does occur in the file, so the user (or the model) can see where the
// edit probably belongs and what differs.
type ProbeDiagnostic struct {
	PrefixLen int    // Length of the matched prefix
	Line      int    // 1-based line where the matched prefix ends and the text diverges
	Region    string // The file line containing the divergence point
}

// Hint renders the diagnostic as a human-readable pointer.
func (p *ProbeDiagnostic) Hint() string {
	return fmt.Sprintf("Did you mean this region? line %d: %q (first %d chars of the search text match here)",
		p.Line, p.Region, p.PrefixLen)
}
