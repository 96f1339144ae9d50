package patch

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patchgate/internal/hash"
)

func TestApplyV0HappyPath(t *testing.T) {
	doc := &Document{Instructions: []Instruction{{Version: V0, Search: "1", Replace: "2"}}}

	out, err := Apply(doc, "fn foo() { 1 }\n")
	require.NoError(t, err)
	assert.Equal(t, "fn foo() { 2 }\n", out)
}

func TestApplyHashGuard(t *testing.T) {
	doc := &Document{
		BaseSHA256:   hash.Fingerprint("y\n"),
		Instructions: []Instruction{{Version: V0, Search: "x", Replace: "z"}},
	}

	_, err := Apply(doc, "x\n")
	var hashErr *HashMismatchError
	require.True(t, errors.As(err, &hashErr))
	assert.Equal(t, hash.Fingerprint("y\n"), hashErr.Declared)
	assert.Equal(t, hash.Fingerprint("x\n"), hashErr.Actual)
	assert.Contains(t, hashErr.Error(), "LF-normalized")
}

func TestApplyHashGuardAcceptsCRLFVariant(t *testing.T) {
	// The declared hash is over the LF form; a CRLF file must still pass.
	doc := &Document{
		BaseSHA256:   hash.Fingerprint("a\nb\n"),
		Instructions: []Instruction{{Version: V0, Search: "a", Replace: "A"}},
	}

	out, err := Apply(doc, "a\r\nb\r\n")
	require.NoError(t, err)
	assert.Equal(t, "A\r\nb\r\n", out, "detected CRLF convention must be preserved")
}

func TestApplyAmbiguous(t *testing.T) {
	doc := &Document{Instructions: []Instruction{{Version: V0, Search: "repeat", Replace: "x"}}}

	_, err := Apply(doc, "repeat\nrepeat\nrepeat\n")
	var ambErr *AmbiguousError
	require.True(t, errors.As(err, &ambErr))
	assert.Equal(t, 3, ambErr.Count)
	assert.Equal(t, []int{1, 2, 3}, ambErr.Lines)
	assert.Contains(t, ambErr.Error(), "Found 3 occurrences")
}

func TestApplyAmbiguousOverlappingMatches(t *testing.T) {
	doc := &Document{Instructions: []Instruction{{Version: V0, Search: "aa", Replace: "x"}}}

	// "aaaa" holds two non-overlapping "aa" occurrences; the reported
	// lines must agree with that count.
	_, err := Apply(doc, "aaaa\n")
	var ambErr *AmbiguousError
	require.True(t, errors.As(err, &ambErr))
	assert.Equal(t, 2, ambErr.Count)
	assert.Len(t, ambErr.Lines, 2)
	assert.Equal(t, []int{1, 1}, ambErr.Lines)
}

func TestApplyZeroMatchProbe(t *testing.T) {
	content := "fn compute() -> u64 {\n    let x = 100000000000;\n    x * 2\n}\n"
	search := "fn compute() -> u64 {\n    let x = 5555555555555555;"
	doc := &Document{Instructions: []Instruction{{Version: V0, Search: search, Replace: "ignored"}}}

	_, err := Apply(doc, content)
	var zeroErr *ZeroMatchError
	require.True(t, errors.As(err, &zeroErr))
	require.NotNil(t, zeroErr.Probe)
	assert.Contains(t, zeroErr.Error(), "Did you mean this region?")
	assert.Contains(t, zeroErr.Probe.Region, "100000000000")
	assert.Equal(t, 2, zeroErr.Probe.Line)
}

func TestApplyZeroMatchShortSearchHasNoProbe(t *testing.T) {
	doc := &Document{Instructions: []Instruction{{Version: V0, Search: "nope", Replace: "x"}}}

	_, err := Apply(doc, "something else entirely\n")
	var zeroErr *ZeroMatchError
	require.True(t, errors.As(err, &zeroErr))
	assert.Nil(t, zeroErr.Probe)
}

func TestApplyCRLFSearchAgainstLFFile(t *testing.T) {
	doc := &Document{Instructions: []Instruction{{
		Version: V0,
		Search:  "line one\r\nline two",
		Replace: "line one\r\nline 2",
	}}}

	out, err := Apply(doc, "line one\nline two\nline three\n")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline 2\nline three\n", out)
}

func TestApplyInstructionsInOrder(t *testing.T) {
	// The second instruction matches text produced by the first.
	doc := &Document{Instructions: []Instruction{
		{Version: V0, Search: "alpha", Replace: "beta"},
		{Version: V0, Search: "beta gamma", Replace: "done"},
	}}

	out, err := Apply(doc, "alpha gamma\n")
	require.NoError(t, err)
	assert.Equal(t, "done\n", out)
}

func TestApplyHashCheckedOnceNotAgainstIntermediates(t *testing.T) {
	base := "one two\n"
	doc := &Document{
		BaseSHA256: hash.Fingerprint(base),
		Instructions: []Instruction{
			{Version: V0, Search: "one", Replace: "1"},
			{Version: V0, Search: "two", Replace: "2"},
		},
	}

	out, err := Apply(doc, base)
	require.NoError(t, err)
	assert.Equal(t, "1 2\n", out)
}

func TestApplyV1Instruction(t *testing.T) {
	content := "func main() {\n\tfoo()\n}\n"
	doc := &Document{Instructions: []Instruction{{
		Version:  V1,
		LeftCtx:  "func main() {\n",
		Old:      "\tfoo()",
		RightCtx: "\n}",
		New:      "\tbar()",
	}}}

	out, err := Apply(doc, content)
	require.NoError(t, err)
	assert.Equal(t, "func main() {\n\tbar()\n}\n", out)
}

func TestApplyV1DisambiguatesViaContext(t *testing.T) {
	// "x = 1" appears twice; only the context-anchored form is unique.
	content := "a:\n  x = 1\nb:\n  x = 1\n"
	doc := &Document{Instructions: []Instruction{{
		Version:  V1,
		LeftCtx:  "b:\n",
		Old:      "  x = 1",
		RightCtx: "\n",
		New:      "  x = 2",
	}}}

	out, err := Apply(doc, content)
	require.NoError(t, err)
	assert.Equal(t, "a:\n  x = 1\nb:\n  x = 2\n", out)
}

func TestApplyPreservesCRLFInReplacement(t *testing.T) {
	doc := &Document{Instructions: []Instruction{{
		Version: V0,
		Search:  "old line",
		Replace: "new line one\nnew line two",
	}}}

	out, err := Apply(doc, "head\r\nold line\r\ntail\r\n")
	require.NoError(t, err)
	assert.Equal(t, "head\r\nnew line one\r\nnew line two\r\ntail\r\n", out)
	assert.False(t, strings.Contains(hash.Normalize(out), "\r"))
}
