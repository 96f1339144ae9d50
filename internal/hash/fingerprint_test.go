package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintNormalizesLineEndings(t *testing.T) {
	lf := "line one\nline two\n"
	crlf := "line one\r\nline two\r\n"
	cr := "line one\rline two\r"

	assert.Equal(t, Fingerprint(lf), Fingerprint(crlf))
	assert.Equal(t, Fingerprint(lf), Fingerprint(cr))
}

func TestFingerprintMatchesPlainSHA256ForLFContent(t *testing.T) {
	content := "x\n"
	sum := sha256.Sum256([]byte(content))
	require.Equal(t, hex.EncodeToString(sum[:]), Fingerprint(content))
}

func TestFingerprintIsLowercaseHex(t *testing.T) {
	fp := Fingerprint("anything")
	require.Len(t, fp, 64)
	for _, c := range fp {
		assert.True(t, (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f'), "unexpected rune %q", c)
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    LineEnding
	}{
		{"lf file", "a\nb\n", LF},
		{"crlf file", "a\r\nb\r\n", CRLF},
		{"mixed prefers crlf", "a\r\nb\n", CRLF},
		{"empty", "", LF},
		{"no newline", "abc", LF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.content))
		})
	}
}

func TestRestore(t *testing.T) {
	assert.Equal(t, "a\r\nb\r\n", Restore("a\nb\n", CRLF))
	assert.Equal(t, "a\nb\n", Restore("a\nb\n", LF))
	// Already-CRLF input must not double up.
	assert.Equal(t, "a\r\nb\r\n", Restore("a\r\nb\r\n", CRLF))
}
