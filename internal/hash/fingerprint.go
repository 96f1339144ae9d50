// Package hash provides the content fingerprint used throughout the
// delivery protocol. Fingerprints are always computed over LF-normalized
// bytes so that the same file hashes identically on every OS.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// LineEnding identifies the dominant line-ending convention of a file.
type LineEnding int

const (
	LF LineEnding = iota
	CRLF
)

// Fingerprint returns the lowercase hex SHA-256 of content after
// normalizing CRLF and bare CR to LF. It is total: any input produces
// a 64-char digest.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(Normalize(content)))
	return hex.EncodeToString(sum[:])
}

// Normalize converts CRLF and bare CR line endings to LF.
func Normalize(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n")
}

// Detect reports the line-ending convention of content. A single CRLF
// marks the file as CRLF; otherwise LF is assumed.
func Detect(content string) LineEnding {
	if strings.Contains(content, "\r\n") {
		return CRLF
	}
	return LF
}

// Restore converts LF-normalized text to the given convention.
func Restore(content string, ending LineEnding) string {
	if ending != CRLF {
		return content
	}
	// Normalize first so existing CRLFs are not doubled.
	return strings.ReplaceAll(Normalize(content), "\n", "\r\n")
}
