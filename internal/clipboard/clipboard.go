// Package clipboard is a thin wrapper over the system clipboard. Every
// caller in this tool treats the clipboard as best-effort; a headless
// machine without a clipboard provider must never fail an apply.
package clipboard

import (
	"github.com/atotto/clipboard"

	"patchgate/internal/logging"
)

// Read returns the clipboard content.
func Read() (string, error) {
	return clipboard.ReadAll()
}

// Write places text on the clipboard. Failures are logged and dropped.
func Write(text string) {
	if err := clipboard.WriteAll(text); err != nil {
		logging.BootWarn("clipboard write failed: %v", err)
	}
}
