// Package hud renders a single-line progress spinner during an apply.
// The main thread mutates a shared state under a mutex; a background
// worker repaints it until Finish is called. Output goes to stderr so
// piped stdout stays clean.
package hud

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	stepStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

// HUD is the shared render state.
type HUD struct {
	mu       sync.Mutex
	title    string
	step     string
	warnings []string
	done     int
	total    int
	finished bool

	out      io.Writer
	interval time.Duration
	stop     chan struct{}
	stopped  chan struct{}
}

// New starts the render worker. Callers must Finish.
func New(title string, total int) *HUD {
	return newHUD(os.Stderr, title, total, 120*time.Millisecond)
}

func newHUD(out io.Writer, title string, total int, interval time.Duration) *HUD {
	h := &HUD{
		title:    title,
		total:    total,
		out:      out,
		interval: interval,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go h.renderLoop()
	return h
}

// SetStep names the pipeline step currently running and counts it as
// one unit of progress.
func (h *HUD) SetStep(step string) {
	h.mu.Lock()
	h.step = step
	if h.done < h.total {
		h.done++
	}
	h.mu.Unlock()
}

// Warn queues a warning line shown beneath the spinner on Finish.
func (h *HUD) Warn(msg string) {
	h.mu.Lock()
	h.warnings = append(h.warnings, msg)
	h.mu.Unlock()
}

// Finish stops the worker, clears the spinner line, and flushes any
// warnings. Safe to call once.
func (h *HUD) Finish() {
	h.mu.Lock()
	if h.finished {
		h.mu.Unlock()
		return
	}
	h.finished = true
	h.mu.Unlock()

	close(h.stop)
	<-h.stopped

	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintf(h.out, "\r%s\r", strings.Repeat(" ", 79))
	for _, w := range h.warnings {
		fmt.Fprintln(h.out, warnStyle.Render("! "+w))
	}
}

func (h *HUD) renderLoop() {
	defer close(h.stopped)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.mu.Lock()
			line := fmt.Sprintf("\r%s %s %s [%d/%d]",
				spinnerFrames[frame%len(spinnerFrames)],
				titleStyle.Render(h.title),
				stepStyle.Render(h.step),
				h.done, h.total)
			out := h.out
			h.mu.Unlock()

			fmt.Fprint(out, line)
			frame++
		}
	}
}
