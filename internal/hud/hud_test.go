package hud

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

// syncBuffer guards a bytes.Buffer so the render worker and the test
// can share it.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestFinishStopsWorker(t *testing.T) {
	defer goleak.VerifyNone(t)

	buf := &syncBuffer{}
	h := newHUD(buf, "applying", 3, time.Millisecond)

	h.SetStep("writing files")
	time.Sleep(20 * time.Millisecond)
	h.Finish()

	assert.Contains(t, buf.String(), "applying")
	assert.Contains(t, buf.String(), "writing files")
	assert.Contains(t, buf.String(), "[1/3]")
}

func TestSetStepAdvancesToTotalAtMost(t *testing.T) {
	defer goleak.VerifyNone(t)

	buf := &syncBuffer{}
	h := newHUD(buf, "applying", 2, time.Millisecond)

	h.SetStep("parsing")
	h.SetStep("writing")
	h.SetStep("promoting")
	time.Sleep(20 * time.Millisecond)
	h.Finish()

	assert.Contains(t, buf.String(), "[2/2]")
	assert.NotContains(t, buf.String(), "[3/2]")
}

func TestFinishIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHUD(&syncBuffer{}, "applying", 1, time.Millisecond)
	h.Finish()
	h.Finish()
}

func TestWarningsFlushOnFinish(t *testing.T) {
	defer goleak.VerifyNone(t)

	buf := &syncBuffer{}
	h := newHUD(buf, "applying", 1, time.Millisecond)
	h.Warn("26 files touched, consider splitting the delivery")
	h.Finish()

	assert.Contains(t, buf.String(), "26 files touched")
}
