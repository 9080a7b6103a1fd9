package trace

import (
	"io"
	"sync"
)

// maxRetainedFaults bounds the fault list kept beside the ring.
const maxRetainedFaults = 256

// RingTracer keeps the last N admitted events for post-mortem dumps. Faults
// are also retained separately and survive wrap-around.
type RingTracer struct {
	mu      sync.Mutex
	buf     []Event
	written uint64 // total events stored since creation
	faults  []Event
	level   Level
}

// NewRingTracer creates a ring holding capacity events; capacity <= 0 means
// 4096.
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingTracer{buf: make([]Event, capacity), level: level}
}

// Emit stores ev if the level admits it.
func (t *RingTracer) Emit(ev *Event) {
	if !t.level.Admits(ev) {
		return
	}
	stored := *ev
	stored.Seq = NextSeq()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf[t.written%uint64(len(t.buf))] = stored
	t.written++
	if stored.Kind == KindFault {
		if len(t.faults) == maxRetainedFaults {
			copy(t.faults, t.faults[1:])
			t.faults = t.faults[:maxRetainedFaults-1]
		}
		t.faults = append(t.faults, stored)
	}
}

// Snapshot returns the buffered events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	size := uint64(len(t.buf))
	n := min(t.written, size)
	out := make([]Event, 0, n)
	for i := t.written - n; i < t.written; i++ {
		out = append(out, t.buf[i%size])
	}
	return out
}

// Dropped reports how many events were overwritten.
func (t *RingTracer) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if size := uint64(len(t.buf)); t.written > size {
		return t.written - size
	}
	return 0
}

// Faults returns the retained fault events, oldest first, including faults
// already overwritten in the ring.
func (t *RingTracer) Faults() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Event(nil), t.faults...)
}

// Dump writes the buffered events to w.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	events := t.Snapshot()
	for i := range events {
		if _, err := w.Write(FormatEvent(&events[i], format)); err != nil {
			return err
		}
	}
	return nil
}

// Flush implements Tracer; the ring lives in memory.
func (t *RingTracer) Flush() error { return nil }

// Close implements Tracer.
func (t *RingTracer) Close() error { return nil }

// Level implements Tracer.
func (t *RingTracer) Level() Level { return t.level }

// Enabled implements Tracer.
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
