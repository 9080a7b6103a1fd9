package trace

import (
	"io"
	"sync"
)

// StreamTracer writes events immediately to an io.Writer.
type StreamTracer struct {
	mu     sync.Mutex
	w      io.Writer
	level  Level
	format Format
}

// NewStreamTracer creates a new StreamTracer.
func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	if format == FormatAuto {
		format = FormatText
	}
	return &StreamTracer{
		w:      w,
		level:  level,
		format: format,
	}
}

// Emit writes an event to the output.
func (t *StreamTracer) Emit(ev *Event) {
	if !t.level.Admits(ev) {
		return
	}

	stored := *ev
	stored.Seq = NextSeq()
	data := FormatEvent(&stored, t.format)

	t.mu.Lock()
	defer t.mu.Unlock()

	// Best-effort write: a broken trace sink must not disturb logging.
	_, _ = t.w.Write(data)
}

// Flush ensures all buffered data is written.
func (t *StreamTracer) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if flusher, ok := t.w.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close flushes and closes the writer if it implements io.Closer.
func (t *StreamTracer) Close() error {
	if err := t.Flush(); err != nil {
		return err
	}
	if _, ok := t.w.(nopCloser); ok {
		return nil
	}
	if closer, ok := t.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Level returns the current tracing level.
func (t *StreamTracer) Level() Level {
	return t.level
}

// Enabled returns true if tracing is active.
func (t *StreamTracer) Enabled() bool {
	return t.level > LevelOff
}
