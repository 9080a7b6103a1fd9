package trace

import "errors"

// MultiTracer fans out trace events to multiple tracers. Events the
// MultiTracer's own level rejects never reach the children.
type MultiTracer struct {
	tracers []Tracer
	level   Level
}

// NewMultiTracer creates a new MultiTracer; nil and disabled tracers are skipped.
func NewMultiTracer(level Level, tracers ...Tracer) *MultiTracer {
	kept := make([]Tracer, 0, len(tracers))
	for _, tr := range tracers {
		if tr != nil && tr.Enabled() {
			kept = append(kept, tr)
		}
	}
	return &MultiTracer{tracers: kept, level: level}
}

// Emit sends the event to all underlying tracers.
func (t *MultiTracer) Emit(ev *Event) {
	if !t.level.Admits(ev) {
		return
	}
	for _, tr := range t.tracers {
		tr.Emit(ev)
	}
}

// Flush flushes all underlying tracers and joins their errors.
func (t *MultiTracer) Flush() error {
	var errs []error
	for _, tr := range t.tracers {
		errs = append(errs, tr.Flush())
	}
	return errors.Join(errs...)
}

// Close closes all underlying tracers and joins their errors.
func (t *MultiTracer) Close() error {
	var errs []error
	for _, tr := range t.tracers {
		errs = append(errs, tr.Close())
	}
	return errors.Join(errs...)
}

// Level returns the configured level.
func (t *MultiTracer) Level() Level { return t.level }

// Enabled reports whether any child remains and the level is not off.
func (t *MultiTracer) Enabled() bool { return t.level > LevelOff && len(t.tracers) > 0 }
