package trace

import (
	"bytes"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"
)

var (
	globalSeq   atomic.Uint64
	globalSpans atomic.Uint64
)

// NextSeq returns a monotonically increasing sequence number.
func NextSeq() uint64 { return globalSeq.Add(1) }

// NextSpanID returns a unique span ID.
func NextSpanID() uint64 { return globalSpans.Add(1) }

// goroutineID parses the current goroutine ID out of runtime.Stack.
// Only spans pay for it, and only when their scope is admitted.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]

	// "goroutine 123 [running]:\n..."
	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return 0
	}
	b = b[len(prefix):]
	end := bytes.IndexByte(b, ' ')
	if end < 0 {
		return 0
	}
	gid, err := strconv.ParseUint(string(b[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return gid
}

// Span tracks one logical operation between Begin and End.
type Span struct {
	tracer   Tracer
	id       uint64
	parentID uint64
	gid      uint64
	scope    Scope
	name     string
	started  time.Time
	extra    map[string]string
}

// Begin starts a new span and emits SpanBegin event.
// parent is the parent span ID (0 if root). Disabled tracers or filtered
// scopes yield an inert span.
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return &Span{tracer: Nop}
	}

	s := &Span{
		tracer:   t,
		id:       NextSpanID(),
		parentID: parent,
		gid:      goroutineID(),
		scope:    scope,
		name:     name,
		started:  time.Now(),
	}
	t.Emit(s.event(KindSpanBegin, s.started, ""))
	return s
}

func (s *Span) event(kind Kind, at time.Time, detail string) *Event {
	return &Event{
		Time:     at,
		Kind:     kind,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parentID,
		GID:      s.gid,
		Name:     s.name,
		Detail:   detail,
		Extra:    s.extra,
	}
}

// End emits SpanEnd event and returns the duration.
func (s *Span) End(detail string) time.Duration {
	if s == nil || s.tracer == nil || !s.tracer.Enabled() {
		return 0
	}
	dur := time.Since(s.started)
	s.WithExtra("elapsed", dur.String())
	s.tracer.Emit(s.event(KindSpanEnd, time.Now(), detail))
	return dur
}

// WithExtra adds a key-value pair to the end event.
// Returns the span for method chaining.
func (s *Span) WithExtra(key, value string) *Span {
	if s == nil || s.tracer == nil || !s.tracer.Enabled() {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string)
	}
	s.extra[key] = value
	return s
}

// ID returns the span ID.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}
