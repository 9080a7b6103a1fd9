package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindSpanBegin marks the start of a logical operation.
	KindSpanBegin Kind = iota + 1 // span start
	// KindSpanEnd marks the end of a logical operation.
	KindSpanEnd // span end
	// KindPoint represents an instant event.
	KindPoint // instant event
	// KindFault reports a contained failure. Emitted at every level but off.
	KindFault
	KindHeartbeat // periodic liveness signal
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindFault:
		return "fault"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity level of the event.
// Lower numeric values represent coarser events.
type Scope uint8

const (
	// ScopeProcess covers process-wide work such as strategy detection.
	ScopeProcess Scope = iota + 1
	// ScopeProxy covers one exception proxy and its cause chain.
	ScopeProxy
	// ScopeCache covers shared cache bookkeeping.
	ScopeCache
	ScopeFrame // one stack frame (most detailed)
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeProcess:
		return "process"
	case ScopeProxy:
		return "proxy"
	case ScopeCache:
		return "cache"
	case ScopeFrame:
		return "frame"
	default:
		return "unknown"
	}
}

// Event represents a single trace event.
type Event struct {
	Time     time.Time         // wall-clock timestamp
	Seq      uint64            // global sequence number (monotonic)
	Kind     Kind              // event kind
	Scope    Scope             // granularity level
	SpanID   uint64            // unique span identifier
	ParentID uint64            // parent span (0 if root)
	GID      uint64            // goroutine ID (for concurrent spans)
	Name     string            // e.g., "detect", "calculate", "frame:net/http"
	Detail   string            // optional detail message
	Extra    map[string]string // extensible key-value pairs
}

// Point emits an instant event if t admits it at the given scope.
func Point(t Tracer, scope Scope, name, detail string) {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	t.Emit(&Event{
		Time:   time.Now(),
		Kind:   KindPoint,
		Scope:  scope,
		Name:   name,
		Detail: detail,
	})
}

// Fault emits a fault event. Faults bypass scope filtering.
func Fault(t Tracer, scope Scope, name string, err error, extra map[string]string) {
	if t == nil || !t.Enabled() {
		return
	}
	ev := &Event{
		Time:  time.Now(),
		Kind:  KindFault,
		Scope: scope,
		Name:  name,
		Extra: extra,
	}
	if err != nil {
		ev.Detail = err.Error()
	}
	t.Emit(ev)
}
