package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity.
type Level uint8

const (
	// LevelOff disables tracing.
	LevelOff    Level = iota // no tracing
	LevelError               // faults only
	LevelInfo                // process + proxy events
	LevelDetail              // adds cache events
	LevelDebug               // everything including per-frame events
)

// String returns the string representation of Level.
func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelError:
		return "error"
	case LevelInfo:
		return "info"
	case LevelDetail:
		return "detail"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "":
		return LevelOff, nil
	case "error":
		return LevelError, nil
	case "info":
		return LevelInfo, nil
	case "detail":
		return LevelDetail, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|error|info|detail|debug)", s)
	}
}

// ShouldEmit returns true if the given scope should emit at this level.
func (l Level) ShouldEmit(scope Scope) bool {
	switch l {
	case LevelOff:
		return false
	case LevelError:
		return false // faults are admitted separately
	case LevelInfo:
		return scope <= ScopeProxy
	case LevelDetail:
		return scope <= ScopeCache
	case LevelDebug:
		return true
	}
	return false
}

// Admits reports whether a tracer at this level records ev.
func (l Level) Admits(ev *Event) bool {
	if l == LevelOff || ev == nil {
		return false
	}
	switch ev.Kind {
	case KindFault, KindHeartbeat:
		return true
	}
	return l.ShouldEmit(ev.Scope)
}
