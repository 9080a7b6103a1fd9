// Package observ measures named phases of a run.
package observ

import (
	"fmt"
	"strings"
	"time"
)

// Phase records one measured stage and how many operations it covered.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Ops   int
	Note  string
}

// PerOp returns the mean duration of one operation, or zero without ops.
func (p Phase) PerOp() time.Duration {
	if p.Ops <= 0 {
		return 0
	}
	return p.Dur / time.Duration(p.Ops)
}

// Timer tracks consecutive phases. It is not safe for concurrent use.
type Timer struct {
	phases []Phase
}

// NewTimer creates a new empty Timer.
func NewTimer() *Timer { return &Timer{phases: make([]Phase, 0, 4)} }

// Begin starts a new phase and returns its index.
func (t *Timer) Begin(name string) int {
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now()})
	return len(t.phases) - 1
}

// End finishes a phase by its index.
func (t *Timer) End(idx, ops int, note string) Phase {
	if idx < 0 || idx >= len(t.phases) {
		return Phase{}
	}
	p := &t.phases[idx]
	p.Dur = time.Since(p.Start)
	p.Ops = ops
	p.Note = note
	return *p
}

// Phase returns a copy of the phase at idx.
func (t *Timer) Phase(idx int) (Phase, bool) {
	if idx < 0 || idx >= len(t.phases) {
		return Phase{}, false
	}
	return t.phases[idx], true
}

// Summary returns a human-readable table of all phases.
func (t *Timer) Summary() string {
	return t.Report().String()
}

// PhaseReport is the serializable form of a Phase.
type PhaseReport struct {
	Name        string  `json:"name"`
	DurationMS  float64 `json:"duration_ms"`
	Ops         int     `json:"ops,omitempty"`
	PerOpMicros float64 `json:"per_op_us,omitempty"`
	Note        string  `json:"note,omitempty"`
}

// Report aggregates all phases.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

// Report converts the phases and their total into milliseconds.
func (t *Timer) Report() Report {
	if len(t.phases) == 0 {
		return Report{}
	}
	report := Report{
		Phases: make([]PhaseReport, len(t.phases)),
	}
	var total time.Duration
	for i, phase := range t.phases {
		total += phase.Dur
		report.Phases[i] = PhaseReport{
			Name:        phase.Name,
			DurationMS:  durationToMillis(phase.Dur),
			Ops:         phase.Ops,
			PerOpMicros: durationToMicros(phase.PerOp()),
			Note:        phase.Note,
		}
	}
	report.TotalMS = durationToMillis(total)
	return report
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func durationToMicros(d time.Duration) float64 {
	return float64(d) / float64(time.Microsecond)
}

// String renders the report as an aligned table.
func (r Report) String() string {
	var sb strings.Builder
	sb.WriteString("timings:\n")
	for _, p := range r.Phases {
		fmt.Fprintf(&sb, "  %-12s %9.2f ms", p.Name, p.DurationMS)
		if p.Ops > 0 {
			fmt.Fprintf(&sb, "  %8.3f µs/op", p.PerOpMicros)
		}
		if p.Note != "" {
			sb.WriteString("  // " + p.Note)
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "  %-12s %9.2f ms\n", "total", r.TotalMS)
	return sb.String()
}
