package observ

import (
	"strings"
	"testing"
	"time"
)

func TestTimerPhases(t *testing.T) {
	tm := NewTimer()
	idx := tm.Begin("baseline")
	time.Sleep(2 * time.Millisecond)
	p := tm.End(idx, 4, "fresh error per op")

	if p.Dur < 2*time.Millisecond {
		t.Errorf("Dur = %v", p.Dur)
	}
	if p.PerOp() != p.Dur/4 {
		t.Errorf("PerOp = %v, want %v", p.PerOp(), p.Dur/4)
	}
	if got := tm.End(7, 1, ""); got != (Phase{}) {
		t.Errorf("out of range End = %+v", got)
	}

	rep := tm.Report()
	if len(rep.Phases) != 1 || rep.Phases[0].Ops != 4 || rep.TotalMS <= 0 {
		t.Errorf("report = %+v", rep)
	}
	sum := tm.Summary()
	for _, want := range []string{"baseline", "µs/op", "// fresh error per op", "total"} {
		if !strings.Contains(sum, want) {
			t.Errorf("summary lacks %q:\n%s", want, sum)
		}
	}
}

func TestEmptyTimer(t *testing.T) {
	if rep := NewTimer().Report(); rep.TotalMS != 0 || rep.Phases != nil {
		t.Errorf("empty report = %+v", rep)
	}
	if _, ok := NewTimer().Phase(0); ok {
		t.Error("phase of empty timer")
	}
}
