package bench

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"pkgtrace/internal/throwable"
	"pkgtrace/internal/trace"
)

type recordSink struct{ events []Event }

func (s *recordSink) Emit(ev Event) { s.events = append(s.events, ev) }

func TestDefaultSlack(t *testing.T) {
	want := 8.0
	if runtime.Compiler == "gccgo" || runtime.GOOS == "js" || runtime.GOOS == "wasip1" || raceEnabled {
		want = 10
	}
	if got := DefaultSlack(); got != want {
		t.Errorf("DefaultSlack() = %v, want %v", got, want)
	}
}

func TestRunReportsStages(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &recordSink{}
	ring := trace.NewRingTracer(256, trace.LevelInfo)
	res, err := Run(context.Background(), Config{
		Iterations: 50,
		Warmup:     10,
		Slack:      1e6,
		Tracer:     ring,
		Heartbeat:  0,
		Progress:   sink,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK || res.Without <= 0 || res.With <= 0 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Report.Phases) != 2 || res.Report.Phases[0].Ops != 50 {
		t.Errorf("report = %+v", res.Report)
	}

	done := map[Stage]bool{}
	for _, ev := range sink.events {
		if ev.Status == StatusDone {
			done[ev.Stage] = true
			if ev.Done != ev.Total {
				t.Errorf("%s done at %d/%d", ev.Stage, ev.Done, ev.Total)
			}
		}
	}
	for _, st := range Stages {
		if !done[st] {
			t.Errorf("stage %s never finished", st)
		}
	}
	if !strings.Contains(res.String(), "with    packaging info") {
		t.Errorf("String() = %q", res.String())
	}

	var sawBench bool
	for _, ev := range ring.Snapshot() {
		if ev.Name == "bench" {
			sawBench = true
		}
	}
	if !sawBench {
		t.Error("no bench summary event traced")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &recordSink{}
	_, err := Run(ctx, Config{Iterations: 10, Progress: sink})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	last := sink.events[len(sink.events)-1]
	if last.Stage != StageWarmup || last.Status != StatusError {
		t.Errorf("last event = %+v", last)
	}
}

func TestRunRejects(t *testing.T) {
	if _, err := Run(context.Background(), Config{}); err == nil {
		t.Error("zero iterations accepted")
	}
	off := throwable.NewCalculator(throwable.CalcEnabled(false))
	if _, err := Run(context.Background(), Config{Iterations: 1, Calculator: off}); err == nil {
		t.Error("disabled calculator accepted")
	}
}

// TestPackagingBudget is the statistical performance check: resolving a
// captured error must stay within DefaultSlack times the cost of capturing it.
func TestPackagingBudget(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	res, err := Run(context.Background(), Config{Iterations: 1000})
	if err != nil {
		t.Fatal(err)
	}
	t.Log("\n" + res.String())
	if !res.OK {
		t.Errorf("computing packaging data (%v) should have been less than %.0f times the capture cost (%v)",
			res.With, res.Slack, res.Without)
	}
}

func TestChannelSink(t *testing.T) {
	ch := make(chan Event, 1)
	s := ChannelSink(ch)
	s.Emit(Event{Stage: StageWarmup, Status: StatusWorking})
	s.Emit(Event{Stage: StageWarmup, Status: StatusWorking, Done: 64}) // dropped
	if ev := <-ch; ev.Done != 0 {
		t.Errorf("first event = %+v", ev)
	}
	go s.Emit(Event{Stage: StageWarmup, Status: StatusDone})
	if ev := <-ch; ev.Status != StatusDone {
		t.Errorf("terminal event = %+v", ev)
	}
}
