package trace

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr/funcr"
	"go.uber.org/goleak"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"off", LevelOff, false},
		{"", LevelOff, false},
		{"ERROR", LevelError, false},
		{"info", LevelInfo, false},
		{" detail ", LevelDetail, false},
		{"debug", LevelDebug, false},
		{"phase", LevelOff, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevelAdmits(t *testing.T) {
	fault := &Event{Kind: KindFault, Scope: ScopeFrame}
	frame := &Event{Kind: KindPoint, Scope: ScopeFrame}
	proxy := &Event{Kind: KindSpanBegin, Scope: ScopeProxy}

	tests := []struct {
		level                 Level
		fault, frame, proxyOK bool
	}{
		{LevelOff, false, false, false},
		{LevelError, true, false, false},
		{LevelInfo, true, false, true},
		{LevelDetail, true, false, true},
		{LevelDebug, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			if got := tt.level.Admits(fault); got != tt.fault {
				t.Errorf("fault admitted = %v, want %v", got, tt.fault)
			}
			if got := tt.level.Admits(frame); got != tt.frame {
				t.Errorf("frame admitted = %v, want %v", got, tt.frame)
			}
			if got := tt.level.Admits(proxy); got != tt.proxyOK {
				t.Errorf("proxy admitted = %v, want %v", got, tt.proxyOK)
			}
		})
	}
}

func TestRingTracerWraps(t *testing.T) {
	r := NewRingTracer(3, LevelDebug)
	for i := 0; i < 5; i++ {
		r.Emit(&Event{Kind: KindPoint, Scope: ScopeFrame, Name: string(rune('a' + i))})
	}
	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len = %d, want 3", len(snap))
	}
	var names []string
	for _, ev := range snap {
		names = append(names, ev.Name)
	}
	if got := strings.Join(names, ""); got != "cde" {
		t.Errorf("order = %q, want cde", got)
	}
	if snap[0].Seq >= snap[2].Seq {
		t.Error("sequence numbers must increase")
	}
	if got := r.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
}

func TestRingTracerKeepsFaultsAcrossWrap(t *testing.T) {
	r := NewRingTracer(2, LevelDebug)
	Fault(r, ScopeFrame, "frame:com", errors.New("boom"), nil)
	for i := 0; i < 10; i++ {
		Point(r, ScopeFrame, "frame", "")
	}
	for _, ev := range r.Snapshot() {
		if ev.Kind == KindFault {
			t.Fatal("fault should have been overwritten in the ring")
		}
	}
	if faults := r.Faults(); len(faults) != 1 || faults[0].Name != "frame:com" {
		t.Fatalf("faults = %+v", faults)
	}
}

func TestRingTracerFaults(t *testing.T) {
	r := NewRingTracer(8, LevelError)
	Point(r, ScopeProxy, "calculate", "")
	Fault(r, ScopeFrame, "frame:com", errors.New("class not found"), map[string]string{"strategy": "module"})
	faults := r.Faults()
	if len(faults) != 1 {
		t.Fatalf("faults = %d, want 1", len(faults))
	}
	if faults[0].Detail != "class not found" || faults[0].Extra["strategy"] != "module" {
		t.Errorf("fault = %+v", faults[0])
	}
	if len(r.Snapshot()) != 1 {
		t.Error("point event must be filtered at error level")
	}
}

func TestStreamTracerText(t *testing.T) {
	var buf bytes.Buffer
	st := NewStreamTracer(&buf, LevelInfo, FormatText)
	span := Begin(st, ScopeProxy, "calculate", 0)
	span.WithExtra("frames", "12").End("ok")
	Point(st, ScopeFrame, "frame", "filtered")

	out := buf.String()
	if !strings.Contains(out, "→ proxy calculate") {
		t.Errorf("missing begin line:\n%s", out)
	}
	if !strings.Contains(out, "← proxy calculate (ok) {elapsed=") || !strings.Contains(out, "frames=12}") {
		t.Errorf("missing end line:\n%s", out)
	}
	if strings.Contains(out, "filtered") {
		t.Errorf("frame scope must be filtered at info level:\n%s", out)
	}
}

func TestStreamTracerNDJSON(t *testing.T) {
	var buf bytes.Buffer
	st := NewStreamTracer(&buf, LevelDebug, FormatNDJSON)
	Fault(st, ScopeFrame, "frame:x", errors.New("boom"), nil)
	line := buf.String()
	for _, want := range []string{`"kind":"fault"`, `"scope":"frame"`, `"detail":"boom"`} {
		if !strings.Contains(line, want) {
			t.Errorf("missing %s in %s", want, line)
		}
	}
	if !strings.HasSuffix(line, "\n") {
		t.Error("ndjson line must end with newline")
	}
}

func TestMultiTracer(t *testing.T) {
	a := NewRingTracer(4, LevelDebug)
	b := NewRingTracer(4, LevelDebug)
	m := NewMultiTracer(LevelInfo, a, b, Nop, nil)
	Point(m, ScopeProcess, "detect", "")
	m.Emit(&Event{Kind: KindPoint, Scope: ScopeFrame, Name: "filtered"})
	if len(a.Snapshot()) != 1 || len(b.Snapshot()) != 1 {
		t.Errorf("fan-out = %d/%d, want 1/1", len(a.Snapshot()), len(b.Snapshot()))
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNewNopWhenOff(t *testing.T) {
	tr, err := New(Config{Level: LevelOff, Mode: ModeStream})
	if err != nil {
		t.Fatal(err)
	}
	if tr.Enabled() {
		t.Error("off level must give a disabled tracer")
	}
	if Begin(tr, ScopeProxy, "x", 0).End("") != 0 {
		t.Error("inert span must report zero duration")
	}
}

func TestContextPropagation(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Error("empty context must yield Nop")
	}
	r := NewRingTracer(1, LevelDebug)
	ctx := WithTracer(context.Background(), r)
	if FromContext(ctx) != Tracer(r) {
		t.Error("tracer not propagated")
	}
}

func TestHeartbeatStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRingTracer(64, LevelError)
	h := StartHeartbeat(context.Background(), r, time.Millisecond)
	if h == nil {
		t.Fatal("heartbeat not started")
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(r.Snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	h.Stop()
	h.Stop()
	if len(r.Snapshot()) == 0 {
		t.Error("no heartbeat emitted")
	}
	if StartHeartbeat(context.Background(), Nop, time.Millisecond) != nil {
		t.Error("disabled tracer must not start a heartbeat")
	}
}

func TestLogrTracer(t *testing.T) {
	var lines []string
	log := funcr.New(func(prefix, args string) {
		lines = append(lines, prefix+" "+args)
	}, funcr.Options{Verbosity: 3})

	lt := NewLogrTracer(log, LevelDebug)
	Fault(lt, ScopeFrame, "frame:com", errors.New("no such package"), nil)
	Point(lt, ScopeProcess, "detect", "module,path")

	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "no such package") || !strings.Contains(lines[0], "pkgtrace") {
		t.Errorf("fault line = %s", lines[0])
	}
	if !strings.Contains(lines[1], "module,path") {
		t.Errorf("point line = %s", lines[1])
	}
}
