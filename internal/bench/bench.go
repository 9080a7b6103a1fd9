// Package bench measures the cost of packaging data calculation against
// plain error capture.
package bench

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"pkgtrace/internal/observ"
	"pkgtrace/internal/throwable"
	"pkgtrace/internal/trace"
)

// progressEvery is how many iterations pass between progress events and
// cancellation checks.
const progressEvery = 64

// Config controls Run.
type Config struct {
	Iterations int     // measured iterations per loop
	Warmup     int     // iterations per loop before measuring; defaults to Iterations
	Slack      float64 // allowed ratio; 0 means DefaultSlack
	// Calculator resolves frames in the packaging loop. Nil uses an enabled
	// calculator on the process loader.
	Calculator *throwable.Calculator
	Tracer     trace.Tracer
	Heartbeat  time.Duration
	Progress   Sink
}

// Result is the outcome of one Run.
type Result struct {
	Without time.Duration // mean cost of capturing one error
	With    time.Duration // mean cost of capturing and calculating one error
	Ratio   float64
	Slack   float64
	OK      bool
	Report  observ.Report
}

// String renders the two measurements and the verdict.
func (r Result) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "without packaging info %.3f microseconds\n", micros(r.Without))
	fmt.Fprintf(&sb, "with    packaging info %.3f microseconds\n", micros(r.With))
	verdict := "ok"
	if !r.OK {
		verdict = "over budget"
	}
	fmt.Fprintf(&sb, "ratio %.2f, slack %.1f: %s\n", r.Ratio, r.Slack, verdict)
	return sb.String()
}

// DefaultSlack returns the allowed ratio for the running toolchain: 8, or 10
// on runtimes known to be slower at stack and symbol lookup.
func DefaultSlack() float64 {
	switch {
	case runtime.Compiler == "gccgo", runtime.GOOS == "js", runtime.GOOS == "wasip1", raceEnabled:
		return 10
	default:
		return 8
	}
}

// Run warms both loops up, then measures them. The calculation must cost less
// than Slack times plain capture.
func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.Iterations <= 0 {
		return Result{}, fmt.Errorf("iterations must be > 0, got %d", cfg.Iterations)
	}
	if cfg.Warmup <= 0 {
		cfg.Warmup = cfg.Iterations
	}
	if cfg.Slack <= 0 {
		cfg.Slack = DefaultSlack()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = trace.Nop
	}
	if cfg.Calculator == nil {
		cfg.Calculator = throwable.NewCalculator(throwable.CalcTracer(cfg.Tracer))
	}
	if cfg.Progress == nil {
		cfg.Progress = nopSink{}
	}
	if !cfg.Calculator.Enabled() {
		return Result{}, fmt.Errorf("packaging calculation is disabled")
	}

	hb := trace.StartHeartbeat(ctx, cfg.Tracer, cfg.Heartbeat)
	defer hb.Stop()

	r := &runner{cfg: cfg, timer: observ.NewTimer()}
	for _, st := range Stages {
		cfg.Progress.Emit(Event{Stage: st, Status: StatusQueued, Total: r.total(st)})
	}

	if err := r.stage(ctx, StageWarmup, func(i int) {
		r.op(i%2 == 1)
	}); err != nil {
		return Result{}, err
	}
	without, err := r.measure(ctx, StageBaseline, false)
	if err != nil {
		return Result{}, err
	}
	with, err := r.measure(ctx, StagePackaging, true)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Without: without,
		With:    with,
		Slack:   cfg.Slack,
		Report:  r.timer.Report(),
	}
	if without > 0 {
		res.Ratio = float64(with) / float64(without)
	}
	res.OK = float64(without)*cfg.Slack > float64(with)
	trace.Point(cfg.Tracer, trace.ScopeProcess, "bench", fmt.Sprintf("ratio=%.2f ok=%t", res.Ratio, res.OK))
	return res, nil
}

type runner struct {
	cfg   Config
	timer *observ.Timer
	last  *throwable.Proxy // keeps the proxy alive across iterations
}

func (r *runner) total(st Stage) int {
	if st == StageWarmup {
		return 2 * r.cfg.Warmup
	}
	return r.cfg.Iterations
}

// op captures a fresh error and optionally resolves its frames.
func (r *runner) op(withPackaging bool) {
	p := throwable.New(throwable.Capture("testing"))
	if withPackaging {
		r.cfg.Calculator.Calculate(p)
	}
	r.last = p
}

func (r *runner) measure(ctx context.Context, st Stage, withPackaging bool) (time.Duration, error) {
	idx := r.timer.Begin(st.String())
	if err := r.stage(ctx, st, func(int) { r.op(withPackaging) }); err != nil {
		return 0, err
	}
	phase := r.timer.End(idx, r.cfg.Iterations, "")
	return phase.PerOp(), nil
}

func (r *runner) stage(ctx context.Context, st Stage, fn func(i int)) error {
	total := r.total(st)
	span := trace.Begin(r.cfg.Tracer, trace.ScopeProcess, "bench:"+st.String(), 0)
	r.cfg.Progress.Emit(Event{Stage: st, Status: StatusWorking, Total: total})
	for i := 0; i < total; i++ {
		if i%progressEvery == 0 {
			if err := ctx.Err(); err != nil {
				r.cfg.Progress.Emit(Event{Stage: st, Status: StatusError, Done: i, Total: total})
				span.End("cancelled")
				return err
			}
			r.cfg.Progress.Emit(Event{Stage: st, Status: StatusWorking, Done: i, Total: total})
		}
		fn(i)
	}
	r.cfg.Progress.Emit(Event{Stage: st, Status: StatusDone, Done: total, Total: total})
	span.WithExtra("iterations", strconv.Itoa(total)).End("")
	return nil
}

func micros(d time.Duration) float64 {
	return float64(d) / float64(time.Microsecond)
}
