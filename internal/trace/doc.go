// Package trace provides the status event channel of the packaging subsystem.
//
// Resolution never fails loudly: strategies that fault are contained and the
// affected frame is marked unavailable. The trace package is where those
// contained failures, and the detection decisions behind them, become visible.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	pkgtrace dump --trace=- --trace-level=detail
//
// # Architecture
//
// The package provides several tracer implementations:
//
//   - Nop: zero-overhead no-op tracer when disabled
//   - StreamTracer: immediate write to output (file/stderr)
//   - RingTracer: circular buffer for post-mortem dumps
//   - MultiTracer: combines multiple tracers
//   - LogrTracer: forwards events to a logr.Logger
//
// # Levels
//
//   - LevelOff: No tracing
//   - LevelError: Only faults
//   - LevelInfo: Registry detection and per-proxy calculation
//   - LevelDetail: Adds cache statistics
//   - LevelDebug: Everything including per-frame resolution
//
// # Scopes
//
//   - ScopeProcess: process-wide work (strategy detection)
//   - ScopeProxy: one exception proxy and its cause chain
//   - ScopeFrame: one stack frame
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopeProxy, "calculate", 0)
//	defer span.End("")
package trace
