package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"pkgtrace/internal/config"
	"pkgtrace/internal/trace"
)

// Commands annotated with heartbeat=own start their own heartbeat from
// app.heartbeat instead of the process-wide one.
const (
	annotationHeartbeat = "heartbeat"
	heartbeatOwn        = "own"
)

// setupTracing merges the trace flags over the [trace] section and
// initializes the tracer. It returns a cleanup function and an error if
// initialization fails.
func setupTracing(cmd *cobra.Command) (func(), error) {
	settings, err := traceSettings(cmd.Root().PersistentFlags(), app.cfg)
	if err != nil {
		return nil, err
	}
	settings.Logger = app.log.WithName("trace")
	app.heartbeat = settings.Heartbeat

	if settings.Level == trace.LevelOff {
		setTracer(cmd, trace.Nop)
		return func() {}, nil
	}

	tracer, err := trace.New(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	setTracer(cmd, tracer)

	var heartbeat *trace.Heartbeat
	if cmd.Annotations[annotationHeartbeat] != heartbeatOwn {
		heartbeat = trace.StartHeartbeat(cmd.Context(), tracer, settings.Heartbeat)
	}

	cleanup := func() {
		// Stop heartbeat first
		heartbeat.Stop()

		dumpRingFaults(cmd.ErrOrStderr(), tracer)
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}
	return cleanup, nil
}

// traceSettings applies flags that were set explicitly on top of cfg.
func traceSettings(flags *pflag.FlagSet, cfg config.Config) (trace.Config, error) {
	tc := cfg.Trace
	if flags.Changed("trace") {
		tc.Output, _ = flags.GetString("trace")
		if !flags.Changed("trace-level") && (tc.Level == "" || tc.Level == "off") {
			// --trace alone turns tracing on.
			tc.Level = "info"
		}
	}
	if flags.Changed("trace-level") {
		tc.Level, _ = flags.GetString("trace-level")
	}
	if flags.Changed("trace-mode") {
		tc.Mode, _ = flags.GetString("trace-mode")
	}
	if flags.Changed("trace-format") {
		tc.Format, _ = flags.GetString("trace-format")
	}
	if flags.Changed("trace-ring-size") {
		tc.RingSize, _ = flags.GetInt("trace-ring-size")
	}
	if flags.Changed("trace-heartbeat") {
		hb, _ := flags.GetDuration("trace-heartbeat")
		tc.Heartbeat = hb.String()
	}
	cfg.Trace = tc
	settings, err := cfg.TraceSettings()
	if err != nil {
		return trace.Config{}, fmt.Errorf("invalid trace settings: %w", err)
	}
	return settings, nil
}

func setTracer(cmd *cobra.Command, tracer trace.Tracer) {
	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)
	cmd.Root().SetContext(ctx)
}

// dumpRingFaults writes the ring buffer when it recorded faults, so that a
// ring-only run still leaves a post-mortem.
func dumpRingFaults(w io.Writer, tracer trace.Tracer) {
	ring, ok := tracer.(*trace.RingTracer)
	if !ok || len(ring.Faults()) == 0 {
		return
	}
	fmt.Fprintln(w, "trace: faults recorded, dumping ring buffer")
	if err := ring.Dump(w, trace.FormatText); err != nil {
		fmt.Fprintf(w, "trace: dump error: %v\n", err)
	}
}
