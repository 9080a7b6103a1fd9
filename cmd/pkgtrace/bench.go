package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pkgtrace/internal/bench"
	"pkgtrace/internal/prof"
	"pkgtrace/internal/trace"
)

var (
	benchIterations int
	benchWarmup     int
	benchSlack      float64
	benchUI         string
	benchTimings    bool
	benchProf       prof.Options
)

func init() {
	benchCmd.Flags().IntVar(&benchIterations, "iterations", 0, "measured iterations per loop (default from config)")
	benchCmd.Flags().IntVar(&benchWarmup, "warmup", 0, "warmup iterations per loop (default from config)")
	benchCmd.Flags().Float64Var(&benchSlack, "slack", 0, "allowed cost ratio (0 uses the platform default)")
	benchCmd.Flags().StringVar(&benchUI, "ui", "auto", "progress UI (auto|on|off)")
	benchCmd.Flags().BoolVar(&benchTimings, "timings", false, "print per-stage timings")
	benchCmd.Flags().StringVar(&benchProf.CPU, "cpu-profile", "", "write CPU profile to file")
	benchCmd.Flags().StringVar(&benchProf.Mem, "mem-profile", "", "write heap profile to file")
	benchCmd.Flags().StringVar(&benchProf.Exec, "runtime-trace", "", "write runtime execution trace to file")
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Check that packaging data calculation stays within its cost budget",
	Long: `Time capturing an error with and without calculating packaging data for
its frames. The command fails when the calculation costs more than the
allowed multiple of plain capture.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationHeartbeat: heartbeatOwn},
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := readUIMode(benchUI)
		if err != nil {
			return err
		}
		cfg := benchConfig(cmd.Context())
		if cmd.Flags().Changed("iterations") {
			cfg.Iterations = benchIterations
		}
		if cmd.Flags().Changed("warmup") {
			cfg.Warmup = benchWarmup
		}
		if cmd.Flags().Changed("slack") {
			cfg.Slack = benchSlack
		}

		session, err := prof.Start(benchProf)
		if err != nil {
			return fmt.Errorf("failed to start profiling: %w", err)
		}

		var res bench.Result
		if shouldUseTUI(mode) {
			res, err = runBenchWithUI(cmd.Context(), "pkgtrace bench", cfg)
		} else {
			res, err = bench.Run(cmd.Context(), cfg)
		}
		if stopErr := session.Stop(); stopErr != nil {
			app.log.Error(stopErr, "failed to write profiles")
		}
		if err != nil {
			return err
		}
		return reportBench(cmd.OutOrStdout(), res, benchTimings)
	},
}

// benchConfig builds the run configuration from [bench], [packaging] and the
// resolved trace heartbeat.
func benchConfig(ctx context.Context) bench.Config {
	tracer := trace.FromContext(ctx)
	return bench.Config{
		Iterations: app.cfg.Bench.Iterations,
		Warmup:     app.cfg.Bench.Warmup,
		Slack:      app.cfg.Bench.Slack,
		Calculator: newCalculator(ctx, nil, app.cfg.Packaging.Enabled),
		Tracer:     tracer,
		Heartbeat:  app.heartbeat,
	}
}

func reportBench(out io.Writer, res bench.Result, timings bool) error {
	if _, err := io.WriteString(out, res.String()); err != nil {
		return err
	}
	if timings {
		if _, err := io.WriteString(out, res.Report.String()); err != nil {
			return err
		}
	}
	if !res.OK {
		return fmt.Errorf("packaging data calculation over budget: %.2fx plain capture, allowed %.1fx", res.Ratio, res.Slack)
	}
	return nil
}
