package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pkgtrace/internal/throwable"
)

var (
	dumpDepth  int
	dumpFormat string
	dumpBogus  bool
)

func init() {
	dumpCmd.Flags().IntVar(&dumpDepth, "depth", 3, "number of nested causes")
	dumpCmd.Flags().StringVar(&dumpFormat, "format", formatText, "output format (text|json|msgpack)")
	dumpCmd.Flags().BoolVar(&dumpBogus, "bogus", false, "replace the top frame with one no loader can place")
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Capture a nested error in-process and print it with packaging data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := readOutputFormat(dumpFormat)
		if err != nil {
			return err
		}
		return runDump(cmd.Context(), cmd.OutOrStdout(), dumpOptions{depth: dumpDepth, format: format, bogus: dumpBogus})
	},
}

type dumpOptions struct {
	depth  int
	format string
	bogus  bool
}

func runDump(ctx context.Context, out io.Writer, opts dumpOptions) error {
	if opts.depth < 0 {
		return fmt.Errorf("--depth must be >= 0, got %d", opts.depth)
	}
	calc := newCalculator(ctx, nil, app.cfg.Packaging.Enabled)
	p := throwable.New(nestedError(opts.depth), throwable.WithCalculator(calc))
	if opts.bogus {
		bogusTop(p)
	}
	return writeProxies(out, calc, []*throwable.Proxy{p}, opts.format, app.color)
}

// nestedError returns a chain of depth wrappers around a captured root.
func nestedError(depth int) error {
	if depth == 0 {
		return throwable.Capture("nesting level 0")
	}
	return throwable.Wrap(nestedError(depth-1), fmt.Sprintf("nesting level %d", depth))
}

// bogusTop swaps the innermost frame of the root cause for a frame in a
// package no build info knows about.
func bogusTop(p *throwable.Proxy) {
	for p.Cause() != nil {
		p = p.Cause()
	}
	frames := p.Frames()
	if len(frames) == 0 {
		return
	}
	frames[0] = throwable.NewFrame(throwable.Element{Function: "com.Bogus.myMethod", File: "myFile", Line: 12})
}
