package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"pkgtrace/internal/packaging"
	"pkgtrace/internal/throwable"
	"pkgtrace/internal/trace"
)

const (
	formatText = "text"
)

// newCalculator builds a calculator honouring [packaging].enabled and the
// tracer on ctx. A nil loader means the process loader.
func newCalculator(ctx context.Context, loader *packaging.Loader, enabled bool) *throwable.Calculator {
	opts := []throwable.CalculatorOption{
		throwable.CalcEnabled(enabled),
		throwable.CalcTracer(trace.FromContext(ctx)),
	}
	if loader != nil {
		opts = append(opts, throwable.CalcLoader(loader))
	}
	return throwable.NewCalculator(opts...)
}

func readOutputFormat(value string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(value)); f {
	case "", formatText:
		return formatText, nil
	case throwable.EncodingJSON, throwable.EncodingMsgpack:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q (must be text, json or msgpack)", value)
	}
}

// writeProxies calculates and renders each proxy. Text output separates
// proxies with a blank line; snapshot encodings write one document per proxy.
func writeProxies(w io.Writer, calc *throwable.Calculator, proxies []*throwable.Proxy, format string, colored bool) error {
	for i, p := range proxies {
		if format == formatText {
			if i > 0 {
				if _, err := fmt.Fprintln(w); err != nil {
					return err
				}
			}
			if err := calc.WriteDump(w, p, throwable.DumpOptions{Color: colored}); err != nil {
				return err
			}
			continue
		}
		calc.Calculate(p)
		if err := throwable.EncodeSnapshot(w, p.Snapshot(), format); err != nil {
			return err
		}
	}
	return nil
}
