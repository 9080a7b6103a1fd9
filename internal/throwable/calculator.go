package throwable

import (
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"pkgtrace/internal/packaging"
	"pkgtrace/internal/trace"
)

// Calculator fills the packaging slots of proxy frames.
type Calculator struct {
	loader   *packaging.Loader
	enabled  bool
	tracer   trace.Tracer
	registry func(*packaging.Loader) *packaging.Registry

	resolved atomic.Uint64
	faults   atomic.Uint64
}

// CalculatorOption configures a Calculator.
type CalculatorOption func(*Calculator)

// CalcLoader sets the fallback loader. The default is the process loader.
func CalcLoader(l *packaging.Loader) CalculatorOption {
	return func(c *Calculator) { c.loader = l }
}

// CalcEnabled switches resolution on or off. A disabled calculator touches
// nothing.
func CalcEnabled(on bool) CalculatorOption {
	return func(c *Calculator) { c.enabled = on }
}

// CalcTracer sets the tracer receiving spans and fault events.
func CalcTracer(t trace.Tracer) CalculatorOption {
	return func(c *Calculator) { c.tracer = t }
}

// CalcRegistry replaces the loader to registry lookup.
func CalcRegistry(fn func(*packaging.Loader) *packaging.Registry) CalculatorOption {
	return func(c *Calculator) { c.registry = fn }
}

// NewCalculator returns an enabled calculator.
func NewCalculator(opts ...CalculatorOption) *Calculator {
	c := &Calculator{enabled: true}
	for _, opt := range opts {
		opt(c)
	}
	if c.loader == nil {
		c.loader = packaging.ProcessLoader()
	}
	if c.tracer == nil {
		c.tracer = trace.Nop
	}
	if c.registry == nil {
		c.registry = packaging.RegistryFor
	}
	return c
}

// Enabled reports whether Calculate does any work.
func (c *Calculator) Enabled() bool { return c != nil && c.enabled }

// CalcStats counts frame resolutions performed by a calculator.
type CalcStats struct {
	Resolved uint64
	Faults   uint64
}

// Stats returns the calculator's counters.
func (c *Calculator) Stats() CalcStats {
	return CalcStats{Resolved: c.resolved.Load(), Faults: c.faults.Load()}
}

// Calculate resolves every empty frame slot of p, its suppressed proxies and
// its cause chain. Frames already resolved are left alone. Failures never
// escape: a faulting frame is marked unavailable.
func (c *Calculator) Calculate(p *Proxy) {
	if !c.Enabled() || p == nil {
		return
	}
	span := trace.Begin(c.tracer, trace.ScopeProxy, "calculate", 0)
	var frames, faults int
	p.Walk(func(q *Proxy) {
		for _, f := range q.frames {
			if f == nil || f.PackagingData() != nil {
				continue
			}
			d, ok := c.resolveFrame(f, q)
			if f.setPackagingData(d) {
				frames++
				c.resolved.Add(1)
			}
			if !ok {
				faults++
			}
		}
	})
	span.WithExtra("frames", strconv.Itoa(frames)).
		WithExtra("faults", strconv.Itoa(faults)).
		End(p.ClassName)
}

// loaderFor picks the frame's hint, then the proxy's loader, then the
// calculator's own.
func (c *Calculator) loaderFor(f *Frame, owner *Proxy) *packaging.Loader {
	if f.loader != nil {
		return f.loader
	}
	if owner.loader != nil {
		return owner.loader
	}
	return c.loader
}

func (c *Calculator) resolveFrame(f *Frame, owner *Proxy) (d packaging.Data, ok bool) {
	l := c.loaderFor(f, owner)
	ref := f.ClassRef()
	defer func() {
		if r := recover(); r != nil {
			c.fault(f, l, "", fmt.Errorf("panic: %v", r))
			d, ok = packaging.Unavailable, false
		}
	}()

	reg := c.registry(l)
	ok = true
	d = reg.Cache().Resolve(ref, func() packaging.Data {
		return c.lookup(reg, ref, l, func(strategy string, err error) {
			ok = false
			c.fault(f, l, strategy, err)
		})
	})
	if c.tracer.Level().ShouldEmit(trace.ScopeFrame) {
		trace.Point(c.tracer, trace.ScopeFrame, "frame:"+ref.Package, d.String())
	}
	return d, ok
}

// lookup tries each strategy in order. The first answer wins. ErrUnknown
// moves on silently; any other error or panic is passed to onFault and the
// next strategy is tried. Nothing found yields Unavailable.
func (c *Calculator) lookup(reg *packaging.Registry, ref packaging.ClassRef, l *packaging.Loader, onFault func(strategy string, err error)) packaging.Data {
	d := packaging.Unavailable
	reg.Each(func(s packaging.Strategy) bool {
		data, err := tryStrategy(s, ref, l)
		switch {
		case err == nil:
			d = data
			return false
		case !errors.Is(err, packaging.ErrUnknown):
			onFault(s.Name(), err)
		}
		return true
	})
	return d
}

func tryStrategy(s packaging.Strategy, ref packaging.ClassRef, l *packaging.Loader) (d packaging.Data, err error) {
	defer func() {
		if r := recover(); r != nil {
			d, err = packaging.Data{}, fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Resolve(ref, l)
}

func (c *Calculator) fault(f *Frame, l *packaging.Loader, strategy string, err error) {
	c.faults.Add(1)
	extra := map[string]string{
		"function": f.Function,
		"loader":   l.String(),
	}
	if strategy != "" {
		extra["strategy"] = strategy
	}
	trace.Fault(c.tracer, trace.ScopeFrame, "frame:"+f.Package(), err, extra)
}
