package throwable

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"

	"pkgtrace/internal/packaging"
)

// maxChainDepth bounds cause and suppressed nesting.
const maxChainDepth = 64

// Proxy is a captured error: its own frames plus proxies for its causes.
// A Proxy tree is safe for concurrent use once built.
type Proxy struct {
	ClassName string
	Message   string
	// CommonFrames counts trailing frames shared with the enclosing proxy.
	CommonFrames int

	frames     []*Frame
	cause      *Proxy
	suppressed []*Proxy
	loader     *packaging.Loader

	root     *Proxy
	calcOnce sync.Once
	calc     *Calculator
}

type options struct {
	loader *packaging.Loader
	skip   int
	calc   *Calculator
}

// Option configures New.
type Option func(*options)

// WithLoader sets the loader used for every proxy of the tree.
func WithLoader(l *packaging.Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithSkip skips extra frames of the New call site stack.
func WithSkip(n int) Option {
	return func(o *options) { o.skip = n }
}

// WithCalculator makes the tree share c instead of a lazily created one.
func WithCalculator(c *Calculator) Option {
	return func(o *options) { o.calc = c }
}

// New builds the proxy tree of err. Errors implementing Stacker contribute
// their recorded frames; if err itself recorded none, the stack of the New
// call site is used. Unwrap() error yields the cause, Unwrap() []error
// yields the cause followed by suppressed errors. It returns nil for a nil
// error.
func New(err error, opts ...Option) *Proxy {
	if err == nil {
		return nil
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	b := &builder{loader: o.loader, seen: make(map[error]struct{})}
	b.visit(err)
	root := b.build(err, nil, 0, callers(3+o.skip))
	root.calc = o.calc
	return root
}

type builder struct {
	loader *packaging.Loader
	seen   map[error]struct{}
	root   *Proxy
}

func (b *builder) build(err error, enclosing *Proxy, depth int, site []uintptr) *Proxy {
	p := &Proxy{
		ClassName: fmt.Sprintf("%T", err),
		loader:    b.loader,
		root:      b.root,
	}
	if b.root == nil {
		b.root = p
	}

	pcs, ok := stackOf(err)
	if !ok {
		pcs = site
	}
	p.frames = framesOf(pcs)
	if enclosing != nil {
		p.CommonFrames = commonFrames(p.frames, enclosing.frames)
	}

	cause, suppressed := unwrapErr(err)
	p.Message = messageOf(err, cause, suppressed)
	if depth+1 >= maxChainDepth {
		return p
	}
	if cause != nil && b.visit(cause) {
		p.cause = b.build(cause, p, depth+1, nil)
	}
	for _, s := range suppressed {
		if b.visit(s) {
			p.suppressed = append(p.suppressed, b.build(s, p, depth+1, nil))
		}
	}
	return p
}

// visit records err and reports whether it was new. Only pointer errors can
// close a cycle, so only they are tracked.
func (b *builder) visit(err error) bool {
	if reflect.TypeOf(err).Kind() != reflect.Pointer {
		return true
	}
	if _, dup := b.seen[err]; dup {
		return false
	}
	b.seen[err] = struct{}{}
	return true
}

func unwrapErr(err error) (cause error, suppressed []error) {
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		var errs []error
		for _, e := range u.Unwrap() {
			if e != nil {
				errs = append(errs, e)
			}
		}
		if len(errs) == 0 {
			return nil, nil
		}
		return errs[0], errs[1:]
	case interface{ Unwrap() error }:
		return u.Unwrap(), nil
	}
	return nil, nil
}

// messageOf strips the text its causes contribute to err's message.
func messageOf(err, cause error, suppressed []error) string {
	if m, ok := err.(interface{ Message() string }); ok {
		return m.Message()
	}
	msg := err.Error()
	if cause == nil {
		return msg
	}
	if len(suppressed) == 0 {
		return strings.TrimSuffix(msg, ": "+cause.Error())
	}
	parts := make([]string, 0, len(suppressed)+1)
	parts = append(parts, cause.Error())
	for _, s := range suppressed {
		parts = append(parts, s.Error())
	}
	if msg == strings.Join(parts, "\n") {
		return ""
	}
	return msg
}

func framesOf(pcs []uintptr) []*Frame {
	if len(pcs) == 0 {
		return nil
	}
	out := make([]*Frame, 0, len(pcs))
	it := runtime.CallersFrames(pcs)
	for {
		fr, more := it.Next()
		out = append(out, NewFrame(Element{Function: fr.Function, File: fr.File, Line: fr.Line}))
		if !more {
			break
		}
	}
	return out
}

func commonFrames(frames, enclosing []*Frame) int {
	n := 0
	for i, j := len(frames)-1, len(enclosing)-1; i >= 0 && j >= 0; i, j = i-1, j-1 {
		if frames[i].Element != enclosing[j].Element {
			break
		}
		n++
	}
	return n
}

// Frames returns the proxy's frames, innermost first. The slice is shared:
// elements may be replaced before the proxy is calculated.
func (p *Proxy) Frames() []*Frame { return p.frames }

// Cause returns the proxy of the error's cause, or nil.
func (p *Proxy) Cause() *Proxy { return p.cause }

// Suppressed returns the proxies of the additional joined errors.
func (p *Proxy) Suppressed() []*Proxy { return p.suppressed }

// Loader returns the loader the proxy was built with, or nil.
func (p *Proxy) Loader() *packaging.Loader { return p.loader }

// Walk calls fn for p and every proxy below it: suppressed proxies first,
// then the cause chain.
func (p *Proxy) Walk(fn func(*Proxy)) {
	if p == nil {
		return
	}
	fn(p)
	for _, s := range p.suppressed {
		s.Walk(fn)
	}
	p.cause.Walk(fn)
}

// Calculator returns the calculator shared by the whole tree, creating a
// default one on first use.
func (p *Proxy) Calculator() *Calculator {
	r := p
	if p.root != nil {
		r = p.root
	}
	r.calcOnce.Do(func() {
		if r.calc == nil {
			r.calc = NewCalculator()
		}
	})
	return r.calc
}

// FullDump calculates the tree and renders it.
func (p *Proxy) FullDump() string {
	return p.Calculator().FullDump(p)
}
