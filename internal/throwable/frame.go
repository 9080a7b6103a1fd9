package throwable

import (
	"path"
	"strconv"
	"strings"
	"sync/atomic"

	"pkgtrace/internal/packaging"
)

// Element is one immutable stack element.
type Element struct {
	Function string // fully qualified, e.g. "example.com/m/pkg.(*T).M"
	File     string
	Line     int
}

// Package returns the import path of the package declaring the function.
func (e Element) Package() string {
	pkg, _ := splitFunction(e.Function)
	return pkg
}

// ClassName returns the package plus the receiver type, if the function is
// a method. Plain functions and closures report the package alone.
func (e Element) ClassName() string {
	pkg, rest := splitFunction(e.Function)
	recv, _ := splitReceiver(rest)
	switch {
	case recv == "":
		return pkg
	case pkg == "":
		return recv
	default:
		return pkg + "." + recv
	}
}

// MethodName returns the function name without package and receiver.
func (e Element) MethodName() string {
	_, rest := splitFunction(e.Function)
	_, method := splitReceiver(rest)
	return method
}

// String renders the element as "pkg.Func(file.go:12)".
func (e Element) String() string {
	fn := e.Function
	if fn == "" {
		fn = "unknown"
	}
	if e.File == "" {
		return fn + "(unknown source)"
	}
	return fn + "(" + path.Base(strings.ReplaceAll(e.File, `\`, "/")) + ":" + strconv.Itoa(e.Line) + ")"
}

// splitFunction splits a runtime function name into its package path and
// the remainder. Dots in the last path element are escaped by the linker as
// %2e.
func splitFunction(fn string) (pkg, rest string) {
	slash := strings.LastIndexByte(fn, '/')
	if slash < 0 {
		slash = 0
	}
	// Generic instantiations render as "F[...]"; the brackets never hold a slash.
	if br := strings.IndexByte(fn, '['); br >= 0 && br < slash {
		slash = strings.LastIndexByte(fn[:br], '/')
		if slash < 0 {
			slash = 0
		}
	}
	dot := strings.IndexByte(fn[slash:], '.')
	if dot < 0 {
		return "", fn
	}
	pkg = strings.ReplaceAll(fn[:slash+dot], "%2e", ".")
	return pkg, fn[slash+dot+1:]
}

// splitReceiver separates "(*T).M", "T.M" and "T[...].M" into receiver and
// method. Closure suffixes such as ".func1" or ".2" never count as methods.
func splitReceiver(rest string) (recv, method string) {
	if strings.HasPrefix(rest, "(") {
		if end := strings.Index(rest, ")."); end > 0 {
			return rest[:end+1], rest[end+2:]
		}
		return "", rest
	}
	first, tail, ok := cutOutsideBrackets(rest)
	if !ok || isClosureName(tail) {
		return "", rest
	}
	return first, tail
}

func cutOutsideBrackets(s string) (before, after string, found bool) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
		case '.':
			if depth == 0 {
				return s[:i], s[i+1:], true
			}
		}
	}
	return s, "", false
}

func isClosureName(s string) bool {
	first, _, _ := strings.Cut(s, ".")
	switch {
	case first == "":
		return true
	case strings.HasPrefix(first, "func"), strings.HasPrefix(first, "gowrap"), strings.HasPrefix(first, "deferwrap"):
		return true
	}
	_, err := strconv.Atoi(first)
	return err == nil
}

// Frame is a stack element plus its packaging slot.
type Frame struct {
	Element

	loader *packaging.Loader
	slot   atomic.Pointer[packaging.Data]
}

// NewFrame wraps e with an empty packaging slot.
func NewFrame(e Element) *Frame {
	return &Frame{Element: e}
}

// WithLoader sets the loader consulted first when resolving this frame.
// It must be called before the frame is shared.
func (f *Frame) WithLoader(l *packaging.Loader) *Frame {
	f.loader = l
	return f
}

// Loader returns the frame's loader hint, or nil.
func (f *Frame) Loader() *packaging.Loader { return f.loader }

// PackagingData returns the resolved data, or nil before resolution.
func (f *Frame) PackagingData() *packaging.Data {
	return f.slot.Load()
}

// setPackagingData fills the slot if it is still empty. It reports whether
// this call won.
func (f *Frame) setPackagingData(d packaging.Data) bool {
	return f.slot.CompareAndSwap(nil, &d)
}

// ClassRef returns what the calculator resolves for this frame.
func (f *Frame) ClassRef() packaging.ClassRef {
	return packaging.ClassRef{Package: f.Package(), File: f.File}
}
