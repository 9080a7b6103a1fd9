// Package throwable captures errors as proxy trees of stack frames and
// fills each frame with packaging data: the module and version that
// supplied the frame's package.
//
// A Proxy is built once with New (or Parse for textual tracebacks) and then
// handed to a Calculator, which consults the strategy registry of the
// frame's loader. Resolution is idempotent and never fails the caller.
package throwable
