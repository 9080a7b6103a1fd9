// Package fuzztests houses Go fuzz harnesses for traceback parsing and
// packaging resolution. They guard against panics, hangs and empty frame
// slots on arbitrary input.
//
// The seeds come from testdata/tracebacks at the repository root.
package fuzztests
