package packaging

import (
	"errors"
	"path"
	"strings"
)

// ErrUnknown is returned by a strategy that ran but found no provenance.
var ErrUnknown = errors.New("packaging data unknown")

// ClassRef identifies the code being resolved: the package declaring a
// frame's function and the source file the frame points at.
type ClassRef struct {
	Package string
	File    string
}

// Strategy resolves provenance for one class reference.
//
// Resolve returns ErrUnknown when it has no answer. Any other error, or a
// panic, is a fault; callers must contain both.
type Strategy interface {
	Name() string
	Resolve(ref ClassRef, l *Loader) (Data, error)
}

// isStdPackage reports whether pkg looks like a standard library import path:
// its first element carries no dot.
func isStdPackage(pkg string) bool {
	if pkg == "" {
		return false
	}
	first, _, _ := strings.Cut(pkg, "/")
	return !strings.Contains(first, ".")
}

func cacheKey(ref ClassRef) string {
	dir := path.Dir(strings.ReplaceAll(ref.File, `\`, "/"))
	return ref.Package + "\x00" + dir
}
