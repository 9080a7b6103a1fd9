package packaging

import (
	"debug/buildinfo"
	"errors"
	"fmt"
	"go/build"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
)

// ErrNoBuildInfo is returned by loaders that have no module build metadata.
var ErrNoBuildInfo = errors.New("no build info")

var (
	// readBuildInfo is a test seam for debug.ReadBuildInfo.
	readBuildInfo = debug.ReadBuildInfo
	statDir       = os.Stat

	processLoaderOnce sync.Once
	processLoader     *Loader
)

// LoaderError reports a failure while a loader's metadata was consulted.
type LoaderError struct {
	Loader string
	Op     string
	Err    error
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("loader %s: %s: %v", e.Loader, e.Op, e.Err)
}

func (e *LoaderError) Unwrap() error { return e.Err }

// Module is one entry of a loader's module table.
type Module struct {
	Path    string
	Version string
	Main    bool
	// Replacement is the module path or directory the module was replaced
	// with, if any.
	Replacement string
}

// Loader is a named view of build metadata.
type Loader struct {
	name   string
	parent *Loader
	source func() (*debug.BuildInfo, error)
	goroot string

	once    sync.Once
	info    *debug.BuildInfo
	err     error
	modules []Module // longest path first
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithBuildInfo makes the loader serve a fixed build info value.
func WithBuildInfo(info *debug.BuildInfo) LoaderOption {
	return func(l *Loader) {
		l.source = func() (*debug.BuildInfo, error) {
			if info == nil {
				return nil, ErrNoBuildInfo
			}
			return info, nil
		}
	}
}

// WithSource sets the function used to read build info. It is called at most once.
func WithSource(fn func() (*debug.BuildInfo, error)) LoaderOption {
	return func(l *Loader) { l.source = fn }
}

// WithParent sets the parent consulted after the loader itself.
func WithParent(parent *Loader) LoaderOption {
	return func(l *Loader) { l.parent = parent }
}

// WithGOROOT sets the Go installation root used to recognise std sources.
func WithGOROOT(dir string) LoaderOption {
	return func(l *Loader) { l.goroot = filepath.ToSlash(filepath.Clean(dir)) }
}

// NewLoader creates a loader. Without WithBuildInfo or WithSource the loader
// has no build metadata.
func NewLoader(name string, opts ...LoaderOption) *Loader {
	l := &Loader{name: name}
	for _, opt := range opts {
		opt(l)
	}
	if l.source == nil {
		l.source = func() (*debug.BuildInfo, error) { return nil, ErrNoBuildInfo }
	}
	return l
}

// ProcessLoader returns the loader describing the running binary.
func ProcessLoader() *Loader {
	processLoaderOnce.Do(func() {
		processLoader = newProcessLoader()
	})
	return processLoader
}

func newProcessLoader() *Loader {
	return NewLoader("process",
		WithSource(func() (*debug.BuildInfo, error) {
			info, ok := readBuildInfo()
			if !ok || info == nil {
				return nil, ErrNoBuildInfo
			}
			return info, nil
		}),
		WithGOROOT(DefaultGOROOT()),
	)
}

// LoaderFromBinary reads the build info embedded in the executable at path.
// The read happens eagerly so that unreadable binaries fail here rather than
// during resolution.
func LoaderFromBinary(path string) (*Loader, error) {
	info, err := buildinfo.ReadFile(path)
	if err != nil {
		return nil, &LoaderError{Loader: path, Op: "read build info", Err: err}
	}
	return NewLoader(filepath.Base(path), WithBuildInfo(info), WithGOROOT(DefaultGOROOT())), nil
}

// DefaultGOROOT returns $GOROOT, or the toolchain root this binary was built with.
func DefaultGOROOT() string {
	if dir := os.Getenv("GOROOT"); dir != "" {
		return dir
	}
	return build.Default.GOROOT
}

// Name returns the loader name.
func (l *Loader) Name() string {
	if l == nil {
		return ""
	}
	return l.name
}

// Parent returns the parent loader, or nil.
func (l *Loader) Parent() *Loader {
	if l == nil {
		return nil
	}
	return l.parent
}

// String implements fmt.Stringer.
func (l *Loader) String() string {
	if l == nil {
		return "<nil>"
	}
	if l.parent == nil {
		return l.name
	}
	return l.name + " <- " + l.parent.String()
}

// BuildInfo returns the loader's own build info.
func (l *Loader) BuildInfo() (*debug.BuildInfo, error) {
	if l == nil {
		return nil, ErrNoBuildInfo
	}
	l.once.Do(l.load)
	return l.info, l.err
}

func (l *Loader) load() {
	defer func() {
		if r := recover(); r != nil {
			l.info = nil
			l.err = &LoaderError{Loader: l.name, Op: "read build info", Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	info, err := l.source()
	if err != nil {
		if !errors.Is(err, ErrNoBuildInfo) {
			err = &LoaderError{Loader: l.name, Op: "read build info", Err: err}
		}
		l.err = err
		return
	}
	l.info = info
	l.modules = indexModules(info)
}

// HasModules reports whether any loader in the chain carries a module table.
// Loaders that fail are treated as having none.
func (l *Loader) HasModules() bool {
	for cur := l; cur != nil; cur = cur.parent {
		if _, err := cur.BuildInfo(); err == nil && len(cur.modules) > 0 {
			return true
		}
	}
	return false
}

// FindModule returns the module owning pkg, searching the loader first and
// then its parents. A failing loader aborts the search with its error.
func (l *Loader) FindModule(pkg string) (Module, bool, error) {
	for cur := l; cur != nil; cur = cur.parent {
		if _, err := cur.BuildInfo(); err != nil {
			if errors.Is(err, ErrNoBuildInfo) {
				continue
			}
			return Module{}, false, err
		}
		for _, m := range cur.modules {
			if pkg == m.Path || strings.HasPrefix(pkg, m.Path+"/") {
				return m, true, nil
			}
		}
	}
	return Module{}, false, nil
}

// MainModule returns the main module of the nearest loader that has one.
func (l *Loader) MainModule() (Module, bool) {
	for cur := l; cur != nil; cur = cur.parent {
		if _, err := cur.BuildInfo(); err != nil {
			continue
		}
		for _, m := range cur.modules {
			if m.Main {
				return m, true
			}
		}
	}
	return Module{}, false
}

// HasStdPackage reports whether pkg exists under GOROOT/src. Without a known
// GOROOT nothing can be confirmed and it reports false.
func (l *Loader) HasStdPackage(pkg string) bool {
	root := l.GOROOT()
	if root == "" {
		return false
	}
	fi, err := statDir(filepath.Join(filepath.FromSlash(root), "src", filepath.FromSlash(pkg)))
	return err == nil && fi.IsDir()
}

// GoVersion returns the toolchain version recorded by the nearest loader with
// build info, or the running toolchain's version.
func (l *Loader) GoVersion() string {
	for cur := l; cur != nil; cur = cur.parent {
		if info, err := cur.BuildInfo(); err == nil && info.GoVersion != "" {
			return info.GoVersion
		}
	}
	return runtime.Version()
}

// GOROOT returns the nearest configured Go installation root.
func (l *Loader) GOROOT() string {
	for cur := l; cur != nil; cur = cur.parent {
		if cur.goroot != "" {
			return cur.goroot
		}
	}
	return ""
}

func indexModules(info *debug.BuildInfo) []Module {
	if info == nil {
		return nil
	}
	mods := make([]Module, 0, len(info.Deps)+1)
	if info.Main.Path != "" {
		mods = append(mods, Module{
			Path:    info.Main.Path,
			Version: mainVersion(info),
			Main:    true,
		})
	}
	for _, dep := range info.Deps {
		if dep == nil || dep.Path == "" {
			continue
		}
		mods = append(mods, depModule(dep))
	}
	sort.SliceStable(mods, func(i, j int) bool {
		return len(mods[i].Path) > len(mods[j].Path)
	})
	return mods
}

func depModule(dep *debug.Module) Module {
	m := Module{Path: dep.Path, Version: dep.Version}
	if r := dep.Replace; r != nil {
		m.Replacement = r.Path
		m.Version = r.Version
		if m.Version == "" {
			// local directory replacement
			m.Version = "devel"
		}
	}
	if m.Version == "" {
		m.Version = "devel"
	}
	return m
}

func mainVersion(info *debug.BuildInfo) string {
	v := info.Main.Version
	if v != "" && v != "(devel)" {
		return v
	}
	v = "devel"
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			rev := s.Value
			if len(rev) > 12 {
				rev = rev[:12]
			}
			v += "+" + rev
			break
		}
	}
	return v
}
