package packaging

import (
	"errors"
	"io/fs"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func moduleInfo() *debug.BuildInfo {
	return &debug.BuildInfo{
		GoVersion: "go1.25.1",
		Path:      "example.com/app/cmd/app",
		Main:      debug.Module{Path: "example.com/app", Version: "(devel)"},
		Deps: []*debug.Module{
			{Path: "github.com/spf13/cobra", Version: "v1.10.1"},
			{Path: "github.com/spf13/cobra/extra", Version: "v0.3.0"},
			{Path: "example.com/forked", Version: "v1.0.0", Replace: &debug.Module{Path: "example.com/fork", Version: "v1.0.1"}},
			{Path: "example.com/local", Version: "v0.1.0", Replace: &debug.Module{Path: "../local"}},
		},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef0123"}},
	}
}

func TestDataString(t *testing.T) {
	tests := []struct {
		name string
		data Data
		want string
	}{
		{"exact", Data{CodeLocation: "github.com/spf13/cobra", Version: "v1.10.1", Exact: true}, "[github.com/spf13/cobra:v1.10.1]"},
		{"guessed", Data{CodeLocation: "std", Version: "go1.25.1"}, "~[std:go1.25.1]"},
		{"unavailable", Unavailable, "[na:na]"},
		{"missing version", Data{CodeLocation: "x", Exact: true}, "[x:na]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.data.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
	if Unavailable.IsAvailable() {
		t.Error("Unavailable must not be available")
	}
}

func TestLoaderFindModule(t *testing.T) {
	l := NewLoader("app", WithBuildInfo(moduleInfo()))
	tests := []struct {
		pkg    string
		want   Module
		wantOK bool
	}{
		{"github.com/spf13/cobra", Module{Path: "github.com/spf13/cobra", Version: "v1.10.1"}, true},
		{"github.com/spf13/cobra/doc", Module{Path: "github.com/spf13/cobra", Version: "v1.10.1"}, true},
		{"github.com/spf13/cobra/extra/x", Module{Path: "github.com/spf13/cobra/extra", Version: "v0.3.0"}, true},
		{"github.com/spf13/cobrax", Module{}, false},
		{"example.com/app/internal/db", Module{Path: "example.com/app", Version: "devel+0123456789ab", Main: true}, true},
		{"example.com/forked/sub", Module{Path: "example.com/forked", Version: "v1.0.1", Replacement: "example.com/fork"}, true},
		{"example.com/local", Module{Path: "example.com/local", Version: "devel", Replacement: "../local"}, true},
		{"fmt", Module{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.pkg, func(t *testing.T) {
			got, ok, err := l.FindModule(tt.pkg)
			if err != nil {
				t.Fatalf("FindModule: %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("module mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoaderParentChain(t *testing.T) {
	parent := NewLoader("parent", WithBuildInfo(moduleInfo()))
	child := NewLoader("plugin", WithParent(parent), WithBuildInfo(&debug.BuildInfo{
		Main: debug.Module{Path: "example.com/plugin", Version: "v0.2.0"},
	}))

	if got := child.String(); got != "plugin <- parent" {
		t.Errorf("String() = %q", got)
	}
	m, ok, err := child.FindModule("example.com/plugin/hooks")
	if err != nil || !ok || m.Version != "v0.2.0" {
		t.Fatalf("child module = %+v, %v, %v", m, ok, err)
	}
	m, ok, err = child.FindModule("github.com/spf13/cobra")
	if err != nil || !ok || m.Version != "v1.10.1" {
		t.Fatalf("parent module = %+v, %v, %v", m, ok, err)
	}
	if got := child.GoVersion(); got != "go1.25.1" {
		t.Errorf("GoVersion() = %q, want parent's go1.25.1", got)
	}
}

func TestLoaderFailures(t *testing.T) {
	boom := errors.New("missing symbol table")
	calls := 0
	failing := NewLoader("bogus", WithSource(func() (*debug.BuildInfo, error) {
		calls++
		return nil, boom
	}))
	_, err := failing.BuildInfo()
	var lerr *LoaderError
	if !errors.As(err, &lerr) || !errors.Is(err, boom) {
		t.Fatalf("BuildInfo error = %v, want LoaderError wrapping boom", err)
	}
	_, _ = failing.BuildInfo()
	if calls != 1 {
		t.Errorf("source called %d times, want 1", calls)
	}
	if _, _, err := failing.FindModule("example.com/x"); err == nil {
		t.Error("FindModule on failing loader should return an error")
	}

	panicking := NewLoader("panics", WithSource(func() (*debug.BuildInfo, error) {
		panic("class definition not found")
	}))
	if _, err := panicking.BuildInfo(); !errors.As(err, &lerr) {
		t.Fatalf("panic should become LoaderError, got %v", err)
	}
	if panicking.HasModules() {
		t.Error("panicking loader must report no modules")
	}

	empty := NewLoader("empty")
	if _, err := empty.BuildInfo(); !errors.Is(err, ErrNoBuildInfo) {
		t.Errorf("empty loader error = %v", err)
	}
	if _, ok, err := empty.FindModule("x.org/y"); ok || err != nil {
		t.Errorf("empty loader FindModule = %v, %v", ok, err)
	}
}

func TestProcessLoaderSeam(t *testing.T) {
	orig := readBuildInfo
	t.Cleanup(func() { readBuildInfo = orig })

	readBuildInfo = func() (*debug.BuildInfo, bool) { return nil, false }
	if newProcessLoader().HasModules() {
		t.Error("process loader without build info must have no modules")
	}

	readBuildInfo = func() (*debug.BuildInfo, bool) { return moduleInfo(), true }
	if !newProcessLoader().HasModules() {
		t.Error("process loader with build info must have modules")
	}
}

type fakeDir struct{ fs.FileInfo }

func (fakeDir) IsDir() bool { return true }

func TestModuleStrategy(t *testing.T) {
	origStat := statDir
	t.Cleanup(func() { statDir = origStat })
	statDir = func(name string) (fs.FileInfo, error) {
		switch name {
		case "/usr/local/go/src/net/http", "/usr/local/go/src/fmt":
			return fakeDir{}, nil
		}
		return nil, os.ErrNotExist
	}

	l := NewLoader("app", WithBuildInfo(moduleInfo()), WithGOROOT("/usr/local/go"))
	s := ModuleStrategy{}
	tests := []struct {
		name    string
		ref     ClassRef
		want    Data
		wantErr error
	}{
		{"dependency", ClassRef{Package: "github.com/spf13/cobra"}, Data{"github.com/spf13/cobra", "v1.10.1", true}, nil},
		{"main package", ClassRef{Package: "main"}, Data{"example.com/app", "devel+0123456789ab", true}, nil},
		{"std", ClassRef{Package: "net/http"}, Data{"std", "go1.25.1", true}, nil},
		{"bogus dotless", ClassRef{Package: "com"}, Data{}, ErrUnknown},
		{"unknown module", ClassRef{Package: "gitlab.com/x/y"}, Data{}, ErrUnknown},
		{"empty", ClassRef{}, Data{}, ErrUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Resolve(tt.ref, l)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}

	t.Run("no GOROOT", func(t *testing.T) {
		rootless := NewLoader("app", WithBuildInfo(moduleInfo()))
		for _, pkg := range []string{"com", "fmt"} {
			if got, err := s.Resolve(ClassRef{Package: pkg}, rootless); !errors.Is(err, ErrUnknown) {
				t.Errorf("Resolve(%q) = %+v, %v; want ErrUnknown", pkg, got, err)
			}
		}
	})
}

func TestPathStrategy(t *testing.T) {
	l := NewLoader("bare", WithGOROOT("/usr/local/go"))
	s := PathStrategy{}
	tests := []struct {
		name    string
		ref     ClassRef
		want    Data
		wantErr error
	}{
		{
			"module cache",
			ClassRef{Package: "github.com/spf13/cobra", File: "/home/u/go/pkg/mod/github.com/spf13/cobra@v1.10.1/command.go"},
			Data{CodeLocation: "github.com/spf13/cobra", Version: "v1.10.1"}, nil,
		},
		{
			"escaped case",
			ClassRef{Package: "github.com/BurntSushi/toml", File: "/home/u/go/pkg/mod/github.com/!burnt!sushi/toml@v1.3.2/decode.go"},
			Data{CodeLocation: "github.com/BurntSushi/toml", Version: "v1.3.2"}, nil,
		},
		{
			"trimpath module",
			ClassRef{Package: "go.uber.org/zap", File: "go.uber.org/zap@v1.27.1/logger.go"},
			Data{CodeLocation: "go.uber.org/zap", Version: "v1.27.1"}, nil,
		},
		{
			"goroot",
			ClassRef{Package: "runtime", File: "/usr/local/go/src/runtime/proc.go"},
			Data{CodeLocation: "std", Version: l.GoVersion()}, nil,
		},
		{
			"trimpath std",
			ClassRef{Package: "net/http", File: "net/http/server.go"},
			Data{CodeLocation: "std", Version: l.GoVersion()}, nil,
		},
		{
			"vendor",
			ClassRef{Package: "github.com/a/b/c", File: "/src/app/vendor/github.com/a/b/c/c.go"},
			Data{CodeLocation: "github.com/a/b/c", Version: "vendored"}, nil,
		},
		{
			"workspace source",
			ClassRef{Package: "example.com/app/internal", File: "/home/u/src/app/internal/x.go"},
			Data{}, ErrUnknown,
		},
		{"no file", ClassRef{Package: "com"}, Data{}, ErrUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Resolve(tt.ref, l)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	withModules := NewLoader("with-modules", WithBuildInfo(moduleInfo()))
	stripped := NewLoader("stripped")
	panicking := NewLoader("panics", WithSource(func() (*debug.BuildInfo, error) { panic("boom") }))
	child := NewLoader("child", WithParent(withModules))

	tests := []struct {
		name   string
		loader *Loader
		want   []string
	}{
		{"module build info", withModules, []string{"module", "path"}},
		{"stripped", stripped, []string{"path"}},
		{"probe panics", panicking, []string{"path"}},
		{"inherited from parent", child, []string{"module", "path"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, RegistryFor(tt.loader).StrategyNames()); diff != "" {
				t.Errorf("strategies mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRegistryForIsPerLoader(t *testing.T) {
	a := NewLoader("a", WithBuildInfo(moduleInfo()))
	b := NewLoader("b")
	ra1, ra2 := RegistryFor(a), RegistryFor(a)
	if ra1 != ra2 {
		t.Error("RegistryFor must return the same registry for the same loader")
	}
	if RegistryFor(b) == ra1 {
		t.Error("distinct loaders must get distinct registries")
	}
	if RegistryFor(nil) != RegistryFor(ProcessLoader()) {
		t.Error("nil loader must map to the process loader")
	}

	list := ra1.Strategies()
	list[0] = nil
	if ra1.Strategies()[0] == nil {
		t.Error("Strategies must return a copy")
	}
}

func TestReleaseRegistry(t *testing.T) {
	l := NewLoader("short", WithBuildInfo(moduleInfo()))
	before := RegistryFor(l)
	before.Cache().Preload([]Entry{{Package: "a", Data: Data{CodeLocation: "a", Version: "v1"}}})

	ReleaseRegistry(l)
	after := RegistryFor(l)
	if after == before {
		t.Fatal("released registry returned again")
	}
	if n := len(after.Cache().Entries()); n != 0 {
		t.Errorf("fresh registry cache has %d entries", n)
	}

	proc := RegistryFor(nil)
	ReleaseRegistry(ProcessLoader())
	ReleaseRegistry(nil)
	if RegistryFor(nil) != proc {
		t.Error("process registry must survive release")
	}
}

func TestRegistryForConcurrent(t *testing.T) {
	l := NewLoader("concurrent", WithBuildInfo(moduleInfo()))
	var wg sync.WaitGroup
	regs := make([]*Registry, 16)
	for i := range regs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			regs[i] = RegistryFor(l)
		}(i)
	}
	wg.Wait()
	for i := range regs {
		if regs[i] != regs[0] {
			t.Fatalf("registry %d differs", i)
		}
	}
}

func TestCacheResolve(t *testing.T) {
	c := NewCache()
	ref := ClassRef{Package: "example.com/a", File: "/src/a/a.go"}
	sibling := ClassRef{Package: "example.com/a", File: "/src/a/b.go"}
	var calls atomic.Int32
	resolve := func() Data {
		calls.Add(1)
		return Data{CodeLocation: "example.com/a", Version: "v1.0.0", Exact: true}
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Resolve(ref, resolve)
		}()
	}
	wg.Wait()
	c.Resolve(sibling, resolve)

	if n := calls.Load(); n != 1 {
		t.Errorf("resolver called %d times, want 1", n)
	}
	if _, ok := c.Lookup(sibling); !ok {
		t.Error("files of one directory share an entry")
	}

	other := NewCache()
	other.Preload(c.Entries())
	got, ok := other.Lookup(ref)
	if !ok || got.Version != "v1.0.0" {
		t.Errorf("preloaded lookup = %+v, %v", got, ok)
	}
	hits, misses := c.Stats()
	if misses != 1 || hits == 0 {
		t.Errorf("stats = %d hits, %d misses", hits, misses)
	}
}
