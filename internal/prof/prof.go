// Package prof wraps runtime profiling for the bench command.
package prof

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	rtrace "runtime/trace"
)

// Options names the profile outputs; empty paths are skipped.
type Options struct {
	CPU  string
	Mem  string
	Exec string // runtime execution trace
}

// Enabled reports whether any profile was requested.
func (o Options) Enabled() bool { return o.CPU != "" || o.Mem != "" || o.Exec != "" }

// Session is an active set of profiles.
type Session struct {
	opts    Options
	cpuFile *os.File
	exec    *os.File
}

// Start begins CPU profiling and execution tracing as requested. The heap
// profile is written by Stop.
func Start(opts Options) (*Session, error) {
	s := &Session{opts: opts}
	if opts.CPU != "" {
		f, err := os.Create(opts.CPU)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("start cpu profile: %w", err)
		}
		s.cpuFile = f
	}
	if opts.Exec != "" {
		f, err := os.Create(opts.Exec)
		if err != nil {
			_ = s.Stop()
			return nil, err
		}
		if err := rtrace.Start(f); err != nil {
			_ = f.Close()
			_ = s.Stop()
			return nil, fmt.Errorf("start execution trace: %w", err)
		}
		s.exec = f
	}
	return s, nil
}

// Stop ends the active profiles and writes the heap profile. It is safe to
// call on a nil Session.
func (s *Session) Stop() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.cpuFile != nil {
		pprof.StopCPUProfile()
		errs = append(errs, s.cpuFile.Close())
		s.cpuFile = nil
	}
	if s.exec != nil {
		rtrace.Stop()
		errs = append(errs, s.exec.Close())
		s.exec = nil
	}
	if s.opts.Mem != "" {
		errs = append(errs, writeHeap(s.opts.Mem))
		s.opts.Mem = ""
	}
	return errors.Join(errs...)
}

func writeHeap(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	runtime.GC()
	return pprof.WriteHeapProfile(f)
}
