package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pkgtrace/internal/packaging"
	"pkgtrace/internal/pkgcache"
	"pkgtrace/internal/throwable"
)

var (
	resolveBinary  string
	resolveFormat  string
	resolveNoCache bool
)

func init() {
	resolveCmd.Flags().StringVar(&resolveBinary, "binary", "", "executable that produced the traceback")
	resolveCmd.Flags().StringVar(&resolveFormat, "format", formatText, "output format (text|json|msgpack)")
	resolveCmd.Flags().BoolVar(&resolveNoCache, "no-cache", false, "skip the on-disk resolution cache")
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [traceback-file]",
	Short: "Annotate a Go panic or goroutine dump with packaging data",
	Long: `Read a Go panic or goroutine dump from a file (or stdin when omitted or "-")
and annotate every frame. With --binary, module versions come from the build
info embedded in that executable; otherwise only module cache paths are used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := readOutputFormat(resolveFormat)
		if err != nil {
			return err
		}
		in, name := cmd.InOrStdin(), "stdin"
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in, name = f, args[0]
		}
		return runResolve(cmd.Context(), in, cmd.OutOrStdout(), resolveOptions{
			name:    name,
			binary:  resolveBinary,
			format:  format,
			noCache: resolveNoCache || !app.cfg.Cache.Enabled,
		})
	},
}

type resolveOptions struct {
	name    string
	binary  string
	format  string
	noCache bool
}

func runResolve(ctx context.Context, in io.Reader, out io.Writer, opts resolveOptions) error {
	loader, err := tracebackLoader(opts.binary)
	if err != nil {
		return err
	}
	defer packaging.ReleaseRegistry(loader)
	proxies, err := throwable.Parse(in, throwable.WithLoader(loader))
	if err != nil {
		return fmt.Errorf("%s: %w", opts.name, err)
	}

	var store *resolutionStore
	if !opts.noCache && opts.binary != "" {
		store = openResolutionStore(opts.binary, loader)
	}
	store.load()

	calc := newCalculator(ctx, loader, app.cfg.Packaging.Enabled)
	if err := writeProxies(out, calc, proxies, opts.format, app.color); err != nil {
		return err
	}
	store.save()
	return nil
}

// tracebackLoader returns the loader for frames of a foreign process. Without
// a binary the loader has no build info, so a "main" frame is never mistaken
// for this executable's main module.
func tracebackLoader(binary string) (*packaging.Loader, error) {
	if binary == "" {
		return packaging.NewLoader("traceback", packaging.WithGOROOT(packaging.DefaultGOROOT())), nil
	}
	return packaging.LoaderFromBinary(binary)
}

// resolutionStore persists a binary's resolution cache between runs, keyed
// by the binary's content digest. A nil store does nothing.
type resolutionStore struct {
	cache  *pkgcache.Cache
	key    pkgcache.Digest
	loader *packaging.Loader
}

func openResolutionStore(binary string, loader *packaging.Loader) *resolutionStore {
	log := app.log.WithValues("binary", binary)
	key, err := pkgcache.DigestFile(binary)
	if err != nil {
		log.Error(err, "cache disabled")
		return nil
	}
	var cache *pkgcache.Cache
	if dir := app.cfg.Cache.Dir; dir != "" {
		cache, err = pkgcache.Open(dir)
	} else {
		cache, err = pkgcache.OpenDefault("pkgtrace")
	}
	if err != nil {
		log.Error(err, "cache disabled")
		return nil
	}
	return &resolutionStore{cache: cache, key: key, loader: loader}
}

func (s *resolutionStore) load() {
	if s == nil {
		return
	}
	var payload pkgcache.Payload
	hit, err := s.cache.Get(s.key, &payload)
	if err != nil {
		app.log.Error(err, "cache read failed", "key", s.key.String())
		return
	}
	if !hit {
		app.log.V(1).Info("cache miss", "key", s.key.String())
		return
	}
	entries := payload.PackagingEntries()
	packaging.RegistryFor(s.loader).Cache().Preload(entries)
	app.log.V(1).Info("cache hit", "key", s.key.String(), "entries", len(entries))
}

func (s *resolutionStore) save() {
	if s == nil {
		return
	}
	entries := packaging.RegistryFor(s.loader).Cache().Entries()
	payload := pkgcache.NewPayload(s.loader.Name(), s.loader.GoVersion(), entries)
	if err := s.cache.Put(s.key, payload); err != nil {
		app.log.Error(err, "cache write failed", "key", s.key.String())
	}
}
