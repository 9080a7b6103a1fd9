// Package pkgcache persists resolved packaging data per binary, so that
// repeated resolve runs against the same executable skip strategy lookups.
package pkgcache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"pkgtrace/internal/packaging"
)

// Current schema version - increment when Payload format changes
const schemaVersion uint16 = 1

// Digest identifies a binary by the SHA-256 of its contents.
type Digest [32]byte

// String returns the hex form of d.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// IsZero reports whether d was never computed.
func (d Digest) IsZero() bool { return d == Digest{} }

// DigestFile hashes the file at path.
func DigestFile(path string) (Digest, error) {
	var d Digest
	f, err := os.Open(path)
	if err != nil {
		return d, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return d, fmt.Errorf("hash %s: %w", path, err)
	}
	copy(d[:], h.Sum(nil))
	return d, nil
}

// Cache stores payloads by digest under one directory.
// Thread-safe for concurrent access.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// Entry is one persisted resolution result.
type Entry struct {
	Package  string
	Dir      string
	Location string
	Version  string
	Exact    bool
}

// Payload is the on-disk record for one binary.
type Payload struct {
	// Schema version for safe invalidation when format changes
	Schema uint16

	Loader    string
	GoVersion string
	Written   time.Time
	Entries   []Entry
}

// NewPayload converts cache entries into a payload.
func NewPayload(loader, goVersion string, entries []packaging.Entry) *Payload {
	p := &Payload{
		Schema:    schemaVersion,
		Loader:    loader,
		GoVersion: goVersion,
		Written:   time.Now().UTC(),
		Entries:   make([]Entry, len(entries)),
	}
	for i, e := range entries {
		p.Entries[i] = Entry{
			Package:  e.Package,
			Dir:      e.Dir,
			Location: e.Data.CodeLocation,
			Version:  e.Data.Version,
			Exact:    e.Data.Exact,
		}
	}
	return p
}

// PackagingEntries converts the payload back for packaging.Cache.Preload.
func (p *Payload) PackagingEntries() []packaging.Entry {
	out := make([]packaging.Entry, len(p.Entries))
	for i, e := range p.Entries {
		out[i] = packaging.Entry{
			Package: e.Package,
			Dir:     e.Dir,
			Data:    packaging.Data{CodeLocation: e.Location, Version: e.Version, Exact: e.Exact},
		}
	}
	return out
}

// Open uses dir as the cache root, creating it if needed.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// OpenDefault opens the cache at the standard per-user location for app.
func OpenDefault(app string) (*Cache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return Open(filepath.Join(base, app))
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *Cache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "bins", key.String()+".mp")
}

// Put serializes and writes a payload, replacing any previous one atomically.
func (c *Cache) Put(key Digest, payload *Payload) (err error) {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	payload.Schema = schemaVersion
	if err = msgpack.NewEncoder(f).Encode(payload); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get reads the payload for key. Missing entries and entries written with
// another schema report false without an error.
func (c *Cache) Get(key Digest, out *Payload) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	var p Payload
	if err := msgpack.NewDecoder(f).Decode(&p); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	if p.Schema != schemaVersion {
		return false, nil
	}
	*out = p
	return true, nil
}

// DropAll invalidates the cache, useful after format changes.
func (c *Cache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o755)
}
