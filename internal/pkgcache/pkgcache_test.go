package pkgcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/vmihailenco/msgpack/v5"

	"pkgtrace/internal/packaging"
)

func TestPutGet(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	entries := []packaging.Entry{
		{Package: "github.com/spf13/cobra", Dir: "/mod/cobra@v1.10.1", Data: packaging.Data{CodeLocation: "github.com/spf13/cobra", Version: "v1.10.1", Exact: true}},
		{Package: "com", Dir: ".", Data: packaging.Unavailable},
	}
	key := Digest{1, 2, 3}

	var got Payload
	if ok, err := c.Get(key, &got); ok || err != nil {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}
	if err := c.Put(key, NewPayload("app", "go1.25.1", entries)); err != nil {
		t.Fatal(err)
	}
	ok, err := c.Get(key, &got)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Loader != "app" || got.GoVersion != "go1.25.1" {
		t.Errorf("payload header = %+v", got)
	}
	if diff := cmp.Diff(entries, got.PackagingEntries(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("entries (-want +got):\n%s", diff)
	}

	tmps, _ := filepath.Glob(filepath.Join(c.Dir(), "bins", "tmp-*"))
	if len(tmps) != 0 {
		t.Errorf("temp files left behind: %v", tmps)
	}
}

func TestSchemaMismatchIsMiss(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := Digest{9}
	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	data, err := msgpack.Marshal(&Payload{Schema: schemaVersion + 1, Loader: "future"})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatal(err)
	}
	var got Payload
	if ok, err := c.Get(key, &got); ok || err != nil {
		t.Errorf("schema mismatch: ok=%v err=%v", ok, err)
	}
}

func TestDropAll(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	key := Digest{7}
	if err := c.Put(key, NewPayload("app", "go1.25.1", nil)); err != nil {
		t.Fatal(err)
	}
	if err := c.DropAll(); err != nil {
		t.Fatal(err)
	}
	var got Payload
	if ok, _ := c.Get(key, &got); ok {
		t.Error("entry survived DropAll")
	}
	if err := c.Put(key, NewPayload("app", "go1.25.1", nil)); err != nil {
		t.Errorf("cache unusable after DropAll: %v", err)
	}
}

func TestDigestFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	if err := os.WriteFile(a, []byte("one"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("two"), 0o600); err != nil {
		t.Fatal(err)
	}
	da, err := DigestFile(a)
	if err != nil {
		t.Fatal(err)
	}
	db, err := DigestFile(b)
	if err != nil {
		t.Fatal(err)
	}
	if da == db || da.IsZero() {
		t.Errorf("digests: %s %s", da, db)
	}
	if _, err := DigestFile(filepath.Join(dir, "missing")); err == nil {
		t.Error("missing file hashed")
	}
}

func TestNilCache(t *testing.T) {
	var c *Cache
	if err := c.Put(Digest{}, &Payload{}); err != nil {
		t.Error(err)
	}
	var p Payload
	if ok, err := c.Get(Digest{}, &p); ok || err != nil {
		t.Errorf("nil Get: ok=%v err=%v", ok, err)
	}
}
