package driver

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"drift/internal/target"
)

func testKey(b byte) Digest {
	var d Digest
	d[0] = b
	return d
}

func TestDiskCache_RoundTrip(t *testing.T) {
	cache, err := OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDiskCacheAt: %v", err)
	}

	key := testKey(1)
	in := ArtifactPayload{
		Schema:       artifactSchemaVersion,
		ModuleName:   "demo",
		Artifact:     "; ModuleID = 'demo'\n",
		PairsRemoved: 3,
	}
	if err := cache.Put(key, &in); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var out ArtifactPayload
	hit, err := cache.Get(key, &out)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !hit {
		t.Fatal("expected a hit")
	}
	if out != in {
		t.Errorf("payload = %+v, want %+v", out, in)
	}
}

func TestDiskCache_MissingIsMiss(t *testing.T) {
	cache, err := OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDiskCacheAt: %v", err)
	}
	var out ArtifactPayload
	hit, err := cache.Get(testKey(9), &out)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if hit {
		t.Error("missing entry reported a hit")
	}
}

func TestDiskCache_CorruptedIsMiss(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenDiskCacheAt(dir)
	if err != nil {
		t.Fatalf("OpenDiskCacheAt: %v", err)
	}

	key := testKey(2)
	in := ArtifactPayload{Schema: artifactSchemaVersion, ModuleName: "demo"}
	if err := cache.Put(key, &in); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Overwrite the entry with garbage that is neither lz4 nor msgpack.
	p := filepath.Join(dir, "arts", hex.EncodeToString(key[:])+".mplz4")
	if err := os.WriteFile(p, []byte("not a payload"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	var out ArtifactPayload
	hit, err := cache.Get(key, &out)
	if err != nil {
		t.Fatalf("Get on corrupted entry: %v", err)
	}
	if hit {
		t.Error("corrupted entry reported a hit")
	}
}

func TestDiskCache_NilIsInert(t *testing.T) {
	var cache *DiskCache
	if err := cache.Put(testKey(3), &ArtifactPayload{}); err != nil {
		t.Errorf("nil Put: %v", err)
	}
	var out ArtifactPayload
	hit, err := cache.Get(testKey(3), &out)
	if err != nil || hit {
		t.Errorf("nil Get = (%v, %v)", hit, err)
	}
}

func TestDiskCache_DropAll(t *testing.T) {
	cache, err := OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDiskCacheAt: %v", err)
	}
	key := testKey(4)
	if err := cache.Put(key, &ArtifactPayload{Schema: artifactSchemaVersion}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := cache.DropAll(); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	var out ArtifactPayload
	hit, _ := cache.Get(key, &out)
	if hit {
		t.Error("entry survived DropAll")
	}
}

func TestArtifactKey_Sensitivity(t *testing.T) {
	content := []byte("module demo\n")
	base := ArtifactKey(content, target.Options{})

	if got := ArtifactKey(content, target.Options{}); got != base {
		t.Error("key not deterministic")
	}
	if got := ArtifactKey([]byte("module other\n"), target.Options{}); got == base {
		t.Error("key ignores content")
	}
	if got := ArtifactKey(content, target.Options{NoGIL: true}); got == base {
		t.Error("key ignores flags")
	}
}
