package driver

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"

	"drift/internal/target"
)

// Bump when the ArtifactPayload format changes.
const artifactSchemaVersion uint16 = 1

// Digest is a sha256 content hash.
type Digest [sha256.Size]byte

// ArtifactKey derives the cache key for a source file: the file
// content, the resolved flag set and the host platform all participate,
// so a flag flip or a cross-machine cache copy never serves a stale
// artifact.
func ArtifactKey(content []byte, opts target.Options) Digest {
	h := sha256.New()
	h.Write(content)
	fmt.Fprintf(h, "|%v|%s/%s", opts, runtime.GOOS, runtime.GOARCH)
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// ArtifactPayload is the cached outcome of one compiled file.
type ArtifactPayload struct {
	Schema       uint16
	ModuleName   string
	Artifact     string
	PairsRemoved int
}

// DiskCache stores compiled artifacts keyed by content digest.
// Payloads are msgpack-encoded and lz4-compressed. Thread-safe.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// OpenDiskCache initializes a disk cache at the standard user cache
// location for the given application name.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDiskCacheAt(filepath.Join(base, app))
}

// OpenDiskCacheAt initializes a disk cache rooted at dir.
func OpenDiskCacheAt(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "arts", hex.EncodeToString(key[:])+".mplz4")
}

// Put serializes, compresses and atomically writes a payload.
func (c *DiskCache) Put(key Digest, payload *ArtifactPayload) error {
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
	defer os.Remove(f.Name())

	zw := lz4.NewWriter(f)
	if err := msgpack.NewEncoder(zw).Encode(payload); err != nil {
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Atomic replace.
	return os.Rename(f.Name(), p)
}

// Get reads and deserializes a payload. A missing entry, a corrupted
// payload or a schema mismatch all report a miss, not an error: the
// cache is advisory and the caller recompiles.
func (c *DiskCache) Get(key Digest, out *ArtifactPayload) (bool, error) {
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

	raw, err := io.ReadAll(lz4.NewReader(f))
	if err != nil {
		return false, nil
	}
	if err := msgpack.NewDecoder(bytes.NewReader(raw)).Decode(out); err != nil {
		return false, nil
	}
	if out.Schema != artifactSchemaVersion {
		return false, nil
	}
	return true, nil
}

// DropAll invalidates the whole cache.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.RemoveAll(filepath.Join(c.dir, "arts")); err != nil {
		return err
	}
	return nil
}
