// Package reportcache stores validation reports on disk, keyed by a digest of
// the trace bytes and the options that shape the report.
package reportcache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"symtrace/internal/validate"
	"symtrace/internal/wire"
)

// Current schema version - increment when Payload or validate.Report changes shape.
const schemaVersion uint16 = 2

// Digest is a SHA-256 cache key.
type Digest [32]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Cache keeps reports under dir. Thread-safe for concurrent access.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// Payload is the on-disk record.
type Payload struct {
	// Schema version for safe invalidation when the format changes
	Schema uint16
	// Protocol version the report was produced under
	Protocol string
	Key      Digest
	Stored   time.Time
	Report   *validate.Report
}

// Open returns a cache rooted at dir, creating it if needed. An empty dir
// selects $XDG_CACHE_HOME/symtrace (or ~/.cache/symtrace).
func Open(dir string) (*Cache, error) {
	if dir == "" {
		base := os.Getenv("XDG_CACHE_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			base = filepath.Join(home, ".cache")
		}
		dir = filepath.Join(base, "symtrace")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Key digests the trace bytes together with every option that changes the
// resulting report. The file name and tracer do not take part.
func Key(data []byte, opts validate.Options) Digest {
	h := sha256.New()
	var hdr [10]byte
	binary.LittleEndian.PutUint16(hdr[0:], schemaVersion)
	binary.LittleEndian.PutUint64(hdr[2:], uint64(max(opts.MaxViolations, 0)))
	_, _ = h.Write(hdr[:])
	if opts.FailFast {
		_, _ = h.Write([]byte{1})
	} else {
		_, _ = h.Write([]byte{0})
	}
	writeString(h, string(opts.Root))
	for _, id := range opts.RootAssumptions.Items() {
		writeString(h, string(id))
	}
	_, _ = h.Write([]byte{0xff})
	_, _ = h.Write(data)

	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

func writeString(h interface{ Write([]byte) (int, error) }, s string) {
	var n [binary.MaxVarintLen64]byte
	_, _ = h.Write(n[:binary.PutUvarint(n[:], uint64(len(s)))])
	_, _ = h.Write([]byte(s))
}

func (c *Cache) pathFor(key Digest) string {
	hexKey := key.String()
	return filepath.Join(c.dir, "reports", hexKey[:2], hexKey+".mp")
}

// Put serializes and writes a report.
func (c *Cache) Put(key Digest, rep *validate.Report) (err error) {
	if c == nil || rep == nil {
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
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}()

	payload := Payload{
		Schema:   schemaVersion,
		Protocol: wire.ProtocolVersion,
		Key:      key,
		Stored:   time.Now().UTC(),
		Report:   rep,
	}
	if err := msgpack.NewEncoder(f).Encode(&payload); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// atomic replace
	return os.Rename(f.Name(), p)
}

// Get reads a report. A missing entry, or one written under another schema or
// for another key, is a miss.
func (c *Cache) Get(key Digest) (*validate.Report, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var payload Payload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	if payload.Schema != schemaVersion || payload.Key != key || payload.Report == nil {
		return nil, false, nil
	}
	return payload.Report, true, nil
}

// DropAll removes every cached report.
func (c *Cache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := filepath.Join(c.dir, "reports.old-"+time.Now().Format("20060102150405"))
	if err := os.Rename(filepath.Join(c.dir, "reports"), old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(old)
}
