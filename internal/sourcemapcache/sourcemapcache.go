// Package sourcemapcache persists parsed source-map mappings to disk,
// keyed by the SHA-256 of the WASM bytes they were parsed from, so a
// repeated simulation against the same module skips re-parsing DWARF.
package sourcemapcache

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/erst-labs/simulate/internal/simtypes"
)

// Entry is the on-disk cache record for one WASM module.
type Entry struct {
	WasmHash   string
	HasSymbols bool
	Mappings   map[uint64]simtypes.SourceLocation
	CreatedAt  int64
}

// CachedInfo is the summary ListCached returns without loading the full
// mappings of every entry.
type CachedInfo struct {
	WasmHash      string
	HasSymbols    bool
	MappingsCount int
	CreatedAt     int64
	FileSizeBytes int64
}

// Cache reads and writes Entry records under a single directory.
type Cache struct {
	dir string
}

// New builds a Cache rooted at dir, creating it if necessary.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// ComputeWasmHash returns the hex-encoded SHA-256 of wasm bytes, used as
// the cache key.
func ComputeWasmHash(wasm []byte) string {
	sum := sha256.Sum256(wasm)
	return hex.EncodeToString(sum[:])
}

func (c *Cache) path(wasmHash string) string {
	return filepath.Join(c.dir, wasmHash+".bin")
}

// Get returns the cached entry for wasmHash, or ok=false if absent,
// unreadable, or stale. A corrupt cache file is treated as a miss, never
// an error. expectedHasSymbols is the freshly (cheaply) recomputed
// has_symbols flag for the module being looked up; a stored entry whose
// HasSymbols disagrees with it is treated as invalidated and reported as
// a miss, the same as if nothing were cached.
func (c *Cache) Get(wasmHash string, expectedHasSymbols bool) (Entry, bool) {
	raw, err := os.ReadFile(c.path(wasmHash))
	if err != nil {
		return Entry{}, false
	}
	var entry Entry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&entry); err != nil {
		return Entry{}, false
	}
	if entry.HasSymbols != expectedHasSymbols {
		return Entry{}, false
	}
	return entry, true
}

// Store writes entry to disk under its own hash, overwriting any existing
// record for that hash. The record is written to a temporary file first
// and renamed into place, so the .bin file is replaced in one step.
func (c *Cache) Store(entry Entry) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return fmt.Errorf("failed to serialize cache entry: %w", err)
	}
	path := c.path(entry.WasmHash)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

// Clear removes every *.bin cache file and returns how many were deleted.
func (c *Cache) Clear() (int, error) {
	names, err := c.binFileNames()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, name := range names {
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil {
			return count, fmt.Errorf("failed to delete cache file: %w", err)
		}
		count++
	}
	return count, nil
}

// GetCacheSize returns the total size in bytes of every file in the cache
// directory.
func (c *Cache) GetCacheSize() (int64, error) {
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cache directory: %w", err)
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return total, fmt.Errorf("failed to get file metadata: %w", err)
		}
		total += info.Size()
	}
	return total, nil
}

// ListCached summarizes every cached entry without loading full mappings
// into the caller's working set.
func (c *Cache) ListCached() ([]CachedInfo, error) {
	names, err := c.binFileNames()
	if err != nil {
		return nil, err
	}
	infos := make([]CachedInfo, 0, len(names))
	for _, name := range names {
		path := filepath.Join(c.dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var entry Entry
		if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&entry); err != nil {
			continue
		}
		stat, err := os.Stat(path)
		var size int64
		if err == nil {
			size = stat.Size()
		}
		infos = append(infos, CachedInfo{
			WasmHash:      entry.WasmHash,
			HasSymbols:    entry.HasSymbols,
			MappingsCount: len(entry.Mappings),
			CreatedAt:     entry.CreatedAt,
			FileSizeBytes: size,
		})
	}
	return infos, nil
}

func (c *Cache) binFileNames() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".bin") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
