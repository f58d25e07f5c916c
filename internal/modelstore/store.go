// Package modelstore implements the content-addressed blob store described
// in the data model: SHA-256-derived storage keys, a size cap, and integrity
// re-verification on read. Grounded on the teacher's
// api/pkg/filestore/fs.go (atomic write, safe path join) and
// api/pkg/runner/controller.go's use of inhies/go-bytesize for parsing
// human-readable size strings.
package modelstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/inhies/go-bytesize"
	"github.com/rs/zerolog/log"

	"github.com/inferna-ai/inferna/internal/apierr"
)

const defaultMaxModelSize = 1 << 30 // 1 GiB

// StoreResult is returned by Store on a successful write.
type StoreResult struct {
	StorageKey string
	Checksum   string
	Size       int64
}

// Stats summarizes the blob store's current contents.
type Stats struct {
	FileCount    int
	TotalBytes   int64
	MaxModelSize int64
	OldestBlob   time.Time
	NewestBlob   time.Time
}

// Store is a directory-backed, content-addressed blob store.
type Store struct {
	basePath     string
	maxModelSize int64

	mu sync.Mutex // serializes writes to a given key; reads are lock-free
}

// ParseSize parses a human-readable size string ("1GB", "500MB"). Per
// spec.md §4.1 and §9, an unparseable string is NOT rejected — it silently
// falls back to 1 GiB. This is flagged as surprising by the spec itself; we
// keep the behavior but log it at warn level so it is at least discoverable,
// matching the teacher's habit of logging rather than swallowing oddities.
func ParseSize(s string) int64 {
	if strings.TrimSpace(s) == "" {
		return defaultMaxModelSize
	}
	bs, err := bytesize.Parse(s)
	if err != nil {
		log.Warn().Str("max_model_size", s).Err(err).
			Msg("could not parse max model size, defaulting to 1GiB")
		return defaultMaxModelSize
	}
	return int64(bs)
}

// New creates a Store rooted at basePath, creating the directory if needed.
// maxModelSizeStr is parsed with ParseSize.
func New(basePath string, maxModelSizeStr string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating model store directory: %w", err)
	}
	return &Store{
		basePath:     basePath,
		maxModelSize: ParseSize(maxModelSizeStr),
	}, nil
}

// StorageKey computes the deterministic on-disk filename for modelID.
func StorageKey(modelID string) string {
	sum := sha256.Sum256([]byte(modelID))
	return hex.EncodeToString(sum[:]) + ".model"
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (s *Store) path(storageKey string) (string, error) {
	full := filepath.Join(s.basePath, filepath.Clean("/"+storageKey))
	rel, err := filepath.Rel(s.basePath, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid storage key: %s", storageKey)
	}
	return full, nil
}

// Store writes bytes under the storage key derived from modelID. Writes are
// atomic: the payload is written to a temp file in the same directory and
// renamed into place, so a reader never observes a partial file. Re-stores
// of the same modelID deterministically overwrite — callers that need
// create-only semantics must guard at the registry layer (spec.md §4.1).
func (s *Store) Store(modelID string, data []byte) (StoreResult, error) {
	if int64(len(data)) > s.maxModelSize {
		return StoreResult{}, fmt.Errorf("%w: %d bytes exceeds max %d", apierr.ErrModelTooLarge, len(data), s.maxModelSize)
	}

	key := StorageKey(modelID)
	sum := checksum(data)
	dest, err := s.path(key)
	if err != nil {
		return StoreResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.basePath, ".tmp-*")
	if err != nil {
		return StoreResult{}, fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return StoreResult{}, fmt.Errorf("writing model blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return StoreResult{}, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return StoreResult{}, fmt.Errorf("renaming model blob into place: %w", err)
	}

	log.Debug().Str("model_id", modelID).Str("storage_key", key).Int("size", len(data)).Msg("stored model blob")

	return StoreResult{StorageKey: key, Checksum: sum, Size: int64(len(data))}, nil
}

// Fetch reads back the bytes stored under storageKey.
func (s *Store) Fetch(storageKey string) ([]byte, error) {
	full, err := s.path(storageKey)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apierr.ErrModelNotFound, storageKey)
		}
		return nil, fmt.Errorf("reading model blob: %w", err)
	}
	return data, nil
}

// Delete removes the blob at storageKey, returning false if it did not exist.
func (s *Store) Delete(storageKey string) (bool, error) {
	full, err := s.path(storageKey)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("deleting model blob: %w", err)
	}
	return true, nil
}

// Verify recomputes sha256 over the stored blob and compares to expected.
func (s *Store) Verify(storageKey string, expected string) (bool, error) {
	data, err := s.Fetch(storageKey)
	if err != nil {
		return false, err
	}
	return checksum(data) == expected, nil
}

// Stats reports the store's current footprint.
func (s *Store) Stats() (Stats, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return Stats{}, fmt.Errorf("listing model store: %w", err)
	}
	stats := Stats{MaxModelSize: s.maxModelSize}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".model") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		stats.FileCount++
		stats.TotalBytes += info.Size()
		if stats.OldestBlob.IsZero() || info.ModTime().Before(stats.OldestBlob) {
			stats.OldestBlob = info.ModTime()
		}
		if info.ModTime().After(stats.NewestBlob) {
			stats.NewestBlob = info.ModTime()
		}
	}
	return stats, nil
}
