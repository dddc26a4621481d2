// Package cached provides a local disk read cache in front of a
// store.BlobBackend.
//
// Blobs are immutable under their id, so a cached copy never goes stale;
// the TTL only bounds disk usage. Writes go straight to the backend.
package cached

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/rbaliyan/mailstore/store"
)

// Store wraps a BlobBackend with local file caching.
type Store struct {
	backend  store.BlobBackend
	cacheDir string
	maxSize  int64
	ttl      time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	cacheSize int64

	stop      chan struct{}
	closeOnce sync.Once
}

var _ store.BlobBackend = (*Store)(nil)

// New creates a cached backend wrapping the given backend. Close stops
// the background cleanup.
func New(backend store.BlobBackend, opts ...Option) (*Store, error) {
	o := newOptions(opts...)

	cacheDir := filepath.Join(o.dir, "mailstore-blobs")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	s := &Store{
		backend:  backend,
		cacheDir: cacheDir,
		maxSize:  o.maxSize,
		ttl:      o.ttl,
		logger:   o.logger,
		stop:     make(chan struct{}),
	}

	s.calculateCacheSize()

	if o.ttl > 0 {
		go s.cleanupLoop()
	}

	return s, nil
}

// Close stops background cleanup. Cached files stay on disk.
func (s *Store) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })
	return nil
}

// PutBlob writes through to the backend.
func (s *Store) PutBlob(ctx context.Context, id store.BlobID, data []byte) error {
	return s.backend.PutBlob(ctx, id, data)
}

// GetBlob serves id from the cache when present and fresh, otherwise loads
// it from the backend and caches the result.
func (s *Store) GetBlob(ctx context.Context, id store.BlobID) ([]byte, error) {
	cachePath := s.cachePath(id)

	if data, ok := s.readCached(cachePath); ok {
		s.logger.Debug("cache hit", "blob", id.Short())
		return data, nil
	}

	s.logger.Debug("cache miss", "blob", id.Short())
	data, err := s.backend.GetBlob(ctx, id)
	if err != nil {
		return nil, err
	}
	s.writeCached(cachePath, data)
	return data, nil
}

// HasBlob reports a fresh cache entry as present without asking the backend.
func (s *Store) HasBlob(ctx context.Context, id store.BlobID) (bool, error) {
	if info, err := os.Stat(s.cachePath(id)); err == nil && s.fresh(info) {
		return true, nil
	}
	return s.backend.HasBlob(ctx, id)
}

// Evict removes id from the cache.
func (s *Store) Evict(id store.BlobID) {
	cachePath := s.cachePath(id)
	if info, err := os.Stat(cachePath); err == nil {
		if os.Remove(cachePath) == nil {
			s.updateCacheSize(-info.Size())
		}
	}
}

// ClearCache removes all cached files.
func (s *Store) ClearCache() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.cacheDir)
	if err != nil {
		return fmt.Errorf("read cache dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			os.Remove(filepath.Join(s.cacheDir, entry.Name()))
		}
	}

	s.cacheSize = 0
	s.logger.Info("blob cache cleared")
	return nil
}

// Size returns the tracked cache size in bytes.
func (s *Store) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cacheSize
}

// cachePath hashes the id so arbitrary backend ids stay inside cacheDir.
func (s *Store) cachePath(id store.BlobID) string {
	h := blake3.Sum256([]byte(id))
	return filepath.Join(s.cacheDir, hex.EncodeToString(h[:]))
}

func (s *Store) fresh(info fs.FileInfo) bool {
	return s.ttl <= 0 || time.Since(info.ModTime()) < s.ttl
}

func (s *Store) readCached(cachePath string) ([]byte, bool) {
	info, err := os.Stat(cachePath)
	if err != nil {
		return nil, false
	}
	if !s.fresh(info) {
		if os.Remove(cachePath) == nil {
			s.updateCacheSize(-info.Size())
		}
		return nil, false
	}
	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, false
	}
	now := time.Now()
	_ = os.Chtimes(cachePath, now, now)
	return data, true
}

// writeCached stores data under cachePath via a temp file and rename.
// Failures only cost a future cache miss.
func (s *Store) writeCached(cachePath string, data []byte) {
	size := int64(len(data))
	if !s.hasSpace(size) {
		s.logger.Debug("cache full, not caching", "size", size)
		return
	}

	tmpFile, err := os.CreateTemp(s.cacheDir, "tmp-*")
	if err != nil {
		s.logger.Warn("failed to create temp file for caching", "error", err)
		return
	}
	tmpName := tmpFile.Name()

	_, werr := tmpFile.Write(data)
	cerr := tmpFile.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmpName)
		s.logger.Warn("failed to write to cache", "error", err)
		return
	}

	_, statErr := os.Stat(cachePath)
	if err := os.Rename(tmpName, cachePath); err != nil {
		os.Remove(tmpName)
		s.logger.Warn("failed to move temp file to cache", "error", err)
		return
	}
	if statErr != nil {
		s.updateCacheSize(size)
	}
	s.logger.Debug("cached blob", "path", cachePath, "size", size)
}

func (s *Store) hasSpace(size int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cacheSize+size <= s.maxSize
}

func (s *Store) updateCacheSize(delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheSize += delta
	if s.cacheSize < 0 {
		s.cacheSize = 0
	}
}

func (s *Store) calculateCacheSize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var size int64
	err := filepath.WalkDir(s.cacheDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("failed to calculate cache size", "error", err)
	}
	s.cacheSize = size
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.cleanupExpired()
		}
	}
}

func (s *Store) cleanupExpired() {
	entries, err := os.ReadDir(s.cacheDir)
	if err != nil {
		s.logger.Warn("failed to read cache dir for cleanup", "error", err)
		return
	}

	now := time.Now()
	var removed int
	var freedBytes int64

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > s.ttl {
			if err := os.Remove(filepath.Join(s.cacheDir, entry.Name())); err == nil {
				removed++
				freedBytes += info.Size()
			}
		}
	}

	if removed > 0 {
		s.updateCacheSize(-freedBytes)
		s.logger.Info("blob cache cleanup completed", "removed", removed, "freed_bytes", freedBytes)
	}
}
