package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

// Config sizes a Store.
type Config struct {
	Dir              string // Disk cache directory; empty uses the user cache dir
	MemoryCapacity   int64  // Bytes
	DiskCapacity     int64  // Bytes
	CompressionLevel int    // zstd level 1-22, 0 disables compression
}

// Store puts a memory cache in front of a disk cache. Disk hits are promoted
// to memory.
type Store struct {
	memory *MemoryCache
	disk   *DiskCache

	mu       sync.Mutex
	memHits  int64
	diskHits int64
	misses   int64
}

// StoreStats aggregates both levels.
type StoreStats struct {
	Memory   Stats
	Disk     Stats
	MemHits  int64
	DiskHits int64
	Misses   int64
}

// Open creates a Store.
func Open(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate cache directory: %w", err)
		}
		cfg.Dir = filepath.Join(dir, "mouthpiece", "clips")
	}
	if cfg.MemoryCapacity <= 0 {
		cfg.MemoryCapacity = 16 << 20
	}
	if cfg.DiskCapacity <= 0 {
		cfg.DiskCapacity = 100 << 20
	}

	disk, err := NewDiskCache(cfg.Dir, cfg.DiskCapacity, cfg.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create disk cache: %w", err)
	}
	log.Debug("Clip cache opened", "dir", cfg.Dir, "stats", disk.Stats())

	return &Store{
		memory: NewMemoryCache(cfg.MemoryCapacity),
		disk:   disk,
	}, nil
}

// Get checks memory, then disk.
func (s *Store) Get(key string) ([]byte, bool) {
	if data, ok := s.memory.Get(key); ok {
		s.count(&s.memHits)
		return data, true
	}
	if data, ok := s.disk.Get(key); ok {
		s.count(&s.diskHits)
		if err := s.memory.Put(key, data); err != nil && !errors.Is(err, ErrItemTooLarge) {
			log.Debug("Failed to promote clip", "error", err)
		}
		return data, true
	}
	s.count(&s.misses)
	return nil, false
}

// Put stores value in both levels. Values too large for memory go to disk
// only.
func (s *Store) Put(key string, value []byte) error {
	if err := s.memory.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return fmt.Errorf("memory cache: %w", err)
	}
	if err := s.disk.Put(key, value); err != nil {
		return fmt.Errorf("disk cache: %w", err)
	}
	return nil
}

// Delete removes key from both levels.
func (s *Store) Delete(key string) {
	s.memory.Delete(key)
	s.disk.Delete(key)
}

// Stats returns statistics for both levels.
func (s *Store) Stats() StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StoreStats{
		Memory:   s.memory.Stats(),
		Disk:     s.disk.Stats(),
		MemHits:  s.memHits,
		DiskHits: s.diskHits,
		Misses:   s.misses,
	}
}

// Close persists the disk index.
func (s *Store) Close() error {
	return s.disk.Close()
}

func (s *Store) count(n *int64) {
	s.mu.Lock()
	*n++
	s.mu.Unlock()
}
