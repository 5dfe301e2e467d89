// Package store is an embedded document engine. Every collection lives in
// memory and, unless the store was opened in memory mode, is written back to
// a single JSON file after each write.
//
// Writes to the file are atomic (temporary file plus rename) and guarded by a
// cross-process file lock; in-process access goes through a
// storage.LockManager.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arthur-debert/nanodm/internal/matching"
	"github.com/arthur-debert/nanodm/nanodm/storage"
	"github.com/arthur-debert/nanodm/types"
)

// MemoryPath opens a store that is never written to disk
const MemoryPath = ":memory:"

// Constants for file locking
const (
	lockTimeout    = 3 * time.Second
	lockMaxRetries = 3
	lockRetryDelay = 100 * time.Millisecond
)

// Store implements storage.Adapter over in-memory collections, optionally
// persisted to a JSON file.
type Store struct {
	filePath    string
	memory      bool
	lockManager *storage.LockManager
	matcher     *matching.Matcher

	fs          FileSystem
	lockFactory FileLockFactory
	fileLock    FileLock

	data     *storage.StoreData
	closed   bool
	timeFunc func() time.Time
	newID    func() string
	logger   *zap.Logger
}

var _ storage.Adapter = (*Store)(nil)

// Open opens the store at path, loading existing data. An empty path or
// MemoryPath gives a purely in-memory store.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		filePath:    path,
		memory:      path == "" || path == MemoryPath,
		lockManager: storage.NewLockManager(),
		matcher:     matching.NewMatcher(),
		timeFunc:    time.Now,
		newID:       func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fs == nil {
		s.fs = OSFileSystem{}
	}
	if s.lockFactory == nil {
		s.lockFactory = FlockFactory{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.data = storage.NewStoreData(s.timeFunc())

	if s.memory {
		s.logger.Debug("opened in-memory store")
		return s, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	s.fileLock = s.lockFactory.New(path + ".lock")
	if err := s.withFileLock(s.load); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	s.logger.Debug("opened store", zap.String("path", path), zap.Int("collections", len(s.data.Collections)))
	return s, nil
}

// Path returns the data file path, or MemoryPath for in-memory stores
func (s *Store) Path() string {
	if s.memory {
		return MemoryPath
	}
	return s.filePath
}

// acquireLock attempts to acquire the file lock with retry logic
func (s *Store) acquireLock(ctx context.Context) error {
	for i := 0; i < lockMaxRetries; i++ {
		locked, err := s.fileLock.TryLockContext(ctx, lockRetryDelay)
		if err != nil {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if locked {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
	return fmt.Errorf("failed to acquire lock after %d attempts", lockMaxRetries)
}

func (s *Store) withFileLock(fn func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	if err := s.acquireLock(ctx); err != nil {
		return err
	}
	defer func() { _ = s.fileLock.Unlock() }()
	return fn()
}

// load reads the data file into memory. Caller must hold the file lock.
func (s *Store) load() error {
	if _, err := s.fs.Stat(s.filePath); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	raw, err := s.fs.ReadFile(s.filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}

	var data storage.StoreData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	if data.Collections == nil {
		data.Collections = make(map[string][]types.Record)
	}
	if data.Indexes == nil {
		data.Indexes = make(map[string][]storage.IndexDefinition)
	}
	s.data = &data
	return nil
}

// persist writes the in-memory data to disk. Caller must hold the write lock.
func (s *Store) persist() error {
	s.data.Metadata.UpdatedAt = s.timeFunc()
	if s.memory {
		return nil
	}
	return s.withFileLock(s.save)
}

// save writes the data file atomically. Caller must hold the file lock.
func (s *Store) save() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	tmpFile := s.filePath + ".tmp"
	if err := s.fs.WriteFile(tmpFile, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := s.fs.Rename(tmpFile, s.filePath); err != nil {
		_ = s.fs.Remove(tmpFile)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	s.logger.Debug("persisted store", zap.String("path", s.filePath), zap.Int("bytes", len(raw)))
	return nil
}

// Close releases the file lock. Data is already on disk since every write
// persists.
func (s *Store) Close() error {
	return s.lockManager.Execute(storage.WriteOperation, func() error {
		if s.closed {
			return nil
		}
		s.closed = true
		if !s.memory {
			_ = s.fs.Remove(s.filePath + ".lock")
		}
		return nil
	})
}

// IsNativeID reports whether v is a UUID, as a uuid.UUID or its string form
func (s *Store) IsNativeID(v any) bool {
	switch id := v.(type) {
	case uuid.UUID:
		return true
	case string:
		_, err := uuid.Parse(id)
		return err == nil
	}
	return false
}

// CanonicalID returns the lower-case string form of an id
func (s *Store) CanonicalID(id any) string {
	switch v := id.(type) {
	case uuid.UUID:
		return v.String()
	case string:
		if parsed, err := uuid.Parse(v); err == nil {
			return parsed.String()
		}
		return v
	}
	return fmt.Sprint(id)
}

// NativeIDType names the identifier type
func (s *Store) NativeIDType() string {
	return "uuid"
}

// Collections returns the names of all non-empty collections, sorted
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	return storage.ExecuteWithResult(s.lockManager, storage.ReadOperation, func() ([]string, error) {
		if err := s.check(ctx); err != nil {
			return nil, err
		}
		names := make([]string, 0, len(s.data.Collections))
		for name, records := range s.data.Collections {
			if len(records) > 0 {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		return names, nil
	})
}

// Indexes returns the index definitions of a collection
func (s *Store) Indexes(ctx context.Context, collection string) ([]storage.IndexDefinition, error) {
	return storage.ExecuteWithResult(s.lockManager, storage.ReadOperation, func() ([]storage.IndexDefinition, error) {
		if err := s.check(ctx); err != nil {
			return nil, err
		}
		return append([]storage.IndexDefinition(nil), s.data.Indexes[collection]...), nil
	})
}

// check fails fast on closed stores and cancelled contexts. Caller must hold
// the lock.
func (s *Store) check(ctx context.Context) error {
	if s.closed {
		return storage.ErrClosed
	}
	return ctx.Err()
}
