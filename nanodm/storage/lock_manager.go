package storage

import (
	"sync"
)

// OperationType defines whether an operation is read or write.
// Read operations share the lock, write operations hold it exclusively.
type OperationType int

const (
	// ReadOperation indicates an operation that only reads data.
	// Multiple read operations can proceed concurrently.
	ReadOperation OperationType = iota

	// WriteOperation indicates an operation that modifies data.
	// Write operations are exclusive - no other reads or writes
	// can proceed while a write lock is held.
	WriteOperation
)

// String returns the operation name used in logs
func (o OperationType) String() string {
	if o == WriteOperation {
		return "write"
	}
	return "read"
}

// LockManager provides centralized lock management for engines that keep
// their records in memory. Every engine operation goes through Execute or
// ExecuteWithResult so the choice between shared and exclusive locking
// lives in one place.
type LockManager struct {
	mu sync.RWMutex
}

// NewLockManager creates a new lock manager instance.
func NewLockManager() *LockManager {
	return &LockManager{}
}

// Execute runs fn while holding the lock appropriate for opType. The lock is
// released via defer, even if fn panics.
//
// Example:
//
//	err := lockManager.Execute(ReadOperation, func() error {
//	    // Safe to read data here
//	    return nil
//	})
func (lm *LockManager) Execute(opType OperationType, fn func() error) error {
	lm.lock(opType)
	defer lm.unlock(opType)
	return fn()
}

// ExecuteWithResult is Execute for functions that produce a value.
//
// Example:
//
//	records, err := ExecuteWithResult(lm, ReadOperation, func() ([]types.Record, error) {
//	    return matching, nil
//	})
func ExecuteWithResult[T any](lm *LockManager, opType OperationType, fn func() (T, error)) (T, error) {
	lm.lock(opType)
	defer lm.unlock(opType)
	return fn()
}

func (lm *LockManager) lock(opType OperationType) {
	if opType == WriteOperation {
		lm.mu.Lock()
		return
	}
	lm.mu.RLock()
}

func (lm *LockManager) unlock(opType OperationType) {
	if opType == WriteOperation {
		lm.mu.Unlock()
		return
	}
	lm.mu.RUnlock()
}
