package sqlite

import (
	"context"
	"time"

	"github.com/mistakeknot/stride/internal/core"
	"github.com/mistakeknot/stride/internal/storage"
)

// Compile-time interface check.
var _ storage.Store = (*ResilientStore)(nil)

// ResilientStore wraps every method of *Store with CircuitBreaker +
// RetryOnDBLock to provide resilience against transient SQLite errors
// (database-is-locked, connection failures, etc.).
type ResilientStore struct {
	inner *Store
	cb    *CircuitBreaker
}

// NewResilient creates a ResilientStore with default circuit breaker settings
// (threshold=5, resetTimeout=30s).
func NewResilient(inner *Store) *ResilientStore {
	return &ResilientStore{inner: inner, cb: NewCircuitBreaker(5, 30*time.Second)}
}

// NewResilientWithBreaker creates a ResilientStore with a custom circuit breaker.
func NewResilientWithBreaker(inner *Store, cb *CircuitBreaker) *ResilientStore {
	return &ResilientStore{inner: inner, cb: cb}
}

// CircuitBreakerState returns the current state of the circuit breaker as a string.
func (r *ResilientStore) CircuitBreakerState() string {
	return r.cb.State().String()
}

func (r *ResilientStore) Add(ctx context.Context, title, description string) (core.Task, error) {
	var result core.Task
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			var innerErr error
			result, innerErr = r.inner.Add(ctx, title, description)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) InsertAt(ctx context.Context, id int, title, description string) (core.Task, error) {
	var result core.Task
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			var innerErr error
			result, innerErr = r.inner.InsertAt(ctx, id, title, description)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) List(ctx context.Context) ([]core.Task, error) {
	var result []core.Task
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			var innerErr error
			result, innerErr = r.inner.List(ctx)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) Search(ctx context.Context, keyword string) ([]core.Task, error) {
	var result []core.Task
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			var innerErr error
			result, innerErr = r.inner.Search(ctx, keyword)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) Complete(ctx context.Context, id int) (bool, error) {
	var result bool
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			var innerErr error
			result, innerErr = r.inner.Complete(ctx, id)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) Uncomplete(ctx context.Context, id int) (bool, error) {
	var result bool
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			var innerErr error
			result, innerErr = r.inner.Uncomplete(ctx, id)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) Edit(ctx context.Context, id int, title, description *string) (bool, error) {
	var result bool
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			var innerErr error
			result, innerErr = r.inner.Edit(ctx, id, title, description)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) Delete(ctx context.Context, id int) (bool, error) {
	var result bool
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			var innerErr error
			result, innerErr = r.inner.Delete(ctx, id)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) ListDeleted(ctx context.Context, limit int) ([]core.DeletedTask, error) {
	var result []core.DeletedTask
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			var innerErr error
			result, innerErr = r.inner.ListDeleted(ctx, limit)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) Restore(ctx context.Context, archiveID int) (bool, error) {
	var result bool
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			var innerErr error
			result, innerErr = r.inner.Restore(ctx, archiveID)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) Renumber(ctx context.Context) error {
	return r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			return r.inner.Renumber(ctx)
		})
	})
}

func (r *ResilientStore) Counts(ctx context.Context) (core.Counts, error) {
	var result core.Counts
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(func() error {
			var innerErr error
			result, innerErr = r.inner.Counts(ctx)
			return innerErr
		})
	})
	return result, err
}

// Close delegates directly to the inner store without CB or retry.
func (r *ResilientStore) Close() error {
	return r.inner.Close()
}
