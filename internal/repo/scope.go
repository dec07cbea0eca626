// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the transaction coordinator: a small
// wrapper around GORM transactions that lets an arbitrary set of repository
// calls share one transactional context and commit or roll back together.
//
// Every repository function in this package takes a *gorm.DB handle. Passing
// the pooled handle runs the call in its own implicit, self-contained
// transaction (the common case, safe for concurrent independent callers).
// Passing a Scope's handle binds the call to that scope instead:
//
//	scope, err := coord.Begin(ctx)
//	if err != nil { ... }
//	defer scope.Close()
//
//	ad, err := repo.CreateAd(ctx, scope.DB(), ad)
//	...
//	if err := repo.AddAdImage(ctx, scope.DB(), ad.ID, url); err != nil { ... }
//	return scope.Commit()
//
// A Scope belongs to exactly one logical operation chain. Sharing one scope
// between concurrent goroutines is not supported; the internal mutex only
// guarantees that a finalized scope deterministically rejects further use
// with ErrScopeFinalized rather than corrupting the transaction.
package repo

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Coordinator owns transaction lifetime on top of a pooled GORM handle.
type Coordinator struct {
	db *gorm.DB
}

// NewCoordinator returns a Coordinator bound to the given pooled handle.
func NewCoordinator(db *gorm.DB) *Coordinator {
	return &Coordinator{db: db}
}

// DB returns the pooled, non-transactional handle for standalone operations.
func (c *Coordinator) DB() *gorm.DB { return c.db }

// Begin starts a new transaction and returns its Scope. The caller must
// finalize the scope with Commit or Rollback; deferring Close guarantees
// release on every exit path.
func (c *Coordinator) Begin(ctx context.Context) (*Scope, error) {
	tx := c.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &Scope{tx: tx}, nil
}

// Atomic runs fn inside a single transaction, committing on nil and rolling
// back on error or panic. It mirrors gorm.DB.Transaction and is the preferred
// shape when the whole unit of work lives in one function.
func (c *Coordinator) Atomic(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.db.WithContext(ctx).Transaction(fn)
}

// Scope is one open transaction shared by all repository calls that receive
// its handle via DB(). It commits or rolls back exactly once.
type Scope struct {
	mu   sync.Mutex
	tx   *gorm.DB
	done bool
}

// DB returns the transaction handle. Repository operations executed against
// it observe and mutate the scope's uncommitted state.
func (s *Scope) DB() *gorm.DB { return s.tx }

// Commit finalizes all writes made through the scope since Begin.
// It returns ErrScopeFinalized if the scope was already committed or rolled
// back, and the driver's error if the commit itself fails.
func (s *Scope) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return ErrScopeFinalized
	}
	s.done = true
	return s.tx.Commit().Error
}

// Rollback discards all writes made through the scope.
// It returns ErrScopeFinalized if the scope was already finalized.
func (s *Scope) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return ErrScopeFinalized
	}
	s.done = true
	return s.tx.Rollback().Error
}

// Close rolls back the scope if it has not been finalized yet. It is safe to
// defer unconditionally right after Begin.
func (s *Scope) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	s.tx.Rollback()
}
