// Package store implements temporal, optimistically-locked persistence of
// versioned requirement bundles per policy subject, backed by sqlx over
// SQLite or PostgreSQL with named queries loaded through dotsql.
//
// Every mutable entity carries a monotonic lock version and every mutation
// is one conditional write (id + version match). A zero-row result is
// reported as either *types.OptimisticLockError or types.ErrNotFound,
// decided by a follow-up existence check. The store never retries; callers
// must refetch.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pathwaylegal/rulekeeper/internal/core/db"
	"github.com/pathwaylegal/rulekeeper/internal/types"
)

// Store persists policy subjects, rule versions, requirements and the
// parsed-rule inbox.
type Store struct {
	db      *sqlx.DB
	queries *db.Queries
	cache   VersionCache
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithCache replaces the current-version cache implementation.
func WithCache(cache VersionCache) Option {
	return func(s *Store) { s.cache = cache }
}

// WithClock replaces the time source. Tests pin it for deterministic
// effective-range boundaries.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store over an open database connection.
func New(conn *sqlx.DB, opts ...Option) (*Store, error) {
	if conn == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	queries, err := db.LoadQueries()
	if err != nil {
		return nil, err
	}
	s := &Store{
		db:      conn,
		queries: queries,
		cache:   NewMemoryVersionCache(DefaultCacheTTL),
		logger:  slog.Default(),
		now:     UTCNow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// UTCNow is the default clock: UTC, truncated to the tick resolution so
// stored boundaries round-trip identically through both drivers.
func UTCNow() time.Time {
	return time.Now().UTC().Truncate(types.Tick)
}

// Now exposes the store's clock for callers that must share one captured
// instant across a transaction.
func (s *Store) Now() time.Time { return s.now() }

// WithinTx runs fn inside one transaction. Any error from fn rolls back;
// partial application is never observable to readers.
func (s *Store) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// InvalidateCurrent drops the subject's cached current version. Callers
// running multi-row transactions invalidate after commit.
func (s *Store) InvalidateCurrent(subject types.SubjectID) {
	s.cache.Invalidate(subject)
}

// execVersioned runs one conditional write guarded by an optimistic lock
// and classifies a zero-row result. The mutation query must include the
// `lock_version = ?` guard and increment the lock itself; lockQuery must
// select the row's current lock version by id.
//
// Reused across every optimistically-locked entity: rule versions and
// parsed rules share this single code path.
func (s *Store) execVersioned(ctx context.Context, ext sqlx.ExtContext, entity, mutateQuery, lockQuery, id string, expected int64, args ...any) error {
	res, err := s.queries.Exec(ctx, ext, mutateQuery, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", mutateQuery, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", mutateQuery, err)
	}
	if affected == 1 {
		return nil
	}

	// Zero rows: distinguish not-found from a stale lock version.
	var actual int64
	err = s.queries.Get(ctx, ext, lockQuery, &actual, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, types.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", lockQuery, err)
	}
	if actual == expected {
		// The lock matched but a state guard (deleted, already consumed)
		// rejected the write; the entity is gone for this operation.
		return fmt.Errorf("%s %s: %w", entity, id, types.ErrNotFound)
	}
	return &types.OptimisticLockError{Entity: entity, ID: id, Expected: expected, Actual: actual}
}
