// Package rollback restores an earlier rule version as the open current
// version of its subject. Rollback is forward-looking: the target is forced
// back to the open shape effective from "now", never rewriting history.
package rollback

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/pathwaylegal/rulekeeper/internal/store"
	"github.com/pathwaylegal/rulekeeper/internal/types"
)

// Controller performs rollbacks against the store.
type Controller struct {
	store  *store.Store
	logger *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// New creates a Controller over the store.
func New(st *store.Store, opts ...Option) (*Controller, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	c := &Controller{
		store:  st,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Result reports which rollback steps actually changed state. Both may be
// false when the current version was already closed and the target already
// had the open shape.
type Result struct {
	CurrentVersionClosed    bool
	PreviousVersionReopened bool
}

// Rollback closes the current version and restores target as the subject's
// open current version.
//
// Preconditions, each checked before anything is written: both ids resolve,
// both versions belong to the same subject, and target became effective
// strictly before current. A precondition failure mutates nothing.
//
// Inside one transaction with one captured instant: current is closed one
// tick before now when it is published, not deleted and still open or ahead
// of now; target is forced to the open shape (undeleted, published,
// effective from now with no end) in a single conditional write.
func (c *Controller) Rollback(ctx context.Context, currentID, targetID types.VersionID, actor string) (Result, error) {
	current, err := c.store.GetByID(ctx, currentID)
	if err != nil {
		return Result{}, fmt.Errorf("current version: %w", err)
	}
	target, err := c.store.GetByID(ctx, targetID)
	if err != nil {
		return Result{}, fmt.Errorf("target version: %w", err)
	}
	if current.SubjectID != target.SubjectID {
		return Result{}, fmt.Errorf("rollback %s to %s: %w", currentID, targetID, types.ErrSubjectMismatch)
	}
	if !target.EffectiveFrom.Before(current.EffectiveFrom) {
		return Result{}, fmt.Errorf("rollback %s to %s: %w", currentID, targetID, types.ErrRollbackNotEarlier)
	}

	now := c.store.Now()

	var result Result
	err = c.store.WithinTx(ctx, func(tx *sqlx.Tx) error {
		// Re-read inside the transaction so the conditional writes run
		// against fresh lock versions.
		cur, err := c.store.GetByIDTx(ctx, tx, currentID)
		if err != nil {
			return fmt.Errorf("current version: %w", err)
		}
		tgt, err := c.store.GetByIDTx(ctx, tx, targetID)
		if err != nil {
			return fmt.Errorf("target version: %w", err)
		}

		if cur.Published && !cur.Deleted() && (cur.EffectiveTo == nil || cur.EffectiveTo.After(now)) {
			if err := c.store.CloseTx(ctx, tx, cur.ID, cur.LockVersion, now.Add(-types.Tick)); err != nil {
				return fmt.Errorf("close current version: %w", err)
			}
			result.CurrentVersionClosed = true
		}

		// The reopen runs regardless; whether it visibly changed state is
		// reported from the pre-write shape.
		result.PreviousVersionReopened = tgt.Deleted() || !tgt.Published || tgt.EffectiveTo != nil
		if err := c.store.ReopenTx(ctx, tx, tgt.ID, tgt.LockVersion, actor, now); err != nil {
			return fmt.Errorf("reopen target version: %w", err)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	c.store.InvalidateCurrent(current.SubjectID)

	c.logger.Info("rolled back rule version",
		"subject_id", current.SubjectID,
		"closed", currentID,
		"restored", targetID,
		"actor", actor,
		"current_closed", result.CurrentVersionClosed,
		"target_reopened", result.PreviousVersionReopened)

	return result, nil
}
