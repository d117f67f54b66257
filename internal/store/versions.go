package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pathwaylegal/rulekeeper/internal/types"
)

const entityRuleVersion = "rule version"

// UpdateVersionFields carries the settable rule-version fields. Protected
// fields (id, lock version, created_at) have no representation here and can
// never travel through Update.
type UpdateVersionFields struct {
	EffectiveFrom    *time.Time
	EffectiveTo      *time.Time
	ClearEffectiveTo bool
}

// Create inserts a new Draft version with lock version 1.
func (s *Store) Create(ctx context.Context, subject types.SubjectID, effectiveFrom time.Time, effectiveTo *time.Time, actor string) (*types.RuleVersion, error) {
	v, err := s.createVersion(ctx, s.db, subject, effectiveFrom, effectiveTo, actor)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(subject)
	return v, nil
}

// CreateTx is Create inside a caller-owned transaction; the caller
// invalidates the cache after commit.
func (s *Store) CreateTx(ctx context.Context, tx *sqlx.Tx, subject types.SubjectID, effectiveFrom time.Time, effectiveTo *time.Time, actor string) (*types.RuleVersion, error) {
	return s.createVersion(ctx, tx, subject, effectiveFrom, effectiveTo, actor)
}

func (s *Store) createVersion(ctx context.Context, ext sqlx.ExtContext, subject types.SubjectID, effectiveFrom time.Time, effectiveTo *time.Time, actor string) (*types.RuleVersion, error) {
	now := s.now()
	v := &types.RuleVersion{
		ID:            types.NewVersionID(),
		SubjectID:     subject,
		EffectiveFrom: effectiveFrom,
		EffectiveTo:   effectiveTo,
		Published:     false,
		LockVersion:   1,
		CreatedBy:     actor,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err := s.queries.Exec(ctx, ext, "insert-rule-version",
		v.ID, v.SubjectID, v.EffectiveFrom, v.EffectiveTo, v.CreatedBy, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert rule version: %w", err)
	}
	return v, nil
}

// GetByID fetches a version by id, including soft-deleted rows.
func (s *Store) GetByID(ctx context.Context, id types.VersionID) (*types.RuleVersion, error) {
	return s.getByID(ctx, s.db, id)
}

// GetByIDTx is GetByID inside a caller-owned transaction.
func (s *Store) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id types.VersionID) (*types.RuleVersion, error) {
	return s.getByID(ctx, tx, id)
}

func (s *Store) getByID(ctx context.Context, ext sqlx.ExtContext, id types.VersionID) (*types.RuleVersion, error) {
	var v types.RuleVersion
	err := s.queries.Get(ctx, ext, "get-rule-version", &v, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", entityRuleVersion, id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get rule version: %w", err)
	}
	return &v, nil
}

// ListBySubject returns all versions of a subject ordered by effective_from,
// soft-deleted rows included.
func (s *Store) ListBySubject(ctx context.Context, subject types.SubjectID) ([]types.RuleVersion, error) {
	var versions []types.RuleVersion
	if err := s.queries.Select(ctx, s.db, "list-rule-versions-by-subject", &versions, subject); err != nil {
		return nil, fmt.Errorf("list rule versions: %w", err)
	}
	return versions, nil
}

// GetCurrent returns the published, non-deleted version whose effective
// range contains now. Read-through cached per subject; by the non-overlap
// invariant at most one such version exists.
func (s *Store) GetCurrent(ctx context.Context, subject types.SubjectID) (*types.RuleVersion, error) {
	if v, ok := s.cache.Get(subject); ok {
		return v, nil
	}

	now := s.now()
	var v types.RuleVersion
	err := s.queries.Get(ctx, s.db, "get-current-rule-version", &v, subject, now, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("current version for subject %s: %w", subject, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get current rule version: %w", err)
	}

	s.cache.Set(subject, &v)
	return &v, nil
}

// GetOpenTx returns the subject's open published version, or nil when no
// version is open. Used inside publishing to close the superseded version.
func (s *Store) GetOpenTx(ctx context.Context, tx *sqlx.Tx, subject types.SubjectID) (*types.RuleVersion, error) {
	var v types.RuleVersion
	err := s.queries.Get(ctx, tx, "get-open-rule-version", &v, subject)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get open rule version: %w", err)
	}
	return &v, nil
}

// Update applies the settable fields through one conditional write.
// Returns *types.OptimisticLockError when expectedVersion is stale.
func (s *Store) Update(ctx context.Context, id types.VersionID, expectedVersion int64, fields UpdateVersionFields) error {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	newFrom := current.EffectiveFrom
	if fields.EffectiveFrom != nil {
		newFrom = *fields.EffectiveFrom
	}
	newTo := current.EffectiveTo
	if fields.EffectiveTo != nil {
		newTo = fields.EffectiveTo
	}
	if fields.ClearEffectiveTo {
		newTo = nil
	}

	err = s.execVersioned(ctx, s.db, entityRuleVersion,
		"update-rule-version", "get-rule-version-lock", string(id), expectedVersion,
		newFrom, newTo, s.now(), id, expectedVersion)
	if err != nil {
		return err
	}
	s.cache.Invalidate(current.SubjectID)
	return nil
}

// Publish marks the version published, stamping published_at/published_by
// and incrementing the lock version.
func (s *Store) Publish(ctx context.Context, id types.VersionID, expectedVersion int64, actor string) error {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.PublishTx(ctx, nil, id, expectedVersion, actor); err != nil {
		return err
	}
	s.cache.Invalidate(current.SubjectID)
	return nil
}

// PublishTx is Publish inside a caller-owned transaction. A nil tx runs
// against the connection directly.
func (s *Store) PublishTx(ctx context.Context, tx *sqlx.Tx, id types.VersionID, expectedVersion int64, actor string) error {
	var ext sqlx.ExtContext = s.db
	if tx != nil {
		ext = tx
	}
	now := s.now()
	return s.execVersioned(ctx, ext, entityRuleVersion,
		"publish-rule-version", "get-rule-version-lock", string(id), expectedVersion,
		now, actor, now, id, expectedVersion)
}

// SoftDelete marks the version deleted through one conditional write.
func (s *Store) SoftDelete(ctx context.Context, id types.VersionID, expectedVersion int64) error {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	now := s.now()
	err = s.execVersioned(ctx, s.db, entityRuleVersion,
		"soft-delete-rule-version", "get-rule-version-lock", string(id), expectedVersion,
		now, now, id, expectedVersion)
	if err != nil {
		return err
	}
	s.cache.Invalidate(current.SubjectID)
	return nil
}

// CloseTx sets effective_to, moving an open version to Superseded.
func (s *Store) CloseTx(ctx context.Context, tx *sqlx.Tx, id types.VersionID, expectedVersion int64, effectiveTo time.Time) error {
	return s.execVersioned(ctx, tx, entityRuleVersion,
		"close-rule-version", "get-rule-version-lock", string(id), expectedVersion,
		effectiveTo, s.now(), id, expectedVersion)
}

// ReopenTx forces a version back to the open current shape: undeleted,
// published, effective from the given instant with no end. Used by rollback,
// which is forward-looking rather than a historical rewrite.
func (s *Store) ReopenTx(ctx context.Context, tx *sqlx.Tx, id types.VersionID, expectedVersion int64, actor string, effectiveFrom time.Time) error {
	now := s.now()
	return s.execVersioned(ctx, tx, entityRuleVersion,
		"reopen-rule-version", "get-rule-version-lock", string(id), expectedVersion,
		now, actor, effectiveFrom, now, id, expectedVersion)
}
