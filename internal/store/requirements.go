package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pathwaylegal/rulekeeper/internal/types"
)

// InsertRequirementTx persists one requirement under its owning version.
// The expression must already have passed validation; requirements are
// immutable once written, so there is no update path.
func (s *Store) InsertRequirementTx(ctx context.Context, tx *sqlx.Tx, req *types.Requirement) error {
	if len(req.RawExpr) == 0 {
		raw, err := json.Marshal(req.Expression)
		if err != nil {
			return fmt.Errorf("encode expression for requirement %q: %w", req.Code, err)
		}
		req.RawExpr = raw
	}
	if req.ID == "" {
		req.ID = types.NewRequirementID()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = s.now()
	}

	_, err := s.queries.Exec(ctx, tx, "insert-requirement",
		req.ID, req.VersionID, req.Code, req.Description, req.RawExpr,
		req.Mandatory, req.Active, req.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert requirement %q: %w", req.Code, err)
	}
	return nil
}

// ListRequirements returns a version's requirements ordered by code, with
// expressions decoded and ready for evaluation.
func (s *Store) ListRequirements(ctx context.Context, version types.VersionID) ([]types.Requirement, error) {
	var reqs []types.Requirement
	if err := s.queries.Select(ctx, s.db, "list-requirements", &reqs, version); err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	for i := range reqs {
		// Decode failures are deliberately left to evaluation time, where a
		// corrupted row degrades into a failed result instead of aborting
		// the whole read.
		_ = reqs[i].DecodeExpression()
	}
	return reqs, nil
}
