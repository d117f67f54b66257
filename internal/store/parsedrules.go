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

const entityParsedRule = "parsed rule"

// GetParsedRule fetches an upstream parsed-rule record by id.
func (s *Store) GetParsedRule(ctx context.Context, id types.ParsedRuleID) (*types.ParsedRule, error) {
	var rule types.ParsedRule
	err := s.queries.Get(ctx, s.db, "get-parsed-rule", &rule, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", entityParsedRule, id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get parsed rule: %w", err)
	}
	return &rule, nil
}

// InsertParsedRule seeds a parsed-rule record. Production records arrive
// from the upstream ingestion pipeline; this path serves tooling and tests.
func (s *Store) InsertParsedRule(ctx context.Context, rule *types.ParsedRule) error {
	if rule.ID == "" {
		rule.ID = types.NewParsedRuleID()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = s.now()
	}
	if rule.SourceVersion == 0 {
		rule.SourceVersion = 1
	}
	_, err := s.queries.Exec(ctx, s.db, "insert-parsed-rule",
		rule.ID, rule.SubjectCode, rule.SubjectName, rule.ReviewStatus,
		[]byte(rule.Payload), rule.SourceRef, rule.SourceVersion, rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert parsed rule: %w", err)
	}
	rule.LockVersion = 1
	return nil
}

// ConsumeParsedRuleTx marks the source record consumed, linking it to the
// version it produced. Conditional on lock version and not-yet-consumed.
func (s *Store) ConsumeParsedRuleTx(ctx context.Context, tx *sqlx.Tx, id types.ParsedRuleID, expectedVersion int64, producedVersion types.VersionID, consumedAt time.Time) error {
	return s.execVersioned(ctx, tx, entityParsedRule,
		"consume-parsed-rule", "get-parsed-rule-lock", string(id), expectedVersion,
		consumedAt, producedVersion, id, expectedVersion)
}
