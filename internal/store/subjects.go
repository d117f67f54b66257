package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pathwaylegal/rulekeeper/internal/types"
)

// GetSubjectByCode looks a policy subject up by natural key.
func (s *Store) GetSubjectByCode(ctx context.Context, code string) (*types.PolicySubject, error) {
	return s.subjectByCode(ctx, s.db, code)
}

// ResolveSubjectTx looks a subject up by natural key, creating it when
// absent. Runs inside the publishing transaction so a failed publish never
// leaves a stray subject behind.
func (s *Store) ResolveSubjectTx(ctx context.Context, tx *sqlx.Tx, code, name string) (*types.PolicySubject, error) {
	subject, err := s.subjectByCode(ctx, tx, code)
	if err == nil {
		return subject, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	subject = &types.PolicySubject{
		ID:        types.NewSubjectID(),
		Code:      code,
		Name:      name,
		CreatedAt: s.now(),
	}
	if _, err := s.queries.Exec(ctx, tx, "insert-subject",
		subject.ID, subject.Code, subject.Name, subject.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert subject %q: %w", code, err)
	}
	return subject, nil
}

func (s *Store) subjectByCode(ctx context.Context, ext sqlx.ExtContext, code string) (*types.PolicySubject, error) {
	var subject types.PolicySubject
	err := s.queries.Get(ctx, ext, "get-subject-by-code", &subject, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("subject %q: %w", code, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get subject: %w", err)
	}
	return &subject, nil
}
