package eligibility

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pathwaylegal/rulekeeper/internal/types"
)

// VersionSource supplies the current rule version and its requirements.
// Satisfied by *store.Store.
type VersionSource interface {
	GetCurrent(ctx context.Context, subject types.SubjectID) (*types.RuleVersion, error)
	ListRequirements(ctx context.Context, version types.VersionID) ([]types.Requirement, error)
}

// Service answers "is this case eligible" for a subject by reading the
// current version's active requirements and aggregating their evaluations.
type Service struct {
	source VersionSource
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates an eligibility evaluation service.
func NewService(source VersionSource, opts ...Option) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("version source is required")
	}
	s := &Service{source: source, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EvaluateSubject evaluates facts against the subject's current rule
// version. A subject with no current version aggregates to the empty-ruleset
// result rather than erroring; storage failures propagate.
func (s *Service) EvaluateSubject(ctx context.Context, subject types.SubjectID, facts types.Facts) (types.AggregateEvaluation, error) {
	version, err := s.source.GetCurrent(ctx, subject)
	if errors.Is(err, types.ErrNotFound) {
		s.logger.Warn("no current rule version for subject", "subject_id", subject)
		return Aggregate(nil), nil
	}
	if err != nil {
		return types.AggregateEvaluation{}, fmt.Errorf("load current version: %w", err)
	}

	reqs, err := s.source.ListRequirements(ctx, version.ID)
	if err != nil {
		return types.AggregateEvaluation{}, fmt.Errorf("load requirements: %w", err)
	}

	evals := make([]RequirementEvaluation, 0, len(reqs))
	for _, req := range reqs {
		if !req.Active {
			continue
		}
		evals = append(evals, Evaluate(req, facts))
	}
	return Aggregate(evals), nil
}
