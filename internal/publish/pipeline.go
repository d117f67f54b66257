// Package publish turns approved parsed rules into published, effective
// rule versions. The pipeline resolves the logic payload's shape, validates
// each candidate expression, and performs the whole state transition in one
// transaction: create version, insert requirements, close the superseded
// open version one tick earlier, publish, and consume the source record.
package publish

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/pathwaylegal/rulekeeper/internal/expr"
	"github.com/pathwaylegal/rulekeeper/internal/store"
	"github.com/pathwaylegal/rulekeeper/internal/types"
)

// Pipeline publishes approved parsed rules.
type Pipeline struct {
	store      *store.Store
	dispatcher Dispatcher
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithDispatcher replaces the publish-event dispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(p *Pipeline) { p.dispatcher = d }
}

// New creates a Pipeline over the store.
func New(st *store.Store, opts ...Option) (*Pipeline, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	p := &Pipeline{
		store:  st,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.dispatcher == nil {
		p.dispatcher = &LogDispatcher{Logger: p.logger}
	}
	return p, nil
}

// Result reports what a publish produced.
type Result struct {
	RuleVersionID         types.VersionID
	RequirementsCreated   int
	PreviousVersionClosed bool
}

// PublishApprovedRule publishes the parsed rule identified by id as a new
// effective rule version for its subject.
//
// The source record must be approved and not yet consumed. All writes run
// in one transaction; a failure at any step leaves no trace. When the
// subject already has an open version it is closed one tick before the new
// version becomes effective, so the timeline never overlaps and never gaps.
func (p *Pipeline) PublishApprovedRule(ctx context.Context, id types.ParsedRuleID, actor string) (Result, error) {
	rule, err := p.store.GetParsedRule(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if rule.ReviewStatus != types.ReviewStatusApproved {
		return Result{}, fmt.Errorf("parsed rule %s has review status %q: %w", id, rule.ReviewStatus, types.ErrNotApproved)
	}
	if rule.Consumed() {
		return Result{}, fmt.Errorf("parsed rule %s: %w", id, types.ErrAlreadyConsumed)
	}

	shape, candidates, err := ResolvePayload(rule.Payload)
	if err != nil {
		return Result{}, fmt.Errorf("parsed rule %s: %w", id, err)
	}

	// One captured instant anchors every boundary written below.
	effectiveFrom := p.store.Now()

	var (
		result  Result
		subject *types.PolicySubject
	)
	err = p.store.WithinTx(ctx, func(tx *sqlx.Tx) error {
		subject, err = p.store.ResolveSubjectTx(ctx, tx, rule.SubjectCode, rule.SubjectName)
		if err != nil {
			return err
		}

		version, err := p.store.CreateTx(ctx, tx, subject.ID, effectiveFrom, nil, actor)
		if err != nil {
			return err
		}

		created := 0
		for _, candidate := range candidates {
			if err := expr.Validate(candidate.Expression); err != nil {
				// An invalid candidate is skipped, not fatal: the rest of the
				// bundle still publishes.
				p.logger.Warn("skipping invalid requirement expression",
					"parsed_rule_id", id, "code", candidate.Code, "error", err)
				continue
			}
			req := &types.Requirement{
				VersionID:   version.ID,
				Code:        candidate.Code,
				Description: candidate.Description,
				Expression:  candidate.Expression,
				Mandatory:   candidate.Mandatory,
				Active:      candidate.Active,
			}
			if err := p.store.InsertRequirementTx(ctx, tx, req); err != nil {
				return err
			}
			created++
		}
		if created == 0 {
			p.logger.Warn("publishing version with no valid requirements", "parsed_rule_id", id)
		}

		open, err := p.store.GetOpenTx(ctx, tx, subject.ID)
		if err != nil {
			return err
		}
		if open != nil {
			if err := p.store.CloseTx(ctx, tx, open.ID, open.LockVersion, effectiveFrom.Add(-types.Tick)); err != nil {
				return err
			}
			result.PreviousVersionClosed = true
		}

		if err := p.store.PublishTx(ctx, tx, version.ID, version.LockVersion, actor); err != nil {
			return err
		}
		if err := p.store.ConsumeParsedRuleTx(ctx, tx, rule.ID, rule.LockVersion, version.ID, effectiveFrom); err != nil {
			return err
		}

		result.RuleVersionID = version.ID
		result.RequirementsCreated = created
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	p.store.InvalidateCurrent(subject.ID)

	p.logger.Info("published rule version",
		"parsed_rule_id", id,
		"subject", subject.Code,
		"version_id", result.RuleVersionID,
		"shape", shape,
		"requirements", result.RequirementsCreated,
		"previous_closed", result.PreviousVersionClosed)

	// Side effects are best effort; a delivery failure never unwinds the
	// committed publish.
	p.dispatch(ctx, StakeholderNotice{
		SubjectCode:  subject.Code,
		VersionID:    result.RuleVersionID,
		ParsedRuleID: rule.ID,
	})
	p.dispatch(ctx, IndexRefresh{
		SourceRef:     rule.SourceRef,
		SourceVersion: rule.SourceVersion,
	})

	return result, nil
}

func (p *Pipeline) dispatch(ctx context.Context, event Event) {
	if err := p.dispatcher.Dispatch(ctx, event); err != nil {
		p.logger.Error("publish event dispatch failed", "kind", event.Kind(), "error", err)
	}
}
