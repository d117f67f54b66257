// Package types provides domain models shared across rulekeeper components:
// fact maps and evaluation results, versioned rule entities, typed IDs,
// sentinel errors and the resource limits the expression validator enforces.
package types

import "time"

// Facts is a flat, string-keyed map of scalar inputs consumed by expression
// evaluation. Values are JSON scalars: bool, float64, string or nil.
// A nil value is treated the same as an absent key (missing fact).
type Facts map[string]any

// Outcome is the graded result category of an aggregate evaluation.
type Outcome string

const (
	OutcomeLikely   Outcome = "likely"
	OutcomePossible Outcome = "possible"
	OutcomeUnlikely Outcome = "unlikely"
)

// EvaluationResult is the per-requirement outcome of evaluating one
// expression against a fact map. Exactly one of three states holds:
// passed, missing data (MissingFacts non-empty) or failed (with optional
// runtime Error). Runtime errors are captured as data, never propagated.
type EvaluationResult struct {
	Passed       bool     `json:"passed"`
	MissingFacts []string `json:"missing_facts,omitempty"` // sorted fact names
	Error        string   `json:"error,omitempty"`         // runtime or validation message
}

// AggregateEvaluation combines many per-requirement results into one graded
// outcome with a confidence score in [0, 1].
type AggregateEvaluation struct {
	Outcome                 Outcome  `json:"outcome"`
	Confidence              float64  `json:"confidence"`
	RequirementsFailed      int      `json:"requirements_failed"`
	RequirementsMissingData int      `json:"requirements_with_missing_facts"`
	MissingFacts            []string `json:"missing_facts,omitempty"` // sorted union
	Warnings                []string `json:"warnings,omitempty"`
}

// Resource limits enforced by the expression validator. Oversized trees are
// rejected at authoring time; everything downstream assumes validity.
const (
	// MaxExpressionDepth bounds recursion during validation and evaluation.
	// 20 levels covers any realistic eligibility rule without risking the stack.
	MaxExpressionDepth = 20

	// MaxExpressionNodes caps total tree size to keep evaluation cost bounded.
	MaxExpressionNodes = 1000
)

// Tick is the smallest representable time step for effective-range
// boundaries. One microsecond is the finest resolution that round-trips
// through both PostgreSQL timestamptz and SQLite text storage.
const Tick = time.Microsecond
