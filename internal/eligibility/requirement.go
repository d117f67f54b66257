// Package eligibility turns stored requirements and per-case facts into a
// graded outcome: per-requirement evaluation plus deterministic aggregation
// of many partial or missing-data signals into one outcome and confidence.
package eligibility

import (
	"fmt"

	"github.com/pathwaylegal/rulekeeper/internal/expr"
	"github.com/pathwaylegal/rulekeeper/internal/types"
)

// RequirementEvaluation is one aggregation input: a requirement's code and
// mandatory flag alongside its evaluation result.
type RequirementEvaluation struct {
	Code      string
	Mandatory bool
	Result    types.EvaluationResult
}

// EvaluateRequirement evaluates one stored requirement against facts.
//
// The stored expression is re-validated first: a corrupted or invalid row
// yields a failed result carrying the validation message instead of an
// error, so one bad requirement never aborts a batch.
func EvaluateRequirement(req types.Requirement, facts types.Facts) types.EvaluationResult {
	if req.Expression == nil && len(req.RawExpr) > 0 {
		if err := req.DecodeExpression(); err != nil {
			return types.EvaluationResult{
				Error: fmt.Sprintf("stored expression is not valid JSON: %v", err),
			}
		}
	}
	if err := expr.Validate(req.Expression); err != nil {
		return types.EvaluationResult{Error: err.Error()}
	}
	return expr.Evaluate(req.Expression, facts)
}

// Evaluate pairs EvaluateRequirement with the requirement's aggregation
// metadata, ready to feed Aggregate.
func Evaluate(req types.Requirement, facts types.Facts) RequirementEvaluation {
	return RequirementEvaluation{
		Code:      req.Code,
		Mandatory: req.Mandatory,
		Result:    EvaluateRequirement(req, facts),
	}
}
