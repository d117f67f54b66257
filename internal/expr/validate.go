package expr

import (
	"fmt"

	"github.com/pathwaylegal/rulekeeper/internal/types"
)

/*
 * Structural validation of candidate expression trees.
 *
 * This is the only gate between partially-trusted upstream input and the
 * rule store: everything downstream assumes validity. The pass is read-only
 * and enforces three things before a tree may ever be persisted:
 *
 *   1. Shape: the outer value is a non-empty object or array, never a bare
 *      primitive; every operation node has exactly one key (multi-key maps
 *      are ambiguous) naming a whitelisted operator.
 *   2. Size: depth and cumulative node count stay inside the limits in
 *      internal/types, so hostile inputs cannot blow the stack or make
 *      evaluation cost unbounded.
 *   3. Executability: a dry run against an empty fact map catches operand
 *      problems the structural pass cannot see (malformed arity, non-string
 *      var names). Variables resolve to nil during the dry run, so rules
 *      over real facts still validate.
 */

// Validate checks a candidate expression tree for structural safety.
// Returns nil if the expression may be persisted.
func Validate(expression any) error {
	switch v := expression.(type) {
	case map[string]any:
		if len(v) == 0 {
			return types.ErrEmptyExpression
		}
	case []any:
		if len(v) == 0 {
			return types.ErrEmptyExpression
		}
	default:
		return fmt.Errorf("%w, got %T", types.ErrBareLiteral, expression)
	}

	nodes := 0
	if err := walkValidate(expression, 1, &nodes); err != nil {
		return err
	}

	if _, err := evalNode(expression, types.Facts{}); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidExpression, err)
	}
	return nil
}

// walkValidate recursively checks shape and size, tracking depth and the
// cumulative node count across the whole tree.
func walkValidate(node any, depth int, nodes *int) error {
	*nodes++
	if *nodes > types.MaxExpressionNodes {
		return fmt.Errorf("%w (%d)", types.ErrExpressionTooLarge, types.MaxExpressionNodes)
	}
	if depth > types.MaxExpressionDepth {
		return fmt.Errorf("%w (%d)", types.ErrExpressionTooDeep, types.MaxExpressionDepth)
	}

	switch n := node.(type) {
	case map[string]any:
		if len(n) == 0 {
			return types.ErrEmptyExpression
		}
		if len(n) > 1 {
			return fmt.Errorf("%w, got %d", types.ErrAmbiguousOperator, len(n))
		}
		for op, operand := range n {
			if !IsOperator(op) {
				return fmt.Errorf("%w: %q", types.ErrUnknownOperator, op)
			}
			if err := walkValidate(operand, depth+1, nodes); err != nil {
				return err
			}
		}
	case []any:
		for _, elem := range n {
			if err := walkValidate(elem, depth+1, nodes); err != nil {
				return err
			}
		}
	}
	// Primitive leaves always pass.
	return nil
}
