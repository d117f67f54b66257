// Package expr implements the sandboxed expression language used by
// eligibility requirements: validation of candidate trees, variable
// extraction and pure evaluation against a fact map.
//
// Expressions are JSON-shaped trees (map[string]any / []any / scalars).
// An operation node is a single-key map whose key names a whitelisted
// operator and whose value is the operand list. There is no control flow;
// the language is a flat boolean/arithmetic tree over named facts.
package expr

import (
	"fmt"
	"sort"

	"github.com/pathwaylegal/rulekeeper/internal/types"
)

// Evaluate evaluates a validated expression against facts.
//
// Missing or null facts short-circuit to a not-passed result carrying the
// sorted missing fact names: the engine deliberately never evaluates against
// incomplete data, so null coercion can never produce a false pass or fail.
// Runtime errors (type mismatch, division by zero) are captured in the
// result, never returned as Go errors. Pure: identical inputs always yield
// identical outputs.
func Evaluate(expression any, facts types.Facts) types.EvaluationResult {
	var missing []string
	for name := range Variables(expression) {
		if v, ok := facts[name]; !ok || v == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return types.EvaluationResult{Passed: false, MissingFacts: missing}
	}

	raw, err := evalNode(expression, facts)
	if err != nil {
		return types.EvaluationResult{Passed: false, Error: err.Error()}
	}
	return types.EvaluationResult{Passed: isTruthy(raw)}
}

// evalNode recursively evaluates a node. Scalars are literals, lists
// evaluate element-wise, single-key maps apply their operator. "and"/"or"
// short-circuit so a failing branch after a decisive one is never executed.
func evalNode(node any, facts types.Facts) (any, error) {
	switch n := node.(type) {
	case map[string]any:
		if len(n) != 1 {
			return nil, fmt.Errorf("operation node must have exactly one key, got %d", len(n))
		}
		for op, operand := range n {
			return evalOp(op, operand, facts)
		}
		return nil, nil // unreachable
	case []any:
		out := make([]any, len(n))
		for i, elem := range n {
			v, err := evalNode(elem, facts)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		return node, nil
	}
}

// evalOp applies a single operator to its raw operand node.
func evalOp(op string, operand any, facts types.Facts) (any, error) {
	if !IsOperator(op) {
		return nil, fmt.Errorf("operator %q not allowed", op)
	}

	// Bare operand normalizes to a one-element operand list, so
	// {"var": "age"} and {"var": ["age"]} are equivalent.
	args, ok := operand.([]any)
	if !ok {
		args = []any{operand}
	}
	if err := checkArity(op, len(args)); err != nil {
		return nil, err
	}

	switch op {
	case OpVar:
		return resolveVar(args[0], facts)
	case "and":
		return evalConnective(op, args, facts)
	case "or":
		return evalConnective(op, args, facts)
	}

	vals := make([]any, len(args))
	for i, a := range args {
		v, err := evalNode(a, facts)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return applyOp(op, vals)
}

// evalConnective evaluates "and"/"or" with short-circuit semantics.
func evalConnective(op string, args []any, facts types.Facts) (any, error) {
	for _, a := range args {
		v, err := evalNode(a, facts)
		if err != nil {
			return nil, err
		}
		if op == "and" && !isTruthy(v) {
			return false, nil
		}
		if op == "or" && isTruthy(v) {
			return true, nil
		}
	}
	return op == "and", nil
}

// resolveVar resolves a variable reference against the fact map.
// A missing fact resolves to nil; the operand must be a literal string name.
func resolveVar(operand any, facts types.Facts) (any, error) {
	name, ok := operand.(string)
	if !ok {
		return nil, fmt.Errorf("var requires a string fact name, got %T", operand)
	}
	return facts[name], nil
}
