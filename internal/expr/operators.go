package expr

import (
	"fmt"
	"math"
	"strings"
)

/*
 * Operator whitelist and application logic.
 *
 * Implements the fixed operator set of the expression language: boolean
 * connectives, comparisons, arithmetic and membership over JSON scalars.
 * Anything outside the whitelist is rejected by the validator before an
 * expression can be persisted.
 *
 * Nil handling: raw evaluation may see nil operands during the validator's
 * dry run (variables resolve to nil against an empty fact map). Comparisons
 * against incomparable types yield false, arithmetic with a nil operand
 * yields nil. Genuine type errors (string arithmetic, division by zero,
 * wrong arity) surface as errors.
 */

// OpVar is the variable-reference operator; handled by the evaluator rather
// than applyOp because it reads the fact map.
const OpVar = "var"

// arity bounds per operator. Max = 0 means unbounded.
type arity struct {
	Min, Max int
}

// operators is the fixed whitelist. The validator rejects any operation
// node whose key is absent from this table.
var operators = map[string]arity{
	OpVar: {1, 1},
	"==":  {2, 2},
	"!=":  {2, 2},
	">":   {2, 2},
	">=":  {2, 2},
	"<":   {2, 2},
	"<=":  {2, 2},
	"and": {1, 0},
	"or":  {1, 0},
	"!":   {1, 1},
	"!!":  {1, 1},
	"+":   {1, 0},
	"-":   {1, 2},
	"*":   {1, 0},
	"/":   {2, 2},
	"%":   {2, 2},
	"in":  {2, 2},
	"min": {1, 0},
	"max": {1, 0},
}

// IsOperator reports whether name is in the operator whitelist.
func IsOperator(name string) bool {
	_, ok := operators[name]
	return ok
}

// checkArity validates the operand count for op.
func checkArity(op string, n int) error {
	a := operators[op]
	if n < a.Min {
		return fmt.Errorf("operator %q expects at least %d operands, got %d", op, a.Min, n)
	}
	if a.Max > 0 && n > a.Max {
		return fmt.Errorf("operator %q expects at most %d operands, got %d", op, a.Max, n)
	}
	return nil
}

// applyOp applies op to already-evaluated operands. "and"/"or"/"var" are
// handled by the evaluator (short-circuit and fact access respectively).
func applyOp(op string, args []any) (any, error) {
	switch op {
	case "==":
		return looseEqual(args[0], args[1]), nil
	case "!=":
		return !looseEqual(args[0], args[1]), nil
	case ">", ">=", "<", "<=":
		cmp, ok := compareOrdered(args[0], args[1])
		if !ok {
			return false, nil
		}
		switch op {
		case ">":
			return cmp > 0, nil
		case ">=":
			return cmp >= 0, nil
		case "<":
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	case "!":
		return !isTruthy(args[0]), nil
	case "!!":
		return isTruthy(args[0]), nil
	case "+", "*", "min", "max":
		return foldNumeric(op, args)
	case "-":
		return applySub(args)
	case "/", "%":
		return applyDiv(op, args)
	case "in":
		return applyIn(args[0], args[1])
	default:
		return nil, fmt.Errorf("operator %q not allowed", op)
	}
}

// looseEqual performs equality with numeric type coercion so float64/int
// mixing from JSON compares as expected. Incomparable types are unequal.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

// compareOrdered performs three-way comparison over numbers or strings.
// ok=false for incomparable operands (including nil); the comparison
// operators then evaluate to false rather than erroring.
func compareOrdered(a, b any) (int, bool) {
	if na, nb, ok := asNumbers(a, b); ok {
		switch {
		case na < nb:
			return -1, true
		case na > nb:
			return 1, true
		default:
			return 0, true
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

// foldNumeric reduces +, *, min, max over the operand list.
// A nil operand makes the whole result nil (missing data propagates).
func foldNumeric(op string, args []any) (any, error) {
	nums, anyNil, err := toNumbers(op, args)
	if err != nil {
		return nil, err
	}
	if anyNil {
		return nil, nil
	}
	acc := nums[0]
	for _, n := range nums[1:] {
		switch op {
		case "+":
			acc += n
		case "*":
			acc *= n
		case "min":
			acc = math.Min(acc, n)
		case "max":
			acc = math.Max(acc, n)
		}
	}
	return acc, nil
}

// applySub handles unary negation and binary subtraction.
func applySub(args []any) (any, error) {
	nums, anyNil, err := toNumbers("-", args)
	if err != nil {
		return nil, err
	}
	if anyNil {
		return nil, nil
	}
	if len(nums) == 1 {
		return -nums[0], nil
	}
	return nums[0] - nums[1], nil
}

// applyDiv handles division and modulo. Division by a genuine numeric zero
// is a runtime error; nil operands propagate as nil.
func applyDiv(op string, args []any) (any, error) {
	nums, anyNil, err := toNumbers(op, args)
	if err != nil {
		return nil, err
	}
	if anyNil {
		return nil, nil
	}
	if nums[1] == 0 {
		return nil, fmt.Errorf("division by zero")
	}
	if op == "%" {
		return math.Mod(nums[0], nums[1]), nil
	}
	return nums[0] / nums[1], nil
}

// applyIn tests membership of needle in a list or substring in a string.
// A nil haystack yields false.
func applyIn(needle, haystack any) (any, error) {
	switch h := haystack.(type) {
	case nil:
		return false, nil
	case []any:
		for _, elem := range h {
			if looseEqual(needle, elem) {
				return true, nil
			}
		}
		return false, nil
	case string:
		ns, ok := needle.(string)
		if !ok {
			return false, nil
		}
		return strings.Contains(h, ns), nil
	default:
		return nil, fmt.Errorf("operator \"in\" requires a list or string haystack, got %T", haystack)
	}
}

// toNumbers converts operands to float64, reporting whether any was nil.
// Non-numeric, non-nil operands are a type error.
func toNumbers(op string, args []any) ([]float64, bool, error) {
	nums := make([]float64, len(args))
	anyNil := false
	for i, a := range args {
		if a == nil {
			anyNil = true
			continue
		}
		n, ok := toFloat64(a)
		if !ok {
			return nil, false, fmt.Errorf("operator %q requires numeric operands, got %T", op, a)
		}
		nums[i] = n
	}
	return nums, anyNil, nil
}

// asNumbers attempts to convert both values to float64.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

// toFloat64 converts numeric types produced by JSON unmarshaling or by
// in-process construction (float64, int, int64).
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// isTruthy implements result truthiness: nil, false, zero, empty string and
// empty list are false; everything else is true.
func isTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	default:
		if n, ok := toFloat64(v); ok {
			return n != 0
		}
		return true
	}
}
