package expr

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/pathwaylegal/rulekeeper/internal/types"
)

func TestValidate_Accepts(t *testing.T) {
	tests := []struct {
		name string
		expr any
	}{
		{
			name: "simple comparison",
			expr: map[string]any{">=": []any{map[string]any{"var": "age"}, float64(18)}},
		},
		{
			name: "nested connective",
			expr: map[string]any{"and": []any{
				map[string]any{"==": []any{map[string]any{"var": "status"}, "resident"}},
				map[string]any{"<": []any{map[string]any{"var": "absences"}, float64(180)}},
			}},
		},
		{
			name: "bare operand shorthand",
			expr: map[string]any{"!": map[string]any{"var": "flagged"}},
		},
		{
			name: "membership",
			expr: map[string]any{"in": []any{map[string]any{"var": "country"}, []any{"NL", "BE", "LU"}}},
		},
		{
			name: "arithmetic over variables",
			expr: map[string]any{">": []any{
				map[string]any{"+": []any{map[string]any{"var": "salary"}, map[string]any{"var": "bonus"}}},
				float64(40000),
			}},
		},
		{
			name: "top level list",
			expr: []any{map[string]any{"==": []any{float64(1), float64(1)}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(tt.expr); err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		expr    any
		wantErr error
	}{
		{
			name:    "bare literal",
			expr:    float64(42),
			wantErr: types.ErrBareLiteral,
		},
		{
			name:    "bare string",
			expr:    "age",
			wantErr: types.ErrBareLiteral,
		},
		{
			name:    "nil expression",
			expr:    nil,
			wantErr: types.ErrBareLiteral,
		},
		{
			name:    "empty object",
			expr:    map[string]any{},
			wantErr: types.ErrEmptyExpression,
		},
		{
			name:    "empty list",
			expr:    []any{},
			wantErr: types.ErrEmptyExpression,
		},
		{
			name:    "nested empty object",
			expr:    map[string]any{"!": map[string]any{}},
			wantErr: types.ErrEmptyExpression,
		},
		{
			name: "multi key operation node",
			expr: map[string]any{
				"==": []any{float64(1), float64(1)},
				"!=": []any{float64(1), float64(2)},
			},
			wantErr: types.ErrAmbiguousOperator,
		},
		{
			name:    "unknown operator",
			expr:    map[string]any{"exec": []any{"rm"}},
			wantErr: types.ErrUnknownOperator,
		},
		{
			name:    "unknown operator nested",
			expr:    map[string]any{"and": []any{map[string]any{"eval": "x"}}},
			wantErr: types.ErrUnknownOperator,
		},
		{
			name:    "non-string var name",
			expr:    map[string]any{"var": float64(7)},
			wantErr: types.ErrInvalidExpression,
		},
		{
			name:    "wrong arity",
			expr:    map[string]any{"==": []any{float64(1)}},
			wantErr: types.ErrInvalidExpression,
		},
		{
			name:    "literal division by zero",
			expr:    map[string]any{"/": []any{float64(1), float64(0)}},
			wantErr: types.ErrInvalidExpression,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.expr)
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// nestedNot builds a chain of n unary negations around a boolean literal.
func nestedNot(n int) any {
	var node any = true
	for i := 0; i < n; i++ {
		node = map[string]any{"!": node}
	}
	return node
}

func TestValidate_DepthLimit(t *testing.T) {
	// 19 nested maps keep the leaf at the depth limit; one more exceeds it.
	if err := Validate(nestedNot(19)); err != nil {
		t.Errorf("Validate(depth within limit) error = %v, want nil", err)
	}

	err := Validate(nestedNot(types.MaxExpressionDepth))
	if !errors.Is(err, types.ErrExpressionTooDeep) {
		t.Errorf("Validate(too deep) error = %v, want %v", err, types.ErrExpressionTooDeep)
	}
}

func TestValidate_NodeCountLimit(t *testing.T) {
	wide := func(n int) any {
		elems := make([]any, n)
		for i := range elems {
			elems[i] = true
		}
		return elems
	}

	// The outer list is a node itself, so n-1 elements stay at the limit.
	if err := Validate(wide(types.MaxExpressionNodes - 1)); err != nil {
		t.Errorf("Validate(at node limit) error = %v, want nil", err)
	}

	err := Validate(wide(types.MaxExpressionNodes))
	if !errors.Is(err, types.ErrExpressionTooLarge) {
		t.Errorf("Validate(too large) error = %v, want %v", err, types.ErrExpressionTooLarge)
	}
}

func TestValidate_PropertyOversizedAlwaysRejected(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("any depth beyond the limit is rejected", prop.ForAll(
		func(extra int) bool {
			err := Validate(nestedNot(types.MaxExpressionDepth + extra))
			return errors.Is(err, types.ErrExpressionTooDeep)
		},
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}

func TestValidate_PropertyPure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("repeated validation of the same tree agrees", prop.ForAll(
		func(threshold int, name string) bool {
			tree := map[string]any{">=": []any{map[string]any{"var": name}, float64(threshold)}}
			first := Validate(tree)
			second := Validate(tree)
			if first == nil {
				return second == nil
			}
			return second != nil && first.Error() == second.Error()
		},
		gen.IntRange(-1000, 1000),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
