package expr

// Variables returns the set of fact names referenced anywhere in the tree.
// Order-independent; collection is a pure recursive walk that never fails,
// even over malformed trees.
func Variables(expression any) map[string]struct{} {
	vars := make(map[string]struct{})
	collectVariables(expression, vars)
	return vars
}

func collectVariables(node any, vars map[string]struct{}) {
	switch n := node.(type) {
	case map[string]any:
		for op, operand := range n {
			if op == OpVar {
				if name, ok := varName(operand); ok {
					vars[name] = struct{}{}
					continue
				}
			}
			collectVariables(operand, vars)
		}
	case []any:
		for _, elem := range n {
			collectVariables(elem, vars)
		}
	}
}

// varName extracts the fact name from a var operand, accepting both the
// bare string and one-element list forms.
func varName(operand any) (string, bool) {
	switch o := operand.(type) {
	case string:
		return o, true
	case []any:
		if len(o) > 0 {
			if s, ok := o[0].(string); ok {
				return s, true
			}
		}
	}
	return "", false
}
