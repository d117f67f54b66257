package publish

import (
	"encoding/json"
	"fmt"
)

// PayloadShape discriminates the four logic-payload forms produced by
// upstream extraction. Resolved exactly once at the pipeline boundary.
type PayloadShape int

const (
	ShapeUnknown PayloadShape = iota
	// ShapeRequirementsArray: object wrapping an explicit requirements list.
	ShapeRequirementsArray
	// ShapeSingleRequirement: one requirement object without a wrapper.
	ShapeSingleRequirement
	// ShapeBareExpression: a bare expression tree; becomes one synthetic
	// mandatory requirement.
	ShapeBareExpression
	// ShapeRequirementList: a top-level array of requirement objects.
	ShapeRequirementList
)

// String returns the shape name for logging.
func (s PayloadShape) String() string {
	switch s {
	case ShapeRequirementsArray:
		return "requirements-array"
	case ShapeSingleRequirement:
		return "single-requirement"
	case ShapeBareExpression:
		return "bare-expression"
	case ShapeRequirementList:
		return "requirement-list"
	default:
		return "unknown"
	}
}

// RequirementSpec is one candidate requirement extracted from a payload.
// Expression may be nil or malformed here; validation happens in the
// pipeline, where an invalid candidate is logged and skipped.
type RequirementSpec struct {
	Code        string
	Description string
	Expression  any
	Mandatory   bool
	Active      bool
}

// ResolvePayload discriminates the payload shape and normalizes it to a
// flat candidate list. Fails only for payloads that fit none of the four
// shapes; individual malformed candidates are left for the validator.
func ResolvePayload(raw json.RawMessage) (PayloadShape, []RequirementSpec, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return ShapeUnknown, nil, fmt.Errorf("logic payload is not valid JSON: %w", err)
	}

	switch payload := decoded.(type) {
	case []any:
		specs := make([]RequirementSpec, 0, len(payload))
		for i, elem := range payload {
			obj, ok := elem.(map[string]any)
			if !ok {
				return ShapeUnknown, nil, fmt.Errorf("payload list element %d is not a requirement object", i)
			}
			specs = append(specs, requirementSpec(obj, i))
		}
		return ShapeRequirementList, specs, nil

	case map[string]any:
		if len(payload) == 0 {
			return ShapeUnknown, nil, fmt.Errorf("logic payload is empty")
		}
		if list, ok := payload["requirements"].([]any); ok {
			specs := make([]RequirementSpec, 0, len(list))
			for i, elem := range list {
				obj, ok := elem.(map[string]any)
				if !ok {
					return ShapeUnknown, nil, fmt.Errorf("requirements element %d is not a requirement object", i)
				}
				specs = append(specs, requirementSpec(obj, i))
			}
			return ShapeRequirementsArray, specs, nil
		}
		if _, ok := payload["expression"]; ok {
			return ShapeSingleRequirement, []RequirementSpec{requirementSpec(payload, 0)}, nil
		}
		// Any other object is taken as a bare expression tree.
		return ShapeBareExpression, []RequirementSpec{{
			Code:        "requirement-1",
			Description: "Imported eligibility requirement",
			Expression:  payload,
			Mandatory:   true,
			Active:      true,
		}}, nil

	default:
		return ShapeUnknown, nil, fmt.Errorf("logic payload must be an object or array, got %T", decoded)
	}
}

// requirementSpec extracts one candidate from a requirement object,
// defaulting code by position and mandatory/active to true.
func requirementSpec(obj map[string]any, index int) RequirementSpec {
	spec := RequirementSpec{
		Code:        fmt.Sprintf("requirement-%d", index+1),
		Expression:  obj["expression"],
		Mandatory:   true,
		Active:      true,
	}
	if code, ok := obj["code"].(string); ok && code != "" {
		spec.Code = code
	}
	if desc, ok := obj["description"].(string); ok {
		spec.Description = desc
	}
	if mandatory, ok := obj["mandatory"].(bool); ok {
		spec.Mandatory = mandatory
	}
	if active, ok := obj["active"].(bool); ok {
		spec.Active = active
	}
	return spec
}
