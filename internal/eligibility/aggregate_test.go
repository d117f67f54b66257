package eligibility

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/pathwaylegal/rulekeeper/internal/types"
)

func passed(code string, mandatory bool) RequirementEvaluation {
	return RequirementEvaluation{
		Code:      code,
		Mandatory: mandatory,
		Result:    types.EvaluationResult{Passed: true},
	}
}

func hardFailed(code string, mandatory bool) RequirementEvaluation {
	return RequirementEvaluation{
		Code:      code,
		Mandatory: mandatory,
		Result:    types.EvaluationResult{Passed: false},
	}
}

func needsData(code string, mandatory bool, facts ...string) RequirementEvaluation {
	return RequirementEvaluation{
		Code:      code,
		Mandatory: mandatory,
		Result:    types.EvaluationResult{Passed: false, MissingFacts: facts},
	}
}

func TestAggregate_EmptyRuleset(t *testing.T) {
	result := Aggregate(nil)

	if result.Outcome != types.OutcomeUnlikely {
		t.Errorf("Outcome = %q, want %q", result.Outcome, types.OutcomeUnlikely)
	}
	if result.Confidence != 0.0 {
		t.Errorf("Confidence = %f, want 0.0", result.Confidence)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("Warnings = %v, want the empty-ruleset notice", result.Warnings)
	}
}

func TestAggregate_AllPassed(t *testing.T) {
	result := Aggregate([]RequirementEvaluation{
		passed("residency", true),
		passed("income", true),
		passed("language", false),
	})

	if result.Outcome != types.OutcomeLikely {
		t.Errorf("Outcome = %q, want %q", result.Outcome, types.OutcomeLikely)
	}
	if result.Confidence != 1.0 {
		t.Errorf("Confidence = %f, want 1.0", result.Confidence)
	}
	if result.RequirementsFailed != 0 || result.RequirementsMissingData != 0 {
		t.Errorf("failed=%d missing=%d, want zero", result.RequirementsFailed, result.RequirementsMissingData)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", result.Warnings)
	}
}

func TestAggregate_MandatoryHardFailureForbidsLikely(t *testing.T) {
	// One mandatory hard failure among otherwise passing requirements.
	result := Aggregate([]RequirementEvaluation{
		hardFailed("residency", true),
		passed("income", true),
		passed("language", false),
		passed("history", false),
	})

	if result.Outcome == types.OutcomeLikely {
		t.Errorf("Outcome = %q, a mandatory hard failure must forbid it", result.Outcome)
	}
	if result.RequirementsFailed != 1 {
		t.Errorf("RequirementsFailed = %d, want 1", result.RequirementsFailed)
	}
}

func TestAggregate_AllMandatoryHardFailedIsUnlikely(t *testing.T) {
	result := Aggregate([]RequirementEvaluation{
		hardFailed("residency", true),
		hardFailed("income", true),
		passed("language", false),
	})

	if result.Outcome != types.OutcomeUnlikely {
		t.Errorf("Outcome = %q, want %q", result.Outcome, types.OutcomeUnlikely)
	}
}

func TestAggregate_MissingDataForbidsLikely(t *testing.T) {
	result := Aggregate([]RequirementEvaluation{
		passed("residency", true),
		needsData("income", true, "salary", "bonus"),
	})

	if result.Outcome == types.OutcomeLikely {
		t.Errorf("Outcome = %q, needs-data must forbid it", result.Outcome)
	}
	if result.RequirementsMissingData != 1 {
		t.Errorf("RequirementsMissingData = %d, want 1", result.RequirementsMissingData)
	}
	if !reflect.DeepEqual(result.MissingFacts, []string{"bonus", "salary"}) {
		t.Errorf("MissingFacts = %v, want sorted union", result.MissingFacts)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "need more data") {
		t.Errorf("Warnings = %v, want the needs-data notice", result.Warnings)
	}
}

func TestAggregate_ConfidenceFormula(t *testing.T) {
	// One mandatory pass against one optional hard failure:
	// confidence = 3 / (3 + 1) = 0.75, inside the "possible" band.
	result := Aggregate([]RequirementEvaluation{
		passed("residency", true),
		hardFailed("language", false),
	})

	if math.Abs(result.Confidence-0.75) > 1e-9 {
		t.Errorf("Confidence = %f, want 0.75", result.Confidence)
	}
	if result.Outcome != types.OutcomePossible {
		t.Errorf("Outcome = %q, want %q", result.Outcome, types.OutcomePossible)
	}

	// A needs-data requirement applies the multiplicative penalty:
	// confidence = 3/4 * 0.85 = 0.6375.
	result = Aggregate([]RequirementEvaluation{
		passed("residency", true),
		needsData("income", false, "salary"),
	})

	want := 0.75 * MissingDataPenalty
	if math.Abs(result.Confidence-want) > 1e-9 {
		t.Errorf("Confidence = %f, want %f", result.Confidence, want)
	}
}

func TestAggregate_LowConfidenceIsUnlikely(t *testing.T) {
	// One optional pass against one mandatory hard failure:
	// confidence = 1/4 = 0.25 < UnlikelyThreshold.
	result := Aggregate([]RequirementEvaluation{
		hardFailed("residency", true),
		passed("language", false),
	})

	if result.Confidence >= UnlikelyThreshold {
		t.Fatalf("Confidence = %f, want below %f", result.Confidence, UnlikelyThreshold)
	}
	if result.Outcome != types.OutcomeUnlikely {
		t.Errorf("Outcome = %q, want %q", result.Outcome, types.OutcomeUnlikely)
	}
}

func TestAggregate_PropertyInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	buildEvals := func(passes, fails, missing int) []RequirementEvaluation {
		var evals []RequirementEvaluation
		for i := 0; i < passes; i++ {
			evals = append(evals, passed("pass", i%2 == 0))
		}
		for i := 0; i < fails; i++ {
			evals = append(evals, hardFailed("fail", i%2 == 0))
		}
		for i := 0; i < missing; i++ {
			evals = append(evals, needsData("miss", i%2 == 0, "fact"))
		}
		return evals
	}

	properties.Property("confidence is always within [0, 1]", prop.ForAll(
		func(passes, fails, missing int) bool {
			result := Aggregate(buildEvals(passes, fails, missing))
			return result.Confidence >= 0 && result.Confidence <= 1
		},
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
	))

	properties.Property("likely requires no hard failures and no missing data", prop.ForAll(
		func(passes, fails, missing int) bool {
			result := Aggregate(buildEvals(passes, fails, missing))
			if result.Outcome != types.OutcomeLikely {
				return true
			}
			return fails == 0 && missing == 0
		},
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
	))

	properties.Property("aggregation is deterministic", prop.ForAll(
		func(passes, fails, missing int) bool {
			evals := buildEvals(passes, fails, missing)
			return reflect.DeepEqual(Aggregate(evals), Aggregate(evals))
		},
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}
