package eligibility

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pathwaylegal/rulekeeper/internal/types"
)

/*
 * Aggregation of per-requirement results into one graded outcome.
 *
 * Each evaluation falls into exactly one bucket:
 *   - passed
 *   - hard-failed: passed=false with no missing facts (genuinely false or
 *     errored)
 *   - needs-data: passed=false with missing facts
 *
 * confidence = passedWeight/totalWeight * MissingDataPenalty^needsData,
 * clamped to [0, 1]. Mandatory requirements weigh WeightMandatory against
 * WeightOptional for optional ones, so a mandatory hard failure moves the
 * score more than an optional one, and each needs-data requirement applies
 * a multiplicative penalty. Confidence therefore strictly decreases as
 * mandatory hard failures or needs-data requirements increase.
 *
 * Outcome contract:
 *   - "likely" requires confidence >= LikelyThreshold, zero mandatory hard
 *     failures and zero needs-data requirements
 *   - "unlikely" whenever every mandatory requirement hard-fails, or
 *     confidence < UnlikelyThreshold
 *   - "possible" otherwise
 */

// Contract constants behind outcome and confidence derivation. Exported and
// tested as explicit values; changing them is a behavioral change.
const (
	WeightMandatory    = 3.0
	WeightOptional     = 1.0
	MissingDataPenalty = 0.85
	LikelyThreshold    = 0.8
	UnlikelyThreshold  = 0.4
)

// Aggregate combines ordered per-requirement evaluations into one outcome,
// confidence score and missing-fact summary. Pure and deterministic.
func Aggregate(evals []RequirementEvaluation) types.AggregateEvaluation {
	if len(evals) == 0 {
		return types.AggregateEvaluation{
			Outcome:    types.OutcomeUnlikely,
			Confidence: 0.0,
			Warnings:   []string{"no requirements found"},
		}
	}

	var (
		passedWeight, totalWeight float64
		hardFailed                int
		mandatoryTotal            int
		mandatoryHardFailed       int
		needsData                 []string
		missingSet                = make(map[string]struct{})
	)

	for _, ev := range evals {
		weight := WeightOptional
		if ev.Mandatory {
			weight = WeightMandatory
			mandatoryTotal++
		}
		totalWeight += weight

		switch {
		case ev.Result.Passed:
			passedWeight += weight
		case len(ev.Result.MissingFacts) > 0:
			needsData = append(needsData, ev.Code)
			for _, name := range ev.Result.MissingFacts {
				missingSet[name] = struct{}{}
			}
		default:
			hardFailed++
			if ev.Mandatory {
				mandatoryHardFailed++
			}
		}
	}

	confidence := passedWeight / totalWeight *
		math.Pow(MissingDataPenalty, float64(len(needsData)))
	confidence = math.Max(0, math.Min(1, confidence))

	var outcome types.Outcome
	switch {
	case mandatoryTotal > 0 && mandatoryHardFailed == mandatoryTotal:
		outcome = types.OutcomeUnlikely
	case confidence < UnlikelyThreshold:
		outcome = types.OutcomeUnlikely
	case confidence >= LikelyThreshold && mandatoryHardFailed == 0 && len(needsData) == 0:
		outcome = types.OutcomeLikely
	default:
		outcome = types.OutcomePossible
	}

	missing := make([]string, 0, len(missingSet))
	for name := range missingSet {
		missing = append(missing, name)
	}
	sort.Strings(missing)

	var warnings []string
	if len(needsData) > 0 {
		warnings = append(warnings, fmt.Sprintf("%d requirements need more data: %s",
			len(needsData), strings.Join(needsData, ", ")))
	}

	return types.AggregateEvaluation{
		Outcome:                 outcome,
		Confidence:              confidence,
		RequirementsFailed:      hardFailed,
		RequirementsMissingData: len(needsData),
		MissingFacts:            missing,
		Warnings:                warnings,
	}
}
