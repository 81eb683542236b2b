package service

import "math"

// Verdict is the result of evaluating an entrance exam score.
type Verdict string

const (
	// VerdictUndetermined means no usable score exists yet. Callers must not
	// promote or reject on an undetermined verdict.
	VerdictUndetermined Verdict = "UNDETERMINED"
	VerdictPass         Verdict = "PASS"
	VerdictFail         Verdict = "FAIL"
)

// EvaluateScore yields a pass/fail verdict for a recorded score against the
// given pass mark.
//
// A nil score, a NaN, or a score of exactly zero yields Undetermined: the
// legacy data uses zero as the "not yet graded" sentinel, so a genuine zero
// is indistinguishable from an ungraded exam and is deliberately not treated
// as a failing score.
func EvaluateScore(score *float64, passMark float64) Verdict {
	if score == nil || math.IsNaN(*score) || *score == 0 {
		return VerdictUndetermined
	}
	if *score >= passMark {
		return VerdictPass
	}
	return VerdictFail
}
