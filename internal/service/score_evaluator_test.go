package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func floatPtr(v float64) *float64 { return &v }

func TestEvaluateScorePassBoundary(t *testing.T) {
	assert.Equal(t, VerdictPass, EvaluateScore(floatPtr(50), 50))
	assert.Equal(t, VerdictPass, EvaluateScore(floatPtr(72), 50))
	assert.Equal(t, VerdictFail, EvaluateScore(floatPtr(49.9), 50))
	assert.Equal(t, VerdictFail, EvaluateScore(floatPtr(30), 50))
}

func TestEvaluateScoreUngradedSentinel(t *testing.T) {
	assert.Equal(t, VerdictUndetermined, EvaluateScore(nil, 50))
	assert.Equal(t, VerdictUndetermined, EvaluateScore(floatPtr(0), 50))
	assert.Equal(t, VerdictUndetermined, EvaluateScore(floatPtr(math.NaN()), 50))
}

func TestEvaluateScoreZeroPassMarkStillBlocksUngraded(t *testing.T) {
	// Even with a zero pass mark, a zero score is ungraded, not a pass.
	assert.Equal(t, VerdictUndetermined, EvaluateScore(floatPtr(0), 0))
	assert.Equal(t, VerdictPass, EvaluateScore(floatPtr(0.5), 0))
}
