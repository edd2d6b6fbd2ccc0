package scoremode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Max(nil))
}

func TestMaxPicksHighest(t *testing.T) {
	subs := []Scored{{SubmissionID: 1, Score: 30}, {SubmissionID: 2, Score: 90}, {SubmissionID: 3, Score: 50}}
	assert.Equal(t, 90.0, Max(subs))
}

func TestMaxMonotonicUnderAppend(t *testing.T) {
	// score-mode monotonicity: adding a submission never lowers the
	// task score.
	subs := []Scored{{SubmissionID: 1, Score: 40}}
	before := Max(subs)
	subs = append(subs, Scored{SubmissionID: 2, Score: 10})
	after := Max(subs)
	assert.GreaterOrEqual(t, after, before)
}

func TestMaxTokenedLastEmpty(t *testing.T) {
	assert.Equal(t, 0.0, MaxTokenedLast(nil))
}

func TestMaxTokenedLastPrefersBestTokenedOverUntokenedMiddle(t *testing.T) {
	subs := []Scored{
		{SubmissionID: 1, Score: 20, Tokened: true},
		{SubmissionID: 2, Score: 90, Tokened: false},
		{SubmissionID: 3, Score: 30, Tokened: false}, // last, untokened
	}
	// best tokened is 20, last is 30: max(20, 30) = 30, the untokened 90 in
	// the middle never participates.
	assert.Equal(t, 30.0, MaxTokenedLast(subs))
}

func TestMaxTokenedLastAlwaysIncludesLastEvenWithNoTokens(t *testing.T) {
	subs := []Scored{
		{SubmissionID: 1, Score: 10},
		{SubmissionID: 2, Score: 70},
	}
	assert.Equal(t, 70.0, MaxTokenedLast(subs), "last submission participates even when untokened")
}

func TestMaxTokenedLastMonotonicUnderAppend(t *testing.T) {
	subs := []Scored{{SubmissionID: 1, Score: 40, Tokened: true}}
	before := MaxTokenedLast(subs)
	subs = append(subs, Scored{SubmissionID: 2, Score: 5})
	after := MaxTokenedLast(subs)
	assert.GreaterOrEqual(t, after, before)
}
