package scoretype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUnknownScoreType(t *testing.T) {
	_, err := Get("NoSuchScoreType")
	require.Error(t, err)
}

func TestGetRegistersAllFive(t *testing.T) {
	for _, name := range []string{"Sum", "ICPC", "GroupMin", "GroupMul", "GroupThreshold"} {
		st, err := Get(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, st.Name())
	}
}

func TestSumWeightsAndUnweighted(t *testing.T) {
	st := Sum{}
	outcomes := []Outcome{
		{Codename: "case1", Value: 1.0, Public: true},
		{Codename: "case2", Value: 0.5},
	}
	res, err := st.Reduce(outcomes, map[string]interface{}{
		"weights": map[string]interface{}{"case1": 10.0, "case2": 5.0},
	})
	require.NoError(t, err)
	assert.Equal(t, 10.0+2.5, res.Score)
	assert.Equal(t, 10.0, res.PublicScore)

	res, err = st.Reduce(outcomes, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.5, res.Score, "default weight is 1 when unspecified")
}

func TestSumIsPermutationInvariant(t *testing.T) {
	a := []Outcome{{Codename: "c1", Value: 1}, {Codename: "c2", Value: 0.3}, {Codename: "c3", Value: 0}}
	b := []Outcome{a[2], a[0], a[1]}
	ra, err := Sum{}.Reduce(a, nil)
	require.NoError(t, err)
	rb, err := Sum{}.Reduce(b, nil)
	require.NoError(t, err)
	assert.Equal(t, ra.Score, rb.Score)
}

func TestICPCAllOrNothing(t *testing.T) {
	accepted, err := ICPC{}.Reduce([]Outcome{{Codename: "a", Value: 1}, {Codename: "b", Value: 1}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, accepted.Score)

	rejected, err := ICPC{}.Reduce([]Outcome{{Codename: "a", Value: 1}, {Codename: "b", Value: 0.99}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rejected.Score)
}

func groupParamsFixture() map[string]interface{} {
	return map[string]interface{}{
		"groups": []map[string]interface{}{
			{"max_points": 40.0, "codenames": []string{"g1c1", "g1c2"}},
			{"max_points": 60.0, "codenames": []string{"g2c1"}},
		},
	}
}

func TestGroupMinAllOrNothingPerGroup(t *testing.T) {
	outcomes := []Outcome{
		{Codename: "g1c1", Value: 1}, {Codename: "g1c2", Value: 0.2},
		{Codename: "g2c1", Value: 1},
	}
	res, err := GroupMin{}.Reduce(outcomes, groupParamsFixture())
	require.NoError(t, err)
	assert.Equal(t, 40.0*0.2+60.0*1.0, res.Score)
}

func TestGroupMinInvariantUnderWithinGroupPermutation(t *testing.T) {
	params := groupParamsFixture()
	a := []Outcome{{Codename: "g1c1", Value: 1}, {Codename: "g1c2", Value: 0.4}, {Codename: "g2c1", Value: 0.5}}
	b := []Outcome{{Codename: "g1c2", Value: 0.4}, {Codename: "g1c1", Value: 1}, {Codename: "g2c1", Value: 0.5}}
	ra, err := GroupMin{}.Reduce(a, params)
	require.NoError(t, err)
	rb, err := GroupMin{}.Reduce(b, params)
	require.NoError(t, err)
	assert.Equal(t, ra.Score, rb.Score)
}

func TestGroupMinUnknownCodenameErrors(t *testing.T) {
	_, err := GroupMin{}.Reduce(nil, groupParamsFixture())
	require.Error(t, err)
}

func TestGroupMulMultipliesWithinGroup(t *testing.T) {
	outcomes := []Outcome{
		{Codename: "g1c1", Value: 0.5}, {Codename: "g1c2", Value: 0.5},
		{Codename: "g2c1", Value: 1},
	}
	res, err := GroupMul{}.Reduce(outcomes, groupParamsFixture())
	require.NoError(t, err)
	assert.Equal(t, 40.0*0.25+60.0*1.0, res.Score)
}

func TestGroupThresholdGeneralFormula(t *testing.T) {
	// the general-form correction: ((f - P1) / (P2 - P1)) * max_points, not the
	// original's hard-coded (f - 0.15) * 4.0 / 5.0.
	params := map[string]interface{}{
		"groups": []map[string]interface{}{
			{"max_points": 100.0, "codenames": []string{"c1", "c2", "c3", "c4"}, "p1": 0.25, "p2": 0.75},
		},
	}
	outcomes := []Outcome{
		{Codename: "c1", Value: 1}, {Codename: "c2", Value: 1},
		{Codename: "c3", Value: 0}, {Codename: "c4", Value: 0},
	}
	res, err := GroupThreshold{}.Reduce(outcomes, params)
	require.NoError(t, err)
	// f = 0.5, (0.5-0.25)/(0.75-0.25) = 0.5 -> 50 points
	assert.InDelta(t, 50.0, res.Score, 1e-9)
}

func TestGroupThresholdBoundaries(t *testing.T) {
	params := map[string]interface{}{
		"groups": []map[string]interface{}{
			{"max_points": 10.0, "codenames": []string{"c1"}, "p1": 0.25, "p2": 0.75},
		},
	}
	below, err := GroupThreshold{}.Reduce([]Outcome{{Codename: "c1", Value: 0}}, params)
	require.NoError(t, err)
	assert.Equal(t, 0.0, below.Score, "f=0 below P1 scores zero")

	above, err := GroupThreshold{}.Reduce([]Outcome{{Codename: "c1", Value: 1}}, params)
	require.NoError(t, err)
	assert.Equal(t, 10.0, above.Score, "f=1 above P2 scores full group points")
}

func TestGroupThresholdSumsPartialOutcomes(t *testing.T) {
	// GroupMeteo.py computes f as sum(outcomes)/len(outcomes), not a count
	// of exactly-1 outcomes: a partial outcome contributes its fractional
	// value to f.
	params := map[string]interface{}{
		"groups": []map[string]interface{}{
			{"max_points": 100.0, "codenames": []string{"c1", "c2"}, "p1": 0.0, "p2": 1.0},
		},
	}
	res, err := GroupThreshold{}.Reduce([]Outcome{
		{Codename: "c1", Value: 0.5},
		{Codename: "c2", Value: 0},
	}, params)
	require.NoError(t, err)
	// f = (0.5 + 0) / 2 = 0.25, (0.25-0)/(1-0) = 0.25 -> 25 points
	assert.InDelta(t, 25.0, res.Score, 1e-9)
}

func TestReducersAreDeterministic(t *testing.T) {
	// reducer purity: identical inputs always produce an identical
	// result, checked by running Sum twice on the same outcomes.
	outcomes := []Outcome{{Codename: "a", Value: 0.7}, {Codename: "b", Value: 1}}
	r1, err := Sum{}.Reduce(outcomes, nil)
	require.NoError(t, err)
	r2, err := Sum{}.Reduce(outcomes, nil)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}
