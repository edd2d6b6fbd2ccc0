// Package scoretype implements the score-type reducers: pure functions
// from per-testcase outcomes to a final score, dispatched through the same
// closed-registry pattern as internal/tasktype.
package scoretype

import (
	"encoding/json"

	"go.chromium.org/luci/common/errors"
)

// Result is everything a reducer returns.
type Result struct {
	Score               float64
	ScoreDetails        string
	PublicScore         float64
	PublicScoreDetails  string
	RankingScoreDetails string
}

// Outcome pairs a testcase codename with its numeric outcome in [0, 1], the
// reducer's input unit.
type Outcome struct {
	Codename string
	Value    float64
	Public   bool
}

// ScoreType is a pure function of (outcomes, parameters): same inputs
// always produce the same Result.
type ScoreType interface {
	Name() string
	Reduce(outcomes []Outcome, params map[string]interface{}) (Result, error)
}

// Constructor builds a ScoreType. It takes no parameters: the dataset's
// opaque score-type parameters are passed to Reduce and validated there.
type Constructor func() ScoreType

var registry = map[string]Constructor{}

func Register(name string, ctor Constructor) {
	registry[name] = ctor
}

// Get constructs the ScoreType named by name.
func Get(name string) (ScoreType, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, errors.Reason("scoretype: unknown score type %q", name).Err()
	}
	return ctor(), nil
}

// detailsJSON marshals v for the *_details result fields, which are opaque
// strings from the core's perspective but conventionally JSON (mirroring
// the original cms.grading.scoretypes convention of storing details as a
// JSON-encoded structure the web frontends later render).
func detailsJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
