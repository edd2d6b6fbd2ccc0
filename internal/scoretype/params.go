package scoretype

import (
	"encoding/json"

	"go.chromium.org/luci/common/errors"
)

// Group is one scoring group: a set of testcase codenames that contribute
// together to group_max_points, per the Group* reducers.
type Group struct {
	MaxPoints float64  `json:"max_points"`
	Codenames []string `json:"codenames"`
	P1        float64  `json:"p1,omitempty"` // GroupThreshold only
	P2        float64  `json:"p2,omitempty"` // GroupThreshold only
}

// groupParams is the common parameter shape for GroupMin, GroupMul, and
// GroupThreshold: a list of groups partitioning the dataset's testcases.
type groupParams struct {
	Groups []Group `json:"groups"`
}

// parseGroups decodes the "groups" parameter, round-tripping through JSON
// since dataset parameters are opaque to the core and arrive as
// generic Go values (typically map[string]interface{}/[]interface{} from a
// decoded JSON config blob) rather than already-typed structs.
func parseGroups(params map[string]interface{}) ([]Group, error) {
	raw, ok := params["groups"]
	if !ok {
		return nil, errors.Reason("scoretype: missing \"groups\" parameter").Err()
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.Annotate(err, "marshaling groups parameter").Err()
	}
	var groups []Group
	if err := json.Unmarshal(b, &groups); err != nil {
		return nil, errors.Annotate(err, "decoding groups parameter").Err()
	}
	return groups, nil
}

// weightsFromParams decodes the "weights" parameter for Sum: a map
// of testcase codename to weight. Testcases absent from the map default to
// weight 1.
func weightsFromParams(params map[string]interface{}) (map[string]float64, error) {
	raw, ok := params["weights"]
	if !ok {
		return map[string]float64{}, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.Annotate(err, "marshaling weights parameter").Err()
	}
	var weights map[string]float64
	if err := json.Unmarshal(b, &weights); err != nil {
		return nil, errors.Annotate(err, "decoding weights parameter").Err()
	}
	return weights, nil
}
