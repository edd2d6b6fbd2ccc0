package scoretype

import "go.chromium.org/luci/common/errors"

// groupReduceFunc aggregates the outcomes of a single group into a
// fraction in [0, 1], which is then scaled by the group's max_points.
// GroupMin uses min, GroupMul uses product.
type groupReduceFunc func(values []float64) float64

func groupMin(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func groupMul(values []float64) float64 {
	p := 1.0
	for _, v := range values {
		p *= v
	}
	return p
}

type groupDetail struct {
	Group     int     `json:"group"`
	Codenames []string `json:"codenames"`
	Fraction  float64 `json:"fraction"`
	Points    float64 `json:"points"`
}

// reduceByGroups partitions outcomes into the dataset's scoring groups
// (matched by codename), aggregates each group's fraction with reduceFn,
// and sums group_max_points · fraction across groups, the GroupMin/
// GroupMul description. The per-group public outcome follows the public
// flag on each testcase's Outcome: a group's public contribution only
// counts codenames flagged Public.
func reduceByGroups(outcomes []Outcome, groups []Group, reduceFn groupReduceFunc) (Result, error) {
	byCodename := make(map[string]Outcome, len(outcomes))
	for _, o := range outcomes {
		byCodename[o.Codename] = o
	}

	var total, publicTotal float64
	var details, publicDetails []groupDetail

	for i, g := range groups {
		var values, publicValues []float64
		for _, cn := range g.Codenames {
			o, ok := byCodename[cn]
			if !ok {
				return Result{}, errors.Reason("scoretype: group %d references unknown testcase %q", i, cn).Err()
			}
			values = append(values, o.Value)
			if o.Public {
				publicValues = append(publicValues, o.Value)
			}
		}

		fraction := reduceFn(values)
		points := g.MaxPoints * fraction
		total += points
		details = append(details, groupDetail{Group: i, Codenames: g.Codenames, Fraction: fraction, Points: points})

		if len(publicValues) > 0 {
			publicFraction := reduceFn(publicValues)
			publicPoints := g.MaxPoints * publicFraction
			publicTotal += publicPoints
			publicDetails = append(publicDetails, groupDetail{Group: i, Fraction: publicFraction, Points: publicPoints})
		}
	}

	return Result{
		Score:               total,
		ScoreDetails:        detailsJSON(details),
		PublicScore:         publicTotal,
		PublicScoreDetails:  detailsJSON(publicDetails),
		RankingScoreDetails: detailsJSON(details),
	}, nil
}
