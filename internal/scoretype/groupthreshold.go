package scoretype

// GroupThreshold ("Meteo"-style): with per-group thresholds (P1, P2), let f
// be the fraction of correct outcomes in the group; group score is 0 if
// f < P1, group_max_points if f > P2, otherwise linearly interpolated
// between them.
//
// original_source/cms/grading/scoretypes/GroupMeteo.py hard-codes
// `(percentage - 0.15) * 4.0 / 5.0` instead of using the P1 parameter in
// the interpolation, which only happens to be correct when P1=0.15 and
// P2=0.95. This implementation uses the general form
// `((f - P1) / (P2 - P1)) * group_max_points`, correct for any P1/P2.
type GroupThreshold struct{}

func init() {
	Register("GroupThreshold", func() ScoreType { return GroupThreshold{} })
}

func (GroupThreshold) Name() string { return "GroupThreshold" }

// correctFraction sums the raw outcome values in the group and divides by
// the group size, matching GroupMeteo.py's `correct = sum(outcomes)`: a
// partial outcome (e.g. 0.5) contributes its fractional value rather than
// being rounded down to "not correct".
func correctFraction(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func thresholdScore(f, p1, p2 float64) float64 {
	switch {
	case f < p1:
		return 0.0
	case f > p2:
		return 1.0
	default:
		if p2 == p1 {
			return 0.0
		}
		return (f - p1) / (p2 - p1)
	}
}

func (GroupThreshold) Reduce(outcomes []Outcome, params map[string]interface{}) (Result, error) {
	groups, err := parseGroups(params)
	if err != nil {
		return Result{}, err
	}

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
				continue
			}
			values = append(values, o.Value)
			if o.Public {
				publicValues = append(publicValues, o.Value)
			}
		}

		f := correctFraction(values)
		fraction := thresholdScore(f, g.P1, g.P2)
		points := g.MaxPoints * fraction
		total += points
		details = append(details, groupDetail{Group: i, Codenames: g.Codenames, Fraction: fraction, Points: points})

		if len(publicValues) > 0 {
			pf := correctFraction(publicValues)
			publicFraction := thresholdScore(pf, g.P1, g.P2)
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
