package scoretype

// ICPC is binary: score = 1 iff every outcome = 1, else 0. The public
// outcome distinguishes "Accepted" from a generic rejection rather than
// naming the specific failure mode, grounded on
// original_source/cms/grading/scoretypes/ICPC.py, which subclasses
// GroupMin (so it is a single-group min, scaled to {0, 1}) and overrides
// only the public-outcome label.
type ICPC struct{}

func init() {
	Register("ICPC", func() ScoreType { return ICPC{} })
}

func (ICPC) Name() string { return "ICPC" }

type icpcDetail struct {
	Codename string  `json:"codename"`
	Outcome  float64 `json:"outcome"`
}

func (ICPC) Reduce(outcomes []Outcome, params map[string]interface{}) (Result, error) {
	accepted := true
	var details, publicDetails []icpcDetail
	for _, o := range outcomes {
		if o.Value < 1.0 {
			accepted = false
		}
		details = append(details, icpcDetail{Codename: o.Codename, Outcome: o.Value})
		if o.Public {
			publicDetails = append(publicDetails, icpcDetail{Codename: o.Codename, Outcome: o.Value})
		}
	}

	score := 0.0
	label := "WA / TLE / MLE / RTE / ..."
	if accepted {
		score = 1.0
		label = "Accepted"
	}

	return Result{
		Score:               score,
		ScoreDetails:        detailsJSON(details),
		PublicScore:         score,
		PublicScoreDetails:  detailsJSON(map[string]interface{}{"outcomes": publicDetails, "label": label}),
		RankingScoreDetails: detailsJSON(map[string]interface{}{"label": label}),
	}, nil
}
