package scoretype

// Sum implements score = Σ outcomes·weight_i.
type Sum struct{}

func init() {
	Register("Sum", func() ScoreType { return Sum{} })
}

func (Sum) Name() string { return "Sum" }

type sumDetail struct {
	Codename string  `json:"codename"`
	Outcome  float64 `json:"outcome"`
	Weight   float64 `json:"weight"`
}

func (Sum) Reduce(outcomes []Outcome, params map[string]interface{}) (Result, error) {
	weights, err := weightsFromParams(params)
	if err != nil {
		return Result{}, err
	}

	var total, publicTotal float64
	var details, publicDetails []sumDetail
	for _, o := range outcomes {
		w, ok := weights[o.Codename]
		if !ok {
			w = 1
		}
		contribution := o.Value * w
		total += contribution
		details = append(details, sumDetail{Codename: o.Codename, Outcome: o.Value, Weight: w})
		if o.Public {
			publicTotal += contribution
			publicDetails = append(publicDetails, sumDetail{Codename: o.Codename, Outcome: o.Value, Weight: w})
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
