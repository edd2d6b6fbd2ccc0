package scoretype

// GroupMin models subtasks that require all testcases in a group to pass:
// per-group score = group_max_points · min(outcomes in group); total is
// the sum across groups. GroupMin is invariant under permutation of
// outcomes within a group, since min is order-independent.
type GroupMin struct{}

func init() {
	Register("GroupMin", func() ScoreType { return GroupMin{} })
}

func (GroupMin) Name() string { return "GroupMin" }

func (GroupMin) Reduce(outcomes []Outcome, params map[string]interface{}) (Result, error) {
	groups, err := parseGroups(params)
	if err != nil {
		return Result{}, err
	}
	return reduceByGroups(outcomes, groups, groupMin)
}
