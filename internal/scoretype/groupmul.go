package scoretype

// GroupMul: per-group score = group_max_points · Π(outcomes in group);
// total is the sum across groups.
type GroupMul struct{}

func init() {
	Register("GroupMul", func() ScoreType { return GroupMul{} })
}

func (GroupMul) Name() string { return "GroupMul" }

func (GroupMul) Reduce(outcomes []Outcome, params map[string]interface{}) (Result, error) {
	groups, err := parseGroups(params)
	if err != nil {
		return Result{}, err
	}
	return reduceByGroups(outcomes, groups, groupMul)
}
