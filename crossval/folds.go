// Package crossval implements leave-one-group-out cross-validation and the
// small classifiers used to score searchlight neighborhoods.
package crossval

import (
	"fmt"
	"sort"
)

// Fold is one split of a leave-one-group-out scheme: every sample of Group is
// held out as the test set.
type Fold struct {
	Group int
	Train []int
	Test  []int
}

// LeaveOneGroupOut returns one fold per distinct chunk id, ordered by id.
// At least two groups are required.
func LeaveOneGroupOut(chunks []int) ([]Fold, error) {
	byGroup := make(map[int][]int)
	for i, c := range chunks {
		byGroup[c] = append(byGroup[c], i)
	}
	if len(byGroup) < 2 {
		return nil, fmt.Errorf("leave-one-group-out needs at least 2 groups, got %d", len(byGroup))
	}
	groups := make([]int, 0, len(byGroup))
	for g := range byGroup {
		groups = append(groups, g)
	}
	sort.Ints(groups)

	folds := make([]Fold, len(groups))
	for i, g := range groups {
		train := make([]int, 0, len(chunks)-len(byGroup[g]))
		for j, c := range chunks {
			if c != g {
				train = append(train, j)
			}
		}
		folds[i] = Fold{Group: g, Train: train, Test: byGroup[g]}
	}
	return folds, nil
}
