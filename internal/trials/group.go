// Package trials partitions normalized epochs by stimulus condition.
package trials

import (
	"sort"

	"widefield-mapper/internal/conditions"
	"widefield-mapper/internal/epoch"
	"widefield-mapper/internal/stage"
)

// Group holds the repetitions of one condition in presentation order.
// Repetition r (1-based) is Reps[r-1].
type Group struct {
	Label conditions.Label
	Reps  []*epoch.Epoch
}

// Rep returns repetition n (1-based), or nil if there is none.
func (g *Group) Rep(n int) *epoch.Epoch {
	if n < 1 || n > len(g.Reps) {
		return nil
	}
	return g.Reps[n-1]
}

// Count is the number of repetitions.
func (g *Group) Count() int { return len(g.Reps) }

// Groups maps each condition that occurred to its repetitions.
type Groups map[conditions.Label]*Group

// Labels returns the conditions in ascending order.
func (gs Groups) Labels() []conditions.Label {
	labels := make([]conditions.Label, 0, len(gs))
	for l := range gs {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels
}

// ByCondition assigns each epoch to its label, numbering repetitions densely from
// 1 in the order they are encountered. labels[i] belongs to epochs[i].
func ByCondition(epochs []*epoch.Epoch, labels []conditions.Label) (Groups, error) {
	if len(epochs) != len(labels) {
		return nil, stage.Errorf(stage.Group, stage.ErrMalformedInput,
			"%d condition labels for %d epochs", len(labels), len(epochs))
	}

	groups := make(Groups)
	for i, e := range epochs {
		l := labels[i]
		g, ok := groups[l]
		if !ok {
			g = &Group{Label: l}
			groups[l] = g
		}
		g.Reps = append(g.Reps, e)
	}
	return groups, nil
}
