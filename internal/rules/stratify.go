package rules

import (
	"errors"
	"sort"

	"nero/internal/depgraph"
	"nero/internal/nerr"
)

// Strata is the stratification of a rule set. Relations in Levels[i] are
// complete before any rule of stratum i+1 runs.
type Strata struct {
	Levels [][]string
	Graph  *depgraph.Graph

	of    map[string]int
	rules [][]Rule
}

// Count returns the number of strata.
func (s *Strata) Count() int { return len(s.Levels) }

// Of returns the stratum of a relation.
func (s *Strata) Of(relation string) (int, bool) {
	i, ok := s.of[relation]
	return i, ok
}

// Rules returns the rules whose head is in stratum i, in definition order.
func (s *Strata) Rules(i int) []Rule {
	if i < 0 || i >= len(s.rules) {
		return nil
	}
	return s.rules[i]
}

// DependencyGraph returns the labeled relation dependency graph of rules.
func DependencyGraph(rules []Rule) *depgraph.Graph {
	g := depgraph.New()
	for _, r := range rules {
		head := r.Head.Relation
		g.AddNode(head)
		_, _, aggregated := r.Aggregate()
		for _, el := range r.Body {
			switch x := el.(type) {
			case PositiveAtom:
				kind := depgraph.Positive
				if aggregated {
					kind = depgraph.Aggregate
				}
				g.AddEdge(x.Relation, head, kind)
			case NegatedAtom:
				g.AddEdge(x.Relation, head, depgraph.Negative)
			}
		}
	}
	return g
}

func stratify(rules []Rule) (*Strata, error) {
	g := DependencyGraph(rules)
	levels, err := g.Stratify()
	if err != nil {
		var cycle *depgraph.CycleError
		if errors.As(err, &cycle) {
			return nil, nerr.ForRelation(nerr.NotStratified, cycle.Edge.To, "%s", cycle.Error())
		}
		return nil, err
	}

	count := 0
	for _, l := range levels {
		count = max(count, l+1)
	}
	s := &Strata{
		Levels: make([][]string, count),
		Graph:  g,
		of:     levels,
		rules:  make([][]Rule, count),
	}
	for rel, l := range levels {
		s.Levels[l] = append(s.Levels[l], rel)
	}
	for _, lvl := range s.Levels {
		sort.Strings(lvl)
	}
	for _, r := range rules {
		l := levels[r.Head.Relation]
		s.rules[l] = append(s.rules[l], r)
	}
	return s, nil
}
