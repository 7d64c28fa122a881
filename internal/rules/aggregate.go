package rules

import (
	"fmt"
	"sort"

	"nero/internal/fact"
)

// AggregateFunc folds the argument tuples of one group into a value.
type AggregateFunc struct {
	Name  string
	Arity int
	Fold  func(tuples [][]fact.Value) (fact.Value, error)
}

var aggregates = map[string]AggregateFunc{
	"count": {Name: "count", Arity: 1, Fold: foldCount},
	"sum":   {Name: "sum", Arity: 1, Fold: foldSum},
	"min":   {Name: "min", Arity: 1, Fold: func(t [][]fact.Value) (fact.Value, error) { return foldExtreme("min", t, -1) }},
	"max":   {Name: "max", Arity: 1, Fold: func(t [][]fact.Value) (fact.Value, error) { return foldExtreme("max", t, 1) }},
	"list":  {Name: "list", Arity: 1, Fold: foldList},
	"set":   {Name: "set", Arity: 1, Fold: foldSet},
	"map":   {Name: "map", Arity: 2, Fold: foldMap},
}

// LookupAggregate returns the named aggregate function.
func LookupAggregate(name string) (AggregateFunc, bool) {
	a, ok := aggregates[name]
	return a, ok
}

// IsAggregate reports whether name is an aggregate function.
func IsAggregate(name string) bool {
	_, ok := aggregates[name]
	return ok
}

// AggregateNames returns the aggregate function names, sorted.
func AggregateNames() []string {
	out := make([]string, 0, len(aggregates))
	for name := range aggregates {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func foldCount(tuples [][]fact.Value) (fact.Value, error) {
	return fact.Int(len(tuples)), nil
}

func foldSum(tuples [][]fact.Value) (fact.Value, error) {
	var isum int64
	var fsum float64
	float := false
	for _, t := range tuples {
		switch v := t[0].(type) {
		case fact.Int:
			isum += int64(v)
		case fact.Float:
			float = true
			fsum += float64(v)
		default:
			return nil, fmt.Errorf("sum over non-numeric value %s", t[0].String())
		}
	}
	if float {
		return fact.Float(fsum + float64(isum)), nil
	}
	return fact.Int(isum), nil
}

func foldExtreme(name string, tuples [][]fact.Value, sign int) (fact.Value, error) {
	var best fact.Value
	for _, t := range tuples {
		if best == nil {
			best = t[0]
			continue
		}
		c, ok := fact.Compare(t[0], best)
		if !ok {
			return nil, fmt.Errorf("%s over incomparable values %s and %s", name, best.String(), t[0].String())
		}
		if c*sign > 0 {
			best = t[0]
		}
	}
	return best, nil
}

func foldList(tuples [][]fact.Value) (fact.Value, error) {
	out := make(fact.List, len(tuples))
	for i, t := range tuples {
		out[i] = t[0]
	}
	return out, nil
}

func foldSet(tuples [][]fact.Value) (fact.Value, error) {
	seen := make(map[string]bool, len(tuples))
	out := fact.List{}
	for _, t := range tuples {
		k := fact.KeyOf(t[0])
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t[0])
	}
	return out, nil
}

func foldMap(tuples [][]fact.Value) (fact.Value, error) {
	pos := make(map[string]int, len(tuples))
	out := fact.Map{}
	for _, t := range tuples {
		k := fact.KeyOf(t[0])
		if i, ok := pos[k]; ok {
			out[i].Value = t[1]
			continue
		}
		pos[k] = len(out)
		out = append(out, fact.MapEntry{Key: t[0], Value: t[1]})
	}
	return out, nil
}
