// Package equiv holds the equivalences used by the equivalent built-in: named,
// bidirectional converters between two representations of the same value.
package equiv

import (
	"sort"
	"strconv"
	"strings"

	"nero/internal/fact"
	"nero/internal/nerr"
)

// Converter maps a value to its counterpart. It returns (nil, nil) when the
// value has no counterpart; an error aborts the evaluation.
type Converter func(fact.Value) (fact.Value, error)

// Equivalence is a named pair of converters.
type Equivalence struct {
	Keyword string
	AToB    Converter
	BToA    Converter
}

// Registry maps equivalence keywords to equivalences. It belongs to a single
// engine instance and is not safe for concurrent mutation.
type Registry struct {
	byName map[string]Equivalence
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Equivalence)}
}

// NewStandardRegistry returns a registry preloaded with the stock equivalences.
func NewStandardRegistry() *Registry {
	r := NewRegistry()
	for _, eq := range Standard() {
		r.Register(eq)
	}
	return r
}

// Register adds or replaces an equivalence. A leading '#' on the keyword is
// ignored.
func (r *Registry) Register(eq Equivalence) {
	eq.Keyword = strings.TrimPrefix(eq.Keyword, "#")
	r.byName[eq.Keyword] = eq
}

// Lookup returns the equivalence named by keyword.
func (r *Registry) Lookup(keyword string) (Equivalence, bool) {
	if r == nil {
		return Equivalence{}, false
	}
	eq, ok := r.byName[strings.TrimPrefix(keyword, "#")]
	return eq, ok
}

// Keywords returns the registered names, sorted.
func (r *Registry) Keywords() []string {
	out := make([]string, 0, len(r.byName))
	for k := range r.byName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of the registry.
func (r *Registry) Clone() *Registry {
	c := NewRegistry()
	for k, v := range r.byName {
		c.byName[k] = v
	}
	return c
}

// Resolve finds the equivalence named by a keyword value.
func (r *Registry) Resolve(name fact.Value) (Equivalence, error) {
	kw, ok := name.(fact.Keyword)
	if !ok {
		if s, isString := name.(fact.String); isString {
			kw = fact.Keyword(s)
		} else {
			return Equivalence{}, nerr.New(nerr.UnknownEquivalence, "equivalence name must be a keyword, got %s", name.String())
		}
	}
	eq, found := r.Lookup(string(kw))
	if !found {
		return Equivalence{}, nerr.New(nerr.UnknownEquivalence, "no equivalence registered as #%s", string(kw))
	}
	return eq, nil
}

// Standard returns the stock equivalences:
//
//	#str2keyword  String  <-> Keyword
//	#str2int      String  <-> Int (decimal)
//	#int2float    Int     <-> Float (integral floats only)
func Standard() []Equivalence {
	return []Equivalence{
		{
			Keyword: "str2keyword",
			AToB: func(v fact.Value) (fact.Value, error) {
				if s, ok := v.(fact.String); ok && fact.ValidKeyword(string(s)) {
					return fact.Keyword(s), nil
				}
				return nil, nil
			},
			BToA: func(v fact.Value) (fact.Value, error) {
				if k, ok := v.(fact.Keyword); ok {
					return fact.String(k), nil
				}
				return nil, nil
			},
		},
		{
			Keyword: "str2int",
			AToB: func(v fact.Value) (fact.Value, error) {
				if s, ok := v.(fact.String); ok {
					if n, err := strconv.ParseInt(strings.TrimSpace(string(s)), 10, 64); err == nil {
						return fact.Int(n), nil
					}
				}
				return nil, nil
			},
			BToA: func(v fact.Value) (fact.Value, error) {
				if n, ok := v.(fact.Int); ok {
					return fact.String(strconv.FormatInt(int64(n), 10)), nil
				}
				return nil, nil
			},
		},
		{
			Keyword: "int2float",
			AToB: func(v fact.Value) (fact.Value, error) {
				if n, ok := v.(fact.Int); ok {
					return fact.Float(n), nil
				}
				return nil, nil
			},
			BToA: func(v fact.Value) (fact.Value, error) {
				if f, ok := v.(fact.Float); ok && float64(f) == float64(int64(f)) {
					return fact.Int(int64(f)), nil
				}
				return nil, nil
			},
		},
	}
}
