// Package builtin implements Nero's fixed built-in predicates. Built-ins are
// not relations: they compute their solutions from the values bound to their
// arguments and are not user-definable.
package builtin

import (
	"fmt"
	"sort"

	"nero/internal/equiv"
	"nero/internal/fact"
	"nero/internal/nerr"
)

// Spec describes a built-in's signature.
type Spec struct {
	Name  string
	Arity int
	// Required lists argument positions that must be bound before the call.
	Required []int
	// OneOf lists positions of which at least one must be bound.
	OneOf []int
}

const (
	Member        = "member"
	IndexedMember = "indexedMember"
	KeyedMember   = "keyedMember"
	Equivalent    = "equivalent"
)

var specs = map[string]Spec{
	Member:        {Name: Member, Arity: 2, Required: []int{1}},
	IndexedMember: {Name: IndexedMember, Arity: 3, Required: []int{2}},
	KeyedMember:   {Name: KeyedMember, Arity: 3, Required: []int{2}},
	Equivalent:    {Name: Equivalent, Arity: 3, Required: []int{0}, OneOf: []int{1, 2}},
}

// Lookup returns the spec of a built-in.
func Lookup(name string) (Spec, bool) {
	s, ok := specs[name]
	return s, ok
}

// IsBuiltin reports whether name is reserved for a built-in.
func IsBuiltin(name string) bool {
	_, ok := specs[name]
	return ok
}

// Names returns the built-in names, sorted.
func Names() []string {
	out := make([]string, 0, len(specs))
	for name := range specs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Eval computes the solutions of a built-in call. args holds the bound values;
// nil marks an unbound argument. Each solution is a complete argument tuple
// that agrees with every bound argument.
func Eval(name string, args []fact.Value, reg *equiv.Registry) ([][]fact.Value, error) {
	spec, ok := specs[name]
	if !ok {
		return nil, fmt.Errorf("unknown built-in %q", name)
	}
	if len(args) != spec.Arity {
		return nil, nerr.New(nerr.BuiltinArity, "%s expects %d arguments, got %d", name, spec.Arity, len(args))
	}
	for _, pos := range spec.Required {
		if args[pos] == nil {
			return nil, nerr.New(nerr.BuiltinUnboundArgument, "%s argument %d is unbound", name, pos+1)
		}
	}

	switch name {
	case Member:
		return member(args), nil
	case IndexedMember:
		return indexedMember(args), nil
	case KeyedMember:
		return keyedMember(args), nil
	case Equivalent:
		return equivalent(args, reg)
	}
	return nil, fmt.Errorf("built-in %q has no implementation", name)
}

// accept reports whether candidate agrees with a possibly unbound argument.
func accept(bound, candidate fact.Value) bool {
	return bound == nil || fact.Equal(bound, candidate)
}

func member(args []fact.Value) [][]fact.Value {
	var out [][]fact.Value
	switch coll := args[1].(type) {
	case fact.List:
		for _, item := range coll {
			if accept(args[0], item) {
				out = append(out, []fact.Value{item, coll})
			}
		}
	case fact.Map:
		for _, e := range coll {
			if accept(args[0], e.Key) {
				out = append(out, []fact.Value{e.Key, coll})
			}
		}
	}
	return out
}

func indexedMember(args []fact.Value) [][]fact.Value {
	coll, ok := args[2].(fact.List)
	if !ok {
		return nil
	}
	var out [][]fact.Value
	for i, item := range coll {
		index := fact.Int(i)
		if accept(args[0], index) && accept(args[1], item) {
			out = append(out, []fact.Value{index, item, coll})
		}
	}
	return out
}

func keyedMember(args []fact.Value) [][]fact.Value {
	coll, ok := args[2].(fact.Map)
	if !ok {
		return nil
	}
	var out [][]fact.Value
	for _, e := range coll {
		if accept(args[0], e.Key) && accept(args[1], e.Value) {
			out = append(out, []fact.Value{e.Key, e.Value, coll})
		}
	}
	return out
}

// equivalent converts in whichever direction leaves nothing unbound. When
// both sides are bound it verifies: a maps to b, or b maps back to a.
func equivalent(args []fact.Value, reg *equiv.Registry) ([][]fact.Value, error) {
	eq, err := reg.Resolve(args[0])
	if err != nil {
		return nil, err
	}
	a, b := args[1], args[2]
	switch {
	case a != nil && b != nil:
		ok, err := convertsTo(eq, eq.AToB, a, b)
		if err != nil {
			return nil, err
		}
		if !ok {
			if ok, err = convertsTo(eq, eq.BToA, b, a); err != nil {
				return nil, err
			}
		}
		if ok {
			return [][]fact.Value{{args[0], a, b}}, nil
		}
		return nil, nil
	case a != nil:
		out, err := convert(eq, eq.AToB, a)
		if err != nil || out == nil {
			return nil, err
		}
		return [][]fact.Value{{args[0], a, out}}, nil
	case b != nil:
		out, err := convert(eq, eq.BToA, b)
		if err != nil || out == nil {
			return nil, err
		}
		return [][]fact.Value{{args[0], out, b}}, nil
	}
	return nil, nerr.New(nerr.BuiltinUnboundArgument, "equivalent needs argument 2 or 3 bound")
}

func convert(eq equiv.Equivalence, fn equiv.Converter, v fact.Value) (fact.Value, error) {
	if fn == nil {
		return nil, nil
	}
	out, err := fn(v)
	if err != nil {
		return nil, fmt.Errorf("equivalence #%s converting %s: %w", eq.Keyword, v.String(), err)
	}
	return out, nil
}

func convertsTo(eq equiv.Equivalence, fn equiv.Converter, from, to fact.Value) (bool, error) {
	out, err := convert(eq, fn, from)
	if err != nil || out == nil {
		return false, err
	}
	return fact.Equal(out, to), nil
}
