package eval

import (
	"nero/internal/builtin"
	"nero/internal/fact"
	"nero/internal/rules"
)

// bindings is a variable environment with an undo trail for backtracking.
type bindings struct {
	vals  map[string]fact.Value
	trail []string
}

func newBindings() *bindings {
	return &bindings{vals: make(map[string]fact.Value)}
}

func (b *bindings) get(name string) (fact.Value, bool) {
	v, ok := b.vals[name]
	return v, ok
}

func (b *bindings) bind(name string, v fact.Value) {
	b.vals[name] = v
	b.trail = append(b.trail, name)
}

func (b *bindings) mark() int { return len(b.trail) }

func (b *bindings) undo(mark int) {
	for len(b.trail) > mark {
		last := len(b.trail) - 1
		delete(b.vals, b.trail[last])
		b.trail = b.trail[:last]
	}
}

func (b *bindings) snapshot() map[string]fact.Value {
	out := make(map[string]fact.Value, len(b.vals))
	for k, v := range b.vals {
		out[k] = v
	}
	return out
}

// value resolves a term to a value. Unbound variables and wildcards yield nil.
func (b *bindings) value(t rules.Term) fact.Value {
	switch x := t.(type) {
	case rules.Constant:
		if x.Value == nil {
			return fact.Null{}
		}
		return x.Value
	case rules.Variable:
		if v, ok := b.vals[x.Name]; ok {
			return v
		}
	}
	return nil
}

// unifyTerm matches a term against a value, binding an unbound variable.
func (b *bindings) unifyTerm(t rules.Term, v fact.Value) bool {
	switch x := t.(type) {
	case rules.Wildcard:
		return true
	case rules.Constant:
		c := x.Value
		if c == nil {
			c = fact.Null{}
		}
		return fact.Equal(c, v)
	case rules.Variable:
		if have, ok := b.vals[x.Name]; ok {
			return fact.Equal(have, v)
		}
		b.bind(x.Name, v)
		return true
	}
	return false
}

// unifyAtom matches an atom against a fact. On failure the caller undoes any
// partial bindings.
func (b *bindings) unifyAtom(a rules.Atom, f fact.Fact) bool {
	if f.Relation != a.Relation {
		return false
	}
	if !a.IsNamed() {
		if f.IsNamed() || len(f.Fields) != len(a.Terms) {
			return false
		}
		for i, t := range a.Terms {
			if !b.unifyTerm(t, f.Fields[i]) {
				return false
			}
		}
		return true
	}
	if !f.IsNamed() {
		return false
	}
	for i, t := range a.Terms {
		v, ok := f.Get(a.Names[i])
		if !ok || !b.unifyTerm(t, v) {
			return false
		}
	}
	return true
}

// probe picks the first bound column of an atom for an index lookup.
func (b *bindings) probe(a rules.Atom) (column, fact.Value, bool) {
	for i, t := range a.Terms {
		v := b.value(t)
		if v == nil {
			continue
		}
		if a.IsNamed() {
			return column{name: a.Names[i]}, v, true
		}
		return column{pos: i}, v, true
	}
	return column{}, nil, false
}

func candidates(ix *factIndex, a rules.Atom, b *bindings) []fact.Fact {
	if col, v, ok := b.probe(a); ok {
		return ix.lookup(a.Relation, col, v)
	}
	return ix.scan(a.Relation)
}

// exists reports whether any fact of ix matches the atom under b.
func exists(ix *factIndex, a rules.Atom, b *bindings) bool {
	for _, f := range candidates(ix, a, b) {
		m := b.mark()
		ok := b.unifyAtom(a, f)
		b.undo(m)
		if ok {
			return true
		}
	}
	return false
}

// callBuiltin evaluates a built-in atom and returns its solutions.
func callBuiltin(call rules.BuiltinAtom, b *bindings, opts *Options) ([][]fact.Value, error) {
	args := make([]fact.Value, len(call.Terms))
	for i, t := range call.Terms {
		args[i] = b.value(t)
	}
	return builtin.Eval(call.Name, args, opts.Equivalences)
}

// holds evaluates a constraint over bound terms. Numbers compare across Int
// and Float; ordering between incomparable values is false.
func holds(c rules.Constraint, b *bindings) bool {
	left, right := b.value(c.Left), b.value(c.Right)
	if left == nil || right == nil {
		return false
	}
	cmp, comparable := fact.Compare(left, right)
	switch c.Op {
	case rules.OpEq:
		return fact.Equal(left, right) || (comparable && cmp == 0)
	case rules.OpNe:
		return !(fact.Equal(left, right) || (comparable && cmp == 0))
	case rules.OpLt:
		return comparable && cmp < 0
	case rules.OpLe:
		return comparable && cmp <= 0
	case rules.OpGt:
		return comparable && cmp > 0
	case rules.OpGe:
		return comparable && cmp >= 0
	}
	return false
}

// project builds the head fact for the current bindings. The aggregate
// position, if any, is filled by the caller.
func project(head rules.Atom, b *bindings) fact.Fact {
	fields := make([]fact.Value, len(head.Terms))
	for i, t := range head.Terms {
		if _, isAgg := t.(rules.Aggregate); isAgg {
			continue
		}
		fields[i] = b.value(t)
	}
	if head.IsNamed() {
		return fact.NewNamed(head.Relation, head.Names, fields)
	}
	return fact.New(head.Relation, fields...)
}
