package rules

import (
	"strings"

	"nero/internal/builtin"
	"nero/internal/nerr"
)

// QueryRelation is the synthetic relation that carries pipeline query
// parameters. Rule bodies may read it; heads and axioms may not define it.
const QueryRelation = "query"

// CheckRule verifies a rule's head and range restriction: every variable in
// the head, in a negated atom, in a constraint or used by the aggregate must
// be bound by a positive body atom or a built-in, and every required built-in
// argument must be bound by the elements to its left.
func CheckRule(r Rule) error {
	if err := checkHead(r); err != nil {
		return err
	}

	head := r.Head.Relation
	bound := make(map[string]bool)
	for _, el := range r.Body {
		switch b := el.(type) {
		case PositiveAtom:
			if err := checkRelationName(b.Relation); err != nil {
				return err
			}
			for _, v := range b.Variables() {
				bound[v] = true
			}
		case BuiltinAtom:
			if err := checkBuiltin(head, b, bound); err != nil {
				return err
			}
			for _, v := range termVariables(b.Terms) {
				bound[v] = true
			}
		case NegatedAtom:
			if err := checkRelationName(b.Relation); err != nil {
				return err
			}
		case Constraint:
		default:
			return nerr.ForRelation(nerr.SyntaxError, head, "unknown body element %T", el)
		}
	}

	for _, el := range r.Body {
		switch b := el.(type) {
		case NegatedAtom:
			for _, v := range b.Variables() {
				if !bound[v] {
					return unbound(head, v, b.String())
				}
			}
		case Constraint:
			for _, t := range []Term{b.Left, b.Right} {
				switch x := t.(type) {
				case Variable:
					if !bound[x.Name] {
						return unbound(head, x.Name, b.String())
					}
				case Wildcard:
					return nerr.ForVariable(nerr.UnboundVariable, head, "_", "wildcard cannot be compared in %s", b.String())
				}
			}
		}
	}

	for _, v := range r.Head.Variables() {
		if !bound[v] {
			return unbound(head, v, r.Head.String())
		}
	}
	return nil
}

func unbound(relation, variable, where string) error {
	return nerr.ForVariable(nerr.UnboundVariable, relation, variable,
		"variable %s in %s is not bound by a positive body atom", variable, where)
}

func checkHead(r Rule) error {
	head := r.Head
	if err := checkDefinable(head.Relation); err != nil {
		return err
	}
	aggCount := 0
	var agg Aggregate
	for _, t := range head.Terms {
		switch x := t.(type) {
		case Wildcard:
			return nerr.ForRelation(nerr.WildcardInHead, head.Relation, "wildcard in rule head %s", head.String())
		case Aggregate:
			aggCount++
			agg = x
		}
	}
	if aggCount == 0 {
		return nil
	}
	if aggCount > 1 {
		return nerr.ForRelation(nerr.MultipleAggregates, head.Relation, "rule head %s has %d aggregates", head.String(), aggCount)
	}
	fn, ok := LookupAggregate(agg.Func)
	if !ok {
		return nerr.ForRelation(nerr.UnknownAggregate, head.Relation, "unknown aggregate function %s, want one of %s", agg.Func, strings.Join(AggregateNames(), ", "))
	}
	if len(agg.Args) != fn.Arity {
		return nerr.ForRelation(nerr.UnknownAggregate, head.Relation, "%s takes %d arguments, got %d", agg.Func, fn.Arity, len(agg.Args))
	}
	for _, v := range agg.Args {
		for _, t := range head.Terms {
			if hv, isVar := t.(Variable); isVar && hv.Name == v.Name {
				return nerr.ForVariable(nerr.AggregateVariableReused, head.Relation, v.Name,
					"aggregate variable %s also appears in head %s", v.Name, head.String())
			}
		}
	}
	return nil
}

func checkBuiltin(head string, b BuiltinAtom, bound map[string]bool) error {
	spec, ok := builtin.Lookup(b.Name)
	if !ok {
		return nerr.ForRelation(nerr.ReservedName, head, "%s is not a built-in", b.Name)
	}
	if len(b.Terms) != spec.Arity {
		return nerr.ForRelation(nerr.BuiltinArity, head, "%s expects %d arguments, got %d in %s",
			b.Name, spec.Arity, len(b.Terms), b.String())
	}
	isBound := func(t Term) bool {
		switch x := t.(type) {
		case Constant:
			return true
		case Variable:
			return bound[x.Name]
		}
		return false
	}
	for _, pos := range spec.Required {
		if !isBound(b.Terms[pos]) {
			return nerr.ForRelation(nerr.BuiltinUnboundArgument, head,
				"argument %d of %s must be bound before the call", pos+1, b.String())
		}
	}
	if len(spec.OneOf) > 0 {
		found := false
		for _, pos := range spec.OneOf {
			found = found || isBound(b.Terms[pos])
		}
		if !found {
			return nerr.ForRelation(nerr.BuiltinUnboundArgument, head,
				"argument %d or %d of %s must be bound before the call", spec.OneOf[0]+1, spec.OneOf[1]+1, b.String())
		}
	}
	return nil
}

// checkRelationName rejects built-in names used as ordinary relations.
func checkRelationName(name string) error {
	if builtin.IsBuiltin(name) {
		return nerr.ForRelation(nerr.ReservedName, name, "%s is a built-in predicate, not a relation", name)
	}
	return nil
}

// IsReservedName reports whether name is a built-in or the query relation,
// neither of which a script may use for axioms.
func IsReservedName(name string) bool {
	return builtin.IsBuiltin(name) || name == QueryRelation
}

// checkDefinable rejects names that axioms, heads and definitions may not use.
func checkDefinable(name string) error {
	if err := checkRelationName(name); err != nil {
		return err
	}
	if name == QueryRelation {
		return nerr.ForRelation(nerr.ReservedName, name, "%s is reserved for query parameters", name)
	}
	return nil
}
