// Package rules holds the Nero rule model: terms, atoms, rules and rule sets,
// together with the checks that make a rule set safe to evaluate (shape
// consistency, range restriction, built-in signatures) and its
// stratification.
package rules

import (
	"strings"

	"nero/internal/fact"
)

// Term is a constant, a variable, a wildcard or, in rule heads only, an
// aggregate.
type Term interface {
	isTerm()
	String() string
}

// Constant is a ground value.
type Constant struct {
	Value fact.Value
}

// Variable is a named logic variable.
type Variable struct {
	Name string
}

// Wildcard matches anything and binds nothing.
type Wildcard struct{}

// Aggregate folds the matches of a rule body into one head field.
type Aggregate struct {
	Func string
	Args []Variable
}

func (Constant) isTerm()  {}
func (Variable) isTerm()  {}
func (Wildcard) isTerm()  {}
func (Aggregate) isTerm() {}

func (c Constant) String() string {
	if c.Value == nil {
		return "null"
	}
	return c.Value.String()
}
func (v Variable) String() string { return v.Name }
func (Wildcard) String() string   { return "_" }

func (a Aggregate) String() string {
	names := make([]string, len(a.Args))
	for i, v := range a.Args {
		names[i] = v.Name
	}
	return a.Func + "(" + strings.Join(names, ", ") + ")"
}

// Const returns a constant term for a Go or fact value.
func Const(v interface{}) Constant { return Constant{Value: fact.FromGo(v)} }

// Var returns a variable term.
func Var(name string) Variable { return Variable{Name: name} }

// Wild returns the wildcard term.
func Wild() Wildcard { return Wildcard{} }

// Agg returns an aggregate term.
func Agg(fn string, vars ...string) Aggregate {
	args := make([]Variable, len(vars))
	for i, v := range vars {
		args[i] = Variable{Name: v}
	}
	return Aggregate{Func: fn, Args: args}
}

// Atom references a relation. Names is nil for positional atoms; for named
// atoms it parallels Terms.
type Atom struct {
	Relation string
	Terms    []Term
	Names    []string
}

// NewAtom returns a positional atom.
func NewAtom(relation string, terms ...Term) Atom {
	return Atom{Relation: relation, Terms: terms}
}

// NewNamedAtom returns a named atom from name/term pairs given in order.
func NewNamedAtom(relation string, names []string, terms []Term) Atom {
	return Atom{Relation: relation, Names: names, Terms: terms}
}

// IsNamed reports whether the atom addresses fields by name.
func (a Atom) IsNamed() bool { return a.Names != nil }

func (a Atom) String() string {
	var sb strings.Builder
	sb.WriteString(a.Relation)
	sb.WriteString("(")
	for i, t := range a.Terms {
		if i > 0 {
			sb.WriteString(", ")
		}
		if a.IsNamed() {
			sb.WriteString(a.Names[i])
			sb.WriteString(": ")
		}
		sb.WriteString(t.String())
	}
	sb.WriteString(")")
	return sb.String()
}

// Variables returns the distinct variable names of the atom, in order of
// appearance.
func (a Atom) Variables() []string {
	return termVariables(a.Terms)
}

func termVariables(terms []Term) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, t := range terms {
		switch x := t.(type) {
		case Variable:
			add(x.Name)
		case Aggregate:
			for _, v := range x.Args {
				add(v.Name)
			}
		}
	}
	return out
}

// Op is a constraint comparison operator.
type Op string

const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Ops lists the comparison operators.
var Ops = []Op{OpEq, OpNe, OpLt, OpLe, OpGt, OpGe}

// BodyElement is one conjunct of a rule body: PositiveAtom, NegatedAtom,
// BuiltinAtom or Constraint.
type BodyElement interface {
	isBodyElement()
	String() string
}

// PositiveAtom matches facts of a relation and binds variables.
type PositiveAtom struct {
	Atom
}

// NegatedAtom succeeds when no fact of a lower stratum matches.
type NegatedAtom struct {
	Atom
}

// BuiltinAtom calls a built-in predicate.
type BuiltinAtom struct {
	Name  string
	Terms []Term
}

// Constraint compares two bound terms.
type Constraint struct {
	Left  Term
	Op    Op
	Right Term
}

func (PositiveAtom) isBodyElement() {}
func (NegatedAtom) isBodyElement()  {}
func (BuiltinAtom) isBodyElement()  {}
func (Constraint) isBodyElement()   {}

func (n NegatedAtom) String() string { return "not " + n.Atom.String() }

func (b BuiltinAtom) String() string {
	return Atom{Relation: b.Name, Terms: b.Terms}.String()
}

func (c Constraint) String() string {
	return c.Left.String() + " " + string(c.Op) + " " + c.Right.String()
}

// Pos returns a positive body atom.
func Pos(relation string, terms ...Term) PositiveAtom {
	return PositiveAtom{Atom: NewAtom(relation, terms...)}
}

// Not returns a negated body atom.
func Not(relation string, terms ...Term) NegatedAtom {
	return NegatedAtom{Atom: NewAtom(relation, terms...)}
}

// Call returns a built-in atom.
func Call(name string, terms ...Term) BuiltinAtom {
	return BuiltinAtom{Name: name, Terms: terms}
}

// Cmp returns a constraint.
func Cmp(left Term, op Op, right Term) Constraint {
	return Constraint{Left: left, Op: op, Right: right}
}

// Rule is a head atom derived from a conjunctive body.
type Rule struct {
	Head Atom
	Body []BodyElement
}

// NewRule returns a rule.
func NewRule(head Atom, body ...BodyElement) Rule {
	return Rule{Head: head, Body: body}
}

func (r Rule) String() string {
	parts := make([]string, len(r.Body))
	for i, b := range r.Body {
		parts[i] = b.String()
	}
	return r.Head.String() + " :- " + strings.Join(parts, ", ") + ";"
}

// Aggregate returns the head's aggregate term and its position, if any.
func (r Rule) Aggregate() (Aggregate, int, bool) {
	for i, t := range r.Head.Terms {
		if a, ok := t.(Aggregate); ok {
			return a, i, true
		}
	}
	return Aggregate{}, -1, false
}
