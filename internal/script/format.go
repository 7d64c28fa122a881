package script

import (
	"sort"
	"strings"

	"nero/internal/fact"
	"nero/internal/nerr"
	"nero/internal/rules"
)

// FormatFact renders one fact as an axiom: Relation(f1, f2); or
// Relation(name: v, ...);. Values without a literal form fail with
// nerr.UnrepresentableTerm.
func FormatFact(f fact.Fact) (string, error) {
	var sb strings.Builder
	if err := writeFact(&sb, f); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func writeFact(sb *strings.Builder, f fact.Fact) error {
	if !fact.ValidKeyword(f.Relation) {
		return nerr.ForRelation(nerr.UnrepresentableTerm, f.Relation, "relation name %q is not an identifier", f.Relation)
	}
	if rules.IsReservedName(f.Relation) {
		return nerr.ForRelation(nerr.UnrepresentableTerm, f.Relation, "%s is a reserved name and cannot be written as an axiom", f.Relation)
	}
	if f.IsNamed() && len(f.Fields) == 0 {
		return nerr.ForRelation(nerr.UnrepresentableTerm, f.Relation, "named fact without fields has no literal form")
	}
	sb.WriteString(f.Relation)
	sb.WriteString("(")
	for i, v := range f.Fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		if f.IsNamed() {
			if !fact.ValidKeyword(f.Names[i]) {
				return nerr.ForRelation(nerr.UnrepresentableTerm, f.Relation, "field name %q is not an identifier", f.Names[i])
			}
			sb.WriteString(f.Names[i])
			sb.WriteString(": ")
		}
		lit, err := fact.Literal(v)
		if err != nil {
			if e, ok := err.(*nerr.Error); ok && e.Relation == "" {
				e.Relation = f.Relation
			}
			return err
		}
		sb.WriteString(lit)
	}
	sb.WriteString(");")
	return nil
}

// FormatFacts renders facts one axiom per line, grouped by relation in
// sorted order and in input order within a relation.
func FormatFacts(facts []fact.Fact) (string, error) {
	byRel := make(map[string][]fact.Fact)
	var names []string
	for _, f := range facts {
		if _, ok := byRel[f.Relation]; !ok {
			names = append(names, f.Relation)
		}
		byRel[f.Relation] = append(byRel[f.Relation], f)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, rel := range names {
		for _, f := range byRel[rel] {
			if err := writeFact(&sb, f); err != nil {
				return "", err
			}
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// FormatStore renders every fact of a store with FormatFacts.
func FormatStore(s *fact.Store) (string, error) {
	return FormatFacts(s.All())
}

// FormatRuleSet renders a rule set as a script: declarations, then axioms,
// then rules.
func FormatRuleSet(rs *rules.RuleSet) (string, error) {
	var sb strings.Builder
	shapes := rs.Shapes()
	names := make([]string, 0, len(shapes))
	for k := range shapes {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, rel := range names {
		sb.WriteString("define ")
		if rs.IsTransient(rel) {
			sb.WriteString("transient ")
		}
		sb.WriteString(shapes[rel].Describe(rel))
		sb.WriteString(";\n")
	}
	for _, rel := range rs.Transients() {
		if _, ok := shapes[rel]; !ok {
			sb.WriteString("transient " + rel + ";\n")
		}
	}

	axioms, err := FormatFacts(rs.Axioms())
	if err != nil {
		return "", err
	}
	sb.WriteString(axioms)
	for _, r := range rs.Rules() {
		line, err := FormatRule(r)
		if err != nil {
			return "", err
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// FormatRule renders a rule in script syntax.
func FormatRule(r rules.Rule) (string, error) {
	var sb strings.Builder
	if err := writeAtom(&sb, r.Head); err != nil {
		return "", err
	}
	sb.WriteString(" :- ")
	for i, el := range r.Body {
		if i > 0 {
			sb.WriteString(", ")
		}
		var err error
		switch x := el.(type) {
		case rules.PositiveAtom:
			err = writeAtom(&sb, x.Atom)
		case rules.NegatedAtom:
			sb.WriteString("not ")
			err = writeAtom(&sb, x.Atom)
		case rules.BuiltinAtom:
			err = writeAtom(&sb, rules.Atom{Relation: x.Name, Terms: x.Terms})
		case rules.Constraint:
			if err = writeTerm(&sb, x.Left); err == nil {
				sb.WriteString(" " + string(x.Op) + " ")
				err = writeTerm(&sb, x.Right)
			}
		}
		if err != nil {
			return "", err
		}
	}
	sb.WriteString(";")
	return sb.String(), nil
}

func writeAtom(sb *strings.Builder, a rules.Atom) error {
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
		if err := writeTerm(sb, t); err != nil {
			return err
		}
	}
	sb.WriteString(")")
	return nil
}

func writeTerm(sb *strings.Builder, t rules.Term) error {
	if c, ok := t.(rules.Constant); ok {
		lit, err := fact.Literal(c.Value)
		if err != nil {
			return err
		}
		sb.WriteString(lit)
		return nil
	}
	sb.WriteString(t.String())
	return nil
}
