package rules

import (
	"sort"
	"sync"

	"nero/internal/fact"
	"nero/internal/nerr"
)

// Builder assembles a RuleSet. It records the first error it meets and
// ignores everything after it; Build reports that error.
type Builder struct {
	shapes    map[string]fact.Shape
	transient map[string]bool
	axioms    []fact.Fact
	rules     []Rule
	err       error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		shapes:    make(map[string]fact.Shape),
		transient: make(map[string]bool),
	}
}

// Err returns the first error recorded so far.
func (b *Builder) Err() error { return b.err }

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// Define fixes a relation's shape. Redefining with the same shape is allowed.
func (b *Builder) Define(relation string, shape fact.Shape) *Builder {
	if b.err != nil {
		return b
	}
	if err := checkDefinable(relation); err != nil {
		return b.fail(err)
	}
	if shape.IsNamed() {
		seen := make(map[string]bool, len(shape.Names))
		for _, n := range shape.Names {
			if seen[n] {
				return b.fail(nerr.ForRelation(nerr.ShapeMismatch, relation, "field %s declared twice", n))
			}
			seen[n] = true
		}
	}
	if _, err := b.establish(relation, shape); err != nil {
		return b.fail(err)
	}
	return b
}

// Transient marks a relation as transient: it takes part in evaluation but
// is left out of results.
func (b *Builder) Transient(relation string) *Builder {
	if b.err != nil {
		return b
	}
	if err := checkDefinable(relation); err != nil {
		return b.fail(err)
	}
	b.transient[relation] = true
	return b
}

// DefineTransient is Define followed by Transient.
func (b *Builder) DefineTransient(relation string, shape fact.Shape) *Builder {
	return b.Define(relation, shape).Transient(relation)
}

// Axiom adds a ground atom. Variables, wildcards and aggregates are rejected.
func (b *Builder) Axiom(a Atom) *Builder {
	if b.err != nil {
		return b
	}
	values := make([]fact.Value, len(a.Terms))
	for i, t := range a.Terms {
		switch x := t.(type) {
		case Constant:
			values[i] = x.Value
		case Wildcard:
			return b.fail(nerr.ForRelation(nerr.WildcardInHead, a.Relation, "wildcard in axiom %s", a.String()))
		case Variable:
			return b.fail(nerr.ForVariable(nerr.VariableInAxiom, a.Relation, x.Name, "variable %s in axiom %s", x.Name, a.String()))
		case Aggregate:
			return b.fail(nerr.ForRelation(nerr.VariableInAxiom, a.Relation, "aggregate in axiom %s", a.String()))
		}
	}
	if a.IsNamed() {
		return b.Fact(fact.NewNamed(a.Relation, a.Names, values))
	}
	return b.Fact(fact.New(a.Relation, values...))
}

// Fact adds a ground fact as an axiom.
func (b *Builder) Fact(f fact.Fact) *Builder {
	if b.err != nil {
		return b
	}
	if err := checkDefinable(f.Relation); err != nil {
		return b.fail(err)
	}
	fields := make([]fact.Value, len(f.Fields))
	for i, v := range f.Fields {
		if v == nil {
			v = fact.Null{}
		}
		fields[i] = v
	}
	f.Fields = fields
	order, err := b.placeAtom(f.Relation, f.Names, len(f.Fields))
	if err != nil {
		return b.fail(err)
	}
	if order != nil {
		f = reorderFact(f, b.shapes[f.Relation], order)
	}
	b.axioms = append(b.axioms, f)
	return b
}

// Rule adds a rule after checking its head and range restriction.
func (b *Builder) Rule(r Rule) *Builder {
	if b.err != nil {
		return b
	}
	if err := CheckRule(r); err != nil {
		return b.fail(err)
	}
	order, err := b.placeAtom(r.Head.Relation, r.Head.Names, len(r.Head.Terms))
	if err != nil {
		return b.fail(err)
	}
	if order != nil {
		shape := b.shapes[r.Head.Relation]
		terms := make([]Term, len(order))
		for i, src := range order {
			terms[i] = r.Head.Terms[src]
		}
		r.Head = Atom{Relation: r.Head.Relation, Names: shape.Names, Terms: terms}
	}
	body := make([]BodyElement, len(r.Body))
	copy(body, r.Body)
	r.Body = body
	b.rules = append(b.rules, r)
	return b
}

// Build validates body atoms against the established shapes and returns the
// immutable rule set.
func (b *Builder) Build() (*RuleSet, error) {
	if b.err != nil {
		return nil, b.err
	}
	for _, r := range b.rules {
		for _, el := range r.Body {
			var a Atom
			switch x := el.(type) {
			case PositiveAtom:
				a = x.Atom
			case NegatedAtom:
				a = x.Atom
			default:
				continue
			}
			if err := b.checkBodyAtom(a); err != nil {
				return nil, err
			}
		}
	}

	rs := &RuleSet{
		axioms:    append([]fact.Fact(nil), b.axioms...),
		rules:     append([]Rule(nil), b.rules...),
		shapes:    make(map[string]fact.Shape, len(b.shapes)),
		transient: make(map[string]bool, len(b.transient)),
	}
	for k, v := range b.shapes {
		rs.shapes[k] = v
	}
	for k := range b.transient {
		rs.transient[k] = true
	}
	return rs, nil
}

// establish records shape for relation or checks it against the one already
// fixed. It reports whether the shape was new.
func (b *Builder) establish(relation string, shape fact.Shape) (bool, error) {
	known, ok := b.shapes[relation]
	if !ok {
		b.shapes[relation] = shape
		return true, nil
	}
	if !known.Equal(shape) {
		return false, nerr.ForRelation(nerr.ShapeMismatch, relation,
			"%s does not match established shape %s", shape.Describe(relation), known.Describe(relation))
	}
	return false, nil
}

// placeAtom checks a head or axiom atom against the relation's shape,
// establishing it on first use. For named atoms it returns, for each shape
// position, the index of the atom field that fills it.
func (b *Builder) placeAtom(relation string, names []string, arity int) ([]int, error) {
	if names == nil {
		_, err := b.establish(relation, fact.Ordered(arity))
		return nil, err
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return nil, nerr.ForRelation(nerr.ShapeMismatch, relation, "field %s given twice", n)
		}
		seen[n] = true
	}
	known, ok := b.shapes[relation]
	if !ok {
		b.shapes[relation] = fact.Named(append([]string(nil), names...)...)
		return nil, nil
	}
	if !known.IsNamed() || len(known.Names) != len(names) {
		return nil, nerr.ForRelation(nerr.ShapeMismatch, relation,
			"%s does not match established shape %s", fact.Named(names...).Describe(relation), known.Describe(relation))
	}
	order := make([]int, len(known.Names))
	identity := true
	for i, want := range known.Names {
		idx := indexOf(names, want)
		if idx < 0 {
			return nil, nerr.ForRelation(nerr.ShapeMismatch, relation,
				"field %s missing; established shape is %s", want, known.Describe(relation))
		}
		order[i] = idx
		identity = identity && idx == i
	}
	if identity {
		return nil, nil
	}
	return order, nil
}

func (b *Builder) checkBodyAtom(a Atom) error {
	if a.Relation == QueryRelation {
		if !a.IsNamed() && len(a.Terms) > 0 {
			return nerr.ForRelation(nerr.ShapeMismatch, a.Relation, "query parameters are read by name: %s", a.String())
		}
		return nil
	}
	known, ok := b.shapes[a.Relation]
	if !ok {
		return nil
	}
	if !a.IsNamed() {
		if known.IsNamed() || known.Arity != len(a.Terms) {
			return nerr.ForRelation(nerr.ShapeMismatch, a.Relation,
				"%s does not match established shape %s", a.String(), known.Describe(a.Relation))
		}
		return nil
	}
	if !known.IsNamed() {
		return nerr.ForRelation(nerr.ShapeMismatch, a.Relation,
			"%s uses field names but %s is ordered", a.String(), known.Describe(a.Relation))
	}
	for _, n := range a.Names {
		if known.Index(n) < 0 {
			return nerr.ForRelation(nerr.ShapeMismatch, a.Relation,
				"%s has no field %s", known.Describe(a.Relation), n)
		}
	}
	return nil
}

func indexOf(names []string, want string) int {
	for i, n := range names {
		if n == want {
			return i
		}
	}
	return -1
}

func reorderFact(f fact.Fact, shape fact.Shape, order []int) fact.Fact {
	fields := make([]fact.Value, len(order))
	for i, src := range order {
		fields[i] = f.Fields[src]
	}
	return fact.NewNamed(f.Relation, shape.Names, fields)
}

// RuleSet is an immutable collection of axioms, rules and relation shapes.
type RuleSet struct {
	axioms    []fact.Fact
	rules     []Rule
	shapes    map[string]fact.Shape
	transient map[string]bool

	strataOnce sync.Once
	strata     *Strata
	strataErr  error
}

// Axioms returns the ground facts of the rule set.
func (rs *RuleSet) Axioms() []fact.Fact {
	return append([]fact.Fact(nil), rs.axioms...)
}

// Rules returns the rules in definition order.
func (rs *RuleSet) Rules() []Rule {
	return append([]Rule(nil), rs.rules...)
}

// Shape returns a relation's established shape.
func (rs *RuleSet) Shape(relation string) (fact.Shape, bool) {
	s, ok := rs.shapes[relation]
	return s, ok
}

// Shapes returns a copy of the shape registry.
func (rs *RuleSet) Shapes() map[string]fact.Shape {
	out := make(map[string]fact.Shape, len(rs.shapes))
	for k, v := range rs.shapes {
		out[k] = v
	}
	return out
}

// IsTransient reports whether relation is excluded from results.
func (rs *RuleSet) IsTransient(relation string) bool {
	return rs.transient[relation] || relation == QueryRelation
}

// Normalize reorders a named fact's fields into its relation's declared
// shape order when both carry the same field names. Other facts are
// returned unchanged.
func (rs *RuleSet) Normalize(f fact.Fact) fact.Fact {
	shape, ok := rs.shapes[f.Relation]
	if !ok || !shape.IsNamed() || !f.IsNamed() || len(shape.Names) != len(f.Names) {
		return f
	}
	order := make([]int, len(shape.Names))
	identity := true
	for i, want := range shape.Names {
		idx := indexOf(f.Names, want)
		if idx < 0 {
			return f
		}
		order[i] = idx
		identity = identity && idx == i
	}
	if identity {
		return f
	}
	return reorderFact(f, shape, order)
}

// Transients returns the transient relation names, sorted.
func (rs *RuleSet) Transients() []string {
	out := make([]string, 0, len(rs.transient))
	for k := range rs.transient {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Relations returns every relation the rule set mentions, sorted.
func (rs *RuleSet) Relations() []string {
	seen := make(map[string]bool)
	for k := range rs.shapes {
		seen[k] = true
	}
	for k := range rs.transient {
		seen[k] = true
	}
	for _, r := range rs.rules {
		seen[r.Head.Relation] = true
		for _, el := range r.Body {
			switch x := el.(type) {
			case PositiveAtom:
				seen[x.Relation] = true
			case NegatedAtom:
				seen[x.Relation] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// OutputSchema returns the shapes of the non-transient relations the rule set
// defines, asserts or derives.
func (rs *RuleSet) OutputSchema() Schema {
	out := make(Schema)
	for k, v := range rs.shapes {
		if !rs.IsTransient(k) {
			out[k] = v
		}
	}
	return out
}

// Strata returns the memoized stratification.
func (rs *RuleSet) Strata() (*Strata, error) {
	rs.strataOnce.Do(func() {
		rs.strata, rs.strataErr = stratify(rs.rules)
	})
	return rs.strata, rs.strataErr
}

// IsStratified reports whether the rule set has a valid stratification.
func (rs *RuleSet) IsStratified() bool {
	_, err := rs.Strata()
	return err == nil
}

// Schema maps relation names to shapes.
type Schema map[string]fact.Shape

// Relations returns the schema's relation names, sorted.
func (s Schema) Relations() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Check compares s with want and names the first relation, in sorted order,
// that is missing from either side or has a different shape.
func (s Schema) Check(want Schema) error {
	names := make(map[string]bool, len(s)+len(want))
	for k := range s {
		names[k] = true
	}
	for k := range want {
		names[k] = true
	}
	sorted := make([]string, 0, len(names))
	for k := range names {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, rel := range sorted {
		have, inHave := s[rel]
		exp, inWant := want[rel]
		switch {
		case !inWant:
			return nerr.ForRelation(nerr.SchemaMismatch, rel, "%s is not in the schema", have.Describe(rel))
		case !inHave:
			return nerr.ForRelation(nerr.SchemaMismatch, rel, "schema expects %s but the rule set does not produce it", exp.Describe(rel))
		case !have.Equal(exp):
			return nerr.ForRelation(nerr.SchemaMismatch, rel, "rule set produces %s, schema expects %s", have.Describe(rel), exp.Describe(rel))
		}
	}
	return nil
}
