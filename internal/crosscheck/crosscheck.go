// Package crosscheck evaluates a rule set with Google Mangle and compares the
// outcome with nero's own evaluator. Only the fragment both engines share is
// supported: ordered relations, positive and negated atoms, equality
// constraints, and int, float, string and keyword constants.
package crosscheck

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
	"go.uber.org/zap"

	"nero/internal/fact"
	"nero/internal/rules"
)

// ErrUnsupported marks a rule set or fact outside the shared fragment.
var ErrUnsupported = errors.New("not expressible in mangle")

// Program is a rule set and its input rendered as Mangle source.
type Program struct {
	Source string

	rs       *rules.RuleSet
	toMangle map[string]string
	toNero   map[string]string
}

// Translate renders rs and input as a Mangle program.
func Translate(rs *rules.RuleSet, input []fact.Fact) (*Program, error) {
	p := &Program{
		rs:       rs,
		toMangle: make(map[string]string),
		toNero:   make(map[string]string),
	}
	arity := make(map[string]int)
	defined := make(map[string]bool)
	note := func(rel string, n int) error {
		if a, ok := arity[rel]; ok && a != n {
			return fmt.Errorf("%s used with arity %d and %d: %w", rel, a, n, ErrUnsupported)
		}
		arity[rel] = n
		p.predicate(rel)
		return nil
	}

	var sb strings.Builder
	facts := append(rs.Axioms(), input...)
	for _, f := range facts {
		if f.IsNamed() {
			return nil, fmt.Errorf("named fact %s: %w", f.String(), ErrUnsupported)
		}
		if err := note(f.Relation, f.Arity()); err != nil {
			return nil, err
		}
		defined[f.Relation] = true
		sb.WriteString(p.toMangle[f.Relation])
		sb.WriteString("(")
		for i, v := range f.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			lit, err := constant(v)
			if err != nil {
				return nil, err
			}
			sb.WriteString(lit)
		}
		sb.WriteString(").\n")
	}

	for _, r := range rs.Rules() {
		if _, _, ok := r.Aggregate(); ok {
			return nil, fmt.Errorf("aggregate in %s: %w", r.String(), ErrUnsupported)
		}
		if err := note(r.Head.Relation, len(r.Head.Terms)); err != nil {
			return nil, err
		}
		defined[r.Head.Relation] = true
		for _, el := range r.Body {
			switch x := el.(type) {
			case rules.PositiveAtom:
				if err := note(x.Relation, len(x.Terms)); err != nil {
					return nil, err
				}
			case rules.NegatedAtom:
				if err := note(x.Relation, len(x.Terms)); err != nil {
					return nil, err
				}
			}
		}
		line, err := p.rule(r)
		if err != nil {
			return nil, err
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	var decls strings.Builder
	for _, rel := range sortedKeys(arity) {
		if defined[rel] {
			continue
		}
		args := make([]string, arity[rel])
		for i := range args {
			args[i] = "X" + strconv.Itoa(i)
		}
		fmt.Fprintf(&decls, "Decl %s(%s).\n", p.toMangle[rel], strings.Join(args, ", "))
	}
	p.Source = decls.String() + sb.String()
	return p, nil
}

// predicate assigns rel a Mangle predicate name. Mangle predicates start
// with a lowercase letter; the index keeps the mapping injective.
func (p *Program) predicate(rel string) string {
	if name, ok := p.toMangle[rel]; ok {
		return name
	}
	name := fmt.Sprintf("r%d_%s", len(p.toMangle), strings.ToLower(rel))
	p.toMangle[rel] = name
	p.toNero[name] = rel
	return name
}

func (p *Program) rule(r rules.Rule) (string, error) {
	vars := make(map[string]string)
	term := func(t rules.Term) (string, error) {
		switch x := t.(type) {
		case rules.Wildcard:
			return "_", nil
		case rules.Variable:
			name, ok := vars[x.Name]
			if !ok {
				name = "X" + strconv.Itoa(len(vars))
				vars[x.Name] = name
			}
			return name, nil
		case rules.Constant:
			return constant(x.Value)
		}
		return "", fmt.Errorf("term %s: %w", t.String(), ErrUnsupported)
	}
	atom := func(a rules.Atom) (string, error) {
		if a.IsNamed() {
			return "", fmt.Errorf("named atom %s: %w", a.String(), ErrUnsupported)
		}
		args := make([]string, len(a.Terms))
		for i, t := range a.Terms {
			s, err := term(t)
			if err != nil {
				return "", err
			}
			args[i] = s
		}
		return p.toMangle[a.Relation] + "(" + strings.Join(args, ", ") + ")", nil
	}

	var body []string
	for _, el := range r.Body {
		var s string
		var err error
		switch x := el.(type) {
		case rules.PositiveAtom:
			s, err = atom(x.Atom)
		case rules.NegatedAtom:
			s, err = atom(x.Atom)
			s = "!" + s
		case rules.Constraint:
			var op string
			switch x.Op {
			case rules.OpEq:
				op = "="
			case rules.OpNe:
				op = "!="
			default:
				return "", fmt.Errorf("constraint %s: %w", x.String(), ErrUnsupported)
			}
			var left, right string
			if left, err = term(x.Left); err == nil {
				right, err = term(x.Right)
			}
			s = left + " " + op + " " + right
		default:
			return "", fmt.Errorf("%s: %w", el.String(), ErrUnsupported)
		}
		if err != nil {
			return "", err
		}
		body = append(body, s)
	}
	head, err := atom(r.Head)
	if err != nil {
		return "", err
	}
	if len(body) == 0 {
		return head + ".", nil
	}
	return head + " :- " + strings.Join(body, ", ") + ".", nil
}

func constant(v fact.Value) (string, error) {
	switch x := v.(type) {
	case fact.Int:
		return strconv.FormatInt(int64(x), 10), nil
	case fact.Float:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			break
		}
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s, nil
	case fact.String:
		return strconv.Quote(string(x)), nil
	case fact.Keyword:
		if fact.ValidKeyword(string(x)) {
			return "/" + string(x), nil
		}
	}
	return "", fmt.Errorf("value %s: %w", v.String(), ErrUnsupported)
}

// Run evaluates the program with Mangle and returns every non-transient fact
// in the resulting store.
func (p *Program) Run() (*fact.Store, error) {
	unit, err := parse.Unit(bytes.NewReader([]byte(p.Source)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse mangle program: %w", err)
	}
	info, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze mangle program: %w", err)
	}
	store := factstore.NewSimpleInMemoryStore()
	if _, err := mengine.EvalProgramWithStats(info, store); err != nil {
		return nil, fmt.Errorf("mangle evaluation failed: %w", err)
	}

	out := fact.NewStore()
	for _, sym := range store.ListPredicates() {
		rel, ok := p.toNero[sym.Symbol]
		if !ok || p.rs.IsTransient(rel) {
			continue
		}
		var convErr error
		err := store.GetFacts(ast.NewQuery(sym), func(a ast.Atom) error {
			fields := make([]fact.Value, len(a.Args))
			for i, arg := range a.Args {
				c, ok := arg.(ast.Constant)
				if !ok {
					convErr = fmt.Errorf("non-constant %v in %s", arg, a.String())
					return convErr
				}
				v, err := fromConstant(c)
				if err != nil {
					convErr = err
					return err
				}
				fields[i] = v
			}
			out.Add(fact.New(rel, fields...))
			return nil
		})
		if convErr != nil {
			return nil, convErr
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func fromConstant(c ast.Constant) (fact.Value, error) {
	switch c.Type {
	case ast.NameType:
		return fact.Keyword(strings.TrimPrefix(c.Symbol, "/")), nil
	case ast.StringType:
		return fact.String(c.Symbol), nil
	case ast.NumberType:
		return fact.Int(c.NumValue), nil
	case ast.Float64Type:
		return fact.Float(math.Float64frombits(uint64(c.NumValue))), nil
	}
	return nil, fmt.Errorf("mangle constant %s: %w", c.String(), ErrUnsupported)
}

// Diff lists the facts on which the two engines disagree.
type Diff struct {
	// Missing facts were derived by Mangle but not by nero.
	Missing []fact.Fact
	// Extra facts were derived by nero but not by Mangle.
	Extra []fact.Fact
}

// Empty reports whether the engines agree.
func (d Diff) Empty() bool { return len(d.Missing) == 0 && len(d.Extra) == 0 }

func (d Diff) String() string {
	if d.Empty() {
		return "no differences"
	}
	var sb strings.Builder
	for _, f := range d.Missing {
		sb.WriteString("- " + f.String() + "\n")
	}
	for _, f := range d.Extra {
		sb.WriteString("+ " + f.String() + "\n")
	}
	return sb.String()
}

// Compare diffs two fact stores: want from Mangle, got from nero.
func Compare(want, got *fact.Store) Diff {
	var d Diff
	want.Each(func(f fact.Fact) bool {
		if !got.Contains(f) {
			d.Missing = append(d.Missing, f)
		}
		return true
	})
	got.Each(func(f fact.Fact) bool {
		if !want.Contains(f) {
			d.Extra = append(d.Extra, f)
		}
		return true
	})
	return d
}

// Checker runs cross-checks and logs their outcome.
type Checker struct {
	log *zap.Logger
}

// NewChecker returns a checker logging to log.
func NewChecker(log *zap.Logger) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{log: log}
}

// Check evaluates rs over input with Mangle and diffs the result against
// known, the non-transient facts nero computed for the same input.
func (c *Checker) Check(rs *rules.RuleSet, input []fact.Fact, known *fact.Store) (Diff, error) {
	prog, err := Translate(rs, input)
	if err != nil {
		return Diff{}, err
	}
	c.log.Debug("mangle program", zap.String("source", prog.Source))
	want, err := prog.Run()
	if err != nil {
		return Diff{}, err
	}
	d := Compare(want, known)
	c.log.Debug("cross-check complete",
		zap.Int("mangle_facts", want.Len()),
		zap.Int("nero_facts", known.Len()),
		zap.Int("missing", len(d.Missing)),
		zap.Int("extra", len(d.Extra)))
	return d, nil
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
