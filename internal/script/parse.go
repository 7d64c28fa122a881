package script

import (
	"fmt"
	"strconv"
	"text/scanner"

	"nero/internal/builtin"
	"nero/internal/fact"
	"nero/internal/rules"
)

// Parse reads a Nero script into a rule set.
func Parse(src string) (*rules.RuleSet, error) {
	p := &parser{lx: newLexer(src), b: rules.NewBuilder()}
	if err := p.script(); err != nil {
		return nil, err
	}
	return p.b.Build()
}

// ParseFacts reads a script that holds only declarations and axioms and
// returns the axioms in source order.
func ParseFacts(src string) ([]fact.Fact, error) {
	p := &parser{lx: newLexer(src), b: rules.NewBuilder(), factsOnly: true}
	if err := p.script(); err != nil {
		return nil, err
	}
	rs, err := p.b.Build()
	if err != nil {
		return nil, err
	}
	return rs.Axioms(), nil
}

// ParseSchema reads define declarations into a schema. Transient
// definitions are left out; any other statement is an error.
func ParseSchema(src string) (rules.Schema, error) {
	p := &parser{lx: newLexer(src), b: rules.NewBuilder(), schemaOnly: true}
	if err := p.script(); err != nil {
		return nil, err
	}
	rs, err := p.b.Build()
	if err != nil {
		return nil, err
	}
	return rs.OutputSchema(), nil
}

type parser struct {
	lx         *lexer
	b          *rules.Builder
	factsOnly  bool
	schemaOnly bool
}

func (p *parser) peek() token { return p.lx.peek(0) }

func (p *parser) next() (token, error) {
	t := p.lx.next()
	if p.lx.err != nil {
		return t, p.lx.err
	}
	return t, nil
}

func (p *parser) expect(kind rune, what string) (token, error) {
	t, err := p.next()
	if err != nil {
		return t, err
	}
	if t.kind != kind {
		return t, syntaxError(t.pos, "expected %s, found %s", what, t)
	}
	return t, nil
}

// built attaches the statement position to a builder error.
func (p *parser) built(pos scanner.Position) error {
	if err := p.b.Err(); err != nil {
		return fmt.Errorf("%d:%d: %w", pos.Line, pos.Column, err)
	}
	return nil
}

func (p *parser) script() error {
	for {
		t := p.peek()
		if p.lx.err != nil {
			return p.lx.err
		}
		if t.kind == scanner.EOF {
			return nil
		}
		if err := p.statement(); err != nil {
			return err
		}
	}
}

func (p *parser) statement() error {
	t := p.peek()
	if t.kind != scanner.Ident {
		return syntaxError(t.pos, "expected statement, found %s", t)
	}
	after := p.lx.peek(1)
	switch {
	case t.text == "define" && after.kind == scanner.Ident:
		return p.define()
	case t.text == "transient" && after.kind == scanner.Ident:
		if p.schemaOnly {
			return syntaxError(t.pos, "schema files hold only define declarations")
		}
		p.lx.next()
		name, _ := p.next()
		if _, err := p.expect(';', "';'"); err != nil {
			return err
		}
		p.b.Transient(name.text)
		return p.built(t.pos)
	}
	if p.schemaOnly {
		return syntaxError(t.pos, "schema files hold only define declarations")
	}

	head, err := p.atom(true)
	if err != nil {
		return err
	}
	end, err := p.next()
	if err != nil {
		return err
	}
	switch end.kind {
	case ';':
		p.b.Axiom(head)
		return p.built(t.pos)
	case tokImplies:
		if p.factsOnly {
			return syntaxError(end.pos, "rules are not allowed here")
		}
		body, err := p.body()
		if err != nil {
			return err
		}
		p.b.Rule(rules.NewRule(head, body...))
		return p.built(t.pos)
	}
	return syntaxError(end.pos, "expected ';' or ':-', found %s", end)
}

// define = "define" [ "transient" ] Ident "/" ( Int | Ident { "," Ident } ) ";" .
func (p *parser) define() error {
	start := p.lx.next()
	transient := false
	name, err := p.expect(scanner.Ident, "relation name")
	if err != nil {
		return err
	}
	if name.text == "transient" && p.peek().kind == scanner.Ident {
		transient = true
		if name, err = p.next(); err != nil {
			return err
		}
	}
	if _, err := p.expect('/', "'/'"); err != nil {
		return err
	}
	var shape fact.Shape
	t, err := p.next()
	if err != nil {
		return err
	}
	switch t.kind {
	case scanner.Int:
		n, err := strconv.Atoi(t.text)
		if err != nil {
			return syntaxError(t.pos, "bad arity %s", t.text)
		}
		shape = fact.Ordered(n)
	case scanner.Ident:
		names := []string{t.text}
		for p.peek().kind == ',' {
			p.lx.next()
			n, err := p.expect(scanner.Ident, "field name")
			if err != nil {
				return err
			}
			names = append(names, n.text)
		}
		shape = fact.Named(names...)
	default:
		return syntaxError(t.pos, "expected arity or field names, found %s", t)
	}
	if _, err := p.expect(';', "';'"); err != nil {
		return err
	}
	if transient {
		p.b.DefineTransient(name.text, shape)
	} else {
		p.b.Define(name.text, shape)
	}
	return p.built(start.pos)
}

// atom parses Ident "(" [ args ] ")". Head atoms may carry aggregates.
func (p *parser) atom(head bool) (rules.Atom, error) {
	name, err := p.expect(scanner.Ident, "relation name")
	if err != nil {
		return rules.Atom{}, err
	}
	terms, names, err := p.args(head)
	if err != nil {
		return rules.Atom{}, err
	}
	return rules.Atom{Relation: name.text, Terms: terms, Names: names}, nil
}

func (p *parser) args(head bool) ([]rules.Term, []string, error) {
	if _, err := p.expect('(', "'('"); err != nil {
		return nil, nil, err
	}
	var terms []rules.Term
	var names []string
	if p.peek().kind == ')' {
		p.lx.next()
		return terms, nil, nil
	}
	named := p.peek().kind == scanner.Ident && p.lx.peek(1).kind == ':'
	for {
		if named {
			n, err := p.expect(scanner.Ident, "field name")
			if err != nil {
				return nil, nil, err
			}
			if _, err := p.expect(':', "':'"); err != nil {
				return nil, nil, err
			}
			names = append(names, n.text)
		}
		t, err := p.term(head)
		if err != nil {
			return nil, nil, err
		}
		terms = append(terms, t)

		sep, err := p.next()
		if err != nil {
			return nil, nil, err
		}
		if sep.kind == ')' {
			return terms, names, nil
		}
		if sep.kind != ',' {
			return nil, nil, syntaxError(sep.pos, "expected ',' or ')', found %s", sep)
		}
	}
}

func (p *parser) term(head bool) (rules.Term, error) {
	t := p.peek()
	if t.kind == scanner.Ident && !isLiteralWord(t.text) {
		p.lx.next()
		if p.peek().kind == '(' {
			if !head {
				if rules.IsAggregate(t.text) {
					return nil, syntaxError(t.pos, "aggregate %s outside a rule head", t.text)
				}
				return nil, syntaxError(t.pos, "%s(...) is not a term", t.text)
			}
			return p.aggregate(t)
		}
		if t.text == "_" {
			return rules.Wild(), nil
		}
		return rules.Var(t.text), nil
	}
	v, err := p.constant()
	if err != nil {
		return nil, err
	}
	return rules.Constant{Value: v}, nil
}

func (p *parser) aggregate(fn token) (rules.Term, error) {
	p.lx.next()
	var vars []string
	for {
		v, err := p.expect(scanner.Ident, "aggregate variable")
		if err != nil {
			return nil, err
		}
		vars = append(vars, v.text)
		sep, err := p.next()
		if err != nil {
			return nil, err
		}
		if sep.kind == ')' {
			return rules.Agg(fn.text, vars...), nil
		}
		if sep.kind != ',' {
			return nil, syntaxError(sep.pos, "expected ',' or ')', found %s", sep)
		}
	}
}

func isLiteralWord(s string) bool {
	return s == "true" || s == "false" || s == "null"
}

func (p *parser) body() ([]rules.BodyElement, error) {
	var out []rules.BodyElement
	for {
		el, err := p.bodyElement()
		if err != nil {
			return nil, err
		}
		out = append(out, el)
		sep, err := p.next()
		if err != nil {
			return nil, err
		}
		if sep.kind == ';' {
			return out, nil
		}
		if sep.kind != ',' {
			return nil, syntaxError(sep.pos, "expected ',' or ';', found %s", sep)
		}
	}
}

func (p *parser) bodyElement() (rules.BodyElement, error) {
	t := p.peek()
	after := p.lx.peek(1)
	if t.kind == scanner.Ident {
		switch {
		case t.text == "not" && after.kind == scanner.Ident:
			p.lx.next()
			a, err := p.atom(false)
			if err != nil {
				return nil, err
			}
			return rules.NegatedAtom{Atom: a}, nil
		case after.kind == '(':
			a, err := p.atom(false)
			if err != nil {
				return nil, err
			}
			if builtin.IsBuiltin(a.Relation) {
				if a.IsNamed() {
					return nil, syntaxError(t.pos, "built-in %s takes positional arguments", a.Relation)
				}
				return rules.BuiltinAtom{Name: a.Relation, Terms: a.Terms}, nil
			}
			return rules.PositiveAtom{Atom: a}, nil
		}
	}

	left, err := p.term(false)
	if err != nil {
		return nil, err
	}
	opTok, err := p.next()
	if err != nil {
		return nil, err
	}
	var op rules.Op
	switch opTok.kind {
	case tokEq, '=':
		op = rules.OpEq
	case tokNe:
		op = rules.OpNe
	case '<':
		op = rules.OpLt
	case tokLe:
		op = rules.OpLe
	case '>':
		op = rules.OpGt
	case tokGe:
		op = rules.OpGe
	default:
		return nil, syntaxError(opTok.pos, "expected comparison operator, found %s", opTok)
	}
	right, err := p.term(false)
	if err != nil {
		return nil, err
	}
	return rules.Cmp(left, op, right), nil
}

func (p *parser) constant() (fact.Value, error) {
	t, err := p.next()
	if err != nil {
		return nil, err
	}
	switch t.kind {
	case scanner.String, scanner.RawString:
		s, err := strconv.Unquote(t.text)
		if err != nil {
			return nil, syntaxError(t.pos, "bad string %s", t.text)
		}
		return fact.String(s), nil
	case scanner.Int, scanner.Float:
		return number(t, "")
	case '-':
		n, err := p.next()
		if err != nil {
			return nil, err
		}
		if n.kind != scanner.Int && n.kind != scanner.Float {
			return nil, syntaxError(n.pos, "expected number after '-', found %s", n)
		}
		return number(n, "-")
	case '#':
		kw, err := p.expect(scanner.Ident, "keyword name")
		if err != nil {
			return nil, err
		}
		return fact.Keyword(kw.text), nil
	case scanner.Ident:
		switch t.text {
		case "true":
			return fact.Bool(true), nil
		case "false":
			return fact.Bool(false), nil
		case "null":
			return fact.Null{}, nil
		}
	case '[':
		return p.list()
	case '{':
		return p.mapLiteral()
	}
	return nil, syntaxError(t.pos, "expected constant, found %s", t)
}

func number(t token, sign string) (fact.Value, error) {
	if t.kind == scanner.Int {
		n, err := strconv.ParseInt(sign+t.text, 0, 64)
		if err != nil {
			return nil, syntaxError(t.pos, "integer %s%s out of range", sign, t.text)
		}
		return fact.Int(n), nil
	}
	f, err := strconv.ParseFloat(sign+t.text, 64)
	if err != nil {
		return nil, syntaxError(t.pos, "bad float %s%s", sign, t.text)
	}
	return fact.Float(f), nil
}

func (p *parser) list() (fact.Value, error) {
	out := fact.List{}
	if p.peek().kind == ']' {
		p.lx.next()
		return out, nil
	}
	for {
		v, err := p.constant()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		sep, err := p.next()
		if err != nil {
			return nil, err
		}
		if sep.kind == ']' {
			return out, nil
		}
		if sep.kind != ',' {
			return nil, syntaxError(sep.pos, "expected ',' or ']', found %s", sep)
		}
	}
}

func (p *parser) mapLiteral() (fact.Value, error) {
	out := fact.Map{}
	if p.peek().kind == '}' {
		p.lx.next()
		return out, nil
	}
	for {
		k, err := p.constant()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(':', "':'"); err != nil {
			return nil, err
		}
		v, err := p.constant()
		if err != nil {
			return nil, err
		}
		out = append(out, fact.MapEntry{Key: k, Value: v})
		sep, err := p.next()
		if err != nil {
			return nil, err
		}
		if sep.kind == '}' {
			return out, nil
		}
		if sep.kind != ',' {
			return nil, syntaxError(sep.pos, "expected ',' or '}', found %s", sep)
		}
	}
}
