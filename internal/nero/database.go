package nero

import (
	"fmt"

	"go.uber.org/zap"

	"nero/internal/fact"
	"nero/internal/nerr"
	"nero/internal/rules"
	"nero/internal/script"
)

// Database is a mutable fact collection owned by an Engine. Every relation
// keeps the shape of the first fact added to it. A Database is not safe for
// concurrent use.
type Database struct {
	engine *Engine
	store  *fact.Store
}

// With returns a pipeline bound to the database.
func (db *Database) With(rs *rules.RuleSet) *Pipeline {
	return newPipeline(db.engine, rs, db)
}

// AddFacts adds facts, failing with IncompatibleFacts and adding nothing if
// one conflicts with an established relation shape.
func (db *Database) AddFacts(facts ...fact.Fact) error {
	if err := db.checkShapes(facts); err != nil {
		return err
	}
	db.store.AddAll(db.normalizeAll(facts))
	return nil
}

// checkShapes verifies facts against the database's shapes and against each
// other.
func (db *Database) checkShapes(facts []fact.Fact) error {
	shapes := db.store.Shapes()
	for _, f := range facts {
		known, ok := shapes[f.Relation]
		if !ok {
			shapes[f.Relation] = f.Shape()
			continue
		}
		if !compatible(known, f) {
			return nerr.ForRelation(nerr.IncompatibleFacts, f.Relation,
				"%s does not fit established shape %s", f.String(), known.Describe(f.Relation))
		}
	}
	return nil
}

// compatible reports whether f fits shape; named facts may list the same
// names in another order.
func compatible(shape fact.Shape, f fact.Fact) bool {
	if shape.IsNamed() != f.IsNamed() || shape.Arity != f.Arity() {
		return false
	}
	for _, n := range f.Names {
		if shape.Index(n) < 0 {
			return false
		}
	}
	return true
}

// normalizeAll reorders named facts into the field order already
// established for their relation.
func (db *Database) normalizeAll(facts []fact.Fact) []fact.Fact {
	return normalizeTo(db.store, facts)
}

// normalizeTo reorders named facts into the field order s already holds for
// their relation, or the order of the first such fact otherwise.
func normalizeTo(s *fact.Store, facts []fact.Fact) []fact.Fact {
	shapes := s.Shapes()
	out := make([]fact.Fact, len(facts))
	for i, f := range facts {
		shape, ok := shapes[f.Relation]
		if !ok {
			shape = f.Shape()
			shapes[f.Relation] = shape
		}
		out[i] = reorder(shape, f)
	}
	return out
}

func reorder(shape fact.Shape, f fact.Fact) fact.Fact {
	if !f.IsNamed() || !shape.IsNamed() {
		return f
	}
	fields := make([]fact.Value, len(shape.Names))
	for i, n := range shape.Names {
		v, ok := f.Get(n)
		if !ok {
			return f
		}
		fields[i] = v
	}
	return fact.NewNamed(f.Relation, shape.Names, fields)
}

// Remove deletes one fact and reports whether it was present.
func (db *Database) Remove(f fact.Fact) bool {
	if shape, ok := db.store.Shapes()[f.Relation]; ok {
		f = reorder(shape, f)
	}
	return db.store.Remove(f)
}

// RemoveAll deletes facts and returns how many were present.
func (db *Database) RemoveAll(facts ...fact.Fact) int {
	n := 0
	for _, f := range facts {
		if db.Remove(f) {
			n++
		}
	}
	return n
}

// RemoveIf deletes every fact matching pred and returns the count.
func (db *Database) RemoveIf(pred func(fact.Fact) bool) int {
	return db.store.RemoveIf(pred)
}

// Clear removes every fact.
func (db *Database) Clear() { db.store.Clear() }

// Drop removes a relation and returns how many facts it held.
func (db *Database) Drop(relation string) int { return db.store.Drop(relation) }

// Rename moves a relation's facts under a new name. It fails with
// IncompatibleFacts when the target relation exists with another shape.
func (db *Database) Rename(from, to string) (int, error) {
	shapes := db.store.Shapes()
	src, ok := shapes[from]
	if !ok || from == to {
		return 0, nil
	}
	if dst, exists := shapes[to]; exists && !dst.Equal(src) {
		return 0, nerr.ForRelation(nerr.IncompatibleFacts, to,
			"cannot rename %s into %s", src.Describe(from), dst.Describe(to))
	}
	return db.store.Rename(from, to), nil
}

// All returns every fact: relations in name order, facts in insertion order.
func (db *Database) All() []fact.Fact { return db.store.All() }

// Relation returns the facts of one relation.
func (db *Database) Relation(name string) []fact.Fact { return db.store.Relation(name) }

// Relations returns the relation names, sorted.
func (db *Database) Relations() []string { return db.store.Relations() }

// Filter returns the facts matching pred.
func (db *Database) Filter(pred func(fact.Fact) bool) []fact.Fact { return db.store.Filter(pred) }

// Size returns the number of facts.
func (db *Database) Size() int { return db.store.Len() }

// Shapes returns the established shape of every relation.
func (db *Database) Shapes() map[string]fact.Shape { return db.store.Shapes() }

// Store returns a copy of the content as a fact store.
func (db *Database) Store() *fact.Store { return db.store.Clone() }

// Map applies fn to every fact of the database, in All order.
func Map[T any](db *Database, fn func(fact.Fact) T) []T {
	facts := db.store.All()
	out := make([]T, len(facts))
	for i, f := range facts {
		out[i] = fn(f)
	}
	return out
}

// ToNeroScript renders the database as Nero axioms, one per line.
func (db *Database) ToNeroScript() (string, error) {
	return script.FormatStore(db.store)
}

// ToNeroAxiom renders one fact as a Nero axiom.
func (db *Database) ToNeroAxiom(f fact.Fact) (string, error) {
	return script.FormatFact(f)
}

// LoadScript parses src and loads it into the database: its axioms are added
// and its rules applied to the current content.
func (db *Database) LoadScript(src string) error {
	rs, err := script.Parse(src)
	if err != nil {
		return fmt.Errorf("load script: %w", err)
	}
	if _, err := db.With(rs).Load(); err != nil {
		return fmt.Errorf("load script: %w", err)
	}
	db.engine.log.Debug("script loaded", zap.Int("size", db.store.Len()))
	return nil
}
