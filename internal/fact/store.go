package fact

import "sort"

// Store is a set of facts deduplicated by (relation, fields), indexed by
// relation. Iteration is deterministic: relations in name order, facts in
// insertion order. A Store is not safe for concurrent use.
type Store struct {
	rels map[string]*relation
	size int
}

type relation struct {
	index map[string]int
	facts []Fact
}

// NewStore returns a store holding the given facts.
func NewStore(facts ...Fact) *Store {
	s := &Store{rels: make(map[string]*relation)}
	s.AddAll(facts)
	return s
}

// Add inserts a fact and reports whether it was new.
func (s *Store) Add(f Fact) bool {
	r, ok := s.rels[f.Relation]
	if !ok {
		r = &relation{index: make(map[string]int)}
		s.rels[f.Relation] = r
	}
	key := fieldsKey(f)
	if _, exists := r.index[key]; exists {
		return false
	}
	r.index[key] = len(r.facts)
	r.facts = append(r.facts, f)
	s.size++
	return true
}

// AddAll inserts facts and returns how many were new.
func (s *Store) AddAll(facts []Fact) int {
	added := 0
	for _, f := range facts {
		if s.Add(f) {
			added++
		}
	}
	return added
}

// Contains reports whether the fact is present.
func (s *Store) Contains(f Fact) bool {
	r, ok := s.rels[f.Relation]
	if !ok {
		return false
	}
	_, exists := r.index[fieldsKey(f)]
	return exists
}

// Remove deletes a fact and reports whether it was present.
func (s *Store) Remove(f Fact) bool {
	r, ok := s.rels[f.Relation]
	if !ok {
		return false
	}
	pos, exists := r.index[fieldsKey(f)]
	if !exists {
		return false
	}
	r.removeAt(pos)
	s.size--
	if len(r.facts) == 0 {
		delete(s.rels, f.Relation)
	}
	return true
}

func (r *relation) removeAt(pos int) {
	delete(r.index, fieldsKey(r.facts[pos]))
	copy(r.facts[pos:], r.facts[pos+1:])
	r.facts[len(r.facts)-1] = Fact{}
	r.facts = r.facts[:len(r.facts)-1]
	for i := pos; i < len(r.facts); i++ {
		r.index[fieldsKey(r.facts[i])] = i
	}
}

// RemoveAll deletes the given facts and returns how many were present.
func (s *Store) RemoveAll(facts []Fact) int {
	removed := 0
	for _, f := range facts {
		if s.Remove(f) {
			removed++
		}
	}
	return removed
}

// RemoveIf deletes every fact matching pred and returns the count.
func (s *Store) RemoveIf(pred func(Fact) bool) int {
	var doomed []Fact
	s.Each(func(f Fact) bool {
		if pred(f) {
			doomed = append(doomed, f)
		}
		return true
	})
	return s.RemoveAll(doomed)
}

// Clear removes every fact.
func (s *Store) Clear() {
	s.rels = make(map[string]*relation)
	s.size = 0
}

// Drop removes every fact of a relation and returns the count.
func (s *Store) Drop(name string) int {
	r, ok := s.rels[name]
	if !ok {
		return 0
	}
	delete(s.rels, name)
	s.size -= len(r.facts)
	return len(r.facts)
}

// Rename moves the facts of relation from under relation to, merging with
// any facts to already has. It returns the number of facts moved.
func (s *Store) Rename(from, to string) int {
	if from == to {
		return 0
	}
	r, ok := s.rels[from]
	if !ok {
		return 0
	}
	s.Drop(from)
	moved := 0
	for _, f := range r.facts {
		if s.Add(f.Rename(to)) {
			moved++
		}
	}
	return moved
}

// Len returns the number of facts.
func (s *Store) Len() int { return s.size }

// RelationLen returns the number of facts of one relation.
func (s *Store) RelationLen(name string) int {
	if r, ok := s.rels[name]; ok {
		return len(r.facts)
	}
	return 0
}

// Has reports whether the store holds any fact of the relation.
func (s *Store) Has(name string) bool {
	_, ok := s.rels[name]
	return ok
}

// Relations returns the relation names, sorted.
func (s *Store) Relations() []string {
	names := make([]string, 0, len(s.rels))
	for name := range s.rels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Relation returns a copy of the facts of one relation.
func (s *Store) Relation(name string) []Fact {
	r, ok := s.rels[name]
	if !ok {
		return nil
	}
	out := make([]Fact, len(r.facts))
	copy(out, r.facts)
	return out
}

// Scan calls fn for each fact of a relation until fn returns false. fn must
// not mutate the store.
func (s *Store) Scan(name string, fn func(Fact) bool) {
	r, ok := s.rels[name]
	if !ok {
		return
	}
	for _, f := range r.facts {
		if !fn(f) {
			return
		}
	}
}

// Each calls fn for every fact until fn returns false. fn must not mutate the
// store.
func (s *Store) Each(fn func(Fact) bool) {
	for _, name := range s.Relations() {
		for _, f := range s.rels[name].facts {
			if !fn(f) {
				return
			}
		}
	}
}

// All returns every fact.
func (s *Store) All() []Fact {
	out := make([]Fact, 0, s.size)
	s.Each(func(f Fact) bool {
		out = append(out, f)
		return true
	})
	return out
}

// Filter returns the facts matching pred.
func (s *Store) Filter(pred func(Fact) bool) []Fact {
	var out []Fact
	s.Each(func(f Fact) bool {
		if pred(f) {
			out = append(out, f)
		}
		return true
	})
	return out
}

// Shapes returns the shape of each relation, taken from its first fact.
func (s *Store) Shapes() map[string]Shape {
	out := make(map[string]Shape, len(s.rels))
	for name, r := range s.rels {
		out[name] = r.facts[0].Shape()
	}
	return out
}

// Clone returns an independent copy. Fact values are shared, not copied;
// values are immutable.
func (s *Store) Clone() *Store {
	c := &Store{rels: make(map[string]*relation, len(s.rels)), size: s.size}
	for name, r := range s.rels {
		nr := &relation{index: make(map[string]int, len(r.index)), facts: make([]Fact, len(r.facts))}
		copy(nr.facts, r.facts)
		for k, v := range r.index {
			nr.index[k] = v
		}
		c.rels[name] = nr
	}
	return c
}
