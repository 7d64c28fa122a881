package eval

import (
	"nero/internal/fact"
)

// column addresses a fact field by position, or by name for named facts.
type column struct {
	pos  int
	name string
}

func (c column) value(f fact.Fact) (fact.Value, bool) {
	if c.name != "" {
		return f.Get(c.name)
	}
	if f.IsNamed() || c.pos >= len(f.Fields) {
		return nil, false
	}
	return f.Fields[c.pos], true
}

// factIndex is a deduplicated fact set with per-relation lists and lazily
// built column indexes. Indexes built once are kept current by add.
type factIndex struct {
	store *fact.Store
	rels  map[string][]fact.Fact
	cols  map[string]map[column]map[string][]fact.Fact
}

func newFactIndex(store *fact.Store) *factIndex {
	ix := &factIndex{
		store: store,
		rels:  make(map[string][]fact.Fact),
		cols:  make(map[string]map[column]map[string][]fact.Fact),
	}
	store.Each(func(f fact.Fact) bool {
		ix.rels[f.Relation] = append(ix.rels[f.Relation], f)
		return true
	})
	return ix
}

func (ix *factIndex) add(f fact.Fact) bool {
	if !ix.store.Add(f) {
		return false
	}
	ix.rels[f.Relation] = append(ix.rels[f.Relation], f)
	for col, byValue := range ix.cols[f.Relation] {
		if v, ok := col.value(f); ok {
			k := fact.KeyOf(v)
			byValue[k] = append(byValue[k], f)
		}
	}
	return true
}

func (ix *factIndex) contains(f fact.Fact) bool { return ix.store.Contains(f) }

func (ix *factIndex) len() int { return ix.store.Len() }

func (ix *factIndex) scan(relation string) []fact.Fact { return ix.rels[relation] }

// lookup returns the facts of relation whose column equals v.
func (ix *factIndex) lookup(relation string, col column, v fact.Value) []fact.Fact {
	byCol, ok := ix.cols[relation]
	if !ok {
		byCol = make(map[column]map[string][]fact.Fact)
		ix.cols[relation] = byCol
	}
	byValue, ok := byCol[col]
	if !ok {
		byValue = make(map[string][]fact.Fact)
		for _, f := range ix.rels[relation] {
			if fv, ok := col.value(f); ok {
				k := fact.KeyOf(fv)
				byValue[k] = append(byValue[k], f)
			}
		}
		byCol[col] = byValue
	}
	return byValue[fact.KeyOf(v)]
}
