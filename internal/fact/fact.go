package fact

import (
	"sort"
	"strconv"
	"strings"
)

// Fact is a ground tuple of a relation. Ordered facts address fields by
// position; named facts carry a parallel Names slice.
type Fact struct {
	Relation string
	Fields   []Value
	Names    []string
}

// New returns an ordered fact.
func New(relation string, fields ...Value) Fact {
	return Fact{Relation: relation, Fields: fields}
}

// NewNamed returns a named fact. names and fields must have the same length.
func NewNamed(relation string, names []string, fields []Value) Fact {
	return Fact{Relation: relation, Names: names, Fields: fields}
}

// FromMap returns a named fact whose fields are the map entries, ordered by
// field name.
func FromMap(relation string, fields map[string]Value) Fact {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	values := make([]Value, len(names))
	for i, name := range names {
		values[i] = fields[name]
	}
	return Fact{Relation: relation, Names: names, Fields: values}
}

// IsNamed reports whether the fact addresses its fields by name.
func (f Fact) IsNamed() bool { return f.Names != nil }

// Arity returns the number of fields.
func (f Fact) Arity() int { return len(f.Fields) }

// Get returns the named field.
func (f Fact) Get(name string) (Value, bool) {
	for i, n := range f.Names {
		if n == name {
			return f.Fields[i], true
		}
	}
	return nil, false
}

// Shape returns the fact's shape.
func (f Fact) Shape() Shape {
	if f.IsNamed() {
		return Named(f.Names...)
	}
	return Ordered(len(f.Fields))
}

// Key returns the fact's identity: relation, field names and field values.
func (f Fact) Key() string {
	var sb strings.Builder
	sb.WriteString(f.Relation)
	writeFieldsKey(&sb, f)
	return sb.String()
}

func fieldsKey(f Fact) string {
	var sb strings.Builder
	writeFieldsKey(&sb, f)
	return sb.String()
}

func writeFieldsKey(sb *strings.Builder, f Fact) {
	sb.WriteString("(")
	for i, v := range f.Fields {
		if i > 0 {
			sb.WriteString(",")
		}
		if f.IsNamed() {
			sb.WriteString(f.Names[i])
			sb.WriteString("=")
		}
		writeKey(sb, v)
	}
	sb.WriteString(")")
}

// Equal reports whether two facts are the same tuple.
func (f Fact) Equal(o Fact) bool {
	if f.Relation != o.Relation || len(f.Fields) != len(o.Fields) || f.IsNamed() != o.IsNamed() {
		return false
	}
	for i := range f.Fields {
		if f.IsNamed() && f.Names[i] != o.Names[i] {
			return false
		}
		if !Equal(f.Fields[i], o.Fields[i]) {
			return false
		}
	}
	return true
}

// Rename returns a copy of the fact under a different relation name.
func (f Fact) Rename(relation string) Fact {
	f.Relation = relation
	return f
}

// String returns a readable rendering in Nero syntax. Unlike the script
// writer it never fails: opaque values are shown as <type>.
func (f Fact) String() string {
	var sb strings.Builder
	sb.WriteString(f.Relation)
	sb.WriteString("(")
	for i, v := range f.Fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		if f.IsNamed() {
			sb.WriteString(f.Names[i])
			sb.WriteString(": ")
		}
		if v == nil {
			sb.WriteString("null")
		} else {
			sb.WriteString(v.String())
		}
	}
	sb.WriteString(")")
	return sb.String()
}

// Shape is the arity or the ordered field names of a relation.
type Shape struct {
	Arity int
	Names []string
}

// Ordered returns the shape of an ordered relation.
func Ordered(arity int) Shape { return Shape{Arity: arity} }

// Named returns the shape of a named relation.
func Named(names ...string) Shape {
	if names == nil {
		names = []string{}
	}
	return Shape{Arity: len(names), Names: names}
}

// IsNamed reports whether the shape has field names.
func (s Shape) IsNamed() bool { return s.Names != nil }

// Index returns the position of a field name, or -1.
func (s Shape) Index(name string) int {
	for i, n := range s.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Equal reports whether two shapes are identical.
func (s Shape) Equal(o Shape) bool {
	if s.Arity != o.Arity || s.IsNamed() != o.IsNamed() {
		return false
	}
	for i := range s.Names {
		if s.Names[i] != o.Names[i] {
			return false
		}
	}
	return true
}

// String renders the shape as it appears after the slash in a define
// declaration: "2" or "name,age".
func (s Shape) String() string {
	if s.IsNamed() {
		return strings.Join(s.Names, ",")
	}
	return strconv.Itoa(s.Arity)
}

// Describe renders relation/shape, e.g. "Parent/2".
func (s Shape) Describe(relation string) string {
	return relation + "/" + s.String()
}
