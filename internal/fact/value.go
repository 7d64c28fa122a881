// Package fact holds the Nero data model: values, facts, relation shapes and
// the fact store the engine reads from and the database writes to.
package fact

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"nero/internal/nerr"
)

// Kind identifies the concrete type of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindKeyword
	KindList
	KindMap
	KindOpaque
)

var kindNames = [...]string{"null", "bool", "int", "float", "string", "keyword", "list", "map", "opaque"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is a host value stored in a fact field. The set of implementations is
// closed: Null, Bool, Int, Float, String, Keyword, List, Map and Opaque.
type Value interface {
	Kind() Kind
	String() string
}

// Null is the absent value.
type Null struct{}

// Bool is a boolean value.
type Bool bool

// Int is a 64-bit integer.
type Int int64

// Float is a 64-bit floating point number.
type Float float64

// String is a text value.
type String string

// Keyword is a symbolic constant, written #name.
type Keyword string

// List is an ordered collection.
type List []Value

// MapEntry is one key/value pair of a Map.
type MapEntry struct {
	Key   Value
	Value Value
}

// Map is an ordered collection of entries with distinct keys.
type Map []MapEntry

// Opaque wraps any Go value the engine has no literal form for. Opaque values
// can be stored and matched but not serialized.
type Opaque struct {
	V interface{}
}

func (Null) Kind() Kind    { return KindNull }
func (Bool) Kind() Kind    { return KindBool }
func (Int) Kind() Kind     { return KindInt }
func (Float) Kind() Kind   { return KindFloat }
func (String) Kind() Kind  { return KindString }
func (Keyword) Kind() Kind { return KindKeyword }
func (List) Kind() Kind    { return KindList }
func (Map) Kind() Kind     { return KindMap }
func (Opaque) Kind() Kind  { return KindOpaque }

func (Null) String() string      { return "null" }
func (b Bool) String() string    { return strconv.FormatBool(bool(b)) }
func (i Int) String() string     { return strconv.FormatInt(int64(i), 10) }
func (f Float) String() string   { return formatFloat(float64(f)) }
func (s String) String() string  { return strconv.Quote(string(s)) }
func (k Keyword) String() string { return "#" + string(k) }
func (o Opaque) String() string  { return fmt.Sprintf("<%T>", o.V) }

func (l List) String() string {
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (m Map) String() string {
	parts := make([]string, len(m))
	for i, e := range m {
		parts[i] = e.Key.String() + ": " + e.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Lookup returns the value stored under key.
func (m Map) Lookup(key Value) (Value, bool) {
	for _, e := range m {
		if Equal(e.Key, key) {
			return e.Value, true
		}
	}
	return nil, false
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

var keywordPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidKeyword reports whether name can be written as a #keyword literal.
func ValidKeyword(name string) bool {
	return keywordPattern.MatchString(name)
}

// KeyOf returns the canonical identity of a value. Two values are equal
// exactly when their keys are equal.
func KeyOf(v Value) string {
	var sb strings.Builder
	writeKey(&sb, v)
	return sb.String()
}

func writeKey(sb *strings.Builder, v Value) {
	switch x := v.(type) {
	case nil, Null:
		sb.WriteString("n")
	case Bool:
		if x {
			sb.WriteString("b1")
		} else {
			sb.WriteString("b0")
		}
	case Int:
		sb.WriteString("i")
		sb.WriteString(strconv.FormatInt(int64(x), 10))
	case Float:
		sb.WriteString("f")
		sb.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 64))
	case String:
		sb.WriteString("s")
		sb.WriteString(strconv.Quote(string(x)))
	case Keyword:
		sb.WriteString("k")
		sb.WriteString(strconv.Quote(string(x)))
	case List:
		sb.WriteString("[")
		for i, e := range x {
			if i > 0 {
				sb.WriteString(",")
			}
			writeKey(sb, e)
		}
		sb.WriteString("]")
	case Map:
		sb.WriteString("{")
		for i, e := range x {
			if i > 0 {
				sb.WriteString(",")
			}
			writeKey(sb, e.Key)
			sb.WriteString(":")
			writeKey(sb, e.Value)
		}
		sb.WriteString("}")
	case Opaque:
		sb.WriteString("o")
		sb.WriteString(strconv.Quote(fmt.Sprintf("%T:%#v", x.V, x.V)))
	default:
		sb.WriteString("?")
		sb.WriteString(strconv.Quote(fmt.Sprintf("%T:%v", v, v)))
	}
}

// Equal reports whether two values are identical. Int(1) and Float(1) are
// different values.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case Int:
		y, ok := b.(Int)
		return ok && x == y
	case String:
		y, ok := b.(String)
		return ok && x == y
	case Keyword:
		y, ok := b.(Keyword)
		return ok && x == y
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Float:
		y, ok := b.(Float)
		return ok && x == y
	}
	return KeyOf(a) == KeyOf(b)
}

// Compare orders two values. Numbers compare across Int and Float; strings,
// keywords and bools compare within their own kind. ok is false for
// incomparable pairs.
func Compare(a, b Value) (cmp int, ok bool) {
	if fa, isNum := numeric(a); isNum {
		fb, isNum := numeric(b)
		if !isNum {
			return 0, false
		}
		if ia, okA := a.(Int); okA {
			if ib, okB := b.(Int); okB {
				return compareOrdered(int64(ia), int64(ib)), true
			}
		}
		if math.IsNaN(fa) || math.IsNaN(fb) {
			return 0, false
		}
		return compareOrdered(fa, fb), true
	}
	switch x := a.(type) {
	case String:
		if y, ok := b.(String); ok {
			return strings.Compare(string(x), string(y)), true
		}
	case Keyword:
		if y, ok := b.(Keyword); ok {
			return strings.Compare(string(x), string(y)), true
		}
	case Bool:
		if y, ok := b.(Bool); ok {
			switch {
			case x == y:
				return 0, true
			case !bool(x):
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

func numeric(v Value) (float64, bool) {
	switch x := v.(type) {
	case Int:
		return float64(x), true
	case Float:
		return float64(x), true
	}
	return 0, false
}

func compareOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Literal renders v in Nero's canonical literal syntax. Values with no literal
// form fail with nerr.UnrepresentableTerm.
func Literal(v Value) (string, error) {
	var sb strings.Builder
	if err := writeLiteral(&sb, v); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func writeLiteral(sb *strings.Builder, v Value) error {
	switch x := v.(type) {
	case nil:
		sb.WriteString("null")
	case Null, Bool, Int, String:
		sb.WriteString(x.String())
	case Float:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nerr.New(nerr.UnrepresentableTerm, "float %v has no literal form", float64(x))
		}
		sb.WriteString(x.String())
	case Keyword:
		if !ValidKeyword(string(x)) {
			return nerr.New(nerr.UnrepresentableTerm, "keyword %q is not an identifier", string(x))
		}
		sb.WriteString(x.String())
	case List:
		sb.WriteString("[")
		for i, e := range x {
			if i > 0 {
				sb.WriteString(", ")
			}
			if err := writeLiteral(sb, e); err != nil {
				return err
			}
		}
		sb.WriteString("]")
	case Map:
		sb.WriteString("{")
		for i, e := range x {
			if i > 0 {
				sb.WriteString(", ")
			}
			if err := writeLiteral(sb, e.Key); err != nil {
				return err
			}
			sb.WriteString(": ")
			if err := writeLiteral(sb, e.Value); err != nil {
				return err
			}
		}
		sb.WriteString("}")
	default:
		return nerr.New(nerr.UnrepresentableTerm, "%s value %s has no literal form", v.Kind(), v.String())
	}
	return nil
}

// FromGo converts a plain Go value into a Value. Maps with string keys become
// Maps with sorted String keys; unknown types are wrapped in Opaque.
func FromGo(x interface{}) Value {
	switch v := x.(type) {
	case nil:
		return Null{}
	case Value:
		return v
	case bool:
		return Bool(v)
	case int:
		return Int(v)
	case int8:
		return Int(v)
	case int16:
		return Int(v)
	case int32:
		return Int(v)
	case int64:
		return Int(v)
	case uint8:
		return Int(v)
	case uint16:
		return Int(v)
	case uint32:
		return Int(v)
	case float32:
		return Float(v)
	case float64:
		return Float(v)
	case string:
		return String(v)
	case []string:
		out := make(List, len(v))
		for i, s := range v {
			out[i] = String(s)
		}
		return out
	case []interface{}:
		out := make(List, len(v))
		for i, e := range v {
			out[i] = FromGo(e)
		}
		return out
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(Map, len(keys))
		for i, k := range keys {
			out[i] = MapEntry{Key: String(k), Value: FromGo(v[k])}
		}
		return out
	default:
		return Opaque{V: x}
	}
}

// ToGo converts a Value back into a plain Go value. Keywords become strings
// prefixed with '#'; maps whose keys are all strings become map[string]interface{}.
func ToGo(v Value) interface{} {
	switch x := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(x)
	case Int:
		return int64(x)
	case Float:
		return float64(x)
	case String:
		return string(x)
	case Keyword:
		return "#" + string(x)
	case List:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = ToGo(e)
		}
		return out
	case Map:
		out := make(map[string]interface{}, len(x))
		for _, e := range x {
			k, ok := e.Key.(String)
			if !ok {
				pairs := make([][2]interface{}, len(x))
				for i, e := range x {
					pairs[i] = [2]interface{}{ToGo(e.Key), ToGo(e.Value)}
				}
				return pairs
			}
			out[string(k)] = ToGo(e.Value)
		}
		return out
	case Opaque:
		return x.V
	}
	return v
}
