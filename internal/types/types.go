// Package types implements the checker's structural Type model and its
// compatibility rules (§4.3). It is kept separate from the checker's scope
// logic the way the teacher keeps "AST shape" and "symbol resolution"
// as distinct concerns.
package types

import "fmt"

type Kind uint8

const (
	KString Kind = iota
	KNum
	KInt
	KBool
	KNil
	KAny
	KUnknown
	KArray
	KMap
	KNullable
	KUnion
	KFunction
	KStruct
	KEnum
	KPromise
	KOpaque // extern type
)

// Type is an immutable structural value. Composite kinds use the fields
// relevant to them; primitive kinds use none.
type Type struct {
	Kind Kind

	// Array / Nullable / Promise
	Elem *Type

	// Map
	Key   *Type
	Value *Type

	// Union
	Options []Type

	// Function
	Params   []Type
	Return   *Type
	Variadic bool

	// Struct / Enum / Opaque
	Name    string
	Fields  map[string]Type
	Methods map[string]Type // function types, struct methods only
	// Enum variant payloads, keyed by variant name.
	Variants map[string][]Field
}

type Field struct {
	Name string
	Type Type
}

var (
	String  = Type{Kind: KString}
	Num     = Type{Kind: KNum}
	Int     = Type{Kind: KInt}
	Bool    = Type{Kind: KBool}
	Nil     = Type{Kind: KNil}
	Any     = Type{Kind: KAny}
	Unknown = Type{Kind: KUnknown}
)

func Array(elem Type) Type        { return Type{Kind: KArray, Elem: &elem} }
func MapOf(k, v Type) Type        { return Type{Kind: KMap, Key: &k, Value: &v} }
func Nullable(inner Type) Type    { return Type{Kind: KNullable, Elem: &inner} }
func Promise(inner Type) Type     { return Type{Kind: KPromise, Elem: &inner} }
func Opaque(name string) Type     { return Type{Kind: KOpaque, Name: name} }
func Function(params []Type, ret Type, variadic bool) Type {
	return Type{Kind: KFunction, Params: params, Return: &ret, Variadic: variadic}
}

// Union flattens nested unions and de-duplicates by structural equality.
func Union(options ...Type) Type {
	var flat []Type
	for _, o := range options {
		if o.Kind == KUnion {
			flat = append(flat, o.Options...)
		} else {
			flat = append(flat, o)
		}
	}
	var out []Type
	for _, o := range flat {
		dup := false
		for _, existing := range out {
			if Equal(existing, o) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, o)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return Type{Kind: KUnion, Options: out}
}

func Equal(a, b Type) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KArray, KNullable, KPromise:
		return Equal(*a.Elem, *b.Elem)
	case KMap:
		return Equal(*a.Key, *b.Key) && Equal(*a.Value, *b.Value)
	case KStruct, KEnum, KOpaque:
		return a.Name == b.Name
	case KFunction:
		if len(a.Params) != len(b.Params) || !Equal(*a.Return, *b.Return) {
			return false
		}
		for i := range a.Params {
			if !Equal(a.Params[i], b.Params[i]) {
				return false
			}
		}
		return true
	case KUnion:
		if len(a.Options) != len(b.Options) {
			return false
		}
		for i := range a.Options {
			if !Equal(a.Options[i], b.Options[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (t Type) String() string {
	switch t.Kind {
	case KString:
		return "str"
	case KNum:
		return "num"
	case KInt:
		return "int"
	case KBool:
		return "bool"
	case KNil:
		return "nil"
	case KAny:
		return "any"
	case KUnknown:
		return "unknown"
	case KArray:
		return fmt.Sprintf("[%s]", t.Elem.String())
	case KMap:
		return fmt.Sprintf("{%s: %s}", t.Key.String(), t.Value.String())
	case KNullable:
		return t.Elem.String() + "?"
	case KPromise:
		return fmt.Sprintf("Promise<%s>", t.Elem.String())
	case KUnion:
		s := ""
		for i, o := range t.Options {
			if i > 0 {
				s += " | "
			}
			s += o.String()
		}
		return s
	case KFunction:
		s := "("
		for i, p := range t.Params {
			if i > 0 {
				s += ", "
			}
			s += p.String()
		}
		return s + ") -> " + t.Return.String()
	case KStruct, KEnum, KOpaque:
		return t.Name
	default:
		return "?"
	}
}

// IsError reports whether t is (or contains, via union) an error-shaped
// member, which is what makes "?" error-propagation and the extern "Error"
// opaque type valid on an expression (§4.3).
func IsError(t Type) bool {
	if t.Kind == KOpaque && t.Name == "Error" {
		return true
	}
	if t.Kind == KUnion {
		for _, o := range t.Options {
			if IsError(o) {
				return true
			}
		}
	}
	return false
}

// WithoutError strips the Error member from a union, used by "?" to
// compute the propagate expression's non-error result type.
func WithoutError(t Type) Type {
	if t.Kind != KUnion {
		if IsError(t) {
			return Nil
		}
		return t
	}
	var rest []Type
	for _, o := range t.Options {
		if !IsError(o) {
			rest = append(rest, o)
		}
	}
	if len(rest) == 0 {
		return Nil
	}
	if len(rest) == 1 {
		return rest[0]
	}
	return Type{Kind: KUnion, Options: rest}
}

// AssignableTo implements §4.3's compatibility rules.
func AssignableTo(from, to Type) bool {
	if from.Kind == KUnknown || to.Kind == KUnknown {
		return true
	}
	if from.Kind == KAny || to.Kind == KAny {
		return true
	}
	if Equal(from, to) {
		return true
	}
	if from.Kind == KInt && to.Kind == KNum {
		return true
	}
	if to.Kind == KNullable {
		if from.Kind == KNil {
			return true
		}
		return AssignableTo(from, *to.Elem)
	}
	if to.Kind == KUnion {
		for _, o := range to.Options {
			if AssignableTo(from, o) {
				return true
			}
		}
		return false
	}
	if from.Kind == KUnion {
		// a union is assignable to a non-union target only if every
		// member is assignable to it
		for _, o := range from.Options {
			if !AssignableTo(o, to) {
				return false
			}
		}
		return true
	}
	if (from.Kind == KStruct || from.Kind == KOpaque) && to.Kind == KStruct {
		// structural subtyping: "from"'s fields are a superset of "to"'s
		// required fields, with compatible types (§4.3).
		for name, ftype := range to.Fields {
			fromField, ok := from.Fields[name]
			if !ok || !AssignableTo(fromField, ftype) {
				return false
			}
		}
		return true
	}
	if from.Kind == KArray && to.Kind == KArray {
		return AssignableTo(*from.Elem, *to.Elem)
	}
	if from.Kind == KMap && to.Kind == KMap {
		return AssignableTo(*from.Key, *to.Key) && AssignableTo(*from.Value, *to.Value)
	}
	return false
}

// IsJSONSchemaSerializable reports whether t can be mapped to a JSON Schema
// parameter type for an @tool-annotated function (§4.3, §7).
func IsJSONSchemaSerializable(t Type) bool {
	switch t.Kind {
	case KFunction, KOpaque, KPromise, KUnknown:
		return false
	case KArray:
		return IsJSONSchemaSerializable(*t.Elem)
	case KMap:
		return IsJSONSchemaSerializable(*t.Value)
	case KNullable:
		return IsJSONSchemaSerializable(*t.Elem)
	case KUnion:
		for _, o := range t.Options {
			if !IsJSONSchemaSerializable(o) {
				return false
			}
		}
		return true
	case KStruct:
		for _, f := range t.Fields {
			if !IsJSONSchemaSerializable(f) {
				return false
			}
		}
		return true
	default:
		return true
	}
}
