package resolver

import "strings"

// Kind classifies a resolved type.
type Kind int

const (
	KindPrimitive Kind = iota + 1
	KindNull
	KindRef
	KindArray
	KindTypeVar
)

// Type is a resolved Java type. Reference types declared in the analysed
// sources carry their declaration; types from libraries only carry a
// qualified name.
type Type struct {
	Kind Kind
	Name string
	Decl *TypeDecl
	Args []Type
	Elem *Type
}

func Primitive(name string) Type {
	return Type{Kind: KindPrimitive, Name: name}
}

func Null() Type {
	return Type{Kind: KindNull, Name: "null"}
}

// Ref builds a reference to a declared type.
func Ref(decl *TypeDecl, args ...Type) Type {
	return Type{Kind: KindRef, Name: decl.Qualified, Decl: decl, Args: args}
}

// External builds a reference to a type outside the analysed sources.
func External(qualified string, args ...Type) Type {
	return Type{Kind: KindRef, Name: qualified, Args: args}
}

func TypeVar(name string) Type {
	return Type{Kind: KindTypeVar, Name: name}
}

// ArrayOf wraps elem in dims array dimensions.
func ArrayOf(elem Type, dims int) Type {
	for ; dims > 0; dims-- {
		e := elem
		elem = Type{Kind: KindArray, Elem: &e}
	}
	return elem
}

var stringType = External("java.lang.String")

func (t Type) IsReference() bool { return t.Kind == KindRef }

func (t Type) IsArray() bool { return t.Kind == KindArray }

// Base strips every array dimension.
func (t Type) Base() Type {
	for t.Kind == KindArray && t.Elem != nil {
		t = *t.Elem
	}
	return t
}

// Describe renders the type the way Java source would spell it, with
// qualified names. It doubles as the identity key of a type.
func (t Type) Describe() string {
	var b strings.Builder
	t.describe(&b)
	return b.String()
}

func (t Type) describe(b *strings.Builder) {
	switch t.Kind {
	case KindArray:
		if t.Elem != nil {
			t.Elem.describe(b)
		}
		b.WriteString("[]")
	case KindRef:
		b.WriteString(t.Name)
		if len(t.Args) > 0 {
			b.WriteByte('<')
			for i, a := range t.Args {
				if i > 0 {
					b.WriteByte(',')
				}
				a.describe(b)
			}
			b.WriteByte('>')
		}
	default:
		b.WriteString(t.Name)
	}
}

func (t Type) String() string { return t.Describe() }

// Bindings maps the type parameters of the referenced declaration to the
// type arguments of t. Raw references bind nothing.
func (t Type) Bindings() map[string]Type {
	if t.Kind != KindRef || t.Decl == nil || len(t.Args) != len(t.Decl.TypeParams) {
		return nil
	}
	out := make(map[string]Type, len(t.Args))
	for i, p := range t.Decl.TypeParams {
		out[p] = t.Args[i]
	}
	return out
}

// Substitute replaces type variables bound in bindings, recursively through
// type arguments and array elements.
func Substitute(t Type, bindings map[string]Type) Type {
	if len(bindings) == 0 {
		return t
	}
	switch t.Kind {
	case KindTypeVar:
		if v, ok := bindings[t.Name]; ok {
			return v
		}
	case KindArray:
		if t.Elem != nil {
			e := Substitute(*t.Elem, bindings)
			t.Elem = &e
		}
	case KindRef:
		if len(t.Args) > 0 {
			args := make([]Type, len(t.Args))
			for i, a := range t.Args {
				args[i] = Substitute(a, bindings)
			}
			t.Args = args
		}
	}
	return t
}

var numericRank = map[string]int{
	"byte": 1, "short": 2, "char": 2, "int": 3, "long": 4, "float": 5, "double": 6,
}

var boxes = map[string]string{
	"boolean": "java.lang.Boolean",
	"byte":    "java.lang.Byte",
	"short":   "java.lang.Short",
	"char":    "java.lang.Character",
	"int":     "java.lang.Integer",
	"long":    "java.lang.Long",
	"float":   "java.lang.Float",
	"double":  "java.lang.Double",
}

// promote returns the binary numeric promotion of two primitive types.
func promote(a, b Type) Type {
	ra, rb := numericRank[a.Name], numericRank[b.Name]
	if ra == 0 || rb == 0 {
		return a
	}
	if ra < 3 && rb < 3 {
		return Primitive("int")
	}
	if ra >= rb {
		return a
	}
	return b
}
