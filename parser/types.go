package parser

import (
	"strconv"
	"strings"
)

// Kind identifies the shape of a parsed C type.
type Kind int

const (
	KindBuiltin Kind = iota
	KindNamed
	KindStruct
	KindUnion
	KindEnum
	KindPointer
	KindArray
	KindFunc
)

// Nullability is the nullability annotation attached to a declaration.
type Nullability int

const (
	NullUnspecified Nullability = iota
	NullNullable
	NullNonNull
)

func (n Nullability) String() string {
	switch n {
	case NullNullable:
		return "nullable"
	case NullNonNull:
		return "notnull"
	default:
		return "unspecified"
	}
}

// CType is a C type as written in the header. Builtin types carry their
// canonical specifier spelling in Name ("unsigned int", "long long", ...),
// typedef references carry the typedef name and tagged types carry the tag.
type CType struct {
	Kind     Kind
	Name     string
	Elem     *CType
	Size     int
	Params   []Param
	Variadic bool
	IsConst  bool
}

func (t *CType) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindStruct:
		return "struct " + t.Name
	case KindUnion:
		return "union " + t.Name
	case KindEnum:
		return "enum " + t.Name
	case KindPointer:
		return t.Elem.String() + "*"
	case KindArray:
		return t.Elem.String() + "[" + strconv.Itoa(t.Size) + "]"
	case KindFunc:
		params := make([]string, len(t.Params))
		for i, p := range t.Params {
			params[i] = p.Type.String()
		}
		return t.Elem.String() + "(" + strings.Join(params, ", ") + ")"
	default:
		return t.Name
	}
}

// Attribute is a GNU style attribute captured from the declaration.
type Attribute struct {
	Name string
	Args []string
}

// Param is a function or function pointer parameter.
type Param struct {
	Name        string
	Type        *CType
	Nullability Nullability
}

type StructField struct {
	Name        string
	Type        *CType
	Nullability Nullability
}

// Struct is a struct or union tag seen in the header. Forward declarations
// and references without a body produce a Struct with Defined unset.
type Struct struct {
	Name    string
	Fields  []StructField
	Defined bool
	IsUnion bool
	Line    int
}

type Function struct {
	Name        string
	ReturnType  *CType
	Params      []Param
	IsVariadic  bool
	Nullability Nullability
	Attrs       []Attribute
	Line        int
}

type TypeDef struct {
	Name        string
	SourceType  *CType
	Nullability Nullability
	Line        int
}

type EnumValue struct {
	Name  string
	Value int64
}

type Enum struct {
	Name   string
	Values []EnumValue
	Line   int
}

// Header holds every declaration of a header in declaration order.
type Header struct {
	Structs   []*Struct
	Functions []Function
	TypeDefs  []TypeDef
	Enums     []Enum
}

// TypeDef returns the typedef with the given name.
func (h *Header) TypeDef(name string) (*TypeDef, bool) {
	for i := range h.TypeDefs {
		if h.TypeDefs[i].Name == name {
			return &h.TypeDefs[i], true
		}
	}
	return nil, false
}

// Struct returns the struct with the given tag.
func (h *Header) Struct(name string) (*Struct, bool) {
	for _, s := range h.Structs {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// IsAnonymous reports whether name was generated for an untagged struct,
// union or enum that no typedef named.
func IsAnonymous(name string) bool {
	return strings.HasPrefix(name, anonPrefix)
}
