// Package model holds the typed view of a parsed Impeller header: handles,
// value structs, enums and classified functions.
package model

import (
	"fmt"
	"strings"
)

// Type is implemented by every native type of the model.
type Type interface {
	String() string
	isType()
}

// Primitive is one of the fixed machine primitives. Primitives are
// singletons, so they can be compared by pointer.
type Primitive struct {
	Name string
}

// The closed set of primitives. C bool is modelled as Int32.
var (
	Void    = &Primitive{Name: "void"}
	Int8    = &Primitive{Name: "int8"}
	Uint8   = &Primitive{Name: "uint8"}
	Int16   = &Primitive{Name: "int16"}
	Uint16  = &Primitive{Name: "uint16"}
	Int32   = &Primitive{Name: "int32"}
	Uint32  = &Primitive{Name: "uint32"}
	Int64   = &Primitive{Name: "int64"}
	Uint64  = &Primitive{Name: "uint64"}
	Float32 = &Primitive{Name: "float32"}
	Float64 = &Primitive{Name: "float64"}
)

// GoType returns the Go spelling of the primitive. Void has none.
func (p *Primitive) GoType() string {
	if p == Void {
		return ""
	}
	return p.Name
}

func (p *Primitive) String() string { return p.Name }
func (*Primitive) isType()          {}

type EnumMember struct {
	Name  string
	Value int32
}

// Enum keeps its members in declaration order.
type Enum struct {
	Name    string
	Members []EnumMember
}

func (e *Enum) String() string { return e.Name }
func (*Enum) isType()          {}

// Var is a named, typed struct member or function parameter.
type Var struct {
	Name string
	Type Type
}

func (v Var) String() string {
	return v.Name + " : " + v.Type.String()
}

// Struct keeps its members in declaration order, which is the binary layout.
type Struct struct {
	Name    string
	Members []Var
}

func (s *Struct) String() string { return s.Name }
func (*Struct) isType()          {}

// Handle is an opaque reference counted resource.
type Handle struct {
	Name      string
	Methods   []*Function
	Factories []*Function

	// Retain and Release are the paired lifecycle functions, nil when the
	// header does not declare them.
	Retain  *Function
	Release *Function
}

func (h *Handle) String() string { return h.Name }
func (*Handle) isType()          {}

// HasLifecycle reports whether both Retain and Release were found.
func (h *Handle) HasLifecycle() bool {
	return h.Retain != nil && h.Release != nil
}

// External is a struct whose interop is written by hand.
type External struct {
	Name string
}

func (e *External) String() string { return e.Name }
func (*External) isType()          {}

// Pointer is Level levels of indirection to Elem. Const is set when the
// innermost pointee is const qualified.
type Pointer struct {
	Elem  Type
	Level int
	Const bool
}

func (p *Pointer) String() string { return p.Elem.String() + strings.Repeat("*", p.Level) }
func (*Pointer) isType()          {}

// FixedArray is an inline array, only found in struct bodies.
type FixedArray struct {
	Elem Type
	Size int
}

func (a *FixedArray) String() string { return fmt.Sprintf("%s[%d]", a.Elem, a.Size) }
func (*FixedArray) isType()          {}

// FunctionPointer is a callback type. Name is set for typedef'd callbacks.
type FunctionPointer struct {
	Name   string
	Return Type
	Params []Var
}

func (f *FunctionPointer) String() string {
	if f.Name != "" {
		return f.Name
	}
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Type.String()
	}
	return fmt.Sprintf("%s(*)(%s)", f.Return, strings.Join(params, ", "))
}
func (*FunctionPointer) isType() {}

// Nullable records an explicit nullability annotation. Nullable is false
// for the not-null marker. Unannotated types are not wrapped.
type Nullable struct {
	Elem     Type
	Nullable bool
}

func (n *Nullable) String() string {
	if n.Nullable {
		return n.Elem.String() + "?"
	}
	return n.Elem.String() + "!"
}
func (*Nullable) isType() {}

// Class is the bucket a function is classified into.
type Class int

const (
	ClassGlobal Class = iota
	ClassMethod
	ClassFactory
)

func (c Class) String() string {
	switch c {
	case ClassMethod:
		return "method"
	case ClassFactory:
		return "factory"
	default:
		return "global"
	}
}

// Function is a native function. Owner is the handle of a method or
// factory and nil for globals. Deprecated holds the message of a
// deprecated attribute; it is empty when the function is not deprecated.
type Function struct {
	Name       string
	Return     Type
	Params     []Var
	Class      Class
	Owner      *Handle
	Deprecated string
}

// IsLifecycle reports whether f is the Retain or Release of its handle.
func (f *Function) IsLifecycle() bool {
	return f.Owner != nil && (f == f.Owner.Retain || f == f.Owner.Release)
}

// Unwrap strips a nullability annotation.
func Unwrap(t Type) Type {
	if n, ok := t.(*Nullable); ok {
		return n.Elem
	}
	return t
}

// IsNullable reports whether t carries the nullable marker.
func IsNullable(t Type) bool {
	n, ok := t.(*Nullable)
	return ok && n.Nullable
}

func pointsTo(t Type, prim *Primitive) bool {
	p, ok := Unwrap(t).(*Pointer)
	return ok && p.Level == 1 && Unwrap(p.Elem) == prim
}

// IsString reports whether t is a single level pointer to char.
func IsString(t Type) bool {
	return pointsTo(t, Int8)
}

// IsGenericDataPointer reports whether t is a single level pointer to
// unsigned bytes of unknown length.
func IsGenericDataPointer(t Type) bool {
	return pointsTo(t, Uint8)
}

// IsVoidPointer reports whether t is void*.
func IsVoidPointer(t Type) bool {
	return pointsTo(t, Void)
}

// Model is the result of Build. It is read-only once built.
type Model struct {
	Handles   []*Handle
	Structs   []*Struct
	Enums     []*Enum
	Externals []*External

	// Functions holds every function in declaration order. Globals is the
	// subset classified as ClassGlobal.
	Functions []*Function
	Globals   []*Function

	// Version is the value of the ABI version macro.
	Version int32
}

func (m *Model) Handle(name string) (*Handle, bool) {
	for _, h := range m.Handles {
		if h.Name == name {
			return h, true
		}
	}
	return nil, false
}

func (m *Model) Struct(name string) (*Struct, bool) {
	for _, s := range m.Structs {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

func (m *Model) Enum(name string) (*Enum, bool) {
	for _, e := range m.Enums {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

func (m *Model) Function(name string) (*Function, bool) {
	for _, f := range m.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}
