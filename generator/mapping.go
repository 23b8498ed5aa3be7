package generator

import (
	"fmt"
	"strings"

	"github.com/ardanlabs/impeller-interop/model"
)

// rawType returns the Go spelling of t in the raw ABI table. Handles and
// callbacks are plain uintptr values. Strings become Go strings only where
// allowStrings is set; struct members keep their C layout.
func (g *Generator) rawType(decl string, t model.Type, allowStrings bool) (string, error) {
	if allowStrings && model.IsString(t) {
		if model.IsNullable(t) {
			return "*byte", nil
		}
		return "string", nil
	}

	switch t := t.(type) {
	case *model.Nullable:
		return g.rawType(decl, t.Elem, allowStrings)

	case *model.Primitive:
		return t.GoType(), nil

	case *model.Handle, *model.FunctionPointer:
		return "uintptr", nil

	case *model.Enum:
		return t.Name, nil

	case *model.Struct:
		return t.Name, nil

	case *model.External:
		return g.externalType(decl, t)

	case *model.Pointer:
		if model.Unwrap(t.Elem) == model.Void {
			return strings.Repeat("*", t.Level-1) + "unsafe.Pointer", nil
		}
		elem, err := g.rawType(decl, t.Elem, false)
		if err != nil {
			return "", err
		}
		return strings.Repeat("*", t.Level) + elem, nil

	case *model.FixedArray:
		elem, err := g.rawType(decl, t.Elem, false)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("[%d]%s", t.Size, elem), nil
	}

	return "", &UnknownProgramTypeError{Decl: decl, Type: t.String()}
}

func (g *Generator) externalType(decl string, e *model.External) (string, error) {
	typ, ok := g.reg.ExternalType(e.Name)
	if !ok {
		return "", &UnknownProgramTypeError{Decl: decl, Type: e.Name}
	}
	return typ, nil
}

// valueType spells a type passed by value in a safe wrapper.
func (g *Generator) valueType(decl string, t model.Type) (string, error) {
	switch t := model.Unwrap(t).(type) {
	case *model.Primitive:
		if t != model.Void {
			return t.GoType(), nil
		}
	case *model.Enum:
		return t.Name, nil
	case *model.Struct:
		return t.Name, nil
	case *model.External:
		return g.externalType(decl, t)
	}
	return "", &UnknownProgramTypeError{Decl: decl, Type: t.String()}
}

// param is one parameter of a safe wrapper. A marshalled parameter names
// the marshal function and the native struct; its setup is written once
// every name of the wrapper is known.
type param struct {
	name    string
	typ     string
	setup   []string
	arg     string
	keep    bool
	marshal string
	native  string
}

// result is the conversion of a native result in a safe wrapper. A nil
// handle means the value is returned as convert formats it.
type result struct {
	typ     string
	handle  *model.Handle
	adopt   bool
	check   bool
	convert string
}

var eligible Eligibility

// safeParam maps a parameter of a safe wrapper. The checks run in order and
// the first one that applies decides.
func (g *Generator) safeParam(decl string, v model.Var, receiver string) (param, Eligibility, error) {
	name := paramName(v.Name, receiver)
	p := param{name: name, arg: name}
	t := model.Unwrap(v.Type)
	nullable := model.IsNullable(v.Type)

	if ptr, ok := t.(*model.Pointer); ok && ptr.Level == 1 {
		if s, ok := model.Unwrap(ptr.Elem).(*model.Struct); ok {
			if m, ok := g.reg.Marshaller(s.Name); ok {
				p.typ = m.Type
				p.marshal = m.Marshal
				p.native = s.Name
				return p, eligible, nil
			}
		}
	}

	switch {
	case model.IsString(t):
		p.typ = "string"
		if nullable {
			p.typ = "*string"
			p.arg = fmt.Sprintf("nimpeller.OptionalCString(%s)", name)
		}
		return p, eligible, nil

	case model.IsGenericDataPointer(t):
		return p, ineligible(ReasonGenericData, v.Name), nil

	case model.IsVoidPointer(t):
		p.typ = "unsafe.Pointer"
		return p, eligible, nil
	}

	switch t := t.(type) {
	case *model.Handle:
		p.typ = "*" + t.Name
		p.arg = name + ".ptr()"
		p.keep = true

	case *model.FunctionPointer:
		return p, ineligible(ReasonFunctionPointer, v.Name), nil

	case *model.Pointer:
		switch model.Unwrap(t.Elem).(type) {
		case *model.Handle:
			return p, ineligible(ReasonHandleIndirection, v.Name), nil
		case *model.FunctionPointer:
			return p, ineligible(ReasonFunctionPointer, v.Name), nil
		}
		if t.Level != 1 {
			return p, ineligible(ReasonIndirection, v.Name), nil
		}

		elem, err := g.valueType(decl, t.Elem)
		if err != nil {
			return p, eligible, err
		}
		// Read-only arguments are taken by value; everything else is
		// storage the caller owns.
		if t.Const && !nullable {
			p.typ = elem
			p.arg = "&" + name
		} else {
			p.typ = "*" + elem
		}

	default:
		typ, err := g.valueType(decl, t)
		if err != nil {
			return p, eligible, err
		}
		p.typ = typ
	}

	return p, eligible, nil
}

// safeResult maps the result of a safe wrapper. Handle results of functions
// ending in New are adopted; all others are retained.
func (g *Generator) safeResult(f *model.Function) (result, Eligibility, error) {
	t := model.Unwrap(f.Return)
	nullable := model.IsNullable(f.Return)
	r := result{convert: "%s"}

	switch {
	case t == model.Void:
		return result{}, eligible, nil

	case model.IsString(t):
		r.typ = "string"
		if nullable {
			r.typ = "*string"
			r.convert = "nimpeller.OptionalGoString(%s)"
		}
		return r, eligible, nil

	case model.IsGenericDataPointer(t):
		return r, ineligible(ReasonGenericData, "result"), nil

	case model.IsVoidPointer(t):
		r.typ = "unsafe.Pointer"
		return r, eligible, nil
	}

	switch t := t.(type) {
	case *model.Handle:
		r.typ = "*" + t.Name
		r.handle = t
		r.adopt = strings.HasSuffix(f.Name, "New")
		r.check = nullable

	case *model.FunctionPointer:
		return r, ineligible(ReasonFunctionPointer, "result"), nil

	case *model.Pointer:
		switch {
		case isHandle(t.Elem):
			return r, ineligible(ReasonHandleIndirection, "result"), nil
		case t.Level != 1:
			return r, ineligible(ReasonIndirection, "result"), nil
		}
		return r, ineligible(ReasonPointerResult, "result"), nil

	default:
		typ, err := g.valueType(f.Name, t)
		if err != nil {
			return r, eligible, err
		}
		r.typ = typ
	}

	return r, eligible, nil
}

func isHandle(t model.Type) bool {
	_, ok := model.Unwrap(t).(*model.Handle)
	return ok
}
