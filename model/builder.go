package model

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ardanlabs/impeller-interop/parser"
)

// HandleRule decides whether a typedef declares an opaque handle.
type HandleRule func(td parser.TypeDef, h *parser.Header) bool

// ConventionHandleRule matches "typedef struct Name_* Name;" where Name_ is
// never defined and Name starts with prefix.
func ConventionHandleRule(prefix string) HandleRule {
	return func(td parser.TypeDef, h *parser.Header) bool {
		t := td.SourceType
		if t.Kind != parser.KindPointer || t.Elem.Kind != parser.KindStruct {
			return false
		}
		if t.Elem.Name != td.Name+"_" || !strings.HasPrefix(td.Name, prefix) {
			return false
		}
		s, ok := h.Struct(t.Elem.Name)
		return ok && !s.Defined
	}
}

// Option configures a Builder.
type Option func(*Builder)

// WithHandleRule replaces the handle predicate.
func WithHandleRule(rule HandleRule) Option {
	return func(b *Builder) {
		b.rule = rule
	}
}

// WithExternalStructs names structs whose interop is written by hand. They
// are modelled as External and never elaborated.
func WithExternalStructs(names ...string) Option {
	return func(b *Builder) {
		for _, n := range names {
			b.external[n] = true
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(b *Builder) {
		b.log = log
	}
}

// Builder turns a parsed header into a Model. A Builder may be reused; every
// call to Build starts from an empty model.
type Builder struct {
	rule     HandleRule
	external map[string]bool
	log      *slog.Logger

	h         *parser.Header
	m         *Model
	handles   map[string]*Handle
	funcPtrs  map[string]*FunctionPointer
	enums     map[string]*Enum
	structs   map[string]*Struct
	externals map[string]*External
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		rule:     ConventionHandleRule("Impeller"),
		external: make(map[string]bool),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build is shorthand for NewBuilder(opts...).Build(h).
func Build(h *parser.Header, opts ...Option) (*Model, error) {
	return NewBuilder(opts...).Build(h)
}

// Build runs the passes in dependency order: typedefs, enums, structs,
// callback signatures, functions, classification and lifecycle binding.
func (b *Builder) Build(h *parser.Header) (*Model, error) {
	b.h = h
	b.m = &Model{}
	b.handles = make(map[string]*Handle)
	b.funcPtrs = make(map[string]*FunctionPointer)
	b.enums = make(map[string]*Enum)
	b.structs = make(map[string]*Struct)
	b.externals = make(map[string]*External)

	callbacks := b.typedefs()
	b.enumPass()

	if err := b.structPass(); err != nil {
		return nil, fmt.Errorf("structs: %w", err)
	}
	if err := b.callbackPass(callbacks); err != nil {
		return nil, fmt.Errorf("callbacks: %w", err)
	}
	if err := b.functionPass(); err != nil {
		return nil, fmt.Errorf("functions: %w", err)
	}

	classify(b.m)
	bindLifecycle(b.m)

	b.log.Debug("model built",
		"handles", len(b.m.Handles),
		"structs", len(b.m.Structs),
		"enums", len(b.m.Enums),
		"functions", len(b.m.Functions),
		"globals", len(b.m.Globals),
		"version", b.m.Version)

	m := b.m
	b.h, b.m = nil, nil
	return m, nil
}

// typedefs registers handles and returns the callback typedefs, whose
// signatures are filled in once structs and enums are known.
func (b *Builder) typedefs() []parser.TypeDef {
	var callbacks []parser.TypeDef

	for _, td := range b.h.TypeDefs {
		switch {
		case b.rule(td, b.h):
			if _, ok := b.handles[td.Name]; ok {
				continue
			}
			handle := &Handle{Name: td.Name}
			b.handles[td.Name] = handle
			b.m.Handles = append(b.m.Handles, handle)

		case td.SourceType.Kind == parser.KindPointer && td.SourceType.Elem.Kind == parser.KindFunc:
			if _, ok := b.funcPtrs[td.Name]; ok {
				continue
			}
			b.funcPtrs[td.Name] = &FunctionPointer{Name: td.Name}
			callbacks = append(callbacks, td)
		}
	}

	return callbacks
}

func (b *Builder) enumPass() {
	for _, e := range b.h.Enums {
		if e.Name == parser.VersionEnum {
			for _, v := range e.Values {
				if v.Name == parser.VersionMember {
					b.m.Version = int32(v.Value)
				}
			}
			continue
		}
		if parser.IsAnonymous(e.Name) {
			continue
		}

		en := &Enum{Name: e.Name}
		for _, v := range e.Values {
			en.Members = append(en.Members, EnumMember{Name: v.Name, Value: int32(v.Value)})
		}
		b.enums[e.Name] = en
		b.m.Enums = append(b.m.Enums, en)
	}
}

func (b *Builder) isHandleStorage(name string) bool {
	if !strings.HasSuffix(name, "_") {
		return false
	}
	_, ok := b.handles[strings.TrimSuffix(name, "_")]
	return ok
}

func (b *Builder) structPass() error {
	var defined []*parser.Struct

	// Shells first so members can refer to any struct.
	for _, s := range b.h.Structs {
		switch {
		case b.external[s.Name]:
			ext := &External{Name: s.Name}
			b.externals[s.Name] = ext
			b.m.Externals = append(b.m.Externals, ext)

		case !s.Defined || b.isHandleStorage(s.Name):
			b.log.Debug("skipping struct", "name", s.Name, "defined", s.Defined)

		case s.IsUnion:
			return &UnknownTypeError{Decl: s.Name, Type: "union " + s.Name, Reason: "unions have no mapping"}

		default:
			st := &Struct{Name: s.Name}
			b.structs[s.Name] = st
			b.m.Structs = append(b.m.Structs, st)
			defined = append(defined, s)
		}
	}

	for _, s := range defined {
		st := b.structs[s.Name]
		for _, f := range s.Fields {
			t, err := b.mapType(s.Name+"."+f.Name, f.Type)
			if err != nil {
				return err
			}
			st.Members = append(st.Members, Var{Name: f.Name, Type: withNullability(t, f.Nullability)})
		}
	}

	return nil
}

func (b *Builder) callbackPass(callbacks []parser.TypeDef) error {
	for _, td := range callbacks {
		fp := b.funcPtrs[td.Name]
		fn := td.SourceType.Elem

		ret, err := b.mapType(td.Name, fn.Elem)
		if err != nil {
			return err
		}
		fp.Return = withNullability(ret, td.Nullability)

		fp.Params, err = b.params(td.Name, fn.Params)
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) functionPass() error {
	for _, f := range b.h.Functions {
		if f.IsVariadic {
			return &UnknownTypeError{Decl: f.Name, Type: "...", Reason: "variadic functions have no fixed ABI"}
		}

		ret, err := b.mapType(f.Name, f.ReturnType)
		if err != nil {
			return err
		}

		params, err := b.params(f.Name, f.Params)
		if err != nil {
			return err
		}

		b.m.Functions = append(b.m.Functions, &Function{
			Name:       f.Name,
			Return:     withNullability(ret, f.Nullability),
			Params:     params,
			Deprecated: deprecation(f.Attrs),
		})
	}
	return nil
}

// deprecation returns the message of a deprecated attribute. An attribute
// without a message yields a generic one.
func deprecation(attrs []parser.Attribute) string {
	for _, a := range attrs {
		if a.Name != "deprecated" {
			continue
		}
		if len(a.Args) > 0 && a.Args[0] != "" {
			return a.Args[0]
		}
		return "the native function is deprecated."
	}
	return ""
}

func (b *Builder) params(decl string, params []parser.Param) ([]Var, error) {
	vars := make([]Var, 0, len(params))
	for i, p := range params {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}

		t, err := b.mapType(decl+"."+name, p.Type)
		if err != nil {
			return nil, err
		}
		vars = append(vars, Var{Name: name, Type: withNullability(t, p.Nullability)})
	}
	return vars, nil
}

func withNullability(t Type, n parser.Nullability) Type {
	switch n {
	case parser.NullNullable:
		return &Nullable{Elem: t, Nullable: true}
	case parser.NullNonNull:
		return &Nullable{Elem: t, Nullable: false}
	}
	return t
}

var builtins = map[string]*Primitive{
	"void":               Void,
	"char":               Int8,
	"signed char":        Int8,
	"unsigned char":      Uint8,
	"short":              Int16,
	"unsigned short":     Uint16,
	"int":                Int32,
	"_Bool":              Int32,
	"unsigned int":       Uint32,
	"long long":          Int64,
	"unsigned long long": Uint64,
	"float":              Float32,
	"double":             Float64,
}

// mapType translates a C type. Typedefs are looked through, except for
// handles and named callbacks, which keep their identity.
func (b *Builder) mapType(decl string, ct *parser.CType) (Type, error) {
	unknown := func(reason string) error {
		return &UnknownTypeError{Decl: decl, Type: ct.String(), Reason: reason}
	}

	switch ct.Kind {
	case parser.KindBuiltin:
		if p, ok := builtins[ct.Name]; ok {
			return p, nil
		}
		return nil, unknown("no fixed width primitive")

	case parser.KindNamed:
		if h, ok := b.handles[ct.Name]; ok {
			return h, nil
		}
		if fp, ok := b.funcPtrs[ct.Name]; ok {
			return fp, nil
		}
		td, ok := b.h.TypeDef(ct.Name)
		if !ok {
			return nil, unknown("undeclared typedef")
		}
		return b.mapType(decl, td.SourceType)

	case parser.KindStruct:
		if ext, ok := b.externals[ct.Name]; ok {
			return ext, nil
		}
		if s, ok := b.structs[ct.Name]; ok {
			return s, nil
		}
		return nil, unknown("incomplete struct")

	case parser.KindEnum:
		if e, ok := b.enums[ct.Name]; ok {
			return e, nil
		}
		return nil, unknown("undeclared enum")

	case parser.KindPointer:
		if ct.Elem.Kind == parser.KindFunc {
			return b.callback(decl, ct.Elem)
		}

		level := 0
		elem := ct
		for elem.Kind == parser.KindPointer {
			level++
			elem = elem.Elem
		}

		t, err := b.mapType(decl, elem)
		if err != nil {
			return nil, err
		}
		return &Pointer{Elem: t, Level: level, Const: elem.IsConst}, nil

	case parser.KindArray:
		if ct.Size <= 0 {
			return nil, unknown("array without a size")
		}
		t, err := b.mapType(decl, ct.Elem)
		if err != nil {
			return nil, err
		}
		return &FixedArray{Elem: t, Size: ct.Size}, nil
	}

	return nil, unknown("")
}

func (b *Builder) callback(decl string, fn *parser.CType) (Type, error) {
	if fn.Variadic {
		return nil, &UnknownTypeError{Decl: decl, Type: fn.String(), Reason: "variadic callback"}
	}

	ret, err := b.mapType(decl, fn.Elem)
	if err != nil {
		return nil, err
	}
	params, err := b.params(decl, fn.Params)
	if err != nil {
		return nil, err
	}

	return &FunctionPointer{Return: ret, Params: params}, nil
}
