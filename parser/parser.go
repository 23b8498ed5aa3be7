package parser

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Parse reads the declarations of a C header. The header is rewritten by
// Preprocess, prefixed with the standard integer typedefs and run through
// the macro preprocessor before the declarations are parsed. Any diagnostic
// makes Parse fail with a *ParseError.
func Parse(content string, opts ...Option) (*Header, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	pp := newPreprocessor()
	pp.run(systemTypes)
	pp.run(Preprocess(content, o))
	if len(pp.conds) > 0 {
		pp.diags = append(pp.diags, Diagnostic{Msg: "unterminated conditional directive"})
	}

	p := newParser(pp.out)
	p.parse()

	diags := append(pp.diags, p.diags...)
	if len(diags) > 0 {
		return nil, &ParseError{Diagnostics: diags}
	}

	return p.header, nil
}

// ParseFile reads and parses the header at path.
func ParseFile(path string, opts ...Option) (*Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data), opts...)
}

const anonPrefix = "__anon_"

type syntaxError struct {
	tok token
	msg string
}

func (e *syntaxError) Error() string {
	return e.msg
}

type parser struct {
	toks   []token
	pos    int
	header *Header

	typedefs map[string]*CType
	structs  map[string]*Struct
	consts   map[string]int64
	anon     int
	diags    []Diagnostic
}

func newParser(toks []token) *parser {
	return &parser{
		toks:     toks,
		header:   &Header{},
		typedefs: make(map[string]*CType),
		structs:  make(map[string]*Struct),
		consts:   make(map[string]int64),
	}
}

func (p *parser) peek() token {
	return p.peekAt(0)
}

func (p *parser) peekAt(off int) token {
	if p.pos+off < len(p.toks) {
		return p.toks[p.pos+off]
	}
	t := token{kind: tokEOF, text: "end of file"}
	if len(p.toks) > 0 {
		last := p.toks[len(p.toks)-1]
		t.line, t.col = last.line, last.col
	}
	return t
}

func (p *parser) next() token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) accept(punct string) bool {
	if p.peek().isPunct(punct) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) acceptIdent(name string) bool {
	if p.peek().is(tokIdent, name) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(punct string) error {
	if p.accept(punct) {
		return nil
	}
	return p.errorf("expected %q, found %q", punct, p.peek().text)
}

func (p *parser) errorf(format string, args ...any) error {
	return &syntaxError{tok: p.peek(), msg: fmt.Sprintf(format, args...)}
}

func (p *parser) report(err error) {
	if se, ok := err.(*syntaxError); ok {
		p.diags = append(p.diags, Diagnostic{Line: se.tok.line, Col: se.tok.col, Msg: se.msg})
		return
	}
	t := p.peek()
	p.diags = append(p.diags, Diagnostic{Line: t.line, Col: t.col, Msg: err.Error()})
}

// recover skips to the end of the current declaration.
func (p *parser) recover() {
	depth := 0
	for p.peek().kind != tokEOF {
		t := p.next()
		switch {
		case t.isPunct("{"):
			depth++
		case t.isPunct("}"):
			depth--
			if depth <= 0 {
				p.accept(";")
				return
			}
		case t.isPunct(";") && depth <= 0:
			return
		}
	}
}

func (p *parser) parse() {
	externDepth := 0

	for p.peek().kind != tokEOF {
		switch {
		case p.accept(";"):
			continue

		case p.peek().is(tokIdent, "extern") && p.peekAt(1).kind == tokString:
			p.pos += 2
			if p.accept("{") {
				externDepth++
			}
			continue

		case externDepth > 0 && p.accept("}"):
			externDepth--
			continue
		}

		start := p.pos
		if err := p.declaration(); err != nil {
			p.report(err)
			if p.pos == start {
				p.next()
			}
			p.recover()
		}
	}
}

// declSpec is the result of parsing declaration specifiers.
type declSpec struct {
	typ         *CType
	isTypedef   bool
	isStatic    bool
	nullability Nullability
	attrs       []Attribute
}

func (p *parser) declaration() error {
	line := p.peek().line

	spec, err := p.specifiers()
	if err != nil {
		return err
	}

	// A bare struct or enum definition.
	if p.accept(";") {
		return nil
	}

	for first := true; ; first = false {
		d, err := p.declarator(spec.typ, false)
		if err != nil {
			return err
		}
		if err := p.attributes(&d.nullability, &d.attrs); err != nil {
			return err
		}

		nullability := spec.nullability
		if d.nullability != NullUnspecified {
			nullability = d.nullability
		}
		attrs := append(append([]Attribute(nil), spec.attrs...), d.attrs...)

		switch {
		case spec.isTypedef:
			if first {
				p.nameAnonymous(spec.typ, d.name)
			}
			p.typedefs[d.name] = d.typ
			p.header.TypeDefs = append(p.header.TypeDefs, TypeDef{
				Name:        d.name,
				SourceType:  d.typ,
				Nullability: nullability,
				Line:        line,
			})

		case d.typ.Kind == KindFunc:
			if p.peek().isPunct("{") {
				p.skipBody()
				return nil
			}
			if spec.isStatic {
				break
			}
			p.header.Functions = append(p.header.Functions, Function{
				Name:        d.name,
				ReturnType:  d.typ.Elem,
				Params:      d.typ.Params,
				IsVariadic:  d.typ.Variadic,
				Nullability: nullability,
				Attrs:       attrs,
				Line:        line,
			})
		}

		if p.accept(",") {
			continue
		}
		return p.expect(";")
	}
}

func (p *parser) skipBody() {
	depth := 0
	for p.peek().kind != tokEOF {
		t := p.next()
		if t.isPunct("{") {
			depth++
		} else if t.isPunct("}") {
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

// nameAnonymous gives an anonymous struct or enum the name of the typedef
// introducing it.
func (p *parser) nameAnonymous(t *CType, name string) {
	if !IsAnonymous(t.Name) {
		return
	}

	switch t.Kind {
	case KindStruct, KindUnion:
		if s, ok := p.structs[t.Name]; ok {
			delete(p.structs, t.Name)
			s.Name = name
			p.structs[name] = s
		}
	case KindEnum:
		for i := range p.header.Enums {
			if p.header.Enums[i].Name == t.Name {
				p.header.Enums[i].Name = name
			}
		}
	default:
		return
	}
	t.Name = name
}

var builtinWords = map[string]bool{
	"void": true, "char": true, "short": true, "int": true, "long": true,
	"float": true, "double": true, "signed": true, "unsigned": true, "_Bool": true,
}

func (p *parser) specifiers() (*declSpec, error) {
	spec := &declSpec{}
	var words []string
	isConst := false

loop:
	for {
		t := p.peek()
		if t.kind != tokIdent {
			break
		}

		switch t.text {
		case "typedef":
			spec.isTypedef = true
		case "static":
			spec.isStatic = true
		case "extern", "inline", "__inline", "__inline__", "register", "auto", "_Thread_local", "__extension__":
		case "const", "__const":
			isConst = true
		case "volatile", "restrict", "__restrict", "__restrict__", "_Null_unspecified":
		case "_Nullable", "__nullable":
			spec.nullability = NullNullable
		case "_Nonnull", "__nonnull":
			spec.nullability = NullNonNull
		case "__attribute__", "__attribute", "__declspec":
			if err := p.attributes(&spec.nullability, &spec.attrs); err != nil {
				return nil, err
			}
			continue
		case "struct", "union":
			if spec.typ != nil || len(words) > 0 {
				break loop
			}
			typ, err := p.record()
			if err != nil {
				return nil, err
			}
			spec.typ = typ
			continue
		case "enum":
			if spec.typ != nil || len(words) > 0 {
				break loop
			}
			typ, err := p.enumSpecifier()
			if err != nil {
				return nil, err
			}
			spec.typ = typ
			continue
		default:
			if builtinWords[t.text] {
				if spec.typ != nil {
					return nil, p.errorf("unexpected %q after type", t.text)
				}
				words = append(words, t.text)
				break
			}
			if spec.typ == nil && len(words) == 0 {
				if _, ok := p.typedefs[t.text]; ok {
					spec.typ = &CType{Kind: KindNamed, Name: t.text}
					break
				}
				return nil, p.errorf("unknown type name %q", t.text)
			}
			break loop
		}
		p.next()
	}

	if len(words) > 0 {
		name, err := canonicalBuiltin(words)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		spec.typ = &CType{Kind: KindBuiltin, Name: name}
	}
	if spec.typ == nil {
		return nil, p.errorf("expected a type, found %q", p.peek().text)
	}
	if isConst {
		c := *spec.typ
		c.IsConst = true
		spec.typ = &c
	}

	return spec, nil
}

// canonicalBuiltin folds a list of builtin type keywords into one spelling.
func canonicalBuiltin(words []string) (string, error) {
	count := make(map[string]int)
	for _, w := range words {
		count[w]++
	}

	sign := ""
	switch {
	case count["signed"] > 0 && count["unsigned"] > 0:
		return "", fmt.Errorf("both signed and unsigned in type")
	case count["unsigned"] > 0:
		sign = "unsigned "
	case count["signed"] > 0:
		sign = "signed "
	}

	switch {
	case count["void"] > 0:
		return "void", nil
	case count["_Bool"] > 0:
		return "_Bool", nil
	case count["float"] > 0:
		return "float", nil
	case count["double"] > 0:
		if count["long"] > 0 {
			return "long double", nil
		}
		return "double", nil
	case count["char"] > 0:
		return sign + "char", nil
	case count["short"] > 0:
		if sign == "signed " {
			sign = ""
		}
		return sign + "short", nil
	case count["long"] >= 2:
		if sign == "signed " {
			sign = ""
		}
		return sign + "long long", nil
	case count["long"] == 1:
		if sign == "signed " {
			sign = ""
		}
		return sign + "long", nil
	default:
		if sign == "unsigned " {
			return "unsigned int", nil
		}
		return "int", nil
	}
}

// attributes consumes any run of GNU attributes, __declspec and nullability
// qualifiers, recording annotate attributes.
func (p *parser) attributes(nullability *Nullability, attrs *[]Attribute) error {
	for {
		t := p.peek()
		switch {
		case t.is(tokIdent, "_Nullable") || t.is(tokIdent, "__nullable"):
			p.next()
			*nullability = NullNullable
		case t.is(tokIdent, "_Nonnull") || t.is(tokIdent, "__nonnull"):
			p.next()
			*nullability = NullNonNull
		case t.is(tokIdent, "_Null_unspecified"):
			p.next()
		case t.is(tokIdent, "__declspec"):
			p.next()
			if _, err := p.balanced(); err != nil {
				return err
			}
		case t.is(tokIdent, "__attribute__") || t.is(tokIdent, "__attribute"):
			p.next()
			inner, err := p.balanced()
			if err != nil {
				return err
			}
			for _, a := range parseAttributeList(inner) {
				if a.Name == "annotate" {
					for _, arg := range a.Args {
						switch arg {
						case AnnotateNullable:
							*nullability = NullNullable
						case AnnotateNotNull:
							*nullability = NullNonNull
						}
					}
				}
				*attrs = append(*attrs, a)
			}
		default:
			return nil
		}
	}
}

// balanced consumes a parenthesised token run and returns the tokens
// between the outer parentheses.
func (p *parser) balanced() ([]token, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}

	start := p.pos
	depth := 1
	for p.peek().kind != tokEOF {
		t := p.next()
		if t.isPunct("(") {
			depth++
		} else if t.isPunct(")") {
			depth--
			if depth == 0 {
				return p.toks[start : p.pos-1], nil
			}
		}
	}

	return nil, p.errorf("unbalanced parentheses")
}

// parseAttributeList reads "(name(args), name)" as found inside
// __attribute__((...)).
func parseAttributeList(toks []token) []Attribute {
	if len(toks) >= 2 && toks[0].isPunct("(") && toks[len(toks)-1].isPunct(")") {
		toks = toks[1 : len(toks)-1]
	}

	var attrs []Attribute
	for i := 0; i < len(toks); i++ {
		if toks[i].kind != tokIdent {
			continue
		}
		a := Attribute{Name: strings.Trim(toks[i].text, "_")}
		if i+1 < len(toks) && toks[i+1].isPunct("(") {
			depth := 0
			j := i + 1
			for ; j < len(toks); j++ {
				t := toks[j]
				switch {
				case t.isPunct("("):
					depth++
				case t.isPunct(")"):
					depth--
				case t.kind == tokString:
					if s, err := strconv.Unquote(t.text); err == nil {
						a.Args = append(a.Args, s)
					}
				case t.kind == tokIdent || t.kind == tokNumber:
					a.Args = append(a.Args, t.text)
				}
				if depth == 0 {
					break
				}
			}
			i = j
		}
		attrs = append(attrs, a)
	}

	return attrs
}

type declarator struct {
	name        string
	typ         *CType
	nullability Nullability
	attrs       []Attribute
}

// declarator parses a (possibly abstract) declarator around base.
func (p *parser) declarator(base *CType, abstract bool) (*declarator, error) {
	d := &declarator{}

	for p.accept("*") {
		base = &CType{Kind: KindPointer, Elem: base}
		for {
			if p.acceptIdent("const") || p.acceptIdent("__const") {
				base.IsConst = true
				continue
			}
			if p.acceptIdent("volatile") || p.acceptIdent("restrict") || p.acceptIdent("__restrict") || p.acceptIdent("__restrict__") {
				continue
			}
			before := p.pos
			if err := p.attributes(&d.nullability, &d.attrs); err != nil {
				return nil, err
			}
			if p.pos == before {
				break
			}
		}
	}
	if err := p.attributes(&d.nullability, &d.attrs); err != nil {
		return nil, err
	}

	var inner *declarator
	var hole *CType
	switch t := p.peek(); {
	case t.isPunct("(") && (p.peekAt(1).isPunct("*") || p.peekAt(1).isPunct("^")):
		p.next()
		hole = &CType{}
		var err error
		inner, err = p.declarator(hole, abstract)
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
	case t.kind == tokIdent:
		d.name = p.next().text
	case !abstract:
		return nil, p.errorf("expected a declarator name, found %q", t.text)
	}

	typ, err := p.suffixes(base)
	if err != nil {
		return nil, err
	}

	if inner != nil {
		*hole = *typ
		inner.attrs = append(d.attrs, inner.attrs...)
		if inner.nullability == NullUnspecified {
			inner.nullability = d.nullability
		}
		return inner, nil
	}

	d.typ = typ
	return d, nil
}

// suffixes applies array and parameter list suffixes to base.
func (p *parser) suffixes(base *CType) (*CType, error) {
	type suffix struct {
		array    bool
		size     int
		params   []Param
		variadic bool
	}
	var sfx []suffix

	for {
		switch {
		case p.accept("["):
			var expr []token
			for !p.peek().isPunct("]") {
				if p.peek().kind == tokEOF {
					return nil, p.errorf("unterminated array size")
				}
				expr = append(expr, p.next())
			}
			p.next()

			size := 0
			if len(expr) > 0 {
				v, err := evalConst(expr, p.lookupConst, p.castType)
				if err != nil {
					return nil, p.errorf("array size: %v", err)
				}
				size = int(v)
			}
			sfx = append(sfx, suffix{array: true, size: size})

		case p.peek().isPunct("("):
			params, variadic, err := p.params()
			if err != nil {
				return nil, err
			}
			sfx = append(sfx, suffix{params: params, variadic: variadic})

		default:
			for i := len(sfx) - 1; i >= 0; i-- {
				s := sfx[i]
				if s.array {
					base = &CType{Kind: KindArray, Elem: base, Size: s.size}
				} else {
					base = &CType{Kind: KindFunc, Elem: base, Params: s.params, Variadic: s.variadic}
				}
			}
			return base, nil
		}
	}
}

func (p *parser) params() ([]Param, bool, error) {
	if err := p.expect("("); err != nil {
		return nil, false, err
	}
	if p.accept(")") {
		return nil, false, nil
	}
	if p.peek().is(tokIdent, "void") && p.peekAt(1).isPunct(")") {
		p.pos += 2
		return nil, false, nil
	}

	var params []Param
	for {
		if p.accept("...") {
			return params, true, p.expect(")")
		}

		spec, err := p.specifiers()
		if err != nil {
			return nil, false, err
		}
		d, err := p.declarator(spec.typ, true)
		if err != nil {
			return nil, false, err
		}
		if err := p.attributes(&d.nullability, &d.attrs); err != nil {
			return nil, false, err
		}

		typ := d.typ
		switch typ.Kind {
		case KindArray:
			typ = &CType{Kind: KindPointer, Elem: typ.Elem}
		case KindFunc:
			typ = &CType{Kind: KindPointer, Elem: typ}
		}

		nullability := spec.nullability
		if d.nullability != NullUnspecified {
			nullability = d.nullability
		}

		params = append(params, Param{
			Name:        d.name,
			Type:        typ,
			Nullability: nullability,
		})

		if p.accept(",") {
			continue
		}
		return params, false, p.expect(")")
	}
}

func (p *parser) structFor(tag string, isUnion bool, line int) *Struct {
	if s, ok := p.structs[tag]; ok {
		return s
	}

	s := &Struct{Name: tag, IsUnion: isUnion, Line: line}
	p.structs[tag] = s
	p.header.Structs = append(p.header.Structs, s)
	return s
}

func (p *parser) record() (*CType, error) {
	kw := p.next()
	isUnion := kw.text == "union"

	var nullability Nullability
	var attrs []Attribute
	if err := p.attributes(&nullability, &attrs); err != nil {
		return nil, err
	}

	tag := ""
	if p.peek().kind == tokIdent {
		tag = p.next().text
	}

	kind := KindStruct
	if isUnion {
		kind = KindUnion
	}

	if !p.peek().isPunct("{") {
		if tag == "" {
			return nil, p.errorf("expected a %s tag or body", kw.text)
		}
		p.structFor(tag, isUnion, kw.line)
		return &CType{Kind: kind, Name: tag}, nil
	}
	p.next()

	if tag == "" {
		p.anon++
		tag = fmt.Sprintf("%s%d", anonPrefix, p.anon)
	}

	s := p.structFor(tag, isUnion, kw.line)
	if s.Defined {
		return nil, p.errorf("redefinition of %s %s", kw.text, tag)
	}

	var fields []StructField
	for !p.accept("}") {
		if p.peek().kind == tokEOF {
			return nil, p.errorf("unterminated %s %s", kw.text, tag)
		}

		spec, err := p.specifiers()
		if err != nil {
			return nil, err
		}
		for {
			d, err := p.declarator(spec.typ, false)
			if err != nil {
				return nil, err
			}
			if p.peek().isPunct(":") {
				return nil, p.errorf("bit-field %s is not supported", d.name)
			}
			if err := p.attributes(&d.nullability, &d.attrs); err != nil {
				return nil, err
			}

			nullability := spec.nullability
			if d.nullability != NullUnspecified {
				nullability = d.nullability
			}
			fields = append(fields, StructField{
				Name:        d.name,
				Type:        d.typ,
				Nullability: nullability,
			})

			if p.accept(",") {
				continue
			}
			if err := p.expect(";"); err != nil {
				return nil, err
			}
			break
		}
	}

	s.Fields = fields
	s.Defined = true

	if err := p.attributes(&nullability, &attrs); err != nil {
		return nil, err
	}

	return &CType{Kind: kind, Name: tag}, nil
}

func (p *parser) enumSpecifier() (*CType, error) {
	kw := p.next()

	var nullability Nullability
	var attrs []Attribute
	if err := p.attributes(&nullability, &attrs); err != nil {
		return nil, err
	}

	tag := ""
	if p.peek().kind == tokIdent {
		tag = p.next().text
	}

	if !p.accept("{") {
		if tag == "" {
			return nil, p.errorf("expected an enum tag or body")
		}
		return &CType{Kind: KindEnum, Name: tag}, nil
	}

	if tag == "" {
		p.anon++
		tag = fmt.Sprintf("%s%d", anonPrefix, p.anon)
	}

	e := Enum{Name: tag, Line: kw.line}
	next := int64(0)
	for !p.accept("}") {
		t := p.next()
		if t.kind != tokIdent {
			return nil, &syntaxError{tok: t, msg: fmt.Sprintf("expected an enumerator name, found %q", t.text)}
		}

		value := next
		if p.accept("=") {
			var expr []token
			depth := 0
			for {
				c := p.peek()
				if c.kind == tokEOF {
					return nil, p.errorf("unterminated enum %s", tag)
				}
				if depth == 0 && (c.isPunct(",") || c.isPunct("}")) {
					break
				}
				if c.isPunct("(") {
					depth++
				} else if c.isPunct(")") {
					depth--
				}
				expr = append(expr, p.next())
			}

			v, err := evalConst(expr, p.lookupConst, p.castType)
			if err != nil {
				return nil, &syntaxError{tok: t, msg: fmt.Sprintf("enumerator %s: %v", t.text, err)}
			}
			value = v
		}

		p.consts[t.text] = value
		e.Values = append(e.Values, EnumValue{Name: t.text, Value: value})
		next = value + 1

		if !p.accept(",") && !p.peek().isPunct("}") {
			return nil, p.errorf("expected ',' or '}' in enum %s, found %q", tag, p.peek().text)
		}
	}

	p.header.Enums = append(p.header.Enums, e)

	if err := p.attributes(&nullability, &attrs); err != nil {
		return nil, err
	}

	return &CType{Kind: KindEnum, Name: tag}, nil
}

func (p *parser) lookupConst(name string) (int64, bool) {
	v, ok := p.consts[name]
	return v, ok
}

var integerWidths = map[string]intType{
	"char":               {8, true},
	"signed char":        {8, true},
	"unsigned char":      {8, false},
	"short":              {16, true},
	"unsigned short":     {16, false},
	"int":                {32, true},
	"unsigned int":       {32, false},
	"long":               {64, true},
	"unsigned long":      {64, false},
	"long long":          {64, true},
	"unsigned long long": {64, false},
	"_Bool":              {8, false},
}

// castType resolves the type named in a cast inside a constant expression.
func (p *parser) castType(names []string) (intType, bool) {
	if len(names) == 1 {
		if td, ok := p.typedefs[names[0]]; ok {
			for td.Kind == KindNamed {
				next, ok := p.typedefs[td.Name]
				if !ok {
					return intType{}, false
				}
				td = next
			}
			if td.Kind != KindBuiltin {
				return intType{}, false
			}
			it, ok := integerWidths[td.Name]
			return it, ok
		}
	}

	for _, n := range names {
		if !builtinWords[n] {
			return intType{}, false
		}
	}
	name, err := canonicalBuiltin(names)
	if err != nil {
		return intType{}, false
	}
	it, ok := integerWidths[name]
	return it, ok
}
