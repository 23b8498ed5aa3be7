// Package generator emits the Go bindings of an Impeller model: enums,
// value structs, the raw ABI table bound at load time and the safe handle
// wrappers built on top of it.
package generator

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"text/template"

	"golang.org/x/tools/imports"

	"github.com/ardanlabs/impeller-interop/model"
	"github.com/ardanlabs/impeller-interop/registry"
)

// DefaultPackage is the package name of the generated file.
const DefaultPackage = "impeller"

// FileName is the name of the generated file.
const FileName = "bindings_gen.go"

// versionConst is the generated constant holding the ABI version.
const versionConst = "ImpellerVersion"

type Option func(*Generator)

func WithRegistry(r *registry.Registry) Option {
	return func(g *Generator) {
		g.reg = r
	}
}

func WithPackage(name string) Option {
	return func(g *Generator) {
		g.pkg = name
	}
}

// WithSource names the header in the generated file comment.
func WithSource(name string) Option {
	return func(g *Generator) {
		g.source = name
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(g *Generator) {
		g.log = log
	}
}

type Generator struct {
	model  *model.Model
	reg    *registry.Registry
	pkg    string
	source string
	log    *slog.Logger
}

func New(m *model.Model, opts ...Option) *Generator {
	g := &Generator{
		model: m,
		reg:   registry.Default(),
		pkg:   DefaultPackage,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Result is one generated Go file. Warnings lists the functions that only
// got a raw binding.
type Result struct {
	Source   []byte
	Warnings []Ineligible
}

// wrapper is the plan of one safe method or factory.
type wrapper struct {
	fn     *model.Function
	name   string
	recv   *param
	params []param
	result result
}

// Generate renders the bindings. Every handle must have its Retain and
// Release before anything is emitted.
func (g *Generator) Generate() (*Result, error) {
	if err := g.checkLifecycles(); err != nil {
		return nil, err
	}

	comps := g.planCompanions()

	wrappers, warnings, err := g.plan(comps)
	if err != nil {
		return nil, fmt.Errorf("planning wrappers: %w", err)
	}

	var body bytes.Buffer

	g.generateEnums(&body)
	g.generateLifecycles(&body)

	if err := g.generateStructs(&body); err != nil {
		return nil, fmt.Errorf("generating structs: %w", err)
	}
	if err := g.generateNative(&body); err != nil {
		return nil, fmt.Errorf("generating native table: %w", err)
	}
	if err := g.generateWrappers(&body, wrappers, comps); err != nil {
		return nil, fmt.Errorf("generating wrappers: %w", err)
	}

	var buf bytes.Buffer
	g.generateHeader(&buf, body.String())
	buf.Write(body.Bytes())

	src, err := imports.Process(FileName, buf.Bytes(), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("formatting output: %w", err)
	}

	g.log.Debug("bindings generated",
		"package", g.pkg,
		"wrappers", len(wrappers),
		"constructors", len(comps),
		"warnings", len(warnings),
		"bytes", len(src))

	return &Result{Source: src, Warnings: warnings}, nil
}

// Check reports whether f would get a safe wrapper, ignoring name
// collisions with other generated declarations.
func (g *Generator) Check(f *model.Function) (Eligibility, error) {
	_, e, err := g.planFunction(f)
	return e, err
}

func (g *Generator) checkLifecycles() error {
	var errs []error
	for _, h := range g.model.Handles {
		if h.HasLifecycle() {
			continue
		}

		err := &MissingRetainReleasePairError{Handle: h.Name}
		if h.Retain == nil {
			err.Missing = append(err.Missing, h.Name+"Retain")
		}
		if h.Release == nil {
			err.Missing = append(err.Missing, h.Name+"Release")
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// plan decides the safe wrapper of every factory and method, in handle
// order. Lifecycle functions are bound through the handle itself and the
// names of hand-written constructors are taken before any wrapper.
func (g *Generator) plan(comps []*companionPlan) ([]*wrapper, []Ineligible, error) {
	pkgScope := map[string]bool{
		"native":     true,
		"bindNative": true,
		versionConst: true,
	}
	for _, e := range g.model.Enums {
		pkgScope[e.Name] = true
		for _, m := range e.Members {
			pkgScope[enumConstName(m.Name)] = true
		}
	}
	for _, s := range g.model.Structs {
		pkgScope[s.Name] = true
	}
	for _, h := range g.model.Handles {
		pkgScope[h.Name] = true
		pkgScope[lifecycleName(h.Name)] = true
	}
	for _, c := range comps {
		pkgScope[c.data.Name] = true
	}

	var (
		wrappers []*wrapper
		warnings []Ineligible
	)

	for _, h := range g.model.Handles {
		methodScope := map[string]bool{"Release": true, "ptr": true, "handle": true}

		for _, f := range append(append([]*model.Function{}, h.Factories...), h.Methods...) {
			if f.IsLifecycle() {
				continue
			}

			w, e, err := g.planFunction(f)
			if err != nil {
				return nil, nil, err
			}

			if e.Eligible() {
				scope := pkgScope
				if f.Class == model.ClassMethod {
					scope = methodScope
				}
				if scope[w.name] {
					e = ineligible(ReasonReservedName, w.name)
				}
				scope[w.name] = true
			}

			if !e.Eligible() {
				g.log.Warn("function needs manual interop", "function", f.Name, "reason", e.String())
				warnings = append(warnings, Ineligible{Function: f.Name, Handle: h.Name, Eligibility: e})
				continue
			}

			wrappers = append(wrappers, w)
		}
	}

	return wrappers, warnings, nil
}

func (g *Generator) planFunction(f *model.Function) (*wrapper, Eligibility, error) {
	if g.reg.IsManualFunction(f.Name) {
		return nil, ineligible(ReasonManual, ""), nil
	}

	w := &wrapper{fn: f}
	params := f.Params
	recv := ""

	switch f.Class {
	case model.ClassMethod:
		recv = receiverName(f.Owner.Name, g.reg.HandlePrefix)
		w.recv = &param{name: recv, typ: "*" + f.Owner.Name, arg: recv + ".ptr()", keep: true}
		w.name = methodName(f.Name, f.Owner.Name, g.reg.HandlePrefix)
		params = params[1:]
	case model.ClassFactory:
		w.name = factoryName(f.Name, f.Owner.Name, g.reg.HandlePrefix)
	default:
		w.name = strings.TrimPrefix(f.Name, g.reg.HandlePrefix)
	}

	used := map[string]bool{recv: true}
	for name := range locals {
		used[name] = true
	}

	for _, v := range params {
		p, e, err := g.safeParam(f.Name+"."+v.Name, v, recv)
		if err != nil || !e.Eligible() {
			return nil, e, err
		}
		w.params = append(w.params, p)
		used[p.name] = true
	}

	for i := range w.params {
		p := &w.params[i]
		if p.marshal == "" {
			continue
		}
		ptr := uniqueName(p.name+"Ptr", used)
		free := uniqueName(p.name+"Free", used)
		p.setup = []string{
			fmt.Sprintf("%s, %s := %s(%s)", ptr, free, p.marshal, p.name),
			fmt.Sprintf("defer %s()", free),
		}
		p.arg = fmt.Sprintf("(*%s)(%s)", p.native, ptr)
	}

	r, e, err := g.safeResult(f)
	if err != nil || !e.Eligible() {
		return nil, e, err
	}
	w.result = r

	return w, eligible, nil
}

func (g *Generator) generateHeader(buf *bytes.Buffer, body string) {
	fmt.Fprintf(buf, "// Code generated by impeller-interop")
	if g.source != "" {
		fmt.Fprintf(buf, " from %s", g.source)
	}
	fmt.Fprintf(buf, ". DO NOT EDIT.\n\n")
	fmt.Fprintf(buf, "package %s\n\n", g.pkg)

	fmt.Fprintf(buf, "import (\n")
	var std int
	for _, pkg := range []string{"runtime", "unsafe"} {
		if strings.Contains(body, pkg+".") {
			fmt.Fprintf(buf, "\t%q\n", pkg)
			std++
		}
	}
	if std > 0 {
		fmt.Fprintf(buf, "\n")
	}
	if path.Base(g.reg.Runtime) == "nimpeller" {
		fmt.Fprintf(buf, "\t%q\n", g.reg.Runtime)
	} else {
		fmt.Fprintf(buf, "\tnimpeller %q\n", g.reg.Runtime)
	}
	fmt.Fprintf(buf, ")\n\n")
}

func (g *Generator) generateEnums(buf *bytes.Buffer) {
	for _, e := range g.model.Enums {
		fmt.Fprintf(buf, "type %s int32\n\n", e.Name)
		if len(e.Members) == 0 {
			continue
		}

		fmt.Fprintf(buf, "const (\n")
		for _, m := range e.Members {
			fmt.Fprintf(buf, "\t%s %s = %d\n", enumConstName(m.Name), e.Name, m.Value)
		}
		fmt.Fprintf(buf, ")\n\n")
	}
}

func (g *Generator) generateLifecycles(buf *bytes.Buffer) {
	for _, h := range g.model.Handles {
		lc := lifecycleName(h.Name)
		fmt.Fprintf(buf, "type %s struct{}\n\n", lc)
		fmt.Fprintf(buf, "func (%s) UnsafeRetain(ptr uintptr) {\n\tnative.%s(ptr)\n}\n\n", lc, h.Retain.Name)
		fmt.Fprintf(buf, "func (%s) UnsafeRelease(ptr uintptr) {\n\tnative.%s(ptr)\n}\n\n", lc, h.Release.Name)
	}
}

func (g *Generator) generateStructs(buf *bytes.Buffer) error {
	for _, s := range g.model.Structs {
		fmt.Fprintf(buf, "type %s struct {\n", s.Name)
		for _, m := range s.Members {
			typ, err := g.rawType(s.Name+"."+m.Name, m.Type, false)
			if err != nil {
				return err
			}
			fmt.Fprintf(buf, "\t%s %s\n", fieldName(m.Name), typ)
		}
		fmt.Fprintf(buf, "}\n\n")
	}
	return nil
}

const nativeTemplate = `const {{.VersionConst}} uint32 = {{.Version}}

var native struct {
{{- range .Fields}}
	{{.}}
{{- end}}
}

func init() {
	nimpeller.RegisterBinder(bindNative)
}

func bindNative(lib uintptr) error {
{{- range .Symbols}}
	if err := nimpeller.Bind(&native.{{.}}, lib, "{{.}}"); err != nil {
		return err
	}
{{- end}}
{{- if .VersionFunc}}

	return nimpeller.CheckVersion(native.{{.VersionFunc}}(), {{.VersionConst}})
{{- else}}

	return nil
{{- end}}
}

`

var nativeTmpl = template.Must(template.New("native").Parse(nativeTemplate))

// generateNative writes the raw ABI table holding every function of the
// header and the binder that fills it.
func (g *Generator) generateNative(buf *bytes.Buffer) error {
	var fields, symbols []string
	for _, f := range g.model.Functions {
		sig, err := g.rawSignature(f)
		if err != nil {
			return err
		}
		fields = append(fields, fmt.Sprintf("%s %s", f.Name, sig))
		symbols = append(symbols, f.Name)
	}

	return nativeTmpl.Execute(buf, map[string]any{
		"VersionConst": versionConst,
		"Version":      uint32(g.model.Version),
		"Fields":       fields,
		"Symbols":      symbols,
		"VersionFunc":  g.versionFunc(),
	})
}

func (g *Generator) rawSignature(f *model.Function) (string, error) {
	params := make([]string, len(f.Params))
	for i, v := range f.Params {
		typ, err := g.rawType(f.Name+"."+v.Name, v.Type, true)
		if err != nil {
			return "", err
		}
		params[i] = paramName(v.Name, "") + " " + typ
	}

	ret, err := g.rawType(f.Name, f.Return, true)
	if err != nil {
		return "", err
	}

	sig := "func(" + strings.Join(params, ", ") + ")"
	if ret != "" {
		sig += " " + ret
	}
	return sig, nil
}

// versionFunc returns the global reporting the library version, if the
// header declares one.
func (g *Generator) versionFunc() string {
	name := g.reg.HandlePrefix + "GetVersion"
	for _, f := range g.model.Globals {
		if f.Name == name && len(f.Params) == 0 && model.Unwrap(f.Return) == model.Uint32 {
			return f.Name
		}
	}
	return ""
}

func (g *Generator) generateWrappers(buf *bytes.Buffer, wrappers []*wrapper, comps []*companionPlan) error {
	byHandle := make(map[*model.Handle][]*wrapper)
	for _, w := range wrappers {
		byHandle[w.fn.Owner] = append(byHandle[w.fn.Owner], w)
	}

	compsByHandle := make(map[*model.Handle][]*companionPlan)
	for _, c := range comps {
		compsByHandle[c.owner] = append(compsByHandle[c.owner], c)
	}

	for _, h := range g.model.Handles {
		recv := receiverName(h.Name, g.reg.HandlePrefix)

		fmt.Fprintf(buf, "// %s owns one reference to a native %s.\n", h.Name, h.Name)
		fmt.Fprintf(buf, "type %s struct {\n", h.Name)
		fmt.Fprintf(buf, "\thandle *nimpeller.Handle[%s]\n", lifecycleName(h.Name))
		fmt.Fprintf(buf, "}\n\n")

		fmt.Fprintf(buf, "func (%s *%s) ptr() uintptr {\n", recv, h.Name)
		fmt.Fprintf(buf, "\tif %s == nil {\n\t\treturn 0\n\t}\n", recv)
		fmt.Fprintf(buf, "\treturn %s.handle.Ptr()\n", recv)
		fmt.Fprintf(buf, "}\n\n")

		fmt.Fprintf(buf, "// Release drops the reference. Calling it again has no effect.\n")
		fmt.Fprintf(buf, "func (%s *%s) Release() {\n", recv, h.Name)
		fmt.Fprintf(buf, "\tif %s != nil {\n\t\t%s.handle.Release()\n\t}\n", recv, recv)
		fmt.Fprintf(buf, "}\n\n")

		for _, c := range compsByHandle[h] {
			if err := c.execute(buf); err != nil {
				return err
			}
		}
		for _, w := range byHandle[h] {
			g.generateWrapper(buf, w)
		}
	}
	return nil
}

func (g *Generator) generateWrapper(buf *bytes.Buffer, w *wrapper) {
	sig := make([]string, len(w.params))
	for i, p := range w.params {
		sig[i] = p.name + " " + p.typ
	}

	fmt.Fprintf(buf, "// %s calls %s.\n", w.name, w.fn.Name)
	if w.fn.Deprecated != "" {
		fmt.Fprintf(buf, "//\n// Deprecated: %s\n", w.fn.Deprecated)
	}
	fmt.Fprintf(buf, "func ")
	if w.recv != nil {
		fmt.Fprintf(buf, "(%s %s) ", w.recv.name, w.recv.typ)
	}
	fmt.Fprintf(buf, "%s(%s)", w.name, strings.Join(sig, ", "))
	if w.result.typ != "" {
		fmt.Fprintf(buf, " %s", w.result.typ)
	}
	fmt.Fprintf(buf, " {\n")

	all := w.params
	if w.recv != nil {
		all = append([]param{*w.recv}, w.params...)
	}

	var args, keep []string
	for _, p := range all {
		for _, s := range p.setup {
			fmt.Fprintf(buf, "\t%s\n", s)
		}
		args = append(args, p.arg)
		if p.keep {
			keep = append(keep, p.name)
		}
	}

	call := fmt.Sprintf("native.%s(%s)", w.fn.Name, strings.Join(args, ", "))

	r := w.result
	switch {
	case r.typ == "":
		fmt.Fprintf(buf, "\t%s\n", call)
		writeKeepAlive(buf, keep)

	case r.handle == nil && len(keep) == 0:
		fmt.Fprintf(buf, "\treturn %s\n", fmt.Sprintf(r.convert, call))

	case r.handle == nil:
		fmt.Fprintf(buf, "\tret := %s\n", call)
		writeKeepAlive(buf, keep)
		fmt.Fprintf(buf, "\treturn %s\n", fmt.Sprintf(r.convert, "ret"))

	default:
		fmt.Fprintf(buf, "\tret := %s\n", call)
		writeKeepAlive(buf, keep)
		if r.check {
			fmt.Fprintf(buf, "\tif ret == 0 {\n\t\treturn nil\n\t}\n")
		}
		own := "RetainFromNative"
		if r.adopt {
			own = "Adopt"
		}
		fmt.Fprintf(buf, "\treturn &%s{handle: nimpeller.%s[%s](ret)}\n", r.handle.Name, own, lifecycleName(r.handle.Name))
	}

	fmt.Fprintf(buf, "}\n\n")
}

func writeKeepAlive(buf *bytes.Buffer, names []string) {
	for _, n := range names {
		fmt.Fprintf(buf, "\truntime.KeepAlive(%s)\n", n)
	}
}
