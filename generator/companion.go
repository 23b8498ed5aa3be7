package generator

import (
	"bytes"
	"text/template"

	"github.com/ardanlabs/impeller-interop/model"
)

// companion is the hand-written constructor of a function on the manual
// list. It is emitted next to the wrappers of the handle it creates when the
// header declares the function with the expected arity and every struct the
// template uses.
type companion struct {
	fn      string
	params  int
	structs []string
	tmpl    *template.Template
}

// companionData is what a companion template renders.
type companionData struct {
	Name      string
	Func      string
	Handle    string
	Lifecycle string
	Version   string
	Prefix    string
}

const openGLESTemplate = `// {{.Name}} creates an OpenGL ES context. getProcAddress resolves GL entry
// points while the context is created and is not called afterwards.
func {{.Name}}(getProcAddress func(name string) uintptr) *{{.Handle}} {
	cb, done := nimpeller.ProcAddressCallback(getProcAddress)
	defer done()

	ret := native.{{.Func}}({{.Version}}, cb, nil)
	if ret == 0 {
		return nil
	}
	return &{{.Handle}}{handle: nimpeller.Adopt[{{.Lifecycle}}](ret)}
}

`

const metalTemplate = `// {{.Name}} creates a Metal context on the system default device.
func {{.Name}}() *{{.Handle}} {
	ret := native.{{.Func}}({{.Version}})
	if ret == 0 {
		return nil
	}
	return &{{.Handle}}{handle: nimpeller.Adopt[{{.Lifecycle}}](ret)}
}

`

const vulkanTemplate = `// {{.Name}} creates a Vulkan context. getProcAddress resolves Vulkan entry
// points for instance, which is nil for global commands, while the context
// is created.
func {{.Name}}(getProcAddress func(instance unsafe.Pointer, name string) uintptr, enableValidation bool) *{{.Handle}} {
	cb, done := nimpeller.VulkanProcAddressCallback(getProcAddress)
	defer done()

	settings := {{.Prefix}}ContextVulkanSettings{ProcAddressCallback: cb}
	if enableValidation {
		settings.EnableVulkanValidation = 1
	}

	ret := native.{{.Func}}({{.Version}}, &settings)
	if ret == 0 {
		return nil
	}
	return &{{.Handle}}{handle: nimpeller.Adopt[{{.Lifecycle}}](ret)}
}

`

// Function and struct names are relative to the handle prefix.
var companions = []companion{
	{
		fn:     "ContextCreateOpenGLESNew",
		params: 3,
		tmpl:   template.Must(template.New("opengles").Parse(openGLESTemplate)),
	},
	{
		fn:     "ContextCreateMetalNew",
		params: 1,
		tmpl:   template.Must(template.New("metal").Parse(metalTemplate)),
	},
	{
		fn:      "ContextCreateVulkanNew",
		params:  2,
		structs: []string{"ContextVulkanSettings"},
		tmpl:    template.Must(template.New("vulkan").Parse(vulkanTemplate)),
	},
}

// companionPlan is a companion bound to the model.
type companionPlan struct {
	owner *model.Handle
	data  companionData
	tmpl  *template.Template
}

// planCompanions returns the companions the model supports, in table order.
func (g *Generator) planCompanions() []*companionPlan {
	var plans []*companionPlan

	for _, c := range companions {
		name := g.reg.HandlePrefix + c.fn
		f, ok := g.model.Function(name)
		if !ok || !g.reg.IsManualFunction(name) {
			continue
		}
		if f.Class != model.ClassFactory || len(f.Params) != c.params {
			g.log.Debug("skipping hand-written constructor", "function", name, "class", f.Class)
			continue
		}

		missing := false
		for _, s := range c.structs {
			if _, ok := g.model.Struct(g.reg.HandlePrefix + s); !ok {
				missing = true
			}
		}
		if missing {
			g.log.Debug("skipping hand-written constructor", "function", name, "reason", "missing struct")
			continue
		}

		plans = append(plans, &companionPlan{
			owner: f.Owner,
			tmpl:  c.tmpl,
			data: companionData{
				Name:      factoryName(name, f.Owner.Name, g.reg.HandlePrefix),
				Func:      name,
				Handle:    f.Owner.Name,
				Lifecycle: lifecycleName(f.Owner.Name),
				Version:   versionConst,
				Prefix:    g.reg.HandlePrefix,
			},
		})
	}

	return plans
}

func (c *companionPlan) execute(buf *bytes.Buffer) error {
	return c.tmpl.Execute(buf, c.data)
}
