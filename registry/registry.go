// Package registry holds the hand-maintained configuration of the generator:
// functions and structs that need manual interop and the macro names the
// header uses.
package registry

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/ardanlabs/impeller-interop/model"
	"github.com/ardanlabs/impeller-interop/parser"
)

//go:embed default.yaml
var defaultYAML []byte

const (
	DefaultHandlePrefix = "Impeller"
	DefaultRuntime      = "github.com/ardanlabs/impeller-interop/nimpeller"
)

type Registry struct {
	Version      int    `yaml:"version"`
	HandlePrefix string `yaml:"handlePrefix"`
	Runtime      string `yaml:"runtime"`
	Macros       Macros `yaml:"macros"`

	Functions       []string              `yaml:"functions,omitempty"`
	ExternalStructs map[string]string     `yaml:"externalStructs,omitempty"`
	Marshallers     map[string]Marshaller `yaml:"marshallers,omitempty"`

	manual map[string]bool
}

type Macros struct {
	Nullable string `yaml:"nullable"`
	NonNull  string `yaml:"nonNull"`
	Version  string `yaml:"version"`
}

// Marshaller converts a Go value of Type into a native struct pointer. Marshal
// names a function of the form func(Type) (unsafe.Pointer, func()).
type Marshaller struct {
	Type    string `yaml:"type"`
	Marshal string `yaml:"marshal"`
}

func (r *Registry) normalize() error {
	if r.Version == 0 {
		r.Version = 1
	}
	if r.HandlePrefix == "" {
		r.HandlePrefix = DefaultHandlePrefix
	}
	if r.Runtime == "" {
		r.Runtime = DefaultRuntime
	}
	if r.Macros.Nullable == "" {
		r.Macros.Nullable = "IMPELLER_NULLABLE"
	}
	if r.Macros.NonNull == "" {
		r.Macros.NonNull = "IMPELLER_NONNULL"
	}
	if r.Macros.Version == "" {
		r.Macros.Version = "IMPELLER_VERSION"
	}

	for name, m := range r.Marshallers {
		if m.Type == "" || m.Marshal == "" {
			return fmt.Errorf("marshaller %s: type and marshal are required", name)
		}
	}
	for name, typ := range r.ExternalStructs {
		if typ == "" {
			return fmt.Errorf("external struct %s: missing Go type", name)
		}
	}

	r.manual = make(map[string]bool, len(r.Functions))
	for _, f := range r.Functions {
		r.manual[f] = true
	}
	return nil
}

// Default returns the embedded registry.
func Default() *Registry {
	r, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded registry: %v", err))
	}
	return r
}

// Parse decodes a registry document.
func Parse(data []byte) (*Registry, error) {
	var r Registry
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if err := r.normalize(); err != nil {
		return nil, fmt.Errorf("invalid registry: %w", err)
	}
	return &r, nil
}

// Load reads a registry from a YAML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return Parse(data)
}

// IsManualFunction reports whether name is excluded from automatic wrapping.
func (r *Registry) IsManualFunction(name string) bool {
	return r.manual[name]
}

// ExternalType returns the Go type of a hand-written struct.
func (r *Registry) ExternalType(name string) (string, bool) {
	typ, ok := r.ExternalStructs[name]
	return typ, ok
}

func (r *Registry) Marshaller(name string) (Marshaller, bool) {
	m, ok := r.Marshallers[name]
	return m, ok
}

// ExternalNames returns the hand-written struct names in sorted order.
func (r *Registry) ExternalNames() []string {
	names := make([]string, 0, len(r.ExternalStructs))
	for name := range r.ExternalStructs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ParserOptions configures the header parser with the registry's macros.
func (r *Registry) ParserOptions() []parser.Option {
	return []parser.Option{
		parser.WithNullabilityMacros(r.Macros.Nullable, r.Macros.NonNull),
		parser.WithVersionMacro(r.Macros.Version),
	}
}

// ModelOptions configures the model builder with the handle prefix and the
// hand-written structs.
func (r *Registry) ModelOptions() []model.Option {
	return []model.Option{
		model.WithHandleRule(model.ConventionHandleRule(r.HandlePrefix)),
		model.WithExternalStructs(r.ExternalNames()...),
	}
}
