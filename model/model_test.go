package model

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ardanlabs/impeller-interop/parser"
)

func buildFile(t *testing.T, opts ...Option) *Model {
	t.Helper()

	h, err := parser.ParseFile("../testdata/impeller.h")
	require.NoError(t, err)

	m, err := Build(h, append([]Option{WithExternalStructs("ImpellerMatrix")}, opts...)...)
	require.NoError(t, err)
	return m
}

func buildSource(t *testing.T, src string, opts ...Option) (*Model, error) {
	t.Helper()

	h, err := parser.Parse(src + "\n#define IMPELLER_VERSION 1\n")
	require.NoError(t, err)
	return Build(h, opts...)
}

func names[T interface{ String() string }](items []T) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.String()
	}
	return out
}

func functionNames(fns []*Function) []string {
	out := make([]string, len(fns))
	for i, f := range fns {
		out[i] = f.Name
	}
	return out
}

func TestBuildHandles(t *testing.T) {
	m := buildFile(t)

	require.Equal(t, []string{
		"ImpellerColorFilter",
		"ImpellerContext",
		"ImpellerDisplayList",
		"ImpellerDisplayListBuilder",
		"ImpellerPaint",
		"ImpellerPath",
		"ImpellerPathBuilder",
		"ImpellerSurface",
		"ImpellerTexture",
		"ImpellerTypographyContext",
	}, names(m.Handles))

	paint, ok := m.Handle("ImpellerPaint")
	require.True(t, ok)
	require.Equal(t, []string{"ImpellerPaintNew"}, functionNames(paint.Factories))
	require.Equal(t, []string{
		"ImpellerPaintRetain",
		"ImpellerPaintRelease",
		"ImpellerPaintSetColor",
		"ImpellerPaintSetBlendMode",
	}, functionNames(paint.Methods))

	require.True(t, paint.HasLifecycle())
	require.Equal(t, "ImpellerPaintRetain", paint.Retain.Name)
	require.Equal(t, "ImpellerPaintRelease", paint.Release.Name)
	require.True(t, paint.Retain.IsLifecycle())
	require.False(t, paint.Methods[2].IsLifecycle())

	for _, h := range m.Handles {
		require.True(t, h.HasLifecycle(), h.Name)
	}
}

func TestBuildClassification(t *testing.T) {
	m := buildFile(t)

	t.Run("partition", func(t *testing.T) {
		seen := make(map[*Function]int)
		for _, h := range m.Handles {
			for _, f := range h.Methods {
				require.Equal(t, ClassMethod, f.Class)
				require.Same(t, h, f.Owner)
				seen[f]++
			}
			for _, f := range h.Factories {
				require.Equal(t, ClassFactory, f.Class)
				require.Same(t, h, f.Owner)
				seen[f]++
			}
		}
		for _, f := range m.Globals {
			require.Equal(t, ClassGlobal, f.Class)
			require.Nil(t, f.Owner)
			seen[f]++
		}

		require.Len(t, seen, len(m.Functions))
		for _, f := range m.Functions {
			require.Equal(t, 1, seen[f], f.Name)
		}
	})

	t.Run("method wins over factory", func(t *testing.T) {
		f, ok := m.Function("ImpellerPathBuilderCopyPathNew")
		require.True(t, ok)
		require.Equal(t, ClassMethod, f.Class)
		require.Equal(t, "ImpellerPathBuilder", f.Owner.Name)
	})

	t.Run("handle parameter wins over handle result", func(t *testing.T) {
		f, ok := m.Function("ImpellerTextureCreateWithContentsNew")
		require.True(t, ok)
		require.Equal(t, ClassMethod, f.Class)
		require.Equal(t, "ImpellerContext", f.Owner.Name)
	})

	t.Run("factory without handle parameter", func(t *testing.T) {
		f, ok := m.Function("ImpellerColorFilterCreateBlendNew")
		require.True(t, ok)
		require.Equal(t, ClassFactory, f.Class)
		require.Equal(t, "ImpellerColorFilter", f.Owner.Name)
	})

	t.Run("accessor is not a factory", func(t *testing.T) {
		f, ok := m.Function("ImpellerSurfaceGetContext")
		require.True(t, ok)
		require.Equal(t, ClassMethod, f.Class)
		require.Equal(t, "ImpellerSurface", f.Owner.Name)
		require.True(t, IsNullable(f.Return))
	})

	t.Run("globals", func(t *testing.T) {
		require.Equal(t, []string{"ImpellerGetVersion"}, functionNames(m.Globals))
	})

	t.Run("classify", func(t *testing.T) {
		h := &Handle{Name: "ImpellerThing"}
		tests := []struct {
			name  string
			fn    *Function
			class Class
		}{
			{"handle result with New", &Function{Name: "ImpellerThingNew", Return: h}, ClassFactory},
			{"handle result without New", &Function{Name: "ImpellerThingGet", Return: h}, ClassGlobal},
			{"nullable first parameter", &Function{Name: "ImpellerThingDo", Return: Void, Params: []Var{{"t", &Nullable{Elem: h}}}}, ClassMethod},
			{"no handle", &Function{Name: "ImpellerThingNew", Return: Int32}, ClassGlobal},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				class, _ := Classify(tt.fn)
				require.Equal(t, tt.class, class)
			})
		}
	})
}

func TestBuildStructs(t *testing.T) {
	m := buildFile(t)

	require.Equal(t, []string{
		"ImpellerRect",
		"ImpellerPoint",
		"ImpellerISize",
		"ImpellerColor",
		"ImpellerTextureDescriptor",
		"ImpellerMapping",
		"ImpellerContextVulkanSettings",
		"ImpellerContextVulkanInfo",
	}, names(m.Structs))
	require.Equal(t, []string{"ImpellerMatrix"}, names(m.Externals))

	color, ok := m.Struct("ImpellerColor")
	require.True(t, ok)
	require.Equal(t, []string{
		"red : float32",
		"green : float32",
		"blue : float32",
		"alpha : float32",
	}, names(color.Members))

	t.Run("round trip", func(t *testing.T) {
		again := buildFile(t)
		if diff := cmp.Diff(m.Structs, again.Structs); diff != "" {
			t.Errorf("struct members differ between builds (-first +second):\n%s", diff)
		}
		if diff := cmp.Diff(m.Enums, again.Enums); diff != "" {
			t.Errorf("enum members differ between builds (-first +second):\n%s", diff)
		}
	})

	t.Run("sharing", func(t *testing.T) {
		setColor, ok := m.Function("ImpellerPaintSetColor")
		require.True(t, ok)

		ptr, ok := Unwrap(setColor.Params[1].Type).(*Pointer)
		require.True(t, ok)
		require.Equal(t, 1, ptr.Level)
		require.True(t, ptr.Const)
		require.Same(t, color, ptr.Elem)

		getBounds, ok := m.Function("ImpellerPathGetBounds")
		require.True(t, ok)
		require.False(t, Unwrap(getBounds.Params[1].Type).(*Pointer).Const)

		desc, ok := m.Struct("ImpellerTextureDescriptor")
		require.True(t, ok)
		size, ok := m.Struct("ImpellerISize")
		require.True(t, ok)
		require.Same(t, size, desc.Members[1].Type)

		format, ok := m.Enum("ImpellerPixelFormat")
		require.True(t, ok)
		require.Same(t, format, desc.Members[0].Type)
	})

	t.Run("external", func(t *testing.T) {
		f, ok := m.Function("ImpellerDisplayListBuilderSetTransform")
		require.True(t, ok)
		ptr := Unwrap(f.Params[1].Type).(*Pointer)
		require.Same(t, m.Externals[0], ptr.Elem)
	})

	t.Run("fields", func(t *testing.T) {
		mapping, ok := m.Struct("ImpellerMapping")
		require.True(t, ok)
		require.True(t, IsGenericDataPointer(mapping.Members[0].Type))
		require.False(t, IsNullable(mapping.Members[0].Type))

		cb, ok := Unwrap(mapping.Members[2].Type).(*FunctionPointer)
		require.True(t, ok)
		require.Equal(t, "ImpellerCallback", cb.Name)
		require.Same(t, Void, cb.Return)
		require.True(t, IsVoidPointer(cb.Params[0].Type))
	})
}

func TestBuildEnums(t *testing.T) {
	m := buildFile(t)

	require.Equal(t, []string{
		"ImpellerFillType",
		"ImpellerBlendMode",
		"ImpellerPixelFormat",
		"ImpellerTextureSampling",
	}, names(m.Enums))

	sampling, ok := m.Enum("ImpellerTextureSampling")
	require.True(t, ok)
	require.Equal(t, []EnumMember{
		{"kImpellerTextureSamplingNearestNeighbor", 0},
		{"kImpellerTextureSamplingLinear", 4},
		{"kImpellerTextureSamplingMax", -1},
	}, sampling.Members)

	require.Equal(t, int32(1<<29|1<<22|3<<12), m.Version)
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name      string
		typ       Type
		str, data bool
		void      bool
	}{
		{"char pointer", &Pointer{Elem: Int8, Level: 1}, true, false, false},
		{"nullable char pointer", &Nullable{Elem: &Pointer{Elem: Int8, Level: 1}, Nullable: true}, true, false, false},
		{"char pointer pointer", &Pointer{Elem: Int8, Level: 2}, false, false, false},
		{"byte pointer", &Pointer{Elem: Uint8, Level: 1}, false, true, false},
		{"void pointer", &Pointer{Elem: Void, Level: 1}, false, false, true},
		{"int", Int32, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.str, IsString(tt.typ))
			require.Equal(t, tt.data, IsGenericDataPointer(tt.typ))
			require.Equal(t, tt.void, IsVoidPointer(tt.typ))
		})
	}
}

func TestBuildHandleRule(t *testing.T) {
	src := `
typedef struct Widget_* Widget;
Widget WidgetNew(void);
void WidgetRetain(Widget w);
void WidgetRelease(Widget w);
`

	t.Run("default rule", func(t *testing.T) {
		_, err := buildSource(t, src)
		var uerr *UnknownTypeError
		require.True(t, errors.As(err, &uerr))
		require.Equal(t, "WidgetNew", uerr.Decl)
	})

	t.Run("custom rule", func(t *testing.T) {
		m, err := buildSource(t, src, WithHandleRule(ConventionHandleRule("")))
		require.NoError(t, err)
		require.Len(t, m.Handles, 1)
		require.True(t, m.Handles[0].HasLifecycle())
		require.Equal(t, []string{"WidgetNew"}, functionNames(m.Handles[0].Factories))
	})

	t.Run("predicate", func(t *testing.T) {
		rule := func(td parser.TypeDef, _ *parser.Header) bool { return td.Name == "Widget" }
		m, err := buildSource(t, src, WithHandleRule(rule))
		require.NoError(t, err)
		require.Equal(t, []string{"Widget"}, names(m.Handles))
	})
}

func TestBuildDeprecated(t *testing.T) {
	src := `
__attribute__((deprecated("use ImpellerDrawNew"))) int ImpellerDrawOld(void);
__attribute__((deprecated)) int ImpellerDrawOlder(void);
__attribute__((visibility("default"))) int ImpellerDraw(void);
`
	m, err := buildSource(t, src)
	require.NoError(t, err)

	tests := map[string]string{
		"ImpellerDrawOld":   "use ImpellerDrawNew",
		"ImpellerDrawOlder": "the native function is deprecated.",
		"ImpellerDraw":      "",
	}
	for name, want := range tests {
		f, ok := m.Function(name)
		require.True(t, ok, name)
		require.Equal(t, want, f.Deprecated, name)
	}
}

func TestBuildUnknownTypes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		decl string
	}{
		{"long", "long Size(void);", "Size"},
		{"long double field", "struct S { long double d; };", "S.d"},
		{"union", "union U { int a; float b; };", "U"},
		{"variadic", "int Print(const char* fmt, ...);", "Print"},
		{"incomplete struct", "struct Opaque; void Use(struct Opaque* o);", "Use.o"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildSource(t, tt.src)
			require.Error(t, err)

			var uerr *UnknownTypeError
			require.True(t, errors.As(err, &uerr))
			require.Equal(t, tt.decl, uerr.Decl)
		})
	}
}
