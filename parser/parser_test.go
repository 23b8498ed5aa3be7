package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFile(t *testing.T) {
	h, err := ParseFile("../testdata/impeller.h")
	require.NoError(t, err)

	require.Len(t, h.Functions, 48)
	require.Len(t, h.Enums, 5)

	t.Run("handles", func(t *testing.T) {
		td, ok := h.TypeDef("ImpellerPaint")
		require.True(t, ok)
		require.Equal(t, KindPointer, td.SourceType.Kind)
		require.Equal(t, KindStruct, td.SourceType.Elem.Kind)
		require.Equal(t, "ImpellerPaint_", td.SourceType.Elem.Name)

		s, ok := h.Struct("ImpellerPaint_")
		require.True(t, ok)
		require.False(t, s.Defined)
	})

	t.Run("structs", func(t *testing.T) {
		s, ok := h.Struct("ImpellerColor")
		require.True(t, ok)
		require.True(t, s.Defined)

		var names []string
		for _, f := range s.Fields {
			names = append(names, f.Name)
		}
		require.Equal(t, []string{"red", "green", "blue", "alpha"}, names)

		m, ok := h.Struct("ImpellerMatrix")
		require.True(t, ok)
		require.Len(t, m.Fields, 1)
		require.Equal(t, KindArray, m.Fields[0].Type.Kind)
		require.Equal(t, 16, m.Fields[0].Type.Size)
	})

	t.Run("version", func(t *testing.T) {
		last := h.Enums[len(h.Enums)-1]
		require.Equal(t, VersionEnum, last.Name)
		require.Equal(t, []EnumValue{{Name: VersionMember, Value: 1<<29 | 1<<22 | 3<<12}}, last.Values)
	})

	t.Run("nullability", func(t *testing.T) {
		f := findFunction(t, h, "ImpellerSurfaceGetContext")
		require.Equal(t, NullNullable, f.Nullability)
		require.Equal(t, NullNonNull, f.Params[0].Nullability)

		f = findFunction(t, h, "ImpellerGetVersion")
		require.Equal(t, NullUnspecified, f.Nullability)
		require.Empty(t, f.Params)
	})

	t.Run("function pointer typedef", func(t *testing.T) {
		td, ok := h.TypeDef("ImpellerProcAddressCallback")
		require.True(t, ok)
		require.Equal(t, NullNullable, td.Nullability)
		require.Equal(t, KindPointer, td.SourceType.Kind)

		fn := td.SourceType.Elem
		require.Equal(t, KindFunc, fn.Kind)
		require.Equal(t, "void*", fn.Elem.String())
		require.Len(t, fn.Params, 2)
		require.Equal(t, "proc_name", fn.Params[0].Name)
		require.Equal(t, NullNonNull, fn.Params[0].Nullability)
	})
}

func findFunction(t *testing.T, h *Header, name string) Function {
	t.Helper()
	for _, f := range h.Functions {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("function %s not found", name)
	return Function{}
}

func TestPreprocess(t *testing.T) {
	src := "#include <stdint.h>\n#define IMPELLER_NULLABLE _Nullable\n#define IMPELLER_VERSION 7\n"
	out := Preprocess(src, defaultOptions())

	require.NotContains(t, out, "#include")
	require.Contains(t, out, `#define IMPELLER_NULLABLE __attribute__((annotate("nullable")))`)
	require.Contains(t, out, "ImpellerVersion = IMPELLER_VERSION")
}

func TestParseMacros(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []EnumValue
	}{
		{
			name: "object macro",
			src:  "#define TWO 2\nenum E { A = TWO, B };",
			want: []EnumValue{{"A", 2}, {"B", 3}},
		},
		{
			name: "function macro",
			src:  "#define ADD(a, b) ((a) + (b))\nenum E { A = ADD(1, 2) };",
			want: []EnumValue{{"A", 3}},
		},
		{
			name: "pasting",
			src:  "#define NAME(x) kE##x\nenum E { NAME(One) = 1, NAME(Two) };",
			want: []EnumValue{{"kEOne", 1}, {"kETwo", 2}},
		},
		{
			name: "conditionals",
			src:  "#define ON 1\n#if defined(ON) && ON > 0\nenum E { A = 1 };\n#else\nenum E { A = 2 };\n#endif",
			want: []EnumValue{{"A", 1}},
		},
		{
			name: "elif",
			src:  "#if 0\nenum E { A = 1 };\n#elif 1\nenum E { A = 2 };\n#else\nenum E { A = 3 };\n#endif",
			want: []EnumValue{{"A", 2}},
		},
		{
			name: "undef",
			src:  "#define X 1\n#undef X\n#ifdef X\nenum E { A = 1 };\n#else\nenum E { A = 0 };\n#endif",
			want: []EnumValue{{"A", 0}},
		},
		{
			name: "self reference",
			src:  "#define A A\nenum E { A };",
			want: []EnumValue{{"A", 0}},
		},
		{
			name: "expressions",
			src:  "enum E { A = 1 << 4, B = A | 3, C = -1, D = ~0U & 0xFF, F = (int)0xFFFFFFFF, G = 'a', H = (uint8_t)300 };",
			want: []EnumValue{{"A", 16}, {"B", 19}, {"C", -1}, {"D", 255}, {"F", -1}, {"G", 97}, {"H", 44}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Parse(tt.src + "\n#define IMPELLER_VERSION 1\n")
			require.NoError(t, err)
			require.Equal(t, "E", h.Enums[0].Name)
			require.Equal(t, tt.want, h.Enums[0].Values)
		})
	}
}

func TestParseDeclarations(t *testing.T) {
	src := `
#define IMPELLER_VERSION 1
#define IMPELLER_NULLABLE
#define IMPELLER_NONNULL

typedef struct Handle_* Handle;
typedef struct { int a; char* b[4]; } Anon;
typedef enum { kOne = 1 } AnonEnum;
typedef int (*Compare)(const void* IMPELLER_NONNULL, const void*);

struct Forward;

static inline int Helper(int x) { return x + 1; }

extern "C" {
Handle IMPELLER_NULLABLE Lookup(const char* IMPELLER_NONNULL name, ...);
void Sort(int values[8], Compare cmp);
unsigned long long Size(void), Count();
}
`
	h, err := Parse(src)
	require.NoError(t, err)

	anon, ok := h.Struct("Anon")
	require.True(t, ok)
	require.True(t, anon.Defined)
	require.Equal(t, "char*[4]", anon.Fields[1].Type.String())

	require.Equal(t, "AnonEnum", h.Enums[0].Name)

	fwd, ok := h.Struct("Forward")
	require.True(t, ok)
	require.False(t, fwd.Defined)

	require.Len(t, h.Functions, 4)

	lookup := h.Functions[0]
	require.Equal(t, "Lookup", lookup.Name)
	require.True(t, lookup.IsVariadic)
	require.Equal(t, NullNullable, lookup.Nullability)
	require.Equal(t, NullNonNull, lookup.Params[0].Nullability)

	sort := h.Functions[1]
	require.Equal(t, KindPointer, sort.Params[0].Type.Kind)
	require.Equal(t, "Compare", sort.Params[1].Type.Name)

	require.Equal(t, "unsigned long long", h.Functions[2].ReturnType.Name)
	require.Equal(t, "Count", h.Functions[3].Name)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"unknown type", "Widget Make(void);", `unknown type name "Widget"`},
		{"missing semicolon", "int Make(void)\nint Other(void);", `expected ";"`},
		{"error directive", "#error unsupported platform", "#error unsupported platform"},
		{"unterminated if", "#if 1\nint Make(void);", "unterminated conditional directive"},
		{"bit-field", "struct S { int a : 3; };", "bit-field a is not supported"},
		{"unknown macro arg count", "#define F(a, b) a\nenum E { A = F(1) };", "macro F expects 2 arguments, got 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src + "\n#define IMPELLER_VERSION 1\n")
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			require.NotEmpty(t, perr.Diagnostics)

			found := false
			for _, d := range perr.Diagnostics {
				if strings.Contains(d.Msg, tt.msg) {
					found = true
				}
			}
			require.True(t, found, "diagnostics %v do not mention %q", perr.Diagnostics, tt.msg)
		})
	}
}

func TestParseErrorMessage(t *testing.T) {
	err := &ParseError{Diagnostics: []Diagnostic{{Line: 3, Col: 1, Msg: "boom"}}}
	require.Equal(t, "parse failed: 3:1: boom", err.Error())

	err.Diagnostics = append(err.Diagnostics, Diagnostic{Line: 4, Col: 2, Msg: "again"})
	require.Equal(t, "parse failed with 2 errors: 3:1: boom", err.Error())
}
