package main

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ardanlabs/impeller-interop/generator"
	"github.com/ardanlabs/impeller-interop/parser"
)

func noEnv(string) string { return "" }

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stderr bytes.Buffer
	cmd := newCLI(noEnv)
	cmd.SetArgs(args)
	cmd.SetOut(&stderr)
	cmd.SetErr(&stderr)

	err := cmd.Execute()
	return stderr.String(), err
}

func headerPath(t *testing.T) string {
	t.Helper()

	path, err := filepath.Abs(filepath.Join("testdata", "impeller.h"))
	require.NoError(t, err)
	return path
}

func TestArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"none", []string{}},
		{"two", []string{"a.h", "b.h"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.Error(t, err)
			require.Contains(t, out, "Usage:")
		})
	}
}

func TestMissingHeader(t *testing.T) {
	_, err := execute(t, filepath.Join(t.TempDir(), "missing.h"))
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestParseFailure(t *testing.T) {
	dir := t.TempDir()
	header := filepath.Join(dir, "bad.h")
	require.NoError(t, os.WriteFile(header, []byte("#define IMPELLER_VERSION 1\nwidget w;\n"), 0o644))

	out := filepath.Join(dir, "out", generator.FileName)
	stderr, err := execute(t, "--out", out, header)

	var perr *parser.ParseError
	require.True(t, errors.As(err, &perr))
	require.Contains(t, stderr, header+":")
	require.Contains(t, stderr, `unknown type name "widget"`)

	_, err = os.Stat(filepath.Dir(out))
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestMissingRetainRelease(t *testing.T) {
	dir := t.TempDir()
	header := filepath.Join(dir, "impeller.h")
	src := `#define IMPELLER_VERSION 1
typedef struct ImpellerFoo_* ImpellerFoo;
ImpellerFoo ImpellerFooNew(void);
`
	require.NoError(t, os.WriteFile(header, []byte(src), 0o644))

	out := filepath.Join(dir, generator.FileName)
	_, err := execute(t, "--out", out, header)

	var merr *generator.MissingRetainReleasePairError
	require.True(t, errors.As(err, &merr))
	require.Equal(t, "ImpellerFoo", merr.Handle)

	_, err = os.Stat(out)
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestOutputLocation(t *testing.T) {
	header := headerPath(t)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/app\n"), 0o644))
	work := filepath.Join(root, "cmd", "app")
	require.NoError(t, os.MkdirAll(work, 0o755))
	t.Chdir(work)

	stderr, err := execute(t, header)
	require.NoError(t, err)
	require.Contains(t, stderr, "bindings written")

	data, err := os.ReadFile(filepath.Join(root, "impeller", generator.FileName))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "// Code generated by impeller-interop from impeller.h. DO NOT EDIT."))
	require.Contains(t, string(data), "\npackage impeller\n")

	entries, err := os.ReadDir(filepath.Join(root, "impeller"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestNoModuleRoot(t *testing.T) {
	_, err := findModuleRoot(t.TempDir())
	require.ErrorContains(t, err, "no go.mod found")
}

func TestFlags(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "gfx", "impeller.go")

	registry := filepath.Join(dir, "registry.yaml")
	require.NoError(t, os.WriteFile(registry, []byte(`
functions: [ImpellerContextCreateOpenGLESNew, ImpellerPaintSetBlendMode]
externalStructs:
  ImpellerMatrix: nimpeller.Matrix
marshallers:
  ImpellerMapping:
    type: "*nimpeller.Mapping"
    marshal: nimpeller.MarshalMapping
`), 0o644))

	stderr, err := execute(t, "--out", out, "--package", "gfx", "--registry", registry, "--report", headerPath(t))
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Contains(t, string(data), "\npackage gfx\n")
	require.NotContains(t, string(data), "func (p *ImpellerPaint) SetBlendMode(")

	require.Contains(t, stderr, "FUNCTION")
	require.Contains(t, stderr, "ImpellerPaintSetBlendMode")
	require.Contains(t, stderr, "function needs manual interop")
}

func TestVerbose(t *testing.T) {
	out := filepath.Join(t.TempDir(), generator.FileName)

	stderr, err := execute(t, "-v", "--out", out, headerPath(t))
	require.NoError(t, err)
	require.Contains(t, stderr, "level=DEBUG")
	require.Contains(t, stderr, "model built")

	var buf bytes.Buffer
	cmd := newCLI(func(key string) string {
		if key == "IMPELLER_INTEROP_DEBUG" {
			return "1"
		}
		return ""
	})
	cmd.SetArgs([]string{"--out", out, headerPath(t)})
	cmd.SetErr(&buf)
	require.NoError(t, cmd.Execute())
	require.Contains(t, buf.String(), "bindings generated")
}
