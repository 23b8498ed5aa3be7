package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	r := Default()

	require.Equal(t, 1, r.Version)
	require.Equal(t, "Impeller", r.HandlePrefix)
	require.Equal(t, DefaultRuntime, r.Runtime)
	require.Equal(t, Macros{Nullable: "IMPELLER_NULLABLE", NonNull: "IMPELLER_NONNULL", Version: "IMPELLER_VERSION"}, r.Macros)

	require.Len(t, r.Functions, 6)
	require.True(t, r.IsManualFunction("ImpellerContextCreateOpenGLESNew"))
	require.True(t, r.IsManualFunction("ImpellerParagraphBuilderAddText"))
	require.False(t, r.IsManualFunction("ImpellerPaintNew"))

	typ, ok := r.ExternalType("ImpellerMatrix")
	require.True(t, ok)
	require.Equal(t, "nimpeller.Matrix", typ)

	m, ok := r.Marshaller("ImpellerMapping")
	require.True(t, ok)
	require.Equal(t, Marshaller{Type: "*nimpeller.Mapping", Marshal: "nimpeller.MarshalMapping"}, m)

	require.Len(t, r.ParserOptions(), 2)
	require.Len(t, r.ModelOptions(), 2)
}

func TestParse(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		r, err := Parse([]byte("functions: [Foo]\n"))
		require.NoError(t, err)
		require.Equal(t, DefaultHandlePrefix, r.HandlePrefix)
		require.Equal(t, "IMPELLER_VERSION", r.Macros.Version)
		require.True(t, r.IsManualFunction("Foo"))
		require.Empty(t, r.ExternalNames())
	})

	t.Run("external names sorted", func(t *testing.T) {
		r, err := Parse([]byte("externalStructs:\n  B: pkg.B\n  A: pkg.A\n"))
		require.NoError(t, err)
		require.Equal(t, []string{"A", "B"}, r.ExternalNames())
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Parse([]byte("functions: [unterminated\n"))
		require.ErrorContains(t, err, "parse registry")
	})

	t.Run("incomplete marshaller", func(t *testing.T) {
		_, err := Parse([]byte("marshallers:\n  ImpellerMapping:\n    type: Mapping\n"))
		require.ErrorContains(t, err, "marshaller ImpellerMapping")
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("handlePrefix: Flutter\n"), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "Flutter", r.HandlePrefix)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.ErrorContains(t, err, "read registry")
}
