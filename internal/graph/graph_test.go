package graph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerp-labs/codeintel/internal/lang"
	"github.com/cerp-labs/codeintel/internal/storage"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBuilder_BuildResolvesSameFileCall(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n\nfunc Bar() {}\n\nfunc Foo() {\n\tBar()\n}\n")

	store := openTestStore(t)
	builder := NewBuilder(store, nil)
	defer builder.Close()

	result, err := builder.Build(context.Background(), "repo1", dir, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.EdgeCount, 1)

	edges, err := store.QueryEdges(context.Background(), storage.NewFilter().Eq("repo_id", "repo1").Eq("edge_type", "calls"), 0)
	require.NoError(t, err)
	require.NotEmpty(t, edges)

	var found bool
	for _, e := range edges {
		if e.TargetName == "Bar" {
			found = true
			assert.Equal(t, "a.go", e.TargetFile)
			assert.Equal(t, "Foo", e.SourceSymbol)
		}
	}
	assert.True(t, found, "expected a calls edge targeting Bar resolved to the same file")
}

func TestBuilder_BuildDeletesPriorEdges(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n\nfunc Bar() {}\n\nfunc Foo() {\n\tBar()\n}\n")

	store := openTestStore(t)
	builder := NewBuilder(store, nil)
	defer builder.Close()

	_, err := builder.Build(context.Background(), "repo1", dir, nil)
	require.NoError(t, err)

	writeFile(t, dir, "a.go", "package a\n\nfunc Bar() {}\n")
	_, err = builder.Build(context.Background(), "repo1", dir, nil)
	require.NoError(t, err)

	edges, err := store.QueryEdges(context.Background(), storage.NewFilter().Eq("repo_id", "repo1"), 0)
	require.NoError(t, err)
	for _, e := range edges {
		assert.NotEqual(t, "Bar", e.TargetName, "edges from the prior build must not survive a rebuild")
	}
}

func TestContainingSymbol_TieBreaksOnSmallestSpan(t *testing.T) {
	symbols := []SymbolInfo{
		{Name: "Outer", StartLine: 1, EndLine: 100},
		{Name: "Inner", StartLine: 10, EndLine: 20},
	}
	assert.Equal(t, "Inner", containingSymbol(symbols, 15))
	assert.Equal(t, "Outer", containingSymbol(symbols, 50))
	assert.Equal(t, "", containingSymbol(symbols, 200))
}

func TestOwnerIndex_AmbiguityYieldsEmptyFile(t *testing.T) {
	owners := newOwnerIndex()
	owners.add("Helper", "a.go")
	owners.add("Helper", "b.go")

	_, ok := owners.uniqueOwner("Helper")
	assert.False(t, ok)

	owners.add("Unique", "c.go")
	file, ok := owners.uniqueOwner("Unique")
	assert.True(t, ok)
	assert.Equal(t, "c.go", file)
}

func TestBuildImportMap_RsplitsOnDoubleColonThenSlash(t *testing.T) {
	refs := []lang.Reference{
		{Name: "std::collections::HashMap", EdgeType: lang.EdgeImports},
		{Name: "github.com/foo/bar", EdgeType: lang.EdgeImports},
	}
	m := buildImportMap(refs)
	assert.Equal(t, "std::collections::HashMap", m["HashMap"])
	assert.Equal(t, "github.com/foo/bar", m["bar"])
}

func TestResolveTarget_Precedence(t *testing.T) {
	owners := newOwnerIndex()
	owners.add("Global", "g.go")
	imports := importMap{"Imported": "pkg::Imported"}
	direct := []SymbolInfo{{Name: "Local", StartLine: 1, EndLine: 5}}

	res := resolveTarget("pkg::Qualified", lang.EdgeCalls, imports, "current.go", direct, owners)
	assert.Equal(t, "pkg::Qualified", res.Qualified)

	res = resolveTarget("Imported", lang.EdgeCalls, imports, "current.go", direct, owners)
	assert.Equal(t, "pkg::Imported", res.Qualified)

	res = resolveTarget("Local", lang.EdgeCalls, imports, "current.go", direct, owners)
	assert.Equal(t, "current.go", res.File)

	res = resolveTarget("Global", lang.EdgeCalls, imports, "current.go", direct, owners)
	assert.Equal(t, "g.go", res.File)

	res = resolveTarget("Unknown", lang.EdgeCalls, imports, "current.go", direct, owners)
	assert.Equal(t, "", res.Qualified)
	assert.Equal(t, "", res.File)
}
