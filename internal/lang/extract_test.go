package lang

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ByExtension(t *testing.T) {
	r := NewRegistry()

	spec, ok := r.ByExtension(".go")
	require.True(t, ok)
	assert.Equal(t, "go", spec.Name)
	assert.True(t, spec.HasGrammar)

	spec, ok = r.ByExtension(".rs")
	require.True(t, ok)
	assert.Equal(t, "rust", spec.Name)
	assert.False(t, spec.HasGrammar, "rust has no wired tree-sitter grammar")

	_, ok = r.ByExtension(".unknown")
	assert.False(t, ok)
}

func TestExtractor_GoSymbols(t *testing.T) {
	src := []byte(`package main

func Add(a, b int) int {
	return a + b
}

type Point struct {
	X, Y int
}
`)
	r := NewRegistry()
	spec, _ := r.ByExtension(".go")
	e := NewExtractor()
	defer e.Close()

	symbols, err := e.ExtractSymbols(context.Background(), spec, src)
	require.NoError(t, err)
	require.Len(t, symbols, 2)

	assert.Equal(t, "Add", symbols[0].Name)
	assert.Equal(t, CategoryFunction, symbols[0].Category)
	assert.Equal(t, 3, symbols[0].StartLine)

	assert.Equal(t, "Point", symbols[1].Name)
	assert.Equal(t, CategoryStruct, symbols[1].Category)
}

func TestExtractor_GoReferences(t *testing.T) {
	src := []byte(`package main

import "fmt"

func main() {
	fmt.Println("hi")
}
`)
	r := NewRegistry()
	spec, _ := r.ByExtension(".go")
	e := NewExtractor()
	defer e.Close()

	refs, err := e.ExtractReferences(context.Background(), spec, src)
	require.NoError(t, err)

	var sawImport, sawCall bool
	for _, ref := range refs {
		if ref.EdgeType == EdgeImports && ref.Name == "fmt" {
			sawImport = true
		}
		if ref.EdgeType == EdgeCalls && ref.Name == "Println" {
			sawCall = true
		}
	}
	assert.True(t, sawImport, "expected an imports edge for fmt")
	assert.True(t, sawCall, "expected a calls edge for Println")
}

func TestExtractor_PythonClassBasesAreImplementsEdges(t *testing.T) {
	src := []byte(`class Base:
    pass

class Derived(Base):
    def method(self):
        helper()
`)
	r := NewRegistry()
	spec, _ := r.ByExtension(".py")
	e := NewExtractor()
	defer e.Close()

	refs, err := e.ExtractReferences(context.Background(), spec, src)
	require.NoError(t, err)

	var sawImplements, sawCall bool
	for _, ref := range refs {
		if ref.EdgeType == EdgeImplements && ref.Name == "Base" {
			sawImplements = true
		}
		if ref.EdgeType == EdgeCalls && ref.Name == "helper" {
			sawCall = true
		}
	}
	assert.True(t, sawImplements)
	assert.True(t, sawCall)
}

func TestExtractor_NoGrammarReturnsError(t *testing.T) {
	r := NewRegistry()
	spec, ok := r.ByExtension(".rs")
	require.True(t, ok)

	e := NewExtractor()
	defer e.Close()

	_, err := e.ExtractSymbols(context.Background(), spec, []byte("fn main() {}"))
	assert.Error(t, err)
}

func TestStripQuotes(t *testing.T) {
	assert.Equal(t, "fmt", stripQuotes(`"fmt"`))
	assert.Equal(t, "fmt", stripQuotes("'fmt'"))
	assert.Equal(t, "fmt", stripQuotes("fmt"))
}
