package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_SmallFileIsSingleFileChunk(t *testing.T) {
	c := New()
	defer c.Close()

	content := []byte("package main\n\nfunc main() {}\n")
	chunks, err := c.Chunk(context.Background(), "repo1", "main.go", content, "go")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, FileChunkSymbolType, chunks[0].SymbolType)
	assert.Equal(t, 1, chunks[0].StartLine)
}

func TestChunker_LargeFileWithSymbolsProducesOneChunkPerSymbol(t *testing.T) {
	c := New()
	defer c.Close()

	var b strings.Builder
	b.WriteString("package main\n\n")
	for i := 0; i < 10; i++ {
		b.WriteString("func F")
		b.WriteString(string(rune('A' + i)))
		b.WriteString("() {\n")
		for j := 0; j < 15; j++ {
			b.WriteString("\t_ = 1\n")
		}
		b.WriteString("}\n\n")
	}
	content := []byte(b.String())
	require.Greater(t, countLines(content), SmallFileLineThreshold)

	chunks, err := c.Chunk(context.Background(), "repo1", "big.go", content, "go")
	require.NoError(t, err)
	require.Len(t, chunks, 10)
	for _, ch := range chunks {
		assert.Equal(t, "function", ch.SymbolType)
		assert.NotEmpty(t, ch.SymbolName)
	}
}

func TestChunker_LargeFileNoSymbolsFallsBackToSlidingWindow(t *testing.T) {
	c := New()
	defer c.Close()

	var b strings.Builder
	for i := 0; i < 500; i++ {
		b.WriteString("just some text without any symbols\n")
	}
	content := []byte(b.String())

	chunks, err := c.Chunk(context.Background(), "repo1", "NOTES.txt", content, "text")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, WindowSize, chunks[0].EndLine)
	if len(chunks) > 1 {
		assert.Equal(t, chunks[0].EndLine-WindowOverlap+1, chunks[1].StartLine)
	}
	assert.Equal(t, 500, chunks[len(chunks)-1].EndLine)
}

func TestChunkID_StableForSameInputs(t *testing.T) {
	id1 := ID("repo1", "a.go", "Foo", 10)
	id2 := ID("repo1", "a.go", "Foo", 10)
	assert.Equal(t, id1, id2)

	id3 := ID("repo1", "a.go", "Bar", 10)
	assert.NotEqual(t, id1, id3)
}
