// Package chunker implements the chunking policy of spec §4.5: a single
// file_chunk for small files, one chunk per extracted symbol when the
// language has a grammar, else a sliding window with overlap.
package chunker

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cerp-labs/codeintel/internal/lang"
)

const (
	// SmallFileLineThreshold is the line count below which a file becomes
	// a single file_chunk rather than being parsed for symbols.
	SmallFileLineThreshold = 100
	// WindowSize is the sliding-window chunk size in lines, used as a
	// fallback when symbol extraction finds nothing (or isn't available).
	WindowSize = 200
	// WindowOverlap is the overlap in lines between consecutive windows.
	WindowOverlap = 50
	// FileChunkSymbolType marks a chunk covering a whole small file.
	FileChunkSymbolType = "file_chunk"
)

// Chunk is one retrievable unit of content, matching the columnar "chunks"
// table row shape from spec §3.
type Chunk struct {
	ID         string
	RepoID     string
	FilePath   string
	Language   string
	SymbolName string
	SymbolType string
	StartLine  int
	EndLine    int
	Content    string
	Vector     []float32 // nil until embedded
}

// ID computes the content-addressed chunk identifier: SHA-256 of
// (repo_id, file_path, symbol_name, start_line).
func ID(repoID, filePath, symbolName string, startLine int) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%d", repoID, filePath, symbolName, startLine)
	return hex.EncodeToString(h.Sum(nil))
}

// Chunker produces Chunk records from file contents.
type Chunker struct {
	registry  *lang.Registry
	extractor *lang.Extractor
}

// New creates a Chunker backed by the default language registry.
func New() *Chunker {
	return &Chunker{registry: lang.NewRegistry(), extractor: lang.NewExtractor()}
}

// Close releases the underlying tree-sitter parser.
func (c *Chunker) Close() {
	c.extractor.Close()
}

// Chunk splits one file's content into chunks per the policy in spec §4.5.
// language is the extension-detected language name (possibly one with no
// grammar, or unknown).
func (c *Chunker) Chunk(ctx context.Context, repoID, filePath string, content []byte, language string) ([]Chunk, error) {
	lineCount := countLines(content)
	if lineCount < SmallFileLineThreshold {
		return []Chunk{c.fileChunk(repoID, filePath, content, language, lineCount)}, nil
	}

	spec, hasSpec := c.registry.ByName(language)
	if hasSpec && spec.HasGrammar {
		symbols, err := c.extractor.ExtractSymbols(ctx, spec, content)
		if err == nil && len(symbols) > 0 {
			return c.symbolChunks(repoID, filePath, language, symbols), nil
		}
	}

	return c.slidingWindowChunks(repoID, filePath, content, language), nil
}

func (c *Chunker) fileChunk(repoID, filePath string, content []byte, language string, lineCount int) Chunk {
	end := lineCount
	if end == 0 {
		end = 1
	}
	return Chunk{
		ID:         ID(repoID, filePath, "", 1),
		RepoID:     repoID,
		FilePath:   filePath,
		Language:   language,
		SymbolType: FileChunkSymbolType,
		StartLine:  1,
		EndLine:    end,
		Content:    string(content),
	}
}

func (c *Chunker) symbolChunks(repoID, filePath, language string, symbols []lang.Symbol) []Chunk {
	chunks := make([]Chunk, 0, len(symbols))
	for _, sym := range symbols {
		chunks = append(chunks, Chunk{
			ID:         ID(repoID, filePath, sym.Name, sym.StartLine),
			RepoID:     repoID,
			FilePath:   filePath,
			Language:   language,
			SymbolName: sym.Name,
			SymbolType: string(sym.Category),
			StartLine:  sym.StartLine,
			EndLine:    sym.EndLine,
			Content:    sym.Text,
		})
	}
	return chunks
}

func (c *Chunker) slidingWindowChunks(repoID, filePath string, content []byte, language string) []Chunk {
	lines := splitLines(content)
	if len(lines) == 0 {
		return nil
	}

	var chunks []Chunk
	start := 0 // 0-based index into lines
	for start < len(lines) {
		end := start + WindowSize
		if end > len(lines) {
			end = len(lines)
		}

		startLine := start + 1 // 1-indexed
		endLine := end
		text := strings.Join(lines[start:end], "\n")

		chunks = append(chunks, Chunk{
			ID:         ID(repoID, filePath, "", startLine),
			RepoID:     repoID,
			FilePath:   filePath,
			Language:   language,
			SymbolType: FileChunkSymbolType,
			StartLine:  startLine,
			EndLine:    endLine,
			Content:    text,
		})

		if end >= len(lines) {
			break
		}
		start = end - WindowOverlap
		if start < 0 {
			start = 0
		}
	}
	return chunks
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := bytes.Count(content, []byte("\n"))
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}

func splitLines(content []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}
