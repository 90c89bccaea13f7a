package chunker_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/chunker"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/chunker/languages"
)

const pythonSample = `import os
from typing import List

class Greeter:
    def greet(self, name):
        if name:
            return "hello " + name
        return "hello"

def farewell(name):
    return "bye " + name
`

func newChunker(t *testing.T, maxTokens int) *chunker.StructuralChunker {
	t.Helper()
	return chunker.New(languages.Default(), maxTokens)
}

func TestChunkSmallFileIsSingleChunk(t *testing.T) {
	c := newChunker(t, 800)
	chunks, err := c.Chunk("pkg/greeter.py", []byte(pythonSample))
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	ch := chunks[0]
	assert.Equal(t, 0, ch.StartByte)
	assert.Equal(t, len(pythonSample), ch.EndByte)
	assert.Equal(t, pythonSample, ch.Content)
	assert.Contains(t, ch.SymbolsDefined, "Greeter")
	assert.Contains(t, ch.SymbolsDefined, "Greeter.greet")
	assert.Contains(t, ch.SymbolsDefined, "farewell")
}

func TestChunkCoversFileWithoutOverlap(t *testing.T) {
	// Force splitting with a tiny budget, then check the chunks tile the file.
	c := newChunker(t, 20)
	chunks, err := c.Chunk("pkg/greeter.py", []byte(pythonSample))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.Equal(t, 0, chunks[0].StartByte)
	assert.Equal(t, len(pythonSample), chunks[len(chunks)-1].EndByte)
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].EndByte, chunks[i].StartByte,
			"chunk %d must start where chunk %d ends", i, i-1)
	}
}

func TestChunkIDsAreDeterministic(t *testing.T) {
	c := newChunker(t, 20)
	first, err := c.Chunk("pkg/greeter.py", []byte(pythonSample))
	require.NoError(t, err)
	second, err := c.Chunk("pkg/greeter.py", []byte(pythonSample))
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID(), second[i].ID())
	}
}

func TestChunkRejectsBinaryContent(t *testing.T) {
	c := newChunker(t, 800)
	_, err := c.Chunk("blob.py", []byte("data\x00more"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binary")
}

func TestChunkEmptyFileYieldsNothing(t *testing.T) {
	c := newChunker(t, 800)
	chunks, err := c.Chunk("empty.py", []byte("  \n\t\n"))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkUnknownExtensionFallsBackToText(t *testing.T) {
	c := newChunker(t, 800)
	chunks, err := c.Chunk("README.md", []byte("# Title\n\nSome prose about the project.\n"))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "text", chunks[0].Kind)
}

func TestTextFallbackOverlaps(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 400; i++ {
		b.WriteString("paragraph of documentation text number something\n\n")
	}
	c := newChunker(t, 100)
	chunks, err := c.Chunk("notes.txt", []byte(b.String()))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		assert.Less(t, chunks[i].StartByte, chunks[i-1].EndByte,
			"adjacent text chunks should overlap")
	}
}

func TestChunkGoDeclarations(t *testing.T) {
	src := `package main

import "fmt"

type Server struct{ addr string }

func (s *Server) Run() error {
	if s.addr == "" {
		return fmt.Errorf("no addr")
	}
	return nil
}

func main() {}
`
	c := newChunker(t, 800)
	chunks, err := c.Chunk("cmd/main.go", []byte(src))
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	ch := chunks[0]
	assert.Contains(t, ch.SymbolsDefined, "Server")
	assert.Contains(t, ch.SymbolsDefined, "Run")
	assert.Contains(t, ch.SymbolsDefined, "main")
	require.Len(t, ch.ImportsUsed, 1)
	assert.Contains(t, ch.ImportsUsed[0], "fmt")
}

func TestEmbedTextCarriesPath(t *testing.T) {
	c := newChunker(t, 800)
	chunks, err := c.Chunk("pkg/greeter.py", []byte(pythonSample))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasPrefix(chunks[0].EmbedText(), "pkg/greeter.py\n\n"))
}

func TestMergedChunkKind(t *testing.T) {
	// Many small functions under a budget sized so roughly two fit per
	// chunk after the merge pass.
	var b strings.Builder
	b.WriteString("package tiny\n\n")
	for _, name := range []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta"} {
		b.WriteString("func " + name + "() int {\n\treturn len(\"" + strings.Repeat(name+" ", 30) + "\")\n}\n\n")
	}
	perFunc := chunker.CountTokens("func alpha() int {\n\treturn len(\"" + strings.Repeat("alpha ", 30) + "\")\n}\n\n")
	c := newChunker(t, 2*perFunc+60)
	chunks, err := c.Chunk("tiny/tiny.go", []byte(b.String()))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	merged := 0
	for _, ch := range chunks {
		if ch.Kind == "merged" {
			merged++
			assert.NotEmpty(t, ch.SymbolsDefined)
		}
	}
	assert.Greater(t, merged, 0, "expected at least one merged chunk")
}

func TestMergedChunksStayWithinBudget(t *testing.T) {
	var b strings.Builder
	b.WriteString("package tiny\n\n")
	for _, name := range []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta"} {
		b.WriteString("func " + name + "() string {\n\treturn \"" + strings.Repeat(name+" ", 20) + "\"\n}\n\n")
	}
	src := b.String()
	budget := chunker.CountTokens(src) / 2
	c := newChunker(t, budget)

	chunks, err := c.Chunk("tiny/tiny.go", []byte(src))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, chunker.CountTokens(ch.Content), budget,
			"chunk %s must stay within the token budget", ch.ID())
	}
}

func TestSmallFileSplitsAtDeclarations(t *testing.T) {
	// A budget just above the file size: the whole file fits, but the
	// merge slack keeps the declarations from gluing back into one blob.
	budget := chunker.CountTokens(pythonSample) + 20
	c := newChunker(t, budget)
	chunks, err := c.Chunk("pkg/greeter.py", []byte(pythonSample))
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1, "file root must split along declarations")
	for _, ch := range chunks {
		assert.NotEqual(t, "module", ch.Kind)
	}
}

func TestCountTokensPositive(t *testing.T) {
	assert.Greater(t, chunker.CountTokens("hello world"), 0)
	assert.GreaterOrEqual(t, chunker.CountTokens(""), 0)
}
