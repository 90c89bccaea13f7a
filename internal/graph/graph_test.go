package graph_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/chunker/languages"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/graph"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/source"
)

const appPy = `import os
from helpers import slugify

class Handler:
    def handle(self, req):
        name = slugify(req)
        return os.path.join("out", name)

def run():
    h = Handler()
    return h.handle("x")
`

const helpersPy = `class Base:
    pass

class Slug(Base):
    pass

def slugify(text):
    return text.lower()
`

func buildTestGraph(t *testing.T) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder(languages.Default())
	return b.Build([]source.FileRecord{
		{RelPath: "app.py", Language: "python", Content: appPy},
		{RelPath: "helpers.py", Language: "python", Content: helpersPy},
	})
}

func TestBuildNodes(t *testing.T) {
	g := buildTestGraph(t)

	file, ok := g.Node("app.py")
	require.True(t, ok)
	assert.Equal(t, graph.KindFile, file.Kind)

	method, ok := g.Node("app.py::Handler.handle")
	require.True(t, ok)
	assert.Equal(t, graph.KindMethod, method.Kind)
	assert.Equal(t, "Handler.handle", method.Name)

	fn, ok := g.Node("helpers.py::slugify")
	require.True(t, ok)
	assert.Equal(t, graph.KindFunction, fn.Kind)
	assert.Greater(t, fn.StartLine, 0)

	mod, ok := g.Node("os")
	require.True(t, ok)
	assert.Equal(t, graph.KindExternalModule, mod.Kind)
}

func TestStructuralEdges(t *testing.T) {
	g := buildTestGraph(t)

	assert.Contains(t, g.Edges(), graph.Edge{From: "app.py", To: "app.py::Handler", Relation: graph.RelDefines})
	assert.Contains(t, g.Edges(), graph.Edge{From: "app.py::Handler", To: "app.py::Handler.handle", Relation: graph.RelHasMethod})
	assert.Contains(t, g.Edges(), graph.Edge{From: "app.py", To: "os", Relation: graph.RelImports})
	assert.Contains(t, g.Edges(), graph.Edge{From: "helpers.py::Slug", To: "helpers.py::Base", Relation: graph.RelInheritsFrom})
}

func TestCallResolution(t *testing.T) {
	g := buildTestGraph(t)

	// run() calls Handler() and h.handle; handle calls slugify across files.
	callers := g.Callers("helpers.py::slugify")
	require.Len(t, callers, 1)
	assert.Equal(t, "app.py::Handler.handle", callers[0].ID)

	callees := g.Callees("app.py::run")
	ids := make([]string, 0, len(callees))
	for _, n := range callees {
		ids = append(ids, n.ID)
	}
	assert.Contains(t, ids, "app.py::Handler.handle")
}

func TestCallChain(t *testing.T) {
	g := buildTestGraph(t)

	chain := g.CallChain("app.py::run", "helpers.py::slugify")
	require.NotNil(t, chain)
	require.GreaterOrEqual(t, len(chain), 3)
	assert.Equal(t, "app.py::run", chain[0].ID)
	assert.Equal(t, "helpers.py::slugify", chain[len(chain)-1].ID)

	assert.Nil(t, g.CallChain("helpers.py::slugify", "app.py::run"))
}

func TestResolveSymbol(t *testing.T) {
	g := buildTestGraph(t)

	nodes := g.Resolve("Handler.handle")
	require.Len(t, nodes, 1)
	assert.Equal(t, "app.py::Handler.handle", nodes[0].ID)

	nodes = g.Resolve("slugify")
	require.Len(t, nodes, 1)
	assert.Equal(t, "helpers.py::slugify", nodes[0].ID)

	assert.Empty(t, g.Resolve("nonexistent_symbol"))
}

func TestCallEdgeLines(t *testing.T) {
	g := buildTestGraph(t)

	found := false
	for _, e := range g.Edges() {
		if e.From == "app.py::Handler.handle" && e.To == "helpers.py::slugify" {
			found = true
			assert.Equal(t, graph.RelCalls, e.Relation)
			assert.Equal(t, 6, e.Line)
		}
	}
	require.True(t, found)
}

const decoratedPy = `def register(cls):
    return cls

@register
class Plugin:
    @register
    def run(self):
        return register(self)

@register
def helper():
    return None
`

func TestDecoratedDefinitions(t *testing.T) {
	b := graph.NewBuilder(languages.Default())
	g := b.Build([]source.FileRecord{
		{RelPath: "plug.py", Language: "python", Content: decoratedPy},
	})

	cls, ok := g.Node("plug.py::Plugin")
	require.True(t, ok)
	assert.Equal(t, graph.KindClass, cls.Kind)

	method, ok := g.Node("plug.py::Plugin.run")
	require.True(t, ok)
	assert.Equal(t, graph.KindMethod, method.Kind)

	fn, ok := g.Node("plug.py::helper")
	require.True(t, ok)
	assert.Equal(t, graph.KindFunction, fn.Kind)

	assert.Contains(t, g.Edges(), graph.Edge{From: "plug.py::Plugin", To: "plug.py::Plugin.run", Relation: graph.RelHasMethod})
}

const scriptPy = `def boot():
    return 1

boot()
`

// A file both defines boot and calls it at module level, so two relations
// land on the same node pair.
func TestFileLevelCalls(t *testing.T) {
	b := graph.NewBuilder(languages.Default())
	g := b.Build([]source.FileRecord{
		{RelPath: "script.py", Language: "python", Content: scriptPy},
	})

	callees := g.Callees("script.py")
	require.Len(t, callees, 1)
	assert.Equal(t, "script.py::boot", callees[0].ID)

	callers := g.Callers("script.py::boot")
	require.Len(t, callers, 1)
	assert.Equal(t, "script.py", callers[0].ID)
}

func TestGraphMLRoundTrip(t *testing.T) {
	g := buildTestGraph(t)
	path := filepath.Join(t.TempDir(), "ast_graph.graphml")
	require.NoError(t, g.Save(path))

	loaded, err := graph.Load(path)
	require.NoError(t, err)

	assert.Equal(t, g.Stats(), loaded.Stats())
	n, ok := loaded.Node("app.py::Handler.handle")
	require.True(t, ok)
	assert.Equal(t, graph.KindMethod, n.Kind)
	assert.Equal(t, "app.py", n.FilePath)

	callers := loaded.Callers("helpers.py::slugify")
	require.Len(t, callers, 1)
	assert.Equal(t, "app.py::Handler.handle", callers[0].ID)

	assert.Contains(t, loaded.Edges(), graph.Edge{
		From: "app.py::Handler.handle", To: "helpers.py::slugify",
		Relation: graph.RelCalls, Line: 6,
	})
}

func TestStats(t *testing.T) {
	g := buildTestGraph(t)
	s := g.Stats()
	assert.Equal(t, 2, s.Files)
	assert.Equal(t, 3, s.Classes)
	assert.GreaterOrEqual(t, s.ExternalModules, 2)
	assert.Greater(t, s.Edges, 5)
}
