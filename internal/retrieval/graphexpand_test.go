package retrieval_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/chunker/languages"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/graph"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/retrieval"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/source"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/vectordb"
)

func TestGraphExpansionAppendsNeighbors(t *testing.T) {
	files := map[string]string{
		"app.py":     "from helpers import slugify\n\ndef run():\n    return slugify(\"x\")\n",
		"helpers.py": "def slugify(text):\n    return text.lower()\n",
	}
	b := graph.NewBuilder(languages.Default())
	g := b.Build([]source.FileRecord{
		{RelPath: "app.py", Language: "python", Content: files["app.py"]},
		{RelPath: "helpers.py", Language: "python", Content: files["helpers.py"]},
	})
	readFile := func(path string) ([]byte, error) {
		content, ok := files[path]
		if !ok {
			return nil, fmt.Errorf("no such file %s", path)
		}
		return []byte(content), nil
	}

	h := hit("app.py_0_70", "app.py", 0.9)
	h.Metadata["symbols"] = "run"
	store := &stubStore{hits: []vectordb.Hit{h}}

	c := retrieval.NewComposer(store, stubEmbedder{}, g, nil, nil, readFile, retrieval.Options{K: 10, TopK: 5})
	results, err := c.Retrieve(context.Background(), "what does run call?")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "app.py_0_70", results[0].ID)
	assert.False(t, results[0].FromGraph)

	neighbor := results[1]
	assert.True(t, neighbor.FromGraph)
	assert.Equal(t, "helpers.py", neighbor.FilePath)
	assert.Contains(t, neighbor.Content, "def slugify")
}

func TestGraphExpansionCapsPerResult(t *testing.T) {
	// run() calls three helpers in three different files; only two may be
	// added.
	files := map[string]string{
		"app.py": "from a import fa\nfrom b import fb\nfrom c import fc\n\ndef run():\n    fa()\n    fb()\n    fc()\n",
		"a.py":   "def fa():\n    pass\n",
		"b.py":   "def fb():\n    pass\n",
		"c.py":   "def fc():\n    pass\n",
	}
	var records []source.FileRecord
	for path, content := range files {
		records = append(records, source.FileRecord{RelPath: path, Language: "python", Content: content})
	}
	g := graph.NewBuilder(languages.Default()).Build(records)
	readFile := func(path string) ([]byte, error) { return []byte(files[path]), nil }

	h := hit("app.py_0_90", "app.py", 0.9)
	h.Metadata["symbols"] = "run"
	store := &stubStore{hits: []vectordb.Hit{h}}

	c := retrieval.NewComposer(store, stubEmbedder{}, g, nil, nil, readFile, retrieval.Options{K: 10, TopK: 5})
	results, err := c.Retrieve(context.Background(), "q")
	require.NoError(t, err)

	var fromGraph int
	for _, r := range results {
		if r.FromGraph {
			fromGraph++
		}
	}
	assert.Equal(t, 2, fromGraph)
}
