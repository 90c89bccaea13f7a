package merkle_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/merkle"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/source"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestBuildDeterministic(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.py":        "print('hi')\n",
		"pkg/util.py":    "def util(): pass\n",
		"pkg/helpers.py": "def helper(): pass\n",
	})
	policy := source.NewExcludePolicy(nil)

	a, err := merkle.Build(root, policy)
	require.NoError(t, err)
	b, err := merkle.Build(root, policy)
	require.NoError(t, err)

	assert.Equal(t, a.RootHash, b.RootHash)
	assert.Equal(t, a.Nodes["pkg"].Hash, b.Nodes["pkg"].Hash)
	assert.NotEmpty(t, a.Nodes["main.py"].Hash)
}

func TestDirectoryHashPropagates(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.py":     "print('hi')\n",
		"pkg/util.py": "def util(): pass\n",
	})
	policy := source.NewExcludePolicy(nil)

	before, err := merkle.Build(root, policy)
	require.NoError(t, err)

	writeTree(t, root, map[string]string{"pkg/util.py": "def util(): return 1\n"})
	after, err := merkle.Build(root, policy)
	require.NoError(t, err)

	assert.NotEqual(t, before.Nodes["pkg"].Hash, after.Nodes["pkg"].Hash)
	assert.NotEqual(t, before.RootHash, after.RootHash)
	assert.Equal(t, before.Nodes["main.py"].Hash, after.Nodes["main.py"].Hash)
}

func TestDiff(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.py": "a = 1\n",
		"b.py": "b = 2\n",
		"c.py": "c = 3\n",
	})
	policy := source.NewExcludePolicy(nil)
	old, err := merkle.Build(root, policy)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "c.py")))
	writeTree(t, root, map[string]string{
		"b.py": "b = 20\n",
		"d.py": "d = 4\n",
	})
	fresh, err := merkle.Build(root, policy)
	require.NoError(t, err)

	cs := merkle.Diff(old, fresh)
	assert.Equal(t, []string{"d.py"}, cs.Added)
	assert.Equal(t, []string{"b.py"}, cs.Modified)
	assert.Equal(t, []string{"c.py"}, cs.Deleted)
	assert.Equal(t, []string{"a.py"}, cs.Unchanged)
	assert.Equal(t, []string{"b.py", "d.py"}, cs.Reindex())
	assert.Equal(t, []string{"b.py", "c.py"}, cs.Stale())
	assert.False(t, cs.Empty())
}

func TestDiffAgainstNilIsAllAdded(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.py": "a = 1\n"})
	fresh, err := merkle.Build(root, source.NewExcludePolicy(nil))
	require.NoError(t, err)

	cs := merkle.Diff(nil, fresh)
	assert.Equal(t, []string{"a.py"}, cs.Added)
	assert.Empty(t, cs.Unchanged)
}

func TestExcludedFilesInvisible(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.py":              "a = 1\n",
		"node_modules/x.js": "x\n",
		".git/config":       "nope\n",
	})
	tree, err := merkle.Build(root, source.NewExcludePolicy(nil))
	require.NoError(t, err)

	_, ok := tree.Nodes["node_modules/x.js"]
	assert.False(t, ok)
	_, ok = tree.Nodes[".git/config"]
	assert.False(t, ok)
}

func TestSnapshotRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.py": "a = 1\n"})
	tree, err := merkle.Build(root, source.NewExcludePolicy(nil))
	require.NoError(t, err)

	path := merkle.SnapshotPath(t.TempDir(), "codebase")
	require.NoError(t, tree.Save(path))

	loaded := merkle.LoadSnapshot(path)
	require.NotNil(t, loaded)
	assert.Equal(t, tree.RootHash, loaded.RootHash)
	assert.True(t, merkle.Diff(loaded, tree).Empty())
}

func TestLoadSnapshotMissingOrCorrupt(t *testing.T) {
	assert.Nil(t, merkle.LoadSnapshot(filepath.Join(t.TempDir(), "nope.json")))

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	assert.Nil(t, merkle.LoadSnapshot(path))
}
