package tagstore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filemass/filemass/lib/hashsum"
	"github.com/filemass/filemass/lib/tag"
	"github.com/filemass/filemass/lib/tagstore"
)

func openTestStore(t *testing.T) *tagstore.Store {
	t.Helper()
	store, err := tagstore.Init(filepath.Join(t.TempDir(), "tagbase.db"))
	require.NoError(t, err)
	return store
}

func fileHash(b byte) hashsum.Hash {
	var h hashsum.Hash
	h[0] = b
	return h
}

func TestAddToCreatesEdgeChain(t *testing.T) {
	store := openTestStore(t)
	fh := fileHash(1)

	football := tag.New("football")
	team := tag.New("team")
	team.AddChild("chicago")

	require.NoError(t, store.AddTo(football, fh, fh))
	require.NoError(t, store.AddTo(team, fh, fh))

	tree, err := store.FindTagsOfFile(fh)
	require.NoError(t, err)
	require.Len(t, tree.Children, 2)

	names := map[string]*tag.Tag{}
	for _, c := range tree.Children {
		names[c.Name] = c
	}
	require.Contains(t, names, "football")
	require.Contains(t, names, "team")
	require.Len(t, names["team"].Children, 1)
	assert.Equal(t, "chicago", names["team"].Children[0].Name)
}

func TestAddToIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	fh := fileHash(2)
	root := tag.New("football")

	require.NoError(t, store.AddTo(root, fh, fh))
	require.NoError(t, store.AddTo(root, fh, fh))

	var count int64
	require.NoError(t, store.DB.Table("edges").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRemoveFromDeletesEdge(t *testing.T) {
	store := openTestStore(t)
	fh := fileHash(3)
	root := tag.New("football")

	require.NoError(t, store.AddTo(root, fh, fh))
	require.NoError(t, store.RemoveFrom(root, fh))

	tree, err := store.FindTagsOfFile(fh)
	require.NoError(t, err)
	assert.Len(t, tree.Children, 0)
}

func TestFindTagsOfFileOrderIndependent(t *testing.T) {
	store := openTestStore(t)
	fh := fileHash(4)

	team := tag.New("team")
	team.AddChild("chicago")
	football := tag.New("football")

	// Insert the nested tag before the sibling. AddTo writes each parent
	// edge before its children, so this checks that both top-level tags
	// are reassembled; it does not park a child ahead of its parent.
	require.NoError(t, store.AddTo(team, fh, fh))
	require.NoError(t, store.AddTo(football, fh, fh))

	tree, err := store.FindTagsOfFile(fh)
	require.NoError(t, err)
	assert.Len(t, tree.Children, 2)
}
