package tagquery_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filemass/filemass/lib/hashsum"
	"github.com/filemass/filemass/lib/tagparser"
	"github.com/filemass/filemass/lib/tagquery"
	"github.com/filemass/filemass/lib/tagstore"
)

func fileHash(b byte) hashsum.Hash {
	var h hashsum.Hash
	h[0] = b
	return h
}

func openTestStore(t *testing.T) *tagstore.Store {
	t.Helper()
	store, err := tagstore.Init(filepath.Join(t.TempDir(), "tagbase.db"))
	require.NoError(t, err)
	return store
}

func tagFile(t *testing.T, store *tagstore.Store, fh hashsum.Hash, tagList string) {
	t.Helper()
	root, err := tagparser.ParseTagList(tagList)
	require.NoError(t, err)
	for _, child := range root.Children {
		require.NoError(t, store.AddTo(child, fh, fh))
	}
}

func TestQueryPrecedenceScenario(t *testing.T) {
	store := openTestStore(t)
	a, b, c := fileHash(1), fileHash(2), fileHash(3)

	tagFile(t, store, a, "football,team[chicago]")
	tagFile(t, store, b, "football,team[boston]")
	tagFile(t, store, c, "team[chicago]")

	query, err := tagparser.ParseTagQuery("football & team[chicago | losangeles]")
	require.NoError(t, err)

	engine := tagquery.NewEngine(store)
	results, err := engine.FindIn(hashsum.Zero, query)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, a, results[0])
}

func TestNegationRewriteEquivalence(t *testing.T) {
	store := openTestStore(t)
	a, b, c := fileHash(1), fileHash(2), fileHash(3)

	tagFile(t, store, a, "football,team")
	tagFile(t, store, b, "football")
	tagFile(t, store, c, "team")

	engine := tagquery.NewEngine(store)

	notAnd, err := engine.FindIn(hashsum.Zero, tagquery.Not(tagquery.And(
		tagquery.HasChild("football"), tagquery.HasChild("team"),
	)))
	require.NoError(t, err)

	orNots, err := engine.FindIn(hashsum.Zero, tagquery.Or(
		tagquery.Not(tagquery.HasChild("football")), tagquery.Not(tagquery.HasChild("team")),
	))
	require.NoError(t, err)

	assert.ElementsMatch(t, notAnd, orNots)
}

func TestHasDescendantFindsAnyDepth(t *testing.T) {
	store := openTestStore(t)
	a := fileHash(1)
	tagFile(t, store, a, "team[chicago]")

	engine := tagquery.NewEngine(store)
	results, err := engine.FindIn(hashsum.Zero, tagquery.HasDescendant("chicago"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, a, results[0])
}

func TestMatchesAndAddToIdempotence(t *testing.T) {
	store := openTestStore(t)
	a := fileHash(1)
	tagFile(t, store, a, "football")
	tagFile(t, store, a, "football")

	var count int64
	require.NoError(t, store.DB.Table("edges").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	engine := tagquery.NewEngine(store)
	ok, err := engine.Matches(a, tagquery.HasChild("football"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchesHasDescendantUpToDepthThree(t *testing.T) {
	store := openTestStore(t)
	a := fileHash(1)
	tagFile(t, store, a, "team[chicago[bears]]")

	engine := tagquery.NewEngine(store)

	ok, err := engine.Matches(a, tagquery.HasDescendant("team"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = engine.Matches(a, tagquery.HasDescendant("chicago"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = engine.Matches(a, tagquery.HasDescendant("bears"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchesHasDescendantBeyondDepthThreeNotImplemented(t *testing.T) {
	store := openTestStore(t)
	a := fileHash(1)
	tagFile(t, store, a, "team[chicago[bears[superbowl]]]")

	engine := tagquery.NewEngine(store)
	_, err := engine.Matches(a, tagquery.HasDescendant("superbowl"))
	assert.ErrorIs(t, err, tagquery.ErrNotImplemented)
}

func TestNonRootHasDescendantNotImplemented(t *testing.T) {
	store := openTestStore(t)
	engine := tagquery.NewEngine(store)

	_, err := engine.FindIn(fileHash(9), tagquery.HasDescendant("x"))
	assert.ErrorIs(t, err, tagquery.ErrNotImplemented)
}
