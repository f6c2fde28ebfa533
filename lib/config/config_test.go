package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filemass/filemass/lib/config"
)

func TestCreateAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fmrepo.conf")

	store, err := config.Create(path, map[string]string{"repo.name": "archive"})
	require.NoError(t, err)

	v, ok, err := store.Get("repo.name")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "archive", v)

	reloaded, err := config.Load(path)
	require.NoError(t, err)
	v, ok, err = reloaded.Get("repo.name")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "archive", v)
}

func TestCreateRejectsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fmrepo.conf")
	_, err := config.Create(path, nil)
	require.NoError(t, err)

	_, err = config.Create(path, nil)
	assert.Error(t, err)
}

func TestMustGetMissingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fmrepo.conf")
	store, err := config.Create(path, nil)
	require.NoError(t, err)

	_, err = store.MustGet("does.not.exist")
	assert.Error(t, err)
}

func TestSetPersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fmrepo.conf")
	store, err := config.Create(path, nil)
	require.NoError(t, err)

	require.NoError(t, store.Set("repo.uuid", "abc-123"))

	reloaded, err := config.Load(path)
	require.NoError(t, err)
	v, err := reloaded.MustGet("repo.uuid")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", v)
}
