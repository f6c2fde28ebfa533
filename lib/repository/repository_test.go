package repository_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filemass/filemass/lib/merkle"
	"github.com/filemass/filemass/lib/repository"
)

func TestInitAndOpen(t *testing.T) {
	dir := t.TempDir()

	repo, err := repository.Init(dir)
	require.NoError(t, err)

	id, ok, err := repo.Config.Get("uuid")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, id)

	reopened, err := repository.Open(dir)
	require.NoError(t, err)
	reopenedID, _, _ := reopened.Config.Get("uuid")
	assert.Equal(t, id, reopenedID)
}

func TestInitRejectsNonEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clutter"), []byte("x"), 0644))

	_, err := repository.Init(dir)
	assert.ErrorIs(t, err, repository.ErrNotEmpty)
}

func TestAddEmptyFile(t *testing.T) {
	dir := t.TempDir()
	repo, err := repository.Init(dir)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(src, nil, 0644))

	h, wasNew, err := repo.Add(src)
	require.NoError(t, err)
	assert.True(t, wasNew)

	status, err := repo.ErrorCheck(h)
	require.NoError(t, err)
	assert.Equal(t, repository.AllOk, status)
}

func TestAddTwiceIsNotNew(t *testing.T) {
	dir := t.TempDir()
	repo, err := repository.Init(dir)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(src, bytes.Repeat([]byte{7}, 3000), 0644))

	h1, wasNew1, err := repo.Add(src)
	require.NoError(t, err)
	assert.True(t, wasNew1)

	h2, wasNew2, err := repo.Add(src)
	require.NoError(t, err)
	assert.False(t, wasNew2)
	assert.Equal(t, h1, h2)
}

func TestErrorFixRepairsSingleByteFlip(t *testing.T) {
	dir := t.TempDir()
	repo, err := repository.Init(dir)
	require.NoError(t, err)

	data := bytes.Repeat([]byte{0x00}, 2048)
	src := filepath.Join(t.TempDir(), "twoblocks.bin")
	require.NoError(t, os.WriteFile(src, data, 0644))

	h, _, err := repo.Add(src)
	require.NoError(t, err)

	status, err := repo.ErrorCheck(h)
	require.NoError(t, err)
	require.Equal(t, repository.AllOk, status)

	blobPath := repo.BlobPath(h)
	corrupted, err := os.ReadFile(blobPath)
	require.NoError(t, err)
	corrupted[512] = 0xFF
	require.NoError(t, os.WriteFile(blobPath, corrupted, 0644))

	status, err = repo.ErrorCheck(h)
	require.NoError(t, err)
	require.Equal(t, repository.Error, status)

	result, err := repo.ErrorFix(h)
	require.NoError(t, err)
	assert.Equal(t, repository.Fixed, result)

	fixed, err := os.ReadFile(blobPath)
	require.NoError(t, err)
	assert.Equal(t, data, fixed)
}

func TestErrorFixReportsWasNotBroken(t *testing.T) {
	dir := t.TempDir()
	repo, err := repository.Init(dir)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "small.bin")
	require.NoError(t, os.WriteFile(src, []byte("A"), 0644))

	h, _, err := repo.Add(src)
	require.NoError(t, err)

	result, err := repo.ErrorFix(h)
	require.NoError(t, err)
	assert.Equal(t, repository.WasNotBroken, result)
}

func TestErrorCheckNotFound(t *testing.T) {
	dir := t.TempDir()
	repo, err := repository.Init(dir)
	require.NoError(t, err)

	var unknown [32]byte
	status, err := repo.ErrorCheck(unknown)
	require.NoError(t, err)
	assert.Equal(t, repository.NotFound, status)
}

func TestAddWritesTreeAndParitySidecars(t *testing.T) {
	dir := t.TempDir()
	repo, err := repository.Init(dir)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(src, bytes.Repeat([]byte{3}, merkle.BlockSize*3+10), 0644))

	h, _, err := repo.Add(src)
	require.NoError(t, err)

	assert.FileExists(t, repo.TreePath(h))
	assert.FileExists(t, repo.ParityPath(h))
}
