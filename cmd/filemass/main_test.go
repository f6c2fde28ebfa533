package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filemass/filemass/lib/repository"
)

func TestParseFileHashesSkipsBlanks(t *testing.T) {
	hex64 := strings.Repeat("ab", 32)
	hashes, err := parseFileHashes(" " + hex64 + " , , " + hex64)
	require.NoError(t, err)
	assert.Len(t, hashes, 2)
	assert.Equal(t, hashes[0], hashes[1])
}

func TestParseFileHashesRejectsMalformed(t *testing.T) {
	_, err := parseFileHashes("not-a-hash")
	assert.Error(t, err)
}

func TestRunAddThenCheck(t *testing.T) {
	repoDir := filepath.Join(t.TempDir(), "repo")
	sourcePath := filepath.Join(t.TempDir(), "payload.txt")
	require.NoError(t, os.WriteFile(sourcePath, []byte("filemass"), 0644))

	err := run(repoDir, "", true, false, sourcePath, "", "", "", "", "", "", "")
	require.NoError(t, err)

	repo, err := repository.Open(repoDir)
	require.NoError(t, err)
	h, _, err := repo.Add(sourcePath)
	require.NoError(t, err)

	err = run(repoDir, "", false, false, "", h.Hex(), "", "", "", "", "", "")
	require.NoError(t, err)

	err = run(repoDir, "", false, false, "", "", h.Hex(), "", "", "", "", "")
	require.NoError(t, err)
}

func TestRunAddTagsThenQuery(t *testing.T) {
	tagbasePath := filepath.Join(t.TempDir(), "tagbase.db")
	fileHash := strings.Repeat("ab", 32)

	err := run("", tagbasePath, false, true, "", "", "", fileHash, "", "football", "", "")
	require.NoError(t, err)

	err = run("", tagbasePath, false, false, "", "", "", "", "", "", "", "football")
	require.NoError(t, err)

	err = run("", tagbasePath, false, false, "", "", "", "", "", "", fileHash, "")
	require.NoError(t, err)
}
