package merkle_test

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filemass/filemass/lib/hashsum"
	"github.com/filemass/filemass/lib/merkle"
)

func TestEmptyFile(t *testing.T) {
	tree := merkle.New(true)
	require.NoError(t, tree.AddData(nil))
	require.NoError(t, tree.Finalize())

	assert.Equal(t, hashsum.Hash(sha256.Sum256(nil)), tree.RootHash())
	assert.True(t, tree.SelfCheck())
}

func TestSingleShortBlock(t *testing.T) {
	tree := merkle.New(true)
	require.NoError(t, tree.AddData([]byte("A")))
	require.NoError(t, tree.Finalize())

	assert.Equal(t, hashsum.Hash(sha256.Sum256([]byte("A"))), tree.RootHash())
	require.NotNil(t, tree.Root())
	assert.Equal(t, uint8(0), tree.Root().Level)
	assert.Equal(t, int64(1), tree.Root().DataSize)
	assert.True(t, tree.SelfCheck())
}

func TestTwoFullBlocks(t *testing.T) {
	zeros := bytes.Repeat([]byte{0}, merkle.BlockSize)

	tree := merkle.New(true)
	require.NoError(t, tree.AddData(zeros))
	require.NoError(t, tree.AddData(zeros))
	require.NoError(t, tree.Finalize())

	leafHash := hashsum.Hash(sha256.Sum256(zeros))
	wantRoot := hashsum.Hash(sha256.Sum256(append(append([]byte{}, leafHash[:]...), leafHash[:]...)))

	assert.Equal(t, wantRoot, tree.RootHash())
	assert.Equal(t, int64(2048), tree.TotalBytes())
	assert.True(t, tree.SelfCheck())

	hashes := tree.ListBlockHashes()
	require.Len(t, hashes, 2)
	assert.Equal(t, leafHash, hashes[0])
	assert.Equal(t, leafHash, hashes[1])
}

func TestShortBlockMustBeLast(t *testing.T) {
	tree := merkle.New(true)
	require.NoError(t, tree.AddData([]byte("short")))
	err := tree.AddData(bytes.Repeat([]byte{1}, merkle.BlockSize))
	assert.ErrorIs(t, err, merkle.ErrShortBlockNotLast)
}

func TestAddDataRejectsOversizeBlock(t *testing.T) {
	tree := merkle.New(true)
	err := tree.AddData(make([]byte, merkle.BlockSize+1))
	assert.ErrorIs(t, err, merkle.ErrBlockTooLarge)
}

func TestAddDataRejectsAfterFinalize(t *testing.T) {
	tree := merkle.New(true)
	require.NoError(t, tree.Finalize())
	err := tree.AddData([]byte("x"))
	assert.ErrorIs(t, err, merkle.ErrFinalized)
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	tree := merkle.New(true)
	for i := 0; i < 5; i++ {
		require.NoError(t, tree.AddData(bytes.Repeat([]byte{byte(i)}, merkle.BlockSize)))
	}
	require.NoError(t, tree.AddData([]byte("tail")))
	require.NoError(t, tree.Finalize())

	var buf bytes.Buffer
	require.NoError(t, tree.Serialize(&buf))

	restored, err := merkle.Deserialize(&buf)
	require.NoError(t, err)

	assert.True(t, tree.Equals(restored))
	assert.Equal(t, tree.RootHash(), restored.RootHash())
	assert.Equal(t, tree.TotalBytes(), restored.TotalBytes())
	assert.True(t, restored.SelfCheck())
}

func TestDeserializeRejectsTruncatedHeader(t *testing.T) {
	_, err := merkle.Deserialize(bytes.NewReader([]byte{0x01, 0x02, 0x03}))
	assert.ErrorIs(t, err, merkle.ErrCorrupted)
}

func TestDeserializeRejectsBadChildLevel(t *testing.T) {
	var buf bytes.Buffer
	// Root at level 2 with a single child incorrectly labeled level 0
	// (should be level 1) — corruption.
	writeRawNode(&buf, 2, 10, hashsum.Hash{})
	writeRawNode(&buf, 0, 10, hashsum.Hash{})

	_, err := merkle.Deserialize(&buf)
	assert.ErrorIs(t, err, merkle.ErrCorrupted)
}

func writeRawNode(buf *bytes.Buffer, level uint8, dataSize int64, hash hashsum.Hash) {
	buf.WriteByte(level)
	var sizeBuf [8]byte
	for i := 0; i < 8; i++ {
		sizeBuf[i] = byte(dataSize >> (8 * i))
	}
	buf.Write(sizeBuf[:])
	buf.Write(hash[:])
}

func TestParityRecoversDamagedBlock(t *testing.T) {
	block0 := bytes.Repeat([]byte{0xAA}, merkle.BlockSize)
	block1 := bytes.Repeat([]byte{0xBB}, merkle.BlockSize)
	block2 := []byte("short tail")

	builder := merkle.NewParityBuilder(2, 4)
	require.NoError(t, builder.AddBlock(block0))
	require.NoError(t, builder.AddBlock(block1))
	require.NoError(t, builder.AddBlock(block2))

	var buf bytes.Buffer
	require.NoError(t, builder.WriteTo(&buf))

	pf, err := merkle.ReadParityFile(&buf)
	require.NoError(t, err)

	blocks := map[int64][]byte{0: block0, 1: block1, 2: block2}
	read := func(i int64) ([merkle.BlockSize]byte, error) {
		var out [merkle.BlockSize]byte
		copy(out[:], blocks[i])
		return out, nil
	}

	target := hashsum.Hash(sha256.Sum256(block1))
	recovered, ok, err := pf.ReconstructBlock(1, 3, merkle.BlockSize, read, target)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, block1, recovered)
}
