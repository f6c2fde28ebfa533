package repository

import (
	"bufio"
	"crypto/sha256"
	"io"
	"os"

	"github.com/filemass/filemass/lib/hashsum"
	"github.com/filemass/filemass/lib/merkle"
)

// ErrorCheck verifies a stored blob against its tree sidecar: every
// block's SHA-256, the final block's length, and the total length must
// agree. A missing blob or sidecar is NotFound, any mismatch is Error.
func (r *Repository) ErrorCheck(h hashsum.Hash) (CheckStatus, error) {
	blobPath := r.BlobPath(h)
	treePath := r.TreePath(h)

	treeFile, err := os.Open(treePath)
	if os.IsNotExist(err) {
		return NotFound, nil
	}
	if err != nil {
		return Error, err
	}
	defer treeFile.Close()

	storedTree, err := merkle.Deserialize(bufio.NewReader(treeFile))
	if err != nil {
		return Error, nil
	}

	blobFile, err := os.Open(blobPath)
	if os.IsNotExist(err) {
		return NotFound, nil
	}
	if err != nil {
		return Error, err
	}
	defer blobFile.Close()

	hashes := storedTree.ListBlockHashes()
	totalBlocks := int64(len(hashes))
	totalBytes := storedTree.TotalBytes()
	reader := bufio.NewReaderSize(blobFile, merkle.BlockSize)
	buf := make([]byte, merkle.BlockSize)
	var total int64

	for i, want := range hashes {
		wantLen := merkle.BlockSize
		if int64(i) == totalBlocks-1 {
			wantLen = int(totalBytes - (totalBlocks-1)*merkle.BlockSize)
		}

		n, rerr := io.ReadFull(reader, buf[:wantLen])
		if rerr != nil && rerr != io.ErrUnexpectedEOF && rerr != io.EOF {
			return Error, rerr
		}
		if n != wantLen {
			return Error, nil
		}
		got := hashsum.Hash(sha256.Sum256(buf[:n]))
		if got != want {
			return Error, nil
		}
		total += int64(n)
	}

	extra := make([]byte, 1)
	if n, _ := reader.Read(extra); n > 0 {
		return Error, nil
	}
	if total != storedTree.TotalBytes() {
		return Error, nil
	}

	return AllOk, nil
}
