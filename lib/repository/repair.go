package repository

import (
	"bufio"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/filemass/filemass/lib/hashsum"
	"github.com/filemass/filemass/lib/merkle"
)

// ErrorFix attempts to repair a damaged blob in place, bounded to three
// repair rounds with a re-check between each.
func (r *Repository) ErrorFix(h hashsum.Hash) (FixResult, error) {
	fixedSoFar := false

	for attempt := 0; attempt < 3; attempt++ {
		status, err := r.ErrorCheck(h)
		if err != nil {
			return FailedToFix, err
		}
		switch status {
		case NotFound:
			return FixNotFound, nil
		case AllOk:
			if fixedSoFar {
				return Fixed, nil
			}
			return WasNotBroken, nil
		}

		changed, fatal, err := r.attemptRepair(h)
		if err != nil {
			return FailedToFix, err
		}
		if fatal || !changed {
			return FailedToFix, nil
		}
		fixedSoFar = true
	}

	status, err := r.ErrorCheck(h)
	if err != nil {
		return FailedToFix, err
	}
	if status == AllOk {
		return Fixed, nil
	}
	return FailedToFix, nil
}

// attemptRepair performs one round of the repair algorithm: it decides
// whether the tree sidecar or the blob is the damaged party and fixes
// whichever it can, reporting whether it changed anything on disk and
// whether the damage is unrepairable (fatal).
func (r *Repository) attemptRepair(h hashsum.Hash) (changed, fatal bool, err error) {
	blobPath := r.BlobPath(h)
	treePath := r.TreePath(h)

	newTree, err := buildTreeFromFile(blobPath, true)
	if err != nil {
		return false, false, err
	}

	storedTree, parseErr := loadTreeSidecar(treePath)

	if parseErr != nil {
		if newTree.RootHash() != h {
			return false, true, fmt.Errorf("repository: tree sidecar for %s: %w", h.Hex(), parseErr)
		}
		if err := writeTreeSidecar(treePath, newTree); err != nil {
			return false, false, err
		}
		return true, false, nil
	}

	if newTree.RootHash() == h {
		if !storedTree.Equals(newTree) {
			if err := writeTreeSidecar(treePath, newTree); err != nil {
				return false, false, err
			}
			return true, false, nil
		}
		truncated, err := truncateTreeSidecarIfOversize(treePath, storedTree)
		if err != nil {
			return false, false, err
		}
		if truncated {
			return true, false, nil
		}
		return false, true, nil
	}

	if !storedTree.SelfCheck() {
		return false, true, nil
	}
	if storedTree.RootHash() != h {
		return false, true, fmt.Errorf("%w: hash %s", ErrMislabeled, h.Hex())
	}

	blobInfo, err := os.Stat(blobPath)
	if err != nil {
		return false, false, err
	}
	storedTotal := storedTree.TotalBytes()

	switch {
	case blobInfo.Size() > storedTotal:
		prefixTree, err := buildTreeFromPrefix(blobPath, storedTotal)
		if err != nil {
			return false, false, err
		}
		if prefixTree.Equals(storedTree) {
			if err := os.Truncate(blobPath, storedTotal); err != nil {
				return false, false, err
			}
			return true, false, nil
		}
		return r.repairBlocks(blobPath, storedTree)
	case blobInfo.Size() < storedTotal:
		return false, true, nil
	default:
		return r.repairBlocks(blobPath, storedTree)
	}
}

func loadTreeSidecar(path string) (*merkle.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return merkle.Deserialize(bufio.NewReader(f))
}

// truncateTreeSidecarIfOversize trims a tree sidecar whose on-disk length
// exceeds the length storedTree actually serializes to, which can happen
// if a previous write was interrupted after the true content but before
// an earlier larger file was overwritten in place.
func truncateTreeSidecarIfOversize(path string, storedTree *merkle.Tree) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}

	var buf writeCounter
	if err := storedTree.Serialize(&buf); err != nil {
		return false, err
	}
	if info.Size() <= buf.n {
		return false, nil
	}
	return true, os.Truncate(path, buf.n)
}

type writeCounter struct{ n int64 }

func (w *writeCounter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

func buildTreeFromPrefix(path string, n int64) (*merkle.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tree := merkle.New(true)
	buf := make([]byte, merkle.BlockSize)
	var read int64
	for read < n {
		want := merkle.BlockSize
		if remaining := n - read; remaining < int64(want) {
			want = int(remaining)
		}
		got, err := io.ReadFull(f, buf[:want])
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return nil, err
		}
		if got == 0 {
			break
		}
		if err := tree.AddData(buf[:got]); err != nil {
			return nil, err
		}
		read += int64(got)
	}
	if err := tree.Finalize(); err != nil {
		return nil, err
	}
	return tree, nil
}

// repairBlocks compares every block of the blob against storedTree's leaf
// hashes and repairs mismatches in place, first by hash-only single-block
// repair and then by parity-assisted repair.
func (r *Repository) repairBlocks(blobPath string, storedTree *merkle.Tree) (changed, fatal bool, err error) {
	hashes := storedTree.ListBlockHashes()
	totalBlocks := int64(len(hashes))
	totalBytes := storedTree.TotalBytes()

	f, err := os.OpenFile(blobPath, os.O_RDWR, 0644)
	if err != nil {
		return false, false, err
	}
	defer f.Close()

	parity, parityErr := r.loadParityFile(blobPath)

	var previousBlock []byte
	anyChanged := false

	for i := int64(0); i < totalBlocks; i++ {
		blockLen := merkle.BlockSize
		if i == totalBlocks-1 {
			blockLen = int(totalBytes - (totalBlocks-1)*merkle.BlockSize)
		}

		data := make([]byte, blockLen)
		if _, err := f.ReadAt(data, i*merkle.BlockSize); err != nil && err != io.EOF {
			return anyChanged, false, err
		}

		if hashsum.Hash(sha256.Sum256(data)) == hashes[i] {
			previousBlock = data
			continue
		}

		var carry byte
		if len(previousBlock) > 0 {
			carry = previousBlock[len(previousBlock)-1]
		}

		repaired, ok := hashOnlyRepair(data, hashes[i], carry)
		if !ok && parityErr == nil {
			repaired, ok, err = r.reconstructFromParity(parity, i, totalBlocks, blockLen, blobPath, hashes[i])
			if err != nil {
				return anyChanged, false, err
			}
		}
		if !ok {
			return anyChanged, true, nil
		}

		if _, err := f.WriteAt(repaired, i*merkle.BlockSize); err != nil {
			return anyChanged, false, err
		}
		anyChanged = true
		previousBlock = repaired
	}

	return anyChanged, false, nil
}

func (r *Repository) loadParityFile(blobPath string) (*merkle.ParityFile, error) {
	f, err := os.Open(blobPath + paritySuffix)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return merkle.ReadParityFile(bufio.NewReader(f))
}

func (r *Repository) reconstructFromParity(pf *merkle.ParityFile, blockIndex, totalBlocks int64, blockLen int, blobPath string, target hashsum.Hash) ([]byte, bool, error) {
	f, err := os.Open(blobPath)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	read := func(i int64) ([merkle.BlockSize]byte, error) {
		var out [merkle.BlockSize]byte
		n, err := f.ReadAt(out[:], i*merkle.BlockSize)
		if err != nil && err != io.EOF {
			return out, err
		}
		_ = n
		return out, nil
	}

	return pf.ReconstructBlock(blockIndex, totalBlocks, blockLen, read, target)
}

// hashOnlyRepair tries adjacent byte swaps, single-byte substitutions, and
// single-byte insertions (dropping the resulting trailing byte to restore
// the original length) against target, in that order, stopping at the
// first candidate whose SHA-256 matches.
func hashOnlyRepair(corrupt []byte, target hashsum.Hash, carry byte) ([]byte, bool) {
	n := len(corrupt)

	for i := 0; i < n-1; i++ {
		cand := append([]byte(nil), corrupt...)
		cand[i], cand[i+1] = cand[i+1], cand[i]
		if hashsum.Hash(sha256.Sum256(cand)) == target {
			return cand, true
		}
	}

	for i := 0; i < n; i++ {
		cand := append([]byte(nil), corrupt...)
		original := cand[i]
		for b := 0; b < 256; b++ {
			if byte(b) == original {
				continue
			}
			cand[i] = byte(b)
			if hashsum.Hash(sha256.Sum256(cand)) == target {
				return append([]byte(nil), cand...), true
			}
		}
	}

	candidates := make([]byte, 0, 257)
	candidates = append(candidates, carry)
	for b := 0; b < 256; b++ {
		candidates = append(candidates, byte(b))
	}
	for p := 0; p <= n; p++ {
		for _, b := range candidates {
			cand := make([]byte, 0, n+1)
			cand = append(cand, corrupt[:p]...)
			cand = append(cand, b)
			cand = append(cand, corrupt[p:]...)
			cand = cand[:n]
			if hashsum.Hash(sha256.Sum256(cand)) == target {
				return cand, true
			}
		}
	}

	return nil, false
}
