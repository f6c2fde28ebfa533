package merkle

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/filemass/filemass/lib/hashsum"
)

// parityHeaderSize is two little-endian uint32s: minDivisor, maxDivisor.
const parityHeaderSize = 8

// ParityBuilder accumulates the XOR parity blocks described in the
// parity sidecar format: for every divisor between minDivisor and
// maxDivisor inclusive, and every residue of that divisor, the XOR of
// every source block whose index falls in that residue class.
type ParityBuilder struct {
	minDivisor, maxDivisor uint32
	blockIndex             int64
	accum                  map[uint32][][BlockSize]byte
}

// NewParityBuilder creates a builder for divisors [minDivisor, maxDivisor].
func NewParityBuilder(minDivisor, maxDivisor uint32) *ParityBuilder {
	accum := make(map[uint32][][BlockSize]byte, maxDivisor-minDivisor+1)
	for d := minDivisor; d <= maxDivisor; d++ {
		accum[d] = make([][BlockSize]byte, d)
	}
	return &ParityBuilder{minDivisor: minDivisor, maxDivisor: maxDivisor, accum: accum}
}

// AddBlock folds one more source block into every divisor's parity
// accumulators. Short blocks (the final block of a file) are implicitly
// zero-padded to BlockSize for the XOR.
func (p *ParityBuilder) AddBlock(data []byte) error {
	if len(data) > BlockSize {
		return fmt.Errorf("merkle: parity block exceeds maximum block size")
	}
	for d := p.minDivisor; d <= p.maxDivisor; d++ {
		residue := uint32(p.blockIndex % int64(d))
		slot := &p.accum[d][residue]
		for i, b := range data {
			slot[i] ^= b
		}
	}
	p.blockIndex++
	return nil
}

// WriteTo writes the parity sidecar: the (minDivisor, maxDivisor) header,
// then for each divisor in order, each residue's 1024-byte XOR block.
func (p *ParityBuilder) WriteTo(w io.Writer) error {
	var header [parityHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], p.minDivisor)
	binary.LittleEndian.PutUint32(header[4:8], p.maxDivisor)
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	for d := p.minDivisor; d <= p.maxDivisor; d++ {
		for _, block := range p.accum[d] {
			if _, err := w.Write(block[:]); err != nil {
				return err
			}
		}
	}
	return nil
}

// ParityFile is a parsed parity sidecar, indexed by divisor and residue.
type ParityFile struct {
	MinDivisor, MaxDivisor uint32
	blocks                 map[uint32][][BlockSize]byte
}

// ReadParityFile parses a parity sidecar previously written by
// ParityBuilder.WriteTo.
func ReadParityFile(r io.Reader) (*ParityFile, error) {
	var header [parityHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("merkle: parity file header: %w", err)
	}
	pf := &ParityFile{
		MinDivisor: binary.LittleEndian.Uint32(header[0:4]),
		MaxDivisor: binary.LittleEndian.Uint32(header[4:8]),
	}
	pf.blocks = make(map[uint32][][BlockSize]byte, pf.MaxDivisor-pf.MinDivisor+1)
	for d := pf.MinDivisor; d <= pf.MaxDivisor; d++ {
		blocks := make([][BlockSize]byte, d)
		for m := uint32(0); m < d; m++ {
			if _, err := io.ReadFull(r, blocks[m][:]); err != nil {
				return nil, fmt.Errorf("merkle: parity file truncated at divisor %d residue %d: %w", d, m, err)
			}
		}
		pf.blocks[d] = blocks
	}
	return pf, nil
}

// Residue returns the parity block for the given divisor and residue.
func (pf *ParityFile) Residue(divisor, residue uint32) ([BlockSize]byte, error) {
	blocks, ok := pf.blocks[divisor]
	if !ok || residue >= divisor {
		return [BlockSize]byte{}, fmt.Errorf("merkle: no parity for divisor %d residue %d", divisor, residue)
	}
	return blocks[residue], nil
}

// BlockReader reads the padded BlockSize-byte content of block index i of
// the original source (short blocks are zero-padded), used by
// ReconstructBlock to gather the other blocks sharing a residue class.
type BlockReader func(index int64) ([BlockSize]byte, error)

// ReconstructBlock attempts to recover the single block at blockIndex
// (out of totalBlocks) by XOR'ing the parity block for every divisor
// from MaxDivisor down to MinDivisor against every other source block
// sharing that divisor's residue class, accepting the first candidate
// whose first blockLen bytes have a SHA-256 equal to target.
func (pf *ParityFile) ReconstructBlock(blockIndex, totalBlocks int64, blockLen int, read BlockReader, target hashsum.Hash) ([]byte, bool, error) {
	for d := pf.MaxDivisor; d >= pf.MinDivisor; d-- {
		residue := uint32(blockIndex % int64(d))
		candidate, err := pf.Residue(d, residue)
		if err != nil {
			return nil, false, err
		}
		for i := int64(0); i < totalBlocks; i++ {
			if i == blockIndex || i%int64(d) != int64(residue) {
				continue
			}
			block, err := read(i)
			if err != nil {
				return nil, false, err
			}
			for j := range candidate {
				candidate[j] ^= block[j]
			}
		}
		trimmed := candidate[:blockLen]
		sum := sha256.Sum256(trimmed)
		if hashsum.Hash(sum) == target {
			out := make([]byte, blockLen)
			copy(out, trimmed)
			return out, true, nil
		}
	}
	return nil, false, nil
}
