package merkle

import "errors"

var (
	// ErrFinalized is returned by AddData or Finalize once the tree has
	// already been finalized.
	ErrFinalized = errors.New("merkle: tree is already finalized")

	// ErrNegativeLength is returned when AddData is given a negative length.
	ErrNegativeLength = errors.New("merkle: block length must not be negative")

	// ErrBlockTooLarge is returned when a block exceeds BlockSize bytes.
	ErrBlockTooLarge = errors.New("merkle: block exceeds maximum block size")

	// ErrShortBlockNotLast is returned when AddData is called again after a
	// short (less than BlockSize) block has already been observed.
	ErrShortBlockNotLast = errors.New("merkle: a short block must be the last block added")

	// ErrCorrupted is returned by Deserialize when the tree sidecar's byte
	// layout does not match the expected depth-first format.
	ErrCorrupted = errors.New("merkle: tree file corrupted")
)
