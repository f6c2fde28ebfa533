// Package merkle implements the left-filled binary hash tree filemass uses
// to address and verify the content of a stored file: streaming
// construction over fixed-size blocks, a depth-first serialization format
// for the tree sidecar, and self-consistency checking.
package merkle

import (
	"crypto/sha256"

	"github.com/filemass/filemass/lib/hashsum"
)

// BlockSize is the fixed size of every block except the final one, which
// may be shorter.
const BlockSize = 1024

// Node is one node of a Tree, at level >= 0. A level-0 node is a leaf
// carrying the hash of up to BlockSize source bytes; a node at a higher
// level is interior and owns up to two children of level-1.
//
// A node has exactly one parent by construction: the tree never shares
// nodes, so Child0/Child1 are the only references that matter, and no
// back-pointer to the parent is kept.
type Node struct {
	Level    uint8
	DataSize int64
	Hash     hashsum.Hash
	Child0   *Node
	Child1   *Node
}

// full reports whether the subtree rooted at n is completely occupied,
// i.e. it cannot accept another leaf without growing a level. A leaf is
// always full: it has no vacant child slots to begin with.
func (n *Node) full() bool {
	if n == nil {
		return false
	}
	if n.Level == 0 {
		return true
	}
	return n.Child1 != nil && n.Child0.full() && n.Child1.full()
}

// Tree owns a root node built by streaming leaf data in, and tracks the
// bookkeeping needed to enforce the "only one, final, short block"
// invariant and to report the tree's total byte count.
type Tree struct {
	root           *Node
	serializable   bool
	seenShortBlock bool
	totalBytes     int64
	finalized      bool
	rootHash       hashsum.Hash
}

// New creates an empty, mutable Tree. When serializable is true, Finalize
// retains the full node graph so the tree can later be written with
// Serialize; when false, Finalize discards it as soon as every hash has
// been computed, which is the cheaper mode used during plain ingest.
func New(serializable bool) *Tree {
	return &Tree{serializable: serializable}
}

// TotalBytes returns the number of source bytes appended so far.
func (t *Tree) TotalBytes() int64 { return t.totalBytes }

// RootHash returns the tree's root hash. Valid only after Finalize.
func (t *Tree) RootHash() hashsum.Hash { return t.rootHash }

// Finalized reports whether Finalize has been called.
func (t *Tree) Finalized() bool { return t.finalized }

// AddData appends one block of source bytes as the next leaf. Blocks must
// be BlockSize bytes except for the very last block of the stream, which
// may be shorter; once a short block has been seen, no further blocks may
// be added.
func (t *Tree) AddData(data []byte) error {
	if t.finalized {
		return ErrFinalized
	}
	n := len(data)
	if n < 0 {
		return ErrNegativeLength
	}
	if n > BlockSize {
		return ErrBlockTooLarge
	}
	if t.seenShortBlock {
		return ErrShortBlockNotLast
	}
	if n < BlockSize {
		t.seenShortBlock = true
	}

	leaf := &Node{
		Level:    0,
		DataSize: int64(n),
		Hash:     hashsum.Hash(sha256.Sum256(data)),
	}
	t.totalBytes += int64(n)

	if t.root == nil {
		t.root = leaf
		return nil
	}

	if t.root.full() {
		t.root = &Node{Level: t.root.Level + 1, Child0: t.root, DataSize: t.root.DataSize}
	}
	insertLeaf(t.root, leaf)
	return nil
}

// insertLeaf descends the left-filled spine under node, creating fresh
// interior nodes as needed, and places leaf in the next vacant slot.
// node must not be full (the caller is responsible for growing the root
// first if it was).
func insertLeaf(node, leaf *Node) {
	node.DataSize += leaf.DataSize

	if node.Level == 1 {
		if node.Child0 == nil {
			node.Child0 = leaf
		} else {
			node.Child1 = leaf
		}
		return
	}

	if node.Child0 == nil {
		node.Child0 = &Node{Level: node.Level - 1}
	}
	if !node.Child0.full() {
		insertLeaf(node.Child0, leaf)
		return
	}
	if node.Child1 == nil {
		node.Child1 = &Node{Level: node.Level - 1}
	}
	insertLeaf(node.Child1, leaf)
}

// Finalize computes every interior hash bottom-up and fixes the tree's
// root hash. In memory-lean mode (serializable == false, set at New) the
// node graph below the root is discarded once its hashes have been
// folded upward, freeing memory for ingest-only callers; in serializable
// mode the full graph is kept for a subsequent Serialize.
func (t *Tree) Finalize() error {
	if t.finalized {
		return ErrFinalized
	}
	if t.root == nil {
		t.root = &Node{Level: 0, Hash: hashsum.Hash(sha256.Sum256(nil))}
	} else {
		hashNode(t.root)
	}
	t.rootHash = t.root.Hash
	t.finalized = true
	if !t.serializable {
		t.root.Child0 = nil
		t.root.Child1 = nil
	}
	return nil
}

// hashNode computes n's hash from its children, recursing first so every
// child is hashed before its parent. A node with only Child0 passes that
// child's hash through unchanged rather than re-hashing it.
func hashNode(n *Node) {
	if n.Level == 0 {
		return
	}
	if n.Child0 != nil {
		hashNode(n.Child0)
	}
	if n.Child1 != nil {
		hashNode(n.Child1)
		n.Hash = hashsum.Hash(sha256.Sum256(append(append([]byte{}, n.Child0.Hash[:]...), n.Child1.Hash[:]...)))
	} else if n.Child0 != nil {
		n.Hash = n.Child0.Hash
	}
}

// Root returns the tree's root node. Only meaningful in serializable mode
// after Finalize; in memory-lean mode the children have been discarded.
func (t *Tree) Root() *Node { return t.root }

// ListBlockHashes returns the ordered, left-to-right, depth-first leaf
// hashes of the tree. Requires serializable mode (the leaves must still
// be present).
func (t *Tree) ListBlockHashes() []hashsum.Hash {
	var out []hashsum.Hash
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if n.Level == 0 {
			out = append(out, n.Hash)
			return
		}
		walk(n.Child0)
		walk(n.Child1)
	}
	walk(t.root)
	return out
}

// Equals reports whether two finalized trees have identical root hash,
// total byte count and node structure. A memory-lean tree keeps only
// its root, so it equals a serializable tree only when that tree is a
// single leaf.
func (t *Tree) Equals(other *Tree) bool {
	if t.rootHash != other.rootHash || t.totalBytes != other.totalBytes {
		return false
	}
	if t.root == nil || other.root == nil {
		return t.root == other.root
	}
	return nodesEqual(t.root, other.root)
}

func nodesEqual(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Level != b.Level || a.DataSize != b.DataSize || a.Hash != b.Hash {
		return false
	}
	return nodesEqual(a.Child0, b.Child0) && nodesEqual(a.Child1, b.Child1)
}

// SelfCheck verifies that the tree is internally consistent: every
// interior hash matches its recomputation, every leaf has DataSize
// BlockSize except the right-most leaf which may be shorter, children
// occupy left-filled positions, and the root's DataSize equals the
// tree's total byte count. Requires serializable mode.
func (t *Tree) SelfCheck() bool {
	if t.root == nil {
		return t.totalBytes == 0
	}
	if t.root.DataSize != t.totalBytes {
		return false
	}
	rightmost := rightmostLeaf(t.root)
	ok := true
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil || !ok {
			return
		}
		if n.Level == 0 {
			if n != rightmost && n.DataSize != BlockSize {
				ok = false
			}
			return
		}
		if n.Child1 != nil && n.Child0 == nil {
			ok = false
			return
		}
		walk(n.Child0)
		walk(n.Child1)
		if !ok {
			return
		}
		var want hashsum.Hash
		if n.Child1 != nil {
			want = hashsum.Hash(sha256.Sum256(append(append([]byte{}, n.Child0.Hash[:]...), n.Child1.Hash[:]...)))
		} else {
			want = n.Child0.Hash
		}
		if want != n.Hash {
			ok = false
		}
	}
	walk(t.root)
	return ok
}

func rightmostLeaf(n *Node) *Node {
	for n != nil && n.Level != 0 {
		if n.Child1 != nil {
			n = n.Child1
		} else {
			n = n.Child0
		}
	}
	return n
}
