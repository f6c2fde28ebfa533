package merkle

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/filemass/filemass/lib/hashsum"
)

// nodeHeaderSize is level (1 byte) + dataSize (8 bytes) + hash (32 bytes).
const nodeHeaderSize = 1 + 8 + hashsum.Size

// Serialize writes the tree sidecar format: a depth-first pre-order walk
// of the tree, root first. t must be finalized in serializable mode.
func (t *Tree) Serialize(w io.Writer) error {
	if !t.finalized {
		return fmt.Errorf("merkle: cannot serialize an unfinalized tree")
	}
	if t.root == nil {
		return fmt.Errorf("merkle: cannot serialize a tree with no root")
	}
	return writeNode(w, t.root)
}

func writeNode(w io.Writer, n *Node) error {
	var header [nodeHeaderSize]byte
	header[0] = n.Level
	binary.LittleEndian.PutUint64(header[1:9], uint64(n.DataSize))
	copy(header[9:], n.Hash[:])
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if n.Child0 != nil {
		if err := writeNode(w, n.Child0); err != nil {
			return err
		}
	}
	if n.Child1 != nil {
		if err := writeNode(w, n.Child1); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize reads a tree sidecar written by Serialize and reconstructs
// the tree in serializable mode, finalized. It rejects truncated headers
// and children whose level is not exactly parent.level-1, surfacing
// ErrCorrupted in both cases.
func Deserialize(r io.Reader) (*Tree, error) {
	br := bufio.NewReaderSize(r, nodeHeaderSize*2)

	root, err := readNode(br)
	if err != nil {
		return nil, err
	}

	t := &Tree{serializable: true, finalized: true, root: root, rootHash: root.Hash}
	t.totalBytes = root.DataSize
	return t, nil
}

type header struct {
	level    uint8
	dataSize int64
	hash     hashsum.Hash
}

func peekHeader(br *bufio.Reader) (header, bool, error) {
	buf, err := br.Peek(nodeHeaderSize)
	if err == io.EOF {
		if len(buf) == 0 {
			return header{}, false, nil
		}
		return header{}, false, fmt.Errorf("%w: truncated node header", ErrCorrupted)
	}
	if err != nil {
		return header{}, false, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	var h header
	h.level = buf[0]
	h.dataSize = int64(binary.LittleEndian.Uint64(buf[1:9]))
	copy(h.hash[:], buf[9:])
	return h, true, nil
}

func readNode(br *bufio.Reader) (*Node, error) {
	h, ok, err := peekHeader(br)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: empty tree file", ErrCorrupted)
	}
	if _, err := br.Discard(nodeHeaderSize); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}

	node := &Node{Level: h.level, DataSize: h.dataSize, Hash: h.hash}
	if node.Level == 0 {
		return node, nil
	}

	child0, err := readChildIfPresent(br, node.Level)
	if err != nil {
		return nil, err
	}
	node.Child0 = child0

	child1, err := readChildIfPresent(br, node.Level)
	if err != nil {
		return nil, err
	}
	node.Child1 = child1

	return node, nil
}

// readChildIfPresent peeks the next header and, if it belongs to node as a
// child (level strictly less than the parent's), consumes and recursively
// parses it. A level that is less than the parent's but not exactly
// parent-1 is corruption; a level that is not less than the parent's
// means there is no more child data here (it is a sibling or ancestor's
// sibling, or the parent recursion has ended), and nothing is consumed.
func readChildIfPresent(br *bufio.Reader, parentLevel uint8) (*Node, error) {
	h, ok, err := peekHeader(br)
	if err != nil {
		return nil, err
	}
	if !ok || h.level >= parentLevel {
		return nil, nil
	}
	if h.level != parentLevel-1 {
		return nil, fmt.Errorf("%w: child level %d is not parent level %d minus one", ErrCorrupted, h.level, parentLevel)
	}
	return readNode(br)
}
