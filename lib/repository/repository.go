// Package repository implements the content-addressed blob store: files
// are ingested by streaming them through a Merkle tree, copied into a
// hash-sharded directory layout, and accompanied by tree and parity
// sidecars that later drive integrity checking and repair.
package repository

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/filemass/filemass/lib/config"
	"github.com/filemass/filemass/lib/hashsum"
	"github.com/filemass/filemass/lib/logging"
	"github.com/filemass/filemass/lib/merkle"
)

const (
	configFileName = "fmrepo.conf"
	treeSuffix     = ".fmtree"
	paritySuffix   = ".fmparity"
	minParityDiv   = 2
	maxParityDiv   = 11
)

// Repository is an open handle on a repository directory: its config
// file and the blob/sidecar layout rooted at Path.
type Repository struct {
	Path   string
	Config *config.Store
	log    *logging.Logger
}

// Open opens an existing repository at path. The directory must already
// contain fmrepo.conf; use Init to create a new repository.
func Open(path string) (*Repository, error) {
	store, err := config.Load(filepath.Join(path, configFileName))
	if err != nil {
		return nil, fmt.Errorf("repository: opening %s: %w", path, err)
	}
	return &Repository{Path: path, Config: store, log: logging.GetLogger()}, nil
}

// Init creates a new repository at path. path must either not exist yet
// or be an empty directory.
func Init(path string) (*Repository, error) {
	entries, err := os.ReadDir(path)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("repository: creating %s: %w", path, err)
		}
	case err != nil:
		return nil, fmt.Errorf("repository: reading %s: %w", path, err)
	case len(entries) > 0:
		return nil, ErrNotEmpty
	}

	store, err := config.Create(filepath.Join(path, configFileName), map[string]string{
		"uuid": uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: initializing %s: %w", path, err)
	}
	return &Repository{Path: path, Config: store, log: logging.GetLogger()}, nil
}

// BlobPath returns the hash-sharded path for a blob's content.
func (r *Repository) BlobPath(h hashsum.Hash) string {
	hex := h.Hex()
	return filepath.Join(r.Path, hex[0:2], hex[2:4], hex[4:6], hex)
}

// TreePath returns the tree sidecar path for a blob.
func (r *Repository) TreePath(h hashsum.Hash) string {
	return r.BlobPath(h) + treeSuffix
}

// ParityPath returns the parity sidecar path for a blob.
func (r *Repository) ParityPath(h hashsum.Hash) string {
	return r.BlobPath(h) + paritySuffix
}

// Add ingests sourcePath: streams it through a Merkle tree, copies it
// into the sharded blob layout if not already present, and writes any
// missing tree or parity sidecar.
func (r *Repository) Add(sourcePath string) (hashsum.Hash, bool, error) {
	tree, err := buildTreeFromFile(sourcePath, true)
	if err != nil {
		return hashsum.Hash{}, false, fmt.Errorf("repository: hashing %s: %w", sourcePath, err)
	}
	h := tree.RootHash()

	blobPath := r.BlobPath(h)
	if err := os.MkdirAll(filepath.Dir(blobPath), 0755); err != nil {
		return h, false, fmt.Errorf("repository: creating shard directory: %w", err)
	}

	wasNew := false
	if info, err := os.Stat(blobPath); err == nil {
		srcInfo, err := os.Stat(sourcePath)
		if err != nil {
			return h, false, fmt.Errorf("repository: stat %s: %w", sourcePath, err)
		}
		if info.Size() != srcInfo.Size() {
			return h, false, fmt.Errorf("%w: hash %s", ErrIntegrityMismatch, h.Hex())
		}
	} else if os.IsNotExist(err) {
		if err := copyFile(sourcePath, blobPath); err != nil {
			return h, false, fmt.Errorf("repository: copying blob: %w", err)
		}
		wasNew = true
	} else {
		return h, false, fmt.Errorf("repository: stat %s: %w", blobPath, err)
	}

	treePath := r.TreePath(h)
	if _, err := os.Stat(treePath); os.IsNotExist(err) {
		if err := writeTreeSidecar(treePath, tree); err != nil {
			return h, wasNew, fmt.Errorf("repository: writing tree sidecar: %w", err)
		}
	}

	parityPath := r.ParityPath(h)
	if _, err := os.Stat(parityPath); os.IsNotExist(err) {
		if err := writeParitySidecar(parityPath, sourcePath); err != nil {
			return h, wasNew, fmt.Errorf("repository: writing parity sidecar: %w", err)
		}
	}

	r.log.Info("added blob", map[string]interface{}{"hash": h.Hex(), "new": wasNew})
	return h, wasNew, nil
}

// buildTreeFromFile streams path through a Merkle tree in BlockSize chunks.
func buildTreeFromFile(path string, serializable bool) (*merkle.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tree := merkle.New(serializable)
	buf := make([]byte, merkle.BlockSize)
	for {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			if err := tree.AddData(buf[:n]); err != nil {
				return nil, err
			}
		}
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if n < merkle.BlockSize {
			break
		}
	}
	if err := tree.Finalize(); err != nil {
		return nil, err
	}
	return tree, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

func writeTreeSidecar(path string, tree *merkle.Tree) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := tree.Serialize(w); err != nil {
		return err
	}
	return w.Flush()
}

func writeParitySidecar(path, sourcePath string) error {
	f, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer f.Close()

	builder := merkle.NewParityBuilder(minParityDiv, maxParityDiv)
	buf := make([]byte, merkle.BlockSize)
	for {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			if err := builder.AddBlock(buf[:n]); err != nil {
				return err
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return err
		}
		if n < merkle.BlockSize {
			break
		}
	}

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer out.Close()

	bw := bufio.NewWriter(out)
	if err := builder.WriteTo(bw); err != nil {
		return err
	}
	return bw.Flush()
}
