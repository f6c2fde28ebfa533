package tagstore

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/filemass/filemass/lib/hashsum"
	"github.com/filemass/filemass/lib/tag"
)

// Store is an open handle on a tagbase file.
type Store struct {
	DB *gorm.DB
}

func open(path string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=30000&_txlock=immediate&_synchronous=normal", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Silent),
		PrepareStmt: true,
		NowFunc:     time.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("tagstore: connecting to %s: %w", path, err)
	}
	return db, nil
}

// Open opens an existing tagbase file without touching its schema.
func Open(path string) (*Store, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Init opens (creating if necessary) a tagbase file and ensures its
// tables and indices exist.
func Init(path string) (*Store, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	store := &Store{DB: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	if err := s.DB.AutoMigrate(&Edge{}, &HashedData{}, &ParentHashSumCount{}, &ChildHashCount{}); err != nil {
		return fmt.Errorf("tagstore: migrating schema: %w", err)
	}
	return nil
}

// AddTo inserts the tag chain rooted at t beneath parentHashSum in
// fileHash's tag tree. Every insert is insert-or-ignore, so repeating
// the call with identical arguments is a no-op (idempotent tagging).
// The whole chain is wrapped in one transaction.
func (s *Store) AddTo(t *tag.Tag, parentHashSum, fileHash hashsum.Hash) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		return addToTx(tx, t, parentHashSum, parentHashSum, fileHash)
	})
}

func addToTx(tx *gorm.DB, t *tag.Tag, parentHashSum, grandparentHashSum, fileHash hashsum.Hash) error {
	thisHash := t.ThisHash()
	name := []byte(t.Name)

	if len(name) < maxPrintableNameLength {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&HashedData{Hash: thisHash[:], Data: name}).Error; err != nil {
			return fmt.Errorf("tagstore: inserting hashed_data for %q: %w", t.Name, err)
		}
	}

	hashSum := hashsum.Combine(parentHashSum, hashsum.Hash(thisHash))

	edge := &Edge{
		ParentHashSum:      parentHashSum[:],
		HashSum:            hashSum[:],
		ThisHash:           thisHash[:],
		FileHash:           fileHash[:],
		GrandparentHashSum: grandparentHashSum[:],
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(edge).Error; err != nil {
		return fmt.Errorf("tagstore: inserting edge for %q: %w", t.Name, err)
	}

	for _, child := range t.Children {
		if err := addToTx(tx, child, hashSum, parentHashSum, fileHash); err != nil {
			return err
		}
	}
	return nil
}

// RemoveFrom deletes the edge for t beneath parentHashSum and recurses
// into t's children using the removed edge's hash_sum as their new
// parent. Matches the reference's LIMIT-1 delete semantics, so a
// duplicate row left by an older tagbase is tolerated rather than
// treated as an error.
func (s *Store) RemoveFrom(t *tag.Tag, parentHashSum hashsum.Hash) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		return removeFromTx(tx, t, parentHashSum)
	})
}

func removeFromTx(tx *gorm.DB, t *tag.Tag, parentHashSum hashsum.Hash) error {
	thisHash := t.ThisHash()
	hashSum := hashsum.Combine(parentHashSum, hashsum.Hash(thisHash))

	var victim Edge
	result := tx.Where("parent_hash_sum = ? AND this_hash = ?", parentHashSum[:], thisHash[:]).
		Limit(1).Find(&victim)
	if result.Error != nil {
		return fmt.Errorf("tagstore: locating edge for %q: %w", t.Name, result.Error)
	}
	if result.RowsAffected > 0 {
		if err := tx.Where("parent_hash_sum = ? AND hash_sum = ?", victim.ParentHashSum, victim.HashSum).
			Limit(1).Delete(&Edge{}).Error; err != nil {
			return fmt.Errorf("tagstore: deleting edge for %q: %w", t.Name, err)
		}
	}

	for _, child := range t.Children {
		if err := removeFromTx(tx, child, hashSum); err != nil {
			return err
		}
	}
	return nil
}

// edgeRow is the join projection used by FindTagsOfFile: an edge plus
// the printable name recovered from hashed_data, when available.
type edgeRow struct {
	ParentHashSum []byte
	HashSum       []byte
	ThisHash      []byte
	Name          []byte
}

// FindTagsOfFile reassembles fileHash's tag tree from the edge table.
// Reassembly tolerates rows arriving in any order: an edge whose parent
// is not yet known is parked until its parent edge is seen.
func (s *Store) FindTagsOfFile(fileHash hashsum.Hash) (*tag.Tag, error) {
	var rows []edgeRow
	err := s.DB.Raw(`
		SELECT e.parent_hash_sum AS parent_hash_sum, e.hash_sum AS hash_sum,
		       e.this_hash AS this_hash, h.data AS name
		FROM edges e
		LEFT JOIN hashed_data h ON h.hash = e.this_hash
		WHERE e.file_hash = ?
	`, fileHash[:]).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("tagstore: querying tags of file: %w", err)
	}

	root := &tag.Tag{}
	byHashSum := make(map[[32]byte]*tag.Tag, len(rows))
	pending := make(map[[32]byte][]edgeRow)

	var attach func(row edgeRow)
	attach = func(row edgeRow) {
		name := string(row.Name)
		if name == "" {
			name = unknownName(row.ThisHash)
		}
		node := &tag.Tag{Name: name}

		var key [32]byte
		copy(key[:], row.HashSum)
		byHashSum[key] = node

		var parentKey [32]byte
		copy(parentKey[:], row.ParentHashSum)

		if string(row.ParentHashSum) == string(fileHash[:]) {
			root.Children = append(root.Children, node)
		} else if parent, ok := byHashSum[parentKey]; ok {
			parent.Children = append(parent.Children, node)
		} else {
			pending[parentKey] = append(pending[parentKey], row)
			return
		}

		if waiting, ok := pending[key]; ok {
			delete(pending, key)
			for _, w := range waiting {
				attach(w)
			}
		}
	}

	for _, row := range rows {
		attach(row)
	}

	return root, nil
}

func unknownName(hash []byte) string {
	return fmt.Sprintf("<%x>", hash)
}
