// Package tagstore persists the hierarchical tag index in a flat edge
// table: every tag occurrence at every position in every file is one
// row, addressed by the non-commutative hash-sum chain computed in
// lib/hashsum.
package tagstore

// Edge is one row of the tag index: one tag occurrence at one position
// in one file. The pair (ParentHashSum, HashSum) is unique, making
// inserts idempotent.
type Edge struct {
	ParentHashSum      []byte `gorm:"column:parent_hash_sum;size:32;uniqueIndex:idx_parent_hashsum;index:idx_parent_this;index:idx_this_parent,priority:2"`
	HashSum            []byte `gorm:"column:hash_sum;size:32;uniqueIndex:idx_parent_hashsum;index:idx_hashsum_this"`
	ThisHash           []byte `gorm:"column:this_hash;size:32;index:idx_parent_this,priority:2;index:idx_hashsum_this,priority:2;index:idx_this_parent,priority:1;index:idx_this_file,priority:1"`
	FileHash           []byte `gorm:"column:file_hash;size:32;index:idx_this_file,priority:2"`
	GrandparentHashSum []byte `gorm:"column:grandparent_hash_sum;size:32;index:idx_grandparent"`
}

// TableName pins the edge table's name regardless of struct naming
// conventions gorm would otherwise infer.
func (Edge) TableName() string { return "edges" }

// HashedData maps SHA256(name) back to the original name, for names
// shorter than the 64 KiB printable-name ceiling.
type HashedData struct {
	Hash []byte `gorm:"column:hash;size:32;primaryKey"`
	Data []byte `gorm:"column:data"`
}

func (HashedData) TableName() string { return "hashed_data" }

// maxPrintableNameLength is the ceiling beyond which a tag name's text
// is not stored in hashed_data; its hash remains usable as a tag
// position but cannot be printed back.
const maxPrintableNameLength = 65536

// ParentHashSumCount and ChildHashCount mirror reserved-but-unused
// tables from the reference tagbase schema, kept so an on-disk tagbase
// created by filemass carries the same table set as one written by the
// original implementation.
type ParentHashSumCount struct {
	ParentHashSum []byte `gorm:"column:parent_hash_sum;size:32;primaryKey"`
	Count         int64  `gorm:"column:count"`
}

func (ParentHashSumCount) TableName() string { return "parent_hash_sum_counts" }

type ChildHashCount struct {
	HashSum []byte `gorm:"column:hash_sum;size:32;primaryKey"`
	Count   int64  `gorm:"column:count"`
}

func (ChildHashCount) TableName() string { return "child_hash_counts" }
