// Package tag defines the in-memory tag tree shared by the tag-list
// parser, the tag store, and anything that reassembles a file's tags
// for display.
package tag

import "crypto/sha256"

// Tag is a name plus its child tags, as parsed from a tag-list string
// or reassembled from the tag index.
type Tag struct {
	Name     string
	Children []*Tag
}

// New creates a childless tag.
func New(name string) *Tag {
	return &Tag{Name: name}
}

// ThisHash is SHA256(Name), the value stored as an edge's this_hash
// and used as the hashed_data lookup key.
func (t *Tag) ThisHash() [32]byte {
	return sha256.Sum256([]byte(t.Name))
}

// AddChild appends a child tag and returns it, for convenient chaining
// while building a tree programmatically (as the parser does).
func (t *Tag) AddChild(name string) *Tag {
	child := New(name)
	t.Children = append(t.Children, child)
	return child
}
