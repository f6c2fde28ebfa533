package tagquery

import (
	"crypto/sha256"
	"fmt"

	"github.com/filemass/filemass/lib/hashsum"
	"github.com/filemass/filemass/lib/tagstore"
)

// Engine evaluates Query trees against a tagbase.
type Engine struct {
	store *tagstore.Store
}

// NewEngine wraps a tagstore.Store with the three evaluation strategies.
func NewEngine(store *tagstore.Store) *Engine {
	return &Engine{store: store}
}

func nameHash(name string) []byte {
	h := sha256.Sum256([]byte(name))
	return h[:]
}

// Matches tests whether the tag position identified by hashSum satisfies
// q within its immediate subtree.
func (e *Engine) Matches(hashSum hashsum.Hash, q *Query) (bool, error) {
	switch q.Kind {
	case KindHasChild:
		return e.existsEdge("parent_hash_sum = ? AND this_hash = ?", hashSum[:], nameHash(q.Name))

	case KindHasChildWithQuery:
		var hashSums [][]byte
		err := e.store.DB.Table("edges").
			Where("parent_hash_sum = ? AND this_hash = ?", hashSum[:], nameHash(q.Name)).
			Pluck("hash_sum", &hashSums).Error
		if err != nil {
			return false, fmt.Errorf("tagquery: matches HasChildWithQuery(%q): %w", q.Name, err)
		}
		for _, child := range hashSums {
			var childHash hashsum.Hash
			copy(childHash[:], child)
			ok, err := e.Matches(childHash, q.Operands[0])
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case KindHasDescendant:
		return e.matchesHasDescendant(hashSum, q.Name)

	case KindNot:
		ok, err := e.Matches(hashSum, q.Operands[0])
		if err != nil {
			return false, err
		}
		return !ok, nil

	case KindAnd:
		for _, operand := range q.Operands {
			ok, err := e.Matches(hashSum, operand)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case KindOr:
		for _, operand := range q.Operands {
			ok, err := e.Matches(hashSum, operand)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case KindXor:
		parity := false
		for _, operand := range q.Operands {
			ok, err := e.Matches(hashSum, operand)
			if err != nil {
				return false, err
			}
			if ok {
				parity = !parity
			}
		}
		return parity, nil

	default:
		return false, fmt.Errorf("tagquery: matches: %w", ErrNotImplemented)
	}
}

// matchesHasDescendant checks the depth-1, depth-2, and depth-3
// hand-coded cases the reference implements; deeper descendant checks
// are a documented limitation (see ErrNotImplemented), preserved rather
// than generalized into a transitive closure so existing tagbases keep
// identical query semantics.
func (e *Engine) matchesHasDescendant(hashSum hashsum.Hash, name string) (bool, error) {
	h := nameHash(name)

	depth1, err := e.existsEdge("parent_hash_sum = ? AND this_hash = ?", hashSum[:], h)
	if err != nil {
		return false, fmt.Errorf("tagquery: matches HasDescendant(%q) depth 1: %w", name, err)
	}
	if depth1 {
		return true, nil
	}

	depth2, err := e.existsEdge("grandparent_hash_sum = ? AND this_hash = ?", hashSum[:], h)
	if err != nil {
		return false, fmt.Errorf("tagquery: matches HasDescendant(%q) depth 2: %w", name, err)
	}
	if depth2 {
		return true, nil
	}

	depth3, err := e.existsEdgeJoin(hashSum[:], h)
	if err != nil {
		return false, fmt.Errorf("tagquery: matches HasDescendant(%q) depth 3: %w", name, err)
	}
	if depth3 {
		return true, nil
	}

	return false, fmt.Errorf("tagquery: matches HasDescendant(%q) beyond depth 3: %w", name, ErrNotImplemented)
}

func (e *Engine) existsEdge(where string, args ...interface{}) (bool, error) {
	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM (SELECT 1 FROM edges WHERE %s LIMIT 1)`, where)
	if err := e.store.DB.Raw(query, args...).Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (e *Engine) existsEdgeJoin(hashSum, nameHash []byte) (bool, error) {
	var count int64
	query := `
		SELECT COUNT(*) FROM (
			SELECT 1 FROM edges e1
			JOIN edges e2 ON e2.grandparent_hash_sum = e1.hash_sum
			WHERE e1.parent_hash_sum = ? AND e2.this_hash = ?
			LIMIT 1
		)
	`
	if err := e.store.DB.Raw(query, hashSum, nameHash).Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
