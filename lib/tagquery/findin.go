package tagquery

import (
	"fmt"

	"github.com/filemass/filemass/lib/hashsum"
)

// FindIn enumerates all tag positions (or, when parentHashSum is the
// zero hash, all files) satisfying q. At file scope the result is a set
// of file hashes; otherwise it is a set of tag hash_sums directly
// beneath parentHashSum.
func (e *Engine) FindIn(parentHashSum hashsum.Hash, q *Query) ([]hashsum.Hash, error) {
	fileScope := parentHashSum.IsZero()

	switch q.Kind {
	case KindHasChild:
		return e.findHasChild(parentHashSum, fileScope, q.Name)

	case KindHasDescendant:
		if !fileScope {
			return nil, fmt.Errorf("tagquery: findIn HasDescendant at non-root scope: %w", ErrNotImplemented)
		}
		return e.findHasDescendantAtRoot(q.Name)

	case KindHasChildWithQuery:
		return e.findHasChildWithQuery(parentHashSum, fileScope, q.Name, q.Operands[0])

	case KindHasDescendantWithQuery:
		if !fileScope {
			return nil, fmt.Errorf("tagquery: findIn HasDescendantWithQuery at non-root scope: %w", ErrNotImplemented)
		}
		return e.findHasDescendantWithQueryAtRoot(q.Name, q.Operands[0])

	case KindOr:
		return e.findOr(parentHashSum, q.Operands)

	case KindXor:
		return e.findXor(parentHashSum, q.Operands)

	case KindAnd:
		return e.findAnd(parentHashSum, q.Operands)

	case KindNot:
		return e.findNot(parentHashSum, fileScope, q.Operands[0])

	default:
		return nil, fmt.Errorf("tagquery: findIn: %w", ErrNotImplemented)
	}
}

func (e *Engine) findHasChild(parentHashSum hashsum.Hash, fileScope bool, name string) ([]hashsum.Hash, error) {
	var rows [][]byte
	var err error
	if fileScope {
		err = e.store.DB.Table("edges").
			Where("this_hash = ? AND parent_hash_sum = file_hash", nameHash(name)).
			Distinct().Pluck("file_hash", &rows).Error
	} else {
		err = e.store.DB.Table("edges").
			Where("this_hash = ? AND grandparent_hash_sum = ?", nameHash(name), parentHashSum[:]).
			Distinct().Pluck("parent_hash_sum", &rows).Error
	}
	if err != nil {
		return nil, fmt.Errorf("tagquery: findIn HasChild(%q): %w", name, err)
	}
	return toHashes(rows), nil
}

func (e *Engine) findHasDescendantAtRoot(name string) ([]hashsum.Hash, error) {
	var rows [][]byte
	err := e.store.DB.Table("edges").
		Where("this_hash = ?", nameHash(name)).
		Distinct().Pluck("file_hash", &rows).Error
	if err != nil {
		return nil, fmt.Errorf("tagquery: findIn HasDescendant(%q): %w", name, err)
	}
	return toHashes(rows), nil
}

type candidateRow struct {
	Candidate []byte
	ChildHash []byte
}

func (e *Engine) findHasChildWithQuery(parentHashSum hashsum.Hash, fileScope bool, name string, sub *Query) ([]hashsum.Hash, error) {
	var rows []candidateRow
	var err error
	if fileScope {
		err = e.store.DB.Raw(
			`SELECT file_hash AS candidate, hash_sum AS child_hash FROM edges WHERE this_hash = ? AND parent_hash_sum = file_hash`,
			nameHash(name),
		).Scan(&rows).Error
	} else {
		err = e.store.DB.Raw(
			`SELECT parent_hash_sum AS candidate, hash_sum AS child_hash FROM edges WHERE this_hash = ? AND grandparent_hash_sum = ?`,
			nameHash(name), parentHashSum[:],
		).Scan(&rows).Error
	}
	if err != nil {
		return nil, fmt.Errorf("tagquery: findIn HasChildWithQuery(%q): %w", name, err)
	}

	seen := make(map[hashsum.Hash]bool)
	var out []hashsum.Hash
	for _, row := range rows {
		var childHash hashsum.Hash
		copy(childHash[:], row.ChildHash)
		ok, err := e.Matches(childHash, sub)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var candidate hashsum.Hash
		copy(candidate[:], row.Candidate)
		if !seen[candidate] {
			seen[candidate] = true
			out = append(out, candidate)
		}
	}
	return out, nil
}

func (e *Engine) findHasDescendantWithQueryAtRoot(name string, sub *Query) ([]hashsum.Hash, error) {
	var rows []candidateRow
	err := e.store.DB.Raw(
		`SELECT file_hash AS candidate, hash_sum AS child_hash FROM edges WHERE this_hash = ?`,
		nameHash(name),
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("tagquery: findIn HasDescendantWithQuery(%q): %w", name, err)
	}

	seen := make(map[hashsum.Hash]bool)
	var out []hashsum.Hash
	for _, row := range rows {
		var childHash hashsum.Hash
		copy(childHash[:], row.ChildHash)
		ok, err := e.Matches(childHash, sub)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var candidate hashsum.Hash
		copy(candidate[:], row.Candidate)
		if !seen[candidate] {
			seen[candidate] = true
			out = append(out, candidate)
		}
	}
	return out, nil
}

func (e *Engine) findOr(parentHashSum hashsum.Hash, operands []*Query) ([]hashsum.Hash, error) {
	seen := make(map[hashsum.Hash]bool)
	var out []hashsum.Hash
	for _, operand := range operands {
		results, err := e.FindIn(parentHashSum, operand)
		if err != nil {
			return nil, err
		}
		for _, h := range results {
			if !seen[h] {
				seen[h] = true
				out = append(out, h)
			}
		}
	}
	return out, nil
}

func (e *Engine) findXor(parentHashSum hashsum.Hash, operands []*Query) ([]hashsum.Hash, error) {
	counts := make(map[hashsum.Hash]int)
	var order []hashsum.Hash
	for _, operand := range operands {
		results, err := e.FindIn(parentHashSum, operand)
		if err != nil {
			return nil, err
		}
		for _, h := range results {
			if counts[h] == 0 {
				order = append(order, h)
			}
			counts[h]++
		}
	}
	var out []hashsum.Hash
	for _, h := range order {
		if counts[h]%2 == 1 {
			out = append(out, h)
		}
	}
	return out, nil
}

func (e *Engine) findAnd(parentHashSum hashsum.Hash, operands []*Query) ([]hashsum.Hash, error) {
	if len(operands) == 0 {
		return nil, nil
	}

	smallest := 0
	smallestCount, err := e.QuickCount(operands[0])
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(operands); i++ {
		c, err := e.QuickCount(operands[i])
		if err != nil {
			return nil, err
		}
		if c < smallestCount {
			smallest = i
			smallestCount = c
		}
	}

	candidates, err := e.FindIn(parentHashSum, operands[smallest])
	if err != nil {
		return nil, err
	}

	var out []hashsum.Hash
	for _, candidate := range candidates {
		ok := true
		for i, operand := range operands {
			if i == smallest {
				continue
			}
			m, err := e.Matches(candidate, operand)
			if err != nil {
				return nil, err
			}
			if !m {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, candidate)
		}
	}
	return out, nil
}

// findNot rewrites negation before enumeration: De Morgan over And/Or
// always applies; leaf negations are only defined at file scope, where
// they are expressed against the universe of files that appear in the
// edge table at all.
func (e *Engine) findNot(parentHashSum hashsum.Hash, fileScope bool, inner *Query) ([]hashsum.Hash, error) {
	switch inner.Kind {
	case KindAnd:
		negated := make([]*Query, len(inner.Operands))
		for i, op := range inner.Operands {
			negated[i] = Not(op)
		}
		return e.findOr(parentHashSum, negated)

	case KindOr:
		negated := make([]*Query, len(inner.Operands))
		for i, op := range inner.Operands {
			negated[i] = Not(op)
		}
		return e.findAnd(parentHashSum, negated)

	case KindNot:
		return e.FindIn(parentHashSum, inner.Operands[0])
	}

	if !fileScope {
		return nil, fmt.Errorf("tagquery: findIn Not(%v) at non-root scope: %w", inner.Kind, ErrNotImplemented)
	}

	switch inner.Kind {
	case KindHasDescendant:
		return e.complementOfFiles(func() ([]hashsum.Hash, error) {
			return e.findHasDescendantAtRoot(inner.Name)
		})
	case KindHasChild:
		return e.complementOfFiles(func() ([]hashsum.Hash, error) {
			return e.findHasChild(hashsum.Zero, true, inner.Name)
		})
	case KindHasChildWithQuery:
		return e.complementOfFiles(func() ([]hashsum.Hash, error) {
			return e.findHasChildWithQuery(hashsum.Zero, true, inner.Name, inner.Operands[0])
		})
	default:
		return nil, fmt.Errorf("tagquery: findIn Not(%v): %w", inner.Kind, ErrNotImplemented)
	}
}

func (e *Engine) complementOfFiles(positive func() ([]hashsum.Hash, error)) ([]hashsum.Hash, error) {
	var allFiles [][]byte
	if err := e.store.DB.Table("edges").Distinct().Pluck("file_hash", &allFiles).Error; err != nil {
		return nil, fmt.Errorf("tagquery: findIn Not: enumerating file universe: %w", err)
	}
	positiveSet, err := positive()
	if err != nil {
		return nil, err
	}
	exclude := make(map[hashsum.Hash]bool, len(positiveSet))
	for _, h := range positiveSet {
		exclude[h] = true
	}

	var out []hashsum.Hash
	for _, h := range toHashes(allFiles) {
		if !exclude[h] {
			out = append(out, h)
		}
	}
	return out, nil
}

func toHashes(rows [][]byte) []hashsum.Hash {
	out := make([]hashsum.Hash, len(rows))
	for i, row := range rows {
		copy(out[i][:], row)
	}
	return out
}
