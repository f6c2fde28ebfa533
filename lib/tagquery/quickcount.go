package tagquery

import "fmt"

// QuickCount returns a cheap overestimate of q's result cardinality,
// used only to choose which And operand to enumerate from; exactness
// does not matter, only the relative ordering it induces.
func (e *Engine) QuickCount(q *Query) (int64, error) {
	switch q.Kind {
	case KindHasChild, KindHasDescendant, KindHasChildWithQuery, KindHasDescendantWithQuery:
		// HasChildWithQuery and HasDescendantWithQuery deliberately
		// ignore their sub-query here: it is a cheap upper bound, not an
		// exact count.
		var count int64
		err := e.store.DB.Table("edges").Where("this_hash = ?", nameHash(q.Name)).Count(&count).Error
		if err != nil {
			return 0, fmt.Errorf("tagquery: quickCount %q: %w", q.Name, err)
		}
		return count, nil

	case KindOr, KindXor:
		var total int64
		for _, operand := range q.Operands {
			c, err := e.QuickCount(operand)
			if err != nil {
				return 0, err
			}
			total += c
		}
		return total, nil

	case KindAnd:
		if len(q.Operands) == 0 {
			return 0, nil
		}
		min, err := e.QuickCount(q.Operands[0])
		if err != nil {
			return 0, err
		}
		for _, operand := range q.Operands[1:] {
			c, err := e.QuickCount(operand)
			if err != nil {
				return 0, err
			}
			if c < min {
				min = c
			}
		}
		return min, nil

	case KindNot:
		var total int64
		if err := e.store.DB.Table("edges").Count(&total).Error; err != nil {
			return 0, fmt.Errorf("tagquery: quickCount Not: %w", err)
		}
		inner, err := e.QuickCount(q.Operands[0])
		if err != nil {
			return 0, err
		}
		result := total - inner
		if result < 0 {
			result = 0
		}
		return result, nil

	default:
		return 0, fmt.Errorf("tagquery: quickCount: %w", ErrNotImplemented)
	}
}
