package tagquery

import "errors"

// ErrNotImplemented signals a query shape the reference tag-query engine
// never implemented, so filemass surfaces it as a distinct error rather
// than silently returning an empty or wrong result:
//
//   - HasDescendant enumeration at a non-root scope.
//   - HasDescendantWithQuery enumeration at a non-root scope.
//   - matches() descending past the hand-coded depth-3 HasDescendant join.
//   - Not(Xor(...)) and Not(HasDescendantWithQuery(...)) at any scope.
var ErrNotImplemented = errors.New("tagquery: query shape not implemented")
