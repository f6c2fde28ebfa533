package repository

import "errors"

var (
	// ErrNotEmpty is returned by Init when the target directory already
	// has any entries.
	ErrNotEmpty = errors.New("repository: init target directory is not empty")

	// ErrIntegrityMismatch signals two blobs that share a hash but
	// disagree on size — a fatal condition that must never be silently
	// overwritten.
	ErrIntegrityMismatch = errors.New("repository: blob size mismatch for existing hash")

	// ErrMislabeled signals a stored tree that self-checks but whose
	// root hash does not match the hash it was filed under.
	ErrMislabeled = errors.New("repository: stored tree hash does not match its filename")
)
