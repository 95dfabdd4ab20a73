package domain

import "errors"

// Sentinel errors for pipeline operations
var (
	// ErrNotFound indicates the requested work or library entry does not exist
	ErrNotFound = errors.New("not found")

	// ErrUnchanged indicates the work's content fingerprint matches the
	// stored one and no rebuild was performed
	ErrUnchanged = errors.New("content unchanged")

	// ErrFingerprint indicates the content fingerprint could not be computed;
	// without it New/Unchanged/Changed cannot be decided safely
	ErrFingerprint = errors.New("fingerprint computation failed")

	// ErrPackaging indicates EPUB assembly failed; the staged archive is
	// discarded and the library store untouched
	ErrPackaging = errors.New("epub packaging failed")

	// ErrStoreCorrupt indicates the library store cannot be read or written
	// consistently; requires operator intervention, never auto-repaired
	ErrStoreCorrupt = errors.New("library store corrupt")
)
