package domain

import (
	"context"
	"time"
)

// RawImage is an unfetched image reference as reported by the provider.
type RawImage struct {
	Token    string // body marker token, empty for the cover
	URL      string // provider URL or opaque locator
	Filename string // suggested file name, derived from URL when empty
}

// RawWork is a work as delivered by the fetch collaborator: raw body text
// plus metadata and unfetched image references. Authentication, retries and
// rate limiting are the collaborator's problem, not the pipeline's.
type RawWork struct {
	Identity Identity
	Title    string
	Author   string
	Summary  string
	Tags     []string
	Series   *SeriesRef
	Text     string

	Images []RawImage
	Cover  *RawImage

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Fetcher is implemented by provider clients. The pipeline drives fetch
// ordering but never interprets URLs or handles provider protocol concerns.
type Fetcher interface {
	// FetchWork retrieves a work's text and metadata.
	// Returns ErrNotFound when the identity does not exist at the provider.
	FetchWork(ctx context.Context, id Identity) (*RawWork, error)

	// FetchImage retrieves the original bytes of one image.
	FetchImage(ctx context.Context, img RawImage) ([]byte, error)
}

// Store persists library entries keyed by identity.
type Store interface {
	// Get returns the entry for an identity, or nil when none exists.
	Get(id Identity) (*LibraryEntry, error)

	// Put inserts or replaces the entry for entry.Identity.
	Put(entry LibraryEntry) error

	// List returns all entries in unspecified order.
	List() ([]LibraryEntry, error)

	// Lock serializes builds of one identity. The returned func releases.
	Lock(id Identity) func()

	Close() error
}
