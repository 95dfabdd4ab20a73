package domain

import "time"

// Decision is the diff engine's verdict for a work.
type Decision int

const (
	// DecisionNew means no library entry exists for the identity.
	DecisionNew Decision = iota
	// DecisionUnchanged means the stored fingerprint matches; downstream
	// stages are skipped entirely.
	DecisionUnchanged
	// DecisionChanged means the content fingerprint differs from the
	// stored one and the EPUB must be rebuilt.
	DecisionChanged
)

func (d Decision) String() string {
	switch d {
	case DecisionNew:
		return "new"
	case DecisionUnchanged:
		return "unchanged"
	case DecisionChanged:
		return "changed"
	default:
		return "unknown"
	}
}

// LibraryEntry is the durable record tying a work's identity to its last
// built EPUB. Created on first successful build, updated in place on every
// rebuild, never deleted automatically.
type LibraryEntry struct {
	Identity    Identity  `json:"identity"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Fingerprint string    `json:"fingerprint"`
	EpubUUID    string    `json:"epub_uuid"`
	EpubPath    string    `json:"epub_path"`
	LastBuiltAt time.Time `json:"last_built_at"`
}
