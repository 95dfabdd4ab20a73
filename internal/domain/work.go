package domain

import (
	"fmt"
	"time"
)

// Identity is the immutable source identity of a work. Everything else about
// a work may change between fetches; the identity never does.
type Identity struct {
	Provider string // source site, e.g. "pixiv"
	SourceID string // provider-scoped stable ID
}

// Key returns the canonical string form used for store keys and UUID input.
func (id Identity) Key() string {
	return id.Provider + "/" + id.SourceID
}

func (id Identity) String() string {
	return id.Key()
}

// IsValid reports whether both identity components are present.
func (id Identity) IsValid() bool {
	return id.Provider != "" && id.SourceID != ""
}

// SeriesRef points at the series a work belongs to, when it belongs to one.
type SeriesRef struct {
	ID    string
	Title string
}

// ImageRef tracks a single embedded image through the pipeline.
//
// ContentHash is always computed over the original bytes, never the
// compressed variant, so compression settings cannot affect diffing.
type ImageRef struct {
	Token      string // marker token from the body text, e.g. "uploadedimage:123"
	Filename   string // file name inside the workspace images dir
	LocalPath  string // absolute path of the original, set once resolved
	Compressed string // absolute path of the compressed variant, empty if none

	ContentHash string // hex sha256 of the original bytes
}

// Resolved reports whether the pipeline has bound this reference to local
// bytes and hashed them.
func (r ImageRef) Resolved() bool {
	return r.LocalPath != "" && r.ContentHash != ""
}

// Chapter is one spine-level division of a work.
type Chapter struct {
	Order int    // dense 1-based sequence
	Title string // explicit or synthesized, never empty after parsing
	Nodes []Node // top-level document nodes

	// ImageTokens lists embedded image markers in document order.
	ImageTokens []string
}

// PlainText returns the chapter's text content with all markup stripped,
// in document order. This is the text that enters the content fingerprint.
func (c Chapter) PlainText() string {
	return nodesPlainText(c.Nodes)
}

// Work is one author-published item addressed by a stable identity.
type Work struct {
	Identity Identity
	Title    string
	Author   string
	Summary  string
	Tags     []string
	Series   *SeriesRef

	Chapters []Chapter
	Images   []ImageRef // all inline images in document order
	Cover    *ImageRef  // optional cover asset, not part of the body

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ImageByToken finds the resolved reference for a body token.
func (w *Work) ImageByToken(token string) (ImageRef, bool) {
	for _, img := range w.Images {
		if img.Token == token {
			return img, true
		}
	}
	return ImageRef{}, false
}

// SynthesizeTitle returns the fallback title for an untitled chapter.
func SynthesizeTitle(order int) string {
	return fmt.Sprintf("Chapter %d", order)
}
