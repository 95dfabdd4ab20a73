// Package fingerprint decides whether a work's rebuild is necessary and
// assigns its stable EPUB identity.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/text/unicode/norm"

	"github.com/mizutanik/shiori/internal/domain"
)

// formatVersion leads the canonical stream. The canonical form is a
// versioned contract: changing what participates or how it is serialized
// invalidates every stored fingerprint, so any such change must bump this.
const formatVersion = "shiori-fp-v1"

// Compute returns the content fingerprint of a work: a sha256 digest over
// the canonical serialization of title, author, summary, series, tags,
// chapter titles and texts in order, and image content hashes in order.
//
// Text is NFC-normalized before hashing so provider-side normalization
// drift does not trigger spurious rebuilds. Image hashes are taken over
// original bytes, so compression settings never enter the fingerprint.
//
// Every inline image must be resolved; an unresolved reference makes the
// decision unsafe and fails with ErrFingerprint.
func Compute(w *domain.Work) (string, error) {
	h := sha256.New()
	frame(h, formatVersion)
	frame(h, canon(w.Title))
	frame(h, canon(w.Author))
	frame(h, canon(w.Summary))
	if w.Series != nil {
		frame(h, canon(w.Series.ID))
		frame(h, canon(w.Series.Title))
	} else {
		frame(h, "")
		frame(h, "")
	}
	frame(h, fmt.Sprintf("%d", len(w.Tags)))
	for _, tag := range w.Tags {
		frame(h, canon(tag))
	}

	frame(h, fmt.Sprintf("%d", len(w.Chapters)))
	for _, ch := range w.Chapters {
		frame(h, canon(ch.Title))
		frame(h, canon(ch.PlainText()))
	}

	frame(h, fmt.Sprintf("%d", len(w.Images)))
	for _, img := range w.Images {
		if img.ContentHash == "" {
			return "", fmt.Errorf("%w: image %q has no content hash", domain.ErrFingerprint, img.Token)
		}
		frame(h, img.ContentHash)
	}
	if w.Cover != nil {
		if w.Cover.ContentHash == "" {
			return "", fmt.Errorf("%w: cover has no content hash", domain.ErrFingerprint)
		}
		frame(h, w.Cover.ContentHash)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// frame writes a length-prefixed field so that no combination of field
// contents can collide with another field layout.
func frame(h hash.Hash, s string) {
	fmt.Fprintf(h, "%d:", len(s))
	h.Write([]byte(s))
}

func canon(s string) string {
	return norm.NFC.String(s)
}

// Decide compares a freshly computed fingerprint against the stored library
// entry for the same identity. A nil entry means the work was never built.
func Decide(entry *domain.LibraryEntry, fp string) domain.Decision {
	switch {
	case entry == nil:
		return domain.DecisionNew
	case entry.Fingerprint == fp:
		return domain.DecisionUnchanged
	default:
		return domain.DecisionChanged
	}
}
