package fingerprint

import (
	"github.com/google/uuid"

	"github.com/mizutanik/shiori/internal/domain"
)

// epubNamespace is the fixed namespace for deriving EPUB unique identifiers.
// Like the fingerprint format it is a versioned contract: changing it would
// re-identify every book in every reader library.
var epubNamespace = uuid.MustParse("8c2e9a74-41db-4f1c-9e07-5b6a3f0d2c11")

// AssignUUID derives the EPUB unique identifier for an identity. It is a
// pure function of the identity alone, never of content, so successive
// builds of the same work are recognized by readers as editions of one book.
func AssignUUID(id domain.Identity) string {
	return uuid.NewSHA1(epubNamespace, []byte(id.Key())).String()
}
