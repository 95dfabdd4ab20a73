package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mizutanik/shiori/internal/domain"
)

func testWork() *domain.Work {
	return &domain.Work{
		Identity: domain.Identity{Provider: "pixiv", SourceID: "12345"},
		Title:    "ある日の話",
		Author:   "author",
		Summary:  "summary",
		Tags:     []string{"fantasy", "short"},
		Chapters: []domain.Chapter{
			{Order: 1, Title: "Chapter 1", Nodes: []domain.Node{
				{Kind: domain.NodeParagraph, Children: []domain.Node{domain.TextNode("first chapter text")}},
			}},
			{Order: 2, Title: "Chapter 2", Nodes: []domain.Node{
				{Kind: domain.NodeParagraph, Children: []domain.Node{domain.TextNode("second chapter text")}},
			}},
		},
		Images: []domain.ImageRef{
			{Token: "uploadedimage:1", Filename: "001_a.png", LocalPath: "/tmp/a.png", ContentHash: "aaaa"},
		},
	}
}

func TestCompute_Deterministic(t *testing.T) {
	a, err := Compute(testWork())
	require.NoError(t, err)
	b, err := Compute(testWork())
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // hex sha256
}

func TestCompute_SingleCharacterChangeChangesFingerprint(t *testing.T) {
	base, err := Compute(testWork())
	require.NoError(t, err)

	w := testWork()
	w.Chapters[1].Nodes[0].Children[0].Text = "second chapter texT"
	changed, err := Compute(w)
	require.NoError(t, err)

	assert.NotEqual(t, base, changed)
}

func TestCompute_ChapterTitleParticipates(t *testing.T) {
	base, err := Compute(testWork())
	require.NoError(t, err)

	w := testWork()
	w.Chapters[0].Title = "Renamed"
	changed, err := Compute(w)
	require.NoError(t, err)

	assert.NotEqual(t, base, changed)
}

func TestCompute_CompressionVariantDoesNotParticipate(t *testing.T) {
	base, err := Compute(testWork())
	require.NoError(t, err)

	w := testWork()
	w.Images[0].Compressed = "/tmp/compressed/a.png"
	w.Images[0].LocalPath = "/somewhere/else/a.png"
	same, err := Compute(w)
	require.NoError(t, err)

	assert.Equal(t, base, same)
}

func TestCompute_ImageHashParticipates(t *testing.T) {
	base, err := Compute(testWork())
	require.NoError(t, err)

	w := testWork()
	w.Images[0].ContentHash = "bbbb"
	changed, err := Compute(w)
	require.NoError(t, err)

	assert.NotEqual(t, base, changed)
}

func TestCompute_UnresolvedImageFails(t *testing.T) {
	w := testWork()
	w.Images[0].ContentHash = ""

	_, err := Compute(w)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFingerprint)
}

func TestCompute_NFCNormalization(t *testing.T) {
	// "が" composed vs "か" + combining dakuten decompose to the same NFC
	// form and must fingerprint identically.
	composed, decomposed := "が", "が"
	require.NotEqual(t, composed, decomposed)

	a := testWork()
	a.Chapters[0].Nodes[0].Children[0].Text = composed
	b := testWork()
	b.Chapters[0].Nodes[0].Children[0].Text = decomposed

	fpA, err := Compute(a)
	require.NoError(t, err)
	fpB, err := Compute(b)
	require.NoError(t, err)

	assert.Equal(t, fpA, fpB)
}

func TestDecide(t *testing.T) {
	fp := "abc"
	entry := &domain.LibraryEntry{Fingerprint: "abc"}

	assert.Equal(t, domain.DecisionNew, Decide(nil, fp))
	assert.Equal(t, domain.DecisionUnchanged, Decide(entry, "abc"))
	assert.Equal(t, domain.DecisionChanged, Decide(entry, "xyz"))
}

func TestAssignUUID_Stable(t *testing.T) {
	id := domain.Identity{Provider: "pixiv", SourceID: "12345"}

	first := AssignUUID(id)
	second := AssignUUID(id)
	assert.Equal(t, first, second)
	assert.Len(t, first, 36)
}

func TestAssignUUID_DistinctIdentities(t *testing.T) {
	a := AssignUUID(domain.Identity{Provider: "pixiv", SourceID: "1"})
	b := AssignUUID(domain.Identity{Provider: "pixiv", SourceID: "2"})
	c := AssignUUID(domain.Identity{Provider: "fanbox", SourceID: "1"})

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, b, c)
}
