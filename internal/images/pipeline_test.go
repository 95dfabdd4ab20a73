package images

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mizutanik/shiori/internal/domain"
	"github.com/mizutanik/shiori/internal/log"
	"github.com/mizutanik/shiori/internal/workspace"
)

func testWorkspace(t *testing.T, images map[string][]byte, cover []byte) *workspace.Workspace {
	t.Helper()

	m := workspace.Manifest{
		Identity: domain.Identity{Provider: "pixiv", SourceID: "1"},
		Title:    "title",
		Author:   "author",
	}
	ws, err := workspace.Create(filepath.Join(t.TempDir(), "ws"), m, "body")
	require.NoError(t, err)

	names := []string{"001_a.png", "002_b.jpg", "003_c.png"}
	tokens := []string{"uploadedimage:1", "uploadedimage:2", "uploadedimage:3"}
	for _, name := range names {
		data, ok := images[name]
		if !ok {
			continue
		}
		_, err := ws.WriteImage(name, data)
		require.NoError(t, err)
	}
	for i, name := range names {
		m.Images = append(m.Images, workspace.ImageEntry{Token: tokens[i], Filename: name})
	}
	if cover != nil {
		_, err := ws.WriteImage("cover.jpg", cover)
		require.NoError(t, err)
		m.Cover = &workspace.ImageEntry{Filename: "cover.jpg"}
	}
	require.NoError(t, ws.UpdateManifest(m))
	return ws
}

func sha256hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestResolve_HashesOriginals(t *testing.T) {
	files := map[string][]byte{
		"001_a.png": []byte("aaaa"),
		"002_b.jpg": []byte("bbbb"),
		"003_c.png": []byte("cccc"),
	}
	ws := testWorkspace(t, files, []byte("cover"))

	p := NewPipeline(nil, 4, log.NullLogger())
	refs, cover, err := p.Resolve(context.Background(), ws)
	require.NoError(t, err)

	require.Len(t, refs, 3)
	assert.Equal(t, "uploadedimage:1", refs[0].Token)
	assert.Equal(t, sha256hex([]byte("aaaa")), refs[0].ContentHash)
	assert.Equal(t, sha256hex([]byte("bbbb")), refs[1].ContentHash)
	assert.Equal(t, sha256hex([]byte("cccc")), refs[2].ContentHash)
	for _, ref := range refs {
		assert.Empty(t, ref.Compressed, "Resolve must not compress")
	}

	require.NotNil(t, cover)
	assert.Equal(t, sha256hex([]byte("cover")), cover.ContentHash)
}

func TestResolve_MissingFileSkippedPreservingOrder(t *testing.T) {
	files := map[string][]byte{
		"001_a.png": []byte("aaaa"),
		"003_c.png": []byte("cccc"),
	}
	ws := testWorkspace(t, files, nil)

	p := NewPipeline(nil, 2, log.NullLogger())
	refs, cover, err := p.Resolve(context.Background(), ws)
	require.NoError(t, err)
	assert.Nil(t, cover)

	require.Len(t, refs, 2)
	assert.Equal(t, "uploadedimage:1", refs[0].Token)
	assert.Equal(t, "uploadedimage:3", refs[1].Token)
}

func TestResolve_CanceledContext(t *testing.T) {
	ws := testWorkspace(t, map[string][]byte{"001_a.png": []byte("a")}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(nil, 1, log.NullLogger())
	_, _, err := p.Resolve(ctx, ws)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompress_NoopWithoutCompressor(t *testing.T) {
	refs := []domain.ImageRef{{Token: "uploadedimage:1", LocalPath: "/tmp/a.png", ContentHash: "x"}}

	p := NewPipeline(nil, 2, log.NullLogger())
	require.NoError(t, p.Compress(context.Background(), refs))
	assert.Empty(t, refs[0].Compressed)
}
