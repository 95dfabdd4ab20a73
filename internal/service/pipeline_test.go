package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mizutanik/shiori/internal/config"
	"github.com/mizutanik/shiori/internal/domain"
	"github.com/mizutanik/shiori/internal/epub"
	"github.com/mizutanik/shiori/internal/log"
	"github.com/mizutanik/shiori/internal/provider"
	"github.com/mizutanik/shiori/internal/store"
)

var testClock = time.Date(2024, time.July, 15, 8, 30, 0, 0, time.UTC)

type sourceWork struct {
	Title   string            `json:"title"`
	Author  string            `json:"author"`
	Summary string            `json:"summary,omitempty"`
	Tags    []string          `json:"tags,omitempty"`
	Series  *domain.SeriesRef `json:"series,omitempty"`
	Text    string            `json:"text"`
	Images  []domain.RawImage `json:"images,omitempty"`
	Cover   *domain.RawImage  `json:"cover,omitempty"`
}

func writeSourceWork(t *testing.T, root string, id domain.Identity, w sourceWork) {
	t.Helper()
	dir := filepath.Join(root, id.Provider, id.SourceID)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "images"), 0o755))
	data, err := json.MarshalIndent(w, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "work.json"), data, 0o644))
}

func writeSourceImage(t *testing.T, root string, id domain.Identity, name string, data []byte) {
	t.Helper()
	p := filepath.Join(root, id.Provider, id.SourceID, "images", name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
}

type testEnv struct {
	svc     *Service
	store   *store.LibraryStore
	sources string
	outDir  string
}

func newTestEnv(t *testing.T, sources string) *testEnv {
	t.Helper()
	base := t.TempDir()
	cfg := &config.Config{
		Library: config.LibraryConfig{
			Path:      filepath.Join(base, "library.db"),
			Workspace: filepath.Join(base, "workspaces"),
		},
		Output: config.OutputConfig{
			Directory: filepath.Join(base, "books"),
			Pattern:   "{provider}/{author}/{title}.epub",
		},
		Compression: config.CompressionConfig{Workers: 2},
	}
	st, err := store.Open(cfg.Library.Path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := New(cfg, provider.NewFileFetcher(sources), st, log.NullLogger())
	svc.now = func() time.Time { return testClock }
	return &testEnv{svc: svc, store: st, sources: sources, outDir: cfg.Output.Directory}
}

var workID = domain.Identity{Provider: "pixiv", SourceID: "9001"}

func basicSourceWork() sourceWork {
	return sourceWork{
		Title:   "夜の図書館",
		Author:  "作者名",
		Summary: "A library at night.",
		Tags:    []string{"fantasy", "library"},
		Text:    "First chapter body.\n[newpage]\n[chapter:二章]Second chapter body with [[rb:振仮名>>ふりがな]].",
		Images: []domain.RawImage{
			{Token: "uploadedimage:1", URL: "images/p1.png", Filename: "p1.png"},
		},
		Cover: &domain.RawImage{URL: "images/cover.jpg", Filename: "cover.jpg"},
	}
}

func seedBasicWork(t *testing.T, sources string) {
	t.Helper()
	writeSourceWork(t, sources, workID, basicSourceWork())
	writeSourceImage(t, sources, workID, "p1.png", []byte("png image bytes"))
	writeSourceImage(t, sources, workID, "cover.jpg", []byte("cover image bytes"))
}

func downloadAndBuild(t *testing.T, env *testEnv) BuildResult {
	t.Helper()
	ws, err := env.svc.Download(context.Background(), workID)
	require.NoError(t, err)
	res, err := env.svc.Build(context.Background(), ws)
	require.NoError(t, err)
	return res
}

func TestBuild_NewWorkProducesValidEpub(t *testing.T) {
	sources := t.TempDir()
	seedBasicWork(t, sources)
	env := newTestEnv(t, sources)

	res := downloadAndBuild(t, env)

	assert.Equal(t, domain.DecisionNew, res.Decision)
	assert.FileExists(t, res.Path)
	assert.Equal(t, filepath.Join(env.outDir, "pixiv", "作者名", "夜の図書館.epub"), res.Path)
	require.NoError(t, epub.Verify(res.Path))

	uid, err := epub.UniqueIdentifier(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "urn:uuid:"+res.UUID, uid)

	entry, err := env.store.Get(workID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, res.UUID, entry.EpubUUID)
	assert.Equal(t, res.Path, entry.EpubPath)
	assert.NotEmpty(t, entry.Fingerprint)
	assert.True(t, testClock.Equal(entry.LastBuiltAt))
}

func TestBuild_UnchangedShortCircuits(t *testing.T) {
	sources := t.TempDir()
	seedBasicWork(t, sources)
	env := newTestEnv(t, sources)

	first := downloadAndBuild(t, env)
	firstBytes, err := os.ReadFile(first.Path)
	require.NoError(t, err)

	second := downloadAndBuild(t, env)
	assert.Equal(t, domain.DecisionUnchanged, second.Decision)
	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, first.UUID, second.UUID)

	after, err := os.ReadFile(second.Path)
	require.NoError(t, err)
	assert.Equal(t, firstBytes, after, "unchanged build must not rewrite the file")
}

func TestBuild_ChangedContentKeepsUUID(t *testing.T) {
	sources := t.TempDir()
	seedBasicWork(t, sources)
	env := newTestEnv(t, sources)

	first := downloadAndBuild(t, env)

	w := basicSourceWork()
	w.Text += "\n[newpage]\nA brand new third chapter."
	writeSourceWork(t, sources, workID, w)

	second := downloadAndBuild(t, env)
	assert.Equal(t, domain.DecisionChanged, second.Decision)
	assert.Equal(t, first.UUID, second.UUID, "rebuilds keep the reading-position identity")
	require.NoError(t, epub.Verify(second.Path))

	entry, err := env.store.Get(workID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.NotEmpty(t, entry.Fingerprint)
}

func TestBuild_ImageChangeIsDetected(t *testing.T) {
	sources := t.TempDir()
	seedBasicWork(t, sources)
	env := newTestEnv(t, sources)

	downloadAndBuild(t, env)

	writeSourceImage(t, sources, workID, "p1.png", []byte("replaced image bytes"))

	second := downloadAndBuild(t, env)
	assert.Equal(t, domain.DecisionChanged, second.Decision)
}

func TestDiffCheck(t *testing.T) {
	sources := t.TempDir()
	seedBasicWork(t, sources)
	env := newTestEnv(t, sources)

	decision, err := env.svc.DiffCheck(context.Background(), workID)
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionNew, decision)

	downloadAndBuild(t, env)

	decision, err = env.svc.DiffCheck(context.Background(), workID)
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionUnchanged, decision)

	w := basicSourceWork()
	w.Summary = "An edited summary."
	writeSourceWork(t, sources, workID, w)

	decision, err = env.svc.DiffCheck(context.Background(), workID)
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionChanged, decision)
}

func TestBuild_Idempotent(t *testing.T) {
	sources := t.TempDir()
	seedBasicWork(t, sources)

	envA := newTestEnv(t, sources)
	envB := newTestEnv(t, sources)

	resA := downloadAndBuild(t, envA)
	resB := downloadAndBuild(t, envB)

	bytesA, err := os.ReadFile(resA.Path)
	require.NoError(t, err)
	bytesB, err := os.ReadFile(resB.Path)
	require.NoError(t, err)
	assert.Equal(t, bytesA, bytesB, "same inputs and clock must produce identical bytes")
}

func TestBuild_FailureLeavesNoOutputOrEntry(t *testing.T) {
	sources := t.TempDir()
	seedBasicWork(t, sources)
	env := newTestEnv(t, sources)

	// Make the output root unusable: a regular file where the directory
	// tree should go.
	require.NoError(t, os.WriteFile(env.outDir, []byte("in the way"), 0o644))

	ws, err := env.svc.Download(context.Background(), workID)
	require.NoError(t, err)

	_, err = env.svc.Build(context.Background(), ws)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPackaging)

	entry, err := env.store.Get(workID)
	require.NoError(t, err)
	assert.Nil(t, entry, "a failed build must not record a library entry")
}

func TestDownload_UnknownWork(t *testing.T) {
	env := newTestEnv(t, t.TempDir())

	_, err := env.svc.Download(context.Background(), domain.Identity{Provider: "pixiv", SourceID: "404"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDownload_MissingImageSkipped(t *testing.T) {
	sources := t.TempDir()
	w := basicSourceWork()
	w.Images = append(w.Images, domain.RawImage{Token: "uploadedimage:2", URL: "images/missing.png", Filename: "missing.png"})
	writeSourceWork(t, sources, workID, w)
	writeSourceImage(t, sources, workID, "p1.png", []byte("png image bytes"))
	writeSourceImage(t, sources, workID, "cover.jpg", []byte("cover image bytes"))

	env := newTestEnv(t, sources)
	ws, err := env.svc.Download(context.Background(), workID)
	require.NoError(t, err)

	require.Len(t, ws.Manifest.Images, 1)
	assert.Equal(t, "uploadedimage:1", ws.Manifest.Images[0].Token)

	res, err := env.svc.Build(context.Background(), ws)
	require.NoError(t, err)
	require.NoError(t, epub.Verify(res.Path))
}

func TestList_FuzzyFilter(t *testing.T) {
	env := newTestEnv(t, t.TempDir())

	titles := []string{"夜の図書館", "Morning Light", "Midnight Library"}
	for i, title := range titles {
		require.NoError(t, env.store.Put(domain.LibraryEntry{
			Identity:    domain.Identity{Provider: "pixiv", SourceID: string(rune('a' + i))},
			Title:       title,
			Fingerprint: "fp",
			EpubUUID:    "uuid",
			LastBuiltAt: testClock.Add(time.Duration(i) * time.Hour),
		}))
	}

	all, err := env.svc.List("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Midnight Library", all[0].Title, "empty query sorts newest first")

	matched, err := env.svc.List("library")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "Midnight Library", matched[0].Title)
}

func TestOutputPath_Sanitization(t *testing.T) {
	env := newTestEnv(t, t.TempDir())

	w := &domain.Work{
		Identity: domain.Identity{Provider: "pixiv", SourceID: "1"},
		Title:    `a/b\c:d*e?f"g<h>i|j`,
		Author:   "  ",
	}
	got := env.svc.outputPath(w)
	assert.Equal(t, filepath.Join(env.outDir, "pixiv", "untitled", "a_b_c_d_e_f_g_h_i_j.epub"), got)
}
