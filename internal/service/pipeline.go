// Package service orchestrates the conversion pipeline: download into a raw
// workspace, incremental diff against the library, and EPUB builds. It is
// the only surface the CLI (or any other host) calls.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/mizutanik/shiori/internal/config"
	"github.com/mizutanik/shiori/internal/domain"
	"github.com/mizutanik/shiori/internal/epub"
	"github.com/mizutanik/shiori/internal/fingerprint"
	"github.com/mizutanik/shiori/internal/images"
	"github.com/mizutanik/shiori/internal/markup"
	"github.com/mizutanik/shiori/internal/render"
	"github.com/mizutanik/shiori/internal/workspace"
)

// BuildResult reports the outcome of a build.
type BuildResult struct {
	Decision domain.Decision
	Path     string // EPUB path; for Unchanged, the previously built one
	UUID     string
}

// Service wires the pipeline stages together. All state is per-call; one
// Service handles independent works concurrently.
type Service struct {
	cfg     *config.Config
	fetcher domain.Fetcher
	store   domain.Store
	parser  *markup.Parser
	render  *render.Renderer
	images  *images.Pipeline
	pack    *epub.Packager
	logger  *slog.Logger

	now func() time.Time // injectable clock for tests
}

func New(cfg *config.Config, fetcher domain.Fetcher, st domain.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	var comp *images.Compressor
	if cfg.Compression.Enabled {
		comp = images.NewCompressor(cfg.Compression.Pngquant, cfg.Compression.Jpegoptim, cfg.Compression.Cwebp, logger)
	}
	return &Service{
		cfg:     cfg,
		fetcher: fetcher,
		store:   st,
		parser:  markup.NewParser(logger),
		render:  render.NewRenderer("../css/style.css", ""),
		images:  images.NewPipeline(comp, cfg.Compression.Workers, logger),
		pack:    epub.NewPackager("", logger),
		logger:  logger,
		now:     time.Now,
	}
}

// Download fetches a work and persists it as a raw workspace: body text,
// metadata manifest, and original image bytes. A failed image fetch skips
// that image and continues; the build stage copes with whatever landed.
func (s *Service) Download(ctx context.Context, id domain.Identity) (*workspace.Workspace, error) {
	if !id.IsValid() {
		return nil, fmt.Errorf("download: invalid identity %q", id.Key())
	}
	raw, err := s.fetcher.FetchWork(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", id.Key(), err)
	}

	root := filepath.Join(s.cfg.Library.Workspace, id.Provider, id.SourceID)
	m := workspace.Manifest{
		Identity:  id,
		Title:     raw.Title,
		Author:    raw.Author,
		Summary:   raw.Summary,
		Tags:      raw.Tags,
		Series:    raw.Series,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
		FetchedAt: s.now(),
	}
	ws, err := workspace.Create(root, m, raw.Text)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", id.Key(), err)
	}

	for i, img := range raw.Images {
		entry, err := s.fetchImage(ctx, ws, img, i)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("image fetch failed, skipping", "work", id.Key(), "token", img.Token, "error", err)
			continue
		}
		m.Images = append(m.Images, entry)
	}
	if raw.Cover != nil {
		entry, err := s.fetchImage(ctx, ws, *raw.Cover, -1)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("cover fetch failed, skipping", "work", id.Key(), "error", err)
		} else {
			m.Cover = &entry
		}
	}
	if err := ws.UpdateManifest(m); err != nil {
		return nil, fmt.Errorf("download %s: %w", id.Key(), err)
	}

	s.logger.Info("workspace ready", "work", id.Key(), "images", len(m.Images), "root", root)
	return ws, nil
}

func (s *Service) fetchImage(ctx context.Context, ws *workspace.Workspace, img domain.RawImage, index int) (workspace.ImageEntry, error) {
	data, err := s.fetcher.FetchImage(ctx, img)
	if err != nil {
		return workspace.ImageEntry{}, err
	}
	name := imageFilename(img, index)
	if _, err := ws.WriteImage(name, data); err != nil {
		return workspace.ImageEntry{}, err
	}
	return workspace.ImageEntry{Token: img.Token, Filename: name}, nil
}

// imageFilename derives a stable workspace file name for an image. Body
// images are index-prefixed to keep document order visible on disk; the
// cover (index < 0) keeps a fixed stem.
func imageFilename(img domain.RawImage, index int) string {
	name := img.Filename
	if name == "" {
		name = path.Base(img.URL)
		if i := strings.IndexAny(name, "?#"); i >= 0 {
			name = name[:i]
		}
	}
	name = sanitizeFilename(name)
	if name == "" || name == "." {
		name = "image"
	}
	if index < 0 {
		return "cover" + filepath.Ext(name)
	}
	return fmt.Sprintf("%03d_%s", index+1, name)
}

// Build runs the conversion pipeline over a downloaded workspace. When the
// content fingerprint matches the stored entry the pipeline short-circuits:
// no compression, no rendering, no EPUB write.
func (s *Service) Build(ctx context.Context, ws *workspace.Workspace) (BuildResult, error) {
	id := ws.Manifest.Identity

	rawText, err := ws.RawText()
	if err != nil {
		return BuildResult{}, fmt.Errorf("build %s: %w", id.Key(), err)
	}
	chapters := s.parser.Parse(rawText)

	refs, cover, err := s.images.Resolve(ctx, ws)
	if err != nil {
		return BuildResult{}, fmt.Errorf("build %s: resolve images: %w", id.Key(), err)
	}
	work := assembleWork(ws.Manifest, chapters, refs, cover)

	fp, err := fingerprint.Compute(work)
	if err != nil {
		return BuildResult{}, fmt.Errorf("build %s: %w", id.Key(), err)
	}

	unlock := s.store.Lock(id)
	defer unlock()

	entry, err := s.store.Get(id)
	if err != nil {
		return BuildResult{}, fmt.Errorf("build %s: %w", id.Key(), err)
	}
	decision := fingerprint.Decide(entry, fp)
	if decision == domain.DecisionUnchanged {
		s.logger.Info("content unchanged, skipping build", "work", id.Key())
		return BuildResult{Decision: decision, Path: entry.EpubPath, UUID: entry.EpubUUID}, nil
	}

	epubUUID := fingerprint.AssignUUID(id)

	// Compression runs only now: the fingerprint above saw original bytes.
	if err := s.images.Compress(ctx, refs); err != nil {
		return BuildResult{}, fmt.Errorf("build %s: %w", id.Key(), err)
	}

	docs, assets := s.prepareAssets(work, refs, cover)
	outPath := s.outputPath(work)
	buildTime := s.now()

	if err := s.pack.Package(ctx, work, docs, assets, epubUUID, buildTime, outPath); err != nil {
		return BuildResult{}, fmt.Errorf("build %s: %w", id.Key(), err)
	}

	newEntry := domain.LibraryEntry{
		Identity:    id,
		Title:       work.Title,
		Author:      work.Author,
		Fingerprint: fp,
		EpubUUID:    epubUUID,
		EpubPath:    outPath,
		LastBuiltAt: buildTime,
	}
	if err := s.store.Put(newEntry); err != nil {
		return BuildResult{}, fmt.Errorf("build %s: record entry: %w", id.Key(), err)
	}

	if s.cfg.Output.CleanupWorkspace {
		if err := ws.Remove(); err != nil {
			s.logger.Warn("workspace cleanup failed", "work", id.Key(), "error", err)
		}
	}

	s.logger.Info("build complete", "work", id.Key(), "decision", decision.String(), "path", outPath)
	return BuildResult{Decision: decision, Path: outPath, UUID: epubUUID}, nil
}

// DiffCheck fetches the work fresh and reports whether a build would do
// anything, without building.
func (s *Service) DiffCheck(ctx context.Context, id domain.Identity) (domain.Decision, error) {
	ws, err := s.Download(ctx, id)
	if err != nil {
		return 0, err
	}
	rawText, err := ws.RawText()
	if err != nil {
		return 0, fmt.Errorf("diff %s: %w", id.Key(), err)
	}
	chapters := s.parser.Parse(rawText)
	refs, cover, err := s.images.Resolve(ctx, ws)
	if err != nil {
		return 0, fmt.Errorf("diff %s: resolve images: %w", id.Key(), err)
	}
	fp, err := fingerprint.Compute(assembleWork(ws.Manifest, chapters, refs, cover))
	if err != nil {
		return 0, fmt.Errorf("diff %s: %w", id.Key(), err)
	}
	entry, err := s.store.Get(id)
	if err != nil {
		return 0, fmt.Errorf("diff %s: %w", id.Key(), err)
	}
	return fingerprint.Decide(entry, fp), nil
}

func assembleWork(m workspace.Manifest, chapters []domain.Chapter, refs []domain.ImageRef, cover *domain.ImageRef) *domain.Work {
	return &domain.Work{
		Identity:  m.Identity,
		Title:     m.Title,
		Author:    m.Author,
		Summary:   m.Summary,
		Tags:      m.Tags,
		Series:    m.Series,
		Chapters:  chapters,
		Images:    refs,
		Cover:     cover,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// prepareAssets renders every chapter and maps resolved images to packaged
// paths.
func (s *Service) prepareAssets(w *domain.Work, refs []domain.ImageRef, cover *domain.ImageRef) ([]epub.ChapterDoc, []epub.ImageAsset) {
	// Paths in content documents are relative to OEBPS/text/.
	imagePaths := make(map[string]string, len(refs))
	for _, ref := range refs {
		imagePaths[ref.Token] = "../images/" + ref.Filename
	}

	docs := make([]epub.ChapterDoc, 0, len(w.Chapters))
	for _, ch := range w.Chapters {
		docs = append(docs, epub.ChapterDoc{
			Order:   ch.Order,
			Title:   ch.Title,
			Href:    render.ChapterHref(ch.Order),
			Content: s.render.Render(ch, imagePaths),
		})
	}

	assets := make([]epub.ImageAsset, 0, len(refs)+1)
	for i, ref := range refs {
		assets = append(assets, epub.ImageAsset{
			ID:         fmt.Sprintf("img-%d", i+1),
			Href:       "images/" + ref.Filename,
			SourcePath: pickVariant(ref),
			MediaType:  epub.MediaTypeByExt(ref.Filename),
		})
	}
	if cover != nil {
		assets = append(assets, epub.ImageAsset{
			ID:         "cover-image",
			Href:       "images/" + cover.Filename,
			SourcePath: pickVariant(*cover),
			MediaType:  epub.MediaTypeByExt(cover.Filename),
			IsCover:    true,
		})
	}
	return docs, assets
}

// pickVariant prefers the compressed file when one was produced.
func pickVariant(ref domain.ImageRef) string {
	if ref.Compressed != "" {
		return ref.Compressed
	}
	return ref.LocalPath
}

// outputPath expands the configured output pattern for a work.
func (s *Service) outputPath(w *domain.Work) string {
	pattern := s.cfg.Output.Pattern
	if pattern == "" {
		pattern = "{author}/{title}.epub"
	}
	expand := strings.NewReplacer(
		"{provider}", sanitizeFilename(w.Identity.Provider),
		"{author}", sanitizeFilename(w.Author),
		"{title}", sanitizeFilename(w.Title),
		"{id}", sanitizeFilename(w.Identity.SourceID),
	)
	rel := expand.Replace(pattern)
	return filepath.Join(s.cfg.Output.Directory, filepath.FromSlash(rel))
}

// sanitizeFilename strips characters that are unsafe in file names on any
// supported platform.
func sanitizeFilename(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', '\x00':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		out = "untitled"
	}
	return out
}
