// Package images resolves image references to local assets: hashing the
// original bytes for the diff engine and optionally producing compressed
// variants via external binaries.
package images

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/mizutanik/shiori/internal/domain"
	"github.com/mizutanik/shiori/internal/workspace"
)

// Pipeline binds workspace image files to ImageRefs.
type Pipeline struct {
	comp    *Compressor // nil when compression is disabled
	workers int
	logger  *slog.Logger
}

func NewPipeline(comp *Compressor, workers int, logger *slog.Logger) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{comp: comp, workers: workers, logger: logger}
}

// Resolve hashes every workspace image over its original bytes. Each image
// resolves independently on a bounded pool; an unreadable image is logged
// and dropped, never fatal for the build. Order is preserved.
//
// Resolve performs no compression: content hashes must exist before any
// compression runs so that compression settings never affect diffing.
func (p *Pipeline) Resolve(ctx context.Context, ws *workspace.Workspace) ([]domain.ImageRef, *domain.ImageRef, error) {
	entries := ws.Manifest.Images
	refs := make([]domain.ImageRef, len(entries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, entry := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ref, err := resolveOne(ws, entry)
			if err != nil {
				p.logger.Warn("image skipped", "token", entry.Token, "error", err)
				return nil
			}
			refs[i] = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	resolved := refs[:0]
	for _, ref := range refs {
		if ref.Resolved() {
			resolved = append(resolved, ref)
		}
	}

	var cover *domain.ImageRef
	if ws.Manifest.Cover != nil {
		ref, err := resolveOne(ws, *ws.Manifest.Cover)
		if err != nil {
			p.logger.Warn("cover skipped", "error", err)
		} else {
			cover = &ref
		}
	}
	return resolved, cover, nil
}

func resolveOne(ws *workspace.Workspace, entry workspace.ImageEntry) (domain.ImageRef, error) {
	path := ws.ImagePath(entry.Filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ImageRef{}, fmt.Errorf("read image: %w", err)
	}
	sum := sha256.Sum256(data)
	return domain.ImageRef{
		Token:       entry.Token,
		Filename:    entry.Filename,
		LocalPath:   path,
		ContentHash: hex.EncodeToString(sum[:]),
	}, nil
}

// Compress produces compressed variants for already-resolved refs, in
// place. Runs after the fingerprint is computed. Failures fall back to the
// original file per image; only context cancellation stops the pool.
func (p *Pipeline) Compress(ctx context.Context, refs []domain.ImageRef) error {
	if p.comp == nil {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range refs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := p.comp.Compress(ctx, refs[i].LocalPath)
			if err != nil {
				p.logger.Warn("compression failed, using original",
					"file", refs[i].Filename, "error", err)
				return nil
			}
			refs[i].Compressed = out
			return nil
		})
	}
	return g.Wait()
}
