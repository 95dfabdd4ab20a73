// Package provider holds fetch collaborators. The pipeline itself never
// talks to a provider directly; it only sees the domain.Fetcher interface.
//
// The file provider reads works from a local directory tree, which is how
// externally downloaded or exported content enters the pipeline without any
// network collaborator. Layout:
//
//	<root>/<provider>/<sourceID>/work.json
//	<root>/<provider>/<sourceID>/images/...
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mizutanik/shiori/internal/domain"
)

// FileFetcher implements domain.Fetcher over a local directory tree.
type FileFetcher struct {
	root string
}

func NewFileFetcher(root string) *FileFetcher {
	return &FileFetcher{root: root}
}

// workFile is the on-disk JSON shape of one work. Image URLs are paths
// relative to the work's directory.
type workFile struct {
	Title   string            `json:"title"`
	Author  string            `json:"author"`
	Summary string            `json:"summary,omitempty"`
	Tags    []string          `json:"tags,omitempty"`
	Series  *domain.SeriesRef `json:"series,omitempty"`
	Text    string            `json:"text"`

	Images []domain.RawImage `json:"images,omitempty"`
	Cover  *domain.RawImage  `json:"cover,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

func (f *FileFetcher) workDir(id domain.Identity) string {
	return filepath.Join(f.root, id.Provider, id.SourceID)
}

func (f *FileFetcher) FetchWork(ctx context.Context, id domain.Identity) (*domain.RawWork, error) {
	data, err := os.ReadFile(filepath.Join(f.workDir(id), "work.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("work %s: %w", id.Key(), domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read work %s: %w", id.Key(), err)
	}
	var wf workFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse work %s: %w", id.Key(), err)
	}

	raw := &domain.RawWork{
		Identity:  id,
		Title:     wf.Title,
		Author:    wf.Author,
		Summary:   wf.Summary,
		Tags:      wf.Tags,
		Series:    wf.Series,
		Text:      wf.Text,
		Images:    wf.Images,
		Cover:     wf.Cover,
		CreatedAt: wf.CreatedAt,
		UpdatedAt: wf.UpdatedAt,
	}
	// Anchor relative image paths at the work dir so FetchImage can stay
	// identity-agnostic.
	for i := range raw.Images {
		raw.Images[i].URL = filepath.Join(f.workDir(id), raw.Images[i].URL)
	}
	if raw.Cover != nil {
		raw.Cover.URL = filepath.Join(f.workDir(id), raw.Cover.URL)
	}
	return raw, nil
}

func (f *FileFetcher) FetchImage(ctx context.Context, img domain.RawImage) ([]byte, error) {
	data, err := os.ReadFile(img.URL)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", img.URL, err)
	}
	return data, nil
}
