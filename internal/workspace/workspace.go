// Package workspace manages the on-disk staging area a download produces
// and a build consumes: the raw body text, a metadata manifest, and the
// original image files.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mizutanik/shiori/internal/domain"
)

const (
	manifestFile = "manifest.json"
	rawFile      = "raw.txt"
	imagesDir    = "images"
)

// ImageEntry records one downloaded image in the manifest.
type ImageEntry struct {
	Token    string `json:"token,omitempty"` // empty for the cover
	Filename string `json:"filename"`
}

// Manifest is the metadata record persisted alongside the raw text.
type Manifest struct {
	Identity domain.Identity   `json:"identity"`
	Title    string            `json:"title"`
	Author   string            `json:"author"`
	Summary  string            `json:"summary,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
	Series   *domain.SeriesRef `json:"series,omitempty"`

	Images []ImageEntry `json:"images,omitempty"`
	Cover  *ImageEntry  `json:"cover,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Workspace is a loaded staging directory.
type Workspace struct {
	Root     string
	Manifest Manifest
}

// Create writes a fresh workspace at root, replacing any previous content.
func Create(root string, m Manifest, rawText string) (*Workspace, error) {
	if err := os.RemoveAll(root); err != nil {
		return nil, fmt.Errorf("clear workspace %s: %w", root, err)
	}
	if err := os.MkdirAll(filepath.Join(root, imagesDir), 0o755); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", root, err)
	}
	if err := os.WriteFile(filepath.Join(root, rawFile), []byte(rawText), 0o644); err != nil {
		return nil, fmt.Errorf("write raw text: %w", err)
	}
	ws := &Workspace{Root: root, Manifest: m}
	if err := ws.writeManifest(); err != nil {
		return nil, err
	}
	return ws, nil
}

// Load opens an existing workspace directory.
func Load(root string) (*Workspace, error) {
	data, err := os.ReadFile(filepath.Join(root, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("read workspace manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse workspace manifest %s: %w", root, err)
	}
	if !m.Identity.IsValid() {
		return nil, fmt.Errorf("workspace manifest %s: missing identity", root)
	}
	return &Workspace{Root: root, Manifest: m}, nil
}

func (w *Workspace) writeManifest() error {
	data, err := json.MarshalIndent(w.Manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode workspace manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.Root, manifestFile), data, 0o644); err != nil {
		return fmt.Errorf("write workspace manifest: %w", err)
	}
	return nil
}

// UpdateManifest replaces the manifest and persists it.
func (w *Workspace) UpdateManifest(m Manifest) error {
	w.Manifest = m
	return w.writeManifest()
}

// RawText reads the downloaded body text.
func (w *Workspace) RawText() (string, error) {
	data, err := os.ReadFile(filepath.Join(w.Root, rawFile))
	if err != nil {
		return "", fmt.Errorf("read raw text: %w", err)
	}
	return string(data), nil
}

// WriteImage stores original image bytes under the images dir.
func (w *Workspace) WriteImage(filename string, data []byte) (string, error) {
	p := w.ImagePath(filename)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write image %s: %w", filename, err)
	}
	return p, nil
}

// ImagePath returns the absolute path of an image file in the workspace.
func (w *Workspace) ImagePath(filename string) string {
	return filepath.Join(w.Root, imagesDir, filename)
}

// Remove deletes the whole workspace directory tree.
func (w *Workspace) Remove() error {
	return os.RemoveAll(w.Root)
}
