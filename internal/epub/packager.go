// Package epub assembles standards-valid EPUB3 containers from rendered
// chapters and resolved image assets.
package epub

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mizutanik/shiori/internal/domain"
)

const (
	mimetypeName    = "mimetype"
	mimetypeContent = "application/epub+zip"

	containerPath = "META-INF/container.xml"
	oebpsDir      = "OEBPS"
	opfPath       = oebpsDir + "/content.opf"
	navPath       = oebpsDir + "/nav.xhtml"
	cssPath       = oebpsDir + "/css/style.css"
	infoPath      = oebpsDir + "/text/info.xhtml"
	coverPagePath = oebpsDir + "/text/cover.xhtml"

	opfMediaType = "application/oebps-package+xml"
)

// containerXML is fixed content; no templating needed.
const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

// fixedEntryTime is the modification time stamped on every archive entry.
// Keeping it constant makes rebuilds of identical content byte-identical
// except for the dcterms:modified element inside the OPF.
var fixedEntryTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// ChapterDoc is one rendered content document ready for packaging.
type ChapterDoc struct {
	Order   int
	Title   string
	Href    string // relative to OEBPS, e.g. "text/chapter-1.xhtml"
	Content []byte
}

// ImageAsset is one image file ready for packaging.
type ImageAsset struct {
	ID         string
	Href       string // relative to OEBPS, e.g. "images/p1.png"
	SourcePath string // local file to read; the compressed variant when one exists
	MediaType  string
	IsCover    bool
}

// Packager writes EPUB3 containers.
type Packager struct {
	logger   *slog.Logger
	language string
}

func NewPackager(language string, logger *slog.Logger) *Packager {
	if language == "" {
		language = "ja"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Packager{logger: logger, language: language}
}

// Package assembles the container at outPath. The archive is staged in a
// temp file in the destination directory and renamed into place only after
// every resource is written, so cancellation or failure never leaves a
// partial EPUB at the final path.
func (p *Packager) Package(ctx context.Context, w *domain.Work, chapters []ChapterDoc, images []ImageAsset, epubUUID string, buildTime time.Time, outPath string) (err error) {
	if len(chapters) == 0 {
		return fmt.Errorf("%w: no chapters to package", domain.ErrPackaging)
	}

	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create output dir: %v", domain.ErrPackaging, err)
	}
	tmp, err := os.CreateTemp(dir, ".epub-staging-*")
	if err != nil {
		return fmt.Errorf("%w: create staging file: %v", domain.ErrPackaging, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = writeArchive(ctx, tmp, p.buildComponents(w, chapters, images, epubUUID, buildTime), images); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: close staging file: %v", domain.ErrPackaging, err)
	}
	if err = os.Rename(tmp.Name(), outPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: publish %s: %v", domain.ErrPackaging, outPath, err)
	}

	p.logger.Info("epub written", "path", outPath, "chapters", len(chapters), "images", len(images))
	return nil
}

// component is one in-memory archive entry.
type component struct {
	name string
	data []byte
}

// buildComponents produces every generated (non-image) entry in archive
// order.
func (p *Packager) buildComponents(w *domain.Work, chapters []ChapterDoc, images []ImageAsset, epubUUID string, buildTime time.Time) []component {
	var coverHref string
	for _, img := range images {
		if img.IsCover {
			coverHref = img.Href
		}
	}

	comps := []component{
		{containerPath, []byte(containerXML)},
		{opfPath, buildOPF(w, chapters, images, epubUUID, buildTime, p.language, coverHref != "")},
		{navPath, buildNav(w.Title, chapters, p.language, coverHref != "")},
		{cssPath, []byte(defaultCSS)},
	}
	if coverHref != "" {
		comps = append(comps, component{coverPagePath, buildCoverPage(coverHref, p.language)})
	}
	comps = append(comps, component{infoPath, buildInfoPage(w, coverHref, p.language)})
	for _, ch := range chapters {
		comps = append(comps, component{oebpsDir + "/" + ch.Href, ch.Content})
	}
	return comps
}

func writeArchive(ctx context.Context, dst io.Writer, comps []component, images []ImageAsset) error {
	zw := zip.NewWriter(dst)

	// The mimetype entry must come first and must be stored uncompressed.
	mt, err := zw.CreateHeader(&zip.FileHeader{
		Name:     mimetypeName,
		Method:   zip.Store,
		Modified: fixedEntryTime,
	})
	if err != nil {
		return fmt.Errorf("%w: write mimetype: %v", domain.ErrPackaging, err)
	}
	if _, err := mt.Write([]byte(mimetypeContent)); err != nil {
		return fmt.Errorf("%w: write mimetype: %v", domain.ErrPackaging, err)
	}

	for _, c := range comps {
		if err := writeEntry(zw, c.name, c.data); err != nil {
			return err
		}
	}

	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: canceled: %v", domain.ErrPackaging, err)
		}
		data, err := os.ReadFile(img.SourcePath)
		if err != nil {
			return fmt.Errorf("%w: read image %s: %v", domain.ErrPackaging, img.SourcePath, err)
		}
		if err := writeEntry(zw, oebpsDir+"/"+img.Href, data); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: finalize archive: %v", domain.ErrPackaging, err)
	}
	return nil
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: fixedEntryTime,
	})
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", domain.ErrPackaging, name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrPackaging, name, err)
	}
	return nil
}

// MediaTypeByExt maps an image file name to its EPUB media type.
// Unknown extensions get the generic octet-stream type.
func MediaTypeByExt(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}
