package epub

import (
	"fmt"
	"strings"
	"time"

	"github.com/mizutanik/shiori/internal/domain"
	"github.com/mizutanik/shiori/internal/render"
)

// buildOPF serializes the package document. Manifest and spine order are
// fully determined by the inputs, so identical inputs produce identical
// bytes; buildTime enters only through dcterms:modified.
func buildOPF(w *domain.Work, chapters []ChapterDoc, images []ImageAsset, epubUUID string, buildTime time.Time, language string, hasCoverPage bool) []byte {
	esc := render.Escape
	var b strings.Builder

	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="pub-id" xml:lang="` + esc(language) + `">` + "\n")

	b.WriteString(`  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">` + "\n")
	fmt.Fprintf(&b, "    <dc:identifier id=\"pub-id\">urn:uuid:%s</dc:identifier>\n", esc(epubUUID))
	fmt.Fprintf(&b, "    <dc:title>%s</dc:title>\n", esc(w.Title))
	if w.Author != "" {
		fmt.Fprintf(&b, "    <dc:creator id=\"creator\">%s</dc:creator>\n", esc(w.Author))
	}
	fmt.Fprintf(&b, "    <dc:language>%s</dc:language>\n", esc(language))
	if w.Summary != "" {
		fmt.Fprintf(&b, "    <dc:description>%s</dc:description>\n", esc(plainText(w.Summary)))
	}
	for _, tag := range w.Tags {
		fmt.Fprintf(&b, "    <dc:subject>%s</dc:subject>\n", esc(tag))
	}
	if w.Series != nil && w.Series.Title != "" {
		b.WriteString("    <meta property=\"belongs-to-collection\" id=\"series\">" + esc(w.Series.Title) + "</meta>\n")
		b.WriteString("    <meta refines=\"#series\" property=\"collection-type\">series</meta>\n")
	}
	fmt.Fprintf(&b, "    <meta property=\"dcterms:modified\">%s</meta>\n", buildTime.UTC().Format("2006-01-02T15:04:05Z"))
	b.WriteString("  </metadata>\n")

	b.WriteString("  <manifest>\n")
	fmt.Fprintf(&b, "    <item id=\"nav\" href=\"nav.xhtml\" media-type=\"application/xhtml+xml\" properties=\"nav\"/>\n")
	fmt.Fprintf(&b, "    <item id=\"css\" href=\"css/style.css\" media-type=\"text/css\"/>\n")
	if hasCoverPage {
		fmt.Fprintf(&b, "    <item id=\"cover-page\" href=\"text/cover.xhtml\" media-type=\"application/xhtml+xml\"/>\n")
	}
	fmt.Fprintf(&b, "    <item id=\"info\" href=\"text/info.xhtml\" media-type=\"application/xhtml+xml\"/>\n")
	for _, ch := range chapters {
		fmt.Fprintf(&b, "    <item id=\"chapter-%d\" href=\"%s\" media-type=\"application/xhtml+xml\"/>\n", ch.Order, esc(ch.Href))
	}
	for _, img := range images {
		props := ""
		if img.IsCover {
			props = ` properties="cover-image"`
		}
		fmt.Fprintf(&b, "    <item id=\"%s\" href=\"%s\" media-type=\"%s\"%s/>\n", esc(img.ID), esc(img.Href), esc(img.MediaType), props)
	}
	b.WriteString("  </manifest>\n")

	b.WriteString("  <spine>\n")
	if hasCoverPage {
		b.WriteString("    <itemref idref=\"cover-page\"/>\n")
	}
	b.WriteString("    <itemref idref=\"info\"/>\n")
	for _, ch := range chapters {
		fmt.Fprintf(&b, "    <itemref idref=\"chapter-%d\"/>\n", ch.Order)
	}
	b.WriteString("  </spine>\n")

	b.WriteString("</package>\n")
	return []byte(b.String())
}

// plainText strips newlines from metadata text destined for single-line
// elements.
func plainText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}
