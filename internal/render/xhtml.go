// Package render serializes parsed chapters into XHTML content documents.
// Output is deterministic: the same chapter renders byte-identical XHTML.
package render

import (
	"fmt"
	"strings"

	"github.com/mizutanik/shiori/internal/domain"
)

// xmlEscaper covers the five XML predefined entities. Applied to every piece
// of text and every attribute value that reaches the output.
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func Escape(s string) string {
	return xmlEscaper.Replace(s)
}

// Renderer writes chapters as EPUB content documents.
type Renderer struct {
	cssHref  string // stylesheet path relative to the text/ dir
	language string
}

func NewRenderer(cssHref, language string) *Renderer {
	if language == "" {
		language = "ja"
	}
	return &Renderer{cssHref: cssHref, language: language}
}

// ChapterHref returns the packaged path (relative to OEBPS) of a chapter.
func ChapterHref(order int) string {
	return fmt.Sprintf("text/chapter-%d.xhtml", order)
}

// Render serializes one chapter. imagePaths maps body tokens to packaged
// asset paths relative to the text/ dir; tokens with no mapping render as
// nothing (the image was dropped by the pipeline and already logged there).
func (r *Renderer) Render(ch domain.Chapter, imagePaths map[string]string) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString("<!DOCTYPE html>\n")
	fmt.Fprintf(&b, `<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops" xml:lang="%s">`+"\n", Escape(r.language))
	b.WriteString("<head>\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", Escape(ch.Title))
	if r.cssHref != "" {
		fmt.Fprintf(&b, `<link rel="stylesheet" type="text/css" href="%s"/>`+"\n", Escape(r.cssHref))
	}
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "<h2>%s</h2>\n", Escape(ch.Title))

	for _, n := range ch.Nodes {
		r.renderTop(&b, n, imagePaths)
	}

	b.WriteString("</body>\n</html>\n")
	return []byte(b.String())
}

func (r *Renderer) renderTop(b *strings.Builder, n domain.Node, imagePaths map[string]string) {
	switch n.Kind {
	case domain.NodeParagraph:
		b.WriteString("<p>")
		for _, child := range n.Children {
			r.renderInline(b, child)
		}
		b.WriteString("</p>\n")
	case domain.NodeImage:
		href, ok := imagePaths[n.Token]
		if !ok {
			return
		}
		fmt.Fprintf(b, `<div class="illust"><img src="%s" alt="%s"/></div>`+"\n",
			Escape(href), Escape(n.Token))
	}
}

func (r *Renderer) renderInline(b *strings.Builder, n domain.Node) {
	switch n.Kind {
	case domain.NodeText:
		b.WriteString(Escape(n.Text))
	case domain.NodeLineBreak:
		b.WriteString("<br/>\n")
	case domain.NodeRuby:
		fmt.Fprintf(b, "<ruby>%s<rt>%s</rt></ruby>", Escape(n.Base), Escape(n.Reading))
	case domain.NodeLink:
		fmt.Fprintf(b, `<a href="%s">%s</a>`, Escape(n.Href), Escape(n.Label))
	case domain.NodeJump:
		fmt.Fprintf(b, `<a href="chapter-%d.xhtml">page %d</a>`, n.Target, n.Target)
	}
}
