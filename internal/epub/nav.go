package epub

import (
	"fmt"
	"strings"

	"github.com/mizutanik/shiori/internal/render"
)

// buildNav serializes the navigation document. The table of contents lists
// chapters in spine order, preceded by the front matter.
func buildNav(workTitle string, chapters []ChapterDoc, language string, hasCoverPage bool) []byte {
	esc := render.Escape
	var b strings.Builder

	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString("<!DOCTYPE html>\n")
	fmt.Fprintf(&b, `<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops" xml:lang="%s">`+"\n", esc(language))
	b.WriteString("<head>\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", esc(workTitle))
	b.WriteString("</head>\n<body>\n")
	b.WriteString(`<nav epub:type="toc" id="toc">` + "\n")
	b.WriteString("<h1>Contents</h1>\n<ol>\n")
	if hasCoverPage {
		b.WriteString(`<li><a href="text/cover.xhtml">Cover</a></li>` + "\n")
	}
	b.WriteString(`<li><a href="text/info.xhtml">About this book</a></li>` + "\n")
	for _, ch := range chapters {
		fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`+"\n", esc(ch.Href), esc(ch.Title))
	}
	b.WriteString("</ol>\n</nav>\n</body>\n</html>\n")
	return []byte(b.String())
}
