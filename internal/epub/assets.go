package epub

import (
	"fmt"
	"strings"

	"github.com/mizutanik/shiori/internal/domain"
	"github.com/mizutanik/shiori/internal/render"
)

// defaultCSS keeps body text readable with either writing direction and
// scales illustrations to the page.
const defaultCSS = `body {
  margin: 0.5em 1em;
  line-height: 1.7;
  font-family: serif;
}
h1, h2 {
  font-weight: bold;
  line-height: 1.3;
}
p {
  margin: 0;
  text-indent: 1em;
}
ruby rt {
  font-size: 0.5em;
}
div.illust {
  text-align: center;
  margin: 1em 0;
}
div.illust img, div.cover img {
  max-width: 100%;
  max-height: 100%;
}
dl.work-info dt {
  font-weight: bold;
  margin-top: 0.8em;
}
`

// buildInfoPage generates the front-matter page: title, author, series,
// tags and summary.
func buildInfoPage(w *domain.Work, coverHref, language string) []byte {
	esc := render.Escape
	var b strings.Builder

	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString("<!DOCTYPE html>\n")
	fmt.Fprintf(&b, `<html xmlns="http://www.w3.org/1999/xhtml" xml:lang="%s">`+"\n", esc(language))
	b.WriteString("<head>\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", esc(w.Title))
	b.WriteString(`<link rel="stylesheet" type="text/css" href="../css/style.css"/>` + "\n")
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", esc(w.Title))
	b.WriteString(`<dl class="work-info">` + "\n")
	if w.Author != "" {
		fmt.Fprintf(&b, "<dt>Author</dt><dd>%s</dd>\n", esc(w.Author))
	}
	if w.Series != nil && w.Series.Title != "" {
		fmt.Fprintf(&b, "<dt>Series</dt><dd>%s</dd>\n", esc(w.Series.Title))
	}
	if len(w.Tags) > 0 {
		fmt.Fprintf(&b, "<dt>Tags</dt><dd>%s</dd>\n", esc(strings.Join(w.Tags, ", ")))
	}
	if !w.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "<dt>Published</dt><dd>%s</dd>\n", w.CreatedAt.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "<dt>Source</dt><dd>%s</dd>\n", esc(w.Identity.Key()))
	b.WriteString("</dl>\n")
	if w.Summary != "" {
		b.WriteString("<h2>Summary</h2>\n")
		for _, para := range strings.Split(w.Summary, "\n") {
			if strings.TrimSpace(para) == "" {
				continue
			}
			fmt.Fprintf(&b, "<p>%s</p>\n", esc(para))
		}
	}
	b.WriteString("</body>\n</html>\n")
	return []byte(b.String())
}

// buildCoverPage generates the cover wrapper page. coverHref is relative to
// OEBPS; the page itself lives under text/.
func buildCoverPage(coverHref, language string) []byte {
	esc := render.Escape
	var b strings.Builder

	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString("<!DOCTYPE html>\n")
	fmt.Fprintf(&b, `<html xmlns="http://www.w3.org/1999/xhtml" xml:lang="%s">`+"\n", esc(language))
	b.WriteString("<head>\n<title>Cover</title>\n")
	b.WriteString(`<link rel="stylesheet" type="text/css" href="../css/style.css"/>` + "\n")
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, `<div class="cover"><img src="../%s" alt="cover"/></div>`+"\n", esc(coverHref))
	b.WriteString("</body>\n</html>\n")
	return []byte(b.String())
}
