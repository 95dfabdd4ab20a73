// Package markup parses the provider's inline body markup into the document
// model. Parsing is total: malformed tags degrade to literal text with a
// logged warning, never an error.
package markup

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mizutanik/shiori/internal/domain"
)

// Parser turns raw body text into chapters.
type Parser struct {
	logger *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Parse tokenizes and structures raw body text. It always returns at least
// one chapter; chapters with no visible content are suppressed and chapter
// orders are dense starting at 1.
func (p *Parser) Parse(raw string) []domain.Chapter {
	toks := lex(raw, func(snippet string, offset int) {
		p.logger.Warn("malformed tag kept as literal text", "tag", snippet, "offset", offset)
	})

	b := &chapterBuilder{}
	for _, t := range toks {
		switch t.kind {
		case tokText:
			b.inline(domain.TextNode(t.text))
		case tokLineBreak:
			b.lineBreak()
		case tokParaBreak:
			b.closeParagraph()
		case tokRuby:
			b.inline(domain.Node{Kind: domain.NodeRuby, Base: t.base, Reading: t.reading})
		case tokLink:
			b.inline(domain.Node{Kind: domain.NodeLink, Label: t.label, Href: t.href})
		case tokJump:
			b.inline(domain.Node{Kind: domain.NodeJump, Target: t.target})
		case tokImage:
			// Images are block-level: a break mid-paragraph closes it first.
			b.closeParagraph()
			b.top(domain.Node{Kind: domain.NodeImage, Token: t.ref})
			b.images = append(b.images, t.ref)
		case tokNewPage:
			b.breakChapter("")
		case tokChapter:
			b.breakChapter(t.text)
		}
	}
	return b.finish()
}

// chapterBuilder accumulates nodes into chapters, enforcing the tree
// invariant that chapter breaks and images sit at top level only.
type chapterBuilder struct {
	chapters []domain.Chapter

	title  string
	nodes  []domain.Node
	para   []domain.Node
	images []string
}

// inline appends a node to the open paragraph, opening one if needed.
func (b *chapterBuilder) inline(n domain.Node) {
	b.para = append(b.para, n)
}

// lineBreak records a soft break; leading breaks carry no content and are
// dropped.
func (b *chapterBuilder) lineBreak() {
	if len(b.para) == 0 {
		return
	}
	b.para = append(b.para, domain.Node{Kind: domain.NodeLineBreak})
}

// closeParagraph flushes the open paragraph to the top level.
func (b *chapterBuilder) closeParagraph() {
	para := trimBreaks(b.para)
	b.para = nil
	if len(para) == 0 {
		return
	}
	b.nodes = append(b.nodes, domain.Node{Kind: domain.NodeParagraph, Children: para})
}

// top appends a top-level node.
func (b *chapterBuilder) top(n domain.Node) {
	b.nodes = append(b.nodes, n)
}

// breakChapter ends the current chapter and starts the next one. A break on
// an empty chapter is a no-op, except that an explicit title sticks to the
// still-open chapter, so consecutive breaks never produce empty chapters.
func (b *chapterBuilder) breakChapter(nextTitle string) {
	b.closeParagraph()
	if b.empty() {
		if nextTitle != "" {
			b.title = nextTitle
		}
		return
	}
	b.chapters = append(b.chapters, domain.Chapter{
		Title:       b.title,
		Nodes:       b.nodes,
		ImageTokens: b.images,
	})
	b.title = nextTitle
	b.nodes = nil
	b.images = nil
}

// empty reports whether the current chapter has no visible content.
func (b *chapterBuilder) empty() bool {
	if len(b.images) > 0 {
		return false
	}
	probe := domain.Chapter{Nodes: b.nodes}
	return strings.TrimSpace(probe.PlainText()) == ""
}

// finish closes the last chapter and assigns dense orders and titles.
func (b *chapterBuilder) finish() []domain.Chapter {
	b.breakChapter("")

	// A work that parses to nothing still gets one chapter so the EPUB
	// always has a spine.
	if len(b.chapters) == 0 {
		b.chapters = append(b.chapters, domain.Chapter{})
	}

	for i := range b.chapters {
		b.chapters[i].Order = i + 1
		if b.chapters[i].Title == "" {
			b.chapters[i].Title = domain.SynthesizeTitle(i + 1)
		}
	}
	for i := range b.chapters {
		degradeDanglingJumps(b.chapters[i].Nodes, len(b.chapters))
	}
	return b.chapters
}

// degradeDanglingJumps turns jump nodes whose target chapter does not exist
// back into their literal text, so no rendered link ever dangles.
func degradeDanglingJumps(nodes []domain.Node, max int) {
	for i := range nodes {
		n := &nodes[i]
		if n.Kind == domain.NodeJump && n.Target > max {
			*n = domain.TextNode(fmt.Sprintf("[jump:%d]", n.Target))
			continue
		}
		degradeDanglingJumps(n.Children, max)
	}
}

// trimBreaks strips leading and trailing line breaks from a paragraph.
func trimBreaks(nodes []domain.Node) []domain.Node {
	start, end := 0, len(nodes)
	for start < end && nodes[start].Kind == domain.NodeLineBreak {
		start++
	}
	for end > start && nodes[end-1].Kind == domain.NodeLineBreak {
		end--
	}
	return nodes[start:end]
}
