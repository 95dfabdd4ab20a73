package domain

import "strings"

// NodeKind distinguishes document node variants.
type NodeKind int

const (
	// NodeText is a literal text run.
	NodeText NodeKind = iota
	// NodeParagraph groups inline children.
	NodeParagraph
	// NodeLineBreak is a soft break inside a paragraph.
	NodeLineBreak
	// NodeChapterBreak separates chapters. Only legal at top level; the
	// parser closes any open paragraph before emitting one.
	NodeChapterBreak
	// NodeRuby is base text with a phonetic reading gloss.
	NodeRuby
	// NodeImage is an embedded image reference, recorded by token only.
	// Binding to local bytes happens in the image pipeline, not the parser.
	NodeImage
	// NodeLink is an external hyperlink.
	NodeLink
	// NodeJump is an internal link to another chapter by order.
	NodeJump
)

// Node is one node of a parsed document. Which fields are meaningful
// depends on Kind; the zero value of the rest is ignored.
type Node struct {
	Kind NodeKind

	Text    string // NodeText
	Base    string // NodeRuby
	Reading string // NodeRuby
	Token   string // NodeImage
	Href    string // NodeLink
	Label   string // NodeLink
	Target  int    // NodeJump: destination chapter order

	Children []Node // NodeParagraph
}

// TextNode builds a literal text node.
func TextNode(s string) Node {
	return Node{Kind: NodeText, Text: s}
}

// nodesPlainText flattens a node sequence to its visible text.
// Ruby contributes base and reading so a reading-only edit still changes
// the fingerprint; images and breaks contribute nothing.
func nodesPlainText(nodes []Node) string {
	var b strings.Builder
	for _, n := range nodes {
		switch n.Kind {
		case NodeText:
			b.WriteString(n.Text)
		case NodeRuby:
			b.WriteString(n.Base)
			b.WriteString(n.Reading)
		case NodeLink:
			b.WriteString(n.Label)
		case NodeLineBreak:
			b.WriteByte('\n')
		case NodeParagraph:
			b.WriteString(nodesPlainText(n.Children))
			b.WriteByte('\n')
		}
	}
	return b.String()
}
