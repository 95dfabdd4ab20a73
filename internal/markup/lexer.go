package markup

import (
	"strconv"
	"strings"
)

// tokKind distinguishes lexer tokens.
type tokKind int

const (
	tokText tokKind = iota
	tokLineBreak // single newline
	tokParaBreak // blank line (two or more newlines)
	tokNewPage   // [newpage]
	tokChapter   // [chapter:Title]
	tokRuby      // [[rb:base>>reading]]
	tokImage     // [uploadedimage:N] / [pixivimage:N]
	tokLink      // [[jumpuri:label>url]]
	tokJump      // [jump:N]
)

type token struct {
	kind tokKind

	text    string // tokText literal, tokChapter title
	base    string // tokRuby
	reading string // tokRuby
	label   string // tokLink
	href    string // tokLink
	ref     string // tokImage marker token, e.g. "uploadedimage:123"
	target  int    // tokJump destination page
}

// lexer scans raw body text into tokens. It never fails: anything that is
// not a well-formed tag stays literal text.
type lexer struct {
	src  string
	pos  int
	text strings.Builder
	toks []token
	warn func(snippet string, offset int)
}

func lex(src string, warn func(snippet string, offset int)) []token {
	if warn == nil {
		warn = func(string, int) {}
	}
	l := &lexer{src: src, warn: warn}
	l.run()
	return l.toks
}

func (l *lexer) run() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '\n':
			l.flushText()
			n := 0
			for l.pos < len(l.src) && (l.src[l.pos] == '\n' || l.src[l.pos] == '\r') {
				if l.src[l.pos] == '\n' {
					n++
				}
				l.pos++
			}
			if n == 1 {
				l.emit(token{kind: tokLineBreak})
			} else {
				l.emit(token{kind: tokParaBreak})
			}
		case '[':
			if tok, width, ok := l.matchTag(); ok {
				l.flushText()
				l.emit(tok)
				l.pos += width
			} else {
				// Malformed-tag policy: keep the opener as literal text
				// and move on. No backtracking past this point.
				if looksLikeTag(l.src[l.pos:]) {
					l.warn(snippet(l.src[l.pos:]), l.pos)
				}
				l.text.WriteByte('[')
				l.pos++
			}
		case '\r':
			l.pos++ // normalize CRLF to LF
		case 'p':
			if tok, width, ok := l.matchPixivURI(); ok {
				l.flushText()
				l.emit(tok)
				l.pos += width
				continue
			}
			l.text.WriteByte(c)
			l.pos++
		default:
			l.text.WriteByte(c)
			l.pos++
		}
	}
	l.flushText()
}

func (l *lexer) flushText() {
	if l.text.Len() > 0 {
		l.emit(token{kind: tokText, text: l.text.String()})
		l.text.Reset()
	}
}

func (l *lexer) emit(t token) {
	l.toks = append(l.toks, t)
}

// tag openers the lexer understands
const (
	openRuby    = "[[rb:"
	openJumpURI = "[[jumpuri:"
	openChapter = "[chapter:"
	openJump    = "[jump:"
	tagNewPage  = "[newpage]"
)

var imageOpeners = []string{"[uploadedimage:", "[pixivimage:"}

// matchTag attempts to read one tag at the current position. Tags never
// span lines, so closer searches are bounded by the current line; a missing
// closer means the tag is malformed and the input stays literal.
func (l *lexer) matchTag() (token, int, bool) {
	rest := l.src[l.pos:]
	line := rest
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		line = rest[:i]
	}

	switch {
	case strings.HasPrefix(line, tagNewPage):
		return token{kind: tokNewPage}, len(tagNewPage), true

	case strings.HasPrefix(line, openRuby):
		inner, width, ok := closedBy(line, openRuby, "]]")
		if !ok {
			return token{}, 0, false
		}
		base, reading, ok := strings.Cut(inner, ">>")
		base, reading = strings.TrimSpace(base), strings.TrimSpace(reading)
		if !ok || base == "" || reading == "" {
			return token{}, 0, false
		}
		return token{kind: tokRuby, base: base, reading: reading}, width, true

	case strings.HasPrefix(line, openJumpURI):
		inner, width, ok := closedBy(line, openJumpURI, "]]")
		if !ok {
			return token{}, 0, false
		}
		label, href, ok := strings.Cut(inner, ">")
		label, href = strings.TrimSpace(label), strings.TrimSpace(href)
		if !ok || label == "" || !isHTTPURL(href) {
			return token{}, 0, false
		}
		return token{kind: tokLink, label: label, href: href}, width, true

	case strings.HasPrefix(line, openChapter):
		title, width, ok := closedBy(line, openChapter, "]")
		if !ok || strings.TrimSpace(title) == "" {
			return token{}, 0, false
		}
		// Title text carries no further markup; it is plain text.
		return token{kind: tokChapter, text: strings.TrimSpace(title)}, width, true

	case strings.HasPrefix(line, openJump):
		inner, width, ok := closedBy(line, openJump, "]")
		if !ok {
			return token{}, 0, false
		}
		n, err := strconv.Atoi(inner)
		if err != nil || n < 1 {
			return token{}, 0, false
		}
		return token{kind: tokJump, target: n}, width, true
	}

	for _, opener := range imageOpeners {
		if !strings.HasPrefix(line, opener) {
			continue
		}
		id, width, ok := closedBy(line, opener, "]")
		if !ok || !isDigits(id) {
			return token{}, 0, false
		}
		kind := strings.TrimSuffix(strings.TrimPrefix(opener, "["), ":")
		return token{kind: tokImage, ref: kind + ":" + id}, width, true
	}

	return token{}, 0, false
}

// pixivURIs maps the provider's internal URI schemes to public URLs. Bare
// URIs in body text become links, matching how the provider's own reader
// resolves them.
var pixivURIs = []struct {
	scheme string
	public string
}{
	{"pixiv://novels/", "https://www.pixiv.net/novel/show.php?id="},
	{"pixiv://illusts/", "https://www.pixiv.net/artworks/"},
}

// matchPixivURI attempts to read a pixiv://novels/N or pixiv://illusts/N
// URI at the current position. Anything without a numeric id stays literal.
func (l *lexer) matchPixivURI() (token, int, bool) {
	rest := l.src[l.pos:]
	for _, u := range pixivURIs {
		if !strings.HasPrefix(rest, u.scheme) {
			continue
		}
		body := rest[len(u.scheme):]
		n := 0
		for n < len(body) && body[n] >= '0' && body[n] <= '9' {
			n++
		}
		if n == 0 {
			return token{}, 0, false
		}
		url := u.public + body[:n]
		return token{kind: tokLink, label: url, href: url}, len(u.scheme) + n, true
	}
	return token{}, 0, false
}

// closedBy extracts the content between opener and the first closer on the
// line. Returns the inner text and total tag width in bytes.
func closedBy(line, opener, closer string) (string, int, bool) {
	body := line[len(opener):]
	end := strings.Index(body, closer)
	if end < 0 {
		return "", 0, false
	}
	return body[:end], len(opener) + end + len(closer), true
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// looksLikeTag reports whether the text at a '[' resembles one of the
// recognized openers, so that only near-miss tags produce warnings and
// ordinary bracketed prose stays quiet.
func looksLikeTag(s string) bool {
	for _, opener := range []string{openRuby, openJumpURI, openChapter, openJump, "[newpage", imageOpeners[0], imageOpeners[1]} {
		if strings.HasPrefix(s, opener) {
			return true
		}
	}
	return false
}

// snippet trims a malformed tag to a loggable length.
func snippet(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const max = 40
	if len(s) > max {
		s = s[:max]
	}
	return s
}
