package util

import (
	"bytes"
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	md = goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.Table))

	articlePolicy = bluemonday.UGCPolicy()
	textPolicy    = bluemonday.StrictPolicy()
)

// MarkdownToHTML renders markdown (headings, lists, emphasis, paragraphs) and
// sanitizes the result. Input that already looks like HTML is only sanitized.
func MarkdownToHTML(src string) (string, error) {
	src = strings.TrimSpace(strings.ReplaceAll(src, "\r\n", "\n"))
	if src == "" {
		return "", nil
	}
	if looksLikeHTML(src) {
		return articlePolicy.Sanitize(src), nil
	}

	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(articlePolicy.Sanitize(buf.String())), nil
}

func looksLikeHTML(s string) bool {
	lower := strings.ToLower(s)
	for _, tag := range []string{"<p>", "<h1", "<h2", "<h3", "<ul>", "<ol>", "<div"} {
		if strings.HasPrefix(lower, tag) {
			return true
		}
	}
	return false
}

// PlainText strips all markup and collapses whitespace.
func PlainText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(textPolicy.Sanitize(s))), " ")
}

// Excerpt returns at most maxRunes runes of the plain text of s, cut on a word boundary.
func Excerpt(s string, maxRunes int) string {
	text := PlainText(s)
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	cut := string(runes[:maxRunes])
	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > maxRunes/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "…"
}

// WordCount counts whitespace separated words of the plain text of s.
func WordCount(s string) int {
	n := 0
	for _, f := range strings.Fields(PlainText(s)) {
		if strings.IndexFunc(f, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) >= 0 {
			n++
		}
	}
	return n
}
