package rod

import (
	"strings"

	"golang.org/x/net/html"
)

const DefaultMaxTextSize = 20_000

var skippedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "svg": true,
	"iframe": true, "head": true, "template": true,
}

var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "header": true,
	"footer": true, "li": true, "tr": true, "br": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "pre": true, "table": true,
	"ul": true, "ol": true, "main": true, "nav": true,
}

// ExtractText returns the readable text of an HTML document: scripts, styles
// and comments are dropped, block elements become line breaks and runs of
// whitespace collapse. The output is cut at maxSize bytes.
func ExtractText(rawHTML string, maxSize int) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.CommentNode:
			return
		case html.TextNode:
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				sb.WriteString(text)
				sb.WriteByte(' ')
			}
			return
		case html.ElementNode:
			if skippedTags[n.Data] {
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTags[n.Data] {
			sb.WriteByte('\n')
		}
	}
	walk(doc)

	lines := strings.Split(sb.String(), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	text := strings.Join(kept, "\n")

	if maxSize > 0 && len(text) > maxSize {
		text = text[:maxSize] + "\n... (truncated)"
	}
	return text
}
