package source

import (
	"strings"

	"golang.org/x/net/html"
)

// NormalizeDescription strips HTML markup from an ATS job description
// and collapses whitespace. Greenhouse and Remotive return descriptions
// as escaped HTML; scoring and embedding both want plain text.
func NormalizeDescription(content string) string {
	if content == "" {
		return ""
	}
	// Greenhouse serves content with the markup entity-escaped.
	content = html.UnescapeString(content)
	if !strings.ContainsAny(content, "<>") {
		return strings.Join(strings.Fields(content), " ")
	}

	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return strings.Join(strings.Fields(content), " ")
	}

	var b strings.Builder
	extractText(doc, &b)
	return strings.Join(strings.Fields(b.String()), " ")
}

func extractText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, b)
	}
}
