// Package htmltext converts product markup into plain text suitable for
// display and full-text indexing.
package htmltext

import (
	"strings"

	"golang.org/x/net/html"
)

// Strip removes all markup from s and collapses whitespace. Plain text passes
// through unchanged, so stripping twice is a no-op.
func Strip(s string) string {
	if s == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return collapse(s)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
		case html.ElementNode:
			// Script/style bodies are not product copy.
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return collapse(b.String())
}

// collapse normalizes all runs of whitespace to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
