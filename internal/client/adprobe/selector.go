package adprobe

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

func compileSelector(s string) (cascadia.Selector, error) {
	sel, err := cascadia.Compile(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", s, err)
	}

	return sel, nil
}

// firstVisible returns the first node under doc matching sel that is not hidden.
func firstVisible(doc *html.Node, sel cascadia.Selector) *html.Node {
	for _, n := range sel.MatchAll(doc) {
		if isVisible(n) {
			return n
		}
	}

	return nil
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

// isVisible reports whether neither the node nor any ancestor is hidden through the hidden
// attribute, aria-hidden or an inline display/visibility style.
func isVisible(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if _, ok := getAttr(n, "hidden"); ok {
			return false
		}
		if v, _ := getAttr(n, "aria-hidden"); v == "true" {
			return false
		}
		style, _ := getAttr(n, "style")
		style = strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}

	return true
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	return strings.TrimSpace(sb.String())
}
