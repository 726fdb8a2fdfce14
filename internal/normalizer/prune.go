package normalizer

import (
	"strings"

	"golang.org/x/net/html"
)

// RemoveMatches detaches every node matched by any of the rules.
func RemoveMatches(root *html.Node, rules []Rule) int {
	removed := 0
	for _, rule := range rules {
		for _, n := range rule.MatchAll(root) {
			// Matches nested in an already removed subtree are gone too.
			if n.Parent != nil && attached(root, n) {
				n.Parent.RemoveChild(n)
				removed++
			}
		}
	}
	return removed
}

// attached reports whether n is still a descendant of root.
func attached(root, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

// PruneEmpty removes every element below root that has no attributes, no
// child elements and no non-whitespace text. The walk is post-order, so a
// parent emptied by the removal of its children is removed as well.
func PruneEmpty(root *html.Node) int {
	removed := 0
	for c := root.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			removed += PruneEmpty(c)
			if isEmptyElement(c) {
				root.RemoveChild(c)
				removed++
			}
		}
		c = next
	}
	return removed
}

func isEmptyElement(n *html.Node) bool {
	if n.Type != html.ElementNode || len(n.Attr) > 0 {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			return false
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return false
			}
		}
	}
	return true
}
