package normalizer

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ToText rewrites the anchors below root into "Text (target)" form and
// returns the trimmed text content. root is modified in place.
func ToText(root *html.Node) string {
	if root == nil {
		return ""
	}
	if root.Type == html.ElementNode && root.Data == "a" {
		return strings.TrimSpace(formatAnchor(goquery.NewDocumentFromNode(root).Selection))
	}

	doc := goquery.NewDocumentFromNode(root)
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		a.ReplaceWithNodes(&html.Node{Type: html.TextNode, Data: formatAnchor(a)})
	})
	return strings.TrimSpace(doc.Text())
}

// formatAnchor renders one anchor as text.
//
//	<a href="mailto:x@y.com">x@y.com</a>  -> (x@y.com)
//	<a href="https://e.com/a">Label</a>   -> Label (https://e.com/a)
func formatAnchor(a *goquery.Selection) string {
	text := a.Text()
	href, ok := a.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return text
	}

	lower := strings.ToLower(href)
	for _, scheme := range []string{"mailto:", "tel:"} {
		if !strings.HasPrefix(lower, scheme) {
			continue
		}
		target := href[len(scheme):]
		visible := strings.TrimSpace(text)
		if visible == target || visible == href || visible == decodeTarget(target) {
			return "(" + decodeTarget(target) + ")"
		}
	}

	target := href
	if strings.HasPrefix(lower, "mailto:") {
		target = href[len("mailto:"):]
	}
	return text + " (" + decodeTarget(target) + ")"
}

// decodeTarget percent-decodes a link target, leaving it untouched when it
// is not valid percent-encoding.
func decodeTarget(target string) string {
	decoded, err := url.PathUnescape(target)
	if err != nil {
		return target
	}
	return decoded
}
