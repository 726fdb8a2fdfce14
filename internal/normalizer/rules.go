package normalizer

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"github.com/IshaanNene/wikiharvest/internal/config"
)

// Rule is a named structural region of a rendered page. Matching never
// mutates the document.
type Rule struct {
	Name string

	css   cascadia.Selector
	xpath *xpath.Expr
}

// CompileRule builds a Rule from its configuration.
func CompileRule(pr config.ParseRule) (Rule, error) {
	if err := config.ValidateRule(pr); err != nil {
		return Rule{}, err
	}

	rule := Rule{Name: pr.Name}
	switch pr.Type {
	case "xpath":
		expr, err := xpath.Compile(pr.Selector)
		if err != nil {
			return Rule{}, fmt.Errorf("rule %q: %w", pr.Name, err)
		}
		rule.xpath = expr
	default:
		sel, err := cascadia.Compile(pr.Selector)
		if err != nil {
			return Rule{}, fmt.Errorf("rule %q: %w", pr.Name, err)
		}
		rule.css = sel
	}
	return rule, nil
}

// MatchAll returns every descendant of root matched by the rule, in
// document order.
func (r Rule) MatchAll(root *html.Node) []*html.Node {
	switch {
	case r.xpath != nil:
		return htmlquery.QuerySelectorAll(root, r.xpath)
	case r.css != nil:
		return goquery.NewDocumentFromNode(root).FindMatcher(r.css).Nodes
	default:
		return nil
	}
}

// First returns the first match of the rule, or nil.
func (r Rule) First(root *html.Node) *html.Node {
	if matches := r.MatchAll(root); len(matches) > 0 {
		return matches[0]
	}
	return nil
}
