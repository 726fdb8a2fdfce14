// Package normalizer turns rendered article markup into a summary, a plain
// text body and a cleaned HTML body.
//
// The work is done in two ordered passes over one parsed fragment:
//  1. structural pruning (rule matches, then empty elements)
//  2. text conversion (anchor rewriting, tag stripping)
package normalizer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/IshaanNene/wikiharvest/internal/config"
)

// Result is the normalized content of one page.
type Result struct {
	Summary  string
	Body     string
	BodyHTML string
}

// Normalizer applies the configured rules to rendered pages.
type Normalizer struct {
	rules   []Rule
	summary *Rule
	logger  *slog.Logger
}

// New compiles the configured rules. The rule named "summary", if any,
// provides the summary; every rule is removed from the body.
func New(cfg config.NormalizerConfig, logger *slog.Logger) (*Normalizer, error) {
	n := &Normalizer{
		logger: logger.With("component", "normalizer"),
	}
	for _, pr := range cfg.Rules {
		rule, err := CompileRule(pr)
		if err != nil {
			return nil, err
		}
		n.rules = append(n.rules, rule)
	}
	for i := range n.rules {
		if n.rules[i].Name == config.RuleSummary {
			n.summary = &n.rules[i]
			break
		}
	}
	return n, nil
}

// Normalize converts raw article HTML. Malformed markup is parsed best-effort
// and never produces an error.
func (n *Normalizer) Normalize(rawHTML string) (Result, error) {
	root, err := ParseFragment(rawHTML)
	if err != nil {
		return Result{}, fmt.Errorf("parse fragment: %w", err)
	}

	var res Result
	if n.summary != nil {
		if match := n.summary.First(root); match != nil {
			res.Summary = ToText(cloneNode(match))
		}
	}

	removed := n.Prune(root)
	res.BodyHTML = Render(root)
	res.Body = ToText(root)

	n.logger.Debug("page normalized",
		"removed_nodes", removed,
		"summary_len", len(res.Summary),
		"body_len", len(res.Body),
	)
	return res, nil
}

// Prune removes rule matches and then empty elements from root. Running it
// on an already pruned document changes nothing.
func (n *Normalizer) Prune(root *html.Node) int {
	return RemoveMatches(root, n.rules) + PruneEmpty(root)
}

// ParseFragment parses markup as the content of a <body> element and returns
// a document node holding the parsed nodes.
func ParseFragment(rawHTML string) (*html.Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(rawHTML), context)
	if err != nil {
		return nil, err
	}

	root := &html.Node{Type: html.DocumentNode}
	for _, node := range nodes {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
		root.AppendChild(node)
	}
	return root, nil
}

// Render serializes the children of root back to HTML.
func Render(root *html.Node) string {
	var b strings.Builder
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

// cloneNode deep-copies n into a detached tree.
func cloneNode(n *html.Node) *html.Node {
	return goquery.NewDocumentFromNode(n).Clone().Get(0)
}
