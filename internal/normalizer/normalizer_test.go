package normalizer

import (
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/IshaanNene/wikiharvest/internal/config"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := New(config.NormalizerConfig{Rules: config.DefaultRules()}, testLogger)
	if err != nil {
		t.Fatalf("new normalizer: %v", err)
	}
	return n
}

const articleHTML = `<div class="mw-parser-output">
<div class="article-summary"><p>Short intro with <a href="https://e.com/a">a link</a>.</p></div>
<div class="toc-box"><ul><li>Section 1</li></ul></div>
<h2>Who is eligible</h2>
<p>Residents may apply. Contact <a href="mailto:info@example.org">info@example.org</a>
or call <a href="tel:*2345">*2345</a>.</p>
<div class="mw-kartographer-map" data-zoom="5">Map</div>
<div><span></span></div>
</div>`

func TestNormalizeArticle(t *testing.T) {
	n := newTestNormalizer(t)

	res, err := n.Normalize(articleHTML)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if res.Summary != "Short intro with a link (https://e.com/a)." {
		t.Errorf("unexpected summary %q", res.Summary)
	}

	for _, want := range []string{
		"Who is eligible",
		"Residents may apply.",
		"Contact (info@example.org)",
		"call (*2345).",
	} {
		if !strings.Contains(res.Body, want) {
			t.Errorf("body missing %q; got %q", want, res.Body)
		}
	}

	for _, gone := range []string{"Short intro", "Section 1", "Map"} {
		if strings.Contains(res.Body, gone) {
			t.Errorf("body should not contain %q; got %q", gone, res.Body)
		}
		if strings.Contains(res.BodyHTML, gone) {
			t.Errorf("body html should not contain %q", gone)
		}
	}

	if strings.Contains(res.BodyHTML, "<span>") {
		t.Errorf("empty span should have been pruned: %s", res.BodyHTML)
	}
	if !strings.Contains(res.BodyHTML, `<a href="mailto:info@example.org">`) {
		t.Errorf("body html should keep anchors: %s", res.BodyHTML)
	}
}

func TestAnchorFormatting(t *testing.T) {
	n, err := New(config.NormalizerConfig{}, testLogger)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"mailto same text", `<a href="mailto:x@y.com">x@y.com</a>`, "(x@y.com)"},
		{"tel same text", `<p>Call <a href="tel:03-1234567">03-1234567</a></p>`, "Call (03-1234567)"},
		{"mailto other text", `<a href="mailto:x@y.com">Write to us</a>`, "Write to us (x@y.com)"},
		{"mailto encoded", `<a href="mailto:x%40y.com">x@y.com</a>`, "(x@y.com)"},
		{"plain link", `<a href="https://e.com/a?b=1">Label</a>`, "Label (https://e.com/a?b=1)"},
		{"percent decoded", `<a href="https://e.com/%D7%96%D7%9B%D7%95%D7%AA">Right</a>`, "Right (https://e.com/זכות)"},
		{"invalid escape kept", `<a href="https://e.com/100%">Pct</a>`, "Pct (https://e.com/100%)"},
		{"no text", `<p>See<a href="https://e.com/x"></a></p>`, "See (https://e.com/x)"},
		{"no href", `<a name="top">Top</a>`, "Top"},
		{"entities", `<p>Tom &amp; Jerry</p>`, "Tom & Jerry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := n.Normalize(tt.input)
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if res.Body != tt.want {
				t.Errorf("got %q, want %q", res.Body, tt.want)
			}
		})
	}
}

func TestSummaryAbsent(t *testing.T) {
	n := newTestNormalizer(t)

	res, err := n.Normalize(`<p>Only body</p>`)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if res.Summary != "" {
		t.Errorf("expected empty summary, got %q", res.Summary)
	}
	if res.Body != "Only body" {
		t.Errorf("unexpected body %q", res.Body)
	}
}

func TestSummaryUsesFirstMatchAndRemovesAll(t *testing.T) {
	n := newTestNormalizer(t)

	res, err := n.Normalize(`<div class="article-summary">First</div><p>Body</p><div class="article-summary">Second</div>`)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if res.Summary != "First" {
		t.Errorf("expected first summary block, got %q", res.Summary)
	}
	if res.Body != "Body" {
		t.Errorf("expected both summary blocks removed, got %q", res.Body)
	}
}

func TestEmptyLeafCascade(t *testing.T) {
	n := newTestNormalizer(t)

	res, err := n.Normalize(`<div><span></span></div>`)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if res.BodyHTML != "" {
		t.Errorf("expected empty document, got %q", res.BodyHTML)
	}
	if res.Body != "" {
		t.Errorf("expected empty body, got %q", res.Body)
	}
}

func TestPruneKeepsElementsWithAttributes(t *testing.T) {
	root, err := ParseFragment(`<div id="anchor"></div><p> </p><section><b>x</b></section>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	PruneEmpty(root)

	got := Render(root)
	if got != `<div id="anchor"></div><section><b>x</b></section>` {
		t.Errorf("unexpected prune result %q", got)
	}
}

func TestRemoveMatchesCountsNestedOnce(t *testing.T) {
	rule, err := CompileRule(config.ParseRule{Name: config.RuleTOC, Selector: ".toc-box"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	root, err := ParseFragment(`<div class="toc-box">outer<div class="toc-box">inner</div></div><p>kept</p>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if removed := RemoveMatches(root, []Rule{rule}); removed != 1 {
		t.Errorf("expected 1 removal, got %d", removed)
	}
	if got := Render(root); got != "<p>kept</p>" {
		t.Errorf("unexpected result %q", got)
	}
}

func TestPruneIdempotent(t *testing.T) {
	n := newTestNormalizer(t)

	root, err := ParseFragment(articleHTML)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	n.Prune(root)
	first := Render(root)

	if removed := n.Prune(root); removed != 0 {
		t.Errorf("second prune removed %d nodes", removed)
	}
	if second := Render(root); second != first {
		t.Errorf("prune not idempotent:\nfirst:  %s\nsecond: %s", first, second)
	}
}

func TestMalformedMarkup(t *testing.T) {
	n := newTestNormalizer(t)

	res, err := n.Normalize(`<div><p>unclosed <b>bold</div></i><table><tr><td>cell`)
	if err != nil {
		t.Fatalf("malformed markup must not fail: %v", err)
	}
	if !strings.Contains(res.Body, "unclosed bold") {
		t.Errorf("expected best-effort text, got %q", res.Body)
	}
	if !strings.Contains(res.Body, "cell") {
		t.Errorf("expected table text, got %q", res.Body)
	}
}

func TestXPathRule(t *testing.T) {
	rules := []config.ParseRule{
		{Name: config.RuleSummary, Type: "xpath", Selector: `//div[@id="lead"]`},
		{Name: "infobox", Type: "xpath", Selector: `//table[contains(@class,"infobox")]`},
	}
	n, err := New(config.NormalizerConfig{Rules: rules}, testLogger)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	res, err := n.Normalize(`<div id="lead">Lead text</div><table class="wide infobox"><tr><td>Info</td></tr></table><p>Rest</p>`)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if res.Summary != "Lead text" {
		t.Errorf("unexpected summary %q", res.Summary)
	}
	if res.Body != "Rest" {
		t.Errorf("unexpected body %q", res.Body)
	}
}

func TestNewRejectsBadRule(t *testing.T) {
	_, err := New(config.NormalizerConfig{Rules: []config.ParseRule{
		{Name: "broken", Type: "css", Selector: "div[["},
	}}, testLogger)
	if err == nil {
		t.Fatal("expected error for invalid selector")
	}
}
