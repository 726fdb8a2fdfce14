// Package metadata maps page properties to the human-readable labels that
// are exported alongside each article.
package metadata

import "strings"

// Property names read from the parse response.
const (
	PropArticleType        = "ArticleType"
	PropArticleContentArea = "ArticleContentArea"
)

// Fallback labels.
const (
	UnknownArticleType = "לא ידוע"
	UnknownContentArea = "unknown"
)

// articleTypes is the closed set of known ArticleType codes.
var articleTypes = map[string]string{
	"right":        "זכות",
	"service":      "שירות",
	"term":         "מונח",
	"proceeding":   "הליך",
	"organization": "ארגון",
	"government":   "משרד ממשלתי",
	"law":          "חוק",
	"ruling":       "פסק דין",
	"guide":        "מדריך",
	"lifeevent":    "אירוע חיים",
	"portal":       "פורטל",
	"landingpage":  "דף נחיתה",
	"news":         "חדשות",
	"newsletter":   "עלון",
	"event":        "אירוע",
	"faq":          "שאלות ותשובות",
	"form":         "טופס",
	"signs":        "סימנים",
	"collection":   "אוסף",
}

// Labels holds the mapped metadata of one page.
type Labels struct {
	ArticleType string
	ContentArea string
}

// MapLabels derives the labels from a page's properties. Missing or
// unrecognized values fall back to the unknown labels; it never fails.
func MapLabels(properties map[string]string) Labels {
	return Labels{
		ArticleType: ArticleTypeLabel(properties[PropArticleType]),
		ContentArea: ContentAreaLabel(properties[PropArticleContentArea]),
	}
}

// ArticleTypeLabel returns the label for an ArticleType code. Codes are
// matched case-insensitively.
func ArticleTypeLabel(code string) string {
	if label, ok := articleTypes[strings.ToLower(strings.TrimSpace(code))]; ok {
		return label
	}
	return UnknownArticleType
}

// ContentAreaLabel passes a content area through, or returns the unknown
// label when it is empty.
func ContentAreaLabel(area string) string {
	if area = strings.TrimSpace(area); area != "" {
		return area
	}
	return UnknownContentArea
}

// ArticleTypes returns a copy of the code table.
func ArticleTypes() map[string]string {
	out := make(map[string]string, len(articleTypes))
	for k, v := range articleTypes {
		out[k] = v
	}
	return out
}
