package types

// ParsedPage is the rendered body and metadata of a single article.
type ParsedPage struct {
	PageID int64
	Title  string

	// HTML is the rendered article markup.
	HTML string

	// Categories holds visible category labels in API order.
	Categories []string

	// Properties holds page properties such as ArticleType.
	Properties map[string]string
}

// Property returns the named page property, or "" if absent.
func (p *ParsedPage) Property(name string) string {
	if p == nil || p.Properties == nil {
		return ""
	}
	return p.Properties[name]
}
