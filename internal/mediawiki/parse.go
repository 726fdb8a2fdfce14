package mediawiki

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/IshaanNene/wikiharvest/internal/types"
)

// FetchParsedPage requests the rendered markup, visible categories and page
// properties of a single page.
func (c *Client) FetchParsedPage(ctx context.Context, pageID int64) (*types.ParsedPage, error) {
	params := url.Values{}
	params.Set("action", "parse")
	params.Set("pageid", strconv.FormatInt(pageID, 10))
	params.Set("prop", "text|categories|properties")
	params.Set("disabletoc", "1")
	params.Set("disableeditsection", "1")
	params.Set("disablelimitreport", "1")

	var resp parseResponse
	if err := c.getJSON(ctx, params, &resp); err != nil {
		return nil, fmt.Errorf("parse page %d: %w", pageID, err)
	}
	if err := resp.Error.toError(); err != nil {
		return nil, fmt.Errorf("parse page %d: %w", pageID, err)
	}
	if resp.Parse == nil {
		return nil, fmt.Errorf("parse page %d: %w", pageID, types.ErrNoParseResult)
	}

	page := &types.ParsedPage{
		PageID:     resp.Parse.PageID,
		Title:      resp.Parse.Title,
		HTML:       resp.Parse.Text,
		Properties: map[string]string(resp.Parse.Properties),
	}
	if page.PageID == 0 {
		page.PageID = pageID
	}
	if page.Properties == nil {
		page.Properties = map[string]string{}
	}
	for _, cat := range resp.Parse.Categories {
		if cat.Hidden {
			continue
		}
		if label := CleanCategory(cat.Category, c.source.CategoryPrefixes); label != "" {
			page.Categories = append(page.Categories, label)
		}
	}

	if c.metrics != nil {
		c.metrics.PagesFetched.Add(1)
	}
	return page, nil
}

// CleanCategory strips the first matching namespace prefix from a category
// name and turns underscores into spaces.
func CleanCategory(name string, prefixes []string) string {
	name = strings.TrimSpace(name)
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			name = strings.TrimPrefix(name, prefix)
			break
		}
	}
	return strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
}
