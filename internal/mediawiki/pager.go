package mediawiki

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strconv"

	"github.com/IshaanNene/wikiharvest/internal/types"
)

// ListPages requests one batch of non-redirect pages in the configured
// namespace, starting at cursor. A nil cursor starts from the beginning.
func (c *Client) ListPages(ctx context.Context, cursor *types.Cursor) (types.ListingBatch, error) {
	params := c.listParams(cursor)

	var resp queryResponse
	if err := c.getJSON(ctx, params, &resp); err != nil {
		return types.ListingBatch{}, fmt.Errorf("list pages: %w", err)
	}
	if err := resp.Error.toError(); err != nil {
		return types.ListingBatch{}, fmt.Errorf("list pages: %w", err)
	}

	batch := types.ListingBatch{
		Listings: make([]types.Listing, 0, len(resp.Query.Pages)),
	}
	for _, p := range resp.Query.Pages {
		if p.Missing || p.Redirect {
			continue
		}
		batch.Listings = append(batch.Listings, types.Listing{
			PageID:    p.PageID,
			Title:     p.Title,
			FullURL:   p.FullURL,
			Language:  p.PageLanguage,
			Namespace: p.Namespace,
		})
	}

	if len(resp.Continue) > 0 {
		next := &types.Cursor{Continue: make(map[string]string, len(resp.Continue))}
		for k, v := range resp.Continue {
			next.Continue[k] = stringify(v)
		}
		batch.Next = next
	}

	c.logger.Debug("listing batch received",
		"pages", len(batch.Listings),
		"more", batch.Next != nil,
	)
	return batch, nil
}

// Listings returns a lazy sequence of listing batches starting at start.
// The sequence ends after the batch that carries no continuation, or after
// yielding the first error.
func (c *Client) Listings(ctx context.Context, start *types.Cursor) iter.Seq2[types.ListingBatch, error] {
	return func(yield func(types.ListingBatch, error) bool) {
		cursor := start.Clone()
		for {
			batch, err := c.ListPages(ctx, cursor)
			if err != nil {
				yield(types.ListingBatch{}, err)
				return
			}
			if !yield(batch, nil) || batch.Next == nil {
				return
			}
			cursor = batch.Next
		}
	}
}

func (c *Client) listParams(cursor *types.Cursor) url.Values {
	limit := "max"
	if c.source.BatchSize > 0 {
		limit = strconv.Itoa(c.source.BatchSize)
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("generator", "allpages")
	params.Set("gapnamespace", strconv.Itoa(c.source.Namespace))
	params.Set("gapfilterredir", "nonredirects")
	params.Set("gaplimit", limit)
	params.Set("prop", "info")
	params.Set("inprop", "url")

	if cursor == nil {
		return params
	}
	if len(cursor.Continue) > 0 {
		for k, v := range cursor.Continue {
			params.Set(k, v)
		}
	} else if cursor.From != "" {
		params.Set("gapfrom", cursor.From)
	}
	return params
}
