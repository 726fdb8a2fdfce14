package types

// Listing is one page's identity as returned by the bulk page enumeration query.
type Listing struct {
	PageID    int64
	Title     string
	FullURL   string
	Language  string
	Namespace int
}

// Cursor is the pagination state between listing requests.
type Cursor struct {
	// Continue is the API "continue" object, echoed back verbatim.
	Continue map[string]string `json:"continue,omitempty"`

	// From is the title enumeration starts at when Continue is empty.
	From string `json:"from,omitempty"`
}

// IsZero reports whether the cursor points at the beginning of the enumeration.
func (c *Cursor) IsZero() bool {
	return c == nil || (len(c.Continue) == 0 && c.From == "")
}

// Clone returns a deep copy of the cursor.
func (c *Cursor) Clone() *Cursor {
	if c == nil {
		return nil
	}
	clone := &Cursor{From: c.From}
	if c.Continue != nil {
		clone.Continue = make(map[string]string, len(c.Continue))
		for k, v := range c.Continue {
			clone.Continue[k] = v
		}
	}
	return clone
}

// ListingBatch is one page of enumeration results.
type ListingBatch struct {
	Listings []Listing

	// Next is nil when the enumeration is exhausted.
	Next *Cursor
}
