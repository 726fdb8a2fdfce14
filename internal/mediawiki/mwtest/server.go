// Package mwtest provides an in-memory MediaWiki Action API for tests.
package mwtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"sync"
)

// Category is a category attached to a fake page.
type Category struct {
	Name   string
	Hidden bool
}

// Page is one article served by the fake API.
type Page struct {
	ID         int64
	Title      string
	Language   string
	HTML       string
	Categories []Category
	Properties map[string]string

	// ParseStatus, when non-zero, is returned as the HTTP status of every
	// parse request for this page.
	ParseStatus int

	// DropConnection closes the connection of every parse request for this
	// page without writing a response.
	DropConnection bool
}

// Server is an httptest server answering generator=allpages queries and
// action=parse requests. Pages are enumerated in title order.
type Server struct {
	*httptest.Server

	// LegacyProperties serves parse properties in the [{name, "*"}] form.
	LegacyProperties bool

	// QueryError, when set, is returned as the API error code of every
	// query request.
	QueryError string

	// DropQueries closes the connection of every query request without
	// writing a response.
	DropQueries bool

	mu       sync.Mutex
	pages    []Page
	requests []url.Values
}

// NewServer starts a fake API serving pages.
func NewServer(pages ...Page) *Server {
	sorted := append([]Page(nil), pages...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Title < sorted[j].Title })

	s := &Server{pages: sorted}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// APIURL returns the api.php endpoint.
func (s *Server) APIURL() string {
	return s.URL + "/w/api.php"
}

// Requests returns the query parameters of every request with the given
// action, in arrival order.
func (s *Server) Requests(action string) []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []url.Values
	for _, q := range s.requests {
		if q.Get("action") == action {
			out = append(out, q)
		}
	}
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.mu.Lock()
	s.requests = append(s.requests, q)
	s.mu.Unlock()

	switch q.Get("action") {
	case "query":
		s.handleQuery(w, q)
	case "parse":
		s.handleParse(w, q)
	default:
		writeJSON(w, apiError("badvalue", "Unrecognized value for parameter \"action\"."))
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, q url.Values) {
	if s.DropQueries {
		dropConnection(w)
		return
	}
	if s.QueryError != "" {
		writeJSON(w, apiError(s.QueryError, "query failed"))
		return
	}

	limit := len(s.pages)
	if l := q.Get("gaplimit"); l != "" && l != "max" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	start := 0
	from := q.Get("gapcontinue")
	if from == "" {
		from = q.Get("gapfrom")
	}
	if from != "" {
		start = sort.Search(len(s.pages), func(i int) bool { return s.pages[i].Title >= from })
	}

	end := min(start+limit, len(s.pages))
	pages := make([]map[string]any, 0, end-start)
	for _, p := range s.pages[start:end] {
		pages = append(pages, map[string]any{
			"pageid":       p.ID,
			"ns":           0,
			"title":        p.Title,
			"contentmodel": "wikitext",
			"pagelanguage": p.Language,
			"fullurl":      s.URL + "/he/" + url.PathEscape(p.Title),
		})
	}

	resp := map[string]any{
		"batchcomplete": true,
		"query":         map[string]any{"pages": pages},
	}
	if end < len(s.pages) {
		resp["continue"] = map[string]any{
			"gapcontinue": s.pages[end].Title,
			"continue":    "gapcontinue||",
		}
	}
	writeJSON(w, resp)
}

func (s *Server) handleParse(w http.ResponseWriter, q url.Values) {
	id, _ := strconv.ParseInt(q.Get("pageid"), 10, 64)

	var page *Page
	for i := range s.pages {
		if s.pages[i].ID == id {
			page = &s.pages[i]
			break
		}
	}
	if page == nil {
		writeJSON(w, apiError("nosuchpageid", "There is no page with ID "+q.Get("pageid")+"."))
		return
	}
	if page.DropConnection {
		dropConnection(w)
		return
	}
	if page.ParseStatus != 0 {
		http.Error(w, http.StatusText(page.ParseStatus), page.ParseStatus)
		return
	}

	categories := make([]map[string]any, 0, len(page.Categories))
	for _, c := range page.Categories {
		entry := map[string]any{"sortkey": "", "category": c.Name}
		if c.Hidden {
			entry["hidden"] = true
		}
		categories = append(categories, entry)
	}

	var properties any = page.Properties
	if page.Properties == nil {
		properties = map[string]string{}
	}
	if s.LegacyProperties {
		legacy := make([]map[string]string, 0, len(page.Properties))
		for name, value := range page.Properties {
			legacy = append(legacy, map[string]string{"name": name, "*": value})
		}
		properties = legacy
	}

	writeJSON(w, map[string]any{
		"parse": map[string]any{
			"title":      page.Title,
			"pageid":     page.ID,
			"text":       page.HTML,
			"categories": categories,
			"properties": properties,
		},
	})
}

func dropConnection(w http.ResponseWriter) {
	conn, _, err := w.(http.Hijacker).Hijack()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	conn.Close()
}

func apiError(code, info string) map[string]any {
	return map[string]any{"error": map[string]string{"code": code, "info": info}}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}
