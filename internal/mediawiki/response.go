package mediawiki

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/IshaanNene/wikiharvest/internal/types"
)

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *apiError) toError() error {
	if e == nil {
		return nil
	}
	return &types.APIError{Code: e.Code, Info: e.Info}
}

// queryResponse is the shape of action=query with generator=allpages.
type queryResponse struct {
	Error    *apiError      `json:"error"`
	Continue map[string]any `json:"continue"`
	Query    struct {
		Pages []queryPage `json:"pages"`
	} `json:"query"`
}

type queryPage struct {
	PageID       int64  `json:"pageid"`
	Namespace    int    `json:"ns"`
	Title        string `json:"title"`
	FullURL      string `json:"fullurl"`
	PageLanguage string `json:"pagelanguage"`
	Missing      bool   `json:"missing"`
	Redirect     bool   `json:"redirect"`
}

// parseResponse is the shape of action=parse.
type parseResponse struct {
	Error *apiError `json:"error"`
	Parse *struct {
		Title      string          `json:"title"`
		PageID     int64           `json:"pageid"`
		Text       string          `json:"text"`
		Categories []parseCategory `json:"categories"`
		Properties pageProperties  `json:"properties"`
	} `json:"parse"`
}

type parseCategory struct {
	SortKey  string `json:"sortkey"`
	Category string `json:"category"`
	Hidden   bool   `json:"hidden"`
}

// pageProperties accepts both the formatversion=2 object form
// {"name": "value"} and the legacy [{"name": ..., "*": ...}] array form.
type pageProperties map[string]string

func (p *pageProperties) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	out := make(pageProperties)

	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
	case data[0] == '{':
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		for k, v := range raw {
			out[k] = stringify(v)
		}
	case data[0] == '[':
		var raw []map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		for _, entry := range raw {
			name, _ := entry["name"].(string)
			if name == "" {
				continue
			}
			out[name] = stringify(entry["*"])
		}
	default:
		return fmt.Errorf("unexpected properties payload %q", string(data))
	}

	*p = out
	return nil
}

// stringify renders a decoded JSON scalar the way the API sent it.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}
