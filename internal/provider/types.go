package provider

import (
	"encoding/json"
	"fmt"
)

// envelope is the common response wrapper
type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *APIError       `json:"error,omitempty"`
}

// APIError is an error reported by the provider in the response body
type APIError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider error %d: %s", e.Status, e.Message)
	}
	return "provider error: " + e.Message
}

// SearchResult is the body of /search and /explain
type SearchResult struct {
	Count int          `json:"count"`
	Items []SourceHits `json:"items"`
}

// SourceHits groups the hits found in one source
type SourceHits struct {
	Source Source `json:"source"`
	Hits   Hits   `json:"hits"`
}

// Source identifies a database and collection
type Source struct {
	Database   string `json:"database"`
	Collection string `json:"collection"`
}

// Hits is the matched records of one source. Explain responses carry only
// the count.
type Hits struct {
	Count     int              `json:"count"`
	HitsCount int              `json:"hitsCount"`
	Items     []map[string]any `json:"items,omitempty"`
}

// Total returns the number of matched records
func (h Hits) Total() int {
	if h.HitsCount > 0 {
		return h.HitsCount
	}
	return h.Count
}

// SourceInfo describes one searchable database
type SourceInfo struct {
	Title string `json:"title"`
	Count int64  `json:"count"`
}

// SourcesResult is the body of /sources
type SourcesResult struct {
	Count int          `json:"count"`
	Items []SourceInfo `json:"items"`
}
