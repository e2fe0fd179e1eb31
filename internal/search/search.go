// Package search finds clans by name, tag or description. Meilisearch backs
// the index when configured and healthy; otherwise queries fall back to a
// scan of the roster store. Indexing is best-effort and never blocks a
// governance operation.
package search

// Result is a single clan hit returned to the caller.
type Result struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Tag         string `json:"tag"`
	Description string `json:"description"`
	Region      string `json:"region"`
	Platform    string `json:"platform"`
	Members     int    `json:"members"`
}

// Query describes a clan search request.
type Query struct {
	Text     string
	Region   string // empty = all regions
	Platform string // empty = all platforms
	Limit    int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// ClanRecord is the data we index per clan.
type ClanRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Tag         string `json:"tag"`
	Description string `json:"description"`
	Region      string `json:"region"`
	Platform    string `json:"platform"`
	Members     int    `json:"members"`
}

// Searcher can execute a clan search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}
