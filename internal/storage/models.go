package storage

import "time"

// PageRecord is the outcome of fetching one URL. The JSON tags define the
// JSONL output format; field order is the line's key order.
type PageRecord struct {
	URL         string `json:"url"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Text        string `json:"text"`
	NumLinks    int    `json:"num_links"`
}

// FrontierRow is one persisted pending visit.
type FrontierRow struct {
	URL   string
	Depth int
}

// PageRow is a full row of the pages table, used by the report exporter.
type PageRow struct {
	URL         string
	Status      int
	ContentType string
	Title       string
	Description string
	Text        string
	Depth       int
	CrawledAt   time.Time
}
