// Package extract defines the extraction engine's result types and the
// smart-scrape orchestration over the fast and advanced metadata paths.
package extract

// Status classifies the outcome of a scrape or reader extraction.
type Status string

const (
	// StatusSuccess means usable data was extracted.
	StatusSuccess Status = "success"
	// StatusBlocked means the remote site answered with a bot wall (403).
	StatusBlocked Status = "blocked"
	// StatusFailed covers network errors, timeouts, and unparseable pages.
	StatusFailed Status = "failed"
)

// ScrapeResult is the preview metadata attached to a posted link.
// It is produced once per call and never mutated afterwards; the caller
// encrypts and persists it.
type ScrapeResult struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Image        string `json:"image"`
	Favicon      string `json:"favicon"`
	ScrapeStatus Status `json:"scrapeStatus"`
}

// ReaderContentResult is a full readable-article extraction.
// Content is sanitized HTML carrying stable per-paragraph identifiers and
// download-link annotations; TextContent is the plain-text rendering.
type ReaderContentResult struct {
	Title       string `json:"title"`
	Byline      string `json:"byline,omitempty"`
	Content     string `json:"content"`
	TextContent string `json:"textContent"`
	SiteName    string `json:"siteName,omitempty"`
	Status      Status `json:"status"`
	Error       string `json:"error,omitempty"`
}

// MetaTag is one <meta> element lifted from a page head.
// Either Name or Property is set depending on the tag dialect.
type MetaTag struct {
	Name     string `json:"name"`
	Property string `json:"property"`
	Content  string `json:"content"`
}

// PageMeta is the fixed schema the automation layer hands to the metadata
// aggregator: the document title, raw head meta tags, and the favicon href.
type PageMeta struct {
	Title       string    `json:"title"`
	MetaTags    []MetaTag `json:"metaTags"`
	FaviconHref string    `json:"faviconHref"`
}
