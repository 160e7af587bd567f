package model

import (
	"strings"
	"time"
)

// SourceType classifies where a RawItem came from.
type SourceType string

const (
	SourceTypeNews        SourceType = "News"
	SourceTypeOfficialGov SourceType = "OfficialGov"
	SourceTypePortal      SourceType = "Portal"
	SourceTypeWebsite     SourceType = "Website"
)

// ParseSourceType maps free-form labels onto a SourceType. Unknown labels
// fall back to SourceTypeWebsite.
func ParseSourceType(s string) SourceType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "news", "news aggregator", "press release":
		return SourceTypeNews
	case "officialgov", "official_gov", "official", "government", "gov":
		return SourceTypeOfficialGov
	case "portal":
		return SourceTypePortal
	default:
		return SourceTypeWebsite
	}
}

// RawItem is one scraped unit of text plus its source metadata. Produced by
// fetchers and consumed once by the pipeline.
type RawItem struct {
	Text              string     `json:"text"`
	SourceURL         string     `json:"source_url"`
	SourceType        SourceType `json:"source_type"`
	SourceReliability *float64   `json:"source_reliability,omitempty"` // nil = look up by URL
	OfficialSource    bool       `json:"official_source"`
	Title             string     `json:"title,omitempty"`
	PublishedAt       *time.Time `json:"published_at,omitempty"`
}

// SourceRecord is one evidence link for a ProjectRecord.
type SourceRecord struct {
	ID               string     `json:"id"`
	ProjectID        string     `json:"project_id"`
	URL              string     `json:"url"`
	SourceType       SourceType `json:"source_type"`
	Title            string     `json:"title,omitempty"`
	ReliabilityScore float64    `json:"reliability_score"`
	Official         bool       `json:"official"`
	DiscoveredAt     time.Time  `json:"discovered_at"`
}
