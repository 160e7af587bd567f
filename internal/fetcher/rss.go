package fetcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/project-registry/internal/config"
	"github.com/sells-group/project-registry/internal/lexicon"
	"github.com/sells-group/project-registry/internal/model"
)

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Encoded     string `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
	PubDate     string `xml:"pubDate"`
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339,
}

// RSSSource reads an RSS 2.0 feed. The feed's ETag is remembered so an
// unchanged feed costs one conditional request and yields no items.
type RSSSource struct {
	origin
	fetcher Fetcher

	mu   sync.Mutex
	etag string
}

// NewRSSSource creates an RSSSource from configuration.
func NewRSSSource(c config.SourceConfig, f Fetcher, lx *lexicon.Lexicon) *RSSSource {
	return &RSSSource{origin: newOrigin(c, lx), fetcher: f}
}

// Name returns the configured source name.
func (s *RSSSource) Name() string { return s.name }

// Fetch downloads the feed and converts its items.
func (s *RSSSource) Fetch(ctx context.Context) ([]model.RawItem, error) {
	s.mu.Lock()
	etag := s.etag
	s.mu.Unlock()

	body, newETag, changed, err := s.fetcher.DownloadIfChanged(ctx, s.url, etag)
	if err != nil {
		return nil, err
	}
	if !changed {
		zap.L().Debug("fetcher: feed unchanged", zap.String("source", s.name))
		return nil, nil
	}
	defer body.Close() //nolint:errcheck

	var items []model.RawItem
	err = decodeElements(ctx, body, "item", func(ri rssItem) error {
		if len(items) >= DefaultMaxItems {
			return nil
		}
		content := ri.Encoded
		if content == "" {
			content = ri.Description
		}
		it, ok := s.item(stripHTML(ri.Title), stripHTML(content), resolveLink(s.url, ri.Link))
		if !ok {
			return nil
		}
		it.PublishedAt = parsePubDate(ri.PubDate)
		items = append(items, it)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.etag = newETag
	s.mu.Unlock()

	zap.L().Info("fetcher: feed read",
		zap.String("source", s.name),
		zap.Int("items", len(items)),
	)
	return items, nil
}

// stripHTML returns the text content of an HTML fragment.
func stripHTML(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return strings.TrimSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.TrimSpace(doc.Text())
}

func parsePubDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
