package fetcher

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/project-registry/internal/config"
	"github.com/sells-group/project-registry/internal/lexicon"
	"github.com/sells-group/project-registry/internal/model"
)

const defaultBodySelector = "article p, main p, .content p"

// PageSource scrapes an HTML listing page. With a selector, every matching
// block becomes one item and its first link is followed for the article
// body; without one, the page itself is a single item.
type PageSource struct {
	origin
	selector string
	fetcher  Fetcher
}

// NewPageSource creates a PageSource from configuration.
func NewPageSource(c config.SourceConfig, f Fetcher, lx *lexicon.Lexicon) *PageSource {
	return &PageSource{origin: newOrigin(c, lx), selector: c.Selector, fetcher: f}
}

// Name returns the configured source name.
func (s *PageSource) Name() string { return s.name }

// Fetch downloads the listing page and extracts its items.
func (s *PageSource) Fetch(ctx context.Context) ([]model.RawItem, error) {
	doc, err := s.document(ctx, s.url)
	if err != nil {
		return nil, err
	}

	if s.selector == "" {
		title := strings.TrimSpace(doc.Find("title").First().Text())
		if it, ok := s.item(title, paragraphs(doc.Selection), s.url); ok {
			return []model.RawItem{it}, nil
		}
		return nil, nil
	}

	var items []model.RawItem
	doc.Find(s.selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if ctx.Err() != nil || len(items) >= DefaultMaxItems {
			return false
		}
		link := sel.Find("a[href]").First()
		href, _ := link.Attr("href")
		title := strings.TrimSpace(sel.Find("h1, h2, h3, h4").First().Text())
		if title == "" {
			title = strings.TrimSpace(link.Text())
		}

		target := s.url
		body := strings.TrimSpace(sel.Find("p").Text())
		if href != "" {
			target = resolveLink(s.url, href)
			if article, err := s.article(ctx, target); err != nil {
				zap.L().Debug("fetcher: article fetch failed, using teaser",
					zap.String("source", s.name),
					zap.String("url", target),
					zap.Error(err),
				)
			} else if article != "" {
				body = article
			}
		}

		if it, ok := s.item(title, body, target); ok {
			items = append(items, it)
		}
		return true
	})
	if err := ctx.Err(); err != nil {
		return items, eris.Wrap(err, "fetcher: page fetch cancelled")
	}

	zap.L().Info("fetcher: page scraped",
		zap.String("source", s.name),
		zap.Int("items", len(items)),
	)
	return items, nil
}

func (s *PageSource) article(ctx context.Context, target string) (string, error) {
	doc, err := s.document(ctx, target)
	if err != nil {
		return "", err
	}
	return paragraphs(doc.Selection), nil
}

func (s *PageSource) document(ctx context.Context, target string) (*goquery.Document, error) {
	body, err := s.fetcher.Download(ctx, target)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse html %s", target)
	}
	doc.Find("script, style, nav, footer, noscript").Remove()
	return doc, nil
}

// paragraphs joins the article paragraphs under sel, falling back to every
// paragraph when no article container exists.
func paragraphs(sel *goquery.Selection) string {
	ps := sel.Find(defaultBodySelector)
	if ps.Length() == 0 {
		ps = sel.Find("p")
	}
	var b strings.Builder
	ps.Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(text)
		}
	})
	return b.String()
}
