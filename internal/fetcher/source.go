package fetcher

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/project-registry/internal/config"
	"github.com/sells-group/project-registry/internal/lexicon"
	"github.com/sells-group/project-registry/internal/model"
	"github.com/sells-group/project-registry/internal/normalize"
)

// Source kinds accepted in configuration.
const (
	KindPage = "page"
	KindRSS  = "rss"
)

// DefaultMaxItems caps the items taken from one listing page or feed.
const DefaultMaxItems = 50

// Source produces raw items from one configured page or feed.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.RawItem, error)
}

// FromConfig builds one Source per configured entry.
func FromConfig(cfgs []config.SourceConfig, f Fetcher, lx *lexicon.Lexicon) ([]Source, error) {
	sources := make([]Source, 0, len(cfgs))
	for _, c := range cfgs {
		if _, err := url.ParseRequestURI(c.URL); err != nil {
			return nil, eris.Wrapf(err, "fetcher: source %q has invalid url", c.Name)
		}
		switch strings.ToLower(c.Kind) {
		case KindRSS:
			sources = append(sources, NewRSSSource(c, f, lx))
		case KindPage, "":
			sources = append(sources, NewPageSource(c, f, lx))
		default:
			return nil, eris.Errorf("fetcher: source %q has unknown kind %q", c.Name, c.Kind)
		}
	}
	return sources, nil
}

// origin carries the metadata shared by every item of one source.
type origin struct {
	name       string
	url        string
	sourceType model.SourceType
	official   bool
	lex        *lexicon.Lexicon
}

func newOrigin(c config.SourceConfig, lx *lexicon.Lexicon) origin {
	name := c.Name
	if name == "" {
		name = c.URL
	}
	return origin{
		name:       name,
		url:        c.URL,
		sourceType: model.ParseSourceType(c.SourceType),
		official:   c.Official,
		lex:        lx,
	}
}

// item builds a RawItem, or reports false when the text is empty or, for
// non-official sources, never mentions Saudi Arabia.
func (o origin) item(title, body, link string) (model.RawItem, bool) {
	title = normalize.Text(title)
	body = normalize.Text(body)
	text := body
	if title != "" && !strings.HasPrefix(body, title) {
		text = strings.TrimSpace(title + ". " + body)
	}
	if text == "" {
		return model.RawItem{}, false
	}
	if !o.official && !o.lex.MentionsSaudi(text) {
		return model.RawItem{}, false
	}
	return model.RawItem{
		Text:           text,
		SourceURL:      link,
		SourceType:     o.sourceType,
		OfficialSource: o.official,
		Title:          title,
	}, true
}

// resolveLink makes href absolute against base. Unparseable links fall back
// to base.
func resolveLink(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return base
	}
	h, err := url.Parse(strings.TrimSpace(href))
	if err != nil || href == "" {
		return base
	}
	return b.ResolveReference(h).String()
}
