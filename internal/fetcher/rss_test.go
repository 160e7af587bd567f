package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/project-registry/internal/config"
	"github.com/sells-group/project-registry/internal/lexicon"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <title>Saudi projects</title>
  <item>
    <title>NEOM awards The Line contract</title>
    <link>/news/neom</link>
    <description>&lt;p&gt;NEOM announces The Line project under construction in Tabuk.&lt;/p&gt;</description>
    <pubDate>Thu, 14 Mar 2024 09:30:00 +0300</pubDate>
  </item>
  <item>
    <title>Stadium opens in Lisbon</title>
    <link>https://example.com/lisbon</link>
    <description>Unrelated item.</description>
  </item>
  <item>
    <title>Red Sea resort</title>
    <link>https://example.com/red-sea</link>
    <description>Short teaser</description>
    <content:encoded><![CDATA[<p>Red Sea Global resort in Tabuk, Saudi Arabia, is under construction.</p>]]></content:encoded>
    <pubDate>not a date</pubDate>
  </item>
</channel>
</rss>`

func TestRSSSource_Fetch(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("If-None-Match") == `"feed-1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"feed-1"`)
		w.Write([]byte(feedXML)) //nolint:errcheck
	}))
	defer srv.Close()

	src := NewRSSSource(config.SourceConfig{Name: "feed", Kind: KindRSS, URL: srv.URL + "/rss", SourceType: "news"}, newTestFetcher(), lexicon.Default())

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	neom := items[0]
	assert.Equal(t, srv.URL+"/news/neom", neom.SourceURL)
	assert.Equal(t, "NEOM awards The Line contract", neom.Title)
	assert.Contains(t, neom.Text, "under construction in Tabuk")
	assert.NotContains(t, neom.Text, "<p>")
	require.NotNil(t, neom.PublishedAt)
	assert.True(t, neom.PublishedAt.Equal(time.Date(2024, 3, 14, 6, 30, 0, 0, time.UTC)))

	resort := items[1]
	assert.Contains(t, resort.Text, "Red Sea Global resort")
	assert.Nil(t, resort.PublishedAt)

	items, err = src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items, "unchanged feed yields nothing")
	assert.Equal(t, int32(2), calls.Load())
}

func TestRSSSource_MalformedFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0" encoding="x-unknown-charset"?><rss><channel><item><title>x</title></item></channel></rss>`)) //nolint:errcheck
	}))
	defer srv.Close()

	src := NewRSSSource(config.SourceConfig{URL: srv.URL}, newTestFetcher(), lexicon.Default())
	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "charset")
}

func TestFromConfig(t *testing.T) {
	f := newTestFetcher()
	lx := lexicon.Default()

	sources, err := FromConfig([]config.SourceConfig{
		{Name: "spa", Kind: "rss", URL: "https://www.spa.gov.sa/rss"},
		{Name: "arabnews", URL: "https://www.arabnews.com/saudi-arabia", Selector: "article"},
	}, f, lx)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.IsType(t, &RSSSource{}, sources[0])
	assert.IsType(t, &PageSource{}, sources[1])
	assert.Equal(t, "arabnews", sources[1].Name())

	_, err = FromConfig([]config.SourceConfig{{Name: "ftp", Kind: "ftp", URL: "https://x.example"}}, f, lx)
	assert.ErrorContains(t, err, "unknown kind")

	_, err = FromConfig([]config.SourceConfig{{Name: "bad", URL: "not a url"}}, f, lx)
	assert.ErrorContains(t, err, "invalid url")
}

func TestParsePubDate(t *testing.T) {
	got := parsePubDate("2024-03-14T09:30:00Z")
	require.NotNil(t, got)
	assert.Equal(t, 2024, got.Year())
	assert.Nil(t, parsePubDate(""))
	assert.Nil(t, parsePubDate("yesterday"))
}
