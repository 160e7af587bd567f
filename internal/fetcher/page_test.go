package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/project-registry/internal/config"
	"github.com/sells-group/project-registry/internal/lexicon"
	"github.com/sells-group/project-registry/internal/model"
)

const listingHTML = `<html><head><title>Projects</title><script>var x = 1;</script></head><body>
<div class="card"><h3><a href="/news/ksp">King Salman Park</a></h3><p>Teaser text.</p></div>
<div class="card"><h3><a href="/news/paris">Paris metro</a></h3><p>Works continue in Paris.</p></div>
<div class="card"><h3>No link here</h3><p>Jeddah Tower construction resumes in Jeddah.</p></div>
</body></html>`

const kspArticleHTML = `<html><body><nav>Menu</nav><article>
<p>The King Salman Park Phase 1 project is under construction in Riyadh.</p>
<p>Nesma &amp; Partners is the main contractor.</p>
</article><footer>Copyright</footer></body></html>`

func newPageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/listing", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingHTML)) //nolint:errcheck
	})
	mux.HandleFunc("/news/ksp", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(kspArticleHTML)) //nolint:errcheck
	})
	mux.HandleFunc("/news/paris", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><article><p>Paris metro line 15 extension.</p></article></body></html>`)) //nolint:errcheck
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPageSource_SelectorFollowsLinks(t *testing.T) {
	srv := newPageServer(t)
	src := NewPageSource(config.SourceConfig{
		Name:       "listing",
		URL:        srv.URL + "/listing",
		SourceType: "news",
		Selector:   "div.card",
	}, newTestFetcher(), lexicon.Default())

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2, "the Paris item does not mention Saudi Arabia")

	ksp := items[0]
	assert.Equal(t, srv.URL+"/news/ksp", ksp.SourceURL)
	assert.Equal(t, "King Salman Park", ksp.Title)
	assert.Contains(t, ksp.Text, "under construction in Riyadh")
	assert.Contains(t, ksp.Text, "Nesma & Partners")
	assert.NotContains(t, ksp.Text, "Menu")
	assert.Equal(t, model.SourceTypeNews, ksp.SourceType)

	jeddah := items[1]
	assert.Equal(t, srv.URL+"/listing", jeddah.SourceURL)
	assert.Contains(t, jeddah.Text, "Jeddah Tower construction resumes")
}

func TestPageSource_WholePage(t *testing.T) {
	srv := newPageServer(t)
	src := NewPageSource(config.SourceConfig{URL: srv.URL + "/news/ksp", Official: true}, newTestFetcher(), lexicon.Default())

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].OfficialSource)
	assert.Equal(t, model.SourceTypeWebsite, items[0].SourceType)
	assert.Equal(t, srv.URL+"/news/ksp", src.Name())
}

func TestPageSource_DownloadError(t *testing.T) {
	srv := newPageServer(t)
	src := NewPageSource(config.SourceConfig{URL: srv.URL + "/missing"}, newTestFetcher(), lexicon.Default())

	_, err := src.Fetch(context.Background())
	require.Error(t, err)
}

func TestResolveLink(t *testing.T) {
	assert.Equal(t, "https://sabq.org/news/1", resolveLink("https://sabq.org/listing", "/news/1"))
	assert.Equal(t, "https://other.example/a", resolveLink("https://sabq.org/listing", "https://other.example/a"))
	assert.Equal(t, "https://sabq.org/listing", resolveLink("https://sabq.org/listing", ""))
}
