package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/project-registry/internal/config"
	"github.com/sells-group/project-registry/internal/lexicon"
	"github.com/sells-group/project-registry/internal/model"
)

func TestReadItems_Array(t *testing.T) {
	items, err := readItems(strings.NewReader(`
	[
	  {"text": "NEOM awards contract", "source_url": "https://www.arabnews.com/1", "source_type": "News"},
	  {"text": "Jeddah Tower resumes", "source_url": "https://www.spa.gov.sa/2", "official_source": true}
	]`))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, model.SourceTypeNews, items[0].SourceType)
	assert.True(t, items[1].OfficialSource)
}

func TestReadItems_NDJSON(t *testing.T) {
	items, err := readItems(strings.NewReader(
		`{"text": "a", "source_url": "https://a.example/1"}` + "\n" +
			`{"text": "b", "source_url": "https://a.example/2", "source_reliability": 0.9}` + "\n"))
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NotNil(t, items[1].SourceReliability)
	assert.InDelta(t, 0.9, *items[1].SourceReliability, 1e-9)
}

func TestReadItems_Empty(t *testing.T) {
	items, err := readItems(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestReadItems_Invalid(t *testing.T) {
	_, err := readItems(strings.NewReader(`{"text": "a"}` + "\n" + `{"text": `))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode item 2")

	_, err = readItems(strings.NewReader(`[{"text": 1}]`))
	require.Error(t, err)
}

func TestLoadItemsFile_Missing(t *testing.T) {
	_, err := loadItemsFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestGatherItems_RequiresInput(t *testing.T) {
	_, err := gatherItems(context.Background(), itemFlags{}, lexicon.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to process")
}

func TestGatherItems_FileAndSources(t *testing.T) {
	useTestConfig(t)

	feed := `<?xml version="1.0"?>
<rss version="2.0"><channel>
<item>
  <title>King Salman Park phase 1 under construction</title>
  <link>https://www.spa.gov.sa/ksp</link>
  <description>Construction of King Salman Park in Riyadh is ongoing.</description>
</item>
</channel></rss>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	cfg.Fetch.Sources = []config.SourceConfig{
		{Name: "spa", Kind: "rss", URL: srv.URL + "/feed", SourceType: "OfficialGov", Official: true},
		{Name: "broken", Kind: "rss", URL: srv.URL + "/gone"},
	}
	cfg.Retry.MaxAttempts = 1

	path := filepath.Join(t.TempDir(), "items.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"text": "x", "source_url": "https://a.example/1"}]`), 0o600))

	items, err := gatherItems(context.Background(), itemFlags{input: path, collect: true}, lexicon.Default())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "https://a.example/1", items[0].SourceURL)
	assert.Equal(t, "https://www.spa.gov.sa/ksp", items[1].SourceURL)
	assert.True(t, items[1].OfficialSource)
}

func TestGatherItems_SingleURL(t *testing.T) {
	useTestConfig(t)
	cfg.Retry.MaxAttempts = 1

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>King Salman Park update</title></head>
<body><article><p>The King Salman Park project is under construction in Riyadh.</p></article></body></html>`))
	}))
	defer srv.Close()

	items, err := gatherItems(context.Background(), itemFlags{urls: []string{srv.URL + "/ksp"}}, lexicon.Default())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, srv.URL+"/ksp", items[0].SourceURL)
	assert.Contains(t, items[0].Text, "King Salman Park project is under construction")
}

func TestGatherItems_InvalidURL(t *testing.T) {
	useTestConfig(t)

	_, err := gatherItems(context.Background(), itemFlags{urls: []string{"not a url"}}, lexicon.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid url")
}

func TestApplyWorkers(t *testing.T) {
	useTestConfig(t)
	cfg.Pipeline.Workers = 1

	applyWorkers(itemFlags{})
	assert.Equal(t, 1, cfg.Pipeline.Workers)

	applyWorkers(itemFlags{workers: 8})
	assert.Equal(t, 8, cfg.Pipeline.Workers)
}
