package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/project-registry/internal/config"
	"github.com/sells-group/project-registry/internal/fetcher"
	"github.com/sells-group/project-registry/internal/lexicon"
	"github.com/sells-group/project-registry/internal/model"
	"github.com/sells-group/project-registry/internal/pipeline"
)

// itemFlags are the input options shared by run and stream.
type itemFlags struct {
	input   string
	urls    []string
	collect bool
	workers int
}

// readItems decodes raw items from r. Both a JSON array and newline
// delimited objects are accepted.
func readItems(r io.Reader) ([]model.RawItem, error) {
	br := bufio.NewReader(r)
	dec := json.NewDecoder(br)

	first, err := firstByte(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "read items")
	}

	if first == '[' {
		var items []model.RawItem
		if err := dec.Decode(&items); err != nil {
			return nil, eris.Wrap(err, "decode items array")
		}
		return items, nil
	}

	var items []model.RawItem
	for {
		var item model.RawItem
		err := dec.Decode(&item)
		if err == io.EOF {
			return items, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "decode item %d", len(items)+1)
		}
		items = append(items, item)
	}
}

// firstByte returns the first non-space byte without consuming it.
func firstByte(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// loadItemsFile reads items from path, or from stdin when path is "-".
func loadItemsFile(path string) ([]model.RawItem, error) {
	if path == "-" {
		return readItems(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return readItems(f)
}

// gatherItems combines items from the input file, single article URLs and
// the configured sources.
func gatherItems(ctx context.Context, flags itemFlags, lx *lexicon.Lexicon) ([]model.RawItem, error) {
	if flags.input == "" && len(flags.urls) == 0 && !flags.collect {
		return nil, eris.New("nothing to process: pass --input, --url or --collect")
	}

	var items []model.RawItem
	if flags.input != "" {
		loaded, err := loadItemsFile(flags.input)
		if err != nil {
			return nil, err
		}
		zap.L().Info("items loaded", zap.String("input", flags.input), zap.Int("count", len(loaded)))
		items = append(items, loaded...)
	}

	if len(flags.urls) > 0 {
		pages := make([]config.SourceConfig, len(flags.urls))
		for i, u := range flags.urls {
			pages[i] = config.SourceConfig{Name: u, Kind: fetcher.KindPage, URL: u}
		}
		fetched, err := collectSources(ctx, pages, lx)
		if err != nil {
			return nil, err
		}
		if len(fetched) == 0 {
			zap.L().Warn("no article text found", zap.Strings("urls", flags.urls))
		}
		items = append(items, fetched...)
	}

	if flags.collect {
		if len(cfg.Fetch.Sources) == 0 {
			zap.L().Warn("no sources configured under fetch.sources")
		}
		collected, err := collectSources(ctx, cfg.Fetch.Sources, lx)
		if err != nil {
			return nil, err
		}
		items = append(items, collected...)
	}
	return items, nil
}

func collectSources(ctx context.Context, cfgs []config.SourceConfig, lx *lexicon.Lexicon) ([]model.RawItem, error) {
	configured, err := fetcher.FromConfig(cfgs, newFetcher(cfg.Fetch, cfg.Retry), lx)
	if err != nil {
		return nil, err
	}
	sources := make([]pipeline.Source, len(configured))
	for i, s := range configured {
		sources[i] = s
	}
	return pipeline.Collect(ctx, sources, cfg.Fetch.Concurrency), nil
}

// applyWorkers overrides pipeline.workers when the flag is set.
func applyWorkers(flags itemFlags) {
	if flags.workers > 0 {
		cfg.Pipeline.Workers = flags.workers
	}
}
