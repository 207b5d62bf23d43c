package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/analyzer"
	"github.com/crawlserv/crawlserv/crawler"
	"github.com/crawlserv/crawlserv/errs"
	"github.com/crawlserv/crawlserv/extractor"
	"github.com/crawlserv/crawlserv/network"
	"github.com/crawlserv/crawlserv/parser"
	"github.com/crawlserv/crawlserv/store"
	"github.com/crawlserv/crawlserv/thread"
	"github.com/crawlserv/crawlserv/urllist"
)

// moduleLauncher implements control.Launcher: given a Thread row, it loads
// the row's Website/UrlList/Configuration and builds the concrete
// thread.Module the row's Module field names. This is the one place that
// imports crawler/parser/extractor/analyzer together, keeping control
// itself ignorant of any of them (see control/model.go's Launcher doc).
type moduleLauncher struct {
	backend store.Backend
	client  network.Client
}

func newModuleLauncher(backend store.Backend, client network.Client) *moduleLauncher {
	return &moduleLauncher{backend: backend, client: client}
}

func (l *moduleLauncher) Launch(ctx context.Context, t crawlserv.Thread, resumed bool) (thread.Module, error) {
	const op = "main.moduleLauncher.Launch"

	website, err := l.backend.GetWebsite(ctx, t.WebsiteID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, op, err)
	}
	list, err := l.backend.GetList(ctx, t.ListID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, op, err)
	}
	config, err := l.backend.GetConfiguration(ctx, t.ConfigID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, op, err)
	}

	urls := urllist.New(l.backend, website, list)

	switch t.Module {
	case crawlserv.ModuleCrawler:
		cfg, err := decodeCrawlerConfig(ctx, l.backend, config.JSON)
		if err != nil {
			return nil, err
		}
		base, err := websiteBaseURL(website)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidInput, op, err)
		}
		return crawler.New(l.client, urls, website, cfg, base)

	case crawlserv.ModuleParser:
		cfg, err := decodeParserConfig(ctx, l.backend, config.JSON)
		if err != nil {
			return nil, err
		}
		return parser.New(urls, cfg)

	case crawlserv.ModuleExtractor:
		cfg, err := decodeExtractorConfig(ctx, l.backend, config.JSON)
		if err != nil {
			return nil, err
		}
		return extractor.New(urls, cfg)

	case crawlserv.ModuleAnalyzer:
		cfg, err := decodeAnalyzerConfig(config.JSON)
		if err != nil {
			return nil, err
		}
		return analyzer.New(l.backend, urls, cfg)

	default:
		return nil, errs.New(errs.InvalidInput, op, fmt.Sprintf("thread %d names unknown module %q", t.ID, t.Module))
	}
}

// websiteBaseURL builds the scheme+host *url.URL crawler.New needs to
// resolve relative links, defaulting to https for a website whose Domain
// doesn't already carry a scheme.
func websiteBaseURL(w crawlserv.Website) (*url.URL, error) {
	if w.Domain == "" {
		return nil, nil
	}
	raw := w.Domain
	if !hasScheme(raw) {
		raw = "https://" + raw
	}
	return url.Parse(raw)
}

func hasScheme(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ':':
			return i > 0
		case '/', '.':
			return false
		}
	}
	return false
}
