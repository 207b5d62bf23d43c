package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/analyzer"
	"github.com/crawlserv/crawlserv/crawler"
	"github.com/crawlserv/crawlserv/errs"
	"github.com/crawlserv/crawlserv/extractor"
	"github.com/crawlserv/crawlserv/parser"
	"github.com/crawlserv/crawlserv/query"
	"github.com/crawlserv/crawlserv/rowquery"
	"github.com/crawlserv/crawlserv/store"
)

// queryWire names a previously-created crawlserv.Query row by id; every
// Configuration JSON blob that needs a query refers to one this way rather
// than inlining the expression, so the same Query row can be reused across
// configurations (spec.md §3's Query model).
type queryWire struct {
	ID uint64 `json:"id"`
}

func (q queryWire) zero() bool { return q.ID == 0 }

// resolveQuery fetches the Query row and builds the query.Evaluator its
// Type names, grounded on query.go's XPath/Regex adapter split.
func resolveQuery(ctx context.Context, backend store.Backend, ref queryWire) (query.Evaluator, query.ResultKind, error) {
	const op = "main.resolveQuery"

	row, err := backend.GetQuery(ctx, ref.ID)
	if err != nil {
		return nil, 0, errs.Wrap(errs.Internal, op, err)
	}

	kind := query.ResultBool
	switch {
	case row.ResultMulti:
		kind = query.ResultMulti
	case row.ResultSingle:
		kind = query.ResultSingle
	}

	switch row.Type {
	case crawlserv.QueryXPath:
		ev, err := query.NewXPath(row.Text)
		if err != nil {
			return nil, 0, err
		}
		return ev, kind, nil
	case crawlserv.QueryRegex:
		ev, err := query.NewRegex(row.Text, false)
		if err != nil {
			return nil, 0, err
		}
		return ev, kind, nil
	default:
		return nil, 0, errs.New(errs.InvalidInput, op, fmt.Sprintf("query %d has unknown type %q", ref.ID, row.Type))
	}
}

type fieldQueryWire struct {
	Query queryWire `json:"query"`
}

func resolveFieldQueries(ctx context.Context, backend store.Backend, wires []fieldQueryWire) ([]crawler.FieldQuery, error) {
	out := make([]crawler.FieldQuery, 0, len(wires))
	for _, w := range wires {
		ev, kind, err := resolveQuery(ctx, backend, w.Query)
		if err != nil {
			return nil, err
		}
		out = append(out, crawler.FieldQuery{Eval: ev, Kind: kind})
	}
	return out, nil
}

type counterWire struct {
	Name  string `json:"name"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
	Step  int64  `json:"step"`
}

type archiveSourceWire struct {
	Name           string `json:"name"`
	TimemapURLTmpl string `json:"timemap_url_template"`
}

type retryWire struct {
	HTTPCodes  []int  `json:"http_codes"`
	SleepError string `json:"sleep_error"`
	Retries    int    `json:"retries"`
	Archive    bool   `json:"archive"`
}

type crawlerWire struct {
	CrawlerLock string    `json:"crawler_lock"`
	SleepHTTP   string    `json:"sleep_http"`
	Retry       retryWire `json:"retry"`

	SuccessCodes []int `json:"success_codes"`

	ContentTypeWhitelist []fieldQueryWire `json:"content_type_whitelist"`
	ContentTypeBlacklist []fieldQueryWire `json:"content_type_blacklist"`

	CanonicalQuery *fieldQueryWire `json:"canonical_query"`

	ContentFilterWhitelist []fieldQueryWire `json:"content_filter_whitelist"`
	ContentFilterBlacklist []fieldQueryWire `json:"content_filter_blacklist"`

	LinkQueries   []fieldQueryWire `json:"link_queries"`
	LinkBlacklist []fieldQueryWire `json:"link_blacklist"`
	LinkWhitelist []fieldQueryWire `json:"link_whitelist"`

	CustomURLs []string      `json:"custom_urls"`
	Counters   []counterWire `json:"counters"`

	Recrawl       bool     `json:"recrawl"`
	RecrawlAlways []string `json:"recrawl_always"`

	Archives []archiveSourceWire `json:"archives"`
}

// decodeCrawlerConfig turns a Configuration row's JSON blob into a
// crawler.Config, resolving every embedded query reference against
// backend.GetQuery.
func decodeCrawlerConfig(ctx context.Context, backend store.Backend, raw []byte) (crawler.Config, error) {
	const op = "main.decodeCrawlerConfig"

	var wire crawlerWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return crawler.Config{}, errs.Wrap(errs.InvalidInput, op, err)
	}

	cfg := crawler.Config{}

	var err error
	if cfg.CrawlerLock, err = parseDuration(wire.CrawlerLock, 300*time.Second); err != nil {
		return crawler.Config{}, errs.Wrap(errs.InvalidInput, op, err)
	}
	if cfg.SleepHTTP, err = parseDuration(wire.SleepHTTP, 0); err != nil {
		return crawler.Config{}, errs.Wrap(errs.InvalidInput, op, err)
	}

	sleepError, err := parseDuration(wire.Retry.SleepError, 5*time.Second)
	if err != nil {
		return crawler.Config{}, errs.Wrap(errs.InvalidInput, op, err)
	}
	cfg.Retry = crawler.RetryConfig{
		HTTPCodes:  intSetOf(wire.Retry.HTTPCodes),
		SleepError: sleepError,
		Retries:    wire.Retry.Retries,
		Archive:    wire.Retry.Archive,
	}

	cfg.SuccessCodes = intSetOf(wire.SuccessCodes)

	if cfg.ContentTypeWhitelist, err = resolveFieldQueries(ctx, backend, wire.ContentTypeWhitelist); err != nil {
		return crawler.Config{}, err
	}
	if cfg.ContentTypeBlacklist, err = resolveFieldQueries(ctx, backend, wire.ContentTypeBlacklist); err != nil {
		return crawler.Config{}, err
	}
	if wire.CanonicalQuery != nil {
		queries, err := resolveFieldQueries(ctx, backend, []fieldQueryWire{*wire.CanonicalQuery})
		if err != nil {
			return crawler.Config{}, err
		}
		cfg.CanonicalQuery = &queries[0]
	}
	if cfg.ContentFilterWhitelist, err = resolveFieldQueries(ctx, backend, wire.ContentFilterWhitelist); err != nil {
		return crawler.Config{}, err
	}
	if cfg.ContentFilterBlacklist, err = resolveFieldQueries(ctx, backend, wire.ContentFilterBlacklist); err != nil {
		return crawler.Config{}, err
	}
	if cfg.LinkQueries, err = resolveFieldQueries(ctx, backend, wire.LinkQueries); err != nil {
		return crawler.Config{}, err
	}
	if cfg.LinkBlacklist, err = resolveFieldQueries(ctx, backend, wire.LinkBlacklist); err != nil {
		return crawler.Config{}, err
	}
	if cfg.LinkWhitelist, err = resolveFieldQueries(ctx, backend, wire.LinkWhitelist); err != nil {
		return crawler.Config{}, err
	}

	cfg.CustomURLs = wire.CustomURLs
	for _, c := range wire.Counters {
		cfg.Counters = append(cfg.Counters, crawler.Counter{Name: c.Name, Start: c.Start, End: c.End, Step: c.Step})
	}

	cfg.Recrawl = wire.Recrawl
	cfg.RecrawlAlways = wire.RecrawlAlways

	for _, a := range wire.Archives {
		cfg.Archives = append(cfg.Archives, crawler.ArchiveSource{Name: a.Name, TimemapURLTmpl: a.TimemapURLTmpl})
	}

	if err := cfg.Validate(); err != nil {
		return crawler.Config{}, err
	}
	return cfg, nil
}

type idQueryWire struct {
	Query  queryWire `json:"query"`
	Ignore []string  `json:"ignore"`
}

type dateTimeQueryWire struct {
	Query  queryWire `json:"query"`
	Format string    `json:"format"`
	Locale string    `json:"locale"`
}

type fieldSpecWire struct {
	Name        string    `json:"name"`
	Source      string    `json:"source"` // "url" or "content"
	Query       queryWire `json:"query"`
	Delimiter   string    `json:"delimiter"`
	IgnoreEmpty bool      `json:"ignore_empty"`
	JSON        bool      `json:"json"`
	TidyTexts   bool      `json:"tidy_texts"`
	WarnEmpty   bool      `json:"warn_empty"`
}

func resolveIDQueries(ctx context.Context, backend store.Backend, wires []idQueryWire) ([]rowquery.IDQuery, error) {
	out := make([]rowquery.IDQuery, 0, len(wires))
	for _, w := range wires {
		ev, kind, err := resolveQuery(ctx, backend, w.Query)
		if err != nil {
			return nil, err
		}
		ignore := make(map[string]bool, len(w.Ignore))
		for _, v := range w.Ignore {
			ignore[v] = true
		}
		out = append(out, rowquery.IDQuery{Eval: ev, Kind: kind, Ignore: ignore})
	}
	return out, nil
}

func resolveDateTimeQueries(ctx context.Context, backend store.Backend, wires []dateTimeQueryWire) ([]rowquery.DateTimeQuery, error) {
	out := make([]rowquery.DateTimeQuery, 0, len(wires))
	for _, w := range wires {
		ev, kind, err := resolveQuery(ctx, backend, w.Query)
		if err != nil {
			return nil, err
		}
		out = append(out, rowquery.DateTimeQuery{Eval: ev, Kind: kind, Format: w.Format, Locale: w.Locale})
	}
	return out, nil
}

func resolveFieldSpecs(ctx context.Context, backend store.Backend, wires []fieldSpecWire) ([]rowquery.FieldSpec, error) {
	out := make([]rowquery.FieldSpec, 0, len(wires))
	for _, w := range wires {
		ev, kind, err := resolveQuery(ctx, backend, w.Query)
		if err != nil {
			return nil, err
		}
		source := rowquery.SourceContent
		if w.Source == "url" {
			source = rowquery.SourceURL
		}
		var delim byte
		if len(w.Delimiter) > 0 {
			delim = w.Delimiter[0]
		}
		out = append(out, rowquery.FieldSpec{
			Name:        w.Name,
			Source:      source,
			Eval:        ev,
			Kind:        kind,
			Delimiter:   delim,
			IgnoreEmpty: w.IgnoreEmpty,
			JSON:        w.JSON,
			TidyTexts:   w.TidyTexts,
			WarnEmpty:   w.WarnEmpty,
		})
	}
	return out, nil
}

type parserWire struct {
	ParserLock  string `json:"parser_lock"`
	NewestOnly  bool   `json:"newest_only"`
	TargetTable string `json:"target_table"`
	Compressed  bool   `json:"compressed"`

	IDQueries []idQueryWire `json:"id_queries"`
	IDFromURL *queryWire    `json:"id_from_url"`

	DateTimeQueries []dateTimeQueryWire `json:"datetime_queries"`

	Fields []fieldSpecWire `json:"fields"`
}

func decodeParserConfig(ctx context.Context, backend store.Backend, raw []byte) (parser.Config, error) {
	const op = "main.decodeParserConfig"

	var wire parserWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return parser.Config{}, errs.Wrap(errs.InvalidInput, op, err)
	}

	lock, err := parseDuration(wire.ParserLock, 300*time.Second)
	if err != nil {
		return parser.Config{}, errs.Wrap(errs.InvalidInput, op, err)
	}

	cfg := parser.Config{
		ParserLock:  lock,
		NewestOnly:  wire.NewestOnly,
		TargetTable: wire.TargetTable,
		Compressed:  wire.Compressed,
	}

	if cfg.IDQueries, err = resolveIDQueries(ctx, backend, wire.IDQueries); err != nil {
		return parser.Config{}, err
	}
	if wire.IDFromURL != nil && !wire.IDFromURL.zero() {
		ev, _, err := resolveQuery(ctx, backend, *wire.IDFromURL)
		if err != nil {
			return parser.Config{}, err
		}
		cfg.IDFromURL = ev
	}
	if cfg.DateTimeQueries, err = resolveDateTimeQueries(ctx, backend, wire.DateTimeQueries); err != nil {
		return parser.Config{}, err
	}
	if cfg.Fields, err = resolveFieldSpecs(ctx, backend, wire.Fields); err != nil {
		return parser.Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return parser.Config{}, err
	}
	return cfg, nil
}

// extractorWire is field-for-field identical to parserWire; extractor.Config
// mirrors parser.Config exactly (see extractor/config.go).
type extractorWire = parserWire

func decodeExtractorConfig(ctx context.Context, backend store.Backend, raw []byte) (extractor.Config, error) {
	const op = "main.decodeExtractorConfig"

	var wire extractorWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return extractor.Config{}, errs.Wrap(errs.InvalidInput, op, err)
	}

	lock, err := parseDuration(wire.ParserLock, 300*time.Second)
	if err != nil {
		return extractor.Config{}, errs.Wrap(errs.InvalidInput, op, err)
	}

	cfg := extractor.Config{
		ExtractorLock: lock,
		NewestOnly:    wire.NewestOnly,
		TargetTable:   wire.TargetTable,
		Compressed:    wire.Compressed,
	}

	if cfg.IDQueries, err = resolveIDQueries(ctx, backend, wire.IDQueries); err != nil {
		return extractor.Config{}, err
	}
	if wire.IDFromURL != nil && !wire.IDFromURL.zero() {
		ev, _, err := resolveQuery(ctx, backend, *wire.IDFromURL)
		if err != nil {
			return extractor.Config{}, err
		}
		cfg.IDFromURL = ev
	}
	if cfg.DateTimeQueries, err = resolveDateTimeQueries(ctx, backend, wire.DateTimeQueries); err != nil {
		return extractor.Config{}, err
	}
	if cfg.Fields, err = resolveFieldSpecs(ctx, backend, wire.Fields); err != nil {
		return extractor.Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return extractor.Config{}, err
	}
	return cfg, nil
}

type corpusSourceWire struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	Limit  int    `json:"limit"`
}

type analyzerWire struct {
	AnalyzerLock string             `json:"analyzer_lock"`
	Sources      []corpusSourceWire `json:"sources"`

	MaxK       int      `json:"max_k"`
	MinCorpora int      `json:"min_corpora"`
	Emoticons  []string `json:"emoticons"`
	Emojis     []string `json:"emojis"`

	SentenceMaxLen int `json:"sentence_max_len"`
	BatchSize      int `json:"batch_size"`

	TargetTable string `json:"target_table"`
	Compressed  bool   `json:"compressed"`
}

// decodeAnalyzerConfig needs no query resolution at all: corpus sources
// name raw table/column pairs, not Query rows.
func decodeAnalyzerConfig(raw []byte) (analyzer.Config, error) {
	const op = "main.decodeAnalyzerConfig"

	var wire analyzerWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return analyzer.Config{}, errs.Wrap(errs.InvalidInput, op, err)
	}

	lock, err := parseDuration(wire.AnalyzerLock, 300*time.Second)
	if err != nil {
		return analyzer.Config{}, errs.Wrap(errs.InvalidInput, op, err)
	}

	cfg := analyzer.Config{
		AnalyzerLock:   lock,
		MaxK:           wire.MaxK,
		MinCorpora:     wire.MinCorpora,
		Emoticons:      wire.Emoticons,
		Emojis:         wire.Emojis,
		SentenceMaxLen: wire.SentenceMaxLen,
		BatchSize:      wire.BatchSize,
		TargetTable:    wire.TargetTable,
		Compressed:     wire.Compressed,
	}
	for _, s := range wire.Sources {
		cfg.Sources = append(cfg.Sources, analyzer.CorpusSource{Table: s.Table, Column: s.Column, Limit: s.Limit})
	}

	if err := cfg.Validate(); err != nil {
		return analyzer.Config{}, err
	}
	return cfg, nil
}

func intSetOf(codes []int) map[int]bool {
	if len(codes) == 0 {
		return nil
	}
	out := make(map[int]bool, len(codes))
	for _, c := range codes {
		out[c] = true
	}
	return out
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
