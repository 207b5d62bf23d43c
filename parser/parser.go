package parser

import (
	"context"
	"sync/atomic"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/query"
	"github.com/crawlserv/crawlserv/rowquery"
	"github.com/crawlserv/crawlserv/store"
	"github.com/crawlserv/crawlserv/urllist"
)

const (
	columnParsedID   = "parsed_id"
	columnParsedDate = "parsed_datetime"
)

// Module implements thread.Module for the parser (C5): one OnTick call
// runs spec.md §4.5's select_content → apply_id_queries →
// apply_datetime_queries → apply_field_queries → write_row → mark_success
// pipeline for exactly one URL. Grounded on crawler.Module's selection/lock/
// mark_success shape, generalized from "fetch over the network" to "re-query
// already-saved content."
type Module struct {
	list *urllist.List
	cfg  Config

	table string

	high uint64 // highest successfully processed URL id; progress only

	inited bool
}

// New builds a parser Module.
func New(list *urllist.List, cfg Config) (*Module, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Module{list: list, cfg: cfg}, nil
}

// Last reports the high-water mark for the supervisor's status flush; see
// thread.lastReporter.
func (m *Module) Last() uint64 { return atomic.LoadUint64(&m.high) }

// OnInit provisions the parser's target table: a parsed_id text column, a
// parsed_datetime column, and one column per configured field (spec.md §3:
// "parser output additionally carries a parsed_id text column").
func (m *Module) OnInit(ctx context.Context, resumed bool) error {
	columns := []store.ColumnDef{
		{Name: columnParsedID, Type: "TEXT"},
		{Name: columnParsedDate, Type: "DATETIME"},
	}
	for _, f := range m.cfg.Fields {
		columns = append(columns, store.ColumnDef{Name: f.Name, Type: "TEXT"})
	}

	table, err := m.list.TargetTable(ctx, "parsed", m.cfg.TargetTable, columns, m.cfg.Compressed)
	if err != nil {
		return err
	}
	m.table = table
	m.inited = true
	return nil
}

func (m *Module) OnPause() bool  { return m.inited }
func (m *Module) OnUnpause()     {}
func (m *Module) OnClear() error { return nil }

// OnTick runs the full select→...→mark_success pipeline for the next
// eligible URL. A nil return with no candidate found is not an error.
func (m *Module) OnTick(ctx context.Context) error {
	// cursor is always 0, for the same reason as crawler.Module: the
	// success/lockability predicates in store.NextForModule already make
	// re-scanning from the start correct, so there is no low-water mark to
	// maintain (see DESIGN.md).
	candidate, found, err := m.list.NextFor(ctx, crawlserv.ModuleParser, 0)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	return m.process(ctx, candidate)
}

func (m *Module) process(ctx context.Context, candidate urllist.Candidate) error {
	lockDuration := urllist.DefaultLockDuration(m.cfg.ParserLock)

	locktime, err := m.list.Lock(ctx, crawlserv.ModuleParser, candidate.ID, lockDuration)
	if err != nil {
		return err
	}
	prev := locktime

	doc, found, err := m.selectContent(ctx, candidate.ID, candidate.URL)
	if err != nil {
		return err
	}
	if !found {
		// Nothing has been crawled for this URL yet; this isn't a retriable
		// failure, so release the lock immediately instead of waiting out
		// lockDuration before the URL becomes selectable again.
		_, err := m.list.UnlockIfHeld(ctx, crawlserv.ModuleParser, candidate.ID, &prev)
		return err
	}

	id, err := rowquery.ApplyIDQueries(ctx, doc, m.cfg.IDQueries, m.cfg.IDFromURL)
	if err != nil {
		return err
	}

	datetime, haveDatetime, err := rowquery.ApplyDateTimeQueries(ctx, doc, m.cfg.DateTimeQueries)
	if err != nil {
		return err
	}

	columns := map[string]interface{}{}
	if id != "" {
		columns[columnParsedID] = id
	}
	if haveDatetime {
		columns[columnParsedDate] = datetime
	}
	for _, spec := range m.cfg.Fields {
		value, err := rowquery.ApplyField(ctx, doc, spec)
		if err != nil {
			return err
		}
		columns[spec.Name] = value
	}

	if err := m.list.UpsertTargetRow(ctx, m.table, candidate.ID, columns); err != nil {
		return err
	}

	held, err := m.list.MarkSuccess(ctx, crawlserv.ModuleParser, candidate.ID, &prev)
	if err != nil {
		return err
	}
	if held {
		m.bumpHigh(candidate.ID)
	}

	return nil
}

// selectContent implements spec.md §4.5 op 1. NewestOnly picks the single
// latest non-archived content row; otherwise every row is tried, newest
// first, and the first one producing a non-empty id or field result wins
// (falling back to the newest row if none do) — see DESIGN.md.
func (m *Module) selectContent(ctx context.Context, urlID uint64, rawURL string) (rowquery.Document, bool, error) {
	if m.cfg.NewestOnly {
		c, found, err := m.list.LatestContent(ctx, urlID)
		if err != nil || !found {
			return rowquery.Document{}, found, err
		}
		return m.buildDocument(rawURL, c), true, nil
	}

	rows, err := m.list.AllContent(ctx, urlID)
	if err != nil {
		return rowquery.Document{}, false, err
	}
	if len(rows) == 0 {
		return rowquery.Document{}, false, nil
	}

	var fallback rowquery.Document
	for i := len(rows) - 1; i >= 0; i-- {
		doc := m.buildDocument(rawURL, rows[i])
		if i == len(rows)-1 {
			fallback = doc
		}
		if m.hasUsableResult(ctx, doc) {
			return doc, true, nil
		}
	}
	return fallback, true, nil
}

// hasUsableResult reports whether at least one configured query produces a
// non-empty value against doc, used to pick which content row to parse when
// NewestOnly is false.
func (m *Module) hasUsableResult(ctx context.Context, doc rowquery.Document) bool {
	if id, err := rowquery.ApplyIDQueries(ctx, doc, m.cfg.IDQueries, m.cfg.IDFromURL); err == nil && id != "" {
		return true
	}
	for _, spec := range m.cfg.Fields {
		if value, err := rowquery.ApplyField(ctx, doc, spec); err == nil && value != "" {
			return true
		}
	}
	return false
}

func (m *Module) buildDocument(rawURL string, c crawlserv.Content) rowquery.Document {
	doc := rowquery.Document{URL: rawURL, Content: string(c.Content)}
	if parsed, err := query.ParseHTML(c.Content); err == nil {
		doc.HTML = parsed
	}
	return doc
}

func (m *Module) bumpHigh(id uint64) {
	for {
		cur := atomic.LoadUint64(&m.high)
		if id <= cur {
			return
		}
		if atomic.CompareAndSwapUint64(&m.high, cur, id) {
			return
		}
	}
}
