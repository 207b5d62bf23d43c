package extractor

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
	columnExtractedID   = "extracted_id"
	columnExtractedDate = "extracted_datetime"
)

// Module implements thread.Module for the extractor, mirroring
// parser.Module exactly: select_content → apply_id_queries →
// apply_datetime_queries → apply_field_queries → write_row → mark_success,
// scoped to crawlserv.ModuleExtractor's own lock table and target tables.
type Module struct {
	list *urllist.List
	cfg  Config

	table string

	high uint64

	inited bool
}

// New builds an extractor Module.
func New(list *urllist.List, cfg Config) (*Module, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Module{list: list, cfg: cfg}, nil
}

// Last reports the high-water mark for the supervisor's status flush; see
// thread.lastReporter.
func (m *Module) Last() uint64 { return atomic.LoadUint64(&m.high) }

// OnInit provisions the extractor's target table: an extracted_id text
// column, an extracted_datetime column, and one column per configured
// field.
func (m *Module) OnInit(ctx context.Context, resumed bool) error {
	columns := []store.ColumnDef{
		{Name: columnExtractedID, Type: "TEXT"},
		{Name: columnExtractedDate, Type: "DATETIME"},
	}
	for _, f := range m.cfg.Fields {
		columns = append(columns, store.ColumnDef{Name: f.Name, Type: "TEXT"})
	}

	table, err := m.list.TargetTable(ctx, "extracted", m.cfg.TargetTable, columns, m.cfg.Compressed)
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
// eligible URL.
func (m *Module) OnTick(ctx context.Context) error {
	candidate, found, err := m.list.NextFor(ctx, crawlserv.ModuleExtractor, 0)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	return m.process(ctx, candidate)
}

func (m *Module) process(ctx context.Context, candidate urllist.Candidate) error {
	lockDuration := urllist.DefaultLockDuration(m.cfg.ExtractorLock)

	locktime, err := m.list.Lock(ctx, crawlserv.ModuleExtractor, candidate.ID, lockDuration)
	if err != nil {
		return err
	}
	prev := locktime

	doc, found, err := m.selectContent(ctx, candidate.ID, candidate.URL)
	if err != nil {
		return err
	}
	if !found {
		_, err := m.list.UnlockIfHeld(ctx, crawlserv.ModuleExtractor, candidate.ID, &prev)
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
		columns[columnExtractedID] = id
	}
	if haveDatetime {
		columns[columnExtractedDate] = datetime
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

	held, err := m.list.MarkSuccess(ctx, crawlserv.ModuleExtractor, candidate.ID, &prev)
	if err != nil {
		return err
	}
	if held {
		m.bumpHigh(candidate.ID)
	}

	return nil
}

// selectContent mirrors parser.Module.selectContent exactly.
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
