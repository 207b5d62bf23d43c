package analyzer

import (
	"context"
	"sync/atomic"

	"github.com/crawlserv/crawlserv/errs"
	"github.com/crawlserv/crawlserv/logging"
	"github.com/crawlserv/crawlserv/markov"
	"github.com/crawlserv/crawlserv/store"
	"github.com/crawlserv/crawlserv/urllist"
)

const columnText = "text"

// Module implements thread.Module for the analyzer: OnInit compiles a
// markov.Generator from the configured corpus sources and provisions the
// target table; each OnTick samples cfg.BatchSize sentences and writes one
// row per sentence, keyed by a monotonically increasing id of the
// analyzer's own (no underlying URL is involved).
type Module struct {
	backend store.Backend
	list    *urllist.List
	cfg     Config

	gen   *markov.Generator
	table string

	next uint64 // highest generated row id; progress only, see DESIGN.md

	inited bool
}

// New builds an analyzer Module. backend is used directly for ReadColumn,
// which has no per-URL-list meaning and so isn't wrapped by urllist.List;
// list still provisions and addresses the analyzer's own target table, the
// same way parser/extractor do.
func New(backend store.Backend, list *urllist.List, cfg Config) (*Module, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Module{backend: backend, list: list, cfg: cfg}, nil
}

// Last reports the high-water mark for the supervisor's status flush; see
// thread.lastReporter.
func (m *Module) Last() uint64 { return atomic.LoadUint64(&m.next) }

// OnInit reads every configured corpus source, compiles the generator, and
// provisions the target table. Recompiling on resume is intentional: the
// source tables may have grown since the thread was interrupted, and
// markov.Generator holds no state worth persisting across a restart.
func (m *Module) OnInit(ctx context.Context, resumed bool) error {
	const op = "analyzer.Module.OnInit"

	gen := markov.New(markov.Config{
		MaxK:       m.cfg.MaxK,
		MinCorpora: m.cfg.MinCorpora,
		Emoticons:  m.cfg.Emoticons,
		Emojis:     m.cfg.Emojis,
	})

	for _, src := range m.cfg.Sources {
		rows, err := m.backend.ReadColumn(ctx, src.Table, src.Column, src.Limit)
		if err != nil {
			return errs.Wrap(errs.Internal, op, err)
		}
		for _, row := range rows {
			gen.AddCorpus(row)
		}
	}

	if err := gen.Compile(ctx); err != nil {
		return err
	}

	table, err := m.list.TargetTable(ctx, "analyzed", m.cfg.TargetTable,
		[]store.ColumnDef{{Name: columnText, Type: "TEXT"}}, m.cfg.Compressed)
	if err != nil {
		return err
	}

	m.gen = gen
	m.table = table
	m.inited = true

	logging.Info("analyzer: compiled corpus from %d source(s) into %q", len(m.cfg.Sources), table)
	return nil
}

func (m *Module) OnPause() bool  { return m.inited }
func (m *Module) OnUnpause()     {}
func (m *Module) OnClear() error { m.gen = nil; return nil }

// OnTick samples cfg.BatchSize sentences from the compiled generator and
// writes each as its own row, keyed by an id this module owns (not a URL
// row id — nothing about corpus generation is per-URL).
func (m *Module) OnTick(ctx context.Context) error {
	for i := 0; i < m.cfg.BatchSize; i++ {
		sentence := m.gen.RandomSentence(m.cfg.SentenceMaxLen)
		id := atomic.AddUint64(&m.next, 1)

		if err := m.list.UpsertTargetRow(ctx, m.table, id, map[string]interface{}{
			columnText: sentence,
		}); err != nil {
			return err
		}
	}
	return nil
}
