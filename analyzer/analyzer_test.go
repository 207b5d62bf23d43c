package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/store"
	"github.com/crawlserv/crawlserv/urllist"
)

func testWebsite() crawlserv.Website {
	return crawlserv.Website{ID: 1, Domain: "example.com", Namespace: "ex"}
}

func newTestModule(t *testing.T, backend store.Backend, cfg Config) *Module {
	t.Helper()
	list := urllist.New(backend, testWebsite(), crawlserv.UrlList{ID: 1, Namespace: "main"})
	m, err := New(backend, list, cfg)
	require.NoError(t, err)
	return m
}

func TestValidateRejectsMissingSources(t *testing.T) {
	cfg := Config{TargetTable: "sentences"}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsMissingTargetTable(t *testing.T) {
	cfg := Config{Sources: []CorpusSource{{Table: "crawlserv_ex_main_parsed_articles", Column: "title"}}}
	require.Error(t, cfg.Validate())
}

func TestOnInitCompilesCorpusAndProvisionsTargetTable(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("ReadColumn", mock.Anything, "crawlserv_ex_main_parsed_articles", "title", 0).
		Return([]string{"the quick brown fox", "the quick brown dog"}, nil)
	backend.On("AddOrGetTargetTable", mock.Anything, "ex", "main", "analyzed", "sentences",
		mock.MatchedBy(func(cols []store.ColumnDef) bool {
			return len(cols) == 1 && cols[0].Name == columnText
		}), false).
		Return("crawlserv_ex_main_analyzed_sentences", nil)

	cfg := Config{
		TargetTable: "sentences",
		Sources:     []CorpusSource{{Table: "crawlserv_ex_main_parsed_articles", Column: "title"}},
		MaxK:        3,
	}
	m := newTestModule(t, backend, cfg)

	require.NoError(t, m.OnInit(context.Background(), false))
	require.Equal(t, "crawlserv_ex_main_analyzed_sentences", m.table)
	require.NotNil(t, m.gen)
	backend.AssertExpectations(t)
}

func TestOnTickWritesOneRowPerBatchEntry(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("ReadColumn", mock.Anything, "crawlserv_ex_main_parsed_articles", "title", 0).
		Return([]string{"the quick brown fox jumps"}, nil)
	backend.On("AddOrGetTargetTable", mock.Anything, "ex", "main", "analyzed", "sentences", mock.Anything, false).
		Return("crawlserv_ex_main_analyzed_sentences", nil)
	backend.On("UpsertTargetRow", mock.Anything, "crawlserv_ex_main_analyzed_sentences", uint64(1), mock.Anything).
		Return(nil)
	backend.On("UpsertTargetRow", mock.Anything, "crawlserv_ex_main_analyzed_sentences", uint64(2), mock.Anything).
		Return(nil)

	cfg := Config{
		TargetTable: "sentences",
		Sources:     []CorpusSource{{Table: "crawlserv_ex_main_parsed_articles", Column: "title"}},
		BatchSize:   2,
	}
	m := newTestModule(t, backend, cfg)
	require.NoError(t, m.OnInit(context.Background(), false))

	require.NoError(t, m.OnTick(context.Background()))
	require.Equal(t, uint64(2), m.Last())
	backend.AssertExpectations(t)
}

func TestOnInitPropagatesReadColumnFailure(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("ReadColumn", mock.Anything, "crawlserv_ex_main_parsed_articles", "title", 0).
		Return(nil, assertAnError())

	cfg := Config{
		TargetTable: "sentences",
		Sources:     []CorpusSource{{Table: "crawlserv_ex_main_parsed_articles", Column: "title"}},
	}
	m := newTestModule(t, backend, cfg)

	require.Error(t, m.OnInit(context.Background(), false))
}

func assertAnError() error {
	return context.DeadlineExceeded
}
