package parser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/query"
	"github.com/crawlserv/crawlserv/rowquery"
	"github.com/crawlserv/crawlserv/store"
	"github.com/crawlserv/crawlserv/urllist"
)

func testWebsite() crawlserv.Website {
	return crawlserv.Website{ID: 1, Domain: "example.com", Namespace: "ex"}
}

func newTestModule(t *testing.T, backend store.Backend, cfg Config) *Module {
	t.Helper()
	list := urllist.New(backend, testWebsite(), crawlserv.UrlList{ID: 1, Namespace: "main"})
	m, err := New(list, cfg)
	require.NoError(t, err)
	return m
}

func TestOnTickNoCandidateIsNotAnError(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("NextForModule", mock.Anything, "ex", "main", crawlserv.ModuleParser, uint64(0), false).
		Return(store.NextURLRow{}, false, nil)

	cfg := Config{TargetTable: "articles", NewestOnly: true}
	m := newTestModule(t, backend, cfg)
	m.table = "crawlserv_ex_main_parsed_articles"

	require.NoError(t, m.OnTick(context.Background()))
	backend.AssertExpectations(t)
}

func TestOnInitProvisionsTargetTableWithParsedColumns(t *testing.T) {
	backend := &store.MockBackend{}
	re, err := query.NewRegex(`\w+`, false)
	require.NoError(t, err)

	backend.On("AddOrGetTargetTable", mock.Anything, "ex", "main", "parsed", "articles",
		mock.MatchedBy(func(cols []store.ColumnDef) bool {
			if len(cols) != 3 {
				return false
			}
			return cols[0].Name == columnParsedID && cols[1].Name == columnParsedDate && cols[2].Name == "title"
		}), false).
		Return("crawlserv_ex_main_parsed_articles", nil)

	cfg := Config{
		TargetTable: "articles",
		NewestOnly:  true,
		Fields:      []rowquery.FieldSpec{{Name: "title", Source: rowquery.SourceContent, Eval: re, Kind: query.ResultSingle}},
	}
	m := newTestModule(t, backend, cfg)

	require.NoError(t, m.OnInit(context.Background(), false))
	require.Equal(t, "crawlserv_ex_main_parsed_articles", m.table)
	backend.AssertExpectations(t)
}

func TestOnTickParsesLatestContentAndWritesRow(t *testing.T) {
	backend := &store.MockBackend{}
	now := time.Now()

	idRe, err := query.NewRegex(`\d+$`, false)
	require.NoError(t, err)
	titleRe, err := query.NewRegex(`\w+`, false)
	require.NoError(t, err)

	backend.On("NextForModule", mock.Anything, "ex", "main", crawlserv.ModuleParser, uint64(0), false).
		Return(store.NextURLRow{ID: 5, URL: "/article/42"}, true, nil)
	backend.On("LockURL", mock.Anything, "ex", "main", crawlserv.ModuleParser, uint64(5), time.Minute).
		Return(now, nil)
	backend.On("LatestContent", mock.Anything, "ex", "main", uint64(5)).
		Return(crawlserv.Content{URLID: 5, Content: []byte("hello world")}, true, nil)
	backend.On("UpsertTargetRow", mock.Anything, "crawlserv_ex_main_parsed_articles", uint64(5), mock.MatchedBy(func(cols map[string]interface{}) bool {
		return cols[columnParsedID] == "42" && cols["title"] == "hello"
	})).Return(nil)
	backend.On("MarkSuccess", mock.Anything, "ex", "main", crawlserv.ModuleParser, uint64(5), mock.Anything).
		Return(true, nil)

	cfg := Config{
		ParserLock:  time.Minute,
		TargetTable: "articles",
		NewestOnly:  true,
		IDFromURL:   idRe,
		Fields:      []rowquery.FieldSpec{{Name: "title", Source: rowquery.SourceContent, Eval: titleRe, Kind: query.ResultSingle}},
	}
	m := newTestModule(t, backend, cfg)
	m.table = "crawlserv_ex_main_parsed_articles"

	require.NoError(t, m.OnTick(context.Background()))
	require.Equal(t, uint64(5), m.Last())
	backend.AssertExpectations(t)
}

func TestOnTickUnlocksWhenNoContentYet(t *testing.T) {
	backend := &store.MockBackend{}
	now := time.Now()

	backend.On("NextForModule", mock.Anything, "ex", "main", crawlserv.ModuleParser, uint64(0), false).
		Return(store.NextURLRow{ID: 7, URL: "/pending"}, true, nil)
	backend.On("LockURL", mock.Anything, "ex", "main", crawlserv.ModuleParser, uint64(7), time.Minute).
		Return(now, nil)
	backend.On("LatestContent", mock.Anything, "ex", "main", uint64(7)).
		Return(crawlserv.Content{}, false, nil)
	backend.On("UnlockIfHeld", mock.Anything, "ex", "main", crawlserv.ModuleParser, uint64(7), mock.Anything).
		Return(true, nil)

	cfg := Config{ParserLock: time.Minute, TargetTable: "articles", NewestOnly: true}
	m := newTestModule(t, backend, cfg)
	m.table = "crawlserv_ex_main_parsed_articles"

	require.NoError(t, m.OnTick(context.Background()))
	require.Equal(t, uint64(0), m.Last())
	backend.AssertNotCalled(t, "UpsertTargetRow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	backend.AssertExpectations(t)
}

func TestSelectContentNotNewestOnlyPicksRowWithUsableID(t *testing.T) {
	backend := &store.MockBackend{}
	idRe, err := query.NewRegex(`\d+`, false)
	require.NoError(t, err)

	rows := []crawlserv.Content{
		{URLID: 9, CrawlTime: time.Unix(100, 0), Content: []byte("id 555")},
		{URLID: 9, CrawlTime: time.Unix(200, 0), Content: []byte("no id here")},
	}
	backend.On("AllContent", mock.Anything, "ex", "main", uint64(9)).Return(rows, nil)

	cfg := Config{
		TargetTable: "articles",
		NewestOnly:  false,
		IDQueries:   []rowquery.IDQuery{{Eval: idRe, Kind: query.ResultSingle}},
	}
	m := newTestModule(t, backend, cfg)

	doc, found, err := m.selectContent(context.Background(), 9, "/x")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "id 555", doc.Content)
}

func TestConfigValidateRejectsEmptyTargetTable(t *testing.T) {
	cfg := Config{}
	require.Error(t, cfg.Validate())
}
