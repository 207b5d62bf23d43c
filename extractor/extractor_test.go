package extractor

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

func TestOnTickParsesLatestContentAndWritesRow(t *testing.T) {
	backend := &store.MockBackend{}
	now := time.Now()

	idRe, err := query.NewRegex(`\d+$`, false)
	require.NoError(t, err)

	backend.On("NextForModule", mock.Anything, "ex", "main", crawlserv.ModuleExtractor, uint64(0), false).
		Return(store.NextURLRow{ID: 3, URL: "/item/77"}, true, nil)
	backend.On("LockURL", mock.Anything, "ex", "main", crawlserv.ModuleExtractor, uint64(3), time.Minute).
		Return(now, nil)
	backend.On("LatestContent", mock.Anything, "ex", "main", uint64(3)).
		Return(crawlserv.Content{URLID: 3, Content: []byte("irrelevant body")}, true, nil)
	backend.On("UpsertTargetRow", mock.Anything, "crawlserv_ex_main_extracted_items", uint64(3),
		mock.MatchedBy(func(cols map[string]interface{}) bool {
			return cols[columnExtractedID] == "77"
		})).Return(nil)
	backend.On("MarkSuccess", mock.Anything, "ex", "main", crawlserv.ModuleExtractor, uint64(3), mock.Anything).
		Return(true, nil)

	cfg := Config{ExtractorLock: time.Minute, TargetTable: "items", NewestOnly: true, IDFromURL: idRe}
	m := newTestModule(t, backend, cfg)
	m.table = "crawlserv_ex_main_extracted_items"

	require.NoError(t, m.OnTick(context.Background()))
	require.Equal(t, uint64(3), m.Last())
	backend.AssertExpectations(t)
}

func TestOnInitProvisionsTargetTableWithExtractedColumns(t *testing.T) {
	backend := &store.MockBackend{}
	re, err := query.NewRegex(`\w+`, false)
	require.NoError(t, err)

	backend.On("AddOrGetTargetTable", mock.Anything, "ex", "main", "extracted", "items",
		mock.MatchedBy(func(cols []store.ColumnDef) bool {
			return len(cols) == 3 && cols[0].Name == columnExtractedID && cols[2].Name == "tag"
		}), true).
		Return("crawlserv_ex_main_extracted_items", nil)

	cfg := Config{
		TargetTable: "items",
		Compressed:  true,
		Fields:      []rowquery.FieldSpec{{Name: "tag", Source: rowquery.SourceContent, Eval: re, Kind: query.ResultSingle}},
	}
	m := newTestModule(t, backend, cfg)

	require.NoError(t, m.OnInit(context.Background(), false))
	require.Equal(t, "crawlserv_ex_main_extracted_items", m.table)
	backend.AssertExpectations(t)
}

func TestOnTickUnlocksWhenNoContentYet(t *testing.T) {
	backend := &store.MockBackend{}
	now := time.Now()

	backend.On("NextForModule", mock.Anything, "ex", "main", crawlserv.ModuleExtractor, uint64(0), false).
		Return(store.NextURLRow{ID: 8, URL: "/pending"}, true, nil)
	backend.On("LockURL", mock.Anything, "ex", "main", crawlserv.ModuleExtractor, uint64(8), time.Minute).
		Return(now, nil)
	backend.On("LatestContent", mock.Anything, "ex", "main", uint64(8)).
		Return(crawlserv.Content{}, false, nil)
	backend.On("UnlockIfHeld", mock.Anything, "ex", "main", crawlserv.ModuleExtractor, uint64(8), mock.Anything).
		Return(true, nil)

	cfg := Config{ExtractorLock: time.Minute, TargetTable: "items", NewestOnly: true}
	m := newTestModule(t, backend, cfg)
	m.table = "crawlserv_ex_main_extracted_items"

	require.NoError(t, m.OnTick(context.Background()))
	require.Equal(t, uint64(0), m.Last())
	backend.AssertExpectations(t)
}

func TestConfigValidateRejectsEmptyTargetTable(t *testing.T) {
	cfg := Config{}
	require.Error(t, cfg.Validate())
}
