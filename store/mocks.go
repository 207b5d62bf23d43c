package store

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/crawlserv/crawlserv"
)

// MockBackend implements Backend using testify/mock, the same shape as the
// teacher's MockDatastore: every method forwards its arguments to
// mock.Mock.Called and type-asserts the configured return values. Used by
// urllist/thread/crawler/parser tests that need a Backend without a live
// database.
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) CreateWebsite(ctx context.Context, w crawlserv.Website) (uint64, error) {
	args := m.Called(ctx, w)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockBackend) GetWebsite(ctx context.Context, id uint64) (crawlserv.Website, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(crawlserv.Website), args.Error(1)
}

func (m *MockBackend) ListWebsites(ctx context.Context) ([]crawlserv.Website, error) {
	args := m.Called(ctx)
	if rows, ok := args.Get(0).([]crawlserv.Website); ok {
		return rows, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackend) DeleteWebsite(ctx context.Context, id uint64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBackend) CreateList(ctx context.Context, website crawlserv.Website, list crawlserv.UrlList, compressed bool) (uint64, error) {
	args := m.Called(ctx, website, list, compressed)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockBackend) GetList(ctx context.Context, id uint64) (crawlserv.UrlList, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(crawlserv.UrlList), args.Error(1)
}

func (m *MockBackend) ListLists(ctx context.Context, websiteID uint64) ([]crawlserv.UrlList, error) {
	args := m.Called(ctx, websiteID)
	if rows, ok := args.Get(0).([]crawlserv.UrlList); ok {
		return rows, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackend) DeleteList(ctx context.Context, website crawlserv.Website, list crawlserv.UrlList) error {
	args := m.Called(ctx, website, list)
	return args.Error(0)
}

func (m *MockBackend) RenameList(ctx context.Context, website crawlserv.Website, list crawlserv.UrlList, newNS string) error {
	args := m.Called(ctx, website, list, newNS)
	return args.Error(0)
}

func (m *MockBackend) RenameWebsite(ctx context.Context, website crawlserv.Website, newNS string, lists []crawlserv.UrlList) error {
	args := m.Called(ctx, website, newNS, lists)
	return args.Error(0)
}

func (m *MockBackend) ChangeDomain(ctx context.Context, website crawlserv.Website, newDomain string, lists []crawlserv.UrlList) error {
	args := m.Called(ctx, website, newDomain, lists)
	return args.Error(0)
}

func (m *MockBackend) AddOrGetTargetTable(ctx context.Context, websiteNS, listNS, tableType, name string, columns []ColumnDef, compressed bool) (string, error) {
	args := m.Called(ctx, websiteNS, listNS, tableType, name, columns, compressed)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) UpsertTargetRow(ctx context.Context, table string, urlID uint64, columns map[string]interface{}) error {
	args := m.Called(ctx, table, urlID, columns)
	return args.Error(0)
}

func (m *MockBackend) ReadColumn(ctx context.Context, table, column string, limit int) ([]string, error) {
	args := m.Called(ctx, table, column, limit)
	if rows, ok := args.Get(0).([]string); ok {
		return rows, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackend) ExistsURL(ctx context.Context, websiteNS, listNS, url string) (uint64, bool, error) {
	args := m.Called(ctx, websiteNS, listNS, url)
	return args.Get(0).(uint64), args.Bool(1), args.Error(2)
}

func (m *MockBackend) AddURL(ctx context.Context, websiteNS, listNS, url string, manual bool) (uint64, error) {
	args := m.Called(ctx, websiteNS, listNS, url, manual)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockBackend) NextForModule(ctx context.Context, websiteNS, listNS string, module crawlserv.Module, cursor uint64, recrawl bool) (NextURLRow, bool, error) {
	args := m.Called(ctx, websiteNS, listNS, module, cursor, recrawl)
	return args.Get(0).(NextURLRow), args.Bool(1), args.Error(2)
}

func (m *MockBackend) RecrawlCandidates(ctx context.Context, websiteNS, listNS string, module crawlserv.Module, cursor uint64, limit int) ([]LastCrawledRow, error) {
	args := m.Called(ctx, websiteNS, listNS, module, cursor, limit)
	return args.Get(0).([]LastCrawledRow), args.Error(1)
}

func (m *MockBackend) LockURL(ctx context.Context, websiteNS, listNS string, module crawlserv.Module, urlID uint64, duration time.Duration) (time.Time, error) {
	args := m.Called(ctx, websiteNS, listNS, module, urlID, duration)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockBackend) TryRenewLock(ctx context.Context, websiteNS, listNS string, module crawlserv.Module, urlID uint64, previous *time.Time, duration time.Duration) (time.Time, bool, error) {
	args := m.Called(ctx, websiteNS, listNS, module, urlID, previous, duration)
	return args.Get(0).(time.Time), args.Bool(1), args.Error(2)
}

func (m *MockBackend) UnlockIfHeld(ctx context.Context, websiteNS, listNS string, module crawlserv.Module, urlID uint64, previous *time.Time) (bool, error) {
	args := m.Called(ctx, websiteNS, listNS, module, urlID, previous)
	return args.Bool(0), args.Error(1)
}

func (m *MockBackend) MarkSuccess(ctx context.Context, websiteNS, listNS string, module crawlserv.Module, urlID uint64, previous *time.Time) (bool, error) {
	args := m.Called(ctx, websiteNS, listNS, module, urlID, previous)
	return args.Bool(0), args.Error(1)
}

func (m *MockBackend) InsertContent(ctx context.Context, websiteNS, listNS string, c crawlserv.Content) (uint64, error) {
	args := m.Called(ctx, websiteNS, listNS, c)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockBackend) LatestContent(ctx context.Context, websiteNS, listNS string, urlID uint64) (crawlserv.Content, bool, error) {
	args := m.Called(ctx, websiteNS, listNS, urlID)
	return args.Get(0).(crawlserv.Content), args.Bool(1), args.Error(2)
}

func (m *MockBackend) AllContent(ctx context.Context, websiteNS, listNS string, urlID uint64) ([]crawlserv.Content, error) {
	args := m.Called(ctx, websiteNS, listNS, urlID)
	if rows, ok := args.Get(0).([]crawlserv.Content); ok {
		return rows, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackend) ArchivedCrawlTimes(ctx context.Context, websiteNS, listNS string, urlID uint64) ([]time.Time, error) {
	args := m.Called(ctx, websiteNS, listNS, urlID)
	if rows, ok := args.Get(0).([]time.Time); ok {
		return rows, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackend) InsertLog(ctx context.Context, module crawlserv.Module, entry string) error {
	args := m.Called(ctx, module, entry)
	return args.Error(0)
}

func (m *MockBackend) RecentLogs(ctx context.Context, module crawlserv.Module, count int) ([]crawlserv.LogEntry, error) {
	args := m.Called(ctx, module, count)
	return args.Get(0).([]crawlserv.LogEntry), args.Error(1)
}

func (m *MockBackend) ClearLog(ctx context.Context, module crawlserv.Module) error {
	args := m.Called(ctx, module)
	return args.Error(0)
}

func (m *MockBackend) CreateQuery(ctx context.Context, q crawlserv.Query) (uint64, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockBackend) GetQuery(ctx context.Context, id uint64) (crawlserv.Query, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(crawlserv.Query), args.Error(1)
}

func (m *MockBackend) ListQueries(ctx context.Context, websiteID uint64) ([]crawlserv.Query, error) {
	args := m.Called(ctx, websiteID)
	if rows, ok := args.Get(0).([]crawlserv.Query); ok {
		return rows, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackend) DeleteQuery(ctx context.Context, id uint64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBackend) CreateConfiguration(ctx context.Context, c crawlserv.Configuration) (uint64, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockBackend) GetConfiguration(ctx context.Context, id uint64) (crawlserv.Configuration, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(crawlserv.Configuration), args.Error(1)
}

func (m *MockBackend) ListConfigurations(ctx context.Context, websiteID uint64, module crawlserv.Module) ([]crawlserv.Configuration, error) {
	args := m.Called(ctx, websiteID, module)
	if rows, ok := args.Get(0).([]crawlserv.Configuration); ok {
		return rows, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackend) UpdateConfiguration(ctx context.Context, id uint64, json []byte) error {
	args := m.Called(ctx, id, json)
	return args.Error(0)
}

func (m *MockBackend) DeleteConfiguration(ctx context.Context, id uint64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBackend) CreateThread(ctx context.Context, t crawlserv.Thread) (uint64, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockBackend) GetThread(ctx context.Context, id uint64) (crawlserv.Thread, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(crawlserv.Thread), args.Error(1)
}

func (m *MockBackend) ListThreads(ctx context.Context) ([]crawlserv.Thread, error) {
	args := m.Called(ctx)
	return args.Get(0).([]crawlserv.Thread), args.Error(1)
}

func (m *MockBackend) UpdateThreadStatus(ctx context.Context, t crawlserv.Thread) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockBackend) DeleteThread(ctx context.Context, id uint64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBackend) LockNamed(name string) func() {
	args := m.Called(name)
	return args.Get(0).(func())
}

func (m *MockBackend) EngineVersion(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

var _ Backend = (*MockBackend)(nil)
