package store

import (
	"context"
	"time"

	"github.com/crawlserv/crawlserv"
)

// Backend is the storage contract every other package (urllist, thread,
// crawler, parser, extractor, control) depends on, rather than *Store
// directly — the same shape as the teacher's walker.Datastore /
// cassandra.ModelDatastore split, which lets fetcher/dispatcher/console
// code run against MockDatastore in tests without a live database.
type Backend interface {
	CreateWebsite(ctx context.Context, w crawlserv.Website) (uint64, error)
	GetWebsite(ctx context.Context, id uint64) (crawlserv.Website, error)
	ListWebsites(ctx context.Context) ([]crawlserv.Website, error)
	DeleteWebsite(ctx context.Context, id uint64) error
	CreateList(ctx context.Context, website crawlserv.Website, list crawlserv.UrlList, compressed bool) (uint64, error)
	GetList(ctx context.Context, id uint64) (crawlserv.UrlList, error)
	ListLists(ctx context.Context, websiteID uint64) ([]crawlserv.UrlList, error)
	DeleteList(ctx context.Context, website crawlserv.Website, list crawlserv.UrlList) error
	RenameList(ctx context.Context, website crawlserv.Website, list crawlserv.UrlList, newNS string) error
	RenameWebsite(ctx context.Context, website crawlserv.Website, newNS string, lists []crawlserv.UrlList) error
	ChangeDomain(ctx context.Context, website crawlserv.Website, newDomain string, lists []crawlserv.UrlList) error

	AddOrGetTargetTable(ctx context.Context, websiteNS, listNS, tableType, name string, columns []ColumnDef, compressed bool) (string, error)
	UpsertTargetRow(ctx context.Context, table string, urlID uint64, columns map[string]interface{}) error
	ReadColumn(ctx context.Context, table, column string, limit int) ([]string, error)

	ExistsURL(ctx context.Context, websiteNS, listNS, url string) (uint64, bool, error)
	AddURL(ctx context.Context, websiteNS, listNS, url string, manual bool) (uint64, error)
	NextForModule(ctx context.Context, websiteNS, listNS string, module crawlserv.Module, cursor uint64, recrawl bool) (NextURLRow, bool, error)
	RecrawlCandidates(ctx context.Context, websiteNS, listNS string, module crawlserv.Module, cursor uint64, limit int) ([]LastCrawledRow, error)
	LockURL(ctx context.Context, websiteNS, listNS string, module crawlserv.Module, urlID uint64, duration time.Duration) (time.Time, error)
	TryRenewLock(ctx context.Context, websiteNS, listNS string, module crawlserv.Module, urlID uint64, previous *time.Time, duration time.Duration) (time.Time, bool, error)
	UnlockIfHeld(ctx context.Context, websiteNS, listNS string, module crawlserv.Module, urlID uint64, previous *time.Time) (bool, error)
	MarkSuccess(ctx context.Context, websiteNS, listNS string, module crawlserv.Module, urlID uint64, previous *time.Time) (bool, error)

	InsertContent(ctx context.Context, websiteNS, listNS string, c crawlserv.Content) (uint64, error)
	LatestContent(ctx context.Context, websiteNS, listNS string, urlID uint64) (crawlserv.Content, bool, error)
	AllContent(ctx context.Context, websiteNS, listNS string, urlID uint64) ([]crawlserv.Content, error)
	ArchivedCrawlTimes(ctx context.Context, websiteNS, listNS string, urlID uint64) ([]time.Time, error)

	InsertLog(ctx context.Context, module crawlserv.Module, entry string) error
	RecentLogs(ctx context.Context, module crawlserv.Module, count int) ([]crawlserv.LogEntry, error)
	ClearLog(ctx context.Context, module crawlserv.Module) error

	CreateQuery(ctx context.Context, q crawlserv.Query) (uint64, error)
	GetQuery(ctx context.Context, id uint64) (crawlserv.Query, error)
	ListQueries(ctx context.Context, websiteID uint64) ([]crawlserv.Query, error)
	DeleteQuery(ctx context.Context, id uint64) error

	CreateConfiguration(ctx context.Context, c crawlserv.Configuration) (uint64, error)
	GetConfiguration(ctx context.Context, id uint64) (crawlserv.Configuration, error)
	ListConfigurations(ctx context.Context, websiteID uint64, module crawlserv.Module) ([]crawlserv.Configuration, error)
	UpdateConfiguration(ctx context.Context, id uint64, json []byte) error
	DeleteConfiguration(ctx context.Context, id uint64) error

	CreateThread(ctx context.Context, t crawlserv.Thread) (uint64, error)
	GetThread(ctx context.Context, id uint64) (crawlserv.Thread, error)
	ListThreads(ctx context.Context) ([]crawlserv.Thread, error)
	UpdateThreadStatus(ctx context.Context, t crawlserv.Thread) error
	DeleteThread(ctx context.Context, id uint64) error

	LockNamed(name string) (unlock func())

	EngineVersion(ctx context.Context) (string, error)
}

var _ Backend = (*Store)(nil)
