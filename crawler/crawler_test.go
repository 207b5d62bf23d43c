package crawler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/network"
	"github.com/crawlserv/crawlserv/query"
	"github.com/crawlserv/crawlserv/store"
	"github.com/crawlserv/crawlserv/urllist"
)

// fakeClient is a network.Client test double that serves a fixed response
// for every request, recording how many times it was called.
type fakeClient struct {
	calls   int
	status  int
	body    string
	header  http.Header
	doErr   error
	perCall []int // optional per-call status override
}

func (f *fakeClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	f.calls++
	if f.doErr != nil {
		return nil, f.doErr
	}
	status := f.status
	if len(f.perCall) > 0 {
		idx := f.calls - 1
		if idx < len(f.perCall) {
			status = f.perCall[idx]
		} else {
			status = f.perCall[len(f.perCall)-1]
		}
	}
	header := f.header
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewBufferString(f.body)),
	}, nil
}

func testWebsite() crawlserv.Website {
	return crawlserv.Website{ID: 1, Domain: "example.com", Namespace: "ex"}
}

func testConfig() Config {
	return Config{
		CrawlerLock:  time.Minute,
		SuccessCodes: map[int]bool{200: true},
		Retry: RetryConfig{
			HTTPCodes: map[int]bool{503: true},
			Retries:   2,
		},
	}
}

func newTestModule(t *testing.T, backend store.Backend, client network.Client, cfg Config) *Module {
	t.Helper()
	list := urllist.New(backend, testWebsite(), crawlserv.UrlList{ID: 1, Namespace: "main"})
	base, err := url.Parse("https://example.com/")
	require.NoError(t, err)
	m, err := New(client, list, testWebsite(), cfg, base)
	require.NoError(t, err)
	return m
}

func TestOnTickNoCandidateIsNotAnError(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("NextForModule", mock.Anything, "ex", "main", crawlserv.ModuleCrawler, uint64(0), false).
		Return(store.NextURLRow{}, false, nil)

	client := &fakeClient{}
	m := newTestModule(t, backend, client, testConfig())

	require.NoError(t, m.OnTick(context.Background()))
	require.Equal(t, 0, client.calls)
	backend.AssertExpectations(t)
}

func TestOnTickFetchesAndMarksSuccess(t *testing.T) {
	backend := &store.MockBackend{}
	now := time.Now()

	backend.On("NextForModule", mock.Anything, "ex", "main", crawlserv.ModuleCrawler, uint64(0), false).
		Return(store.NextURLRow{ID: 5, URL: "/page"}, true, nil)
	backend.On("LockURL", mock.Anything, "ex", "main", crawlserv.ModuleCrawler, uint64(5), time.Minute).
		Return(now, nil)
	backend.On("InsertContent", mock.Anything, "ex", "main", mock.AnythingOfType("crawlserv.Content")).
		Return(uint64(1), nil)
	backend.On("MarkSuccess", mock.Anything, "ex", "main", crawlserv.ModuleCrawler, uint64(5), mock.Anything).
		Return(true, nil)

	client := &fakeClient{status: 200, body: "<html><body>hi</body></html>", header: http.Header{"Content-Type": {"text/html"}}}
	m := newTestModule(t, backend, client, testConfig())

	require.NoError(t, m.OnTick(context.Background()))
	require.Equal(t, 1, client.calls)
	require.Equal(t, uint64(5), m.Last())
	backend.AssertExpectations(t)
}

func TestFetchWithRetryGivesUpAfterConfiguredRetries(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("NextForModule", mock.Anything, "ex", "main", crawlserv.ModuleCrawler, uint64(0), false).
		Return(store.NextURLRow{ID: 9, URL: "/broken"}, true, nil)
	backend.On("LockURL", mock.Anything, "ex", "main", crawlserv.ModuleCrawler, uint64(9), time.Minute).
		Return(time.Now(), nil)

	client := &fakeClient{status: 503}
	cfg := testConfig()
	m := newTestModule(t, backend, client, cfg)

	require.NoError(t, m.OnTick(context.Background()))
	// one initial attempt plus cfg.Retry.Retries retries
	require.Equal(t, 1+cfg.Retry.Retries, client.calls)
	require.Equal(t, uint64(0), m.Last())
	backend.AssertNotCalled(t, "MarkSuccess", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	backend.AssertExpectations(t)
}

func TestCheckContentTypeRejectsBlacklisted(t *testing.T) {
	re, err := query.NewRegex("image/.*", false)
	require.NoError(t, err)

	backend := &store.MockBackend{}
	cfg := testConfig()
	cfg.ContentTypeBlacklist = []FieldQuery{{Eval: re, Kind: query.ResultBool}}

	m := newTestModule(t, backend, &fakeClient{}, cfg)

	resp := &http.Response{Header: http.Header{"Content-Type": {"image/png"}}}
	require.False(t, m.checkContentType(resp))

	resp2 := &http.Response{Header: http.Header{"Content-Type": {"text/html"}}}
	require.True(t, m.checkContentType(resp2))
}

func TestCheckConsistencyComparesContentLength(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Content-Length": {"5"}}}
	require.True(t, checkConsistency(resp, []byte("hello")))
	require.False(t, checkConsistency(resp, []byte("hell")))

	respNoHeader := &http.Response{Header: http.Header{}}
	require.True(t, checkConsistency(respNoHeader, []byte("anything")))
}

func TestExtractLinksResolvesAndFilters(t *testing.T) {
	xp, err := query.NewXPath("//a/@href")
	require.NoError(t, err)
	blacklist, err := query.NewRegex("/skip", false)
	require.NoError(t, err)

	backend := &store.MockBackend{}
	cfg := testConfig()
	cfg.LinkQueries = []FieldQuery{{Eval: xp, Kind: query.ResultMulti}}
	cfg.LinkBlacklist = []FieldQuery{{Eval: blacklist, Kind: query.ResultBool}}

	m := newTestModule(t, backend, &fakeClient{}, cfg)

	body := []byte(`<html><body><a href="/keep">k</a><a href="/skip/this">s</a></body></html>`)
	base, _ := url.Parse("https://example.com/start")

	links := m.extractLinks(body, base)
	require.Contains(t, links, "/keep")
	require.NotContains(t, links, "/skip/this")
}

func TestCounterExpansionGlobalSharesOneCombination(t *testing.T) {
	urls := []string{"https://example.com/$(page)$"}
	counters := []Counter{{Name: "page", Start: 1, End: 3, Step: 1}}

	out := ExpandCustomURLs(urls, counters, true)
	require.Equal(t, []string{
		"https://example.com/1",
		"https://example.com/2",
		"https://example.com/3",
	}, out)
}

// archiveClient serves a fixed timemap response for the timemap URL and a
// fixed memento body/status for every other request, recording every URL
// fetched so tests can assert which mementos were actually re-fetched.
type archiveClient struct {
	timemapURL    string
	timemapHeader http.Header
	mementoStatus int
	mementoBody   string
	fetched       []string
}

func (c *archiveClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	c.fetched = append(c.fetched, req.URL.String())
	if req.URL.String() == c.timemapURL {
		return &http.Response{StatusCode: 200, Header: c.timemapHeader, Body: io.NopCloser(bytes.NewBufferString(""))}, nil
	}
	return &http.Response{
		StatusCode: c.mementoStatus,
		Header:     http.Header{"Content-Type": {"text/html"}},
		Body:       io.NopCloser(bytes.NewBufferString(c.mementoBody)),
	}, nil
}

func TestArchiveFetchSkipsAlreadyArchivedMementoAndKeepsItsTimestamp(t *testing.T) {
	archivedTime, err := http.ParseTime("Thu, 01 Jan 2015 00:00:00 GMT")
	require.NoError(t, err)
	newTime, err := http.ParseTime("Fri, 02 Jan 2015 00:00:00 GMT")
	require.NoError(t, err)

	client := &archiveClient{
		timemapURL: "https://archive.example/timemap/https://example.com/page",
		timemapHeader: http.Header{"Link": []string{
			`<https://archive.example/replay/20150101000000/https://example.com/page>; rel="memento"; datetime="Thu, 01 Jan 2015 00:00:00 GMT"`,
			`<https://archive.example/replay/20150102000000/https://example.com/page>; rel="memento"; datetime="Fri, 02 Jan 2015 00:00:00 GMT"`,
		}},
		mementoStatus: 200,
		mementoBody:   "<html></html>",
	}

	backend := &store.MockBackend{}
	backend.On("ArchivedCrawlTimes", mock.Anything, "ex", "main", uint64(42)).
		Return([]time.Time{archivedTime}, nil)

	var saved crawlserv.Content
	backend.On("InsertContent", mock.Anything, "ex", "main", mock.AnythingOfType("crawlserv.Content")).
		Run(func(args mock.Arguments) {
			saved = args.Get(3).(crawlserv.Content)
		}).
		Return(uint64(1), nil)

	cfg := testConfig()
	cfg.Archives = []ArchiveSource{{Name: "example-archive", TimemapURLTmpl: "https://archive.example/timemap/%s"}}
	m := newTestModule(t, backend, client, cfg)

	target, err := url.Parse("https://example.com/page")
	require.NoError(t, err)

	m.archiveFetch(context.Background(), urllist.Candidate{ID: 42}, target)

	backend.AssertNumberOfCalls(t, "InsertContent", 1)
	require.True(t, saved.Archived)
	require.True(t, saved.CrawlTime.Equal(newTime), "expected CrawlTime %v, got %v", newTime, saved.CrawlTime)

	// Only the timemap and the one not-yet-archived memento were fetched.
	require.Len(t, client.fetched, 2)
}

func TestConfigValidateRejectsInfiniteCounter(t *testing.T) {
	cfg := Config{Counters: []Counter{{Name: "p", Start: 1, End: 10, Step: -1}}}
	require.Error(t, cfg.Validate())
}
