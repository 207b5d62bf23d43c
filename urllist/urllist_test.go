package urllist

import (
	"container/heap"
	"context"
	"testing"
	"time"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/store"
)

func testList(backend store.Backend) *List {
	return New(backend,
		crawlserv.Website{ID: 1, Namespace: "ex"},
		crawlserv.UrlList{ID: 1, WebsiteID: 1, Namespace: "news"})
}

func TestAddSkipsInsertWhenURLExists(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("ExistsURL", context.Background(), "ex", "news", "/a").Return(uint64(7), true, error(nil))

	l := testList(backend)
	id, err := l.Add(context.Background(), "/a", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 7 {
		t.Errorf("Add = %d, want 7 (the existing id)", id)
	}
	backend.AssertNotCalled(t, "AddURL")
}

func TestAddInsertsWhenURLIsNew(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("ExistsURL", context.Background(), "ex", "news", "/a").Return(uint64(0), false, error(nil))
	backend.On("AddURL", context.Background(), "ex", "news", "/a", false).Return(uint64(9), error(nil))

	l := testList(backend)
	id, err := l.Add(context.Background(), "/a", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 9 {
		t.Errorf("Add = %d, want 9", id)
	}
}

func TestNextForReturnsCandidate(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("NextForModule", context.Background(), "ex", "news", crawlserv.ModuleCrawler, uint64(5), false).
		Return(store.NextURLRow{ID: 6, URL: "/b"}, true, error(nil))

	l := testList(backend)
	c, found, err := l.NextFor(context.Background(), crawlserv.ModuleCrawler, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found || c.ID != 6 || c.URL != "/b" {
		t.Errorf("NextFor = %+v, found=%v", c, found)
	}
}

func TestDefaultLockDurationFallsBackTo300s(t *testing.T) {
	if got := DefaultLockDuration(0); got != 300*time.Second {
		t.Errorf("DefaultLockDuration(0) = %v, want 300s", got)
	}
	if got := DefaultLockDuration(45 * time.Second); got != 45*time.Second {
		t.Errorf("DefaultLockDuration(45s) = %v, want 45s", got)
	}
}

func TestByLastCrawledPrefersNilThenOldest(t *testing.T) {
	t1 := time.Now().Add(-time.Hour)
	t2 := time.Now().Add(-time.Minute)

	pq := byLastCrawled{
		{URLID: 3, LockTime: &t2},
		{URLID: 1, LockTime: nil},
		{URLID: 2, LockTime: &t1},
	}
	heap.Init(&pq)

	first := heap.Pop(&pq).(store.LastCrawledRow)
	if first.URLID != 1 {
		t.Errorf("expected the never-locked row (nil locktime) first, got url_id=%d", first.URLID)
	}
	second := heap.Pop(&pq).(store.LastCrawledRow)
	if second.URLID != 2 {
		t.Errorf("expected the oldest locktime second, got url_id=%d", second.URLID)
	}
}

func TestMarkSuccessDelegatesToBackend(t *testing.T) {
	backend := &store.MockBackend{}
	var prev *time.Time
	backend.On("MarkSuccess", context.Background(), "ex", "news", crawlserv.ModuleCrawler, uint64(1), prev).
		Return(true, error(nil))

	l := testList(backend)
	held, err := l.MarkSuccess(context.Background(), crawlserv.ModuleCrawler, 1, prev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !held {
		t.Error("expected held=true")
	}
}
