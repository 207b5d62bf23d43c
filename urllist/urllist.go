// Package urllist implements the URL-list engine (C2): per-list
// existence checks, insertion, the module-cursor selector, and the
// compare-and-set lock primitives every module (crawler, parser, extractor,
// analyzer) shares. It is a thin, typed facade over store.Backend's raw SQL
// operations — grounded on the teacher's PriorityURL heap
// (cassandra/priorityurl.go), generalized from "oldest LastCrawled first"
// walker semantics to spec.md §4.2's recrawl ordering.
package urllist

import (
	"container/heap"
	"context"
	"time"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/datadir"
	"github.com/crawlserv/crawlserv/errs"
	"github.com/crawlserv/crawlserv/store"
)

// List is a handle bound to one {website, list}, the unit every operation
// in spec.md §4.2 is scoped to.
type List struct {
	backend store.Backend
	website crawlserv.Website
	list    crawlserv.UrlList
}

// New returns a List handle.
func New(backend store.Backend, website crawlserv.Website, list crawlserv.UrlList) *List {
	return &List{backend: backend, website: website, list: list}
}

// Exists implements spec.md §4.2 exists(url).
func (l *List) Exists(ctx context.Context, url string) (id uint64, found bool, err error) {
	return l.backend.ExistsURL(ctx, l.website.Namespace, l.list.Namespace, url)
}

// Add implements spec.md §4.2 add(url, manual). If the URL already exists
// its existing id is returned instead of inserting a duplicate semantic
// entry — the hash index alone is non-unique, so existence must be
// reverified by Exists first (spec.md §8 invariant: "an insert that
// collides with the hash index must still succeed semantically if url
// differs").
func (l *List) Add(ctx context.Context, url string, manual bool) (uint64, error) {
	if id, found, err := l.Exists(ctx, url); err != nil {
		return 0, err
	} else if found {
		return id, nil
	}
	return l.backend.AddURL(ctx, l.website.Namespace, l.list.Namespace, url, manual)
}

// Candidate is the next URL available for a module to process.
type Candidate struct {
	ID  uint64
	URL string
}

// NextFor implements spec.md §4.2 next_for(module, cursor): the lowest id
// strictly greater than cursor whose lock is currently lockable and not
// yet successful.
func (l *List) NextFor(ctx context.Context, module crawlserv.Module, cursor uint64) (Candidate, bool, error) {
	return l.nextFor(ctx, module, cursor, false)
}

// NextForRecrawl is NextFor with recrawl=true: the success flag is
// ignored, and when more than one candidate is lockable, the
// least-recently-crawled one is preferred (the teacher's PriorityURL
// ordering, adapted to lock rows instead of walker.URL.LastCrawled).
func (l *List) NextForRecrawl(ctx context.Context, module crawlserv.Module, cursor uint64, lookahead int) (Candidate, bool, error) {
	if lookahead <= 1 {
		return l.nextFor(ctx, module, cursor, true)
	}

	rows, err := l.backend.RecrawlCandidates(ctx, l.website.Namespace, l.list.Namespace, module, cursor, lookahead)
	if err != nil {
		return Candidate{}, false, err
	}
	if len(rows) == 0 {
		return Candidate{}, false, nil
	}

	pq := make(byLastCrawled, len(rows))
	for i, r := range rows {
		pq[i] = r
	}
	heap.Init(&pq)
	best := heap.Pop(&pq).(store.LastCrawledRow)
	return Candidate{ID: best.URLID, URL: best.URL}, true, nil
}

func (l *List) nextFor(ctx context.Context, module crawlserv.Module, cursor uint64, recrawl bool) (Candidate, bool, error) {
	row, found, err := l.backend.NextForModule(ctx, l.website.Namespace, l.list.Namespace, module, cursor, recrawl)
	if err != nil || !found {
		return Candidate{}, found, err
	}
	return Candidate{ID: row.ID, URL: row.URL}, true, nil
}

// Lock implements spec.md §4.2 lock(url, module, duration).
func (l *List) Lock(ctx context.Context, module crawlserv.Module, urlID uint64, duration time.Duration) (time.Time, error) {
	return l.backend.LockURL(ctx, l.website.Namespace, l.list.Namespace, module, urlID, duration)
}

// TryRenew implements spec.md §4.2 try_renew(url, module, previous_locktime, duration).
func (l *List) TryRenew(ctx context.Context, module crawlserv.Module, urlID uint64, previous *time.Time, duration time.Duration) (time.Time, bool, error) {
	return l.backend.TryRenewLock(ctx, l.website.Namespace, l.list.Namespace, module, urlID, previous, duration)
}

// UnlockIfHeld implements spec.md §4.2 unlock_if_held(url, module, previous_locktime).
func (l *List) UnlockIfHeld(ctx context.Context, module crawlserv.Module, urlID uint64, previous *time.Time) (bool, error) {
	return l.backend.UnlockIfHeld(ctx, l.website.Namespace, l.list.Namespace, module, urlID, previous)
}

// MarkSuccess implements spec.md §4.2 mark_success(url, module, previous_locktime).
func (l *List) MarkSuccess(ctx context.Context, module crawlserv.Module, urlID uint64, previous *time.Time) (bool, error) {
	return l.backend.MarkSuccess(ctx, l.website.Namespace, l.list.Namespace, module, urlID, previous)
}

// InsertContent implements spec.md §4.4 step 9 (save): append-only content
// row insertion. When the website has a configured DataDirectory (model.go)
// and the content exceeds datadir.DefaultInlineThreshold, the body is
// offloaded to disk (package datadir, spec.md §4.9) and the row's blob
// column keeps a path marker instead of the bytes themselves.
func (l *List) InsertContent(ctx context.Context, c crawlserv.Content) (uint64, error) {
	const op = "urllist.InsertContent"
	if l.website.DataDirectory != "" && datadir.ShouldOffload(c.Content, datadir.DefaultInlineThreshold) {
		marker, err := datadir.Save(l.website.DataDirectory, l.website.Namespace, l.list.Namespace, c.URLID, c.CrawlTime, c.Content)
		if err != nil {
			return 0, errs.Wrap(errs.Internal, op, err)
		}
		c.Content = []byte(marker)
	}
	return l.backend.InsertContent(ctx, l.website.Namespace, l.list.Namespace, c)
}

// resolveContent transparently reads back a datadir-offloaded row's bytes,
// leaving inline rows untouched.
func (l *List) resolveContent(c crawlserv.Content) (crawlserv.Content, error) {
	rel, ok := datadir.Marker(c.Content)
	if !ok {
		return c, nil
	}
	body, err := datadir.Load(l.website.DataDirectory, rel)
	if err != nil {
		return crawlserv.Content{}, errs.Wrap(errs.Internal, "urllist.resolveContent", err)
	}
	c.Content = body
	return c, nil
}

// LatestContent implements spec.md §4.5 step 1 (select_content, newest-only
// case): the most recent non-archived content row for a URL.
func (l *List) LatestContent(ctx context.Context, urlID uint64) (crawlserv.Content, bool, error) {
	c, found, err := l.backend.LatestContent(ctx, l.website.Namespace, l.list.Namespace, urlID)
	if err != nil || !found {
		return c, found, err
	}
	c, err = l.resolveContent(c)
	return c, true, err
}

// AllContent implements spec.md §4.5 step 1 (select_content, newest.only=
// false case): every non-archived content row for a URL, oldest first.
func (l *List) AllContent(ctx context.Context, urlID uint64) ([]crawlserv.Content, error) {
	rows, err := l.backend.AllContent(ctx, l.website.Namespace, l.list.Namespace, urlID)
	if err != nil {
		return nil, err
	}
	for i, c := range rows {
		resolved, err := l.resolveContent(c)
		if err != nil {
			return nil, err
		}
		rows[i] = resolved
	}
	return rows, nil
}

// ArchivedTimes returns the capture timestamp of every content row already
// archived for a URL, letting the crawler's archive step (spec.md §4.4
// step 13) skip mementos it has already saved.
func (l *List) ArchivedTimes(ctx context.Context, urlID uint64) ([]time.Time, error) {
	return l.backend.ArchivedCrawlTimes(ctx, l.website.Namespace, l.list.Namespace, urlID)
}

// TargetTable implements spec.md §4.1 add_or_get_target_table, scoped to
// this list: it provisions (or reconciles the columns of) a parser/
// extractor/analyzer output table and returns its generated name.
func (l *List) TargetTable(ctx context.Context, tableType, name string, columns []store.ColumnDef, compressed bool) (string, error) {
	return l.backend.AddOrGetTargetTable(ctx, l.website.Namespace, l.list.Namespace, tableType, name, columns, compressed)
}

// UpsertTargetRow implements spec.md §4.5 op 5 (write_row): insert or
// replace the row for urlID in table, keyed by url_id.
func (l *List) UpsertTargetRow(ctx context.Context, table string, urlID uint64, columns map[string]interface{}) error {
	return l.backend.UpsertTargetRow(ctx, table, urlID, columns)
}

// DefaultLockDuration resolves the per-module lock duration, defaulting to
// 300s as spec.md §4.2's algorithmic notes recommend when configuration
// supplies no override.
func DefaultLockDuration(configured time.Duration) time.Duration {
	if configured <= 0 {
		return 300 * time.Second
	}
	return configured
}
