package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/errs"
	"github.com/crawlserv/crawlserv/logging"
	"github.com/crawlserv/crawlserv/network"
	"github.com/crawlserv/crawlserv/query"
	"github.com/crawlserv/crawlserv/urllist"
	"github.com/crawlserv/crawlserv/urlnorm"
)

// Module implements thread.Module for the crawler (C4): one OnTick call
// processes exactly one URL through the 13-step state machine of
// spec.md §4.4. Grounded on fetcher.go's crawlNewHost/fetchUrl split,
// generalized from "one host claimed per fetcher goroutine" to "one URL
// per tick, selected fresh from C2 every time."
type Module struct {
	client  network.Client
	list    *urllist.List
	website crawlserv.Website
	cfg     Config

	baseURL *url.URL

	high uint64 // highest successfully processed URL id; progress only, see DESIGN.md

	inited bool
}

// New builds a crawler Module. baseURL is the website's own URL (scheme +
// host), used to resolve relative links and to build StoredForm/ToAbsolute
// round trips via urlnorm.
func New(client network.Client, list *urllist.List, website crawlserv.Website, cfg Config, baseURL *url.URL) (*Module, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Module{client: client, list: list, website: website, cfg: cfg, baseURL: baseURL}, nil
}

// Last reports the high-water mark for the supervisor's status flush; see
// thread.lastReporter.
func (m *Module) Last() uint64 { return atomic.LoadUint64(&m.high) }

// OnInit seeds the crawl with customUrls/counter-expanded seeds on a fresh
// (non-resumed) start; on resume the URL list already holds everything a
// prior run discovered, so nothing further is needed.
func (m *Module) OnInit(ctx context.Context, resumed bool) error {
	if resumed {
		m.inited = true
		return nil
	}
	seeds := ExpandCustomURLs(m.cfg.CustomURLs, m.cfg.Counters, true)
	for _, seed := range seeds {
		if _, err := m.list.Add(ctx, seed, true); err != nil {
			return err
		}
	}
	for _, always := range m.cfg.RecrawlAlways {
		if _, err := m.list.Add(ctx, always, true); err != nil {
			return err
		}
	}
	m.inited = true
	return nil
}

func (m *Module) OnPause() bool  { return m.inited }
func (m *Module) OnUnpause()     {}
func (m *Module) OnClear() error { return nil }

// OnTick runs the full select→...→mark_success pipeline for the next
// eligible URL. A nil return with no candidate found is not an error: the
// supervisor simply ticks again (spec.md doesn't distinguish "idle" from
// "did work" at the Module contract level).
func (m *Module) OnTick(ctx context.Context) error {
	recrawl := m.cfg.Recrawl

	// cursor is always 0: store.NextForModule's success/lockability
	// predicates already exclude completed URLs regardless of scan start,
	// so there is no correctness reason to persist a low-water mark here
	// (see DESIGN.md). This also means a URL that exhausts its retries
	// and is left locked will naturally stop appearing until its lock
	// expires, then be retried, exactly as spec.md §4.4 describes.
	candidate, found, err := m.list.NextFor(ctx, crawlserv.ModuleCrawler, 0)
	if recrawl && !found {
		candidate, found, err = m.list.NextForRecrawl(ctx, crawlserv.ModuleCrawler, 0, 8)
	}
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	return m.process(ctx, candidate)
}

func (m *Module) process(ctx context.Context, candidate urllist.Candidate) error {
	lockDuration := urllist.DefaultLockDuration(m.cfg.CrawlerLock)

	// step 2: lock
	locktime, err := m.list.Lock(ctx, crawlserv.ModuleCrawler, candidate.ID, lockDuration)
	if err != nil {
		return err
	}
	prev := locktime

	target, err := m.resolveTarget(candidate.URL)
	if err != nil {
		logging.Warn("crawler: could not resolve url %q: %v", candidate.URL, err)
		return nil
	}

	resp, body, ok, err := m.fetchWithRetry(ctx, target)
	if err != nil {
		return err
	}
	if !ok {
		// retries exhausted; leave the lock in place so it naturally
		// expires and the URL is retried later.
		return nil
	}
	defer network.DiscardBody(resp)

	if !m.checkContentType(resp) {
		return nil
	}

	if !checkConsistency(resp, body) {
		logging.Warn("crawler: content-length mismatch for %q, skipping", target.String())
		return nil
	}

	if !m.checkCanonical(body, candidate.URL) {
		return nil
	}

	if !m.checkContentFilters(body) {
		return nil
	}

	if _, err := m.list.InsertContent(ctx, crawlserv.Content{
		URLID:     candidate.ID,
		CrawlTime: time.Now(),
		Archived:  false,
		Response:  uint16(resp.StatusCode),
		Type:      resp.Header.Get("Content-Type"),
		Content:   body,
	}); err != nil {
		return err
	}

	links := m.extractLinks(body, target)
	for _, link := range links {
		if _, err := m.list.Add(ctx, link, false); err != nil {
			logging.Warn("crawler: failed to store discovered link %q: %v", link, err)
		}
	}

	held, err := m.list.MarkSuccess(ctx, crawlserv.ModuleCrawler, candidate.ID, &prev)
	if err != nil {
		return err
	}
	if held {
		m.bumpHigh(candidate.ID)
	}

	if len(m.cfg.Archives) > 0 {
		m.archiveFetch(ctx, candidate, target)
	}

	return nil
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

func (m *Module) resolveTarget(stored string) (*url.URL, error) {
	protocol := "https"
	if m.baseURL != nil {
		protocol = m.baseURL.Scheme
	}
	u, err := urlnorm.ToAbsolute(stored, m.website.Domain, protocol)
	if err != nil {
		return nil, err
	}
	return u.URL, nil
}

// fetchWithRetry implements steps 3-4: perform the GET, retrying per
// cfg.Retry on a retriable HTTP status, sleeping cfg.Retry.SleepError
// between attempts. ok=false means retries were exhausted without success.
func (m *Module) fetchWithRetry(ctx context.Context, target *url.URL) (*http.Response, []byte, bool, error) {
	attempt := 0
	for {
		if m.cfg.SleepHTTP > 0 {
			select {
			case <-ctx.Done():
				return nil, nil, false, errs.Wrap(errs.Transient, "crawler.fetch", ctx.Err())
			case <-time.After(m.cfg.SleepHTTP):
			}
		}

		req, err := http.NewRequest(http.MethodGet, target.String(), nil)
		if err != nil {
			return nil, nil, false, errs.Wrap(errs.InvalidInput, "crawler.fetch", err)
		}

		resp, err := m.client.Do(ctx, req)
		if err != nil {
			if !m.shouldRetry(attempt) {
				return nil, nil, false, nil
			}
			attempt++
			if waitErr := m.sleepError(ctx); waitErr != nil {
				return nil, nil, false, waitErr
			}
			continue
		}

		if m.cfg.SuccessCodes[resp.StatusCode] {
			body, err := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if err != nil {
				return nil, nil, false, errs.Wrap(errs.Transient, "crawler.fetch", err)
			}
			return resp, body, true, nil
		}

		network.DiscardBody(resp)

		if !m.cfg.Retry.HTTPCodes[resp.StatusCode] || !m.shouldRetry(attempt) {
			return nil, nil, false, nil
		}
		attempt++
		if waitErr := m.sleepError(ctx); waitErr != nil {
			return nil, nil, false, waitErr
		}
	}
}

func (m *Module) shouldRetry(attempt int) bool {
	if m.cfg.Retry.Retries < 0 {
		return true
	}
	return attempt < m.cfg.Retry.Retries
}

func (m *Module) sleepError(ctx context.Context) error {
	if m.cfg.Retry.SleepError <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return errs.Wrap(errs.Transient, "crawler.sleepError", ctx.Err())
	case <-time.After(m.cfg.Retry.SleepError):
		return nil
	}
}

// checkContentType implements step 5.
func (m *Module) checkContentType(resp *http.Response) bool {
	header := resp.Header.Get("Content-Type")
	if len(m.cfg.ContentTypeBlacklist) > 0 && anyMatch(context.Background(), m.cfg.ContentTypeBlacklist, header) {
		return false
	}
	if len(m.cfg.ContentTypeWhitelist) == 0 {
		return true
	}
	return anyMatch(context.Background(), m.cfg.ContentTypeWhitelist, header)
}

// checkCanonical implements step 7: skip if the canonical URL differs.
func (m *Module) checkCanonical(body []byte, currentStored string) bool {
	if m.cfg.CanonicalQuery == nil {
		return true
	}
	doc, err := query.ParseHTML(body)
	if err != nil {
		return true
	}
	res, err := m.cfg.CanonicalQuery.Eval.Eval(context.Background(), doc, query.ResultSingle)
	if err != nil || !res.Matched || res.Single == "" {
		return true
	}
	canonicalURL, err := urlnorm.Parse(res.Single)
	if err != nil {
		return true
	}
	stored, err := urlnorm.StoredForm(canonicalURL, m.website.Domain)
	if err != nil {
		return true
	}
	return stored == currentStored
}

// checkContentFilters implements step 8.
func (m *Module) checkContentFilters(body []byte) bool {
	doc, err := query.ParseHTML(body)
	if err != nil {
		return true
	}
	if len(m.cfg.ContentFilterBlacklist) > 0 && anyMatchDoc(m.cfg.ContentFilterBlacklist, doc) {
		return false
	}
	if len(m.cfg.ContentFilterWhitelist) == 0 {
		return true
	}
	return anyMatchDoc(m.cfg.ContentFilterWhitelist, doc)
}

// extractLinks implements steps 10-11: run the configured link queries,
// resolve each candidate against base, then apply domain/blacklist/
// whitelist filters, producing stored-form URLs ready for urllist.Add.
func (m *Module) extractLinks(body []byte, base *url.URL) []string {
	doc, err := query.ParseHTML(body)
	if err != nil {
		return nil
	}

	var candidates []string
	for _, q := range m.cfg.LinkQueries {
		res, err := q.Eval.Eval(context.Background(), doc, query.ResultMulti)
		if err != nil {
			continue
		}
		candidates = append(candidates, res.Multi...)
	}

	var out []string
	for _, raw := range candidates {
		resolved, err := resolveURL(base, raw)
		if err != nil {
			continue
		}
		normalized := &urlnorm.URL{URL: resolved}
		normalized.Normalize()

		if len(m.cfg.LinkBlacklist) > 0 && anyMatch(context.Background(), m.cfg.LinkBlacklist, normalized.String()) {
			continue
		}
		if len(m.cfg.LinkWhitelist) > 0 && !anyMatch(context.Background(), m.cfg.LinkWhitelist, normalized.String()) {
			continue
		}

		stored, err := urlnorm.StoredForm(normalized, m.website.Domain)
		if err != nil {
			continue
		}
		out = append(out, stored)
	}
	return out
}

func anyMatch(ctx context.Context, queries []FieldQuery, text string) bool {
	for _, q := range queries {
		res, err := q.Eval.Eval(ctx, text, q.Kind)
		if err == nil && res.Matched {
			return true
		}
	}
	return false
}

func anyMatchDoc(queries []FieldQuery, doc interface{}) bool {
	for _, q := range queries {
		res, err := q.Eval.Eval(context.Background(), doc, q.Kind)
		if err == nil && res.Matched {
			return true
		}
	}
	return false
}

// archiveFetch implements step 13: query each configured Memento timemap
// and fetch only the mementos not yet archived in the content table for
// this URL (a memento is identified by its capture timestamp, which is
// also what gets stored as the row's CrawlTime), saving each with
// Archived=true. When cfg.Retry.Archive is set, a memento whose fetch or
// save fails is retried per cfg.Retry.Retries, sleeping cfg.Retry.SleepError
// between attempts. Other failures (reading the archived times, a timemap
// request) are logged and that step is skipped for this tick rather than
// surfaced (archival is best-effort relative to the live crawl).
func (m *Module) archiveFetch(ctx context.Context, candidate urllist.Candidate, target *url.URL) {
	if len(m.cfg.Archives) == 0 {
		return
	}

	existing, err := m.list.ArchivedTimes(ctx, candidate.ID)
	if err != nil {
		logging.Warn("crawler: failed to read archived content times for url %d before archiving: %v", candidate.ID, err)
		return
	}
	archived := make(map[int64]bool, len(existing))
	for _, t := range existing {
		archived[t.Unix()] = true
	}

	for _, source := range m.cfg.Archives {
		timemapURL := fmt.Sprintf(source.TimemapURLTmpl, target.String())
		mementos, err := fetchTimemap(ctx, m.client, timemapURL)
		if err != nil {
			logging.Warn("crawler: archive %q timemap fetch failed for %q: %v", source.Name, target.String(), err)
			continue
		}
		for _, mem := range mementos {
			if mem.Timestamp.IsZero() {
				logging.Warn("crawler: archive %q: memento %q has no parseable datetime, skipping", source.Name, mem.URL)
				continue
			}
			if archived[mem.Timestamp.Unix()] {
				continue
			}
			for attempt := 0; ; attempt++ {
				if m.archiveOne(ctx, candidate, mem) {
					archived[mem.Timestamp.Unix()] = true
					break
				}
				if !m.cfg.Retry.Archive || !m.shouldRetry(attempt) || ctx.Err() != nil || m.sleepError(ctx) != nil {
					break
				}
			}
		}
	}
}

// archiveOne fetches and saves a single memento not yet present in the
// content table, storing its archive capture timestamp as CrawlTime
// (spec.md §3). Reports whether the row was saved, so the caller can mark
// it as archived for the rest of this tick without a second
// ArchivedTimes round-trip.
func (m *Module) archiveOne(ctx context.Context, candidate urllist.Candidate, mem memento) bool {
	req, err := http.NewRequest(http.MethodGet, mem.URL, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(ctx, req)
	if err != nil {
		return false
	}
	defer network.DiscardBody(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false
	}

	_, err = m.list.InsertContent(ctx, crawlserv.Content{
		URLID:     candidate.ID,
		CrawlTime: mem.Timestamp,
		Archived:  true,
		Response:  uint16(resp.StatusCode),
		Type:      resp.Header.Get("Content-Type"),
		Content:   body,
	})
	if err != nil {
		logging.Warn("crawler: failed to save archived content for url %d: %v", candidate.ID, err)
		return false
	}
	return true
}

func parseContentLength(resp *http.Response) (int64, bool) {
	raw := resp.Header.Get("Content-Length")
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// checkConsistency implements step 6: a best-effort comparison of the
// advertised Content-Length against the body actually read.
func checkConsistency(resp *http.Response, body []byte) bool {
	if want, ok := parseContentLength(resp); ok {
		return int64(len(body)) == want
	}
	return true
}
