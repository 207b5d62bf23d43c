package crawler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tomnomnom/linkheader"

	"github.com/crawlserv/crawlserv/errs"
	"github.com/crawlserv/crawlserv/network"
)

// memento is one Memento timemap entry: a replay URL paired with the
// archive's own capture timestamp, which spec.md §3 says an archived
// content row must carry in CrawlTime rather than the time it was
// replayed.
type memento struct {
	URL       string
	Timestamp time.Time // zero if the timemap didn't advertise a datetime
}

// fetchTimemap requests a Memento timemap and returns the mementos it
// advertises via rel="memento" Link header entries, each paired with the
// capture datetime carried in that entry's "datetime" link-param. Grounded
// on original_source's archive-replay notes (spec.md §4.4 step 13), using
// tomnomnom/linkheader for RFC 5988 Link-header parsing (and its Params
// map for "datetime") rather than a hand-rolled split/trim parser.
func fetchTimemap(ctx context.Context, client network.Client, timemapURL string) ([]memento, error) {
	const op = "crawler.fetchTimemap"

	req, err := http.NewRequest(http.MethodGet, timemapURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidInput, op, err)
	}

	resp, err := client.Do(ctx, req)
	if err != nil {
		return nil, errs.Wrap(errs.Transient, op, err)
	}
	defer network.DiscardBody(resp)

	// linkheader splits a header value on every comma, including the one
	// inside a quoted HTTP date, so commas inside quotes are masked while
	// the value is split into links and restored in the datetime param.
	values := resp.Header.Values("Link")
	masked := make([]string, len(values))
	for i, v := range values {
		parts := strings.Split(v, `"`)
		for j := 1; j < len(parts); j += 2 {
			parts[j] = strings.ReplaceAll(parts[j], ",", "\x00")
		}
		masked[i] = strings.Join(parts, `"`)
	}

	var out []memento
	for _, link := range linkheader.ParseMultiple(masked) {
		if link.Rel != "memento" {
			continue
		}
		m := memento{URL: link.URL}
		if raw, ok := link.Params["datetime"]; ok {
			if ts, err := http.ParseTime(strings.ReplaceAll(raw, "\x00", ",")); err == nil {
				m.Timestamp = ts
			}
		}
		out = append(out, m)
	}
	return out, nil
}
