// Package crawler implements the crawler module (C4): the 13-step
// per-URL state machine of spec.md §4.4, run as a thread.Module. Grounded
// on fetcher.go (the fetch/retry loop) and parse.go (link extraction),
// with custom-URL counter expansion supplementing spec.md from
// original_source/crawlserv/src/Module/Crawler/Config.cpp.
package crawler

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/crawlserv/crawlserv/errs"
	"github.com/crawlserv/crawlserv/query"
)

// Counter is one `$(name)$` custom-URL counter template.
type Counter struct {
	Name  string
	Start int64
	End   int64
	Step  int64
}

// valid reports whether the counter loop terminates: the step's sign must
// be consistent with the start→end direction (or start==end). Mirrors
// original_source's Config.cpp infinite-counter rejection.
func (c Counter) valid() bool {
	if c.Start == c.End {
		return true
	}
	if c.Start < c.End {
		return c.Step > 0
	}
	return c.Step < 0
}

// values enumerates the counter's sequence, inclusive of End.
func (c Counter) values() []int64 {
	var out []int64
	if c.Start == c.End {
		return []int64{c.Start}
	}
	if c.Start < c.End {
		for v := c.Start; v <= c.End; v += c.Step {
			out = append(out, v)
		}
		return out
	}
	for v := c.Start; v >= c.End; v += c.Step {
		out = append(out, v)
	}
	return out
}

// FieldQuery is one named query.Evaluator bundled with the ResultKind to
// evaluate it with.
type FieldQuery struct {
	Eval query.Evaluator
	Kind query.ResultKind
}

// ArchiveSource is one Memento-protocol timemap endpoint to replay.
type ArchiveSource struct {
	Name           string
	TimemapURLTmpl string // "%s" substituted with the target URL
}

// RetryConfig is spec.md §4.4's retry policy.
type RetryConfig struct {
	HTTPCodes  map[int]bool // statuses that trigger a retry
	SleepError time.Duration
	Retries    int  // negative means retry indefinitely
	Archive    bool // retry a failed archive fetch
}

// Config is the crawler's per-thread configuration (spec.md §3
// Configuration JSON blob, decoded into this struct by the caller).
type Config struct {
	CrawlerLock time.Duration
	SleepHTTP   time.Duration

	Retry RetryConfig

	SuccessCodes map[int]bool // "200_aliases"; defaults to {200}

	ContentTypeWhitelist []FieldQuery
	ContentTypeBlacklist []FieldQuery

	CanonicalQuery *FieldQuery // optional; ResultSingle expected

	ContentFilterWhitelist []FieldQuery
	ContentFilterBlacklist []FieldQuery

	LinkQueries   []FieldQuery // ResultMulti expected; produce link candidates
	LinkBlacklist []FieldQuery
	LinkWhitelist []FieldQuery

	CustomURLs []string
	Counters   []Counter

	Recrawl       bool
	RecrawlAlways []string

	Archives []ArchiveSource
}

// Validate checks configuration invariants that must hold before a thread
// starts, per spec.md §4.4: infinite counters are rejected at
// configuration-load time.
func (c *Config) Validate() error {
	const op = "crawler.Config.Validate"

	for _, counter := range c.Counters {
		if !counter.valid() {
			return errs.New(errs.InvalidInput, op,
				fmt.Sprintf("counter %q would be infinite (start=%d end=%d step=%d)",
					counter.Name, counter.Start, counter.End, counter.Step))
		}
	}

	if len(c.SuccessCodes) == 0 {
		c.SuccessCodes = map[int]bool{200: true}
	}
	return nil
}

// ExpandCustomURLs applies every counter to every custom URL template,
// substituting "$(name)$" occurrences. global=true shares one set of
// counter values across all CustomURLs (one combination advances all
// URLs together); global=false expands each URL independently against
// the full cartesian product of counter values, mirroring
// original_source's customCountersGlobal switch.
func ExpandCustomURLs(urls []string, counters []Counter, global bool) []string {
	if len(counters) == 0 {
		return append([]string(nil), urls...)
	}

	if global {
		combos := cartesian(counters)
		out := make([]string, 0, len(urls)*len(combos))
		for _, combo := range combos {
			for _, u := range urls {
				out = append(out, substitute(u, counters, combo))
			}
		}
		return out
	}

	var out []string
	for _, u := range urls {
		combos := cartesian(counters)
		for _, combo := range combos {
			out = append(out, substitute(u, counters, combo))
		}
	}
	return out
}

func cartesian(counters []Counter) [][]int64 {
	combos := [][]int64{{}}
	for _, c := range counters {
		var next [][]int64
		for _, prefix := range combos {
			for _, v := range c.values() {
				row := append(append([]int64(nil), prefix...), v)
				next = append(next, row)
			}
		}
		combos = next
	}
	return combos
}

func substitute(tmpl string, counters []Counter, values []int64) string {
	out := tmpl
	for i, c := range counters {
		placeholder := "$(" + c.Name + ")$"
		out = strings.ReplaceAll(out, placeholder, fmt.Sprintf("%d", values[i]))
	}
	return out
}

// resolveURL resolves ref against base, returning an absolute *url.URL.
func resolveURL(base *url.URL, ref string) (*url.URL, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(parsed), nil
}
