// Package network implements the HTTP client contract of spec.md §6:
// timeouts, keep-alive/transport configuration, DNS caching and per-host
// rate limiting. Grounded on fetcher.go's FetchManager.Start, which builds
// exactly this kind of *http.Transport and wraps its Dial with the kept
// dnscache package; generalized here from one process-wide transport to a
// per-Client transport a crawler thread owns, and rate-limiting swapped in
// for the Non-goal of robots.txt compliance.
package network

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/crawlserv/crawlserv/dnscache"
	"github.com/crawlserv/crawlserv/errs"
)

// Client is the contract the crawler pipeline (C4) fetches through. A fake
// implementation can be substituted in tests without touching a network.
type Client interface {
	// Do performs req, honoring this Client's per-host rate limit before
	// sending. ctx governs both the wait for the rate limiter and the
	// request itself.
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Config mirrors config.go's ServerConfig.Network sub-struct.
type Config struct {
	UserAgent           string
	Timeout             time.Duration
	KeepAlive           time.Duration
	TLSHandshakeTimeout time.Duration
	MaxDNSCacheEntries  int
	ProxyURL            string // empty uses http.ProxyFromEnvironment

	// SleepHTTP is the minimum spacing between requests to the same host;
	// 0 disables per-host rate limiting.
	SleepHTTP time.Duration

	// DNSOverHTTPS and TLSSRP are named per spec.md §6's external-interface
	// list (Open Question, see DESIGN.md). No configuration decoding sets
	// them and New does not read them.
	DNSOverHTTPS bool
	TLSSRP       bool
}

// defaultClient is the production Client: one *http.Transport shared across
// hosts, one rate.Limiter created lazily per host.
type defaultClient struct {
	http       *http.Client
	userAgent  string
	sleepHTTP  time.Duration
	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// New builds the default Client, wiring the DNS-caching dialer into the
// transport exactly as fetcher.go does for FetchManager.Transport.
func New(cfg Config) (Client, error) {
	const op = "network.New"

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	tlsTimeout := cfg.TLSHandshakeTimeout
	if tlsTimeout <= 0 {
		tlsTimeout = 10 * time.Second
	}
	maxDNSEntries := cfg.MaxDNSCacheEntries
	if maxDNSEntries <= 0 {
		maxDNSEntries = 1024
	}

	proxy := http.ProxyFromEnvironment
	if cfg.ProxyURL != "" {
		fixed, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidInput, op, err)
		}
		proxy = http.ProxyURL(fixed)
	}

	transport := &http.Transport{
		Proxy: proxy,
		Dial: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: cfg.KeepAlive,
		}).Dial,
		TLSHandshakeTimeout: tlsTimeout,
	}

	dial, err := dnscache.Dial(transport.Dial, maxDNSEntries)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, op, err)
	}
	transport.Dial = dial

	return &defaultClient{
		http: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		userAgent: cfg.UserAgent,
		sleepHTTP: cfg.SleepHTTP,
		limiters:  make(map[string]*rate.Limiter),
	}, nil
}

func (c *defaultClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	const op = "network.Client.Do"

	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	if c.sleepHTTP > 0 {
		limiter := c.limiterFor(hostOf(req))
		if err := limiter.Wait(ctx); err != nil {
			return nil, errs.Wrap(errs.Transient, op, err)
		}
	}

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		return nil, errs.Wrap(errs.Transient, op, err)
	}
	return resp, nil
}

func (c *defaultClient) limiterFor(host string) *rate.Limiter {
	c.limitersMu.Lock()
	defer c.limitersMu.Unlock()

	if l, ok := c.limiters[host]; ok {
		return l
	}
	// One token every SleepHTTP, burst of 1: at most one request per host
	// per interval, matching spec.md §6's "per-host rate-limiting only"
	// Non-goal substitution for robots.txt compliance.
	l := rate.NewLimiter(rate.Every(c.sleepHTTP), 1)
	c.limiters[host] = l
	return l
}

func hostOf(req *http.Request) string {
	return strings.ToLower(req.URL.Hostname())
}

// DiscardBody drains and closes resp.Body, the idiom fetcher.go's crawl loop
// uses (via ioutil.ReadAll into a reusable buffer) before reusing a
// keep-alive connection.
func DiscardBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
