package control

import (
	"net"
	"net/http"
	"sync"

	"github.com/crawlserv/crawlserv/logging"
)

// AccessList is the mutable IP allow-list gating every control-surface
// route, grounded on spec.md §4.7's "allow-list of client IPs" and the
// kill/allow/disallow command category. It starts from config.go's
// Control.AllowedIPs and is mutated live by the kill/allow/disallow
// commands without requiring a config reload.
type AccessList struct {
	mu      sync.RWMutex
	allowed map[string]bool
}

// NewAccessList seeds the list from a static configured slice.
func NewAccessList(ips []string) *AccessList {
	a := &AccessList{allowed: map[string]bool{}}
	for _, ip := range ips {
		a.allowed[ip] = true
	}
	return a
}

// Allow admits ip, idempotently.
func (a *AccessList) Allow(ip string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.allowed[ip] = true
}

// Disallow revokes ip's admission, idempotently.
func (a *AccessList) Disallow(ip string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.allowed, ip)
}

// Kill is Disallow plus a warn-level log line: the command an operator
// issues against a client actively misbehaving, as opposed to routine
// allow-list maintenance. The resulting access state is identical to
// Disallow — only the operational intent differs.
func (a *AccessList) Kill(ip string) {
	logging.Warn("control: killing access for %v", ip)
	a.Disallow(ip)
}

// Allowed reports whether ip currently has access.
func (a *AccessList) Allowed(ip string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.allowed[ip]
}

// Snapshot returns every currently-allowed IP, for the CRUD-style "read"
// side of allow/disallow.
func (a *AccessList) Snapshot() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.allowed))
	for ip := range a.allowed {
		out = append(out, ip)
	}
	return out
}

// ipAllowMiddleware rejects any request whose remote address is not on the
// access list, before it reaches routing. Grounded on spec.md §4.7/§6:
// "allow-list of client IPs" is the sole front-end authentication this
// control surface performs (spec.md's Non-goals explicitly exclude
// anything beyond that).
func ipAllowMiddleware(access *AccessList, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !access.Allowed(host) {
			logging.Warn("control: rejected request from disallowed address %v", host)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware sets Access-Control-Allow-Origin per config.go's
// Control.AllowOrigin, configurable per spec.md §4.7.
func corsMiddleware(allowOrigin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		}
		next.ServeHTTP(w, r)
	})
}
