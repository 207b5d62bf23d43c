// Package urlnorm implements the URL contract shared by the crawler, parser
// and control surface: parsing, resolving relative references against a
// base, and producing the canonical form a URL row is stored under (a
// "sub-URL" for domain-scoped lists, an absolute-without-protocol string for
// cross-domain ones). It generalizes the teacher's URL type away from
// walker's TLD+1/subdomain grouping concerns, which crawlserv has no use
// for, while keeping its purell-based Normalize.
package urlnorm

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/purell"
)

// URL wraps *net/url.URL with the normalization and canonical-form logic
// every dependent table's url column relies on.
type URL struct {
	*url.URL
}

// Parse parses ref, which may be absolute or relative, into a URL. Every
// string the rest of crawlserv treats as a URL should have passed through
// either Parse or Resolve so normalization stays consistent.
func Parse(ref string) (*URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("urlnorm: parse %q: %w", ref, err)
	}
	return &URL{URL: u}, nil
}

// Resolve parses ref and, if it is not already absolute, resolves it against
// base. This is the contract canonicalize_and_filter_links (spec.md
// operation 11) uses to turn a raw href into an absolute candidate.
func Resolve(base *URL, ref string) (*URL, error) {
	u, err := Parse(ref)
	if err != nil {
		return nil, err
	}
	if u.IsAbs() {
		return u, nil
	}
	if base == nil {
		return nil, fmt.Errorf("urlnorm: relative reference %q with no base", ref)
	}
	u.URL = base.URL.ResolveReference(u.URL)
	return u, nil
}

// Normalize rewrites u in place to its canonical form: standard purell
// safe-normalization plus fragment removal. Two URLs that differ only in
// normalization-insignificant ways (default port, scheme/host case, percent-
// encoding case, ...) normalize to the same value; a trailing slash is kept.
func (u *URL) Normalize() {
	purell.NormalizeURL(u.URL, purell.FlagsSafe|purell.FlagRemoveFragment)
}

// SameHost reports whether hosts a and b match case-insensitively,
// ignoring a leading "www." on either side, the equivalence spec.md's
// domain-scoped filtering and change_domain rely on.
func SameHost(a, b string) bool {
	return stripWWW(strings.ToLower(a)) == stripWWW(strings.ToLower(b))
}

func stripWWW(host string) string {
	return strings.TrimPrefix(host, "www.")
}

// StoredForm renders u the way a URL row stores it for a website with the
// given domain: a sub-URL (path+query, always starting with "/") when
// domain is non-empty and matches u's host, or an absolute-without-protocol
// string ("host/path?query") otherwise. domain == "" means a cross-domain
// list, which always gets the absolute-without-protocol form.
func StoredForm(u *URL, domain string) (string, error) {
	u = &URL{URL: cloneURL(u.URL)}
	u.Normalize()

	if domain != "" {
		if !u.IsAbs() {
			return subURLForm(u), nil
		}
		if !SameHost(u.Host, domain) {
			return "", fmt.Errorf("urlnorm: %v does not belong to domain %v", u, domain)
		}
		return subURLForm(u), nil
	}

	if !u.IsAbs() {
		return "", fmt.Errorf("urlnorm: %v is not absolute, required for a cross-domain list", u)
	}
	return absoluteWithoutProtocolForm(u), nil
}

func subURLForm(u *URL) string {
	path := u.RequestURI() // path + "?" + query, RFC 3986 form
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func absoluteWithoutProtocolForm(u *URL) string {
	return u.Host + u.RequestURI()
}

// ToAbsolute reconstructs a full URL from a stored form and the website it
// belongs to, the reverse of StoredForm. protocol defaults to "https" when
// the website does not record one explicitly (domain-scoped websites in
// this platform don't store a protocol; crawler.Config supplies one).
func ToAbsolute(stored, domain, protocol string) (*URL, error) {
	if protocol == "" {
		protocol = "https"
	}
	if domain == "" {
		// Cross-domain: stored is already "host/path?query".
		return Parse(protocol + "://" + stored)
	}
	if !strings.HasPrefix(stored, "/") {
		stored = "/" + stored
	}
	return Parse(protocol + "://" + domain + stored)
}

func cloneURL(u *url.URL) *url.URL {
	clone := *u
	if u.User != nil {
		user := *u.User
		clone.User = &user
	}
	return &clone
}
