package store

import (
	"context"
	"strings"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/errs"
	"github.com/crawlserv/crawlserv/urlnorm"
)

// ChangeDomain rewrites every URL row in every list of website to match
// newDomain (spec.md §4.1 change_domain):
//   - cross-domain -> domain: strips absolute URLs whose host differs from
//     newDomain (www.-normalized); matching URLs become sub-URLs.
//   - domain -> cross-domain: prepends the old domain to each sub-URL.
func (s *Store) ChangeDomain(ctx context.Context, website crawlserv.Website, newDomain string, lists []crawlserv.UrlList) error {
	const op = "store.ChangeDomain"
	if err := s.checkConnection(ctx); err != nil {
		return err
	}

	oldDomain := website.Domain
	return s.withDeadlockRetry(ctx, op, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return classify(op, err)
		}
		defer tx.Rollback()

		for _, list := range lists {
			table := listTableName(website.Namespace, list.Namespace)
			rows, err := tx.QueryContext(ctx, `SELECT id, url FROM `+table)
			if err != nil {
				return classify(op, err)
			}

			type rewrite struct {
				id  uint64
				url string
			}
			var toUpdate []rewrite
			var toDelete []uint64

			for rows.Next() {
				var id uint64
				var raw string
				if err := rows.Scan(&id, &raw); err != nil {
					rows.Close()
					return classify(op, err)
				}
				newURL, drop, err := rewriteStoredURL(raw, oldDomain, newDomain)
				if err != nil {
					rows.Close()
					return errs.Wrap(errs.InvalidInput, op, err)
				}
				if drop {
					toDelete = append(toDelete, id)
				} else if newURL != raw {
					toUpdate = append(toUpdate, rewrite{id, newURL})
				}
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return classify(op, err)
			}
			rows.Close()

			for _, r := range toUpdate {
				if _, err := tx.ExecContext(ctx, `UPDATE `+table+` SET url = ?, hash = ? WHERE id = ?`,
					r.url, crc32Of(r.url), r.id); err != nil {
					return classify(op, err)
				}
			}
			for _, id := range toDelete {
				if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id); err != nil {
					return classify(op, err)
				}
			}
		}

		if _, err := tx.ExecContext(ctx, `UPDATE `+TablePrefix+`_websites SET domain = ? WHERE id = ?`,
			nullIfEmpty(newDomain), website.ID); err != nil {
			return classify(op, err)
		}

		return classify(op, tx.Commit())
	})
}

// rewriteStoredURL applies the cross-domain<->domain conversion rule for a
// single stored URL. drop is true when a cross-domain->domain conversion
// finds the URL belongs to a different host than newDomain, per spec.md
// §4.1: "strips absolute URLs whose host differs from new_domain".
func rewriteStoredURL(stored, oldDomain, newDomain string) (rewritten string, drop bool, err error) {
	wasCrossDomain := oldDomain == ""
	becomesCrossDomain := newDomain == ""

	if wasCrossDomain == becomesCrossDomain {
		return stored, false, nil
	}

	if wasCrossDomain && !becomesCrossDomain {
		// absolute-without-protocol -> sub-URL: strip the host, dropping
		// rows for other hosts.
		host, rest := splitHostAndRest(stored)
		if !urlnorm.SameHost(host, newDomain) {
			return "", true, nil
		}
		if !strings.HasPrefix(rest, "/") {
			rest = "/" + rest
		}
		return rest, false, nil
	}

	// sub-URL -> absolute-without-protocol: prepend the old domain.
	sub := stored
	if !strings.HasPrefix(sub, "/") {
		sub = "/" + sub
	}
	return oldDomain + sub, false, nil
}

func splitHostAndRest(absoluteWithoutProtocol string) (host, rest string) {
	i := strings.IndexAny(absoluteWithoutProtocol, "/?")
	if i < 0 {
		return absoluteWithoutProtocol, ""
	}
	return absoluteWithoutProtocol[:i], absoluteWithoutProtocol[i:]
}
