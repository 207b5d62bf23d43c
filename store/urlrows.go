package store

import (
	"context"
	"database/sql"
	"hash/crc32"
	"time"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/errs"
)

func crc32Of(url string) uint32 {
	return crc32.ChecksumIEEE([]byte(url))
}

// ExistsURL implements spec.md §4.2 exists(url): a CRC32-hash lookup
// followed, only on a hash hit, by an equality check — defends against a
// full index scan on the (non-unique) hash index.
func (s *Store) ExistsURL(ctx context.Context, websiteNS, listNS, url string) (uint64, bool, error) {
	const op = "store.ExistsURL"
	if err := s.checkConnection(ctx); err != nil {
		return 0, false, err
	}

	var id uint64
	var matched string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, url FROM `+listTableName(websiteNS, listNS)+` WHERE hash = ? AND url = ? LIMIT 1`,
		crc32Of(url), url).Scan(&id, &matched)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, classify(op, err)
	}
	return id, true, nil
}

// AddURL implements spec.md §4.2 add(url, manual).
func (s *Store) AddURL(ctx context.Context, websiteNS, listNS, url string, manual bool) (uint64, error) {
	const op = "store.AddURL"
	if len(url) > 2000 {
		return 0, errs.New(errs.InvalidInput, op, "url exceeds 2000 bytes")
	}
	if err := s.checkConnection(ctx); err != nil {
		return 0, err
	}

	var id uint64
	err := s.withDeadlockRetry(ctx, op, func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO `+listTableName(websiteNS, listNS)+` (url, hash, manual) VALUES (?, ?, ?)`,
			url, crc32Of(url), manual)
		if err != nil {
			return classify(op, err)
		}
		lastID, err := res.LastInsertId()
		if err != nil {
			return classify(op, err)
		}
		id = uint64(lastID)
		return nil
	})
	return id, err
}

// NextURLRow is one candidate returned by NextForModule.
type NextURLRow struct {
	ID  uint64
	URL string
}

// NextForModule implements spec.md §4.2 next_for(module, cursor): the
// lowest URL id strictly greater than cursor whose lock row is lockable for
// module and either unsuccessful, or recrawl is true (ignoring success).
// Ordered by id ascending, one row returned at a time, matching spec.md
// §5's "within a single module, URLs are processed in non-decreasing id
// order".
func (s *Store) NextForModule(ctx context.Context, websiteNS, listNS string, module crawlserv.Module, cursor uint64, recrawl bool) (NextURLRow, bool, error) {
	const op = "store.NextForModule"
	if err := s.checkConnection(ctx); err != nil {
		return NextURLRow{}, false, err
	}

	urlTable := listTableName(websiteNS, listNS)
	lockTable := lockTableName(websiteNS, listNS, module)

	successClause := "AND (l.success = 0"
	if recrawl {
		successClause += " OR 1 = 1"
	}
	successClause += ")"

	query := `
SELECT u.id, u.url
FROM ` + urlTable + ` u
LEFT JOIN ` + lockTable + ` l ON l.url_id = u.id
WHERE u.id > ? AND u.manual = 0
  AND (l.locktime IS NULL OR l.locktime < NOW())
  ` + successClause + `
ORDER BY u.id ASC
LIMIT 1`

	var row NextURLRow
	err := s.db.QueryRowContext(ctx, query, cursor).Scan(&row.ID, &row.URL)
	if err == sql.ErrNoRows {
		return NextURLRow{}, false, nil
	}
	if err != nil {
		return NextURLRow{}, false, classify(op, err)
	}
	return row, true, nil
}

// LockURL implements spec.md §4.2 lock(url, module, duration): set
// locktime = now + duration unconditionally (the caller has already
// confirmed the row was lockable via NextForModule) and return it.
func (s *Store) LockURL(ctx context.Context, websiteNS, listNS string, module crawlserv.Module, urlID uint64, duration time.Duration) (time.Time, error) {
	const op = "store.LockURL"
	if err := s.checkConnection(ctx); err != nil {
		return time.Time{}, err
	}

	lockTable := lockTableName(websiteNS, listNS, module)
	locktime := time.Now().Add(duration)

	err := s.withDeadlockRetry(ctx, op, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO `+lockTable+` (url_id, locktime, success) VALUES (?, ?, 0)
			 ON DUPLICATE KEY UPDATE locktime = VALUES(locktime)`,
			urlID, locktime)
		return classify(op, err)
	})
	return locktime, err
}

// TryRenewLock implements spec.md §4.2 try_renew: if the stored locktime
// equals previous, or is in the past, or is null, set a new lock and return
// it with held=true; otherwise held=false and the lock is left untouched.
// This is a single compare-and-set UPDATE, the "prefer the newer scheme"
// resolution noted in spec.md Design Notes — never a separate SELECT then
// UPDATE, which would race.
func (s *Store) TryRenewLock(ctx context.Context, websiteNS, listNS string, module crawlserv.Module, urlID uint64, previous *time.Time, duration time.Duration) (newLocktime time.Time, held bool, err error) {
	const op = "store.TryRenewLock"
	if err := s.checkConnection(ctx); err != nil {
		return time.Time{}, false, err
	}

	lockTable := lockTableName(websiteNS, listNS, module)
	newLocktime = time.Now().Add(duration)

	err = s.withDeadlockRetry(ctx, op, func() error {
		res, execErr := s.db.ExecContext(ctx,
			`UPDATE `+lockTable+` SET locktime = ?
			 WHERE url_id = ? AND (locktime IS NULL OR locktime < NOW() OR locktime <=> ?)`,
			newLocktime, urlID, previous)
		if execErr != nil {
			return classify(op, execErr)
		}
		n, execErr := res.RowsAffected()
		if execErr != nil {
			return classify(op, execErr)
		}
		held = n > 0
		return nil
	})
	return newLocktime, held, err
}

// UnlockIfHeld implements spec.md §4.2 unlock_if_held: release the lock iff
// the stored locktime matches previous.
func (s *Store) UnlockIfHeld(ctx context.Context, websiteNS, listNS string, module crawlserv.Module, urlID uint64, previous *time.Time) (bool, error) {
	const op = "store.UnlockIfHeld"
	if err := s.checkConnection(ctx); err != nil {
		return false, err
	}

	lockTable := lockTableName(websiteNS, listNS, module)
	var held bool
	err := s.withDeadlockRetry(ctx, op, func() error {
		res, execErr := s.db.ExecContext(ctx,
			`UPDATE `+lockTable+` SET locktime = NULL WHERE url_id = ? AND locktime <=> ?`,
			urlID, previous)
		if execErr != nil {
			return classify(op, execErr)
		}
		n, execErr := res.RowsAffected()
		if execErr != nil {
			return classify(op, execErr)
		}
		held = n > 0
		return nil
	})
	return held, err
}

// MarkSuccess implements spec.md §4.2 mark_success: the same
// compare-and-set as UnlockIfHeld, plus success=true.
func (s *Store) MarkSuccess(ctx context.Context, websiteNS, listNS string, module crawlserv.Module, urlID uint64, previous *time.Time) (bool, error) {
	const op = "store.MarkSuccess"
	if err := s.checkConnection(ctx); err != nil {
		return false, err
	}

	lockTable := lockTableName(websiteNS, listNS, module)
	var held bool
	err := s.withDeadlockRetry(ctx, op, func() error {
		res, execErr := s.db.ExecContext(ctx,
			`UPDATE `+lockTable+` SET locktime = NULL, success = 1 WHERE url_id = ? AND locktime <=> ?`,
			urlID, previous)
		if execErr != nil {
			return classify(op, execErr)
		}
		n, execErr := res.RowsAffected()
		if execErr != nil {
			return classify(op, execErr)
		}
		held = n > 0
		return nil
	})
	return held, err
}

// LastCrawledRow is one (id, locktime) pair used by urllist's recrawl
// priority ordering (NextForRecrawl).
type LastCrawledRow struct {
	URLID    uint64
	URL      string
	LockTime *time.Time
}

// RecrawlCandidates returns up to limit lockable rows with id > cursor for
// module, regardless of success, for urllist.byLastCrawled to prioritize.
func (s *Store) RecrawlCandidates(ctx context.Context, websiteNS, listNS string, module crawlserv.Module, cursor uint64, limit int) ([]LastCrawledRow, error) {
	const op = "store.RecrawlCandidates"
	if err := s.checkConnection(ctx); err != nil {
		return nil, err
	}

	urlTable := listTableName(websiteNS, listNS)
	lockTable := lockTableName(websiteNS, listNS, module)

	rows, err := s.db.QueryContext(ctx, `
SELECT u.id, u.url, l.locktime
FROM `+urlTable+` u
LEFT JOIN `+lockTable+` l ON l.url_id = u.id
WHERE u.id > ? AND u.manual = 0 AND (l.locktime IS NULL OR l.locktime < NOW())
ORDER BY u.id ASC
LIMIT ?`, cursor, limit)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []LastCrawledRow
	for rows.Next() {
		var r LastCrawledRow
		var lt sql.NullTime
		if err := rows.Scan(&r.URLID, &r.URL, &lt); err != nil {
			return nil, classify(op, err)
		}
		if lt.Valid {
			t := lt.Time
			r.LockTime = &t
		}
		out = append(out, r)
	}
	return out, classify(op, rows.Err())
}

// InsertContent implements the crawler's "save" step (spec.md §4.4 op 9):
// insert a content row. Transactional discipline per spec.md §5: this is
// never wrapped in the same transaction as the subsequent MarkSuccess call
// — success is set only after this returns, yielding at-least-once crawls.
func (s *Store) InsertContent(ctx context.Context, websiteNS, listNS string, c crawlserv.Content) (uint64, error) {
	const op = "store.InsertContent"
	if err := s.checkConnection(ctx); err != nil {
		return 0, err
	}

	var id uint64
	err := s.withDeadlockRetry(ctx, op, func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO `+contentTableName(websiteNS, listNS)+` (url_id, crawltime, archived, response, type, content)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			c.URLID, c.CrawlTime, c.Archived, c.Response, c.Type, c.Content)
		if err != nil {
			return classify(op, err)
		}
		lastID, err := res.LastInsertId()
		if err != nil {
			return classify(op, err)
		}
		id = uint64(lastID)
		return nil
	})
	return id, err
}

// LatestContent returns the most recent non-archived content row for a URL, used by
// the parser/extractor's select_content step in newest-only mode (spec.md
// §4.5 op 1).
func (s *Store) LatestContent(ctx context.Context, websiteNS, listNS string, urlID uint64) (crawlserv.Content, bool, error) {
	const op = "store.LatestContent"
	if err := s.checkConnection(ctx); err != nil {
		return crawlserv.Content{}, false, err
	}

	var c crawlserv.Content
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url_id, crawltime, archived, response, type, content FROM `+contentTableName(websiteNS, listNS)+`
		 WHERE url_id = ? AND archived = 0 ORDER BY crawltime DESC LIMIT 1`, urlID)
	if err := row.Scan(&c.ID, &c.URLID, &c.CrawlTime, &c.Archived, &c.Response, &c.Type, &c.Content); err != nil {
		if err == sql.ErrNoRows {
			return crawlserv.Content{}, false, nil
		}
		return crawlserv.Content{}, false, classify(op, err)
	}
	return c, true, nil
}

// AllContent returns every content row for a URL, oldest first, for the
// parser/extractor "newest.only=false" mode (spec.md §4.5 op 1).
func (s *Store) AllContent(ctx context.Context, websiteNS, listNS string, urlID uint64) ([]crawlserv.Content, error) {
	const op = "store.AllContent"
	if err := s.checkConnection(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url_id, crawltime, archived, response, type, content FROM `+contentTableName(websiteNS, listNS)+`
		 WHERE url_id = ? AND archived = 0 ORDER BY crawltime ASC`, urlID)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []crawlserv.Content
	for rows.Next() {
		var c crawlserv.Content
		if err := rows.Scan(&c.ID, &c.URLID, &c.CrawlTime, &c.Archived, &c.Response, &c.Type, &c.Content); err != nil {
			return nil, classify(op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

// ArchivedCrawlTimes returns the crawltime of every content row already
// marked archived for a URL, used by the crawler's archive step (spec.md
// §4.4 step 13) to skip mementos it has already saved instead of
// re-fetching and re-inserting them on every recrawl.
func (s *Store) ArchivedCrawlTimes(ctx context.Context, websiteNS, listNS string, urlID uint64) ([]time.Time, error) {
	const op = "store.ArchivedCrawlTimes"
	if err := s.checkConnection(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT crawltime FROM `+contentTableName(websiteNS, listNS)+`
		 WHERE url_id = ? AND archived = 1`, urlID)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, classify(op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}
