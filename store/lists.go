package store

import (
	"context"
	"database/sql"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/errs"
)

// ListWebsites returns every Website row, oldest first. Used by the control
// surface's dashboard and website CRUD listing (spec.md §4.7's "CRUD over
// website").
func (s *Store) ListWebsites(ctx context.Context) ([]crawlserv.Website, error) {
	const op = "store.ListWebsites"
	if err := s.checkConnection(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, domain, namespace, name, data_directory FROM `+TablePrefix+`_websites ORDER BY id`)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []crawlserv.Website
	for rows.Next() {
		var w crawlserv.Website
		var domain, dataDir sql.NullString
		if err := rows.Scan(&w.ID, &domain, &w.Namespace, &w.Name, &dataDir); err != nil {
			return nil, classify(op, err)
		}
		w.Domain = domain.String
		w.DataDirectory = dataDir.String
		out = append(out, w)
	}
	return out, classify(op, rows.Err())
}

// DeleteWebsite removes a Website row. The caller is responsible for first
// deleting (or otherwise disposing of) every UrlList belonging to it — this
// mirrors CreateList's own per-list table provisioning being a distinct
// operation from CreateWebsite's row insert.
func (s *Store) DeleteWebsite(ctx context.Context, id uint64) error {
	const op = "store.DeleteWebsite"
	if err := s.checkConnection(ctx); err != nil {
		return err
	}
	return s.withDeadlockRetry(ctx, op, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM `+TablePrefix+`_websites WHERE id = ?`, id)
		return classify(op, err)
	})
}

// GetList reads back a UrlList by id.
func (s *Store) GetList(ctx context.Context, id uint64) (crawlserv.UrlList, error) {
	const op = "store.GetList"
	if err := s.checkConnection(ctx); err != nil {
		return crawlserv.UrlList{}, err
	}

	var l crawlserv.UrlList
	row := s.db.QueryRowContext(ctx,
		`SELECT id, website_id, namespace, name FROM `+TablePrefix+`_lists WHERE id = ?`, id)
	if err := row.Scan(&l.ID, &l.WebsiteID, &l.Namespace, &l.Name); err != nil {
		if err == sql.ErrNoRows {
			return crawlserv.UrlList{}, errs.New(errs.NotFound, op, "no such list")
		}
		return crawlserv.UrlList{}, classify(op, err)
	}
	return l, nil
}

// ListLists returns every UrlList belonging to websiteID, oldest first.
func (s *Store) ListLists(ctx context.Context, websiteID uint64) ([]crawlserv.UrlList, error) {
	const op = "store.ListLists"
	if err := s.checkConnection(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, website_id, namespace, name FROM `+TablePrefix+`_lists WHERE website_id = ? ORDER BY id`, websiteID)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []crawlserv.UrlList
	for rows.Next() {
		var l crawlserv.UrlList
		if err := rows.Scan(&l.ID, &l.WebsiteID, &l.Namespace, &l.Name); err != nil {
			return nil, classify(op, err)
		}
		out = append(out, l)
	}
	return out, classify(op, rows.Err())
}

// DeleteList drops a UrlList's six dependent tables (the reverse of
// CreateList's renderListSchema provisioning) and removes its row.
func (s *Store) DeleteList(ctx context.Context, website crawlserv.Website, list crawlserv.UrlList) error {
	const op = "store.DeleteList"
	if err := s.checkConnection(ctx); err != nil {
		return err
	}

	unlock := s.LockNamed("store.schema." + website.Namespace + "." + list.Namespace)
	defer unlock()

	tables := []string{
		analyzingLockTableName(website.Namespace, list.Namespace),
		extractingLockTableName(website.Namespace, list.Namespace),
		parsingLockTableName(website.Namespace, list.Namespace),
		crawlingLockTableName(website.Namespace, list.Namespace),
		contentTableName(website.Namespace, list.Namespace),
		listTableName(website.Namespace, list.Namespace),
	}

	return s.withDeadlockRetry(ctx, op, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return classify(op, err)
		}
		defer tx.Rollback()

		for _, table := range tables {
			if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
				return classify(op, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+TablePrefix+`_lists WHERE id = ?`, list.ID); err != nil {
			return classify(op, err)
		}
		return classify(op, tx.Commit())
	})
}
