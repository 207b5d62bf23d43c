package store

import (
	"context"
	"database/sql"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/errs"
)

// CreateWebsite inserts a new Website row. Namespace uniqueness is enforced
// by a UNIQUE index on crawlserv_websites.namespace; a collision classifies
// as Conflict.
func (s *Store) CreateWebsite(ctx context.Context, w crawlserv.Website) (uint64, error) {
	const op = "store.CreateWebsite"
	if err := validateNamespace(op, w.Namespace); err != nil {
		return 0, err
	}
	if err := s.checkConnection(ctx); err != nil {
		return 0, err
	}

	var id uint64
	err := s.withDeadlockRetry(ctx, op, func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO `+TablePrefix+`_websites (domain, namespace, name, data_directory) VALUES (?, ?, ?, ?)`,
			nullIfEmpty(w.Domain), w.Namespace, w.Name, nullIfEmpty(w.DataDirectory))
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

// GetWebsite reads back a Website by id.
func (s *Store) GetWebsite(ctx context.Context, id uint64) (crawlserv.Website, error) {
	const op = "store.GetWebsite"
	if err := s.checkConnection(ctx); err != nil {
		return crawlserv.Website{}, err
	}

	var w crawlserv.Website
	var domain, dataDir sql.NullString
	row := s.db.QueryRowContext(ctx,
		`SELECT id, domain, namespace, name, data_directory FROM `+TablePrefix+`_websites WHERE id = ?`, id)
	if err := row.Scan(&w.ID, &domain, &w.Namespace, &w.Name, &dataDir); err != nil {
		if err == sql.ErrNoRows {
			return crawlserv.Website{}, errs.New(errs.NotFound, op, "no such website")
		}
		return crawlserv.Website{}, classify(op, err)
	}
	w.Domain = domain.String
	w.DataDirectory = dataDir.String
	return w, nil
}

// CreateList provisions the six dependent tables for a new UrlList (spec.md
// §4.1 create_list) and inserts the UrlList row itself.
func (s *Store) CreateList(ctx context.Context, website crawlserv.Website, list crawlserv.UrlList, compressed bool) (uint64, error) {
	const op = "store.CreateList"
	if err := validateNamespace(op, list.Namespace); err != nil {
		return 0, err
	}
	if err := s.checkConnection(ctx); err != nil {
		return 0, err
	}

	unlock := s.LockNamed("store.schema." + website.Namespace + "." + list.Namespace)
	defer unlock()

	stmts, err := renderListSchema(TablePrefix, website.Namespace, list.Namespace, compressed, website.DataDirectory)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, op, err)
	}

	var id uint64
	err = s.withDeadlockRetry(ctx, op, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return classify(op, err)
		}
		defer tx.Rollback()

		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				if isTableExistsErr(err) {
					return errs.Wrap(errs.Conflict, op, err)
				}
				return classify(op, err)
			}
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO `+TablePrefix+`_lists (website_id, namespace, name) VALUES (?, ?, ?)`,
			list.WebsiteID, list.Namespace, list.Name)
		if err != nil {
			return classify(op, err)
		}
		lastID, err := res.LastInsertId()
		if err != nil {
			return classify(op, err)
		}
		id = uint64(lastID)

		return classify(op, tx.Commit())
	})
	return id, err
}

func isTableExistsErr(err error) bool {
	c := classify("", err)
	return errs.ClassOf(c) == errs.Conflict
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
