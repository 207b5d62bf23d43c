package store

import (
	"context"
	"database/sql"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/errs"
)

// CreateQuery persists an operator-declared Query row (spec.md §3).
func (s *Store) CreateQuery(ctx context.Context, q crawlserv.Query) (uint64, error) {
	const op = "store.CreateQuery"
	if err := s.checkConnection(ctx); err != nil {
		return 0, err
	}

	var websiteID sql.NullInt64
	if q.WebsiteID != 0 {
		websiteID = sql.NullInt64{Int64: int64(q.WebsiteID), Valid: true}
	}

	var id uint64
	err := s.withDeadlockRetry(ctx, op, func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO `+TablePrefix+`_queries
			 (website_id, name, text, type, result_bool, result_single, result_multi, text_only)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			websiteID, q.Name, q.Text, string(q.Type), q.ResultBool, q.ResultSingle, q.ResultMulti, q.TextOnly)
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

// GetQuery reads back a Query by id.
func (s *Store) GetQuery(ctx context.Context, id uint64) (crawlserv.Query, error) {
	const op = "store.GetQuery"
	if err := s.checkConnection(ctx); err != nil {
		return crawlserv.Query{}, err
	}

	var q crawlserv.Query
	var websiteID sql.NullInt64
	var typ string
	row := s.db.QueryRowContext(ctx,
		`SELECT id, website_id, name, text, type, result_bool, result_single, result_multi, text_only
		 FROM `+TablePrefix+`_queries WHERE id = ?`, id)
	if err := row.Scan(&q.ID, &websiteID, &q.Name, &q.Text, &typ, &q.ResultBool, &q.ResultSingle, &q.ResultMulti, &q.TextOnly); err != nil {
		if err == sql.ErrNoRows {
			return crawlserv.Query{}, errs.New(errs.NotFound, op, "no such query")
		}
		return crawlserv.Query{}, classify(op, err)
	}
	q.WebsiteID = uint64(websiteID.Int64)
	q.Type = crawlserv.QueryType(typ)
	return q, nil
}

// ListQueries returns every Query row, oldest first. websiteID == 0 returns
// every query (global and website-scoped alike); a non-zero websiteID
// restricts to that website's own queries.
func (s *Store) ListQueries(ctx context.Context, websiteID uint64) ([]crawlserv.Query, error) {
	const op = "store.ListQueries"
	if err := s.checkConnection(ctx); err != nil {
		return nil, err
	}

	query := `SELECT id, website_id, name, text, type, result_bool, result_single, result_multi, text_only
		 FROM ` + TablePrefix + `_queries`
	args := []interface{}{}
	if websiteID != 0 {
		query += ` WHERE website_id = ?`
		args = append(args, websiteID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []crawlserv.Query
	for rows.Next() {
		var q crawlserv.Query
		var websiteID sql.NullInt64
		var typ string
		if err := rows.Scan(&q.ID, &websiteID, &q.Name, &q.Text, &typ, &q.ResultBool, &q.ResultSingle, &q.ResultMulti, &q.TextOnly); err != nil {
			return nil, classify(op, err)
		}
		q.WebsiteID = uint64(websiteID.Int64)
		q.Type = crawlserv.QueryType(typ)
		out = append(out, q)
	}
	return out, classify(op, rows.Err())
}

// DeleteQuery removes a Query row by id.
func (s *Store) DeleteQuery(ctx context.Context, id uint64) error {
	const op = "store.DeleteQuery"
	if err := s.checkConnection(ctx); err != nil {
		return err
	}
	return s.withDeadlockRetry(ctx, op, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM `+TablePrefix+`_queries WHERE id = ?`, id)
		return classify(op, err)
	})
}
