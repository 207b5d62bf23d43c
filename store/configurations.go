package store

import (
	"context"
	"database/sql"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/errs"
)

// CreateConfiguration persists an operator-declared JSON Configuration blob
// (spec.md §3), scoped to one module of one website.
func (s *Store) CreateConfiguration(ctx context.Context, c crawlserv.Configuration) (uint64, error) {
	const op = "store.CreateConfiguration"
	if err := s.checkConnection(ctx); err != nil {
		return 0, err
	}

	var id uint64
	err := s.withDeadlockRetry(ctx, op, func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO `+TablePrefix+`_configs (website_id, module, name, json) VALUES (?, ?, ?, ?)`,
			c.WebsiteID, string(c.Module), c.Name, c.JSON)
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

// GetConfiguration reads back a Configuration by id.
func (s *Store) GetConfiguration(ctx context.Context, id uint64) (crawlserv.Configuration, error) {
	const op = "store.GetConfiguration"
	if err := s.checkConnection(ctx); err != nil {
		return crawlserv.Configuration{}, err
	}

	var c crawlserv.Configuration
	var module string
	row := s.db.QueryRowContext(ctx,
		`SELECT id, website_id, module, name, json FROM `+TablePrefix+`_configs WHERE id = ?`, id)
	if err := row.Scan(&c.ID, &c.WebsiteID, &module, &c.Name, &c.JSON); err != nil {
		if err == sql.ErrNoRows {
			return crawlserv.Configuration{}, errs.New(errs.NotFound, op, "no such configuration")
		}
		return crawlserv.Configuration{}, classify(op, err)
	}
	c.Module = crawlserv.Module(module)
	return c, nil
}

// ListConfigurations returns every Configuration belonging to websiteID and
// module, oldest first.
func (s *Store) ListConfigurations(ctx context.Context, websiteID uint64, module crawlserv.Module) ([]crawlserv.Configuration, error) {
	const op = "store.ListConfigurations"
	if err := s.checkConnection(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, website_id, module, name, json FROM `+TablePrefix+`_configs
		 WHERE website_id = ? AND module = ? ORDER BY id`, websiteID, string(module))
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []crawlserv.Configuration
	for rows.Next() {
		var c crawlserv.Configuration
		var mod string
		if err := rows.Scan(&c.ID, &c.WebsiteID, &mod, &c.Name, &c.JSON); err != nil {
			return nil, classify(op, err)
		}
		c.Module = crawlserv.Module(mod)
		out = append(out, c)
	}
	return out, classify(op, rows.Err())
}

// UpdateConfiguration overwrites the JSON blob of an existing Configuration.
func (s *Store) UpdateConfiguration(ctx context.Context, id uint64, json []byte) error {
	const op = "store.UpdateConfiguration"
	if err := s.checkConnection(ctx); err != nil {
		return err
	}
	return s.withDeadlockRetry(ctx, op, func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE `+TablePrefix+`_configs SET json = ? WHERE id = ?`, json, id)
		return classify(op, err)
	})
}

// DeleteConfiguration removes a Configuration row by id.
func (s *Store) DeleteConfiguration(ctx context.Context, id uint64) error {
	const op = "store.DeleteConfiguration"
	if err := s.checkConnection(ctx); err != nil {
		return err
	}
	return s.withDeadlockRetry(ctx, op, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM `+TablePrefix+`_configs WHERE id = ?`, id)
		return classify(op, err)
	})
}
