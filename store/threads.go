package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/errs"
)

// CreateThread persists a new Thread row in the New state.
func (s *Store) CreateThread(ctx context.Context, t crawlserv.Thread) (uint64, error) {
	const op = "store.CreateThread"
	if err := s.checkConnection(ctx); err != nil {
		return 0, err
	}

	var id uint64
	err := s.withDeadlockRetry(ctx, op, func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO `+TablePrefix+`_threads
			 (module, website_id, list_id, config_id, status, message, paused, last, runtime, pausetime)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(t.Module), t.WebsiteID, t.ListID, t.ConfigID, string(crawlserv.ThreadNew), t.Message,
			t.Paused, t.Last, int64(t.Runtime/time.Second), int64(t.PauseTime/time.Second))
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

// GetThread reads back a Thread by id.
func (s *Store) GetThread(ctx context.Context, id uint64) (crawlserv.Thread, error) {
	const op = "store.GetThread"
	if err := s.checkConnection(ctx); err != nil {
		return crawlserv.Thread{}, err
	}

	var t crawlserv.Thread
	var module, status string
	var runtimeSec, pauseSec int64
	row := s.db.QueryRowContext(ctx,
		`SELECT id, module, website_id, list_id, config_id, status, message, paused, last, runtime, pausetime
		 FROM `+TablePrefix+`_threads WHERE id = ?`, id)
	if err := row.Scan(&t.ID, &module, &t.WebsiteID, &t.ListID, &t.ConfigID, &status, &t.Message,
		&t.Paused, &t.Last, &runtimeSec, &pauseSec); err != nil {
		if err == sql.ErrNoRows {
			return crawlserv.Thread{}, errs.New(errs.NotFound, op, "no such thread")
		}
		return crawlserv.Thread{}, classify(op, err)
	}
	t.Module = crawlserv.Module(module)
	t.Status = crawlserv.ThreadStatus(status)
	t.Runtime = time.Duration(runtimeSec) * time.Second
	t.PauseTime = time.Duration(pauseSec) * time.Second
	return t, nil
}

// ListThreads returns every persisted Thread row, used at startup to
// re-instantiate Interrupted threads (spec.md §4.3).
func (s *Store) ListThreads(ctx context.Context) ([]crawlserv.Thread, error) {
	const op = "store.ListThreads"
	if err := s.checkConnection(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, module, website_id, list_id, config_id, status, message, paused, last, runtime, pausetime
		 FROM `+TablePrefix+`_threads`)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []crawlserv.Thread
	for rows.Next() {
		var t crawlserv.Thread
		var module, status string
		var runtimeSec, pauseSec int64
		if err := rows.Scan(&t.ID, &module, &t.WebsiteID, &t.ListID, &t.ConfigID, &status, &t.Message,
			&t.Paused, &t.Last, &runtimeSec, &pauseSec); err != nil {
			return nil, classify(op, err)
		}
		t.Module = crawlserv.Module(module)
		t.Status = crawlserv.ThreadStatus(status)
		t.Runtime = time.Duration(runtimeSec) * time.Second
		t.PauseTime = time.Duration(pauseSec) * time.Second
		out = append(out, t)
	}
	return out, classify(op, rows.Err())
}

// UpdateThreadStatus flushes status/message/paused/last/runtime/pausetime,
// the periodic write the supervisor's flush ticker performs (spec.md §4.3
// "the supervisor maintains per-thread runtime and pausetime durations and
// flushes them periodically").
func (s *Store) UpdateThreadStatus(ctx context.Context, t crawlserv.Thread) error {
	const op = "store.UpdateThreadStatus"
	if err := s.checkConnection(ctx); err != nil {
		return err
	}
	return s.withDeadlockRetry(ctx, op, func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE `+TablePrefix+`_threads
			 SET status = ?, message = ?, paused = ?, last = ?, runtime = ?, pausetime = ?
			 WHERE id = ?`,
			string(t.Status), t.Message, t.Paused, t.Last,
			int64(t.Runtime/time.Second), int64(t.PauseTime/time.Second), t.ID)
		return classify(op, err)
	})
}

// DeleteThread removes a Thread row by id.
func (s *Store) DeleteThread(ctx context.Context, id uint64) error {
	const op = "store.DeleteThread"
	if err := s.checkConnection(ctx); err != nil {
		return err
	}
	return s.withDeadlockRetry(ctx, op, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM `+TablePrefix+`_threads WHERE id = ?`, id)
		return classify(op, err)
	})
}
