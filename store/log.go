package store

import (
	"context"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/logging"
)

// InsertLog implements spec.md §4.1 insert_log: strips invalid UTF-8 (the
// repair function lives in logging.ScrubUTF8 so it stays unit-testable
// without a database) and appends a log row.
func (s *Store) InsertLog(ctx context.Context, module crawlserv.Module, entry string) error {
	const op = "store.InsertLog"
	if err := s.checkConnection(ctx); err != nil {
		return err
	}

	scrubbed := logging.ScrubUTF8(entry)
	return s.withDeadlockRetry(ctx, op, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO `+TablePrefix+`_log (module, entry) VALUES (?, ?)`, string(module), scrubbed)
		return classify(op, err)
	})
}

// RecentLogs returns the most recent count log entries for module, newest
// first, for the control surface's log viewer.
func (s *Store) RecentLogs(ctx context.Context, module crawlserv.Module, count int) ([]crawlserv.LogEntry, error) {
	const op = "store.RecentLogs"
	if err := s.checkConnection(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, module, entry FROM `+TablePrefix+`_log WHERE module = ? ORDER BY id DESC LIMIT ?`,
		string(module), count)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []crawlserv.LogEntry
	for rows.Next() {
		var e crawlserv.LogEntry
		var mod string
		if err := rows.Scan(&e.ID, &mod, &e.Entry); err != nil {
			return nil, classify(op, err)
		}
		e.Module = crawlserv.Module(mod)
		out = append(out, e)
	}
	return out, classify(op, rows.Err())
}

// ClearLog deletes every log row for module.
func (s *Store) ClearLog(ctx context.Context, module crawlserv.Module) error {
	const op = "store.ClearLog"
	if err := s.checkConnection(ctx); err != nil {
		return err
	}
	return s.withDeadlockRetry(ctx, op, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM `+TablePrefix+`_log WHERE module = ?`, string(module))
		return classify(op, err)
	})
}
