package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// UpsertTargetRow implements spec.md §4.5 op 5 (write_row) and its extractor
// mirror: insert or replace the row for urlID in a parser/extractor target
// table previously created by AddOrGetTargetTable. columns maps column name
// to value; url_id is always included and is the upsert key (the table's
// UNIQUE KEY target_url).
func (s *Store) UpsertTargetRow(ctx context.Context, table string, urlID uint64, columns map[string]interface{}) error {
	const op = "store.UpsertTargetRow"
	if err := s.checkConnection(ctx); err != nil {
		return err
	}

	names := make([]string, 0, len(columns)+1)
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)

	placeholders := make([]string, 0, len(names)+1)
	values := make([]interface{}, 0, len(names)+1)
	updates := make([]string, 0, len(names))

	allNames := append([]string{"url_id"}, names...)
	for _, name := range allNames {
		placeholders = append(placeholders, "?")
		if name == "url_id" {
			values = append(values, urlID)
			continue
		}
		values = append(values, columns[name])
		updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", name, name))
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		table, strings.Join(allNames, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "),
	)
	if len(updates) == 0 {
		stmt = fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE url_id = VALUES(url_id)",
			table, strings.Join(allNames, ", "), strings.Join(placeholders, ", "),
		)
	}

	return s.withDeadlockRetry(ctx, op, func() error {
		_, err := s.db.ExecContext(ctx, stmt, values...)
		return classify(op, err)
	})
}
