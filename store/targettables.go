package store

import (
	"context"
	"fmt"
	"regexp"

	"github.com/crawlserv/crawlserv/errs"
)

// ColumnDef is one operator-declared target-table column (spec.md §3
// "Columns are operator-declared plus a foreign key to the URL row").
type ColumnDef struct {
	Name string
	Type string // a MySQL column type, e.g. "TEXT", "BIGINT", "DATETIME"
}

// AddOrGetTargetTable implements spec.md §4.1 add_or_get_target_table: it
// is idempotent — if a target table with the same (type, website, list,
// name) exists, columns missing from it are added and existing columns of
// a compatible type are reused; an incompatible column type fails with an
// *errs.Error classified InvalidInput.
//
// parser output additionally carries a `parsed_id` text column (spec.md
// §3); callers pass it as an ordinary ColumnDef since this function has no
// parser-specific knowledge.
func (s *Store) AddOrGetTargetTable(ctx context.Context, websiteNS, listNS, tableType, name string, columns []ColumnDef, compressed bool) (string, error) {
	const op = "store.AddOrGetTargetTable"
	if err := validateNamespace(op, name); err != nil {
		return "", err
	}
	if err := s.checkConnection(ctx); err != nil {
		return "", err
	}

	unlock := s.LockNamed("store.target." + websiteNS + "." + listNS + "." + tableType + "." + name)
	defer unlock()

	table := targetTableName(websiteNS, listNS, tableType, name)

	existing, err := s.describeTable(ctx, table)
	if err != nil {
		return "", err
	}

	if existing == nil {
		return table, s.createTargetTable(ctx, op, table, columns, compressed)
	}

	return table, s.reconcileTargetTable(ctx, op, table, existing, columns)
}

func (s *Store) createTargetTable(ctx context.Context, op, table string, columns []ColumnDef, compressed bool) error {
	ddl := fmt.Sprintf(`CREATE TABLE %s (
	id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
	url_id BIGINT UNSIGNED NOT NULL,`, table)
	for _, c := range columns {
		ddl += fmt.Sprintf("\n\t%s %s NULL,", c.Name, c.Type)
	}
	ddl += "\n\tPRIMARY KEY (id),\n\tUNIQUE KEY target_url (url_id)\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
	if compressed {
		ddl += " ROW_FORMAT=COMPRESSED"
	}

	return s.withDeadlockRetry(ctx, op, func() error {
		_, err := s.db.ExecContext(ctx, ddl)
		return classify(op, err)
	})
}

func (s *Store) reconcileTargetTable(ctx context.Context, op, table string, existing map[string]string, wanted []ColumnDef) error {
	var toAdd []ColumnDef
	for _, c := range wanted {
		existingType, ok := existing[c.Name]
		if !ok {
			toAdd = append(toAdd, c)
			continue
		}
		if !compatibleColumnType(existingType, c.Type) {
			return errs.New(errs.InvalidInput, op,
				fmt.Sprintf("column %q exists with incompatible type %q, wanted %q", c.Name, existingType, c.Type))
		}
	}
	if len(toAdd) == 0 {
		return nil
	}

	alter := "ALTER TABLE " + table
	for i, c := range toAdd {
		if i > 0 {
			alter += ","
		}
		alter += fmt.Sprintf(" ADD COLUMN %s %s NULL", c.Name, c.Type)
	}

	return s.withDeadlockRetry(ctx, op, func() error {
		_, err := s.db.ExecContext(ctx, alter)
		return classify(op, err)
	})
}

// describeTable returns column-name -> column-type for an existing table,
// or nil if the table does not exist.
func (s *Store) describeTable(ctx context.Context, table string) (map[string]string, error) {
	const op = "store.describeTable"
	rows, err := s.db.QueryContext(ctx, `
SELECT COLUMN_NAME, DATA_TYPE
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?`, table)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	cols := map[string]string{}
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, classify(op, err)
		}
		cols[name] = typ
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	if len(cols) == 0 {
		return nil, nil
	}
	return cols, nil
}

// compatibleColumnType compares a MySQL information_schema DATA_TYPE
// against the column type an operator declared, coarsely: both need to
// agree on the same broad family (numeric, text/blob, temporal). Exact
// length/precision mismatches (VARCHAR(100) vs VARCHAR(200)) are allowed
// since they don't change semantics for already-written rows.
func compatibleColumnType(existing, wanted string) bool {
	return columnFamily(existing) == columnFamily(wanted)
}

func columnFamily(sqlType string) string {
	switch firstWord(sqlType) {
	case "tinyint", "smallint", "mediumint", "int", "bigint", "decimal", "float", "double":
		return "numeric"
	case "datetime", "timestamp", "date", "time":
		return "temporal"
	case "tinyblob", "blob", "mediumblob", "longblob":
		return "blob"
	default:
		return "text"
	}
}

func firstWord(s string) string {
	for i, r := range s {
		if r == '(' || r == ' ' {
			return toLowerASCII(s[:i])
		}
	}
	return toLowerASCII(s)
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

var identifierRe = regexp.MustCompile(`^[A-Za-z0-9$_]+$`)

// ReadColumn reads every non-NULL value of one column of a target table, in
// primary-key order, up to limit rows (0 means unlimited). table and column
// cannot be parameterized like ordinary values, so both are checked against
// the same identifier pattern CREATE TABLE names must already satisfy
// before being interpolated into the query. This is the analyzer module's
// (C "corpus properties") way of turning a parser/extractor target table's
// text column into a markov.Generator corpus.
func (s *Store) ReadColumn(ctx context.Context, table, column string, limit int) ([]string, error) {
	const op = "store.ReadColumn"

	if !identifierRe.MatchString(table) || !identifierRe.MatchString(column) {
		return nil, errs.New(errs.InvalidInput, op, fmt.Sprintf("table %q or column %q is not a safe identifier", table, column))
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL ORDER BY id", column, table, column)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, classify(op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}
