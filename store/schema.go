package store

import (
	"bytes"
	"fmt"
	"text/template"
)

// listSchemaTemplate provisions the six dependent tables of a URL list
// (spec.md §3/§4.1): the URL table, the content table, and the four
// per-module lock tables. Table naming is bit-exact:
// "<Prefix>_<WebsiteNS>_<ListNS>", "..._crawled", "..._crawling",
// "..._parsing", "..._extracting", "..._analyzing".
//
// Adapted from the teacher's text/template-based schemaTemplate
// (cassandra/schema.go), which plugs keyspace/replication into a CQL
// string; here it plugs table names and an optional ROW_FORMAT/DATA
// DIRECTORY clause into a MySQL DDL batch.
const listSchemaTemplate = `
CREATE TABLE {{.Prefix}}_{{.WebsiteNS}}_{{.ListNS}} (
	id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
	url VARCHAR(2000) NOT NULL,
	hash INT UNSIGNED NOT NULL,
	manual TINYINT(1) NOT NULL DEFAULT 0,
	PRIMARY KEY (id),
	KEY url_hash (hash)
) {{.TableOptions}};

CREATE TABLE {{.Prefix}}_{{.WebsiteNS}}_{{.ListNS}}_crawled (
	id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
	url_id BIGINT UNSIGNED NOT NULL,
	crawltime DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	archived TINYINT(1) NOT NULL DEFAULT 0,
	response SMALLINT UNSIGNED NOT NULL,
	type VARCHAR(64) NOT NULL,
	content LONGBLOB,
	PRIMARY KEY (id),
	KEY content_url (url_id)
) {{.TableOptions}};

CREATE TABLE {{.Prefix}}_{{.WebsiteNS}}_{{.ListNS}}_crawling (
	url_id BIGINT UNSIGNED NOT NULL,
	locktime DATETIME NULL,
	success TINYINT(1) NOT NULL DEFAULT 0,
	PRIMARY KEY (url_id)
) {{.TableOptions}};

CREATE TABLE {{.Prefix}}_{{.WebsiteNS}}_{{.ListNS}}_parsing (
	url_id BIGINT UNSIGNED NOT NULL,
	locktime DATETIME NULL,
	success TINYINT(1) NOT NULL DEFAULT 0,
	PRIMARY KEY (url_id)
) {{.TableOptions}};

CREATE TABLE {{.Prefix}}_{{.WebsiteNS}}_{{.ListNS}}_extracting (
	url_id BIGINT UNSIGNED NOT NULL,
	locktime DATETIME NULL,
	success TINYINT(1) NOT NULL DEFAULT 0,
	PRIMARY KEY (url_id)
) {{.TableOptions}};

CREATE TABLE {{.Prefix}}_{{.WebsiteNS}}_{{.ListNS}}_analyzing (
	url_id BIGINT UNSIGNED NOT NULL,
	locktime DATETIME NULL,
	success TINYINT(1) NOT NULL DEFAULT 0,
	PRIMARY KEY (url_id)
) {{.TableOptions}};
`

// listSchemaParams fills listSchemaTemplate.
type listSchemaParams struct {
	Prefix       string
	WebsiteNS    string
	ListNS       string
	TableOptions string
}

// renderListSchema renders the six-table DDL batch for one URL list,
// returning it as individual statements ready for sequential execution
// (the teacher splits its CQL schema the same way in CreateSchema, on ";").
func renderListSchema(prefix, websiteNS, listNS string, compressed bool, dataDirectory string) ([]string, error) {
	opts := "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
	if compressed {
		opts += " ROW_FORMAT=COMPRESSED"
	}
	if dataDirectory != "" {
		opts += fmt.Sprintf(" DATA DIRECTORY = %q", dataDirectory)
	}

	t, err := template.New("list-schema").Parse(listSchemaTemplate)
	if err != nil {
		panic(fmt.Sprintf("store: failed to parse list schema template: %v", err))
	}

	var b bytes.Buffer
	if err := t.Execute(&b, listSchemaParams{
		Prefix:       prefix,
		WebsiteNS:    websiteNS,
		ListNS:       listNS,
		TableOptions: opts,
	}); err != nil {
		return nil, err
	}

	return splitStatements(b.String()), nil
}

func splitStatements(batch string) []string {
	var stmts []string
	var cur bytes.Buffer
	for _, r := range batch {
		cur.WriteRune(r)
		if r == ';' {
			s := cur.String()
			cur.Reset()
			if trimmed := trimSpaceAndSemicolon(s); trimmed != "" {
				stmts = append(stmts, trimmed)
			}
		}
	}
	if trimmed := trimSpaceAndSemicolon(cur.String()); trimmed != "" {
		stmts = append(stmts, trimmed)
	}
	return stmts
}

func trimSpaceAndSemicolon(s string) string {
	start, end := 0, len(s)
	for start < end && isSpaceOrSemicolon(s[start]) {
		start++
	}
	for end > start && isSpaceOrSemicolon(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpaceOrSemicolon(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r' || b == ';'
}
