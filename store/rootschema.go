package store

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
)

// rootSchemaTemplate provisions the process-wide tables that exist
// independent of any particular URL list: websites, lists, queries,
// configurations, threads and the log. Adapted from the teacher's
// schemaTemplate (cassandra/helpers.go), which plugs a keyspace name into a
// CQL CREATE KEYSPACE/TABLE batch; here it plugs TablePrefix into the
// equivalent MySQL DDL batch.
const rootSchemaTemplate = `
CREATE TABLE IF NOT EXISTS {{.Prefix}}_websites (
	id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
	domain VARCHAR(255) NULL,
	namespace VARCHAR(64) NOT NULL,
	name VARCHAR(255) NOT NULL,
	data_directory VARCHAR(1024) NULL,
	PRIMARY KEY (id),
	UNIQUE KEY website_namespace (namespace)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS {{.Prefix}}_lists (
	id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
	website_id BIGINT UNSIGNED NOT NULL,
	namespace VARCHAR(64) NOT NULL,
	name VARCHAR(255) NOT NULL,
	PRIMARY KEY (id),
	UNIQUE KEY list_namespace (website_id, namespace)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS {{.Prefix}}_queries (
	id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
	website_id BIGINT UNSIGNED NULL,
	name VARCHAR(255) NOT NULL,
	text MEDIUMTEXT NOT NULL,
	type VARCHAR(16) NOT NULL,
	result_bool TINYINT(1) NOT NULL DEFAULT 0,
	result_single TINYINT(1) NOT NULL DEFAULT 0,
	result_multi TINYINT(1) NOT NULL DEFAULT 0,
	text_only TINYINT(1) NOT NULL DEFAULT 0,
	PRIMARY KEY (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS {{.Prefix}}_configs (
	id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
	website_id BIGINT UNSIGNED NOT NULL,
	module VARCHAR(16) NOT NULL,
	name VARCHAR(255) NOT NULL,
	json MEDIUMBLOB NOT NULL,
	PRIMARY KEY (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS {{.Prefix}}_threads (
	id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
	module VARCHAR(16) NOT NULL,
	website_id BIGINT UNSIGNED NOT NULL,
	list_id BIGINT UNSIGNED NOT NULL,
	config_id BIGINT UNSIGNED NOT NULL,
	status VARCHAR(16) NOT NULL,
	message TEXT NOT NULL,
	paused TINYINT(1) NOT NULL DEFAULT 0,
	last BIGINT UNSIGNED NOT NULL DEFAULT 0,
	runtime BIGINT NOT NULL DEFAULT 0,
	pausetime BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS {{.Prefix}}_log (
	id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
	module VARCHAR(16) NOT NULL,
	entry TEXT NOT NULL,
	PRIMARY KEY (id),
	KEY log_module (module)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`

type rootSchemaParams struct {
	Prefix string
}

// GetRootSchema renders the process-wide schema batch, split into
// individually executable statements.
func GetRootSchema() []string {
	t, err := template.New("root-schema").Parse(rootSchemaTemplate)
	if err != nil {
		panic(fmt.Sprintf("store: failed to parse root schema template: %v", err))
	}
	var b bytes.Buffer
	if err := t.Execute(&b, rootSchemaParams{Prefix: TablePrefix}); err != nil {
		panic(fmt.Sprintf("store: failed to render root schema template: %v", err))
	}
	return splitStatements(b.String())
}

// CreateSchema creates the process-wide tables if they do not already
// exist. Per-list tables are provisioned individually by CreateList.
func (s *Store) CreateSchema(ctx context.Context) error {
	const op = "store.CreateSchema"
	for _, stmt := range GetRootSchema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return classify(op, err)
		}
	}
	return nil
}
