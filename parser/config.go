// Package parser implements the parser module (C5): spec.md §4.5's
// select_content → apply_id_queries → apply_datetime_queries →
// apply_field_queries → write_row → mark_success pipeline, run as a
// thread.Module. Grounded on parse.go's selection idiom and
// cassandra/interfaces.go's LinkInfo (a DTO bridging row data to
// higher-level consumers), generalized into a per-field query pipeline
// driven by rowquery.
package parser

import (
	"time"

	"github.com/crawlserv/crawlserv/errs"
	"github.com/crawlserv/crawlserv/query"
	"github.com/crawlserv/crawlserv/rowquery"
)

// Config is the parser's per-thread configuration (the Configuration JSON
// blob's parser-specific fields, decoded by the caller).
type Config struct {
	ParserLock time.Duration

	// NewestOnly selects the latest non-archived content row only
	// (spec.md §4.5 op 1 default); false iterates every content row,
	// newest first, until one produces a usable id or field result.
	NewestOnly bool

	TargetTable string
	Compressed  bool

	IDQueries []rowquery.IDQuery
	IDFromURL query.Evaluator

	DateTimeQueries []rowquery.DateTimeQuery

	Fields []rowquery.FieldSpec
}

// Validate rejects a Config that has no usable target table name, mirroring
// crawler.Config.Validate's fail-fast-at-construction idiom.
func (c Config) Validate() error {
	if c.TargetTable == "" {
		return errs.New(errs.InvalidInput, "parser.Config.Validate", "target table name must not be empty")
	}
	return nil
}
