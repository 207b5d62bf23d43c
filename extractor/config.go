// Package extractor implements the extractor module: spec.md's Design
// Notes call this module "abandoned mid-design" in the original, so
// SPEC_FULL.md resolves it by mirroring the parser module exactly (same
// query contract, same at-most-once write-then-mark ordering) against its
// own lock table and target tables. See parser for the shared shape this
// package generalizes nothing beyond.
package extractor

import (
	"time"

	"github.com/crawlserv/crawlserv/errs"
	"github.com/crawlserv/crawlserv/query"
	"github.com/crawlserv/crawlserv/rowquery"
)

// Config is the extractor's per-thread configuration, field-for-field the
// same shape as parser.Config.
type Config struct {
	ExtractorLock time.Duration

	NewestOnly bool

	TargetTable string
	Compressed  bool

	IDQueries []rowquery.IDQuery
	IDFromURL query.Evaluator

	DateTimeQueries []rowquery.DateTimeQuery

	Fields []rowquery.FieldSpec
}

// Validate rejects a Config that has no usable target table name.
func (c Config) Validate() error {
	if c.TargetTable == "" {
		return errs.New(errs.InvalidInput, "extractor.Config.Validate", "target table name must not be empty")
	}
	return nil
}
