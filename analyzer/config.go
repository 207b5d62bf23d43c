// Package analyzer implements the analyzer module named by spec.md's
// Module enum but left undesigned there ("ModuleAnalyzer" exists only as a
// lock-table suffix). SPEC_FULL.md supplements it from original_source's
// Struct/CorpusProperties.h: an analyzer names one or more source
// table/column pairs, adds every value read from them to a markov.Generator
// as a separate corpus (C6), then samples generated sentences into its own
// target table
// the same way parser/extractor write field results.
package analyzer

import (
	"time"

	"github.com/crawlserv/crawlserv/errs"
)

// CorpusSource names one source table/column to read into the corpus,
// mirroring original_source's CorpusProperties source-table list. Limit
// bounds how many rows are read (0 means unlimited).
type CorpusSource struct {
	Table  string
	Column string
	Limit  int
}

// Config is the analyzer's per-thread configuration (the Configuration
// JSON blob's analyzer-specific fields, decoded by the caller).
type Config struct {
	AnalyzerLock time.Duration

	Sources []CorpusSource

	MaxK       int
	MinCorpora int
	Emoticons  []string
	Emojis     []string

	SentenceMaxLen int
	BatchSize      int // sentences generated per OnTick; defaults to 1

	TargetTable string
	Compressed  bool
}

// Validate rejects a Config with no corpus sources or target table,
// mirroring crawler.Config.Validate/parser.Config.Validate's
// fail-fast-at-construction idiom.
func (c *Config) Validate() error {
	const op = "analyzer.Config.Validate"

	if c.TargetTable == "" {
		return errs.New(errs.InvalidInput, op, "target table name must not be empty")
	}
	if len(c.Sources) == 0 {
		return errs.New(errs.InvalidInput, op, "at least one corpus source table/column is required")
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1
	}
	return nil
}
