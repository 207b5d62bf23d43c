// Package query implements spec.md §6's HTML/XML parsing contract and
// Regex contract: a shared Evaluator interface with two adapters —
// query.XPath (github.com/antchfx/htmlquery) and query.Regex
// (github.com/dlclark/regexp2, PCRE-style) — plus query.HTMLTree
// (github.com/PuerkitoBio/goquery, for the text-only / tree-walking case),
// which does not implement Evaluator.
// Grounded on parse.go's selection idiom, generalized from the teacher's
// single hard-coded link-extraction pass to spec.md §4.5's configurable,
// per-field query pipeline.
package query

import "context"

// ResultKind selects how an Evaluator's Run result is reported, matching
// the Query model's bool/single/multi result-kind flags (spec.md §3).
type ResultKind int

const (
	ResultBool ResultKind = iota
	ResultSingle
	ResultMulti
)

// Result is the outcome of evaluating one Query against one document.
type Result struct {
	Matched bool
	Single  string
	Multi   []string
}

// Evaluator is the shared contract every query backend implements: run a
// compiled query against a parsed document (an *html.Node from htmlquery
// for XPath, or a raw string for regex) and report bool, first-match, or
// all-matches per spec.md §6.
type Evaluator interface {
	// Eval runs the query against doc, which must be the concrete document
	// type this Evaluator's backend expects (see ParseHTML for building an
	// *html.Node from raw bytes).
	Eval(ctx context.Context, doc interface{}, kind ResultKind) (Result, error)
}
