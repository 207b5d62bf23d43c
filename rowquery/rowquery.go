// Package rowquery implements the field/id/datetime query application
// shared by the parser (C5) and extractor modules (spec.md §4.5 ops 2-4):
// running a configured query against either a processed item's URL or its
// content, then applying the field options (delimiter join, JSON encoding,
// whitespace tidying, empty-result warnings) spec.md names. Grounded on
// parse.go's selection idiom, generalized from "always the fetched body"
// to "URL or content, per field."
package rowquery

import (
	"context"
	"encoding/json"
	"strings"

	"golang.org/x/net/html"

	"github.com/crawlserv/crawlserv/errs"
	"github.com/crawlserv/crawlserv/logging"
	"github.com/crawlserv/crawlserv/query"
)

// Source selects which representation of a processed item a query runs
// against.
type Source int

const (
	SourceURL Source = iota
	SourceContent
)

// Document bundles every representation a configured query might need,
// built once per processed item and reused across every id/datetime/field
// query: the raw URL text (for queries sourced from the URL, always
// evaluated as a plain string), the parsed HTML tree (for XPath queries
// against content) and the raw content text (for Regex queries against
// content).
type Document struct {
	URL     string
	HTML    *html.Node
	Content string
}

// candidates returns doc's representations for source, in the order they
// should be tried: an Evaluator that doesn't accept a given representation
// returns an *errs.Error classified InvalidInput, which ApplyField/evalAny
// treats as "wrong representation, try the next one" rather than a hard
// failure — the caller doesn't need to know whether a given field's
// Evaluator is XPath (wants *html.Node) or Regex (wants string).
func (d Document) candidates(source Source) []interface{} {
	if source == SourceURL {
		return []interface{}{d.URL}
	}
	if d.HTML != nil {
		return []interface{}{d.HTML, d.Content}
	}
	return []interface{}{d.Content}
}

func evalAny(ctx context.Context, doc Document, source Source, ev query.Evaluator, kind query.ResultKind) (query.Result, error) {
	var lastErr error
	for _, candidate := range doc.candidates(source) {
		res, err := ev.Eval(ctx, candidate, kind)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	return query.Result{}, lastErr
}

// FieldSpec is one configured output column (spec.md §4.5 op 4).
type FieldSpec struct {
	Name   string
	Source Source
	Eval   query.Evaluator
	Kind   query.ResultKind

	Delimiter   byte // joins multi-results; 0 defaults to ','
	IgnoreEmpty bool
	JSON        bool // emit as a JSON array instead of a delimited string
	TidyTexts   bool // collapse internal whitespace in each value
	WarnEmpty   bool // log when the query produces no result
}

// ApplyField implements spec.md §4.5 op 4 for one field: evaluate spec's
// query against doc, apply its options, and return the string to store in
// the target table column.
func ApplyField(ctx context.Context, doc Document, spec FieldSpec) (string, error) {
	res, err := evalAny(ctx, doc, spec.Source, spec.Eval, spec.Kind)
	if err != nil {
		return "", err
	}

	values := res.Multi
	if spec.Kind != query.ResultMulti {
		if res.Matched {
			values = []string{res.Single}
		} else {
			values = nil
		}
	}

	if spec.TidyTexts {
		for i, v := range values {
			values[i] = tidy(v)
		}
	}
	if spec.IgnoreEmpty {
		values = filterEmpty(values)
	}

	if len(values) == 0 {
		if spec.WarnEmpty {
			logging.Warn("rowquery: field %q produced no result", spec.Name)
		}
		return "", nil
	}

	if spec.JSON {
		b, err := json.Marshal(values)
		if err != nil {
			return "", errs.Wrap(errs.Internal, "rowquery.ApplyField", err)
		}
		return string(b), nil
	}

	delim := ","
	if spec.Delimiter != 0 {
		delim = string(spec.Delimiter)
	}
	return strings.Join(values, delim), nil
}

func tidy(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func filterEmpty(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ParseDelimiter decodes a configured delimiter string, honoring the
// \n, \t and \\ escapes spec.md §4.5 op 4 names. An empty string means the
// default ",".
func ParseDelimiter(raw string) (byte, error) {
	switch raw {
	case "":
		return ',', nil
	case `\n`:
		return '\n', nil
	case `\t`:
		return '\t', nil
	case `\\`:
		return '\\', nil
	}
	if len(raw) == 1 {
		return raw[0], nil
	}
	return 0, errs.New(errs.InvalidInput, "rowquery.ParseDelimiter", "delimiter must be a single character or one of \\n, \\t, \\\\")
}

// IDQuery is one configured id-extraction query (spec.md §4.5 op 2): a
// query plus the set of extracted values to discard (an operator-declared
// exclusion list, e.g. placeholder ids a site reuses).
type IDQuery struct {
	Eval   query.Evaluator
	Kind   query.ResultKind
	Ignore map[string]bool
}

// ApplyIDQueries implements spec.md §4.5 op 2: try each query against
// content in order, returning the first non-ignored non-empty result. If
// none produce a usable id and idFromURL is non-nil, fall back to running
// it against the URL.
func ApplyIDQueries(ctx context.Context, doc Document, queries []IDQuery, idFromURL query.Evaluator) (string, error) {
	for _, q := range queries {
		res, err := evalAny(ctx, doc, SourceContent, q.Eval, q.Kind)
		if err != nil || !res.Matched {
			continue
		}
		candidate := res.Single
		if candidate == "" && len(res.Multi) > 0 {
			candidate = res.Multi[0]
		}
		if candidate == "" || q.Ignore[candidate] {
			continue
		}
		return candidate, nil
	}

	if idFromURL == nil {
		return "", nil
	}
	res, err := idFromURL.Eval(ctx, doc.URL, query.ResultSingle)
	if err != nil || !res.Matched {
		return "", nil
	}
	return res.Single, nil
}

// DateTimeQuery is one configured datetime-extraction query (spec.md §4.5
// op 3): a query paired with the strptime-style format and locale to parse
// its result with.
type DateTimeQuery struct {
	Eval   query.Evaluator
	Kind   query.ResultKind
	Format string // default "%Y-%m-%d %H:%M:%S"
	Locale string // "" or "en_US" means no translation; see datetime.go
}

// ApplyDateTimeQueries implements spec.md §4.5 op 3: try each query against
// content in order, returning the first one that produces a value parseable
// with its paired format/locale.
func ApplyDateTimeQueries(ctx context.Context, doc Document, queries []DateTimeQuery) (string, bool, error) {
	for _, q := range queries {
		res, evalErr := evalAny(ctx, doc, SourceContent, q.Eval, q.Kind)
		if evalErr != nil || !res.Matched {
			continue
		}
		raw := res.Single
		if raw == "" && len(res.Multi) > 0 {
			raw = res.Multi[0]
		}
		if raw == "" {
			continue
		}

		parsed, parseErr := ParseDateTime(raw, q.Format, q.Locale)
		if parseErr != nil {
			continue
		}
		return parsed.UTC().Format("2006-01-02T15:04:05Z"), true, nil
	}
	return "", false, nil
}
