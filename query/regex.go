package query

import (
	"context"

	"github.com/dlclark/regexp2"

	"github.com/crawlserv/crawlserv/errs"
)

// Regex evaluates a compiled PCRE-style pattern against a plain string,
// satisfying spec.md §6's Regex contract: "PCRE-style, with compiled
// single-line and multi-line variants; returns boolean, first-match, or
// all non-overlapping matches." RE2 (stdlib regexp) cannot express
// backreferences/lookaround, so this uses dlclark/regexp2.
type Regex struct {
	re *regexp2.Regexp
}

// NewRegex compiles pattern. multiLine toggles regexp2.Multiline so ^/$
// match at line boundaries rather than only string boundaries.
func NewRegex(pattern string, multiLine bool) (*Regex, error) {
	opts := regexp2.None
	if multiLine {
		opts = regexp2.Multiline
	}
	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidInput, "query.NewRegex", err)
	}
	return &Regex{re: re}, nil
}

func (r *Regex) Eval(ctx context.Context, doc interface{}, kind ResultKind) (Result, error) {
	const op = "query.Regex.Eval"

	text, ok := doc.(string)
	if !ok {
		return Result{}, errs.New(errs.InvalidInput, op, "regex evaluation requires a string document")
	}

	switch kind {
	case ResultBool:
		m, err := r.re.FindStringMatch(text)
		if err != nil {
			return Result{}, errs.Wrap(errs.Internal, op, err)
		}
		return Result{Matched: m != nil}, nil

	case ResultSingle:
		m, err := r.re.FindStringMatch(text)
		if err != nil {
			return Result{}, errs.Wrap(errs.Internal, op, err)
		}
		if m == nil {
			return Result{}, nil
		}
		return Result{Matched: true, Single: m.String()}, nil

	case ResultMulti:
		var out []string
		m, err := r.re.FindStringMatch(text)
		if err != nil {
			return Result{}, errs.Wrap(errs.Internal, op, err)
		}
		for m != nil {
			out = append(out, m.String())
			m, err = r.re.FindNextMatch(m)
			if err != nil {
				return Result{}, errs.Wrap(errs.Internal, op, err)
			}
		}
		return Result{Matched: len(out) > 0, Multi: out}, nil

	default:
		return Result{}, errs.New(errs.InvalidInput, op, "unknown ResultKind")
	}
}
