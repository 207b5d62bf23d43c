package query

import (
	"bytes"
	"context"
	"fmt"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"github.com/crawlserv/crawlserv/errs"
)

// XPath evaluates a compiled XPath expression against an *html.Node tree,
// satisfying spec.md §6's "HTML/XML parsing contract" for the
// boolean/first-match/all-matches result shapes.
type XPath struct {
	expr *xpath.Expr
	src  string
}

// NewXPath compiles expr once; the same *XPath is reused across documents.
func NewXPath(expr string) (*XPath, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidInput, "query.NewXPath", err)
	}
	return &XPath{expr: compiled, src: expr}, nil
}

// ParseHTML builds the document type XPath.Eval expects, from raw bytes.
func ParseHTML(data []byte) (*html.Node, error) {
	doc, err := htmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Wrap(errs.InvalidInput, "query.ParseHTML", err)
	}
	return doc, nil
}

func (x *XPath) Eval(ctx context.Context, doc interface{}, kind ResultKind) (Result, error) {
	const op = "query.XPath.Eval"

	node, ok := doc.(*html.Node)
	if !ok {
		return Result{}, errs.New(errs.InvalidInput, op, fmt.Sprintf("xpath %q requires an *html.Node document", x.src))
	}

	switch kind {
	case ResultBool:
		// truthiness only; a node-set result is truthy when non-empty, a
		// scalar result (bool/number/string from functions like boolean()
		// or count(...)>0) is truthy per its own type.
		raw := x.expr.Evaluate(htmlquery.CreateXPathNavigator(node))
		return Result{Matched: truthy(raw)}, nil

	case ResultSingle, ResultMulti:
		nodes, err := htmlquery.QueryAll(node, x.src)
		if err == nil {
			texts := make([]string, len(nodes))
			for i, n := range nodes {
				texts[i] = htmlquery.InnerText(n)
			}
			if kind == ResultSingle {
				if len(texts) == 0 {
					return Result{}, nil
				}
				return Result{Matched: true, Single: texts[0]}, nil
			}
			return Result{Matched: len(texts) > 0, Multi: texts}, nil
		}

		// Not a node-set expression (e.g. a string()/number() function
		// call); fall back to the scalar evaluator.
		raw := x.expr.Evaluate(htmlquery.CreateXPathNavigator(node))
		text, found := scalarText(raw)
		if kind == ResultSingle {
			return Result{Matched: found, Single: text}, nil
		}
		if !found {
			return Result{}, nil
		}
		return Result{Matched: true, Multi: []string{text}}, nil

	default:
		return Result{}, errs.New(errs.InvalidInput, op, "unknown ResultKind")
	}
}

func truthy(raw interface{}) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	case *xpath.NodeIterator:
		return v.MoveNext()
	default:
		return false
	}
}

func scalarText(raw interface{}) (string, bool) {
	switch v := raw.(type) {
	case bool:
		return fmt.Sprintf("%v", v), true
	case float64:
		return fmt.Sprintf("%v", v), true
	case string:
		return v, v != ""
	default:
		return "", false
	}
}
