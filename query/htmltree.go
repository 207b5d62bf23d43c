package query

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"

	"github.com/crawlserv/crawlserv/errs"
)

// HTMLTree wraps a goquery.Document for the "text-only content" option of
// spec.md §6's parsing contract (the whole-page text or CSS-selector
// matches, not a specific XPath/RegEx result). The module pipelines do not
// use it; the parser's select_content builds documents with ParseHTML.
type HTMLTree struct {
	doc *goquery.Document
}

// ParseTree parses data into an HTMLTree.
func ParseTree(data []byte) (*HTMLTree, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Wrap(errs.InvalidInput, "query.ParseTree", err)
	}
	return &HTMLTree{doc: doc}, nil
}

// Text returns the whole document's text content.
func (t *HTMLTree) Text() string {
	return t.doc.Text()
}

// Select runs a CSS selector and returns the matched elements' text-only
// content, one entry per match — the CSS-selector counterpart to an XPath
// multi-match query.
func (t *HTMLTree) Select(selector string) []string {
	var out []string
	t.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, s.Text())
	})
	return out
}

// SelectHTML is like Select but returns each match's inner HTML rather
// than text-only content, for queries that must preserve markup.
func (t *HTMLTree) SelectHTML(selector string) ([]string, error) {
	var out []string
	var firstErr error
	t.doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		html, err := s.Html()
		if err != nil {
			firstErr = err
			return false
		}
		out = append(out, html)
		return true
	})
	if firstErr != nil {
		return nil, errs.Wrap(errs.Internal, "query.HTMLTree.SelectHTML", firstErr)
	}
	return out, nil
}
