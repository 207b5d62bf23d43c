package rowquery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crawlserv/crawlserv/query"
)

func TestApplyFieldJoinsMultiWithDelimiter(t *testing.T) {
	re, err := query.NewRegex(`\w+`, false)
	require.NoError(t, err)

	doc := Document{Content: "alpha beta gamma"}
	spec := FieldSpec{Name: "words", Source: SourceContent, Eval: re, Kind: query.ResultMulti, Delimiter: ';'}

	out, err := ApplyField(context.Background(), doc, spec)
	require.NoError(t, err)
	require.Equal(t, "alpha;beta;gamma", out)
}

func TestApplyFieldJSONEncodesArray(t *testing.T) {
	re, err := query.NewRegex(`\w+`, false)
	require.NoError(t, err)

	doc := Document{Content: "a b"}
	spec := FieldSpec{Name: "words", Source: SourceContent, Eval: re, Kind: query.ResultMulti, JSON: true}

	out, err := ApplyField(context.Background(), doc, spec)
	require.NoError(t, err)
	require.JSONEq(t, `["a","b"]`, out)
}

func TestApplyFieldTidyTextsCollapsesWhitespace(t *testing.T) {
	re, err := query.NewRegex(`.+`, false)
	require.NoError(t, err)

	doc := Document{Content: "  messy   \t text  "}
	spec := FieldSpec{Name: "text", Source: SourceContent, Eval: re, Kind: query.ResultSingle, TidyTexts: true}

	out, err := ApplyField(context.Background(), doc, spec)
	require.NoError(t, err)
	require.Equal(t, "messy text", out)
}

func TestApplyFieldFromURLSource(t *testing.T) {
	re, err := query.NewRegex(`\d+`, false)
	require.NoError(t, err)

	doc := Document{URL: "/article/4821"}
	spec := FieldSpec{Name: "id", Source: SourceURL, Eval: re, Kind: query.ResultSingle}

	out, err := ApplyField(context.Background(), doc, spec)
	require.NoError(t, err)
	require.Equal(t, "4821", out)
}

func TestApplyIDQueriesFallsBackToURL(t *testing.T) {
	contentID, err := query.NewRegex(`no-such-pattern-here`, false)
	require.NoError(t, err)
	urlID, err := query.NewRegex(`\d+$`, false)
	require.NoError(t, err)

	doc := Document{URL: "/story/991", Content: "nothing useful"}
	id, err := ApplyIDQueries(context.Background(), doc,
		[]IDQuery{{Eval: contentID, Kind: query.ResultSingle}}, urlID)
	require.NoError(t, err)
	require.Equal(t, "991", id)
}

func TestApplyIDQueriesHonorsIgnoreList(t *testing.T) {
	re, err := query.NewRegex(`\d+`, false)
	require.NoError(t, err)

	doc := Document{Content: "000"}
	id, err := ApplyIDQueries(context.Background(), doc,
		[]IDQuery{{Eval: re, Kind: query.ResultSingle, Ignore: map[string]bool{"000": true}}}, nil)
	require.NoError(t, err)
	require.Equal(t, "", id)
}

func TestApplyDateTimeQueriesDefaultFormat(t *testing.T) {
	re, err := query.NewRegex(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`, false)
	require.NoError(t, err)

	doc := Document{Content: "published 2024-03-05 13:45:00 by staff"}
	out, ok, err := ApplyDateTimeQueries(context.Background(), doc,
		[]DateTimeQuery{{Eval: re, Kind: query.ResultSingle}})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2024-03-05T13:45:00Z", out)
}

func TestApplyDateTimeQueriesLocaleMonthNames(t *testing.T) {
	re, err := query.NewRegex(`\d{1,2}\. \w+ \d{4}`, false)
	require.NoError(t, err)

	doc := Document{Content: "Veröffentlicht am 5. März 2024"}
	out, ok, err := ApplyDateTimeQueries(context.Background(), doc,
		[]DateTimeQuery{{Eval: re, Kind: query.ResultSingle, Format: "%d. %B %Y", Locale: "de_DE"}})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2024-03-05T00:00:00Z", out)
}

func TestParseDelimiterEscapes(t *testing.T) {
	b, err := ParseDelimiter(`\n`)
	require.NoError(t, err)
	require.Equal(t, byte('\n'), b)

	b, err = ParseDelimiter("")
	require.NoError(t, err)
	require.Equal(t, byte(','), b)

	_, err = ParseDelimiter("too-long")
	require.Error(t, err)
}
