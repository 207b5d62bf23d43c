package query

import (
	"context"
	"testing"
)

const fixtureHTML = `<html><body>
<h1 id="title">Hello, World</h1>
<p class="text">first</p>
<p class="text">second</p>
</body></html>`

func TestXPathBoolMatch(t *testing.T) {
	doc, err := ParseHTML([]byte(fixtureHTML))
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	x, err := NewXPath("//h1[@id='title']")
	if err != nil {
		t.Fatalf("NewXPath: %v", err)
	}
	res, err := x.Eval(context.Background(), doc, ResultBool)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !res.Matched {
		t.Error("expected a match")
	}
}

func TestXPathSingleReturnsFirstMatchText(t *testing.T) {
	doc, err := ParseHTML([]byte(fixtureHTML))
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	x, err := NewXPath("//p[@class='text']")
	if err != nil {
		t.Fatalf("NewXPath: %v", err)
	}
	res, err := x.Eval(context.Background(), doc, ResultSingle)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if res.Single != "first" {
		t.Errorf("Single = %q, want %q", res.Single, "first")
	}
}

func TestXPathMultiReturnsAllMatches(t *testing.T) {
	doc, err := ParseHTML([]byte(fixtureHTML))
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	x, err := NewXPath("//p[@class='text']")
	if err != nil {
		t.Fatalf("NewXPath: %v", err)
	}
	res, err := x.Eval(context.Background(), doc, ResultMulti)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if len(res.Multi) != 2 || res.Multi[0] != "first" || res.Multi[1] != "second" {
		t.Errorf("Multi = %v, want [first second]", res.Multi)
	}
}

func TestXPathRejectsWrongDocumentType(t *testing.T) {
	x, err := NewXPath("//p")
	if err != nil {
		t.Fatalf("NewXPath: %v", err)
	}
	if _, err := x.Eval(context.Background(), "not a node", ResultBool); err == nil {
		t.Error("expected an error for a non-*html.Node document")
	}
}

func TestRegexBoolAndSingleAndMulti(t *testing.T) {
	r, err := NewRegex(`\d+`, false)
	if err != nil {
		t.Fatalf("NewRegex: %v", err)
	}
	text := "a1 b22 c333"

	boolRes, err := r.Eval(context.Background(), text, ResultBool)
	if err != nil || !boolRes.Matched {
		t.Fatalf("bool eval: %+v, err=%v", boolRes, err)
	}

	singleRes, err := r.Eval(context.Background(), text, ResultSingle)
	if err != nil || singleRes.Single != "1" {
		t.Fatalf("single eval: %+v, err=%v", singleRes, err)
	}

	multiRes, err := r.Eval(context.Background(), text, ResultMulti)
	if err != nil {
		t.Fatalf("multi eval: %v", err)
	}
	want := []string{"1", "22", "333"}
	if len(multiRes.Multi) != len(want) {
		t.Fatalf("multi eval = %v, want %v", multiRes.Multi, want)
	}
	for i := range want {
		if multiRes.Multi[i] != want[i] {
			t.Errorf("multi[%d] = %q, want %q", i, multiRes.Multi[i], want[i])
		}
	}
}

func TestRegexNoMatch(t *testing.T) {
	r, err := NewRegex(`zzz`, false)
	if err != nil {
		t.Fatalf("NewRegex: %v", err)
	}
	res, err := r.Eval(context.Background(), "abc", ResultSingle)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if res.Matched {
		t.Error("expected no match")
	}
}

func TestHTMLTreeTextAndSelect(t *testing.T) {
	tree, err := ParseTree([]byte(fixtureHTML))
	if err != nil {
		t.Fatalf("ParseTree: %v", err)
	}
	texts := tree.Select("p.text")
	if len(texts) != 2 || texts[0] != "first" || texts[1] != "second" {
		t.Errorf("Select = %v", texts)
	}
}
