package markov

import (
	"fmt"
	"sort"
	"strings"
)

// parenType names the four delimiter kinds spec.md §4.6 tokenization
// distinguishes (paren, square-bracket, asterisk, quote).
type parenType int

const (
	parenParen parenType = iota
	parenSquare
	parenAsterisk
	parenQuote
)

// doubleStatus classifies one occurrence of a delimiter kind on a token as
// an opener, a closer, or a balanced pair wrapping the whole token.
type doubleStatus int

const (
	dsOpening doubleStatus = iota
	dsClosing
	dsBoth
)

type delimKey struct {
	kind   parenType
	status doubleStatus
}

// suffixType classifies the terminator suffix, if any, a token carries.
type suffixType int

const (
	suffixNone suffixType = iota
	suffixTerminating
	suffixComma
)

// terminator is one observed terminator form (spec.md §4.6: "one or more of
// .,?!;: or a newline, with , treated specially").
type terminator struct {
	form    string
	newline bool
}

// word is one canonical wordform. Every surface variant spell-checking (or
// casing) normalizes to the same canon shares one frequency histogram of
// surface forms and one histogram of the terminator punctuation observed
// immediately after it, so generation can re-sample a realistic surface and
// a realistic terminator independently of which k-gram selected the word.
type word struct {
	canon string
	forms *Histogram[string]
	terms *Histogram[terminator]
}

func newWord(canon string) *word {
	return &word{canon: canon, forms: NewHistogram[string](), terms: NewHistogram[terminator]()}
}

// token is one interned occurrence shape: a word plus the delimiters and
// terminator suffix that surrounded a particular surface occurrence.
// Occurrences sharing the same (word, delimiters, suffix) intern to the same
// id so k-gram statistics aggregate correctly across repeated occurrences.
type token struct {
	w          *word
	delimiters map[delimKey]int
	suffix     suffixType
	raw        string
}

// key returns a deterministic encoding of token's identity, used by
// tokenStore to intern repeated occurrences to the same id.
func (t *token) key() string {
	var b strings.Builder
	b.WriteString(t.w.canon)
	b.WriteByte('\x00')

	kinds := make([]delimKey, 0, len(t.delimiters))
	for k := range t.delimiters {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if kinds[i].kind != kinds[j].kind {
			return kinds[i].kind < kinds[j].kind
		}
		return kinds[i].status < kinds[j].status
	})
	for _, k := range kinds {
		fmt.Fprintf(&b, "%d:%d:%d,", k.kind, k.status, t.delimiters[k])
	}
	b.WriteByte('\x00')
	fmt.Fprintf(&b, "%d", t.suffix)
	return b.String()
}

// tokenStore interns tokens to small integer ids, grounded on rawr's
// identifier<T> (original_source identifier.h).
type tokenStore struct {
	ids  map[string]int
	uniq []*token
}

func newTokenStore() *tokenStore {
	return &tokenStore{ids: map[string]int{}}
}

func (s *tokenStore) add(t *token) int {
	key := t.key()
	if id, ok := s.ids[key]; ok {
		return id
	}
	id := len(s.uniq)
	s.ids[key] = id
	s.uniq = append(s.uniq, t)
	return id
}

func (s *tokenStore) get(id int) *token {
	return s.uniq[id]
}
