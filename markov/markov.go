// Package markov implements the representative algorithmic component
// spec.md §4.6 names: a k-gram text generator that tokenizes a set of text
// corpora, tracks per-k-gram next-token statistics (with wildcard-prefixed
// sentence-start nodes), and samples new sentences from the compiled
// distribution. Grounded on librawr (original_source
// crawlserv/src/_extern/rawr/kgramstats.{h,cpp}, histogram.{h,cpp},
// prefix_search.{h,cpp}), adapted from C++ map/stack idioms to Go slices,
// generics and sort.Search, with math/rand standing in for libc rand() and
// context.Context standing in for the original's isrunning_callback.
package markov

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"unicode"

	"github.com/crawlserv/crawlserv/errs"
)

// Config is a Generator's fixed configuration.
type Config struct {
	// MaxK bounds k-gram order: statistics are built for k = 1..MaxK-1
	// token prefixes, and generation never holds more than MaxK-1 tokens
	// of context (spec.md §4.6's "maximum k").
	MaxK int

	// MinCorpora rejects a generated sentence unless at least this many
	// distinct corpora contributed a uniquely-attributable token to it.
	MinCorpora int

	// Speller is the spell-check contract; nil defaults to NoopSpeller.
	Speller Speller

	// Emoticons is a configured list of emoticon surface forms (spec.md
	// §4.6: "an emoticon (from a configured list file)").
	Emoticons []string

	// Emojis is a configured list of emoji sequences used to build the
	// prefix trie that detects non-whitespace-delimited emoji runs.
	Emojis []string

	// Rand sources all random sampling; nil defaults to a math/rand.Rand
	// seeded with the constant 1, so the sequence is the same on every run.
	Rand *rand.Rand
}

type tokenData struct {
	tok               int
	all, title, upper int
	corpora           map[int]bool
}

type distribution struct {
	cum     []int
	entries []*tokenData
}

// Generator accumulates corpora, compiles k-gram statistics, and samples
// random sentences from them.
type Generator struct {
	cfg Config
	rng *rand.Rand

	corpora []string

	words         map[string]*word
	canonicalForm map[string]string
	hashtags      *word
	hashtagsSeen  map[string]bool
	emoticons     *word
	emoticonSet   map[string]bool
	emojis        *PrefixTrie

	tokens *tokenStore

	maxK     int
	stats    map[string]*distribution
	compiled bool
}

// New returns an empty Generator ready to accept corpora.
func New(cfg Config) *Generator {
	if cfg.Speller == nil {
		cfg.Speller = NoopSpeller{}
	}
	if cfg.MinCorpora < 1 {
		cfg.MinCorpora = 1
	}
	if cfg.MaxK < 2 {
		cfg.MaxK = 2
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	emoticonSet := make(map[string]bool, len(cfg.Emoticons))
	for _, e := range cfg.Emoticons {
		emoticonSet[e] = true
	}
	emojis := NewPrefixTrie()
	for _, e := range cfg.Emojis {
		emojis.Add(e)
	}

	return &Generator{
		cfg:           cfg,
		rng:           rng,
		words:         map[string]*word{},
		canonicalForm: map[string]string{},
		hashtags:      newWord("#hashtag"),
		hashtagsSeen:  map[string]bool{},
		emoticons:     newWord("emoticon"),
		emoticonSet:   emoticonSet,
		emojis:        emojis,
		tokens:        newTokenStore(),
	}
}

// AddCorpus registers one text corpus to be tokenized on the next Compile.
func (g *Generator) AddCorpus(corpus string) {
	g.corpora = append(g.corpora, corpus)
}

// Compile tokenizes every added corpus and builds the k-gram statistics
// RandomSentence samples from. It is O(K*T) in time and space, T being the
// total token count, matching spec.md §4.6's complexity note.
func (g *Generator) Compile(ctx context.Context) error {
	if len(g.corpora) == 0 {
		return errs.New(errs.InvalidInput, "markov.Compile", "no corpora added")
	}

	for _, e := range g.cfg.Emoticons {
		g.emoticons.forms.Add(e)
	}

	tokensByCorpus := make([][]int, len(g.corpora))
	for i, corpus := range g.corpora {
		if err := ctx.Err(); err != nil {
			return errs.Wrap(errs.Transient, "markov.Compile", err)
		}
		var ids []int
		for _, w := range splitWords(corpus) {
			tok := g.tokenizeWord(w)
			ids = append(ids, g.tokens.add(tok))
		}
		tokensByCorpus[i] = ids
	}

	for _, w := range g.words {
		w.forms.Compile()
		w.terms.Compile()
	}
	for h := range g.hashtagsSeen {
		g.hashtags.forms.Add(h)
	}
	g.hashtags.forms.Compile()
	g.hashtags.terms.Compile()
	g.emoticons.forms.Compile()
	g.emoticons.terms.Compile()

	raw := map[string]map[int]*tokenData{}
	record := func(prefix kgram, nextID int, corpID int) {
		key := prefix.key()
		m, ok := raw[key]
		if !ok {
			m = map[int]*tokenData{}
			raw[key] = m
		}
		td, ok := m[nextID]
		if !ok {
			td = &tokenData{tok: nextID, corpora: map[int]bool{}}
			m[nextID] = td
		}
		td.all++
		td.corpora[corpID] = true

		next := g.tokens.get(nextID)
		if allUpper(next.raw) {
			td.upper++
		} else if firstIsUpper(next.raw) {
			td.title++
		}
	}

	for corpID, ids := range tokensByCorpus {
		if err := ctx.Err(); err != nil {
			return errs.Wrap(errs.Transient, "markov.Compile", err)
		}
		for k := 1; k < g.cfg.MaxK; k++ {
			for i := 0; i+k < len(ids); i++ {
				prefix := make(kgram, k)
				for j := 0; j < k; j++ {
					prefix[j] = gramQuery{tok: ids[i+j]}
				}
				nextID := ids[i+k]
				record(prefix, nextID, corpID)

				startTok := g.tokens.get(prefix[0].tok)
				if startTok.suffix == suffixTerminating {
					record(prefix.withWildcardHead(), nextID, corpID)
				}
			}
		}
	}

	g.stats = map[string]*distribution{}
	for key, m := range raw {
		ids := make([]int, 0, len(m))
		for id := range m {
			ids = append(ids, id)
		}
		sort.Ints(ids)

		dist := &distribution{}
		total := 0
		for _, id := range ids {
			td := m[id]
			total += td.all
			dist.cum = append(dist.cum, total)
			dist.entries = append(dist.entries, td)
		}
		g.stats[key] = dist
	}

	g.maxK = g.cfg.MaxK
	g.compiled = true
	return nil
}

func allUpper(s string) bool {
	seenLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			seenLetter = true
		}
	}
	return seenLetter
}

func firstIsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}

// RandomSentence generates one sentence, sampling from the compiled k-gram
// distribution (spec.md §4.6's random_sentence). It returns "" if Compile
// has not been called.
func (g *Generator) RandomSentence(maxLen int) string {
	if !g.compiled {
		return ""
	}
	return g.randomSentence(maxLen)
}

func (g *Generator) randomSentence(maxLen int) string {
	result := ""
	cur := kgram{wildcardQuery}
	cuts := 0
	var openDelims []parenType
	usedCorpora := map[int]bool{}

	for {
		if len(cur) == g.maxK {
			cur = cur.dropHead()
		}
		for len(cur) > 2 && cuts > 0 && g.rng.Intn(cuts) > 0 {
			cur = cur.dropHead()
			cuts--
		}

		dist, ok := g.stats[cur.key()]
		if !ok {
			// the tail of a corpus can produce a context with no recorded
			// continuation; fall back to a fresh sentence start.
			cur = kgram{wildcardQuery}
			dist = g.stats[cur.key()]
		}

		max := dist.cum[len(dist.cum)-1]
		r := g.rng.Intn(max)
		idx := sort.Search(len(dist.cum), func(i int) bool { return dist.cum[i] > r })
		next := dist.entries[idx]
		interned := g.tokens.get(next.tok)

		nextToken := interned.w.forms.Next(g.rng)

		casing := g.rng.Intn(next.all)
		switch {
		case casing < next.upper:
			nextToken = strings.ToUpper(nextToken)
		default:
			capitalize := false
			if casing-next.upper < next.title {
				capitalize = true
			} else if cur[len(cur)-1].wildcard {
				capitalize = g.rng.Intn(2) > 0
			} else {
				lastTok := g.tokens.get(cur[len(cur)-1].tok)
				if lastTok.suffix == suffixTerminating && g.rng.Intn(2) > 0 {
					capitalize = true
				}
			}
			if capitalize {
				nextToken = capitalizeFirst(nextToken)
			}
		}

		nextToken, openDelims, result = applyDelimiters(nextToken, interned.delimiters, openDelims, result)

		switch interned.suffix {
		case suffixTerminating:
			term := interned.w.terms.Next(g.rng)
			nextToken += term.form
			if term.newline {
				nextToken += "\n"
			} else {
				nextToken += " "
			}
		case suffixComma:
			nextToken += ", "
		default:
			nextToken += " "
		}

		if next.all == max {
			cuts++
		} else if cuts > 0 {
			cuts /= 2
		}

		if len(next.corpora) == 1 {
			for id := range next.corpora {
				usedCorpora[id] = true
			}
		}

		cur = append(cur, gramQuery{tok: next.tok})
		result += nextToken

		if interned.suffix == suffixTerminating && (len(result) > maxLen || g.rng.Intn(4) == 0) {
			break
		}
	}

	if len(usedCorpora) < g.cfg.MinCorpora {
		return g.randomSentence(maxLen)
	}

	result = strings.TrimRight(result, " \n")

	for i := len(openDelims) - 1; i >= 0; i-- {
		result += closeRune(openDelims[i])
	}

	return result
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// applyDelimiters re-emits the delimiters interned on a token around
// nextToken, pushing/popping openDelims as needed and prepending a
// balancing opener to result when a closer has no matching opener on the
// stack. Grounded on rawr's randomSentence delimiter-replay loop.
func applyDelimiters(nextToken string, delims map[delimKey]int, stack []parenType, result string) (string, []parenType, string) {
	keys := make([]delimKey, 0, len(delims))
	for k := range delims {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].kind != keys[j].kind {
			return keys[i].kind < keys[j].kind
		}
		return keys[i].status < keys[j].status
	})

	for _, k := range keys {
		n := delims[k]
		switch k.status {
		case dsBoth:
			nextToken = strings.Repeat(openRune(k.kind), n) + nextToken + strings.Repeat(closeRune(k.kind), n)
		case dsOpening:
			for i := 0; i < n; i++ {
				stack = append(stack, k.kind)
			}
			nextToken = strings.Repeat(openRune(k.kind), n) + nextToken
		case dsClosing:
			for i := 0; i < n; i++ {
				for len(stack) > 0 && stack[len(stack)-1] != k.kind {
					nextToken += closeRune(stack[len(stack)-1])
					stack = stack[:len(stack)-1]
				}
				if len(stack) == 0 {
					result = openRune(k.kind) + result
				} else {
					stack = stack[:len(stack)-1]
				}
				nextToken += closeRune(k.kind)
			}
		}
	}
	return nextToken, stack, result
}

func openRune(p parenType) string {
	switch p {
	case parenParen:
		return "("
	case parenSquare:
		return "["
	case parenAsterisk:
		return "*"
	case parenQuote:
		return "\""
	}
	return ""
}

func closeRune(p parenType) string {
	switch p {
	case parenParen:
		return ")"
	case parenSquare:
		return "]"
	case parenAsterisk:
		return "*"
	case parenQuote:
		return "\""
	}
	return ""
}
