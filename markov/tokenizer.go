package markov

import (
	"strings"
	"unicode"
)

const (
	leadingDelimRunes  = `"([*`
	trailingStripRunes = "\")]*.,?!\n;:"
	terminatorRunes    = ".,?!;:"
)

// splitWords splits corpus on runs of whitespace, keeping track of whether
// each word was immediately followed by a newline rather than a space or
// end of input (spec.md §4.6 distinguishes a newline terminator from a
// plain one). Grounded on kgramstats.cpp's find_first_of(" \n", start) scan,
// adapted to operate over runes so multi-byte UTF-8 content (emoji, accented
// locale text) never gets split mid-rune.
func splitWords(corpus string) []string {
	runes := []rune(corpus)
	n := len(runes)
	var out []string

	i := 0
	for i < n {
		for i < n && (runes[i] == ' ' || runes[i] == '\n') {
			i++
		}
		if i >= n {
			break
		}
		start := i
		for i < n && runes[i] != ' ' && runes[i] != '\n' {
			i++
		}
		word := string(runes[start:i])
		if word == "." {
			continue
		}
		if i < n && runes[i] == '\n' {
			word += "\n"
		}
		out = append(out, word)
	}
	return out
}

// tokenizeWord decomposes one whitespace-split word into its word-canon
// assignment plus leading delimiters and terminator suffix, following
// spec.md §4.6's tokenization rules exactly (paraphrased from
// kgramstats.cpp's per-token loop). raw is the surface form including any
// trailing newline splitWords attached. Hashtags are detected by their
// leading '#', emoticons by g.emoticonSet and emoji sequences by the
// g.emojis prefix trie.
func (g *Generator) tokenizeWord(raw string) *token {
	r := []rune(raw)

	emojiLen := g.emojis.Match(string(r))
	isEmoji := emojiLen > 0

	canonSrc := strings.ToLower(raw)
	canon := strings.TrimLeft(canonSrc, leadingDelimRunes)
	canon = strings.TrimRight(canon, trailingStripRunes)

	var w *word
	switch {
	case strings.HasPrefix(canon, "#"):
		g.hashtagsSeen[canon] = true
		w = g.hashtags
	case g.emoticonSet[strings.TrimRight(raw, "\n")]:
		w = g.emoticons
	case isEmoji:
		g.emoticons.forms.Add(canon)
		w = g.emoticons
	default:
		w = g.resolveWord(canon)
	}

	tok := &token{w: w, delimiters: map[delimKey]int{}, raw: raw}

	// Leading delimiters: consume while the next rune is one of *(["
	i := 0
	for i < len(r) {
		pt, ok := openingParenType(r[i])
		if !ok {
			break
		}
		tok.delimiters[delimKey{pt, dsOpening}]++
		i++
	}

	backtrack := lastIndexNotOf(r, trailingStripRunes) + 1
	if backtrack != len(r) {
		ending := r[backtrack:]
		var suffix strings.Builder
		newline := false
		terminating := false

		for _, c := range ending {
			switch {
			case strings.ContainsRune(terminatorRunes, c):
				suffix.WriteRune(c)
				terminating = true
			case c == '\n':
				newline = true
				terminating = true
			default:
				pt, ok := closingParenType(c)
				if !ok {
					continue
				}
				if tok.delimiters[delimKey{pt, dsOpening}] > 0 {
					tok.delimiters[delimKey{pt, dsOpening}]--
					tok.delimiters[delimKey{pt, dsBoth}]++
				} else {
					tok.delimiters[delimKey{pt, dsClosing}]++
				}
			}
		}

		if terminating {
			form := suffix.String()
			if form == "," && !newline {
				tok.suffix = suffixComma
			} else {
				tok.suffix = suffixTerminating
				if !newline {
					w.terms.Add(terminator{form: form})
				} else {
					w.terms.Add(terminator{form: "."})
				}
			}
		}
	}

	return tok
}

func openingParenType(c rune) (parenType, bool) {
	switch c {
	case '*':
		return parenAsterisk, true
	case '[':
		return parenSquare, true
	case '(':
		return parenParen, true
	case '"':
		return parenQuote, true
	}
	return 0, false
}

func closingParenType(c rune) (parenType, bool) {
	switch c {
	case ']':
		return parenSquare, true
	case ')':
		return parenParen, true
	case '*':
		return parenAsterisk, true
	case '"':
		return parenQuote, true
	}
	return 0, false
}

// lastIndexNotOf returns the rune index of the last rune in r not contained
// in cutset, or -1 if every rune is in cutset.
func lastIndexNotOf(r []rune, cutset string) int {
	for i := len(r) - 1; i >= 0; i-- {
		if !strings.ContainsRune(cutset, r[i]) {
			return i
		}
	}
	return -1
}

// resolveWord maps a canonical form to its word, spell-correcting it (when
// a Speller other than NoopSpeller is configured and the canonical form
// contains at least one letter) and recording the surface occurrence in the
// resulting word's forms histogram. Grounded on kgramstats.cpp's
// canonical_form/words bookkeeping.
func (g *Generator) resolveWord(canon string) *word {
	replacement, ok := g.canonicalForm[canon]
	if !ok {
		replacement = canon
		if hasLetter(canon) {
			if !g.cfg.Speller.Check(canon) {
				if suggestion, ok := g.cfg.Speller.Suggest(canon); ok && suggestion != "" {
					replacement = suggestion
				}
			}
		}
		g.canonicalForm[canon] = replacement
	}

	w, ok := g.words[replacement]
	if !ok {
		w = newWord(replacement)
		g.words[replacement] = w
	}
	w.forms.Add(canon)
	return w
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
