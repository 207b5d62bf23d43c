package markov

import (
	"strconv"
	"strings"
)

// gramQuery is one position in a kgram: either a literal interned token id,
// or the wildcard "sentence start" marker spec.md §4.6 records whenever a
// kgram's first token carries a terminator, so sentence starts can be
// sampled independently of the preceding sentence's content.
type gramQuery struct {
	wildcard bool
	tok      int
}

var wildcardQuery = gramQuery{wildcard: true}

func (q gramQuery) encode() string {
	if q.wildcard {
		return "#"
	}
	return strconv.Itoa(q.tok)
}

// kgram is a short window of tokens (or a wildcard head) used both as the
// conditioning context for generation and as the map key k-gram statistics
// are aggregated under.
type kgram []gramQuery

func (k kgram) key() string {
	parts := make([]string, len(k))
	for i, q := range k {
		parts[i] = q.encode()
	}
	return strings.Join(parts, ",")
}

// withWildcardHead returns a copy of k with its first element replaced by
// the wildcard marker (spec.md §4.6's "wildcard-prefixed kgram").
func (k kgram) withWildcardHead() kgram {
	out := make(kgram, len(k))
	copy(out, k)
	out[0] = wildcardQuery
	return out
}

// dropHead returns k without its first element.
func (k kgram) dropHead() kgram {
	return append(kgram{}, k[1:]...)
}
