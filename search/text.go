package search

import "strings"

// Words ignored when checking whether a chunk contains a query verbatim
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "be": {}, "is": {}, "are": {},
	"was": {}, "to": {}, "of": {}, "and": {}, "in": {}, "that": {},
	"have": {}, "it": {}, "for": {}, "not": {}, "on": {}, "with": {},
	"as": {}, "you": {}, "do": {}, "at": {}, "this": {}, "but": {},
	"by": {}, "from": {}, "what": {}, "how": {}, "does": {},
}

// terms lowercases text, trims punctuation and drops stop words.
func terms(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		term := strings.ToLower(strings.Trim(field, ".,!?;:'\"-()[]{}|"))
		if term == "" {
			continue
		}
		if _, stop := stopWords[term]; stop {
			continue
		}
		out = append(out, term)
	}
	return out
}

// containsAllTerms reports whether every significant query term occurs in chunk.
// A query made only of stop words never matches.
func containsAllTerms(chunk, query string) bool {
	want := terms(query)
	if len(want) == 0 {
		return false
	}

	have := make(map[string]struct{})
	for _, term := range terms(chunk) {
		have[term] = struct{}{}
	}
	for _, term := range want {
		if _, ok := have[term]; !ok {
			return false
		}
	}
	return true
}
