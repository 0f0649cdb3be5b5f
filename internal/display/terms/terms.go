// Package terms extracts the literal words and phrases to highlight from a
// search query written in the display DSL (quoted phrases, AND, negation,
// proximity, "in (...)" version restrictions and bracketed ranges).
//
// It only understands the syntax well enough to throw away what is not a
// literal term; it is not a query parser.
package terms

import (
	"regexp"
	"strings"
)

var (
	inVersions     = regexp.MustCompile(`(?i)in \([^)]+\)`)
	rangeRestrict  = regexp.MustCompile(`[+-]\[[^\]]*]`)
	negatedWord    = regexp.MustCompile(`-[a-zA-Z]+`)
	negatedPhrase  = regexp.MustCompile(`-"[^"]+"`)
	proximity      = regexp.MustCompile(`~[0-9]+`)
	parentheses    = regexp.MustCompile(`[()]`)
	quotedPhrase   = regexp.MustCompile(`"[^"]*"`)
	plusMarker     = "#plus#"
	impliesMarker  = "=>"
	andOperator    = " AND "
	plusOperator   = "+"
	typeSeparator  = "="
	leadingQuotes  = "'\""
	trailingQuotes = "'\""
)

// Extract returns the highlight terms for query. The first quoted phrase, if
// any, comes first, followed by the remaining single words in the order they
// appear. Only the first quoted phrase is ever returned as a phrase.
//
// Extract never fails: an empty or malformed query yields an empty slice.
// Bytes that are not valid UTF-8 are dropped.
func Extract(query string) []string {
	terms := make([]string, 0)

	// everything before the first "=" is the search type prefix (t=, s=, ...)
	termBase := strings.ToValidUTF8(query[strings.Index(query, typeSeparator)+1:], "")

	termBase = strings.ReplaceAll(termBase, plusMarker, "")
	termBase = inVersions.ReplaceAllString(termBase, "")
	termBase = strings.Replace(termBase, impliesMarker, " ", 1)

	termBase = rangeRestrict.ReplaceAllString(termBase, "")
	termBase = negatedWord.ReplaceAllString(termBase, "")
	termBase = negatedPhrase.ReplaceAllString(termBase, "")

	termBase = proximity.ReplaceAllString(termBase, "")
	termBase = parentheses.ReplaceAllString(termBase, "")
	termBase = strings.ReplaceAll(termBase, andOperator, " ")
	termBase = strings.ReplaceAll(termBase, plusOperator, " ")

	if loc := quotedPhrase.FindStringIndex(termBase); loc != nil {
		phrase := termBase[loc[0]+1 : loc[1]-1]
		terms = appendTerm(terms, phrase)
		termBase = termBase[:loc[0]] + termBase[loc[1]:]
	}

	for _, word := range strings.Fields(termBase) {
		terms = appendTerm(terms, word)
	}
	return terms
}

// Cleanup removes at most one leading and one trailing quote character
// (' or ").
func Cleanup(term string) string {
	if len(term) > 0 && strings.IndexByte(leadingQuotes, term[0]) >= 0 {
		term = term[1:]
	}
	if len(term) > 0 && strings.IndexByte(trailingQuotes, term[len(term)-1]) >= 0 {
		term = term[:len(term)-1]
	}
	return term
}

func appendTerm(terms []string, raw string) []string {
	term := Cleanup(raw)
	if strings.TrimSpace(term) == "" {
		return terms
	}
	return append(terms, term)
}
