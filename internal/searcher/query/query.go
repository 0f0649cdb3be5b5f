// Package query classifies a search DSL string by its type prefix and splits
// off the version list, original-word filter and range restrictions.
package query

import (
	"regexp"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/errors"
)

// Type is the kind of search a query asks for.
type Type int

const (
	TypeUnspecified Type = iota
	TypeText
	TypeSubject
	TypeOriginalMeaning
	TypeOriginalTranslatedAs
	TypeOriginalGreekExact
	TypeOriginalGreekRelated
	TypeOriginalGreekForms
	TypeOriginalHebrewExact
	TypeOriginalHebrewRelated
	TypeOriginalHebrewForms
	TypeTimelineDescription
	TypeTimelineReference
)

var typeNames = map[Type]string{
	TypeUnspecified:           "unspecified",
	TypeText:                  "text",
	TypeSubject:               "subject",
	TypeOriginalMeaning:       "original_meaning",
	TypeOriginalTranslatedAs:  "original_translated_as",
	TypeOriginalGreekExact:    "original_greek_exact",
	TypeOriginalGreekRelated:  "original_greek_related",
	TypeOriginalGreekForms:    "original_greek_forms",
	TypeOriginalHebrewExact:   "original_hebrew_exact",
	TypeOriginalHebrewRelated: "original_hebrew_related",
	TypeOriginalHebrewForms:   "original_hebrew_forms",
	TypeTimelineDescription:   "timeline_description",
	TypeTimelineReference:     "timeline_reference",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsOriginal reports whether t searches original-language words.
func (t Type) IsOriginal() bool {
	return t >= TypeOriginalMeaning && t <= TypeOriginalHebrewForms
}

const (
	prefixText                = "t="
	prefixSubject             = "s="
	prefixOriginal            = "o"
	prefixTimelineDescription = "d="
	prefixTimelineReference   = "dr="

	relatedWords = '~'
	similarForms = '*'

	headingField = "heading"
)

var (
	inVersions     = regexp.MustCompile(`(?i)in ?\(([^)]+)\)$`)
	versionSep     = regexp.MustCompile(`[, ]+`)
	mainRange      = regexp.MustCompile(`(\+\[[^\]]+\])`)
	subRange       = regexp.MustCompile(`\{([^}]+)\}`)
	originalFilter = regexp.MustCompile(` where original is \(([^)]+)\)`)
)

// Search is one classified query.
type Search struct {
	Type     Type     `json:"type"`
	Query    string   `json:"query"`
	Versions []string `json:"versions"`
	// SubRange and MainRange restrict original-word searches. MainRange keeps
	// its "+[...]" delimiters.
	SubRange       string   `json:"sub_range,omitempty"`
	MainRange      string   `json:"main_range,omitempty"`
	OriginalFilter []string `json:"original_filter,omitempty"`
}

// Parse classifies raw. Unprefixed queries are text searches. Every query
// must end with an "in (versions)" clause and leave a non-blank query once
// its clauses are removed.
func Parse(raw string) (*Search, error) {
	s := &Search{}
	var err error
	switch {
	case strings.HasPrefix(raw, prefixText):
		s.Type = TypeText
		err = s.matchVersions(raw[len(prefixText):])
	case strings.HasPrefix(raw, prefixSubject):
		err = s.parseSubject(raw[len(prefixSubject):])
	case strings.HasPrefix(raw, prefixOriginal):
		err = s.parseOriginal(raw[len(prefixOriginal):])
	case strings.HasPrefix(raw, prefixTimelineDescription):
		s.Type = TypeTimelineDescription
		err = s.matchVersions(raw[len(prefixTimelineDescription):])
	case strings.HasPrefix(raw, prefixTimelineReference):
		s.Type = TypeTimelineReference
		err = s.matchVersions(raw[len(prefixTimelineReference):])
	default:
		s.Type = TypeText
		err = s.matchVersions(raw)
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.Query) == "" {
		return nil, apperrors.Invalid("unable to search, the query %q is blank", raw)
	}
	return s, nil
}

func (s *Search) matchVersions(text string) error {
	loc := inVersions.FindStringSubmatchIndex(text)
	if loc == nil {
		return apperrors.Invalid("unable to find the versions of query %q", text)
	}
	group := text[loc[2]:loc[3]]
	for _, v := range versionSep.Split(group, -1) {
		if v = strings.TrimSpace(v); v != "" {
			s.Versions = append(s.Versions, v)
		}
	}
	// the character before "in" is the separating space
	s.Query = strings.TrimSpace(text[:max(loc[0]-1, 0)])
	return nil
}

func (s *Search) parseSubject(text string) error {
	if err := s.matchVersions(text); err != nil {
		return err
	}
	keys := strings.Fields(s.Query)
	clauses := make([]string, len(keys))
	for i, key := range keys {
		clauses[i] = headingField + ":" + key
	}
	s.Type = TypeSubject
	s.Query = strings.Join(clauses, " AND ")
	return nil
}

// parseOriginal handles "o" followed by a kind letter, an optional ~ or *
// modifier, and "=".
func (s *Search) parseOriginal(text string) error {
	if len(text) < 2 {
		return apperrors.Invalid("unsupported original-word search o%s", text)
	}
	length := 1
	specifier := text[1]
	switch text[0] {
	case 'm':
		s.Type = TypeOriginalMeaning
	case 't':
		s.Type = TypeOriginalTranslatedAs
	case 'g':
		s.Type, length = modified(specifier, TypeOriginalGreekExact, TypeOriginalGreekRelated, TypeOriginalGreekForms)
	case 'h':
		s.Type, length = modified(specifier, TypeOriginalHebrewExact, TypeOriginalHebrewRelated, TypeOriginalHebrewForms)
	case 'f':
		s.Type = TypeUnspecified
	default:
		return apperrors.Invalid("unsupported original-word search o%s", text)
	}
	if length+1 > len(text) {
		return apperrors.Invalid("unsupported original-word search o%s", text)
	}

	s.Query = text[length+1:]
	if filter, ok := s.takeFirstGroup(originalFilter); ok && filter != "" {
		s.OriginalFilter = strings.Split(filter, ",")
	}
	if err := s.matchVersions(s.Query); err != nil {
		return err
	}
	s.SubRange, _ = s.takeFirstGroup(subRange)
	s.MainRange, _ = s.takeFirstGroup(mainRange)
	return nil
}

func modified(specifier byte, exact, related, forms Type) (Type, int) {
	switch specifier {
	case relatedWords:
		return related, 2
	case similarForms:
		return forms, 2
	default:
		return exact, 1
	}
}

// takeFirstGroup removes every occurrence of the pattern's first match from
// the query and returns its trimmed first group.
func (s *Search) takeFirstGroup(re *regexp.Regexp) (string, bool) {
	m := re.FindStringSubmatch(s.Query)
	if m == nil {
		return "", false
	}
	s.Query = strings.TrimSpace(strings.ReplaceAll(s.Query, m[0], ""))
	return strings.TrimSpace(m[1]), true
}
