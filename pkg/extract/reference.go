package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// DefaultCitationPattern matches hyphenated code citations such as
// "1-15.1", "15.2-2201" or "46.2-100:1". A trailing period or colon is
// captured and stripped during normalization.
const DefaultCitationPattern = `\b[0-9]+(?:\.[0-9]+)*[A-Za-z]?-[0-9]+[A-Za-z]?(?:[.:][0-9]*[A-Za-z]?)*`

// ReferenceExtractor finds citations of other laws in text.
type ReferenceExtractor struct {
	pattern *regexp.Regexp
}

// NewReferenceExtractor compiles a citation pattern. An empty pattern
// selects DefaultCitationPattern.
func NewReferenceExtractor(pattern string) (*ReferenceExtractor, error) {
	if pattern == "" {
		pattern = DefaultCitationPattern
	}
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid citation pattern: %w", err)
	}
	return &ReferenceExtractor{pattern: compiled}, nil
}

// NewDefaultReferenceExtractor returns an extractor for DefaultCitationPattern.
func NewDefaultReferenceExtractor() *ReferenceExtractor {
	return &ReferenceExtractor{pattern: regexp.MustCompile(DefaultCitationPattern)}
}

// Extract tallies every citation in text. Citations that differ only by
// surrounding whitespace or one trailing period, colon or hyphen share a
// single count.
func (e *ReferenceExtractor) Extract(text string) map[string]int {
	counts := make(map[string]int)
	for _, match := range e.pattern.FindAllString(text, -1) {
		citation := normalizeCitation(match)
		if citation == "" {
			continue
		}
		counts[citation]++
	}
	return counts
}

// First returns the first citation in text, or "" when there is none.
func (e *ReferenceExtractor) First(text string) string {
	return normalizeCitation(e.pattern.FindString(text))
}

// SortedCitations returns the keys of a tally in lexical order.
func SortedCitations(counts map[string]int) []string {
	citations := make([]string, 0, len(counts))
	for citation := range counts {
		citations = append(citations, citation)
	}
	sort.Strings(citations)
	return citations
}

func normalizeCitation(citation string) string {
	citation = strings.TrimSpace(citation)
	if n := len(citation); n > 0 {
		switch citation[n-1] {
		case '.', ':', '-':
			citation = citation[:n-1]
		}
	}
	return citation
}
