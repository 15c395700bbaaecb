package extract

import (
	"html"
	"regexp"
	"sort"
	"strings"

	nethtml "golang.org/x/net/html"

	"github.com/coolbeans/amlegal/pkg/code"
)

// Phrases announcing the scope of the definitions that follow. Some are
// left-padded with a space to avoid matching inside other words.
var scopeIndicators = []string{
	" are used in this ",
	"when used in this ",
	"for purposes of this ",
	"for the purposes of this ",
	"for the purpose of this ",
	"in this ",
}

// Phrases linking a quoted term to its definition.
var linkingPhrases = []string{
	" mean ",
	" means ",
	" shall include ",
	" includes ",
	" has the same meaning as ",
	" shall be construed ",
	" shall also be construed to mean ",
}

const (
	straightQuote    = `"`
	openDirectional  = "“"
	closeDirectional = "”"
)

var quoteStripper = strings.NewReplacer(straightQuote, "", openDirectional, "", closeDirectional, "")

// DefinedTerm is one term and its accumulated definition text.
type DefinedTerm struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// DefinitionSet is the result of scanning one law for definitions.
type DefinitionSet struct {
	// Scope is a structural label, or code.ScopeGlobal after an override.
	Scope string        `json:"scope"`
	Terms []DefinedTerm `json:"terms"`
}

// Lookup returns the definition stored for term.
func (s *DefinitionSet) Lookup(term string) (string, bool) {
	for _, t := range s.Terms {
		if t.Term == term {
			return t.Definition, true
		}
	}
	return "", false
}

// DefinitionExtractor finds quoted terms and their definitions in a law's
// text and infers the structural scope they apply to.
type DefinitionExtractor struct {
	// labels in vocabulary order, broadest first, leaf last.
	labels []string
	// byLength holds the labels longest first; that is the order they are
	// tested against a scope phrase.
	byLength     []string
	longestLabel int

	termPattern *regexp.Regexp
}

// NewDefinitionExtractor creates an extractor for the given structural
// label vocabulary, ordered from broadest to narrowest.
func NewDefinitionExtractor(labels []string) *DefinitionExtractor {
	if len(labels) == 0 {
		labels = []string{code.ScopeSection}
	}

	byLength := append([]string(nil), labels...)
	sort.SliceStable(byLength, func(i, j int) bool {
		return len(byLength[i]) > len(byLength[j])
	})

	return &DefinitionExtractor{
		labels:       labels,
		byLength:     byLength,
		longestLabel: len(byLength[0]),
		termPattern:  regexp.MustCompile(`["\x{201c}][A-Za-z][A-Za-z,'\s-]*[A-Za-z]["\x{201d}]`),
	}
}

// Extract scans text for definitions. A first non-blank paragraph holding a
// scope indicator is only used to infer the scope. It returns nil when no
// terms are found.
func (e *DefinitionExtractor) Extract(text string) *DefinitionSet {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	// Directional quotes come in pairs but only the closing one is counted.
	unescaped := html.UnescapeString(text)
	straight := strings.Count(unescaped, straightQuote) >= strings.Count(unescaped, closeDirectional)*2
	sample, opening := closeDirectional, openDirectional
	if straight {
		sample, opening = straightQuote, straightQuote
	}

	set := &DefinitionSet{Scope: e.leafLabel()}
	index := make(map[string]int)
	scopeRead := false

	for _, paragraph := range splitParagraphs(text) {
		paragraph = strings.ReplaceAll(paragraph, "</p><p>", " ")
		paragraph = stripMarkup(paragraph)
		if strings.TrimSpace(paragraph) == "" {
			continue
		}

		// The first paragraph is consumed only when it announces a scope;
		// otherwise it may itself be a definition.
		if !scopeRead {
			scopeRead = true
			if scope, ok := e.inferScope(paragraph); ok {
				set.Scope = scope
				continue
			}
		}

		// Defined terms are always quoted.
		if !strings.Contains(paragraph, sample) {
			continue
		}

		for _, phrase := range linkingPhrases {
			if !strings.Contains(paragraph, phrase) {
				continue
			}

			terms := e.terms(paragraph)

			// Definitions may be preceded by a subsection number; start at
			// the first quotation mark.
			if i := strings.Index(paragraph, opening); i >= 0 {
				paragraph = paragraph[i:]
			}
			definition := strings.TrimSpace(paragraph)

			for _, term := range terms {
				if i, ok := index[term]; ok {
					// A term is often defined twice: what it means, then what
					// it does not. Identical repeats add nothing.
					if strings.TrimSpace(set.Terms[i].Definition) != definition {
						set.Terms[i].Definition += " " + definition
					}
					continue
				}
				index[term] = len(set.Terms)
				set.Terms = append(set.Terms, DefinedTerm{Term: term, Definition: definition})
			}
			break
		}
	}

	if len(set.Terms) == 0 {
		return nil
	}
	return set
}

// inferScope looks for a scope indicator and tests the text right after it
// for a structural label. It reports false when the paragraph holds no
// indicator.
func (e *DefinitionExtractor) inferScope(paragraph string) (string, bool) {
	lowered := strings.ToLower(paragraph)

	for _, indicator := range scopeIndicators {
		pos := strings.Index(lowered, indicator)
		if pos < 0 {
			continue
		}

		start := pos + len(indicator)
		end := min(start+e.longestLabel, len(lowered))
		phrase := lowered[start:end]

		for _, label := range e.byLength {
			if strings.Contains(phrase, strings.ToLower(label)) {
				return label, true
			}
		}
		return e.leafLabel(), true
	}

	return e.leafLabel(), false
}

// terms returns the normalized quoted terms of a paragraph, in order.
func (e *DefinitionExtractor) terms(paragraph string) []string {
	var terms []string
	for _, match := range e.termPattern.FindAllString(paragraph, -1) {
		term := strings.TrimSpace(quoteStripper.Replace(match))

		if term == "and" || term == "or" || term == "" {
			continue
		}

		// All-caps terms are acronyms and keep their case.
		if strings.IndexFunc(term, isLowerASCII) >= 0 {
			term = strings.ToLower(term)
		}
		term = strings.TrimSuffix(term, ",")

		terms = append(terms, term)
	}
	return terms
}

func (e *DefinitionExtractor) leafLabel() string {
	return e.labels[len(e.labels)-1]
}

// ScopeSpecificity ranks a scope within the vocabulary: the leaf label is
// 0, broader labels rank higher and code.ScopeGlobal ranks highest. Unknown
// scopes return -1.
func (e *DefinitionExtractor) ScopeSpecificity(scope string) int {
	if scope == code.ScopeGlobal {
		return len(e.labels)
	}
	for i := len(e.labels) - 1; i >= 0; i-- {
		if e.labels[i] == scope {
			return len(e.labels) - 1 - i
		}
	}
	return -1
}

// splitParagraphs splits on canonical paragraph markers when present and on
// line breaks otherwise.
func splitParagraphs(text string) []string {
	if strings.Contains(text, "<p>") {
		return strings.Split(text, "<p>")
	}
	return strings.Split(strings.ReplaceAll(text, "\n", "\r"), "\r")
}

// stripMarkup drops every tag and decodes entities.
func stripMarkup(fragment string) string {
	tokenizer := nethtml.NewTokenizer(strings.NewReader(fragment))
	var builder strings.Builder
	for {
		switch tokenizer.Next() {
		case nethtml.ErrorToken:
			return builder.String()
		case nethtml.TextToken:
			builder.Write(tokenizer.Text())
		}
	}
}

func isLowerASCII(r rune) bool {
	return r >= 'a' && r <= 'z'
}
