package extract

import (
	"regexp"
	"strings"

	"github.com/coolbeans/amlegal/pkg/code"
)

// HistorySeparator divides the entries of a history string.
const HistorySeparator = "; "

// HistoryExtractor turns amendment history strings into structured events.
type HistoryExtractor struct {
	// Matches "2010, c. 402, § 1-15.1"
	singlePattern *regexp.Regexp
	// Matches "2009, cc. 401, 518, 726, § 2.1-350.2"
	multiplePattern *regexp.Regexp

	references *ReferenceExtractor
}

// NewHistoryExtractor creates a HistoryExtractor that locates section
// citations with the given reference extractor.
func NewHistoryExtractor(references *ReferenceExtractor) *HistoryExtractor {
	if references == nil {
		references = NewDefaultReferenceExtractor()
	}
	return &HistoryExtractor{
		singlePattern:   regexp.MustCompile(`([0-9]{4}), c\. ([0-9]+)(.*)`),
		multiplePattern: regexp.MustCompile(`([0-9]{2,4}), cc\. ([0-9,\s]+)`),
		references:      references,
	}
}

// Extract parses each "; "-separated entry of history. Entries that match
// neither the single-chapter nor the multiple-chapter form are ignored.
func (e *HistoryExtractor) Extract(history string) []code.HistoryEvent {
	if strings.TrimSpace(history) == "" {
		return nil
	}

	var events []code.HistoryEvent
	for _, entry := range strings.Split(history, HistorySeparator) {
		if event, ok := e.parseEntry(entry); ok {
			events = append(events, event)
		}
	}
	return events
}

func (e *HistoryExtractor) parseEntry(entry string) (code.HistoryEvent, bool) {
	if m := e.singlePattern.FindStringSubmatch(entry); m != nil {
		event := code.HistoryEvent{
			Year:     m[1],
			Chapters: []string{strings.TrimSpace(m[2])},
		}
		if m[3] != "" {
			event.Section = e.references.First(m[3])
		}
		return event, true
	}

	if m := e.multiplePattern.FindStringSubmatch(entry); m != nil {
		listing := strings.TrimRight(strings.TrimSpace(m[2]), ",")

		// Split on bare commas; histories often drop the space after one.
		var chapters []string
		for _, chapter := range strings.Split(listing, ",") {
			if chapter = strings.TrimSpace(chapter); chapter != "" {
				chapters = append(chapters, chapter)
			}
		}

		return code.HistoryEvent{
			Year:     m[1],
			Chapters: chapters,
			Section:  e.references.First(entry),
		}, true
	}

	return code.HistoryEvent{}, false
}
