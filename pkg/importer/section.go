package importer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/coolbeans/amlegal/pkg/code"
	"github.com/coolbeans/amlegal/pkg/document"
	"github.com/coolbeans/amlegal/pkg/extract"
)

// RepealedCatchLine replaces the catch line of a deleted section.
const RepealedCatchLine = "[REPEALED]"

// SubsectionType is the text type of every body paragraph.
const SubsectionType = "section"

var (
	// Matches "SECTION 12.3. Noise restrictions.", "[SEC. 2-1 - 2-4. RESERVED.]"
	sectionPattern = regexp.MustCompile(`(?i)^\[?(?P<type>SEC(?:TION|S\.|\.)|APPENDIX|ARTICLE)\s+(?P<number>[0-9A-Z]+[0-9A-Za-z_.\-]*(?:.?\s-\s[0-9]+[0-9A-Za-z.\-]*)?)\.?\s*(?:-\s*)?(?P<catch_line>.*?)\.?\]?$`)

	// Matches the "(a) " marker opening a subsection. Nested markers such
	// as "(a)(1)" are not decomposed and yield no prefix.
	prefixPattern = regexp.MustCompile(`^<p>\s*\(([a-zA-Z0-9]{1,3})\) `)
)

// ParseSection builds a law from a section-shaped level. It returns
// ErrInvalidSection when no catch line can be read from the heading.
func (s *Session) ParseSection(level *document.Level, parents ancestry) (*code.Law, error) {
	heading := level.Heading()

	m := sectionPattern.FindStringSubmatch(heading)
	if m == nil {
		return nil, fmt.Errorf("%w: heading %q", ErrInvalidSection, heading)
	}

	law := &code.Law{
		SectionNumber: strings.TrimSuffix(m[sectionPattern.SubexpIndex("number")], "."),
		CatchLine:     m[sectionPattern.SubexpIndex("catch_line")],
		Structures:    append([]code.Structure(nil), parents...),
	}
	if strings.EqualFold(m[sectionPattern.SubexpIndex("type")], "APPENDIX") {
		law.CatchLine = m[0]
	}

	var text strings.Builder
	for _, para := range level.Paragraphs() {
		switch para.Style {
		case StyleHistory:
			law.History = appendText(law.History, unwrap(s.sanitizer.Clean(para.XML())), extract.HistorySeparator)

		case StyleSectionDeleted:
			law.CatchLine = RepealedCatchLine
			law.Repealed = true

		case StyleEdNote:
			law.Notes = unwrap(s.sanitizer.Clean(para.XML()))

		default:
			cleaned := s.sanitizer.Clean(para.XML())
			text.WriteString(cleaned)
			text.WriteString(code.ParagraphSeparator)

			subsection := code.Subsection{Type: SubsectionType, Text: cleaned}
			if marker := prefixPattern.FindStringSubmatch(cleaned); marker != nil {
				subsection.PrefixHierarchy = []string{marker[1]}
				subsection.Text = strings.Replace(cleaned, marker[0], "<p>", 1)
			}
			law.Subsections = append(law.Subsections, subsection)
		}
	}
	law.Text = text.String()

	if !law.Valid() {
		return nil, fmt.Errorf("%w: no catch line in %q", ErrInvalidSection, heading)
	}

	law.OrderBy = leftPad(fmt.Sprint(s.sectionCount), 4)
	s.sectionCount++
	return law, nil
}
