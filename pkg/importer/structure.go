package importer

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/coolbeans/amlegal/pkg/code"
	"github.com/coolbeans/amlegal/pkg/document"
	"github.com/coolbeans/amlegal/pkg/extract"
)

// AppendixIdentifier is the identifier shared by every appendix structure.
const AppendixIdentifier = "appendix"

// Paragraph styles that are not body text.
const (
	StyleHistory        = "History"
	StyleSectionDeleted = "Section-Deleted"
	StyleEdNote         = "EdNote"
)

var (
	// Matches "CHAPTER 12: NOISE", "ARTICLE IV. PERMITS", "CHAPTER 5-A: FOO"
	structurePattern = regexp.MustCompile(`^(?P<type>SEC(?:TION|S\.|\.)|APPENDIX|CHAPTER|ARTICLE)\s+(?P<number>[A-Za-z0-9]+)[:.\-]?\s*(?P<name>.*?)$`)
	// Matches "APPENDICES: Fee Schedule"
	appendixPattern = regexp.MustCompile(`^APPENDICES:\s+(?P<name>.*?)$`)

	labelCaser = cases.Title(language.English)
)

// ParseStructure builds a structure from a level's heading. It returns
// ErrNoStructure when the heading matches neither the structure nor the
// appendix form.
func (s *Session) ParseStructure(level *document.Level, parents ancestry) (*code.Structure, error) {
	heading := level.Heading()

	var structure *code.Structure
	if m := structurePattern.FindStringSubmatch(heading); m != nil {
		number := m[structurePattern.SubexpIndex("number")]
		name := strings.TrimSpace(m[structurePattern.SubexpIndex("name")])
		if name == "" {
			name = heading
		}
		structure = &code.Structure{
			Identifier: number,
			Name:       name,
			Label:      labelCaser.String(strings.ToLower(m[structurePattern.SubexpIndex("type")])),
			OrderBy:    leftPad(number, 4),
		}
	} else if m := appendixPattern.FindStringSubmatch(heading); m != nil {
		structure = &code.Structure{
			Identifier: AppendixIdentifier,
			Name:       m[appendixPattern.SubexpIndex("name")],
			Label:      "Appendix",
			// Appendices sort after every numbered structure.
			OrderBy: "1" + leftPad(fmt.Sprint(s.appendixCount), 3),
		}
		s.appendixCount++
	} else {
		return nil, fmt.Errorf("%w: %q", ErrNoStructure, heading)
	}

	structure.Depth = parents.depth()
	structure.Metadata = s.structureMetadata(level)
	return structure, nil
}

// structureMetadata collects the text of a structure's own "Normal Level"
// paragraphs. Section children are not visited.
func (s *Session) structureMetadata(level *document.Level) *code.StructureMetadata {
	metadata := &code.StructureMetadata{}
	for _, para := range level.NormalParagraphs() {
		text := s.sanitizer.Clean(para.XML())
		switch para.Style {
		case StyleHistory, StyleSectionDeleted:
			metadata.History = appendText(metadata.History, unwrap(text), extract.HistorySeparator)
		case StyleEdNote:
			metadata.Notes = appendText(metadata.Notes, unwrap(text), " ")
		default:
			metadata.Text += text + code.ParagraphSeparator
		}
	}
	if metadata.Empty() {
		return nil
	}
	return metadata
}

// leftPad pads value with leading zeros up to width. Longer values are
// returned unchanged.
func leftPad(value string, width int) string {
	if len(value) >= width {
		return value
	}
	return strings.Repeat("0", width-len(value)) + value
}

// unwrap drops the paragraph markers around a sanitized paragraph.
func unwrap(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "<p>")
	text = strings.TrimSuffix(text, "<p>")
	return strings.TrimSpace(text)
}

func appendText(existing, text, separator string) string {
	switch {
	case text == "":
		return existing
	case existing == "":
		return text
	default:
		return existing + separator + text
	}
}
