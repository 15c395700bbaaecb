// Package document reads the vendor's hierarchical XML export into a tree
// of Level nodes.
//
// The export nests LEVEL elements; each LEVEL carries RECORD children with
// either a HEADING or a styled PARA:
//
//	<LEVEL style-name="Chapter">
//	  <RECORD><HEADING>CHAPTER 1: GENERAL PROVISIONS</HEADING></RECORD>
//	  <LEVEL style-name="Section">
//	    <RECORD><HEADING>SEC. 1.1. TITLE.</HEADING></RECORD>
//	    <LEVEL style-name="Normal Level">
//	      <RECORD><PARA style-name="Normal">...</PARA></RECORD>
//	    </LEVEL>
//	  </LEVEL>
//	</LEVEL>
package document

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
)

// ErrMalformedDocument is returned when the bytes cannot be read as XML even
// after repair.
var ErrMalformedDocument = errors.New("malformed document")

// NormalLevel is the style of levels that only wrap paragraphs.
const NormalLevel = "Normal Level"

// Document is the root element of one exported file. The root element name
// varies between exports, so it is not constrained.
type Document struct {
	Reference Reference `xml:"REFERENCE"`
	Level     *Level    `xml:"LEVEL"`
}

// Reference carries the export's bibliographic data.
type Reference struct {
	Title string `xml:"TITLE"`
}

// HasSections reports whether the file looks like an importable chapter.
func (d *Document) HasSections() bool {
	return d != nil && d.Level != nil && strings.TrimSpace(d.Reference.Title) != ""
}

// Level is one node of the vendor tree.
type Level struct {
	Style   string   `xml:"style-name,attr"`
	Records []Record `xml:"RECORD"`
	Levels  []Level  `xml:"LEVEL"`
}

// Record is a heading or a paragraph wrapper.
type Record struct {
	Heading *Heading `xml:"HEADING"`
	Paras   []Para   `xml:"PARA"`
}

// Heading holds the raw markup of a HEADING element.
type Heading struct {
	Inner string `xml:",innerxml"`
}

// Para is a styled paragraph with its raw inner markup.
type Para struct {
	Style string `xml:"style-name,attr"`
	Inner string `xml:",innerxml"`
}

var (
	lineBreakPattern = regexp.MustCompile(`<LINEBRK\s*/>`)
	tagPattern       = regexp.MustCompile(`<[^>]*>`)
	entityPattern    = regexp.MustCompile(`^&(?:[A-Za-z][A-Za-z0-9]*|#[0-9]+|#x[0-9A-Fa-f]+);`)
)

// XML reconstructs the paragraph element, including its wrapper tag.
func (p Para) XML() string {
	var builder strings.Builder
	builder.WriteString("<PARA")
	if p.Style != "" {
		builder.WriteString(` style-name="`)
		xml.EscapeText(&builder, []byte(p.Style))
		builder.WriteString(`"`)
	}
	builder.WriteString(">")
	builder.WriteString(p.Inner)
	builder.WriteString("</PARA>")
	return builder.String()
}

// Text returns the cleaned heading text. Line breaks become spaces, other
// markup is dropped and entities are decoded.
func (h *Heading) Text() string {
	if h == nil {
		return ""
	}
	text := lineBreakPattern.ReplaceAllString(h.Inner, " ")
	text = tagPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(html.UnescapeString(text))
}

// Heading returns the text of the level's first heading record.
func (l *Level) Heading() string {
	if h := l.headingRecord(); h != nil {
		return h.Text()
	}
	return ""
}

// HasHeading reports whether the level has a heading record.
func (l *Level) HasHeading() bool {
	return l.headingRecord() != nil
}

func (l *Level) headingRecord() *Heading {
	for i := range l.Records {
		if l.Records[i].Heading != nil {
			return l.Records[i].Heading
		}
	}
	return nil
}

// HasLevels reports whether the level has nested levels.
func (l *Level) HasLevels() bool {
	return len(l.Levels) > 0
}

// HasGrandchildren reports whether any nested level itself has nested
// levels, which marks the level as a structure rather than a section.
func (l *Level) HasGrandchildren() bool {
	for i := range l.Levels {
		if l.Levels[i].HasLevels() {
			return true
		}
	}
	return false
}

// Paragraphs returns the first paragraph of every record held by the
// level's nested levels, in document order.
func (l *Level) Paragraphs() []Para {
	var paras []Para
	for i := range l.Levels {
		paras = append(paras, l.Levels[i].ownParagraphs()...)
	}
	return paras
}

// NormalParagraphs returns the paragraphs of nested levels styled as
// "Normal Level", which carry a structure's own text.
func (l *Level) NormalParagraphs() []Para {
	var paras []Para
	for i := range l.Levels {
		if l.Levels[i].Style == NormalLevel {
			paras = append(paras, l.Levels[i].ownParagraphs()...)
		}
	}
	return paras
}

func (l *Level) ownParagraphs() []Para {
	var paras []Para
	for _, record := range l.Records {
		if len(record.Paras) > 0 {
			paras = append(paras, record.Paras[0])
		}
	}
	return paras
}

// Parse reads an exported file. Documents that fail strict decoding are
// repaired (stray control characters and bare ampersands) and decoded
// again in lenient mode.
func Parse(data []byte) (*Document, error) {
	document, err := decode(data, true)
	if err == nil {
		return document, nil
	}

	document, repairErr := decode(repair(data), false)
	if repairErr != nil {
		return nil, fmt.Errorf("%w: %v (after repair: %v)", ErrMalformedDocument, err, repairErr)
	}
	return document, nil
}

func decode(data []byte, strict bool) (*Document, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = charset.NewReaderLabel
	if !strict {
		decoder.Strict = false
		decoder.AutoClose = xml.HTMLAutoClose
		decoder.Entity = xml.HTMLEntity
	}

	document := &Document{}
	if err := decoder.Decode(document); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	if document.Level == nil {
		return nil, fmt.Errorf("failed to parse XML: no LEVEL element")
	}
	return document, nil
}

// repair drops control characters that XML forbids and escapes ampersands
// that do not start an entity.
func repair(data []byte) []byte {
	var buffer bytes.Buffer
	buffer.Grow(len(data))

	for i := 0; i < len(data); i++ {
		c := data[i]
		switch {
		case c < 0x20 && c != '\t' && c != '\n' && c != '\r':
			continue
		case c == '&' && !entityPattern.Match(data[i:]):
			buffer.WriteString("&amp;")
		default:
			buffer.WriteByte(c)
		}
	}
	return buffer.Bytes()
}
