// Package code defines the normalized records produced by importing a
// legal code: structural units, laws, and the data extracted from them.
package code

import "strings"

// ParagraphSeparator is appended after every body paragraph of a law.
const ParagraphSeparator = "\r\r"

// Structure is a structural unit of the code (title, chapter, article,
// appendix). An identifier of "0" is valid; only an empty identifier is absent.
type Structure struct {
	ID         int64              `json:"id,omitempty"`
	Identifier string             `json:"identifier"`
	Name       string             `json:"name,omitempty"`
	Label      string             `json:"label"`
	Depth      int                `json:"depth"`
	OrderBy    string             `json:"order_by"`
	Metadata   *StructureMetadata `json:"metadata,omitempty"`

	// ParentID is zero for top-level structures.
	ParentID int64 `json:"parent_id,omitempty"`
}

// StructureMetadata holds the text harvested from a structure's own
// paragraphs, keyed by paragraph style.
type StructureMetadata struct {
	History string `json:"history,omitempty"`
	Notes   string `json:"notes,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Empty reports whether no paragraph text was collected.
func (m *StructureMetadata) Empty() bool {
	return m == nil || (m.History == "" && m.Notes == "" && m.Text == "")
}

// Subsection is one body paragraph of a law. PrefixHierarchy holds the
// parenthesized marker that opened the paragraph, if any.
type Subsection struct {
	Type            string   `json:"type"`
	PrefixHierarchy []string `json:"prefix_hierarchy,omitempty"`
	Text            string   `json:"text"`
}

// Law is a leaf unit of the code: a section or an appendix entry.
type Law struct {
	ID            int64        `json:"id,omitempty"`
	StructureID   int64        `json:"structure_id,omitempty"`
	SectionNumber string       `json:"section_number"`
	CatchLine     string       `json:"catch_line"`
	Text          string       `json:"text"`
	History       string       `json:"history,omitempty"`
	Notes         string       `json:"notes,omitempty"`
	Repealed      bool         `json:"repealed"`
	OrderBy       string       `json:"order_by"`
	Subsections   []Subsection `json:"subsections,omitempty"`

	// Structures is the ancestry snapshot, outermost first.
	Structures []Structure `json:"structures,omitempty"`
}

// Ancestry returns the structure identifiers from outermost to innermost.
func (l *Law) Ancestry() []string {
	identifiers := make([]string, 0, len(l.Structures))
	for _, s := range l.Structures {
		identifiers = append(identifiers, s.Identifier)
	}
	return identifiers
}

// AncestryPath joins the ancestry identifiers with commas, the form used
// by the global definitions override list.
func (l *Law) AncestryPath() string {
	return strings.Join(l.Ancestry(), ",")
}

// Valid reports whether the law can be persisted.
func (l *Law) Valid() bool {
	return len(l.CatchLine) > 0
}
