package importer

import (
	"errors"
	"reflect"
	"testing"

	"github.com/coolbeans/amlegal/pkg/code"
)

func TestParseSection_Headings(t *testing.T) {
	tests := []struct {
		heading       string
		wantNumber    string
		wantCatchLine string
	}{
		{"SECTION 12.3. Noise restrictions.", "12.3", "Noise restrictions"},
		{"SEC. 1-1. DEFINITIONS.", "1-1", "DEFINITIONS"},
		{"Sec. 2-14. Fees.", "2-14", "Fees"},
		{"[SEC. 3-4. RESERVED.]", "3-4", "RESERVED"},
		{"SECS. 5-1 - 5-9. RESERVED.", "5-1 - 5-9", "RESERVED"},
		{"APPENDIX A. BUILDING FEES", "A", "APPENDIX A. BUILDING FEES"},
	}

	for _, tt := range tests {
		t.Run(tt.heading, func(t *testing.T) {
			session := newTestSession(t, nil)
			doc := parseDocument(t, sectionLevel(tt.heading, para("Normal", "Body.")))

			law, err := session.ParseSection(doc.Level, nil)
			if err != nil {
				t.Fatalf("ParseSection failed: %v", err)
			}
			if law.SectionNumber != tt.wantNumber {
				t.Errorf("SectionNumber = %q, want %q", law.SectionNumber, tt.wantNumber)
			}
			if law.CatchLine != tt.wantCatchLine {
				t.Errorf("CatchLine = %q, want %q", law.CatchLine, tt.wantCatchLine)
			}
		})
	}
}

func TestParseSection_Paragraphs(t *testing.T) {
	session := newTestSession(t, nil)
	doc := parseDocument(t, sectionLevel("SEC. 6-2. DOGS.",
		para("Normal", "Dogs must be licensed."),
		para("Normal", "(a) Every dog over four months old."),
		para("Normal", "(12) Kennels.<TAB tab-count=\"1\"/>Fees apply."),
		para("History", "2010, c. 402"),
		para("History", "2012, c. 7"),
		para("EdNote", "First note."),
		para("EdNote", "Second note."),
	))

	law, err := session.ParseSection(doc.Level, nil)
	if err != nil {
		t.Fatalf("ParseSection failed: %v", err)
	}

	wantText := "<p>Dogs must be licensed.<p>\r\r" +
		"<p>(a) Every dog over four months old.<p>\r\r" +
		"<p>(12) Kennels. Fees apply.<p>\r\r"
	if law.Text != wantText {
		t.Errorf("Text = %q, want %q", law.Text, wantText)
	}
	if law.History != "2010, c. 402; 2012, c. 7" {
		t.Errorf("History = %q", law.History)
	}
	if law.Notes != "Second note." {
		t.Errorf("Notes = %q, want the last note", law.Notes)
	}
	if law.Repealed {
		t.Error("law should not be repealed")
	}

	want := []code.Subsection{
		{Type: SubsectionType, Text: "<p>Dogs must be licensed.<p>"},
		{Type: SubsectionType, PrefixHierarchy: []string{"a"}, Text: "<p>Every dog over four months old.<p>"},
		{Type: SubsectionType, PrefixHierarchy: []string{"12"}, Text: "<p>Kennels. Fees apply.<p>"},
	}
	if !reflect.DeepEqual(law.Subsections, want) {
		t.Errorf("Subsections = %+v, want %+v", law.Subsections, want)
	}
}

// Nested markers are not decomposed into a hierarchy.
func TestParseSection_NestedPrefixKnownLimitation(t *testing.T) {
	session := newTestSession(t, nil)
	doc := parseDocument(t, sectionLevel("SEC. 6-3. CATS.", para("Normal", "(a)(1) Cats.")))

	law, err := session.ParseSection(doc.Level, nil)
	if err != nil {
		t.Fatalf("ParseSection failed: %v", err)
	}
	if len(law.Subsections) != 1 {
		t.Fatalf("expected 1 subsection, got %d", len(law.Subsections))
	}
	if got := law.Subsections[0].PrefixHierarchy; got != nil {
		t.Errorf("PrefixHierarchy = %v, want none for a nested marker", got)
	}
}

func TestParseSection_Repealed(t *testing.T) {
	session := newTestSession(t, nil)
	doc := parseDocument(t, sectionLevel("SEC. 9-9. OLD RULE.",
		para("Section-Deleted", "Repealed by Ord. 5."),
	))

	law, err := session.ParseSection(doc.Level, nil)
	if err != nil {
		t.Fatalf("ParseSection failed: %v", err)
	}
	if law.CatchLine != RepealedCatchLine || !law.Repealed {
		t.Errorf("unexpected law %+v", law)
	}
	if law.Text != "" {
		t.Errorf("deleted paragraph text should be discarded, got %q", law.Text)
	}
}

func TestParseSection_Invalid(t *testing.T) {
	session := newTestSession(t, nil)

	for _, heading := range []string{"Editor's note", "SEC. 4-4."} {
		doc := parseDocument(t, sectionLevel(heading, para("Normal", "Text.")))
		if _, err := session.ParseSection(doc.Level, nil); !errors.Is(err, ErrInvalidSection) {
			t.Errorf("%q: expected ErrInvalidSection, got %v", heading, err)
		}
	}
	if session.sectionCount != 1 {
		t.Errorf("section counter advanced on failure: %d", session.sectionCount)
	}
}

func TestParseSection_CounterSpansFiles(t *testing.T) {
	session := newTestSession(t, nil)

	first := structureLevel("CHAPTER 1: A",
		sectionLevel("SEC. 1-1. ONE.", para("Normal", "x")),
		sectionLevel("SEC. 1-2. TWO.", para("Normal", "x")),
	)
	second := structureLevel("CHAPTER 2: B",
		sectionLevel("SEC. 2-1. THREE.", para("Normal", "x")),
	)
	session.Parse(parseDocument(t, first), "1.xml")
	session.Parse(parseDocument(t, second), "2.xml")

	var keys []string
	for _, law := range session.Laws() {
		keys = append(keys, law.OrderBy)
	}
	if want := []string{"0001", "0002", "0003"}; !reflect.DeepEqual(keys, want) {
		t.Errorf("OrderBy = %v, want %v", keys, want)
	}
}

func TestParseSection_AncestrySnapshot(t *testing.T) {
	session := newTestSession(t, nil)
	parents := ancestry{{Identifier: "1", Label: "Chapter"}}
	doc := parseDocument(t, sectionLevel("SEC. 1-1. ONE.", para("Normal", "x")))

	law, err := session.ParseSection(doc.Level, parents)
	if err != nil {
		t.Fatalf("ParseSection failed: %v", err)
	}
	parents[0].Identifier = "changed"
	if law.Structures[0].Identifier != "1" {
		t.Error("law ancestry should be a copy")
	}
}
