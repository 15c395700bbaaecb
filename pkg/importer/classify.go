package importer

import (
	"errors"

	"github.com/coolbeans/amlegal/pkg/code"
	"github.com/coolbeans/amlegal/pkg/document"
)

// ancestry is an immutable snapshot of the structures enclosing a node,
// outermost first. push never writes into the receiver's backing array, so
// sibling branches cannot observe each other's structures.
type ancestry []code.Structure

func (a ancestry) push(structure code.Structure) ancestry {
	return append(a[:len(a):len(a)], structure)
}

func (a ancestry) depth() int {
	return len(a) + 1
}

// Parse classifies one document and queues the laws it holds. file names
// the source in logs and skips.
func (s *Session) Parse(doc *document.Document, file string) {
	s.file = file
	defer func() { s.file = "" }()

	if doc == nil || doc.Level == nil {
		s.log("document has no levels", SeverityWarning)
		return
	}

	root := *doc.Level
	if s.config.SkipTOC && len(root.Levels) > 0 {
		// The first child of the root is the table of contents.
		root.Levels = root.Levels[1:]
	}

	s.walk(&root, nil)
}

// walk is the structural classifier. A level whose children have children
// of their own is a structure; a level with only one layer below it is a
// section.
func (s *Session) walk(level *document.Level, parents ancestry) {
	if !level.HasLevels() {
		s.log("empty level", SeverityTrace, "heading", level.Heading())
		return
	}

	if !level.HasGrandchildren() {
		law, err := s.ParseSection(level, parents)
		if err != nil {
			s.log("could not parse section", SeverityWarning, "heading", level.Heading(), "error", err)
			s.skip(SkipSection, level.Heading())
			return
		}
		s.laws = append(s.laws, law)
		return
	}

	children := parents
	if level.HasHeading() {
		structure, err := s.ParseStructure(level, parents)
		switch {
		case err == nil:
			s.log("descending", SeverityTrace, "structure", structure.Name)
			children = parents.push(*structure)
			s.structures++
		case errors.Is(err, ErrNoStructure):
			// Children attach to the enclosing structure.
			s.log("failed to match structure heading", SeverityTrace, "heading", level.Heading())
			s.skip(SkipStructure, level.Heading())
		}
	}

	for i := range level.Levels {
		s.walk(&level.Levels[i], children)
	}
}
