package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coolbeans/amlegal/pkg/code"
	"github.com/coolbeans/amlegal/pkg/store"
)

// Storage is the persistence the importer needs. *store.Store implements it.
type Storage interface {
	CreateStructure(ctx context.Context, structure *code.Structure, editionID int64) (int64, error)
	StoreLaw(ctx context.Context, law *code.Law, editionID int64, records store.LawRecords) (int64, error)
	FindStructureAncestorByLabel(ctx context.Context, startID int64, label string) (int64, error)
}

// Store persists a parsed law: its structure chain first, then the law with
// the references, history events and definitions found in it. The law and
// its records are written atomically, so a failure leaves no trace of the
// law. An invalid structure in the chain leaves the law without a structure.
func (s *Session) Store(ctx context.Context, st Storage, editionID int64, law *code.Law) error {
	var parentID int64
	for i := range law.Structures {
		structure := law.Structures[i]
		structure.ParentID = parentID

		id, err := st.CreateStructure(ctx, &structure, editionID)
		if errors.Is(err, store.ErrInvalidStructure) {
			s.log("invalid structure", SeverityWarning, "identifier", structure.Identifier, "label", structure.Label)
			s.skip(SkipInvalidStructure, fmt.Sprintf("%q (%s)", structure.Identifier, structure.Label))
			s.log("law orphaned by invalid structure", SeverityWarning, "section", law.SectionNumber)
			s.skip(SkipOrphan, law.SectionNumber)
			parentID = 0
			break
		}
		if err != nil {
			return fmt.Errorf("structure %q: %w", structure.Identifier, err)
		}
		law.Structures[i].ID = id
		law.Structures[i].ParentID = parentID
		parentID = id
	}
	law.StructureID = parentID

	definitions, err := s.resolveDefinitions(ctx, st, law)
	if err != nil {
		return fmt.Errorf("definitions of law %q: %w", law.SectionNumber, err)
	}

	lawID, err := st.StoreLaw(ctx, law, editionID, store.LawRecords{
		References:  s.references.Extract(law.Text),
		History:     s.history.Extract(law.History),
		Definitions: definitions,
	})
	if err != nil {
		return fmt.Errorf("law %q: %w", law.SectionNumber, err)
	}
	s.log("stored law", SeverityTrace, "section", law.SectionNumber, "id", lawID, "definitions", len(definitions))
	return nil
}

// resolveDefinitions extracts a law's definitions and ties their scope to
// a concrete structure where the scope is a structural label. The law ID is
// filled in when the law is stored.
func (s *Session) resolveDefinitions(ctx context.Context, st Storage, law *code.Law) ([]code.Definition, error) {
	set := s.definitions.Extract(law.Text)
	if set == nil {
		return nil, nil
	}

	scope := set.Scope
	if s.globalDefinitions(law) {
		scope = code.ScopeGlobal
	}

	var structureID int64
	if !strings.EqualFold(scope, code.ScopeSection) && scope != code.ScopeGlobal && law.StructureID != 0 {
		id, err := st.FindStructureAncestorByLabel(ctx, law.StructureID, scope)
		switch {
		case err == nil:
			structureID = id
		case errors.Is(err, store.ErrNotFound):
			s.log("no ancestor for definition scope", SeverityInfo, "section", law.SectionNumber, "scope", scope)
		default:
			return nil, err
		}
	}

	specificity := s.definitions.ScopeSpecificity(scope)
	definitions := make([]code.Definition, 0, len(set.Terms))
	for _, term := range set.Terms {
		definitions = append(definitions, code.Definition{
			Term:             term.Term,
			Definition:       term.Definition,
			Scope:            scope,
			ScopeSpecificity: specificity,
			StructureID:      structureID,
		})
	}
	return definitions, nil
}

// globalDefinitions reports whether the law's ancestry, with or without
// its section number, is on the global definitions list.
func (s *Session) globalDefinitions(law *code.Law) bool {
	path := law.AncestryPath()
	withSection := path + "," + law.SectionNumber
	for _, entry := range s.config.GlobalDefinitions {
		if entry == path || entry == withSection {
			return true
		}
	}
	return false
}
