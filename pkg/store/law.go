package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/coolbeans/amlegal/pkg/code"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// LawRecords are the rows extracted from a law's text that are stored
// together with it.
type LawRecords struct {
	References  map[string]int
	History     []code.HistoryEvent
	Definitions []code.Definition
}

// CreateLaw inserts a law together with its meta rows and subsection text.
// Laws are never deduplicated: importing a file twice yields two rows.
func (s *Store) CreateLaw(ctx context.Context, law *code.Law, editionID int64) (int64, error) {
	return s.StoreLaw(ctx, law, editionID, LawRecords{})
}

// StoreLaw inserts a law, its meta rows, subsection text and the extracted
// records in one transaction. Either every row is written or none is. The
// law ID is set on the law, the history events and the definitions.
func (s *Store) StoreLaw(ctx context.Context, law *code.Law, editionID int64, records LawRecords) (int64, error) {
	if !law.Valid() {
		return 0, fmt.Errorf("law %q has no catch line", law.SectionNumber)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	lawID, err := insertLaw(ctx, tx, law, editionID)
	if err != nil {
		return 0, err
	}
	if err := insertReferences(ctx, tx, lawID, records.References); err != nil {
		return 0, err
	}

	events := make([]code.HistoryEvent, len(records.History))
	for i, event := range records.History {
		event.LawID = lawID
		events[i] = event
	}
	if err := insertHistory(ctx, tx, lawID, events); err != nil {
		return 0, err
	}

	definitions := make([]code.Definition, len(records.Definitions))
	for i, definition := range records.Definitions {
		definition.LawID = lawID
		definitions[i] = definition
	}
	if err := insertDefinitions(ctx, tx, definitions); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing law: %w", err)
	}

	law.ID = lawID
	copy(records.History, events)
	copy(records.Definitions, definitions)
	return lawID, nil
}

func insertLaw(ctx context.Context, ex execer, law *code.Law, editionID int64) (int64, error) {
	result, err := ex.ExecContext(ctx,
		`INSERT INTO laws (structure_id, edition_id, section, catch_line, text, history, order_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullID(law.StructureID),
		editionID,
		law.SectionNumber,
		law.CatchLine,
		law.Text,
		nullString(law.History),
		law.OrderBy,
	)
	if err != nil {
		return 0, fmt.Errorf("error inserting law %q: %w", law.SectionNumber, err)
	}
	lawID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error reading law id: %w", err)
	}

	repealed := "n"
	if law.Repealed {
		repealed = "y"
	}
	meta := [][2]string{{"repealed", repealed}}
	if law.Notes != "" {
		meta = append(meta, [2]string{"notes", law.Notes})
	}
	for _, kv := range meta {
		if _, err := ex.ExecContext(ctx,
			`INSERT INTO laws_meta (law_id, meta_key, meta_value) VALUES (?, ?, ?)`,
			lawID, kv[0], kv[1],
		); err != nil {
			return 0, fmt.Errorf("error inserting %s meta for law %d: %w", kv[0], lawID, err)
		}
	}

	for i, subsection := range law.Subsections {
		result, err := ex.ExecContext(ctx,
			`INSERT INTO text (law_id, sequence, type, text) VALUES (?, ?, ?, ?)`,
			lawID, i+1, subsection.Type, subsection.Text,
		)
		if err != nil {
			return 0, fmt.Errorf("error inserting text %d of law %d: %w", i+1, lawID, err)
		}
		textID, err := result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("error reading text id: %w", err)
		}
		for j, prefix := range subsection.PrefixHierarchy {
			if _, err := ex.ExecContext(ctx,
				`INSERT INTO text_sections (text_id, identifier, sequence) VALUES (?, ?, ?)`,
				textID, prefix, j+1,
			); err != nil {
				return 0, fmt.Errorf("error inserting text section %q: %w", prefix, err)
			}
		}
	}
	return lawID, nil
}

// StoreReferences records the citations found in a law. Mentions of a
// target already stored for the law are added to the existing count.
func (s *Store) StoreReferences(ctx context.Context, lawID int64, tally map[string]int) error {
	if len(tally) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertReferences(ctx, tx, lawID, tally)
	})
}

func insertReferences(ctx context.Context, ex execer, lawID int64, tally map[string]int) error {
	targets := make([]string, 0, len(tally))
	for target := range tally {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	for _, target := range targets {
		if _, err := ex.ExecContext(ctx,
			`INSERT INTO laws_references (law_id, target_section_number, mentions)
			 VALUES (?, ?, ?)
			 ON CONFLICT (law_id, target_section_number)
			 DO UPDATE SET mentions = mentions + excluded.mentions`,
			lawID, target, tally[target],
		); err != nil {
			return fmt.Errorf("error storing reference %q of law %d: %w", target, lawID, err)
		}
	}
	return nil
}

// References lists the stored references of a law ordered by target.
func (s *Store) References(ctx context.Context, lawID int64) ([]code.Reference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT target_section_number, mentions FROM laws_references
		 WHERE law_id = ? ORDER BY target_section_number`, lawID)
	if err != nil {
		return nil, fmt.Errorf("error listing references of law %d: %w", lawID, err)
	}
	defer rows.Close()

	var refs []code.Reference
	for rows.Next() {
		ref := code.Reference{LawID: lawID}
		if err := rows.Scan(&ref.Target, &ref.Mentions); err != nil {
			return nil, fmt.Errorf("error scanning reference: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// StoreDefinitions appends dictionary entries.
func (s *Store) StoreDefinitions(ctx context.Context, definitions []code.Definition) error {
	if len(definitions) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertDefinitions(ctx, tx, definitions)
	})
}

func insertDefinitions(ctx context.Context, ex execer, definitions []code.Definition) error {
	for _, d := range definitions {
		if _, err := ex.ExecContext(ctx,
			`INSERT INTO dictionary (law_id, term, definition, scope, scope_specificity, structure_id)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			d.LawID, d.Term, d.Definition, d.Scope, d.ScopeSpecificity, nullID(d.StructureID),
		); err != nil {
			return fmt.Errorf("error storing definition %q: %w", d.Term, err)
		}
	}
	return nil
}

// Definitions lists the dictionary entries recorded for a term.
func (s *Store) Definitions(ctx context.Context, term string) ([]code.Definition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT law_id, definition, scope, IFNULL(scope_specificity, 0), IFNULL(structure_id, 0)
		 FROM dictionary WHERE term = ? ORDER BY rowid`, term)
	if err != nil {
		return nil, fmt.Errorf("error listing definitions of %q: %w", term, err)
	}
	defer rows.Close()

	var definitions []code.Definition
	for rows.Next() {
		d := code.Definition{Term: term}
		if err := rows.Scan(&d.LawID, &d.Definition, &d.Scope, &d.ScopeSpecificity, &d.StructureID); err != nil {
			return nil, fmt.Errorf("error scanning definition: %w", err)
		}
		definitions = append(definitions, d)
	}
	return definitions, rows.Err()
}

// StoreHistory appends the structured history events of a law.
func (s *Store) StoreHistory(ctx context.Context, lawID int64, events []code.HistoryEvent) error {
	if len(events) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertHistory(ctx, tx, lawID, events)
	})
}

func insertHistory(ctx context.Context, ex execer, lawID int64, events []code.HistoryEvent) error {
	for i, event := range events {
		chapters, err := json.Marshal(event.Chapters)
		if err != nil {
			return fmt.Errorf("error encoding chapters: %w", err)
		}
		if _, err := ex.ExecContext(ctx,
			`INSERT INTO laws_history (law_id, sequence, year, chapters, section)
			 VALUES (?, ?, ?, ?, ?)`,
			lawID, i+1, event.Year, string(chapters), nullString(event.Section),
		); err != nil {
			return fmt.Errorf("error storing history of law %d: %w", lawID, err)
		}
	}
	return nil
}

// History lists the stored history events of a law in sequence.
func (s *Store) History(ctx context.Context, lawID int64) ([]code.HistoryEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT year, chapters, IFNULL(section, '') FROM laws_history
		 WHERE law_id = ? ORDER BY sequence`, lawID)
	if err != nil {
		return nil, fmt.Errorf("error listing history of law %d: %w", lawID, err)
	}
	defer rows.Close()

	var events []code.HistoryEvent
	for rows.Next() {
		event := code.HistoryEvent{LawID: lawID}
		var chapters string
		if err := rows.Scan(&event.Year, &chapters, &event.Section); err != nil {
			return nil, fmt.Errorf("error scanning history: %w", err)
		}
		if err := json.Unmarshal([]byte(chapters), &event.Chapters); err != nil {
			return nil, fmt.Errorf("error decoding chapters: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// ClearLaws deletes the laws of an edition with their meta, text,
// references, definitions and history. Structures are kept. It returns the
// number of laws deleted.
func (s *Store) ClearLaws(ctx context.Context, editionID int64) (int64, error) {
	const laws = `SELECT id FROM laws WHERE edition_id = ?`
	statements := []string{
		`DELETE FROM text_sections WHERE text_id IN (SELECT id FROM text WHERE law_id IN (` + laws + `))`,
		`DELETE FROM text WHERE law_id IN (` + laws + `)`,
		`DELETE FROM laws_meta WHERE law_id IN (` + laws + `)`,
		`DELETE FROM laws_references WHERE law_id IN (` + laws + `)`,
		`DELETE FROM dictionary WHERE law_id IN (` + laws + `)`,
		`DELETE FROM laws_history WHERE law_id IN (` + laws + `)`,
	}

	var deleted int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, statement := range statements {
			if _, err := tx.ExecContext(ctx, statement, editionID); err != nil {
				return fmt.Errorf("error clearing laws of edition %d: %w", editionID, err)
			}
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM laws WHERE edition_id = ?`, editionID)
		if err != nil {
			return fmt.Errorf("error clearing laws of edition %d: %w", editionID, err)
		}
		deleted, _ = result.RowsAffected()
		return nil
	})
	return deleted, err
}

// LawRow is a law as visited by the permalink walk.
type LawRow struct {
	ID            int64
	SectionNumber string
	CatchLine     string
	OrderBy       string
}

// LawsInStructure lists the laws directly under a structure ordered by
// sort key then section number. Unless includeRepealed is set, laws whose
// repealed meta is "y" are left out.
func (s *Store) LawsInStructure(ctx context.Context, structureID int64, includeRepealed bool) ([]LawRow, error) {
	query := `SELECT laws.id, laws.section, laws.catch_line, IFNULL(laws.order_by, '')
		FROM laws
		LEFT JOIN laws_meta ON laws_meta.law_id = laws.id AND laws_meta.meta_key = 'repealed'
		WHERE laws.structure_id = ?`
	if !includeRepealed {
		query += ` AND (laws_meta.meta_value = 'n' OR laws_meta.meta_value IS NULL)`
	}
	query += ` ORDER BY laws.order_by, laws.section`

	rows, err := s.db.QueryContext(ctx, query, structureID)
	if err != nil {
		return nil, fmt.Errorf("error listing laws of structure %d: %w", structureID, err)
	}
	defer rows.Close()

	var laws []LawRow
	for rows.Next() {
		var row LawRow
		if err := rows.Scan(&row.ID, &row.SectionNumber, &row.CatchLine, &row.OrderBy); err != nil {
			return nil, fmt.Errorf("error scanning law: %w", err)
		}
		laws = append(laws, row)
	}
	return laws, rows.Err()
}

// LawMeta reads one meta value of a law.
func (s *Store) LawMeta(ctx context.Context, lawID int64, key string) (string, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT meta_value FROM laws_meta WHERE law_id = ? AND meta_key = ?`, lawID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("error reading %s meta of law %d: %w", key, lawID, err)
	}
	return value.String, nil
}

// CountLaws returns the number of laws stored for an edition.
func (s *Store) CountLaws(ctx context.Context, editionID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM laws WHERE edition_id = ?`, editionID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting laws: %w", err)
	}
	return n, nil
}
