package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coolbeans/amlegal/pkg/code"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// FindStructure returns the ID of the structure identified by
// (identifier, edition, parent). A zero parentID matches top-level
// structures only.
func (s *Store) FindStructure(ctx context.Context, identifier string, editionID, parentID int64) (int64, error) {
	return findStructure(ctx, s.db, identifier, editionID, parentID)
}

func findStructure(ctx context.Context, q querier, identifier string, editionID, parentID int64) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM structure
		 WHERE identifier = ? AND edition_id = ? AND parent_id IS ?`,
		identifier, editionID, nullID(parentID),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("error finding structure %q: %w", identifier, err)
	}
	return id, nil
}

// CreateStructure returns the ID of the structure matching
// (identifier, edition, parent), inserting it first when it does not exist.
// Repeated calls with the same triple return the same ID.
func (s *Store) CreateStructure(ctx context.Context, structure *code.Structure, editionID int64) (int64, error) {
	// "0" is a valid identifier, so only the length is checked.
	if len(structure.Identifier) == 0 || structure.Label == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStructure, structure.Name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := findStructure(ctx, tx, structure.Identifier, editionID, structure.ParentID)
	if err == nil {
		structure.ID = id
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, err
	}

	var metadata sql.NullString
	if !structure.Metadata.Empty() {
		encoded, err := json.Marshal(structure.Metadata)
		if err != nil {
			return 0, fmt.Errorf("error encoding structure metadata: %w", err)
		}
		metadata = sql.NullString{String: string(encoded), Valid: true}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO structure (identifier, name, label, edition_id, depth, order_by, parent_id, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		structure.Identifier,
		nullString(structure.Name),
		structure.Label,
		editionID,
		structure.Depth,
		structure.OrderBy,
		nullID(structure.ParentID),
		metadata,
	)
	if err != nil {
		return 0, fmt.Errorf("error inserting structure %q: %w", structure.Identifier, err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		id, err = findStructure(ctx, tx, structure.Identifier, editionID, structure.ParentID)
	} else {
		id, err = result.LastInsertId()
	}
	if err != nil {
		return 0, fmt.Errorf("error resolving structure %q: %w", structure.Identifier, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing structure: %w", err)
	}
	structure.ID = id
	return id, nil
}

// GetStructure reads one structure by ID.
func (s *Store) GetStructure(ctx context.Context, id int64) (*code.Structure, error) {
	structure := &code.Structure{ID: id}
	var name, orderBy, metadata sql.NullString
	var parentID sql.NullInt64

	err := s.db.QueryRowContext(ctx,
		`SELECT identifier, name, label, depth, order_by, parent_id, metadata
		 FROM structure WHERE id = ?`, id,
	).Scan(&structure.Identifier, &name, &structure.Label, &structure.Depth, &orderBy, &parentID, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading structure %d: %w", id, err)
	}

	structure.Name = name.String
	structure.OrderBy = orderBy.String
	structure.ParentID = parentID.Int64
	if metadata.Valid {
		structure.Metadata = &code.StructureMetadata{}
		if err := json.Unmarshal([]byte(metadata.String), structure.Metadata); err != nil {
			return nil, fmt.Errorf("error decoding metadata of structure %d: %w", id, err)
		}
	}
	return structure, nil
}

// FindStructureAncestorByLabel walks parent links upward from startID,
// including startID itself, and returns the first structure labelled label.
func (s *Store) FindStructureAncestorByLabel(ctx context.Context, startID int64, label string) (int64, error) {
	if startID == 0 || label == "" {
		return 0, ErrNotFound
	}

	for id := startID; ; {
		var current string
		var parentID sql.NullInt64

		err := s.db.QueryRowContext(ctx,
			`SELECT label, parent_id FROM structure WHERE id = ?`, id,
		).Scan(&current, &parentID)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("error walking structure %d: %w", id, err)
		}

		if current == label {
			return id, nil
		}
		if !parentID.Valid {
			return 0, ErrNotFound
		}
		id = parentID.Int64
	}
}

// StructureLabels returns the distinct structure labels ordered by the
// shallowest depth they appear at.
func (s *Store) StructureLabels(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT label FROM structure GROUP BY label ORDER BY MIN(depth), label`)
	if err != nil {
		return nil, fmt.Errorf("error listing structure labels: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("error scanning structure label: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// StructureRow is a structure as visited by the permalink walk.
type StructureRow struct {
	ID          int64
	Identifier  string
	EditionID   int64
	EditionSlug string
	Current     bool
}

// ChildStructures lists the structures under parentID across all editions.
// A zero parentID lists top-level structures.
func (s *Store) ChildStructures(ctx context.Context, parentID int64) ([]StructureRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT structure.id, structure.identifier, editions.id, editions.slug, editions.current
		 FROM structure
		 JOIN editions ON structure.edition_id = editions.id
		 WHERE structure.parent_id IS ?
		 ORDER BY structure.order_by, structure.id`,
		nullID(parentID),
	)
	if err != nil {
		return nil, fmt.Errorf("error listing child structures of %d: %w", parentID, err)
	}
	defer rows.Close()

	var children []StructureRow
	for rows.Next() {
		var row StructureRow
		if err := rows.Scan(&row.ID, &row.Identifier, &row.EditionID, &row.EditionSlug, &row.Current); err != nil {
			return nil, fmt.Errorf("error scanning structure: %w", err)
		}
		children = append(children, row)
	}
	return children, rows.Err()
}

// StructureLineage returns the identifiers from the structure itself up to
// its top-level ancestor, innermost first.
func (s *Store) StructureLineage(ctx context.Context, id int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`WITH RECURSIVE lineage (id, identifier, parent_id, level) AS (
			SELECT id, identifier, parent_id, 0 FROM structure WHERE id = ?
			UNION ALL
			SELECT structure.id, structure.identifier, structure.parent_id, lineage.level + 1
			FROM structure JOIN lineage ON structure.id = lineage.parent_id
		)
		SELECT identifier FROM lineage ORDER BY level`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("error reading lineage of structure %d: %w", id, err)
	}
	defer rows.Close()

	var identifiers []string
	for rows.Next() {
		var identifier string
		if err := rows.Scan(&identifier); err != nil {
			return nil, fmt.Errorf("error scanning lineage: %w", err)
		}
		identifiers = append(identifiers, identifier)
	}
	return identifiers, rows.Err()
}
