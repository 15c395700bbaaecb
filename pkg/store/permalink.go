package store

import (
	"context"
	"fmt"

	"github.com/coolbeans/amlegal/pkg/code"
)

// ClearPermalinks deletes every permalink. Permalinks are rebuilt
// wholesale, never patched.
func (s *Store) ClearPermalinks(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM permalinks`); err != nil {
		return fmt.Errorf("error clearing permalinks: %w", err)
	}
	return nil
}

// InsertPermalink appends one permalink row.
func (s *Store) InsertPermalink(ctx context.Context, p code.Permalink) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO permalinks (object_type, relational_id, identifier, token, url)
		 VALUES (?, ?, ?, ?, ?)`,
		string(p.ObjectType), p.RelationalID, nullString(p.Identifier), p.Token, p.URL,
	); err != nil {
		return fmt.Errorf("error inserting permalink %s: %w", p.URL, err)
	}
	return nil
}

// Permalinks lists every permalink in insertion order.
func (s *Store) Permalinks(ctx context.Context) ([]code.Permalink, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT object_type, relational_id, IFNULL(identifier, ''), token, url
		 FROM permalinks ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("error listing permalinks: %w", err)
	}
	defer rows.Close()

	var permalinks []code.Permalink
	for rows.Next() {
		var p code.Permalink
		var objectType string
		if err := rows.Scan(&objectType, &p.RelationalID, &p.Identifier, &p.Token, &p.URL); err != nil {
			return nil, fmt.Errorf("error scanning permalink: %w", err)
		}
		p.ObjectType = code.ObjectType(objectType)
		permalinks = append(permalinks, p)
	}
	return permalinks, rows.Err()
}
