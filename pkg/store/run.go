package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one recorded import session.
type Run struct {
	ID        string
	EditionID int64
	Started   time.Time
	Finished  time.Time
	Files     int
	Laws      int
	Skipped   int
}

// BeginRun records the start of an import session and returns its ID.
func (s *Store) BeginRun(ctx context.Context, editionID int64) (string, error) {
	id := uuid.New().String()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO import_runs (id, edition_id, started) VALUES (?, ?, ?)`,
		id, editionID, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return "", fmt.Errorf("error recording import run: %w", err)
	}
	return id, nil
}

// FinishRun stores the totals of a finished import session.
func (s *Store) FinishRun(ctx context.Context, id string, files, laws, skipped int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE import_runs SET finished = ?, files = ?, laws = ?, skipped = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), files, laws, skipped, id,
	)
	if err != nil {
		return fmt.Errorf("error finishing import run %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("import run %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetRun reads one import session.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	run := &Run{ID: id}
	var started string
	var finished *string
	err := s.db.QueryRowContext(ctx,
		`SELECT edition_id, started, finished, files, laws, skipped FROM import_runs WHERE id = ?`, id,
	).Scan(&run.EditionID, &started, &finished, &run.Files, &run.Laws, &run.Skipped)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading import run %s: %w", id, err)
	}
	run.Started, _ = time.Parse(time.RFC3339, started)
	if finished != nil {
		run.Finished, _ = time.Parse(time.RFC3339, *finished)
	}
	return run, nil
}
