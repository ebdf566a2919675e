package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Checkpoint returns the last sequence number applied by the named
// projection, or 0 if it has not applied anything yet.
func (s *Store) Checkpoint(ctx context.Context, name string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT sequence_number FROM projection_checkpoints WHERE name = ?`, name,
	).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read checkpoint %s: %w", name, err)
	}
	return seq, nil
}

// SaveCheckpoint records seq as applied by the named projection. Pass the
// projection's transaction so the checkpoint commits with the changes.
func SaveCheckpoint(ctx context.Context, ex Execer, name string, seq int64) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO projection_checkpoints (name, sequence_number) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET sequence_number = excluded.sequence_number
	`, name, seq)
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", name, err)
	}
	return nil
}

// DeleteCheckpoint forgets the named projection's progress.
func DeleteCheckpoint(ctx context.Context, ex Execer, name string) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM projection_checkpoints WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", name, err)
	}
	return nil
}
