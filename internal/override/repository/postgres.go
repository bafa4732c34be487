package repository

import (
	"context"
	"database/sql"
	"errors"

	"presensi-praktikum/internal/override/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an override repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the override for the pair, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) Get(ctx context.Context, sessionID, userID string) (*domain.Override, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, status, created_at
		 FROM manual_overrides WHERE session_id = $1 AND user_id = $2`, sessionID, userID)
	var o domain.Override
	if err := row.Scan(&o.SessionID, &o.UserID, &o.Status, &o.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// Upsert saves or replaces the override for the pair.
func (r *PostgresRepository) Upsert(ctx context.Context, o *domain.Override) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO manual_overrides (session_id, user_id, status, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id, user_id) DO UPDATE SET
		   status = EXCLUDED.status, created_at = EXCLUDED.created_at`,
		o.SessionID, o.UserID, o.Status, o.CreatedAt)
	return err
}

// Delete removes the override for the pair. Deleting a missing override is a no-op.
func (r *PostgresRepository) Delete(ctx context.Context, sessionID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM manual_overrides WHERE session_id = $1 AND user_id = $2`, sessionID, userID)
	return err
}

// ListBySession returns all overrides for the session.
func (r *PostgresRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.Override, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT session_id, user_id, status, created_at
		 FROM manual_overrides WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOverrides(rows)
}

// ListByClass returns all overrides for every session of the class.
func (r *PostgresRepository) ListByClass(ctx context.Context, classID string) ([]*domain.Override, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT o.session_id, o.user_id, o.status, o.created_at
		 FROM manual_overrides o
		 JOIN practicum_sessions s ON s.id = o.session_id
		 WHERE s.class_id = $1 ORDER BY o.created_at`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOverrides(rows)
}

func collectOverrides(rows *sql.Rows) ([]*domain.Override, error) {
	var out []*domain.Override
	for rows.Next() {
		var o domain.Override
		if err := rows.Scan(&o.SessionID, &o.UserID, &o.Status, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}
