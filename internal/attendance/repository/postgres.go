package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"presensi-praktikum/internal/attendance/domain"
)

// ErrDuplicate is returned by Create when a row for (session_id, user_id)
// already exists. The admission path maps it to the already-checked-in error
// so two concurrent check-ins cannot both succeed.
var ErrDuplicate = errors.New("attendance row already exists")

const uniqueViolationCode = "23505"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an attendance repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const attendanceColumns = `id, session_id, user_id, status, distance_m, checked_in_at, lat, lng, created_at`

// GetBySessionAndUser returns the attendance row for the pair, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetBySessionAndUser(ctx context.Context, sessionID, userID string) (*domain.Attendance, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+attendanceColumns+` FROM attendance WHERE session_id = $1 AND user_id = $2`,
		sessionID, userID)
	a, err := scanAttendance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// Create persists the attendance row. The row must have ID set.
// Returns ErrDuplicate when the (session_id, user_id) unique constraint fires.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Attendance) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO attendance (id, session_id, user_id, status, distance_m, checked_in_at, lat, lng, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.SessionID, a.UserID, a.Status, a.DistanceM, a.CheckedInAt, a.Lat, a.Lng, a.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return ErrDuplicate
	}
	return err
}

// Upsert inserts the row or, when a row for the pair already exists, replaces
// its status. Used by the override reconciler; GPS fields of an existing
// check-in row are preserved.
func (r *PostgresRepository) Upsert(ctx context.Context, a *domain.Attendance) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO attendance (id, session_id, user_id, status, distance_m, checked_in_at, lat, lng, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (session_id, user_id) DO UPDATE SET status = EXCLUDED.status`,
		a.ID, a.SessionID, a.UserID, a.Status, a.DistanceM, a.CheckedInAt, a.Lat, a.Lng, a.CreatedAt)
	return err
}

// ListBySession returns all attendance rows for the session ordered by check-in time.
func (r *PostgresRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.Attendance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+attendanceColumns+` FROM attendance
		 WHERE session_id = $1 ORDER BY checked_in_at NULLS LAST, created_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAttendance(rows)
}

// ListByClass returns all attendance rows for every session of the class.
func (r *PostgresRepository) ListByClass(ctx context.Context, classID string) ([]*domain.Attendance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.session_id, a.user_id, a.status, a.distance_m, a.checked_in_at, a.lat, a.lng, a.created_at
		 FROM attendance a
		 JOIN practicum_sessions s ON s.id = a.session_id
		 WHERE s.class_id = $1 ORDER BY a.created_at`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAttendance(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttendance(row rowScanner) (*domain.Attendance, error) {
	var a domain.Attendance
	err := row.Scan(&a.ID, &a.SessionID, &a.UserID, &a.Status, &a.DistanceM, &a.CheckedInAt, &a.Lat, &a.Lng, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAttendance(rows *sql.Rows) ([]*domain.Attendance, error) {
	var out []*domain.Attendance
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
