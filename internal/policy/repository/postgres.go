package repository

import (
	"context"
	"database/sql"

	"presensi-praktikum/internal/policy/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a policy repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetEnabledPoliciesByClass returns the enabled policies for the class.
// Returns (nil, error) only on database errors.
func (r *PostgresRepository) GetEnabledPoliciesByClass(ctx context.Context, classID string) ([]*domain.Policy, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, class_id, rules, enabled, created_at
		 FROM attendance_policies WHERE class_id = $1 AND enabled ORDER BY created_at`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Policy
	for rows.Next() {
		var p domain.Policy
		if err := rows.Scan(&p.ID, &p.ClassID, &p.Rules, &p.Enabled, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Create persists the policy to the database. The policy must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Policy) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO attendance_policies (id, class_id, rules, enabled, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.ClassID, p.Rules, p.Enabled, p.CreatedAt)
	return err
}
