package policy

import (
	"context"
	"database/sql"
	"encoding/json"
)

// PostgresStore persists cancellation policies in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed policy store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const policyColumns = `id, coach_id, minimum_notice_hours, tiers, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, pol *CancellationPolicy) error {
	if err := pol.Validate(); err != nil {
		return err
	}
	tiersJSON, err := json.Marshal(pol.Tiers)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO cancellation_policies (id, coach_id, minimum_notice_hours, tiers, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		pol.ID, pol.CoachID, pol.MinimumNoticeHours, tiersJSON, pol.CreatedAt, pol.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*CancellationPolicy, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM cancellation_policies WHERE id = $1`, id)
	return scanPolicy(row)
}

func (p *PostgresStore) GetByCoach(ctx context.Context, coachID string) (*CancellationPolicy, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM cancellation_policies WHERE coach_id = $1
		 ORDER BY updated_at DESC LIMIT 1`, coachID)
	return scanPolicy(row)
}

func (p *PostgresStore) Update(ctx context.Context, pol *CancellationPolicy) error {
	if err := pol.Validate(); err != nil {
		return err
	}
	tiersJSON, err := json.Marshal(pol.Tiers)
	if err != nil {
		return err
	}
	result, err := p.db.ExecContext(ctx, `
		UPDATE cancellation_policies SET
			minimum_notice_hours = $1, tiers = $2, updated_at = $3
		WHERE id = $4`,
		pol.MinimumNoticeHours, tiersJSON, pol.UpdatedAt, pol.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPolicyNotFound
	}
	return nil
}

func scanPolicy(row *sql.Row) (*CancellationPolicy, error) {
	pol := &CancellationPolicy{}
	var tiersJSON []byte

	err := row.Scan(&pol.ID, &pol.CoachID, &pol.MinimumNoticeHours, &tiersJSON, &pol.CreatedAt, &pol.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(tiersJSON) > 0 {
		if err := json.Unmarshal(tiersJSON, &pol.Tiers); err != nil {
			return nil, err
		}
	}
	return pol, nil
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
