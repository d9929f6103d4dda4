package dispute

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/coachwise/coachwise/internal/money"
)

// PostgresStore persists tickets in the dispute_tickets table.
//
// At-most-one-active-per-booking is backed by a partial unique index on
// booking_id over active statuses, so the invariant holds even when two
// creates race past the application-level check.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const ticketColumns = `id, booking_id, client_id, coach_id, payment_id, status,
	requested_cents, requested_currency, reason, messages, settlements,
	resolution, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTicket(row scanner) (*Ticket, error) {
	var (
		t           Ticket
		status      string
		messages    []byte
		settlements []byte
		resolution  []byte
	)
	err := row.Scan(&t.ID, &t.BookingID, &t.ClientID, &t.CoachID, &t.PaymentID, &status,
		&t.RequestedRefund.Cents, &t.RequestedRefund.Currency, &t.Reason,
		&messages, &settlements, &resolution, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	if len(messages) > 0 {
		if err := json.Unmarshal(messages, &t.Messages); err != nil {
			return nil, fmt.Errorf("decode messages: %w", err)
		}
	}
	if len(settlements) > 0 && string(settlements) != "null" {
		if err := json.Unmarshal(settlements, &t.Settlements); err != nil {
			return nil, fmt.Errorf("decode settlements: %w", err)
		}
	}
	if len(resolution) > 0 && string(resolution) != "null" {
		t.Resolution = &Resolution{}
		if err := json.Unmarshal(resolution, t.Resolution); err != nil {
			return nil, fmt.Errorf("decode resolution: %w", err)
		}
	}
	return &t, nil
}

func (s *PostgresStore) Create(ctx context.Context, t *Ticket) error {
	messages, err := json.Marshal(t.Messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	settlements, err := json.Marshal(settlementsOrEmpty(t.Settlements))
	if err != nil {
		return fmt.Errorf("encode settlements: %w", err)
	}
	var resolution []byte
	if t.Resolution != nil {
		if resolution, err = json.Marshal(t.Resolution); err != nil {
			return fmt.Errorf("encode resolution: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dispute_tickets
			(id, booking_id, client_id, coach_id, payment_id, status,
			 requested_cents, requested_currency, reason, messages, settlements,
			 resolution, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		t.ID, t.BookingID, t.ClientID, t.CoachID, t.PaymentID, string(t.Status),
		t.RequestedRefund.Cents, t.RequestedRefund.Currency, t.Reason,
		messages, settlements, nullBytes(resolution), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		// 23505 unique_violation on the active-ticket partial index
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateActiveDispute
		}
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, ticketID string) (*Ticket, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM dispute_tickets WHERE id = $1`, ticketID)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListByBooking(ctx context.Context, bookingID string) ([]*Ticket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM dispute_tickets
		  WHERE booking_id = $1 ORDER BY created_at ASC`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var out []*Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("list tickets: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ActiveByBooking(ctx context.Context, bookingID string) (*Ticket, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM dispute_tickets
		  WHERE booking_id = $1
		    AND status IN ($2, $3)`,
		bookingID, string(StatusAwaitingCoach), string(StatusEscalatedToAdmin))
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("active ticket: %w", err)
	}
	return t, nil
}

// Transition runs apply inside a transaction holding a row lock on the
// ticket. The status recheck under the lock is what turns a lost race into
// ErrConcurrentModification instead of a silent double-transition. A commit
// error after apply succeeded wraps ErrCommitFailed so the coordinator can
// tell "nothing happened" apart from "money moved but the write was lost".
func (s *PostgresStore) Transition(ctx context.Context, ticketID string, expected Status, apply func(*Ticket) error) (*Ticket, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM dispute_tickets WHERE id = $1 FOR UPDATE`, ticketID)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock ticket: %w", err)
	}
	if t.Status != expected {
		return nil, ErrConcurrentModification
	}

	if err := apply(t); err != nil {
		return nil, err
	}
	t.UpdatedAt = time.Now().UTC()

	messages, err := json.Marshal(t.Messages)
	if err != nil {
		return nil, fmt.Errorf("%w: encode messages: %v", ErrCommitFailed, err)
	}
	settlements, err := json.Marshal(settlementsOrEmpty(t.Settlements))
	if err != nil {
		return nil, fmt.Errorf("%w: encode settlements: %v", ErrCommitFailed, err)
	}
	var resolution []byte
	if t.Resolution != nil {
		if resolution, err = json.Marshal(t.Resolution); err != nil {
			return nil, fmt.Errorf("%w: encode resolution: %v", ErrCommitFailed, err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE dispute_tickets
		   SET status = $2, messages = $3, settlements = $4, resolution = $5, updated_at = $6
		 WHERE id = $1`,
		t.ID, string(t.Status), messages, settlements, nullBytes(resolution), t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return nil, fmt.Errorf("%w: ticket row vanished", ErrCommitFailed)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}
	return t, nil
}

// SettledRefundTotals sums, per booking, every entry in the settlements
// ledger. The ledger survives resolution overwrites (escalation after a
// partial approval), so the totals track what the gateway actually moved.
func (s *PostgresStore) SettledRefundTotals(ctx context.Context) (map[string]money.Money, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.booking_id,
		       SUM((s->'amount'->>'cents')::bigint),
		       MIN(s->'amount'->>'currency')
		  FROM dispute_tickets t,
		       jsonb_array_elements(t.settlements) AS s
		 GROUP BY t.booking_id`)
	if err != nil {
		return nil, fmt.Errorf("settled refund totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]money.Money)
	for rows.Next() {
		var (
			bookingID string
			cents     int64
			currency  string
		)
		if err := rows.Scan(&bookingID, &cents, &currency); err != nil {
			return nil, fmt.Errorf("settled refund totals: %w", err)
		}
		totals[bookingID] = money.New(cents, currency)
	}
	return totals, rows.Err()
}

// settlementsOrEmpty keeps the column a JSON array so the totals query can
// expand it without a null guard.
func settlementsOrEmpty(recs []SettlementRecord) []SettlementRecord {
	if recs == nil {
		return []SettlementRecord{}
	}
	return recs
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ Store = (*PostgresStore)(nil)
