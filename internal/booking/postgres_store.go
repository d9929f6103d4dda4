package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/coachwise/coachwise/internal/money"
)

// PostgresStore reads bookings and payments written by the scheduling and
// checkout services.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const bookingColumns = `id, client_id, coach_id, policy_id, start_at, timezone`

func (s *PostgresStore) Get(ctx context.Context, bookingID string) (*Booking, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, bookingID)
	var b Booking
	err := row.Scan(&b.ID, &b.ClientID, &b.CoachID, &b.PolicyID, &b.StartAt, &b.Timezone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &b, nil
}

func (s *PostgresStore) PaymentFor(ctx context.Context, bookingID string) (*PaymentContext, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, booking_id, amount_cents, currency, refunded_cents, processor_ref
		   FROM payments WHERE booking_id = $1`, bookingID)
	var pc PaymentContext
	err := row.Scan(&pc.PaymentID, &pc.BookingID,
		&pc.AmountPaid.Cents, &pc.AmountPaid.Currency,
		&pc.AlreadyRefunded.Cents, &pc.ProcessorRef)
	if errors.Is(err, sql.ErrNoRows) {
		if _, berr := s.Get(ctx, bookingID); berr != nil {
			return nil, berr
		}
		return nil, ErrPaymentContextMissing
	}
	if err != nil {
		return nil, fmt.Errorf("get payment context: %w", err)
	}
	pc.AlreadyRefunded.Currency = pc.AmountPaid.Currency
	return &pc, nil
}

func (s *PostgresStore) RecordRefunded(ctx context.Context, bookingID string, amount money.Money) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments
		    SET refunded_cents = refunded_cents + $2, updated_at = now()
		  WHERE booking_id = $1 AND currency = $3
		    AND refunded_cents + $2 <= amount_cents`,
		bookingID, amount.Cents, amount.Currency)
	if err != nil {
		return fmt.Errorf("record refunded: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record refunded: %w", err)
	}
	if n == 0 {
		return ErrPaymentContextMissing
	}
	return nil
}

// RefundedTotals returns the refunded amount recorded against each booking's
// payment row.
func (s *PostgresStore) RefundedTotals(ctx context.Context) (map[string]money.Money, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT booking_id, refunded_cents, currency FROM payments`)
	if err != nil {
		return nil, fmt.Errorf("refunded totals: %w", err)
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
			return nil, fmt.Errorf("refunded totals: %w", err)
		}
		totals[bookingID] = money.New(cents, currency)
	}
	return totals, rows.Err()
}

var _ Lookup = (*PostgresStore)(nil)
