// Package booking provides read-only access to bookings and their payment
// context. Scheduling and availability live elsewhere in the platform; the
// dispute engine only reads start times and payment totals from here.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/coachwise/coachwise/internal/money"
)

var (
	ErrBookingNotFound       = errors.New("booking not found")
	ErrPaymentContextMissing = errors.New("payment context missing for booking")
)

// Booking is a paid coaching session as the dispute engine sees it.
type Booking struct {
	ID       string    `json:"id"`
	ClientID string    `json:"clientId"`
	CoachID  string    `json:"coachId"`
	PolicyID string    `json:"policyId"`
	StartAt  time.Time `json:"startAt"`
	Timezone string    `json:"timezone"`
}

// PaymentContext is what was paid for a booking and how much of it has
// already gone back to the client.
type PaymentContext struct {
	PaymentID       string      `json:"paymentId"`
	BookingID       string      `json:"bookingId"`
	AmountPaid      money.Money `json:"amountPaid"`
	AlreadyRefunded money.Money `json:"alreadyRefunded"`
	ProcessorRef    string      `json:"processorRef"` // payment intent/charge ref at the processor
}

// MaxRefundable returns the balance still open for refund.
func (pc *PaymentContext) MaxRefundable() (money.Money, error) {
	return pc.AmountPaid.Sub(pc.AlreadyRefunded)
}

// Lookup reads bookings and payment context. Implementations must treat
// both as read-only from the engine's perspective except for
// RecordRefunded, which the settlement step uses to keep the
// already-refunded total truthful.
type Lookup interface {
	Get(ctx context.Context, bookingID string) (*Booking, error)
	PaymentFor(ctx context.Context, bookingID string) (*PaymentContext, error)
	RecordRefunded(ctx context.Context, bookingID string, amount money.Money) error
}
