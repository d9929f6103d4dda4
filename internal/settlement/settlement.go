// Package settlement moves refund money at the payment processor.
//
// The dispute service calls a Gateway inside its commit boundary; the
// gateway must therefore be idempotent per request key so a retried
// transition never pays twice.
package settlement

import (
	"context"
	"errors"

	"github.com/coachwise/coachwise/internal/money"
)

var (
	ErrGatewayUnavailable = errors.New("settlement: gateway unavailable")
	ErrRefundRejected     = errors.New("settlement: refund rejected by processor")
)

// RefundRequest instructs the processor to return money to the client.
type RefundRequest struct {
	// ProcessorRef is the original payment's reference at the processor
	// (e.g. a Stripe payment intent ID).
	ProcessorRef string
	Amount       money.Money
	Reason       string
	// IdempotencyKey dedupes retries at the processor. Callers derive it
	// from the dispute ticket so re-driving a transition is safe.
	IdempotencyKey string
}

// Result is the processor's acknowledgement of an issued refund.
type Result struct {
	OutcomeID      string      // processor-side refund ID
	Status         string      // processor-side status, informational
	AmountRefunded money.Money // what the processor confirmed
}

// Gateway issues refunds at a payment processor. Refund must be
// synchronous from the caller's point of view: when it returns nil the
// money is committed at the processor.
type Gateway interface {
	// Name identifies the processor, used as the circuit breaker key.
	Name() string
	Refund(ctx context.Context, req RefundRequest) (*Result, error)
}
