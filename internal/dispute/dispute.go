// Package dispute implements the refund dispute engine: the ticket state
// machine, the workflow coordinator that drives coach/client/admin
// transitions, and the atomic settlement step that moves money exactly once.
package dispute

import (
	"context"
	"errors"
	"time"

	"github.com/coachwise/coachwise/internal/money"
)

var (
	ErrTicketNotFound         = errors.New("dispute ticket not found")
	ErrDuplicateActiveDispute = errors.New("an active dispute already exists for this booking")
	ErrConcurrentModification = errors.New("ticket was modified concurrently, retry from a fresh read")
	ErrInvalidStatus          = errors.New("ticket status does not allow this transition")
	ErrInvalidRefundAmount    = errors.New("refund amount exceeds the refundable balance")
	ErrSettlementFailed       = errors.New("settlement gateway call failed, ticket unchanged")
	ErrSettlementInconsistent = errors.New("ticket commit failed after money moved, manual reconciliation required")
	ErrEscalationWindowClosed = errors.New("escalation window has closed for this ticket")
	ErrUnauthorized           = errors.New("actor is not authorized for this ticket")
	ErrCommitFailed           = errors.New("ticket commit failed")
	ErrValidation             = errors.New("invalid dispute request")
)

// Status is the lifecycle state of a dispute ticket.
type Status string

const (
	StatusAwaitingCoach    Status = "awaiting_coach_response"
	StatusEscalatedToAdmin Status = "escalated_to_admin"
	StatusResolvedByCoach  Status = "resolved_by_coach"
	StatusClosed           Status = "closed"
)

// Active reports whether the status still demands action from someone.
// Tickets in resolved_by_coach are not active: the coach has answered and
// only the client's explicit escalation revives the workflow.
func (s Status) Active() bool {
	return s == StatusAwaitingCoach || s == StatusEscalatedToAdmin
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusAwaitingCoach, StatusEscalatedToAdmin, StatusResolvedByCoach, StatusClosed:
		return true
	}
	return false
}

// ResolutionAction records how a ticket's money question was answered.
type ResolutionAction string

const (
	ResolutionRefundApproved ResolutionAction = "refund_approved"
	ResolutionRefundDenied   ResolutionAction = "refund_denied"
	ResolutionNoAction       ResolutionAction = "no_action"
)

// Message is one entry in a ticket's append-only audit trail.
type Message struct {
	ID       string    `json:"id"`
	SenderID string    `json:"senderId"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sentAt"`
}

// SettlementRecord is one refund that the gateway confirmed for this ticket.
// The list is append-only: a later resolution (e.g. an admin overriding an
// escalated coach resolution) replaces Resolution but never erases refunds
// that already moved.
type SettlementRecord struct {
	Ref    string      `json:"ref"`
	Amount money.Money `json:"amount"`
	At     time.Time   `json:"at"`
}

// Resolution is written on the transition into closed or resolved_by_coach.
// It reflects the latest answer: an escalated ticket's admin resolution
// replaces the coach's. Settled money is tracked separately in
// Ticket.Settlements, which is never rewritten.
type Resolution struct {
	Action            ResolutionAction `json:"action"`
	ResolvedBy        string           `json:"resolvedBy"`
	ResolvedAt        time.Time        `json:"resolvedAt"`
	FinalRefundAmount money.Money      `json:"finalRefundAmount"`
	PolicyApplied     string           `json:"policyApplied,omitempty"`
	Notes             string           `json:"notes,omitempty"`
	SettlementRef     string           `json:"settlementRef,omitempty"`
}

// Ticket is the persisted record of one refund request. Messages are
// append-only; the ticket itself is never deleted, terminal tickets stay
// archived in place.
type Ticket struct {
	ID              string             `json:"id"`
	BookingID       string             `json:"bookingId"`
	ClientID        string             `json:"clientId"`
	CoachID         string             `json:"coachId"`
	PaymentID       string             `json:"paymentId"`
	Status          Status             `json:"status"`
	RequestedRefund money.Money        `json:"requestedRefund"`
	Reason          string             `json:"reason"`
	Messages        []Message          `json:"messages"`
	Settlements     []SettlementRecord `json:"settlements,omitempty"`
	Resolution      *Resolution        `json:"resolution,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// AppendMessage adds a note to the audit trail. Empty content is skipped so
// callers can pass optional notes straight through.
func (t *Ticket) AppendMessage(id, senderID, content string, at time.Time) {
	if content == "" {
		return
	}
	t.Messages = append(t.Messages, Message{ID: id, SenderID: senderID, Content: content, SentAt: at})
}

// Store persists dispute tickets.
//
// Create must enforce at-most-one-active-ticket-per-booking and return
// ErrDuplicateActiveDispute when violated, even under concurrent creates.
//
// Transition is the engine's atomic boundary. It loads the ticket, verifies
// the status still equals expected (returning ErrConcurrentModification
// otherwise), runs apply — which mutates the ticket and may call the
// settlement gateway — and commits the mutated ticket. If apply returns an
// error nothing is persisted. A commit failure after apply succeeded is
// reported wrapping ErrCommitFailed so the coordinator can distinguish it
// from an aborted transaction.
type Store interface {
	Create(ctx context.Context, t *Ticket) error
	Get(ctx context.Context, ticketID string) (*Ticket, error)
	ListByBooking(ctx context.Context, bookingID string) ([]*Ticket, error)
	ActiveByBooking(ctx context.Context, bookingID string) (*Ticket, error)
	Transition(ctx context.Context, ticketID string, expected Status, apply func(*Ticket) error) (*Ticket, error)
}
