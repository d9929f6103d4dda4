package dispute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coachwise/coachwise/internal/booking"
	"github.com/coachwise/coachwise/internal/idgen"
	"github.com/coachwise/coachwise/internal/logging"
	"github.com/coachwise/coachwise/internal/metrics"
	"github.com/coachwise/coachwise/internal/money"
	"github.com/coachwise/coachwise/internal/policy"
	"github.com/coachwise/coachwise/internal/settlement"
	"github.com/coachwise/coachwise/internal/syncutil"
	"github.com/coachwise/coachwise/internal/traces"
)

// Notification event types emitted on ticket transitions.
const (
	EventTicketCreated  = "dispute.created"
	EventCoachResponded = "dispute.coach_responded"
	EventEscalated      = "dispute.escalated"
	EventResolved       = "dispute.resolved"
)

// Notifier is informed of every committed transition. Implementations must
// be fire-and-forget: a slow or failing notifier never blocks or fails the
// workflow.
type Notifier interface {
	Notify(ctx context.Context, eventType, recipientID string, metadata map[string]string)
}

// Service is the refund workflow coordinator. It validates transitions,
// executes them atomically against the store, drives the settlement gateway
// for approved refunds, and fans out notifications after commit.
type Service struct {
	store    Store
	policies policy.Store
	bookings booking.Lookup
	gateway  settlement.Gateway
	notifier Notifier

	locks syncutil.ShardedMutex

	// escalationWindow bounds how long after a coach resolution the client
	// may still escalate. Zero means no limit.
	escalationWindow time.Duration

	now func() time.Time
}

type ServiceOption func(*Service)

// WithEscalationWindow bounds client escalation after coach resolution.
func WithEscalationWindow(d time.Duration) ServiceOption {
	return func(s *Service) { s.escalationWindow = d }
}

// WithClock overrides the service clock, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, policies policy.Store, bookings booking.Lookup, gateway settlement.Gateway, notifier Notifier, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		policies: policies,
		bookings: bookings,
		gateway:  gateway,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetTicket fetches a single ticket.
func (s *Service) GetTicket(ctx context.Context, ticketID string) (*Ticket, error) {
	return s.store.Get(ctx, ticketID)
}

// ListByBooking returns every ticket ever opened for a booking, oldest first.
func (s *Service) ListByBooking(ctx context.Context, bookingID string) ([]*Ticket, error) {
	return s.store.ListByBooking(ctx, bookingID)
}

// CreateRefundRequest opens a dispute ticket for a booking. With escalate
// set the ticket goes straight to the admins, bypassing the coach. At most
// one active ticket may exist per booking; a new request on a booking whose
// previous ticket is terminal reopens the dispute as a fresh ticket.
func (s *Service) CreateRefundRequest(ctx context.Context, clientID, bookingID, reason string, requested money.Money, escalate bool) (*Ticket, error) {
	ctx, span := traces.StartSpan(ctx, "dispute.create", traces.BookingID(bookingID))
	defer span.End()

	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrValidation)
	}
	if err := requested.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	unlock := s.locks.Lock("booking:" + bookingID)
	defer unlock()

	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.ClientID != clientID {
		return nil, fmt.Errorf("%w: client %s did not book %s", ErrUnauthorized, clientID, bookingID)
	}
	pc, err := s.bookings.PaymentFor(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if requested.Currency != pc.AmountPaid.Currency {
		return nil, fmt.Errorf("%w: requested currency %s does not match payment currency %s",
			ErrValidation, requested.Currency, pc.AmountPaid.Currency)
	}
	maxRefundable, err := pc.MaxRefundable()
	if err != nil {
		return nil, err
	}
	if requested.Cmp(maxRefundable) > 0 {
		return nil, fmt.Errorf("%w: requested %s exceeds refundable %s", ErrInvalidRefundAmount, requested, maxRefundable)
	}

	status := StatusAwaitingCoach
	if escalate {
		status = StatusEscalatedToAdmin
	}
	now := s.now()
	t := &Ticket{
		ID:              idgen.WithPrefix("dsp"),
		BookingID:       bookingID,
		ClientID:        clientID,
		CoachID:         b.CoachID,
		PaymentID:       pc.PaymentID,
		Status:          status,
		RequestedRefund: requested,
		Reason:          reason,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	t.AppendMessage(idgen.WithPrefix("msg"), clientID, reason, now)

	if err := s.store.Create(ctx, t); err != nil {
		metrics.DisputeTransitionsTotal.WithLabelValues("create", "error").Inc()
		return nil, err
	}
	metrics.DisputeTransitionsTotal.WithLabelValues("create", "ok").Inc()

	logging.L(ctx).Info("dispute ticket created",
		"ticketId", t.ID, "bookingId", bookingID, "status", string(status),
		"requested", requested.String())

	s.notify(ctx, EventTicketCreated, b.CoachID, t, nil)
	return t, nil
}

// RespondAsCoach applies a coach's answer to an awaiting ticket. An approval
// refunds money through the settlement gateway inside the same atomic
// boundary as the status write.
func (s *Service) RespondAsCoach(ctx context.Context, coachID, ticketID string, decision CoachDecision, approved money.Money, message string) (*Ticket, error) {
	ctx, span := traces.StartSpan(ctx, "dispute.coach_response",
		traces.TicketID(ticketID), traces.Action(string(decision)))
	defer span.End()

	t, err := s.store.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	maxRefundable, err := s.maxRefundable(ctx, t.BookingID)
	if err != nil {
		return nil, err
	}

	plan, err := PlanCoachResponse(t, coachID, decision, approved, maxRefundable, message, s.now())
	if err != nil {
		return nil, err
	}

	updated, err := s.execute(ctx, "coach_response", t, plan)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventCoachResponded, t.ClientID, updated, plan)
	return updated, nil
}

// EscalateAsClient pushes a coach-resolved ticket to the admins. Pure status
// change plus message append; no money moves.
func (s *Service) EscalateAsClient(ctx context.Context, clientID, ticketID, reason string) (*Ticket, error) {
	ctx, span := traces.StartSpan(ctx, "dispute.escalate", traces.TicketID(ticketID))
	defer span.End()

	t, err := s.store.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	plan, err := PlanClientEscalation(t, clientID, reason, s.escalationWindow, s.now())
	if err != nil {
		return nil, err
	}

	updated, err := s.execute(ctx, "escalate", t, plan)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventEscalated, t.CoachID, updated, plan)
	return updated, nil
}

// ResolveAsAdmin closes an escalated ticket. The approved amount is an
// administrator override bounded only by the refundable balance.
func (s *Service) ResolveAsAdmin(ctx context.Context, adminID, ticketID string, decision AdminDecision, finalAmount money.Money, policyApplied, notes string) (*Ticket, error) {
	ctx, span := traces.StartSpan(ctx, "dispute.admin_resolve",
		traces.TicketID(ticketID), traces.Action(string(decision)))
	defer span.End()

	t, err := s.store.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	maxRefundable, err := s.maxRefundable(ctx, t.BookingID)
	if err != nil {
		return nil, err
	}

	plan, err := PlanAdminResolution(t, adminID, decision, finalAmount, maxRefundable, policyApplied, notes, s.now())
	if err != nil {
		return nil, err
	}

	updated, err := s.execute(ctx, "admin_resolve", t, plan)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventResolved, t.ClientID, updated, plan)
	return updated, nil
}

// EvaluateCancellation answers "what would I get back if I cancelled now".
// Read-only preview; nothing is persisted.
func (s *Service) EvaluateCancellation(ctx context.Context, bookingID string, now time.Time) (*policy.RefundOutcome, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	pol, err := s.policies.Get(ctx, b.PolicyID)
	if err != nil {
		return nil, err
	}
	pc, err := s.bookings.PaymentFor(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	outcome, err := policy.Evaluate(b.StartAt, pol, now, pc.AmountPaid)
	if err != nil {
		metrics.PolicyEvaluationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if outcome.Eligible {
		metrics.PolicyEvaluationsTotal.WithLabelValues("eligible").Inc()
	} else {
		metrics.PolicyEvaluationsTotal.WithLabelValues("ineligible").Inc()
	}
	return outcome, nil
}

// execute runs a transition plan atomically: status recheck, note append,
// resolution write, and the settlement call all succeed or fail together.
// A commit failure after money moved is surfaced as ErrSettlementInconsistent
// and is never retried here.
func (s *Service) execute(ctx context.Context, action string, t *Ticket, plan *TransitionPlan) (*Ticket, error) {
	unlock := s.locks.Lock("ticket:" + t.ID)
	defer unlock()

	now := s.now()
	var settled *settlement.Result

	updated, err := s.store.Transition(ctx, t.ID, plan.From, func(cur *Ticket) error {
		cur.AppendMessage(idgen.WithPrefix("msg"), plan.NoteSender, plan.Note, now)
		cur.Status = plan.To
		if plan.Resolution != nil {
			cur.Resolution = plan.Resolution
		}

		if plan.Settle == nil {
			return nil
		}
		pc, err := s.bookings.PaymentFor(ctx, cur.BookingID)
		if err != nil {
			return err
		}
		res, err := s.gateway.Refund(ctx, settlement.RefundRequest{
			ProcessorRef:   pc.ProcessorRef,
			Amount:         plan.Settle.Amount,
			Reason:         plan.Settle.Reason,
			IdempotencyKey: fmt.Sprintf("%s:%s:%d", cur.ID, plan.To, plan.Settle.Amount.Cents),
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSettlementFailed, err)
		}
		settled = res
		if cur.Resolution != nil {
			cur.Resolution.SettlementRef = res.OutcomeID
		}
		// append-only ledger: a later resolution may replace cur.Resolution,
		// this record of the moved money survives it
		cur.Settlements = append(cur.Settlements, SettlementRecord{
			Ref:    res.OutcomeID,
			Amount: res.AmountRefunded,
			At:     now,
		})
		return nil
	})

	if err != nil {
		switch {
		case errors.Is(err, ErrSettlementFailed):
			metrics.SettlementFailuresTotal.Inc()
			metrics.DisputeTransitionsTotal.WithLabelValues(action, "settlement_failed").Inc()
			logging.L(ctx).Error("settlement failed, transition rolled back",
				"ticketId", t.ID, "action", action, "error", err)
		case errors.Is(err, ErrCommitFailed) && settled != nil:
			metrics.SettlementInconsistenciesTotal.Inc()
			metrics.DisputeTransitionsTotal.WithLabelValues(action, "inconsistent").Inc()
			logging.L(ctx).Error("FATAL: commit failed after refund was issued, manual reconciliation required",
				"ticketId", t.ID, "action", action,
				"settlementRef", settled.OutcomeID,
				"amount", settled.AmountRefunded.String(),
				"error", err)
			return nil, fmt.Errorf("%w: settlement ref %s", ErrSettlementInconsistent, settled.OutcomeID)
		default:
			metrics.DisputeTransitionsTotal.WithLabelValues(action, "error").Inc()
		}
		return nil, err
	}

	metrics.DisputeTransitionsTotal.WithLabelValues(action, "ok").Inc()
	if settled != nil {
		metrics.RefundsIssuedTotal.WithLabelValues(settled.AmountRefunded.Currency).Inc()
		metrics.RefundedAmountCents.WithLabelValues(settled.AmountRefunded.Currency).Add(float64(settled.AmountRefunded.Cents))
		if err := s.bookings.RecordRefunded(ctx, t.BookingID, settled.AmountRefunded); err != nil {
			// The ticket and the refund are already committed; the running
			// total is bookkeeping and gets reconciled from the resolution.
			logging.L(ctx).Error("failed to record refunded total",
				"ticketId", t.ID, "bookingId", t.BookingID, "error", err)
		}
		logging.L(ctx).Info("refund settled",
			"ticketId", t.ID, "action", action,
			"amount", settled.AmountRefunded.String(),
			"settlementRef", settled.OutcomeID)
	}
	logging.L(ctx).Info("dispute transition committed",
		"ticketId", t.ID, "action", action,
		"from", string(plan.From), "to", string(plan.To))

	return updated, nil
}

func (s *Service) maxRefundable(ctx context.Context, bookingID string) (money.Money, error) {
	pc, err := s.bookings.PaymentFor(ctx, bookingID)
	if err != nil {
		return money.Money{}, err
	}
	return pc.MaxRefundable()
}

func (s *Service) notify(ctx context.Context, eventType, recipientID string, t *Ticket, plan *TransitionPlan) {
	if s.notifier == nil {
		return
	}
	md := map[string]string{
		"ticketId":  t.ID,
		"bookingId": t.BookingID,
		"status":    string(t.Status),
	}
	if plan != nil && plan.Settle != nil {
		md["refundAmount"] = plan.Settle.Amount.String()
	}
	s.notifier.Notify(ctx, eventType, recipientID, md)
}
