package dispute

import (
	"fmt"
	"time"

	"github.com/coachwise/coachwise/internal/money"
)

// CoachDecision and AdminDecision name the choices a responder can make.
type (
	CoachDecision string
	AdminDecision string
)

const (
	CoachApprove CoachDecision = "approve"
	CoachDecline CoachDecision = "decline"

	AdminApprove AdminDecision = "approve"
	AdminDeny    AdminDecision = "deny"
)

// SettlementIntent describes the single refund a transition requires. It is
// produced by a decision function and executed by the coordinator inside the
// store transaction.
type SettlementIntent struct {
	Amount money.Money
	Reason string
}

// TransitionPlan is the outcome of a pure decision: the status to move to,
// the resolution to record (if the transition is terminal), the note to
// append, and the refund to issue, if any. Decision functions have no side
// effects; the coordinator executes the plan atomically.
type TransitionPlan struct {
	From       Status
	To         Status
	Resolution *Resolution
	Note       string
	NoteSender string
	Settle     *SettlementIntent
}

// PlanCoachResponse decides what a coach's answer does to the ticket.
//
// Approving the full refundable balance closes the ticket; a partial
// approval leaves it resolved_by_coach so the client keeps the right to
// escalate. Declining moves ownership to the admins without touching money.
func PlanCoachResponse(t *Ticket, coachID string, decision CoachDecision, approved money.Money, maxRefundable money.Money, note string, now time.Time) (*TransitionPlan, error) {
	if t.Status != StatusAwaitingCoach {
		return nil, fmt.Errorf("%w: coach response requires %s, ticket is %s", ErrInvalidStatus, StatusAwaitingCoach, t.Status)
	}
	if t.CoachID != coachID {
		return nil, fmt.Errorf("%w: coach %s does not own ticket %s", ErrUnauthorized, coachID, t.ID)
	}

	switch decision {
	case CoachDecline:
		return &TransitionPlan{
			From:       StatusAwaitingCoach,
			To:         StatusEscalatedToAdmin,
			Note:       note,
			NoteSender: coachID,
		}, nil

	case CoachApprove:
		if err := approved.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if approved.IsZero() {
			return nil, fmt.Errorf("%w: approved amount must be positive", ErrValidation)
		}
		if approved.Currency != maxRefundable.Currency {
			return nil, fmt.Errorf("%w: approved currency %s does not match payment currency %s",
				ErrValidation, approved.Currency, maxRefundable.Currency)
		}
		if approved.Cmp(maxRefundable) > 0 {
			return nil, fmt.Errorf("%w: approved %s exceeds refundable %s",
				ErrInvalidRefundAmount, approved, maxRefundable)
		}

		to := StatusResolvedByCoach
		if approved.Cmp(maxRefundable) == 0 {
			to = StatusClosed
		}
		return &TransitionPlan{
			From: StatusAwaitingCoach,
			To:   to,
			Resolution: &Resolution{
				Action:            ResolutionRefundApproved,
				ResolvedBy:        coachID,
				ResolvedAt:        now,
				FinalRefundAmount: approved,
			},
			Note:       note,
			NoteSender: coachID,
			Settle: &SettlementIntent{
				Amount: approved,
				Reason: "coach approved refund for dispute " + t.ID,
			},
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown coach decision %q", ErrValidation, decision)
	}
}

// PlanClientEscalation decides whether a client may push a coach-resolved
// ticket to the admins. No money moves here. A zero window means escalation
// never expires.
func PlanClientEscalation(t *Ticket, clientID, reason string, window time.Duration, now time.Time) (*TransitionPlan, error) {
	if t.Status != StatusResolvedByCoach {
		return nil, fmt.Errorf("%w: escalation requires %s, ticket is %s", ErrInvalidStatus, StatusResolvedByCoach, t.Status)
	}
	if t.ClientID != clientID {
		return nil, fmt.Errorf("%w: client %s does not own ticket %s", ErrUnauthorized, clientID, t.ID)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: escalation reason is required", ErrValidation)
	}
	if window > 0 && t.Resolution != nil && now.Sub(t.Resolution.ResolvedAt) > window {
		return nil, fmt.Errorf("%w: coach resolved at %s, window is %s",
			ErrEscalationWindowClosed, t.Resolution.ResolvedAt.Format(time.RFC3339), window)
	}
	return &TransitionPlan{
		From:       StatusResolvedByCoach,
		To:         StatusEscalatedToAdmin,
		Note:       reason,
		NoteSender: clientID,
	}, nil
}

// PlanAdminResolution decides an admin's final call. The amount is the
// administrator's override and is deliberately not re-checked against the
// tier math; the only bound is the refundable balance.
func PlanAdminResolution(t *Ticket, adminID string, decision AdminDecision, finalAmount money.Money, maxRefundable money.Money, policyApplied, notes string, now time.Time) (*TransitionPlan, error) {
	if t.Status != StatusEscalatedToAdmin {
		return nil, fmt.Errorf("%w: admin resolution requires %s, ticket is %s", ErrInvalidStatus, StatusEscalatedToAdmin, t.Status)
	}

	switch decision {
	case AdminDeny:
		return &TransitionPlan{
			From: StatusEscalatedToAdmin,
			To:   StatusClosed,
			Resolution: &Resolution{
				Action:            ResolutionRefundDenied,
				ResolvedBy:        adminID,
				ResolvedAt:        now,
				FinalRefundAmount: money.Zero(maxRefundable.Currency),
				PolicyApplied:     policyApplied,
				Notes:             notes,
			},
			Note:       notes,
			NoteSender: adminID,
		}, nil

	case AdminApprove:
		if err := finalAmount.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if finalAmount.Currency != maxRefundable.Currency {
			return nil, fmt.Errorf("%w: final currency %s does not match payment currency %s",
				ErrValidation, finalAmount.Currency, maxRefundable.Currency)
		}
		if finalAmount.Cmp(maxRefundable) > 0 {
			return nil, fmt.Errorf("%w: final %s exceeds refundable %s",
				ErrInvalidRefundAmount, finalAmount, maxRefundable)
		}

		plan := &TransitionPlan{
			From: StatusEscalatedToAdmin,
			To:   StatusClosed,
			Resolution: &Resolution{
				Action:            ResolutionRefundApproved,
				ResolvedBy:        adminID,
				ResolvedAt:        now,
				FinalRefundAmount: finalAmount,
				PolicyApplied:     policyApplied,
				Notes:             notes,
			},
			Note:       notes,
			NoteSender: adminID,
		}
		if !finalAmount.IsZero() {
			plan.Settle = &SettlementIntent{
				Amount: finalAmount,
				Reason: "admin approved refund for dispute " + t.ID,
			}
		} else {
			plan.Resolution.Action = ResolutionNoAction
		}
		return plan, nil

	default:
		return nil, fmt.Errorf("%w: unknown admin decision %q", ErrValidation, decision)
	}
}
