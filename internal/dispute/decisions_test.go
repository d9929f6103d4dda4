package dispute

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachwise/coachwise/internal/money"
)

var planNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func awaitingTicket() *Ticket {
	return &Ticket{
		ID:              "dsp_aaaaaaaaaaaaaaaa",
		BookingID:       "bk_bbbbbbbbbbbbbbbb",
		ClientID:        "cl_cccccccc",
		CoachID:         "co_dddddddd",
		Status:          StatusAwaitingCoach,
		RequestedRefund: money.New(10000, "CHF"),
	}
}

func TestPlanCoachFullApprovalCloses(t *testing.T) {
	tk := awaitingTicket()
	max := money.New(10000, "CHF")

	plan, err := PlanCoachResponse(tk, "co_dddddddd", CoachApprove, money.New(10000, "CHF"), max, "ok, full refund", planNow)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, plan.To)
	require.NotNil(t, plan.Settle)
	assert.Equal(t, int64(10000), plan.Settle.Amount.Cents)
	require.NotNil(t, plan.Resolution)
	assert.Equal(t, ResolutionRefundApproved, plan.Resolution.Action)
	assert.Equal(t, "co_dddddddd", plan.Resolution.ResolvedBy)
}

func TestPlanCoachPartialApprovalStaysOpen(t *testing.T) {
	tk := awaitingTicket()
	max := money.New(10000, "CHF")

	plan, err := PlanCoachResponse(tk, "co_dddddddd", CoachApprove, money.New(4000, "CHF"), max, "", planNow)
	require.NoError(t, err)
	assert.Equal(t, StatusResolvedByCoach, plan.To)
	require.NotNil(t, plan.Settle)
	assert.Equal(t, int64(4000), plan.Settle.Amount.Cents)
}

func TestPlanCoachDeclineEscalates(t *testing.T) {
	tk := awaitingTicket()

	plan, err := PlanCoachResponse(tk, "co_dddddddd", CoachDecline, money.Money{}, money.New(10000, "CHF"), "session happened as booked", planNow)
	require.NoError(t, err)
	assert.Equal(t, StatusEscalatedToAdmin, plan.To)
	assert.Nil(t, plan.Settle)
	assert.Nil(t, plan.Resolution)
	assert.Equal(t, "session happened as booked", plan.Note)
}

func TestPlanCoachResponseGuards(t *testing.T) {
	max := money.New(10000, "CHF")

	tk := awaitingTicket()
	tk.Status = StatusClosed
	_, err := PlanCoachResponse(tk, "co_dddddddd", CoachApprove, money.New(100, "CHF"), max, "", planNow)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	tk = awaitingTicket()
	_, err = PlanCoachResponse(tk, "co_other", CoachApprove, money.New(100, "CHF"), max, "", planNow)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = PlanCoachResponse(tk, "co_dddddddd", CoachApprove, money.New(10001, "CHF"), max, "", planNow)
	assert.ErrorIs(t, err, ErrInvalidRefundAmount)

	_, err = PlanCoachResponse(tk, "co_dddddddd", CoachApprove, money.New(0, "CHF"), max, "", planNow)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = PlanCoachResponse(tk, "co_dddddddd", CoachApprove, money.New(100, "USD"), max, "", planNow)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = PlanCoachResponse(tk, "co_dddddddd", CoachDecision("maybe"), money.Money{}, max, "", planNow)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPlanClientEscalation(t *testing.T) {
	tk := awaitingTicket()
	tk.Status = StatusResolvedByCoach
	tk.Resolution = &Resolution{
		Action:     ResolutionRefundApproved,
		ResolvedAt: planNow.Add(-24 * time.Hour),
	}

	plan, err := PlanClientEscalation(tk, "cl_cccccccc", "partial refund is not acceptable", 0, planNow)
	require.NoError(t, err)
	assert.Equal(t, StatusEscalatedToAdmin, plan.To)
	assert.Nil(t, plan.Settle)

	// window still open
	_, err = PlanClientEscalation(tk, "cl_cccccccc", "reason", 48*time.Hour, planNow)
	assert.NoError(t, err)

	// window closed
	_, err = PlanClientEscalation(tk, "cl_cccccccc", "reason", 12*time.Hour, planNow)
	assert.ErrorIs(t, err, ErrEscalationWindowClosed)

	// wrong actor
	_, err = PlanClientEscalation(tk, "cl_other", "reason", 0, planNow)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// missing reason
	_, err = PlanClientEscalation(tk, "cl_cccccccc", "", 0, planNow)
	assert.ErrorIs(t, err, ErrValidation)

	// wrong state
	tk.Status = StatusAwaitingCoach
	_, err = PlanClientEscalation(tk, "cl_cccccccc", "reason", 0, planNow)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestPlanAdminResolution(t *testing.T) {
	max := money.New(6000, "CHF")

	tk := awaitingTicket()
	tk.Status = StatusEscalatedToAdmin

	plan, err := PlanAdminResolution(tk, "ad_11112222", AdminApprove, money.New(6000, "CHF"), max, "pol_12345678", "granting in full", planNow)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, plan.To)
	require.NotNil(t, plan.Settle)
	assert.Equal(t, ResolutionRefundApproved, plan.Resolution.Action)
	assert.Equal(t, "pol_12345678", plan.Resolution.PolicyApplied)

	// deny moves no money
	plan, err = PlanAdminResolution(tk, "ad_11112222", AdminDeny, money.Money{}, max, "", "no grounds", planNow)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, plan.To)
	assert.Nil(t, plan.Settle)
	assert.Equal(t, ResolutionRefundDenied, plan.Resolution.Action)

	// zero-amount approval closes with no settlement
	plan, err = PlanAdminResolution(tk, "ad_11112222", AdminApprove, money.New(0, "CHF"), max, "", "", planNow)
	require.NoError(t, err)
	assert.Nil(t, plan.Settle)
	assert.Equal(t, ResolutionNoAction, plan.Resolution.Action)

	// over the refundable balance
	_, err = PlanAdminResolution(tk, "ad_11112222", AdminApprove, money.New(6001, "CHF"), max, "", "", planNow)
	assert.ErrorIs(t, err, ErrInvalidRefundAmount)

	// wrong state
	tk.Status = StatusClosed
	_, err = PlanAdminResolution(tk, "ad_11112222", AdminDeny, money.Money{}, max, "", "", planNow)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestAdminOverrideIgnoresTierMath(t *testing.T) {
	// The admin amount is bounded only by the refundable balance, not by
	// what the tier evaluation would have produced.
	tk := awaitingTicket()
	tk.Status = StatusEscalatedToAdmin
	max := money.New(10000, "CHF")

	plan, err := PlanAdminResolution(tk, "ad_11112222", AdminApprove, money.New(9999, "CHF"), max, "", "goodwill", planNow)
	require.NoError(t, err)
	assert.Equal(t, int64(9999), plan.Settle.Amount.Cents)
}
