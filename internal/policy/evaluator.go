package policy

import (
	"fmt"
	"sort"
	"time"

	"github.com/coachwise/coachwise/internal/money"
)

// Reason codes carried on a RefundOutcome.
const (
	ReasonMinimumNoticeViolated = "MINIMUM_NOTICE_VIOLATED"
	ReasonTierMatched           = "TIER_MATCHED"
	ReasonFullRefundFallback    = "FULL_REFUND_FALLBACK"
)

// RefundOutcome is the result of evaluating a cancellation against a policy.
// It is computed fresh on every call ("now" is part of the input) and never
// persisted.
type RefundOutcome struct {
	Eligible         bool        `json:"eligible"`
	ReasonCode       string      `json:"reasonCode"`
	RefundPercentage int         `json:"refundPercentage"`
	GrossRefund      money.Money `json:"grossRefund"`
	AmountRetained   money.Money `json:"amountRetained"`
	MatchedTierHours int         `json:"matchedTierHoursBefore"`
}

// Evaluate computes the refund a client would receive for cancelling a
// booking that starts at bookingStart, as of now, under the given policy.
//
// Pure function: no I/O, no clock reads, safe for concurrent use. For any
// result, GrossRefund + AmountRetained equals paid exactly (minor units).
func Evaluate(bookingStart time.Time, pol *CancellationPolicy, now time.Time, paid money.Money) (*RefundOutcome, error) {
	if err := pol.Validate(); err != nil {
		return nil, err
	}
	if err := paid.Validate(); err != nil {
		return nil, fmt.Errorf("invalid payment amount: %w", err)
	}

	remainingHours := bookingStart.Sub(now).Hours() // negative once the booking started

	if remainingHours < float64(pol.MinimumNoticeHours) {
		return &RefundOutcome{
			Eligible:         false,
			ReasonCode:       ReasonMinimumNoticeViolated,
			RefundPercentage: 0,
			GrossRefund:      money.Zero(paid.Currency),
			AmountRetained:   paid,
			MatchedTierHours: -1,
		}, nil
	}

	// First tier (by descending notice requirement) whose threshold the
	// remaining notice meets wins. Boundary is inclusive.
	tiers := make([]Tier, len(pol.Tiers))
	copy(tiers, pol.Tiers)
	sort.Slice(tiers, func(i, j int) bool {
		return tiers[i].HoursBeforeStart > tiers[j].HoursBeforeStart
	})

	for _, t := range tiers {
		if remainingHours >= float64(t.HoursBeforeStart) {
			gross := paid.Percentage(t.RefundPercentage)
			retained, _ := paid.Sub(gross)
			return &RefundOutcome{
				Eligible:         true,
				ReasonCode:       ReasonTierMatched,
				RefundPercentage: t.RefundPercentage,
				GrossRefund:      gross,
				AmountRetained:   retained,
				MatchedTierHours: t.HoursBeforeStart,
			}, nil
		}
	}

	// The minimum-notice gate passed but no tier reaches this far down:
	// the gate itself acts as an implicit 100% tier, so passing it always
	// yields a defined outcome.
	return &RefundOutcome{
		Eligible:         true,
		ReasonCode:       ReasonFullRefundFallback,
		RefundPercentage: 100,
		GrossRefund:      paid,
		AmountRetained:   money.Zero(paid.Currency),
		MatchedTierHours: pol.MinimumNoticeHours,
	}, nil
}
