// Package reconciliation compares settled refunds against payment bookkeeping.
//
// Refund money moves inside a ticket transition; the refunded_cents update on
// the payment row happens after commit and is allowed to fail (it is
// bookkeeping, not the source of truth). This sweep finds the bookings where
// the two views have drifted apart so an operator can repair them.
package reconciliation

import (
	"context"
	"time"

	"github.com/coachwise/coachwise/internal/logging"
	"github.com/coachwise/coachwise/internal/money"
)

// SettledSource reports, per booking, the refund total confirmed by the
// settlement gateway (resolutions carrying a settlement reference).
type SettledSource interface {
	SettledRefundTotals(ctx context.Context) (map[string]money.Money, error)
}

// PaymentBook reports, per booking, the refund total recorded on the payment.
type PaymentBook interface {
	RefundedTotals(ctx context.Context) (map[string]money.Money, error)
}

// Drift is one booking whose settled refunds and payment bookkeeping disagree.
type Drift struct {
	BookingID string      `json:"bookingId"`
	Settled   money.Money `json:"settled"`
	Recorded  money.Money `json:"recorded"`
	DiffCents int64       `json:"diffCents"`
}

// Report is the outcome of one reconciliation run.
type Report struct {
	RanAt    time.Time `json:"ranAt"`
	Checked  int       `json:"checked"`
	Drifts   []Drift   `json:"drifts,omitempty"`
	Duration string    `json:"duration"`
}

// Service runs the refund drift check.
type Service struct {
	settled  SettledSource
	payments PaymentBook
}

func NewService(settled SettledSource, payments PaymentBook) *Service {
	return &Service{settled: settled, payments: payments}
}

// Run compares settled refund totals against recorded refund totals and
// returns the bookings that drifted. A booking with settled refunds but no
// payment row at all is reported with a zero recorded amount.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	defer func() { reconcileDuration.Observe(time.Since(start).Seconds()) }()

	settled, err := s.settled.SettledRefundTotals(ctx)
	if err != nil {
		reconcileErrors.Inc()
		return nil, err
	}
	recorded, err := s.payments.RefundedTotals(ctx)
	if err != nil {
		reconcileErrors.Inc()
		return nil, err
	}

	report := &Report{RanAt: start.UTC(), Checked: len(settled)}
	for bookingID, want := range settled {
		got, ok := recorded[bookingID]
		if !ok {
			got = money.New(0, want.Currency)
		}
		if got.Cents == want.Cents && got.Currency == want.Currency {
			continue
		}
		report.Drifts = append(report.Drifts, Drift{
			BookingID: bookingID,
			Settled:   want,
			Recorded:  got,
			DiffCents: want.Cents - got.Cents,
		})
	}
	report.Duration = time.Since(start).String()

	reconcileRefundDrift.Set(float64(len(report.Drifts)))
	if len(report.Drifts) > 0 {
		logging.L(ctx).Warn("refund bookkeeping drift detected",
			"bookings", len(report.Drifts),
			"checked", report.Checked)
	}
	return report, nil
}
