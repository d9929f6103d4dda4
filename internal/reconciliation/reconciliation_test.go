package reconciliation

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachwise/coachwise/internal/money"
)

type fakeSource struct {
	totals map[string]money.Money
	err    error
}

func (f *fakeSource) SettledRefundTotals(context.Context) (map[string]money.Money, error) {
	return f.totals, f.err
}

func (f *fakeSource) RefundedTotals(context.Context) (map[string]money.Money, error) {
	return f.totals, f.err
}

func TestRunNoDrift(t *testing.T) {
	totals := map[string]money.Money{
		"bk_1": money.New(5000, "EUR"),
		"bk_2": money.New(2500, "CHF"),
	}
	svc := NewService(&fakeSource{totals: totals}, &fakeSource{totals: totals})

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Empty(t, report.Drifts)
}

func TestRunReportsDrift(t *testing.T) {
	settled := &fakeSource{totals: map[string]money.Money{
		"bk_1": money.New(5000, "EUR"),
		"bk_2": money.New(2500, "CHF"),
		"bk_3": money.New(1000, "EUR"),
	}}
	recorded := &fakeSource{totals: map[string]money.Money{
		"bk_1": money.New(5000, "EUR"), // in sync
		"bk_2": money.New(1500, "CHF"), // bookkeeping behind by 1000
		// bk_3 has no payment row at all
	}}
	svc := NewService(settled, recorded)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Drifts, 2)

	byBooking := map[string]Drift{}
	for _, d := range report.Drifts {
		byBooking[d.BookingID] = d
	}
	assert.Equal(t, int64(1000), byBooking["bk_2"].DiffCents)
	assert.Equal(t, int64(1000), byBooking["bk_3"].DiffCents)
	assert.Equal(t, int64(0), byBooking["bk_3"].Recorded.Cents)
}

func TestRunPropagatesSourceError(t *testing.T) {
	boom := errors.New("db down")
	svc := NewService(&fakeSource{err: boom}, &fakeSource{})
	_, err := svc.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestTimerStop(t *testing.T) {
	svc := NewService(&fakeSource{totals: map[string]money.Money{}}, &fakeSource{totals: map[string]money.Money{}})
	timer := NewTimer(svc, 10*time.Millisecond, slog.Default())

	done := make(chan struct{})
	go func() {
		timer.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, timer.Running, time.Second, 5*time.Millisecond)
	timer.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not stop")
	}
	assert.False(t, timer.Running())
}
