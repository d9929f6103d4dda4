package booking

import (
	"context"
	"sync"

	"github.com/coachwise/coachwise/internal/money"
)

// MemoryStore is an in-memory Lookup for tests and demo mode.
type MemoryStore struct {
	mu       sync.RWMutex
	bookings map[string]*Booking
	payments map[string]*PaymentContext // keyed by booking ID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookings: make(map[string]*Booking),
		payments: make(map[string]*PaymentContext),
	}
}

// Put seeds a booking together with its payment context.
func (s *MemoryStore) Put(b *Booking, pc *PaymentContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bc := *b
	s.bookings[b.ID] = &bc
	if pc != nil {
		pcc := *pc
		pcc.BookingID = b.ID
		if pcc.AlreadyRefunded.Currency == "" {
			pcc.AlreadyRefunded.Currency = pcc.AmountPaid.Currency
		}
		s.payments[b.ID] = &pcc
	}
}

func (s *MemoryStore) Get(_ context.Context, bookingID string) (*Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, ErrBookingNotFound
	}
	bc := *b
	return &bc, nil
}

func (s *MemoryStore) PaymentFor(_ context.Context, bookingID string) (*PaymentContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.bookings[bookingID]; !ok {
		return nil, ErrBookingNotFound
	}
	pc, ok := s.payments[bookingID]
	if !ok {
		return nil, ErrPaymentContextMissing
	}
	pcc := *pc
	return &pcc, nil
}

func (s *MemoryStore) RecordRefunded(_ context.Context, bookingID string, amount money.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.payments[bookingID]
	if !ok {
		return ErrPaymentContextMissing
	}
	total, err := pc.AlreadyRefunded.Add(amount)
	if err != nil {
		return err
	}
	pc.AlreadyRefunded = total
	return nil
}

// RefundedTotals returns the refunded amount recorded against each booking's
// payment. Used by the reconciliation sweep.
func (s *MemoryStore) RefundedTotals(_ context.Context) (map[string]money.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totals := make(map[string]money.Money, len(s.payments))
	for id, pc := range s.payments {
		totals[id] = pc.AlreadyRefunded
	}
	return totals, nil
}

var _ Lookup = (*MemoryStore)(nil)
