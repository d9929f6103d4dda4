package dispute

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coachwise/coachwise/internal/money"
)

// MemoryStore is an in-memory Store for tests and demo mode. A single
// mutex serializes all transitions, which makes the status recheck in
// Transition equivalent to the row-lock recheck in the Postgres store.
type MemoryStore struct {
	mu      sync.Mutex
	tickets map[string]*Ticket
	// commitErr, when set, fails the next Transition commit after apply
	// has run. Tests use it to exercise the inconsistency path.
	commitErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tickets: make(map[string]*Ticket)}
}

// FailNextCommit makes the next Transition fail at commit time, after apply
// has already run. Test hook for the reconciliation path.
func (s *MemoryStore) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

func (s *MemoryStore) Create(_ context.Context, t *Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tickets {
		if existing.BookingID == t.BookingID && existing.Status.Active() {
			return ErrDuplicateActiveDispute
		}
	}
	s.tickets[t.ID] = copyTicket(t)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, ticketID string) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ticketID]
	if !ok {
		return nil, ErrTicketNotFound
	}
	return copyTicket(t), nil
}

func (s *MemoryStore) ListByBooking(_ context.Context, bookingID string) ([]*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Ticket
	for _, t := range s.tickets {
		if t.BookingID == bookingID {
			out = append(out, copyTicket(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ActiveByBooking(_ context.Context, bookingID string) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets {
		if t.BookingID == bookingID && t.Status.Active() {
			return copyTicket(t), nil
		}
	}
	return nil, ErrTicketNotFound
}

func (s *MemoryStore) Transition(_ context.Context, ticketID string, expected Status, apply func(*Ticket) error) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tickets[ticketID]
	if !ok {
		return nil, ErrTicketNotFound
	}
	if stored.Status != expected {
		return nil, ErrConcurrentModification
	}

	// apply works on a copy so a failure leaves the stored ticket untouched.
	working := copyTicket(stored)
	if err := apply(working); err != nil {
		return nil, err
	}

	if s.commitErr != nil {
		err := s.commitErr
		s.commitErr = nil
		return nil, err
	}

	working.UpdatedAt = time.Now().UTC()
	s.tickets[ticketID] = working
	return copyTicket(working), nil
}

// SettledRefundTotals sums, per booking, every refund that reached the
// settlement gateway, across the whole settlement ledger of every ticket.
// Used by the reconciliation sweep.
func (s *MemoryStore) SettledRefundTotals(_ context.Context) (map[string]money.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := make(map[string]money.Money)
	for _, t := range s.tickets {
		for _, rec := range t.Settlements {
			if cur, ok := totals[t.BookingID]; ok {
				sum, err := cur.Add(rec.Amount)
				if err != nil {
					return nil, err
				}
				totals[t.BookingID] = sum
			} else {
				totals[t.BookingID] = rec.Amount
			}
		}
	}
	return totals, nil
}

func copyTicket(t *Ticket) *Ticket {
	c := *t
	c.Messages = make([]Message, len(t.Messages))
	copy(c.Messages, t.Messages)
	if len(t.Settlements) > 0 {
		c.Settlements = make([]SettlementRecord, len(t.Settlements))
		copy(c.Settlements, t.Settlements)
	}
	if t.Resolution != nil {
		r := *t.Resolution
		c.Resolution = &r
	}
	return &c
}

var _ Store = (*MemoryStore)(nil)
