// Package policy provides tiered cancellation policies and the refund
// evaluator that decides how much of a paid booking comes back to the
// client when it is cancelled.
package policy

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrPolicyNotFound = errors.New("cancellation policy not found")
	ErrInvalidPolicy  = errors.New("invalid cancellation policy")
)

// Tier maps a notice window to a refund percentage. A cancellation made at
// least HoursBeforeStart hours before the booking start falls into this band.
type Tier struct {
	HoursBeforeStart int    `json:"hoursBeforeStart"`
	RefundPercentage int    `json:"refundPercentage"`
	DescriptionKey   string `json:"descriptionKey,omitempty"`
}

// CancellationPolicy is a coach-owned set of refund bands. The dispute
// engine treats policies as read-only input.
type CancellationPolicy struct {
	ID                 string    `json:"id"`
	CoachID            string    `json:"coachId"`
	MinimumNoticeHours int       `json:"minimumNoticeHours"`
	Tiers              []Tier    `json:"tiers"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Validate rejects malformed policies. A missing or malformed policy is an
// explicit error, never a silent zero-refund default.
func (p *CancellationPolicy) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: policy is missing", ErrInvalidPolicy)
	}
	if p.MinimumNoticeHours < 0 {
		return fmt.Errorf("%w: minimumNoticeHours must not be negative", ErrInvalidPolicy)
	}
	seen := make(map[int]bool, len(p.Tiers))
	for i, t := range p.Tiers {
		if t.HoursBeforeStart < 0 {
			return fmt.Errorf("%w: tier %d: hoursBeforeStart must not be negative", ErrInvalidPolicy, i)
		}
		if t.RefundPercentage < 0 || t.RefundPercentage > 100 {
			return fmt.Errorf("%w: tier %d: refundPercentage must be in [0,100]", ErrInvalidPolicy, i)
		}
		if seen[t.HoursBeforeStart] {
			return fmt.Errorf("%w: duplicate tier at %dh before start", ErrInvalidPolicy, t.HoursBeforeStart)
		}
		seen[t.HoursBeforeStart] = true
	}
	return nil
}

// Store persists cancellation policies.
type Store interface {
	Create(ctx context.Context, p *CancellationPolicy) error
	Get(ctx context.Context, id string) (*CancellationPolicy, error)
	GetByCoach(ctx context.Context, coachID string) (*CancellationPolicy, error)
	Update(ctx context.Context, p *CancellationPolicy) error
}
