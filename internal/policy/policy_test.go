package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	pol := &CancellationPolicy{
		ID:                 "pol_0123abcd",
		CoachID:            "ch_0123abcd",
		MinimumNoticeHours: 12,
		Tiers:              []Tier{{HoursBeforeStart: 24, RefundPercentage: 100}},
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}

	require.NoError(t, store.Create(ctx, pol))

	got, err := store.Get(ctx, "pol_0123abcd")
	require.NoError(t, err)
	assert.Equal(t, 12, got.MinimumNoticeHours)

	got, err = store.GetByCoach(ctx, "ch_0123abcd")
	require.NoError(t, err)
	assert.Equal(t, "pol_0123abcd", got.ID)

	got.MinimumNoticeHours = 6
	require.NoError(t, store.Update(ctx, got))

	got2, err := store.Get(ctx, "pol_0123abcd")
	require.NoError(t, err)
	assert.Equal(t, 6, got2.MinimumNoticeHours)
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "pol_ffffffff")
	assert.ErrorIs(t, err, ErrPolicyNotFound)

	_, err = store.GetByCoach(ctx, "ch_ffffffff")
	assert.ErrorIs(t, err, ErrPolicyNotFound)

	err = store.Update(ctx, &CancellationPolicy{ID: "pol_ffffffff"})
	assert.ErrorIs(t, err, ErrPolicyNotFound)
}

func TestMemoryStore_RejectsInvalid(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.Create(ctx, &CancellationPolicy{
		ID:    "pol_0123abcd",
		Tiers: []Tier{{HoursBeforeStart: -1, RefundPercentage: 100}},
	})
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	pol := &CancellationPolicy{
		ID:    "pol_0123abcd",
		Tiers: []Tier{{HoursBeforeStart: 24, RefundPercentage: 100}},
	}
	require.NoError(t, store.Create(ctx, pol))

	got, err := store.Get(ctx, "pol_0123abcd")
	require.NoError(t, err)
	got.Tiers[0].RefundPercentage = 1

	again, err := store.Get(ctx, "pol_0123abcd")
	require.NoError(t, err)
	assert.Equal(t, 100, again.Tiers[0].RefundPercentage)
}
