package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReservation(t *testing.T) {
	items := []ReservationItem{{ProductID: "sku-1", Quantity: 2}}

	r, err := NewReservation("res-1", "order-1", items, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StatePending, r.State)
	assert.False(t, r.ExpiresAt.IsZero())
	assert.False(t, r.IsExpired(time.Now()))
	assert.True(t, r.IsExpired(time.Now().Add(2*time.Minute)))

	// ttl=0 表示不设软 TTL
	r, err = NewReservation("res-2", "order-1", items, 0)
	require.NoError(t, err)
	assert.True(t, r.ExpiresAt.IsZero())
	assert.False(t, r.IsExpired(time.Now().Add(time.Hour)))

	cases := []struct {
		name    string
		id      string
		orderID string
		items   []ReservationItem
	}{
		{"missing id", "", "order-1", items},
		{"missing order", "res-1", "", items},
		{"no items", "res-1", "order-1", nil},
		{"zero quantity item", "res-1", "order-1", []ReservationItem{{ProductID: "sku-1"}}},
		{"missing product id", "res-1", "order-1", []ReservationItem{{Quantity: 1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewReservation(tc.id, tc.orderID, tc.items, 0)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestReservationStateMachine(t *testing.T) {
	items := []ReservationItem{{ProductID: "sku-1", Quantity: 1}}

	t.Run("pending to confirmed", func(t *testing.T) {
		r, _ := NewReservation("res-1", "order-1", items, 0)
		require.NoError(t, r.MarkConfirmed())
		assert.Equal(t, StateConfirmed, r.State)
		// 终态之间不允许流转
		assert.ErrorIs(t, r.MarkReleased(), ErrInvalidStateTransition)
		assert.ErrorIs(t, r.MarkExpired(), ErrInvalidStateTransition)
		assert.ErrorIs(t, r.MarkConfirmed(), ErrInvalidStateTransition)
	})

	t.Run("pending to released", func(t *testing.T) {
		r, _ := NewReservation("res-1", "order-1", items, 0)
		require.NoError(t, r.MarkReleased())
		assert.Equal(t, StateReleased, r.State)
		assert.ErrorIs(t, r.MarkConfirmed(), ErrInvalidStateTransition)
	})

	t.Run("pending to expired", func(t *testing.T) {
		r, _ := NewReservation("res-1", "order-1", items, 0)
		require.NoError(t, r.MarkExpired())
		assert.Equal(t, StateExpired, r.State)
		assert.ErrorIs(t, r.MarkConfirmed(), ErrInvalidStateTransition)
	})
}

func TestStateIsTerminal(t *testing.T) {
	assert.False(t, StatePending.IsTerminal())
	assert.True(t, StateConfirmed.IsTerminal())
	assert.True(t, StateReleased.IsTerminal())
	assert.True(t, StateExpired.IsTerminal())
}
