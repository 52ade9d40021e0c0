package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/internal/service/inventory/domain"
)

func TestReapOnceExpiresAbandonedReservations(t *testing.T) {
	stocks := newMemStocks()
	stocks.seed("sku-1", 10)
	reservations := newMemReservations()
	service := newTestService(t, stocks, reservations, &fakeLocker{},
		Options{ReservationTTL: 10 * time.Millisecond})
	ctx := context.Background()

	resp, err := service.Reserve(ctx, &ReserveRequest{
		OrderID: "order-1",
		Items:   []ItemRequest{{ProductID: "sku-1", Quantity: 4}},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, stocks.snapshot("sku-1").Reserved)

	time.Sleep(20 * time.Millisecond) // 越过软 TTL

	reaper := NewExpiryReaper(service, time.Minute, 10)
	reaped, err := reaper.ReapOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	// 预占量退回可售池，记录流转到 EXPIRED
	rec := stocks.snapshot("sku-1")
	assert.Equal(t, 0, rec.Reserved)
	assert.Equal(t, 10, rec.Available())

	saved, err := reservations.FindByID(ctx, resp.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateExpired, saved.State)

	// 过期之后再确认必须被拒绝
	err = service.Confirm(ctx, resp.ReservationID)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestReapOnceSkipsLiveReservations(t *testing.T) {
	stocks := newMemStocks()
	stocks.seed("sku-1", 10)
	reservations := newMemReservations()
	service := newTestService(t, stocks, reservations, &fakeLocker{},
		Options{ReservationTTL: time.Hour})
	ctx := context.Background()

	resp, err := service.Reserve(ctx, &ReserveRequest{
		OrderID: "order-1",
		Items:   []ItemRequest{{ProductID: "sku-1", Quantity: 4}},
	})
	require.NoError(t, err)

	reaper := NewExpiryReaper(service, time.Minute, 10)
	reaped, err := reaper.ReapOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, reaped)
	assert.Equal(t, 4, stocks.snapshot("sku-1").Reserved)

	saved, err := reservations.FindByID(ctx, resp.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePending, saved.State)
}

func TestReapOnceIgnoresZeroTTLReservations(t *testing.T) {
	stocks := newMemStocks()
	stocks.seed("sku-1", 10)
	reservations := newMemReservations()
	// 未配置 TTL：预占永不自动过期
	service := newTestService(t, stocks, reservations, &fakeLocker{}, Options{})
	ctx := context.Background()

	_, err := service.Reserve(ctx, &ReserveRequest{
		OrderID: "order-1",
		Items:   []ItemRequest{{ProductID: "sku-1", Quantity: 4}},
	})
	require.NoError(t, err)

	reaper := NewExpiryReaper(service, time.Minute, 10)
	reaped, err := reaper.ReapOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, reaped)
}
