package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"atlas/internal/pkg/logger"
	"atlas/internal/service/inventory/domain"
)

// ExpiryReaper 周期性地把超过软 TTL 仍未确认的 PENDING 预占流转到
// EXPIRED，副作用就是 release 语义：预占量退回可售池。
// 典型场景是被放弃的结账流程。
type ExpiryReaper struct {
	service  *ReservationService
	interval time.Duration
	batch    int
}

func NewExpiryReaper(service *ReservationService, interval time.Duration, batch int) *ExpiryReaper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &ExpiryReaper{service: service, interval: interval, batch: batch}
}

// Run 阻塞运行直到 ctx 取消，通常在独立 goroutine 中启动。
func (r *ExpiryReaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	logger.Ctx(ctx).Info().Dur("interval", r.interval).Msg("expiry reaper started")
	for {
		select {
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Msg("expiry reaper stopped")
			return
		case <-ticker.C:
			if n, err := r.ReapOnce(ctx); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("reap pass failed")
			} else if n > 0 {
				logger.Ctx(ctx).Info().Int("expired", n).Msg("reaped abandoned reservations")
			}
		}
	}
}

// ReapOnce 执行一轮回收，返回本轮过期的预占数。
func (r *ExpiryReaper) ReapOnce(ctx context.Context) (int, error) {
	ctx, span := r.service.tracer.Start(ctx, "inventory.Reap")
	defer span.End()

	expired, err := r.service.reservations.FindExpired(ctx, time.Now(), r.batch)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, reservation := range expired {
		if err := r.service.releasePending(ctx, reservation, domain.StateExpired); err != nil {
			span.RecordError(err)
			logger.Ctx(ctx).Error().Err(err).
				Str("reservation_id", reservation.ID).
				Msg("failed to expire reservation")
			continue
		}
		r.service.publish(ctx, &domain.StockEvent{
			Type:          domain.EventReservationExpired,
			ReservationID: reservation.ID,
			OrderID:       reservation.OrderID,
			Items:         reservation.Items,
			OccurredAt:    time.Now(),
		})
		reapedReservationsTotal.Inc()
		reaped++
	}
	span.SetAttributes(attribute.Int("reaped", reaped))
	return reaped, nil
}
