package application

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"atlas/internal/pkg/logger"
	"atlas/internal/service/inventory/domain"
	"atlas/internal/service/inventory/domain/port"
)

const lockKeyPrefix = "inventory-lock:"

// Options 是预占编排器的运行参数，全部来自启动配置。
type Options struct {
	Strategy               Strategy
	LockWaitTimeout        time.Duration // 分布式锁与行锁的有界等待
	LockTTL                time.Duration // 分布式锁的自愈过期时间
	PessimisticMaxAttempts int
	OptimisticMaxRetries   int
	RetryBackoffBase       time.Duration
	ReservationTTL         time.Duration // PENDING 预占的软 TTL，零值表示不过期
}

func (o *Options) withDefaults() {
	if o.Strategy == "" {
		o.Strategy = StrategyPessimistic
	}
	if o.LockWaitTimeout <= 0 {
		o.LockWaitTimeout = 200 * time.Millisecond
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 10 * time.Second
	}
	if o.PessimisticMaxAttempts <= 0 {
		o.PessimisticMaxAttempts = 3
	}
	if o.OptimisticMaxRetries <= 0 {
		o.OptimisticMaxRetries = 5
	}
	if o.RetryBackoffBase <= 0 {
		o.RetryBackoffBase = 20 * time.Millisecond
	}
}

// ReservationService 是库存预占子系统的公共入口。
// 它串接多条目预占的无死锁顺序、策略选择和部分失败时的补偿回滚。
// 台账和锁管理器都是构造时注入的显式依赖，方便用假实现做并发测试。
type ReservationService struct {
	stocks       domain.StockRepository
	reservations domain.ReservationRepository
	locker       port.DistributedLocker // 可为 nil：部署未启用二级锁
	publisher    port.StockEventPublisher
	strategy     reservationStrategy
	tracer       trace.Tracer
	opts         Options
}

// NewReservationService 组装编排器。策略在这里一次性定死（配置选择的
// tagged variant），不做按请求的运行时多态。
func NewReservationService(
	stocks domain.StockRepository,
	reservations domain.ReservationRepository,
	locker port.DistributedLocker,
	publisher port.StockEventPublisher,
	tracer trace.Tracer,
	opts Options,
) (*ReservationService, error) {
	opts.withDefaults()

	bo := newBackoff(opts.RetryBackoffBase, opts.LockWaitTimeout*2)
	var strat reservationStrategy
	switch opts.Strategy {
	case StrategyPessimistic:
		strat = &pessimisticStrategy{stocks: stocks, maxAttempts: opts.PessimisticMaxAttempts, backoff: bo}
	case StrategyOptimistic:
		strat = &optimisticStrategy{stocks: stocks, maxRetries: opts.OptimisticMaxRetries, backoff: bo}
	default:
		return nil, errors.Errorf("unknown reservation strategy: %q", opts.Strategy)
	}

	return &ReservationService{
		stocks:       stocks,
		reservations: reservations,
		locker:       locker,
		publisher:    publisher,
		strategy:     strat,
		tracer:       tracer,
		opts:         opts,
	}, nil
}

// Reserve 对一组订单行做全有或全无的预占。
// 条目按 productId 升序处理，为所有并发调用方固定一个全序的加锁顺序，
// 这是多条目预占之间不会循环等待的根本保证。
func (s *ReservationService) Reserve(ctx context.Context, req *ReserveRequest) (*ReserveResponse, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.Reserve")
	defer span.End()

	if req == nil || req.OrderID == "" || len(req.Items) == 0 {
		reservationsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.ErrInvalidRequest
	}
	items := make([]domain.ReservationItem, 0, len(req.Items))
	for _, item := range req.Items {
		if item.ProductID == "" || item.Quantity <= 0 {
			reservationsTotal.WithLabelValues("invalid").Inc()
			return nil, errors.Wrapf(domain.ErrInvalidRequest, "bad quantity for product %q", item.ProductID)
		}
		items = append(items, domain.ReservationItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	span.SetAttributes(
		attribute.String("order.id", req.OrderID),
		attribute.Int("items.count", len(items)),
	)

	reserved := make([]domain.ReservationItem, 0, len(items))
	for _, item := range items {
		if err := s.reserveOne(ctx, item); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "reservation failed, compensating")
			s.compensate(ctx, reserved)
			reservationsTotal.WithLabelValues(resultLabel(err)).Inc()
			// 失败的尝试不落预占记录，调用方永远看不到半预占的订单。
			return nil, err
		}
		reserved = append(reserved, item)
	}

	reservation, err := domain.NewReservation(uuid.New().String(), req.OrderID, items, s.opts.ReservationTTL)
	if err != nil {
		s.compensate(ctx, reserved)
		reservationsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if err := s.reservations.Save(ctx, reservation); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist reservation")
		logger.Ctx(ctx).Error().Err(err).
			Str("order_id", req.OrderID).
			Msg("could not persist pending reservation, rolling back ledger")
		s.compensate(ctx, reserved)
		reservationsTotal.WithLabelValues("store_error").Inc()
		return nil, err
	}

	s.publish(ctx, &domain.StockEvent{
		Type:          domain.EventReservationCreated,
		ReservationID: reservation.ID,
		OrderID:       reservation.OrderID,
		Items:         reservation.Items,
		OccurredAt:    time.Now(),
	})
	reservationsTotal.WithLabelValues("success").Inc()
	span.AddEvent("all items reserved")

	return &ReserveResponse{ReservationID: reservation.ID, State: reservation.State}, nil
}

// reserveOne 预占单个条目：有界等待二级分布式锁，执行配置的策略，
// 台账变更提交后立刻归还锁，锁绝不跨越整个多条目调用持有。
func (s *ReservationService) reserveOne(ctx context.Context, item domain.ReservationItem) error {
	ctx, span := s.tracer.Start(ctx, "inventory.reserveItem")
	defer span.End()
	span.SetAttributes(
		attribute.String("product.id", item.ProductID),
		attribute.Int("quantity", item.Quantity),
	)

	key := lockKeyPrefix + item.ProductID
	token := s.acquireLock(ctx, key)
	if token != "" {
		defer func() {
			// Release 只在 token 匹配时删除，best effort。
			if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
				logger.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("failed to release distributed lock")
			}
		}()
	}

	return s.strategy.reserve(ctx, item.ProductID, item.Quantity)
}

// acquireLock 带上限地等待分布式锁。任何形式的失败（后端不可达、
// 等待超时）都降级为不持锁继续：事务行锁才是唯一的正确性权威，
// 这里只是减少争用的优化。返回空 token 表示本次未持锁。
func (s *ReservationService) acquireLock(ctx context.Context, key string) string {
	if s.locker == nil {
		return ""
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.opts.LockWaitTimeout)
	defer cancel()

	attempt := 0
	bo := newBackoff(5*time.Millisecond, 50*time.Millisecond)
	for {
		token, err := s.locker.Acquire(waitCtx, key, s.opts.LockTTL)
		if err == nil {
			return token
		}
		if errors.Is(err, port.ErrLockBusy) {
			if werr := bo.wait(waitCtx, attempt); werr == nil {
				attempt++
				continue
			}
			logger.Ctx(ctx).Warn().Str("key", key).
				Msg("distributed lock wait exhausted, degrading to row lock only")
		} else {
			logger.Ctx(ctx).Warn().Err(err).Str("key", key).
				Msg("distributed lock backend unavailable, degrading to row lock only")
		}
		lockDegradationsTotal.Inc()
		return ""
	}
}

// compensate 逆序释放已预占成功的条目。补偿失败意味着台账上留下了
// 悬挂的预占量，属于需要人工介入的严重错误。
func (s *ReservationService) compensate(ctx context.Context, reserved []domain.ReservationItem) {
	if len(reserved) == 0 {
		return
	}
	ctx, span := s.tracer.Start(ctx, "inventory.compensate")
	defer span.End()
	span.SetAttributes(attribute.Int("items.count", len(reserved)))

	for i := len(reserved) - 1; i >= 0; i-- {
		item := reserved[i]
		if err := s.stocks.Release(ctx, item.ProductID, item.Quantity); err != nil {
			span.RecordError(err)
			logger.Ctx(ctx).Error().Err(err).
				Str("product_id", item.ProductID).
				Int("quantity", item.Quantity).
				Msg("CRITICAL: compensation release failed, manual reconciliation required")
		}
	}
}

// Confirm 把预占转为永久消耗并流转到 CONFIRMED。
// 对已 CONFIRMED 的预占重复调用是幂等 no-op；对 RELEASED/EXPIRED 调用
// 是 InvalidStateTransition——已经退回可售池的库存不能被追溯消耗。
func (s *ReservationService) Confirm(ctx context.Context, reservationID string) error {
	ctx, span := s.tracer.Start(ctx, "inventory.Confirm")
	defer span.End()
	span.SetAttributes(attribute.String("reservation.id", reservationID))

	reservation, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		return err
	}

	switch reservation.State {
	case domain.StateConfirmed:
		span.AddEvent("already confirmed, idempotent no-op")
		return nil
	case domain.StateReleased, domain.StateExpired:
		return errors.Wrapf(domain.ErrInvalidStateTransition,
			"cannot confirm reservation %s in state %s", reservationID, reservation.State)
	}

	for _, item := range reservation.Items {
		if err := s.stocks.Confirm(ctx, item.ProductID, item.Quantity); err != nil {
			span.RecordError(err)
			logger.Ctx(ctx).Error().Err(err).
				Str("reservation_id", reservationID).
				Str("product_id", item.ProductID).
				Msg("CRITICAL: partial confirm, ledger needs reconciliation")
			return err
		}
	}
	if err := reservation.MarkConfirmed(); err != nil {
		return err
	}
	if err := s.reservations.Save(ctx, reservation); err != nil {
		return err
	}

	s.publish(ctx, &domain.StockEvent{
		Type:          domain.EventReservationConfirmed,
		ReservationID: reservation.ID,
		OrderID:       reservation.OrderID,
		Items:         reservation.Items,
		OccurredAt:    time.Now(),
	})
	return nil
}

// Release 把预占量退回可售池并流转到 RELEASED。
// 对已 RELEASED/EXPIRED 的预占重复调用是幂等 no-op。
func (s *ReservationService) Release(ctx context.Context, reservationID string) error {
	ctx, span := s.tracer.Start(ctx, "inventory.Release")
	defer span.End()
	span.SetAttributes(attribute.String("reservation.id", reservationID))

	reservation, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		return err
	}

	switch reservation.State {
	case domain.StateReleased, domain.StateExpired:
		span.AddEvent("already released, idempotent no-op")
		return nil
	case domain.StateConfirmed:
		return errors.Wrapf(domain.ErrInvalidStateTransition,
			"cannot release reservation %s in state %s", reservationID, reservation.State)
	}

	if err := s.releasePending(ctx, reservation, domain.StateReleased); err != nil {
		return err
	}
	s.publish(ctx, &domain.StockEvent{
		Type:          domain.EventReservationReleased,
		ReservationID: reservation.ID,
		OrderID:       reservation.OrderID,
		Items:         reservation.Items,
		OccurredAt:    time.Now(),
	})
	return nil
}

// releasePending 执行 release 语义：逐条目退回 reserved，然后把
// PENDING 流转到目标终态（RELEASED 或 EXPIRED）。
func (s *ReservationService) releasePending(ctx context.Context, reservation *domain.Reservation, target domain.State) error {
	for _, item := range reservation.Items {
		if err := s.stocks.Release(ctx, item.ProductID, item.Quantity); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("reservation_id", reservation.ID).
				Str("product_id", item.ProductID).
				Msg("CRITICAL: partial release, ledger needs reconciliation")
			return err
		}
	}

	var err error
	switch target {
	case domain.StateExpired:
		err = reservation.MarkExpired()
	default:
		err = reservation.MarkReleased()
	}
	if err != nil {
		return err
	}
	return s.reservations.Save(ctx, reservation)
}

// Restock 管理入口：入库补货，只增加 quantity。
func (s *ReservationService) Restock(ctx context.Context, productID string, qty int) error {
	ctx, span := s.tracer.Start(ctx, "inventory.Restock")
	defer span.End()

	if productID == "" || qty <= 0 {
		return domain.ErrInvalidRequest
	}
	return s.stocks.Restock(ctx, productID, qty)
}

// GetAvailable 返回商品当前可售数量。
func (s *ReservationService) GetAvailable(ctx context.Context, productID string) (int, error) {
	if productID == "" {
		return 0, domain.ErrInvalidRequest
	}
	return s.stocks.GetAvailable(ctx, productID)
}

// GetStock 返回台账快照。
func (s *ReservationService) GetStock(ctx context.Context, productID string) (*StockStatusResponse, error) {
	record, err := s.stocks.FindByProductID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &StockStatusResponse{
		ProductID: record.ProductID,
		Quantity:  record.Quantity,
		Reserved:  record.Reserved,
		Available: record.Available(),
		Version:   record.Version,
	}, nil
}

// CreateStock 为新商品建账。
func (s *ReservationService) CreateStock(ctx context.Context, req *CreateStockRequest) error {
	ctx, span := s.tracer.Start(ctx, "inventory.CreateStock")
	defer span.End()

	record, err := domain.NewStockRecord(req.ProductID, req.Quantity, req.LowStockThreshold, req.WarehouseID)
	if err != nil {
		return err
	}
	return s.stocks.Create(ctx, record)
}

// publish 尽力而为地发布域事件，失败只记日志。
func (s *ReservationService) publish(ctx context.Context, event *domain.StockEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Ctx(ctx).Warn().Err(err).
			Str("event_type", string(event.Type)).
			Msg("failed to publish stock event")
	}
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, domain.ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "conflict"
	case errors.Is(err, domain.ErrStockNotFound):
		return "not_found"
	default:
		return "error"
	}
}
