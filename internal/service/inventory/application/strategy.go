package application

import (
	"context"

	"github.com/pkg/errors"

	"atlas/internal/pkg/logger"
	"atlas/internal/service/inventory/domain"
)

// Strategy 标识部署选用的预占策略。策略是全局配置，在服务启动时定死，
// 绝不按请求混用：同一批台账上混跑两种策略会重新引入竞态窗口。
type Strategy string

const (
	StrategyPessimistic Strategy = "pessimistic"
	StrategyOptimistic  Strategy = "optimistic"
)

// reservationStrategy 是单个商品预占动作的内部接口，
// 由悲观/乐观两条路径分别实现。
type reservationStrategy interface {
	reserve(ctx context.Context, productID string, qty int) error
}

// pessimisticStrategy 是默认的主路径：每个条目开一个事务，
// 在事务内拿台账行的排他锁后变更 reserved。等锁超时按有界退避重试。
type pessimisticStrategy struct {
	stocks      domain.StockRepository
	maxAttempts int
	backoff     backoff
}

func (s *pessimisticStrategy) reserve(ctx context.Context, productID string, qty int) error {
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		err := s.stocks.ReserveUnderRowLock(ctx, productID, qty)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrLockTimeout) {
			// OutOfStock 等永久性失败直接上抛，事务已回滚。
			return err
		}
		lastErr = err
		logger.Ctx(ctx).Warn().
			Str("product_id", productID).
			Int("attempt", attempt+1).
			Msg("row lock wait timed out, backing off before retry")
		if werr := s.backoff.wait(ctx, attempt); werr != nil {
			return errors.Wrap(domain.ErrLockTimeout, werr.Error())
		}
	}
	return errors.Wrapf(lastErr, "gave up after %d lock attempts on product %s", s.maxAttempts, productID)
}

// optimisticStrategy 在锁外读取 (available, version)，再用版本号做条件更新。
// 版本冲突从读取步骤重试，重试耗尽后返回 ConcurrencyConflict 交由更上层决断。
type optimisticStrategy struct {
	stocks     domain.StockRepository
	maxRetries int
	backoff    backoff
}

func (s *optimisticStrategy) reserve(ctx context.Context, productID string, qty int) error {
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		record, err := s.stocks.FindByProductID(ctx, productID)
		if err != nil {
			return err
		}
		if record.Available() < qty {
			return domain.ErrOutOfStock
		}

		err = s.stocks.ReserveWithVersionCheck(ctx, productID, qty, record.Version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			return err
		}

		optimisticConflictsTotal.Inc()
		if attempt == s.maxRetries {
			break
		}
		if werr := s.backoff.wait(ctx, attempt); werr != nil {
			return errors.Wrap(domain.ErrConcurrencyConflict, werr.Error())
		}
	}
	return errors.Wrapf(domain.ErrConcurrencyConflict,
		"version check lost %d times on product %s", s.maxRetries+1, productID)
}
