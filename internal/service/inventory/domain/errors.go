package domain

import "errors"

// 库存子系统的错误分类。调用方通过 errors.Is 区分
// “可以重试”(LockTimeout / ConcurrencyConflict) 和 “不可重试”(其余) 两类错误。
var (
	// ErrOutOfStock 表示可用库存不足，属于永久性业务失败，不应自动重试。
	ErrOutOfStock = errors.New("insufficient available stock")

	// ErrLockTimeout 表示在限定时间内没有拿到行锁或分布式锁，属于瞬时错误。
	ErrLockTimeout = errors.New("lock acquisition timed out")

	// ErrConcurrencyConflict 表示乐观锁重试次数耗尽，由更上层决定是否整单重试。
	ErrConcurrencyConflict = errors.New("concurrent modification conflict")

	// ErrInvalidRequest 表示调用方参数错误（数量非正数、条目为空等）。
	ErrInvalidRequest = errors.New("invalid reservation request")

	// ErrReservationNotFound / ErrStockNotFound 是调用方引用了不存在的记录。
	ErrReservationNotFound = errors.New("reservation not found")
	ErrStockNotFound       = errors.New("stock record not found")

	// ErrStockAlreadyExists 表示重复为同一商品建账。
	ErrStockAlreadyExists = errors.New("stock record already exists")

	// ErrInvalidStateTransition 表示针对预占状态机的非法流转，例如
	// 对已释放的预占执行 confirm。
	ErrInvalidStateTransition = errors.New("invalid reservation state transition")

	// ErrLedgerUnderflow 表示一次扣减会把 reserved 或 quantity 减成负数。
	// 这是上游逻辑 bug 的信号，不是业务错误，必须大声失败而不是静默钳制。
	ErrLedgerUnderflow = errors.New("ledger decrement would go negative")
)

// Retryable 判断一个错误是否属于可自动重试的瞬时错误。
func Retryable(err error) bool {
	return errors.Is(err, ErrLockTimeout) || errors.Is(err, ErrConcurrencyConflict)
}
