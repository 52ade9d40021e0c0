package domain

import (
	"context"
	"time"
)

// StockRepository 定义了库存台账的持久化接口。
// 台账所在的行是唯一的事实来源，所有正确性关键的变更都在这里串行化。
type StockRepository interface {
	// Create 为新商品建账，重复建账返回 ErrStockAlreadyExists。
	Create(ctx context.Context, record *StockRecord) error

	// FindByProductID 读取一条台账（无锁快照，供乐观路径读取 version）。
	FindByProductID(ctx context.Context, productID string) (*StockRecord, error)

	// GetAvailable 返回 quantity - reserved，无副作用。
	GetAvailable(ctx context.Context, productID string) (int, error)

	// ReserveUnderRowLock 在一个事务内对台账行加排他锁，校验可用量后
	// 增加 reserved 和 version。库存不足返回 ErrOutOfStock（事务回滚），
	// 等锁超时返回 ErrLockTimeout。
	ReserveUnderRowLock(ctx context.Context, productID string, qty int) error

	// ReserveWithVersionCheck 用一条条件更新做 CAS:
	// UPDATE ... WHERE version = expectedVersion AND available >= qty。
	// 版本不匹配返回 ErrConcurrencyConflict，库存不足返回 ErrOutOfStock。
	// 不持有显式锁，冲突靠上层重试解决。
	ReserveWithVersionCheck(ctx context.Context, productID string, qty int, expectedVersion int64) error

	// Release 把 qty 个预占量退回可售池；会减成负数时返回 ErrLedgerUnderflow。
	Release(ctx context.Context, productID string, qty int) error

	// Confirm 永久消耗 qty 个单位：reserved 和 quantity 同时扣减。
	Confirm(ctx context.Context, productID string, qty int) error

	// Restock 管理入口，只增加 quantity。
	Restock(ctx context.Context, productID string, qty int) error

	// LowStock 按可用量升序返回已跌破阈值的台账。
	LowStock(ctx context.Context, limit int) ([]*StockRecord, error)

	// OutOfStock 返回已售罄的台账。
	OutOfStock(ctx context.Context) ([]*StockRecord, error)
}

// ReservationRepository 定义了预占记录的持久化接口。
type ReservationRepository interface {
	Save(ctx context.Context, reservation *Reservation) error
	FindByID(ctx context.Context, id string) (*Reservation, error)

	// FindExpired 返回 expires_at 早于 before 且仍处于 PENDING 的预占，
	// 供后台 reaper 批量回收。
	FindExpired(ctx context.Context, before time.Time, limit int) ([]*Reservation, error)
}
