package domain

import "time"

// StockRecord 是库存台账的聚合根，每个商品一条。
// 不变式: 0 <= reserved <= quantity 在任何并发交织下恒成立。
// Version 是单调递增的版本号，每次提交的变更都会加一，乐观锁依赖它做 CAS。
type StockRecord struct {
	ProductID         string
	Quantity          int
	Reserved          int
	Version           int64
	LowStockThreshold int
	WarehouseID       string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewStockRecord 为新商品建账。
func NewStockRecord(productID string, quantity, lowStockThreshold int, warehouseID string) (*StockRecord, error) {
	if productID == "" || quantity < 0 || lowStockThreshold < 0 {
		return nil, ErrInvalidRequest
	}
	now := time.Now()
	return &StockRecord{
		ProductID:         productID,
		Quantity:          quantity,
		Reserved:          0,
		Version:           1,
		LowStockThreshold: lowStockThreshold,
		WarehouseID:       warehouseID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Available 返回当前可售数量 quantity - reserved。
func (s *StockRecord) Available() int {
	if a := s.Quantity - s.Reserved; a > 0 {
		return a
	}
	return 0
}

// IsLowStock 判断可售数量是否已跌破告警阈值。
func (s *StockRecord) IsLowStock() bool {
	return s.Available() <= s.LowStockThreshold
}

// IsOutOfStock 判断是否已售罄。
func (s *StockRecord) IsOutOfStock() bool {
	return s.Available() <= 0
}

// Reserve 预占 qty 个单位。可用量不足时返回 ErrOutOfStock，台账不变。
func (s *StockRecord) Reserve(qty int) error {
	if qty <= 0 {
		return ErrInvalidRequest
	}
	if s.Available() < qty {
		return ErrOutOfStock
	}
	s.Reserved += qty
	s.Version++
	s.UpdatedAt = time.Now()
	return nil
}

// Release 把 qty 个预占量退回可售池。扣成负数说明上游逻辑出错。
func (s *StockRecord) Release(qty int) error {
	if qty <= 0 {
		return ErrInvalidRequest
	}
	if s.Reserved < qty {
		return ErrLedgerUnderflow
	}
	s.Reserved -= qty
	s.Version++
	s.UpdatedAt = time.Now()
	return nil
}

// Confirm 把 qty 个预占量转为永久消耗：reserved 和 quantity 同时扣减。
func (s *StockRecord) Confirm(qty int) error {
	if qty <= 0 {
		return ErrInvalidRequest
	}
	if s.Reserved < qty || s.Quantity < qty {
		return ErrLedgerUnderflow
	}
	s.Reserved -= qty
	s.Quantity -= qty
	s.Version++
	s.UpdatedAt = time.Now()
	return nil
}

// Restock 入库补货，只增加 quantity，不碰 reserved。
func (s *StockRecord) Restock(qty int) error {
	if qty <= 0 {
		return ErrInvalidRequest
	}
	s.Quantity += qty
	s.Version++
	s.UpdatedAt = time.Now()
	return nil
}
