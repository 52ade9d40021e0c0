package application

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"atlas/internal/service/inventory/domain"
	"atlas/internal/service/inventory/domain/port"
)

// memStocks 是 domain.StockRepository 的内存实现。
// 每个商品一把互斥锁，模拟数据库的行锁语义：ReserveUnderRowLock 在
// 行锁内检查并变更，ReserveWithVersionCheck 在全局锁内做 CAS。
type memStocks struct {
	mu      sync.Mutex
	rows    map[string]*domain.StockRecord
	rowLock map[string]*sync.Mutex

	// forceConflicts 让接下来 N 次版本检查强制失败，测试乐观重试用。
	forceConflicts int

	// lockTimeouts 让接下来 N 次行锁获取超时，测试悲观重试用。
	lockTimeouts int
}

func newMemStocks() *memStocks {
	return &memStocks{
		rows:    make(map[string]*domain.StockRecord),
		rowLock: make(map[string]*sync.Mutex),
	}
}

func (m *memStocks) seed(productID string, quantity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[productID] = &domain.StockRecord{
		ProductID: productID,
		Quantity:  quantity,
		Version:   1,
	}
	m.rowLock[productID] = &sync.Mutex{}
}

func (m *memStocks) snapshot(productID string) domain.StockRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[productID]
}

func (m *memStocks) row(productID string) (*domain.StockRecord, *sync.Mutex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[productID]
	if !ok {
		return nil, nil, errors.Wrapf(domain.ErrStockNotFound, "product %s", productID)
	}
	return rec, m.rowLock[productID], nil
}

func (m *memStocks) Create(_ context.Context, record *domain.StockRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[record.ProductID]; ok {
		return domain.ErrStockAlreadyExists
	}
	clone := *record
	m.rows[record.ProductID] = &clone
	m.rowLock[record.ProductID] = &sync.Mutex{}
	return nil
}

func (m *memStocks) FindByProductID(_ context.Context, productID string) (*domain.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[productID]
	if !ok {
		return nil, errors.Wrapf(domain.ErrStockNotFound, "product %s", productID)
	}
	clone := *rec
	return &clone, nil
}

func (m *memStocks) GetAvailable(ctx context.Context, productID string) (int, error) {
	rec, err := m.FindByProductID(ctx, productID)
	if err != nil {
		return 0, err
	}
	return rec.Available(), nil
}

func (m *memStocks) ReserveUnderRowLock(_ context.Context, productID string, qty int) error {
	m.mu.Lock()
	if m.lockTimeouts > 0 {
		m.lockTimeouts--
		m.mu.Unlock()
		return domain.ErrLockTimeout
	}
	m.mu.Unlock()

	rec, lock, err := m.row(productID)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()
	return rec.Reserve(qty)
}

func (m *memStocks) ReserveWithVersionCheck(_ context.Context, productID string, qty int, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[productID]
	if !ok {
		return errors.Wrapf(domain.ErrStockNotFound, "product %s", productID)
	}
	if m.forceConflicts > 0 {
		m.forceConflicts--
		return domain.ErrConcurrencyConflict
	}
	if rec.Version != expectedVersion {
		return domain.ErrConcurrencyConflict
	}
	return rec.Reserve(qty)
}

func (m *memStocks) Release(_ context.Context, productID string, qty int) error {
	rec, lock, err := m.row(productID)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()
	return rec.Release(qty)
}

func (m *memStocks) Confirm(_ context.Context, productID string, qty int) error {
	rec, lock, err := m.row(productID)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()
	return rec.Confirm(qty)
}

func (m *memStocks) Restock(_ context.Context, productID string, qty int) error {
	rec, lock, err := m.row(productID)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()
	return rec.Restock(qty)
}

func (m *memStocks) LowStock(_ context.Context, limit int) ([]*domain.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.StockRecord
	for _, rec := range m.rows {
		if rec.IsLowStock() && len(out) < limit {
			clone := *rec
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *memStocks) OutOfStock(_ context.Context) ([]*domain.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.StockRecord
	for _, rec := range m.rows {
		if rec.IsOutOfStock() {
			clone := *rec
			out = append(out, &clone)
		}
	}
	return out, nil
}

// memReservations 是 domain.ReservationRepository 的内存实现。
type memReservations struct {
	mu   sync.Mutex
	rows map[string]*domain.Reservation
}

func newMemReservations() *memReservations {
	return &memReservations{rows: make(map[string]*domain.Reservation)}
}

func (m *memReservations) Save(_ context.Context, reservation *domain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *reservation
	m.rows[reservation.ID] = &clone
	return nil
}

func (m *memReservations) FindByID(_ context.Context, id string) (*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[id]
	if !ok {
		return nil, errors.Wrapf(domain.ErrReservationNotFound, "reservation %s", id)
	}
	clone := *rec
	return &clone, nil
}

func (m *memReservations) FindExpired(_ context.Context, before time.Time, limit int) ([]*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Reservation
	for _, rec := range m.rows {
		if rec.State == domain.StatePending && !rec.ExpiresAt.IsZero() && rec.ExpiresAt.Before(before) && len(out) < limit {
			clone := *rec
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *memReservations) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// fakeLocker 按模式模拟分布式锁后端的各种状态。
type lockerMode int

const (
	lockerOK lockerMode = iota
	lockerBusy
	lockerUnreachable
)

type fakeLocker struct {
	mode lockerMode

	mu       sync.Mutex
	acquired int
	released int
}

func (f *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.mode {
	case lockerBusy:
		return "", port.ErrLockBusy
	case lockerUnreachable:
		return "", port.ErrLockUnavailable
	default:
		f.acquired++
		return "token-" + key, nil
	}
}

func (f *fakeLocker) Release(_ context.Context, _ string, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return nil
}
