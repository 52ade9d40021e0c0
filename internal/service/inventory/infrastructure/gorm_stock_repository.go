package infrastructure

import (
	"context"
	"math"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"atlas/internal/service/inventory/domain"
)

// MySQL 错误码: 1205 = 等锁超时, 1213 = 死锁被检测并回滚, 1062 = 唯一键冲突。
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
	mysqlErrDuplicateEntry  = 1062
)

// GormStockRepository 是 domain.StockRepository 的 GORM/MySQL 实现。
// 台账行是唯一的事实来源：悲观路径靠 SELECT ... FOR UPDATE 串行化，
// 乐观路径靠 version 列上的条件更新。
type GormStockRepository struct {
	db       *gorm.DB
	lockWait time.Duration
}

// NewGormStockRepository 创建一个新的台账仓储实例。
func NewGormStockRepository(db *gorm.DB, lockWait time.Duration) *GormStockRepository {
	if lockWait <= 0 {
		lockWait = 200 * time.Millisecond
	}
	return &GormStockRepository{db: db, lockWait: lockWait}
}

// Create 为新商品建账，唯一键冲突翻译为 ErrStockAlreadyExists。
func (r *GormStockRepository) Create(ctx context.Context, record *domain.StockRecord) error {
	err := r.db.WithContext(ctx).Create(ToStockModel(record)).Error
	if isMysqlErr(err, mysqlErrDuplicateEntry) {
		return errors.Wrapf(domain.ErrStockAlreadyExists, "product %s", record.ProductID)
	}
	return r.translateLockErr(err)
}

// FindByProductID 无锁读取一条台账快照。
func (r *GormStockRepository) FindByProductID(ctx context.Context, productID string) (*domain.StockRecord, error) {
	var m StockModel
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrStockNotFound, "product %s", productID)
		}
		return nil, err
	}
	return ToDomainStock(&m), nil
}

// GetAvailable 返回 quantity - reserved。
func (r *GormStockRepository) GetAvailable(ctx context.Context, productID string) (int, error) {
	record, err := r.FindByProductID(ctx, productID)
	if err != nil {
		return 0, err
	}
	return record.Available(), nil
}

// ReserveUnderRowLock 在一个事务内锁行、校验可用量、增加 reserved。
// 行锁持续到事务提交；库存不足时返回 ErrOutOfStock 并回滚。
func (r *GormStockRepository) ReserveUnderRowLock(ctx context.Context, productID string, qty int) error {
	ctx, cancel := context.WithTimeout(ctx, r.lockWait)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 把会话的等锁上限压到配置值，避免在默认的 50s 上干等
		waitSecs := int(math.Ceil(r.lockWait.Seconds()))
		if waitSecs < 1 {
			waitSecs = 1
		}
		if err := tx.Exec("SET SESSION innodb_lock_wait_timeout = ?", waitSecs).Error; err != nil {
			return err
		}
		// 连接会回到连接池，离开前恢复全局默认值，不把压短的上限
		// 泄漏给后续借到同一连接的语句
		defer tx.Exec("SET SESSION innodb_lock_wait_timeout = DEFAULT")

		var m StockModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("product_id = ?", productID).
			First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrapf(domain.ErrStockNotFound, "product %s", productID)
			}
			return err
		}

		if m.Quantity-m.Reserved < qty {
			return errors.Wrapf(domain.ErrOutOfStock,
				"product %s: requested %d, available %d", productID, qty, m.Quantity-m.Reserved)
		}

		return tx.Model(&StockModel{}).Where("id = ?", m.ID).Updates(map[string]interface{}{
			"reserved": gorm.Expr("reserved + ?", qty),
			"version":  gorm.Expr("version + 1"),
		}).Error
	})

	return r.translateLockErr(err)
}

// ReserveWithVersionCheck 用一条条件更新做 CAS，不持有显式锁。
// 受影响行数为 0 时再读一次台账来区分版本冲突和库存不足。
func (r *GormStockRepository) ReserveWithVersionCheck(ctx context.Context, productID string, qty int, expectedVersion int64) error {
	res := r.db.WithContext(ctx).Model(&StockModel{}).
		Where("product_id = ? AND version = ? AND quantity - reserved >= ?", productID, expectedVersion, qty).
		Updates(map[string]interface{}{
			"reserved": gorm.Expr("reserved + ?", qty),
			"version":  gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return r.translateLockErr(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	record, err := r.FindByProductID(ctx, productID)
	if err != nil {
		return err
	}
	if record.Version != expectedVersion {
		return errors.Wrapf(domain.ErrConcurrencyConflict,
			"product %s: expected version %d, found %d", productID, expectedVersion, record.Version)
	}
	return errors.Wrapf(domain.ErrOutOfStock,
		"product %s: requested %d, available %d", productID, qty, record.Available())
}

// Release 把预占量退回可售池。条件更新里的 reserved >= qty 保证
// 永远不会把 reserved 减成负数——减不动就是上游逻辑 bug，大声失败。
func (r *GormStockRepository) Release(ctx context.Context, productID string, qty int) error {
	res := r.db.WithContext(ctx).Model(&StockModel{}).
		Where("product_id = ? AND reserved >= ?", productID, qty).
		Updates(map[string]interface{}{
			"reserved": gorm.Expr("reserved - ?", qty),
			"version":  gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return r.translateLockErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return r.classifyDecrementFailure(ctx, productID)
	}
	return nil
}

// Confirm 永久消耗预占量：reserved 和 quantity 同时扣减。
func (r *GormStockRepository) Confirm(ctx context.Context, productID string, qty int) error {
	res := r.db.WithContext(ctx).Model(&StockModel{}).
		Where("product_id = ? AND reserved >= ? AND quantity >= ?", productID, qty, qty).
		Updates(map[string]interface{}{
			"reserved": gorm.Expr("reserved - ?", qty),
			"quantity": gorm.Expr("quantity - ?", qty),
			"version":  gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return r.translateLockErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return r.classifyDecrementFailure(ctx, productID)
	}
	return nil
}

// Restock 入库补货。
func (r *GormStockRepository) Restock(ctx context.Context, productID string, qty int) error {
	res := r.db.WithContext(ctx).Model(&StockModel{}).
		Where("product_id = ?", productID).
		Updates(map[string]interface{}{
			"quantity": gorm.Expr("quantity + ?", qty),
			"version":  gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return r.translateLockErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(domain.ErrStockNotFound, "product %s", productID)
	}
	return nil
}

// LowStock 按可用量升序返回已跌破阈值的台账。
func (r *GormStockRepository) LowStock(ctx context.Context, limit int) ([]*domain.StockRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []StockModel
	err := r.db.WithContext(ctx).
		Where("quantity - reserved <= low_stock_threshold").
		Order("quantity - reserved ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toDomainStocks(models), nil
}

// OutOfStock 返回已售罄的台账。
func (r *GormStockRepository) OutOfStock(ctx context.Context) ([]*domain.StockRecord, error) {
	var models []StockModel
	err := r.db.WithContext(ctx).
		Where("quantity - reserved <= 0").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toDomainStocks(models), nil
}

func toDomainStocks(models []StockModel) []*domain.StockRecord {
	records := make([]*domain.StockRecord, 0, len(models))
	for i := range models {
		records = append(records, ToDomainStock(&models[i]))
	}
	return records
}

// classifyDecrementFailure 区分“记录不存在”和“扣减会变负数”。
func (r *GormStockRepository) classifyDecrementFailure(ctx context.Context, productID string) error {
	if _, err := r.FindByProductID(ctx, productID); err != nil {
		return err
	}
	return errors.Wrapf(domain.ErrLedgerUnderflow, "product %s", productID)
}

// translateLockErr 把驱动层的等锁/死锁/超时错误翻译为 domain.ErrLockTimeout。
// 死锁在 InnoDB 里会回滚其中一个事务，对调用方来说同样是“重试即可”。
func (r *GormStockRepository) translateLockErr(err error) error {
	if err == nil {
		return nil
	}
	if isMysqlErr(err, mysqlErrLockWaitTimeout) || isMysqlErr(err, mysqlErrDeadlock) ||
		errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(domain.ErrLockTimeout, err.Error())
	}
	return err
}

func isMysqlErr(err error, number uint16) bool {
	var myErr *gomysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == number
}
