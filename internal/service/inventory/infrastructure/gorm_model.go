package infrastructure

import (
	"database/sql"
	"time"
)

// StockModel 对应数据库中的 stock_inventory 表。
// version 列承载乐观锁；quantity/reserved 的非负约束由迁移脚本的
// CHECK 约束和仓储层的条件更新共同保证。
type StockModel struct {
	ID                uint           `gorm:"primarykey"`
	ProductID         string         `gorm:"uniqueIndex;size:64;not null"`
	Quantity          int            `gorm:"not null;default:0"`
	Reserved          int            `gorm:"not null;default:0"`
	Version           int64          `gorm:"not null;default:1"`
	LowStockThreshold int            `gorm:"not null;default:10"`
	WarehouseID       sql.NullString `gorm:"size:50"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName 指定 GORM 应该使用的表名
func (StockModel) TableName() string {
	return "stock_inventory"
}

// ReservationModel 对应数据库中的 stock_reservation 表。
type ReservationModel struct {
	ID        string       `gorm:"primarykey;size:36"`
	OrderID   string       `gorm:"index;size:64;not null"`
	State     string       `gorm:"size:16;not null;index:idx_state_expires"`
	ExpiresAt sql.NullTime `gorm:"index:idx_state_expires"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// 关联关系
	Items []ReservationItemModel `gorm:"foreignKey:ReservationID"`
}

// TableName 指定 GORM 应该使用的表名
func (ReservationModel) TableName() string {
	return "stock_reservation"
}

// ReservationItemModel 对应数据库中的 stock_reservation_item 表。
type ReservationItemModel struct {
	ID            uint   `gorm:"primarykey"`
	ReservationID string `gorm:"index;size:36;not null"`
	ProductID     string `gorm:"size:64;not null"`
	Quantity      int    `gorm:"not null"`
}

// TableName 指定 GORM 应该使用的表名
func (ReservationItemModel) TableName() string {
	return "stock_reservation_item"
}
