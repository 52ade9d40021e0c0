package infrastructure

import (
	"database/sql"

	"atlas/internal/service/inventory/domain"
)

// ToDomainStock 将数据库模型转换为领域模型。
func ToDomainStock(m *StockModel) *domain.StockRecord {
	return &domain.StockRecord{
		ProductID:         m.ProductID,
		Quantity:          m.Quantity,
		Reserved:          m.Reserved,
		Version:           m.Version,
		LowStockThreshold: m.LowStockThreshold,
		WarehouseID:       m.WarehouseID.String,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// ToStockModel 将领域模型转换为数据库模型。
func ToStockModel(r *domain.StockRecord) *StockModel {
	return &StockModel{
		ProductID:         r.ProductID,
		Quantity:          r.Quantity,
		Reserved:          r.Reserved,
		Version:           r.Version,
		LowStockThreshold: r.LowStockThreshold,
		WarehouseID:       sql.NullString{String: r.WarehouseID, Valid: r.WarehouseID != ""},
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

// ToDomainReservation 将数据库模型转换为领域模型。
func ToDomainReservation(m *ReservationModel) *domain.Reservation {
	items := make([]domain.ReservationItem, 0, len(m.Items))
	for _, item := range m.Items {
		items = append(items, domain.ReservationItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	r := &domain.Reservation{
		ID:        m.ID,
		OrderID:   m.OrderID,
		Items:     items,
		State:     domain.State(m.State),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.ExpiresAt.Valid {
		r.ExpiresAt = m.ExpiresAt.Time
	}
	return r
}

// ToReservationModel 将领域模型转换为数据库模型。
func ToReservationModel(r *domain.Reservation) *ReservationModel {
	items := make([]ReservationItemModel, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, ReservationItemModel{
			ReservationID: r.ID,
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
		})
	}
	return &ReservationModel{
		ID:        r.ID,
		OrderID:   r.OrderID,
		State:     string(r.State),
		ExpiresAt: sql.NullTime{Time: r.ExpiresAt, Valid: !r.ExpiresAt.IsZero()},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Items:     items,
	}
}
