package application

import "atlas/internal/service/inventory/domain"

// ReserveRequest 是预占入口的应用层 DTO。
type ReserveRequest struct {
	OrderID string        `json:"orderId"`
	Items   []ItemRequest `json:"items"`
}

// ItemRequest 是请求中的一个订单行。
type ItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// ReserveResponse 在预占成功时返回。
type ReserveResponse struct {
	ReservationID string       `json:"reservationId"`
	State         domain.State `json:"state"`
}

// CreateStockRequest 为新商品建账。
type CreateStockRequest struct {
	ProductID         string `json:"productId"`
	Quantity          int    `json:"quantity"`
	LowStockThreshold int    `json:"lowStockThreshold"`
	WarehouseID       string `json:"warehouseId,omitempty"`
}

// StockStatusResponse 是台账的只读快照。
type StockStatusResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
	Version   int64  `json:"version"`
}
