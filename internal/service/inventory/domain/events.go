package domain

import "time"

// EventType 标识库存域事件的种类。
type EventType string

const (
	EventReservationCreated   EventType = "reservation.created"
	EventReservationConfirmed EventType = "reservation.confirmed"
	EventReservationReleased  EventType = "reservation.released"
	EventReservationExpired   EventType = "reservation.expired"
	EventLowStock             EventType = "stock.low"
)

// StockEvent 是对外发布的库存域事件。预占生命周期流转和低库存告警
// 共用同一个载体，下游按 Type 路由。
type StockEvent struct {
	Type          EventType         `json:"type"`
	ReservationID string            `json:"reservationId,omitempty"`
	OrderID       string            `json:"orderId,omitempty"`
	Items         []ReservationItem `json:"items,omitempty"`
	ProductID     string            `json:"productId,omitempty"`
	Available     int               `json:"available,omitempty"`
	Threshold     int               `json:"threshold,omitempty"`
	OccurredAt    time.Time         `json:"occurredAt"`
}

// StockAlertFact 是交给告警规则引擎评估的事实集合。
type StockAlertFact struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
	Threshold int    `json:"threshold"`
}
