package domain

import "time"

// State 定义了预占记录的生命周期状态。
// PENDING 是唯一的非终态；CONFIRMED / RELEASED / EXPIRED 都是终态，
// 终态之间不允许流转，只允许同状态的幂等重入。
type State string

const (
	StatePending   State = "PENDING"   // 预占成功，等待订单完成或放弃
	StateConfirmed State = "CONFIRMED" // 订单完成，库存被永久消耗
	StateReleased  State = "RELEASED"  // 订单放弃，预占量已退回可售池
	StateExpired   State = "EXPIRED"   // 超时未确认，由后台 reaper 按 release 语义回收
)

// IsTerminal 判断状态是否为终态。
func (s State) IsTerminal() bool {
	return s == StateConfirmed || s == StateReleased || s == StateExpired
}

// ReservationItem 是预占中的一个订单行。
type ReservationItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Reservation 是预占聚合根：把一个订单和一组被临时占住的数量绑在一起。
// 它由订单工作流独占拥有，台账层从不自行创建预占。
type Reservation struct {
	ID        string
	OrderID   string
	Items     []ReservationItem
	State     State
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time // 零值表示不设软 TTL
}

// NewReservation 创建一个 PENDING 状态的预占。
// 编排器只有在所有条目都预占成功之后才会调用它，失败的尝试不会留下记录。
func NewReservation(id, orderID string, items []ReservationItem, ttl time.Duration) (*Reservation, error) {
	if id == "" || orderID == "" || len(items) == 0 {
		return nil, ErrInvalidRequest
	}
	for _, item := range items {
		if item.ProductID == "" || item.Quantity <= 0 {
			return nil, ErrInvalidRequest
		}
	}
	now := time.Now()
	r := &Reservation{
		ID:        id,
		OrderID:   orderID,
		Items:     items,
		State:     StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ttl > 0 {
		r.ExpiresAt = now.Add(ttl)
	}
	return r, nil
}

// MarkConfirmed 将 PENDING 流转为 CONFIRMED。
func (r *Reservation) MarkConfirmed() error {
	if r.State != StatePending {
		return ErrInvalidStateTransition
	}
	r.State = StateConfirmed
	r.UpdatedAt = time.Now()
	return nil
}

// MarkReleased 将 PENDING 流转为 RELEASED。
func (r *Reservation) MarkReleased() error {
	if r.State != StatePending {
		return ErrInvalidStateTransition
	}
	r.State = StateReleased
	r.UpdatedAt = time.Now()
	return nil
}

// MarkExpired 将 PENDING 流转为 EXPIRED，只应由后台 reaper 调用。
func (r *Reservation) MarkExpired() error {
	if r.State != StatePending {
		return ErrInvalidStateTransition
	}
	r.State = StateExpired
	r.UpdatedAt = time.Now()
	return nil
}

// IsExpired 判断软 TTL 是否已经到期。
func (r *Reservation) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}
