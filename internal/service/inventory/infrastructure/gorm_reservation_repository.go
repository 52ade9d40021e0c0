package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"atlas/internal/service/inventory/domain"
)

// GormReservationRepository 是 domain.ReservationRepository 的 GORM 实现。
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository 创建一个新的预占仓储实例。
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// Save 插入或更新预占记录。条目在创建后不变：更新路径只动 state 和
// updated_at，绝不重写条目行——整模型 upsert 会把条目当新行再插一遍。
func (r *GormReservationRepository) Save(ctx context.Context, reservation *domain.Reservation) error {
	model := ToReservationModel(reservation)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 按存在性判断而不是按受影响行数：值恰好没变的更新在 MySQL 里
		// 报告 0 行受影响，会被误判成待插入。
		var count int64
		if err := tx.Model(&ReservationModel{}).Where("id = ?", model.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return tx.Model(&ReservationModel{}).
				Where("id = ?", model.ID).
				Updates(map[string]interface{}{
					"state":      model.State,
					"updated_at": model.UpdatedAt,
				}).Error
		}
		return tx.Create(model).Error
	})
}

// FindByID 读取预占记录及其条目。
func (r *GormReservationRepository) FindByID(ctx context.Context, id string) (*domain.Reservation, error) {
	var model ReservationModel
	err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrReservationNotFound, "reservation %s", id)
		}
		return nil, err
	}
	return ToDomainReservation(&model), nil
}

// FindExpired 返回 expires_at 已过且仍处于 PENDING 的预占，供 reaper 回收。
func (r *GormReservationRepository) FindExpired(ctx context.Context, before time.Time, limit int) ([]*domain.Reservation, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []ReservationModel
	err := r.db.WithContext(ctx).Preload("Items").
		Where("state = ? AND expires_at IS NOT NULL AND expires_at <= ?", string(domain.StatePending), before).
		Order("expires_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	reservations := make([]*domain.Reservation, 0, len(models))
	for i := range models {
		reservations = append(reservations, ToDomainReservation(&models[i]))
	}
	return reservations, nil
}
