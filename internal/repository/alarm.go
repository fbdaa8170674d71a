package repository

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/checkout-kiosk/internal/models"
	"gorm.io/gorm"
)

// AlarmRepository 环境告警仓储接口
type AlarmRepository interface {
	BaseRepository
	Create(ctx context.Context, event *models.AlarmEvent) error
	Close(ctx context.Context, id uint, clearedAt time.Time) error
	FindByID(ctx context.Context, id uint) (*models.AlarmEvent, error)
	FindActive(ctx context.Context) ([]*models.AlarmEvent, error)
	Search(ctx context.Context, query *models.AlarmQuery) ([]*models.AlarmEvent, error)
	CountSince(ctx context.Context, kind models.AlarmKind, since time.Time) (int64, error)
	CleanupOldEvents(ctx context.Context, days int) error
}

// alarmRepo 环境告警仓储实现
type alarmRepo struct {
	*BaseRepo
}

// NewAlarmRepository 创建环境告警仓储
func NewAlarmRepository(db *gorm.DB) AlarmRepository {
	return &alarmRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Create 记录一次告警触发
func (r *alarmRepo) Create(ctx context.Context, event *models.AlarmEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// Close 标记告警解除
func (r *alarmRepo) Close(ctx context.Context, id uint, clearedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.AlarmEvent{}).
		Where("id = ? AND cleared_at IS NULL", id).
		Update("cleared_at", clearedAt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("告警不存在或已解除")
	}
	return nil
}

// FindByID 根据ID查找告警
func (r *alarmRepo) FindByID(ctx context.Context, id uint) (*models.AlarmEvent, error) {
	var event models.AlarmEvent
	err := r.db.WithContext(ctx).First(&event, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("告警不存在")
		}
		return nil, err
	}
	return &event, nil
}

// FindActive 查找所有未解除的告警
func (r *alarmRepo) FindActive(ctx context.Context) ([]*models.AlarmEvent, error) {
	var events []*models.AlarmEvent
	err := r.db.WithContext(ctx).
		Where("cleared_at IS NULL").
		Order("raised_at DESC").
		Find(&events).Error
	return events, err
}

// Search 按条件搜索告警记录
func (r *alarmRepo) Search(ctx context.Context, query *models.AlarmQuery) ([]*models.AlarmEvent, error) {
	var events []*models.AlarmEvent
	db := r.db.WithContext(ctx).Model(&models.AlarmEvent{})

	if query.Kind != "" {
		db = db.Where("kind = ?", query.Kind)
	}
	if query.ActiveOnly {
		db = db.Where("cleared_at IS NULL")
	}
	if query.StartTime != nil {
		db = db.Where("raised_at >= ?", *query.StartTime)
	}
	if query.EndTime != nil {
		db = db.Where("raised_at <= ?", *query.EndTime)
	}
	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}
	if query.Offset > 0 {
		db = db.Offset(query.Offset)
	}

	err := db.Order("raised_at DESC").Find(&events).Error
	return events, err
}

// CountSince 统计某类告警自指定时间以来的触发次数
func (r *alarmRepo) CountSince(ctx context.Context, kind models.AlarmKind, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AlarmEvent{}).
		Where("kind = ? AND raised_at >= ?", kind, since).
		Count(&count).Error
	return count, err
}

// CleanupOldEvents 清理过期的已解除告警
func (r *alarmRepo) CleanupOldEvents(ctx context.Context, days int) error {
	cutoff := time.Now().AddDate(0, 0, -days)
	return r.db.WithContext(ctx).
		Where("cleared_at IS NOT NULL AND raised_at < ?", cutoff).
		Delete(&models.AlarmEvent{}).Error
}

// WithTx 使用事务
func (r *alarmRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &alarmRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
