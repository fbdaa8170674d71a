package repository

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/checkout-kiosk/internal/models"
	"gorm.io/gorm"
)

// PickupRepository 取货记录仓储接口
type PickupRepository interface {
	BaseRepository
	Create(ctx context.Context, record *models.PickupRecord) error
	FindByID(ctx context.Context, id uint) (*models.PickupRecord, error)
	FindByOrderRef(ctx context.Context, orderRef string) ([]*models.PickupRecord, error)
	GetRecent(ctx context.Context, limit int) ([]*models.PickupRecord, error)
	List(ctx context.Context, acceptedOnly bool, pagination *Pagination) ([]*models.PickupRecord, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// pickupRepo 取货记录仓储实现
type pickupRepo struct {
	*BaseRepo
}

// NewPickupRepository 创建取货记录仓储
func NewPickupRepository(db *gorm.DB) PickupRepository {
	return &pickupRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Create 记录一次取货码扫描
func (r *pickupRepo) Create(ctx context.Context, record *models.PickupRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// FindByID 根据ID查找记录
func (r *pickupRepo) FindByID(ctx context.Context, id uint) (*models.PickupRecord, error) {
	var record models.PickupRecord
	err := r.db.WithContext(ctx).First(&record, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("取货记录不存在")
		}
		return nil, err
	}
	return &record, nil
}

// FindByOrderRef 根据订单号查找扫描记录
func (r *pickupRepo) FindByOrderRef(ctx context.Context, orderRef string) ([]*models.PickupRecord, error) {
	var records []*models.PickupRecord
	err := r.db.WithContext(ctx).
		Where("order_ref = ?", orderRef).
		Order("scanned_at DESC").
		Find(&records).Error
	return records, err
}

// GetRecent 获取最近的扫描记录
func (r *pickupRepo) GetRecent(ctx context.Context, limit int) ([]*models.PickupRecord, error) {
	var records []*models.PickupRecord
	if limit <= 0 {
		limit = 10
	}
	err := r.db.WithContext(ctx).
		Order("scanned_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// List 分页查询扫描记录，pagination为nil时取默认分页
func (r *pickupRepo) List(ctx context.Context, acceptedOnly bool, pagination *Pagination) ([]*models.PickupRecord, error) {
	if pagination == nil {
		pagination = NewPagination(1, 20)
	}
	var records []*models.PickupRecord
	query := r.db.WithContext(ctx).Model(&models.PickupRecord{})
	if acceptedOnly {
		query = query.Where("accepted = ?", true)
	}

	var total int64
	query.Count(&total)
	pagination.Total = total

	err := query.
		Limit(pagination.PageSize).
		Offset((pagination.Page - 1) * pagination.PageSize).
		Order("scanned_at DESC").
		Find(&records).Error
	return records, err
}

// CountSince 统计自指定时间以来的扫描次数
func (r *pickupRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PickupRecord{}).
		Where("scanned_at >= ?", since).
		Count(&count).Error
	return count, err
}

// WithTx 使用事务
func (r *pickupRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &pickupRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
