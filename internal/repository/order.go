package repository

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/checkout-kiosk/internal/models"
	"gorm.io/gorm"
)

// OrderRepository 订单仓储接口
type OrderRepository interface {
	BaseRepository
	Create(ctx context.Context, order *models.Order) error
	Update(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uint) (*models.Order, error)
	FindByOrderNo(ctx context.Context, orderNo string) (*models.Order, error)
	Search(ctx context.Context, query *OrderQuery) ([]*models.Order, error)
	GetRecent(ctx context.Context, limit int) ([]*models.Order, error)
	CountByStatus(ctx context.Context, status models.OrderStatus) (int64, error)
	SumPaidCents(ctx context.Context, start, end time.Time) (int64, error)
}

// OrderQuery 订单查询条件
type OrderQuery struct {
	Status     models.OrderStatus `json:"status"`
	SessionID  string             `json:"session_id"`
	StartTime  time.Time          `json:"start_time"`
	EndTime    time.Time          `json:"end_time"`
	Pagination *Pagination
}

// orderRepo 订单仓储实现
type orderRepo struct {
	*BaseRepo
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Create 创建订单（含商品明细，同一事务写入）
func (r *orderRepo) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// Update 更新订单
func (r *orderRepo) Update(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

// FindByID 根据ID查找订单
func (r *orderRepo) FindByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("订单不存在")
		}
		return nil, err
	}
	return &order, nil
}

// FindByOrderNo 根据订单号查找
func (r *orderRepo) FindByOrderNo(ctx context.Context, orderNo string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").Where("order_no = ?", orderNo).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("订单不存在")
		}
		return nil, err
	}
	return &order, nil
}

// Search 按条件搜索订单
func (r *orderRepo) Search(ctx context.Context, query *OrderQuery) ([]*models.Order, error) {
	var orders []*models.Order
	db := r.db.WithContext(ctx).Model(&models.Order{})

	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}
	if query.SessionID != "" {
		db = db.Where("session_id = ?", query.SessionID)
	}
	if !query.StartTime.IsZero() {
		db = db.Where("created_at >= ?", query.StartTime)
	}
	if !query.EndTime.IsZero() {
		db = db.Where("created_at <= ?", query.EndTime)
	}

	if query.Pagination != nil {
		var total int64
		db.Count(&total)
		query.Pagination.Total = total
		db = db.
			Limit(query.Pagination.PageSize).
			Offset((query.Pagination.Page - 1) * query.Pagination.PageSize)
	}

	err := db.Preload("Items").Order("created_at DESC").Find(&orders).Error
	return orders, err
}

// GetRecent 获取最近的订单
func (r *orderRepo) GetRecent(ctx context.Context, limit int) ([]*models.Order, error) {
	var orders []*models.Order
	if limit <= 0 {
		limit = 10
	}
	err := r.db.WithContext(ctx).
		Preload("Items").
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// CountByStatus 统计某状态的订单数
func (r *orderRepo) CountByStatus(ctx context.Context, status models.OrderStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

// SumPaidCents 统计时间段内已支付订单的总金额（分）
func (r *orderRepo) SumPaidCents(ctx context.Context, start, end time.Time) (int64, error) {
	var sum *int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ? AND created_at BETWEEN ? AND ?", models.OrderStatusPaid, start, end).
		Select("SUM(total_cents)").
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

// WithTx 使用事务
func (r *orderRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &orderRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
