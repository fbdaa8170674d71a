package repository

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/checkout-kiosk/internal/models"
	"gorm.io/gorm"
)

// OperatorRepository 操作员仓储接口
type OperatorRepository interface {
	BaseRepository
	Create(ctx context.Context, operator *models.Operator) error
	Update(ctx context.Context, operator *models.Operator) error
	Delete(ctx context.Context, id uint) error
	FindByID(ctx context.Context, id uint) (*models.Operator, error)
	FindByUsername(ctx context.Context, username string) (*models.Operator, error)
	GetAll(ctx context.Context, pagination *Pagination) ([]*models.Operator, error)
	UpdateLastLogin(ctx context.Context, operatorID uint, ip string) error
	UpdateStatus(ctx context.Context, operatorID uint, status string) error
}

// operatorRepo 操作员仓储实现
type operatorRepo struct {
	*BaseRepo
}

// NewOperatorRepository 创建操作员仓储
func NewOperatorRepository(db *gorm.DB) OperatorRepository {
	return &operatorRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Create 创建操作员
func (r *operatorRepo) Create(ctx context.Context, operator *models.Operator) error {
	return r.db.WithContext(ctx).Create(operator).Error
}

// Update 更新操作员
func (r *operatorRepo) Update(ctx context.Context, operator *models.Operator) error {
	return r.db.WithContext(ctx).Save(operator).Error
}

// Delete 删除操作员（软删除）
func (r *operatorRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Operator{}, id).Error
}

// FindByID 根据ID查找操作员
func (r *operatorRepo) FindByID(ctx context.Context, id uint) (*models.Operator, error) {
	var operator models.Operator
	err := r.db.WithContext(ctx).First(&operator, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("操作员不存在")
		}
		return nil, err
	}
	return &operator, nil
}

// FindByUsername 根据用户名查找
func (r *operatorRepo) FindByUsername(ctx context.Context, username string) (*models.Operator, error) {
	var operator models.Operator
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&operator).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("操作员不存在")
		}
		return nil, err
	}
	return &operator, nil
}

// GetAll 获取所有操作员（分页），pagination为nil时取默认分页
func (r *operatorRepo) GetAll(ctx context.Context, pagination *Pagination) ([]*models.Operator, error) {
	if pagination == nil {
		pagination = NewPagination(1, 20)
	}

	var operators []*models.Operator
	query := r.db.WithContext(ctx).Model(&models.Operator{})

	var total int64
	query.Count(&total)
	pagination.Total = total

	err := query.
		Limit(pagination.PageSize).
		Offset((pagination.Page - 1) * pagination.PageSize).
		Order("created_at DESC").
		Find(&operators).Error
	return operators, err
}

// UpdateLastLogin 更新最后登录信息
func (r *operatorRepo) UpdateLastLogin(ctx context.Context, operatorID uint, ip string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.Operator{}).
		Where("id = ?", operatorID).
		Updates(map[string]interface{}{
			"last_login_at": &now,
			"last_login_ip": ip,
		}).Error
}

// UpdateStatus 更新操作员状态
func (r *operatorRepo) UpdateStatus(ctx context.Context, operatorID uint, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.Operator{}).
		Where("id = ?", operatorID).
		Update("status", status).Error
}

// WithTx 使用事务
func (r *operatorRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &operatorRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
