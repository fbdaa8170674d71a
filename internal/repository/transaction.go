package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// TransactionManager 事务管理器接口
type TransactionManager interface {
	// Begin 开始事务
	Begin(ctx context.Context) (*Transaction, error)
	// WithTransaction 在事务中执行函数
	WithTransaction(ctx context.Context, fn func(tx *Transaction) error) error
}

// Transaction 事务包装器
type Transaction struct {
	tx         *gorm.DB
	ctx        context.Context
	committed  bool
	rolledback bool

	// 事务中的仓储实例
	order    OrderRepository
	alarm    AlarmRepository
	pickup   PickupRepository
	operator OperatorRepository
}

// txManager 事务管理器实现
type txManager struct {
	db *gorm.DB
}

// NewTransactionManager 创建事务管理器
func NewTransactionManager(db *gorm.DB) TransactionManager {
	return &txManager{db: db}
}

// Begin 开始事务
func (m *txManager) Begin(ctx context.Context) (*Transaction, error) {
	tx := m.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &Transaction{
		tx:  tx,
		ctx: ctx,
	}, nil
}

// WithTransaction 在事务中执行函数
func (m *txManager) WithTransaction(ctx context.Context, fn func(tx *Transaction) error) error {
	tx, err := m.Begin(ctx)
	if err != nil {
		return err
	}

	// 确保事务被处理
	defer func() {
		if !tx.committed && !tx.rolledback {
			tx.Rollback()
		}
	}()

	// 执行业务逻辑
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	// 提交事务
	return tx.Commit()
}

// Commit 提交事务
func (t *Transaction) Commit() error {
	if t.committed {
		return fmt.Errorf("事务已提交")
	}
	if t.rolledback {
		return fmt.Errorf("事务已回滚")
	}

	if err := t.tx.Commit().Error; err != nil {
		return err
	}

	t.committed = true
	return nil
}

// Rollback 回滚事务
func (t *Transaction) Rollback() error {
	if t.committed {
		return fmt.Errorf("事务已提交，无法回滚")
	}
	if t.rolledback {
		return fmt.Errorf("事务已回滚")
	}

	if err := t.tx.Rollback().Error; err != nil {
		return err
	}

	t.rolledback = true
	return nil
}

// GetDB 获取事务中的数据库实例
func (t *Transaction) GetDB() *gorm.DB {
	return t.tx
}

// Order 获取事务中的订单仓储
func (t *Transaction) Order() OrderRepository {
	if t.order == nil {
		t.order = &orderRepo{
			BaseRepo: &BaseRepo{db: t.tx},
		}
	}
	return t.order
}

// Alarm 获取事务中的告警仓储
func (t *Transaction) Alarm() AlarmRepository {
	if t.alarm == nil {
		t.alarm = &alarmRepo{
			BaseRepo: &BaseRepo{db: t.tx},
		}
	}
	return t.alarm
}

// Pickup 获取事务中的取货记录仓储
func (t *Transaction) Pickup() PickupRepository {
	if t.pickup == nil {
		t.pickup = &pickupRepo{
			BaseRepo: &BaseRepo{db: t.tx},
		}
	}
	return t.pickup
}

// Operator 获取事务中的操作员仓储
func (t *Transaction) Operator() OperatorRepository {
	if t.operator == nil {
		t.operator = &operatorRepo{
			BaseRepo: &BaseRepo{db: t.tx},
		}
	}
	return t.operator
}

// SavePoint 创建保存点
func (t *Transaction) SavePoint(name string) error {
	return t.tx.SavePoint(name).Error
}

// RollbackToSavePoint 回滚到保存点
func (t *Transaction) RollbackToSavePoint(name string) error {
	return t.tx.RollbackTo(name).Error
}
