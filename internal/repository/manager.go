package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Manager 仓储管理器，提供所有仓储的统一访问接口
type Manager struct {
	db *gorm.DB

	// 事务管理器
	txManager TransactionManager

	// 仓储实例（使用懒加载）
	orderOnce sync.Once
	order     OrderRepository

	alarmOnce sync.Once
	alarm     AlarmRepository

	pickupOnce sync.Once
	pickup     PickupRepository

	operatorOnce sync.Once
	operator     OperatorRepository
}

// NewManager 创建仓储管理器
func NewManager(db *gorm.DB) *Manager {
	return &Manager{
		db:        db,
		txManager: NewTransactionManager(db),
	}
}

// GetDB 获取数据库实例
func (m *Manager) GetDB() *gorm.DB {
	return m.db
}

// Transaction 获取事务管理器
func (m *Manager) Transaction() TransactionManager {
	return m.txManager
}

// Order 获取订单仓储
func (m *Manager) Order() OrderRepository {
	m.orderOnce.Do(func() {
		m.order = NewOrderRepository(m.db)
	})
	return m.order
}

// Alarm 获取环境告警仓储
func (m *Manager) Alarm() AlarmRepository {
	m.alarmOnce.Do(func() {
		m.alarm = NewAlarmRepository(m.db)
	})
	return m.alarm
}

// Pickup 获取取货记录仓储
func (m *Manager) Pickup() PickupRepository {
	m.pickupOnce.Do(func() {
		m.pickup = NewPickupRepository(m.db)
	})
	return m.pickup
}

// Operator 获取操作员仓储
func (m *Manager) Operator() OperatorRepository {
	m.operatorOnce.Do(func() {
		m.operator = NewOperatorRepository(m.db)
	})
	return m.operator
}
