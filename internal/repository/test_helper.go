package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/checkout-kiosk/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB 为测试套件设置测试数据库
func SetupTestDB() *gorm.DB {
	// 使用内存数据库进行测试（更快，不需要文件系统，在所有环境中都能工作）
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}

	// 自动迁移所有模型
	err = db.AutoMigrate(
		// 订单系统
		&models.Order{},
		&models.OrderItem{},

		// 环境监控
		&models.AlarmEvent{},

		// 取货记录
		&models.PickupRecord{},

		// 管理接口
		&models.Operator{},
	)
	if err != nil {
		panic(err)
	}

	return db
}

// CleanupTestDB 清理测试数据库
func CleanupTestDB(db *gorm.DB) {
	// 关闭数据库连接
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// TestDB 创建测试数据库
func TestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&models.Order{},
		&models.OrderItem{},
		&models.AlarmEvent{},
		&models.PickupRecord{},
		&models.Operator{},
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		CleanupTestDB(db)
	})

	return db
}

// SeedTestData 创建测试数据
func SeedTestData(t *testing.T, db *gorm.DB) {
	// 创建测试操作员
	operators := []models.Operator{
		{
			Username: "admin",
			Password: "$argon2id$v=19$m=65536,t=3,p=2$dGVzdHNhbHQ$dGVzdGhhc2g",
			Role:     "admin",
			Status:   "active",
		},
		{
			Username: "operator1",
			Password: "$argon2id$v=19$m=65536,t=3,p=2$dGVzdHNhbHQ$dGVzdGhhc2g",
			Role:     "operator",
			Status:   "active",
		},
	}
	err := db.Create(&operators).Error
	require.NoError(t, err)

	// 创建测试订单
	paidAt := time.Now().Add(-time.Hour)
	orders := []models.Order{
		{
			OrderNo:       "ORD-TESTSEED0000001A",
			SessionID:     "session_seed_1",
			ItemCount:     2,
			TotalCents:    500,
			PaymentMethod: models.PaymentMethodPIN,
			Attempts:      1,
			Status:        models.OrderStatusPaid,
			PaidAt:        &paidAt,
			Items: []models.OrderItem{
				{Barcode: "1234567890", Name: "Milk", PriceCents: 300},
				{Barcode: "1111222233", Name: "Bread", PriceCents: 200},
			},
		},
		{
			OrderNo:       "ORD-TESTSEED0000002B",
			SessionID:     "session_seed_2",
			ItemCount:     1,
			TotalCents:    350,
			PaymentMethod: models.PaymentMethodNone,
			Attempts:      3,
			Status:        models.OrderStatusDeclined,
			Items: []models.OrderItem{
				{Barcode: "6677889900", Name: "Eggs", PriceCents: 350},
			},
		},
	}
	err = db.Create(&orders).Error
	require.NoError(t, err)
}

// AssertOrder 验证订单
func AssertOrder(t *testing.T, expected, actual *models.Order) {
	assert.Equal(t, expected.OrderNo, actual.OrderNo)
	assert.Equal(t, expected.SessionID, actual.SessionID)
	assert.Equal(t, expected.ItemCount, actual.ItemCount)
	assert.Equal(t, expected.TotalCents, actual.TotalCents)
	assert.Equal(t, expected.Status, actual.Status)
}

// AssertAlarmEvent 验证告警记录
func AssertAlarmEvent(t *testing.T, expected, actual *models.AlarmEvent) {
	assert.Equal(t, expected.Kind, actual.Kind)
	assert.InDelta(t, expected.Reading, actual.Reading, 0.01)
	assert.Equal(t, expected.Message, actual.Message)
}

// CreateTestOrder 创建测试订单
func CreateTestOrder(orderNo, sessionID string, status models.OrderStatus, totalCents int64) *models.Order {
	return &models.Order{
		OrderNo:    orderNo,
		SessionID:  sessionID,
		ItemCount:  1,
		TotalCents: totalCents,
		Status:     status,
		Items: []models.OrderItem{
			{Barcode: "1234567890", Name: "Milk", PriceCents: totalCents},
		},
	}
}

// CreateTestAlarmEvent 创建测试告警
func CreateTestAlarmEvent(kind models.AlarmKind, reading float64, raisedAt time.Time) *models.AlarmEvent {
	msg := "OVERHEAT: 47.5C"
	if kind == models.AlarmKindHighHumidity {
		msg = "HIGH HUMID: 65.0%"
	}
	return &models.AlarmEvent{
		Kind:     kind,
		Reading:  reading,
		Message:  msg,
		RaisedAt: raisedAt,
	}
}

// CreateTestPickupRecord 创建测试取货记录
func CreateTestPickupRecord(payload string, accepted bool) *models.PickupRecord {
	orderRef := ""
	if accepted {
		orderRef = payload
	}
	return &models.PickupRecord{
		Payload:   payload,
		OrderRef:  orderRef,
		Accepted:  accepted,
		ScannedAt: time.Now(),
	}
}
