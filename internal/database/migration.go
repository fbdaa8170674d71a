package database

import (
	"fmt"

	"github.com/wfunc/checkout-kiosk/internal/logger"
	"github.com/wfunc/checkout-kiosk/internal/models"
	"github.com/wfunc/checkout-kiosk/internal/utils"
	"go.uber.org/zap"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}

	// 清理过期锁文件
	CleanupStaleLocks()

	// 获取迁移锁，避免多个进程同时迁移
	dbPath := getDBPath()
	if dbPath != "" {
		lockFile, err := acquireMigrationLock(dbPath)
		if err != nil {
			logger.Error("无法获取迁移锁", zap.Error(err))
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		defer releaseMigrationLock(lockFile)
	}

	// 定义需要迁移的模型
	migrationModels := []interface{}{
		// 订单相关
		&models.Order{},
		&models.OrderItem{},

		// 环境告警相关
		&models.AlarmEvent{},

		// 取货相关
		&models.PickupRecord{},

		// 管理接口相关
		&models.Operator{},
	}

	// 执行迁移
	logger.Info("开始数据库迁移...")

	// 设置 SQLite 专用配置，避免锁定问题
	if DB.Dialector.Name() == "sqlite" {
		DB.Exec("PRAGMA foreign_keys = OFF")
		defer DB.Exec("PRAGMA foreign_keys = ON")
	}

	for _, model := range migrationModels {
		if err := DB.AutoMigrate(model); err != nil {
			logger.Error("迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return err
		}
		logger.Debug("迁移成功", zap.String("model", fmt.Sprintf("%T", model)))
	}

	// 创建索引
	if err := createIndexes(); err != nil {
		return err
	}

	// 初始化默认数据
	if err := initDefaultData(); err != nil {
		return err
	}

	logger.Info("数据库迁移完成")
	return nil
}

// createIndexes 创建数据库索引
func createIndexes() error {
	// 订单表索引
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_orders_status"), zap.Error(err))
	}

	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_orders_created_at"), zap.Error(err))
	}

	// 订单明细索引
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_order_items_order_id"), zap.Error(err))
	}

	// 告警表索引
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_alarm_events_kind ON alarm_events(kind)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_alarm_events_kind"), zap.Error(err))
	}

	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_alarm_events_raised_at ON alarm_events(raised_at)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_alarm_events_raised_at"), zap.Error(err))
	}

	// 取货记录索引
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_pickup_records_scanned_at ON pickup_records(scanned_at)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_pickup_records_scanned_at"), zap.Error(err))
	}

	logger.Info("数据库索引创建完成")
	return nil
}

// initDefaultData 初始化默认数据
func initDefaultData() error {
	// 检查是否已有操作员账号
	var count int64
	DB.Model(&models.Operator{}).Count(&count)
	if count > 0 {
		return nil
	}

	// 创建默认管理员账号
	hash, err := utils.HashPassword("admin123")
	if err != nil {
		logger.Error("生成默认密码哈希失败", zap.Error(err))
		return err
	}

	admin := models.Operator{
		Username: "admin",
		Password: hash,
		Role:     models.RoleAdmin,
		Status:   models.OperatorStatusActive,
	}

	if err := DB.Create(&admin).Error; err != nil {
		logger.Error("创建默认管理员失败",
			zap.String("username", admin.Username),
			zap.Error(err),
		)
		return err
	}

	logger.Info("默认数据初始化完成", zap.String("operator", admin.Username))
	return nil
}
