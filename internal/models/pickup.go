package models

import (
	"time"

	"gorm.io/gorm"
)

// PickupRecord 取货码扫描记录表
type PickupRecord struct {
	BaseModel
	Payload   string    `gorm:"type:text" json:"payload"`          // 二维码原始内容
	OrderRef  string    `gorm:"size:64;index" json:"order_ref"`    // 识别出的订单号
	Accepted  bool      `gorm:"index" json:"accepted"`             // 是否为有效取货码
	ScannedAt time.Time `gorm:"index;not null" json:"scanned_at"`
}

// TableName 指定表名
func (PickupRecord) TableName() string {
	return "pickup_records"
}

// BeforeCreate 创建前的钩子
func (p *PickupRecord) BeforeCreate(tx *gorm.DB) error {
	touchCreatedAt(&p.CreatedAt)
	if p.ScannedAt.IsZero() {
		p.ScannedAt = p.CreatedAt
	}
	return nil
}
