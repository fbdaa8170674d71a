package models

import (
	"time"

	"gorm.io/gorm"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusPaid      OrderStatus = "paid"      // 支付成功
	OrderStatusDeclined  OrderStatus = "declined"  // 支付被拒
	OrderStatusCancelled OrderStatus = "cancelled" // 顾客取消
)

// PaymentMethod 支付方式
type PaymentMethod string

const (
	PaymentMethodPIN  PaymentMethod = "pin"  // 密码支付
	PaymentMethodTap  PaymentMethod = "tap"  // 感应刷卡
	PaymentMethodNone PaymentMethod = "none" // 未支付
)

// Order 结账订单表
type Order struct {
	BaseModel
	OrderNo       string        `gorm:"uniqueIndex;size:64;not null" json:"order_no"`
	SessionID     string        `gorm:"size:64;index" json:"session_id"`
	ItemCount     int           `gorm:"default:0" json:"item_count"`
	TotalCents    int64         `gorm:"default:0" json:"total_cents"` // 总金额（分）
	PaymentMethod PaymentMethod `gorm:"type:varchar(10);default:'none'" json:"payment_method"`
	Attempts      int           `gorm:"default:0" json:"attempts"` // 支付尝试次数
	Status        OrderStatus   `gorm:"type:varchar(20);index;not null" json:"status"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`

	// 关联
	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate 创建前的钩子
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	touchCreatedAt(&o.CreatedAt)
	return nil
}

// OrderItem 订单商品明细表
type OrderItem struct {
	BaseModel
	OrderID    uint   `gorm:"index;not null" json:"order_id"`
	Barcode    string `gorm:"size:64;index" json:"barcode"`
	Name       string `gorm:"size:100;not null" json:"name"`
	PriceCents int64  `gorm:"not null" json:"price_cents"` // 单价（分）
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
