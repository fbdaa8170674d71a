package models

import "time"

// 操作员状态
const (
	OperatorStatusActive   = "active"
	OperatorStatusDisabled = "disabled"
)

// 操作员角色
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// Operator 管理接口操作员表
type Operator struct {
	BaseModel
	Username    string     `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Password    string     `gorm:"size:255;not null" json:"-"` // argon2id哈希
	Role        string     `gorm:"size:20;default:'operator'" json:"role"`
	Status      string     `gorm:"size:20;default:'active'" json:"status"` // active, disabled
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP string     `gorm:"size:50" json:"last_login_ip"`
}

// TableName 指定表名
func (Operator) TableName() string {
	return "operators"
}
