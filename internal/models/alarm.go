package models

import (
	"time"

	"gorm.io/gorm"
)

// AlarmKind 环境告警类型
type AlarmKind string

const (
	AlarmKindNone         AlarmKind = ""              // 无告警
	AlarmKindOverheat     AlarmKind = "overheat"      // 过热
	AlarmKindHighHumidity AlarmKind = "high_humidity" // 高湿
)

// AlarmEvent 环境告警记录表
type AlarmEvent struct {
	BaseModel
	Kind      AlarmKind  `gorm:"type:varchar(20);index;not null" json:"kind"`
	Reading   float64    `gorm:"type:decimal(10,2)" json:"reading"` // 触发时的读数
	Message   string     `gorm:"size:64" json:"message"`            // 显示的告警横幅
	RaisedAt  time.Time  `gorm:"index;not null" json:"raised_at"`
	ClearedAt *time.Time `json:"cleared_at,omitempty"` // 为空表示仍在告警中
}

// TableName 指定表名
func (AlarmEvent) TableName() string {
	return "alarm_events"
}

// BeforeCreate 创建前的钩子
func (a *AlarmEvent) BeforeCreate(tx *gorm.DB) error {
	touchCreatedAt(&a.CreatedAt)
	if a.RaisedAt.IsZero() {
		a.RaisedAt = a.CreatedAt
	}
	return nil
}

// AlarmQuery 告警查询参数
type AlarmQuery struct {
	Kind       AlarmKind  `json:"kind,omitempty"`
	ActiveOnly bool       `json:"active_only,omitempty"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	Limit      int        `json:"limit,omitempty"`
	Offset     int        `json:"offset,omitempty"`
}
