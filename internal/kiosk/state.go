// Package kiosk 实现自助收银终端的前台会话状态机及其共享状态
package kiosk

import (
	"sync"

	"github.com/wfunc/checkout-kiosk/internal/models"
)

// SharedState 会话与环境监控之间共享的系统状态。
// 所有字段由同一把互斥锁保护，组合写入在一个临界区内提交，
// 读取方不会看到半写状态。
type SharedState struct {
	mu             sync.Mutex
	power          bool
	scanning       bool
	paymentSuccess bool
	alarmKind      models.AlarmKind
	alarmBanner    string
}

// StateSnapshot 单次加锁读出的完整状态快照
type StateSnapshot struct {
	Power          bool             `json:"power"`
	Scanning       bool             `json:"scanning"`
	PaymentSuccess bool             `json:"payment_success"`
	AlarmKind      models.AlarmKind `json:"alarm_kind,omitempty"`
	AlarmBanner    string           `json:"alarm_banner,omitempty"`
}

// NewSharedState 创建共享状态，终端初始为开机状态
func NewSharedState() *SharedState {
	return &SharedState{power: true}
}

// SetPower 设置开关机标志
func (s *SharedState) SetPower(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.power = on
}

// Power 读取开关机标志
func (s *SharedState) Power() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.power
}

// SetScanning 设置扫码会话进行中标志
func (s *SharedState) SetScanning(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanning = on
}

// Scanning 读取扫码会话进行中标志
func (s *SharedState) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning
}

// SetPaymentSuccess 设置本会话支付成功标志
func (s *SharedState) SetPaymentSuccess(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentSuccess = ok
}

// PaymentSuccess 读取本会话支付成功标志
func (s *SharedState) PaymentSuccess() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paymentSuccess
}

// SetPowerAndScanning 在一个临界区内同时提交两个标志
func (s *SharedState) SetPowerAndScanning(power, scanning bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.power = power
	s.scanning = scanning
}

// SetAlarm 写入当前告警槽位与横幅
func (s *SharedState) SetAlarm(kind models.AlarmKind, banner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alarmKind = kind
	s.alarmBanner = banner
}

// ClearAlarm 清空告警槽位
func (s *SharedState) ClearAlarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alarmKind = models.AlarmKindNone
	s.alarmBanner = ""
}

// Alarm 读取当前告警槽位与横幅
func (s *SharedState) Alarm() (models.AlarmKind, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alarmKind, s.alarmBanner
}

// Snapshot 读取完整状态快照
func (s *SharedState) Snapshot() StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StateSnapshot{
		Power:          s.power,
		Scanning:       s.scanning,
		PaymentSuccess: s.paymentSuccess,
		AlarmKind:      s.alarmKind,
		AlarmBanner:    s.alarmBanner,
	}
}
