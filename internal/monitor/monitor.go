// Package monitor 实现环境温湿度监控与告警状态机
package monitor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wfunc/checkout-kiosk/internal/config"
	"github.com/wfunc/checkout-kiosk/internal/hal"
	"github.com/wfunc/checkout-kiosk/internal/kiosk"
	"github.com/wfunc/checkout-kiosk/internal/logger"
	"github.com/wfunc/checkout-kiosk/internal/models"
	"github.com/wfunc/checkout-kiosk/internal/repository"
)

// 告警音节奏参数
const (
	overheatBeepOn  = 200 * time.Millisecond // 过热单声时长
	overheatBeepGap = 100 * time.Millisecond // 过热声间间隔
	overheatBursts  = 5                      // 过热连响次数
	humidityBeepOn  = 200 * time.Millisecond // 高湿单声时长
	alarmPause      = time.Second            // 每轮节奏之间的停顿
	slotPollSlice   = 50 * time.Millisecond  // 槽位检查粒度
)

// AlarmNotifier 告警变化对外通知（如websocket广播）
type AlarmNotifier interface {
	NotifyAlarm(kind models.AlarmKind, banner string, active bool)
}

// Monitor 周期采样温湿度并驱动告警槽位。
// 告警触发一次读数即锁存，解除需要读数连续正常满保持时长。
type Monitor struct {
	cfg      *config.MonitorConfig
	climate  hal.ClimateSensor
	buzzer   hal.Buzzer
	state    *kiosk.SharedState
	alarms   repository.AlarmRepository
	notifier AlarmNotifier
	logger   *zap.Logger

	// 仅在监控循环内读写
	kind        models.AlarmKind
	eventID     uint
	normalSince time.Time

	// 声音任务管理
	generation atomic.Uint64
	taskDone   chan struct{}
}

// NewMonitor 创建环境监控。alarms与notifier可为nil，表示不落库、不广播。
func NewMonitor(cfg *config.MonitorConfig, climate hal.ClimateSensor, buzzer hal.Buzzer, state *kiosk.SharedState, alarms repository.AlarmRepository, notifier AlarmNotifier) *Monitor {
	return &Monitor{
		cfg:      cfg,
		climate:  climate,
		buzzer:   buzzer,
		state:    state,
		alarms:   alarms,
		notifier: notifier,
		logger:   logger.GetModuleLogger("monitor"),
	}
}

// Run 监控主循环，阻塞直到上下文取消
func (m *Monitor) Run(ctx context.Context) {
	interval := m.cfg.SampleInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	m.logger.Info("环境监控启动",
		zap.Duration("interval", interval),
		zap.Float64("overheat_c", m.cfg.OverheatC),
		zap.Float64("humidity_pct", m.cfg.HumidityPct),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer m.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample(ctx)
		}
	}
}

// sample 执行一次采样并推进告警状态机。
// 采样失败只记日志，下个周期继续。
func (m *Monitor) sample(ctx context.Context) {
	temp, humid, err := m.climate.Read()
	if err != nil {
		m.logger.Warn("环境采样失败", zap.Error(err))
		return
	}

	kind := m.classify(temp, humid)
	switch {
	case kind == m.kind:
		if kind != models.AlarmKindNone {
			// 告警条件仍在持续，重置解除计时
			m.normalSince = time.Time{}
		}
	case kind == models.AlarmKindNone:
		m.holdThenClear(ctx)
	default:
		// 新告警触发，或在两种告警之间切换
		m.raise(ctx, kind, temp, humid)
	}
}

// classify 读数分级，过热优先于高湿
func (m *Monitor) classify(temp, humid float64) models.AlarmKind {
	if temp > m.cfg.OverheatC {
		return models.AlarmKindOverheat
	}
	if humid > m.cfg.HumidityPct {
		return models.AlarmKindHighHumidity
	}
	return models.AlarmKindNone
}

// holdThenClear 告警锁存期间读数恢复正常：持续正常满保持时长才解除
func (m *Monitor) holdThenClear(ctx context.Context) {
	now := time.Now()
	if m.normalSince.IsZero() {
		m.normalSince = now
		return
	}
	hold := m.cfg.ClearHold
	if hold <= 0 {
		hold = 30 * time.Second
	}
	if now.Sub(m.normalSince) < hold {
		return
	}
	m.clear(ctx)
}

// raise 触发新告警：停掉旧声音任务、更新槽位、落库并广播
func (m *Monitor) raise(ctx context.Context, kind models.AlarmKind, temp, humid float64) {
	m.stopAlarmTask()

	// 切换告警时关闭上一条记录
	if m.eventID != 0 && m.alarms != nil {
		if err := m.alarms.Close(ctx, m.eventID, time.Now()); err != nil {
			m.logger.Warn("关闭旧告警记录失败", zap.Uint("id", m.eventID), zap.Error(err))
		}
		m.eventID = 0
	}

	reading := temp
	banner := fmt.Sprintf("OVERHEAT: %.1fC", temp)
	if kind == models.AlarmKindHighHumidity {
		reading = humid
		banner = fmt.Sprintf("HIGH HUMID: %.1f%%", humid)
	}

	m.kind = kind
	m.normalSince = time.Time{}
	m.state.SetAlarm(kind, banner)

	if m.alarms != nil {
		event := &models.AlarmEvent{
			Kind:     kind,
			Reading:  reading,
			Message:  banner,
			RaisedAt: time.Now(),
		}
		if err := m.alarms.Create(ctx, event); err != nil {
			m.logger.Error("告警记录写入失败", zap.Error(err))
		} else {
			m.eventID = event.ID
		}
	}
	if m.notifier != nil {
		m.notifier.NotifyAlarm(kind, banner, true)
	}
	logger.LogAlarmEvent(string(kind), "raised", reading)

	m.startAlarmTask(kind)
}

// clear 解除当前告警
func (m *Monitor) clear(ctx context.Context) {
	kind := m.kind
	m.stopAlarmTask()
	m.state.ClearAlarm()

	if m.eventID != 0 && m.alarms != nil {
		if err := m.alarms.Close(ctx, m.eventID, time.Now()); err != nil {
			m.logger.Warn("关闭告警记录失败", zap.Uint("id", m.eventID), zap.Error(err))
		}
		m.eventID = 0
	}
	if m.notifier != nil {
		m.notifier.NotifyAlarm(kind, "", false)
	}
	logger.LogAlarmEvent(string(kind), "cleared", 0)

	m.kind = models.AlarmKindNone
	m.normalSince = time.Time{}
}

// startAlarmTask 启动对应节奏的声音任务
func (m *Monitor) startAlarmTask(kind models.AlarmKind) {
	gen := m.generation.Add(1)
	done := make(chan struct{})
	m.taskDone = done
	go m.alarmTask(kind, gen, done)
}

// stopAlarmTask 清空槽位让声音任务退出，并等它真正结束。
// 等待done通道保证任意时刻至多一个声音任务在跑。
func (m *Monitor) stopAlarmTask() {
	if m.taskDone == nil {
		return
	}
	m.state.ClearAlarm()
	<-m.taskDone
	m.taskDone = nil
}

// shutdown 监控退出时停掉声音并清空槽位
func (m *Monitor) shutdown() {
	m.stopAlarmTask()
	m.state.ClearAlarm()
	if err := m.buzzer.Off(); err != nil {
		m.logger.Warn("蜂鸣器关闭失败", zap.Error(err))
	}
	m.logger.Info("环境监控停止")
}

// alarmTask 告警音循环。每个睡眠片都检查槽位，
// 槽位不再匹配立即退出；任何退出路径都保证蜂鸣器关闭。
func (m *Monitor) alarmTask(kind models.AlarmKind, gen uint64, done chan struct{}) {
	defer close(done)
	defer func() {
		if err := m.buzzer.Off(); err != nil {
			m.logger.Warn("蜂鸣器关闭失败", zap.Error(err))
		}
	}()

	m.logger.Info("告警音任务启动", zap.String("kind", string(kind)))
	for m.matches(kind, gen) {
		switch kind {
		case models.AlarmKindOverheat:
			// 五连短促蜂鸣，随后停顿一轮
			if err := m.buzzer.Beep(overheatBeepOn, overheatBeepGap, overheatBursts); err != nil {
				m.logger.Warn("蜂鸣指令失败", zap.Error(err))
			}
			burst := time.Duration(overheatBursts) * (overheatBeepOn + overheatBeepGap)
			if !m.sleepWhileMatching(burst+alarmPause, kind, gen) {
				continue
			}
		case models.AlarmKindHighHumidity:
			// 单声长鸣与静音交替
			if err := m.buzzer.Beep(humidityBeepOn, 0, 1); err != nil {
				m.logger.Warn("蜂鸣指令失败", zap.Error(err))
			}
			if !m.sleepWhileMatching(alarmPause, kind, gen) {
				continue
			}
			if err := m.buzzer.Off(); err != nil {
				m.logger.Warn("蜂鸣器关闭失败", zap.Error(err))
			}
			if !m.sleepWhileMatching(alarmPause, kind, gen) {
				continue
			}
		default:
			return
		}
	}
	m.logger.Info("告警音任务退出", zap.String("kind", string(kind)))
}

// matches 声音任务是否仍与当前槽位和代次匹配
func (m *Monitor) matches(kind models.AlarmKind, gen uint64) bool {
	slot, _ := m.state.Alarm()
	return slot == kind && m.generation.Load() == gen
}

// sleepWhileMatching 分片睡眠，期间槽位变化立即返回false
func (m *Monitor) sleepWhileMatching(d time.Duration, kind models.AlarmKind, gen uint64) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if !m.matches(kind, gen) {
			return false
		}
		remain := time.Until(deadline)
		if remain > slotPollSlice {
			remain = slotPollSlice
		}
		time.Sleep(remain)
	}
	return m.matches(kind, gen)
}
