package hal

import (
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/checkout-kiosk/internal/logger"
	"go.uber.org/zap"
)

// MockBoard 模拟外设板（用于测试和无硬件调试）
type MockBoard struct {
	mu        sync.RWMutex
	logger    *zap.Logger
	connected bool

	// 模拟显示屏
	line1   string
	line2   string
	cleared bool

	// 模拟蜂鸣器
	buzzing   bool
	beepCount int
	lastBeep  struct {
		On    time.Duration
		Off   time.Duration
		Times int
	}

	// 模拟LED
	ledOn      bool
	flashCount int

	// 模拟电机
	motorRunning bool
	motorSpeed   int
	motorRuns    int

	// 模拟传感器
	temperature float64
	humidity    float64
	climateErr  error
	distanceCM  float64
	distanceErr error

	// 模拟刷卡器
	cardUID string

	// 按键回调
	keyCallback KeyCallback
}

// NewMockBoard 创建模拟外设板
func NewMockBoard() *MockBoard {
	return &MockBoard{
		logger:      logger.GetModuleLogger("hal"),
		temperature: 25.0,
		humidity:    40.0,
		distanceCM:  100.0,
	}
}

// Connect 模拟连接
func (m *MockBoard) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.connected = true
	m.logger.Info("模拟外设板已连接")
	return nil
}

// Disconnect 模拟断开连接
func (m *MockBoard) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	m.connected = false
	m.logger.Info("模拟外设板已断开")
	return nil
}

// IsConnected 是否连接
func (m *MockBoard) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// DisplayShow 模拟显示
func (m *MockBoard) DisplayShow(line1, line2 string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(line1) > DisplayColumns {
		line1 = line1[:DisplayColumns]
	}
	if len(line2) > DisplayColumns {
		line2 = line2[:DisplayColumns]
	}
	m.line1 = line1
	m.line2 = line2
	m.cleared = false

	m.logger.Debug("模拟显示",
		zap.String("line1", line1),
		zap.String("line2", line2))
	return nil
}

// DisplayClear 模拟清屏
func (m *MockBoard) DisplayClear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.line1 = ""
	m.line2 = ""
	m.cleared = true
	return nil
}

// BuzzerBeep 模拟蜂鸣
func (m *MockBoard) BuzzerBeep(on, off time.Duration, times int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buzzing = true
	m.beepCount++
	m.lastBeep.On = on
	m.lastBeep.Off = off
	m.lastBeep.Times = times

	m.logger.Debug("模拟蜂鸣",
		zap.Duration("on", on),
		zap.Duration("off", off),
		zap.Int("times", times))
	return nil
}

// BuzzerOff 模拟静音
func (m *MockBoard) BuzzerOff() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buzzing = false
	return nil
}

// LEDFlash 模拟LED闪亮
func (m *MockBoard) LEDFlash(d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ledOn = true
	m.flashCount++

	m.logger.Debug("模拟LED闪亮", zap.Duration("duration", d))
	return nil
}

// LEDOff 模拟LED熄灭
func (m *MockBoard) LEDOff() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ledOn = false
	return nil
}

// MotorRun 模拟电机启动
func (m *MockBoard) MotorRun(speed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.motorRunning = true
	m.motorSpeed = speed
	m.motorRuns++

	m.logger.Debug("模拟电机启动", zap.Int("speed", speed))
	return nil
}

// MotorStop 模拟电机停止
func (m *MockBoard) MotorStop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.motorRunning = false
	return nil
}

// ReadClimate 返回模拟温湿度
func (m *MockBoard) ReadClimate() (float64, float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.climateErr != nil {
		return 0, 0, m.climateErr
	}
	return m.temperature, m.humidity, nil
}

// ReadDistanceCM 返回模拟测距
func (m *MockBoard) ReadDistanceCM() (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.distanceErr != nil {
		return 0, m.distanceErr
	}
	return m.distanceCM, nil
}

// ReadCardUID 返回模拟卡号
func (m *MockBoard) ReadCardUID(timeout time.Duration) (string, error) {
	m.mu.RLock()
	uid := m.cardUID
	m.mu.RUnlock()
	return uid, nil
}

// SetKeyCallback 注册按键回调
func (m *MockBoard) SetKeyCallback(cb KeyCallback) {
	m.mu.Lock()
	m.keyCallback = cb
	m.mu.Unlock()
}

// Press 注入按键（按下事件）
func (m *MockBoard) Press(keys ...byte) {
	m.mu.RLock()
	cb := m.keyCallback
	m.mu.RUnlock()

	if cb == nil {
		return
	}
	for _, key := range keys {
		cb(KeyEvent{Key: key, Action: KeyActionDown, Time: time.Now()})
	}
}

// SetClimate 设置模拟温湿度
func (m *MockBoard) SetClimate(temperature, humidity float64) {
	m.mu.Lock()
	m.temperature = temperature
	m.humidity = humidity
	m.mu.Unlock()
}

// SetClimateError 注入温湿度读取错误
func (m *MockBoard) SetClimateError(err error) {
	m.mu.Lock()
	m.climateErr = err
	m.mu.Unlock()
}

// SetDistanceCM 设置模拟测距
func (m *MockBoard) SetDistanceCM(cm float64) {
	m.mu.Lock()
	m.distanceCM = cm
	m.mu.Unlock()
}

// SetDistanceError 注入测距读取错误
func (m *MockBoard) SetDistanceError(err error) {
	m.mu.Lock()
	m.distanceErr = err
	m.mu.Unlock()
}

// SetCardUID 设置模拟卡号，空串表示无卡
func (m *MockBoard) SetCardUID(uid string) {
	m.mu.Lock()
	m.cardUID = uid
	m.mu.Unlock()
}

// DisplayLines 返回当前显示内容
func (m *MockBoard) DisplayLines() (string, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.line1, m.line2
}

// DisplayCleared 是否处于清屏状态
func (m *MockBoard) DisplayCleared() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cleared
}

// IsBuzzing 蜂鸣器是否在响
func (m *MockBoard) IsBuzzing() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.buzzing
}

// BeepCount 累计蜂鸣次数
func (m *MockBoard) BeepCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.beepCount
}

// LastBeep 最近一次蜂鸣参数
func (m *MockBoard) LastBeep() (on, off time.Duration, times int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastBeep.On, m.lastBeep.Off, m.lastBeep.Times
}

// IsLEDOn LED是否点亮
func (m *MockBoard) IsLEDOn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ledOn
}

// FlashCount 累计闪亮次数
func (m *MockBoard) FlashCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flashCount
}

// IsMotorRunning 电机是否在转
func (m *MockBoard) IsMotorRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.motorRunning
}

// MotorState 电机状态（速度与累计启动次数）
func (m *MockBoard) MotorState() (speed, runs int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.motorSpeed, m.motorRuns
}
