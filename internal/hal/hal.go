// Package hal 封装收银终端的外设访问层。
// 外设板（LCD、键盘、蜂鸣器、LED、电机、温湿度、测距、刷卡）通过一条串口
// 链路由单片机代理，摄像头作为独立帧源接入。
package hal

import (
	"image"
	"time"
)

// KeyEvent 键盘按键事件
type KeyEvent struct {
	Key    byte      // ASCII键码（'0'-'9'、'*'、'#'）
	Action byte      // 按键动作
	Time   time.Time // 事件时间
}

// KeyCallback 按键事件回调
type KeyCallback func(event KeyEvent)

// Display 两行16列字符屏
type Display interface {
	// Show 显示两行文本，超过16列截断
	Show(line1, line2 string) error
	// Clear 清屏
	Clear() error
}

// Keypad 键盘事件源
type Keypad interface {
	// SetKeyCallback 注册按键回调，板侧异步上报按键帧时触发
	SetKeyCallback(cb KeyCallback)
}

// Buzzer 蜂鸣器
type Buzzer interface {
	// Beep 响on时长、停off时长，重复times次
	Beep(on, off time.Duration, times int) error
	// Off 立即静音
	Off() error
}

// LED 状态指示灯
type LED interface {
	// Flash 点亮指定时长后熄灭
	Flash(d time.Duration) error
	// Off 立即熄灭
	Off() error
}

// Motor 出货电机
type Motor interface {
	// Run 以指定速度（0-100）启动
	Run(speed int) error
	// Stop 停止
	Stop() error
}

// DistanceSensor 取景窗超声测距
type DistanceSensor interface {
	// DistanceCM 返回最近一次测距（厘米）
	DistanceCM() (float64, error)
}

// ClimateSensor 机箱温湿度
type ClimateSensor interface {
	// Read 返回温度（摄氏度）与相对湿度（百分比）
	Read() (temperature, humidity float64, err error)
}

// CardReader 非接触式刷卡器
type CardReader interface {
	// ReadUID 在timeout内轮询卡片，无卡返回空串
	ReadUID(timeout time.Duration) (string, error)
}

// Camera 取景摄像头
type Camera interface {
	// Capture 采集一帧并缩放到指定尺寸
	Capture(width, height int) (image.Image, error)
}

// Board 外设板的完整操作集，串口板与模拟板都实现它
type Board interface {
	Connect() error
	Disconnect() error
	IsConnected() bool

	DisplayShow(line1, line2 string) error
	DisplayClear() error
	BuzzerBeep(on, off time.Duration, times int) error
	BuzzerOff() error
	LEDFlash(d time.Duration) error
	LEDOff() error
	MotorRun(speed int) error
	MotorStop() error
	ReadClimate() (temperature, humidity float64, err error)
	ReadDistanceCM() (float64, error)
	ReadCardUID(timeout time.Duration) (string, error)
	SetKeyCallback(cb KeyCallback)
}

// Devices 按设备类别拆分的外设视图，会话控制器只依赖这些窄接口
type Devices struct {
	Display  Display
	Keypad   Keypad
	Buzzer   Buzzer
	LED      LED
	Motor    Motor
	Distance DistanceSensor
	Climate  ClimateSensor
	Cards    CardReader
	Camera   Camera
}

// NewDevices 将外设板与摄像头装配成设备视图
func NewDevices(b Board, cam Camera) *Devices {
	return &Devices{
		Display:  displayView{b},
		Keypad:   keypadView{b},
		Buzzer:   buzzerView{b},
		LED:      ledView{b},
		Motor:    motorView{b},
		Distance: distanceView{b},
		Climate:  climateView{b},
		Cards:    cardView{b},
		Camera:   cam,
	}
}

type displayView struct{ b Board }

func (v displayView) Show(line1, line2 string) error { return v.b.DisplayShow(line1, line2) }
func (v displayView) Clear() error                   { return v.b.DisplayClear() }

type keypadView struct{ b Board }

func (v keypadView) SetKeyCallback(cb KeyCallback) { v.b.SetKeyCallback(cb) }

type buzzerView struct{ b Board }

func (v buzzerView) Beep(on, off time.Duration, times int) error {
	return v.b.BuzzerBeep(on, off, times)
}
func (v buzzerView) Off() error { return v.b.BuzzerOff() }

type ledView struct{ b Board }

func (v ledView) Flash(d time.Duration) error { return v.b.LEDFlash(d) }
func (v ledView) Off() error                  { return v.b.LEDOff() }

type motorView struct{ b Board }

func (v motorView) Run(speed int) error { return v.b.MotorRun(speed) }
func (v motorView) Stop() error         { return v.b.MotorStop() }

type distanceView struct{ b Board }

func (v distanceView) DistanceCM() (float64, error) { return v.b.ReadDistanceCM() }

type climateView struct{ b Board }

func (v climateView) Read() (float64, float64, error) { return v.b.ReadClimate() }

type cardView struct{ b Board }

func (v cardView) ReadUID(timeout time.Duration) (string, error) { return v.b.ReadCardUID(timeout) }
