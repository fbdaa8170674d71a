package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	System    SystemConfig    `mapstructure:"system"`
	Database  DatabaseConfig  `mapstructure:"database"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Hardware  HardwareConfig  `mapstructure:"hardware"`
	Kiosk     KioskConfig     `mapstructure:"kiosk"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Log       LogConfig       `mapstructure:"log"`
	Security  SecurityConfig  `mapstructure:"security"`
}

// ServerConfig 管理接口服务器配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SystemConfig 系统运行参数
type SystemConfig struct {
	Timezone string `mapstructure:"timezone"`
	MaxProcs int    `mapstructure:"max_procs"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// WebSocketConfig WebSocket配置
type WebSocketConfig struct {
	Path            string        `mapstructure:"path"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

// HardwareConfig 外设板配置
type HardwareConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	MockMode          bool          `mapstructure:"mock_mode"` // 调试模式（使用模拟外设板）
	Port              string        `mapstructure:"port"`
	BaudRate          int           `mapstructure:"baud_rate"`
	DataBits          int           `mapstructure:"data_bits"`
	StopBits          int           `mapstructure:"stop_bits"`
	Parity            string        `mapstructure:"parity"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	RetryTimes        int           `mapstructure:"retry_times"`
	RetryInterval     time.Duration `mapstructure:"retry_interval"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	Camera            CameraConfig  `mapstructure:"camera"`
}

// CameraConfig 摄像头配置
type CameraConfig struct {
	SpoolDir     string        `mapstructure:"spool_dir"`     // 帧文件目录
	FrameTimeout time.Duration `mapstructure:"frame_timeout"` // 等待新帧超时
}

// KioskConfig 收银终端会话配置
type KioskConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"` // 按键队列轮询间隔
	MessagePause time.Duration `mapstructure:"message_pause"` // 提示信息停留时间
	SplashPause  time.Duration `mapstructure:"splash_pause"`  // 开机画面停留时间
	PresenceCM   float64       `mapstructure:"presence_cm"`   // 取景窗感应距离阈值
	MotorSpeed   int           `mapstructure:"motor_speed"`   // 送货电机速度
	MotorPulse   time.Duration `mapstructure:"motor_pulse"`   // 送货电机运行时长
}

// MonitorConfig 环境监控配置
type MonitorConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	SampleInterval time.Duration `mapstructure:"sample_interval"` // 采样周期
	OverheatC      float64       `mapstructure:"overheat_c"`      // 过热阈值（摄氏度）
	HumidityPct    float64       `mapstructure:"humidity_pct"`    // 高湿阈值（百分比）
	ClearHold      time.Duration `mapstructure:"clear_hold"`      // 告警解除保持时间
}

// ScannerConfig 扫码配置
type ScannerConfig struct {
	DebugDir      string  `mapstructure:"debug_dir"`      // 调试图片输出目录
	BarcodeWidth  int     `mapstructure:"barcode_width"`  // 商品条码采集宽度
	BarcodeHeight int     `mapstructure:"barcode_height"` // 商品条码采集高度
	PickupWidth   int     `mapstructure:"pickup_width"`   // 取货二维码采集宽度
	PickupHeight  int     `mapstructure:"pickup_height"`  // 取货二维码采集高度
	CLAHEClip     float64 `mapstructure:"clahe_clip"`     // 对比度增强裁剪限制
	CLAHETiles    int     `mapstructure:"clahe_tiles"`    // 对比度增强网格大小
	PickupUpscale int     `mapstructure:"pickup_upscale"` // 二维码解码前放大倍数
}

// CatalogConfig 商品目录服务配置
type CatalogConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PaymentConfig 支付配置
type PaymentConfig struct {
	PIN         string        `mapstructure:"pin"`          // 预设支付密码
	PINLength   int           `mapstructure:"pin_length"`   // 密码位数
	MaxAttempts int           `mapstructure:"max_attempts"` // 两种支付方式共享的尝试次数
	TapTimeout  time.Duration `mapstructure:"tap_timeout"`  // 刷卡等待超时
	LEDFlash    time.Duration `mapstructure:"led_flash"`    // 失败指示灯闪烁时长
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWT JWTConfig `mapstructure:"jwt"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret       string `mapstructure:"secret"`
	ExpireHours  int    `mapstructure:"expire_hours"`
	RefreshHours int    `mapstructure:"refresh_hours"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init 初始化配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		v = viper.New()

		// 设置配置文件路径
		if configPath != "" {
			v.SetConfigFile(configPath)
		} else {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath("./config")
			v.AddConfigPath(".")
		}

		// 设置环境变量前缀
		v.SetEnvPrefix("KIOSK")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		// 设置默认值
		setDefaults(v)

		// 读取配置文件
		if err = v.ReadInConfig(); err != nil {
			// 如果配置文件不存在，使用默认配置
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return
			}
			err = nil
		}

		// 记录实际使用的配置文件
		v.Set("config_file", v.ConfigFileUsed())

		// 解析配置到结构体
		cfg = &Config{}
		err = v.Unmarshal(cfg)
	})

	return err
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 管理接口默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// 数据库默认配置
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/checkout-kiosk.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "info")
	v.SetDefault("database.auto_migrate", true)

	// WebSocket默认配置
	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_timeout", "60s")
	v.SetDefault("websocket.write_timeout", "10s")

	// 外设板默认配置
	v.SetDefault("hardware.enabled", true)
	v.SetDefault("hardware.mock_mode", false)
	v.SetDefault("hardware.port", "/dev/ttyS3")
	v.SetDefault("hardware.baud_rate", 115200)
	v.SetDefault("hardware.data_bits", 8)
	v.SetDefault("hardware.stop_bits", 1)
	v.SetDefault("hardware.parity", "none")
	v.SetDefault("hardware.read_timeout", "3s")
	v.SetDefault("hardware.write_timeout", "3s")
	v.SetDefault("hardware.retry_times", 3)
	v.SetDefault("hardware.retry_interval", "100ms")
	v.SetDefault("hardware.heartbeat_interval", "30s")
	v.SetDefault("hardware.camera.spool_dir", "./data/frames")
	v.SetDefault("hardware.camera.frame_timeout", "5s")

	// 会话默认配置
	v.SetDefault("kiosk.poll_interval", "100ms")
	v.SetDefault("kiosk.message_pause", "2s")
	v.SetDefault("kiosk.splash_pause", "2s")
	v.SetDefault("kiosk.presence_cm", 40.0)
	v.SetDefault("kiosk.motor_speed", 50)
	v.SetDefault("kiosk.motor_pulse", "2s")

	// 环境监控默认配置
	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.sample_interval", "5s")
	v.SetDefault("monitor.overheat_c", 45.0)
	v.SetDefault("monitor.humidity_pct", 60.0)
	v.SetDefault("monitor.clear_hold", "30s")

	// 扫码默认配置
	v.SetDefault("scanner.debug_dir", "./data/debug")
	v.SetDefault("scanner.barcode_width", 800)
	v.SetDefault("scanner.barcode_height", 600)
	v.SetDefault("scanner.pickup_width", 1296)
	v.SetDefault("scanner.pickup_height", 972)
	v.SetDefault("scanner.clahe_clip", 2.0)
	v.SetDefault("scanner.clahe_tiles", 8)
	v.SetDefault("scanner.pickup_upscale", 2)

	// 商品目录默认配置
	v.SetDefault("catalog.base_url", "http://localhost:80/api")
	v.SetDefault("catalog.timeout", "3s")

	// 支付默认配置
	v.SetDefault("payment.pin", "1234")
	v.SetDefault("payment.pin_length", 4)
	v.SetDefault("payment.max_attempts", 3)
	v.SetDefault("payment.tap_timeout", "3s")
	v.SetDefault("payment.led_flash", "1s")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "both")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "checkout-kiosk.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)

	// 安全默认配置
	v.SetDefault("security.jwt.secret", "")
	v.SetDefault("security.jwt.expire_hours", 24)
	v.SetDefault("security.jwt.refresh_hours", 168)
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch 监听配置文件变化
func Watch(callback func(*Config)) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()

		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}

		cfg = newCfg

		if callback != nil {
			callback(cfg)
		}

		fmt.Println("配置已重新加载")
	})
}

// GetString 获取字符串配置
func GetString(key string) string {
	return v.GetString(key)
}

// GetInt 获取整数配置
func GetInt(key string) int {
	return v.GetInt(key)
}

// GetBool 获取布尔配置
func GetBool(key string) bool {
	return v.GetBool(key)
}

// GetFloat64 获取浮点数配置
func GetFloat64(key string) float64 {
	return v.GetFloat64(key)
}

// GetDuration 获取时间间隔配置
func GetDuration(key string) time.Duration {
	return v.GetDuration(key)
}

// IsSet 检查配置项是否存在
func IsSet(key string) bool {
	return v.IsSet(key)
}

// Set 动态设置配置值
func Set(key string, value interface{}) {
	v.Set(key, value)
}
