package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wfunc/checkout-kiosk/internal/api"
	"github.com/wfunc/checkout-kiosk/internal/catalog"
	"github.com/wfunc/checkout-kiosk/internal/config"
	"github.com/wfunc/checkout-kiosk/internal/database"
	"github.com/wfunc/checkout-kiosk/internal/errors"
	"github.com/wfunc/checkout-kiosk/internal/hal"
	"github.com/wfunc/checkout-kiosk/internal/kiosk"
	"github.com/wfunc/checkout-kiosk/internal/logger"
	"github.com/wfunc/checkout-kiosk/internal/monitor"
	"github.com/wfunc/checkout-kiosk/internal/repository"
	"github.com/wfunc/checkout-kiosk/internal/scanner"
	"github.com/wfunc/checkout-kiosk/internal/service"
	ws "github.com/wfunc/checkout-kiosk/internal/websocket"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 外设
	board   hal.Board
	camera  *hal.SpoolCamera
	devices *hal.Devices

	// 前台会话
	state      *kiosk.SharedState
	queue      *kiosk.InputQueue
	controller *kiosk.Controller

	// 环境监控
	monitor *monitor.Monitor

	// 管理接口
	hub        *ws.Hub
	router     *api.Router
	httpServer *http.Server

	// 关闭控制
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
}

func main() {
	// 命令行参数
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)

	flag.Parse()

	// 显示版本信息
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	// 显示帮助信息
	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	// 加载配置
	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()

	// 初始化日志系统
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	// 设置系统参数
	setupSystem(&cfg.System)

	// 打印启动信息
	printStartInfo(cfg)

	// 创建服务器实例
	server := NewServer(cfg)

	// 启动服务器
	if err := server.Start(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}

	// 等待退出信号
	server.WaitForShutdown()

	// 优雅关闭
	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		cfg:        cfg,
		logger:     logger.GetLogger(),
		shutdownCh: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("正在启动自助收银终端...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
	)

	// 初始化各个组件
	if err := s.initComponents(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "初始化组件失败")
	}

	// 启动各个服务
	if err := s.startServices(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "启动服务失败")
	}

	// 监听配置变化
	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，正在重新加载...")
		s.reloadConfig(newCfg)
	})

	s.logger.Info("服务器启动成功",
		zap.String("http", fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)),
		zap.Bool("mock_hardware", s.cfg.Hardware.MockMode),
	)

	return nil
}

// initComponents 初始化组件
func (s *Server) initComponents() error {
	s.logger.Info("初始化组件...")

	// 初始化数据库
	if err := s.initDatabase(); err != nil {
		return err
	}

	// 初始化外设
	if err := s.initHardware(); err != nil {
		return err
	}

	// 初始化前台会话与监控
	if err := s.initKiosk(); err != nil {
		return err
	}

	// 初始化管理接口
	if err := s.initAdminAPI(); err != nil {
		return err
	}

	s.logger.Info("所有组件初始化完成")
	return nil
}

// initDatabase 初始化数据库
func (s *Server) initDatabase() error {
	s.logger.Info("初始化数据库...")

	// 初始化数据库连接
	if err := database.Init(&s.cfg.Database); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "初始化数据库连接失败")
	}

	// 自动迁移数据库
	if s.cfg.Database.AutoMigrate {
		s.logger.Info("执行数据库自动迁移...")
		if err := database.AutoMigrate(); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseConnect, "数据库迁移失败")
		}
	}

	// 检查数据库连接
	if !database.IsConnected() {
		return errors.New(errors.ErrDatabaseConnect, "数据库连接检查失败")
	}

	s.logger.Info("数据库初始化完成")
	return nil
}

// initHardware 初始化外设板与摄像头
func (s *Server) initHardware() error {
	s.logger.Info("初始化外设...")

	if !s.cfg.Hardware.Enabled || s.cfg.Hardware.MockMode {
		s.logger.Warn("使用模拟外设板，仅供开发调试")
		s.board = hal.NewMockBoard()
	} else {
		s.board = hal.NewSerialBoard(&hal.SerialConfig{
			Port:              s.cfg.Hardware.Port,
			BaudRate:          s.cfg.Hardware.BaudRate,
			DataBits:          s.cfg.Hardware.DataBits,
			StopBits:          s.cfg.Hardware.StopBits,
			Parity:            s.cfg.Hardware.Parity,
			ReadTimeout:       s.cfg.Hardware.ReadTimeout,
			AckTimeout:        s.cfg.Hardware.WriteTimeout,
			RetryTimes:        s.cfg.Hardware.RetryTimes,
			RetryInterval:     s.cfg.Hardware.RetryInterval,
			HeartbeatInterval: s.cfg.Hardware.HeartbeatInterval,
		})
	}

	if err := s.board.Connect(); err != nil {
		return errors.Wrap(err, errors.ErrSerialPortOpen, "连接外设板失败")
	}

	camera := hal.NewSpoolCamera(s.cfg.Hardware.Camera.SpoolDir, s.cfg.Hardware.Camera.FrameTimeout)
	if err := camera.Start(); err != nil {
		return errors.Wrap(err, errors.ErrCameraCapture, "启动摄像头帧目录监听失败")
	}
	s.camera = camera

	s.devices = hal.NewDevices(s.board, s.camera)

	s.logger.Info("外设初始化完成")
	return nil
}

// initKiosk 初始化前台会话循环与环境监控
func (s *Server) initKiosk() error {
	s.logger.Info("初始化前台会话...")

	db := database.GetDB()

	s.state = kiosk.NewSharedState()
	s.queue = kiosk.NewInputQueue()
	kiosk.StartKeyListener(s.devices.Keypad, s.queue)

	// 推送中心先于会话控制器建立，事件桥接依赖它
	s.hub = ws.NewHub(s.logger)
	s.hub.SetStateSource(s.state)
	bridge := ws.NewEventBridge(s.hub)

	// 启动时探测商品服务连通性，失败只降级不阻塞
	resolver := catalog.NewResolver(s.cfg.Catalog.BaseURL, s.cfg.Catalog.Timeout)
	go func() {
		if err := resolver.Probe(s.ctx); err != nil {
			s.logger.Warn("商品服务探测失败，内置价表可用", zap.Error(err))
		}
	}()

	s.controller = kiosk.NewController(kiosk.ControllerOptions{
		Kiosk:    &s.cfg.Kiosk,
		Payment:  &s.cfg.Payment,
		Scanner:  &s.cfg.Scanner,
		Devices:  s.devices,
		Pipeline: scanner.NewPipeline(&s.cfg.Scanner),
		Catalog:  resolver,
		State:    s.state,
		Queue:    s.queue,
		Orders:   repository.NewOrderRepository(db),
		Pickups:  repository.NewPickupRepository(db),
		Notifier: bridge,
	})

	s.monitor = monitor.NewMonitor(
		&s.cfg.Monitor,
		s.devices.Climate,
		s.devices.Buzzer,
		s.state,
		repository.NewAlarmRepository(db),
		bridge,
	)

	s.logger.Info("前台会话初始化完成")
	return nil
}

// initAdminAPI 初始化管理接口
func (s *Server) initAdminAPI() error {
	s.logger.Info("初始化管理接口...")

	if s.cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	svcCfg := service.DefaultConfig()
	if secret := s.cfg.Security.JWT.Secret; secret != "" {
		svcCfg.JWTSecret = secret
	} else {
		s.logger.Warn("未配置JWT密钥，使用内置默认值，生产环境请务必修改")
	}
	if h := s.cfg.Security.JWT.ExpireHours; h > 0 {
		svcCfg.AccessTokenExpiry = time.Duration(h) * time.Hour
	}
	if h := s.cfg.Security.JWT.RefreshHours; h > 0 {
		svcCfg.RefreshTokenExpiry = time.Duration(h) * time.Hour
	}

	s.router = api.NewRouter(database.GetDB(), svcCfg, s.hub, s.state, s.logger)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      s.router.GetEngine(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.logger.Info("管理接口初始化完成")
	return nil
}

// startServices 启动服务
func (s *Server) startServices() error {
	s.logger.Info("启动服务...")

	// 推送中心常驻，进程退出时随之结束
	go s.hub.Run()

	// 管理接口
	s.wg.Add(1)
	go s.serveHTTP()

	// 前台会话循环
	s.wg.Add(1)
	go s.runController()

	// 环境监控
	if s.cfg.Monitor.Enabled {
		s.wg.Add(1)
		go s.runMonitor()
	}

	s.logger.Info("所有服务启动完成")
	return nil
}

// serveHTTP 运行管理接口HTTP服务
func (s *Server) serveHTTP() {
	defer s.wg.Done()

	s.logger.Info("管理接口已监听", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("管理接口异常退出", zap.Error(err))
	}
}

// runController 运行前台会话循环。
// 顾客在主菜单选择退出时结束整个进程。
func (s *Server) runController() {
	defer s.wg.Done()

	if err := s.controller.Run(s.ctx); err != nil {
		if err != context.Canceled {
			s.logger.Error("会话循环异常退出", zap.Error(err))
		}
		return
	}

	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}

// runMonitor 运行环境监控循环
func (s *Server) runMonitor() {
	defer s.wg.Done()
	s.monitor.Run(s.ctx)
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	// 创建信号通道
	sigCh := make(chan os.Signal, 1)

	// 监听系统信号
	signal.Notify(sigCh,
		syscall.SIGINT,  // Ctrl+C
		syscall.SIGTERM, // kill命令
		syscall.SIGQUIT, // Ctrl+\
	)

	// 等待系统信号或前台会话结束
	select {
	case sig := <-sigCh:
		s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
	case <-s.shutdownCh:
		s.logger.Info("前台会话结束，准备退出")
	}
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	// 创建超时上下文
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// 停止接收新请求
	s.logger.Info("停止接收新请求...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("关闭管理接口失败", zap.Error(err))
	}

	// 取消主上下文，触发所有goroutine退出
	s.cancel()

	// 等待所有服务关闭
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	// 等待关闭完成或超时
	select {
	case <-done:
		s.logger.Info("所有服务已正常关闭")
	case <-shutdownCtx.Done():
		s.logger.Warn("关闭超时，强制退出")
		return errors.New(errors.ErrTimeout, "关闭超时")
	}

	// 关闭各个组件
	if err := s.closeComponents(); err != nil {
		s.logger.Error("关闭组件失败", zap.Error(err))
		return err
	}

	// 同步日志
	if err := logger.Sync(); err != nil {
		fmt.Printf("同步日志失败: %v\n", err)
	}

	return nil
}

// closeComponents 关闭组件
func (s *Server) closeComponents() error {
	s.logger.Info("关闭组件...")

	// 关闭摄像头帧监听
	if s.camera != nil {
		if err := s.camera.Close(); err != nil {
			s.logger.Error("关闭摄像头失败", zap.Error(err))
		}
	}

	// 断开外设板
	if s.board != nil {
		if err := s.board.Disconnect(); err != nil {
			s.logger.Error("断开外设板失败", zap.Error(err))
		}
	}

	// 关闭数据库连接
	if err := database.Close(); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}

	s.logger.Info("所有组件已关闭")
	return nil
}

// reloadConfig 重新加载配置
func (s *Server) reloadConfig(newCfg *config.Config) {
	s.cfg = newCfg

	// 日志级别立即生效，串口与监听端口等需重启
	logger.SetLevel(newCfg.Log.Level)

	s.logger.Info("配置重新加载完成")
}

// setupSystem 设置系统参数
func setupSystem(cfg *config.SystemConfig) {
	// 设置时区
	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			time.Local = loc
		}
	}

	// 设置最大处理器数
	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}

	// 设置文件描述符限制（Unix系统）
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err == nil {
		rLimit.Cur = rLimit.Max
		syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	}
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("自助收银终端\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("自助收银终端")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  checkout-kiosk [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  KIOSK_SERVER_PORT         管理接口端口")
	fmt.Println("  KIOSK_HARDWARE_MOCK_MODE  使用模拟外设板 (true/false)")
	fmt.Println("  KIOSK_DATABASE_DSN        数据库连接串")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  checkout-kiosk -config=/path/to/config.yaml")
	fmt.Println("  checkout-kiosk -version")
}

// printStartInfo 打印启动信息
func printStartInfo(cfg *config.Config) {
	banner := `
╔═══════════════════════════════════════════════════════════════╗
║                                                               ║
║     _  __ _           _                                       ║
║    | |/ /(_) ___  ___| | __                                   ║
║    | ' / | |/ _ \/ __| |/ /                                   ║
║    | . \ | | (_) \__ \   <                                    ║
║    |_|\_\|_|\___/|___/_|\_\                                   ║
║                                                               ║
║                     自助收银终端控制器                        ║
║                                                               ║
╚═══════════════════════════════════════════════════════════════╝
`
	fmt.Println(banner)
	fmt.Printf("版本: %s | 模式: %s | PID: %d\n", Version, cfg.Server.Mode, os.Getpid())
	fmt.Printf("配置文件: %s\n", config.GetString("config_file"))
	fmt.Println("═══════════════════════════════════════════════════════════════")
}
