package kiosk

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wfunc/checkout-kiosk/internal/catalog"
	"github.com/wfunc/checkout-kiosk/internal/config"
	"github.com/wfunc/checkout-kiosk/internal/hal"
	"github.com/wfunc/checkout-kiosk/internal/logger"
	"github.com/wfunc/checkout-kiosk/internal/models"
	"github.com/wfunc/checkout-kiosk/internal/repository"
	"github.com/wfunc/checkout-kiosk/internal/scanner"
)

// 主菜单动作
type menuAction int

const (
	actionCheckout menuAction = iota // 进入扫码结账
	actionPickup                     // 进入取货扫码
	actionPower                      // 关机待命
	actionExit                       // 退出主循环
	actionStop                       // 上下文取消
)

// keyPowerResume 关机待命状态下唯一有效的恢复键
const keyPowerResume byte = '*'

// CartItem 本次会话已扫描的商品
type CartItem struct {
	Barcode    string
	Name       string
	PriceCents int64
}

// EventNotifier 会话事件对外广播（如websocket推送）
type EventNotifier interface {
	NotifyScan(sessionID, name string, priceCents, totalCents int64, itemCount int)
	NotifyPayment(sessionID, orderNo string, status models.OrderStatus, totalCents int64, attempts int)
	NotifyPickup(orderRef string, accepted bool)
	NotifyPower(on bool)
}

// Controller 前台会话状态机。
// 单协程顺序驱动：主菜单、扫码会话、结账支付、取货扫码、关机待命。
// 购物车只在支付成功后清空，支付被拒或取消时保持待结状态。
type Controller struct {
	kioskCfg *config.KioskConfig
	payCfg   *config.PaymentConfig
	scanCfg  *config.ScannerConfig

	devices  *hal.Devices
	pipeline *scanner.Pipeline
	catalog  *catalog.Resolver
	state    *SharedState
	queue    *InputQueue

	orders   repository.OrderRepository
	pickups  repository.PickupRepository
	notifier EventNotifier
	logger   *zap.Logger

	sessionID  string
	cart       []CartItem
	totalCents int64
}

// ControllerOptions 会话控制器装配参数
type ControllerOptions struct {
	Kiosk    *config.KioskConfig
	Payment  *config.PaymentConfig
	Scanner  *config.ScannerConfig
	Devices  *hal.Devices
	Pipeline *scanner.Pipeline
	Catalog  *catalog.Resolver
	State    *SharedState
	Queue    *InputQueue
	Orders   repository.OrderRepository
	Pickups  repository.PickupRepository
	Notifier EventNotifier
}

// NewController 创建会话控制器。Orders/Pickups/Notifier可为nil。
func NewController(opts ControllerOptions) *Controller {
	return &Controller{
		kioskCfg: opts.Kiosk,
		payCfg:   opts.Payment,
		scanCfg:  opts.Scanner,
		devices:  opts.Devices,
		pipeline: opts.Pipeline,
		catalog:  opts.Catalog,
		state:    opts.State,
		queue:    opts.Queue,
		orders:   opts.Orders,
		pickups:  opts.Pickups,
		notifier: opts.Notifier,
		logger:   logger.GetModuleLogger("kiosk"),
	}
}

// StartKeyListener 把外设板按键回调接入输入队列，只投递按下事件
func StartKeyListener(keypad hal.Keypad, queue *InputQueue) {
	keypad.SetKeyCallback(func(event hal.KeyEvent) {
		if event.Action != hal.KeyActionDown {
			return
		}
		queue.Push(InputEvent{Key: event.Key, Time: event.Time})
	})
}

// Run 会话主循环，阻塞直到顾客选择退出或上下文取消。
// 任何协作方故障都被就地消化成屏幕提示，循环继续。
func (c *Controller) Run(ctx context.Context) error {
	defer c.shutdown()

	c.logger.Info("会话循环启动")
	c.splash(ctx)

	for {
		switch c.mainMenu(ctx) {
		case actionCheckout:
			c.scanningSession(ctx)
		case actionPickup:
			c.pickupMode(ctx)
		case actionPower:
			c.powerOff(ctx)
		case actionExit:
			c.logger.Info("顾客选择退出，会话循环结束")
			return nil
		case actionStop:
			return ctx.Err()
		}
	}
}

// mainMenu 主菜单：有告警横幅时优先展示
func (c *Controller) mainMenu(ctx context.Context) menuAction {
	const unset = "\x00"
	lastBanner := unset
	for {
		_, banner := c.state.Alarm()
		if banner != lastBanner {
			if banner != "" {
				c.show(banner, "1:Checkout 2:QR")
			} else {
				c.show("1:Checkout 2:QR", "9:Power 0:Exit")
			}
			lastBanner = banner
		}

		key, ok := c.nextKey(ctx)
		if !ok {
			return actionStop
		}
		switch key {
		case '1':
			return actionCheckout
		case '2':
			return actionPickup
		case '9':
			return actionPower
		case '0':
			return actionExit
		case 0:
			// 队列暂空，继续轮询横幅
		default:
			// 其余按键在主菜单无意义，忽略
		}
	}
}

// scanningSession 扫码会话：循环扫描商品直到结账或放弃
func (c *Controller) scanningSession(ctx context.Context) {
	if len(c.cart) == 0 {
		c.sessionID = uuid.New().String()
	}
	c.state.SetScanning(true)
	c.state.SetPaymentSuccess(false)
	defer c.state.SetScanning(false)

	logger.LogKioskEvent("scanning_started", c.sessionID, map[string]interface{}{
		"pending_items": len(c.cart),
	})

	for {
		c.showCart()
		key, ok := c.waitKey(ctx)
		if !ok {
			return
		}
		switch key {
		case '1':
			c.scanItem(ctx)
		case '9':
			if len(c.cart) == 0 {
				c.showMessage(ctx, "No items scanned", "")
				return
			}
			if c.checkout(ctx) {
				c.sessionComplete(ctx)
			}
			return
		default:
			// 忽略无关按键
		}
	}
}

// scanItem 单次商品扫描：感应、取帧、解码、询价、入车
func (c *Controller) scanItem(ctx context.Context) {
	c.pulseMotorIfPresent(ctx)

	if c.devices.Camera == nil {
		c.showMessage(ctx, "Camera Error", "Try again")
		return
	}
	frame, err := c.devices.Camera.Capture(c.scanCfg.BarcodeWidth, c.scanCfg.BarcodeHeight)
	if err != nil {
		c.logger.Error("取帧失败", zap.Error(err))
		c.showMessage(ctx, "Camera Error", "Try again")
		return
	}

	result, found := c.pipeline.DecodeBarcode(frame)
	if !found {
		c.showMessage(ctx, "Not recognized", "Try again")
		return
	}

	product, ok := c.catalog.Resolve(ctx, result.Payload)
	if !ok {
		c.logger.Info("条码无法询价", zap.String("barcode", result.Payload))
		c.showMessage(ctx, "Not recognized", "Try again")
		return
	}

	c.cart = append(c.cart, CartItem{
		Barcode:    result.Payload,
		Name:       product.Name,
		PriceCents: product.PriceCents,
	})
	c.totalCents += product.PriceCents

	logger.LogKioskEvent("item_scanned", c.sessionID, map[string]interface{}{
		"barcode":     result.Payload,
		"name":        product.Name,
		"price_cents": product.PriceCents,
		"total_cents": c.totalCents,
		"items":       len(c.cart),
	})
	if c.notifier != nil {
		c.notifier.NotifyScan(c.sessionID, product.Name, product.PriceCents, c.totalCents, len(c.cart))
	}
	c.showMessage(ctx, product.Name, formatCents(product.PriceCents))
}

// pulseMotorIfPresent 取景窗前有物品时短暂送带，把商品带到扫描位
func (c *Controller) pulseMotorIfPresent(ctx context.Context) {
	dist, err := c.devices.Distance.DistanceCM()
	if err != nil {
		c.logger.Warn("测距失败", zap.Error(err))
		return
	}
	if dist >= c.kioskCfg.PresenceCM {
		return
	}

	if err := c.devices.Motor.Run(c.kioskCfg.MotorSpeed); err != nil {
		c.logger.Warn("送带电机启动失败", zap.Error(err))
		return
	}
	c.pause(ctx, c.kioskCfg.MotorPulse)
	if err := c.devices.Motor.Stop(); err != nil {
		c.logger.Warn("送带电机停止失败", zap.Error(err))
	}
}

// sessionComplete 支付完成收尾：清空购物车并回到主菜单
func (c *Controller) sessionComplete(ctx context.Context) {
	c.cart = nil
	c.totalCents = 0
	c.show("Thank you!", "New session...")
	c.pause(ctx, c.messagePause())
}

// powerOff 关机待命，直到收到恢复键
func (c *Controller) powerOff(ctx context.Context) {
	c.state.SetPower(false)
	if c.notifier != nil {
		c.notifier.NotifyPower(false)
	}
	logger.LogKioskEvent("power_off", c.sessionID, nil)
	c.show("Shutting Down", "Thank you!")

	for {
		key, ok := c.waitKey(ctx)
		if !ok {
			return
		}
		if key == keyPowerResume {
			break
		}
		// 关机状态下其余按键全部忽略
	}

	c.state.SetPower(true)
	if c.notifier != nil {
		c.notifier.NotifyPower(true)
	}
	logger.LogKioskEvent("power_on", c.sessionID, nil)
	c.splash(ctx)
}

// splash 开机画面
func (c *Controller) splash(ctx context.Context) {
	c.show("Supermarket", "Checkout System")
	c.pause(ctx, c.splashPause())
}

// shutdown 退出前清屏、停电机
func (c *Controller) shutdown() {
	if err := c.devices.Motor.Stop(); err != nil {
		c.logger.Warn("退出时停止电机失败", zap.Error(err))
	}
	if err := c.devices.Display.Clear(); err != nil {
		c.logger.Warn("退出时清屏失败", zap.Error(err))
	}
	c.logger.Info("会话循环已退出")
}

// showCart 刷新购物车屏幕
func (c *Controller) showCart() {
	if len(c.cart) == 0 {
		c.show("Ready to scan", "1:Barcode 9:Done")
		return
	}
	c.show(fmt.Sprintf("Items: %d", len(c.cart)), "Total: "+formatCents(c.totalCents))
}

// show 写显示屏，失败只记日志
func (c *Controller) show(line1, line2 string) {
	if err := c.devices.Display.Show(line1, line2); err != nil {
		c.logger.Warn("显示屏写入失败", zap.Error(err))
	}
}

// showMessage 显示提示信息并停留
func (c *Controller) showMessage(ctx context.Context, line1, line2 string) {
	c.show(line1, line2)
	c.pause(ctx, c.messagePause())
}

// waitKey 阻塞等待下一个按键，固定间隔轮询队列
func (c *Controller) waitKey(ctx context.Context) (byte, bool) {
	for {
		key, ok := c.nextKey(ctx)
		if !ok {
			return 0, false
		}
		if key != 0 {
			return key, true
		}
	}
}

// nextKey 取一个按键；队列为空时睡一个轮询间隔并返回0
func (c *Controller) nextKey(ctx context.Context) (byte, bool) {
	if ev, ok := c.queue.TryPop(); ok {
		return ev.Key, true
	}
	if !c.pause(ctx, c.pollInterval()) {
		return 0, false
	}
	return 0, true
}

// pause 可中断睡眠，上下文取消时返回false
func (c *Controller) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (c *Controller) pollInterval() time.Duration {
	if c.kioskCfg.PollInterval > 0 {
		return c.kioskCfg.PollInterval
	}
	return 100 * time.Millisecond
}

func (c *Controller) messagePause() time.Duration {
	if c.kioskCfg.MessagePause > 0 {
		return c.kioskCfg.MessagePause
	}
	return 1200 * time.Millisecond
}

func (c *Controller) splashPause() time.Duration {
	if c.kioskCfg.SplashPause > 0 {
		return c.kioskCfg.SplashPause
	}
	return 2 * time.Second
}

// formatCents 金额显示，分转为"$X.XX"
func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
