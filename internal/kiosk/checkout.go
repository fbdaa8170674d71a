package kiosk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wfunc/checkout-kiosk/internal/logger"
	"github.com/wfunc/checkout-kiosk/internal/models"
	"github.com/wfunc/checkout-kiosk/internal/utils"
)

// checkout 结账支付流程，返回是否支付成功。
// 密码与感应卡共享同一个尝试预算，被拒和取消都保留购物车。
func (c *Controller) checkout(ctx context.Context) bool {
	max := c.maxAttempts()
	attempts := 0

	for attempts < max {
		c.show("Checkout Options", "1:ATM 2:Paywave")
		key, ok := c.waitKey(ctx)
		if !ok {
			return false
		}

		var (
			approved bool
			method   models.PaymentMethod
			failLine string
		)
		switch key {
		case '0':
			logger.LogKioskEvent("checkout_cancelled", c.sessionID, map[string]interface{}{
				"attempts": attempts,
			})
			return false
		case '1':
			pin, ok := c.readPIN(ctx)
			if !ok {
				return false
			}
			method = models.PaymentMethodPIN
			approved = pin == c.pinCode()
			failLine = "Invalid PIN"
		case '2':
			method = models.PaymentMethodTap
			approved = c.tapAttempt()
			failLine = "No card detected"
		default:
			// 无关按键不消耗尝试次数
			continue
		}

		attempts++
		if approved {
			c.completePayment(ctx, method, attempts)
			return true
		}

		c.failureFlash()
		if remaining := max - attempts; remaining > 0 {
			c.showMessage(ctx, failLine, fmt.Sprintf("%d tries left", remaining))
		}
	}

	c.declinePayment(ctx, max)
	return false
}

// readPIN 逐位读取定长密码，屏幕以星号回显
func (c *Controller) readPIN(ctx context.Context) (string, bool) {
	length := c.payCfg.PINLength
	if length <= 0 {
		length = 4
	}

	c.show("Enter PIN:", "")
	var entered strings.Builder
	for entered.Len() < length {
		key, ok := c.waitKey(ctx)
		if !ok {
			return "", false
		}
		if key < '0' || key > '9' {
			continue
		}
		entered.WriteByte(key)
		c.show("Enter PIN:", strings.Repeat("*", entered.Len()))
	}
	return entered.String(), true
}

// tapAttempt 感应卡支付：读到非空UID即成功
func (c *Controller) tapAttempt() bool {
	c.show("Tap your card", "")

	timeout := c.payCfg.TapTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	uid, err := c.devices.Cards.ReadUID(timeout)
	if err != nil {
		c.logger.Warn("读卡失败", zap.Error(err))
		return false
	}
	if uid == "" {
		return false
	}
	c.logger.Info("感应卡支付", zap.String("uid", uid))
	return true
}

// completePayment 支付成功：置位标志、落库订单、广播并清屏提示
func (c *Controller) completePayment(ctx context.Context, method models.PaymentMethod, attempts int) {
	c.state.SetPaymentSuccess(true)

	now := time.Now()
	order := &models.Order{
		OrderNo:       utils.GenerateOrderNo(),
		SessionID:     c.sessionID,
		ItemCount:     len(c.cart),
		TotalCents:    c.totalCents,
		PaymentMethod: method,
		Attempts:      attempts,
		Status:        models.OrderStatusPaid,
		PaidAt:        &now,
		Items:         c.orderItems(),
	}
	if c.orders != nil {
		if err := c.orders.Create(ctx, order); err != nil {
			c.logger.Error("订单落库失败", zap.String("order_no", order.OrderNo), zap.Error(err))
		}
	}

	logger.LogKioskEvent("payment_approved", c.sessionID, map[string]interface{}{
		"order_no":    order.OrderNo,
		"method":      string(method),
		"attempts":    attempts,
		"total_cents": c.totalCents,
	})
	if c.notifier != nil {
		c.notifier.NotifyPayment(c.sessionID, order.OrderNo, models.OrderStatusPaid, c.totalCents, attempts)
	}
	c.showMessage(ctx, "Payment Approved", "")
}

// declinePayment 尝试次数用尽：记一笔被拒订单，购物车保持待结
func (c *Controller) declinePayment(ctx context.Context, attempts int) {
	order := &models.Order{
		OrderNo:       utils.GenerateOrderNo(),
		SessionID:     c.sessionID,
		ItemCount:     len(c.cart),
		TotalCents:    c.totalCents,
		PaymentMethod: models.PaymentMethodNone,
		Attempts:      attempts,
		Status:        models.OrderStatusDeclined,
		Items:         c.orderItems(),
	}
	if c.orders != nil {
		if err := c.orders.Create(ctx, order); err != nil {
			c.logger.Error("订单落库失败", zap.String("order_no", order.OrderNo), zap.Error(err))
		}
	}

	logger.LogKioskEvent("payment_declined", c.sessionID, map[string]interface{}{
		"order_no":    order.OrderNo,
		"attempts":    attempts,
		"total_cents": c.totalCents,
	})
	if c.notifier != nil {
		c.notifier.NotifyPayment(c.sessionID, order.OrderNo, models.OrderStatusDeclined, c.totalCents, attempts)
	}
	c.showMessage(ctx, "Payment Declined", "")
}

// failureFlash 支付失败时闪烁指示灯
func (c *Controller) failureFlash() {
	d := c.payCfg.LEDFlash
	if d <= 0 {
		d = time.Second
	}
	if err := c.devices.LED.Flash(d); err != nil {
		c.logger.Warn("指示灯闪烁失败", zap.Error(err))
	}
}

// orderItems 把购物车转换为订单明细
func (c *Controller) orderItems() []models.OrderItem {
	items := make([]models.OrderItem, 0, len(c.cart))
	for _, item := range c.cart {
		items = append(items, models.OrderItem{
			Barcode:    item.Barcode,
			Name:       item.Name,
			PriceCents: item.PriceCents,
		})
	}
	return items
}

func (c *Controller) maxAttempts() int {
	if c.payCfg.MaxAttempts > 0 {
		return c.payCfg.MaxAttempts
	}
	return 3
}

func (c *Controller) pinCode() string {
	if c.payCfg.PIN != "" {
		return c.payCfg.PIN
	}
	return "1234"
}
