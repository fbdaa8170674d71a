package kiosk

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wfunc/checkout-kiosk/internal/logger"
	"github.com/wfunc/checkout-kiosk/internal/models"
)

// orderRefPrefix 有效取货码的订单号前缀
const orderRefPrefix = "ORD-"

// pickupMode 取货扫码子循环：不限次数重扫，按9返回主菜单
func (c *Controller) pickupMode(ctx context.Context) {
	logger.LogKioskEvent("pickup_mode_entered", "", nil)
	for {
		c.show("QR Pickup Mode", "1:Scan 9:Back")
		key, ok := c.waitKey(ctx)
		if !ok {
			return
		}
		switch key {
		case '1':
			c.pickupScan(ctx)
		case '9':
			return
		default:
			// 忽略无关按键
		}
	}
}

// pickupScan 单次取货码扫描：取帧、解码、校验前缀、落库
func (c *Controller) pickupScan(ctx context.Context) {
	if c.devices.Camera == nil {
		c.showMessage(ctx, "Camera Error", "Try again")
		return
	}
	frame, err := c.devices.Camera.Capture(c.scanCfg.PickupWidth, c.scanCfg.PickupHeight)
	if err != nil {
		c.logger.Error("取帧失败", zap.Error(err))
		c.showMessage(ctx, "Camera Error", "Try again")
		return
	}

	result, found := c.pipeline.DecodePickup(frame)
	if !found {
		c.showMessage(ctx, "No QR detected", "Try again")
		return
	}

	accepted := strings.HasPrefix(result.Payload, orderRefPrefix)
	record := &models.PickupRecord{
		Payload:   result.Payload,
		Accepted:  accepted,
		ScannedAt: time.Now(),
	}
	if accepted {
		record.OrderRef = firstN(result.Payload, 64)
	}
	if c.pickups != nil {
		if err := c.pickups.Create(ctx, record); err != nil {
			c.logger.Error("取货记录落库失败", zap.Error(err))
		}
	}
	if c.notifier != nil {
		c.notifier.NotifyPickup(record.OrderRef, accepted)
	}

	if accepted {
		logger.LogKioskEvent("pickup_accepted", "", map[string]interface{}{
			"order_ref": record.OrderRef,
		})
		c.showMessage(ctx, "Order Collected!", firstN(result.Payload, 16))
		return
	}
	logger.LogKioskEvent("pickup_rejected", "", map[string]interface{}{
		"payload_len": len(result.Payload),
	})
	c.showMessage(ctx, "QR Invalid", "Try again")
}

// firstN 取字符串前n个字节
func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
