package websocket

import (
	"github.com/wfunc/checkout-kiosk/internal/kiosk"
	"github.com/wfunc/checkout-kiosk/internal/models"
	"github.com/wfunc/checkout-kiosk/internal/monitor"
)

// EventBridge 把会话与环境监控的事件桥接到WebSocket广播
type EventBridge struct {
	hub *Hub
}

// 确保 EventBridge 同时满足会话与监控的通知接口
var (
	_ kiosk.EventNotifier   = (*EventBridge)(nil)
	_ monitor.AlarmNotifier = (*EventBridge)(nil)
)

// NewEventBridge 创建事件桥
func NewEventBridge(hub *Hub) *EventBridge {
	return &EventBridge{hub: hub}
}

// NotifyScan 商品入车事件
func (b *EventBridge) NotifyScan(sessionID, name string, priceCents, totalCents int64, itemCount int) {
	b.hub.BroadcastEvent(MessageTypeItemScanned, map[string]interface{}{
		"session_id":  sessionID,
		"name":        name,
		"price_cents": priceCents,
		"total_cents": totalCents,
		"item_count":  itemCount,
	})
}

// NotifyPayment 支付结果事件
func (b *EventBridge) NotifyPayment(sessionID, orderNo string, status models.OrderStatus, totalCents int64, attempts int) {
	b.hub.BroadcastEvent(MessageTypePayment, map[string]interface{}{
		"session_id":  sessionID,
		"order_no":    orderNo,
		"status":      status,
		"total_cents": totalCents,
		"attempts":    attempts,
	})
}

// NotifyPickup 取货扫码事件
func (b *EventBridge) NotifyPickup(orderRef string, accepted bool) {
	b.hub.BroadcastEvent(MessageTypePickup, map[string]interface{}{
		"order_ref": orderRef,
		"accepted":  accepted,
	})
}

// NotifyPower 开关机事件
func (b *EventBridge) NotifyPower(on bool) {
	b.hub.BroadcastEvent(MessageTypePower, map[string]interface{}{
		"on": on,
	})
}

// NotifyAlarm 环境告警事件
func (b *EventBridge) NotifyAlarm(kind models.AlarmKind, banner string, active bool) {
	b.hub.BroadcastEvent(MessageTypeAlarm, map[string]interface{}{
		"kind":   kind,
		"banner": banner,
		"active": active,
	})
}
