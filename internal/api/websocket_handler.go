package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/wfunc/checkout-kiosk/internal/middleware"
	ws "github.com/wfunc/checkout-kiosk/internal/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler WebSocket处理器
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *ws.Hub, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// 在生产环境中应该检查Origin
				return true
			},
		},
		logger: logger,
	}
}

// KioskWebSocket 终端事件WebSocket连接
func (h *WebSocketHandler) KioskWebSocket(c *gin.Context) {
	// 获取操作员ID（可选，匿名连接为0）
	operatorID, exists := middleware.GetOperatorID(c)
	if !exists {
		h.logger.Info("WebSocket匿名连接", zap.String("ip", c.ClientIP()))
	}

	// 升级为WebSocket连接
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket升级失败",
			zap.Uint("operator_id", operatorID),
			zap.Error(err))
		return
	}

	// 创建并注册客户端
	client := ws.NewClient(h.hub, conn, operatorID)
	h.hub.Register(client)

	// 启动读写协程
	go client.WritePump()
	go client.ReadPump()

	h.logger.Info("WebSocket连接建立",
		zap.String("client_id", client.ID),
		zap.Uint("operator_id", operatorID))
}

// GetOnlineCount 获取在线连接数
func (h *WebSocketHandler) GetOnlineCount(c *gin.Context) {
	count := h.hub.GetOnlineCount()
	operators := h.hub.GetOnlineOperators()

	c.JSON(http.StatusOK, gin.H{
		"online_count":     count,
		"online_operators": operators,
	})
}
