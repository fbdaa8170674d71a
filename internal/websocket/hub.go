package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wfunc/checkout-kiosk/internal/kiosk"
)

// StateSource 提供终端当前状态快照
type StateSource interface {
	Snapshot() kiosk.StateSnapshot
}

// Hub WebSocket连接管理中心
type Hub struct {
	// 客户端连接池
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// 操作员ID到客户端的映射
	operatorClients map[uint][]*Client
	operatorMu      sync.RWMutex

	// 消息广播通道
	broadcast chan *Message

	// 注册/注销通道
	register   chan *Client
	unregister chan *Client

	// 状态快照来源，可为nil
	state StateSource

	// 入站消息处理器，nil时走默认处理
	messageHandler MessageHandler

	// 日志
	logger *zap.Logger
}

// Client WebSocket客户端
type Client struct {
	ID         string          // 客户端ID
	OperatorID uint            // 操作员ID，匿名连接为0
	Hub        *Hub            // Hub引用
	Conn       *websocket.Conn // WebSocket连接
	Send       chan []byte     // 发送通道
}

// Message WebSocket消息
type Message struct {
	Type      string          `json:"type"` // 消息类型
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"` // 时间戳
}

// MessageHandler 客户端入站消息处理器
type MessageHandler interface {
	HandleClientMessage(client *Client, data []byte)
}

// MessageType 消息类型
const (
	// 系统消息
	MessageTypeConnected = "connected"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeError     = "error"

	// 终端消息
	MessageTypeStatus      = "status"
	MessageTypeGetStatus   = "get_status"
	MessageTypeItemScanned = "item_scanned"
	MessageTypePayment     = "payment"
	MessageTypePickup      = "pickup"
	MessageTypePower       = "power"
	MessageTypeAlarm       = "alarm"
)

// NewHub 创建Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:         make(map[string]*Client),
		operatorClients: make(map[uint][]*Client),
		broadcast:       make(chan *Message, 256),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		logger:          logger,
	}
}

// SetStateSource 设置状态快照来源
func (h *Hub) SetStateSource(src StateSource) {
	h.state = src
}

// SetMessageHandler 设置入站消息处理器
func (h *Hub) SetMessageHandler(handler MessageHandler) {
	h.messageHandler = handler
}

// Run 运行Hub
func (h *Hub) Run() {
	// 启动心跳检测
	go h.runHeartbeat()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	h.clients[client.ID] = client
	h.clientsMu.Unlock()

	// 添加到操作员客户端映射
	if client.OperatorID > 0 {
		h.operatorMu.Lock()
		h.operatorClients[client.OperatorID] = append(h.operatorClients[client.OperatorID], client)
		h.operatorMu.Unlock()
	}

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID),
		zap.Uint("operator_id", client.OperatorID))

	// 发送连接成功消息
	msg := &Message{
		Type:      MessageTypeConnected,
		Timestamp: time.Now().Unix(),
		Data:      json.RawMessage(`{"message":"连接成功"}`),
	}
	h.SendToClient(client.ID, msg)
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
	}
	h.clientsMu.Unlock()

	// 从操作员客户端映射中移除
	if client.OperatorID > 0 {
		h.operatorMu.Lock()
		clients := h.operatorClients[client.OperatorID]
		for i, c := range clients {
			if c.ID == client.ID {
				h.operatorClients[client.OperatorID] = append(clients[:i], clients[i+1:]...)
				break
			}
		}
		if len(h.operatorClients[client.OperatorID]) == 0 {
			delete(h.operatorClients, client.OperatorID)
		}
		h.operatorMu.Unlock()
	}

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.ID),
		zap.Uint("operator_id", client.OperatorID))
}

// broadcastMessage 广播消息
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("序列化消息失败", zap.Error(err))
		return
	}

	h.clientsMu.RLock()
	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			// 发送缓冲区满，丢弃本条
			h.logger.Warn("客户端发送缓冲区满",
				zap.String("client_id", client.ID))
		}
	}
	h.clientsMu.RUnlock()
}

// SendToClient 发送消息给指定客户端
func (h *Hub) SendToClient(clientID string, message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.clientsMu.RLock()
	client, ok := h.clients[clientID]
	h.clientsMu.RUnlock()

	if !ok {
		return ErrClientNotFound
	}

	select {
	case client.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// SendToOperator 发送消息给指定操作员的所有客户端
func (h *Hub) SendToOperator(operatorID uint, message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.operatorMu.RLock()
	clients := h.operatorClients[operatorID]
	h.operatorMu.RUnlock()

	if len(clients) == 0 {
		return ErrOperatorNotConnected
	}

	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("操作员客户端发送缓冲区满",
				zap.String("client_id", client.ID),
				zap.Uint("operator_id", operatorID))
		}
	}

	return nil
}

// GetOnlineOperators 获取在线操作员列表
func (h *Hub) GetOnlineOperators() []uint {
	h.operatorMu.RLock()
	defer h.operatorMu.RUnlock()

	operators := make([]uint, 0, len(h.operatorClients))
	for operatorID := range h.operatorClients {
		operators = append(operators, operatorID)
	}
	return operators
}

// GetOnlineCount 获取在线连接数
func (h *Hub) GetOnlineCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// runHeartbeat 运行心跳检测
func (h *Hub) runHeartbeat() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		<-ticker.C
		ping := &Message{
			Type:      MessageTypePing,
			Timestamp: time.Now().Unix(),
		}
		h.broadcast <- ping
	}
}

// Broadcast 广播消息（公开方法）
func (h *Hub) Broadcast(message *Message) {
	h.broadcast <- message
}

// BroadcastEvent 序列化负载并广播一条事件消息
func (h *Hub) BroadcastEvent(msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("序列化事件负载失败",
			zap.String("type", msgType), zap.Error(err))
		return
	}
	h.Broadcast(&Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// Register 注册客户端（公开方法）
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister 注销客户端（公开方法）
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}
