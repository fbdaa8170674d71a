// 管理接口手工冒烟客户端：对运行中的终端依次调用管理API并打印结果。
//
//	go run ./test -base-url http://localhost:8080 -username admin -password admin123
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// APITestClient 管理接口测试客户端
type APITestClient struct {
	BaseURL     string
	HTTPClient  *http.Client
	AccessToken string
	Username    string
	Password    string
}

// NewAPITestClient 创建测试客户端
func NewAPITestClient(baseURL, username, password string) *APITestClient {
	return &APITestClient{
		BaseURL:  baseURL,
		Username: username,
		Password: password,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// getJSON 带令牌GET并解析JSON
func (c *APITestClient) getJSON(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if c.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("状态码 %d: %s", resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, out)
}

// TestHealthCheck 测试健康检查
func (c *APITestClient) TestHealthCheck() error {
	fmt.Println("🏥 测试健康检查...")

	var response map[string]interface{}
	if err := c.getJSON("/health", &response); err != nil {
		return err
	}

	fmt.Printf("   状态: %v (%v)\n", response["status"], response["message"])
	return nil
}

// TestLogin 测试操作员登录
func (c *APITestClient) TestLogin() error {
	fmt.Printf("🔑 测试登录 (%s)...\n", c.Username)

	payload, _ := json.Marshal(map[string]string{
		"username": c.Username,
		"password": c.Password,
	})

	resp, err := c.HTTPClient.Post(c.BaseURL+"/api/v1/auth/login", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("登录被拒 %d: %s", resp.StatusCode, string(body))
	}

	var auth struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		Operator    struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"operator"`
	}
	if err := json.Unmarshal(body, &auth); err != nil {
		return fmt.Errorf("解析响应失败: %v", err)
	}

	c.AccessToken = auth.AccessToken
	fmt.Printf("   操作员: %s (%s), 令牌有效期 %ds\n", auth.Operator.Username, auth.Operator.Role, auth.ExpiresIn)
	return nil
}

// TestGetStatus 测试终端状态
func (c *APITestClient) TestGetStatus() error {
	fmt.Println("📟 测试终端状态...")

	var status struct {
		State struct {
			Power          bool   `json:"power"`
			Scanning       bool   `json:"scanning"`
			PaymentSuccess bool   `json:"payment_success"`
			AlarmKind      string `json:"alarm_kind"`
			AlarmBanner    string `json:"alarm_banner"`
		} `json:"state"`
		OnlineOperators int `json:"online_operators"`
	}
	if err := c.getJSON("/api/v1/status", &status); err != nil {
		return err
	}

	fmt.Printf("   电源: %v | 扫码中: %v | 在线操作员: %d\n",
		status.State.Power, status.State.Scanning, status.OnlineOperators)
	if status.State.AlarmBanner != "" {
		fmt.Printf("   ⚠️  告警: %s\n", status.State.AlarmBanner)
	}
	return nil
}

// TestGetStats 测试经营统计
func (c *APITestClient) TestGetStats() error {
	fmt.Println("📊 测试经营统计...")

	var stats struct {
		TotalPaid       int64 `json:"total_paid"`
		TotalDeclined   int64 `json:"total_declined"`
		RevenueCents24h int64 `json:"revenue_cents_24h"`
		Pickups24h      int64 `json:"pickups_24h"`
		ActiveAlarms    int   `json:"active_alarms"`
	}
	if err := c.getJSON("/api/v1/status/stats", &stats); err != nil {
		return err
	}

	fmt.Printf("   已支付 %d | 被拒 %d | 24h营收 %d分 | 24h取货 %d | 活动告警 %d\n",
		stats.TotalPaid, stats.TotalDeclined, stats.RevenueCents24h, stats.Pickups24h, stats.ActiveAlarms)
	return nil
}

// TestListOrders 测试订单列表
func (c *APITestClient) TestListOrders() error {
	fmt.Println("🧾 测试订单列表...")

	var page struct {
		Total  int64 `json:"total"`
		Orders []struct {
			OrderNo    string `json:"order_no"`
			Status     string `json:"status"`
			TotalCents int64  `json:"total_cents"`
		} `json:"orders"`
	}
	if err := c.getJSON("/api/v1/orders?page=1&page_size=5", &page); err != nil {
		return err
	}

	fmt.Printf("   共 %d 笔，最近 %d 笔:\n", page.Total, len(page.Orders))
	for _, o := range page.Orders {
		fmt.Printf("   - %s [%s] %d分\n", o.OrderNo, o.Status, o.TotalCents)
	}
	return nil
}

// TestListActiveAlarms 测试活动告警
func (c *APITestClient) TestListActiveAlarms() error {
	fmt.Println("🚨 测试活动告警...")

	var result struct {
		Count  int `json:"count"`
		Alarms []struct {
			Kind   string `json:"kind"`
			Banner string `json:"banner"`
		} `json:"alarms"`
	}
	if err := c.getJSON("/api/v1/alarms/active", &result); err != nil {
		return err
	}

	fmt.Printf("   活动告警 %d 条\n", result.Count)
	for _, a := range result.Alarms {
		fmt.Printf("   - [%s] %s\n", a.Kind, a.Banner)
	}
	return nil
}

// TestListPickups 测试取货记录
func (c *APITestClient) TestListPickups() error {
	fmt.Println("📦 测试取货记录...")

	var page struct {
		Total int64 `json:"total"`
	}
	if err := c.getJSON("/api/v1/pickups?page=1&page_size=5", &page); err != nil {
		return err
	}

	fmt.Printf("   共 %d 条取货记录\n", page.Total)
	return nil
}

// TestWebSocket 订阅事件流，Ctrl+C退出
func (c *APITestClient) TestWebSocket() error {
	fmt.Println("🔌 测试WebSocket事件流...")

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	wsURL := fmt.Sprintf("%s://%s/ws?token=%s", scheme, u.Host, c.AccessToken)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("WebSocket连接失败: %v", err)
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg struct {
				Type string          `json:"type"`
				Data json.RawMessage `json:"data"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}

			switch msg.Type {
			case "connected":
				fmt.Println("📨 连接确认")
			case "status":
				fmt.Printf("📨 状态快照: %s\n", string(msg.Data))
			case "item_scanned", "payment", "pickup", "power", "alarm":
				fmt.Printf("📨 事件 [%s]: %s\n", msg.Type, string(msg.Data))
			case "pong":
				fmt.Println("📨 心跳响应")
			default:
				fmt.Printf("📨 消息 [%s]: %s\n", msg.Type, string(msg.Data))
			}
		}
	}()

	// 请求一次状态快照再发心跳
	conn.WriteJSON(map[string]string{"type": "get_status"})
	time.Sleep(500 * time.Millisecond)
	conn.WriteJSON(map[string]string{"type": "ping"})

	fmt.Println("   正在监听事件，去终端上扫一件商品试试 (Ctrl+C退出)")

	select {
	case <-done:
		fmt.Println("WebSocket连接关闭")
	case <-interrupt:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}

	return nil
}

// RunAllTests 运行所有测试
func (c *APITestClient) RunAllTests() {
	fmt.Println("🚀 开始管理接口冒烟测试...")
	fmt.Printf("🎯 目标服务器: %s\n", c.BaseURL)
	fmt.Println(strings.Repeat("=", 60))

	tests := []struct {
		name string
		fn   func() error
	}{
		{"健康检查", c.TestHealthCheck},
		{"操作员登录", c.TestLogin},
		{"终端状态", c.TestGetStatus},
		{"经营统计", c.TestGetStats},
		{"订单列表", c.TestListOrders},
		{"活动告警", c.TestListActiveAlarms},
		{"取货记录", c.TestListPickups},
	}

	successCount := 0
	for _, test := range tests {
		if err := test.fn(); err != nil {
			fmt.Printf("❌ %s失败: %v\n", test.name, err)
		} else {
			fmt.Printf("✅ %s成功\n", test.name)
			successCount++
		}
		time.Sleep(200 * time.Millisecond)
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("📊 测试结果: %d/%d 通过\n", successCount, len(tests))

	if successCount == len(tests) {
		if err := c.TestWebSocket(); err != nil {
			fmt.Printf("❌ WebSocket测试失败: %v\n", err)
		}
	} else {
		fmt.Printf("⚠️  有 %d 个测试失败，请检查服务器状态\n", len(tests)-successCount)
	}
}

func main() {
	var (
		baseURL  = flag.String("base-url", "http://localhost:8080", "管理接口地址")
		username = flag.String("username", "admin", "操作员用户名")
		password = flag.String("password", "admin123", "操作员密码")
	)
	flag.Parse()

	fmt.Println("🛒 自助收银终端 管理接口测试客户端")
	fmt.Println("================================")

	client := NewAPITestClient(*baseURL, *username, *password)
	client.RunAllTests()
}
