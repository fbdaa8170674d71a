package hal

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"
	"github.com/wfunc/checkout-kiosk/internal/logger"
	"go.uber.org/zap"
)

// SerialPort 串口接口（用于测试）
type SerialPort interface {
	io.ReadWriteCloser
	Flush() error
}

// SerialConfig 外设板串口配置
type SerialConfig struct {
	Port              string        // 串口端口
	BaudRate          int           // 波特率
	DataBits          int           // 数据位
	StopBits          int           // 停止位
	Parity            string        // 校验位：none/odd/even
	ReadTimeout       time.Duration // 读超时
	AckTimeout        time.Duration // 等待ACK超时
	RetryTimes        int           // 命令重试次数
	RetryInterval     time.Duration // 重试间隔
	HeartbeatInterval time.Duration // 心跳间隔
}

// DefaultSerialConfig 默认配置
func DefaultSerialConfig() *SerialConfig {
	return &SerialConfig{
		Port:              "/dev/ttyS3",
		BaudRate:          115200,
		DataBits:          8,
		StopBits:          1,
		Parity:            "none",
		ReadTimeout:       100 * time.Millisecond,
		AckTimeout:        3 * time.Second,
		RetryTimes:        3,
		RetryInterval:     100 * time.Millisecond,
		HeartbeatInterval: 30 * time.Second,
	}
}

// pendingCommand 待确认的命令
type pendingCommand struct {
	Cmd      byte
	Seq      uint16
	Time     time.Time
	Response chan *commandResult
}

// commandResult 命令应答
type commandResult struct {
	Payload []byte
	Err     error
}

// cardPollInterval 刷卡器轮询间隔
const cardPollInterval = 200 * time.Millisecond

// SerialBoard 串口外设板
type SerialBoard struct {
	config    *SerialConfig
	port      SerialPort
	sequence  uint32 // 序列号（原子操作）
	mu        sync.RWMutex
	connected bool
	logger    *zap.Logger

	// 通道
	stopCh chan struct{}

	// 待确认命令
	pendingCmds map[uint16]*pendingCommand
	cmdMu       sync.RWMutex

	// 按键回调
	keyMu       sync.RWMutex
	keyCallback KeyCallback
}

// NewSerialBoard 创建串口外设板
func NewSerialBoard(config *SerialConfig) *SerialBoard {
	if config == nil {
		config = DefaultSerialConfig()
	}
	if config.AckTimeout <= 0 {
		config.AckTimeout = 3 * time.Second
	}
	if config.RetryTimes <= 0 {
		config.RetryTimes = 1
	}

	return &SerialBoard{
		config:      config,
		logger:      logger.GetModuleLogger("hal"),
		stopCh:      make(chan struct{}),
		pendingCmds: make(map[uint16]*pendingCommand),
	}
}

// Connect 连接串口
func (b *SerialBoard) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.connected {
		return nil
	}

	cfg := &serial.Config{
		Name:        b.config.Port,
		Baud:        b.config.BaudRate,
		Size:        byte(b.config.DataBits),
		StopBits:    stopBits(b.config.StopBits),
		Parity:      parity(b.config.Parity),
		ReadTimeout: b.config.ReadTimeout,
	}

	port, err := serial.OpenPort(cfg)
	if err != nil {
		b.logger.Error("打开串口失败",
			zap.String("port", b.config.Port),
			zap.Error(err))
		return fmt.Errorf("open serial port failed: %w", err)
	}

	b.port = port
	b.connected = true

	// 启动后台任务
	go b.readLoop()
	go b.heartbeatLoop()

	b.logger.Info("外设板已连接",
		zap.String("port", b.config.Port),
		zap.Int("baudrate", b.config.BaudRate))

	return nil
}

// ConnectWithPort 使用已打开的端口连接（用于测试）
func (b *SerialBoard) ConnectWithPort(port SerialPort) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.connected {
		return fmt.Errorf("already connected")
	}

	b.port = port
	b.connected = true

	go b.readLoop()

	return nil
}

// Disconnect 断开连接
func (b *SerialBoard) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return nil
	}

	close(b.stopCh)

	if b.port != nil {
		if err := b.port.Close(); err != nil {
			b.logger.Error("关闭串口失败", zap.Error(err))
			return err
		}
		b.port = nil
	}

	b.connected = false
	b.logger.Info("外设板已断开")

	return nil
}

// IsConnected 检查连接状态
func (b *SerialBoard) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}

// SetKeyCallback 注册按键回调
func (b *SerialBoard) SetKeyCallback(cb KeyCallback) {
	b.keyMu.Lock()
	b.keyCallback = cb
	b.keyMu.Unlock()
}

// DisplayShow 显示两行文本
func (b *SerialBoard) DisplayShow(line1, line2 string) error {
	_, err := b.sendCommand(CmdDisplayShow, encodeDisplayLines(line1, line2))
	return err
}

// DisplayClear 清屏
func (b *SerialBoard) DisplayClear() error {
	_, err := b.sendCommand(CmdDisplayClear, nil)
	return err
}

// BuzzerBeep 蜂鸣
func (b *SerialBoard) BuzzerBeep(on, off time.Duration, times int) error {
	if times < 0 {
		times = 0
	}
	if times > 255 {
		times = 255
	}
	data := make([]byte, 5)
	binary.BigEndian.PutUint16(data[0:2], clampMillis(on.Milliseconds()))
	binary.BigEndian.PutUint16(data[2:4], clampMillis(off.Milliseconds()))
	data[4] = byte(times)
	_, err := b.sendCommand(CmdBuzzerBeep, data)
	return err
}

// BuzzerOff 蜂鸣器静音
func (b *SerialBoard) BuzzerOff() error {
	_, err := b.sendCommand(CmdBuzzerOff, nil)
	return err
}

// LEDFlash LED闪亮指定时长
func (b *SerialBoard) LEDFlash(d time.Duration) error {
	data := make([]byte, 2)
	binary.BigEndian.PutUint16(data, clampMillis(d.Milliseconds()))
	_, err := b.sendCommand(CmdLEDFlash, data)
	return err
}

// LEDOff LED熄灭
func (b *SerialBoard) LEDOff() error {
	_, err := b.sendCommand(CmdLEDOff, nil)
	return err
}

// MotorRun 启动电机
func (b *SerialBoard) MotorRun(speed int) error {
	if speed < 0 {
		speed = 0
	}
	if speed > 100 {
		speed = 100
	}
	_, err := b.sendCommand(CmdMotorRun, []byte{byte(speed)})
	return err
}

// MotorStop 停止电机
func (b *SerialBoard) MotorStop() error {
	_, err := b.sendCommand(CmdMotorStop, nil)
	return err
}

// ReadClimate 读取温湿度
func (b *SerialBoard) ReadClimate() (float64, float64, error) {
	payload, err := b.sendCommand(CmdClimateQuery, nil)
	if err != nil {
		return 0, 0, err
	}
	if len(payload) < 4 {
		return 0, 0, fmt.Errorf("climate payload too short: %d", len(payload))
	}
	temperature := float64(int16(binary.BigEndian.Uint16(payload[0:2]))) / 10.0
	humidity := float64(binary.BigEndian.Uint16(payload[2:4])) / 10.0
	return temperature, humidity, nil
}

// ReadDistanceCM 读取测距（厘米）
func (b *SerialBoard) ReadDistanceCM() (float64, error) {
	payload, err := b.sendCommand(CmdDistanceQuery, nil)
	if err != nil {
		return 0, err
	}
	if len(payload) < 2 {
		return 0, fmt.Errorf("distance payload too short: %d", len(payload))
	}
	mm := binary.BigEndian.Uint16(payload[0:2])
	return float64(mm) / 10.0, nil
}

// ReadCardUID 在timeout内轮询刷卡器
func (b *SerialBoard) ReadCardUID(timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		payload, err := b.sendCommand(CmdCardQuery, nil)
		if err != nil {
			return "", err
		}
		if len(payload) > 0 {
			return fmt.Sprintf("%X", payload), nil
		}
		if time.Now().Add(cardPollInterval).After(deadline) {
			return "", nil
		}
		select {
		case <-b.stopCh:
			return "", fmt.Errorf("not connected")
		case <-time.After(cardPollInterval):
		}
	}
}

// SendHeartbeat 发送心跳包
func (b *SerialBoard) SendHeartbeat() error {
	data := make([]byte, 4)
	binary.BigEndian.PutUint32(data, uint32(time.Now().Unix()))
	_, err := b.sendCommand(CmdHeartbeat, data)
	return err
}

// getNextSeq 获取下一个序列号（奇数）
func (b *SerialBoard) getNextSeq() uint16 {
	seq := atomic.AddUint32(&b.sequence, 2)
	// 确保是奇数
	if seq%2 == 0 {
		seq++
	}
	return uint16(seq)
}

// sendCommand 发送命令并等待ACK，按配置重试
func (b *SerialBoard) sendCommand(cmd byte, data []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < b.config.RetryTimes; attempt++ {
		if attempt > 0 {
			select {
			case <-b.stopCh:
				return nil, fmt.Errorf("not connected")
			case <-time.After(b.config.RetryInterval):
			}
		}

		payload, err := b.sendOnce(cmd, data)
		if err == nil {
			return payload, nil
		}
		lastErr = err
		b.logger.Warn("命令发送失败，准备重试",
			zap.Uint8("cmd", cmd),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, lastErr
}

// sendOnce 发送命令一次并等待应答
func (b *SerialBoard) sendOnce(cmd byte, data []byte) ([]byte, error) {
	if !b.IsConnected() {
		return nil, fmt.Errorf("not connected")
	}

	seq := b.getNextSeq()
	frame := NewFrame(cmd, seq, data)

	respCh := make(chan *commandResult, 1)
	pending := &pendingCommand{
		Cmd:      cmd,
		Seq:      seq,
		Time:     time.Now(),
		Response: respCh,
	}

	b.cmdMu.Lock()
	b.pendingCmds[seq] = pending
	b.cmdMu.Unlock()

	defer func() {
		b.cmdMu.Lock()
		delete(b.pendingCmds, seq)
		b.cmdMu.Unlock()
	}()

	if err := b.writeFrame(frame); err != nil {
		return nil, fmt.Errorf("write frame failed: %w", err)
	}

	select {
	case result := <-respCh:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Payload, nil
	case <-time.After(b.config.AckTimeout):
		return nil, fmt.Errorf("wait ACK timeout for cmd 0x%02X seq %d", cmd, seq)
	case <-b.stopCh:
		return nil, fmt.Errorf("not connected")
	}
}

// writeFrame 写入数据帧
func (b *SerialBoard) writeFrame(frame *Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.port == nil {
		return fmt.Errorf("port not open")
	}

	data := frame.ToBytes()
	n, err := b.port.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: %d/%d", n, len(data))
	}

	b.logger.Debug("帧已发送",
		zap.Uint8("cmd", frame.Command),
		zap.Uint16("seq", frame.Sequence),
		zap.Int("len", len(data)))

	return nil
}

// readLoop 读取循环
func (b *SerialBoard) readLoop() {
	buf := make([]byte, 4096)
	frameBuf := make([]byte, 0, 4096)

	for {
		select {
		case <-b.stopCh:
			return
		default:
		}

		b.mu.RLock()
		port := b.port
		b.mu.RUnlock()
		if port == nil {
			return
		}

		n, err := port.Read(buf)
		if err != nil {
			if err.Error() != "EOF" {
				b.logger.Error("串口读取失败", zap.Error(err))
			}
			continue
		}

		if n > 0 {
			frameBuf = append(frameBuf, buf[:n]...)

			// 尝试解析帧
			for len(frameBuf) >= int(MinFrameLen) {
				// 查找帧头
				idx := -1
				for i := 0; i < len(frameBuf); i++ {
					if frameBuf[i] == FrameHeader {
						idx = i
						break
					}
				}

				if idx < 0 {
					frameBuf = frameBuf[:0]
					break
				}
				if idx > 0 {
					frameBuf = frameBuf[idx:]
				}
				if len(frameBuf) < 3 {
					break
				}

				frameLen := binary.BigEndian.Uint16(frameBuf[1:3])
				if frameLen < MinFrameLen {
					// 长度非法，跳过这个帧头
					frameBuf = frameBuf[1:]
					continue
				}
				if len(frameBuf) < int(frameLen) {
					// 数据不完整，等待更多数据
					break
				}

				frame := &Frame{}
				if err := frame.FromBytes(frameBuf[:frameLen]); err != nil {
					b.logger.Error("帧解析失败", zap.Error(err))
					frameBuf = frameBuf[1:]
					continue
				}

				b.handleFrame(frame)
				frameBuf = frameBuf[frameLen:]
			}
		}
	}
}

// handleFrame 处理接收到的帧
func (b *SerialBoard) handleFrame(frame *Frame) {
	b.logger.Debug("帧已接收",
		zap.Uint8("cmd", frame.Command),
		zap.Uint16("seq", frame.Sequence))

	switch frame.Command {
	case CmdACK:
		b.handleACK(frame)
	case CmdNACK:
		b.handleNACK(frame)
	case EventKeyPressed:
		b.handleKeyEvent(frame)
	default:
		b.logger.Warn("未知命令", zap.Uint8("cmd", frame.Command))
	}
}

// handleACK 处理ACK应答，负载随结果带回
func (b *SerialBoard) handleACK(frame *Frame) {
	if len(frame.Data) < 4 {
		b.logger.Error("ACK数据长度非法", zap.Int("len", len(frame.Data)))
		return
	}

	origSeq := binary.BigEndian.Uint16(frame.Data[0:2])
	status := frame.Data[3]

	var payload []byte
	if status == StatusSuccess && len(frame.Data) > 4 {
		payload = make([]byte, len(frame.Data)-4)
		copy(payload, frame.Data[4:])
	}

	b.cmdMu.Lock()
	pending, ok := b.pendingCmds[origSeq]
	b.cmdMu.Unlock()

	if ok && pending.Response != nil {
		pending.Response <- &commandResult{Payload: payload}
	}
}

// handleNACK 处理NACK应答
func (b *SerialBoard) handleNACK(frame *Frame) {
	if len(frame.Data) < 4 {
		b.logger.Error("NACK数据长度非法", zap.Int("len", len(frame.Data)))
		return
	}

	origSeq := binary.BigEndian.Uint16(frame.Data[0:2])
	origCmd := frame.Data[2]
	errorCode := frame.Data[3]

	b.cmdMu.Lock()
	pending, ok := b.pendingCmds[origSeq]
	b.cmdMu.Unlock()

	if ok && pending.Response != nil {
		pending.Response <- &commandResult{
			Err: fmt.Errorf("NACK: cmd=0x%02X, error=0x%02X", origCmd, errorCode),
		}
	}
}

// handleKeyEvent 处理按键事件上报
func (b *SerialBoard) handleKeyEvent(frame *Frame) {
	if len(frame.Data) < 2 {
		b.logger.Error("按键事件数据长度非法", zap.Int("len", len(frame.Data)))
		return
	}

	event := KeyEvent{
		Key:    frame.Data[0],
		Action: frame.Data[1],
		Time:   time.Now(),
	}

	b.keyMu.RLock()
	cb := b.keyCallback
	b.keyMu.RUnlock()

	if cb != nil {
		cb(event)
	}
}

// heartbeatLoop 心跳循环
func (b *SerialBoard) heartbeatLoop() {
	if b.config.HeartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(b.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			if err := b.SendHeartbeat(); err != nil {
				b.logger.Error("心跳失败", zap.Error(err))
			}
		}
	}
}

// stopBits 转换停止位配置
func stopBits(n int) serial.StopBits {
	switch n {
	case 2:
		return serial.Stop2
	default:
		return serial.Stop1
	}
}

// parity 转换校验位配置
func parity(p string) serial.Parity {
	switch p {
	case "odd":
		return serial.ParityOdd
	case "even":
		return serial.ParityEven
	default:
		return serial.ParityNone
	}
}
