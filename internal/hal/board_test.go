package hal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSerialPort 模拟外设板串口，自动按命令应答
type fakeSerialPort struct {
	mu         sync.Mutex
	readBuffer bytes.Buffer
	isOpen     bool

	// 命令到应答的映射
	responses map[byte]func(*Frame) *Frame

	// 板侧主动上报的事件
	events chan *Frame

	// 测试辅助
	writtenFrames []*Frame
}

// newFakeSerialPort 创建模拟串口
func newFakeSerialPort() *fakeSerialPort {
	p := &fakeSerialPort{
		isOpen:    true,
		responses: make(map[byte]func(*Frame) *Frame),
		events:    make(chan *Frame, 10),
	}
	p.setupDefaultResponses()
	return p
}

// setupDefaultResponses 默认对所有控制命令返回ACK
func (p *fakeSerialPort) setupDefaultResponses() {
	ack := func(f *Frame) *Frame {
		return p.ackResponse(f, StatusSuccess, nil)
	}
	for _, cmd := range []byte{
		CmdDisplayShow, CmdDisplayClear,
		CmdBuzzerBeep, CmdBuzzerOff,
		CmdLEDFlash, CmdLEDOff,
		CmdMotorRun, CmdMotorStop,
		CmdHeartbeat,
	} {
		p.responses[cmd] = ack
	}
}

// ackResponse 构造ACK应答帧
func (p *fakeSerialPort) ackResponse(orig *Frame, status byte, payload []byte) *Frame {
	data := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint16(data[0:2], orig.Sequence)
	data[2] = orig.Command
	data[3] = status
	copy(data[4:], payload)
	return NewFrame(CmdACK, p.boardSeq(), data)
}

// nackResponse 构造NACK应答帧
func (p *fakeSerialPort) nackResponse(orig *Frame, errorCode byte) *Frame {
	data := []byte{byte(orig.Sequence >> 8), byte(orig.Sequence & 0xFF), orig.Command, errorCode}
	return NewFrame(CmdNACK, p.boardSeq(), data)
}

// boardSeq 板侧序列号（偶数）
func (p *fakeSerialPort) boardSeq() uint16 {
	seq := uint16(time.Now().UnixNano() % 65536)
	if seq%2 == 1 {
		seq++
	}
	return seq
}

// pushEvent 注入板侧事件帧
func (p *fakeSerialPort) pushEvent(frame *Frame) {
	p.events <- frame
}

func (p *fakeSerialPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isOpen {
		return 0, fmt.Errorf("port closed")
	}

	frame := &Frame{}
	if err := frame.FromBytes(data); err == nil {
		p.writtenFrames = append(p.writtenFrames, frame)
		if respFunc, ok := p.responses[frame.Command]; ok {
			go func() {
				time.Sleep(2 * time.Millisecond)
				resp := respFunc(frame)
				if resp != nil {
					p.mu.Lock()
					p.readBuffer.Write(resp.ToBytes())
					p.mu.Unlock()
				}
			}()
		}
	}

	return len(data), nil
}

func (p *fakeSerialPort) Read(data []byte) (int, error) {
	p.mu.Lock()
	if !p.isOpen {
		p.mu.Unlock()
		return 0, fmt.Errorf("EOF")
	}

	select {
	case event := <-p.events:
		eventData := event.ToBytes()
		n := copy(data, eventData)
		p.mu.Unlock()
		return n, nil
	default:
		if p.readBuffer.Len() > 0 {
			n, err := p.readBuffer.Read(data)
			p.mu.Unlock()
			return n, err
		}
	}
	p.mu.Unlock()

	// 模拟读超时
	time.Sleep(2 * time.Millisecond)
	return 0, nil
}

func (p *fakeSerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isOpen = false
	return nil
}

func (p *fakeSerialPort) Flush() error { return nil }

// lastWritten 返回最近写入的帧
func (p *fakeSerialPort) lastWritten() *Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.writtenFrames) == 0 {
		return nil
	}
	return p.writtenFrames[len(p.writtenFrames)-1]
}

// writtenCount 统计某命令的写入次数
func (p *fakeSerialPort) writtenCount(cmd byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, f := range p.writtenFrames {
		if f.Command == cmd {
			count++
		}
	}
	return count
}

// newTestBoard 创建接好模拟串口的外设板
func newTestBoard(t *testing.T) (*SerialBoard, *fakeSerialPort) {
	t.Helper()
	config := DefaultSerialConfig()
	config.AckTimeout = 200 * time.Millisecond
	config.RetryTimes = 2
	config.RetryInterval = 10 * time.Millisecond
	config.HeartbeatInterval = 0

	board := NewSerialBoard(config)
	port := newFakeSerialPort()
	require.NoError(t, board.ConnectWithPort(port))
	t.Cleanup(func() { board.Disconnect() })
	return board, port
}

func TestSerialBoard_DisplayShow(t *testing.T) {
	board, port := newTestBoard(t)

	err := board.DisplayShow("Ready to scan", "1:Barcode 9:Done")
	require.NoError(t, err)

	frame := port.lastWritten()
	require.NotNil(t, frame)
	assert.Equal(t, CmdDisplayShow, frame.Command)
	require.Len(t, frame.Data, 32)
	assert.Equal(t, "Ready to scan   ", string(frame.Data[:16]))
	assert.Equal(t, "1:Barcode 9:Done", string(frame.Data[16:]))
}

func TestSerialBoard_BuzzerBeep(t *testing.T) {
	board, port := newTestBoard(t)

	err := board.BuzzerBeep(200*time.Millisecond, 100*time.Millisecond, 5)
	require.NoError(t, err)

	frame := port.lastWritten()
	require.NotNil(t, frame)
	assert.Equal(t, CmdBuzzerBeep, frame.Command)
	require.Len(t, frame.Data, 5)
	assert.Equal(t, uint16(200), binary.BigEndian.Uint16(frame.Data[0:2]))
	assert.Equal(t, uint16(100), binary.BigEndian.Uint16(frame.Data[2:4]))
	assert.Equal(t, byte(5), frame.Data[4])
}

func TestSerialBoard_MotorSpeedClamp(t *testing.T) {
	board, port := newTestBoard(t)

	require.NoError(t, board.MotorRun(150))
	frame := port.lastWritten()
	require.NotNil(t, frame)
	assert.Equal(t, byte(100), frame.Data[0])

	require.NoError(t, board.MotorRun(-5))
	frame = port.lastWritten()
	assert.Equal(t, byte(0), frame.Data[0])
}

func TestSerialBoard_ReadClimate(t *testing.T) {
	board, port := newTestBoard(t)

	// 47.5度、60.2%
	port.responses[CmdClimateQuery] = func(f *Frame) *Frame {
		payload := make([]byte, 4)
		binary.BigEndian.PutUint16(payload[0:2], uint16(int16(475)))
		binary.BigEndian.PutUint16(payload[2:4], 602)
		return port.ackResponse(f, StatusSuccess, payload)
	}

	temperature, humidity, err := board.ReadClimate()
	require.NoError(t, err)
	assert.InDelta(t, 47.5, temperature, 0.01)
	assert.InDelta(t, 60.2, humidity, 0.01)
}

func TestSerialBoard_ReadClimateNegative(t *testing.T) {
	board, port := newTestBoard(t)

	// 零下5.5度
	port.responses[CmdClimateQuery] = func(f *Frame) *Frame {
		payload := make([]byte, 4)
		negTemp := int16(-55)
		binary.BigEndian.PutUint16(payload[0:2], uint16(negTemp))
		binary.BigEndian.PutUint16(payload[2:4], 300)
		return port.ackResponse(f, StatusSuccess, payload)
	}

	temperature, _, err := board.ReadClimate()
	require.NoError(t, err)
	assert.InDelta(t, -5.5, temperature, 0.01)
}

func TestSerialBoard_ReadDistanceCM(t *testing.T) {
	board, port := newTestBoard(t)

	// 355mm = 35.5cm
	port.responses[CmdDistanceQuery] = func(f *Frame) *Frame {
		payload := make([]byte, 2)
		binary.BigEndian.PutUint16(payload, 355)
		return port.ackResponse(f, StatusSuccess, payload)
	}

	distance, err := board.ReadDistanceCM()
	require.NoError(t, err)
	assert.InDelta(t, 35.5, distance, 0.01)
}

func TestSerialBoard_ReadCardUID(t *testing.T) {
	board, port := newTestBoard(t)

	// 无卡时返回空串
	port.responses[CmdCardQuery] = func(f *Frame) *Frame {
		return port.ackResponse(f, StatusNoData, nil)
	}
	uid, err := board.ReadCardUID(50 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "", uid)

	// 有卡时返回十六进制UID
	port.responses[CmdCardQuery] = func(f *Frame) *Frame {
		return port.ackResponse(f, StatusSuccess, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	}
	uid, err = board.ReadCardUID(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "DEADBEEF", uid)
}

func TestSerialBoard_NACKRetry(t *testing.T) {
	board, port := newTestBoard(t)

	// 每次都NACK，应按重试次数退出
	port.responses[CmdMotorRun] = func(f *Frame) *Frame {
		return port.nackResponse(f, ErrorBusy)
	}

	err := board.MotorRun(50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NACK")
	assert.Equal(t, 2, port.writtenCount(CmdMotorRun))
}

func TestSerialBoard_KeyEventDispatch(t *testing.T) {
	board, port := newTestBoard(t)

	received := make(chan KeyEvent, 1)
	board.SetKeyCallback(func(event KeyEvent) {
		received <- event
	})

	port.pushEvent(NewFrame(EventKeyPressed, port.boardSeq(), []byte{'5', KeyActionDown}))

	select {
	case event := <-received:
		assert.Equal(t, byte('5'), event.Key)
		assert.Equal(t, KeyActionDown, event.Action)
	case <-time.After(time.Second):
		t.Fatal("key event not dispatched")
	}
}

func TestSerialBoard_NotConnected(t *testing.T) {
	board := NewSerialBoard(DefaultSerialConfig())

	err := board.DisplayShow("a", "b")
	assert.Error(t, err)
	assert.False(t, board.IsConnected())
}

func TestMockBoard_Display(t *testing.T) {
	board := NewMockBoard()
	require.NoError(t, board.Connect())

	require.NoError(t, board.DisplayShow("Supermarket", "Checkout System"))
	line1, line2 := board.DisplayLines()
	assert.Equal(t, "Supermarket", line1)
	assert.Equal(t, "Checkout System", line2)

	// 超长截断
	require.NoError(t, board.DisplayShow("ABCDEFGHIJKLMNOPQRST", ""))
	line1, _ = board.DisplayLines()
	assert.Equal(t, "ABCDEFGHIJKLMNOP", line1)

	require.NoError(t, board.DisplayClear())
	assert.True(t, board.DisplayCleared())
}

func TestMockBoard_Press(t *testing.T) {
	board := NewMockBoard()
	require.NoError(t, board.Connect())

	var mu sync.Mutex
	var keys []byte
	board.SetKeyCallback(func(event KeyEvent) {
		mu.Lock()
		keys = append(keys, event.Key)
		mu.Unlock()
	})

	board.Press('1', '2', '#')

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []byte{'1', '2', '#'}, keys)
}

func TestMockBoard_Sensors(t *testing.T) {
	board := NewMockBoard()
	require.NoError(t, board.Connect())

	board.SetClimate(47.0, 65.0)
	temperature, humidity, err := board.ReadClimate()
	require.NoError(t, err)
	assert.Equal(t, 47.0, temperature)
	assert.Equal(t, 65.0, humidity)

	board.SetDistanceCM(35.0)
	distance, err := board.ReadDistanceCM()
	require.NoError(t, err)
	assert.Equal(t, 35.0, distance)

	board.SetCardUID("CAFEBABE")
	uid, err := board.ReadCardUID(time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "CAFEBABE", uid)
}

func TestMockBoard_BuzzerAndMotor(t *testing.T) {
	board := NewMockBoard()
	require.NoError(t, board.Connect())

	require.NoError(t, board.BuzzerBeep(200*time.Millisecond, 100*time.Millisecond, 5))
	assert.True(t, board.IsBuzzing())
	on, off, times := board.LastBeep()
	assert.Equal(t, 200*time.Millisecond, on)
	assert.Equal(t, 100*time.Millisecond, off)
	assert.Equal(t, 5, times)

	require.NoError(t, board.BuzzerOff())
	assert.False(t, board.IsBuzzing())

	require.NoError(t, board.MotorRun(50))
	assert.True(t, board.IsMotorRunning())
	speed, runs := board.MotorState()
	assert.Equal(t, 50, speed)
	assert.Equal(t, 1, runs)

	require.NoError(t, board.MotorStop())
	assert.False(t, board.IsMotorRunning())
}
