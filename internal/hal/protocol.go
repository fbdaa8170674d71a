package hal

import (
	"encoding/binary"
	"fmt"
)

// 帧定义
const (
	FrameHeader byte   = 0xAA
	FrameTail   byte   = 0x55
	MinFrameLen uint16 = 9 // 最小帧长度：帧头(1) + 长度(2) + 命令(1) + 序列号(2) + CRC(2) + 帧尾(1)
)

// 命令码定义
const (
	// 外设控制指令（控制器→外设板）
	CmdDisplayShow  byte = 0x01 // 显示两行文本
	CmdDisplayClear byte = 0x02 // 清屏
	CmdBuzzerBeep   byte = 0x03 // 蜂鸣
	CmdBuzzerOff    byte = 0x04 // 蜂鸣器静音
	CmdLEDFlash     byte = 0x05 // LED闪亮
	CmdLEDOff       byte = 0x06 // LED熄灭
	CmdMotorRun     byte = 0x07 // 电机启动
	CmdMotorStop    byte = 0x08 // 电机停止

	// 传感器查询（应答数据携带在ACK负载中）
	CmdClimateQuery  byte = 0x21 // 温湿度查询
	CmdDistanceQuery byte = 0x22 // 超声测距查询
	CmdCardQuery     byte = 0x23 // 刷卡器查询

	// 外设事件上报（外设板→控制器）
	EventKeyPressed byte = 0x11 // 键盘按键事件

	// 系统指令
	CmdHeartbeat byte = 0x31 // 心跳包
	CmdACK       byte = 0x80 // ACK确认
	CmdNACK      byte = 0x81 // NACK拒绝
)

// 按键动作
const (
	KeyActionDown byte = 0x01 // 按下
	KeyActionUp   byte = 0x02 // 释放
)

// ACK状态码
const (
	StatusSuccess byte = 0x00 // 成功接收，开始执行
	StatusNoData  byte = 0x01 // 成功接收，暂无数据（如无卡）
)

// NACK错误码
const (
	ErrorUnsupported  byte = 0x01 // 命令不支持
	ErrorInvalidParam byte = 0x02 // 参数错误
	ErrorBusy         byte = 0x03 // 设备忙
	ErrorHardware     byte = 0x04 // 硬件故障
	ErrorChecksum     byte = 0x05 // 校验失败
)

// DisplayColumns 字符屏每行列数
const DisplayColumns = 16

// Frame 数据帧结构
type Frame struct {
	Header   byte   // 帧头
	Length   uint16 // 长度
	Command  byte   // 命令码
	Sequence uint16 // 序列号
	Data     []byte // 数据
	CRC16    uint16 // CRC校验
	Tail     byte   // 帧尾
}

// NewFrame 创建新的数据帧
func NewFrame(cmd byte, seq uint16, data []byte) *Frame {
	f := &Frame{
		Header:   FrameHeader,
		Command:  cmd,
		Sequence: seq,
		Data:     data,
		Tail:     FrameTail,
	}

	// 计算长度（整个帧的长度）
	f.Length = uint16(9 + len(data))

	// 计算CRC
	f.CRC16 = f.CalculateCRC()

	return f
}

// ToBytes 将帧转换为字节数组
func (f *Frame) ToBytes() []byte {
	buf := make([]byte, f.Length)
	idx := 0

	// 帧头
	buf[idx] = f.Header
	idx++

	// 长度（大端序）
	binary.BigEndian.PutUint16(buf[idx:], f.Length)
	idx += 2

	// 命令
	buf[idx] = f.Command
	idx++

	// 序列号（大端序）
	binary.BigEndian.PutUint16(buf[idx:], f.Sequence)
	idx += 2

	// 数据
	if len(f.Data) > 0 {
		copy(buf[idx:], f.Data)
		idx += len(f.Data)
	}

	// CRC16（大端序）
	binary.BigEndian.PutUint16(buf[idx:], f.CRC16)
	idx += 2

	// 帧尾
	buf[idx] = f.Tail

	return buf
}

// FromBytes 从字节数组解析帧
func (f *Frame) FromBytes(data []byte) error {
	if len(data) < int(MinFrameLen) {
		return fmt.Errorf("frame too short: %d < %d", len(data), MinFrameLen)
	}

	// 检查帧头
	if data[0] != FrameHeader {
		return fmt.Errorf("invalid frame header: 0x%02X", data[0])
	}

	// 解析长度
	f.Header = data[0]
	f.Length = binary.BigEndian.Uint16(data[1:3])

	if f.Length < MinFrameLen {
		return fmt.Errorf("invalid frame length: %d", f.Length)
	}

	// 检查数据长度
	if len(data) < int(f.Length) {
		return fmt.Errorf("incomplete frame: %d < %d", len(data), f.Length)
	}

	// 检查帧尾
	if data[f.Length-1] != FrameTail {
		return fmt.Errorf("invalid frame tail: 0x%02X", data[f.Length-1])
	}

	// 解析字段
	f.Command = data[3]
	f.Sequence = binary.BigEndian.Uint16(data[4:6])

	// 解析数据
	dataLen := f.Length - 9
	if dataLen > 0 {
		f.Data = make([]byte, dataLen)
		copy(f.Data, data[6:6+dataLen])
	}

	// 解析CRC
	crcIdx := f.Length - 3
	f.CRC16 = binary.BigEndian.Uint16(data[crcIdx : crcIdx+2])
	f.Tail = data[f.Length-1]

	// 验证CRC
	calcCRC := f.CalculateCRC()
	if calcCRC != f.CRC16 {
		return fmt.Errorf("CRC mismatch: calc=0x%04X, recv=0x%04X", calcCRC, f.CRC16)
	}

	return nil
}

// CalculateCRC 计算CRC16校验值
func (f *Frame) CalculateCRC() uint16 {
	// 计算从命令码到数据的CRC
	data := make([]byte, 0, 3+len(f.Data))
	data = append(data, f.Command)
	data = append(data, byte(f.Sequence>>8), byte(f.Sequence&0xFF))
	if len(f.Data) > 0 {
		data = append(data, f.Data...)
	}
	return CRC16XMODEM(data)
}

// CRC16XMODEM CRC16-XMODEM算法
func CRC16XMODEM(data []byte) uint16 {
	crc := uint16(0x0000)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// encodeDisplayLines 将两行文本编码为定长显示数据
func encodeDisplayLines(line1, line2 string) []byte {
	buf := make([]byte, DisplayColumns*2)
	for i := range buf {
		buf[i] = ' '
	}
	copy(buf[:DisplayColumns], truncateLine(line1))
	copy(buf[DisplayColumns:], truncateLine(line2))
	return buf
}

// truncateLine 按字符屏列数截断一行
func truncateLine(s string) []byte {
	if len(s) > DisplayColumns {
		return []byte(s[:DisplayColumns])
	}
	return []byte(s)
}

// clampMillis 将时长毫秒数压入uint16范围
func clampMillis(ms int64) uint16 {
	if ms < 0 {
		return 0
	}
	if ms > 0xFFFF {
		return 0xFFFF
	}
	return uint16(ms)
}
