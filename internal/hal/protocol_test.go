package hal

import (
	"bytes"
	"testing"
)

// TestFrameRoundTrip 测试帧编解码往返
func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		cmd     byte
		seq     uint16
		data    []byte
		wantLen uint16
	}{
		{
			name:    "显示命令",
			cmd:     CmdDisplayShow,
			seq:     0x0001,
			data:    encodeDisplayLines("Ready to scan", "1:Barcode 9:Done"),
			wantLen: 41, // 9 + 32
		},
		{
			name:    "蜂鸣命令",
			cmd:     CmdBuzzerBeep,
			seq:     0x0003,
			data:    []byte{0x00, 0xC8, 0x00, 0x64, 0x05}, // 200ms响 100ms停 5次
			wantLen: 14,
		},
		{
			name:    "最小帧",
			cmd:     CmdDistanceQuery,
			seq:     0x0005,
			data:    nil,
			wantLen: 9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := NewFrame(tt.cmd, tt.seq, tt.data)

			if frame.Length != tt.wantLen {
				t.Errorf("Length = %d, want %d", frame.Length, tt.wantLen)
			}

			buf := frame.ToBytes()
			if buf[0] != FrameHeader {
				t.Errorf("Header = 0x%02X, want 0x%02X", buf[0], FrameHeader)
			}
			if buf[len(buf)-1] != FrameTail {
				t.Errorf("Tail = 0x%02X, want 0x%02X", buf[len(buf)-1], FrameTail)
			}

			parsed := &Frame{}
			if err := parsed.FromBytes(buf); err != nil {
				t.Fatalf("FromBytes failed: %v", err)
			}
			if parsed.Command != tt.cmd {
				t.Errorf("Command = 0x%02X, want 0x%02X", parsed.Command, tt.cmd)
			}
			if parsed.Sequence != tt.seq {
				t.Errorf("Sequence = 0x%04X, want 0x%04X", parsed.Sequence, tt.seq)
			}
			if !bytes.Equal(parsed.Data, tt.data) && len(tt.data) > 0 {
				t.Errorf("Data = % X, want % X", parsed.Data, tt.data)
			}
		})
	}
}

// TestFrameFromBytesErrors 测试非法帧拒收
func TestFrameFromBytesErrors(t *testing.T) {
	valid := NewFrame(CmdMotorRun, 0x0001, []byte{0x32}).ToBytes()

	tests := []struct {
		name string
		data []byte
	}{
		{"帧太短", valid[:5]},
		{"帧头非法", append([]byte{0xBB}, valid[1:]...)},
		{"帧尾非法", append(append([]byte{}, valid[:len(valid)-1]...), 0x66)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := &Frame{}
			if err := frame.FromBytes(tt.data); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}

	t.Run("CRC被篡改", func(t *testing.T) {
		corrupt := append([]byte{}, valid...)
		corrupt[6] ^= 0xFF // 数据位翻转
		frame := &Frame{}
		if err := frame.FromBytes(corrupt); err == nil {
			t.Error("expected CRC error, got nil")
		}
	})
}

// TestCRC16XMODEM 测试CRC16-XMODEM标准校验值
func TestCRC16XMODEM(t *testing.T) {
	crc := CRC16XMODEM([]byte("123456789"))
	if crc != 0x31C3 {
		t.Errorf("CRC = 0x%04X, want 0x31C3", crc)
	}

	if CRC16XMODEM(nil) != 0x0000 {
		t.Errorf("empty CRC should be 0x0000")
	}
}

// TestEncodeDisplayLines 测试显示行编码
func TestEncodeDisplayLines(t *testing.T) {
	data := encodeDisplayLines("Items: 2", "Total: $5.00")
	if len(data) != 32 {
		t.Fatalf("len = %d, want 32", len(data))
	}

	// 第一行补空格到16列
	if string(data[:16]) != "Items: 2        " {
		t.Errorf("line1 = %q", string(data[:16]))
	}
	if string(data[16:]) != "Total: $5.00    " {
		t.Errorf("line2 = %q", string(data[16:]))
	}

	// 超长行截断
	data = encodeDisplayLines("ABCDEFGHIJKLMNOPQRSTUV", "")
	if string(data[:16]) != "ABCDEFGHIJKLMNOP" {
		t.Errorf("truncated line1 = %q", string(data[:16]))
	}
}
