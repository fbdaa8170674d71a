// 外设板验收工具：逐项驱动外设并打印结果，硬件装机后的第一道检查。
//
//	go run ./test/boardcheck -port /dev/ttyS3
//	go run ./test/boardcheck -mock        # 用模拟板演练一遍
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/wfunc/checkout-kiosk/internal/hal"
)

func main() {
	var (
		portName = flag.String("port", "/dev/ttyS3", "串口设备")
		baudRate = flag.Int("baud", 115200, "波特率")
		useMock  = flag.Bool("mock", false, "使用模拟外设板")
	)
	flag.Parse()

	var board hal.Board
	if *useMock {
		fmt.Println("=== 外设板验收（模拟板） ===")
		board = hal.NewMockBoard()
	} else {
		fmt.Printf("=== 外设板验收: %s @ %d ===\n", *portName, *baudRate)
		cfg := hal.DefaultSerialConfig()
		cfg.Port = *portName
		cfg.BaudRate = *baudRate
		board = hal.NewSerialBoard(cfg)
	}

	if err := board.Connect(); err != nil {
		fmt.Printf("连接失败: %v\n", err)
		os.Exit(1)
	}
	defer board.Disconnect()

	passed, total := 0, 0
	check := func(name string, fn func() error) {
		total++
		fmt.Printf("%-14s ... ", name)
		if err := fn(); err != nil {
			fmt.Printf("失败: %v\n", err)
			return
		}
		fmt.Println("通过")
		passed++
	}

	check("显示", func() error {
		return board.DisplayShow("Board Check", "Hello")
	})
	check("蜂鸣", func() error {
		return board.BuzzerBeep(100*time.Millisecond, 100*time.Millisecond, 2)
	})
	check("指示灯", func() error {
		return board.LEDFlash(500 * time.Millisecond)
	})
	check("电机", func() error {
		if err := board.MotorRun(30); err != nil {
			return err
		}
		time.Sleep(time.Second)
		return board.MotorStop()
	})
	check("温湿度", func() error {
		temp, hum, err := board.ReadClimate()
		if err != nil {
			return err
		}
		fmt.Printf("(%.1f°C %.1f%%) ", temp, hum)
		return nil
	})
	check("测距", func() error {
		cm, err := board.ReadDistanceCM()
		if err != nil {
			return err
		}
		fmt.Printf("(%.1fcm) ", cm)
		return nil
	})
	check("刷卡器", func() error {
		uid, err := board.ReadCardUID(3 * time.Second)
		if err != nil {
			return err
		}
		if uid == "" {
			fmt.Print("(3秒内无卡) ")
		} else {
			fmt.Printf("(UID %s) ", uid)
		}
		return nil
	})
	check("清屏", board.DisplayClear)

	fmt.Println("----------------------------------------")
	fmt.Printf("结果: %d/%d 通过\n", passed, total)
	if passed != total {
		os.Exit(1)
	}
}
