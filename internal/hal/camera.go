package hal

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
	"github.com/wfunc/checkout-kiosk/internal/logger"
	"go.uber.org/zap"
)

// SpoolCamera 目录帧源摄像头。
// 采集进程把帧文件写入spool目录，这里通过fsnotify跟踪最新一帧。
type SpoolCamera struct {
	dir          string
	frameTimeout time.Duration

	mu      sync.RWMutex
	latest  string
	watcher *fsnotify.Watcher
	notify  chan struct{}
	stopCh  chan struct{}
	logger  *zap.Logger
}

// NewSpoolCamera 创建目录帧源摄像头
func NewSpoolCamera(dir string, frameTimeout time.Duration) *SpoolCamera {
	return &SpoolCamera{
		dir:          dir,
		frameTimeout: frameTimeout,
		notify:       make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
		logger:       logger.GetModuleLogger("hal"),
	}
}

// Start 建立目录监听
func (c *SpoolCamera) Start() error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create spool dir failed: %w", err)
	}

	// 目录里可能已有历史帧
	if path := c.newestFrame(); path != "" {
		c.mu.Lock()
		c.latest = path
		c.mu.Unlock()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher failed: %w", err)
	}
	if err := watcher.Add(c.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch spool dir failed: %w", err)
	}
	c.watcher = watcher

	go c.watchLoop()

	c.logger.Info("摄像头帧目录监听已启动", zap.String("dir", c.dir))
	return nil
}

// Close 停止监听
func (c *SpoolCamera) Close() error {
	close(c.stopCh)
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

// Capture 返回最新一帧并缩放到指定尺寸
func (c *SpoolCamera) Capture(width, height int) (image.Image, error) {
	path := c.latestFrame()
	if path == "" && c.frameTimeout > 0 {
		// 等待第一帧到达
		select {
		case <-c.notify:
			path = c.latestFrame()
		case <-time.After(c.frameTimeout):
		case <-c.stopCh:
		}
	}
	if path == "" {
		return nil, fmt.Errorf("no camera frame available")
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame %s failed: %w", filepath.Base(path), err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != width || bounds.Dy() != height {
		img = imaging.Resize(img, width, height, imaging.Linear)
	}
	return img, nil
}

// latestFrame 返回最新帧路径
func (c *SpoolCamera) latestFrame() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// watchLoop 跟踪目录事件
func (c *SpoolCamera) watchLoop() {
	for {
		select {
		case <-c.stopCh:
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isFrameFile(event.Name) {
				continue
			}
			c.mu.Lock()
			c.latest = event.Name
			c.mu.Unlock()
			select {
			case c.notify <- struct{}{}:
			default:
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Error("帧目录监听出错", zap.Error(err))
		}
	}
}

// newestFrame 扫描目录里修改时间最新的帧文件
func (c *SpoolCamera) newestFrame() string {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return ""
	}

	var newest string
	var newestTime time.Time
	for _, entry := range entries {
		if entry.IsDir() || !isFrameFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = filepath.Join(c.dir, entry.Name())
			newestTime = info.ModTime()
		}
	}
	return newest
}

// isFrameFile 判断是否为帧文件
func isFrameFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	default:
		return false
	}
}

// StillCamera 固定帧摄像头（用于测试和无摄像头调试）
type StillCamera struct {
	mu  sync.RWMutex
	img image.Image
	err error
}

// NewStillCamera 创建固定帧摄像头，frame为nil时使用空白帧
func NewStillCamera(frame image.Image) *StillCamera {
	if frame == nil {
		frame = imaging.New(640, 480, color.NRGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF})
	}
	return &StillCamera{img: frame}
}

// Capture 返回固定帧并缩放到指定尺寸
func (c *StillCamera) Capture(width, height int) (image.Image, error) {
	c.mu.RLock()
	img, err := c.img, c.err
	c.mu.RUnlock()

	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	if bounds.Dx() != width || bounds.Dy() != height {
		return imaging.Resize(img, width, height, imaging.Linear), nil
	}
	return img, nil
}

// SetFrame 替换固定帧
func (c *StillCamera) SetFrame(frame image.Image) {
	c.mu.Lock()
	c.img = frame
	c.mu.Unlock()
}

// SetError 注入采集错误
func (c *StillCamera) SetError(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}
