// Package scanner 提供商品条码与取货二维码的图像解码管线
package scanner

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	"go.uber.org/zap"

	"github.com/wfunc/checkout-kiosk/internal/config"
	"github.com/wfunc/checkout-kiosk/internal/logger"
)

// 解码尝试的顺时针旋转角度，命中即停止
var rotations = []int{0, 90, 180, 270}

// Result 单次解码命中结果
type Result struct {
	Payload  string // 码内容
	Format   string // 码制名称
	Rotation int    // 命中时的顺时针旋转角度
}

// Pipeline 图像解码管线：灰度化、对比度增强、多角度解码
type Pipeline struct {
	debugDir string
	clip     float64
	tiles    int
	upscale  int
	logger   *zap.Logger
}

// NewPipeline 创建解码管线
func NewPipeline(cfg *config.ScannerConfig) *Pipeline {
	p := &Pipeline{
		debugDir: cfg.DebugDir,
		clip:     cfg.CLAHEClip,
		tiles:    cfg.CLAHETiles,
		upscale:  cfg.PickupUpscale,
		logger:   logger.GetModuleLogger("scanner"),
	}
	if p.clip <= 0 {
		p.clip = 2.0
	}
	if p.tiles <= 0 {
		p.tiles = 8
	}
	if p.upscale < 1 {
		p.upscale = 2
	}
	if p.debugDir != "" {
		if err := os.MkdirAll(p.debugDir, 0755); err != nil {
			p.logger.Warn("创建调试目录失败", zap.String("dir", p.debugDir), zap.Error(err))
			p.debugDir = ""
		}
	}
	return p
}

// DecodeBarcode 在帧中寻找商品条码（EAN-13或Code 128）。
// 未找到条码是正常结果，返回 found=false。
func (p *Pipeline) DecodeBarcode(frame image.Image) (*Result, bool) {
	enhanced := p.enhance(frame)
	p.saveEnhanced(enhanced)

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
		gozxing.DecodeHintType_POSSIBLE_FORMATS: []gozxing.BarcodeFormat{
			gozxing.BarcodeFormat_EAN_13,
			gozxing.BarcodeFormat_CODE_128,
		},
	}
	readers := []gozxing.Reader{
		oned.NewEAN13Reader(),
		oned.NewCode128Reader(),
	}

	result, found := p.decodeRotations(enhanced, readers, hints)
	if found {
		logger.LogScanResult("barcode", result.Payload, true, result.Rotation)
	} else {
		logger.LogScanResult("barcode", "", false, 0)
	}
	return result, found
}

// DecodePickup 在帧中寻找取货二维码。
// 解码前将增强图放大以提高小码的命中率。
func (p *Pipeline) DecodePickup(frame image.Image) (*Result, bool) {
	p.saveRawPickup(frame)

	enhanced := p.enhance(frame)
	p.saveEnhanced(enhanced)

	target := image.Image(enhanced)
	if p.upscale > 1 {
		bounds := enhanced.Bounds()
		target = imaging.Resize(enhanced, bounds.Dx()*p.upscale, bounds.Dy()*p.upscale, imaging.Linear)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	readers := []gozxing.Reader{qrcode.NewQRCodeReader()}

	result, found := p.decodeRotations(target, readers, hints)
	if found {
		logger.LogScanResult("pickup", result.Payload, true, result.Rotation)
	} else {
		logger.LogScanResult("pickup", "", false, 0)
	}
	return result, found
}

// enhance 灰度化并做限制对比度均衡
func (p *Pipeline) enhance(frame image.Image) *image.Gray {
	return applyCLAHE(toGray(frame), p.clip, p.tiles)
}

// decodeRotations 依次尝试各旋转角度，首个命中即返回
func (p *Pipeline) decodeRotations(img image.Image, readers []gozxing.Reader, hints map[gozxing.DecodeHintType]interface{}) (*Result, bool) {
	for _, degrees := range rotations {
		rotated := rotateClockwise(img, degrees)
		bmp, err := gozxing.NewBinaryBitmapFromImage(rotated)
		if err != nil {
			p.logger.Debug("构建解码位图失败", zap.Int("rotation", degrees), zap.Error(err))
			continue
		}
		for _, reader := range readers {
			decoded, err := reader.Decode(bmp, hints)
			if err != nil {
				continue
			}
			return &Result{
				Payload:  decoded.GetText(),
				Format:   decoded.GetBarcodeFormat().String(),
				Rotation: degrees,
			}, true
		}
	}
	return nil, false
}

// rotateClockwise 按顺时针角度旋转图像
func rotateClockwise(img image.Image, degrees int) image.Image {
	switch degrees {
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// saveEnhanced 保存增强后的灰度帧，便于现场调试对焦与光照
func (p *Pipeline) saveEnhanced(img image.Image) {
	if p.debugDir == "" {
		return
	}
	path := filepath.Join(p.debugDir, fmt.Sprintf("enhanced_%d.png", time.Now().Unix()))
	if err := imaging.Save(img, path); err != nil {
		p.logger.Warn("保存增强帧失败", zap.String("path", path), zap.Error(err))
	}
}

// saveRawPickup 保存取货扫码的原始彩色帧
func (p *Pipeline) saveRawPickup(frame image.Image) {
	if p.debugDir == "" {
		return
	}
	path := filepath.Join(p.debugDir, fmt.Sprintf("qrcode_%d.jpg", time.Now().Unix()))
	if err := imaging.Save(frame, path); err != nil {
		p.logger.Warn("保存原始帧失败", zap.String("path", path), zap.Error(err))
	}
}
