package scanner

import (
	"image"
	"image/color"
	"os"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/checkout-kiosk/internal/config"
)

func newTestPipeline(t *testing.T, debugDir string) *Pipeline {
	t.Helper()
	return NewPipeline(&config.ScannerConfig{
		DebugDir:      debugDir,
		CLAHEClip:     2.0,
		CLAHETiles:    8,
		PickupUpscale: 2,
	})
}

func encodeCode128(t *testing.T, content string) image.Image {
	t.Helper()
	writer := oned.NewCode128Writer()
	matrix, err := writer.Encode(content, gozxing.BarcodeFormat_CODE_128, 400, 80, nil)
	require.NoError(t, err)
	return matrix
}

func encodeEAN13(t *testing.T, content string) image.Image {
	t.Helper()
	writer := oned.NewEAN13Writer()
	matrix, err := writer.Encode(content, gozxing.BarcodeFormat_EAN_13, 400, 80, nil)
	require.NoError(t, err)
	return matrix
}

func encodeQR(t *testing.T, content string) image.Image {
	t.Helper()
	writer := qrcode.NewQRCodeWriter()
	matrix, err := writer.Encode(content, gozxing.BarcodeFormat_QR_CODE, 232, 232, nil)
	require.NoError(t, err)
	return matrix
}

func TestDecodeBarcodeCode128(t *testing.T) {
	p := newTestPipeline(t, "")
	frame := encodeCode128(t, "1234567890")

	result, found := p.DecodeBarcode(frame)
	require.True(t, found)
	assert.Equal(t, "1234567890", result.Payload)
	assert.Equal(t, "CODE_128", result.Format)
	assert.Equal(t, 0, result.Rotation)
}

func TestDecodeBarcodeEAN13(t *testing.T) {
	p := newTestPipeline(t, "")
	frame := encodeEAN13(t, "5901234123457")

	result, found := p.DecodeBarcode(frame)
	require.True(t, found)
	assert.Equal(t, "5901234123457", result.Payload)
	assert.Equal(t, "EAN_13", result.Format)
}

func TestDecodeBarcodeRotated(t *testing.T) {
	// 竖放的条码要靠旋转尝试才能命中
	p := newTestPipeline(t, "")
	frame := imaging.Rotate270(encodeCode128(t, "6677889900"))

	result, found := p.DecodeBarcode(frame)
	require.True(t, found)
	assert.Equal(t, "6677889900", result.Payload)
	assert.NotEqual(t, 0, result.Rotation)
}

func TestDecodePickupQR(t *testing.T) {
	p := newTestPipeline(t, "")
	frame := encodeQR(t, "ORD-20250515120000-0001")

	result, found := p.DecodePickup(frame)
	require.True(t, found)
	assert.Equal(t, "ORD-20250515120000-0001", result.Payload)
	assert.Equal(t, "QR_CODE", result.Format)
}

func TestDecodeBarcodeMiss(t *testing.T) {
	// 空白帧没有条码，属于正常未命中
	p := newTestPipeline(t, "")
	frame := imaging.New(320, 240, color.White)

	result, found := p.DecodeBarcode(frame)
	assert.False(t, found)
	assert.Nil(t, result)
}

func TestDecodePickupMiss(t *testing.T) {
	p := newTestPipeline(t, "")
	frame := imaging.New(320, 240, color.Gray{Y: 200})

	result, found := p.DecodePickup(frame)
	assert.False(t, found)
	assert.Nil(t, result)
}

func TestDecodeIdempotent(t *testing.T) {
	// 同一帧重复解码结果一致，管线不改写输入
	p := newTestPipeline(t, "")
	frame := encodeCode128(t, "1111222233")

	first, foundFirst := p.DecodeBarcode(frame)
	second, foundSecond := p.DecodeBarcode(frame)
	require.True(t, foundFirst)
	require.True(t, foundSecond)
	assert.Equal(t, first.Payload, second.Payload)
	assert.Equal(t, first.Rotation, second.Rotation)
}

func TestDebugArtifacts(t *testing.T) {
	dir := t.TempDir()
	p := newTestPipeline(t, dir)

	_, found := p.DecodePickup(encodeQR(t, "ORD-20250515120000-0002"))
	require.True(t, found)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var enhanced, raw int
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "enhanced_") && strings.HasSuffix(name, ".png") {
			enhanced++
		}
		if strings.HasPrefix(name, "qrcode_") && strings.HasSuffix(name, ".jpg") {
			raw++
		}
	}
	assert.GreaterOrEqual(t, enhanced, 1)
	assert.GreaterOrEqual(t, raw, 1)
}

func TestDebugDirDisabledSkipsArtifacts(t *testing.T) {
	p := newTestPipeline(t, "")
	_, found := p.DecodeBarcode(encodeCode128(t, "4444555566"))
	assert.True(t, found)
}

func TestPipelineDefaults(t *testing.T) {
	// 零值配置回落到内置参数
	p := NewPipeline(&config.ScannerConfig{})
	assert.Equal(t, 2.0, p.clip)
	assert.Equal(t, 8, p.tiles)
	assert.Equal(t, 2, p.upscale)
	assert.Equal(t, "", p.debugDir)
}

func TestRotateClockwise(t *testing.T) {
	// 两像素图验证旋转方向：顺时针90度后左像素移到上方
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{A: 255})

	out := rotateClockwise(src, 90)
	bounds := out.Bounds()
	require.Equal(t, 1, bounds.Dx())
	require.Equal(t, 2, bounds.Dy())

	top := color.GrayModel.Convert(out.At(bounds.Min.X, bounds.Min.Y)).(color.Gray)
	bottom := color.GrayModel.Convert(out.At(bounds.Min.X, bounds.Min.Y+1)).(color.Gray)
	assert.Equal(t, uint8(255), top.Y)
	assert.Equal(t, uint8(0), bottom.Y)

	assert.Equal(t, src.Bounds(), rotateClockwise(src, 0).Bounds())
	assert.Equal(t, src.Bounds(), rotateClockwise(src, 180).Bounds())
	require.Equal(t, 2, rotateClockwise(src, 270).Bounds().Dy())
}
