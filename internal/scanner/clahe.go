package scanner

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// toGray 将任意帧转为8位灰度图
func toGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray
}

// applyCLAHE 对灰度图做限制对比度自适应直方图均衡。
// clip为裁剪系数（相对于均匀直方图的倍数），tiles为每个方向的分块数。
func applyCLAHE(src *image.Gray, clip float64, tiles int) *image.Gray {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return src
	}
	if tiles < 1 {
		tiles = 1
	}
	if tiles > w {
		tiles = w
	}
	if tiles > h {
		tiles = h
	}

	tileW := (w + tiles - 1) / tiles
	tileH := (h + tiles - 1) / tiles
	nx := (w + tileW - 1) / tileW
	ny := (h + tileH - 1) / tileH

	// 每个分块的映射表
	luts := make([][256]uint8, nx*ny)
	for ty := 0; ty < ny; ty++ {
		for tx := 0; tx < nx; tx++ {
			x0 := tx * tileW
			y0 := ty * tileH
			x1 := x0 + tileW
			y1 := y0 + tileH
			if x1 > w {
				x1 = w
			}
			if y1 > h {
				y1 = h
			}
			luts[ty*nx+tx] = tileLUT(src, bounds, x0, y0, x1, y1, clip)
		}
	}

	// 分块间双线性插值
	dst := image.NewGray(bounds)
	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := int(math.Floor(fy))
		wy := fy - float64(ty0)
		ty1 := ty0 + 1
		if ty0 < 0 {
			ty0 = 0
		}
		if ty1 > ny-1 {
			ty1 = ny - 1
		}

		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := int(math.Floor(fx))
			wx := fx - float64(tx0)
			tx1 := tx0 + 1
			if tx0 < 0 {
				tx0 = 0
			}
			if tx1 > nx-1 {
				tx1 = nx - 1
			}

			v := src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y
			tl := float64(luts[ty0*nx+tx0][v])
			tr := float64(luts[ty0*nx+tx1][v])
			bl := float64(luts[ty1*nx+tx0][v])
			br := float64(luts[ty1*nx+tx1][v])

			top := tl + (tr-tl)*wx
			bottom := bl + (br-bl)*wx
			val := top + (bottom-top)*wy
			if val < 0 {
				val = 0
			}
			if val > 255 {
				val = 255
			}
			dst.SetGray(bounds.Min.X+x, bounds.Min.Y+y, color.Gray{Y: uint8(val + 0.5)})
		}
	}
	return dst
}

// tileLUT 计算单个分块的裁剪均衡映射表
func tileLUT(src *image.Gray, bounds image.Rectangle, x0, y0, x1, y1 int, clip float64) [256]uint8 {
	var hist [256]int
	area := (x1 - x0) * (y1 - y0)
	if area == 0 {
		var identity [256]uint8
		for i := range identity {
			identity[i] = uint8(i)
		}
		return identity
	}

	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y]++
		}
	}

	// 裁剪直方图，超出部分均匀回填，余数逐格补齐以保持总量不变
	limit := int(clip * float64(area) / 256.0)
	if limit < 1 {
		limit = 1
	}
	excess := 0
	for i := range hist {
		if hist[i] > limit {
			excess += hist[i] - limit
			hist[i] = limit
		}
	}
	bonus := excess / 256
	residual := excess % 256
	if bonus > 0 {
		for i := range hist {
			hist[i] += bonus
		}
	}
	if residual > 0 {
		step := 256 / residual
		if step < 1 {
			step = 1
		}
		for i := 0; i < 256 && residual > 0; i += step {
			hist[i]++
			residual--
		}
	}

	// 由累积分布生成映射表
	var lut [256]uint8
	cdf := 0
	scale := 255.0 / float64(area)
	for i := 0; i < 256; i++ {
		cdf += hist[i]
		v := math.Round(float64(cdf) * scale)
		if v > 255 {
			v = 255
		}
		lut[i] = uint8(v)
	}
	return lut
}
