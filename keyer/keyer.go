package keyer

import (
	"context"
	"image"

	"golang.org/x/image/draw"
)

// Remover 背景移除器
type Remover interface {
	Remove(ctx context.Context, img image.Image) (image.Image, error)
}

// Keyer 按阈值把接近纯黑 / 纯白的背景像素抠成全透明
type Keyer struct {
	Mode      Mode
	Tolerance int
}

// New tolerance < 0 时使用模式默认阈值
func New(mode Mode, tolerance int) *Keyer {
	if tolerance < 0 {
		tolerance = mode.DefaultTolerance()
	}
	return &Keyer{Mode: mode, Tolerance: tolerance}
}

var _ Remover = (*Keyer)(nil)

// Remove 实现 Remover，逐行检查 ctx 是否已取消
func (k *Keyer) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	dst := toNRGBA(img)
	if err := keyRows(ctx, dst, k.Mode, k.Tolerance); err != nil {
		return nil, err
	}
	return dst, nil
}

// Key 返回一张新图：命中背景的像素变成 (255,255,255,0)，其余像素原样保留
// 输入图不会被修改
func Key(img image.Image, mode Mode, tolerance int) *image.NRGBA {
	dst := toNRGBA(img)
	_ = keyRows(context.Background(), dst, mode, tolerance)
	return dst
}

func keyRows(ctx context.Context, img *image.NRGBA, mode Mode, tolerance int) error {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	for y := 0; y < h; y++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for i := 0; i < len(row); i += 4 {
			if mode.Match(row[i], row[i+1], row[i+2], tolerance) {
				row[i], row[i+1], row[i+2], row[i+3] = 255, 255, 255, 0
			}
		}
	}
	return nil
}

// toNRGBA 总是返回一份拷贝，坐标原点移到 (0,0)
// 使用非预乘的 NRGBA，未命中像素的 RGB 和 alpha 都能原样保留
func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if src, ok := img.(*image.NRGBA); ok {
		n := b.Dx() * 4
		for y := 0; y < b.Dy(); y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+n], src.Pix[off:off+n])
		}
		return dst
	}
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
