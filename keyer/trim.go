package keyer

import (
	"image"
)

// alphaBBox 找出所有 alpha > 0 像素的外接矩形
func alphaBBox(img *image.NRGBA) (image.Rectangle, bool) {
	w, h := img.Rect.Dx(), img.Rect.Dy()

	minX, minY := w, h
	maxX, maxY := -1, -1

	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			if img.Pix[row+x*4+3] == 0 {
				continue
			}
			minX = min(minX, x)
			minY = min(minY, y)
			maxX = max(maxX, x)
			maxY = max(maxY, y)
		}
	}

	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// trimTransparent 裁掉四周全透明的边，全透明的图原样返回
func trimTransparent(img *image.NRGBA) *image.NRGBA {
	bbox, ok := alphaBBox(img)
	if !ok || bbox == img.Rect {
		return img
	}

	dst := image.NewNRGBA(image.Rect(0, 0, bbox.Dx(), bbox.Dy()))
	n := bbox.Dx() * 4
	for y := 0; y < bbox.Dy(); y++ {
		off := img.PixOffset(bbox.Min.X, bbox.Min.Y+y)
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+n], img.Pix[off:off+n])
	}
	return dst
}
