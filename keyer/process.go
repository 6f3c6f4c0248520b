package keyer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/chaos-io/bgkey/util"
)

// Options 一次抠图处理的参数
type Options struct {
	Mode      Mode
	Tolerance int  // < 0 使用模式默认阈值
	MaxSize   int  // > 0 时先把最长边缩放到 MaxSize 以内
	Trim      bool // 裁掉四周全透明的边

	Compression png.CompressionLevel
}

// ParseCompression default / none / speed / best
func ParseCompression(s string) (png.CompressionLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return png.DefaultCompression, nil
	case "none":
		return png.NoCompression, nil
	case "speed":
		return png.BestSpeed, nil
	case "best":
		return png.BestCompression, nil
	}
	return 0, fmt.Errorf("unknown png compression %q", s)
}

// DefaultOptions 与原始黑底脚本一致：黑底，阈值 30
func DefaultOptions() Options {
	return Options{Mode: NearBlack, Tolerance: -1}
}

func (o Options) Keyer() *Keyer {
	return New(o.Mode, o.Tolerance)
}

// Decode 解码任意已注册格式的图片
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", &Error{Kind: KindDecode, Op: "decode", Err: err}
	}
	return img, format, nil
}

// Apply 缩放 -> 抠图 -> 裁边
func (o Options) Apply(ctx context.Context, img image.Image) (*image.NRGBA, error) {
	img = resizeWithinMax(img, o.MaxSize)

	keyed, err := o.Keyer().Remove(ctx, img)
	if err != nil {
		return nil, err
	}
	out := keyed.(*image.NRGBA)

	if o.Trim {
		out = trimTransparent(out)
	}
	return out, nil
}

// Encode 编码为 PNG
func (o Options) Encode(img image.Image) ([]byte, error) {
	enc := &png.Encoder{CompressionLevel: o.Compression}
	buf := &bytes.Buffer{}
	if err := enc.Encode(buf, img); err != nil {
		return nil, &Error{Kind: KindEncode, Op: "encode", Err: err}
	}
	return buf.Bytes(), nil
}

// Process 从 r 读图，抠图后以 PNG 写入 w，返回写入字节数
// 编码成功之前不会往 w 写任何数据
func Process(ctx context.Context, r io.Reader, w io.Writer, opts Options) (int64, error) {
	img, _, err := Decode(r)
	if err != nil {
		return 0, err
	}

	data, err := process(ctx, img, opts)
	if err != nil {
		return 0, err
	}

	n, err := w.Write(data)
	if err != nil {
		return int64(n), &Error{Kind: KindIO, Op: "write", Err: err}
	}
	return int64(n), nil
}

// ProcessFile 读取本地文件或 http(s) URL，结果写到 outputPath
// 失败时不会创建输出文件
func ProcessFile(ctx context.Context, inputPath, outputPath string, opts Options) (int64, error) {
	src, err := util.ReadSource(ctx, inputPath)
	if err != nil {
		return 0, &Error{Kind: KindIO, Op: "read", Path: inputPath, Err: err}
	}

	img, format, err := Decode(bytes.NewReader(src))
	if err != nil {
		var ke *Error
		if errors.As(err, &ke) {
			ke.Path = inputPath
		}
		return 0, err
	}
	slog.Debug("decoded image", "path", inputPath, "format", format, "bounds", img.Bounds())

	data, err := process(ctx, img, opts)
	if err != nil {
		return 0, err
	}

	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return 0, &Error{Kind: KindIO, Op: "mkdir", Path: dir, Err: err}
		}
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return 0, &Error{Kind: KindIO, Op: "write", Path: outputPath, Err: err}
	}

	slog.Debug("saved image", "path", outputPath, "bytes", len(data))
	return int64(len(data)), nil
}

func process(ctx context.Context, img image.Image, opts Options) ([]byte, error) {
	out, err := opts.Apply(ctx, img)
	if err != nil {
		return nil, err
	}
	return opts.Encode(out)
}
