package imagesource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/ByLCY/folio/document"
)

// ErrNoFile 表示用户取消了选择（或来源已无可用文件）。
var ErrNoFile = errors.New("未选择图片")

// Source 提供图片文件：从相册选择或通过相机拍摄。
type Source interface {
	PickFromGallery(ctx context.Context) (*File, error)
	CaptureFromCamera(ctx context.Context) (*File, error)
}

// File 是一次选择得到的图片文件。
type File struct {
	Name   string
	Data   []byte
	Camera bool // 来自相机
}

// Dimensions 为图片的原始像素尺寸。
type Dimensions struct {
	Width  int
	Height int
}

// Ratio returns width/height, or 0 when unknown.
func (d Dimensions) Ratio() float64 {
	if d.Width <= 0 || d.Height <= 0 {
		return 0
	}
	return float64(d.Width) / float64(d.Height)
}

// ProbeResult 是异步探测的结果。
type ProbeResult struct {
	Dimensions
	Err error
}

// Open reads a file from disk.
func Open(path string, camera bool) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取图片 %s 失败: %w", path, err)
	}
	return &File{Name: filepath.Base(path), Data: data, Camera: camera}, nil
}

// Picture 返回尚未探测尺寸的图片描述，尺寸由 Probe 异步补全。
func (f *File) Picture() *document.Picture {
	return &document.Picture{Name: f.Name, Data: f.Data}
}

// Probe 在后台解码图片头以获得原始尺寸，结果通过只读 channel 投递一次。
// ctx 取消时投递 ctx.Err()。
func (f *File) Probe(ctx context.Context) <-chan ProbeResult {
	out := make(chan ProbeResult, 1)
	go func() {
		defer close(out)
		done := make(chan ProbeResult, 1)
		go func() {
			cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data))
			if err != nil {
				done <- ProbeResult{Err: fmt.Errorf("解析图片 %s 失败: %w", f.Name, err)}
				return
			}
			done <- ProbeResult{Dimensions: Dimensions{Width: cfg.Width, Height: cfg.Height}}
		}()
		select {
		case res := <-done:
			out <- res
		case <-ctx.Done():
			out <- ProbeResult{Err: ctx.Err()}
		}
	}()
	return out
}

// Dir 是基于目录的图片来源：按顺序返回预先排好的相册与相机文件，用尽后返回 ErrNoFile。
type Dir struct {
	Root    string
	Gallery []string
	Camera  []string

	mu    sync.Mutex
	nextG int
	nextC int
}

var _ Source = (*Dir)(nil)

// PickFromGallery returns the next gallery file.
func (d *Dir) PickFromGallery(ctx context.Context) (*File, error) {
	return d.next(ctx, false)
}

// CaptureFromCamera returns the next camera file.
func (d *Dir) CaptureFromCamera(ctx context.Context) (*File, error) {
	return d.next(ctx, true)
}

func (d *Dir) next(ctx context.Context, camera bool) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	var path string
	if camera {
		if d.nextC >= len(d.Camera) {
			d.mu.Unlock()
			return nil, ErrNoFile
		}
		path = d.Camera[d.nextC]
		d.nextC++
	} else {
		if d.nextG >= len(d.Gallery) {
			d.mu.Unlock()
			return nil, ErrNoFile
		}
		path = d.Gallery[d.nextG]
		d.nextG++
	}
	d.mu.Unlock()
	if !filepath.IsAbs(path) && d.Root != "" {
		path = filepath.Join(d.Root, path)
	}
	return Open(path, camera)
}
