package export

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ByLCY/folio/layout"
	"github.com/ByLCY/folio/renderer"
	"github.com/ByLCY/folio/scene"
)

// Format 为导出格式。
type Format int

const (
	FormatPDF Format = iota
	FormatJPEG
)

// 导出文件使用固定名称。
const (
	PDFName  = "document.pdf"
	JPEGName = "document.jpg"
)

func (f Format) String() string {
	if f == FormatJPEG {
		return "jpeg"
	}
	return "pdf"
}

// FileName returns the fixed output name for the format.
func (f Format) FileName() string {
	if f == FormatJPEG {
		return JPEGName
	}
	return PDFName
}

// ParseFormat accepts pdf, jpeg and jpg.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pdf":
		return FormatPDF, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	}
	return FormatPDF, fmt.Errorf("不支持的导出格式：%s", s)
}

// ErrInvalidQuality is returned for a JPEG quality outside [0,1].
var ErrInvalidQuality = errors.New("JPEG 质量必须在 [0,1] 范围内")

// Target 是被导出的编辑会话。
// BeginCapture 清除选中并进入捕获状态，返回当前渲染树；之后直到 EndCapture 之前
// 渲染树只由导出流程访问。EndCapture 在每条退出路径上都会被调用一次。
type Target interface {
	BeginCapture() (*scene.Tree, error)
	EndCapture()
	// DocumentTitle 返回第一个标题元素的文本，用作 PDF 元信息。
	DocumentTitle() string
}

// Sink 保存导出结果（相当于浏览器的下载）。
type Sink interface {
	Save(name string, data []byte) error
}

// Options 为导出参数。
type Options struct {
	Scale       float64
	Paper       layout.PaperSize
	Orientation layout.Orientation
	JPEGQuality float64
	Meta        renderer.Meta // Title 为空时使用 DocumentTitle
}

// DefaultOptions returns A4 portrait at scale 2 with JPEG quality 0.92.
func DefaultOptions() Options {
	return Options{
		Scale:       renderer.DefaultScale,
		Paper:       layout.A4,
		Orientation: layout.Portrait,
		JPEGQuality: 0.92,
		Meta:        renderer.Meta{Creator: "folio"},
	}
}

// Output 为一次导出的结果。
type Output struct {
	Format Format
	Name   string
	Data   []byte
	Width  int // 位图像素
	Height int
}

// Pipeline 串联冻结、栅格化、编码与保存。
type Pipeline struct {
	Renderer   renderer.Renderer
	Encoder    renderer.Encoder
	Typesetter scene.Typesetter
	Sink       Sink
	Options    Options
}

// Export 使用 Options.JPEGQuality 导出。
func (p *Pipeline) Export(ctx context.Context, target Target, format Format) (*Output, error) {
	return p.run(ctx, target, format, p.Options.JPEGQuality)
}

// ExportJPEG exports a JPEG with an explicit quality.
func (p *Pipeline) ExportJPEG(ctx context.Context, target Target, quality float64) (*Output, error) {
	return p.run(ctx, target, FormatJPEG, quality)
}

func (p *Pipeline) run(ctx context.Context, target Target, format Format, quality float64) (*Output, error) {
	if p.Renderer == nil || p.Encoder == nil {
		return nil, fmt.Errorf("导出流程缺少渲染器或编码器")
	}
	if format == FormatJPEG && (math.IsNaN(quality) || quality < 0 || quality > 1) {
		return nil, fmt.Errorf("%w: %g", ErrInvalidQuality, quality)
	}

	tree, err := target.BeginCapture()
	if err != nil {
		return nil, err
	}
	defer target.EndCapture()

	snap, err := tree.Freeze(p.Typesetter)
	if err != nil {
		return nil, fmt.Errorf("冻结文本失败: %w", err)
	}
	// 先于 EndCapture 执行
	defer snap.Restore()

	scale := p.Options.Scale
	if scale <= 0 {
		scale = renderer.DefaultScale
	}
	bmp, err := p.Renderer.Rasterize(ctx, tree, scale)
	if err != nil {
		return nil, fmt.Errorf("栅格化失败: %w", err)
	}

	var data []byte
	switch format {
	case FormatJPEG:
		data, err = p.Encoder.EncodeJPEG(bmp, quality)
	default:
		meta := p.Options.Meta
		if meta.Title == "" {
			meta.Title = target.DocumentTitle()
		}
		paper := p.Options.Paper
		if paper.Width <= 0 || paper.Height <= 0 {
			paper = layout.A4
		}
		data, err = p.Encoder.EncodePDF(bmp, renderer.PageFormat{
			Paper:       paper,
			Orientation: p.Options.Orientation,
			Meta:        meta,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("编码 %s 失败: %w", format, err)
	}

	out := &Output{
		Format: format,
		Name:   format.FileName(),
		Data:   data,
		Width:  bmp.Bounds().Dx(),
		Height: bmp.Bounds().Dy(),
	}
	if p.Sink != nil {
		if err := p.Sink.Save(out.Name, data); err != nil {
			return nil, fmt.Errorf("保存 %s 失败: %w", out.Name, err)
		}
	}
	return out, nil
}
