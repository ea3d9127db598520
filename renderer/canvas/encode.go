package canvasrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"strings"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
	xdraw "golang.org/x/image/draw"

	"github.com/ByLCY/folio/layout"
	"github.com/ByLCY/folio/renderer"
)

// 位图与页面宽高比相差超过该比例时先重采样，保证铺满整页。
const aspectTolerance = 0.005

// EncodePDF 生成单页 PDF，位图铺满整页。纸张为空时使用 A4。
func (r *Renderer) EncodePDF(bmp image.Image, page renderer.PageFormat) ([]byte, error) {
	if bmp == nil || bmp.Bounds().Empty() {
		return nil, fmt.Errorf("位图为空")
	}
	paper := page.Paper
	if paper.Width <= 0 || paper.Height <= 0 {
		paper = layout.A4
	}
	w, h := paper.Oriented(page.Orientation)

	img := fitAspect(bmp, w/h)

	var buf bytes.Buffer
	writer := pdf.New(&buf, w, h, nil)
	meta := page.Meta
	writer.SetInfo(meta.Title, meta.Subject, strings.Join(meta.Keywords, ", "), meta.Author, meta.Creator)

	c := canvas.New(w, h)
	ctx := canvas.NewContext(c)
	dpmm := float64(img.Bounds().Dx()) / w
	ctx.DrawImage(0, 0, img, canvas.DPMM(dpmm))
	c.RenderTo(writer)
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJPEG 按 quality ∈ [0,1] 编码 JPEG。
func (r *Renderer) EncodeJPEG(bmp image.Image, quality float64) ([]byte, error) {
	if bmp == nil || bmp.Bounds().Empty() {
		return nil, fmt.Errorf("位图为空")
	}
	if math.IsNaN(quality) || quality < 0 || quality > 1 {
		return nil, fmt.Errorf("JPEG 质量 %g 超出范围 [0,1]", quality)
	}
	q := int(math.Round(quality * 100))
	if q < 1 {
		q = 1
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, bmp, &jpeg.Options{Quality: q}); err != nil {
		return nil, fmt.Errorf("编码 JPEG 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// fitAspect 在宽高比不一致时把位图拉伸到目标比例（保持宽度）。
func fitAspect(bmp image.Image, ratio float64) image.Image {
	b := bmp.Bounds()
	cur := float64(b.Dx()) / float64(b.Dy())
	if math.Abs(cur-ratio)/ratio <= aspectTolerance {
		return bmp
	}
	height := int(math.Max(math.Round(float64(b.Dx())/ratio), 1))
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), bmp, b, xdraw.Src, nil)
	return dst
}
