package renderer

import (
	"context"
	"image"

	"github.com/ByLCY/folio/layout"
	"github.com/ByLCY/folio/scene"
)

// DefaultScale 为导出时的像素密度倍数。
const DefaultScale = 2.0

// Renderer 将渲染树栅格化为位图。隐藏节点不参与绘制。
// scale 为像素密度倍数：输出位图尺寸 = 树尺寸(px) × scale。
type Renderer interface {
	Rasterize(ctx context.Context, tree *scene.Tree, scale float64) (image.Image, error)
}

// Meta 保存 PDF 元信息。
type Meta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Subject  string   `json:"subject"`
	Creator  string   `json:"creator"`
	Keywords []string `json:"keywords"`
}

// PageFormat 描述 PDF 页面：纸张、方向与元信息，尺寸单位 mm。
type PageFormat struct {
	Paper       layout.PaperSize
	Orientation layout.Orientation
	Meta        Meta
}

// Encoder 把位图编码为最终文件字节：PDF 为单页、位图铺满页面；JPEG 的 quality 取值 [0,1]。
type Encoder interface {
	EncodePDF(bmp image.Image, page PageFormat) ([]byte, error)
	EncodeJPEG(bmp image.Image, quality float64) ([]byte, error)
}
