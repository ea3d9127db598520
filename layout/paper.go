package layout

import (
	"fmt"
	"strings"
)

// PaperSize 以毫米记录纸张尺寸（纵向）。
type PaperSize struct {
	Name   string  `json:"name"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

var (
	A4     = PaperSize{Name: "A4", Width: 210, Height: 297}
	A5     = PaperSize{Name: "A5", Width: 148, Height: 210}
	Letter = PaperSize{Name: "Letter", Width: 215.9, Height: 279.4}
	Legal  = PaperSize{Name: "Legal", Width: 215.9, Height: 355.6}
)

var paperPresets = map[string]PaperSize{
	"A4":     A4,
	"A5":     A5,
	"LETTER": Letter,
	"LEGAL":  Legal,
}

// LookupPaper 按名称（不区分大小写）查找预设纸张。
func LookupPaper(name string) (PaperSize, error) {
	p, ok := paperPresets[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return PaperSize{}, fmt.Errorf("暂不支持的纸张尺寸：%s", name)
	}
	return p, nil
}

// Orientation 为页面方向。
type Orientation int

const (
	Portrait Orientation = iota
	Landscape
)

func (o Orientation) String() string {
	if o == Landscape {
		return "landscape"
	}
	return "portrait"
}

// ParseOrientation accepts "portrait"/"p" and "landscape"/"l".
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "portrait", "p":
		return Portrait, nil
	case "landscape", "l":
		return Landscape, nil
	}
	return Portrait, fmt.Errorf("未知的页面方向：%s", s)
}

// Oriented returns the paper dimensions in mm for the given orientation.
func (p PaperSize) Oriented(o Orientation) (width, height float64) {
	if o == Landscape {
		return p.Height, p.Width
	}
	return p.Width, p.Height
}

// PageCanvas 是所有元素都被限制在其中的页面绘制区域，尺寸创建后不可变。
type PageCanvas struct {
	width  float64
	height float64
}

// NewPageCanvas creates a canvas with the given pixel dimensions.
func NewPageCanvas(width, height float64) PageCanvas {
	return PageCanvas{width: width, height: height}
}

// CanvasForPaper 按 96dpi 将纸张换算为画布像素尺寸。
func CanvasForPaper(p PaperSize, o Orientation) PageCanvas {
	w, h := p.Oriented(o)
	return NewPageCanvas(w*MmToPx, h*MmToPx)
}

func (c PageCanvas) Width() float64 { return c.width }
func (c PageCanvas) Height() float64 { return c.height }
func (c PageCanvas) Size() Size { return Size{Width: c.width, Height: c.height} }

// Clamp keeps r inside the canvas.
func (c PageCanvas) Clamp(r Rect) Rect { return r.ClampWithin(c.Size()) }
