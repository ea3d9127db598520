package layout

import "math"

// Point 是相对 PageCanvas 原点（左上角）的偏移，单位 px。
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by d.
func (p Point) Add(d Point) Point { return Point{X: p.X + d.X, Y: p.Y + d.Y} }

// Size 记录宽高，单位 px。
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect 是轴对齐的盒子，X/Y 为左上角。
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Size() Size { return Size{Width: r.Width, Height: r.Height} }
func (r Rect) Right() float64 { return r.X + r.Width }
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Within reports whether r lies entirely inside a box of the given size anchored at the origin.
func (r Rect) Within(bounds Size) bool {
	const eps = 1e-9
	return r.X >= -eps && r.Y >= -eps && r.Right() <= bounds.Width+eps && r.Bottom() <= bounds.Height+eps
}

// ClampWithin 把盒子限制在 bounds 内：超出的尺寸先被截断，再平移位置。
func (r Rect) ClampWithin(bounds Size) Rect {
	r.Width = Clamp(r.Width, 0, bounds.Width)
	r.Height = Clamp(r.Height, 0, bounds.Height)
	r.X = Clamp(r.X, 0, bounds.Width-r.Width)
	r.Y = Clamp(r.Y, 0, bounds.Height-r.Height)
	return r
}

// Inset shrinks r by d on every side; the result never has negative size.
func (r Rect) Inset(d float64) Rect {
	r.X += d
	r.Y += d
	r.Width = math.Max(r.Width-2*d, 0)
	r.Height = math.Max(r.Height-2*d, 0)
	return r
}

// Clamp limits v to [lo, hi]. When hi < lo, lo wins.
func Clamp(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
