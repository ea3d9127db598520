package interact

import (
	"fmt"
	"math"

	"github.com/ByLCY/folio/document"
	"github.com/ByLCY/folio/layout"
)

// State 是手势状态机的当前状态。
type State int

const (
	Idle State = iota
	Dragging
	Resizing
)

func (s State) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	default:
		return "idle"
	}
}

// Origin 描述手势起点：命中的元素、区域以及（缩放时）被抓取的手柄。
type Origin struct {
	Element document.ID
	Region  Region
	Handle  Handle
}

// Policy 配置缩放约束与标题字号随宽度缩放的规则。
type Policy struct {
	MinWidth       float64
	MinHeight      float64
	TitleFontScale float64 // 标题字号 = 盒子宽度 × TitleFontScale
	TitleFontFloor float64
}

// DefaultPolicy 对应 300px 宽的标题使用 32px 字号，最小盒子 50×50。
func DefaultPolicy() Policy {
	return Policy{
		MinWidth:       50,
		MinHeight:      50,
		TitleFontScale: document.DefaultTitleFontSize / 300,
		TitleFontFloor: document.MinFontSize,
	}
}

// TitleFontSize returns the font size for a title box of the given width.
func (p Policy) TitleFontSize(width float64) float64 {
	return math.Max(p.TitleFontFloor, width*p.TitleFontScale)
}

// Controller 把指针手势转换为元素模型的变更。Move 接收的是增量位移，内部累计。
type Controller struct {
	doc    *document.Document
	policy Policy
	gate   func() bool

	state  State
	id     document.ID
	ref    layout.Rect
	handle Handle
	delta  layout.Point
}

// New creates a controller for doc.
func New(doc *document.Document, policy Policy) *Controller {
	return &Controller{doc: doc, policy: policy}
}

// SetGate installs a function consulted before every gesture step; while it
// returns false gestures are ignored.
func (c *Controller) SetGate(fn func() bool) { c.gate = fn }

func (c *Controller) open() bool { return c.gate == nil || c.gate() }

// State returns the current gesture state.
func (c *Controller) State() State { return c.state }

// Active returns the element targeted by the gesture in flight.
func (c *Controller) Active() (document.ID, bool) {
	return c.id, c.state != Idle
}

// Begin 按起点区域分派手势：Body 开始拖动，Handle 开始缩放，其余区域忽略。
// 返回是否开始了手势。
func (c *Controller) Begin(o Origin) bool {
	if c.state != Idle || !c.open() {
		return false
	}
	var next State
	switch o.Region {
	case RegionBody:
		next = Dragging
	case RegionHandle:
		if !o.Handle.Valid() {
			return false
		}
		next = Resizing
	default:
		return false
	}
	el, err := c.doc.Element(o.Element)
	if err != nil {
		return false
	}
	c.state = next
	c.id = el.ID
	c.ref = el.Box
	c.handle = o.Handle
	c.delta = layout.Point{}
	return true
}

// Move applies an incremental pointer delta to the gesture in flight.
func (c *Controller) Move(dx, dy float64) error {
	if c.state == Idle || !c.open() {
		return nil
	}
	c.delta = c.delta.Add(layout.Point{X: dx, Y: dy})
	el, err := c.doc.Element(c.id)
	if err != nil {
		c.End()
		return fmt.Errorf("手势目标已失效: %w", err)
	}
	switch c.state {
	case Dragging:
		return c.doc.Move(c.id, DragPosition(c.ref, c.delta, c.doc.Canvas()))
	case Resizing:
		box := ResizeBox(el, c.ref, c.handle, c.delta, c.doc.Canvas(), c.policy)
		if err := c.doc.Resize(c.id, box); err != nil {
			return err
		}
		if el.Kind == document.KindTitle {
			return c.doc.SetFontSize(c.id, c.policy.TitleFontSize(box.Width))
		}
	}
	return nil
}

// End returns the controller to Idle.
func (c *Controller) End() {
	c.state = Idle
	c.id = ""
	c.handle = 0
	c.delta = layout.Point{}
}

// DragPosition 计算 ref 平移 delta 后、仍完整落在画布内的位置。
func DragPosition(ref layout.Rect, delta layout.Point, canvas layout.PageCanvas) layout.Point {
	return layout.Point{
		X: layout.Clamp(ref.X+delta.X, 0, canvas.Width()-ref.Width),
		Y: layout.Clamp(ref.Y+delta.Y, 0, canvas.Height()-ref.Height),
	}
}

// ResizeBox 计算抓取 handle 并累计位移 delta 后的盒子。
// 被抓取的边移动，对边保持不动；先应用最小尺寸，再应用画布上限（上限优先）。
// 角缩放且元素带宽高比时以宽度为准推导高度；单边缩放不约束宽高比。
func ResizeBox(el document.Element, ref layout.Rect, h Handle, delta layout.Point, canvas layout.PageCanvas, p Policy) layout.Rect {
	w, ht := ref.Width, ref.Height
	if h&EdgeLeft != 0 {
		w -= delta.X
	}
	if h&EdgeRight != 0 {
		w += delta.X
	}
	if h&EdgeTop != 0 {
		ht -= delta.Y
	}
	if h&EdgeBottom != 0 {
		ht += delta.Y
	}

	// 对边固定时允许的最大尺寸。
	maxW, maxH := ref.Width, ref.Height
	switch {
	case h&EdgeLeft != 0:
		maxW = ref.Right()
	case h&EdgeRight != 0:
		maxW = canvas.Width() - ref.X
	}
	switch {
	case h&EdgeTop != 0:
		maxH = ref.Bottom()
	case h&EdgeBottom != 0:
		maxH = canvas.Height() - ref.Y
	}

	if h.IsCorner() && el.HasAspectRatio() {
		minW := math.Max(p.MinWidth, el.WidthForHeight(p.MinHeight))
		maxW = math.Min(maxW, el.WidthForHeight(maxH))
		w = fit(w, minW, maxW)
		ht = el.HeightForWidth(w)
	} else {
		if h.Horizontal() {
			w = fit(w, p.MinWidth, maxW)
		}
		if h.Vertical() {
			ht = fit(ht, p.MinHeight, maxH)
		}
	}

	box := layout.Rect{X: ref.X, Y: ref.Y, Width: w, Height: ht}
	if h&EdgeLeft != 0 {
		box.X = ref.Right() - w
	}
	if h&EdgeTop != 0 {
		box.Y = ref.Bottom() - ht
	}
	return box
}

// fit 与 layout.Clamp 不同：lo > hi 时上限优先，保证盒子不越出画布。
func fit(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
