package document

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/ByLCY/folio/layout"
)

// 默认尺寸与字号（px）。
const (
	MinFontSize          = 12.0
	DefaultTitleFontSize = 32.0
	DefaultTextFontSize  = 16.0
	DefaultCaptionSize   = 14.0
	DefaultFontFamily    = "Go"

	DefaultTitleText   = "Untitled"
	DefaultFreeText    = "Text"
	DefaultCaptionText = "Caption"

	captionLineFactor = 1.2
	captionPadding    = 4.0
)

var defaultSizes = map[Kind]layout.Size{
	KindPhoto:        {Width: 200, Height: 200},
	KindTitle:        {Width: 300, Height: 60},
	KindCaptionPhoto: {Width: 200, Height: 240},
	KindFreeText:     {Width: 200, Height: 80},
}

var (
	ErrNotFound       = errors.New("document: 元素不存在")
	ErrUnsupported    = errors.New("document: 元素类型不支持该操作")
	ErrInvalidRatio   = errors.New("document: 宽高比无效")
	ErrInvalidValue   = errors.New("document: 参数无效")
	ErrMissingPicture = errors.New("document: 照片元素缺少图片")
	ErrUnknownKind    = errors.New("document: 未知的元素类型")
)

// ChangeKind 描述一次模型变更的类别。
type ChangeKind int

const (
	Created ChangeKind = iota
	Updated
	Deleted
	SelectionChanged
)

// Change 在每次变更后同步通知观察者。
type Change struct {
	Kind ChangeKind
	ID   ID
}

// Document 是元素模型：按 z 序保存所有元素，并持有唯一的 Selection。
// Document 不做并发保护，调用方（editor.Session）负责串行化访问。
type Document struct {
	canvas    layout.PageCanvas
	order     []ID
	elements  map[ID]*Element
	sel       Selection
	revision  uint64
	observers []func(Change)
	newID     func() ID
}

// New creates an empty document on the given canvas.
func New(canvas layout.PageCanvas) *Document {
	d := &Document{
		canvas:   canvas,
		elements: map[ID]*Element{},
		newID:    func() ID { return ID(uuid.NewString()) },
	}
	d.sel.doc = d
	return d
}

// Canvas returns the page canvas.
func (d *Document) Canvas() layout.PageCanvas { return d.canvas }

// Revision 在每次变更后递增。
func (d *Document) Revision() uint64 { return d.revision }

// Len returns the number of placed elements.
func (d *Document) Len() int { return len(d.order) }

// OnChange registers an observer invoked after every mutation.
func (d *Document) OnChange(fn func(Change)) {
	if fn != nil {
		d.observers = append(d.observers, fn)
	}
}

func (d *Document) notify(kind ChangeKind, id ID) {
	d.revision++
	for _, fn := range d.observers {
		fn(Change{Kind: kind, ID: id})
	}
}

// Element returns a snapshot of the element with the given id.
func (d *Document) Element(id ID) (Element, error) {
	el, ok := d.elements[id]
	if !ok {
		return Element{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *el, nil
}

// Elements returns snapshots of all elements in z-order (later ones on top).
func (d *Document) Elements() []Element {
	out := make([]Element, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, *d.elements[id])
	}
	return out
}

func (d *Document) lookup(id ID) (*Element, error) {
	el, ok := d.elements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return el, nil
}

// Create allocates an element of the given kind at the given position and
// appends it on top of the stacking order.
func (d *Document) Create(kind Kind, at layout.Point, p Payload) (Element, error) {
	size, ok := defaultSizes[kind]
	if !ok {
		return Element{}, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
	if kind.HasPicture() && p.Picture == nil {
		return Element{}, fmt.Errorf("%w: %s", ErrMissingPicture, kind)
	}
	if p.Size.Width > 0 && p.Size.Height > 0 {
		size = p.Size
	}

	el := &Element{
		ID:      d.newID(),
		Kind:    kind,
		Box:     layout.Rect{X: at.X, Y: at.Y, Width: size.Width, Height: size.Height},
		Picture: p.Picture,
	}
	if kind.HasText() {
		el.Text = p.Text
		el.FontFamily = p.FontFamily
		if el.FontFamily == "" {
			el.FontFamily = DefaultFontFamily
		}
		el.FontSize = p.FontSize
		switch kind {
		case KindTitle:
			if el.Text == "" {
				el.Text = DefaultTitleText
			}
			if el.FontSize <= 0 {
				el.FontSize = DefaultTitleFontSize
			}
		case KindFreeText:
			if el.Text == "" {
				el.Text = DefaultFreeText
			}
			if el.FontSize <= 0 {
				el.FontSize = DefaultTextFontSize
			}
		case KindCaptionPhoto:
			if el.Text == "" {
				el.Text = DefaultCaptionText
			}
			if el.FontSize <= 0 {
				el.FontSize = DefaultCaptionSize
			}
			el.CaptionBelow = true
		}
		el.FontSize = math.Max(el.FontSize, MinFontSize)
	}
	if r := p.Picture.Ratio(); r > 0 {
		el.AspectRatio = r
		el.Box = d.fitRatio(el, el.Box)
	}
	el.Box = d.canvas.Clamp(el.Box)

	d.elements[el.ID] = el
	d.order = append(d.order, el.ID)
	d.notify(Created, el.ID)
	return *el, nil
}

// SetAspectRatio records the natural aspect ratio of a photo once it is known.
// The box is reshaped only while the user has not resized the element;
// otherwise the user's size is kept and the ratio applies to later corner resizes.
func (d *Document) SetAspectRatio(id ID, ratio float64) error {
	el, err := d.lookup(id)
	if err != nil {
		return err
	}
	if !el.Kind.HasPicture() {
		return fmt.Errorf("%w: %s 不是照片", ErrUnsupported, el.Kind)
	}
	if !(ratio > 0) || math.IsInf(ratio, 0) {
		return fmt.Errorf("%w: %g", ErrInvalidRatio, ratio)
	}
	el.AspectRatio = ratio
	if !el.sizeTouched {
		el.Box = d.canvas.Clamp(d.fitRatio(el, el.Box))
	}
	d.notify(Updated, id)
	return nil
}

// fitRatio 保持宽度重新计算高度；若高度超出画布，则以画布高度反推宽度。
func (d *Document) fitRatio(el *Element, box layout.Rect) layout.Rect {
	box.Height = el.HeightForWidth(box.Width)
	if box.Height > d.canvas.Height() {
		box.Height = d.canvas.Height()
		box.Width = el.WidthForHeight(box.Height)
	}
	if box.Width > d.canvas.Width() {
		box.Width = d.canvas.Width()
		box.Height = el.HeightForWidth(box.Width)
	}
	return box
}

// Delete removes the element and clears the selection when it pointed at it.
func (d *Document) Delete(id ID) error {
	if _, err := d.lookup(id); err != nil {
		return err
	}
	if d.sel.id == id {
		d.sel.Clear()
	}
	delete(d.elements, id)
	for i, cur := range d.order {
		if cur == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	d.notify(Deleted, id)
	return nil
}

// SetText replaces the text of a text-bearing element.
func (d *Document) SetText(id ID, text string) error {
	el, err := d.textElement(id)
	if err != nil {
		return err
	}
	el.Text = text
	d.notify(Updated, id)
	return nil
}

// SetFontSize sets the font size in px; values below MinFontSize are raised to it.
func (d *Document) SetFontSize(id ID, px float64) error {
	el, err := d.textElement(id)
	if err != nil {
		return err
	}
	if !(px > 0) || math.IsInf(px, 0) {
		return fmt.Errorf("%w: 字号 %g", ErrInvalidValue, px)
	}
	el.FontSize = math.Max(px, MinFontSize)
	if d.sel.id == id {
		d.sel.fontControl = el.FontSize
	}
	d.notify(Updated, id)
	return nil
}

// SetFontFamily sets the font family of a text-bearing element.
func (d *Document) SetFontFamily(id ID, family string) error {
	el, err := d.textElement(id)
	if err != nil {
		return err
	}
	if family == "" {
		return fmt.Errorf("%w: 字体为空", ErrInvalidValue)
	}
	el.FontFamily = family
	d.notify(Updated, id)
	return nil
}

func (d *Document) textElement(id ID) (*Element, error) {
	el, err := d.lookup(id)
	if err != nil {
		return nil, err
	}
	if !el.Kind.HasText() {
		return nil, fmt.Errorf("%w: %s 不含文本", ErrUnsupported, el.Kind)
	}
	return el, nil
}

// ToggleCaptionPosition flips a caption between above and below its photo.
func (d *Document) ToggleCaptionPosition(id ID) error {
	el, err := d.lookup(id)
	if err != nil {
		return err
	}
	if el.Kind != KindCaptionPhoto {
		return fmt.Errorf("%w: %s 没有说明文字", ErrUnsupported, el.Kind)
	}
	el.CaptionBelow = !el.CaptionBelow
	d.notify(Updated, id)
	return nil
}

// Move commits a new position, clamped to the canvas.
func (d *Document) Move(id ID, to layout.Point) error {
	el, err := d.lookup(id)
	if err != nil {
		return err
	}
	box := el.Box
	box.X, box.Y = to.X, to.Y
	el.Box = d.canvas.Clamp(box)
	d.notify(Updated, id)
	return nil
}

// Resize commits a new box, clamped to the canvas, and marks the size as user-set.
func (d *Document) Resize(id ID, box layout.Rect) error {
	el, err := d.lookup(id)
	if err != nil {
		return err
	}
	if box.Width < 0 || box.Height < 0 {
		return fmt.Errorf("%w: 尺寸 %gx%g", ErrInvalidValue, box.Width, box.Height)
	}
	el.Box = d.canvas.Clamp(box)
	el.sizeTouched = true
	d.notify(Updated, id)
	return nil
}

// CaptionBand 返回说明文字条带的高度；非 CaptionPhoto 为 0。
func (e Element) CaptionBand() float64 {
	if e.Kind != KindCaptionPhoto {
		return 0
	}
	return e.FontSize*captionLineFactor + 2*captionPadding
}

// HeightForWidth returns the box height that keeps the photo proportions at the given width.
func (e Element) HeightForWidth(width float64) float64 {
	if e.AspectRatio <= 0 {
		return e.Box.Height
	}
	return width/e.AspectRatio + e.CaptionBand()
}

// WidthForHeight is the inverse of HeightForWidth.
func (e Element) WidthForHeight(height float64) float64 {
	if e.AspectRatio <= 0 {
		return e.Box.Width
	}
	return math.Max(height-e.CaptionBand(), 0) * e.AspectRatio
}

// PictureRect 返回照片实际占用的区域（扣除说明文字条带）。
func (e Element) PictureRect() layout.Rect {
	r := e.Box
	band := math.Min(e.CaptionBand(), r.Height)
	r.Height -= band
	if e.Kind == KindCaptionPhoto && !e.CaptionBelow {
		r.Y += band
	}
	return r
}

// CaptionRect 返回说明文字条带的区域。
func (e Element) CaptionRect() layout.Rect {
	band := math.Min(e.CaptionBand(), e.Box.Height)
	r := layout.Rect{X: e.Box.X, Y: e.Box.Y, Width: e.Box.Width, Height: band}
	if e.CaptionBelow {
		r.Y = e.Box.Bottom() - band
	}
	return r
}
