package document

import (
	"fmt"

	"github.com/ByLCY/folio/layout"
)

// ID 是元素的不透明标识（UUID 字符串）。
type ID string

// Kind 区分元素种类。
type Kind int

const (
	KindPhoto Kind = iota
	KindTitle
	KindCaptionPhoto
	KindFreeText
)

func (k Kind) String() string {
	switch k {
	case KindPhoto:
		return "photo"
	case KindTitle:
		return "title"
	case KindCaptionPhoto:
		return "caption-photo"
	case KindFreeText:
		return "free-text"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// HasText reports whether elements of this kind carry editable text.
func (k Kind) HasText() bool {
	return k == KindTitle || k == KindFreeText || k == KindCaptionPhoto
}

// HasPicture reports whether elements of this kind show a photograph.
func (k Kind) HasPicture() bool {
	return k == KindPhoto || k == KindCaptionPhoto
}

// Picture 是照片元素的原始图像数据。Width/Height 为原始像素尺寸，未知时为 0。
type Picture struct {
	Name   string `json:"name"`
	Data   []byte `json:"-"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Ratio returns width/height, or 0 while the natural size is unknown.
func (p *Picture) Ratio() float64 {
	if p == nil || p.Width <= 0 || p.Height <= 0 {
		return 0
	}
	return float64(p.Width) / float64(p.Height)
}

// Element 是页面上的一个放置对象。Document 返回的是快照副本，修改须经由 Document。
type Element struct {
	ID           ID          `json:"id"`
	Kind         Kind        `json:"kind"`
	Box          layout.Rect `json:"box"`
	AspectRatio  float64     `json:"aspectRatio,omitempty"` // width/height；0 表示未知或不适用
	Text         string      `json:"text,omitempty"`
	FontFamily   string      `json:"fontFamily,omitempty"`
	FontSize     float64     `json:"fontSize,omitempty"` // px
	CaptionBelow bool        `json:"captionBelow,omitempty"`
	Picture      *Picture    `json:"picture,omitempty"`
	Selected     bool        `json:"selected"`

	sizeTouched bool
}

// HasText reports whether the element carries editable text.
func (e Element) HasText() bool { return e.Kind.HasText() }

// HasAspectRatio reports whether corner resizes must preserve proportions.
func (e Element) HasAspectRatio() bool { return e.AspectRatio > 0 }

// SizeTouched reports whether the user has resized the element.
func (e Element) SizeTouched() bool { return e.sizeTouched }

// Payload 是创建元素时可选的内容。
type Payload struct {
	Text       string
	FontFamily string
	FontSize   float64
	Picture    *Picture
	// Size 覆盖默认盒子尺寸；为零值时使用默认值。
	Size layout.Size
}
