package interact

import (
	"fmt"
	"strings"
)

// Region 是手势起点所在的区域类型，决定手势如何分派。
type Region int

const (
	RegionBackground Region = iota // 画布空白处
	RegionBody                     // 元素本体：拖动
	RegionHandle                   // 缩放手柄：缩放
	RegionTextInput
	RegionButton
	RegionFontControl
	RegionCaptionToggle
)

func (r Region) String() string {
	switch r {
	case RegionBackground:
		return "background"
	case RegionBody:
		return "body"
	case RegionHandle:
		return "handle"
	case RegionTextInput:
		return "text-input"
	case RegionButton:
		return "button"
	case RegionFontControl:
		return "font-control"
	case RegionCaptionToggle:
		return "caption-toggle"
	default:
		return fmt.Sprintf("region(%d)", int(r))
	}
}

// Interactive reports whether the region is a control that must never start a gesture.
func (r Region) Interactive() bool {
	switch r {
	case RegionTextInput, RegionButton, RegionFontControl, RegionCaptionToggle:
		return true
	}
	return false
}

// Handle 是被抓取的边的位掩码；一个水平边加一个竖直边即为角。
type Handle uint8

const (
	EdgeLeft Handle = 1 << iota
	EdgeTop
	EdgeRight
	EdgeBottom
)

const (
	CornerTopLeft     = EdgeTop | EdgeLeft
	CornerTopRight    = EdgeTop | EdgeRight
	CornerBottomLeft  = EdgeBottom | EdgeLeft
	CornerBottomRight = EdgeBottom | EdgeRight
)

// Horizontal reports whether a left or right edge is grabbed.
func (h Handle) Horizontal() bool { return h&(EdgeLeft|EdgeRight) != 0 }

// Vertical reports whether a top or bottom edge is grabbed.
func (h Handle) Vertical() bool { return h&(EdgeTop|EdgeBottom) != 0 }

// IsCorner reports whether both axes are engaged.
func (h Handle) IsCorner() bool { return h.Horizontal() && h.Vertical() }

// Valid rejects empty handles and opposite edges grabbed together.
func (h Handle) Valid() bool {
	if h == 0 || h&^(EdgeLeft|EdgeTop|EdgeRight|EdgeBottom) != 0 {
		return false
	}
	if h&EdgeLeft != 0 && h&EdgeRight != 0 {
		return false
	}
	return !(h&EdgeTop != 0 && h&EdgeBottom != 0)
}

func (h Handle) String() string {
	var b strings.Builder
	if h&EdgeTop != 0 {
		b.WriteByte('n')
	}
	if h&EdgeBottom != 0 {
		b.WriteByte('s')
	}
	if h&EdgeRight != 0 {
		b.WriteByte('e')
	}
	if h&EdgeLeft != 0 {
		b.WriteByte('w')
	}
	return b.String()
}

// ParseHandle 解析罗盘写法（n/s/e/w/ne/nw/se/sw）或 top/right/bottom/left 组合（如 top-left）。
func ParseHandle(s string) (Handle, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	var h Handle
	switch s {
	case "top", "bottom", "left", "right",
		"top-left", "top-right", "bottom-left", "bottom-right":
		for _, part := range strings.Split(s, "-") {
			switch part {
			case "top":
				h |= EdgeTop
			case "bottom":
				h |= EdgeBottom
			case "left":
				h |= EdgeLeft
			case "right":
				h |= EdgeRight
			}
		}
	default:
		for _, r := range s {
			switch r {
			case 'n':
				h |= EdgeTop
			case 's':
				h |= EdgeBottom
			case 'e':
				h |= EdgeRight
			case 'w':
				h |= EdgeLeft
			default:
				return 0, fmt.Errorf("未知的缩放手柄：%q", s)
			}
		}
	}
	if !h.Valid() {
		return 0, fmt.Errorf("无效的缩放手柄：%q", s)
	}
	return h, nil
}
