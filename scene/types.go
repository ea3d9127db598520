package scene

// 该文件定义渲染树节点，供投影、导出冻结、渲染与调试 JSON 共用。坐标单位均为 px。

import (
	"github.com/ByLCY/folio/document"
	"github.com/ByLCY/folio/layout"
)

// NodeKind 区分渲染树节点类型。
type NodeKind int

const (
	NodeImage      NodeKind = iota // 照片
	NodeEditable                   // 可编辑文本输入框
	NodeLabel                      // 导出期间替代 NodeEditable 的静态文本
	NodeDecoration                 // 只在编辑时出现的装饰（选中框、说明位置切换按钮）
)

func (k NodeKind) String() string {
	switch k {
	case NodeImage:
		return "image"
	case NodeEditable:
		return "editable"
	case NodeLabel:
		return "label"
	case NodeDecoration:
		return "decoration"
	default:
		return "unknown"
	}
}

// MarshalText 让调试 JSON 输出可读的类型名。
func (k NodeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Decoration 区分装饰节点。
type Decoration string

const (
	DecorSelection     Decoration = "selection"
	DecorCaptionToggle Decoration = "caption-toggle"
)

// Font 描述文本字体，Size 单位 px。
type Font struct {
	Family string  `json:"family"`
	Size   float64 `json:"size"`
}

// TextLine 表示排版后的一行文本内容及其宽高。
type TextLine struct {
	Content   string  `json:"content"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	GapBefore float64 `json:"gapBefore,omitempty"`
}

// Node 是渲染树中的一个可视盒子。
type Node struct {
	ID         string            `json:"id"`
	Element    document.ID       `json:"element"`
	Kind       NodeKind          `json:"kind"`
	Decoration Decoration        `json:"decoration,omitempty"`
	Box        layout.Rect       `json:"box"`
	Hidden     bool              `json:"hidden,omitempty"`
	Text       string            `json:"text,omitempty"`
	Font       Font              `json:"font,omitempty"`
	LineHeight float64           `json:"lineHeight,omitempty"`
	Lines      []TextLine        `json:"lines,omitempty"`
	Picture    *document.Picture `json:"picture,omitempty"`
}

// Tree 是页面的渲染树，Nodes 按绘制顺序排列（后者在上）。
type Tree struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Nodes  []*Node `json:"nodes"`
}

// Typesetter 负责根据字体与宽度约束将文本拆成可绘制的行。
type Typesetter interface {
	LayoutLines(content string, width float64, font Font, lineHeight float64) ([]TextLine, error)
}

// Find returns the node with the given id, or nil.
func (t *Tree) Find(id string) *Node {
	for _, n := range t.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// OfKind returns the nodes of the given kind in drawing order.
func (t *Tree) OfKind(kind NodeKind) []*Node {
	var out []*Node
	for _, n := range t.Nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// Visible returns the nodes a renderer should draw.
func (t *Tree) Visible() []*Node {
	out := make([]*Node, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		if !n.Hidden {
			out = append(out, n)
		}
	}
	return out
}
