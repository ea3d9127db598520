package scene

import (
	"fmt"
	"math"
)

// labelPadding 与编辑框的内边距一致，保证导出文本与屏幕上的位置相同。
const labelPadding = 4.0

// Snapshot 记录一次冻结：插入的静态文本节点与被隐藏节点原先的可见性。
// 只在单次导出期间存在，Restore 之后即失效。
type Snapshot struct {
	tree     *Tree
	labels   map[*Node]struct{}
	hidden   map[*Node]bool
	restored bool
}

// Freeze 为每个可见的可编辑文本节点插入一个静态 Label 节点（紧跟其后，保持叠放次序），
// 隐藏原节点并隐藏所有装饰节点。原节点只是隐藏，不会被移除。
// ts 为 nil 时 Label 只按显式换行拆分。
func (t *Tree) Freeze(ts Typesetter) (*Snapshot, error) {
	s := &Snapshot{tree: t, labels: map[*Node]struct{}{}, hidden: map[*Node]bool{}}
	nodes := make([]*Node, 0, len(t.Nodes)*2)
	for i, n := range t.Nodes {
		nodes = append(nodes, n)
		switch n.Kind {
		case NodeEditable:
			if n.Hidden {
				continue
			}
			label, err := newLabel(n, ts)
			if err != nil {
				t.Nodes = append(nodes, t.Nodes[i+1:]...)
				s.Restore()
				return nil, err
			}
			s.hide(n)
			s.labels[label] = struct{}{}
			nodes = append(nodes, label)
		case NodeDecoration:
			s.hide(n)
		}
	}
	t.Nodes = nodes
	return s, nil
}

func (s *Snapshot) hide(n *Node) {
	if _, ok := s.hidden[n]; !ok {
		s.hidden[n] = n.Hidden
	}
	n.Hidden = true
}

// Labels returns the static nodes inserted by the freeze.
func (s *Snapshot) Labels() []*Node {
	var out []*Node
	for _, n := range s.tree.Nodes {
		if _, ok := s.labels[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Restore 移除所有 Label 节点并恢复被隐藏节点的可见性。可重复调用。
func (s *Snapshot) Restore() {
	if s == nil || s.restored {
		return
	}
	s.restored = true
	kept := s.tree.Nodes[:0]
	for _, n := range s.tree.Nodes {
		if _, ok := s.labels[n]; ok {
			continue
		}
		kept = append(kept, n)
	}
	for i := len(kept); i < len(s.tree.Nodes); i++ {
		s.tree.Nodes[i] = nil
	}
	s.tree.Nodes = kept
	for n, prev := range s.hidden {
		n.Hidden = prev
	}
}

func newLabel(n *Node, ts Typesetter) (*Node, error) {
	inner := n.Box.Inset(labelPadding)
	lines, err := layoutLabel(n, inner.Width, ts)
	if err != nil {
		return nil, fmt.Errorf("排版文本 %s 失败: %w", n.ID, err)
	}
	return &Node{
		ID:         n.ID + "#label",
		Element:    n.Element,
		Kind:       NodeLabel,
		Box:        n.Box,
		Text:       n.Text,
		Font:       n.Font,
		LineHeight: n.LineHeight,
		Lines:      lines,
	}, nil
}

func layoutLabel(n *Node, width float64, ts Typesetter) ([]TextLine, error) {
	if ts != nil {
		return ts.LayoutLines(n.Text, width, n.Font, n.LineHeight)
	}
	var lines []TextLine
	start := 0
	for i := 0; i <= len(n.Text); i++ {
		if i == len(n.Text) || n.Text[i] == '\n' {
			lines = append(lines, TextLine{
				Content: n.Text[start:i],
				Height:  math.Max(n.LineHeight, n.Font.Size),
			})
			start = i + 1
		}
	}
	return lines, nil
}
