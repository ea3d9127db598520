package scene

import (
	"github.com/ByLCY/folio/document"
	"github.com/ByLCY/folio/layout"
)

const toggleSize = 20.0

// Project 把元素模型投影为渲染树。渲染树只是模型的视图，每次变更后整体重建。
func Project(doc *document.Document) *Tree {
	canvas := doc.Canvas()
	tree := &Tree{Width: canvas.Width(), Height: canvas.Height()}
	for _, el := range doc.Elements() {
		tree.Nodes = append(tree.Nodes, project(el)...)
	}
	return tree
}

func project(el document.Element) []*Node {
	var nodes []*Node
	switch el.Kind {
	case document.KindPhoto:
		nodes = append(nodes, imageNode(el, el.Box))
	case document.KindTitle, document.KindFreeText:
		nodes = append(nodes, editableNode(el, el.Box))
	case document.KindCaptionPhoto:
		caption := el.CaptionRect()
		nodes = append(nodes,
			imageNode(el, el.PictureRect()),
			editableNode(el, caption),
			&Node{
				ID:         nodeID(el.ID, "toggle"),
				Element:    el.ID,
				Kind:       NodeDecoration,
				Decoration: DecorCaptionToggle,
				Box: layout.Rect{
					X:      caption.Right() - toggleSize,
					Y:      caption.Y,
					Width:  toggleSize,
					Height: caption.Height,
				},
			},
		)
	}
	if el.Selected {
		nodes = append(nodes, &Node{
			ID:         nodeID(el.ID, "selection"),
			Element:    el.ID,
			Kind:       NodeDecoration,
			Decoration: DecorSelection,
			Box:        el.Box,
		})
	}
	return nodes
}

func imageNode(el document.Element, box layout.Rect) *Node {
	return &Node{
		ID:      nodeID(el.ID, "image"),
		Element: el.ID,
		Kind:    NodeImage,
		Box:     box,
		Picture: el.Picture,
	}
}

func editableNode(el document.Element, box layout.Rect) *Node {
	font := Font{Family: el.FontFamily, Size: el.FontSize}
	return &Node{
		ID:         nodeID(el.ID, "text"),
		Element:    el.ID,
		Kind:       NodeEditable,
		Box:        box,
		Text:       el.Text,
		Font:       font,
		LineHeight: layout.DefaultLineHeight.Resolve(layout.Length{Value: font.Size, Unit: layout.UnitPX}, layout.UnitPX),
	}
}

func nodeID(id document.ID, role string) string {
	return string(id) + "/" + role
}
