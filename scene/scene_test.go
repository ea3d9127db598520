package scene

import (
	"errors"
	"strings"
	"testing"

	"github.com/ByLCY/folio/document"
	"github.com/ByLCY/folio/layout"
)

// stubTypesetter 是一个最小实现，仅用于测试：按空格分词，每个词一行。
type stubTypesetter struct {
	fail string
}

func (s *stubTypesetter) LayoutLines(content string, width float64, font Font, lineHeight float64) ([]TextLine, error) {
	if s.fail != "" && strings.Contains(content, s.fail) {
		return nil, errors.New("typesetter exploded")
	}
	var lines []TextLine
	for _, w := range strings.Fields(content) {
		lines = append(lines, TextLine{Content: w, Width: float64(len(w)) * font.Size / 2, Height: font.Size})
	}
	return lines, nil
}

func sampleDoc(t *testing.T) (*document.Document, map[string]document.ID) {
	t.Helper()
	doc := document.New(layout.NewPageCanvas(800, 1000))
	ids := map[string]document.ID{}
	pic := &document.Picture{Name: "p", Data: []byte{1}, Width: 400, Height: 300}
	for name, kind := range map[string]document.Kind{
		"title":   document.KindTitle,
		"text":    document.KindFreeText,
		"photo":   document.KindPhoto,
		"caption": document.KindCaptionPhoto,
	} {
		el, err := doc.Create(kind, layout.Point{X: 10, Y: 10}, document.Payload{Picture: pic})
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		ids[name] = el.ID
	}
	return doc, ids
}

func TestProjectNodes(t *testing.T) {
	doc, ids := sampleDoc(t)
	_ = doc.Selection().SelectOnly(ids["photo"])
	tree := Project(doc)
	if got := len(tree.OfKind(NodeImage)); got != 2 {
		t.Fatalf("images = %d, want 2", got)
	}
	if got := len(tree.OfKind(NodeEditable)); got != 3 {
		t.Fatalf("editables = %d, want 3", got)
	}
	decor := tree.OfKind(NodeDecoration)
	if len(decor) != 2 {
		t.Fatalf("decorations = %d, want toggle + selection", len(decor))
	}
	if sel := tree.Find(string(ids["photo"]) + "/selection"); sel == nil || sel.Decoration != DecorSelection {
		t.Fatalf("selection mark missing")
	}
	if tree.Width != 800 || tree.Height != 1000 {
		t.Fatalf("tree size %gx%g", tree.Width, tree.Height)
	}
}

func TestFreezeSubstitutesLabels(t *testing.T) {
	doc, ids := sampleDoc(t)
	_ = doc.Selection().SelectOnly(ids["title"])
	tree := Project(doc)
	before := len(tree.Nodes)

	snap, err := tree.Freeze(&stubTypesetter{})
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	labels := snap.Labels()
	if len(labels) != 3 {
		t.Fatalf("labels = %d, want 3", len(labels))
	}
	for i, n := range tree.Nodes {
		switch n.Kind {
		case NodeEditable, NodeDecoration:
			if !n.Hidden {
				t.Fatalf("%s must be hidden during capture", n.ID)
			}
		case NodeLabel:
			live := tree.Nodes[i-1]
			if live.Kind != NodeEditable || live.Element != n.Element {
				t.Fatalf("label %s must follow its editable node", n.ID)
			}
			if n.Text != live.Text || n.Font != live.Font || n.Box != live.Box {
				t.Fatalf("label %s does not mirror editable %+v", n.ID, live)
			}
		}
	}

	snap.Restore()
	snap.Restore()
	if len(tree.Nodes) != before {
		t.Fatalf("nodes = %d after restore, want %d", len(tree.Nodes), before)
	}
	for _, n := range tree.Nodes {
		if n.Kind == NodeLabel {
			t.Fatalf("label %s survived restore", n.ID)
		}
		if n.Hidden {
			t.Fatalf("%s still hidden after restore", n.ID)
		}
	}
}

func TestFreezeFailureRestores(t *testing.T) {
	doc, ids := sampleDoc(t)
	if err := doc.SetText(ids["text"], "boom here"); err != nil {
		t.Fatalf("set text: %v", err)
	}
	tree := Project(doc)
	before := len(tree.Nodes)
	if _, err := tree.Freeze(&stubTypesetter{fail: "boom"}); err == nil {
		t.Fatalf("expected freeze error")
	}
	if len(tree.Nodes) != before {
		t.Fatalf("nodes = %d, want %d", len(tree.Nodes), before)
	}
	for _, n := range tree.Nodes {
		if n.Hidden || n.Kind == NodeLabel {
			t.Fatalf("tree not restored: %+v", n)
		}
	}
}

func TestFreezeWithoutTypesetterSplitsNewlines(t *testing.T) {
	doc, ids := sampleDoc(t)
	_ = doc.SetText(ids["text"], "a\nb\n")
	tree := Project(doc)
	snap, err := tree.Freeze(nil)
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	defer snap.Restore()
	for _, l := range snap.Labels() {
		if l.Element == ids["text"] && len(l.Lines) != 3 {
			t.Fatalf("lines = %+v", l.Lines)
		}
	}
}
