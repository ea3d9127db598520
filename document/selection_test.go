package document

import (
	"testing"

	"github.com/ByLCY/folio/layout"
)

func countSelected(d *Document) int {
	n := 0
	for _, el := range d.Elements() {
		if el.Selected {
			n++
		}
	}
	return n
}

func TestSelectOnlyIsExclusive(t *testing.T) {
	d := newTestDoc()
	var ids []ID
	for i := 0; i < 4; i++ {
		el, _ := d.Create(KindFreeText, layout.Point{X: float64(i * 10)}, Payload{})
		ids = append(ids, el.ID)
	}
	for _, seq := range [][]int{{0, 1, 2, 3}, {3, 3, 0}, {2, 1, 2, 0, 1}} {
		for _, i := range seq {
			if err := d.Selection().SelectOnly(ids[i]); err != nil {
				t.Fatalf("select: %v", err)
			}
			if n := countSelected(d); n != 1 {
				t.Fatalf("%d elements marked selected", n)
			}
			if got, _ := d.Selection().ID(); got != ids[i] {
				t.Fatalf("selection = %q, want %q", got, ids[i])
			}
		}
	}
	d.Selection().Clear()
	if n := countSelected(d); n != 0 {
		t.Fatalf("%d elements still marked after clear", n)
	}
}

func TestSelectLoadsFontControl(t *testing.T) {
	d := newTestDoc()
	title, _ := d.Create(KindTitle, layout.Point{}, Payload{})
	_ = d.Selection().SelectOnly(title.ID)
	if got := d.Selection().FontControl(); got != DefaultTitleFontSize {
		t.Fatalf("font control = %g", got)
	}
}

func TestApplyFontSizeWithoutSelectionIsNoop(t *testing.T) {
	d := newTestDoc()
	el, _ := d.Create(KindFreeText, layout.Point{}, Payload{})
	rev := d.Revision()
	if d.Selection().ApplyFontSize(40) {
		t.Fatalf("ApplyFontSize must report no-op without selection")
	}
	if d.Revision() != rev {
		t.Fatalf("model mutated by no-op")
	}
	_ = d.Selection().SelectOnly(el.ID)
	if !d.Selection().ApplyFontSize(40) {
		t.Fatalf("ApplyFontSize failed on selected text")
	}
	got, _ := d.Element(el.ID)
	if got.FontSize != 40 || d.Selection().FontControl() != 40 {
		t.Fatalf("font = %g control = %g", got.FontSize, d.Selection().FontControl())
	}
}

func TestApplyFontOnPhotoIsNoop(t *testing.T) {
	d := newTestDoc()
	p, _ := d.Create(KindPhoto, layout.Point{}, Payload{Picture: photo(10, 10)})
	_ = d.Selection().SelectOnly(p.ID)
	if d.Selection().ApplyFontSize(30) || d.Selection().ApplyFontFamily("Go Mono") {
		t.Fatalf("font edits must not apply to photos")
	}
}

func TestApplyFontFamily(t *testing.T) {
	d := newTestDoc()
	el, _ := d.Create(KindTitle, layout.Point{}, Payload{})
	_ = d.Selection().SelectOnly(el.ID)
	if !d.Selection().ApplyFontFamily("Go Bold") {
		t.Fatalf("ApplyFontFamily failed")
	}
	got, _ := d.Element(el.ID)
	if got.FontFamily != "Go Bold" {
		t.Fatalf("family = %q", got.FontFamily)
	}
}
