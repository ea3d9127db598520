package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ByLCY/folio/document"
	"github.com/ByLCY/folio/layout"
	"github.com/ByLCY/folio/renderer"
	"github.com/ByLCY/folio/scene"
)

type fakeTarget struct {
	doc      *document.Document
	tree     *scene.Tree
	begins   int
	ends     int
	beginErr error
}

func (f *fakeTarget) BeginCapture() (*scene.Tree, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	f.begins++
	f.doc.Selection().Clear()
	f.tree = scene.Project(f.doc)
	return f.tree, nil
}

func (f *fakeTarget) EndCapture() { f.ends++ }

func (f *fakeTarget) DocumentTitle() string {
	for _, el := range f.doc.Elements() {
		if el.Kind == document.KindTitle {
			return el.Text
		}
	}
	return ""
}

// fakeRenderer 记录栅格化时可见的节点。
type fakeRenderer struct {
	err     error
	panics  bool
	visible []string
}

func (f *fakeRenderer) Rasterize(ctx context.Context, tree *scene.Tree, scale float64) (image.Image, error) {
	if f.panics {
		panic("rasterizer crashed")
	}
	f.visible = f.visible[:0]
	for _, n := range tree.Visible() {
		f.visible = append(f.visible, fmt.Sprintf("%s:%s", n.Kind, n.Text))
	}
	if f.err != nil {
		return nil, f.err
	}
	return image.NewRGBA(image.Rect(0, 0, int(tree.Width*scale), int(tree.Height*scale))), nil
}

type fakeEncoder struct {
	err  error
	page renderer.PageFormat
}

func (f *fakeEncoder) EncodePDF(bmp image.Image, page renderer.PageFormat) ([]byte, error) {
	f.page = page
	if f.err != nil {
		return nil, f.err
	}
	return []byte(fmt.Sprintf("pdf %v %s", bmp.Bounds().Size(), page.Meta.Title)), nil
}

func (f *fakeEncoder) EncodeJPEG(bmp image.Image, quality float64) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte(fmt.Sprintf("jpeg %v %.2f", bmp.Bounds().Size(), quality)), nil
}

type failingSink struct{}

func (failingSink) Save(string, []byte) error { return errors.New("disk full") }

func newFixture(t *testing.T) (*fakeTarget, *fakeRenderer, *fakeEncoder, *Pipeline) {
	t.Helper()
	doc := document.New(layout.NewPageCanvas(400, 500))
	title, err := doc.Create(document.KindTitle, layout.Point{X: 10, Y: 10}, document.Payload{Text: "Trip"})
	if err != nil {
		t.Fatalf("create title: %v", err)
	}
	if _, err := doc.Create(document.KindCaptionPhoto, layout.Point{X: 10, Y: 100}, document.Payload{
		Picture: &document.Picture{Name: "p", Data: []byte{1}, Width: 4, Height: 3},
	}); err != nil {
		t.Fatalf("create caption photo: %v", err)
	}
	_ = doc.Selection().SelectOnly(title.ID)

	target := &fakeTarget{doc: doc}
	rend := &fakeRenderer{}
	enc := &fakeEncoder{}
	opts := DefaultOptions()
	opts.Scale = 1
	return target, rend, enc, &Pipeline{Renderer: rend, Encoder: enc, Sink: &MemorySink{}, Options: opts}
}

func assertRestored(t *testing.T, target *fakeTarget) {
	t.Helper()
	if target.ends != target.begins {
		t.Fatalf("EndCapture called %d times for %d captures", target.ends, target.begins)
	}
	for _, n := range target.tree.Nodes {
		if n.Kind == scene.NodeLabel {
			t.Fatalf("label %s left in the tree", n.ID)
		}
		if n.Hidden {
			t.Fatalf("node %s still hidden", n.ID)
		}
	}
}

func TestExportPDFFreezesLiveText(t *testing.T) {
	target, rend, enc, p := newFixture(t)
	out, err := p.Export(context.Background(), target, FormatPDF)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if out.Name != PDFName || out.Width != 400 || out.Height != 500 {
		t.Fatalf("output = %+v", out)
	}
	if enc.page.Paper.Name != "A4" || enc.page.Meta.Title != "Trip" {
		t.Fatalf("page format = %+v", enc.page)
	}
	for _, v := range rend.visible {
		if strings.HasPrefix(v, "editable") || strings.HasPrefix(v, "decoration") {
			t.Fatalf("%s visible during capture", v)
		}
	}
	if got := strings.Join(rend.visible, ","); !strings.Contains(got, "label:Trip") || !strings.Contains(got, "label:Caption") {
		t.Fatalf("labels not rendered: %s", got)
	}
	if _, ok := target.doc.Selection().ID(); ok {
		t.Fatalf("selection must be cleared by export")
	}
	assertRestored(t, target)
	if data, ok := p.Sink.(*MemorySink).Get(PDFName); !ok || !bytes.Equal(data, out.Data) {
		t.Fatalf("sink did not receive output")
	}
}

func TestExportIsIdempotent(t *testing.T) {
	target, _, _, p := newFixture(t)
	first, err := p.Export(context.Background(), target, FormatJPEG)
	if err != nil {
		t.Fatalf("first export: %v", err)
	}
	before := len(target.tree.Nodes)
	second, err := p.Export(context.Background(), target, FormatJPEG)
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if !bytes.Equal(first.Data, second.Data) || first.Name != JPEGName {
		t.Fatalf("exports differ: %q vs %q", first.Data, second.Data)
	}
	if len(target.tree.Nodes) != before {
		t.Fatalf("tree changed between exports")
	}
	assertRestored(t, target)
}

func TestExportRestoresOnFailure(t *testing.T) {
	cases := map[string]func(*fakeRenderer, *fakeEncoder, *Pipeline){
		"renderer": func(r *fakeRenderer, _ *fakeEncoder, _ *Pipeline) { r.err = errors.New("raster") },
		"encoder":  func(_ *fakeRenderer, e *fakeEncoder, _ *Pipeline) { e.err = errors.New("encode") },
		"sink":     func(_ *fakeRenderer, _ *fakeEncoder, p *Pipeline) { p.Sink = failingSink{} },
	}
	for name, breakIt := range cases {
		t.Run(name, func(t *testing.T) {
			target, rend, enc, p := newFixture(t)
			breakIt(rend, enc, p)
			if _, err := p.Export(context.Background(), target, FormatPDF); err == nil {
				t.Fatalf("expected error")
			}
			assertRestored(t, target)
		})
	}
}

func TestExportRestoresOnPanic(t *testing.T) {
	target, rend, _, p := newFixture(t)
	rend.panics = true
	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_, _ = p.Export(context.Background(), target, FormatPDF)
	}()
	assertRestored(t, target)
}

func TestExportRejectsQualityBeforeCapture(t *testing.T) {
	target, _, _, p := newFixture(t)
	if _, err := p.ExportJPEG(context.Background(), target, 1.2); !errors.Is(err, ErrInvalidQuality) {
		t.Fatalf("err = %v", err)
	}
	if target.begins != 0 {
		t.Fatalf("capture must not start for invalid quality")
	}
}

func TestExportBeginFailure(t *testing.T) {
	target, _, _, p := newFixture(t)
	target.beginErr = errors.New("busy")
	if _, err := p.Export(context.Background(), target, FormatPDF); err == nil {
		t.Fatalf("expected error")
	}
	if target.ends != 0 {
		t.Fatalf("EndCapture must not run when capture never began")
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"pdf": FormatPDF, "JPEG": FormatJPEG, "jpg": FormatJPEG} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("png"); err == nil {
		t.Fatalf("png must be rejected")
	}
}

func TestDirSinkWrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	if err := (DirSink{Dir: dir}).Save(PDFName, []byte("x")); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, PDFName))
	if err != nil || string(data) != "x" {
		t.Fatalf("read back = %q, %v", data, err)
	}
}
