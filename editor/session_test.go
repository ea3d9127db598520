package editor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/ByLCY/folio/document"
	"github.com/ByLCY/folio/export"
	"github.com/ByLCY/folio/imagesource"
	"github.com/ByLCY/folio/interact"
	"github.com/ByLCY/folio/layout"
	canvasrenderer "github.com/ByLCY/folio/renderer/canvas"
	"github.com/ByLCY/folio/scene"
)

var (
	pageObject = regexp.MustCompile(`/Type\s*/Page[^s]`)
	mediaBox   = regexp.MustCompile(`/MediaBox\s*\[\s*0\s+0\s+([0-9.]+)\s+([0-9.]+)\s*\]`)
)

func newCanvasSession(t *testing.T) (*Session, *export.MemorySink, *bytes.Buffer) {
	t.Helper()
	r := canvasrenderer.NewRenderer("")
	sink := &export.MemorySink{}
	opts := export.DefaultOptions()
	opts.Scale = 1
	p := &export.Pipeline{Renderer: r, Encoder: r, Typesetter: r, Sink: sink, Options: opts}
	var logs bytes.Buffer
	sopts := DefaultOptions()
	sopts.Logger = log.New(&logs, "", 0)
	return New(p, sopts), sink, &logs
}

func TestExportPDFWithTwoTextElements(t *testing.T) {
	s, sink, logs := newCanvasSession(t)
	title, err := s.AddTitle(layout.Point{X: 40, Y: 40}, "Summer")
	if err != nil {
		t.Fatalf("add title: %v", err)
	}
	note, err := s.AddFreeText(layout.Point{X: 40, Y: 200}, "a day at the beach")
	if err != nil {
		t.Fatalf("add text: %v", err)
	}
	if err := s.Select(title); err != nil {
		t.Fatalf("select: %v", err)
	}

	out, err := s.Export(context.Background(), export.FormatPDF)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	data, ok := sink.Get(export.PDFName)
	if !ok || !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("pdf not saved")
	}
	if n := len(pageObject.FindAll(out.Data, -1)); n != 1 {
		t.Fatalf("pages = %d, want 1", n)
	}
	// A4 纵向：210×297mm ≈ 595.28×841.89pt
	m := mediaBox.FindSubmatch(out.Data)
	if m == nil {
		t.Fatalf("MediaBox not found")
	}
	w, _ := strconv.ParseFloat(string(m[1]), 64)
	h, _ := strconv.ParseFloat(string(m[2]), 64)
	if w < 594.8 || w > 595.8 || h < 841.4 || h > 842.4 {
		t.Fatalf("page = %gx%g pt, want A4 portrait", w, h)
	}
	if !strings.Contains(logs.String(), "[INFO]") {
		t.Fatalf("export not logged: %q", logs.String())
	}

	tree := s.Tree()
	if got := len(tree.OfKind(scene.NodeEditable)); got != 2 {
		t.Fatalf("editables after export = %d", got)
	}
	for _, n := range tree.Nodes {
		if n.Hidden || n.Kind == scene.NodeLabel {
			t.Fatalf("tree not restored: %+v", n)
		}
	}
	if _, ok := s.Selected(); ok {
		t.Fatalf("export must clear the selection")
	}
	if err := s.SetText(note, "still editable"); err != nil {
		t.Fatalf("edit after export: %v", err)
	}
}

func TestBackgroundClickClearsSelection(t *testing.T) {
	s, _, _ := newCanvasSession(t)
	id, _ := s.AddFreeText(layout.Point{X: 10, Y: 10}, "x")
	if started := s.PointerDown(interact.Origin{Element: id, Region: interact.RegionTextInput}); started {
		t.Fatalf("text input must not start a gesture")
	}
	if got, ok := s.Selected(); !ok || got != id {
		t.Fatalf("clicking an element must select it")
	}
	s.PointerDown(interact.Origin{Region: interact.RegionBackground})
	if _, ok := s.Selected(); ok {
		t.Fatalf("background click must clear the selection")
	}
	el, _ := s.Element(id)
	if el.Selected {
		t.Fatalf("element still marked selected")
	}
}

func TestDragThroughSession(t *testing.T) {
	s, _, _ := newCanvasSession(t)
	id, _ := s.AddTitle(layout.Point{X: 10, Y: 10}, "T")
	if !s.PointerDown(interact.Origin{Element: id, Region: interact.RegionBody}) {
		t.Fatalf("body must start a drag")
	}
	_ = s.PointerMove(-100, 30)
	_ = s.PointerMove(0, 20)
	s.PointerUp()
	el, _ := s.Element(id)
	if el.Box.X != 0 || el.Box.Y != 60 {
		t.Fatalf("box = %+v", el.Box)
	}
	if s.Tree().Find(string(id)+"/text").Box != el.Box {
		t.Fatalf("live tree not re-projected")
	}
}

// blockingRenderer 在栅格化时挂起，直到测试放行。
type blockingRenderer struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (b *blockingRenderer) Rasterize(ctx context.Context, tree *scene.Tree, scale float64) (image.Image, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
}

func TestCaptureGatesModel(t *testing.T) {
	enc := canvasrenderer.NewRenderer("")
	br := &blockingRenderer{started: make(chan struct{}), release: make(chan struct{})}
	s := New(&export.Pipeline{Renderer: br, Encoder: enc, Options: export.DefaultOptions()}, DefaultOptions())

	title, _ := s.AddTitle(layout.Point{X: 10, Y: 10}, "T")
	photo, err := s.AddPhoto(context.Background(), &imagesource.File{Name: "raw", Data: []byte("not decodable")}, layout.Point{X: 10, Y: 100})
	if err != nil {
		t.Fatalf("add photo: %v", err)
	}
	s.Wait()

	done := make(chan error, 1)
	go func() {
		_, err := s.Export(context.Background(), export.FormatPDF)
		done <- err
	}()
	<-br.started

	if !s.Capturing() {
		t.Fatalf("session must report capturing")
	}
	if s.PointerDown(interact.Origin{Element: title, Region: interact.RegionBody}) {
		t.Fatalf("gesture started during capture")
	}
	if err := s.SetText(title, "changed"); !errors.Is(err, ErrCaptureInProgress) {
		t.Fatalf("SetText err = %v", err)
	}
	if _, err := s.AddTitle(layout.Point{}, "x"); !errors.Is(err, ErrCaptureInProgress) {
		t.Fatalf("AddTitle err = %v", err)
	}
	if _, err := s.Export(context.Background(), export.FormatJPEG); !errors.Is(err, ErrCaptureInProgress) {
		t.Fatalf("second export err = %v", err)
	}
	s.applyProbe(photo, imagesource.ProbeResult{Dimensions: imagesource.Dimensions{Width: 1600, Height: 900}})
	if el, _ := s.Element(photo); el.AspectRatio != 0 {
		t.Fatalf("aspect ratio applied during capture")
	}

	close(br.release)
	if err := <-done; err != nil {
		t.Fatalf("export: %v", err)
	}
	el, _ := s.Element(photo)
	if el.AspectRatio == 0 || el.Box.Height != 112.5 {
		t.Fatalf("deferred ratio not applied after capture: %+v", el)
	}
	if el.Picture.Width != 1600 {
		t.Fatalf("picture dims not recorded: %+v", el.Picture)
	}
	if err := s.SetText(title, "changed"); err != nil {
		t.Fatalf("edit after capture: %v", err)
	}
}

func TestDeleteEndsGestureAndSelection(t *testing.T) {
	s, _, _ := newCanvasSession(t)
	id, _ := s.AddFreeText(layout.Point{}, "x")
	s.PointerDown(interact.Origin{Element: id, Region: interact.RegionHandle, Handle: interact.CornerBottomRight})
	if err := s.Delete(id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.PointerMove(10, 10); err != nil {
		t.Fatalf("move after delete: %v", err)
	}
	if _, ok := s.Selected(); ok {
		t.Fatalf("selection must be cleared")
	}
	if len(s.Elements()) != 0 {
		t.Fatalf("element not removed")
	}
}

func TestApplyFontSizeNeedsSelection(t *testing.T) {
	s, _, _ := newCanvasSession(t)
	if ok, err := s.ApplyFontSize(20); ok || err != nil {
		t.Fatalf("apply without selection = %v, %v", ok, err)
	}
	id, _ := s.AddTitle(layout.Point{}, "x")
	_ = s.Select(id)
	if ok, _ := s.ApplyFontSize(8); !ok {
		t.Fatalf("apply with selection must succeed")
	}
	el, _ := s.Element(id)
	if el.FontSize != document.MinFontSize || s.FontControl() != document.MinFontSize {
		t.Fatalf("font size = %g, control = %g", el.FontSize, s.FontControl())
	}
}
