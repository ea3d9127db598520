package script

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ByLCY/folio/document"
	"github.com/ByLCY/folio/dsl"
	"github.com/ByLCY/folio/export"
	canvasrenderer "github.com/ByLCY/folio/renderer/canvas"
)

const tripScript = `
compose Trip v1 {
  meta {
    author: "me"
  }
  resources {
    image Beach { src: "beach.png" }
  }
  page A4 portrait {
    title head text "Hello ${user.name}" x 10 y 10
    photo hero image Beach x 20 y 120
    caption pic image Beach text "Sunset" x 300 y 120
    text note x 10 y 600 { "draft" }
    select head
    font-size 8
    drag hero dx -100 dy 30 steps 3
    resize hero handle se dx 200 dy 0
    toggle-caption pic
    edit note text "final"
    click-background
    export pdf
    export jpeg quality 0.5
  }
}
`

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1600, 900))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "beach.png"), buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return dir
}

func compile(t *testing.T, src string) *Plan {
	t.Helper()
	ast, err := dsl.ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	plan, err := Compile(ast)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return plan
}

func newOptions(dir string) (Options, *export.MemorySink) {
	r := canvasrenderer.NewRenderer(dir)
	sink := &export.MemorySink{}
	opts := export.DefaultOptions()
	opts.Scale = 0.5
	return Options{
		BaseDir:  dir,
		Data:     map[string]any{"user": map[string]any{"name": "Mina"}},
		Pipeline: &export.Pipeline{Renderer: r, Encoder: r, Typesetter: r, Sink: sink, Options: opts},
		Fonts:    r,
	}, sink
}

func TestRunTripScript(t *testing.T) {
	dir := writeFixture(t)
	plan := compile(t, tripScript)
	if plan.Paper.Name != "A4" || plan.Meta.Author != "me" || len(plan.Steps) != 13 {
		t.Fatalf("unexpected plan %+v", plan)
	}
	opts, sink := newOptions(dir)

	res, err := Run(context.Background(), plan, opts)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	s := res.Session

	head, _ := s.Element(res.Elements["head"])
	if head.Text != "Hello Mina" || head.FontSize != document.MinFontSize {
		t.Fatalf("title = %+v", head)
	}

	hero, _ := s.Element(res.Elements["hero"])
	if hero.Box.X != 0 || hero.Box.Y != 150 {
		t.Fatalf("drag result = %+v", hero.Box)
	}
	if math.Abs(hero.Box.Width-400) > 1e-9 || math.Abs(hero.Box.Height-225) > 1e-9 {
		t.Fatalf("corner resize = %+v, want 400x225", hero.Box)
	}

	pic, _ := s.Element(res.Elements["pic"])
	if pic.Text != "Sunset" || pic.CaptionBelow {
		t.Fatalf("caption = %+v", pic)
	}
	note, _ := s.Element(res.Elements["note"])
	if note.Text != "final" {
		t.Fatalf("note = %q", note.Text)
	}
	if _, ok := s.Selected(); ok {
		t.Fatalf("click-background must clear the selection")
	}

	if len(res.Outputs) != 2 {
		t.Fatalf("outputs = %d", len(res.Outputs))
	}
	if names := sink.Names(); len(names) != 2 {
		t.Fatalf("saved = %v", names)
	}
	for _, name := range []string{export.PDFName, export.JPEGName} {
		if data, ok := sink.Get(name); !ok || len(data) == 0 {
			t.Fatalf("%s not saved", name)
		}
	}
}

func TestRunRejectsUnknownElement(t *testing.T) {
	plan := compile(t, `compose X v1 {
  page A4 {
    drag ghost dx 1 dy 1
  }
}`)
	opts, _ := newOptions(t.TempDir())
	if _, err := Run(context.Background(), plan, opts); !errors.Is(err, ErrUnknownElement) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	plan := compile(t, `compose X v1 {
  page A4 landscape {
    spin 10
  }
}`)
	opts, _ := newOptions(t.TempDir())
	res, err := Run(context.Background(), plan, opts)
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("err = %v", err)
	}
	if c := res.Session.Canvas(); c.Width() <= c.Height() {
		t.Fatalf("landscape canvas expected, got %gx%g", c.Width(), c.Height())
	}
}

func TestRunRejectsMissingImage(t *testing.T) {
	plan := compile(t, `compose X v1 {
  page A4 {
    photo p image Nope x 0 y 0
  }
}`)
	opts, _ := newOptions(t.TempDir())
	if _, err := Run(context.Background(), plan, opts); !errors.Is(err, ErrUnknownResource) {
		t.Fatalf("err = %v", err)
	}
}

func TestCompileErrors(t *testing.T) {
	cases := map[string]string{
		"no page":    `compose X v1 { meta { title: "t" } }`,
		"two pages":  "compose X v1 {\n page A4 { }\n page A5 { }\n}",
		"bad paper":  `compose X v1 { page B9 { } }`,
		"bad params": `compose X v1 { page A4 sideways { } }`,
		"bad export": "compose X v1 {\n meta { export: \"fast\" }\n page A4 { }\n}",
		"zero scale": "compose X v1 {\n meta { export: { scale: 0 } }\n page A4 { }\n}",
		"quality":    "compose X v1 {\n meta { export: { quality: 1.5 } }\n page A4 { }\n}",
		"export key": "compose X v1 {\n meta { export: { dpi: 300 } }\n page A4 { }\n}",
	}
	for name, src := range cases {
		ast, err := dsl.ParseString(src)
		if err != nil {
			t.Fatalf("%s: parse: %v", name, err)
		}
		if _, err := Compile(ast); err == nil {
			t.Fatalf("%s: expected compile error", name)
		}
	}
}

func TestMetaExportSettings(t *testing.T) {
	plan := compile(t, `compose X v1 {
  meta {
    export: { scale: 0.25, quality: 0.4 }
  }
  page A4 {
    export jpeg
  }
}`)
	if plan.Export.Scale == nil || *plan.Export.Scale != 0.25 {
		t.Fatalf("scale = %v", plan.Export.Scale)
	}
	if plan.Export.JPEGQuality == nil || *plan.Export.JPEGQuality != 0.4 {
		t.Fatalf("quality = %v", plan.Export.JPEGQuality)
	}
	opts, _ := newOptions(t.TempDir())
	res, err := Run(context.Background(), plan, opts)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// A4 宽约 793.7px，按 0.25 倍栅格化
	if w := res.Outputs[0].Width; w < 190 || w > 205 {
		t.Fatalf("bitmap width = %d, want ~198", w)
	}
	if opts.Pipeline.Options.Scale != 0.5 {
		t.Fatalf("caller pipeline options must not change")
	}
}

func TestParseArgs(t *testing.T) {
	ast, err := dsl.ParseString("compose X v1 {\n page A4 {\n resize hero handle se dx 2 dy -3\n }\n}")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cmd := ast.Sections[0].Page.Block.Statements[0].Command
	name, attrs := parseArgs(cmd.Args, true)
	if name != "hero" || attrs["handle"] != "se" || attrs["dx"] != "2" || attrs["dy"] != "-3" {
		t.Fatalf("parseArgs = %s %v", name, attrs)
	}
}
