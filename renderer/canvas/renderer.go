package canvasrenderer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/ByLCY/folio/document"
	"github.com/ByLCY/folio/fonts"
	"github.com/ByLCY/folio/layout"
	"github.com/ByLCY/folio/renderer"
	"github.com/ByLCY/folio/scene"
)

const (
	// 文本在盒子内的内边距（px），与 scene 中 Label 的排版宽度一致。
	textPadding     = 4.0
	editBorderWidth = 0.2 // mm
	selectionWidth  = 0.5 // mm
)

var (
	textColor      = canvas.Hex("#1e1e1e")
	editBorder     = canvas.Hex("#c8c8c8")
	selectionColor = canvas.Hex("#0f62fe")
	placeholder    = canvas.Hex("#eeeeee")
	noFill         = color.RGBA{0, 0, 0, 0}
)

// Renderer draws render trees via github.com/tdewolff/canvas.
type Renderer struct {
	baseDir string

	// injected resources
	fontBlobs map[string][]byte // by family name

	fontMu         sync.Mutex
	fontFamilies   map[string]*canvas.FontFamily
	fallbackFamily *canvas.FontFamily

	imageMu sync.Mutex
	images  map[*document.Picture]image.Image
}

var (
	_ renderer.Renderer = (*Renderer)(nil)
	_ renderer.Encoder  = (*Renderer)(nil)
	_ scene.Typesetter  = (*Renderer)(nil)
)

// Options configures the canvas renderer.
type Options struct {
	BaseDir string
	Fonts   map[string]Resource // additional font families by name
}

// Resource can be provided either by Bytes or by Path.
type Resource struct {
	Bytes []byte
	Path  string
}

// NewRenderer creates a canvas-based renderer rooted at baseDir for resolving font paths.
func NewRenderer(baseDir string) *Renderer { return newRenderer(baseDir) }

// NewRendererWithOptions creates a renderer with injected resources and optional baseDir.
// 任一字体注册失败时返回错误。
func NewRendererWithOptions(opts Options) (*Renderer, error) {
	r := newRenderer(opts.BaseDir)
	var errs []error
	for name, res := range opts.Fonts {
		if err := r.RegisterFont(name, res); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

func newRenderer(baseDir string) *Renderer {
	return &Renderer{
		baseDir:      baseDir,
		fontBlobs:    map[string][]byte{},
		fontFamilies: map[string]*canvas.FontFamily{},
		images:       map[*document.Picture]image.Image{},
	}
}

// RegisterFont 注册一个字体族；同名字体后注册者生效。
func (r *Renderer) RegisterFont(name string, res Resource) error {
	if name == "" {
		return fmt.Errorf("字体名称为空")
	}
	data := res.Bytes
	if len(data) == 0 && res.Path != "" {
		var err error
		if data, err = os.ReadFile(r.resolvePath(res.Path)); err != nil {
			return fmt.Errorf("读取字体 %s 失败: %w", name, err)
		}
	}
	if len(data) == 0 {
		return fmt.Errorf("字体 %s 缺少 src", name)
	}
	r.fontMu.Lock()
	defer r.fontMu.Unlock()
	r.fontBlobs[name] = data
	delete(r.fontFamilies, name)
	return nil
}

func (r *Renderer) resolvePath(path string) string {
	if filepath.IsAbs(path) || r.baseDir == "" {
		return path
	}
	return filepath.Join(r.baseDir, path)
}

// Rasterize 绘制树中所有可见节点并栅格化，输出尺寸为树尺寸 × scale 像素。
func (r *Renderer) Rasterize(ctx context.Context, tree *scene.Tree, scale float64) (image.Image, error) {
	if tree == nil {
		return nil, fmt.Errorf("渲染树为空")
	}
	if tree.Width <= 0 || tree.Height <= 0 {
		return nil, fmt.Errorf("渲染树尺寸无效: %gx%g", tree.Width, tree.Height)
	}
	if scale <= 0 {
		scale = renderer.DefaultScale
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := canvas.New(toMm(tree.Width), toMm(tree.Height))
	cctx := canvas.NewContext(c)
	cctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与编辑画布保持左上角为原点

	cctx.SetFillColor(canvas.White)
	cctx.SetStrokeColor(noFill)
	cctx.DrawPath(0, 0, canvas.Rectangle(toMm(tree.Width), toMm(tree.Height)))

	for _, node := range tree.Visible() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.drawNode(cctx, node, scale); err != nil {
			return nil, err
		}
	}
	img := rasterizer.Draw(c, canvas.DPMM(scale*layout.MmToPx), canvas.DefaultColorSpace)
	return img, nil
}

func (r *Renderer) drawNode(ctx *canvas.Context, node *scene.Node, scale float64) error {
	switch node.Kind {
	case scene.NodeImage:
		return r.drawImage(ctx, node, scale)
	case scene.NodeEditable:
		drawFrame(ctx, node.Box, editBorder, editBorderWidth)
		lines, err := r.LayoutLines(node.Text, node.Box.Width-2*textPadding, node.Font, node.LineHeight)
		if err != nil {
			return err
		}
		return r.drawText(ctx, node, lines)
	case scene.NodeLabel:
		return r.drawText(ctx, node, node.Lines)
	case scene.NodeDecoration:
		switch node.Decoration {
		case scene.DecorCaptionToggle:
			ctx.SetFillColor(selectionColor)
			ctx.SetStrokeColor(noFill)
			ctx.DrawPath(toMm(node.Box.X), toMm(node.Box.Y), canvas.Rectangle(toMm(node.Box.Width), toMm(node.Box.Height)))
		default:
			drawFrame(ctx, node.Box, selectionColor, selectionWidth)
		}
	}
	return nil
}

func drawFrame(ctx *canvas.Context, box layout.Rect, col color.Color, width float64) {
	ctx.SetFillColor(noFill)
	ctx.SetStrokeColor(col)
	ctx.SetStrokeWidth(width)
	ctx.DrawPath(toMm(box.X), toMm(box.Y), canvas.Rectangle(toMm(box.Width), toMm(box.Height)))
}

// drawText 以盒子左上角加内边距为起点逐行绘制。所有输入为 px，绘制时转为 mm。
func (r *Renderer) drawText(ctx *canvas.Context, node *scene.Node, lines []scene.TextLine) error {
	face, err := r.fontFace(node.Font, textColor)
	if err != nil {
		return err
	}
	metrics := face.Metrics()
	x := toMm(node.Box.X + textPadding)
	cursorY := toMm(node.Box.Y + textPadding)
	for _, line := range lines {
		cursorY += toMm(line.GapBefore)
		lineHeight := line.Height
		if lineHeight <= 0 {
			lineHeight = math.Max(node.LineHeight, node.Font.Size)
		}
		// 基线位置：行顶部加字体上升部（Ascent，mm）
		baseline := cursorY + metrics.Ascent
		ctx.DrawText(x, baseline, canvas.NewTextLine(face, line.Content, canvas.Left))
		cursorY += toMm(lineHeight)
	}
	return nil
}

func (r *Renderer) drawImage(ctx *canvas.Context, node *scene.Node, scale float64) error {
	box := node.Box
	if box.Width <= 0 || box.Height <= 0 {
		return nil
	}
	if node.Picture == nil || len(node.Picture.Data) == 0 {
		ctx.SetFillColor(placeholder)
		ctx.SetStrokeColor(noFill)
		ctx.DrawPath(toMm(box.X), toMm(box.Y), canvas.Rectangle(toMm(box.Width), toMm(box.Height)))
		return nil
	}
	src, err := r.decode(node.Picture)
	if err != nil {
		return err
	}
	// 按盒子像素尺寸重采样，允许单边缩放造成的拉伸。
	w := int(math.Max(math.Round(box.Width*scale), 1))
	h := int(math.Max(math.Round(box.Height*scale), 1))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	ctx.DrawImage(toMm(box.X), toMm(box.Y), dst, canvas.DPMM(float64(w)/toMm(box.Width)))
	return nil
}

func (r *Renderer) decode(p *document.Picture) (image.Image, error) {
	r.imageMu.Lock()
	defer r.imageMu.Unlock()
	if img, ok := r.images[p]; ok {
		return img, nil
	}
	img, _, err := image.Decode(bytes.NewReader(p.Data))
	if err != nil {
		return nil, fmt.Errorf("解码图片 %s 失败: %w", p.Name, err)
	}
	r.images[p] = img
	return img, nil
}

// LayoutLines 实现 scene.Typesetter 接口，使用贪心换行算法。
// 约定：width/lineHeight 与返回值均为 px；与字体系统交互时在边界做 px↔pt/mm 换算。
func (r *Renderer) LayoutLines(content string, width float64, font scene.Font, lineHeight float64) ([]scene.TextLine, error) {
	face, err := r.fontFace(font, textColor)
	if err != nil {
		return nil, err
	}
	measure := func(s string) float64 { return toPx(face.TextWidth(s)) }
	lines := greedyWrapTokens(content, width, measure)
	textHeight := toPx(face.Metrics().LineHeight)
	if textHeight <= 0 {
		textHeight = lineHeight
	}
	leading := math.Max(lineHeight-textHeight, 0)
	if len(lines) == 0 {
		lines = []scene.TextLine{{Content: "", Width: 0, Height: textHeight}}
	}
	for i := range lines {
		if lines[i].Height <= 0 {
			lines[i].Height = textHeight
		}
		if i == 0 {
			lines[i].GapBefore = 0
		} else {
			lines[i].GapBefore = leading
		}
	}
	return lines, nil
}

func (r *Renderer) fontFace(font scene.Font, col color.Color) (*canvas.FontFace, error) {
	family, err := r.ensureFontFamily(font.Family)
	if err != nil {
		return nil, err
	}
	size := font.Size
	if size <= 0 {
		size = document.DefaultTextFontSize
	}
	return family.Face(size*layout.PxToPt, col, canvas.FontRegular, canvas.FontNormal), nil
}

// ensureFontFamily 依次查找注册字体与内置字体，都失败时使用回退字体。
func (r *Renderer) ensureFontFamily(name string) (*canvas.FontFamily, error) {
	if name == "" {
		name = fonts.Default
	}
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if family, ok := r.fontFamilies[name]; ok {
		return family, nil
	}
	data, ok := r.fontBlobs[name]
	if !ok {
		var err error
		if data, err = fonts.Load(name); err != nil {
			data = nil
		}
	}
	if data != nil {
		family := canvas.NewFontFamily(name)
		if err := family.LoadFont(data, 0, canvas.FontRegular); err == nil {
			r.fontFamilies[name] = family
			return family, nil
		}
	}
	fallback, err := r.fallback()
	if err != nil {
		return nil, err
	}
	r.fontFamilies[name] = fallback
	return fallback, nil
}

func (r *Renderer) fallback() (*canvas.FontFamily, error) {
	if r.fallbackFamily != nil {
		return r.fallbackFamily, nil
	}
	data, err := fonts.Load(fonts.Default)
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily("folio-fallback")
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, fmt.Errorf("加载回退字体失败: %w", err)
	}
	r.fallbackFamily = family
	return family, nil
}

// toMm 将像素(px)转换为毫米(mm)。
func toMm(px float64) float64 { return px * layout.PxToMm }

// toPx 将毫米(mm)转换为像素(px)。
func toPx(mm float64) float64 { return mm * layout.MmToPx }

// greedyWrapTokens 优先在空白处分割，超过限制时在词内拆分；显式换行总是生效。
// measure 返回字符串宽度，单位与 width 相同。
func greedyWrapTokens(content string, width float64, measure func(string) float64) []scene.TextLine {
	limit := width
	if limit <= 0 {
		limit = math.MaxFloat64
	}

	tokens := tokenizeContent(content)
	var lines []scene.TextLine
	var builder strings.Builder
	currentWidth := 0.0

	emit := func(force bool) {
		if builder.Len() == 0 {
			if force {
				lines = append(lines, scene.TextLine{Content: "", Width: 0})
			}
			return
		}
		lines = append(lines, scene.TextLine{
			Content: builder.String(),
			Width:   currentWidth,
		})
		builder.Reset()
		currentWidth = 0
	}

	appendToken := func(token string) {
		builder.WriteString(token)
		currentWidth += measure(token)
	}

	for _, token := range tokens {
		if token == "\n" {
			emit(true)
			continue
		}

		tokenWidth := measure(token)
		if currentWidth > 0 && currentWidth+tokenWidth > limit {
			emit(false)
		}
		if tokenWidth <= limit {
			appendToken(token)
			if currentWidth > limit {
				emit(false)
			}
			continue
		}

		for _, chunk := range splitTokenByWidth(token, limit, measure) {
			chunkWidth := measure(chunk)
			if currentWidth > 0 && currentWidth+chunkWidth > limit {
				emit(false)
			}
			appendToken(chunk)
			if currentWidth > limit {
				emit(false)
			}
		}
	}

	emit(true)
	return lines
}

func tokenizeContent(s string) []string {
	var tokens []string
	var builder strings.Builder
	lastWasSpace := false
	flush := func() {
		if builder.Len() == 0 {
			return
		}
		tokens = append(tokens, builder.String())
		builder.Reset()
	}

	for _, r := range s {
		if r == '\r' {
			continue
		}
		if r == '\n' {
			flush()
			tokens = append(tokens, "\n")
			lastWasSpace = false
			continue
		}
		isSpace := unicode.IsSpace(r)
		if builder.Len() == 0 {
			lastWasSpace = isSpace
		} else if lastWasSpace != isSpace {
			flush()
			lastWasSpace = isSpace
		}
		builder.WriteRune(r)
	}
	flush()
	return tokens
}

func splitTokenByWidth(token string, limit float64, measure func(string) float64) []string {
	if limit <= 0 || limit == math.MaxFloat64 {
		return []string{token}
	}
	var parts []string
	var builder strings.Builder
	for _, r := range token {
		builder.WriteRune(r)
		if measure(builder.String()) > limit && builder.Len() > 1 {
			runes := []rune(builder.String())
			parts = append(parts, string(runes[:len(runes)-1]))
			builder.Reset()
			builder.WriteRune(r)
		}
	}
	if builder.Len() > 0 {
		parts = append(parts, builder.String())
	}
	return parts
}

// RegisterFontFile registers a font family from a file path.
func (r *Renderer) RegisterFontFile(name, path string) error {
	return r.RegisterFont(name, Resource{Path: path})
}
