package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strconv"

	"github.com/ByLCY/folio/binding"
	"github.com/ByLCY/folio/document"
	"github.com/ByLCY/folio/dsl"
	"github.com/ByLCY/folio/editor"
	"github.com/ByLCY/folio/export"
	"github.com/ByLCY/folio/imagesource"
	"github.com/ByLCY/folio/interact"
	"github.com/ByLCY/folio/layout"
)

var (
	ErrUnknownElement  = errors.New("script: 未定义的元素")
	ErrUnknownResource = errors.New("script: 未定义的资源")
	ErrUnknownCommand  = errors.New("script: 未知命令")
)

// FontRegistry 接收脚本中声明的字体文件。
type FontRegistry interface {
	RegisterFontFile(name, path string) error
}

// Options 配置脚本回放。
type Options struct {
	BaseDir  string // 资源相对路径的根目录
	Data     any    // ${path} 插值数据
	Pipeline *export.Pipeline
	Fonts    FontRegistry
	Policy   interact.Policy
	Logger   *log.Logger
}

// Result 为回放结果。
type Result struct {
	Session  *editor.Session
	Elements map[string]document.ID
	Outputs  []*export.Output
}

type runner struct {
	plan    *Plan
	opts    Options
	session *editor.Session
	logger  *log.Logger
	result  *Result
}

// Run 在新的编辑会话上按顺序回放脚本中的编辑步骤。
// 返回错误时 Result 仍包含已执行步骤的状态。
func Run(ctx context.Context, plan *Plan, opts Options) (*Result, error) {
	if plan == nil {
		return nil, fmt.Errorf("脚本为空")
	}
	if opts.Pipeline == nil {
		return nil, fmt.Errorf("script: 缺少导出流程")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	if opts.Fonts != nil {
		for _, font := range plan.Resources.Fonts {
			if font.Src == "" {
				return nil, fmt.Errorf("字体 %s 缺少 src", font.Name)
			}
			if err := opts.Fonts.RegisterFontFile(font.Name, resolvePath(opts.BaseDir, font.Src)); err != nil {
				return nil, err
			}
		}
	}

	pipeline := *opts.Pipeline
	pipeline.Options.Paper = plan.Paper
	pipeline.Options.Orientation = plan.Orientation
	pipeline.Options.Meta = plan.Meta
	if plan.Export.Scale != nil {
		pipeline.Options.Scale = *plan.Export.Scale
	}
	if plan.Export.JPEGQuality != nil {
		pipeline.Options.JPEGQuality = *plan.Export.JPEGQuality
	}

	session := editor.New(&pipeline, editor.Options{
		Paper:       plan.Paper,
		Orientation: plan.Orientation,
		Policy:      opts.Policy,
		Logger:      logger,
	})
	r := &runner{
		plan:    plan,
		opts:    opts,
		session: session,
		logger:  logger,
		result:  &Result{Session: session, Elements: map[string]document.ID{}},
	}
	for _, cmd := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return r.result, err
		}
		if err := r.step(ctx, cmd); err != nil {
			return r.result, fmt.Errorf("第 %d 行 %s: %w", cmd.Pos.Line, cmd.Name, err)
		}
	}
	session.Wait()
	return r.result, nil
}

func (r *runner) step(ctx context.Context, cmd *dsl.Command) error {
	name, attrs := parseArgs(cmd.Args, true)
	switch cmd.Name {
	case "photo", "camera":
		src, err := r.source(attrs["image"], cmd.Name == "camera")
		if err != nil {
			return err
		}
		id, err := r.session.AddFromSource(ctx, src, cmd.Name == "camera", document.KindPhoto, point(attrs))
		if err != nil {
			return err
		}
		r.session.Wait()
		return r.bind(name, id)

	case "caption":
		src, err := r.source(attrs["image"], false)
		if err != nil {
			return err
		}
		f, err := src.PickFromGallery(ctx)
		if err != nil {
			return err
		}
		id, err := r.session.AddCaptionPhoto(ctx, f, point(attrs), r.text(attrs, cmd.Block))
		if err != nil {
			return err
		}
		r.session.Wait()
		if attrs["position"] == "above" {
			if err := r.session.ToggleCaption(id); err != nil {
				return err
			}
		}
		return r.bind(name, id)

	case "title", "text":
		add := r.session.AddFreeText
		if cmd.Name == "title" {
			add = r.session.AddTitle
		}
		id, err := add(point(attrs), r.text(attrs, cmd.Block))
		if err != nil {
			return err
		}
		return r.bind(name, id)

	case "select":
		id, err := r.lookup(name)
		if err != nil {
			return err
		}
		return r.session.Select(id)

	case "click-background":
		r.session.PointerDown(interact.Origin{Region: interact.RegionBackground})
		r.session.PointerUp()
		return nil

	case "font-size":
		if len(cmd.Args) == 0 {
			return fmt.Errorf("缺少字号")
		}
		px := layout.ParseRawLengthStr(cmd.Args[0].Value).ToPX()
		ok, err := r.session.ApplyFontSize(px)
		if err == nil && !ok {
			r.logger.Printf("[INFO] 未选中文本元素，忽略 font-size %g", px)
		}
		return err

	case "font-family":
		if len(cmd.Args) == 0 {
			return fmt.Errorf("缺少字体名称")
		}
		ok, err := r.session.ApplyFontFamily(cmd.Args[0].Value)
		if err == nil && !ok {
			r.logger.Printf("[INFO] 未选中文本元素，忽略 font-family %s", cmd.Args[0].Value)
		}
		return err

	case "drag":
		id, err := r.lookup(name)
		if err != nil {
			return err
		}
		return r.gesture(interact.Origin{Element: id, Region: interact.RegionBody}, attrs)

	case "resize":
		id, err := r.lookup(name)
		if err != nil {
			return err
		}
		handle, err := interact.ParseHandle(attrs["handle"])
		if err != nil {
			return err
		}
		return r.gesture(interact.Origin{Element: id, Region: interact.RegionHandle, Handle: handle}, attrs)

	case "toggle-caption":
		id, err := r.lookup(name)
		if err != nil {
			return err
		}
		return r.session.ToggleCaption(id)

	case "edit":
		id, err := r.lookup(name)
		if err != nil {
			return err
		}
		return r.session.SetText(id, r.text(attrs, cmd.Block))

	case "delete":
		id, err := r.lookup(name)
		if err != nil {
			return err
		}
		if err := r.session.Delete(id); err != nil {
			return err
		}
		delete(r.result.Elements, name)
		return nil

	case "wait":
		r.session.Wait()
		return nil

	case "export":
		return r.export(ctx, cmd)
	}
	return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name)
}

// gesture 模拟一次按下、移动、抬起。steps 把位移拆成多次增量移动。
func (r *runner) gesture(o interact.Origin, attrs map[string]string) error {
	if !r.session.PointerDown(o) {
		return fmt.Errorf("无法在 %s 上开始手势", o.Region)
	}
	defer r.session.PointerUp()

	dx := layout.ParseRawLengthStr(attrs["dx"]).ToPX()
	dy := layout.ParseRawLengthStr(attrs["dy"]).ToPX()
	steps := 1
	if v, err := strconv.Atoi(attrs["steps"]); err == nil && v > 0 {
		steps = v
	}
	for i := 0; i < steps; i++ {
		if err := r.session.PointerMove(dx/float64(steps), dy/float64(steps)); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) export(ctx context.Context, cmd *dsl.Command) error {
	if len(cmd.Args) == 0 {
		return fmt.Errorf("缺少导出格式")
	}
	format, err := export.ParseFormat(cmd.Args[0].Value)
	if err != nil {
		return err
	}
	_, attrs := parseArgs(cmd.Args[1:], false)

	var out *export.Output
	if q, ok := attrs["quality"]; ok && format == export.FormatJPEG {
		quality, err := strconv.ParseFloat(q, 64)
		if err != nil {
			return fmt.Errorf("无效的 JPEG 质量 %q", q)
		}
		out, err = r.session.ExportJPEG(ctx, quality)
		if err != nil {
			return err
		}
	} else {
		out, err = r.session.Export(ctx, format)
		if err != nil {
			return err
		}
	}
	r.result.Outputs = append(r.result.Outputs, out)
	return nil
}

func (r *runner) source(image string, camera bool) (*imagesource.Dir, error) {
	res, ok := r.plan.Resources.Images[image]
	if !ok || res.Src == "" {
		return nil, fmt.Errorf("%w: image %q", ErrUnknownResource, image)
	}
	src := &imagesource.Dir{Root: r.opts.BaseDir}
	if camera {
		src.Camera = []string{res.Src}
	} else {
		src.Gallery = []string{res.Src}
	}
	return src, nil
}

func (r *runner) bind(name string, id document.ID) error {
	if name == "" {
		return nil
	}
	if _, exists := r.result.Elements[name]; exists {
		return fmt.Errorf("元素名称 %s 重复", name)
	}
	r.result.Elements[name] = id
	return nil
}

func (r *runner) lookup(name string) (document.ID, error) {
	id, ok := r.result.Elements[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownElement, name)
	}
	return id, nil
}

// text 优先使用 text 参数，其次使用命令块中的字符串字面量，并做数据插值。
func (r *runner) text(attrs map[string]string, block *dsl.Block) string {
	content, ok := attrs["text"]
	if !ok {
		content = extractText(block)
	}
	return binding.Interpolate(content, r.opts.Data)
}

func point(attrs map[string]string) layout.Point {
	return layout.Point{
		X: layout.ParseRawLengthStr(attrs["x"]).ToPX(),
		Y: layout.ParseRawLengthStr(attrs["y"]).ToPX(),
	}
}

func resolvePath(base, path string) string {
	if filepath.IsAbs(path) || base == "" {
		return path
	}
	return filepath.Join(base, path)
}
