package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/ByLCY/folio/document"
	"github.com/ByLCY/folio/export"
	"github.com/ByLCY/folio/imagesource"
	"github.com/ByLCY/folio/interact"
	"github.com/ByLCY/folio/layout"
	"github.com/ByLCY/folio/scene"
)

// ErrCaptureInProgress 在导出进行中拒绝修改模型或再次导出。
var ErrCaptureInProgress = errors.New("editor: 正在导出，请稍后再试")

// Options 配置编辑会话。
type Options struct {
	Paper       layout.PaperSize
	Orientation layout.Orientation
	Policy      interact.Policy
	Logger      *log.Logger // nil 时丢弃日志
}

// DefaultOptions returns an A4 portrait session with the default gesture policy.
func DefaultOptions() Options {
	return Options{
		Paper:       layout.A4,
		Orientation: layout.Portrait,
		Policy:      interact.DefaultPolicy(),
	}
}

// Session 持有元素模型、选中状态、手势控制器与实时渲染树，并串行化所有访问。
// 导出期间（capturing）手势被忽略，修改返回 ErrCaptureInProgress，
// 异步得到的图片宽高比推迟到导出结束后再应用。
type Session struct {
	mu        sync.Mutex
	doc       *document.Document
	ctl       *interact.Controller
	tree      *scene.Tree
	capturing bool
	pending   map[document.ID]imagesource.Dimensions

	pipeline *export.Pipeline
	logger   *log.Logger
	probes   sync.WaitGroup
}

var _ export.Target = (*Session)(nil)

// New creates a session exporting through pipeline.
func New(pipeline *export.Pipeline, opts Options) *Session {
	paper := opts.Paper
	if paper.Width <= 0 || paper.Height <= 0 {
		paper = layout.A4
	}
	policy := opts.Policy
	if policy == (interact.Policy{}) {
		policy = interact.DefaultPolicy()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	s := &Session{
		doc:      document.New(layout.CanvasForPaper(paper, opts.Orientation)),
		pending:  map[document.ID]imagesource.Dimensions{},
		pipeline: pipeline,
		logger:   logger,
	}
	s.ctl = interact.New(s.doc, policy)
	s.ctl.SetGate(func() bool { return !s.capturing })
	s.tree = scene.Project(s.doc)
	s.doc.OnChange(func(document.Change) { s.tree = scene.Project(s.doc) })
	return s
}

func (s *Session) lockMutable() error {
	s.mu.Lock()
	if s.capturing {
		s.mu.Unlock()
		return ErrCaptureInProgress
	}
	return nil
}

// Canvas returns the page canvas.
func (s *Session) Canvas() layout.PageCanvas {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Canvas()
}

// Capturing reports whether an export is in flight.
func (s *Session) Capturing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capturing
}

// Elements returns a copy of all elements in z-order.
func (s *Session) Elements() []document.Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Elements()
}

// Element returns a copy of the element.
func (s *Session) Element(id document.ID) (document.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Element(id)
}

// Selected returns the selected element, if any.
func (s *Session) Selected() (document.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Selection().ID()
}

// FontControl returns the value shown in the shared font-size control.
func (s *Session) FontControl() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Selection().FontControl()
}

// Tree returns the live render tree. Callers must not modify it.
func (s *Session) Tree() *scene.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree
}

// WriteDebugJSON 将当前渲染树写入 JSON 文件。
func (s *Session) WriteDebugJSON(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return scene.WriteDebugJSON(s.tree, path)
}

// AddTitle 在 at 处新建标题。
func (s *Session) AddTitle(at layout.Point, text string) (document.ID, error) {
	return s.addText(document.KindTitle, at, text)
}

// AddFreeText 在 at 处新建文本框。
func (s *Session) AddFreeText(at layout.Point, text string) (document.ID, error) {
	return s.addText(document.KindFreeText, at, text)
}

func (s *Session) addText(kind document.Kind, at layout.Point, text string) (document.ID, error) {
	if err := s.lockMutable(); err != nil {
		return "", err
	}
	defer s.mu.Unlock()
	el, err := s.doc.Create(kind, at, document.Payload{Text: text})
	if err != nil {
		return "", err
	}
	return el.ID, nil
}

// AddPhoto 新建照片元素并在后台探测图片原始尺寸。
func (s *Session) AddPhoto(ctx context.Context, f *imagesource.File, at layout.Point) (document.ID, error) {
	return s.addPicture(ctx, document.KindPhoto, f, at, "")
}

// AddCaptionPhoto 新建带说明文字的照片元素。
func (s *Session) AddCaptionPhoto(ctx context.Context, f *imagesource.File, at layout.Point, caption string) (document.ID, error) {
	return s.addPicture(ctx, document.KindCaptionPhoto, f, at, caption)
}

// AddFromSource 从相册或相机获取文件后新建照片元素。
func (s *Session) AddFromSource(ctx context.Context, src imagesource.Source, camera bool, kind document.Kind, at layout.Point) (document.ID, error) {
	var (
		f   *imagesource.File
		err error
	)
	if camera {
		f, err = src.CaptureFromCamera(ctx)
	} else {
		f, err = src.PickFromGallery(ctx)
	}
	if err != nil {
		return "", err
	}
	return s.addPicture(ctx, kind, f, at, "")
}

func (s *Session) addPicture(ctx context.Context, kind document.Kind, f *imagesource.File, at layout.Point, caption string) (document.ID, error) {
	if f == nil {
		return "", fmt.Errorf("%w: %s", document.ErrMissingPicture, kind)
	}
	if err := s.lockMutable(); err != nil {
		return "", err
	}
	el, err := s.doc.Create(kind, at, document.Payload{Picture: f.Picture(), Text: caption})
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	s.probes.Add(1)
	go func() {
		defer s.probes.Done()
		s.applyProbe(el.ID, <-f.Probe(ctx))
	}()
	return el.ID, nil
}

// Wait blocks until every pending image probe has been applied or deferred.
func (s *Session) Wait() { s.probes.Wait() }

func (s *Session) applyProbe(id document.ID, res imagesource.ProbeResult) {
	if res.Err != nil {
		s.logger.Printf("[ERROR] 读取图片尺寸失败 element=%s: %v", id, res.Err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capturing {
		s.pending[id] = res.Dimensions
		s.logger.Printf("[INFO] 导出进行中，推迟应用宽高比 element=%s ratio=%.4f", id, res.Ratio())
		return
	}
	s.applyDimensions(id, res.Dimensions)
}

// applyDimensions 需持有锁。
func (s *Session) applyDimensions(id document.ID, dims imagesource.Dimensions) {
	el, err := s.doc.Element(id)
	if err != nil {
		// 元素在探测完成前已被删除
		return
	}
	if el.Picture != nil {
		el.Picture.Width, el.Picture.Height = dims.Width, dims.Height
	}
	if err := s.doc.SetAspectRatio(id, dims.Ratio()); err != nil {
		s.logger.Printf("[ERROR] 设置宽高比失败 element=%s: %v", id, err)
	}
}

// PointerDown 处理按下：背景清除选中；元素先被选中，再按区域尝试开始手势。
// 返回是否开始了拖动或缩放。导出期间忽略。
func (s *Session) PointerDown(o interact.Origin) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capturing {
		return false
	}
	if o.Region == interact.RegionBackground || o.Element == "" {
		s.doc.Selection().Clear()
		return false
	}
	if err := s.doc.Selection().SelectOnly(o.Element); err != nil {
		return false
	}
	return s.ctl.Begin(o)
}

// PointerMove applies an incremental pointer delta to the gesture in flight.
func (s *Session) PointerMove(dx, dy float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctl.Move(dx, dy)
}

// PointerUp ends the gesture in flight.
func (s *Session) PointerUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctl.End()
}

// Select marks id as the only selected element.
func (s *Session) Select(id document.ID) error {
	if err := s.lockMutable(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.doc.Selection().SelectOnly(id)
}

// ClearSelection 相当于点击画布背景。
func (s *Session) ClearSelection() error {
	if err := s.lockMutable(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.doc.Selection().Clear()
	return nil
}

// ApplyFontSize 设置选中元素的字号；没有选中或选中元素无文字时返回 false。
func (s *Session) ApplyFontSize(px float64) (bool, error) {
	if err := s.lockMutable(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()
	return s.doc.Selection().ApplyFontSize(px), nil
}

// ApplyFontFamily 设置选中元素的字体。
func (s *Session) ApplyFontFamily(family string) (bool, error) {
	if err := s.lockMutable(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()
	return s.doc.Selection().ApplyFontFamily(family), nil
}

// SetText 修改文字内容。
func (s *Session) SetText(id document.ID, text string) error {
	if err := s.lockMutable(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.doc.SetText(id, text)
}

// ToggleCaption 切换说明文字在图片上方或下方。
func (s *Session) ToggleCaption(id document.ID) error {
	if err := s.lockMutable(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.doc.ToggleCaptionPosition(id)
}

// Delete 删除元素；若正在对其进行手势则结束手势。
func (s *Session) Delete(id document.ID) error {
	if err := s.lockMutable(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if active, ok := s.ctl.Active(); ok && active == id {
		s.ctl.End()
	}
	delete(s.pending, id)
	return s.doc.Delete(id)
}

// Export 导出 PDF 或 JPEG（JPEG 使用流程配置的质量）。
func (s *Session) Export(ctx context.Context, format export.Format) (*export.Output, error) {
	return s.logExport(s.pipeline.Export(ctx, s, format))
}

// ExportJPEG exports a JPEG with an explicit quality in [0,1].
func (s *Session) ExportJPEG(ctx context.Context, quality float64) (*export.Output, error) {
	return s.logExport(s.pipeline.ExportJPEG(ctx, s, quality))
}

func (s *Session) logExport(out *export.Output, err error) (*export.Output, error) {
	if err != nil {
		s.logger.Printf("[ERROR] 导出失败: %v", err)
		return nil, err
	}
	s.logger.Printf("[INFO] 已导出 %s (%d bytes, %dx%d)", out.Name, len(out.Data), out.Width, out.Height)
	return out, nil
}

// BeginCapture 结束进行中的手势、清除选中并进入捕获状态。
func (s *Session) BeginCapture() (*scene.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capturing {
		return nil, ErrCaptureInProgress
	}
	s.ctl.End()
	s.doc.Selection().Clear()
	s.capturing = true
	return s.tree, nil
}

// EndCapture 退出捕获状态并应用导出期间推迟的宽高比。
func (s *Session) EndCapture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capturing = false
	for id, dims := range s.pending {
		delete(s.pending, id)
		s.applyDimensions(id, dims)
	}
}

// DocumentTitle returns the text of the first title element.
func (s *Session) DocumentTitle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, el := range s.doc.Elements() {
		if el.Kind == document.KindTitle {
			return el.Text
		}
	}
	return ""
}
