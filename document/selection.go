package document

// Selection 是对至多一个元素的弱引用，只做查找，不持有元素。
type Selection struct {
	doc         *Document
	id          ID
	fontControl float64
}

// Selection returns the document's selection state.
func (d *Document) Selection() *Selection { return &d.sel }

// ID returns the selected element id, if any.
func (s *Selection) ID() (ID, bool) {
	return s.id, s.id != ""
}

// FontControl 返回共享字号控件当前的值，跟随选中文本元素的字号。
func (s *Selection) FontControl() float64 { return s.fontControl }

// SelectOnly 清除之前的选中标记，选中 id，并把其字号载入字号控件。
func (s *Selection) SelectOnly(id ID) error {
	el, err := s.doc.lookup(id)
	if err != nil {
		return err
	}
	if prev, ok := s.doc.elements[s.id]; ok && prev != el {
		prev.Selected = false
	}
	s.id = id
	el.Selected = true
	if el.Kind.HasText() {
		s.fontControl = el.FontSize
	}
	s.doc.notify(SelectionChanged, id)
	return nil
}

// Clear removes the selection mark and forgets the selected element.
func (s *Selection) Clear() {
	if s.id == "" {
		return
	}
	prev := s.id
	if el, ok := s.doc.elements[prev]; ok {
		el.Selected = false
	}
	s.id = ""
	s.doc.notify(SelectionChanged, prev)
}

// ApplyFontSize 把字号应用到选中的文本元素；没有选中或元素不含文本时不做任何事。
func (s *Selection) ApplyFontSize(px float64) bool {
	el, ok := s.doc.elements[s.id]
	if !ok || !el.Kind.HasText() {
		return false
	}
	return s.doc.SetFontSize(el.ID, px) == nil
}

// ApplyFontFamily 与 ApplyFontSize 相同，作用于字体。
func (s *Selection) ApplyFontFamily(family string) bool {
	el, ok := s.doc.elements[s.id]
	if !ok || !el.Kind.HasText() {
		return false
	}
	return s.doc.SetFontFamily(el.ID, family) == nil
}
