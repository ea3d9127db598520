package script

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ByLCY/folio/dsl"
	"github.com/ByLCY/folio/layout"
	"github.com/ByLCY/folio/renderer"
)

// Resource 描述脚本 resources 段中声明的图片或字体。
type Resource struct {
	Name string `json:"name"`
	Src  string `json:"src"`
}

// Resources 为按名称索引的资源集合。
type Resources struct {
	Images map[string]Resource `json:"images"`
	Fonts  map[string]Resource `json:"fonts"`
}

// Plan 是编译后的脚本：页面参数、元信息、资源以及按顺序回放的编辑步骤。
type Plan struct {
	Name        string
	Version     string
	Meta        renderer.Meta
	Resources   Resources
	Paper       layout.PaperSize
	Orientation layout.Orientation
	Export      ExportSettings
	Steps       []*dsl.Command
}

// ExportSettings 来自 meta 段的 `export: { scale: 2, quality: 0.85 }`，nil 表示沿用导出流程的默认值。
type ExportSettings struct {
	Scale       *float64 `json:"scale,omitempty"`
	JPEGQuality *float64 `json:"quality,omitempty"`
}

// Compile 校验 AST 并提取资源、元信息与页面。
func Compile(s *dsl.Script) (*Plan, error) {
	if s == nil {
		return nil, fmt.Errorf("脚本为空")
	}
	page, err := onlyPage(s)
	if err != nil {
		return nil, err
	}
	paper, orientation, err := resolvePage(page.Spec)
	if err != nil {
		return nil, err
	}
	settings, err := collectExport(s)
	if err != nil {
		return nil, err
	}
	plan := &Plan{
		Name:        s.Name,
		Version:     s.Version,
		Meta:        collectMeta(s),
		Resources:   collectResources(s),
		Paper:       paper,
		Orientation: orientation,
		Export:      settings,
	}
	if page.Block != nil {
		for _, stmt := range page.Block.Statements {
			if stmt.Command == nil {
				continue
			}
			plan.Steps = append(plan.Steps, stmt.Command)
		}
	}
	return plan, nil
}

func onlyPage(s *dsl.Script) (*dsl.PageSection, error) {
	var page *dsl.PageSection
	for _, section := range s.Sections {
		if section.Page == nil {
			continue
		}
		if page != nil {
			return nil, fmt.Errorf("脚本只能包含一个 page 段落")
		}
		page = section.Page
	}
	if page == nil {
		return nil, fmt.Errorf("脚本中缺少 page 段落")
	}
	return page, nil
}

func resolvePage(spec dsl.PageSpec) (layout.PaperSize, layout.Orientation, error) {
	paper, err := layout.LookupPaper(spec.Size)
	if err != nil {
		return layout.PaperSize{}, layout.Portrait, err
	}
	orientation := layout.Portrait
	for _, token := range spec.Params {
		o, err := layout.ParseOrientation(token.Value)
		if err != nil {
			return layout.PaperSize{}, layout.Portrait, err
		}
		orientation = o
	}
	return paper, orientation, nil
}

func collectResources(s *dsl.Script) Resources {
	res := Resources{
		Images: map[string]Resource{},
		Fonts:  map[string]Resource{},
	}
	for _, section := range s.Sections {
		if section.Resources == nil || section.Resources.Block == nil {
			continue
		}
		for _, stmt := range section.Resources.Block.Statements {
			if stmt.Command == nil || len(stmt.Command.Args) == 0 {
				continue
			}
			r := Resource{Name: stmt.Command.Args[0].Value, Src: blockString(stmt.Command.Block, "src")}
			switch stmt.Command.Name {
			case "image":
				res.Images[r.Name] = r
			case "font":
				res.Fonts[r.Name] = r
			}
		}
	}
	return res
}

func collectMeta(s *dsl.Script) renderer.Meta {
	meta := renderer.Meta{Creator: "folio"}
	for _, section := range s.Sections {
		if section.Meta == nil || section.Meta.Block == nil {
			continue
		}
		for _, stmt := range section.Meta.Block.Statements {
			if stmt.Assignment == nil {
				continue
			}
			switch strings.ToLower(stmt.Assignment.Key) {
			case "title":
				meta.Title = valueToString(stmt.Assignment.Value)
			case "author":
				meta.Author = valueToString(stmt.Assignment.Value)
			case "subject":
				meta.Subject = valueToString(stmt.Assignment.Value)
			case "creator":
				meta.Creator = valueToString(stmt.Assignment.Value)
			case "keywords":
				meta.Keywords = valueToStringSlice(stmt.Assignment.Value)
			}
		}
	}
	return meta
}

func collectExport(s *dsl.Script) (ExportSettings, error) {
	var settings ExportSettings
	for _, section := range s.Sections {
		if section.Meta == nil || section.Meta.Block == nil {
			continue
		}
		for _, stmt := range section.Meta.Block.Statements {
			a := stmt.Assignment
			if a == nil || !strings.EqualFold(a.Key, "export") {
				continue
			}
			if a.Value == nil || a.Value.Object == nil {
				return settings, fmt.Errorf("meta.export 必须是 { key: value } 形式")
			}
			for _, entry := range a.Value.Object.Entries {
				v, err := strconv.ParseFloat(valueToString(entry.Value), 64)
				if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
					return settings, fmt.Errorf("meta.export.%s 不是数字", entry.Key)
				}
				switch strings.ToLower(entry.Key) {
				case "scale":
					if v <= 0 {
						return settings, fmt.Errorf("meta.export.scale 必须大于 0: %g", v)
					}
					settings.Scale = &v
				case "quality":
					if v < 0 || v > 1 {
						return settings, fmt.Errorf("meta.export.quality 超出范围 [0,1]: %g", v)
					}
					settings.JPEGQuality = &v
				default:
					return settings, fmt.Errorf("meta.export 不支持的键 %s", entry.Key)
				}
			}
		}
	}
	return settings, nil
}

func blockString(block *dsl.Block, key string) string {
	if block == nil {
		return ""
	}
	for _, stmt := range block.Statements {
		if stmt.Assignment != nil && stmt.Assignment.Key == key {
			return valueToString(stmt.Assignment.Value)
		}
	}
	return ""
}

// parseArgs 把命令参数解析为名称与 key/value 对：第一个 Ident 为元素名（allowName 时）。
func parseArgs(args []*dsl.Lexeme, allowName bool) (string, map[string]string) {
	result := map[string]string{}
	if len(args) == 0 {
		return "", result
	}

	cursor := 0
	var name string
	if allowName && args[0].Type == "Ident" {
		name = args[0].Value
		cursor = 1
	}

	for cursor < len(args)-1 {
		result[args[cursor].Value] = args[cursor+1].Value
		cursor += 2
	}
	return name, result
}

func extractText(block *dsl.Block) string {
	if block == nil {
		return ""
	}
	var builder strings.Builder
	for _, stmt := range block.Statements {
		if stmt.Text != nil {
			builder.WriteString(string(stmt.Text.Value))
		}
	}
	return builder.String()
}

func valueToString(val *dsl.Value) string {
	if val == nil {
		return ""
	}
	switch {
	case val.String != nil:
		return string(*val.String)
	case val.Number != nil:
		return *val.Number
	case val.Expr != nil:
		var builder strings.Builder
		for _, part := range val.Expr.Parts {
			builder.WriteString(part.Value)
		}
		return builder.String()
	default:
		return ""
	}
}

func valueToStringSlice(val *dsl.Value) []string {
	if val == nil {
		return nil
	}
	if val.Array != nil {
		out := make([]string, 0, len(val.Array.Values))
		for _, item := range val.Array.Values {
			if s := valueToString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := valueToString(val); s != "" {
		return []string{s}
	}
	return nil
}
