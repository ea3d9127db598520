package fonts

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// Default 是未指定字体或字体加载失败时使用的内置字体。
const Default = "Go"

var builtin = map[string][]byte{
	"Go":             goregular.TTF,
	"Go Medium":      gomedium.TTF,
	"Go Bold":        gobold.TTF,
	"Go Italic":      goitalic.TTF,
	"Go Bold Italic": gobolditalic.TTF,
	"Go Mono":        gomono.TTF,
}

// Load 返回内置字体的字节数据，name 可写为 "embed:Go Bold" 或直接 "Go Bold"（不区分大小写）。
func Load(name string) ([]byte, error) {
	clean := strings.TrimSpace(strings.TrimPrefix(name, "embed:"))
	if data, ok := builtin[clean]; ok {
		return data, nil
	}
	for key, data := range builtin {
		if strings.EqualFold(key, clean) {
			return data, nil
		}
	}
	return nil, fmt.Errorf("读取内置字体 %s 失败: 不存在", name)
}

// Names lists the built-in font families in sorted order.
func Names() []string {
	out := make([]string, 0, len(builtin))
	for name := range builtin {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
