package util

import (
	"fmt"
	"io"
	"os"

	"github.com/common-nighthawk/go-figure"
)

// 定义颜色常量
const (
	ColorReset  = "\x1b[0m"
	ColorRed    = "\x1b[1;31m"
	ColorGreen  = "\x1b[1;32m"
	ColorYellow = "\x1b[1;33m"
	ColorBlue   = "\x1b[1;34m"
	ColorCyan   = "\x1b[1;36m"
)

var colors = map[string]string{
	"ColorRed":    ColorRed,
	"ColorGreen":  ColorGreen,
	"ColorYellow": ColorYellow,
	"ColorBlue":   ColorBlue,
	"ColorCyan":   ColorCyan,
}

// 字符串转 ANSI 颜色码，未知名称不着色
func colorCode(name string) string {
	if c, ok := colors[name]; ok {
		return c
	}
	return ColorReset
}

// WriteBanner 输出整体统一颜色的 ASCII banner，末行附带版本号
func WriteBanner(w io.Writer, text, version, color string) {
	fig := figure.NewFigure(text, "", true)
	ansiColor := colorCode(color)
	for _, line := range fig.Slicify() {
		fmt.Fprintln(w, ansiColor+line+ColorReset)
	}
	if version != "" {
		fmt.Fprintf(w, "%s  version %s%s\n", ansiColor, version, ColorReset)
	}
}

// PrintBanner 打印到标准输出
func PrintBanner(text, version, color string) {
	WriteBanner(os.Stdout, text, version, color)
}
