// Package extract 收集抓取流程里用到的文本启发式：空白清理、日期、链接归一化、
// 文章 URL 判断、源码兜底提链以及 HTML 转 Markdown。
package extract

import (
	"strings"
	"unicode/utf8"
)

// PlaceholderTitle 候选链接暂时没有可用标题时的占位，详情页解析后再替换
const PlaceholderTitle = "待解析标题"

// Clean 把连续空白压成一个空格并去掉首尾空白
func Clean(s string) string {
	return strings.TrimSpace(spacesRe.ReplaceAllString(s, " "))
}

// PageTitle 取 <title> 中站点后缀之前的部分，例如 "标题 | 量子位" -> "标题"
func PageTitle(raw string) string {
	t, _, _ := strings.Cut(raw, "|")
	t, _, _ = strings.Cut(t, "-")
	return Clean(t)
}

// Abstract 取 Markdown 前 n 个字符并清理空白，作为摘要
func Abstract(markdown string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(markdown) > n {
		markdown = string([]rune(markdown)[:n])
	}
	return Clean(markdown)
}

// RuneLen 按字符（而非字节）计算长度，中文标题判断都用它
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
