package collector

import (
	"regexp"
	"strings"
)

// 保留 \t \n \r，其余控制字符一律去掉（PostgreSQL 不接受 NUL）
var controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

// CleanString 去掉控制字符并把非法 UTF-8 替换为 U+FFFD
func CleanString(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToValidUTF8(s, "\uFFFD")
	return controlChars.ReplaceAllString(s, "")
}

// SanitizeItem 清理条目中所有文本字段，包括 Extra 中的字符串
func SanitizeItem(it Item) Item {
	it.ID = CleanString(it.ID)
	it.Title = CleanString(it.Title)
	it.Description = CleanString(it.Description)
	it.URL = CleanString(it.URL)
	it.MobileURL = CleanString(it.MobileURL)
	it.Cover = CleanString(it.Cover)
	it.Author = CleanString(it.Author)
	if s, ok := it.Hot.(string); ok {
		it.Hot = CleanString(s)
	}
	if it.Extra != nil {
		it.Extra = cleanMap(it.Extra)
	}
	return it
}

func cleanMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cleanValue(v)
	}
	return out
}

func cleanValue(v any) any {
	switch x := v.(type) {
	case string:
		return CleanString(x)
	case map[string]any:
		return cleanMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cleanValue(e)
		}
		return out
	default:
		return v
	}
}
