// Package tmpl は HTML 中の {{ name }} プレースホルダーを置換する
package tmpl

import "regexp"

// 前後の空白は1文字まで。中身に波括弧は含まない
var placeholder = regexp.MustCompile(`\{\{\s?([^{}]*?)\s?\}\}`)

// Render は text 中のプレースホルダーを params の値で置換する
// 対応するキーがないプレースホルダーはそのまま残す。
// 置換後の値は再走査せず、そのままの文字列として埋め込む
func Render(text string, params map[string]string) string {
	if len(params) == 0 {
		return text
	}
	return placeholder.ReplaceAllStringFunc(text, func(match string) string {
		key := placeholder.FindStringSubmatch(match)[1]
		if value, ok := params[key]; ok {
			return value
		}
		return match
	})
}
