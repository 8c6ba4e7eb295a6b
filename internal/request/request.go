// Package request は1接続分のバイト列をRequestへ変換する
//
// 解析は リクエスト行 → ヘッダー → ボディ の順に一度だけ進み、
// どの段階の失敗も ErrMalformedRequest に集約される。
package request

import (
	"strings"
)

// Method はHTTPメソッドを表す
type Method string

// HTTP/1.1 で定義されているメソッド
const (
	MethodGet     Method = "GET"
	MethodHead    Method = "HEAD"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodConnect Method = "CONNECT"
	MethodOptions Method = "OPTIONS"
	MethodTrace   Method = "TRACE"
)

var knownMethods = map[string]Method{
	string(MethodGet):     MethodGet,
	string(MethodHead):    MethodHead,
	string(MethodPost):    MethodPost,
	string(MethodPut):     MethodPut,
	string(MethodDelete):  MethodDelete,
	string(MethodConnect): MethodConnect,
	string(MethodOptions): MethodOptions,
	string(MethodTrace):   MethodTrace,
}

// ParseMethod は大文字小文字を区別せずにメソッドを判定する
func ParseMethod(token string) (Method, bool) {
	m, ok := knownMethods[strings.ToUpper(token)]
	return m, ok
}

// Header はヘッダー名を小文字化して保持する
// 同名ヘッダーは後勝ちで1つの値だけを持つ
type Header map[string]string

// Get は大文字小文字を区別せずにヘッダー値を取得する
func (h Header) Get(name string) string {
	return h[strings.ToLower(name)]
}

// Has はヘッダーが存在するかを返す
func (h Header) Has(name string) bool {
	_, ok := h[strings.ToLower(name)]
	return ok
}

// Request は解析済みのリクエスト
// 生成後は変更しない
type Request struct {
	Method  Method
	Target  string // リクエスト行に書かれていたままのrequest-target
	Version string // 省略された場合は空
	Path    string // デコード済み、クエリを含まない
	Params  map[string]string
	Headers Header
	Body    string
}

// Param はパラメーター値を返す。存在しない場合は空文字列
func (r *Request) Param(key string) string {
	return r.Params[key]
}
