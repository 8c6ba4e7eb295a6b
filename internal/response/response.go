// Package response はレスポンスの組み立てとワイヤー形式への変換を担う
package response

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultBody はボディが空のまま送出されるときに代わりに書き込まれる
const DefaultBody = "Default Web Page"

// Response は1リクエスト分のレスポンス
type Response struct {
	StatusCode int
	Headers    map[string]string
	body       bytes.Buffer
	noBody     bool
}

// New はステータス200、空ボディのレスポンスを作成する
func New() *Response {
	return WithStatus(200)
}

// WithStatus は指定したステータスのレスポンスを作成する
func WithStatus(code int) *Response {
	return &Response{
		StatusCode: code,
		Headers:    make(map[string]string),
	}
}

// WithBody はステータスとボディを指定してレスポンスを作成する
func WithBody(code int, body string) *Response {
	res := WithStatus(code)
	res.AppendString(body)
	return res
}

// NotFound は404レスポンスを返す
func NotFound() *Response {
	return WithBody(404, "Not Found")
}

// BadRequest は400レスポンスを返す
func BadRequest() *Response {
	return WithBody(400, "Bad Request")
}

// NotImplemented は501レスポンスを返す
func NotImplemented() *Response {
	return WithBody(501, "Not Implemented")
}

// Overloaded はワーカープールが飽和したときの500レスポンスを返す
func Overloaded() *Response {
	return WithBody(500, "The server is currently overloaded, try again later")
}

// SetHeader はヘッダーを設定する。同名のヘッダーは上書きする
func (r *Response) SetHeader(name, value string) {
	r.Headers[name] = value
}

// Append はボディにバイト列を追加する
func (r *Response) Append(p []byte) {
	r.body.Write(p)
}

// AppendString はボディに文字列を追加する
func (r *Response) AppendString(s string) {
	r.body.WriteString(s)
}

// Body は現在のボディを返す
func (r *Response) Body() []byte {
	return r.body.Bytes()
}

// SuppressBody はボディ部を送出しないようにする (HEAD用)
// 既定のボディも書き込まれない
func (r *Response) SuppressBody() {
	r.noBody = true
}

// payload は実際に送出するボディ
func (r *Response) payload() []byte {
	if r.noBody {
		return nil
	}
	if r.body.Len() == 0 {
		return []byte(DefaultBody)
	}
	return r.body.Bytes()
}

func (r *Response) hasHeader(name string) bool {
	for k := range r.Headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// Bytes はレスポンスをワイヤー形式に変換する
// ステータス行には理由句を付けない
func (r *Response) Bytes() []byte {
	payload := r.payload()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d \r\n", r.StatusCode)
	for k, v := range r.Headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, v)
	}
	if !r.hasHeader("Content-Length") {
		fmt.Fprintf(&buf, "Content-Length: %s\r\n", strconv.Itoa(len(payload)))
	}
	if !r.hasHeader("Connection") {
		buf.WriteString("Connection: close\r\n")
	}
	buf.WriteString("\r\n")
	buf.Write(payload)
	return buf.Bytes()
}

// WriteTo はレスポンスを w に書き込む
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.Bytes())
	return int64(n), err
}
