package request

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
)

// ErrMalformedRequest はリクエストを解析できなかったことを表す
// 原因の詳細はラップされるが、呼び出し側は区別せず400を返す
var ErrMalformedRequest = errors.New("malformed request")

// DefaultMaxLineBytes はリクエスト行・ヘッダー行1行あたりの上限
const DefaultMaxLineBytes = 64 << 10

// Parser はリクエストの解析器
// ゼロ値はボディ上限なしで使用できる
type Parser struct {
	MaxBodyBytes int64 // 0以下なら無制限
	MaxLineBytes int   // 0以下なら DefaultMaxLineBytes
}

// Parse はデフォルト設定で1リクエストを解析する
func Parse(r io.Reader) (*Request, error) {
	var p Parser
	return p.Parse(r)
}

// Parse はストリームの先頭から1リクエストを読み取る
func (p *Parser) Parse(r io.Reader) (*Request, error) {
	var br *bufio.Reader
	if casted, ok := r.(*bufio.Reader); ok {
		br = casted
	} else {
		br = bufio.NewReader(r)
	}

	pr := &parseState{p: p, r: br, req: &Request{}}
	for _, step := range []func() error{
		pr.readRequestLine,
		pr.readHeaders,
		pr.readBody,
		pr.resolveTarget,
	} {
		if err := step(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
		}
	}
	return pr.req, nil
}

type parseState struct {
	p   *Parser
	r   *bufio.Reader
	req *Request
}

func (s *parseState) maxLine() int {
	if s.p.MaxLineBytes > 0 {
		return s.p.MaxLineBytes
	}
	return DefaultMaxLineBytes
}

// readLine は行末のCRLFを除いた1行を返す
// bufio のバッファに収まらない行は連結し、上限を超えたらエラーにする
func (s *parseState) readLine() (string, error) {
	var line []byte
	for {
		l, more, err := s.r.ReadLine()
		if err != nil {
			return "", err
		}
		if len(line)+len(l) > s.maxLine() {
			return "", errors.New("line too long")
		}
		if line == nil && !more {
			return string(l), nil
		}
		line = append(line, l...)
		if !more {
			break
		}
	}
	return string(line), nil
}

func (s *parseState) readRequestLine() error {
	rl, err := s.readLine()
	if err != nil {
		return fmt.Errorf("failed to read request line: %w", err)
	}
	fields := strings.Split(rl, " ")
	if len(fields) < 2 {
		return fmt.Errorf("invalid request line: %q", rl)
	}
	method, ok := ParseMethod(fields[0])
	if !ok {
		return fmt.Errorf("unknown method: %q", fields[0])
	}
	s.req.Method = method
	s.req.Target = fields[1]
	if len(fields) > 2 {
		s.req.Version = fields[2]
	}
	return nil
}

func (s *parseState) readHeaders() error {
	headers := make(Header)
	for {
		line, err := s.readLine()
		if err != nil {
			return fmt.Errorf("failed to read headers: %w", err)
		}
		if len(line) == 0 {
			break
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			return fmt.Errorf("invalid header format: %q", line)
		}
		headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}
	s.req.Headers = headers
	return nil
}

// contentLength は数値でない値を0として扱う
func (s *parseState) contentLength() (int64, error) {
	cls, ok := s.req.Headers["content-length"]
	if !ok {
		return 0, nil
	}
	cl, err := strconv.ParseInt(cls, 10, 64)
	if err != nil {
		return 0, nil
	}
	if cl < 0 {
		return 0, fmt.Errorf("negative content-length: %d", cl)
	}
	if s.p.MaxBodyBytes > 0 && cl > s.p.MaxBodyBytes {
		return 0, fmt.Errorf("content-length %d exceeds limit %d", cl, s.p.MaxBodyBytes)
	}
	return cl, nil
}

func (s *parseState) readBody() error {
	cl, err := s.contentLength()
	if err != nil {
		return err
	}
	if cl == 0 {
		return nil
	}
	// 宣言された長さでは確保せず、実際に届いた分だけバッファを伸ばす
	var body bytes.Buffer
	n, err := io.CopyN(&body, s.r, cl)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("truncated body: read %d of %d bytes: %w", n, cl, err)
	}
	s.req.Body = body.String()
	return nil
}

// resolveTarget はrequest-targetからパスとパラメーターを取り出す
func (s *parseState) resolveTarget() error {
	target := s.req.Target
	if !s.req.Headers.Has("host") {
		// absolute-form
		u, err := url.Parse(target)
		if err != nil {
			return fmt.Errorf("invalid request-target: %w", err)
		}
		if !u.IsAbs() {
			return fmt.Errorf("request-target is not absolute without host header: %q", target)
		}
		target = u.EscapedPath()
		if target == "" {
			target = "/"
		}
		if u.RawQuery != "" {
			target += "?" + u.RawQuery
		}
	}

	rawPath, rawQuery, _ := strings.Cut(target, "?")
	path, err := url.PathUnescape(rawPath)
	if err != nil {
		return fmt.Errorf("invalid path escape: %w", err)
	}
	s.req.Path = path

	params := make(map[string]string)
	if err := mergeParams(params, rawQuery); err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}
	// POSTのボディはクエリの後に処理するので同名キーはボディが優先される
	if s.req.Method == MethodPost {
		if err := mergeParams(params, s.req.Body); err != nil {
			return fmt.Errorf("invalid form body: %w", err)
		}
	}
	s.req.Params = params
	return nil
}

// mergeParams は key=value を & で連結した文字列を dst に上書きで取り込む
// 空の区間は読み飛ばす
func mergeParams(dst map[string]string, raw string) error {
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, found := strings.Cut(pair, "=")
		if !found {
			return fmt.Errorf("parameter without '=': %q", pair)
		}
		key, err := url.QueryUnescape(k)
		if err != nil {
			return err
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return err
		}
		dst[key] = value
	}
	return nil
}
