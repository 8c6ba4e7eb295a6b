package request

import (
	"errors"
	"strings"
	"testing"
)

func ExpectEqual(t *testing.T, expect, actual string) {
	t.Helper()
	if expect != actual {
		t.Errorf("Got %q, want %q", actual, expect)
	}
}

func mustParse(t *testing.T, raw string) *Request {
	t.Helper()
	req, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return req
}

func TestParse_GET(t *testing.T) {
	req := mustParse(t, "GET /index.html HTTP/1.1\r\nHost: localhost\r\nUser-Agent:  curl/8.0 \r\n\r\n")

	ExpectEqual(t, "GET", string(req.Method))
	ExpectEqual(t, "/index.html", req.Target)
	ExpectEqual(t, "HTTP/1.1", req.Version)
	ExpectEqual(t, "/index.html", req.Path)
	ExpectEqual(t, "localhost", req.Headers["host"])
	ExpectEqual(t, "curl/8.0", req.Headers["user-agent"])
	ExpectEqual(t, "", req.Body)
	if len(req.Params) != 0 {
		t.Errorf("Expected no params, got %v", req.Params)
	}
}

func TestParse_Methods(t *testing.T) {
	for _, m := range []string{"GET", "HEAD", "POST", "PUT", "DELETE", "CONNECT", "OPTIONS", "TRACE", "get", "Post"} {
		t.Run(m, func(t *testing.T) {
			req := mustParse(t, m+" / HTTP/1.1\r\nHost: a\r\n\r\n")
			ExpectEqual(t, strings.ToUpper(m), string(req.Method))
		})
	}
}

func TestParse_TwoTokenRequestLine(t *testing.T) {
	req := mustParse(t, "GET /\r\nHost: a\r\n\r\n")
	ExpectEqual(t, "/", req.Path)
	ExpectEqual(t, "", req.Version)
}

func TestParse_HeaderCaseInsensitive(t *testing.T) {
	req := mustParse(t, "POST /form.html HTTP/1.1\r\nHOST: a\r\nContent-Length: 3\r\n\r\na=b")

	ExpectEqual(t, "3", req.Headers["content-length"])
	ExpectEqual(t, "3", req.Headers.Get("Content-Length"))
	ExpectEqual(t, "3", req.Headers.Get("CONTENT-LENGTH"))
	if !req.Headers.Has("Host") {
		t.Error("Expected host header")
	}
}

func TestParse_DuplicateHeaderLastWins(t *testing.T) {
	req := mustParse(t, "GET / HTTP/1.1\r\nHost: a\r\nX-Test: one\r\nx-test: two\r\n\r\n")
	ExpectEqual(t, "two", req.Headers.Get("X-Test"))
}

func TestParse_HeaderValueWithColon(t *testing.T) {
	req := mustParse(t, "GET / HTTP/1.1\r\nHost: localhost:8080\r\n\r\n")
	ExpectEqual(t, "localhost:8080", req.Headers.Get("host"))
}

func TestParse_Body(t *testing.T) {
	req := mustParse(t, "PUT /x HTTP/1.1\r\nHost: a\r\nContent-Length: 11\r\n\r\nhello worldEXTRA")
	ExpectEqual(t, "hello world", req.Body)
}

func TestParse_NonNumericContentLength(t *testing.T) {
	req := mustParse(t, "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: abc\r\n\r\nname=x")
	ExpectEqual(t, "", req.Body)
	if _, ok := req.Params["name"]; ok {
		t.Error("Body should not have been read")
	}
}

func TestParse_QueryAndPostParams(t *testing.T) {
	raw := "POST /form.html?name=query&lang=go HTTP/1.1\r\nHost: a\r\nContent-Length: 17\r\n\r\nname=Ann&age=3%21"
	req := mustParse(t, raw)

	ExpectEqual(t, "/form.html", req.Path)
	ExpectEqual(t, "Ann", req.Param("name"))
	ExpectEqual(t, "go", req.Param("lang"))
	ExpectEqual(t, "3!", req.Param("age"))
}

func TestParse_QueryOnlyForGet(t *testing.T) {
	req := mustParse(t, "GET /page?x=1&x=2&y= HTTP/1.1\r\nHost: a\r\nContent-Length: 3\r\n\r\nz=9")

	ExpectEqual(t, "2", req.Param("x"))
	ExpectEqual(t, "", req.Param("y"))
	if _, ok := req.Params["y"]; !ok {
		t.Error("Expected empty param y to be present")
	}
	if _, ok := req.Params["z"]; ok {
		t.Error("Body params must only be merged for POST")
	}
}

func TestParse_PercentDecoding(t *testing.T) {
	req := mustParse(t, "GET /my%20page.html?q=a%26b+c HTTP/1.1\r\nHost: a\r\n\r\n")
	ExpectEqual(t, "/my page.html", req.Path)
	ExpectEqual(t, "a&b c", req.Param("q"))

	// エンコードされた ? はパスの一部のまま
	req = mustParse(t, "GET /a%3Fb=c HTTP/1.1\r\nHost: a\r\n\r\n")
	ExpectEqual(t, "/a?b=c", req.Path)
	if len(req.Params) != 0 {
		t.Errorf("Expected no params, got %v", req.Params)
	}
}

func TestParse_AbsoluteFormWithoutHost(t *testing.T) {
	req := mustParse(t, "GET http://example.com/dir/page.html?k=v HTTP/1.0\r\n\r\n")
	ExpectEqual(t, "/dir/page.html", req.Path)
	ExpectEqual(t, "v", req.Param("k"))

	req = mustParse(t, "GET http://example.com HTTP/1.0\r\n\r\n")
	ExpectEqual(t, "/", req.Path)
}

func TestParse_TrailingAmpersand(t *testing.T) {
	req := mustParse(t, "GET /?a=1& HTTP/1.1\r\nHost: a\r\n\r\n")
	ExpectEqual(t, "1", req.Param("a"))
}

func TestParse_Malformed(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{"空の入力", ""},
		{"トークン1つ", "GET\r\n\r\n"},
		{"未知のメソッド", "FETCH / HTTP/1.1\r\nHost: a\r\n\r\n"},
		{"ヘッダー終端なし", "GET / HTTP/1.1\r\nHost: a\r\n"},
		{"コロンのないヘッダー", "GET / HTTP/1.1\r\nHost a\r\n\r\n"},
		{"ボディ不足", "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 10\r\n\r\nshort"},
		{"負のContent-Length", "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: -1\r\n\r\n"},
		{"=のないクエリ", "GET /?novalue HTTP/1.1\r\nHost: a\r\n\r\n"},
		{"=のないPOSTボディ", "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 4\r\n\r\nname"},
		{"Hostなしの相対パス", "GET /index.html HTTP/1.1\r\n\r\n"},
		{"不正なパーセントエンコード", "GET /%zz HTTP/1.1\r\nHost: a\r\n\r\n"},
		{"不正なクエリエンコード", "GET /?a=%zz HTTP/1.1\r\nHost: a\r\n\r\n"},
		{"巨大なContent-Length", "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 4611686018427387904\r\n\r\nx"},
		{"100GBのContent-Length", "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 100000000000\r\n\r\nname=Ann"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := Parse(strings.NewReader(tc.raw))
			if err == nil {
				t.Fatalf("Expected error, got request %+v", req)
			}
			if !errors.Is(err, ErrMalformedRequest) {
				t.Errorf("Expected ErrMalformedRequest, got %v", err)
			}
		})
	}
}

func TestParser_MaxBodyBytes(t *testing.T) {
	p := &Parser{MaxBodyBytes: 4}

	if _, err := p.Parse(strings.NewReader("PUT / HTTP/1.1\r\nHost: a\r\nContent-Length: 4\r\n\r\nabcd")); err != nil {
		t.Errorf("Body at the limit should be accepted: %v", err)
	}
	_, err := p.Parse(strings.NewReader("PUT / HTTP/1.1\r\nHost: a\r\nContent-Length: 5\r\n\r\nabcde"))
	if !errors.Is(err, ErrMalformedRequest) {
		t.Errorf("Expected ErrMalformedRequest for oversized body, got %v", err)
	}
}

func TestParser_MaxLineBytes(t *testing.T) {
	p := &Parser{MaxLineBytes: 16}
	long := "GET /" + strings.Repeat("a", 8192) + " HTTP/1.1\r\nHost: a\r\n\r\n"

	if _, err := p.Parse(strings.NewReader(long)); !errors.Is(err, ErrMalformedRequest) {
		t.Errorf("Expected ErrMalformedRequest for long line, got %v", err)
	}

	// bufio のバッファに収まる長さでも上限は効く
	short := "GET /" + strings.Repeat("a", 100) + " HTTP/1.1\r\nHost: a\r\n\r\n"
	if _, err := p.Parse(strings.NewReader(short)); !errors.Is(err, ErrMalformedRequest) {
		t.Errorf("Expected ErrMalformedRequest for line over the limit, got %v", err)
	}
	if _, err := p.Parse(strings.NewReader("GET /ok HTTP/1.1\r\nHost: a\r\n\r\n")); err != nil {
		t.Errorf("Line at the limit should be accepted: %v", err)
	}
}

func TestParseMethod(t *testing.T) {
	if m, ok := ParseMethod("options"); !ok || m != MethodOptions {
		t.Errorf("ParseMethod(options) = %v, %v", m, ok)
	}
	if _, ok := ParseMethod("PATCH"); ok {
		t.Error("PATCH must not be recognized")
	}
}
