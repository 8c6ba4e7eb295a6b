package handler

import (
	"strconv"

	"webserver/internal/content"
	"webserver/internal/request"
	"webserver/internal/response"
	"webserver/internal/tmpl"
)

// Resolver はリクエストパスを配信ファイルへ解決する
type Resolver interface {
	Resolve(requestPath string) (string, bool)
}

// Dispatch はメソッドに応じてレスポンスを作成する
// Serverヘッダーは呼び出し側で付与する
func Dispatch(root Resolver, req *request.Request) *response.Response {
	switch req.Method {
	case request.MethodGet:
		return serveGet(root, req)
	case request.MethodHead:
		return serveHead(root, req)
	case request.MethodPost:
		return servePost(root, req)
	default:
		// PUT, DELETE, CONNECT, OPTIONS, TRACE
		return response.NotImplemented()
	}
}

func serveGet(root Resolver, req *request.Request) *response.Response {
	path, ok := root.Resolve(req.Path)
	if !ok {
		return response.NotFound()
	}
	ct, err := content.ProbeType(path)
	if err != nil {
		return response.NotFound()
	}
	data, err := content.ReadAll(path)
	if err != nil {
		return response.NotFound()
	}

	res := response.New()
	res.SetHeader("Content-Type", ct)
	res.Append(data)
	return res
}

// serveHead はGETと同じヘッダーを返すがボディは送らない
func serveHead(root Resolver, req *request.Request) *response.Response {
	res := headOnly(root, req)
	if _, ok := res.Headers["Content-Length"]; !ok {
		res.SetHeader("Content-Length", strconv.Itoa(len(res.Body())))
	}
	res.SuppressBody()
	return res
}

func headOnly(root Resolver, req *request.Request) *response.Response {
	path, ok := root.Resolve(req.Path)
	if !ok {
		return response.NotFound()
	}
	ct, err := content.ProbeType(path)
	if err != nil {
		return response.NotFound()
	}
	size, err := content.Size(path)
	if err != nil {
		return response.NotFound()
	}

	res := response.New()
	res.SetHeader("Content-Type", ct)
	res.SetHeader("Content-Length", strconv.FormatInt(size, 10))
	return res
}

// servePost はHTMLファイルだけをテンプレートとして扱う
func servePost(root Resolver, req *request.Request) *response.Response {
	path, ok := root.Resolve(req.Path)
	if !ok {
		return response.NotFound()
	}
	ct, err := content.ProbeType(path)
	if err != nil || !content.IsHTML(ct) {
		return response.NotFound()
	}
	data, err := content.ReadAll(path)
	if err != nil {
		return response.NotFound()
	}

	res := response.New()
	res.SetHeader("Content-Type", content.MediaTypeHTML)
	res.AppendString(tmpl.Render(string(data), req.Params))
	return res
}
