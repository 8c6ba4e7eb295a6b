// Package content は配信ルート配下のファイル解決を担う
//
// ルートは起動時に一度だけ正規化され、以後は読み取り専用の値として
// 各接続ハンドラーに渡される。包含チェックは常に正規化後のパスで行う。
package content

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrRootNotFound は配信ルートが存在しないかディレクトリでないことを表す
var ErrRootNotFound = errors.New("content root not found")

// Root は正規化済みの配信ルート
type Root struct {
	dir   string // 絶対パス、シンボリックリンク解決済み
	index string
}

// NewRoot は配信ディレクトリを正規化してRootを作成する
func NewRoot(dir, index string) (*Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRootNotFound, err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRootNotFound, err)
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRootNotFound, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootNotFound, canonical)
	}
	return &Root{dir: canonical, index: index}, nil
}

// Dir は正規化済みのルートパスを返す
func (r *Root) Dir() string {
	return r.dir
}

// Resolve はリクエストパスをルート配下の通常ファイルへ解決する
// 見つからない、通常ファイルでない、読めない、ルート外を指す場合はすべて false を返す
func (r *Root) Resolve(requestPath string) (string, bool) {
	var candidate string
	if requestPath == "/" {
		candidate = r.dir + string(filepath.Separator) + r.index
	} else {
		// 連結は文字列のまま行い、".." の処理は正規化に任せる
		candidate = r.dir + filepath.FromSlash(requestPath)
	}

	canonical, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return "", false
	}
	canonical, err = filepath.Abs(canonical)
	if err != nil {
		return "", false
	}
	if !r.contains(canonical) {
		return "", false
	}

	info, err := os.Stat(canonical)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}

	f, err := os.Open(canonical)
	if err != nil {
		return "", false
	}
	f.Close()

	return canonical, true
}

// contains は path がルート自身ではなくルート配下にあるかを判定する
func (r *Root) contains(path string) bool {
	prefix := r.dir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
