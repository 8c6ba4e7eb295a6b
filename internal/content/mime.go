package content

import (
	"mime"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// MediaTypeHTML はテンプレート置換の対象となるメディアタイプ
const MediaTypeHTML = "text/html"

// ProbeType はファイルのContent-Typeを推定する
// 拡張子で判定できればそれを使い、できなければ内容から判定する
func ProbeType(path string) (string, error) {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct, nil
	}
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	return m.String(), nil
}

// IsHTML はContent-Typeのメディアタイプが text/html かを判定する
// charset などのパラメーターは無視する
func IsHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == MediaTypeHTML
}

// ReadAll はファイルの内容をすべて読み込む
func ReadAll(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Size はファイルサイズを返す
func Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
