package asset

import (
	"github.com/shouni/go-utils/urlpath"
)

const (
	// DefaultResultFileName は、生成結果をダウンロード保存する際のファイル名です。
	// 結果は常に PNG として書き出されます。
	DefaultResultFileName = "rex-new-pose.png"
	// DefaultOutputDir は、生成結果のデフォルト保存先です。
	DefaultOutputDir = "output"
)

// ResolveOutputPath は、ベースとなるディレクトリパスとファイル名から、
// GCS/ローカルを考慮した最終的な出力パスを生成します。
func ResolveOutputPath(baseDir, fileName string) (string, error) {
	return urlpath.ResolvePath(baseDir, fileName)
}

// GenerateIndexedPath は、指定されたベースパスの拡張子の前に連番を挿入し、
// 新しいパス文字列を生成します。バッチ生成の保存で使います。
// 例: "output/rex-new-pose.png", 2 -> "output/rex-new-pose_2.png"
func GenerateIndexedPath(basePath string, index int) (string, error) {
	return urlpath.GenerateIndexedPath(basePath, index)
}
