package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
)

// PoseSourceKind は、ポーズ指定の入力モードを表します。
type PoseSourceKind string

const (
	// PoseSourceText は、自由文テキストによるポーズ指定です。
	PoseSourceText PoseSourceKind = "text"
	// PoseSourceImage は、参照画像によるポーズ指定です。
	PoseSourceImage PoseSourceKind = "image"
)

// PoseSource は、ユーザーが指定したポーズの入力ソースです。
// Kind に応じて Text または Image のどちらか一方だけが有効になります。
type PoseSource struct {
	Kind   PoseSourceKind
	Text   string
	Image  ImagePayload
	Handle *DisplayHandle
}

// IsBlank は、正規化に回す内容を持たないソースかどうかを返します。
// テキストモードでは空白のみの入力も空とみなします。
func (s PoseSource) IsBlank() bool {
	switch s.Kind {
	case PoseSourceText:
		return strings.TrimSpace(s.Text) == ""
	case PoseSourceImage:
		return s.Image.IsEmpty()
	}
	return true
}

// SourceKey は、ポーズソースの内容から決定論的なキーを導出します。
// 正規化の発火時点と解決時点でこのキーを突き合わせることで、
// 古い入力に対する結果が新しい入力の状態を上書きするのを防ぎます。
func SourceKey(s PoseSource) string {
	h := sha256.New()
	h.Write([]byte(s.Kind))
	h.Write([]byte{0})
	switch s.Kind {
	case PoseSourceText:
		h.Write([]byte(strings.TrimSpace(s.Text)))
	case PoseSourceImage:
		h.Write(s.Image.Data)
		h.Write([]byte{0})
		h.Write([]byte(s.Image.MimeType))
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// PoseDescription は、入力モードに依存しない正規化済みのポーズ記述です。
// 正規化で生成されたあと、生成の確定までユーザーが自由に編集できます。
type PoseDescription string

// IsBlank は、生成をブロックすべき空の記述かどうかを返します。
func (d PoseDescription) IsBlank() bool {
	return strings.TrimSpace(string(d)) == ""
}

// DisplayHandle は、アップロードされたポーズ画像のプレビュー用リソースです。
// 一時ファイルのパス等を保持し、所有者の交代・破棄のたびに必ず1回だけ
// 解放される必要があります。Release は何度呼んでも安全です。
type DisplayHandle struct {
	uri     string
	release func() error

	once sync.Once
	err  error
}

// NewDisplayHandle は、プレビュー URI と解放処理の組からハンドルを作成します。
// release が nil の場合、解放は何も行いません。
func NewDisplayHandle(uri string, release func() error) *DisplayHandle {
	return &DisplayHandle{uri: uri, release: release}
}

// URI は、プレビュー表示に使うリソースの場所を返します。
func (h *DisplayHandle) URI() string {
	if h == nil {
		return ""
	}
	return h.uri
}

// Release は、保持しているリソースを解放します。2回目以降の呼び出しは
// 初回の結果を返すだけで副作用はありません。
func (h *DisplayHandle) Release() error {
	if h == nil {
		return nil
	}
	h.once.Do(func() {
		if h.release != nil {
			h.err = h.release()
		}
	})
	return h.err
}
