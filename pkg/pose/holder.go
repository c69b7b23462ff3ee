// Package pose は、ユーザーが現在指定しているポーズソースの保持と、
// それに付随するプレビューリソースの生存期間管理を担います。
package pose

import (
	"fmt"
	"os"
	"sync"

	"github.com/shouni/go-pose-kit/pkg/domain"
)

// Holder は、ポーズソースを一度に1つだけ保持する入れ物です。
// ソースの差し替え・クリア・破棄のどの経路でも、前のソースが持っていた
// プレビューハンドルは必ず1回だけ解放されます。
type Holder struct {
	mu      sync.Mutex
	current domain.PoseSource
	live    bool
}

// NewHolder は、空の Holder を作成します。
func NewHolder() *Holder {
	return &Holder{}
}

// SetText は、テキストモードのポーズソースを設定します。
func (h *Holder) SetText(text string) domain.PoseSource {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.releaseLocked()
	h.current = domain.PoseSource{Kind: domain.PoseSourceText, Text: text}
	h.live = true
	return h.current
}

// SetImage は、画像モードのポーズソースを設定します。
// handle には画像のプレビューリソースを渡します（nil 可）。
func (h *Holder) SetImage(img domain.ImagePayload, handle *domain.DisplayHandle) domain.PoseSource {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.releaseLocked()
	h.current = domain.PoseSource{Kind: domain.PoseSourceImage, Image: img, Handle: handle}
	h.live = true
	return h.current
}

// Current は、現在のポーズソースを返します。保持していない場合は false を返します。
func (h *Holder) Current() (domain.PoseSource, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current, h.live
}

// Clear は、保持中のソースを破棄してハンドルを解放します。
func (h *Holder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.releaseLocked()
	h.current = domain.PoseSource{}
	h.live = false
}

// Teardown は、Holder 自体の破棄時に呼び出します。Clear と同じく
// ハンドルを解放しますが、破棄後の再利用は想定しません。
func (h *Holder) Teardown() {
	h.Clear()
}

// releaseLocked は、保持中のハンドルを解放します。h.mu を保持した状態で呼ぶこと。
func (h *Holder) releaseLocked() {
	if h.current.Handle != nil {
		// Release は冪等なので、経路が重なっても二重解放にはなりません。
		_ = h.current.Handle.Release()
	}
}

// NewPreviewHandle は、画像バイナリを一時ファイルに書き出し、そのパスを
// プレビュー URI とするハンドルを作成します。解放時に一時ファイルを削除します。
func NewPreviewHandle(img domain.ImagePayload) (*domain.DisplayHandle, error) {
	f, err := os.CreateTemp("", "pose-preview-*")
	if err != nil {
		return nil, fmt.Errorf("プレビュー用一時ファイルの作成に失敗しました: %w", err)
	}

	if _, err := f.Write(img.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("プレビュー画像の書き込みに失敗しました: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("プレビュー用一時ファイルのクローズに失敗しました: %w", err)
	}

	path := f.Name()
	return domain.NewDisplayHandle(path, func() error {
		return os.Remove(path)
	}), nil
}
