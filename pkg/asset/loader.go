package asset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shouni/go-http-kit/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"

	"github.com/shouni/go-pose-kit/pkg/domain"
)

// Loader は、ローカルパス・gs://・http(s):// のいずれからでも
// 画像ペイロードを読み込むための入力解決役です。
type Loader struct {
	httpClient httpkit.HTTPClient
	reader     remoteio.InputReader
}

// NewLoader は、依存関係を注入して Loader を初期化します。
func NewLoader(httpClient httpkit.HTTPClient, reader remoteio.InputReader) (*Loader, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("httpClient は必須です")
	}
	if reader == nil {
		return nil, fmt.Errorf("reader は必須です")
	}
	return &Loader{httpClient: httpClient, reader: reader}, nil
}

// Load は、指定された場所から画像を読み込み、MIME タイプを判定して返します。
func (l *Loader) Load(ctx context.Context, rawPath string) (domain.ImagePayload, error) {
	data, err := l.fetch(ctx, rawPath)
	if err != nil {
		return domain.ImagePayload{}, fmt.Errorf("画像 '%s' の読み込みに失敗しました: %w", rawPath, err)
	}
	if len(data) == 0 {
		return domain.ImagePayload{}, fmt.Errorf("画像 '%s' が空です", rawPath)
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return domain.ImagePayload{}, fmt.Errorf("'%s' は画像ではありません (検出: %s)", rawPath, mimeType)
	}

	return domain.ImagePayload{Data: data, MimeType: mimeType}, nil
}

func (l *Loader) fetch(ctx context.Context, rawPath string) ([]byte, error) {
	if strings.HasPrefix(rawPath, "http://") || strings.HasPrefix(rawPath, "https://") {
		return l.httpClient.FetchBytes(ctx, rawPath)
	}

	rc, err := l.reader.Open(ctx, rawPath)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
