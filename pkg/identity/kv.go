package identity

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/patrickmn/go-cache"
	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// MemoryKV は、go-cache をバックエンドにしたインメモリの KeyValue 実装です。
// 期限なしで保持するため、単一プロセスのセッション内では永続ストアと
// 同じ振る舞いをします。テストでもこの実装を使います。
type MemoryKV struct {
	c *cache.Cache
}

// NewMemoryKV は、新しい MemoryKV を作成します。
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{c: cache.New(cache.NoExpiration, 0)}
}

// Get は、キーに対応する値を返します。
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	raw, ok := val.([]byte)
	if !ok {
		return nil, false, fmt.Errorf("キー '%s' の値が不正な型です", key)
	}
	return raw, true, nil
}

// Set は、キーに値を保存します。
func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.c.Set(key, value, cache.NoExpiration)
	return nil
}

// Delete は、キーを削除します。
func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

// RemoteKV は、remoteio の入出力の上に KeyValue を実装します。
// 各キーは baseDir 直下の 1 ファイル（ローカルまたは gs://）に対応します。
// remoteio には削除操作がないため、Delete は空レコードの書き込みで表現し、
// Get 側で空を「存在しない」として扱います。
type RemoteKV struct {
	reader  remoteio.InputReader
	writer  remoteio.OutputWriter
	baseDir string
}

// NewRemoteKV は、reader/writer と保存先ディレクトリから RemoteKV を作成します。
func NewRemoteKV(reader remoteio.InputReader, writer remoteio.OutputWriter, baseDir string) (*RemoteKV, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader は必須です")
	}
	if writer == nil {
		return nil, fmt.Errorf("writer は必須です")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir は必須です")
	}
	return &RemoteKV{reader: reader, writer: writer, baseDir: baseDir}, nil
}

func (r *RemoteKV) keyPath(key string) string {
	return strings.TrimRight(r.baseDir, "/") + "/" + key + ".json"
}

// Get は、キーに対応するレコードファイルを読み込みます。
// ファイルが開けない場合は未保存とみなします。
func (r *RemoteKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	rc, err := r.reader.Open(ctx, r.keyPath(key))
	if err != nil {
		// 初回起動などレコード未作成のケースと区別がつかないため、
		// 読み出し失敗は「存在しない」に丸めます。
		return nil, false, nil
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, fmt.Errorf("レコード '%s' の読み込みに失敗しました: %w", key, err)
	}
	if len(raw) == 0 {
		return nil, false, nil
	}
	return raw, true, nil
}

// Set は、キーのレコードファイルを書き込みます。
func (r *RemoteKV) Set(ctx context.Context, key string, value []byte) error {
	return r.writer.Write(ctx, r.keyPath(key), bytes.NewReader(value), "application/json")
}

// Delete は、空レコードを書き込むことで削除を表現します。
func (r *RemoteKV) Delete(ctx context.Context, key string) error {
	return r.writer.Write(ctx, r.keyPath(key), bytes.NewReader(nil), "application/json")
}
