package identity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shouni/go-pose-kit/pkg/domain"
)

// StoreKey は、ベースキャラクターを保持する唯一のレコードのキーです。
const StoreKey = "base_character"

// KeyValue は、永続化機構そのものを抽象化した get/set/delete の能力です。
// ブラウザストレージ・ローカルファイル・GCS など、どこに保存されるかを
// Store 自身は一切関知しません。
type KeyValue interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// record は、永続化レイアウト（base64 画像と MIME タイプ）のワイヤ表現です。
type record struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mimeType"`
}

// Store は、唯一のベースキャラクター画像を所有する永続ストアです。
// BaseIdentity の生成・置換・破棄はすべてこのストアを経由します。
type Store struct {
	kv KeyValue
}

// NewStore は、注入された KeyValue 能力の上に Store を初期化します。
func NewStore(kv KeyValue) (*Store, error) {
	if kv == nil {
		return nil, fmt.Errorf("kv は必須です")
	}
	return &Store{kv: kv}, nil
}

// Load は、保存済みのベースキャラクターを復元します。
// レコードが存在しない場合は (zero, false, nil) を返します。
func (s *Store) Load(ctx context.Context) (domain.BaseIdentity, bool, error) {
	raw, ok, err := s.kv.Get(ctx, StoreKey)
	if err != nil {
		return domain.BaseIdentity{}, false, fmt.Errorf("ベースキャラクターの読み込みに失敗しました: %w", err)
	}
	if !ok || len(raw) == 0 {
		return domain.BaseIdentity{}, false, nil
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.BaseIdentity{}, false, fmt.Errorf("ベースキャラクターのデコードに失敗しました: %w", err)
	}
	if len(rec.Data) == 0 {
		return domain.BaseIdentity{}, false, nil
	}

	return domain.BaseIdentity{Image: domain.ImagePayload{Data: rec.Data, MimeType: rec.MimeType}}, true, nil
}

// Save は、ベースキャラクターを保存します。既存レコードは置き換えられます。
// 置換の確認はユーザー操作を受け取る層の責務で、ここでは行いません。
func (s *Store) Save(ctx context.Context, id domain.BaseIdentity) error {
	if id.IsZero() {
		return fmt.Errorf("空のベースキャラクターは保存できません")
	}

	raw, err := json.Marshal(record{Data: id.Image.Data, MimeType: id.Image.MimeType})
	if err != nil {
		return fmt.Errorf("ベースキャラクターのエンコードに失敗しました: %w", err)
	}
	if err := s.kv.Set(ctx, StoreKey, raw); err != nil {
		return fmt.Errorf("ベースキャラクターの保存に失敗しました: %w", err)
	}
	return nil
}

// Clear は、保存済みのベースキャラクターを破棄します。
// 存在しない状態で呼んでもエラーにはなりません。
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, StoreKey); err != nil {
		return fmt.Errorf("ベースキャラクターの削除に失敗しました: %w", err)
	}
	return nil
}
