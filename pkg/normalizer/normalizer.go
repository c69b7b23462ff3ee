// Package normalizer は、テキストまたは画像のポーズソースを、生成リクエストに
// 使える中立的な1文のポーズ記述へ正規化します。
package normalizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/shouni/go-pose-kit/pkg/domain"
	"github.com/shouni/go-pose-kit/pkg/generator"
)

const (
	defaultCacheExpiration = 5 * time.Minute
	cacheCleanupInterval   = 15 * time.Minute
)

// ErrBlankSource は、正規化に回す内容のないソースが渡されたことを示します。
// 呼び出し側はこのエラーを no-op として扱います。
var ErrBlankSource = errors.New("pose source is blank")

// Normalizer は、外部の describe 能力を用いてポーズ記述を生成します。
// 同一ソースに対する結果はソースキーでキャッシュされ、再入力時の
// 重複呼び出しを避けます。結果のテキストには一切後処理を行いません。
type Normalizer struct {
	describer generator.PoseDescriber
	cache     *cache.Cache
}

// New は、依存関係を注入して Normalizer を初期化します。
func New(describer generator.PoseDescriber) (*Normalizer, error) {
	if describer == nil {
		return nil, fmt.Errorf("describer は必須です")
	}
	return &Normalizer{
		describer: describer,
		cache:     cache.New(defaultCacheExpiration, cacheCleanupInterval),
	}, nil
}

// Normalize は、ポーズソースを正規化済みの記述へ変換します。
// 空のソースには ErrBlankSource を返し、describe 呼び出しは行いません。
func (n *Normalizer) Normalize(ctx context.Context, src domain.PoseSource) (domain.PoseDescription, error) {
	if src.IsBlank() {
		return "", ErrBlankSource
	}

	key := domain.SourceKey(src)
	if val, ok := n.cache.Get(key); ok {
		if desc, ok := val.(domain.PoseDescription); ok {
			slog.Info("Pose description served from cache", "key", key)
			return desc, nil
		}
	}

	var req generator.DescribeRequest
	switch src.Kind {
	case domain.PoseSourceText:
		req.Text = strings.TrimSpace(src.Text)
	case domain.PoseSourceImage:
		img := src.Image
		req.Image = &img
	default:
		return "", fmt.Errorf("未知のポーズソース種別です: %s", src.Kind)
	}

	text, err := n.describer.Describe(ctx, req)
	if err != nil {
		return "", fmt.Errorf("ポーズ記述の正規化に失敗しました: %w", err)
	}
	if text == "" {
		return "", fmt.Errorf("正規化結果が空でした")
	}

	desc := domain.PoseDescription(text)
	n.cache.Set(key, desc, cache.DefaultExpiration)
	return desc, nil
}
