package generator

import (
	"context"

	"github.com/shouni/go-pose-kit/pkg/domain"
)

// DescribeRequest は、ポーズ記述の正規化リクエストです。
// Image と Text はどちらか一方だけを指定します。
type DescribeRequest struct {
	Image *domain.ImagePayload
	Text  string
}

// RenderRequest は、ベースキャラクターと正規化済みポーズ記述からなる
// 画像生成リクエストです。Mode が image の場合は PoseImage が必須です。
type RenderRequest struct {
	BaseImage   domain.ImagePayload
	Mode        domain.PoseSourceKind
	PoseImage   *domain.ImagePayload
	Description string
}

// PoseDescriber は、ポーズソースを中立的な1文の記述へ正規化する外部能力です。
type PoseDescriber interface {
	Describe(ctx context.Context, req DescribeRequest) (string, error)
}

// PoseRenderer は、生成リクエストを実行して成果画像を返す外部能力です。
// 失敗シグナルを特定できた場合は *domain.RenderSignalError を返します。
type PoseRenderer interface {
	Render(ctx context.Context, req RenderRequest) (*domain.GenerationResult, error)
}
