package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/shouni/go-pose-kit/pkg/domain"
)

// DefaultMaxAttempts は、1回の生成確定あたりの最大試行回数です。
const DefaultMaxAttempts = 3

// Orchestrator は、レンダリング能力を有界リトライで包む生成の実行役です。
// ポーズソースや記述を書き換えることはなく、外部能力の呼び出し以外の
// 副作用を持ちません。
type Orchestrator struct {
	renderer    PoseRenderer
	limiter     *rate.Limiter
	maxAttempts int
}

// NewOrchestrator は、依存関係を注入して Orchestrator を初期化します。
// limiter は nil を許容します（レート制限なしで動作）。
func NewOrchestrator(renderer PoseRenderer, limiter *rate.Limiter) (*Orchestrator, error) {
	if renderer == nil {
		return nil, fmt.Errorf("renderer は必須です")
	}
	return &Orchestrator{
		renderer:    renderer,
		limiter:     limiter,
		maxAttempts: DefaultMaxAttempts,
	}, nil
}

// Generate は、ベースキャラクターとポーズ記述から新しいポーズ画像を生成します。
// 致命的な分類は即座に打ち切り、一時的な失敗は試行回数の上限まで粘ります。
// 失敗時に返るエラーは常に *domain.WorkflowError です。
func (o *Orchestrator) Generate(ctx context.Context, id domain.BaseIdentity, mode domain.PoseSourceKind, poseImage *domain.ImagePayload, description string) (*domain.GenerationResult, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("ベースキャラクターが登録されていません")
	}
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("ポーズ記述が空のため生成できません")
	}
	if mode == domain.PoseSourceImage && (poseImage == nil || poseImage.IsEmpty()) {
		return nil, fmt.Errorf("imageモードではポーズ参照画像が必須です")
	}

	req := RenderRequest{
		BaseImage:   id.Image,
		Mode:        mode,
		PoseImage:   poseImage,
		Description: strings.TrimSpace(description),
	}

	var lastErr *domain.WorkflowError
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return nil, domain.NewWorkflowError(domain.ErrGenerationTransient,
					fmt.Sprintf("生成が中断されました: %v", err))
			}
		}

		result, err := o.renderer.Render(ctx, req)
		if err == nil {
			slog.Info("Pose generation succeeded", "attempt", attempt, "mode", mode)
			return result, nil
		}

		classified := classifyRenderError(err, attempt)
		if classified.Category.IsFatal() {
			slog.Warn("Pose generation aborted", "attempt", attempt, "category", classified.Category)
			return nil, classified
		}

		slog.Warn("Pose generation attempt failed", "attempt", attempt, "category", classified.Category, "error", err)
		lastErr = classified
	}

	// 一時的失敗で全試行を使い切った場合、最後のメッセージを提示します
	return nil, lastErr
}
