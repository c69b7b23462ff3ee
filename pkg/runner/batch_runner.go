package runner

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/shouni/go-remote-io/pkg/remoteio"

	"github.com/shouni/go-pose-kit/pkg/asset"
	"github.com/shouni/go-pose-kit/pkg/domain"
	"github.com/shouni/go-pose-kit/pkg/generator"
	"github.com/shouni/go-pose-kit/pkg/normalizer"
)

// BatchPoseRunner は、同一のベースキャラクターに対して複数のテキスト
// ポーズ指定を並列で処理します。各生成は独立したリトライ予算を持ち、
// ベース画像はすべてのリクエストでバイト単位に同一です。
type BatchPoseRunner struct {
	normalizer   *normalizer.Normalizer
	orchestrator *generator.Orchestrator
	writer       remoteio.OutputWriter
	limiter      *rate.Limiter
}

// NewBatchPoseRunner は、依存関係を注入して初期化します。
// limiter は nil を許容します（レート制限なしで動作）。
func NewBatchPoseRunner(norm *normalizer.Normalizer, orch *generator.Orchestrator, writer remoteio.OutputWriter, limiter *rate.Limiter) (*BatchPoseRunner, error) {
	if norm == nil {
		return nil, fmt.Errorf("normalizer は必須です")
	}
	if orch == nil {
		return nil, fmt.Errorf("orchestrator は必須です")
	}
	return &BatchPoseRunner{
		normalizer:   norm,
		orchestrator: orch,
		writer:       writer,
		limiter:      limiter,
	}, nil
}

// Run は、各ポーズ指定を正規化してから並列で生成します。
// 結果は入力と同じ順序で返ります。
func (r *BatchPoseRunner) Run(ctx context.Context, id domain.BaseIdentity, poses []string) ([]*domain.GenerationResult, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("ベースキャラクターが登録されていません")
	}
	if len(poses) == 0 {
		return nil, fmt.Errorf("ポーズ指定が1件もありません")
	}

	results := make([]*domain.GenerationResult, len(poses))
	eg, egCtx := errgroup.WithContext(ctx)

	for i, text := range poses {
		i, text := i, text
		eg.Go(func() error {
			if r.limiter != nil {
				if err := r.limiter.Wait(egCtx); err != nil {
					return err
				}
			}

			src := domain.PoseSource{Kind: domain.PoseSourceText, Text: text}
			desc, err := r.normalizer.Normalize(egCtx, src)
			if err != nil {
				return fmt.Errorf("pose %d の正規化に失敗しました: %w", i+1, err)
			}

			logger := slog.With("pose_index", i+1)
			logger.Info("Starting pose generation")

			startTime := time.Now()
			result, err := r.orchestrator.Generate(egCtx, id, domain.PoseSourceText, nil, string(desc))
			if err != nil {
				return fmt.Errorf("pose %d の生成に失敗しました: %w", i+1, err)
			}

			logger.Info("Pose generation completed", "duration", time.Since(startTime).Round(time.Millisecond))
			results[i] = result
			return nil
		})
	}

	return results, eg.Wait()
}

// RunAndSave は、生成した各結果に連番を付けて保存し、パスのリストを返します。
func (r *BatchPoseRunner) RunAndSave(ctx context.Context, id domain.BaseIdentity, poses []string, outputDir string) ([]string, error) {
	if r.writer == nil {
		return nil, fmt.Errorf("writer が設定されていないため保存できません")
	}

	results, err := r.Run(ctx, id, poses)
	if err != nil {
		return nil, err
	}

	basePath, err := asset.ResolveOutputPath(outputDir, asset.DefaultResultFileName)
	if err != nil {
		return nil, fmt.Errorf("出力パスの解決に失敗しました: %w", err)
	}

	paths := make([]string, 0, len(results))
	for i, result := range results {
		posePath, err := asset.GenerateIndexedPath(basePath, i+1)
		if err != nil {
			return nil, fmt.Errorf("pose %d の出力パス生成に失敗しました: %w", i+1, err)
		}

		if err := r.writer.Write(ctx, posePath, bytes.NewReader(result.Image.Data), "image/png"); err != nil {
			return nil, fmt.Errorf("pose %d の保存に失敗しました (path: %s): %w", i+1, posePath, err)
		}
		paths = append(paths, posePath)
	}

	return paths, nil
}
