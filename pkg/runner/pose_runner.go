package runner

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/go-remote-io/pkg/remoteio"

	"github.com/shouni/go-pose-kit/pkg/asset"
	"github.com/shouni/go-pose-kit/pkg/domain"
	"github.com/shouni/go-pose-kit/pkg/workflow"
)

// PoseRequest は、1回のポーズ生成実行の入力です。
type PoseRequest struct {
	Mode domain.PoseSourceKind
	// Text は、Mode が text の場合のポーズ指定文です。
	Text string
	// PoseImage は、Mode が image の場合のポーズ参照画像です。
	PoseImage *domain.ImagePayload
	// DescriptionOverride を指定すると、正規化された記述を確定前に
	// この内容へ差し替えます（ユーザー編集に相当します）。
	DescriptionOverride string
}

// PoseImageRunner は、ワークフローステートマシンを一連の操作として
// 駆動し、結果画像の取得と保存までを担うのだ。
type PoseImageRunner struct {
	machine *workflow.Machine
	writer  remoteio.OutputWriter
}

// NewPoseImageRunner は、依存関係を注入して初期化します。
func NewPoseImageRunner(machine *workflow.Machine, writer remoteio.OutputWriter) *PoseImageRunner {
	return &PoseImageRunner{
		machine: machine,
		writer:  writer,
	}
}

// Run は、ポーズソースの投入から生成の確定までを実行し、結果画像を返すのだ。
func (r *PoseImageRunner) Run(ctx context.Context, req PoseRequest) (*domain.GenerationResult, error) {
	switch req.Mode {
	case domain.PoseSourceText:
		r.machine.SetTextSource(ctx, req.Text)
	case domain.PoseSourceImage:
		if req.PoseImage == nil {
			return nil, fmt.Errorf("imageモードではポーズ参照画像が必須なのだ")
		}
		r.machine.SetImageSource(ctx, *req.PoseImage)
	default:
		return nil, fmt.Errorf("未知のポーズソース種別なのだ: %s", req.Mode)
	}

	// 静止待ちを前倒しして正規化の解決まで待つ
	r.machine.WaitIdle()

	snap := r.machine.Snapshot()
	if snap.Err != nil {
		return nil, fmt.Errorf("ポーズ記述の正規化に失敗しました: %s", snap.Err.Message)
	}
	if snap.Phase != workflow.PhaseDescriptionReady {
		return nil, fmt.Errorf("正規化が完了していません (phase: %s)", snap.Phase)
	}

	slog.Info("Pose description ready", "description", string(snap.Description))

	if req.DescriptionOverride != "" {
		r.machine.EditDescription(req.DescriptionOverride)
	}

	if err := r.machine.Generate(ctx); err != nil {
		return nil, err
	}

	snap = r.machine.Snapshot()
	if snap.Err != nil {
		return nil, fmt.Errorf("ポーズ生成に失敗しました: %s", snap.Err.Message)
	}
	if snap.Result == nil {
		return nil, fmt.Errorf("生成結果が得られませんでした")
	}
	return snap.Result, nil
}

// RunAndSave は、生成した結果画像を PNG として保存し、保存先パスを返すのだ。
func (r *PoseImageRunner) RunAndSave(ctx context.Context, req PoseRequest, outputDir string) (string, error) {
	result, err := r.Run(ctx, req)
	if err != nil {
		return "", err
	}

	finalPath, err := asset.ResolveOutputPath(outputDir, asset.DefaultResultFileName)
	if err != nil {
		return "", fmt.Errorf("出力パスの解決に失敗しました: %w", err)
	}

	if err := r.writer.Write(ctx, finalPath, bytes.NewReader(result.Image.Data), "image/png"); err != nil {
		return "", fmt.Errorf("結果画像の保存に失敗しました (path: %s): %w", finalPath, err)
	}

	slog.InfoContext(ctx, "Pose image saved", "path", finalPath, "bytes", len(result.Image.Data))
	return finalPath, nil
}
