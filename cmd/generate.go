package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-pose-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// generateCmd は、登録済みのベースキャラクターに新しいポーズを取らせるのだ。
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "ベースキャラクターに新しいポーズを取らせるのだ。",
	Long: `ポーズ指定（テキストまたは参照画像）を正規化された記述に変換し、
ベースキャラクターの同一性を保ったままポーズ画像を生成して保存するのだ。
--description を指定すると、正規化された記述を差し替えてから生成するのだよ。`,
	RunE: generateCommand,
}

func init() {
}

func generateCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// 1. 必須チェック
	if opts.PoseText == "" && opts.PoseImage == "" {
		return fmt.Errorf("ポーズ指定（--pose-text または --pose-image）を指定してほしいのだ")
	}

	// 2. 環境変数等から基本設定をロードするのだ
	cfg := loadConfig()

	slog.Info("ポーズ生成パイプラインを起動するのだ！",
		"describe_model", cfg.DescribeModel,
		"render_model", cfg.RenderModel,
		"output_dir", opts.OutputDir)

	// 3. パイプライン実行
	if err := pipeline.ExecuteGenerate(ctx, cfg); err != nil {
		return fmt.Errorf("パイプライン実行中にエラーが発生したのだ: %w", err)
	}

	slog.Info("すべての生成工程が完了したのだ！")
	return nil
}
