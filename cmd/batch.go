package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-pose-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// batchCmd は、ポーズ指定リストから複数のポーズ画像を一括生成するのだ。
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "ポーズリストから複数のポーズ画像を一括生成するのだ。",
	Long: `1行1ポーズのテキストファイルを読み込み、登録済みのベースキャラクターに
各ポーズを取らせた画像を並列生成して連番付きで保存するのだ。
空行と # 始まりの行は無視されるのだよ。`,
	RunE: batchCommand,
}

// init は、batch コマンド固有のフラグを定義するのだ。
func init() {
	batchCmd.Flags().StringVarP(&opts.PoseFile, "pose-file", "f", "", "ポーズ指定リストのパス（1行1ポーズ）なのだ。")
}

func batchCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if opts.PoseFile == "" {
		return fmt.Errorf("ポーズリスト（--pose-file）を指定してほしいのだ")
	}

	cfg := loadConfig()

	slog.Info("バッチ生成モードを起動するのだ！",
		"pose_file", opts.PoseFile,
		"output_dir", opts.OutputDir,
		"render_model", cfg.RenderModel)

	if err := pipeline.ExecuteBatch(ctx, cfg); err != nil {
		return fmt.Errorf("バッチ生成中にエラーが発生したのだ: %w", err)
	}

	return nil
}
