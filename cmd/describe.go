package cmd

import (
	"fmt"

	"github.com/shouni/go-pose-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// describeCmd は、ポーズソースを正規化して記述テキストだけを出力するサブコマンドなのだ。
// 画像生成のコストをかけずに、どんな記述でポーズが表現されるかを確認できるのだ。
var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "ポーズ指定を正規化された記述テキストに変換するのだ。",
	Long: `テキストまたは参照画像のポーズ指定を、生成に使われる中立的な記述へ変換して表示するのだ。
生成は行わないため、記述の事前確認やプロンプト調整に便利なのだよ。`,
	RunE: describeCommand,
}

func init() {
}

func describeCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if opts.PoseText == "" && opts.PoseImage == "" {
		return fmt.Errorf("ポーズ指定（--pose-text または --pose-image）を指定してほしいのだ")
	}

	cfg := loadConfig()

	desc, err := pipeline.ExecuteDescribe(ctx, cfg)
	if err != nil {
		return fmt.Errorf("ポーズ記述の正規化に失敗したのだ: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), desc)
	return nil
}
