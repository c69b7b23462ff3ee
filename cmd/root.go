package cmd

import (
	"fmt"
	"os"

	"github.com/shouni/go-pose-kit/internal/config"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
)

// opts は、CLI フラグの値を集約する実行時オプションなのだ。
var opts config.GenerateOptions

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	// --- ポーズソース入力関連 ---
	rootCmd.PersistentFlags().StringVarP(&opts.PoseText, "pose-text", "t", "", "ポーズの指定文（例: 'jumping with both arms raised'）なのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.PoseImage, "pose-image", "p", "", "ポーズ参照画像のパス（ローカル, gs://, http(s)://）なのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.BaseImage, "base-image", "b", "", "ベースキャラクター画像のパス（指定すると登録・置換されるのだ）。")

	// --- 生成結果の出力設定 ---
	rootCmd.PersistentFlags().StringVarP(&opts.OutputDir, "output-dir", "o", config.DefaultLocalDir, "生成結果を保存するディレクトリ（ローカル or gs://...）なのだ。")

	// --- AIモデル・挙動設定 ---
	rootCmd.PersistentFlags().StringVar(&opts.DescribeModel, "model", config.DefaultDescribeModel, "ポーズ記述に使う Gemini モデル名なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.RenderModel, "image-model", config.DefaultRenderModel, "画像生成に使う Gemini モデル名なのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.Description, "description", "d", "", "正規化された記述をこの内容に差し替えて生成するのだ。")

	// --- 実行制御 ---
	rootCmd.PersistentFlags().DurationVar(&opts.HTTPTimeout, "http-timeout", config.DefaultHTTPTimeout, "Webリクエストのタイムアウトなのだ。")
	rootCmd.PersistentFlags().DurationVar(&opts.RateInterval, "rate-interval", config.DefaultRateInterval, "生成リクエストの最小間隔なのだ。")
}

// preRunAppE は、コマンド実行前に環境変数などの必須チェックを行うのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	// Gemini APIを利用するため、APIキーの存在チェックは欠かせないのだ！
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("エラー: 環境変数 GEMINI_API_KEY が設定されていません。Gemini APIの利用には必須なのだ")
	}

	return nil
}

// loadConfig は、環境変数とフラグの値をマージした設定を返すのだ。
func loadConfig() *config.Config {
	cfg := config.LoadConfig()
	cfg.DescribeModel = opts.DescribeModel
	cfg.RenderModel = opts.RenderModel
	cfg.Options = opts
	return cfg
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	clibase.Execute(
		"ap-pose-go",
		addAppFlags,
		preRunAppE,
		generateCmd,
		describeCmd,
		batchCmd,
		identityCmd,
	)
}
