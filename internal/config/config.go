package config

import (
	"time"

	"github.com/shouni/go-utils/envutil"

	"github.com/shouni/go-pose-kit/pkg/workflow"
)

// デフォルト値の定義なのだ
const (
	DefaultDescribeModel = workflow.DefaultDescribeModel
	DefaultRenderModel   = workflow.DefaultRenderModel
	DefaultHTTPTimeout   = 30 * time.Second
	DefaultRateInterval  = workflow.DefaultRateInterval
	DefaultLocalDir      = "output" // 生成結果のデフォルト保存先なのだ
	DefaultIdentityDir   = ""       // 空ならインメモリ保存（プロセス終了で消える）なのだ
)

// Config はアプリケーション全体の環境設定（APIキーやクラウド設定）を保持する構造体なのだ。
type Config struct {
	GeminiAPIKey  string
	DescribeModel string
	RenderModel   string
	StyleSuffix   string
	IdentityDir   string

	Options GenerateOptions
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	cfg := &Config{
		GeminiAPIKey:  envutil.GetEnv("GEMINI_API_KEY", ""),
		DescribeModel: envutil.GetEnv("GEMINI_MODEL", DefaultDescribeModel),
		RenderModel:   envutil.GetEnv("IMAGE_GEMINI_MODEL", DefaultRenderModel),
		StyleSuffix:   envutil.GetEnv("IMAGE_STYLE_SUFFIX", workflow.DefaultStyleSuffix),
		IdentityDir:   envutil.GetEnv("IDENTITY_DIR", DefaultIdentityDir),
	}
	return cfg
}

// ToWorkflow は、環境設定と実行時オプションをワークフロー設定へ変換するのだ。
func (c *Config) ToWorkflow() workflow.Config {
	wf := workflow.NewConfig(c.GeminiAPIKey)
	wf.DescribeModel = c.DescribeModel
	wf.RenderModel = c.RenderModel
	wf.StyleSuffix = c.StyleSuffix
	if c.Options.RateInterval > 0 {
		wf.RateInterval = c.Options.RateInterval
	}
	return wf
}

// GenerateOptions は CLI フラグから渡される実行時のパラメータなのだ。
type GenerateOptions struct {
	// ソース入力関連
	PoseText  string // --pose-text
	PoseImage string // --pose-image
	PoseFile  string // --pose-file: バッチ用のポーズ指定リスト
	BaseImage string // --base-image: ベースキャラクター画像

	// 生成結果の出力設定
	OutputDir string // --output-dir

	// AI挙動設定
	DescribeModel string // --model
	RenderModel   string // --image-model
	Description   string // --description: 正規化された記述の差し替え

	// 実行制御
	HTTPTimeout  time.Duration // --http-timeout
	RateInterval time.Duration // --rate-interval
}
