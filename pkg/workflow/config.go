package workflow

import (
	"time"

	"github.com/shouni/go-pose-kit/pkg/normalizer"
)

// デフォルト値の定義なのだ
const (
	DefaultDescribeModel = "gemini-3-flash-preview"
	DefaultRenderModel   = "gemini-3-pro-image-preview"
	DefaultRateInterval  = 10 * time.Second
	DefaultStyleSuffix   = "clean line art, consistent character design, vibrant colors, cinematic lighting, masterpiece, high resolution"
)

// Config は、ポーズ生成ワークフローを動作させるための基本設定なのだ。
type Config struct {
	// --- AI Model Settings ---
	GeminiAPIKey  string
	DescribeModel string
	RenderModel   string

	// --- Generation Settings ---
	StyleSuffix    string
	RateInterval   time.Duration
	DebounceWindow time.Duration

	// --- Timeout & Retries ---
	RequestTimeout time.Duration
}

// NewConfig は、デフォルト値で初期化した Config に APIキーをセットして返すのだ。
func NewConfig(apiKey string) Config {
	cfg := DefaultConfig()
	cfg.GeminiAPIKey = apiKey
	return cfg
}

// DefaultConfig は、推奨されるデフォルト設定を返すヘルパー関数なのだ。
func DefaultConfig() Config {
	return Config{
		DescribeModel:  DefaultDescribeModel,
		RenderModel:    DefaultRenderModel,
		StyleSuffix:    DefaultStyleSuffix,
		RateInterval:   DefaultRateInterval,
		DebounceWindow: normalizer.DefaultDebounceWindow,
		RequestTimeout: 5 * time.Minute,
	}
}
