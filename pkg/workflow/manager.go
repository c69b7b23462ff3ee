package workflow

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/shouni/go-gemini-client/gemini"
	"github.com/shouni/go-http-kit/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"

	"github.com/shouni/go-pose-kit/pkg/generator"
	"github.com/shouni/go-pose-kit/pkg/identity"
	"github.com/shouni/go-pose-kit/pkg/normalizer"
	"github.com/shouni/go-pose-kit/pkg/pose"
	"github.com/shouni/go-pose-kit/pkg/prompts"
)

const defaultGeminiTemperature = float32(0.1)

// Manager は、ワークフローの各構成要素を構築・管理します。
type Manager struct {
	cfg        Config
	httpClient httpkit.HTTPClient
	reader     remoteio.InputReader
	writer     remoteio.OutputWriter
	aiClient   gemini.GenerativeModel
	vision     *generator.GeminiVision
	store      *identity.Store
}

// ManagerArgs は、Manager の構築に必要な外部依存の束です。
// KV が nil の場合はインメモリの永続ストアで動作します。
type ManagerArgs struct {
	Config     Config
	HTTPClient httpkit.HTTPClient
	Reader     remoteio.InputReader
	Writer     remoteio.OutputWriter
	KV         identity.KeyValue
}

// New は、設定を基に新しい Manager を初期化します。
func New(ctx context.Context, args ManagerArgs) (*Manager, error) {
	if args.HTTPClient == nil {
		return nil, fmt.Errorf("httpClient は必須です")
	}
	if args.Reader == nil {
		return nil, fmt.Errorf("InputReader は必須です")
	}
	if args.Writer == nil {
		return nil, fmt.Errorf("OutputWriter は必須です")
	}

	aiClient, err := initializeAIClient(ctx, args.Config.GeminiAPIKey)
	if err != nil {
		return nil, err
	}

	pb := prompts.NewRenderPromptBuilder(args.Config.StyleSuffix)
	vision, err := generator.NewGeminiVision(aiClient, args.Config.DescribeModel, args.Config.RenderModel, pb)
	if err != nil {
		return nil, fmt.Errorf("生成基盤の初期化に失敗しました: %w", err)
	}

	kv := args.KV
	if kv == nil {
		kv = identity.NewMemoryKV()
	}
	store, err := identity.NewStore(kv)
	if err != nil {
		return nil, err
	}

	return &Manager{
		cfg:        args.Config,
		httpClient: args.HTTPClient,
		reader:     args.Reader,
		writer:     args.Writer,
		aiClient:   aiClient,
		vision:     vision,
		store:      store,
	}, nil
}

// BuildMachine は、ワークフローステートマシンを組み立てます。
func (m *Manager) BuildMachine() (*Machine, error) {
	norm, err := normalizer.New(m.vision)
	if err != nil {
		return nil, fmt.Errorf("normalizer の初期化に失敗しました: %w", err)
	}

	orch, err := generator.NewOrchestrator(m.vision, m.newRateLimiter())
	if err != nil {
		return nil, fmt.Errorf("orchestrator の初期化に失敗しました: %w", err)
	}

	return NewMachine(MachineArgs{
		Store:        m.store,
		Holder:       pose.NewHolder(),
		Normalizer:   norm,
		Orchestrator: orch,
		Debouncer:    normalizer.NewDebouncer(m.cfg.DebounceWindow),
	})
}

// BuildOrchestrator は、ステートマシンを介さずに生成だけを行いたい
// 呼び出し元（バッチ実行など）向けにオーケストレーターを返します。
func (m *Manager) BuildOrchestrator() (*generator.Orchestrator, error) {
	return generator.NewOrchestrator(m.vision, m.newRateLimiter())
}

// Store は、ベースキャラクターの永続ストアを返します。
func (m *Manager) Store() *identity.Store {
	return m.store
}

// Vision は、describe / render の両能力を返します。
func (m *Manager) Vision() *generator.GeminiVision {
	return m.vision
}

// Reader は、入力ソースの読み込み元を返します。
func (m *Manager) Reader() remoteio.InputReader {
	return m.reader
}

// Writer は、成果物の保存先を返します。
func (m *Manager) Writer() remoteio.OutputWriter {
	return m.writer
}

func (m *Manager) newRateLimiter() *rate.Limiter {
	if m.cfg.RateInterval <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(m.cfg.RateInterval), 2)
}

// initializeAIClient は gemini クライアントを初期化します。
func initializeAIClient(ctx context.Context, apiKey string) (gemini.GenerativeModel, error) {
	clientConfig := gemini.Config{
		APIKey:      apiKey,
		Temperature: genai.Ptr(defaultGeminiTemperature),
	}
	aiClient, err := gemini.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}
	return aiClient, nil
}
