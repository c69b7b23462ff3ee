package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shouni/go-pose-kit/pkg/domain"
	"github.com/shouni/go-pose-kit/pkg/generator"
	"github.com/shouni/go-pose-kit/pkg/identity"
	"github.com/shouni/go-pose-kit/pkg/normalizer"
	"github.com/shouni/go-pose-kit/pkg/pose"
)

// Machine は、ポーズ生成ワークフロー全体を順序付けるステートマシンです。
// ベースキャラクター以外のエンティティは、すべてこの Machine の遷移
// ハンドラーだけが書き換えます。正規化と生成は同時に1種類しか走りません。
type Machine struct {
	mu sync.Mutex

	store        *identity.Store
	holder       *pose.Holder
	normalizer   *normalizer.Normalizer
	orchestrator *generator.Orchestrator
	debouncer    *normalizer.Debouncer

	phase         Phase
	identity      domain.BaseIdentity
	description   domain.PoseDescription
	editorVisible bool
	result        *domain.GenerationResult
	workErr       *domain.WorkflowError

	// activeKey は、現在のポーズソースから導出したキーです。正規化の
	// 解決時にこのキーと照合し、古い入力への結果を捨てます。
	activeKey string
	// confirmed は、このサイクルで生成を確定済みかどうかです。確定後に
	// 解決した正規化は、編集欄の内容を上書きしません。
	confirmed bool

	wg sync.WaitGroup
}

// MachineArgs は、Machine の構築に必要な依存関係の束です。
type MachineArgs struct {
	Store        *identity.Store
	Holder       *pose.Holder
	Normalizer   *normalizer.Normalizer
	Orchestrator *generator.Orchestrator
	Debouncer    *normalizer.Debouncer
}

// NewMachine は、依存関係を注入して初期状態の Machine を作成します。
func NewMachine(args MachineArgs) (*Machine, error) {
	if args.Store == nil {
		return nil, fmt.Errorf("Store は必須です")
	}
	if args.Normalizer == nil {
		return nil, fmt.Errorf("Normalizer は必須です")
	}
	if args.Orchestrator == nil {
		return nil, fmt.Errorf("Orchestrator は必須です")
	}

	holder := args.Holder
	if holder == nil {
		holder = pose.NewHolder()
	}
	debouncer := args.Debouncer
	if debouncer == nil {
		debouncer = normalizer.NewDebouncer(normalizer.DefaultDebounceWindow)
	}

	return &Machine{
		store:        args.Store,
		holder:       holder,
		normalizer:   args.Normalizer,
		orchestrator: args.Orchestrator,
		debouncer:    debouncer,
		phase:        PhaseNoIdentity,
	}, nil
}

// Restore は、永続ストアからベースキャラクターを復元します。
// 保存済みであればポーズソース待ちの状態から始まります。
func (m *Machine) Restore(ctx context.Context) error {
	id, ok, err := m.store.Load(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.identity = id
		if m.phase == PhaseNoIdentity {
			m.phase = PhaseAwaitingPoseSource
		}
	}
	return nil
}

// SetIdentity は、ベースキャラクターを登録または置き換えます。
// 置き換えの確認はユーザー操作層の責務です。
func (m *Machine) SetIdentity(ctx context.Context, img domain.ImagePayload) error {
	if img.IsEmpty() {
		return fmt.Errorf("ベースキャラクター画像が空です")
	}

	id := domain.BaseIdentity{Image: img}
	if err := m.store.Save(ctx, id); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = id.Clone()
	m.workErr = nil
	if m.phase == PhaseNoIdentity {
		m.phase = PhaseAwaitingPoseSource
	}
	slog.Info("Base character registered", "mime_type", img.MimeType, "bytes", len(img.Data))
	return nil
}

// DeleteIdentity は、ベースキャラクターを破棄し、下流のすべての
// 一時状態（ポーズソース・記述・結果・エラー）を一括でクリアします。
func (m *Machine) DeleteIdentity(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.debouncer.Stop()
	m.holder.Clear()
	m.identity = domain.BaseIdentity{}
	m.description = ""
	m.editorVisible = false
	m.result = nil
	m.workErr = nil
	m.activeKey = ""
	m.confirmed = false
	m.phase = PhaseNoIdentity
	slog.Info("Base character deleted, workflow reset")
	return nil
}

// SetTextSource は、テキストモードのポーズソースを設定します。
// 内容が空でなければ、静止ウィンドウ経過後に正規化が走ります。
func (m *Machine) SetTextSource(ctx context.Context, text string) {
	m.setSource(ctx, func() domain.PoseSource {
		return m.holder.SetText(text)
	})
}

// SetImageSource は、画像モードのポーズソースを設定します。
// プレビューハンドルの取得に失敗しても、ソース自体は受け付けます。
func (m *Machine) SetImageSource(ctx context.Context, img domain.ImagePayload) {
	m.setSource(ctx, func() domain.PoseSource {
		handle, err := pose.NewPreviewHandle(img)
		if err != nil {
			slog.Warn("Preview handle could not be created", "error", err)
			handle = nil
		}
		return m.holder.SetImage(img, handle)
	})
}

// setSource は、ポーズソース変更の共通処理です。前のソースに紐づく
// 記述・結果・エラーを捨て、新しいサイクルを開始します。
func (m *Machine) setSource(ctx context.Context, apply func() domain.PoseSource) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 確定済みの生成は走り切らせるため、進行中のソース変更は受け付けません
	if m.phase == PhaseNoIdentity || m.phase == PhaseGenerating {
		return
	}

	src := apply()
	m.description = ""
	m.editorVisible = false
	m.result = nil
	m.workErr = nil
	m.confirmed = false
	m.phase = PhaseAwaitingPoseSource

	if src.IsBlank() {
		// 空の入力は送信しない。保留中の正規化も取り消します
		m.activeKey = ""
		m.debouncer.Stop()
		return
	}

	key := domain.SourceKey(src)
	m.activeKey = key
	m.debouncer.Trigger(func() {
		m.startNormalization(ctx, key, src)
	})
}

// startNormalization は、静止ウィンドウ経過後に呼ばれ、正規化を開始します。
// 発火時点でキーが現役でなければ何もしません。
func (m *Machine) startNormalization(ctx context.Context, key string, src domain.PoseSource) {
	m.mu.Lock()
	if m.activeKey != key || m.phase == PhaseGenerating {
		m.mu.Unlock()
		return
	}
	m.phase = PhaseNormalizing
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		desc, err := m.normalizer.Normalize(ctx, src)
		m.resolveNormalization(key, desc, err)
	}()
}

// resolveNormalization は、describe 呼び出しの完了を状態へ反映します。
// 解決時点でキーが現役でなければ、結果は丸ごと破棄されます。
func (m *Machine) resolveNormalization(key string, desc domain.PoseDescription, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeKey != key {
		slog.Info("Stale normalization result discarded", "key", key)
		return
	}

	if err != nil {
		if errors.Is(err, normalizer.ErrBlankSource) {
			// 空ソースはそもそも発火させない運用だが、到達しても無害に扱う
			m.phase = PhaseAwaitingPoseSource
			return
		}
		m.workErr = domain.NewWorkflowError(domain.ErrDescriptionFailed, err.Error())
		m.editorVisible = false
		m.phase = PhaseAwaitingPoseSource
		return
	}

	if m.confirmed {
		// このサイクルで生成確定済みなら、編集欄の内容は上書きしない
		return
	}

	m.description = desc
	m.editorVisible = true
	m.workErr = nil
	m.phase = PhaseDescriptionReady
}

// EditDescription は、正規化済みの記述をユーザーの編集内容で置き換えます。
// 編集欄が開いていない状態では何もしません。
func (m *Machine) EditDescription(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.editorVisible || m.phase != PhaseDescriptionReady {
		return
	}
	m.description = domain.PoseDescription(text)
	m.workErr = nil
}

// Generate は、ユーザーの明示的な確定操作です。ベースキャラクターと
// 空でない記述が揃っていなければ何もしません。一度始まった生成は、
// 成功・致命的失敗・リトライ枯渇のいずれかまで必ず走り切ります。
func (m *Machine) Generate(ctx context.Context) error {
	m.mu.Lock()
	if m.phase != PhaseDescriptionReady || m.identity.IsZero() || m.description.IsBlank() {
		m.mu.Unlock()
		return nil // 前提が揃っていない確定操作は no-op
	}

	id := m.identity.Clone()
	desc := m.description

	// ポーズ画像は正規化時のものではなく、確定時点のソースから取り直します
	var mode domain.PoseSourceKind = domain.PoseSourceText
	var poseImage *domain.ImagePayload
	if src, ok := m.holder.Current(); ok && src.Kind == domain.PoseSourceImage {
		mode = domain.PoseSourceImage
		img := src.Image
		poseImage = &img
	}

	m.phase = PhaseGenerating
	m.workErr = nil
	m.result = nil
	m.confirmed = true
	m.mu.Unlock()

	result, err := m.orchestrator.Generate(ctx, id, mode, poseImage, string(desc))

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		var wErr *domain.WorkflowError
		if !errors.As(err, &wErr) {
			wErr = domain.NewWorkflowError(domain.ErrGenerationTransient, err.Error())
		}
		m.workErr = wErr
		m.phase = PhaseDescriptionReady
		return nil
	}

	m.result = result
	m.phase = PhaseResult
	return nil
}

// TryNewPose は、結果を確認したユーザーが次のポーズへ進む操作です。
// ポーズソース・記述・結果・エラーをすべて破棄します。連続で呼んでも
// 安全で、常にポーズソース待ちの状態に落ち着きます。
func (m *Machine) TryNewPose() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseNoIdentity || m.phase == PhaseGenerating {
		return
	}

	m.debouncer.Stop()
	m.holder.Clear()
	m.description = ""
	m.editorVisible = false
	m.result = nil
	m.workErr = nil
	m.activeKey = ""
	m.confirmed = false
	m.phase = PhaseAwaitingPoseSource
}

// WaitIdle は、保留中の正規化を前倒しで発火させ、進行中の正規化が
// すべて解決するまで待ちます。CLI のような協調的な呼び出し元用です。
func (m *Machine) WaitIdle() {
	m.debouncer.Flush()
	m.wg.Wait()
}

// Teardown は、Machine の破棄時に保持リソースを解放します。
func (m *Machine) Teardown() {
	m.debouncer.Stop()
	m.holder.Teardown()
}

// Snapshot は、現在の状態の読み取り専用コピーを返します。
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Phase:         m.phase,
		HasIdentity:   !m.identity.IsZero(),
		Description:   m.description,
		EditorVisible: m.editorVisible,
		Result:        m.result,
		Err:           m.workErr,
	}
}
