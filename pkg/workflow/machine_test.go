package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-pose-kit/pkg/domain"
	"github.com/shouni/go-pose-kit/pkg/generator"
	"github.com/shouni/go-pose-kit/pkg/identity"
	"github.com/shouni/go-pose-kit/pkg/normalizer"
	"github.com/shouni/go-pose-kit/pkg/pose"
)

const testDebounceWindow = 20 * time.Millisecond

// newTestMachine は、差し替え能力とインメモリストアで Machine を組み立てます。
func newTestMachine(t *testing.T, describer *mockDescriber, renderer *mockRenderer) *Machine {
	t.Helper()

	store, err := identity.NewStore(identity.NewMemoryKV())
	require.NoError(t, err)

	norm, err := normalizer.New(describer)
	require.NoError(t, err)

	orch, err := generator.NewOrchestrator(renderer, nil)
	require.NoError(t, err)

	m, err := NewMachine(MachineArgs{
		Store:        store,
		Holder:       pose.NewHolder(),
		Normalizer:   norm,
		Orchestrator: orch,
		Debouncer:    normalizer.NewDebouncer(testDebounceWindow),
	})
	require.NoError(t, err)
	t.Cleanup(m.Teardown)
	return m
}

func registerIdentity(t *testing.T, m *Machine) {
	t.Helper()
	err := m.SetIdentity(context.Background(), domain.ImagePayload{
		Data: []byte("rex-base-character"), MimeType: "image/png",
	})
	require.NoError(t, err)
	require.Equal(t, PhaseAwaitingPoseSource, m.Snapshot().Phase)
}

func TestMachine_TextModeHappyPath(t *testing.T) {
	t.Run("テキスト指定から結果フェーズまで一直線に進むのだ", func(t *testing.T) {
		ctx := context.Background()
		describer := &mockDescriber{replies: []string{"A character doing push-ups, side view"}}
		renderer := &mockRenderer{}
		m := newTestMachine(t, describer, renderer)
		registerIdentity(t, m)

		m.SetTextSource(ctx, "push-ups, side view")
		m.WaitIdle()

		snap := m.Snapshot()
		require.Equal(t, PhaseDescriptionReady, snap.Phase)
		assert.True(t, snap.EditorVisible)
		assert.Equal(t, domain.PoseDescription("A character doing push-ups, side view"), snap.Description)

		require.NoError(t, m.Generate(ctx))

		snap = m.Snapshot()
		assert.Equal(t, PhaseResult, snap.Phase)
		assert.Nil(t, snap.Err)
		require.NotNil(t, snap.Result)
		assert.Equal(t, []byte("rendered-pose"), snap.Result.Image.Data)
		assert.Equal(t, 1, describer.callCount(), "describeはちょうど1回なのだ")
		assert.Equal(t, 1, renderer.callCount(), "renderはちょうど1回なのだ")
	})
}

func TestMachine_ImageModeFatalError(t *testing.T) {
	t.Run("複数人物検出で記述編集フェーズへ戻り結果は残らないのだ", func(t *testing.T) {
		ctx := context.Background()
		describer := &mockDescriber{replies: []string{"Two figures standing together"}}
		renderer := &mockRenderer{script: []error{
			&domain.RenderSignalError{Signal: domain.SignalMultiplePeopleDetected},
		}}
		m := newTestMachine(t, describer, renderer)
		registerIdentity(t, m)

		m.SetImageSource(ctx, domain.ImagePayload{Data: []byte("crowd-photo"), MimeType: "image/jpeg"})
		m.WaitIdle()
		require.Equal(t, PhaseDescriptionReady, m.Snapshot().Phase)

		require.NoError(t, m.Generate(ctx))

		snap := m.Snapshot()
		assert.Equal(t, PhaseDescriptionReady, snap.Phase)
		require.NotNil(t, snap.Err)
		assert.Equal(t, domain.ErrMultiplePeopleDetected, snap.Err.Category)
		assert.Nil(t, snap.Result)
		assert.Equal(t, 1, renderer.callCount(), "致命的エラーは1回で打ち切るのだ")

		// 確定時点のポーズ画像がリクエストに載っているのだ
		req := renderer.lastRequest()
		assert.Equal(t, domain.PoseSourceImage, req.Mode)
		require.NotNil(t, req.PoseImage)
		assert.Equal(t, []byte("crowd-photo"), req.PoseImage.Data)
	})
}

func TestMachine_BlankTextNeverDescribes(t *testing.T) {
	t.Run("空白のみのテキストはdescribeを発火させないのだ", func(t *testing.T) {
		ctx := context.Background()
		describer := &mockDescriber{}
		m := newTestMachine(t, describer, &mockRenderer{})
		registerIdentity(t, m)

		m.SetTextSource(ctx, "   \t  ")
		m.WaitIdle()

		assert.Zero(t, describer.callCount())
		assert.Equal(t, PhaseAwaitingPoseSource, m.Snapshot().Phase)
	})
}

func TestMachine_DebounceCoalescesRapidEdits(t *testing.T) {
	t.Run("連続編集では最終値だけがdescribeされるのだ", func(t *testing.T) {
		ctx := context.Background()
		describer := &mockDescriber{replies: []string{"A figure jumping."}}
		m := newTestMachine(t, describer, &mockRenderer{})
		registerIdentity(t, m)

		for _, text := range []string{"j", "ju", "jum", "jumping"} {
			m.SetTextSource(ctx, text)
		}

		require.Eventually(t, func() bool {
			return describer.callCount() == 1
		}, time.Second, 5*time.Millisecond)

		// 追加呼び出しが発生しないことを静止ウィンドウ2つ分待って確認
		time.Sleep(2 * testDebounceWindow)
		assert.Equal(t, 1, describer.callCount())
		assert.Equal(t, "jumping", describer.lastReq.Text)
	})
}

func TestMachine_StaleNormalizationDiscarded(t *testing.T) {
	t.Run("古いソースの結果は新しいソースの状態を上書きしないのだ", func(t *testing.T) {
		ctx := context.Background()
		gate := make(chan struct{})
		describer := &mockDescriber{
			gate:    gate,
			replies: []string{"description for A", "description for B"},
		}
		m := newTestMachine(t, describer, &mockRenderer{})
		registerIdentity(t, m)

		// ソースAの正規化を発火させ、describe呼び出し中で止める
		m.SetTextSource(ctx, "pose A")
		require.Eventually(t, func() bool {
			return describer.callCount() == 1
		}, time.Second, 5*time.Millisecond, "Aのdescribeが開始するのだ")

		// Aが解決する前にソースをBへ変更する
		m.SetTextSource(ctx, "pose B")

		// Aを解決させる。結果は破棄されなければならない
		close(gate)
		m.WaitIdle()

		snap := m.Snapshot()
		assert.Equal(t, domain.PoseDescription("description for B"), snap.Description,
			"Bの記述だけが見えるのだ")
		assert.Equal(t, 2, describer.callCount())
	})
}

func TestMachine_NormalizationFailureHidesEditor(t *testing.T) {
	t.Run("正規化失敗時はエラーが付いて編集欄は隠れたままなのだ", func(t *testing.T) {
		ctx := context.Background()
		describer := &mockDescriber{err: errors.New("describe backend down")}
		m := newTestMachine(t, describer, &mockRenderer{})
		registerIdentity(t, m)

		m.SetTextSource(ctx, "handstand")
		m.WaitIdle()

		snap := m.Snapshot()
		assert.Equal(t, PhaseAwaitingPoseSource, snap.Phase)
		assert.False(t, snap.EditorVisible)
		require.NotNil(t, snap.Err)
		assert.Equal(t, domain.ErrDescriptionFailed, snap.Err.Category)
	})
}

func TestMachine_EditedDescriptionIsHonored(t *testing.T) {
	t.Run("確定前のユーザー編集が生成リクエストに反映されるのだ", func(t *testing.T) {
		ctx := context.Background()
		describer := &mockDescriber{replies: []string{"A figure sitting."}}
		renderer := &mockRenderer{}
		m := newTestMachine(t, describer, renderer)
		registerIdentity(t, m)

		m.SetTextSource(ctx, "sitting")
		m.WaitIdle()

		m.EditDescription("A figure sitting cross-legged on the floor, arms relaxed.")
		require.NoError(t, m.Generate(ctx))

		req := renderer.lastRequest()
		assert.Equal(t, "A figure sitting cross-legged on the floor, arms relaxed.", req.Description)
	})
}

func TestMachine_DeleteIdentityCascades(t *testing.T) {
	t.Run("ベースキャラクター削除で下流が一括クリアされるのだ", func(t *testing.T) {
		ctx := context.Background()
		describer := &mockDescriber{replies: []string{"A figure waving."}}
		m := newTestMachine(t, describer, &mockRenderer{})
		registerIdentity(t, m)

		m.SetTextSource(ctx, "waving")
		m.WaitIdle()
		require.NoError(t, m.Generate(ctx))
		require.Equal(t, PhaseResult, m.Snapshot().Phase)

		require.NoError(t, m.DeleteIdentity(ctx))

		snap := m.Snapshot()
		assert.Equal(t, PhaseNoIdentity, snap.Phase)
		assert.False(t, snap.HasIdentity)
		assert.Empty(t, snap.Description)
		assert.Nil(t, snap.Result)
		assert.Nil(t, snap.Err)
		assert.False(t, snap.EditorVisible)
	})
}

func TestMachine_TryNewPoseIdempotent(t *testing.T) {
	t.Run("2回連続で呼んでも安全にポーズソース待ちへ戻るのだ", func(t *testing.T) {
		ctx := context.Background()
		describer := &mockDescriber{replies: []string{"A figure kneeling."}}
		m := newTestMachine(t, describer, &mockRenderer{})
		registerIdentity(t, m)

		m.SetTextSource(ctx, "kneeling")
		m.WaitIdle()
		require.NoError(t, m.Generate(ctx))
		require.Equal(t, PhaseResult, m.Snapshot().Phase)

		m.TryNewPose()
		m.TryNewPose()

		snap := m.Snapshot()
		assert.Equal(t, PhaseAwaitingPoseSource, snap.Phase)
		assert.True(t, snap.HasIdentity, "ベースキャラクターは残るのだ")
		assert.Empty(t, snap.Description)
		assert.Nil(t, snap.Result)
		assert.Nil(t, snap.Err)
	})
}

func TestMachine_GenerateIsNoOpWithoutDescription(t *testing.T) {
	t.Run("前提が揃わない確定操作は何も起こさないのだ", func(t *testing.T) {
		ctx := context.Background()
		renderer := &mockRenderer{}
		m := newTestMachine(t, &mockDescriber{}, renderer)
		registerIdentity(t, m)

		require.NoError(t, m.Generate(ctx))

		assert.Zero(t, renderer.callCount())
		assert.Equal(t, PhaseAwaitingPoseSource, m.Snapshot().Phase)
	})
}

func TestMachine_RestoreFromStore(t *testing.T) {
	t.Run("保存済みのベースキャラクターが復元されるのだ", func(t *testing.T) {
		ctx := context.Background()
		kv := identity.NewMemoryKV()
		store, err := identity.NewStore(kv)
		require.NoError(t, err)

		// 前のセッションで保存されたことにする
		require.NoError(t, store.Save(ctx, domain.BaseIdentity{
			Image: domain.ImagePayload{Data: []byte("saved-rex"), MimeType: "image/png"},
		}))

		norm, err := normalizer.New(&mockDescriber{})
		require.NoError(t, err)
		orch, err := generator.NewOrchestrator(&mockRenderer{}, nil)
		require.NoError(t, err)

		m, err := NewMachine(MachineArgs{Store: store, Normalizer: norm, Orchestrator: orch})
		require.NoError(t, err)
		t.Cleanup(m.Teardown)

		require.Equal(t, PhaseNoIdentity, m.Snapshot().Phase)
		require.NoError(t, m.Restore(ctx))

		snap := m.Snapshot()
		assert.Equal(t, PhaseAwaitingPoseSource, snap.Phase)
		assert.True(t, snap.HasIdentity)
	})
}

func TestMachine_ModeSwitchResetsCycle(t *testing.T) {
	t.Run("モード切り替えで記述とエラーが捨てられるのだ", func(t *testing.T) {
		ctx := context.Background()
		describer := &mockDescriber{replies: []string{"A figure running.", "A figure from a photo."}}
		m := newTestMachine(t, describer, &mockRenderer{})
		registerIdentity(t, m)

		m.SetTextSource(ctx, "running")
		m.WaitIdle()
		require.Equal(t, PhaseDescriptionReady, m.Snapshot().Phase)

		m.SetImageSource(ctx, domain.ImagePayload{Data: []byte("photo"), MimeType: "image/jpeg"})

		snap := m.Snapshot()
		assert.NotEqual(t, domain.PoseDescription("A figure running."), snap.Description)
		assert.Empty(t, snap.Description, "切り替え直後は記述が空なのだ")

		m.WaitIdle()
		snap = m.Snapshot()
		assert.Equal(t, domain.PoseDescription("A figure from a photo."), snap.Description)
	})
}
