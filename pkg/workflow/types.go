package workflow

import (
	"github.com/shouni/go-pose-kit/pkg/domain"
)

// Phase は、ポーズ生成ワークフローの現在の段階を表します。
type Phase string

const (
	// PhaseNoIdentity は、ベースキャラクターが未登録の初期状態です。
	PhaseNoIdentity Phase = "no_identity"
	// PhaseAwaitingPoseSource は、ポーズソースの入力を待っている状態です。
	PhaseAwaitingPoseSource Phase = "awaiting_pose_source"
	// PhaseNormalizing は、ポーズ記述の正規化が進行中の状態です。
	PhaseNormalizing Phase = "normalizing_description"
	// PhaseDescriptionReady は、正規化済みの記述が編集可能になった状態です。
	PhaseDescriptionReady Phase = "description_ready"
	// PhaseGenerating は、画像生成のリトライループが進行中の状態です。
	PhaseGenerating Phase = "generating"
	// PhaseResult は、生成結果が得られた終端状態です。ここから新しい
	// ポーズへやり直せます。
	PhaseResult Phase = "result"
)

// Snapshot は、ある時点のワークフロー状態の読み取り専用コピーです。
// UI 層はこのスナップショットだけを見て描画します。
type Snapshot struct {
	Phase         Phase
	HasIdentity   bool
	Description   domain.PoseDescription
	EditorVisible bool
	Result        *domain.GenerationResult
	Err           *domain.WorkflowError
}
