package generator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shouni/go-pose-kit/pkg/domain"
)

// ErrNoImageProduced は、エラーシグナルなしで画像が1枚も返らなかったことを示します。
// リトライ会計上は一時的失敗と同じ扱いです。
var ErrNoImageProduced = errors.New("no image produced")

// ユーザーへ提示する分類別メッセージです。
const (
	msgAuthInvalid = "認証情報またはモデル設定が正しくない可能性があります。APIキーと設定を確認してください。"
	msgPoseDetect  = "参照画像からポーズを検出できませんでした。被写体が1人ではっきり写った画像を試してください。"
	msgMultiPeople = "参照画像に複数の人物が検出されました。1人だけになるように切り抜いてください。"
	msgNoImage     = "画像が生成されませんでした"
)

// classifyRenderError は、レンダリング失敗をユーザー向けの分類へ写像します。
// 構造化シグナルを最優先し、取れない場合はメッセージ文字列の照合に
// フォールバックします。照合は優先順で行い、最初に一致したものが勝ちます。
// attempt は 1 始まりの試行番号で、一時的失敗のメッセージに含めます。
func classifyRenderError(err error, attempt int) *domain.WorkflowError {
	var sigErr *domain.RenderSignalError
	if errors.As(err, &sigErr) {
		switch sigErr.Signal {
		case domain.SignalAuthInvalid:
			return domain.NewWorkflowError(domain.ErrAuthInvalid, msgAuthInvalid)
		case domain.SignalPoseDetectionFailed:
			return domain.NewWorkflowError(domain.ErrPoseDetectionFailed, msgPoseDetect)
		case domain.SignalMultiplePeopleDetected:
			return domain.NewWorkflowError(domain.ErrMultiplePeopleDetected, msgMultiPeople)
		}
		// SignalOther は文字列照合に委ねます
	}

	if errors.Is(err, ErrNoImageProduced) {
		return domain.NewWorkflowError(domain.ErrNoImageProduced,
			fmt.Sprintf("%s（%d回目の試行）", msgNoImage, attempt))
	}

	// 文字列照合テーブル。プロバイダー固有の文言に依存する暫定策ですが、
	// 構造化シグナルが取れない経路ではこの対応表が正となります。
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not found"):
		// "entity not found" 系はAPIキーやモデル名の設定不備を意味します
		return domain.NewWorkflowError(domain.ErrAuthInvalid, msgAuthInvalid)
	case strings.Contains(msg, "pose detection"):
		return domain.NewWorkflowError(domain.ErrPoseDetectionFailed, msgPoseDetect)
	case strings.Contains(msg, "multiple people"):
		return domain.NewWorkflowError(domain.ErrMultiplePeopleDetected, msgMultiPeople)
	}

	return domain.NewWorkflowError(domain.ErrGenerationTransient,
		fmt.Sprintf("生成に失敗しました（%d回目の試行）: %v", attempt, err))
}
