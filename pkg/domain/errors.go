package domain

import "fmt"

// ErrorCategory は、ユーザーに提示するエラーの分類です。
type ErrorCategory string

const (
	// ErrDescriptionFailed は、ポーズ記述の正規化が失敗したことを示します。
	ErrDescriptionFailed ErrorCategory = "description_failed"
	// ErrAuthInvalid は、認証・設定レベルの致命的な失敗を示します。
	ErrAuthInvalid ErrorCategory = "auth_invalid"
	// ErrPoseDetectionFailed は、参照画像からポーズを検出できなかったことを示します。
	ErrPoseDetectionFailed ErrorCategory = "pose_detection_failed"
	// ErrMultiplePeopleDetected は、参照画像に複数の人物が写っていたことを示します。
	ErrMultiplePeopleDetected ErrorCategory = "multiple_people_detected"
	// ErrGenerationTransient は、リトライで解消しうる一時的な生成失敗を示します。
	ErrGenerationTransient ErrorCategory = "generation_transient"
	// ErrNoImageProduced は、エラーなしで画像が1枚も返らなかったことを示します。
	// リトライ会計上は一時的失敗と同じ扱いになります。
	ErrNoImageProduced ErrorCategory = "no_image_produced"
)

// IsFatal は、リトライしても入力を変えない限り成功しえない分類かどうかを返します。
func (c ErrorCategory) IsFatal() bool {
	switch c {
	case ErrAuthInvalid, ErrPoseDetectionFailed, ErrMultiplePeopleDetected:
		return true
	}
	return false
}

// WorkflowError は、現在のフェーズに添えてユーザーへ提示される単一のエラーです。
// 状態を進める操作のたびにクリアされ、積み上げられることはありません。
type WorkflowError struct {
	Category ErrorCategory `json:"category"`
	Message  string        `json:"message"`
}

// Error は error インターフェースを満たします。
func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// NewWorkflowError は、分類とメッセージから WorkflowError を作成します。
func NewWorkflowError(category ErrorCategory, message string) *WorkflowError {
	return &WorkflowError{Category: category, Message: message}
}

// RenderSignal は、レンダリング基盤が返す構造化された失敗シグナルです。
type RenderSignal string

const (
	SignalAuthInvalid            RenderSignal = "AUTH_INVALID"
	SignalPoseDetectionFailed    RenderSignal = "POSE_DETECTION_FAILED"
	SignalMultiplePeopleDetected RenderSignal = "MULTIPLE_PEOPLE_DETECTED"
	SignalOther                  RenderSignal = "OTHER"
)

// RenderSignalError は、構造化シグナル付きのレンダリング失敗です。
// 文字列照合に頼らない分類を可能にするため、基盤実装はシグナルを
// 特定できた場合にこの型でエラーを返します。
type RenderSignalError struct {
	Signal  RenderSignal
	Message string
}

// Error は error インターフェースを満たします。
func (e *RenderSignalError) Error() string {
	if e.Message == "" {
		return string(e.Signal)
	}
	return fmt.Sprintf("%s: %s", e.Signal, e.Message)
}
