package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-pose-kit/pkg/domain"
)

func testIdentity() domain.BaseIdentity {
	return domain.BaseIdentity{
		Image: domain.ImagePayload{Data: []byte("base-character"), MimeType: "image/png"},
	}
}

func asWorkflowError(t *testing.T, err error) *domain.WorkflowError {
	t.Helper()
	var wErr *domain.WorkflowError
	require.ErrorAs(t, err, &wErr)
	return wErr
}

func TestOrchestrator_Generate_RetryBudget(t *testing.T) {
	ctx := context.Background()

	t.Run("2回の一時的失敗のあと3回目で成功するのだ", func(t *testing.T) {
		renderer := &mockRenderer{script: []error{
			errors.New("temporary glitch"),
			errors.New("another glitch"),
			nil,
		}}
		o, err := NewOrchestrator(renderer, nil)
		require.NoError(t, err)

		result, err := o.Generate(ctx, testIdentity(), domain.PoseSourceText, nil, "jumping, side view")

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, 3, renderer.calls, "ちょうど3回呼ばれるのだ")
	})

	t.Run("一時的失敗で全試行を使い切ると最後のメッセージが残るのだ", func(t *testing.T) {
		renderer := &mockRenderer{script: []error{
			errors.New("glitch one"),
			errors.New("glitch two"),
			errors.New("glitch three"),
		}}
		o, err := NewOrchestrator(renderer, nil)
		require.NoError(t, err)

		_, err = o.Generate(ctx, testIdentity(), domain.PoseSourceText, nil, "sitting")

		wErr := asWorkflowError(t, err)
		assert.Equal(t, domain.ErrGenerationTransient, wErr.Category)
		assert.Contains(t, wErr.Message, "3回目", "最終試行の番号が含まれるのだ")
		assert.Contains(t, wErr.Message, "glitch three")
		assert.Equal(t, 3, renderer.calls)
	})
}

func TestOrchestrator_Generate_FatalShortCircuit(t *testing.T) {
	ctx := context.Background()

	t.Run("ポーズ検出失敗は1回で打ち切るのだ", func(t *testing.T) {
		renderer := &mockRenderer{script: []error{
			&domain.RenderSignalError{Signal: domain.SignalPoseDetectionFailed},
		}}
		o, err := NewOrchestrator(renderer, nil)
		require.NoError(t, err)

		poseImg := &domain.ImagePayload{Data: []byte("pose-ref"), MimeType: "image/jpeg"}
		_, err = o.Generate(ctx, testIdentity(), domain.PoseSourceImage, poseImg, "standing")

		wErr := asWorkflowError(t, err)
		assert.Equal(t, domain.ErrPoseDetectionFailed, wErr.Category)
		assert.Equal(t, 1, renderer.calls, "2回目以降の試行は行わないのだ")
	})

	t.Run("複数人物検出も即時打ち切りなのだ", func(t *testing.T) {
		renderer := &mockRenderer{script: []error{
			&domain.RenderSignalError{Signal: domain.SignalMultiplePeopleDetected},
		}}
		o, err := NewOrchestrator(renderer, nil)
		require.NoError(t, err)

		poseImg := &domain.ImagePayload{Data: []byte("pose-ref"), MimeType: "image/jpeg"}
		_, err = o.Generate(ctx, testIdentity(), domain.PoseSourceImage, poseImg, "standing")

		wErr := asWorkflowError(t, err)
		assert.Equal(t, domain.ErrMultiplePeopleDetected, wErr.Category)
		assert.Equal(t, 1, renderer.calls)
	})

	t.Run("entity not found系は認証エラーとして即時打ち切りなのだ", func(t *testing.T) {
		renderer := &mockRenderer{script: []error{
			errors.New("requested entity was not found"),
		}}
		o, err := NewOrchestrator(renderer, nil)
		require.NoError(t, err)

		_, err = o.Generate(ctx, testIdentity(), domain.PoseSourceText, nil, "standing")

		wErr := asWorkflowError(t, err)
		assert.Equal(t, domain.ErrAuthInvalid, wErr.Category)
		assert.Equal(t, 1, renderer.calls)
	})
}

func TestOrchestrator_Generate_NoImageProduced(t *testing.T) {
	t.Run("画像ゼロ枚は一時的失敗としてリトライ会計に乗るのだ", func(t *testing.T) {
		renderer := &mockRenderer{script: []error{
			ErrNoImageProduced,
			nil,
		}}
		o, err := NewOrchestrator(renderer, nil)
		require.NoError(t, err)

		result, err := o.Generate(context.Background(), testIdentity(), domain.PoseSourceText, nil, "kneeling")

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, 2, renderer.calls)
	})
}

func TestOrchestrator_Generate_Preconditions(t *testing.T) {
	ctx := context.Background()
	renderer := &mockRenderer{}
	o, err := NewOrchestrator(renderer, nil)
	require.NoError(t, err)

	t.Run("ベースキャラクターなしでは生成しないのだ", func(t *testing.T) {
		_, err := o.Generate(ctx, domain.BaseIdentity{}, domain.PoseSourceText, nil, "pose")
		assert.Error(t, err)
		assert.Zero(t, renderer.calls)
	})

	t.Run("空白のみの記述では生成しないのだ", func(t *testing.T) {
		_, err := o.Generate(ctx, testIdentity(), domain.PoseSourceText, nil, "   ")
		assert.Error(t, err)
		assert.Zero(t, renderer.calls)
	})

	t.Run("imageモードでポーズ画像なしはエラーなのだ", func(t *testing.T) {
		_, err := o.Generate(ctx, testIdentity(), domain.PoseSourceImage, nil, "pose")
		assert.Error(t, err)
		assert.Zero(t, renderer.calls)
	})
}

func TestOrchestrator_Generate_DoesNotMutateRequest(t *testing.T) {
	t.Run("ベース画像は毎試行バイト単位で同一なのだ", func(t *testing.T) {
		renderer := &mockRenderer{script: []error{errors.New("glitch"), nil}}
		o, err := NewOrchestrator(renderer, nil)
		require.NoError(t, err)

		id := testIdentity()
		_, err = o.Generate(context.Background(), id, domain.PoseSourceText, nil, "waving")
		require.NoError(t, err)

		require.Len(t, renderer.lastReqs, 2)
		assert.Equal(t, renderer.lastReqs[0].BaseImage.Data, renderer.lastReqs[1].BaseImage.Data)
		assert.Equal(t, id.Image.Data, renderer.lastReqs[0].BaseImage.Data)
	})
}
