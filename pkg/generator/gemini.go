package generator

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/gemini-image-kit/imgutil"
	"github.com/shouni/go-gemini-client/gemini"
	"google.golang.org/genai"

	"github.com/shouni/go-pose-kit/pkg/domain"
	"github.com/shouni/go-pose-kit/pkg/prompts"
)

const (
	// UseImageCompression は、転送前にポーズ画像を JPEG へ再エンコードするかどうかです。
	UseImageCompression = true
	// ImageCompressionQuality は、再エンコード時の JPEG 品質です。
	ImageCompressionQuality = 75
	// renderAspectRatio は、ポーズ生成画像のアスペクト比です。
	renderAspectRatio = "1:1"
)

// GeminiVision は、describe / render の両能力を Gemini で実装します。
type GeminiVision struct {
	aiClient      gemini.GenerativeModel
	describeModel string
	renderModel   string
	promptBuilder *prompts.RenderPromptBuilder
}

// NewGeminiVision は、依存関係を注入して GeminiVision を初期化します。
func NewGeminiVision(aiClient gemini.GenerativeModel, describeModel, renderModel string, pb *prompts.RenderPromptBuilder) (*GeminiVision, error) {
	if aiClient == nil {
		return nil, fmt.Errorf("aiClient は必須です")
	}
	if describeModel == "" || renderModel == "" {
		return nil, fmt.Errorf("describeModel と renderModel は必須です")
	}
	if pb == nil {
		return nil, fmt.Errorf("promptBuilder は必須です")
	}

	return &GeminiVision{
		aiClient:      aiClient,
		describeModel: describeModel,
		renderModel:   renderModel,
		promptBuilder: pb,
	}, nil
}

// Describe は、テキストまたは画像のポーズソースを中立的な1文へ正規化します。
func (g *GeminiVision) Describe(ctx context.Context, req DescribeRequest) (string, error) {
	hasText := strings.TrimSpace(req.Text) != ""
	hasImage := req.Image != nil && !req.Image.IsEmpty()
	if hasText == hasImage {
		return "", fmt.Errorf("describe には text か image のどちらか一方だけを指定してください")
	}

	var parts []*genai.Part
	if hasText {
		parts = append(parts, &genai.Part{Text: prompts.DescribeTextPreamble + strings.TrimSpace(req.Text)})
	} else {
		parts = append(parts, &genai.Part{Text: prompts.DescribeImagePreamble})
		parts = append(parts, g.toImagePart(*req.Image))
	}

	opts := gemini.GenerateOptions{SystemPrompt: prompts.DescribeSystemInstruction}
	resp, err := g.aiClient.GenerateWithParts(ctx, g.describeModel, parts, opts)
	if err != nil {
		return "", fmt.Errorf("ポーズ記述の取得に失敗しました: %w", err)
	}

	text, err := parseTextResponse(resp)
	if err != nil {
		return "", err
	}

	slog.Info("Pose description normalized", "model", g.describeModel, "length", len(text))
	return text, nil
}

// Render は、ベースキャラクターを固定したままポーズ記述どおりの画像を生成します。
func (g *GeminiVision) Render(ctx context.Context, req RenderRequest) (*domain.GenerationResult, error) {
	if req.Mode == domain.PoseSourceImage && (req.PoseImage == nil || req.PoseImage.IsEmpty()) {
		return nil, fmt.Errorf("imageモードでは poseImage が必須です")
	}

	withPoseImage := req.Mode == domain.PoseSourceImage
	userPrompt, systemPrompt := g.promptBuilder.BuildRenderPrompt(req.Description, withPoseImage)

	parts := []*genai.Part{
		{Text: userPrompt},
		g.toImagePart(req.BaseImage),
	}
	if withPoseImage {
		parts = append(parts, g.toImagePart(*req.PoseImage))
	}

	opts := gemini.GenerateOptions{
		SystemPrompt: systemPrompt,
		AspectRatio:  renderAspectRatio,
	}
	resp, err := g.aiClient.GenerateWithParts(ctx, g.renderModel, parts, opts)
	if err != nil {
		return nil, err // 分類はオーケストレーター側で行います
	}

	return parseImageResponse(resp)
}

// toImagePart は、画像ペイロードをリクエストパーツへ変換します。
// 転送サイズを抑えるため、可能であれば JPEG に再エンコードします。
func (g *GeminiVision) toImagePart(img domain.ImagePayload) *genai.Part {
	data := img.Data
	mimeType := img.MimeType
	if UseImageCompression {
		if compressed, err := imgutil.CompressToJPEG(bytes.NewReader(data), ImageCompressionQuality); err == nil {
			data = compressed
			mimeType = "image/jpeg"
		}
	}
	return &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}}
}

// parseTextResponse は、レスポンスから最初のテキストパーツを取り出します。
func parseTextResponse(resp *gemini.Response) (string, error) {
	if resp == nil || resp.RawResponse == nil || len(resp.RawResponse.Candidates) == 0 {
		return "", fmt.Errorf("invalid response")
	}
	candidate := resp.RawResponse.Candidates[0]
	if candidate.Content == nil {
		return "", fmt.Errorf("invalid response")
	}
	for _, part := range candidate.Content.Parts {
		if text := strings.TrimSpace(part.Text); text != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("レスポンスにテキストが含まれていません")
}

// parseImageResponse は、レスポンスから最初の画像パーツを取り出します。
// エラーシグナルなしで画像が1枚も返らない場合は ErrNoImageProduced を返します。
func parseImageResponse(resp *gemini.Response) (*domain.GenerationResult, error) {
	if resp == nil || resp.RawResponse == nil || len(resp.RawResponse.Candidates) == 0 {
		return nil, ErrNoImageProduced
	}
	candidate := resp.RawResponse.Candidates[0]
	if candidate.Content == nil {
		return nil, ErrNoImageProduced
	}
	for _, part := range candidate.Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return &domain.GenerationResult{
				Image: domain.ImagePayload{Data: part.InlineData.Data, MimeType: part.InlineData.MIMEType},
			}, nil
		}
	}
	return nil, ErrNoImageProduced
}
