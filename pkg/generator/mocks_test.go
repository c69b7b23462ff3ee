package generator

import (
	"context"
	"io"

	"github.com/shouni/go-gemini-client/gemini"
	"google.golang.org/genai"

	"github.com/shouni/go-pose-kit/pkg/domain"
)

// --- Mocks ---

// mockRenderer は、呼び出しごとに台本どおりの結果を返すレンダラーです。
type mockRenderer struct {
	calls    int
	script   []error // 各試行で返すエラー（nil なら成功）
	result   *domain.GenerationResult
	lastReqs []RenderRequest
}

func (m *mockRenderer) Render(ctx context.Context, req RenderRequest) (*domain.GenerationResult, error) {
	idx := m.calls
	m.calls++
	m.lastReqs = append(m.lastReqs, req)

	if idx < len(m.script) && m.script[idx] != nil {
		return nil, m.script[idx]
	}
	if m.result != nil {
		return m.result, nil
	}
	return &domain.GenerationResult{
		Image: domain.ImagePayload{Data: []byte("generated"), MimeType: "image/png"},
	}, nil
}

// mockAIClient は、gemini.GenerativeModel の差し替え実装です。
type mockAIClient struct {
	generateCalled int
	lastModel      string
	lastParts      []*genai.Part
	lastOpts       gemini.GenerateOptions

	textReply  string
	imageReply []byte
	err        error
}

func (m *mockAIClient) GenerateContent(ctx context.Context, model string, prompt string) (*gemini.Response, error) {
	return nil, nil
}

func (m *mockAIClient) GenerateWithParts(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
	m.generateCalled++
	m.lastModel = model
	m.lastParts = parts
	m.lastOpts = opts

	if m.err != nil {
		return nil, m.err
	}

	var respParts []*genai.Part
	if m.textReply != "" {
		respParts = append(respParts, &genai.Part{Text: m.textReply})
	}
	if len(m.imageReply) > 0 {
		respParts = append(respParts, &genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: m.imageReply}})
	}

	return &gemini.Response{
		RawResponse: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: respParts},
			}},
		},
	}, nil
}

func (m *mockAIClient) IsVertexAI() bool {
	return false
}

func (m *mockAIClient) UploadFile(ctx context.Context, r io.Reader, mimeType, displayName string) (string, string, error) {
	return "", "", nil
}

func (m *mockAIClient) DeleteFile(ctx context.Context, name string) error {
	return nil
}

func (m *mockAIClient) GetFile(ctx context.Context, name string) (*genai.File, error) {
	return nil, nil
}
