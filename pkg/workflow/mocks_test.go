package workflow

import (
	"context"
	"sync"

	"github.com/shouni/go-pose-kit/pkg/domain"
	"github.com/shouni/go-pose-kit/pkg/generator"
)

// --- Mocks ---

// mockDescriber は、呼び出し順に応じた応答を返す describe 能力です。
// gate を設定すると、最初の呼び出しは gate が閉じられるまでブロックします。
type mockDescriber struct {
	mu      sync.Mutex
	calls   int
	replies []string
	err     error
	gate    chan struct{}
	gated   bool
	lastReq generator.DescribeRequest
}

func (m *mockDescriber) Describe(ctx context.Context, req generator.DescribeRequest) (string, error) {
	m.mu.Lock()
	idx := m.calls
	m.calls++
	m.lastReq = req
	gate := m.gate
	shouldBlock := gate != nil && !m.gated
	if shouldBlock {
		m.gated = true
	}
	m.mu.Unlock()

	if shouldBlock {
		<-gate
	}

	if m.err != nil {
		return "", m.err
	}
	if idx < len(m.replies) {
		return m.replies[idx], nil
	}
	return "A figure in a neutral standing pose.", nil
}

func (m *mockDescriber) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockRenderer は、台本どおりの結果を返すレンダリング能力です。
type mockRenderer struct {
	mu     sync.Mutex
	calls  int
	script []error
	reqs   []generator.RenderRequest
}

func (m *mockRenderer) Render(ctx context.Context, req generator.RenderRequest) (*domain.GenerationResult, error) {
	m.mu.Lock()
	idx := m.calls
	m.calls++
	m.reqs = append(m.reqs, req)
	m.mu.Unlock()

	if idx < len(m.script) && m.script[idx] != nil {
		return nil, m.script[idx]
	}
	return &domain.GenerationResult{
		Image: domain.ImagePayload{Data: []byte("rendered-pose"), MimeType: "image/png"},
	}, nil
}

func (m *mockRenderer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockRenderer) lastRequest() generator.RenderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reqs[len(m.reqs)-1]
}
