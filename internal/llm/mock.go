package llm

import (
	"context"
	"sync"

	"promptfabric/internal/domain"
)

// MockGateway permite tests sin llamar a un LLM real.
// Registra las llamadas recibidas para inspeccion.
type MockGateway struct {
	Response    string
	Err         error
	GenerateErr error
	Models      []string

	mu            sync.Mutex
	ChatCalls     []ChatRequest
	GenerateCalls []GenerateRequest
}

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) ChatCompletion(ctx context.Context, req ChatRequest) (domain.GenerationResult, error) {
	m.mu.Lock()
	m.ChatCalls = append(m.ChatCalls, req)
	m.mu.Unlock()
	if m.Err != nil {
		return domain.GenerationResult{}, m.Err
	}
	model := req.Model
	if model == "" {
		model = "mock-model"
	}
	return domain.GenerationResult{
		Content:      m.Response,
		Model:        model,
		FinishReason: "stop",
		Usage:        domain.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
	}, nil
}

func (m *MockGateway) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	m.mu.Lock()
	m.GenerateCalls = append(m.GenerateCalls, req)
	m.mu.Unlock()
	if m.GenerateErr != nil {
		return "", m.GenerateErr
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

func (m *MockGateway) ListModels(ctx context.Context) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Models, nil
}

func (m *MockGateway) Health(ctx context.Context) error {
	return m.Err
}
