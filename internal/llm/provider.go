package llm

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"promptfabric/internal/domain"
)

const (
	ProviderOllama   = "ollama"
	ProviderLMStudio = "lmstudio"
	ProviderOpenAI   = "openai"

	defaultTemperature = 0.7
	defaultMaxTokens   = 2048
	defaultTimeout     = 120 * time.Second
)

// Gateway abstrae el backend de generacion (OpenAI-compatible u Ollama nativo).
type Gateway interface {
	ChatCompletion(ctx context.Context, req ChatRequest) (domain.GenerationResult, error)
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	ListModels(ctx context.Context) ([]string, error)
	Health(ctx context.Context) error
	Name() string
}

// ChatRequest describe una llamada de chat. Los mensajes van del mas viejo al mas nuevo.
type ChatRequest struct {
	Messages     []domain.ChatMessage
	Model        string
	Temperature  *float64
	MaxTokens    int
	SystemPrompt string
}

// GenerateRequest describe una generacion de un solo prompt.
type GenerateRequest struct {
	Prompt       string
	SystemPrompt string
	Model        string
	Temperature  *float64
	MaxTokens    int
}

// NewGateway resuelve el backend segun el proveedor configurado.
// "ollama" usa la API nativa; cualquier otro valor usa el protocolo OpenAI.
func NewGateway(provider, baseURL, apiKey, defaultModel string, timeout time.Duration, logger *zap.Logger) Gateway {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderOllama:
		return NewOllamaClient(baseURL, defaultModel, timeout, logger)
	case ProviderOpenAI:
		return NewHTTPClient(ProviderOpenAI, baseURL, apiKey, defaultModel, timeout, logger)
	default:
		return NewHTTPClient(ProviderLMStudio, baseURL, apiKey, defaultModel, timeout, logger)
	}
}

func withSystemPrompt(system string, msgs []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(msgs)+1)
	if strings.TrimSpace(system) != "" {
		out = append(out, domain.ChatMessage{Role: domain.RoleSystem, Content: system})
	}
	return append(out, msgs...)
}

// Float64 devuelve un puntero a v, para fijar Temperature de forma explicita.
func Float64(v float64) *float64 { return &v }

// nil usa el default; un 0 explicito se respeta (generacion determinista).
func temperatureOrDefault(t *float64) float64 {
	if t == nil || *t < 0 {
		return defaultTemperature
	}
	return *t
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return defaultMaxTokens
	}
	return n
}
