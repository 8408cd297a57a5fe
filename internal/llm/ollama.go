package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"promptfabric/internal/domain"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaClient implementa Gateway sobre la API nativa de Ollama.
type OllamaClient struct {
	baseURL      string
	defaultModel string
	client       *http.Client
	logger       *zap.Logger
}

func NewOllamaClient(baseURL, defaultModel string, timeout time.Duration, logger *zap.Logger) *OllamaClient {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OllamaClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		defaultModel: defaultModel,
		client:       &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

func (c *OllamaClient) Name() string { return ProviderOllama }

func (c *OllamaClient) ChatCompletion(ctx context.Context, req ChatRequest) (domain.GenerationResult, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	body := ollamaChatRequest{
		Model:       model,
		Messages:    toWire(withSystemPrompt(req.SystemPrompt, req.Messages)),
		Temperature: temperatureOrDefault(req.Temperature),
		Options:     ollamaOptions{NumPredict: maxTokensOrDefault(req.MaxTokens)},
		Stream:      false,
	}

	var resp ollamaChatResponse
	status, err := c.do(ctx, http.MethodPost, "/api/chat", body, &resp)
	if err != nil {
		return domain.GenerationResult{}, &GatewayError{Provider: ProviderOllama, Model: model, Op: "chat_completion", StatusCode: status, Err: err}
	}

	if resp.Message == nil {
		return domain.GenerationResult{}, &GatewayError{Provider: ProviderOllama, Model: model, Op: "chat_completion", StatusCode: status, Err: errors.New("ollama response without message")}
	}

	result := domain.GenerationResult{
		Content:      resp.Message.Content,
		Model:        resp.Model,
		FinishReason: resp.DoneReason,
		Usage: domain.Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}
	if result.Model == "" {
		result.Model = model
	}
	return result, nil
}

// Generate usa /api/generate; el system prompt se concatena al texto del usuario.
func (c *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	prompt := req.Prompt
	if strings.TrimSpace(req.SystemPrompt) != "" {
		prompt = "System: " + req.SystemPrompt + "\n\nUser: " + req.Prompt
	}
	body := ollamaGenerateRequest{
		Model:       model,
		Prompt:      prompt,
		Temperature: temperatureOrDefault(req.Temperature),
		Options:     ollamaOptions{NumPredict: maxTokensOrDefault(req.MaxTokens)},
		Stream:      false,
	}

	var resp ollamaGenerateResponse
	status, err := c.do(ctx, http.MethodPost, "/api/generate", body, &resp)
	if err != nil {
		return "", &GatewayError{Provider: ProviderOllama, Model: model, Op: "generate", StatusCode: status, Err: err}
	}
	if resp.Response == nil {
		return "", &GatewayError{Provider: ProviderOllama, Model: model, Op: "generate", StatusCode: status, Err: errors.New("ollama response without response field")}
	}
	return *resp.Response, nil
}

func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	var resp ollamaTagsResponse
	status, err := c.do(ctx, http.MethodGet, "/api/tags", nil, &resp)
	if err != nil {
		return nil, &GatewayError{Provider: ProviderOllama, Op: "list_models", StatusCode: status, Err: err}
	}
	models := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

func (c *OllamaClient) Health(ctx context.Context) error {
	_, err := c.ListModels(ctx)
	return err
}

func (c *OllamaClient) do(ctx context.Context, method, path string, in, out any) (int, error) {
	status, err := doJSON(ctx, c.client, method, c.baseURL+path, nil, in, out)
	if err != nil {
		c.logger.Warn("ollama request failed",
			zap.String("path", path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	return status, err
}

type ollamaOptions struct {
	NumPredict int `json:"num_predict"`
}

type ollamaChatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Options     ollamaOptions `json:"options"`
	Stream      bool          `json:"stream"`
}

type ollamaChatResponse struct {
	Model           string       `json:"model"`
	Message         *chatMessage `json:"message"`
	DoneReason      string       `json:"done_reason"`
	PromptEvalCount int          `json:"prompt_eval_count"`
	EvalCount       int          `json:"eval_count"`
}

type ollamaGenerateRequest struct {
	Model       string        `json:"model"`
	Prompt      string        `json:"prompt"`
	Temperature float64       `json:"temperature"`
	Options     ollamaOptions `json:"options"`
	Stream      bool          `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response *string `json:"response"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}
