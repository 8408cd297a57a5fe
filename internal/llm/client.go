package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"promptfabric/internal/domain"
)

const defaultLMStudioURL = "http://localhost:1234/v1"

// HTTPClient implementa Gateway contra una API compatible con OpenAI (LM Studio, OpenAI, vLLM).
type HTTPClient struct {
	provider     string
	baseURL      string
	apiKey       string
	defaultModel string
	client       *http.Client
	logger       *zap.Logger
}

// NewHTTPClient construye un cliente HTTP apuntando a la API de chat completions.
func NewHTTPClient(provider, baseURL, apiKey, defaultModel string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = defaultLMStudioURL
		if provider == ProviderOpenAI {
			baseURL = "https://api.openai.com/v1"
		}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		provider:     provider,
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		defaultModel: defaultModel,
		client:       &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

func (c *HTTPClient) Name() string { return c.provider }

func (c *HTTPClient) ChatCompletion(ctx context.Context, req ChatRequest) (domain.GenerationResult, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	reqBody := chatRequest{
		Model:       model,
		Messages:    toWire(withSystemPrompt(req.SystemPrompt, req.Messages)),
		Temperature: temperatureOrDefault(req.Temperature),
		MaxTokens:   maxTokensOrDefault(req.MaxTokens),
	}

	var cr chatResponse
	status, err := c.do(ctx, http.MethodPost, "/chat/completions", reqBody, &cr)
	if err != nil {
		return domain.GenerationResult{}, &GatewayError{Provider: c.provider, Model: model, Op: "chat_completion", StatusCode: status, Err: err}
	}
	if cr.Error != nil {
		return domain.GenerationResult{}, &GatewayError{Provider: c.provider, Model: model, Op: "chat_completion", StatusCode: status, Err: fmt.Errorf("llm api error: %s", cr.Error.Message)}
	}
	if len(cr.Choices) == 0 {
		return domain.GenerationResult{}, &GatewayError{Provider: c.provider, Model: model, Op: "chat_completion", StatusCode: status, Err: errors.New("llm response without choices")}
	}

	result := domain.GenerationResult{
		Content:      cr.Choices[0].Message.Content,
		Model:        cr.Model,
		FinishReason: cr.Choices[0].FinishReason,
	}
	if result.Model == "" {
		result.Model = model
	}
	if cr.Usage != nil {
		result.Usage = domain.Usage{
			PromptTokens:     cr.Usage.PromptTokens,
			CompletionTokens: cr.Usage.CompletionTokens,
			TotalTokens:      cr.Usage.TotalTokens,
		}
	}
	return result, nil
}

func (c *HTTPClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	res, err := c.ChatCompletion(ctx, ChatRequest{
		Messages:     []domain.ChatMessage{{Role: domain.RoleUser, Content: req.Prompt}},
		Model:        req.Model,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		SystemPrompt: req.SystemPrompt,
	})
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

func (c *HTTPClient) ListModels(ctx context.Context) ([]string, error) {
	var lr modelsResponse
	status, err := c.do(ctx, http.MethodGet, "/models", nil, &lr)
	if err != nil {
		return nil, &GatewayError{Provider: c.provider, Op: "list_models", StatusCode: status, Err: err}
	}
	models := make([]string, 0, len(lr.Data))
	for _, m := range lr.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

func (c *HTTPClient) Health(ctx context.Context) error {
	_, err := c.ListModels(ctx)
	return err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + c.apiKey}
	}
	status, err := doJSON(ctx, c.client, method, c.baseURL+path, headers, in, out)
	if err != nil {
		c.logger.Warn("llm request failed",
			zap.String("provider", c.provider),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	return status, err
}

// doJSON ejecuta una llamada JSON y decodifica la respuesta en out.
// Devuelve el status HTTP (0 si no hubo respuesta).
func doJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		bodyBytes, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("llm http error: status=%d body=%s", resp.StatusCode, truncate(string(respBody), 256))
	}

	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return resp.StatusCode, fmt.Errorf("unmarshal response: %w", err)
	}
	return resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func toWire(msgs []domain.ChatMessage) []chatMessage {
	out := make([]chatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, chatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}
