package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"promptfabric/internal/domain"
)

func TestHTTPClientChatCompletion(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Fatalf("expected bearer auth header, got %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("invalid request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"served-model","choices":[{"message":{"role":"assistant","content":"Hi there"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(ProviderLMStudio, srv.URL, "secret", "default-model", time.Second, nil)
	res, err := client.ChatCompletion(context.Background(), ChatRequest{
		Messages:     []domain.ChatMessage{{Role: domain.RoleUser, Content: "Hello"}},
		SystemPrompt: "be nice",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Content != "Hi there" || res.Model != "served-model" || res.FinishReason != "stop" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Usage.TotalTokens != 5 {
		t.Fatalf("expected total tokens 5, got %d", res.Usage.TotalTokens)
	}

	if got["model"] != "default-model" {
		t.Fatalf("expected default model in request, got %v", got["model"])
	}
	if got["temperature"].(float64) != 0.7 || got["max_tokens"].(float64) != 2048 {
		t.Fatalf("expected default sampling params, got temperature=%v max_tokens=%v", got["temperature"], got["max_tokens"])
	}
	msgs := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(msgs))
	}
	first := msgs[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "be nice" {
		t.Fatalf("expected system prompt first, got %v", first)
	}
}

func TestHTTPClientNon2xxIsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHTTPClient(ProviderLMStudio, srv.URL, "", "m", time.Second, nil)
	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsGatewayError(err) {
		t.Fatalf("expected GatewayError, got %T", err)
	}
	ge := err.(*GatewayError)
	if ge.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", ge.StatusCode)
	}
}

func TestHTTPClientExplicitZeroTemperature(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(ProviderLMStudio, srv.URL, "", "m", time.Second, nil)
	_, err := client.ChatCompletion(context.Background(), ChatRequest{
		Messages:    []domain.ChatMessage{{Role: domain.RoleUser, Content: "Hello"}},
		Temperature: Float64(0),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got["temperature"] != float64(0) {
		t.Fatalf("expected explicit temperature 0 on the wire, got %v", got["temperature"])
	}
}

func TestHTTPClientMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":`))
	}))
	defer srv.Close()

	client := NewHTTPClient(ProviderLMStudio, srv.URL, "", "m", time.Second, nil)
	if _, err := client.ChatCompletion(context.Background(), ChatRequest{}); !IsGatewayError(err) {
		t.Fatalf("expected GatewayError for malformed payload, got %v", err)
	}
}

func TestHTTPClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewHTTPClient(ProviderLMStudio, url, "", "m", time.Second, nil)
	if err := client.Health(context.Background()); !IsGatewayError(err) {
		t.Fatalf("expected GatewayError for unreachable backend, got %v", err)
	}
}

func TestHTTPClientListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"a"},{"id":"b"}]}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(ProviderLMStudio, srv.URL, "", "m", time.Second, nil)
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if strings.Join(models, ",") != "a,b" {
		t.Fatalf("unexpected models %v", models)
	}
}

func TestNewGatewayResolvesProvider(t *testing.T) {
	if gw := NewGateway("ollama", "", "", "m", 0, nil); gw.Name() != ProviderOllama {
		t.Fatalf("expected ollama backend, got %s", gw.Name())
	}
	if gw := NewGateway("openai", "", "", "m", 0, nil); gw.Name() != ProviderOpenAI {
		t.Fatalf("expected openai backend, got %s", gw.Name())
	}
	if gw := NewGateway("", "", "", "m", 0, nil); gw.Name() != ProviderLMStudio {
		t.Fatalf("expected lmstudio backend by default, got %s", gw.Name())
	}
}
