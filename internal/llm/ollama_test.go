package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"promptfabric/internal/domain"
)

func TestOllamaGenerateConcatenatesSystemPrompt(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"response":"refined","done":true}`))
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "llama3", time.Second, nil)
	out, err := client.Generate(context.Background(), GenerateRequest{Prompt: "hello", SystemPrompt: "sys", MaxTokens: 10})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "refined" {
		t.Fatalf("expected refined, got %q", out)
	}
	if got["prompt"] != "System: sys\n\nUser: hello" {
		t.Fatalf("unexpected prompt %q", got["prompt"])
	}
	if got["stream"] != false {
		t.Fatalf("expected stream false, got %v", got["stream"])
	}
	opts := got["options"].(map[string]any)
	if opts["num_predict"].(float64) != 10 {
		t.Fatalf("expected num_predict 10, got %v", opts["num_predict"])
	}
}

func TestOllamaChatCompletionMapsUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"Hi"},"done_reason":"stop","prompt_eval_count":4,"eval_count":6}`))
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "llama3", time.Second, nil)
	res, err := client.ChatCompletion(context.Background(), ChatRequest{
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "Hello"}},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Content != "Hi" || res.FinishReason != "stop" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Usage.PromptTokens != 4 || res.Usage.CompletionTokens != 6 || res.Usage.TotalTokens != 10 {
		t.Fatalf("unexpected usage %+v", res.Usage)
	}
}

func TestOllamaErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "llama3", time.Second, nil)
	if _, err := client.ChatCompletion(context.Background(), ChatRequest{}); !IsGatewayError(err) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
}

func TestOllamaMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected":true}`))
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "llama3", time.Second, nil)
	if res, err := client.ChatCompletion(context.Background(), ChatRequest{}); !IsGatewayError(err) {
		t.Fatalf("expected GatewayError for chat without message, got result=%+v err=%v", res, err)
	}
	if out, err := client.Generate(context.Background(), GenerateRequest{Prompt: "hi"}); !IsGatewayError(err) {
		t.Fatalf("expected GatewayError for generate without response, got out=%q err=%v", out, err)
	}
}

func TestOllamaExplicitZeroTemperature(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"ok"}}`))
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "llama3", time.Second, nil)
	if _, err := client.ChatCompletion(context.Background(), ChatRequest{Temperature: Float64(0)}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got["temperature"] != float64(0) {
		t.Fatalf("expected explicit temperature 0 on the wire, got %v", got["temperature"])
	}
}
