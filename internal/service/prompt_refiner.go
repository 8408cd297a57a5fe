package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"promptfabric/internal/domain"
	"promptfabric/internal/llm"
)

const (
	refinerTemperature = 0.5
	refinerMaxTokens   = 1024
	refinerTimeout     = 60 * time.Second
)

// RefineResult siempre trae un prompt utilizable: el refinado o el original.
type RefineResult struct {
	Prompt  string
	Refined bool
	Err     error
}

// PromptRefiner reescribe el prompt del usuario con el modelo refinador.
type PromptRefiner struct {
	gateway      llm.Gateway
	model        string
	systemPrompt string
	cache        RefineCache
	logger       *zap.Logger
}

func NewPromptRefiner(gateway llm.Gateway, model, systemPrompt string, cache RefineCache, logger *zap.Logger) *PromptRefiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromptRefiner{
		gateway:      gateway,
		model:        model,
		systemPrompt: systemPrompt,
		cache:        cache,
		logger:       logger,
	}
}

// Refine nunca falla: ante cualquier error devuelve el prompt original con Err cargado.
func (r *PromptRefiner) Refine(ctx context.Context, prompt, contextText string) RefineResult {
	if r == nil || r.gateway == nil {
		return RefineResult{Prompt: prompt, Err: &domain.RefinementError{Err: errors.New("refiner not configured")}}
	}

	key := refineCacheKey(r.model, prompt, contextText)
	if r.cache != nil {
		if cached, ok := r.cache.Get(ctx, key); ok {
			return RefineResult{Prompt: cached, Refined: true}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, refinerTimeout)
	defer cancel()

	out, err := r.gateway.Generate(ctx, llm.GenerateRequest{
		Prompt:       buildRefinementPrompt(prompt, contextText),
		SystemPrompt: r.systemPrompt,
		Model:        r.model,
		Temperature:  llm.Float64(refinerTemperature),
		MaxTokens:    refinerMaxTokens,
	})
	if err != nil {
		return RefineResult{Prompt: prompt, Err: &domain.RefinementError{Err: err}}
	}

	refined := cleanRefinedPrompt(out)
	if refined == "" {
		return RefineResult{Prompt: prompt, Err: &domain.RefinementError{Err: errors.New("empty refinement")}}
	}

	if r.cache != nil {
		r.cache.Set(ctx, key, refined)
	}
	return RefineResult{Prompt: refined, Refined: true}
}

func buildRefinementPrompt(prompt, contextText string) string {
	var b strings.Builder
	b.WriteString("Refine the following user prompt to produce better LLM responses.\n\n")
	b.WriteString("Original prompt: ")
	b.WriteString(prompt)
	b.WriteString("\n")
	if strings.TrimSpace(contextText) != "" {
		b.WriteString("\nRelevant context:\n")
		b.WriteString(contextText)
	}
	b.WriteString("\n\nProvide a refined, well-structured prompt that:\n")
	b.WriteString("1. Clearly defines the task\n")
	b.WriteString("2. Specifies desired format/style\n")
	b.WriteString("3. Includes relevant constraints\n")
	b.WriteString("4. Adds helpful context if needed\n\n")
	b.WriteString("Refined prompt:")
	return b.String()
}

func refineCacheKey(model, prompt, contextText string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + prompt + "\x00" + contextText))
	return hex.EncodeToString(sum[:])
}
