package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"promptfabric/internal/domain"
	"promptfabric/internal/llm"
	"promptfabric/internal/metrics"
)

const (
	stageResolveSession = "resolve_session"
	stageFetchHistory   = "fetch_history"
	stageRetrieve       = "retrieve"
	stageRefine         = "refine"
	stageGenerate       = "generate"
	stagePostProcess    = "post_process"
	stagePersist        = "persist"
)

// Retriever es lo que el orquestador necesita del ContextRetriever.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) SearchResult
}

type Refiner interface {
	Refine(ctx context.Context, prompt, contextText string) RefineResult
}

// ConversationMemory es el subconjunto del MemoryStore que usa el pipeline.
type ConversationMemory interface {
	CreateSession(ctx context.Context, id string) (string, error)
	GetSessionHistory(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
	AddMessage(ctx context.Context, sessionID, role, content string) error
}

type ResponseValidator interface {
	Process(ctx context.Context, response, originalPrompt, contextText string) domain.ValidationOutcome
}

// OrchestratorConfig agrupa los parametros de generacion por defecto.
type OrchestratorConfig struct {
	GeneratorModel string
	SystemPrompt   string
	TopK           int
}

// ProcessRequest es un turno de conversacion. Temperature nil y MaxTokens en cero usan los defaults del gateway.
type ProcessRequest struct {
	Message     string
	SessionID   string
	Model       string
	Temperature *float64
	MaxTokens   int
}

// Orchestrator coordina recuperacion, refinamiento, generacion, validacion y persistencia.
type Orchestrator struct {
	gateway   llm.Gateway
	retriever Retriever
	refiner   Refiner
	memory    ConversationMemory
	post      ResponseValidator
	cfg       OrchestratorConfig
	logger    *zap.Logger
	metrics   *metrics.Pipeline
}

func NewOrchestrator(
	gateway llm.Gateway,
	retriever Retriever,
	refiner Refiner,
	memory ConversationMemory,
	post ResponseValidator,
	cfg OrchestratorConfig,
	logger *zap.Logger,
	pipelineMetrics *metrics.Pipeline,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	return &Orchestrator{
		gateway:   gateway,
		retriever: retriever,
		refiner:   refiner,
		memory:    memory,
		post:      post,
		cfg:       cfg,
		logger:    logger,
		metrics:   pipelineMetrics,
	}
}

// Process ejecuta el pipeline completo para un mensaje.
// Un error del gateway produce un sobre con Error=true y no toca la memoria;
// los errores de almacenamiento se devuelven.
func (o *Orchestrator) Process(ctx context.Context, req ProcessRequest) (domain.ProcessResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return domain.ProcessResult{}, domain.ErrEmptyMessage
	}

	started := time.Now()
	sessionID, err := o.memory.CreateSession(ctx, req.SessionID)
	o.metrics.ObserveStage(stageResolveSession, started)
	if err != nil {
		o.metrics.RecordOutcome(metrics.OutcomeError)
		return domain.ProcessResult{}, err
	}
	log := o.logger.With(zap.String("session_id", sessionID))

	started = time.Now()
	history, err := o.memory.GetSessionHistory(ctx, sessionID)
	o.metrics.ObserveStage(stageFetchHistory, started)
	if err != nil {
		o.metrics.RecordOutcome(metrics.OutcomeError)
		return domain.ProcessResult{}, err
	}
	log.Debug("history loaded", zap.Int("messages", len(history)))

	chunks := o.searchContext(ctx, req.Message, o.cfg.TopK, log)
	contextText := joinChunkContents(chunks)

	refined := o.refinePrompt(ctx, req.Message, contextText, log)

	model := req.Model
	if model == "" {
		model = o.cfg.GeneratorModel
	}
	messages := make([]domain.ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: refined})

	started = time.Now()
	gen, err := o.gateway.ChatCompletion(ctx, llm.ChatRequest{
		Messages:     messages,
		Model:        model,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		SystemPrompt: o.cfg.SystemPrompt,
	})
	o.metrics.ObserveStage(stageGenerate, started)
	if err != nil {
		log.Warn("generation failed", zap.String("model", model), zap.Error(err))
		o.metrics.RecordOutcome(metrics.OutcomeDegraded)
		return domain.ProcessResult{
			Response:  "Error processing request: " + err.Error(),
			SessionID: sessionID,
			Model:     model,
			Error:     true,
		}, nil
	}

	started = time.Now()
	outcome := o.postProcess(ctx, gen.Content, refined, contextText)
	o.metrics.ObserveStage(stagePostProcess, started)
	if len(outcome.Issues) > 0 {
		log.Debug("response issues", zap.Strings("issues", outcome.Issues), zap.Bool("valid", outcome.Valid))
	}

	started = time.Now()
	if err := o.memory.AddMessage(ctx, sessionID, domain.RoleUser, req.Message); err != nil {
		o.metrics.RecordOutcome(metrics.OutcomeError)
		return domain.ProcessResult{}, err
	}
	if err := o.memory.AddMessage(ctx, sessionID, domain.RoleAssistant, outcome.Response); err != nil {
		o.metrics.RecordOutcome(metrics.OutcomeError)
		return domain.ProcessResult{}, err
	}
	o.metrics.ObserveStage(stagePersist, started)

	respModel := gen.Model
	if respModel == "" {
		respModel = model
	}
	usage := gen.Usage
	o.metrics.RecordOutcome(metrics.OutcomeOK)

	return domain.ProcessResult{
		Response:      outcome.Response,
		SessionID:     sessionID,
		Model:         respModel,
		RefinedPrompt: refined,
		ContextUsed:   len(chunks) > 0,
		Validated:     outcome.Validated,
		Valid:         outcome.Valid,
		Issues:        outcome.Issues,
		Usage:         &usage,
	}, nil
}

// RefinePrompt refina un prompt fuera del pipeline. Nunca falla.
func (o *Orchestrator) RefinePrompt(ctx context.Context, prompt, contextText string) string {
	return o.refinePrompt(ctx, prompt, contextText, o.logger)
}

// SearchContext busca contexto fuera del pipeline. Nunca falla.
func (o *Orchestrator) SearchContext(ctx context.Context, query string, topK int) []domain.ContextChunk {
	return o.searchContext(ctx, query, topK, o.logger)
}

func (o *Orchestrator) searchContext(ctx context.Context, query string, topK int, log *zap.Logger) []domain.ContextChunk {
	if o.retriever == nil {
		return []domain.ContextChunk{}
	}
	started := time.Now()
	res := o.retriever.Search(ctx, query, topK)
	o.metrics.ObserveStage(stageRetrieve, started)
	if res.Err != nil {
		log.Warn("context retrieval failed", zap.Error(res.Err))
		o.metrics.RecordFailOpen(stageRetrieve)
	}
	log.Debug("context retrieved", zap.Int("chunks", len(res.Chunks)))
	if res.Chunks == nil {
		return []domain.ContextChunk{}
	}
	return res.Chunks
}

func (o *Orchestrator) refinePrompt(ctx context.Context, prompt, contextText string, log *zap.Logger) string {
	if o.refiner == nil {
		return prompt
	}
	started := time.Now()
	res := o.refiner.Refine(ctx, prompt, contextText)
	o.metrics.ObserveStage(stageRefine, started)
	if res.Err != nil {
		log.Warn("prompt refinement failed, using original", zap.Error(res.Err))
		o.metrics.RecordFailOpen(stageRefine)
	}
	if strings.TrimSpace(res.Prompt) == "" {
		return prompt
	}
	return res.Prompt
}

func (o *Orchestrator) postProcess(ctx context.Context, response, prompt, contextText string) domain.ValidationOutcome {
	if o.post == nil {
		return domain.ValidationOutcome{Response: response, Valid: true, Issues: []string{}}
	}
	outcome := o.post.Process(ctx, response, prompt, contextText)
	for _, issue := range outcome.Issues {
		if strings.HasPrefix(issue, issueValidationErrorTag) {
			o.metrics.RecordFailOpen(stagePostProcess)
			break
		}
	}
	return outcome
}

func joinChunkContents(chunks []domain.ContextChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Content)
	}
	return strings.Join(parts, "\n")
}
