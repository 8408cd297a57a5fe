package domain

// Usage agrupa los contadores de tokens que reporta el backend.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerationResult es la salida efimera de un backend de generacion.
type GenerationResult struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	Usage        Usage  `json:"usage"`
	FinishReason string `json:"finish_reason"`
}

// ValidationOutcome es el resultado del post-procesado de una respuesta.
type ValidationOutcome struct {
	Response  string   `json:"response"`
	Valid     bool     `json:"valid"`
	Issues    []string `json:"issues"`
	Validated bool     `json:"validated"`
}

// ProcessResult es el sobre de respuesta del pipeline.
type ProcessResult struct {
	Response      string   `json:"response"`
	SessionID     string   `json:"session_id"`
	Model         string   `json:"model"`
	RefinedPrompt string   `json:"refined_prompt,omitempty"`
	ContextUsed   bool     `json:"context_used"`
	Validated     bool     `json:"validated"`
	Valid         bool     `json:"valid"`
	Issues        []string `json:"issues,omitempty"`
	Usage         *Usage   `json:"usage,omitempty"`
	Error         bool     `json:"error,omitempty"`
}
