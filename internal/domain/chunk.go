package domain

// ContextChunk es una unidad de texto indexada para RAG.
// Distance solo se completa en resultados de busqueda (menor = mas relevante).
type ContextChunk struct {
	ID        string         `json:"id,omitempty"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"-"`
	Distance  *float64       `json:"distance,omitempty"`
}

// IndexStats resume el estado del indice de contexto.
type IndexStats struct {
	TotalChunks int    `json:"total_documents"`
	Backend     string `json:"type"`
	Location    string `json:"persist_directory"`
}
