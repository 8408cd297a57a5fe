package domain

import "time"

// Session es un hilo de conversacion persistente identificado por un id opaco.
type Session struct {
	ID        string            `json:"session_id"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// MemorySnapshot es la vista de memoria que expone la API.
type MemorySnapshot struct {
	SessionID  string    `json:"session_id"`
	Messages   []Message `json:"messages"`
	TotalCount int       `json:"total_count"`
}
