package domain

import (
	"strings"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message pertenece a una unica sesion. El ID es la secuencia de insercion.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage es el par rol/contenido que consume el gateway.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ValidRole indica si el rol es uno de user, assistant o system.
func ValidRole(role string) bool {
	switch strings.TrimSpace(role) {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}
