package service

import (
	"strings"
	"unicode"

	"promptfabric/internal/domain"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// Chunker parte texto en ventanas solapadas, cortando en espacios cuando puede.
type Chunker struct {
	Size    int
	Overlap int
}

func NewChunker(size, overlap int) Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return Chunker{Size: size, Overlap: overlap}
}

// Split devuelve los fragmentos no vacios en orden.
func (c Chunker) Split(text string) []string {
	if c.Size <= 0 {
		c = NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	}
	runes := []rune(text)
	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.Size
		if end >= len(runes) {
			end = len(runes)
		} else if cut := lastSpace(runes[start:end]); cut > c.Size/2 {
			end = start + cut
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
		next := end - c.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// ChunkDocument arma los ContextChunk con la metadata de origen.
func (c Chunker) ChunkDocument(text, source string) []domain.ContextChunk {
	parts := c.Split(text)
	out := make([]domain.ContextChunk, 0, len(parts))
	for i, p := range parts {
		out = append(out, domain.ContextChunk{
			Content: p,
			Metadata: map[string]any{
				"source":       source,
				"chunk_index":  i,
				"total_chunks": len(parts),
			},
		})
	}
	return out
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}
