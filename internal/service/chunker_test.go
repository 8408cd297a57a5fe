package service

import (
	"strings"
	"testing"
)

func TestChunkerShortTextSingleChunk(t *testing.T) {
	c := NewChunker(500, 50)
	got := c.Split("  just a short note  ")
	if len(got) != 1 || got[0] != "just a short note" {
		t.Fatalf("unexpected chunks %q", got)
	}
	if len(c.Split("   ")) != 0 {
		t.Fatalf("expected no chunks for blank text")
	}
}

func TestChunkerRespectsSizeAndOverlap(t *testing.T) {
	words := make([]string, 0, 400)
	for i := 0; i < 400; i++ {
		words = append(words, "word")
	}
	text := strings.Join(words, " ")
	c := NewChunker(100, 20)

	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if len([]rune(ch)) > 100 {
			t.Fatalf("chunk %d exceeds size: %d", i, len(ch))
		}
		if !strings.HasSuffix(ch, "word") {
			t.Fatalf("chunk %d does not end on a word boundary: %q", i, ch)
		}
	}
	total := 0
	for _, ch := range chunks {
		total += len(ch)
	}
	if total <= len(text) {
		t.Fatalf("expected overlap to duplicate some text")
	}
}

func TestChunkerDocumentMetadata(t *testing.T) {
	c := NewChunker(10, 0)
	chunks := c.ChunkDocument("alpha beta gamma delta", "notes.md")
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.Metadata["source"] != "notes.md" || ch.Metadata["chunk_index"] != i || ch.Metadata["total_chunks"] != len(chunks) {
			t.Fatalf("unexpected metadata %v", ch.Metadata)
		}
	}
}

func TestNewChunkerDefaults(t *testing.T) {
	c := NewChunker(0, -1)
	if c.Size != DefaultChunkSize || c.Overlap != 0 {
		t.Fatalf("unexpected defaults %+v", c)
	}
	if c := NewChunker(10, 10); c.Overlap != 0 {
		t.Fatalf("expected overlap >= size to reset, got %d", c.Overlap)
	}
}
