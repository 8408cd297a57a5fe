package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	defaultRefinerSystemPrompt = `You are a prompt refinement expert.
Your task is to convert user prompts into optimized, structured prompts
that will produce better results from an LLM.
Include relevant context, formatting, and structure.`

	defaultGeneratorSystemPrompt = `You are a helpful AI assistant.
Provide accurate, well-structured responses based on the given context.`
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8000"`

	// Memoria conversacional.
	MemoryBackend string `env:"MEMORY_BACKEND" envDefault:"sqlite"`
	DatabaseURL   string `env:"DATABASE_URL"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"./memory.db"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	// Gateway de generacion.
	LLMProvider string        `env:"LLM_PROVIDER" envDefault:"lmstudio"`
	LLMBaseURL  string        `env:"LLM_BASE_URL"`
	LLMAPIKey   string        `env:"LLM_API_KEY"`
	LLMTimeout  time.Duration `env:"LLM_TIMEOUT" envDefault:"120s"`

	GeneratorModel        string `env:"GENERATOR_MODEL" envDefault:"deepseek-coder-r1-7b"`
	RefinerModel          string `env:"REFINER_MODEL" envDefault:"gemma-3-4b-it"`
	ValidatorModel        string `env:"VALIDATOR_MODEL" envDefault:"phi-3-mini-128k"`
	GeneratorSystemPrompt string `env:"GENERATOR_SYSTEM_PROMPT"`
	RefinerSystemPrompt   string `env:"REFINER_SYSTEM_PROMPT"`
	EnablePostProcessor   bool   `env:"ENABLE_POST_PROCESSOR" envDefault:"false"`

	// RAG.
	VectorBackend      string        `env:"VECTOR_BACKEND" envDefault:"memory"`
	QdrantURL          string        `env:"QDRANT_URL" envDefault:"http://localhost:6333"`
	QdrantAPIKey       string        `env:"QDRANT_API_KEY"`
	QdrantCollection   string        `env:"QDRANT_COLLECTION" envDefault:"context"`
	EmbeddingProvider  string        `env:"EMBEDDING_PROVIDER" envDefault:"hash"`
	EmbeddingBaseURL   string        `env:"EMBEDDING_BASE_URL"`
	EmbeddingModel     string        `env:"EMBEDDING_MODEL" envDefault:"nomic-embed-text"`
	EmbeddingDimension int           `env:"EMBEDDING_DIMENSION" envDefault:"384"`
	RetrievalTopK      int           `env:"RETRIEVAL_TOP_K" envDefault:"5"`
	RetrievalTimeout   time.Duration `env:"RETRIEVAL_TIMEOUT" envDefault:"10s"`

	// Redis opcional: rate limit y cache de refinamiento.
	RedisAddr              string        `env:"REDIS_ADDR"`
	RedisPassword          string        `env:"REDIS_PASSWORD"`
	RedisDB                int           `env:"REDIS_DB" envDefault:"0"`
	RefineCacheTTL         time.Duration `env:"REFINE_CACHE_TTL" envDefault:"10m"`
	ChatRateLimitPerMinute int           `env:"CHAT_RATE_LIMIT_PER_MINUTE" envDefault:"60"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if cfg.GeneratorSystemPrompt == "" {
		cfg.GeneratorSystemPrompt = defaultGeneratorSystemPrompt
	}
	if cfg.RefinerSystemPrompt == "" {
		cfg.RefinerSystemPrompt = defaultRefinerSystemPrompt
	}
	return &cfg, nil
}
