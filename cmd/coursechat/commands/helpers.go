package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/robolearn/coursechat/internal/answer"
	"github.com/robolearn/coursechat/internal/embedder"
	"github.com/robolearn/coursechat/internal/generator"
	"github.com/robolearn/coursechat/internal/rag"
)

// getEnvOrDefault returns the env var value or def when unset.
func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the env var parsed as int, or def when unset or invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// getEnvFloat32 returns the env var parsed as float32, or def when unset or
// invalid.
func getEnvFloat32(key string, def float32) float32 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return def
	}
	return float32(f)
}

// embeddingModel resolves the configured embedding model name.
func embeddingModel() string {
	return getEnvOrDefault("EMBEDDING_MODEL", embedder.DefaultModel)
}

// vectorDimensions resolves the vector size: explicit EMBEDDING_DIMENSIONS
// wins, then the table entry for the configured model.
func vectorDimensions() (uint64, error) {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return uint64(v), nil
	}
	model := embeddingModel()
	dims, ok := embedder.Dimensions(model)
	if !ok {
		return 0, fmt.Errorf("unknown embedding model %q, set EMBEDDING_DIMENSIONS explicitly", model)
	}
	return uint64(dims), nil
}

// buildGateway constructs the batched embedding gateway from env config.
func buildGateway() (*embedder.Gateway, *embedder.OpenAIEmbedder, error) {
	emb, err := embedder.NewOpenAIEmbedder(&embedder.OpenAIConfig{
		APIKey: os.Getenv("OPENAI_API_KEY"),
		Model:  embeddingModel(),
	})
	if err != nil {
		return nil, nil, err
	}
	return embedder.NewGateway(emb, getEnvInt("EMBEDDING_BATCH_SIZE", 0)), emb, nil
}

// buildStore connects to Qdrant from env config.
func buildStore(log *slog.Logger) (*rag.QdrantStore, error) {
	dims, err := vectorDimensions()
	if err != nil {
		return nil, err
	}

	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)

	store, err := rag.NewQdrantStore(&rag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: getEnvOrDefault("QDRANT_COLLECTION", "course_content"),
		VectorSize: dims,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		Logger:     log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}
	return store, nil
}

// buildGenerator constructs the chat completion client from env config.
func buildGenerator() (*generator.OpenAIGenerator, error) {
	return generator.NewOpenAIGenerator(&generator.OpenAIConfig{
		APIKey:      os.Getenv("OPENAI_API_KEY"),
		Model:       getEnvOrDefault("CHAT_MODEL", generator.DefaultModel),
		MaxTokens:   getEnvInt("CHAT_MAX_TOKENS", 0),
		Temperature: getEnvFloat32("CHAT_TEMPERATURE", 0),
	})
}

// buildEngine assembles the full read path: gateway, store, generator,
// engine. The caller owns closing the returned store.
func buildEngine(log *slog.Logger) (*answer.Engine, *rag.QdrantStore, *embedder.OpenAIEmbedder, *generator.OpenAIGenerator, error) {
	gateway, emb, err := buildGateway()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	store, err := buildStore(log)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	gen, err := buildGenerator()
	if err != nil {
		store.Close()
		return nil, nil, nil, nil, err
	}

	engine, err := answer.NewEngine(gateway, store, gen, answer.Config{
		TopK:      getEnvInt("RETRIEVAL_TOP_K", 0),
		Threshold: getEnvFloat32("SIMILARITY_THRESHOLD", 0),
		Logger:    log,
	})
	if err != nil {
		store.Close()
		return nil, nil, nil, nil, err
	}

	return engine, store, emb, gen, nil
}
