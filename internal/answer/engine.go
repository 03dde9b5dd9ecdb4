// Package answer implements the retrieval and fusion engine: it embeds a
// question, runs a filtered similarity search, scores the result set with a
// confidence heuristic, assembles the grounding context, and calls the
// generation collaborator. It owns the read path from question to answer.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robolearn/coursechat/internal/budget"
	"github.com/robolearn/coursechat/internal/embedder"
	"github.com/robolearn/coursechat/internal/generator"
	"github.com/robolearn/coursechat/internal/rag"
)

// ErrNoRelevantContent is returned by Retrieve when the search yields zero
// results above the similarity threshold. It is a valid outcome, not a
// service failure — callers must map it to the "no answer available"
// response rather than an error status.
var ErrNoRelevantContent = errors.New("no relevant content found")

// NoContentMessage is the user-facing reply when retrieval finds nothing.
// Returned instead of calling the generation service.
const NoContentMessage = "I couldn't find relevant information in the course materials to answer " +
	"your question. Could you rephrase it or ask something more specific about the course content?"

// historyWindow is the number of prior conversation turns included in the
// generation prompt.
const historyWindow = 5

// systemPrompt is the fixed instruction given to the generation model.
const systemPrompt = `You are an expert teaching assistant for a robotics course.

Your role is to:
- Answer questions clearly and accurately using the provided course content
- Cite sources when referencing specific information
- Explain complex concepts in accessible terms
- Encourage critical thinking
- Admit when you don't know something rather than speculating

If the provided context doesn't contain enough information to answer the question, say so clearly.`

// Config holds the tunables for the answer engine.
type Config struct {
	// TopK is the number of documents retrieved per question. Defaults to 5.
	TopK int
	// Threshold is the minimum similarity score a result must reach.
	// Defaults to 0.7.
	Threshold float32
	// MaxContextTokens bounds the estimated size of the full prompt.
	// Defaults to budget.DefaultMaxContextTokens.
	MaxContextTokens int
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Engine wires the embedding gateway, vector store, and generator into the
// question-answering read path. Safe for concurrent use.
type Engine struct {
	gateway   *embedder.Gateway
	store     rag.VectorStore
	generator generator.Generator
	cfg       Config
	log       *slog.Logger
}

// Result is the outcome of a full Answer call.
type Result struct {
	// Answer is the generated reply, or NoContentMessage when retrieval
	// found nothing.
	Answer string
	// Documents are the retrieved passages in ranked order. Empty in the
	// no-content case.
	Documents []rag.ScoredDocument
	// Confidence is the heuristic retrieval confidence in [0,1]. It is a
	// rescaled mean similarity, not a calibrated probability. 0 when no
	// documents were retrieved.
	Confidence float64
}

// NewEngine constructs an Engine. gateway and store are required; gen may
// be nil only if Answer is never called (Retrieve-only use).
func NewEngine(gateway *embedder.Gateway, store rag.VectorStore, gen generator.Generator, cfg Config) (*Engine, error) {
	if gateway == nil {
		return nil, errors.New("answer: embedding gateway must not be nil")
	}
	if store == nil {
		return nil, errors.New("answer: vector store must not be nil")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.7
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = budget.DefaultMaxContextTokens
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{gateway: gateway, store: store, generator: gen, cfg: cfg, log: log}, nil
}

// Retrieve embeds the question and returns the ranked documents plus the
// confidence score. Returns ErrNoRelevantContent (with confidence 0) when
// nothing clears the threshold — distinguishable from service failures via
// errors.Is.
func (e *Engine) Retrieve(ctx context.Context, question, weekFilter string, topK int) ([]rag.ScoredDocument, float64, error) {
	if topK <= 0 {
		topK = e.cfg.TopK
	}

	vector, err := e.gateway.EmbedOne(ctx, question)
	if err != nil {
		return nil, 0, fmt.Errorf("answer: %w", err)
	}

	docs, err := e.store.Search(ctx, vector, weekFilter, topK, e.cfg.Threshold)
	if err != nil {
		return nil, 0, fmt.Errorf("answer: search failed: %w", err)
	}
	if len(docs) == 0 {
		return nil, 0, ErrNoRelevantContent
	}

	return docs, Confidence(docs), nil
}

// Confidence computes min(mean(score) * 1.2, 1.0) over the result set: an
// optimistic rescaling of mean similarity, capped at 1. Returns 0 for an
// empty set.
func Confidence(docs []rag.ScoredDocument) float64 {
	if len(docs) == 0 {
		return 0
	}
	var sum float64
	for _, d := range docs {
		sum += float64(d.Score)
	}
	c := sum / float64(len(docs)) * 1.2
	if c > 1.0 {
		c = 1.0
	}
	return c
}

// BuildContext concatenates each document's title and content into one
// grounding block, in ranked order. Passages are never truncated here —
// excerpting for citations is the caller's presentation concern.
func BuildContext(docs []rag.ScoredDocument) string {
	blocks := make([]string, 0, len(docs))
	for _, d := range docs {
		blocks = append(blocks, fmt.Sprintf("[Source: %s]\n%s", d.Title, d.Content))
	}
	return strings.Join(blocks, "\n\n")
}

// Answer runs the full read path: retrieve, assemble context, generate.
// The no-content case short-circuits with NoContentMessage and never
// reaches the generation service. History beyond the last 5 turns is
// discarded; what remains may be trimmed further to fit the token budget.
func (e *Engine) Answer(ctx context.Context, question string, history []generator.Turn, weekFilter string, topK int) (*Result, error) {
	docs, confidence, err := e.Retrieve(ctx, question, weekFilter, topK)
	if errors.Is(err, ErrNoRelevantContent) {
		return &Result{Answer: NoContentMessage, Confidence: 0}, nil
	}
	if err != nil {
		return nil, err
	}

	if e.generator == nil {
		return nil, errors.New("answer: no generator configured")
	}

	contextBlock := BuildContext(docs)
	userMessage := fmt.Sprintf(`Context from course materials:

%s

---

Question: %s

Please answer based on the context provided above. If you reference specific information, mention which source it comes from.`, contextBlock, question)

	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	fixed := budget.Estimate(systemPrompt) + budget.Estimate(userMessage)
	trimmed := budget.TrimHistory(fixed, history, e.cfg.MaxContextTokens)
	if len(trimmed) < len(history) {
		e.log.Debug("history trimmed to fit context budget",
			slog.Int("kept", len(trimmed)),
			slog.Int("dropped", len(history)-len(trimmed)),
		)
	}

	reply, err := e.generator.Generate(ctx, systemPrompt, trimmed, userMessage)
	if err != nil {
		return nil, fmt.Errorf("answer: generation failed: %w", err)
	}

	return &Result{Answer: reply, Documents: docs, Confidence: confidence}, nil
}
