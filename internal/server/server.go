// Package server implements the HTTP API for the course assistant: chat,
// feedback, stats, health, readiness, and Prometheus metrics.
// The server is started by the `coursechat serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robolearn/coursechat/internal/answer"
	"github.com/robolearn/coursechat/internal/generator"
	"github.com/robolearn/coursechat/internal/logging"
	"github.com/robolearn/coursechat/internal/rag"
	"github.com/robolearn/coursechat/internal/store"
)

// New constructs a Server from the provided engine and config. logger and
// stats may be nil, in which case conversation logging and /api/stats are
// disabled.
func New(engine answerer, logger *store.AsyncLogger, stats statsProvider, cfg *Config) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("server: engine must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover the slowest chat request plus encoding.
		cfg.WriteTimeout = 90 * time.Second
	}
	if cfg.ChatTimeout == 0 {
		cfg.ChatTimeout = 60 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = 20
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.MetricsRegistry == nil {
		reg := prometheus.NewRegistry()
		cfg.MetricsRegistry = reg
		cfg.MetricsGatherer = reg
	}
	if cfg.MetricsGatherer == nil {
		// A *prometheus.Registry gathers what it registers; anything else
		// needs an explicit gatherer or /metrics would serve nothing.
		reg, ok := cfg.MetricsRegistry.(*prometheus.Registry)
		if !ok {
			return nil, fmt.Errorf("server: MetricsGatherer is required when MetricsRegistry is not a *prometheus.Registry")
		}
		cfg.MetricsGatherer = reg
	}

	s := &Server{
		engine:  engine,
		stats:   stats,
		logger:  logger,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}

	if cfg.APIKey == "" {
		log.Warn("API authentication disabled, set COURSECHAT_API_KEY to enable")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	// Middleware order, outermost first: request logging, metrics, rate
	// limiting, auth. Health and readiness stay unauthenticated so probes
	// work without credentials.
	protected := func(name string, h http.HandlerFunc) http.Handler {
		return s.metrics.middleware(name, rl.middleware(authMiddleware(cfg.APIKey, h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", protected("chat", s.handleChat))
	mux.Handle("POST /api/feedback", protected("feedback", s.handleFeedback))
	mux.Handle("GET /api/stats", protected("stats", s.handleStats))
	mux.Handle("GET /api/health", s.metrics.middleware("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.metrics.middleware("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleChat handles POST /api/chat. The full retrieval-and-generation path
// runs under ChatTimeout; a deadline hit maps to 504. Conversation logging
// happens after the response is computed and never delays or fails it.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}
	if len(req.Question) > maxQuestionLength {
		http.Error(w, fmt.Sprintf("question exceeds %d characters", maxQuestionLength), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ChatTimeout)
	defer cancel()

	result, err := s.engine.Answer(ctx, req.Question, toTurns(req.History), req.Week, 0)
	elapsed := time.Since(start)

	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		s.metrics.chatRequestsTotal.WithLabelValues("timeout").Inc()
		s.metrics.chatDurationSeconds.WithLabelValues("timeout").Observe(elapsed.Seconds())
		log.Warn("chat request timed out", slog.Duration("elapsed", elapsed))
		http.Error(w, "request timed out", http.StatusGatewayTimeout)
		return
	default:
		s.metrics.chatRequestsTotal.WithLabelValues("error").Inc()
		s.metrics.chatDurationSeconds.WithLabelValues("error").Observe(elapsed.Seconds())
		log.Error("chat request failed", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := chatResponse{
		Answer:         result.Answer,
		Sources:        toSources(result.Documents),
		Confidence:     result.Confidence,
		ResponseTimeMs: elapsed.Milliseconds(),
	}

	s.metrics.chatRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.chatDurationSeconds.WithLabelValues("ok").Observe(elapsed.Seconds())

	if s.logger != nil {
		s.logger.LogConversation(store.Conversation{
			Question:     req.Question,
			Answer:       result.Answer,
			Sources:      sourceURLs(resp.Sources),
			Confidence:   result.Confidence,
			ResponseTime: elapsed,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("chat encode error", slog.Any("error", err))
	}
}

// handleFeedback handles POST /api/feedback.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		http.Error(w, "rating must be between 1 and 5", http.StatusBadRequest)
		return
	}

	if s.logger != nil {
		s.logger.LogFeedback(store.Feedback{
			Question: req.Question,
			Answer:   req.Answer,
			Rating:   req.Rating,
			Comment:  req.Comment,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "recorded"})
}

// handleStats handles GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		http.Error(w, "conversation logging is disabled", http.StatusNotFound)
		return
	}

	stats, err := s.stats.Stats(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("stats query failed", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		logging.FromContext(r.Context()).Error("stats encode error", slog.Any("error", err))
	}
}

// toTurns converts request history into generator turns. Any role other
// than "assistant" is treated as the user.
func toTurns(history []historyTurn) []generator.Turn {
	if len(history) == 0 {
		return nil
	}
	turns := make([]generator.Turn, 0, len(history))
	for _, h := range history {
		role := generator.RoleUser
		if h.Role == string(generator.RoleAssistant) {
			role = generator.RoleAssistant
		}
		turns = append(turns, generator.Turn{Role: role, Content: h.Content})
	}
	return turns
}

// toSources converts the top ranked documents into citations. At most
// maxSources entries; excerpts are cut at excerptLength runes with an
// ellipsis.
func toSources(docs []rag.ScoredDocument) []chatSource {
	sources := make([]chatSource, 0, maxSources)
	for _, d := range docs {
		if len(sources) == maxSources {
			break
		}
		sources = append(sources, chatSource{
			Title:      d.Title,
			URL:        d.URL,
			Excerpt:    excerpt(d.Content),
			Similarity: d.Score,
		})
	}
	return sources
}

// excerpt truncates content to excerptLength runes, appending an ellipsis
// when anything was cut.
func excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= excerptLength {
		return content
	}
	return string(runes[:excerptLength]) + "…"
}

// sourceURLs extracts the citation identifiers stored with a conversation.
// Falls back to the title when a document has no URL.
func sourceURLs(sources []chatSource) []string {
	urls := make([]string, 0, len(sources))
	for _, s := range sources {
		if s.URL != "" {
			urls = append(urls, s.URL)
			continue
		}
		urls = append(urls, s.Title)
	}
	return urls
}

// compile-time check that the engine satisfies the handler interface.
var _ answerer = (*answer.Engine)(nil)
