package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/robolearn/coursechat/internal/answer"
	"github.com/robolearn/coursechat/internal/generator"
	"github.com/robolearn/coursechat/internal/store"
)

// maxQuestionLength is the longest question accepted by POST /api/chat.
const maxQuestionLength = 1000

// maxSources is the number of citations included in a chat response.
const maxSources = 3

// excerptLength is the maximum citation excerpt length before truncation.
const excerptLength = 200

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ChatTimeout bounds a single /api/chat request end to end.
	// Defaults to 60s; exceeding it returns 504.
	ChatTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives this server's metric registrations. A fresh
	// registry is created if nil so tests stay hermetic.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Must gather the same registry.
	MetricsGatherer prometheus.Gatherer
}

// answerer is the interface handleChat calls to produce a reply.
// *answer.Engine satisfies it; tests inject a fake.
type answerer interface {
	Answer(ctx context.Context, question string, history []generator.Turn, weekFilter string, topK int) (*answer.Result, error)
}

// statsProvider is the interface handleStats reads from.
type statsProvider interface {
	Stats(ctx context.Context) (*store.Stats, error)
}

// Server is the HTTP server that exposes the question-answering engine.
type Server struct {
	// engine produces answers for /api/chat.
	engine answerer
	// stats backs GET /api/stats. Nil when logging is disabled.
	stats statsProvider
	// logger records conversations and feedback off the request path.
	// Nil when logging is disabled.
	logger *store.AsyncLogger
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds this instance's Prometheus metrics.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// historyTurn is one prior exchange turn in a chat request.
type historyTurn struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`
	// Content is the text of the turn.
	Content string `json:"content"`
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Question is the user's question.
	Question string `json:"question"`
	// History is the prior conversation, oldest first.
	History []historyTurn `json:"history,omitempty"`
	// Week optionally restricts retrieval to one course week,
	// e.g. "week-01-02".
	Week string `json:"week,omitempty"`
}

// chatSource is one citation in a chat response.
type chatSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	// Excerpt is the start of the passage, truncated to 200 characters.
	Excerpt    string  `json:"excerpt"`
	Similarity float32 `json:"similarity"`
}

// chatResponse is the JSON response for POST /api/chat.
type chatResponse struct {
	Answer     string       `json:"answer"`
	Sources    []chatSource `json:"sources"`
	Confidence float64      `json:"confidence"`
	// ResponseTimeMs is the server-side processing time in milliseconds.
	ResponseTimeMs int64 `json:"responseTimeMs"`
}

// feedbackRequest is the JSON body for POST /api/feedback.
type feedbackRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	// Rating is 1 (poor) through 5 (excellent).
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}
