package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/robolearn/coursechat/internal/answer"
	"github.com/robolearn/coursechat/internal/generator"
	"github.com/robolearn/coursechat/internal/rag"
	"github.com/robolearn/coursechat/internal/store"
)

// ---------------------------------------------------------------------------
// Fake engine for chat handler tests
// ---------------------------------------------------------------------------

// fakeEngine implements the answerer interface for tests.
type fakeEngine struct {
	// result is returned on each Answer call.
	result *answer.Result
	// err is returned as the error value.
	err error
	// lastQuestion, lastWeek, and lastHistory record the most recent call.
	lastQuestion string
	lastWeek     string
	lastHistory  []generator.Turn
	// blockUntilCancelled makes Answer wait for ctx cancellation and then
	// return ctx.Err, simulating a slow upstream.
	blockUntilCancelled bool
}

func (f *fakeEngine) Answer(ctx context.Context, question string, history []generator.Turn, weekFilter string, _ int) (*answer.Result, error) {
	f.lastQuestion = question
	f.lastWeek = weekFilter
	f.lastHistory = history
	if f.blockUntilCancelled {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// newTestServer builds a *Server wired with the given engine fake and a
// fresh metrics registry.
func newTestServer(engine answerer) *Server {
	return &Server{
		engine:  engine,
		cfg:     &Config{ChatTimeout: 5 * time.Second},
		log:     slog.Default(),
		metrics: newServerMetrics(prometheus.NewRegistry()),
	}
}

func chatPost(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeChat(t *testing.T, w *httptest.ResponseRecorder) chatResponse {
	t.Helper()
	var resp chatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode chat response: %v", err)
	}
	return resp
}

// ---------------------------------------------------------------------------
// POST /api/chat — validation error paths (no engine needed)
// ---------------------------------------------------------------------------

func TestHandleChat_MissingQuestion(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeEngine{})
	w := httptest.NewRecorder()

	s.handleChat(w, chatPost(`{"week":"week-01-02"}`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleChat_InvalidJSON(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeEngine{})
	w := httptest.NewRecorder()

	s.handleChat(w, chatPost(`not-json`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleChat_QuestionTooLong(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeEngine{})
	w := httptest.NewRecorder()
	long := strings.Repeat("q", maxQuestionLength+1)

	s.handleChat(w, chatPost(fmt.Sprintf(`{"question":%q}`, long)))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for oversized question, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /api/chat — happy path
// ---------------------------------------------------------------------------

func TestHandleChat_Success(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{result: &answer.Result{
		Answer:     "inverse kinematics solves joint angles for a target pose",
		Confidence: 0.85,
		Documents: []rag.ScoredDocument{
			{Title: "Kinematics", URL: "/docs/weeks/week-01-02/kinematics", Content: "short passage", Score: 0.9},
		},
	}}
	s := newTestServer(engine)
	w := httptest.NewRecorder()

	s.handleChat(w, chatPost(`{"question":"what is inverse kinematics?","week":"week-01-02"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	resp := decodeChat(t, w)

	if resp.Answer != engine.result.Answer {
		t.Errorf("answer: got %q", resp.Answer)
	}
	if resp.Confidence != 0.85 {
		t.Errorf("confidence: want 0.85, got %v", resp.Confidence)
	}
	if len(resp.Sources) != 1 {
		t.Fatalf("want 1 source, got %d", len(resp.Sources))
	}
	if resp.Sources[0].URL != "/docs/weeks/week-01-02/kinematics" {
		t.Errorf("source url: got %q", resp.Sources[0].URL)
	}
	if engine.lastWeek != "week-01-02" {
		t.Errorf("week filter not forwarded, got %q", engine.lastWeek)
	}
	if resp.ResponseTimeMs < 0 {
		t.Errorf("responseTimeMs must be non-negative, got %d", resp.ResponseTimeMs)
	}
}

func TestHandleChat_SourcesCappedAndExcerpted(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 500)
	docs := make([]rag.ScoredDocument, 5)
	for i := range docs {
		docs[i] = rag.ScoredDocument{Title: fmt.Sprintf("Doc %d", i), Content: long, Score: 0.9}
	}
	engine := &fakeEngine{result: &answer.Result{Answer: "ok", Documents: docs, Confidence: 1}}
	s := newTestServer(engine)
	w := httptest.NewRecorder()

	s.handleChat(w, chatPost(`{"question":"q"}`))

	resp := decodeChat(t, w)
	if len(resp.Sources) != maxSources {
		t.Fatalf("want %d sources, got %d", maxSources, len(resp.Sources))
	}
	// Top-ranked documents come first.
	if resp.Sources[0].Title != "Doc 0" {
		t.Errorf("first source: got %q", resp.Sources[0].Title)
	}
	for _, src := range resp.Sources {
		if got := []rune(src.Excerpt); len(got) != excerptLength+1 || got[len(got)-1] != '…' {
			t.Errorf("excerpt: want %d runes ending in ellipsis, got %d", excerptLength+1, len(got))
		}
	}
}

func TestHandleChat_HistoryForwarded(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{result: &answer.Result{Answer: "ok"}}
	s := newTestServer(engine)
	w := httptest.NewRecorder()

	s.handleChat(w, chatPost(`{"question":"q","history":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`))

	if len(engine.lastHistory) != 2 {
		t.Fatalf("want 2 history turns, got %d", len(engine.lastHistory))
	}
	if engine.lastHistory[1].Role != generator.RoleAssistant {
		t.Errorf("second turn role: got %q", engine.lastHistory[1].Role)
	}
}

// TestHandleChat_NoContentStillOK verifies the engine's no-content result is
// a normal 200 with empty sources and zero confidence.
func TestHandleChat_NoContentStillOK(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{result: &answer.Result{Answer: answer.NoContentMessage, Confidence: 0}}
	s := newTestServer(engine)
	w := httptest.NewRecorder()

	s.handleChat(w, chatPost(`{"question":"q"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decodeChat(t, w)
	if resp.Answer != answer.NoContentMessage {
		t.Errorf("answer: got %q", resp.Answer)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("want no sources, got %d", len(resp.Sources))
	}
	if resp.Confidence != 0 {
		t.Errorf("want confidence 0, got %v", resp.Confidence)
	}
}

// ---------------------------------------------------------------------------
// POST /api/chat — failure paths
// ---------------------------------------------------------------------------

func TestHandleChat_EngineErrorIs500(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeEngine{err: errors.New("qdrant unreachable")})
	w := httptest.NewRecorder()

	s.handleChat(w, chatPost(`{"question":"q"}`))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestHandleChat_TimeoutIs504(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeEngine{blockUntilCancelled: true})
	s.cfg.ChatTimeout = 50 * time.Millisecond
	w := httptest.NewRecorder()

	s.handleChat(w, chatPost(`{"question":"q"}`))

	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /api/chat — conversation logging
// ---------------------------------------------------------------------------

func TestHandleChat_ConversationLogged(t *testing.T) {
	t.Parallel()

	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := store.NewAsyncLogger(db, 16, nil)

	engine := &fakeEngine{result: &answer.Result{
		Answer:     "logged answer",
		Confidence: 0.8,
		Documents:  []rag.ScoredDocument{{Title: "T", URL: "/docs/t", Content: "c", Score: 0.8}},
	}}
	s := newTestServer(engine)
	s.logger = logger
	w := httptest.NewRecorder()

	s.handleChat(w, chatPost(`{"question":"log me"}`))
	logger.Close() // drain the queue

	stats, err := db.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalConversations != 1 {
		t.Errorf("want 1 logged conversation, got %d", stats.TotalConversations)
	}
}

// ---------------------------------------------------------------------------
// POST /api/feedback
// ---------------------------------------------------------------------------

func TestHandleFeedback_Valid(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeEngine{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/feedback",
		strings.NewReader(`{"question":"q","answer":"a","rating":5}`))

	s.handleFeedback(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", w.Code)
	}
}

func TestHandleFeedback_RatingOutOfRange(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeEngine{})
	for _, rating := range []int{0, 6, -1} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/feedback",
			strings.NewReader(fmt.Sprintf(`{"question":"q","rating":%d}`, rating)))

		s.handleFeedback(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("rating %d: expected 400, got %d", rating, w.Code)
		}
	}
}

// ---------------------------------------------------------------------------
// GET /api/stats
// ---------------------------------------------------------------------------

func TestHandleStats_DisabledIs404(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeEngine{})
	w := httptest.NewRecorder()

	s.handleStats(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 when logging disabled, got %d", w.Code)
	}
}

func TestHandleStats_ReturnsAggregates(t *testing.T) {
	t.Parallel()

	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.LogConversation(context.Background(), store.Conversation{Question: "q", Answer: "a", Confidence: 0.9}); err != nil {
		t.Fatalf("log: %v", err)
	}

	s := newTestServer(&fakeEngine{})
	s.stats = db
	w := httptest.NewRecorder()

	s.handleStats(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var stats store.Stats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.TotalConversations != 1 {
		t.Errorf("want 1 conversation, got %d", stats.TotalConversations)
	}
}
