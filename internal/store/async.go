package store

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// defaultQueueSize is the number of pending log writes buffered before new
// entries are dropped.
const defaultQueueSize = 256

// writeTimeout bounds each background write so a wedged database cannot
// stall the drain on Close.
const writeTimeout = 5 * time.Second

// AsyncLogger decouples conversation logging from the request path. Writes
// are queued on a bounded channel and drained by a single worker goroutine;
// a full queue or a failed write is logged at WARN and otherwise ignored.
type AsyncLogger struct {
	store LogStore
	log   *slog.Logger

	queue   chan func(context.Context)
	closing chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewAsyncLogger starts the worker goroutine. store must not be nil.
// queueSize <= 0 selects the default.
func NewAsyncLogger(store LogStore, queueSize int, log *slog.Logger) *AsyncLogger {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if log == nil {
		log = slog.Default()
	}
	a := &AsyncLogger{
		store:   store,
		log:     log,
		queue:   make(chan func(context.Context), queueSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncLogger) run() {
	defer close(a.done)
	for {
		select {
		case write := <-a.queue:
			a.apply(write)
		case <-a.closing:
			// Drain whatever was queued before Close.
			for {
				select {
				case write := <-a.queue:
					a.apply(write)
				default:
					return
				}
			}
		}
	}
}

func (a *AsyncLogger) apply(write func(context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	write(ctx)
	cancel()
}

// enqueue submits a write without blocking. Drops and warns when the queue
// is full or the logger is closed. The queue channel is never closed, so a
// late call racing Close drops the entry instead of panicking.
func (a *AsyncLogger) enqueue(kind string, write func(context.Context)) {
	select {
	case <-a.closing:
		a.log.Warn("log store closed, dropping entry", slog.String("kind", kind))
		return
	default:
	}
	select {
	case a.queue <- write:
	default:
		a.log.Warn("log queue full, dropping entry", slog.String("kind", kind))
	}
}

// LogConversation queues a conversation write. Never blocks and never
// returns an error to the caller.
func (a *AsyncLogger) LogConversation(c Conversation) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	a.enqueue("conversation", func(ctx context.Context) {
		if err := a.store.LogConversation(ctx, c); err != nil {
			a.log.Warn("conversation log write failed", slog.String("error", err.Error()))
		}
	})
}

// LogFeedback queues a feedback write.
func (a *AsyncLogger) LogFeedback(f Feedback) {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	a.enqueue("feedback", func(ctx context.Context) {
		if err := a.store.LogFeedback(ctx, f); err != nil {
			a.log.Warn("feedback log write failed", slog.String("error", err.Error()))
		}
	})
}

// Close stops accepting new writes and blocks until queued writes drain.
// Safe to call more than once.
func (a *AsyncLogger) Close() {
	a.once.Do(func() { close(a.closing) })
	<-a.done
}
