package embedder

import (
	"context"
	"fmt"
)

// DefaultBatchSize is the number of texts sent per embeddings call when the
// caller passes zero.
const DefaultBatchSize = 100

// BatchError reports the failure of one embedding batch. The whole
// operation is aborted: no vectors are returned, because a silently skipped
// batch would desynchronize the 1:1 ordering contract between chunks and
// their stored vectors.
type BatchError struct {
	// Batch is the zero-based index of the batch that failed.
	Batch int
	// Err is the underlying service error.
	Err error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("embedding batch %d failed: %v", e.Batch, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Gateway batches embedding requests against an Embedder. Retries are the
// caller's responsibility — the service's failure modes (rate limits,
// transient network errors) want different backoff policies per call site.
type Gateway struct {
	embedder  Embedder
	batchSize int
}

// NewGateway constructs a Gateway over the given Embedder. batchSize <= 0
// selects DefaultBatchSize.
func NewGateway(e Embedder, batchSize int) *Gateway {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Gateway{embedder: e, batchSize: batchSize}
}

// EmbedAll embeds every text, preserving order, issuing one service call per
// batch. On any per-batch failure the whole operation fails with a
// *BatchError carrying the failing batch index and nil vectors.
func (g *Gateway) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += g.batchSize {
		end := i + g.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := g.embedder.Embed(ctx, texts[i:end])
		if err != nil {
			return nil, &BatchError{Batch: i / g.batchSize, Err: err}
		}
		if len(vectors) != end-i {
			return nil, &BatchError{
				Batch: i / g.batchSize,
				Err:   fmt.Errorf("expected %d vectors, got %d", end-i, len(vectors)),
			}
		}
		out = append(out, vectors...)
	}

	return out, nil
}

// EmbedOne embeds a single text, as used on the query path.
func (g *Gateway) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 vector, got %d", len(vectors))
	}
	return vectors[0], nil
}
