// Package embedder converts text into dense vector embeddings and provides
// the batching gateway used by ingestion and query-time retrieval. The
// Embedder interface is the capability boundary: production code talks to
// the OpenAI embeddings API, tests inject deterministic fakes.
package embedder

import "context"

// Embedder converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice — embeddings[i] is the
// vector for texts[i]. Implementations must be safe to call from multiple
// goroutines.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-3-small"

// DefaultDimensions is the vector size assumed for models not present in
// ModelDimensions. Unknown models are a detectable case — callers should
// check Dimensions' second return value before silently accepting this.
const DefaultDimensions = 1536

// ModelDimensions maps embedding model names to their fixed output vector
// length. The vector store collection must be created with exactly this
// size; a mismatch is a configuration error, not something to pad or
// truncate around.
var ModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Dimensions returns the vector size for model and whether the model is
// known. Unknown models fall back to DefaultDimensions.
func Dimensions(model string) (int, bool) {
	if d, ok := ModelDimensions[model]; ok {
		return d, true
	}
	return DefaultDimensions, false
}
