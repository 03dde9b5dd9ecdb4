package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/qdrant/go-client/qdrant"
)

// weekKey is the payload field used for equality filtering at search time.
const weekKey = "week"

// QdrantConfig holds connection and collection parameters for a Qdrant
// vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string
	// Port is the Qdrant gRPC port (default: 6334).
	Port int
	// Collection is the collection name this store owns.
	Collection string
	// VectorSize is the embedding dimensionality for the collection. Must
	// exactly match the configured embedding model's output size.
	VectorSize uint64
	// APIKey is the optional API key for authenticated clusters.
	APIKey string
	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
	// Logger is used for collection lifecycle events. Defaults to
	// slog.Default.
	Logger *slog.Logger
}

// QdrantStore implements VectorStore backed by a Qdrant instance. It owns
// the lifecycle of exactly one named collection.
type QdrantStore struct {
	client *qdrant.Client
	cfg    *QdrantConfig
	log    *slog.Logger
}

// NewQdrantStore creates a QdrantStore. The collection is not touched here —
// call EnsureCollection before upserting.
func NewQdrantStore(cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant: collection name is required")
	}
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("qdrant: vector size is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantStore{client: client, cfg: cfg, log: log}, nil
}

// EnsureCollection creates the collection if missing. With recreate, an
// existing collection is deleted and rebuilt empty — the only path that
// resets the id space. An existing collection without recreate is a logged
// no-op, never an error.
func (s *QdrantStore) EnsureCollection(ctx context.Context, recreate bool) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}

	if exists {
		if !recreate {
			s.log.Info("collection already exists",
				slog.String("collection", s.cfg.Collection),
			)
			return nil
		}
		s.log.Info("deleting existing collection",
			slog.String("collection", s.cfg.Collection),
		)
		if err := s.client.DeleteCollection(ctx, s.cfg.Collection); err != nil {
			return fmt.Errorf("qdrant: failed to delete collection %q: %w", s.cfg.Collection, err)
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	s.log.Info("created collection",
		slog.String("collection", s.cfg.Collection),
		slog.Uint64("vector_size", s.cfg.VectorSize),
	)
	return nil
}

// Upsert stores points in batches. Each point's vector length must match
// the collection's configured size — Qdrant rejects mismatches, surfacing
// the configuration error rather than truncating or padding.
func (s *QdrantStore) Upsert(ctx context.Context, points []Point, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 100
	}

	for start := 0; start < len(points); start += batchSize {
		end := start + batchSize
		if end > len(points) {
			end = len(points)
		}

		batch := make([]*qdrant.PointStruct, 0, end-start)
		for _, p := range points[start:end] {
			payload := map[string]interface{}{"content": p.Content}
			for k, v := range p.Payload {
				payload[k] = v
			}
			batch = append(batch, &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(p.ID),
				Vectors: qdrant.NewVectors(p.Vector...),
				Payload: qdrant.NewValueMap(payload),
			})
		}

		if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.cfg.Collection,
			Points:         batch,
		}); err != nil {
			return fmt.Errorf("qdrant: upsert batch %d failed: %w", start/batchSize, err)
		}
	}

	return nil
}

// Search performs a filtered, thresholded cosine similarity search.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, weekFilter string, limit int, threshold float32) ([]ScoredDocument, error) {
	lim := uint64(limit)

	query := &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &lim,
		ScoreThreshold: &threshold,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if weekFilter != "" {
		query.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(weekKey, weekFilter)},
		}
	}

	results, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	docs := make([]ScoredDocument, 0, len(results))
	for _, r := range results {
		doc := ScoredDocument{
			ID:    r.Id.GetNum(),
			Score: r.Score,
		}
		if p := r.Payload; p != nil {
			doc.Content = p["content"].GetStringValue()
			doc.Title = p["title"].GetStringValue()
			doc.URL = p["url"].GetStringValue()
			doc.Week = p[weekKey].GetStringValue()
			doc.Section = p["section"].GetStringValue()
		}
		docs = append(docs, doc)
	}

	SortResults(docs)
	return docs, nil
}

// Count returns the number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (uint64, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count failed: %w", err)
	}
	return count, nil
}

// Ping calls the Qdrant HealthCheck RPC. Used by readiness probes.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// SortResults orders documents by descending score, breaking ties by
// ascending id so identical queries always return identical orderings.
func SortResults(docs []ScoredDocument) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].ID < docs[j].ID
	})
}
