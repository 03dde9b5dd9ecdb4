// Package ingestion implements the content ingestion pipeline: discover
// markdown files under the docs directory, normalize and chunk each one,
// embed every chunk, and upsert the results into the vector store.
// Invoked by the `coursechat ingest` CLI command.
package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/robolearn/coursechat/internal/chunker"
	"github.com/robolearn/coursechat/internal/embedder"
	"github.com/robolearn/coursechat/internal/rag"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// DocsDir is the root directory scanned for markdown files.
	DocsDir string
	// ChunkSize is the character budget per chunk. Defaults to
	// chunker.DefaultChunkSize.
	ChunkSize int
	// UpsertBatchSize is the number of points per upsert call. Defaults
	// to 100.
	UpsertBatchSize int
	// Recreate deletes and rebuilds the collection before upserting.
	Recreate bool
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Summary reports the outcome of one ingestion run.
type Summary struct {
	// FilesProcessed is the number of markdown files read.
	FilesProcessed int
	// ChunksCreated is the total number of chunks across all files.
	ChunksCreated int
	// VectorsStored is the number of points upserted.
	VectorsStored int
}

// Pipeline orchestrates the discover → chunk → embed → upsert flow.
type Pipeline struct {
	gateway *embedder.Gateway
	store   rag.VectorStore
	cfg     *Config
	log     *slog.Logger
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(gateway *embedder.Gateway, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if gateway == nil {
		return nil, fmt.Errorf("ingestion: embedding gateway must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: vector store must not be nil")
	}
	if cfg == nil || cfg.DocsDir == "" {
		return nil, fmt.Errorf("ingestion: docs directory is required")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunker.DefaultChunkSize
	}
	if cfg.UpsertBatchSize <= 0 {
		cfg.UpsertBatchSize = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Pipeline{gateway: gateway, store: store, cfg: cfg, log: cfg.Logger}, nil
}

// Run executes the full ingestion pipeline and returns a Summary.
//
// Chunk ids are assigned sequentially at the flattening step, so the id
// space is only fresh when the collection was recreated — re-running with
// Recreate=false against an existing collection overwrites ids in place
// (last-write-wins). A failing embed batch aborts the run before any
// upsert, so no partial commit happens past the failure.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	files, err := p.discover()
	if err != nil {
		return nil, err
	}
	p.log.Info("discovered markdown files",
		slog.Int("count", len(files)),
		slog.String("dir", p.cfg.DocsDir),
	)

	var all []chunker.Chunk
	for _, file := range files {
		chunks, err := p.processFile(file)
		if err != nil {
			return nil, err
		}
		p.log.Debug("chunked file",
			slog.String("file", file),
			slog.Int("chunks", len(chunks)),
		)
		all = append(all, chunks...)
	}
	p.log.Info("chunking complete", slog.Int("chunks", len(all)))

	summary := &Summary{FilesProcessed: len(files), ChunksCreated: len(all)}
	if len(all) == 0 {
		p.log.Warn("no chunks created, nothing to index")
		return summary, nil
	}

	if err := p.store.EnsureCollection(ctx, p.cfg.Recreate); err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}

	texts := make([]string, len(all))
	for i, c := range all {
		texts[i] = c.Content
	}

	vectors, err := p.gateway.EmbedAll(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}
	p.log.Info("embeddings generated", slog.Int("vectors", len(vectors)))

	points := make([]rag.Point, len(all))
	for i, c := range all {
		points[i] = rag.Point{
			ID:      uint64(i),
			Vector:  vectors[i],
			Content: c.Content,
			Payload: map[string]string{
				"title":   c.Meta.Title,
				"source":  c.Meta.SourceFile,
				"week":    c.Meta.Week,
				"url":     c.Meta.URL,
				"type":    c.Meta.Type,
				"section": c.Section,
			},
		}
	}

	if err := p.store.Upsert(ctx, points, p.cfg.UpsertBatchSize); err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}
	summary.VectorsStored = len(points)

	p.log.Info("ingestion complete",
		slog.Int("files", summary.FilesProcessed),
		slog.Int("chunks", summary.ChunksCreated),
		slog.Int("vectors", summary.VectorsStored),
	)
	return summary, nil
}

// discover walks the docs directory and returns all markdown file paths
// relative to it, in walk order.
func (p *Pipeline) discover() ([]string, error) {
	var files []string
	root := p.cfg.DocsDir

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".mdx" {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingestion: scanning %s: %w", root, err)
	}
	return files, nil
}

// processFile reads, normalizes, and chunks one markdown file. A file whose
// normalized content is empty yields zero chunks and a warning — that is
// "no content to index", not an error.
func (p *Pipeline) processFile(relPath string) ([]chunker.Chunk, error) {
	raw, err := os.ReadFile(filepath.Join(p.cfg.DocsDir, relPath))
	if err != nil {
		return nil, fmt.Errorf("ingestion: reading %s: %w", relPath, err)
	}
	content := string(raw)

	meta := documentMetadata(relPath, content)
	normalized := chunker.Normalize(content)
	if normalized == "" {
		p.log.Warn("skipping empty file", slog.String("file", relPath))
		return nil, nil
	}

	return chunker.Split(normalized, meta, p.cfg.ChunkSize), nil
}
