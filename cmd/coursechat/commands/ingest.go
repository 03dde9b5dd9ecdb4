package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/robolearn/coursechat/internal/ingestion"
	"github.com/robolearn/coursechat/internal/logging"
)

// NewIngestCmd constructs the `coursechat ingest` command, which indexes the
// course markdown into the vector store.
func NewIngestCmd() *cobra.Command {
	var docsDir string
	var chunkSize int
	var recreate bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index course markdown into the vector store",
		Long: `Discover markdown files under the docs directory, split them into
structure-aware chunks, embed each chunk, and upsert the vectors into Qdrant.

Required environment variables:
  OPENAI_API_KEY       API key for the embedding service
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: course_content)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  EMBEDDING_MODEL      Embedding model (default: text-embedding-3-small)

Examples:
  coursechat ingest --docs ./docs
  coursechat ingest --docs ./docs --recreate
  coursechat ingest --docs ./docs --chunk-size 1500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			if docsDir == "" {
				docsDir = getEnvOrDefault("DOCS_DIR", "")
			}
			if docsDir == "" {
				return fmt.Errorf("ingest: --docs (or DOCS_DIR) is required")
			}
			if chunkSize == 0 {
				chunkSize = getEnvInt("CHUNK_SIZE", 0)
			}

			gateway, _, err := buildGateway()
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			store, err := buildStore(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer store.Close()

			pipeline, err := ingestion.NewPipeline(gateway, store, &ingestion.Config{
				DocsDir:   docsDir,
				ChunkSize: chunkSize,
				Recreate:  recreate,
				Logger:    log,
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			summary, err := pipeline.Run(ctx)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("ingest finished",
				slog.Int("files", summary.FilesProcessed),
				slog.Int("chunks", summary.ChunksCreated),
				slog.Int("vectors", summary.VectorsStored),
			)
			fmt.Printf("Indexed %d files into %d chunks (%d vectors stored)\n",
				summary.FilesProcessed, summary.ChunksCreated, summary.VectorsStored)
			return nil
		},
	}

	cmd.Flags().StringVarP(&docsDir, "docs", "d", "", "Directory containing course markdown (or DOCS_DIR)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Character budget per chunk (default 1000)")
	cmd.Flags().BoolVar(&recreate, "recreate", false, "Drop and rebuild the collection before indexing")

	return cmd
}
