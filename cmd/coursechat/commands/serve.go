package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/robolearn/coursechat/internal/logging"
	"github.com/robolearn/coursechat/internal/server"
	"github.com/robolearn/coursechat/internal/store"
)

// NewServeCmd constructs the `coursechat serve` command, which starts the
// HTTP chat API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the coursechat HTTP API",
		Long: `Start the HTTP server exposing the chat API.

Endpoints:
  POST /api/chat       answer a question with citations
  POST /api/feedback   record a 1-5 rating of an answer
  GET  /api/stats      usage statistics from the conversation log
  GET  /api/health     liveness
  GET  /api/ready      dependency readiness (qdrant, openai, store)
  GET  /metrics        Prometheus metrics

Examples:
  coursechat serve
  coursechat serve --port 9090
  COURSECHAT_API_KEY=secret coursechat serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			engine, vecStore, emb, gen, err := buildEngine(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer vecStore.Close()

			// Open the conversation log. COURSECHAT_HISTORY_DB overrides the
			// default path (~/.coursechat/conversations.db). Set to "disabled"
			// to turn logging off.
			var logStore *store.SQLiteStore
			var asyncLogger *store.AsyncLogger
			dbPath := os.Getenv("COURSECHAT_HISTORY_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = store.DefaultDBPath()
					if err != nil {
						log.Warn("log store: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					ls, lsErr := store.Open(dbPath)
					if lsErr != nil {
						log.Warn("log store: failed to open, disabling", slog.Any("error", lsErr))
					} else {
						logStore = ls
						asyncLogger = store.NewAsyncLogger(ls, 0, log)
						defer func() {
							asyncLogger.Close()
							_ = ls.Close()
						}()
						log.Info("log store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("conversation logging disabled via COURSECHAT_HISTORY_DB=disabled")
			}

			pingers := []server.Pinger{
				server.NewPinger("qdrant", vecStore.Ping),
				server.NewPinger("openai", emb.Ping),
				server.NewPinger("chat", gen.Ping),
			}
			if logStore != nil {
				pingers = append(pingers, server.NewPinger("store", logStore.Ping))
			}

			cfg := &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("COURSECHAT_API_KEY"),
			}
			if host == "" {
				cfg.Host = getEnvOrDefault("SERVER_HOST", "127.0.0.1")
			}
			if port == 0 {
				cfg.Port = getEnvInt("SERVER_PORT", 8080)
			}

			var srv *server.Server
			if logStore != nil {
				srv, err = server.New(engine, asyncLogger, logStore, cfg)
			} else {
				srv, err = server.New(engine, nil, nil, cfg)
			}
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address to bind to (default 127.0.0.1)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (default 8080)")

	return cmd
}
