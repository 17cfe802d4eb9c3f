package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mikeboe/osint-helper/pkg/chat"
	"github.com/mikeboe/osint-helper/pkg/config"
	"github.com/mikeboe/osint-helper/pkg/database"
	"github.com/mikeboe/osint-helper/pkg/embeddings"
	"github.com/mikeboe/osint-helper/pkg/metrics"
	"github.com/mikeboe/osint-helper/pkg/research"
	"github.com/mikeboe/osint-helper/pkg/research/tools"
	"github.com/mikeboe/osint-helper/pkg/server"
	"github.com/mikeboe/osint-helper/pkg/vectorstore"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgresDB(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		logger.Error("Failed to initialize schema", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	engine, err := research.NewEngine(ctx, cfg, research.BuildOptions{Metrics: m, Logger: logger, Pool: db.Pool})
	if err != nil {
		logger.Error("Failed to init research engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	knowledge := newKnowledge(ctx, cfg, db, logger)

	var chatSvc *chat.Service
	if knowledge != nil {
		chatSvc, err = chat.NewService(ctx, db, cfg, knowledge)
		if err != nil {
			logger.Warn("Chat disabled", "error", err)
			chatSvc = nil
		}
	}

	usernames := tools.NewUsernameChecker(cfg.Scrape.UserAgent, cfg.Scrape.Timeout, cfg.Research.Concurrency)
	usernames.Logger = logger

	svc := server.NewService(ctx, db, engine, usernames, cfg.Research.Rounds)
	svc.Logger = logger

	mcpServer := server.NewMCPServer(engine, usernames, knowledge, cfg.Research.Rounds, version)
	handler := server.NewHandler(svc, chatSvc, m.Handler(), server.NewMCPHandler(mcpServer), version)

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Mcp-Session-Id"},
		ExposeHeaders: []string{"Content-Length", "Mcp-Session-Id"},
	}))
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Server.Port, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Failed to start server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
	// running jobs stop on the cancelled context and still record their final status
	svc.Wait()
}

// newKnowledge returns the read side of the knowledge index, or nil when
// indexing is off or not reachable.
func newKnowledge(ctx context.Context, cfg *config.Config, db *database.PostgresDB, logger *slog.Logger) *chat.KnowledgeToolset {
	if !cfg.Rag.Enabled {
		return nil
	}
	emb, err := embeddings.NewGoogleEmbedder(ctx, cfg.Rag.EmbeddingModel, cfg.LLM.GoogleKey)
	if err != nil {
		logger.Warn("Knowledge search disabled", "error", err)
		return nil
	}
	store, err := vectorstore.NewKnowledgeStore(db.Pool, cfg.Rag.Collection)
	if err != nil {
		logger.Warn("Knowledge search disabled", "error", err)
		return nil
	}
	if err := store.EnsureTable(ctx, emb.Dimension()); err != nil {
		logger.Warn("Knowledge search disabled", "error", err)
		return nil
	}
	ks := chat.NewKnowledgeToolset(store, emb)
	ks.Logger = logger
	return ks
}
