package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alyahmadi/sakina/backend/internal/audio"
	"github.com/alyahmadi/sakina/backend/internal/config"
	"github.com/alyahmadi/sakina/backend/internal/gateway"
	"github.com/alyahmadi/sakina/backend/internal/handler"
	sessionhandler "github.com/alyahmadi/sakina/backend/internal/handler/session"
	voicehandler "github.com/alyahmadi/sakina/backend/internal/handler/voice"
	"github.com/alyahmadi/sakina/backend/internal/service/evolution"
	"github.com/alyahmadi/sakina/backend/internal/service/safety"
	"github.com/alyahmadi/sakina/backend/internal/service/therapy"
	"github.com/alyahmadi/sakina/backend/internal/service/turn"
	"github.com/alyahmadi/sakina/backend/internal/store"
)

const evolutionQueueSize = 16

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		logger.Fatal("failed to create data directory", zap.Error(err))
	}

	db, err := store.Open(filepath.Join(cfg.Storage.DataDir, "session_logs.db"))
	if err != nil {
		logger.Fatal("failed to open session store", zap.Error(err))
	}
	defer db.Close()

	audioStore, err := audio.NewStorage(cfg.Storage.DataDir)
	if err != nil {
		logger.Fatal("failed to prepare audio storage", zap.Error(err))
	}

	gemini, err := gateway.NewGemini(ctx, cfg.Gemini, logger)
	if err != nil {
		logger.Fatal("failed to initialize gemini gateway", zap.Error(err))
	}

	textModel := cfg.Gemini.TextModel
	emotionModel := gateway.NewChatModel(gemini, gateway.GenParams{Model: textModel, MaxTokens: 8, Temperature: 0})
	crisisModel := gateway.NewChatModel(gemini, gateway.GenParams{Model: textModel, MaxTokens: 2, Temperature: 0})
	draftModel := gateway.NewChatModel(gemini, gateway.GenParams{Model: textModel, MaxTokens: 128, Temperature: 0.45})
	reviewModel := gateway.NewChatModel(gemini, gateway.GenParams{Model: textModel, MaxTokens: 128, Temperature: 0.25})
	insightModel := gateway.NewChatModel(gemini, gateway.GenParams{Model: textModel, MaxTokens: 256, Temperature: 0.3})

	classifier, err := safety.NewClassifier(ctx, emotionModel, crisisModel, logger)
	if err != nil {
		logger.Fatal("failed to initialize safety classifier", zap.Error(err))
	}

	responder, err := therapy.NewResponder(ctx, draftModel, reviewModel, logger)
	if err != nil {
		logger.Fatal("failed to initialize responder", zap.Error(err))
	}

	evolver, err := evolution.NewEvolver(ctx, insightModel, db, logger)
	if err != nil {
		logger.Fatal("failed to initialize insight evolver", zap.Error(err))
	}

	// Evolution jobs should outlive the request that queued them, so the
	// worker is not bound to the shutdown signal context.
	dispatcher := evolution.NewDispatcher(evolver, evolutionQueueSize, logger)
	dispatcher.Start(context.Background())
	defer dispatcher.Close()

	orchestrator := turn.NewOrchestrator(gemini, classifier, responder, db, audioStore, turn.Options{
		HistoryLimit: cfg.Storage.HistoryLimit,
		TTSVoice:     cfg.Gemini.TTSVoice,
	}, logger)

	router := handler.NewRouter(cfg,
		sessionhandler.New(dispatcher, logger),
		voicehandler.New(orchestrator, audioStore, logger),
	)

	startServer(ctx, cfg.Server, router, logger)
}

func newLogger(logCfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(logCfg.Level)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("sakina backend listening", zap.String("addr", serverCfg.Addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
