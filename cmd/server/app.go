package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"legaljudge-backend/backend"
	"legaljudge-backend/config"
	"legaljudge-backend/handlers"
	"legaljudge-backend/pkg/logger"
	"legaljudge-backend/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// app holds the components shared by both commands
type app struct {
	intake       *service.Intake
	orchestrator *service.Orchestrator
	assembler    *service.Assembler
	closers      []io.Closer
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	transport := backend.NewTransport(
		backend.WithRetries(cfg.Backends.MaxRetries, cfg.Backends.InitialBackoff),
		backend.WithServiceTokens(backend.NewServiceTokenSource(cfg.Backends.ServiceTokenSecret, cfg.Backends.ServiceTokenTTL)),
	)

	a := &app{
		intake:    service.NewIntake(cfg.Intake),
		assembler: service.NewAssembler(cfg.Assembler),
	}

	var synthesizer service.OpinionSynthesizer
	switch strings.ToLower(cfg.Opinion.Provider) {
	case config.OpinionProviderGemini:
		gemini, err := backend.NewGeminiOpinionClient(ctx, transport, cfg.Opinion, cfg.Backends.Opinion.Timeout)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gemini)
		synthesizer = gemini
		logger.Info(ctx, "opinion provider initialized", zap.String("provider", "gemini"), zap.String("model", cfg.Opinion.GeminiModel))
	default:
		synthesizer = backend.NewOpinionClient(transport, cfg.Backends.Opinion)
		logger.Info(ctx, "opinion provider initialized", zap.String("provider", "http"), zap.String("url", cfg.Backends.Opinion.URL))
	}

	a.orchestrator = service.NewOrchestrator(
		service.WithExtractor(backend.NewOCRClient(transport, cfg.Backends.OCR)),
		service.WithRetriever(backend.NewSearchClient(transport, cfg.Backends.Search)),
		service.WithPredictor(backend.NewPredictionClient(transport, cfg.Backends.Prediction)),
		service.WithOpinionSynthesizer(synthesizer),
		service.WithRequestTimeout(cfg.Pipeline.RequestTimeout),
	)
	return a, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			logger.L().Warn("failed to close component", zap.Error(err))
		}
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handlers.NewAnalysisHandler(a.intake, a.orchestrator, a.assembler, cfg.Server.ServiceName)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handlers.SetupRouter(cfg, h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return <-errCh
}

func runAnalyze(ctx context.Context, cfg *config.Config, path string, out io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read brief: %w", err)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	artifact, err := a.intake.Validate(data, "", filepath.Base(path))
	if err != nil {
		return err
	}

	result, err := a.orchestrator.Analyze(ctx, service.AnalyzeRequest{Artifact: artifact})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(a.assembler.Assemble(result.Analysis))
}
