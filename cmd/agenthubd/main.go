// Command agenthubd is the AgentHub server daemon. It wires the agent
// registry, the document-processor factory, the AI service, the task
// archive, and the HTTP API from a YAML config file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/agentichub/agenthub/agent"
	"github.com/agentichub/agenthub/ai"
	"github.com/agentichub/agenthub/archive"
	"github.com/agentichub/agenthub/config"
	"github.com/agentichub/agenthub/docproc"
	"github.com/agentichub/agenthub/events"
	"github.com/agentichub/agenthub/internal/version"
	"github.com/agentichub/agenthub/server"
	"github.com/agentichub/agenthub/server/api"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to YAML config file")
		addr        = flag.String("addr", "", "listen address, overrides config")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("agenthubd %s (commit %s, built %s)\n",
			version.Version, version.Commit, version.BuildDate)
		return
	}

	if err := run(*configPath, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "agenthubd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr string) error {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("starting agenthubd",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
	)

	for _, dir := range []string{cfg.DataDir, cfg.UploadDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	var store *archive.Store
	if cfg.Archive != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Archive), 0o755); err != nil {
			return fmt.Errorf("create archive dir: %w", err)
		}
		var err error
		store, err = archive.Open(cfg.Archive)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer store.Close() //nolint:errcheck
		logger.Info("task archive open", slog.String("path", cfg.Archive))
	}

	provider, err := newProvider(cfg.AI)
	if err != nil {
		return err
	}
	svc := ai.NewService(provider, logger)
	logger.Info("ai provider ready", slog.String("provider", provider.Name()))

	registry := agent.NewRegistry()
	factory := agent.NewFactory()
	bus := events.NewBus()
	mgr := api.NewManager(registry, factory, bus, svc, store)

	srv := server.New(*cfg, mgr, version.Version, logger)

	var archiver agent.Archiver
	if store != nil {
		archiver = store
	}
	docproc.RegisterType(factory, docproc.Deps{
		AI:       svc,
		Logger:   logger,
		Observer: agent.MultiObserver{events.NewObserver(bus), srv.Recorder()},
		Archive:  archiver,
	}, mgr.TrackProcessor)

	for _, ac := range cfg.Agents {
		a, err := mgr.CreateAgent(ac.Type, ac.Name, ac.Description, ac.Settings)
		if err != nil {
			return fmt.Errorf("create agent %s: %w", ac.Name, err)
		}
		logger.Info("agent ready",
			slog.String("id", a.ID()),
			slog.String("name", a.Name()),
			slog.String("type", ac.Type),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("err", err))
	}
	for _, a := range registry.Clear() {
		a.Close()
	}
	logger.Info("shutdown complete")
	return nil
}

// newLogger builds a text slog logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// newProvider selects the text-generation backend from config.
func newProvider(cfg config.AIConfig) (ai.Provider, error) {
	switch cfg.Provider {
	case "", "mock":
		return ai.NewMock(), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires ai.api_key")
		}
		return ai.NewOpenAI(ai.OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		}), nil
	case "ollama":
		return ai.NewOllama(ai.OllamaConfig{
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		}), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}
