package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweetpotato0/tutorgraph/config"
	"github.com/sweetpotato0/tutorgraph/contrib/provider/claude"
	"github.com/sweetpotato0/tutorgraph/contrib/provider/gemini"
	"github.com/sweetpotato0/tutorgraph/contrib/provider/openai"
	"github.com/sweetpotato0/tutorgraph/contrib/tokenizer/tiktoken"
	"github.com/sweetpotato0/tutorgraph/middleware"
	"github.com/sweetpotato0/tutorgraph/middleware/limiter"
	"github.com/sweetpotato0/tutorgraph/middleware/logger"
	"github.com/sweetpotato0/tutorgraph/middleware/validator"
	"github.com/sweetpotato0/tutorgraph/pkg/logging"
	"github.com/sweetpotato0/tutorgraph/pkg/telemetry"
	"github.com/sweetpotato0/tutorgraph/provider"
	"github.com/sweetpotato0/tutorgraph/server"
	"github.com/sweetpotato0/tutorgraph/session"
	"github.com/sweetpotato0/tutorgraph/session/store"
	"github.com/sweetpotato0/tutorgraph/tutor"
	"github.com/sweetpotato0/tutorgraph/tutor/agents"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "tutorgraph: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logging.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.Telemetry.Environment,
		Disable:     !cfg.Telemetry.Enabled,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Error("telemetry shutdown failed", "error", err)
		}
	}()

	sessions, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			log.Error("session store close failed", "error", err)
		}
	}()
	log.Info("session store ready", "backend", cfg.Store.Backend)

	llm, err := newProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}

	agentOpts := []agents.Option{}
	if tok, err := tiktoken.New(cfg.Provider.Model); err != nil {
		log.Warn("tokenizer unavailable, history trimming disabled", "model", cfg.Provider.Model, "error", err)
	} else {
		agentOpts = append(agentOpts, agents.WithTokenBudget(tok, cfg.Tutor.TokenBudget))
	}

	registry := tutor.NewRegistry()
	for name, h := range map[string]tutor.Handler{
		tutor.AgentClassifier: agents.NewClassifier(llm, agentOpts...),
		tutor.AgentTeacher:    agents.NewTeacher(llm, agentOpts...),
		tutor.AgentFeynman:    agents.NewFeynman(llm, agentOpts...),
		tutor.AgentQuiz:       agents.NewQuiz(llm, agentOpts...),
	} {
		if err := registry.Register(name, h); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}

	orchestrator, err := tutor.New(sessions, registry,
		tutor.WithMaxConcurrent(cfg.Tutor.MaxConcurrent),
		tutor.WithCheckpointType(cfg.Store.Backend),
	)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	chain := middleware.NewChain(
		logger.NewRequestLogger(),
		validator.NewPromptValidator(cfg.Prompt.MaxRunes),
		limiter.NewRateLimiter(cfg.RateLimit.MaxRequests,
			time.Duration(cfg.RateLimit.WindowSeconds)*time.Second),
	)

	srv := server.New(orchestrator,
		server.WithChain(chain),
		server.WithStaticDir(cfg.Server.StaticDir),
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// openStore builds the session store named by the configuration.
func openStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendInMemory:
		return store.NewInMemoryStore(), nil
	case config.BackendSQLite:
		return store.NewSQLiteStore(cfg.Store.SQLitePath)
	case config.BackendRedis:
		return store.NewRedisStore(&store.RedisConfig{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		}), nil
	case config.BackendPostgres:
		return store.NewPostgresStoreDSN(cfg.Store.PostgresDSN)
	case config.BackendMongo:
		return store.NewMongoStore(&store.MongoConfig{
			URI:        cfg.Store.MongoURI,
			Database:   cfg.Store.MongoDatabase,
			Collection: cfg.Store.MongoCollection,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// newProvider builds the LLM provider named by the configuration.
func newProvider(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider.Name {
	case config.ProviderOpenAI:
		return openai.New(&openai.Config{
			APIKey:      cfg.Provider.APIKey,
			Model:       cfg.Provider.Model,
			MaxTokens:   int64(cfg.Provider.MaxTokens),
			Temperature: cfg.Provider.Temperature,
		}), nil
	case config.ProviderClaude:
		return claude.New(&claude.Config{
			APIKey:      cfg.Provider.APIKey,
			Model:       cfg.Provider.Model,
			MaxTokens:   int64(cfg.Provider.MaxTokens),
			Temperature: cfg.Provider.Temperature,
		}), nil
	case config.ProviderGemini:
		return gemini.New(ctx, &gemini.Config{
			APIKey:      cfg.Provider.APIKey,
			Model:       cfg.Provider.Model,
			MaxTokens:   int32(cfg.Provider.MaxTokens),
			Temperature: float32(cfg.Provider.Temperature),
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}
}
