package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/courier/internal/api"
	"github.com/nidhogg/courier/internal/arbiter"
	"github.com/nidhogg/courier/internal/config"
	"github.com/nidhogg/courier/internal/dispatch"
	"github.com/nidhogg/courier/internal/embedding"
	"github.com/nidhogg/courier/internal/gateway"
	"github.com/nidhogg/courier/internal/intent"
	"github.com/nidhogg/courier/internal/monitor"
	"github.com/nidhogg/courier/internal/provider"
	msgrouter "github.com/nidhogg/courier/internal/router"
	"github.com/nidhogg/courier/internal/skill"
	"github.com/nidhogg/courier/internal/skills"
	pgstore "github.com/nidhogg/courier/internal/store"
	"github.com/nidhogg/courier/internal/vectorstore"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/courier.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		boot, _ := zap.NewDevelopment()
		boot.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}

	logger := buildLogger(cfg.Server.LogLevel)
	defer logger.Sync()
	logger.Info("Starting Courier...", zap.String("config", cfgPath))

	// LLM providers
	provRouter := provider.NewRouter(logger)
	haveProviders := false
	for _, pc := range cfg.Providers {
		p, err := provider.New(provider.Config{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey, Model: pc.Model,
		}, logger)
		if err != nil {
			logger.Warn("provider skipped", zap.String("id", pc.ID), zap.Error(err))
			continue
		}
		provRouter.Register(p, pc.Model)
		haveProviders = true
	}
	if cfg.Bindings.Conversation != "" {
		provRouter.Bind(provider.PurposeConversation, cfg.Bindings.Conversation)
	}
	if cfg.Bindings.Arbitration != "" {
		provRouter.Bind(provider.PurposeArbitration, cfg.Bindings.Arbitration)
	}
	if len(cfg.Bindings.Fallbacks) > 0 {
		provRouter.SetFallbacks(provider.PurposeConversation, cfg.Bindings.Fallbacks)
		provRouter.SetFallbacks(provider.PurposeArbitration, cfg.Bindings.Fallbacks)
	}

	// Conversation store
	var store *pgstore.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without history", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(context.Background(), cfg.Database.Postgres.MigrationsDir); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			store = ps
		}
	}

	// Gateway, wired before skills so reminders can announce through it
	gw := gateway.NewGateway(logger)
	notify := func(ctx context.Context, text string) error {
		return gw.Announce(ctx, &gateway.Announcement{Content: text})
	}

	// Skill registry
	registry := skill.NewRegistry(logger)
	registry.Load(skills.Registrations(skills.Options{
		RedisURL: cfg.Database.Redis.URL,
		Notify:   notify,
		Logger:   logger,
	}))

	// Intent scorer
	catalog := loadCatalog(cfg, logger)
	var keywords []string
	for _, d := range registry.All() {
		keywords = append(keywords, d.Keywords...)
	}
	gate := intent.NewGate(keywords, catalog, cfg.Scorer.ImperativeVerbs)

	embedder, err := embedding.New(embedding.Config{
		Provider:  cfg.Embedding.Provider,
		Endpoint:  cfg.Embedding.Endpoint,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		Dimension: cfg.Embedding.Dimension,
	})
	if err != nil {
		logger.Fatal("embedding provider", zap.Error(err))
	}

	var index intent.PhraseIndex = intent.NewMemoryIndex()
	var qdrant *vectorstore.Client
	if cfg.Database.Qdrant.Enabled {
		qc, qErr := vectorstore.NewClient(vectorstore.Config{
			Host: cfg.Database.Qdrant.Host,
			Port: cfg.Database.Qdrant.Port,
		})
		if qErr != nil {
			logger.Warn("Qdrant unavailable, using in-memory index", zap.Error(qErr))
		} else {
			qdrant = qc
			index = intent.NewQdrantIndex(qc, cfg.Database.Qdrant.Collection, logger)
		}
	}

	scorer := intent.NewScorer(embedder, index, gate, catalog,
		time.Duration(cfg.Scorer.TimeoutMS)*time.Millisecond, logger)
	buildCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := scorer.Build(buildCtx); err != nil {
		logger.Warn("intent index build failed, scoring degraded", zap.Error(err))
	}
	cancel()

	// Decision chain
	policy := intent.Policy{
		High:            cfg.Arbitration.High,
		Medium:          cfg.Arbitration.Medium,
		AmbiguityMargin: cfg.Arbitration.AmbiguityMargin,
	}
	dispatcher := dispatch.New(registry, 0, logger)

	var classifier arbiter.Classifier
	if haveProviders {
		classifier = provider.NewClassifier(provRouter)
	}
	arb := arbiter.New(registry, classifier, 0, logger)

	pipeOpts := msgrouter.Options{
		Scorer:     scorer,
		Policy:     policy,
		Dispatcher: dispatcher,
		Selector:   arb,
		Aliases:    cfg.Commands,
		ContextLen: cfg.Scorer.ContextLen,
		Logger:     logger,
	}
	if haveProviders {
		pipeOpts.Generator = provider.NewGenerator(provRouter, "")
	}
	if store != nil {
		pipeOpts.History = store
	}
	pipeline := msgrouter.New(pipeOpts)

	// Platform adapters; SetReply before Register captures the handler
	gw.SetReply(func(ctx context.Context, msg *gateway.InboundMessage) string {
		return pipeline.Handle(ctx, msg.Platform, msg.ChannelID, msg.Content).Text
	})
	if cfg.Gateway.Discord.Enabled && cfg.Gateway.Discord.BotToken != "" {
		gw.Register(gateway.NewDiscordAdapter(cfg.Gateway.Discord.BotToken, logger))
	}
	if err := gw.ConnectAll(context.Background()); err != nil {
		logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}

	// Background monitor
	var mon *monitor.Monitor
	if cfg.Monitor.Enabled {
		mon = monitor.New(registry, nil, monitor.Config{
			Interval:      time.Duration(cfg.Monitor.IntervalSec) * time.Second,
			Backoff:       time.Duration(cfg.Monitor.BackoffSec) * time.Second,
			LoadThreshold: cfg.Monitor.LoadThresholdPct,
		}, logger)
		mon.Start(context.Background())
	}

	// HTTP server
	var monCtl api.MonitorControl
	if mon != nil {
		monCtl = mon
	}
	handler := api.NewHandler(pipeline, registry, monCtl, gw, logger)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler.Router(),
	}
	go func() {
		logger.Info("Courier listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Courier...")
	if mon != nil {
		mon.Stop()
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	srv.Shutdown(shutdownCtx)
	cancelShutdown()
	gw.Close()
	if qdrant != nil {
		qdrant.Close()
	}
	if store != nil {
		store.Close()
	}
}

func buildLogger(level string) *zap.Logger {
	var logger *zap.Logger
	var err error
	if level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}

func loadCatalog(cfg *config.Config, logger *zap.Logger) *intent.Catalog {
	if cfg.Scorer.CatalogPath == "" {
		return intent.DefaultCatalog()
	}
	cat, err := intent.LoadCatalog(cfg.Scorer.CatalogPath)
	if err != nil {
		logger.Warn("catalog load failed, using builtin catalog",
			zap.String("path", cfg.Scorer.CatalogPath), zap.Error(err))
		return intent.DefaultCatalog()
	}
	return cat
}
