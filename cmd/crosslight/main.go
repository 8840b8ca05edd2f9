package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"crosslight/internal/analysis"
	"crosslight/internal/api"
	"crosslight/internal/artifact"
	"crosslight/internal/config"
	"crosslight/internal/correlate"
	"crosslight/internal/extract"
	"crosslight/internal/infrastructure/cache"
	"crosslight/internal/pipeline"
	"crosslight/internal/querygen"
	"crosslight/internal/reasoning"
	"crosslight/internal/sources"
	"crosslight/internal/sources/netexposure"
	"crosslight/internal/sources/social"
	"crosslight/internal/translate"
	"crosslight/pkg/logger"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "crosslight",
		Short: "Cross-source threat correlation pipeline",
		Long: "crosslight collects observations from network-exposure scans and social " +
			"media monitoring, correlates them across sources, runs a multi-stage " +
			"analysis chain, and publishes a single JSON artifact.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one pipeline cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(configPath)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline on a schedule and serve the artifact over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("crosslight " + version)
		},
	}

	root.AddCommand(runCmd, serveCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles everything the commands share.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	pipeline *pipeline.Pipeline
	registry *sources.Registry
	sink     *artifact.Publisher
	stores   []cache.Store
}

func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		TimeFormat: cfg.Logger.TimeFormat,
	}
	if cfg.App.Environment == "production" {
		logCfg.Format = "json"
	}
	log := logger.New(logCfg)

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Environment).
		Str("version", version).
		Msg("starting crosslight")

	registry := sources.NewRegistry(log)

	netConn := netexposure.New(log)
	if err := netConn.Configure(connectorConfig(cfg.Sources.NetExposure)); err != nil {
		return nil, err
	}
	registry.Register(netConn)

	socialConn := social.New(log)
	if err := socialConn.Configure(connectorConfig(cfg.Sources.Social)); err != nil {
		return nil, err
	}
	registry.Register(socialConn)

	client := reasoning.NewClient(reasoning.Config{
		Endpoint:     cfg.Reasoning.Endpoint,
		Model:        cfg.Reasoning.Model,
		StageModels:  cfg.Reasoning.StageModels,
		MaxRetries:   cfg.Reasoning.MaxRetries,
		Timeout:      cfg.Reasoning.Timeout,
		TimeoutPerKB: cfg.Reasoning.TimeoutPerKB,
	}, log)

	queryStore, err := cache.New(cfg.Cache, "query", log)
	if err != nil {
		return nil, fmt.Errorf("failed to open query cache: %w", err)
	}
	translationStore, err := cache.New(cfg.Cache, "translation", log)
	if err != nil {
		return nil, fmt.Errorf("failed to open translation cache: %w", err)
	}

	var translator pipeline.Translator
	if cfg.Translation.Enabled {
		var fallback *translate.FallbackProvider
		if cfg.Translation.FallbackEndpoint != "" {
			fallback = translate.NewFallbackProvider(cfg.Translation.FallbackEndpoint, log)
		}
		translator = translate.New(client, fallback, translationStore, translate.Options{
			TargetLanguage: cfg.Translation.TargetLanguage,
			BatchSize:      cfg.Translation.BatchSize,
			CacheTTL:       cfg.Cache.TranslationTTL,
			TimeoutPerKB:   cfg.Translation.TimeoutPerKB,
			MinLengthRatio: cfg.Translation.MinLengthRatio,
			MaxLengthRatio: cfg.Translation.MaxLengthRatio,
		}, log)
	}

	sink := artifact.NewPublisher(cfg.Pipeline.ArtifactDir, cfg.Pipeline.Retention, log)
	stores := []cache.Store{queryStore, translationStore}

	p := pipeline.New(pipeline.Options{
		Registry:   registry,
		Extractor:  extract.New(log),
		Engine:     correlate.NewEngine(cfg.Correlation.SimultaneityWindow, cfg.Correlation.EvidenceCap, cfg.Correlation.MinCrossSource, log),
		Analyzer:   analysis.New(client, log),
		QueryGen:   querygen.New(client, queryStore, cfg.QueryGen.MaxSuggestions, cfg.QueryGen.UseReasoning, cfg.Cache.QueryTTL, log),
		Translator: translator,
		Publisher:  sink,
		Stores:     stores,
		ValidFor:   cfg.Pipeline.ValidFor,
		Interval:   cfg.Pipeline.Interval,
	}, log)

	return &app{cfg: cfg, log: log, pipeline: p, registry: registry, sink: sink, stores: stores}, nil
}

func connectorConfig(src config.SourceConfig) sources.ConnectorConfig {
	return sources.ConnectorConfig{
		Enabled:           src.Enabled,
		APIURL:            src.APIURL,
		APIKey:            src.APIKey,
		FeedURL:           src.FeedURL,
		Timeout:           src.Timeout,
		RequestsPerMinute: src.RequestsPerMinute,
		Cooldown:          src.Cooldown,
	}
}

func (a *app) close() {
	for _, store := range a.stores {
		if err := store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("cache close failed")
		}
	}
}

func runOnce(configPath string) error {
	a, err := buildApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := a.pipeline.RunOnce(ctx)
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(out))
	return nil
}

func serve(configPath string) error {
	a, err := buildApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handlers := api.NewHandlers(a.pipeline, a.sink, a.registry, version, a.log)
	router := api.NewRouter(a.cfg.Server, handlers, a.log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.HTTPPort),
		Handler:      router.Setup(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		if err := a.pipeline.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error().Err(err).Msg("scheduler stopped")
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	}

	shutdownTimeout := a.cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	a.log.Info().Msg("stopped")
	return nil
}
