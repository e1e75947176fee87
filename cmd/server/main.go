package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/phuslu/log"
	"github.com/xhad/sage/pkg/agent"
	"github.com/xhad/sage/pkg/calendar"
	"github.com/xhad/sage/pkg/config"
	"github.com/xhad/sage/pkg/llm"
	"github.com/xhad/sage/pkg/search"
	"github.com/xhad/sage/pkg/store"
	"github.com/xhad/sage/pkg/voice"
	"github.com/xhad/sage/server"
)

func main() {
	var (
		configPath string
		verbose    bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.Parse()

	// A missing .env is fine; environment variables may be set directly
	_ = godotenv.Load()

	log.DefaultLogger = log.Logger{
		Level:      log.InfoLevel,
		TimeFormat: time.RFC3339,
		Writer:     &log.ConsoleWriter{ColorOutput: true},
	}
	if verbose {
		log.DefaultLogger.Level = log.DebugLevel
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config error: %s: %s", e.Field, e.Message)
		}
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	vectorStore, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
		ConnString:  cfg.Database.URL,
		TableName:   cfg.Database.TableName,
		VectorDim:   cfg.Database.VectorDim,
		SearchLimit: cfg.Database.SearchLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	defer vectorStore.Close()

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		APIKey: cfg.LLM.APIKey,
		Model:  cfg.LLM.EmbeddingModel,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	searcher := search.New(search.Config{APIKey: cfg.Search.SerperAPIKey})

	scheduler := calendar.New(calendar.Config{
		CredentialsPath: cfg.Calendar.CredentialsPath,
		TokenPath:       cfg.Calendar.TokenPath,
		CalendarID:      cfg.Calendar.CalendarID,
	})

	toolkit := &agent.Toolkit{
		Store:          vectorStore,
		Embedder:       embedder,
		Searcher:       searcher,
		Scheduler:      scheduler,
		SearchLimit:    cfg.Database.SearchLimit,
		ScoreThreshold: cfg.Database.ScoreThreshold,
	}

	supportAgent := agent.New(chatEngine, toolkit, cfg.Agent.CompanyName)

	voiceClient := voice.New(voice.Config{
		APIKey:        cfg.Voice.VapiAPIKey,
		AssistantName: cfg.Voice.AssistantName,
		WebhookURL:    cfg.Voice.WebhookURL,
		SystemPrompt:  agent.SystemPrompt(cfg.Agent.CompanyName),
		Tools:         agent.ToolSchemas(),
	})

	port, err := strconv.Atoi(cfg.Server.Port)
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", cfg.Server.Port, err)
	}

	srv := server.New(server.Config{
		Port:        port,
		Streaming:   cfg.Server.Streaming,
		CompanyName: cfg.Agent.CompanyName,
	}, server.Deps{
		Agent:     supportAgent,
		Toolkit:   toolkit,
		Chat:      chatEngine,
		Store:     vectorStore,
		Searcher:  searcher,
		Scheduler: scheduler,
		Voice:     voiceClient,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
