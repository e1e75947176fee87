package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/sage/pkg/config"
	"github.com/xhad/sage/pkg/ingest"
	"github.com/xhad/sage/pkg/llm"
	"github.com/xhad/sage/pkg/processor"
	"github.com/xhad/sage/pkg/scraper"
	"github.com/xhad/sage/pkg/sitemap"
	"github.com/xhad/sage/pkg/store"
)

func main() {
	var (
		configPath string
		sitemapURL string
		schedule   string
		force      bool
		verbose    bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&sitemapURL, "sitemap", "", "Sitemap URL (overrides config)")
	flag.StringVar(&schedule, "schedule", "", "Cron expression for recurring ingestion (e.g. \"0 3 * * *\")")
	flag.BoolVar(&force, "force", false, "Re-embed chunks that already exist")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.Parse()

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
	if sitemapURL != "" {
		cfg.Scraper.SitemapURL = sitemapURL
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config error: %s: %s", e.Field, e.Message)
		}
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if schedule == "" {
		if err := runOnce(ctx, cfg, force); err != nil {
			log.Fatal().Err(err).Msg("ingestion failed")
		}
		return
	}

	// Recurring mode: run on the cron schedule until interrupted
	c := cron.New()
	_, err = c.AddFunc(schedule, func() {
		if err := runOnce(ctx, cfg, force); err != nil {
			log.Error().Err(err).Msg("scheduled ingestion failed")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Str("schedule", schedule).Msg("invalid cron expression")
	}

	color.Cyan("Ingestion scheduled: %s", schedule)
	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()
}

func runOnce(ctx context.Context, cfg *config.Config, force bool) error {
	color.Cyan("Ingesting %s", cfg.Scraper.SitemapURL)

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

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("scraping"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
	)

	webScraper, err := scraper.NewWithConfig(scraper.ScraperConfig{
		Concurrency:      cfg.Scraper.Concurrency,
		RateLimit:        cfg.Scraper.RateLimit,
		IgnorePatterns:   cfg.Scraper.IgnorePatterns,
		MinContentLength: cfg.Scraper.MinContentLength,
		OnProgress: func(url string) {
			_ = bar.Add(1)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize scraper: %w", err)
	}

	chunker := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Processor.ChunkSize,
		ChunkOverlap: cfg.Processor.ChunkOverlap,
	})

	pipeline := ingest.New(ingest.Config{
		SitemapURL: cfg.Scraper.SitemapURL,
		BatchSize:  cfg.Database.BatchSize,
		Force:      force,
	}, sitemap.New(), webScraper, &chunker, embedder, vectorStore)

	stats, err := pipeline.Run(ctx)
	_ = bar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}

	color.Green("Done in %s", stats.Duration.Round(time.Millisecond))
	fmt.Printf("  URLs:           %d\n", stats.URLs)
	fmt.Printf("  Documents:      %d\n", stats.Documents)
	fmt.Printf("  New chunks:     %d\n", stats.NewChunks)
	fmt.Printf("  Skipped chunks: %d\n", stats.SkippedChunks)
	return nil
}
