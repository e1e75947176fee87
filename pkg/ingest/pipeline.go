package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/phuslu/log"
	"github.com/xhad/sage/internal/models"
	"github.com/xhad/sage/internal/types"
)

// SitemapFetcher lists the URLs to crawl.
type SitemapFetcher interface {
	FetchURLs(ctx context.Context, sitemapURL string) ([]string, error)
}

type Config struct {
	SitemapURL string
	BatchSize  int
	// Force re-embeds chunks that already exist in the store. The
	// default run skips them, which makes re-ingestion cheap when the
	// site has not changed.
	Force bool
}

type Stats struct {
	URLs          int
	Documents     int
	Chunks        int
	NewChunks     int
	SkippedChunks int
	Duration      time.Duration
}

// Pipeline runs one full ingestion pass: sitemap, scrape, chunk,
// embed, store.
type Pipeline struct {
	config    Config
	sitemap   SitemapFetcher
	scraper   types.Scraper
	processor types.Processor
	embedder  types.Embedder
	store     types.VectorStore
}

func New(config Config, sitemap SitemapFetcher, scraper types.Scraper, processor types.Processor, embedder types.Embedder, store types.VectorStore) *Pipeline {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	return &Pipeline{
		config:    config,
		sitemap:   sitemap,
		scraper:   scraper,
		processor: processor,
		embedder:  embedder,
		store:     store,
	}
}

func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	started := time.Now()
	stats := Stats{}

	urls, err := p.sitemap.FetchURLs(ctx, p.config.SitemapURL)
	if err != nil {
		return stats, err
	}
	stats.URLs = len(urls)
	log.Info().Int("urls", len(urls)).Str("sitemap", p.config.SitemapURL).Msg("sitemap fetched")

	docs, err := p.scraper.ScrapeAll(ctx, urls)
	if err != nil {
		return stats, fmt.Errorf("scraping failed: %w", err)
	}
	stats.Documents = len(docs)

	processed, err := p.processor.Process(docs)
	if err != nil {
		return stats, fmt.Errorf("chunking failed: %w", err)
	}
	for _, doc := range processed {
		stats.Chunks += len(doc.Chunks)
	}

	fresh, skipped, err := p.filterExisting(ctx, processed)
	if err != nil {
		return stats, err
	}
	stats.SkippedChunks = skipped

	if err := p.embedAll(ctx, fresh); err != nil {
		return stats, err
	}

	if len(fresh) > 0 {
		if err := p.store.Store(ctx, fresh); err != nil {
			return stats, fmt.Errorf("storing chunks failed: %w", err)
		}
	}
	for _, doc := range fresh {
		stats.NewChunks += len(doc.Chunks)
	}

	stats.Duration = time.Since(started)
	log.Info().
		Int("urls", stats.URLs).
		Int("documents", stats.Documents).
		Int("new_chunks", stats.NewChunks).
		Int("skipped_chunks", stats.SkippedChunks).
		Dur("duration", stats.Duration).
		Msg("ingestion complete")

	return stats, nil
}

// filterExisting drops chunks whose IDs are already stored, unless a
// forced run is requested. Chunk IDs are stable per URL and offset, so
// existing rows mean the page was ingested before.
func (p *Pipeline) filterExisting(ctx context.Context, processed []models.ProcessedDocument) ([]models.ProcessedDocument, int, error) {
	if p.config.Force {
		return processed, 0, nil
	}

	var ids []string
	for _, doc := range processed {
		for _, chunk := range doc.Chunks {
			ids = append(ids, chunk.ID)
		}
	}
	if len(ids) == 0 {
		return nil, 0, nil
	}

	existing, err := p.store.Exists(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("duplicate check failed: %w", err)
	}

	var (
		fresh   []models.ProcessedDocument
		skipped int
	)
	for _, doc := range processed {
		kept := doc.Chunks[:0:0]
		for _, chunk := range doc.Chunks {
			if existing[chunk.ID] {
				skipped++
				continue
			}
			kept = append(kept, chunk)
		}
		if len(kept) > 0 {
			doc.Chunks = kept
			fresh = append(fresh, doc)
		}
	}
	return fresh, skipped, nil
}

// embedAll fills in chunk embeddings, batching texts across documents
// to keep API calls large.
func (p *Pipeline) embedAll(ctx context.Context, processed []models.ProcessedDocument) error {
	type slot struct {
		doc, chunk int
	}

	var (
		texts []string
		slots []slot
	)
	for d := range processed {
		for c := range processed[d].Chunks {
			texts = append(texts, processed[d].Chunks[c].Text)
			slots = append(slots, slot{doc: d, chunk: c})
		}
	}

	for start := 0; start < len(texts); start += p.config.BatchSize {
		end := start + p.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		embeddings, err := p.embedder.EmbedDocuments(ctx, texts[start:end])
		if err != nil {
			return fmt.Errorf("embedding batch failed: %w", err)
		}
		if len(embeddings) != end-start {
			return fmt.Errorf("embedding count mismatch: got %d, want %d", len(embeddings), end-start)
		}

		for i, embedding := range embeddings {
			s := slots[start+i]
			processed[s.doc].Chunks[s.chunk].Embedding = embedding
		}
	}

	return nil
}
