package ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/sage/internal/models"
	"github.com/xhad/sage/pkg/processor"
)

type fakeSitemap struct {
	urls []string
	err  error
}

func (f *fakeSitemap) FetchURLs(ctx context.Context, sitemapURL string) ([]string, error) {
	return f.urls, f.err
}

type fakeScraper struct {
	docs []models.Document
}

func (f *fakeScraper) ScrapeAll(ctx context.Context, urls []string) ([]models.Document, error) {
	return f.docs, nil
}

type fakeEmbedder struct {
	batchSizes []int
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.batchSizes = append(f.batchSizes, len(texts))
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type fakeStore struct {
	existing map[string]bool
	stored   []models.ProcessedDocument
}

func (f *fakeStore) Store(ctx context.Context, docs []models.ProcessedDocument) error {
	f.stored = append(f.stored, docs...)
	return nil
}

func (f *fakeStore) Exists(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, id := range ids {
		if f.existing[id] {
			out[id] = true
		}
	}
	return out, nil
}

func (f *fakeStore) Search(ctx context.Context, embedding []float32, limit int) ([]models.SearchResult, error) {
	return nil, nil
}
func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close()                         {}

func testDocs() []models.Document {
	return []models.Document{
		{
			URL:   "https://example.com/support",
			Title: "Support",
			Sections: []string{
				"Section: Payments\nQuestion: How do I pay\nAnswer: Online.",
				"Section: Payments\nQuestion: When is it due\nAnswer: Monthly.",
			},
		},
		{
			URL:     "https://example.com/about",
			Title:   "About",
			Content: "We are a financial technology company. We offer a home equity line of credit backed by a card. Rates are variable and depend on creditworthiness.",
		},
	}
}

func newTestPipeline(config Config, store *fakeStore, embedder *fakeEmbedder) *Pipeline {
	proc := processor.NewWithConfig(processor.ProcessorConfig{})
	return New(config,
		&fakeSitemap{urls: []string{"https://example.com/support", "https://example.com/about"}},
		&fakeScraper{docs: testDocs()},
		&proc,
		embedder,
		store,
	)
}

func TestPipelineRun(t *testing.T) {
	store := &fakeStore{}
	embedder := &fakeEmbedder{}
	p := newTestPipeline(Config{SitemapURL: "https://example.com/sitemap.xml"}, store, embedder)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.URLs)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, stats.Chunks, stats.NewChunks)
	assert.Zero(t, stats.SkippedChunks)
	require.NotEmpty(t, store.stored)

	for _, doc := range store.stored {
		for _, chunk := range doc.Chunks {
			assert.NotNil(t, chunk.Embedding, "chunk %s must be embedded before storage", chunk.ID)
		}
	}
}

func TestPipelineSkipsExistingChunks(t *testing.T) {
	store := &fakeStore{existing: map[string]bool{
		models.ChunkID("https://example.com/support", 0): true,
		models.ChunkID("https://example.com/support", 1): true,
	}}
	embedder := &fakeEmbedder{}
	p := newTestPipeline(Config{SitemapURL: "https://example.com/sitemap.xml"}, store, embedder)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.SkippedChunks)
	assert.Equal(t, stats.Chunks-2, stats.NewChunks)
	for _, doc := range store.stored {
		assert.NotEqual(t, "https://example.com/support", doc.Document.URL)
	}
}

func TestPipelineForceReembedsEverything(t *testing.T) {
	store := &fakeStore{existing: map[string]bool{
		models.ChunkID("https://example.com/support", 0): true,
	}}
	embedder := &fakeEmbedder{}
	p := newTestPipeline(Config{SitemapURL: "https://example.com/sitemap.xml", Force: true}, store, embedder)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.SkippedChunks)
	assert.Equal(t, stats.Chunks, stats.NewChunks)
}

func TestPipelineBatchesEmbeddings(t *testing.T) {
	store := &fakeStore{}
	embedder := &fakeEmbedder{}
	p := newTestPipeline(Config{SitemapURL: "https://example.com/sitemap.xml", BatchSize: 2}, store, embedder)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NotZero(t, stats.NewChunks)

	for _, size := range embedder.batchSizes {
		assert.LessOrEqual(t, size, 2)
	}
}

func TestPipelineSitemapFailureAborts(t *testing.T) {
	proc := processor.NewWithConfig(processor.ProcessorConfig{})
	p := New(Config{SitemapURL: "https://example.com/sitemap.xml"},
		&fakeSitemap{err: fmt.Errorf("dns failure")},
		&fakeScraper{}, &proc, &fakeEmbedder{}, &fakeStore{})

	_, err := p.Run(context.Background())
	assert.ErrorContains(t, err, "dns failure")
}
