package types

import (
	"context"

	"github.com/xhad/sage/internal/models"
)

// Core interfaces. The server and agent depend on these rather than
// concrete implementations so tests can swap in fakes.

type VectorStore interface {
	Store(ctx context.Context, docs []models.ProcessedDocument) error
	Exists(ctx context.Context, ids []string) (map[string]bool, error)
	Search(ctx context.Context, embedding []float32, limit int) ([]models.SearchResult, error)
	Ping(ctx context.Context) error
	Close()
}

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Processor interface {
	Process(docs []models.Document) ([]models.ProcessedDocument, error)
}

type Scraper interface {
	ScrapeAll(ctx context.Context, urls []string) ([]models.Document, error)
}

// WebSearcher is the fallback when retrieval turns up nothing useful.
type WebSearcher interface {
	Search(ctx context.Context, query string) (string, error)
	Available() bool
}

type Scheduler interface {
	CheckAvailability(ctx context.Context, date, clock string) (bool, error)
	Schedule(ctx context.Context, req models.MeetingRequest) (models.MeetingConfirmation, error)
	Available() bool
}

type VoiceProvider interface {
	GetOrCreateAssistant(ctx context.Context) (string, error)
	Available() bool
}

// Agent answers a user message for a session, calling tools as needed.
type Agent interface {
	Process(ctx context.Context, message, sessionID string) (string, error)
	ActiveSessions() int
}
