package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Document is a single scraped page before chunking. Sections holds
// pre-segmented content (structured FAQ entries) that bypasses the
// chunker; when empty, Content is split into windows instead.
type Document struct {
	ID       string
	URL      string
	Title    string
	Content  string
	Sections []string
	Metadata map[string]interface{}
}

// Chunk is an ordered span of a document's extracted text. Chunk IDs
// are derived from the source URL and chunk index so re-ingesting the
// same page upserts in place instead of growing the index.
type Chunk struct {
	ID        string
	Index     int
	Text      string
	Embedding []float32
}

type ProcessedDocument struct {
	Document
	Chunks []Chunk
}

// SearchResult is a chunk returned from similarity search together
// with its cosine similarity to the query.
type SearchResult struct {
	ID    string
	URL   string
	Title string
	Text  string
	Score float32
}

// ChunkID returns the stable identifier for the chunk at the given
// offset of a source URL.
func ChunkID(url string, index int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", url, index)))
	return hex.EncodeToString(sum[:])
}
