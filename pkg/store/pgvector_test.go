package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/sage/internal/models"
)

func TestSanitizeUTF8(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"clean string", "hello world", "hello world"},
		{"invalid byte dropped", "hel\xfflo", "hello"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeUTF8(tt.in))
		})
	}
}

// Integration test; needs a postgres with the pgvector extension.
func TestVectorStoreRoundTrip(t *testing.T) {
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	vs, err := NewWithConfig(ctx, VectorStoreConfig{
		ConnString: connString,
		TableName:  "test_chunks",
		VectorDim:  3,
	})
	require.NoError(t, err)
	defer vs.Close()

	doc := models.ProcessedDocument{
		Document: models.Document{
			URL:      "https://example.com/1",
			Title:    "Test Document",
			Metadata: map[string]interface{}{"source": "test"},
		},
		Chunks: []models.Chunk{
			{ID: models.ChunkID("https://example.com/1", 0), Index: 0, Text: "first chunk", Embedding: []float32{1, 0, 0}},
			{ID: models.ChunkID("https://example.com/1", 1), Index: 1, Text: "second chunk", Embedding: []float32{0, 1, 0}},
		},
	}

	require.NoError(t, vs.Store(ctx, []models.ProcessedDocument{doc}))

	// Storing again must not grow the table
	require.NoError(t, vs.Store(ctx, []models.ProcessedDocument{doc}))

	exists, err := vs.Exists(ctx, []string{doc.Chunks[0].ID, "missing-id"})
	require.NoError(t, err)
	assert.True(t, exists[doc.Chunks[0].ID])
	assert.False(t, exists["missing-id"])

	results, err := vs.Search(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "first chunk", results[0].Text)
	assert.InDelta(t, 1.0, float64(results[0].Score), 0.01)
}
