package processor_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/sage/internal/models"
	"github.com/xhad/sage/pkg/processor"
)

func TestProcess(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:      80,
		ChunkOverlap:   10,
		MinChunkLength: 20,
	})

	documents := []models.Document{
		{
			URL: "https://example.com/a",
			Content: "This is a test document. It contains several sentences to demonstrate " +
				"text processing. Each sentence adds a little more content. " +
				"Eventually the text is long enough to need more than one chunk.",
		},
	}

	processed, err := p.Process(documents)
	require.NoError(t, err)
	require.Len(t, processed, 1)
	require.Greater(t, len(processed[0].Chunks), 1)

	for i, chunk := range processed[0].Chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, models.ChunkID("https://example.com/a", i), chunk.ID)
		assert.NotEmpty(t, chunk.Text)
	}
}

func TestProcessStableIDs(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{})

	doc := models.Document{
		URL:     "https://example.com/page",
		Content: strings.Repeat("A reasonably long sentence about the product. ", 40),
	}

	first, err := p.Process([]models.Document{doc})
	require.NoError(t, err)
	second, err := p.Process([]models.Document{doc})
	require.NoError(t, err)

	require.Equal(t, len(first[0].Chunks), len(second[0].Chunks))
	for i := range first[0].Chunks {
		assert.Equal(t, first[0].Chunks[i].ID, second[0].Chunks[i].ID)
	}
}

func TestProcessSectionsBypassChunker(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 50})

	doc := models.Document{
		URL:   "https://example.com/support",
		Title: "Support",
		Sections: []string{
			"Section: Payments\nQuestion: How do I pay?\nAnswer: Online, through the app, or by bank transfer from your linked account.",
			"Section: Payments\nQuestion: When is payment due?\nAnswer: On the first of each month.",
		},
	}

	processed, err := p.Process([]models.Document{doc})
	require.NoError(t, err)
	require.Len(t, processed, 1)
	require.Len(t, processed[0].Chunks, 2)

	// Sections are not split even when larger than ChunkSize
	assert.Contains(t, processed[0].Chunks[0].Text, "bank transfer")
	assert.Equal(t, 0, processed[0].Chunks[0].Index)
	assert.Equal(t, 1, processed[0].Chunks[1].Index)
}

func TestProcessDropsEmptyDocuments(t *testing.T) {
	p := processor.NewWithConfig(processor.ProcessorConfig{})

	processed, err := p.Process([]models.Document{
		{URL: "https://example.com/empty", Content: "too short"},
	})
	require.NoError(t, err)
	assert.Empty(t, processed)
}
