package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "current heloc rates", body["q"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"answerBox": map[string]string{"answer": "Rates start at 7.99%"},
			"organic": []map[string]string{
				{"title": "Rate overview", "link": "https://example.com/rates", "snippet": "Current rates explained."},
				{"title": "Second", "link": "https://example.com/2", "snippet": "More detail."},
			},
		})
	}))
	defer server.Close()

	c := New(Config{APIKey: "test-key", Endpoint: server.URL})
	result, err := c.Search(context.Background(), "current heloc rates")
	require.NoError(t, err)

	assert.Contains(t, result, "Answer: Rates start at 7.99%")
	assert.Contains(t, result, "Rate overview (https://example.com/rates)")
	assert.Contains(t, result, "More detail.")
}

func TestSearchLimitsOrganicResults(t *testing.T) {
	organic := make([]map[string]string, 8)
	for i := range organic {
		organic[i] = map[string]string{"title": "t", "link": "l", "snippet": "s"}
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"organic": organic})
	}))
	defer server.Close()

	c := New(Config{APIKey: "test-key", Endpoint: server.URL})
	result, err := c.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, 5, countLines(result))
}

func TestSearchWithoutKey(t *testing.T) {
	c := New(Config{})
	assert.False(t, c.Available())

	_, err := c.Search(context.Background(), "query")
	assert.Error(t, err)
}

func TestSearchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := New(Config{APIKey: "bad-key", Endpoint: server.URL})
	_, err := c.Search(context.Background(), "query")
	assert.ErrorContains(t, err, "status 403")
}

func TestFormatResultsEmpty(t *testing.T) {
	assert.Equal(t, "No web results found.", formatResults(serperResponse{}))
}

func countLines(s string) int {
	n := 1
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}
