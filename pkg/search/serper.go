package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultEndpoint = "https://google.serper.dev/search"

// Client wraps the serper.dev search API, used as a fallback when the
// knowledge base has nothing relevant. Results are formatted into a
// plain text block that slots into the model prompt uncited.
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

type Config struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

func New(config Config) *Client {
	if config.Endpoint == "" {
		config.Endpoint = defaultEndpoint
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &Client{
		apiKey:   config.APIKey,
		endpoint: config.Endpoint,
		client:   &http.Client{Timeout: config.Timeout},
	}
}

func (c *Client) Available() bool {
	return c.apiKey != ""
}

type serperResponse struct {
	AnswerBox struct {
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
	} `json:"answerBox"`
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Search runs a web query and returns the answer box plus up to five
// organic results as formatted text.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("web search is not configured")
	}

	payload, err := json.Marshal(map[string]string{"q": query})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("web search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("web search returned status %d", resp.StatusCode)
	}

	var parsed serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode search response: %w", err)
	}

	return formatResults(parsed), nil
}

func formatResults(r serperResponse) string {
	var b strings.Builder

	if r.AnswerBox.Answer != "" {
		b.WriteString("Answer: " + r.AnswerBox.Answer + "\n")
	} else if r.AnswerBox.Snippet != "" {
		b.WriteString("Answer: " + r.AnswerBox.Snippet + "\n")
	}

	limit := len(r.Organic)
	if limit > 5 {
		limit = 5
	}
	for _, result := range r.Organic[:limit] {
		fmt.Fprintf(&b, "- %s (%s): %s\n", result.Title, result.Link, result.Snippet)
	}

	if b.Len() == 0 {
		return "No web results found."
	}
	return strings.TrimSpace(b.String())
}
