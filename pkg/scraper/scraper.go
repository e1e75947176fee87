package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/phuslu/log"
	"github.com/xhad/sage/internal/models"
	"golang.org/x/time/rate"
)

type ScraperConfig struct {
	Concurrency      int
	RateLimit        float64 // requests per second, shared across workers
	IgnorePatterns   []string
	MinContentLength int
	Timeout          time.Duration
	UserAgent        string
	OnProgress       func(url string)
}

type Scraper struct {
	config    ScraperConfig
	client    *http.Client
	limiter   *rate.Limiter
	extractor *extractor
}

func NewWithConfig(config ScraperConfig) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Concurrency == 0 {
		config.Concurrency = 5
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if config.MinContentLength == 0 {
		config.MinContentLength = 100
	}
	if config.UserAgent == "" {
		config.UserAgent = "sage-ingest/1.0"
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter:   rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		extractor: newExtractor(config.MinContentLength),
	}, nil
}

func New() *Scraper {
	s, _ := NewWithConfig(ScraperConfig{})
	return s
}

// ScrapeAll fetches and extracts every URL using a bounded worker
// pool. A page that fails to fetch or yields too little text is logged
// and skipped; the run continues. The returned order follows
// completion, not input, since documents are independent.
func (s *Scraper) ScrapeAll(ctx context.Context, urls []string) ([]models.Document, error) {
	queue := make(chan string)
	var (
		mu        sync.Mutex
		documents []models.Document
		wg        sync.WaitGroup
	)

	for i := 0; i < s.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pageURL := range queue {
				doc, err := s.scrapeOne(ctx, pageURL)
				if err != nil {
					log.Warn().Str("url", pageURL).Err(err).Msg("skipping page")
					continue
				}
				if doc == nil {
					log.Debug().Str("url", pageURL).Msg("page below minimum content length")
					continue
				}

				mu.Lock()
				documents = append(documents, *doc)
				mu.Unlock()

				if s.config.OnProgress != nil {
					s.config.OnProgress(pageURL)
				}
			}
		}()
	}

	for _, u := range urls {
		if !s.shouldProcessURL(u) {
			continue
		}
		select {
		case queue <- u:
		case <-ctx.Done():
			close(queue)
			wg.Wait()
			return documents, ctx.Err()
		}
	}
	close(queue)
	wg.Wait()

	return documents, nil
}

func (s *Scraper) shouldProcessURL(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil || !parsedURL.IsAbs() {
		return false
	}

	for _, pattern := range s.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}

	return true
}

func (s *Scraper) scrapeOne(ctx context.Context, pageURL string) (*models.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, contentType, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	// Structured FAQ pages keep question/answer boundaries intact.
	if strings.Contains(pageURL, "/support") {
		if title, sections := parseFAQ(body); len(sections) > 0 {
			return &models.Document{
				URL:      pageURL,
				Title:    title,
				Sections: sections,
				Metadata: map[string]interface{}{
					"contentType": contentType,
					"lastCrawled": time.Now().UTC().Format(time.RFC3339),
					"structured":  true,
				},
			}, nil
		}
	}

	title, text := s.extractor.extract(pageURL, body)
	if len(strings.TrimSpace(text)) < s.config.MinContentLength {
		return nil, nil
	}

	return &models.Document{
		URL:     pageURL,
		Title:   title,
		Content: text,
		Metadata: map[string]interface{}{
			"contentType": contentType,
			"lastCrawled": time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) ([]byte, string, error) {
	var (
		body        []byte
		contentType string
	)

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", s.config.UserAgent)

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, pageURL)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}

		contentType = resp.Header.Get("Content-Type")
		body, err = io.ReadAll(resp.Body)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, "", err
	}

	return body, contentType, nil
}
