package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultBaseURL = "https://api.vapi.ai"

// Client provisions hosted voice assistants and calls. All speech
// handling runs on the vendor side; this client only creates the
// configuration and reports call state.
type Client struct {
	config Config
	client *http.Client

	mu                sync.Mutex
	cachedAssistantID string
}

type Config struct {
	APIKey        string
	BaseURL       string
	AssistantName string
	WebhookURL    string
	SystemPrompt  string
	// Tool schemas advertised to the assistant; the webhook endpoint
	// executes them when the vendor calls back.
	Tools   []map[string]interface{}
	Timeout time.Duration
}

type Assistant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Call struct {
	ID          string `json:"id"`
	AssistantID string `json:"assistantId"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	WebCallURL  string `json:"webCallUrl,omitempty"`
}

func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.AssistantName == "" {
		config.AssistantName = "Support AI"
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}

	return &Client{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

func (c *Client) Available() bool {
	return c.config.APIKey != ""
}

// GetOrCreateAssistant returns the provisioned assistant ID, creating
// or updating the vendor-side configuration on first use. The ID is
// cached for the process lifetime.
func (c *Client) GetOrCreateAssistant(ctx context.Context) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("voice provider is not configured")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachedAssistantID != "" {
		return c.cachedAssistantID, nil
	}

	assistants, err := c.listAssistants(ctx)
	if err != nil {
		return "", err
	}

	assistantConfig := c.assistantConfig()

	for _, a := range assistants {
		if a.Name == c.config.AssistantName {
			// Existing assistant: push the current config so prompt and
			// tool changes take effect. Name is immutable on update.
			delete(assistantConfig, "name")
			if err := c.do(ctx, http.MethodPatch, "/assistant/"+a.ID, assistantConfig, nil); err != nil {
				return "", fmt.Errorf("failed to update assistant: %w", err)
			}
			c.cachedAssistantID = a.ID
			return a.ID, nil
		}
	}

	var created Assistant
	if err := c.do(ctx, http.MethodPost, "/assistant", assistantConfig, &created); err != nil {
		return "", fmt.Errorf("failed to create assistant: %w", err)
	}

	c.cachedAssistantID = created.ID
	return created.ID, nil
}

// CreateWebCall returns the info a browser client needs to start a
// voice session. No vendor call is made; web calls are initiated
// client-side against the assistant ID.
func (c *Client) CreateWebCall(ctx context.Context) (*Call, error) {
	assistantID, err := c.GetOrCreateAssistant(ctx)
	if err != nil {
		return nil, err
	}

	return &Call{
		ID:          "web_call_" + assistantID,
		AssistantID: assistantID,
		Type:        "web",
		Status:      "ready",
	}, nil
}

func (c *Client) CreatePhoneCall(ctx context.Context, phoneNumber string) (*Call, error) {
	assistantID, err := c.GetOrCreateAssistant(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"assistantId": assistantID,
		"customer":    map[string]string{"number": phoneNumber},
	}

	var call Call
	if err := c.do(ctx, http.MethodPost, "/call", body, &call); err != nil {
		return nil, fmt.Errorf("failed to create call: %w", err)
	}
	return &call, nil
}

func (c *Client) GetCall(ctx context.Context, callID string) (map[string]interface{}, error) {
	var status map[string]interface{}
	if err := c.do(ctx, http.MethodGet, "/call/"+callID, nil, &status); err != nil {
		return nil, fmt.Errorf("failed to get call status: %w", err)
	}
	return status, nil
}

func (c *Client) EndCall(ctx context.Context, callID string) error {
	if err := c.do(ctx, http.MethodDelete, "/call/"+callID, nil, nil); err != nil {
		return fmt.Errorf("failed to end call: %w", err)
	}
	return nil
}

func (c *Client) ListCalls(ctx context.Context, limit int) ([]map[string]interface{}, error) {
	var calls []map[string]interface{}
	path := fmt.Sprintf("/call?limit=%d", limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &calls); err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	return calls, nil
}

func (c *Client) listAssistants(ctx context.Context) ([]Assistant, error) {
	var assistants []Assistant
	if err := c.do(ctx, http.MethodGet, "/assistant", nil, &assistants); err != nil {
		return nil, fmt.Errorf("failed to list assistants: %w", err)
	}
	return assistants, nil
}

func (c *Client) assistantConfig() map[string]interface{} {
	webhookURL := c.config.WebhookURL
	// The vendor requires https for webhook delivery
	webhookURL = strings.Replace(webhookURL, "http://", "https://", 1)

	return map[string]interface{}{
		"name": c.config.AssistantName,
		"transcriber": map[string]interface{}{
			"provider": "deepgram",
			"model":    "nova-2",
			"language": "en-US",
		},
		"model": map[string]interface{}{
			"provider":    "openai",
			"model":       "gpt-4o-mini",
			"temperature": 0.1,
			"messages": []map[string]string{
				{"role": "system", "content": c.config.SystemPrompt},
			},
			"tools": c.config.Tools,
		},
		"voice": map[string]interface{}{
			"provider": "11labs",
			"voiceId":  "pNInz6obpgDQGcFmaJgB",
		},
		"firstMessage":   "Hello! I'm your support assistant. How can I help you today?",
		"endCallMessage": "Thank you for calling. Have a great day!",
		"server": map[string]interface{}{
			"url": webhookURL + "/vapi/webhook",
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("vapi %s %s returned status %d: %s", method, path, resp.StatusCode, detail)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
