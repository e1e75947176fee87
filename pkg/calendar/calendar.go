package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/phuslu/log"
	"github.com/xhad/sage/internal/models"
	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://www.googleapis.com/calendar/v3"

const meetingDuration = time.Hour

// Client schedules support calls on a Google calendar. Auth uses a
// token file written once by the interactive setup command; refreshed
// tokens are written back so the file stays current.
type Client struct {
	config     Config
	httpClient *http.Client
}

type Config struct {
	CredentialsPath string
	TokenPath       string
	CalendarID      string
	BaseURL         string
	Timeout         time.Duration
}

// New builds a calendar client. A missing or unreadable token file
// yields an unavailable client rather than an error so the rest of the
// service starts without the integration.
func New(config Config) *Client {
	if config.CalendarID == "" {
		config.CalendarID = "primary"
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}

	c := &Client{config: config}

	oauthConfig, err := LoadOAuthConfig(config.CredentialsPath)
	if err != nil {
		log.Warn().Err(err).Msg("calendar credentials unavailable, scheduling disabled")
		return c
	}

	token, err := LoadToken(config.TokenPath)
	if err != nil {
		log.Warn().Err(err).Str("path", config.TokenPath).
			Msg("calendar token unavailable, run the calendar-setup command")
		return c
	}

	src := oauthConfig.TokenSource(context.Background(), token)
	persisting := newPersistingTokenSource(config.TokenPath, src, token)

	c.httpClient = &http.Client{
		Transport: &oauth2.Transport{Source: persisting},
		Timeout:   config.Timeout,
	}
	return c
}

func (c *Client) Available() bool {
	return c.httpClient != nil
}

// CheckAvailability reports whether the one-hour slot starting at the
// given date and clock time (UTC) is free of events.
func (c *Client) CheckAvailability(ctx context.Context, date, clock string) (bool, error) {
	if !c.Available() {
		return false, fmt.Errorf("calendar service not available")
	}

	start, err := parseSlot(date, clock)
	if err != nil {
		return false, err
	}
	end := start.Add(meetingDuration)

	params := url.Values{}
	params.Set("timeMin", start.Format(time.RFC3339))
	params.Set("timeMax", end.Format(time.RFC3339))
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")

	endpoint := fmt.Sprintf("%s/calendars/%s/events?%s",
		c.config.BaseURL, url.PathEscape(c.config.CalendarID), params.Encode())

	var listing struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &listing); err != nil {
		return false, fmt.Errorf("failed to check availability: %w", err)
	}

	return len(listing.Items) == 0, nil
}

// Schedule creates a one-hour event with the requester as attendee and
// invites sent. Transient API failures are retried up to 3 times.
func (c *Client) Schedule(ctx context.Context, req models.MeetingRequest) (models.MeetingConfirmation, error) {
	if !c.Available() {
		return models.MeetingConfirmation{}, fmt.Errorf("calendar service not available")
	}

	start, err := parseSlot(req.PreferredDate, req.PreferredTime)
	if err != nil {
		return models.MeetingConfirmation{}, err
	}
	end := start.Add(meetingDuration)

	summary := "Customer Support Call"
	if req.Topic != "" {
		summary = fmt.Sprintf("Customer Support Call: %s", req.Topic)
	}

	event := map[string]interface{}{
		"summary":     summary,
		"description": req.Notes,
		"start":       map[string]string{"dateTime": start.Format(time.RFC3339), "timeZone": "UTC"},
		"end":         map[string]string{"dateTime": end.Format(time.RFC3339), "timeZone": "UTC"},
		"attendees":   []map[string]string{{"email": req.Email}},
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events?sendUpdates=all",
		c.config.BaseURL, url.PathEscape(c.config.CalendarID))

	var created struct {
		ID string `json:"id"`
	}

	operation := func() error {
		return c.do(ctx, http.MethodPost, endpoint, event, &created)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(2*time.Second), 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return models.MeetingConfirmation{}, fmt.Errorf("failed to schedule meeting: %w", err)
	}

	return models.MeetingConfirmation{
		Scheduled: true,
		EventID:   created.ID,
		Message: fmt.Sprintf("Meeting scheduled for %s at %s UTC. An invite was sent to %s.",
			req.PreferredDate, req.PreferredTime, req.Email),
	}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return backoff.Permanent(err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return backoff.Permanent(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("calendar API returned status %d: %s", resp.StatusCode, detail)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return err
		}
		return backoff.Permanent(err)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func parseSlot(date, clock string) (time.Time, error) {
	start, err := time.Parse("2006-01-02 15:04", date+" "+clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date or time: %w", err)
	}
	return start.UTC(), nil
}
