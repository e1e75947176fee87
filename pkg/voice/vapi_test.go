package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateAssistantCreatesWhenMissing(t *testing.T) {
	var created int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/assistant":
			json.NewEncoder(w).Encode([]Assistant{})
		case r.Method == http.MethodPost && r.URL.Path == "/assistant":
			atomic.AddInt32(&created, 1)

			var config map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&config))
			assert.Equal(t, "Test Assistant", config["name"])
			server := config["server"].(map[string]interface{})
			assert.Equal(t, "https://backend.example.com/vapi/webhook", server["url"])

			json.NewEncoder(w).Encode(Assistant{ID: "asst-123", Name: "Test Assistant"})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	c := New(Config{
		APIKey:        "test-token",
		BaseURL:       server.URL,
		AssistantName: "Test Assistant",
		WebhookURL:    "http://backend.example.com",
	})

	id, err := c.GetOrCreateAssistant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "asst-123", id)

	// Second call served from cache
	id, err = c.GetOrCreateAssistant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "asst-123", id)
	assert.EqualValues(t, 1, atomic.LoadInt32(&created))
}

func TestGetOrCreateAssistantUpdatesExisting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/assistant":
			json.NewEncoder(w).Encode([]Assistant{
				{ID: "asst-old", Name: "Other"},
				{ID: "asst-match", Name: "Test Assistant"},
			})
		case r.Method == http.MethodPatch && r.URL.Path == "/assistant/asst-match":
			var config map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&config))
			_, hasName := config["name"]
			assert.False(t, hasName, "name must not be sent on update")
			json.NewEncoder(w).Encode(Assistant{ID: "asst-match"})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	c := New(Config{APIKey: "test-token", BaseURL: server.URL, AssistantName: "Test Assistant"})

	id, err := c.GetOrCreateAssistant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "asst-match", id)
}

func TestCreateWebCall(t *testing.T) {
	// Web calls never hit the API once the assistant ID is cached
	c := New(Config{APIKey: "k"})
	c.cachedAssistantID = "asst-1"

	call, err := c.CreateWebCall(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "web_call_asst-1", call.ID)
	assert.Equal(t, "asst-1", call.AssistantID)
	assert.Equal(t, "ready", call.Status)
}

func TestUnavailableWithoutKey(t *testing.T) {
	c := New(Config{})
	assert.False(t, c.Available())

	_, err := c.GetOrCreateAssistant(context.Background())
	assert.Error(t, err)
}

func TestEndCallSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"not found"}`))
	}))
	defer server.Close()

	c := New(Config{APIKey: "k", BaseURL: server.URL})
	err := c.EndCall(context.Background(), "missing")
	assert.ErrorContains(t, err, "status 404")
}
