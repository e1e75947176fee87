package server

import (
	"encoding/json"
	"net/http"

	"github.com/phuslu/log"
)

// Webhook payload shapes follow the voice vendor's server-message
// format. Tool call arguments arrive either as a JSON object or as a
// JSON-encoded string, so they stay raw until dispatch.
type vapiWebhookRequest struct {
	Message struct {
		Type         string `json:"type"`
		ToolCallList []struct {
			ID       string `json:"id"`
			Function struct {
				Name      string          `json:"name"`
				Arguments json.RawMessage `json:"arguments"`
			} `json:"function"`
		} `json:"toolCallList"`
	} `json:"message"`
}

type vapiToolResult struct {
	ToolCallID string `json:"toolCallId"`
	Result     string `json:"result"`
}

func (s *Server) handleVapiAssistant(w http.ResponseWriter, r *http.Request) {
	if s.voice == nil || !s.voice.Available() {
		writeError(w, http.StatusServiceUnavailable, "voice provider is not configured")
		return
	}

	assistantID, err := s.voice.GetOrCreateAssistant(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("assistant provisioning failed")
		writeError(w, http.StatusBadGateway, "failed to provision assistant")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"assistantId": assistantID})
}

// handleVapiWebhook executes tool calls on the vendor's behalf. The
// vendor retries non-200 responses and reads errors to the caller, so
// failures are reported inside a 200 body instead.
func (s *Server) handleVapiWebhook(w http.ResponseWriter, r *http.Request) {
	var req vapiWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("unparseable webhook payload")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if req.Message.Type != "tool-calls" || s.toolkit == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	results := make([]vapiToolResult, 0, len(req.Message.ToolCallList))
	for _, call := range req.Message.ToolCallList {
		results = append(results, vapiToolResult{
			ToolCallID: call.ID,
			Result:     s.toolkit.HandleToolCall(r.Context(), call.Function.Name, normalizeArguments(call.Function.Arguments)),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// normalizeArguments unwraps string-encoded argument payloads to the
// object form the toolkit parses.
func normalizeArguments(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	if raw[0] == '"' {
		var unquoted string
		if err := json.Unmarshal(raw, &unquoted); err == nil {
			return unquoted
		}
	}
	return string(raw)
}

func (s *Server) handleVapiCreateCall(w http.ResponseWriter, r *http.Request) {
	if s.voice == nil || !s.voice.Available() {
		writeError(w, http.StatusServiceUnavailable, "voice provider is not configured")
		return
	}

	var req struct {
		PhoneNumber string `json:"phone_number"`
	}
	if r.Body != nil {
		// An empty body means a web call
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if req.PhoneNumber != "" {
		call, err := s.voice.CreatePhoneCall(r.Context(), req.PhoneNumber)
		if err != nil {
			log.Error().Err(err).Msg("phone call creation failed")
			writeError(w, http.StatusBadGateway, "failed to create call")
			return
		}
		s.activeVapiCalls.Add(1)
		writeJSON(w, http.StatusOK, call)
		return
	}

	call, err := s.voice.CreateWebCall(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("web call creation failed")
		writeError(w, http.StatusBadGateway, "failed to create call")
		return
	}
	writeJSON(w, http.StatusOK, call)
}

func (s *Server) handleVapiGetCall(w http.ResponseWriter, r *http.Request) {
	if s.voice == nil || !s.voice.Available() {
		writeError(w, http.StatusServiceUnavailable, "voice provider is not configured")
		return
	}

	status, err := s.voice.GetCall(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to get call status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleVapiEndCall(w http.ResponseWriter, r *http.Request) {
	if s.voice == nil || !s.voice.Available() {
		writeError(w, http.StatusServiceUnavailable, "voice provider is not configured")
		return
	}

	if err := s.voice.EndCall(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, http.StatusBadGateway, "failed to end call")
		return
	}
	if s.activeVapiCalls.Load() > 0 {
		s.activeVapiCalls.Add(-1)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended", "call_id": r.PathValue("id")})
}

func (s *Server) handleVapiListCalls(w http.ResponseWriter, r *http.Request) {
	if s.voice == nil || !s.voice.Available() {
		writeError(w, http.StatusServiceUnavailable, "voice provider is not configured")
		return
	}

	limit := queryInt(r, "limit", 20)
	calls, err := s.voice.ListCalls(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to list calls")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"calls": calls,
		"count": len(calls),
	})
}
