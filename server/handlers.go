package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phuslu/log"
	"github.com/xhad/sage/internal/models"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response     string  `json:"response"`
	AssistantID  string  `json:"assistantId,omitempty"`
	SessionID    string  `json:"session_id"`
	ResponseTime float64 `json:"response_time"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "support backend",
		"endpoints": []string{
			"GET /health",
			"POST /chat",
			"POST /meetings",
			"POST /vapi/assistant",
			"POST /vapi/webhook",
		},
	})
}

// handleHealth reports liveness plus per-dependency availability. The
// endpoint itself always returns 200; degraded integrations show up as
// false flags, not errors.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	databaseAvailable := false
	if s.store != nil {
		databaseAvailable = s.store.Ping(ctx) == nil
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "healthy",
		"agent_available":    s.agent != nil,
		"database_available": databaseAvailable,
		"vapi_available":     s.voice != nil && s.voice.Available(),
		"serper_available":   s.searcher != nil && s.searcher.Available(),
		"calendar_available": s.scheduler != nil && s.scheduler.Available(),
		"active_sessions":    s.activeSessions(),
		"active_vapi_calls":  s.activeVapiCalls.Load(),
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
	})
}

// assistantID resolves the voice assistant ID for clients that can
// escalate a chat into a voice call. Best effort; chat works without
// the voice provider.
func (s *Server) assistantID(r *http.Request) string {
	if s.voice == nil || !s.voice.Available() {
		return ""
	}
	id, err := s.voice.GetOrCreateAssistant(r.Context())
	if err != nil {
		log.Debug().Err(err).Msg("assistant lookup failed")
		return ""
	}
	return id
}

func (s *Server) activeSessions() int {
	if s.agent == nil {
		return 0
	}
	return s.agent.ActiveSessions()
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if s.agent == nil {
		writeError(w, http.StatusServiceUnavailable, "chat agent is not available")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	started := time.Now()
	response, err := s.agent.Process(r.Context(), req.Message, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("chat processing failed")
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:     response,
		AssistantID:  s.assistantID(r),
		SessionID:    sessionID,
		ResponseTime: time.Since(started).Seconds(),
	})
}

func (s *Server) handleScheduleMeeting(w http.ResponseWriter, r *http.Request) {
	var req models.MeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.validate.Struct(req); err != nil {
		var fields []string
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				fields = append(fields, fe.Field())
			}
		}
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "validation failed",
			"fields": fields,
		})
		return
	}

	slot, err := time.Parse("2006-01-02 15:04", req.PreferredDate+" "+req.PreferredTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date or time format")
		return
	}
	if slot.Before(time.Now().UTC()) {
		writeError(w, http.StatusBadRequest, "cannot schedule a meeting in the past")
		return
	}

	if s.scheduler == nil || !s.scheduler.Available() {
		writeError(w, http.StatusServiceUnavailable, "scheduling is not available")
		return
	}

	confirmation, err := s.scheduler.Schedule(r.Context(), req)
	if err != nil {
		log.Error().Err(err).Str("email", req.Email).Msg("meeting scheduling failed")
		writeError(w, http.StatusInternalServerError, "failed to schedule meeting")
		return
	}

	writeJSON(w, http.StatusOK, confirmation)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
