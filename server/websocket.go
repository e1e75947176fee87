package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/phuslu/log"
	"github.com/xhad/sage/pkg/agent"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// handleWebSocket serves a persistent chat connection. Each connection
// gets its own session, so history carries across messages without the
// client resending it.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("websocket closed")
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.sendMessage(conn, "error", "invalid message format")
			continue
		}
		if strings.TrimSpace(msg.Content) == "" {
			s.sendMessage(conn, "error", "empty message")
			continue
		}

		s.handleWSMessage(r, conn, sessionID, msg)
	}
}

func (s *Server) handleWSMessage(r *http.Request, conn *websocket.Conn, sessionID string, msg Message) {
	// Streaming mode trades the tool loop for lower latency. The
	// default path goes through the agent so tools work.
	if s.config.Streaming && s.chat != nil {
		stream, err := s.chat.ChatStream(r.Context(), agent.SystemPrompt(s.config.CompanyName), msg.Content)
		if err != nil {
			s.sendMessage(conn, "error", err.Error())
			return
		}
		for chunk := range stream {
			if strings.HasPrefix(chunk, "Error:") {
				s.sendMessage(conn, "error", chunk)
				return
			}
			s.sendMessage(conn, "stream", chunk)
		}
		s.sendMessage(conn, "done", "")
		return
	}

	if s.agent == nil {
		s.sendMessage(conn, "error", "chat agent is not available")
		return
	}

	response, err := s.agent.Process(r.Context(), msg.Content, sessionID)
	if err != nil {
		s.sendMessage(conn, "error", "failed to process message")
		return
	}
	s.sendMessage(conn, "response", response)
}

func (s *Server) sendMessage(conn *websocket.Conn, msgType, content string) {
	if err := conn.WriteJSON(Message{Type: msgType, Content: content}); err != nil {
		log.Warn().Err(err).Msg("failed to send websocket message")
	}
}
