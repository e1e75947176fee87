package agent

import (
	"context"
	"sync"
	"time"

	"github.com/phuslu/log"
	"github.com/tmc/langchaingo/llms"
)

// maxToolIterations bounds one Process call. A model stuck calling
// tools forever gets cut off with a fallback reply instead.
const maxToolIterations = 5

const (
	sessionTTL       = 30 * time.Minute
	maxHistoryLength = 20
)

// generator is the slice of the chat engine the agent needs.
type generator interface {
	Generate(ctx context.Context, messages []llms.MessageContent, extra ...llms.CallOption) (*llms.ContentResponse, error)
}

type session struct {
	history    []llms.MessageContent
	lastActive time.Time
}

// Agent runs the tool-calling conversation loop and keeps per-session
// history in memory. History survives across requests for the session
// TTL, not across restarts.
type Agent struct {
	engine      generator
	toolkit     *Toolkit
	companyName string

	mu       sync.Mutex
	sessions map[string]*session
}

func New(engine generator, toolkit *Toolkit, companyName string) *Agent {
	return &Agent{
		engine:      engine,
		toolkit:     toolkit,
		companyName: companyName,
		sessions:    make(map[string]*session),
	}
}

// Process answers one user message. Failures never propagate to the
// caller as errors; the user gets a fallback reply and the cause is
// logged.
func (a *Agent) Process(ctx context.Context, message, sessionID string) (string, error) {
	history := a.loadHistory(sessionID)

	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, SystemPrompt(a.companyName)))
	messages = append(messages, history...)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, message))

	reply := a.runLoop(ctx, messages)

	a.storeHistory(sessionID, append(history,
		llms.TextParts(llms.ChatMessageTypeHuman, message),
		llms.TextParts(llms.ChatMessageTypeAI, reply),
	))

	return reply, nil
}

func (a *Agent) runLoop(ctx context.Context, messages []llms.MessageContent) string {
	for i := 0; i < maxToolIterations; i++ {
		response, err := a.engine.Generate(ctx, messages, llms.WithTools(Tools()))
		if err != nil {
			log.Error().Err(err).Msg("chat generation failed")
			return fallbackUnavailable
		}
		if len(response.Choices) == 0 {
			log.Error().Msg("chat model returned no choices")
			return fallbackTechnical
		}

		choice := response.Choices[0]
		if len(choice.ToolCalls) == 0 {
			if choice.Content == "" {
				return fallbackProcessing
			}
			return choice.Content
		}

		// Echo the assistant's tool calls back into the transcript, then
		// append one tool response per call.
		assistantParts := make([]llms.ContentPart, 0, len(choice.ToolCalls))
		for _, call := range choice.ToolCalls {
			assistantParts = append(assistantParts, call)
		}
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeAI,
			Parts: assistantParts,
		})

		for _, call := range choice.ToolCalls {
			result := a.toolkit.HandleToolCall(ctx, call.FunctionCall.Name, call.FunctionCall.Arguments)
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: call.ID,
						Name:       call.FunctionCall.Name,
						Content:    result,
					},
				},
			})
		}
	}

	log.Warn().Int("iterations", maxToolIterations).Msg("tool loop budget exhausted")
	return fallbackProcessing
}

// ActiveSessions reports sessions touched within the TTL.
func (a *Agent) ActiveSessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pruneLocked()
	return len(a.sessions)
}

func (a *Agent) loadHistory(sessionID string) []llms.MessageContent {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pruneLocked()

	s, ok := a.sessions[sessionID]
	if !ok {
		return nil
	}
	history := make([]llms.MessageContent, len(s.history))
	copy(history, s.history)
	return history
}

func (a *Agent) storeHistory(sessionID string, history []llms.MessageContent) {
	if len(history) > maxHistoryLength {
		history = history[len(history)-maxHistoryLength:]
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions[sessionID] = &session{
		history:    history,
		lastActive: time.Now(),
	}
}

func (a *Agent) pruneLocked() {
	cutoff := time.Now().Add(-sessionTTL)
	for id, s := range a.sessions {
		if s.lastActive.Before(cutoff) {
			delete(a.sessions, id)
		}
	}
}
