package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/phuslu/log"
	"github.com/xhad/sage/internal/types"
	"github.com/xhad/sage/pkg/agent"
	"github.com/xhad/sage/pkg/llm"
	"github.com/xhad/sage/pkg/voice"
)

// VoiceService is the surface of the voice provider the HTTP layer
// uses. It is wider than types.VoiceProvider because the call CRUD
// endpoints need the full client.
type VoiceService interface {
	GetOrCreateAssistant(ctx context.Context) (string, error)
	CreateWebCall(ctx context.Context) (*voice.Call, error)
	CreatePhoneCall(ctx context.Context, phoneNumber string) (*voice.Call, error)
	GetCall(ctx context.Context, callID string) (map[string]interface{}, error)
	EndCall(ctx context.Context, callID string) error
	ListCalls(ctx context.Context, limit int) ([]map[string]interface{}, error)
	Available() bool
}

type Config struct {
	Port        int
	Streaming   bool
	CompanyName string
}

type Server struct {
	config Config

	agent     types.Agent
	toolkit   *agent.Toolkit
	chat      *llm.ChatEngine
	store     types.VectorStore
	searcher  types.WebSearcher
	scheduler types.Scheduler
	voice     VoiceService

	validate        *validator.Validate
	httpServer      *http.Server
	activeVapiCalls atomic.Int64
}

type Deps struct {
	Agent     types.Agent
	Toolkit   *agent.Toolkit
	Chat      *llm.ChatEngine
	Store     types.VectorStore
	Searcher  types.WebSearcher
	Scheduler types.Scheduler
	Voice     VoiceService
}

func New(config Config, deps Deps) *Server {
	if config.Port == 0 {
		config.Port = 8080
	}

	s := &Server{
		config:    config,
		agent:     deps.Agent,
		toolkit:   deps.Toolkit,
		chat:      deps.Chat,
		store:     deps.Store,
		searcher:  deps.Searcher,
		scheduler: deps.Scheduler,
		voice:     deps.Voice,
		validate:  validator.New(),
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /meetings", s.handleScheduleMeeting)

	mux.HandleFunc("POST /vapi/assistant", s.handleVapiAssistant)
	mux.HandleFunc("POST /vapi/webhook", s.handleVapiWebhook)
	mux.HandleFunc("POST /vapi/call", s.handleVapiCreateCall)
	mux.HandleFunc("GET /vapi/call/{id}", s.handleVapiGetCall)
	mux.HandleFunc("POST /vapi/call/{id}/end", s.handleVapiEndCall)
	mux.HandleFunc("GET /vapi/calls", s.handleVapiListCalls)

	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return s.withCORS(s.withLogging(mux))
}

func (s *Server) Start() error {
	log.Info().Int("port", s.config.Port).Msg("starting server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(started)).
			Msg("request")
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
