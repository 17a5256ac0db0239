// Package server exposes Vico's HTTP surface: long-lived streaming chat
// endpoints plus the memory CRUD endpoints, fronting the
// orchestrator/dispatch/memory collaborators built by cmd/vico.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vico-ai/vico/internal/cache"
	"github.com/vico-ai/vico/internal/logging"
	"github.com/vico-ai/vico/internal/memory"
	"github.com/vico-ai/vico/internal/orchestrator"
	"github.com/vico-ai/vico/internal/prompt"
	"github.com/vico-ai/vico/internal/vision"
)

// Config holds HTTP-surface-level settings plus the sampler defaults
// every chat request's orchestrator generates with.
type Config struct {
	Port         int
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Sampler orchestrator.SamplerParams
}

// DefaultConfig returns sane defaults for local, single-user operation.
// The sampler values match the AGENTIC_* environment defaults; cmd/vico
// overrides them from the environment.
func DefaultConfig() Config {
	return Config{
		Port:         8080,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming responses are unbounded
		Sampler: orchestrator.SamplerParams{
			Temperature:           0.6,
			TopP:                  0.95,
			TopK:                  20,
			MinP:                  0,
			RepetitionPenalty:     1.05,
			RepetitionContextSize: 64,
			MaxTokens:             81920,
			MaxKVSize:             256000,
		},
	}
}

// Server wires the HTTP surface onto the memory store and the two
// orchestrator entry points (plain agent_chat and memory-seeded
// memories_agent_chat).
type Server struct {
	config  Config
	router  chi.Router
	httpSrv *http.Server

	memory *memory.Store
	cache  *cache.Registry
	vision vision.Captioner

	// agentic drives /api/agent_chat/ (AGENTIC_MODEL_NAME); chat drives
	// the memory-seeded /api/memories_agent_chat/ (CHAT_MODEL_NAME).
	agentic orchestrator.Generator
	chat    orchestrator.Generator

	handler orchestrator.ToolCallHandler
	prompt  *prompt.Assembler
}

// New constructs a Server. handler is the top-level ToolCallHandler
// (internal/subagent.Runner.Handle) the assistant orchestrator dispatches
// through. chatGen may be nil, in which case agenticGen serves both chat
// endpoints.
func New(
	cfg Config,
	store *memory.Store,
	cacheReg *cache.Registry,
	captioner vision.Captioner,
	agenticGen orchestrator.Generator,
	chatGen orchestrator.Generator,
	handler orchestrator.ToolCallHandler,
	asm *prompt.Assembler,
) *Server {
	if chatGen == nil {
		chatGen = agenticGen
	}
	s := &Server{
		config:  cfg,
		memory:  store,
		cache:   cacheReg,
		vision:  captioner,
		agentic: agenticGen,
		chat:    chatGen,
		handler: handler,
		prompt:  asm,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if s.config.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/recent_memories/", s.handleRecentMemories)
		r.Get("/search_memories/", s.handleSearchMemories)
		r.Get("/memories_agent_chat/", s.handleMemoriesAgentChat)
		r.Get("/agent_chat/", s.handleAgentChat)
		r.Post("/save_memory/", s.handleSaveMemory)
		r.Delete("/delete_memory/", s.handleDeleteMemory)
		r.Patch("/edit_memory/", s.handleEditMemory)
	})

	s.router = r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]any{"status": "ok"})
}

// Start runs the HTTP server until ctx is cancelled or ListenAndServe
// returns a non-shutdown error.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Int("port", s.config.Port).Msg("server: listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }
