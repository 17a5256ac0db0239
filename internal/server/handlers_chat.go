package server

import (
	"net/http"
	"time"

	"github.com/vico-ai/vico/internal/cache"
	"github.com/vico-ai/vico/internal/memory"
	"github.com/vico-ai/vico/internal/metrics"
	"github.com/vico-ai/vico/internal/orchestrator"
	"github.com/vico-ai/vico/internal/orchestrator/turn"
)

// assistantPurpose is the cache-key purpose label for the plain agentic
// chat endpoint: its prompt carries no memory-store content, so it is
// never touched by InvalidateMemoryCaches.
const assistantPurpose = "assistant"

// memoryAgentPurpose is the cache-key purpose label for the
// memory-seeded chat endpoint. cache.Key(modelID, memoryAgentPurpose, "")
// must contain cache.MemoryKey's "_memory_cache" substring so a memory
// mutation invalidates this endpoint's cached prompt state, since its
// prompt directly embeds the full memory store.
const memoryAgentPurpose = "memory_cache"

// handleAgentChat runs the plain agentic orchestrator over the user's
// query: the assistant must use search_memories/perform_research tool
// calls to ground its answer.
func (s *Server) handleAgentChat(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "query is required")
		return
	}

	seed := []turn.Turn{turn.New(turn.RoleUser, query)}
	s.runChat(w, r, "agent_chat", assistantPurpose, s.agentic, seed)
}

// handleMemoriesAgentChat pre-seeds the orchestrator's user turn with
// every stored memory rendered as XML: the model answers directly from
// the full memory context rather than needing a search_memories call for
// common recall questions.
func (s *Server) handleMemoriesAgentChat(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "query is required")
		return
	}

	records, err := s.memory.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	userText := query
	if xml := memory.RenderXML(records); xml != "" {
		userText = "<memories>\n" + xml + "\n</memories>\n\n" + query
	}

	seed := []turn.Turn{turn.New(turn.RoleUser, userText)}
	s.runChat(w, r, "memories_agent_chat", memoryAgentPurpose, s.chat, seed)
}

func (s *Server) runChat(w http.ResponseWriter, r *http.Request, endpoint, purpose string, gen orchestrator.Generator, seed []turn.Turn) {
	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	worker := orchestrator.New(gen, s.handler, s.cache, s.prompt, orchestrator.AssistantEvents, purpose, 0)
	worker.Sampler = s.config.Sampler

	start := time.Now()
	_, err = worker.Run(r.Context(), orchestrator.Streaming, seed, sse.emit)
	metrics.GenerationLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		logStreamAbort(endpoint, err)
	}
}

// cacheKeyForPurpose is exposed for tests asserting the memory-cache
// substring contract without reaching into internal/cache directly.
func cacheKeyForPurpose(modelID, purpose string) string {
	return cache.Key(modelID, purpose, "")
}
