package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vico-ai/vico/internal/cache"
	"github.com/vico-ai/vico/internal/memory"
	"github.com/vico-ai/vico/internal/orchestrator"
	"github.com/vico-ai/vico/internal/prompt"
	"github.com/vico-ai/vico/internal/storage"
)

type scriptedStream struct {
	chunks []string
	i      int
}

func (s *scriptedStream) Next(ctx context.Context) (string, error) {
	if s.i >= len(s.chunks) {
		return "", io.EOF
	}
	c := s.chunks[s.i]
	s.i++
	return c, nil
}

func (s *scriptedStream) FinishReason() string { return orchestrator.FinishStop }
func (s *scriptedStream) Close()               {}

type scriptedGenerator struct {
	response string
}

func (g *scriptedGenerator) Generate(ctx context.Context, req orchestrator.GenerateRequest) (orchestrator.TokenStream, error) {
	return &scriptedStream{chunks: []string{g.response}}, nil
}
func (g *scriptedGenerator) ModelID() string            { return "test-model" }
func (g *scriptedGenerator) InjectThinkIfMissing() bool { return false }

func newTestServer(t *testing.T, response string) *Server {
	t.Helper()

	memStore, err := memory.Open(filepath.Join(t.TempDir(), "memories.db"))
	require.NoError(t, err)
	t.Cleanup(func() { memStore.Close() })

	cacheReg := cache.New(storage.New(t.TempDir()))
	gen := &scriptedGenerator{response: response}
	handler := func(context.Context, orchestrator.ToolCall) (orchestrator.ToolOutcome, error) {
		t.Fatal("handler should not be invoked in this test")
		return orchestrator.ToolOutcome{}, nil
	}
	asm := prompt.NewAssembler("vico", nil)

	return New(DefaultConfig(), memStore, cacheReg, nil, gen, nil, handler, asm)
}

func TestHandleSaveAndRecentMemories(t *testing.T) {
	s := newTestServer(t, "ok")

	body := strings.NewReader(`{"memory_text": "the cat sat on the mat"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/save_memory/", body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/recent_memories/?limit=5", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Memories []memoryJSON `json:"memories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Memories, 1)
	assert.Equal(t, "the cat sat on the mat", resp.Memories[0].Text)
}

func TestHandleSaveMemoryRequiresOneField(t *testing.T) {
	s := newTestServer(t, "ok")

	req := httptest.NewRequest(http.MethodPost, "/api/save_memory/", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEditAndDeleteMemory(t *testing.T) {
	s := newTestServer(t, "ok")

	id, err := s.memory.Save(context.Background(), "original text")
	require.NoError(t, err)

	editBody := strings.NewReader(`{"id": "` + id + `", "memory": "updated text"}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/edit_memory/", editBody)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	deleteBody := strings.NewReader(`{"memory_id": "` + id + `"}`)
	req = httptest.NewRequest(http.MethodDelete, "/api/delete_memory/", deleteBody)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	remaining, err := s.memory.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestHandleAgentChatStreamsEnvelopes(t *testing.T) {
	s := newTestServer(t, "Final answer, no tool call.")

	req := httptest.NewRequest(http.MethodGet, "/api/agent_chat/?query=hello", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"type":"assistant_token"`)
	assert.Contains(t, rec.Body.String(), `"type":"end"`)
}

func TestHandleAgentChatRequiresQuery(t *testing.T) {
	s := newTestServer(t, "ok")

	req := httptest.NewRequest(http.MethodGet, "/api/agent_chat/", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMemoriesAgentChatSeedsMemoryContext(t *testing.T) {
	s := newTestServer(t, "Final answer, no tool call.")
	_, err := s.memory.Save(context.Background(), "the user's cat is named Whiskers")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/memories_agent_chat/?query=what+is+my+cats+name", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"end"`)
}

func TestHealthzAndMetrics(t *testing.T) {
	s := newTestServer(t, "ok")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCacheKeyForPurposeContainsMemoryCacheMarker(t *testing.T) {
	key := cacheKeyForPurpose("test-model", memoryAgentPurpose)
	assert.Contains(t, key, "_memory_cache")

	plainKey := cacheKeyForPurpose("test-model", assistantPurpose)
	assert.NotContains(t, plainKey, "_memory_cache")
}
