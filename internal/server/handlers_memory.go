package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/vico-ai/vico/internal/event"
	"github.com/vico-ai/vico/internal/logging"
	"github.com/vico-ai/vico/internal/memory"
)

// memoryJSON is the wire shape for one memory returned by the
// recent/search endpoints.
type memoryJSON struct {
	ID        string `json:"id"`
	Text      string `json:"memory"`
	HasImage  bool   `json:"hasImage"`
	CreatedAt string `json:"createdAt"`
}

func (s *Server) handleRecentMemories(w http.ResponseWriter, r *http.Request) {
	limit := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := s.memory.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeSuccess(w, map[string]any{"memories": toMemoryJSON(records)})
}

func (s *Server) handleSearchMemories(w http.ResponseWriter, r *http.Request) {
	terms := r.URL.Query()["search"]
	if len(terms) == 0 {
		if v := r.URL.Query().Get("search"); v != "" {
			terms = []string{v}
		}
	}

	records, err := s.memory.Search(r.Context(), terms)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeSuccess(w, map[string]any{"memories": toMemoryJSON(records)})
}

// saveMemoryRequest is the POST /api/save_memory/ body: at least one of
// MemoryText or MemoryImageBase64 is required. A request carrying both is
// not rejected: the text becomes the image's captioning context and is
// prefixed to the saved description.
type saveMemoryRequest struct {
	MemoryText        string `json:"memory_text"`
	MemoryImageBase64 string `json:"memory_image_base64"`
}

func (s *Server) handleSaveMemory(w http.ResponseWriter, r *http.Request) {
	var req saveMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "malformed request body")
		return
	}
	if req.MemoryText == "" && req.MemoryImageBase64 == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "one of memory_text or memory_image_base64 is required")
		return
	}

	if req.MemoryImageBase64 == "" {
		id, err := s.memory.Save(r.Context(), req.MemoryText)
		if err != nil {
			writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
			return
		}
		s.invalidateMemoryCaches(r.Context())
		event.Publish(event.Event{Type: event.MemorySaved, Data: event.MemorySavedData{MemoryID: id}})
		writeSuccess(w, map[string]any{"success": true})
		return
	}

	// Image memories are captioned in the background; the endpoint
	// returns immediately.
	raw := stripDataURLPrefix(req.MemoryImageBase64)
	image, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid base64 image data")
		return
	}

	go s.saveImageMemoryAsync(image, req.MemoryText)
	writeSuccess(w, map[string]any{"success": true})
}

func (s *Server) saveImageMemoryAsync(image []byte, memoryContext string) {
	ctx := context.Background()

	description, err := s.vision.Describe(ctx, image, memoryContext)
	if err != nil {
		logging.Error().Err(err).Msg("server: image captioning failed")
		return
	}

	text := description
	if memoryContext != "" {
		text = memoryContext + "\n\n" + description
	}

	id, err := s.memory.SaveWithImage(ctx, text, image)
	if err != nil {
		logging.Error().Err(err).Msg("server: save image memory failed")
		return
	}
	s.invalidateMemoryCaches(ctx)
	event.Publish(event.Event{Type: event.MemorySaved, Data: event.MemorySavedData{MemoryID: id, HasImage: true}})
}

// deleteMemoryRequest is the DELETE /api/delete_memory/ body.
type deleteMemoryRequest struct {
	MemoryID string `json:"memory_id"`
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	var req deleteMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "malformed request body")
		return
	}
	if req.MemoryID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "memory_id is required")
		return
	}

	if err := s.memory.Delete(r.Context(), req.MemoryID); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	s.invalidateMemoryCaches(r.Context())
	event.Publish(event.Event{Type: event.MemoryDeleted, Data: event.MemoryDeletedData{MemoryID: req.MemoryID}})
	writeSuccess(w, map[string]any{"success": true})
}

// editMemoryRequest is the PATCH /api/edit_memory/ body.
type editMemoryRequest struct {
	ID     string `json:"id"`
	Memory string `json:"memory"`
}

func (s *Server) handleEditMemory(w http.ResponseWriter, r *http.Request) {
	var req editMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "malformed request body")
		return
	}
	if req.ID == "" || req.Memory == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "id and memory are required")
		return
	}

	if err := s.memory.Edit(r.Context(), req.ID, req.Memory); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	s.invalidateMemoryCaches(r.Context())
	event.Publish(event.Event{Type: event.MemoryEdited, Data: event.MemoryEditedData{MemoryID: req.ID}})
	writeSuccess(w, map[string]any{"success": true})
}

func (s *Server) invalidateMemoryCaches(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateMemoryCaches(ctx); err != nil {
		logging.Warn().Err(err).Msg("server: invalidate memory caches failed")
		return
	}
	event.Publish(event.Event{Type: event.CacheInvalidated})
}

// stripDataURLPrefix removes a leading "data:...,base64," style prefix
// from a posted image payload.
func stripDataURLPrefix(s string) string {
	if idx := strings.Index(s, ","); idx != -1 && strings.HasPrefix(s, "data:") {
		return s[idx+1:]
	}
	return s
}

func toMemoryJSON(records []memory.Record) []memoryJSON {
	out := make([]memoryJSON, 0, len(records))
	for _, r := range records {
		out = append(out, memoryJSON{
			ID:        r.ID,
			Text:      r.Text,
			HasImage:  r.HasImage,
			CreatedAt: r.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return out
}
