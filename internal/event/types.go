package event

// MemorySavedData is the data for memory.saved events, published after
// the /api/save_memory/ HTTP handler persists a new memory.
// internal/dispatch's save_memory tool does not publish it.
type MemorySavedData struct {
	MemoryID string `json:"memoryID"`
	HasImage bool   `json:"hasImage"`
}

// MemoryEditedData is the data for memory.edited events.
type MemoryEditedData struct {
	MemoryID string `json:"memoryID"`
}

// MemoryDeletedData is the data for memory.deleted events.
type MemoryDeletedData struct {
	MemoryID string `json:"memoryID"`
}

// CacheInvalidatedData is the data for cache.invalidated events,
// published whenever internal/cache.Registry.InvalidateMemoryCaches
// runs.
type CacheInvalidatedData struct {
	Keys []string `json:"keys"`
}

// ToolDispatchedData is the data for tool.dispatched events, published
// by internal/dispatch once a tool call has resolved, used for
// observability independent of the per-request SSE stream.
type ToolDispatchedData struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
}
