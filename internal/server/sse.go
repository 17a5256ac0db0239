package server

import (
	"net/http"

	"github.com/vico-ai/vico/internal/envelope"
	"github.com/vico-ai/vico/internal/logging"
)

// sseWriter frames and flushes envelope.Envelope values as they're produced
// by an orchestrator run, satisfying envelope.Writer and
// orchestrator.EmitFunc's signature once adapted by Write.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter prepares w for an event-stream response. Returns an error if
// the underlying ResponseWriter cannot be flushed incrementally.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errNoFlush
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, flusher: flusher}, nil
}

// Write implements envelope.Writer and orchestrator.EmitFunc: it frames
// and flushes ev immediately, returning an error once the client has gone
// away so the producer stops instead of surfacing a failure.
func (s *sseWriter) Write(ev envelope.Envelope) error {
	if _, err := s.w.Write(envelope.Encode(ev)); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// emit adapts Write to orchestrator.EmitFunc.
func (s *sseWriter) emit(ev envelope.Envelope) error {
	return s.Write(ev)
}

var errNoFlush = errNoFlushError{}

type errNoFlushError struct{}

func (errNoFlushError) Error() string { return "server: response writer does not support flushing" }

func logStreamAbort(endpoint string, err error) {
	logging.Info().Str("endpoint", endpoint).Err(err).Msg("server: stream aborted")
}
