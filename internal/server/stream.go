package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"agentgate/internal/chat"
	"agentgate/internal/observability"
	"agentgate/internal/translator"
)

const sseDone = "data: [DONE]\n\n"

// chunkWriter frames fragments as chat.completion.chunk SSE events. Headers
// are committed on the first frame, so an error before that can still be sent
// as a regular JSON response.
type chunkWriter struct {
	res     *echo.Response
	flusher http.Flusher
	id      string
	model   string
	created int64
	started bool
}

func (w *chunkWriter) begin() {
	if w.started {
		return
	}
	w.started = true

	header := w.res.Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	// Streams outlive the server-wide write timeout.
	_ = http.NewResponseController(w.res).SetWriteDeadline(time.Time{})

	w.res.WriteHeader(http.StatusOK)
	observability.StreamingConnections.Inc()
}

func (w *chunkWriter) chunk(fragment string) error {
	w.begin()
	return w.emit(translator.NewChunk(w.id, w.model, w.created, fragment))
}

// stop writes the terminal chunk followed by the [DONE] sentinel.
func (w *chunkWriter) stop() error {
	w.begin()
	if err := w.emit(translator.NewStopChunk(w.id, w.model, w.created)); err != nil {
		return err
	}
	return w.done()
}

func (w *chunkWriter) done() error {
	w.begin()
	if _, err := io.WriteString(w.res, sseDone); err != nil {
		return fmt.Errorf("write SSE sentinel: %w", err)
	}
	w.flusher.Flush()
	return nil
}

func (w *chunkWriter) close() {
	if w.started {
		observability.StreamingConnections.Dec()
	}
}

func (w *chunkWriter) emit(payload any) error {
	if err := writeSSEData(w.res, payload); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}

func writeSSEData(w io.Writer, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal SSE payload: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write SSE data: %w", err)
	}
	return nil
}

// streamCompletion relays agent fragments to the client. A backend fault
// after the first frame cannot change the status anymore: the stream is
// closed with [DONE] alone and the fault is logged and counted.
func (s *Server) streamCompletion(c echo.Context, p chat.Prepared, id string, created int64) error {
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		slog.Error("http writer does not support flushing")
		return requestError{
			Status:  http.StatusInternalServerError,
			Message: "server does not support streaming responses",
			Type:    typeServerError,
		}
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	fragments, err := s.chat.Stream(ctx, p)
	if err != nil {
		return toHTTPError(err)
	}

	w := &chunkWriter{res: c.Response(), flusher: flusher, id: id, model: p.Model, created: created}
	defer w.close()

	for frag := range fragments {
		if frag.Err != nil {
			if !w.started {
				return toHTTPError(frag.Err)
			}
			slog.Error("stream aborted by backend",
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
				"completion_id", id,
				"agent", s.chat.AgentName(),
				"err", frag.Err,
			)
			observability.StreamFailuresTotal.WithLabelValues(s.chat.AgentName(), chat.Outcome(frag.Err)).Inc()
			if err := w.done(); err != nil {
				slog.Warn("failed to terminate stream", "completion_id", id, "err", err)
			}
			return nil
		}

		if err := w.chunk(frag.Text); err != nil {
			slog.Warn("client stream write failed", "completion_id", id, "err", err)
			return nil
		}
	}

	if err := ctx.Err(); err != nil {
		slog.Info("client disconnected mid-stream", "completion_id", id)
		return nil
	}

	if err := w.stop(); err != nil {
		slog.Warn("failed to finish stream", "completion_id", id, "err", err)
	}
	return nil
}
