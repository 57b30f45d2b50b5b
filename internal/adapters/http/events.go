package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
)

const (
	sseRetryMillis = 2000
	sseKeepAlive   = 25 * time.Second
	wsWriteTimeout = 5 * time.Second
)

// streamEvents serves the broadcast channel as Server-Sent Events. The event name is the topic.
func (rt *Router) streamEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{OK: false, Error: "streaming unsupported"})
		return
	}

	ch, cancel := rt.deps.Events.Subscribe(rt.eventBuffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "retry: %d\n\n", sseRetryMillis)
	flusher.Flush()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := writeSSE(w, evt); err != nil {
				slog.Debug("sse_write_failed", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w io.Writer, evt domain.Event) error {
	data, err := json.Marshal(evt.Payload)
	if err != nil {
		// Unencodable payloads are skipped, the stream stays open.
		return nil
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Topic, data)
	return err
}

// streamEventsWS delivers the same events as JSON envelopes {topic,payload} over a websocket.
func (rt *Router) streamEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket_accept_failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ch, cancel := rt.deps.Events.Subscribe(rt.eventBuffer)
	defer cancel()

	// Inbound frames are ignored; CloseRead ends ctx when the client goes away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "event stream closed")
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if err := writeWS(ctx, conn, data); err != nil {
				slog.Debug("websocket_write_failed", "error", err)
				return
			}
		}
	}
}

func writeWS(ctx context.Context, conn *websocket.Conn, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
