package logging

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
	"github.com/kirillkom/catalog-image-sync/internal/core/ports"
)

// broadcastHandler tees records into the event bus as domain.LogEvent.
type broadcastHandler struct {
	next   slog.Handler
	bus    ports.EventPublisher
	attrs  []slog.Attr
	groups []string
}

func newBroadcastHandler(next slog.Handler, bus ports.EventPublisher) *broadcastHandler {
	return &broadcastHandler{next: next, bus: bus}
}

func (h *broadcastHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *broadcastHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.next.Handle(ctx, r)

	data := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		addAttr(data, a)
	}
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	r.Attrs(func(a slog.Attr) bool {
		a.Key = prefix + a.Key
		addAttr(data, a)
		return true
	})

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	evt := domain.LogEvent{
		TS:    ts.UnixMilli(),
		ISO:   ts.UTC().Format(time.RFC3339Nano),
		Level: strings.ToLower(r.Level.String()),
		Msg:   r.Message,
	}
	if len(data) > 0 {
		evt.Data = data
	}
	h.bus.Publish(domain.TopicLog, evt)
	return err
}

func (h *broadcastHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	next := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next = append(next, h.attrs...)
	for _, a := range attrs {
		a.Key = prefix + a.Key
		next = append(next, a)
	}
	return &broadcastHandler{next: h.next.WithAttrs(attrs), bus: h.bus, attrs: next, groups: h.groups}
}

func (h *broadcastHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	groups := append(append([]string(nil), h.groups...), name)
	return &broadcastHandler{next: h.next.WithGroup(name), bus: h.bus, attrs: h.attrs, groups: groups}
}

func addAttr(data map[string]any, a slog.Attr) {
	if isSensitive(lastKeySegment(a.Key)) {
		data[a.Key] = redacted
		return
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, inner := range v.Group() {
			inner.Key = a.Key + "." + inner.Key
			addAttr(data, inner)
		}
		return
	}
	if err, ok := v.Any().(error); ok {
		data[a.Key] = err.Error()
		return
	}
	data[a.Key] = v.Any()
}

func lastKeySegment(key string) string {
	if idx := strings.LastIndex(key, "."); idx >= 0 {
		return key[idx+1:]
	}
	return key
}
