package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kirillkom/catalog-image-sync/internal/config"
	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
	"github.com/kirillkom/catalog-image-sync/internal/core/ports"
	"github.com/kirillkom/catalog-image-sync/internal/infrastructure/events"
	"github.com/kirillkom/catalog-image-sync/internal/observability/metrics"
)

const (
	serviceName = "api"
	runSource   = "api"

	defaultMaxBodyBytes = 32 << 20
)

// CronReporter exposes the expression the scheduler is currently armed with.
type CronReporter interface {
	CronExpression() string
}

type Dependencies struct {
	Sync      ports.SyncController
	Images    ports.ImageBatchIngestor
	DirStates ports.DirStateIngestor
	Settings  ports.SettingsService
	Events    ports.EventSubscriber
	Cron      CronReporter

	Metrics        *metrics.HTTPServerMetrics
	MetricsHandler http.Handler
}

type Router struct {
	deps Dependencies

	token        string
	maxBatchRows int
	maxBodyBytes int64
	eventBuffer  int
	rateLimitRPS float64
	rateBurst    int
}

func NewRouter(cfg config.Config, deps Dependencies) *Router {
	eventBuffer := cfg.EventBuffer
	if eventBuffer <= 0 {
		eventBuffer = events.DefaultBuffer
	}
	return &Router{
		deps:         deps,
		token:        cfg.SyncAPIToken,
		maxBatchRows: cfg.MaxBatchRows,
		maxBodyBytes: defaultMaxBodyBytes,
		eventBuffer:  eventBuffer,
		rateLimitRPS: cfg.APIRateLimitRPS,
		rateBurst:    cfg.APIRateLimitBurst,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	if rt.deps.MetricsHandler != nil {
		mux.Handle("/metrics", rt.deps.MetricsHandler)
	}
	mux.HandleFunc("/sync/dir-state/batch", rt.protected(http.MethodPost, rt.dirStateBatch))
	mux.HandleFunc("/sync/images/batch", rt.protected(http.MethodPost, rt.imagesBatch))
	mux.HandleFunc("/sync/run", rt.protected(http.MethodPost, rt.runSync))
	mux.HandleFunc("/sync/status", rt.syncStatus)
	mux.HandleFunc("/sync/events", rt.streamEvents)
	mux.HandleFunc("/sync/events/ws", rt.streamEventsWS)
	mux.HandleFunc("/config", rt.configHandler)

	exempt := map[string]struct{}{"/healthz": {}, "/metrics": {}}
	var handler http.Handler = rateLimitMiddleware(mux, rt.rateLimitRPS, rt.rateBurst, exempt, rt.onRateLimited)
	if rt.deps.Metrics != nil {
		handler = rt.deps.Metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) onRateLimited() {
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordRejected(serviceName, "rate_limit")
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_request_failed", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{OK: false, Error: publicMessage(err)})
}

// publicMessage keeps the wire messages clients already match on.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, errTokenNotConfigured):
		return errTokenNotConfigured.Error()
	case domain.IsKind(err, domain.ErrUnauthorized):
		return "Unauthorized"
	case domain.IsKind(err, domain.ErrMethodNotAllowed):
		return "Method Not Allowed"
	default:
		return err.Error()
	}
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, domain.WrapError(domain.ErrMethodNotAllowed, r.Method, errors.New("method not allowed")))
}
