package httpadapter

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/kirillkom/catalog-image-sync/internal/config"
	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
	"github.com/kirillkom/catalog-image-sync/internal/infrastructure/events"
)

const testToken = "secret"

type syncFake struct {
	mu      sync.Mutex
	sources []string
	result  domain.RunResult
	status  domain.RunStatus
}

func (f *syncFake) Start(_ context.Context, source string) domain.RunResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, source)
	return f.result
}

func (f *syncFake) Status() domain.RunStatus { return f.status }

type imagesFake struct {
	rows   []domain.RawRow
	calls  int
	result domain.ReconcileResult
	err    error
}

func (f *imagesFake) UpsertBatch(_ context.Context, rows []domain.RawRow) (domain.ReconcileResult, error) {
	f.calls++
	f.rows = rows
	return f.result, f.err
}

type dirStatesFake struct {
	entries []domain.DirectoryEntry
	err     error
}

func (f *dirStatesFake) RecordDirectoryStates(_ context.Context, entries []domain.DirectoryEntry) (int, error) {
	f.entries = entries
	if f.err != nil {
		return 0, f.err
	}
	return len(entries), nil
}

type settingsFake struct {
	current domain.Settings
	patches []domain.SettingsPatch
	err     error
}

func (f *settingsFake) Load(context.Context) (domain.Settings, error) { return f.current, nil }

func (f *settingsFake) Update(_ context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	if f.err != nil {
		return domain.Settings{}, f.err
	}
	f.patches = append(f.patches, patch)
	f.current = f.current.Apply(patch)
	return f.current, nil
}

type cronFake string

func (c cronFake) CronExpression() string { return string(c) }

type routerFixture struct {
	sync      *syncFake
	images    *imagesFake
	dirStates *dirStatesFake
	settings  *settingsFake
	hub       *events.Hub
	handler   http.Handler
}

func newRouterFixture(t *testing.T, cfg config.Config) *routerFixture {
	t.Helper()
	f := &routerFixture{
		sync:      &syncFake{},
		images:    &imagesFake{},
		dirStates: &dirStatesFake{},
		settings:  &settingsFake{current: domain.DefaultSettings()},
		hub:       events.NewHub(),
	}
	f.handler = NewRouter(cfg, Dependencies{
		Sync:      f.sync,
		Images:    f.images,
		DirStates: f.dirStates,
		Settings:  f.settings,
		Events:    f.hub,
		Cron:      cronFake("*/5 * * * *"),
	}).Handler()
	return f
}

func defaultTestConfig() config.Config {
	return config.Config{SyncAPIToken: testToken, MaxBatchRows: 3, EventBuffer: 8}
}

func doRequest(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set(syncTokenHeader, token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestBatchEndpointsRequireConfiguredToken(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.SyncAPIToken = ""
	f := newRouterFixture(t, cfg)

	rec := doRequest(t, f.handler, http.MethodPost, "/sync/images/batch", "anything", `{"rows":[]}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Missing env var: SYNC_API_TOKEN" || body["ok"] != false {
		t.Fatalf("unexpected body: %v", body)
	}
	if f.images.calls != 0 {
		t.Fatalf("ingestor must not be called")
	}
}

func TestTokenIsCheckedBeforeMethod(t *testing.T) {
	f := newRouterFixture(t, defaultTestConfig())

	rec := doRequest(t, f.handler, http.MethodGet, "/sync/dir-state/batch", "wrong", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token on GET, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "Unauthorized" {
		t.Fatalf("unexpected body: %v", body)
	}

	rec = doRequest(t, f.handler, http.MethodGet, "/sync/dir-state/batch", testToken, "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET with valid token, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "Method Not Allowed" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestImagesBatchUpserts(t *testing.T) {
	f := newRouterFixture(t, defaultTestConfig())
	f.images.result = domain.ReconcileResult{UpdatedStandard: 1, UpdatedAmbience: 1}

	body := `{"rows":[{"codprodu":"P1","codclaarchivo":"PRODUCT_HIGH","ficadjunto":"/A/p1.jpg"},42,{"codprodu":7}]}`
	rec := doRequest(t, f.handler, http.MethodPost, "/sync/images/batch", testToken, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decodeBody(t, rec)
	if got["ok"] != true || got["insertedOrUpdated"] != float64(2) {
		t.Fatalf("unexpected body: %v", got)
	}
	if len(f.images.rows) != 2 {
		t.Fatalf("expected non-object rows to be dropped, got %d rows", len(f.images.rows))
	}
	if f.images.rows[1].ProductCode.Value != "7" {
		t.Fatalf("expected numeric product code to be accepted, got %+v", f.images.rows[1].ProductCode)
	}
}

func TestImagesBatchNonArrayRowsIsEmpty(t *testing.T) {
	f := newRouterFixture(t, defaultTestConfig())

	rec := doRequest(t, f.handler, http.MethodPost, "/sync/images/batch", testToken, `{"rows":"nope"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decodeBody(t, rec); got["insertedOrUpdated"] != float64(0) {
		t.Fatalf("unexpected body: %v", got)
	}
	if len(f.images.rows) != 0 {
		t.Fatalf("expected empty batch, got %d", len(f.images.rows))
	}
}

func TestImagesBatchReportsPartialFailure(t *testing.T) {
	f := newRouterFixture(t, defaultTestConfig())
	f.images.result = domain.ReconcileResult{
		UpdatedStandard: 2,
		Failures:        []domain.BranchFailure{{Branch: domain.BranchAmbience, Rows: 1, Error: "boom"}},
	}

	rec := doRequest(t, f.handler, http.MethodPost, "/sync/images/batch", testToken, `{"rows":[{}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp imagesBatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.InsertedOrUpdated != 2 || len(resp.Failures) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	f.images.result = domain.ReconcileResult{
		Failures: []domain.BranchFailure{{Branch: domain.BranchStandard, Rows: 1, Error: "store down"}},
	}
	rec = doRequest(t, f.handler, http.MethodPost, "/sync/images/batch", testToken, `{"rows":[{}]}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when nothing stored, got %d", rec.Code)
	}
	if got := decodeBody(t, rec); got["ok"] != false || got["error"] != "store down" {
		t.Fatalf("unexpected body: %v", got)
	}
}

func TestBatchRejectsTooManyRows(t *testing.T) {
	f := newRouterFixture(t, defaultTestConfig())

	rec := doRequest(t, f.handler, http.MethodPost, "/sync/dir-state/batch", testToken,
		`{"rows":[{"path":"/a"},{"path":"/b"},{"path":"/c"},{"path":"/d"}]}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if f.dirStates.entries != nil {
		t.Fatalf("store must not be called")
	}
}

func TestBatchRejectsMalformedJSON(t *testing.T) {
	f := newRouterFixture(t, defaultTestConfig())

	rec := doRequest(t, f.handler, http.MethodPost, "/sync/images/batch", testToken, `{"rows":[`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDirStateBatch(t *testing.T) {
	f := newRouterFixture(t, defaultTestConfig())

	rec := doRequest(t, f.handler, http.MethodPost, "/sync/dir-state/batch", testToken,
		`{"rows":[{"path":"/ARENA/2024","lastDirMod":1700000000000.4},{"path":"/ARENA","last_dir_mod":"12"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decodeBody(t, rec); got["updated"] != float64(2) {
		t.Fatalf("unexpected body: %v", got)
	}
	if f.dirStates.entries[1].LastModified != 12 {
		t.Fatalf("unexpected entries: %+v", f.dirStates.entries)
	}

	f.dirStates.err = domain.WrapError(domain.ErrTemporary, "record", errors.New("circuit open"))
	rec = doRequest(t, f.handler, http.MethodPost, "/sync/dir-state/batch", testToken, `{"rows":[{"path":"/x"}]}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRunSyncReturnsResultWith200(t *testing.T) {
	f := newRouterFixture(t, defaultTestConfig())
	f.sync.result = domain.RunResult{OK: false, Error: "scan failed"}

	rec := doRequest(t, f.handler, http.MethodPost, "/sync/run", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = doRequest(t, f.handler, http.MethodPost, "/sync/run", testToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decodeBody(t, rec); got["ok"] != false || got["error"] != "scan failed" {
		t.Fatalf("unexpected body: %v", got)
	}
	if len(f.sync.sources) != 1 || f.sync.sources[0] != runSource {
		t.Fatalf("unexpected sources: %v", f.sync.sources)
	}
}

func TestSyncStatus(t *testing.T) {
	f := newRouterFixture(t, defaultTestConfig())
	brand := "ARENA"
	f.sync.status = domain.RunStatus{Running: true, CurrentUnit: &brand}

	rec := doRequest(t, f.handler, http.MethodGet, "/sync/status", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got := decodeBody(t, rec)
	if got["running"] != true || got["currentBrand"] != "ARENA" {
		t.Fatalf("unexpected body: %v", got)
	}

	rec = doRequest(t, f.handler, http.MethodPost, "/sync/status", "", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestConfigReadAndUpdate(t *testing.T) {
	f := newRouterFixture(t, defaultTestConfig())

	rec := doRequest(t, f.handler, http.MethodGet, "/config", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got := decodeBody(t, rec)
	if got["cronExpression"] != domain.DefaultCronExpression {
		t.Fatalf("unexpected settings: %v", got)
	}
	runtime, _ := got["runtime"].(map[string]any)
	if runtime["cronExpression"] != "*/5 * * * *" {
		t.Fatalf("unexpected runtime: %v", got["runtime"])
	}

	rec = doRequest(t, f.handler, http.MethodPut, "/config", "", `{"brandDelayMs":250}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = doRequest(t, f.handler, http.MethodPut, "/config", testToken, `{"brandDelayMs":250,"brands":[{"name":"ARENA"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got = decodeBody(t, rec)
	if got["brandDelayMs"] != float64(250) {
		t.Fatalf("unexpected body: %v", got)
	}
	if brands, _ := got["brands"].([]any); len(brands) != 1 {
		t.Fatalf("expected one brand, got %v", got["brands"])
	}

	f.settings.err = domain.WrapError(domain.ErrInvalidInput, "reschedule", errors.New("bad cron"))
	rec = doRequest(t, f.handler, http.MethodPut, "/config", testToken, `{"cronExpression":"nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = doRequest(t, f.handler, http.MethodDelete, "/config", testToken, "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.APIRateLimitRPS = 0.001
	cfg.APIRateLimitBurst = 1
	f := newRouterFixture(t, cfg)

	if rec := doRequest(t, f.handler, http.MethodGet, "/sync/status", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}
	rec := doRequest(t, f.handler, http.MethodGet, "/sync/status", "", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if rec := doRequest(t, f.handler, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected healthz to bypass the limiter, got %d", rec.Code)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	f := newRouterFixture(t, defaultTestConfig())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Header().Get(requestIDHeader) != "req-42" {
		t.Fatalf("expected request id to be echoed, got %q", rec.Header().Get(requestIDHeader))
	}

	rec = doRequest(t, f.handler, http.MethodGet, "/healthz", "", "")
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestSSEStreamsPublishedEvents(t *testing.T) {
	f := newRouterFixture(t, defaultTestConfig())
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sync/events", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil || line != "retry: 2000\n" {
		t.Fatalf("expected retry line, got %q (%v)", line, err)
	}

	f.hub.Publish(domain.TopicSync, domain.SyncEvent{Type: domain.EventSyncStart, Source: "api"})

	var eventLine, dataLine string
	for eventLine == "" || dataLine == "" {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		switch {
		case strings.HasPrefix(line, "event: "):
			eventLine = strings.TrimSpace(line)
		case strings.HasPrefix(line, "data: "):
			dataLine = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	if eventLine != "event: sync" {
		t.Fatalf("unexpected event line %q", eventLine)
	}
	var payload domain.SyncEvent
	if err := json.Unmarshal([]byte(dataLine), &payload); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if payload.Type != domain.EventSyncStart || payload.Source != "api" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestWebSocketStreamsPublishedEvents(t *testing.T) {
	f := newRouterFixture(t, defaultTestConfig())
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sync/events/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for f.hub.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("websocket handler never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	f.hub.Publish(domain.TopicLog, domain.LogEvent{Level: "info", Msg: "hello"})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var envelope struct {
		Topic   string          `json:"topic"`
		Payload domain.LogEvent `json:"payload"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Topic != domain.TopicLog || envelope.Payload.Msg != "hello" {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
}
