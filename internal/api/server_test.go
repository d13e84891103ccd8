package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/hcbridge/internal/catalog"
	"github.com/nerrad567/hcbridge/internal/homekit"
	"github.com/nerrad567/hcbridge/internal/infrastructure/config"
	"github.com/nerrad567/hcbridge/internal/infrastructure/logging"
	"github.com/nerrad567/hcbridge/internal/syncer"
)

type stubAccessories struct {
	records []homekit.AccessoryRecord
}

func (s *stubAccessories) Records() []homekit.AccessoryRecord {
	return append([]homekit.AccessoryRecord(nil), s.records...)
}

func (s *stubAccessories) Record(key string) (homekit.AccessoryRecord, bool) {
	for _, r := range s.records {
		if r.Key == key {
			return r, true
		}
	}
	return homekit.AccessoryRecord{}, false
}

type stubPasses struct {
	mu       sync.Mutex
	last     *syncer.Report
	triggers int
}

func (s *stubPasses) LastReport() (syncer.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return syncer.Report{}, false
	}
	return *s.last, true
}

func (s *stubPasses) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers++
}

type stubHistory struct {
	reports []syncer.Report
	err     error
	limit   int
}

func (s *stubHistory) Recent(_ context.Context, limit int) ([]syncer.Report, error) {
	s.limit = limit
	return s.reports, s.err
}

type checkFunc func(ctx context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func testDeps() Deps {
	return Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS:     config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Logger: logging.Discard(),
		Accessories: &stubAccessories{records: []homekit.AccessoryRecord{
			{
				Key: "12", DeviceID: "12", AID: 2, Name: "Kitchen", RoomID: "3",
				Services: []homekit.ServiceRecord{{Subtype: "12----", Kind: catalog.Lightbulb, DisplayName: "Kitchen"}},
			},
			{
				Key: "scene:4", DeviceID: "4", AID: 3, Name: "Movie", DeviceType: "scene",
				Services: []homekit.ServiceRecord{{Subtype: "4--SC", Kind: catalog.Switch, DisplayName: "Movie"}},
			},
		}},
		Passes:  &stubPasses{},
		Version: "test",
	}
}

func testServer(t *testing.T, mutate ...func(*Deps)) *Server {
	t.Helper()
	deps := testDeps()
	for _, m := range mutate {
		m(&deps)
	}
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal: %v (body %s)", err, w.Body.String())
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	deps := testDeps()
	deps.Logger = nil
	if _, err := New(deps); err == nil {
		t.Error("expected error without logger")
	}

	deps = testDeps()
	deps.Accessories = nil
	if _, err := New(deps); err == nil {
		t.Error("expected error without accessory source")
	}

	deps = testDeps()
	deps.Passes = nil
	if _, err := New(deps); err == nil {
		t.Error("expected error without pass source")
	}
}

func TestHealth(t *testing.T) {
	srv := testServer(t)
	w := get(t, srv, "/api/v1/health")

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp map[string]any
	decode(t, w, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestHealth_Degraded(t *testing.T) {
	srv := testServer(t, func(d *Deps) {
		d.Checks = map[string]HealthChecker{
			"database": checkFunc(func(context.Context) error { return nil }),
			"mqtt":     checkFunc(func(context.Context) error { return errors.New("not connected") }),
		}
	})
	w := get(t, srv, "/api/v1/health")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	var resp struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	decode(t, w, &resp)
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
	if resp.Components["database"] != "ok" || resp.Components["mqtt"] != "not connected" {
		t.Errorf("components = %v", resp.Components)
	}
}

func TestRequestID(t *testing.T) {
	srv := testServer(t)

	w := get(t, srv, "/api/v1/health")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestNotFound(t *testing.T) {
	w := get(t, testServer(t), "/api/v1/nonexistent")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestListAccessories(t *testing.T) {
	srv := testServer(t)

	var resp struct {
		Accessories []homekit.AccessoryRecord `json:"accessories"`
		Count       int                       `json:"count"`
	}
	decode(t, get(t, srv, "/api/v1/accessories"), &resp)
	if resp.Count != 2 || len(resp.Accessories) != 2 {
		t.Fatalf("count = %d, want 2", resp.Count)
	}
	if resp.Accessories[1].Key != "scene:4" {
		t.Errorf("second key = %q, want scene:4", resp.Accessories[1].Key)
	}

	decode(t, get(t, srv, "/api/v1/accessories?room=3"), &resp)
	if resp.Count != 1 || resp.Accessories[0].Name != "Kitchen" {
		t.Errorf("room filter = %+v", resp.Accessories)
	}
}

func TestGetAccessory(t *testing.T) {
	srv := testServer(t)

	w := get(t, srv, "/api/v1/accessories/scene:4")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var rec homekit.AccessoryRecord
	decode(t, w, &rec)
	if rec.AID != 3 || rec.Services[0].Subtype != "4--SC" {
		t.Errorf("record = %+v", rec)
	}

	w = get(t, srv, "/api/v1/accessories/99")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing accessory status = %d, want 404", w.Code)
	}
	var apiErr Error
	decode(t, w, &apiErr)
	if apiErr.Code != ErrCodeNotFound {
		t.Errorf("error code = %q, want %q", apiErr.Code, ErrCodeNotFound)
	}
	if apiErr.RequestID == "" || apiErr.RequestID != w.Header().Get("X-Request-ID") {
		t.Errorf("error request_id = %q, want header %q", apiErr.RequestID, w.Header().Get("X-Request-ID"))
	}
}

func TestLastPass(t *testing.T) {
	passes := &stubPasses{}
	srv := testServer(t, func(d *Deps) { d.Passes = passes })

	if w := get(t, srv, "/api/v1/passes/last"); w.Code != http.StatusNotFound {
		t.Errorf("status before first pass = %d, want 404", w.Code)
	}

	passes.last = &syncer.Report{PassID: "p-1", Devices: 4, Removed: []string{"9"}}
	w := get(t, srv, "/api/v1/passes/last")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var r syncer.Report
	decode(t, w, &r)
	if r.PassID != "p-1" || r.Devices != 4 || len(r.Removed) != 1 {
		t.Errorf("report = %+v", r)
	}
}

func TestListPasses(t *testing.T) {
	w := get(t, testServer(t), "/api/v1/passes")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status without history = %d, want 503", w.Code)
	}
	var apiErr Error
	decode(t, w, &apiErr)
	if apiErr.Code != ErrCodeUnavailable {
		t.Errorf("error code = %q, want %q", apiErr.Code, ErrCodeUnavailable)
	}

	history := &stubHistory{reports: []syncer.Report{{PassID: "b"}, {PassID: "a"}}}
	srv := testServer(t, func(d *Deps) { d.History = history })

	var resp struct {
		Passes []syncer.Report `json:"passes"`
		Count  int             `json:"count"`
	}
	decode(t, get(t, srv, "/api/v1/passes"), &resp)
	if resp.Count != 2 || resp.Passes[0].PassID != "b" {
		t.Errorf("passes = %+v", resp.Passes)
	}
	if history.limit != defaultPassLimit {
		t.Errorf("limit = %d, want %d", history.limit, defaultPassLimit)
	}

	get(t, srv, "/api/v1/passes?limit=5")
	if history.limit != 5 {
		t.Errorf("limit = %d, want 5", history.limit)
	}

	for _, bad := range []string{"0", "201", "x"} {
		w := get(t, srv, "/api/v1/passes?limit="+bad)
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d, want 400", bad, w.Code)
		}
		decode(t, w, &apiErr)
		if apiErr.Code != ErrCodeBadRequest || apiErr.Message != "limit must be between 1 and 200" {
			t.Errorf("limit=%s error = %+v", bad, apiErr)
		}
	}

	history.err = errors.New("disk")
	if w := get(t, srv, "/api/v1/passes"); w.Code != http.StatusInternalServerError {
		t.Errorf("status on store error = %d, want 500", w.Code)
	}
}

func TestTriggerSync(t *testing.T) {
	passes := &stubPasses{}
	srv := testServer(t, func(d *Deps) { d.Passes = passes })

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", w.Code)
	}
	if passes.triggers != 1 {
		t.Errorf("triggers = %d, want 1", passes.triggers)
	}
}

func TestMetrics(t *testing.T) {
	passes := &stubPasses{last: &syncer.Report{PassID: "p-9", StartedAt: time.Now(), Duration: 250 * time.Millisecond, Errors: 1}}
	srv := testServer(t, func(d *Deps) { d.Passes = passes })

	var m SystemMetrics
	decode(t, get(t, srv, "/api/v1/metrics"), &m)
	if m.Accessories.Total != 2 || m.Accessories.Services != 2 {
		t.Errorf("accessories = %+v", m.Accessories)
	}
	if m.Accessories.ByKind["Lightbulb"] != 1 || m.Accessories.ByKind["Switch"] != 1 {
		t.Errorf("by kind = %v", m.Accessories.ByKind)
	}
	if m.LastPass == nil || m.LastPass.PassID != "p-9" || m.LastPass.DurationMS != 250 {
		t.Errorf("last pass = %+v", m.LastPass)
	}
	if m.Runtime.Goroutines == 0 {
		t.Error("expected goroutine count")
	}
}

func TestRecovery(t *testing.T) {
	srv := testServer(t)
	h := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var apiErr Error
	decode(t, w, &apiErr)
	if apiErr.Code != ErrCodeInternal {
		t.Errorf("error code = %q, want %q", apiErr.Code, ErrCodeInternal)
	}
}

func TestLoggingLevels(t *testing.T) {
	var buf bytes.Buffer
	srv := testServer(t, func(d *Deps) {
		d.Logger = logging.NewWithWriter(config.LoggingConfig{Level: "debug", Format: "json"}, "test", &buf)
	})

	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/health", "DEBUG"},
		{"/api/v1/accessories", "INFO"},
		{"/api/v1/passes?limit=x", "INFO"},
	}
	for _, tt := range tests {
		buf.Reset()
		get(t, srv, tt.path)

		var line struct {
			Level  string `json:"level"`
			Msg    string `json:"msg"`
			Status int    `json:"status"`
		}
		if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
			t.Fatalf("%s: log line: %v (%s)", tt.path, err, buf.String())
		}
		if line.Msg != "http request" || line.Level != tt.want {
			t.Errorf("%s logged %+v, want level %s", tt.path, line, tt.want)
		}
	}

	buf.Reset()
	h := srv.loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusInternalServerError, "boom")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if !strings.Contains(buf.String(), `"level":"WARN"`) {
		t.Errorf("server error logged %s, want WARN", buf.String())
	}
}

func TestServer_StartAndClose(t *testing.T) {
	srv := testServer(t)
	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("expected health check error before Start")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

// ─── Pass stream ───────────────────────────────────────────────────

func dialStream(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	t.Cleanup(func() { ws.Close() })
	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) Frame {
	t.Helper()
	var f Frame
	if err := ws.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStream_SnapshotWithoutPass(t *testing.T) {
	srv := testServer(t)
	ws := dialStream(t, srv)

	f := readFrame(t, ws)
	if f.Type != FrameSnapshot {
		t.Fatalf("first frame type = %q, want %q", f.Type, FrameSnapshot)
	}
	if f.Pass != nil {
		t.Errorf("snapshot pass = %+v, want none before the first pass", f.Pass)
	}
	if len(f.Channels) != 1 || f.Channels[0] != ChannelPassCompleted {
		t.Errorf("snapshot channels = %v, want [%s]", f.Channels, ChannelPassCompleted)
	}
}

func TestStream_SnapshotCarriesLastPass(t *testing.T) {
	passes := &stubPasses{last: &syncer.Report{PassID: "p-7", Devices: 3}}
	srv := testServer(t, func(d *Deps) { d.Passes = passes })
	ws := dialStream(t, srv)

	f := readFrame(t, ws)
	if f.Type != FrameSnapshot || f.Pass == nil {
		t.Fatalf("snapshot = %+v, want last pass", f)
	}
	if f.Pass.PassID != "p-7" || f.Pass.Devices != 3 {
		t.Errorf("snapshot pass = %+v", f.Pass)
	}
}

func TestStream_PassCompleted(t *testing.T) {
	srv := testServer(t)
	ws := dialStream(t, srv)
	readFrame(t, ws)
	waitForClients(t, srv.Hub(), 1)

	report := syncer.Report{
		PassID: "p-1",
		Events: []syncer.AccessoryEvent{{Key: "12", Event: syncer.EventRegistered}},
	}
	if err := srv.Hub().ReportPass(context.Background(), report); err != nil {
		t.Fatalf("ReportPass: %v", err)
	}

	f := readFrame(t, ws)
	if f.Type != FramePassCompleted || f.Pass == nil || f.Pass.PassID != "p-1" {
		t.Errorf("frame = %+v, want pass_completed for p-1", f)
	}
}

func TestStream_SubscribeAccessoryChanges(t *testing.T) {
	srv := testServer(t)
	ws := dialStream(t, srv)
	readFrame(t, ws)
	waitForClients(t, srv.Hub(), 1)

	req := StreamRequest{Action: ActionSubscribe, Channels: []string{ChannelAccessoryChanged}}
	if err := ws.WriteJSON(req); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	f := readFrame(t, ws)
	if f.Type != FrameSubscriptions || len(f.Channels) != 2 {
		t.Fatalf("subscribe reply = %+v", f)
	}

	report := syncer.Report{
		PassID: "p-2",
		Events: []syncer.AccessoryEvent{{Key: "9", Event: syncer.EventRemoved}},
	}
	if err := srv.Hub().ReportPass(context.Background(), report); err != nil {
		t.Fatalf("ReportPass: %v", err)
	}

	if f := readFrame(t, ws); f.Type != FramePassCompleted {
		t.Errorf("frame type = %q, want %q", f.Type, FramePassCompleted)
	}
	f = readFrame(t, ws)
	if f.Type != FrameAccessoryChanged || f.Event == nil || f.Event.Key != "9" {
		t.Errorf("frame = %+v, want accessory_changed for 9", f)
	}

	req = StreamRequest{Action: ActionUnsubscribe, Channels: []string{ChannelPassCompleted}}
	if err := ws.WriteJSON(req); err != nil {
		t.Fatalf("write unsubscribe: %v", err)
	}
	f = readFrame(t, ws)
	if len(f.Channels) != 1 || f.Channels[0] != ChannelAccessoryChanged {
		t.Errorf("channels after unsubscribe = %v", f.Channels)
	}
}

func TestStream_RejectsBadRequests(t *testing.T) {
	srv := testServer(t)
	ws := dialStream(t, srv)
	readFrame(t, ws)

	if err := ws.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := readFrame(t, ws); f.Type != FrameError {
		t.Errorf("invalid JSON reply type = %q, want %q", f.Type, FrameError)
	}

	tests := []struct {
		req  StreamRequest
		want string
	}{
		{StreamRequest{Action: "launch", Channels: []string{ChannelPassCompleted}}, `unknown action "launch"`},
		{StreamRequest{Action: ActionSubscribe}, "subscribe needs at least one channel"},
		{StreamRequest{Action: ActionSubscribe, Channels: []string{ChannelAccessoryChanged, "device.state"}}, `unknown channel "device.state"`},
	}
	for _, tt := range tests {
		if err := ws.WriteJSON(tt.req); err != nil {
			t.Fatalf("write: %v", err)
		}
		f := readFrame(t, ws)
		if f.Type != FrameError || f.Error != tt.want {
			t.Errorf("reply to %+v = %+v, want error %q", tt.req, f, tt.want)
		}
	}

	// A rejected request leaves subscriptions untouched.
	if err := srv.Hub().ReportPass(context.Background(), syncer.Report{
		PassID: "p-3",
		Events: []syncer.AccessoryEvent{{Key: "1", Event: syncer.EventUpdated}},
	}); err != nil {
		t.Fatalf("ReportPass: %v", err)
	}
	if f := readFrame(t, ws); f.Type != FramePassCompleted {
		t.Errorf("frame type = %q, want %q", f.Type, FramePassCompleted)
	}
}

func TestHub_NoFrameForUnsubscribed(t *testing.T) {
	hub := NewHub(logging.Discard())
	c := newStreamClient(nil, ChannelPassCompleted)
	hub.add(c)

	hub.ReportPass(context.Background(), syncer.Report{ //nolint:errcheck // never fails
		Events: []syncer.AccessoryEvent{{Key: "1"}},
	})

	if got := len(c.send); got != 1 {
		t.Errorf("queued frames = %d, want 1 (pass only)", got)
	}

	hub.remove(c)
	if hub.ClientCount() != 0 {
		t.Errorf("after remove count = %d, want 0", hub.ClientCount())
	}
}

func TestHub_DisconnectsSlowClient(t *testing.T) {
	hub := NewHub(logging.Discard())
	c := newStreamClient(nil, ChannelPassCompleted)
	hub.add(c)

	for i := 0; i < streamBuffer+1; i++ {
		hub.ReportPass(context.Background(), syncer.Report{PassID: "p"}) //nolint:errcheck // never fails
	}

	if hub.ClientCount() != 0 {
		t.Errorf("client count = %d, want slow client dropped", hub.ClientCount())
	}
	n := 0
	for range c.send {
		n++
	}
	if n != streamBuffer {
		t.Errorf("drained %d frames, want %d", n, streamBuffer)
	}
}

func TestHub_RunClosesClients(t *testing.T) {
	hub := NewHub(logging.Discard())
	c := newStreamClient(nil, ChannelPassCompleted)
	hub.add(c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel still open after Run returned")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("client count = %d, want 0", hub.ClientCount())
	}
}
