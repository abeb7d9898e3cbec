package statusserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oxleyk/drawhub/internal/core/domain"
	"github.com/oxleyk/drawhub/internal/core/history"
	"github.com/oxleyk/drawhub/internal/core/session"
	"github.com/oxleyk/drawhub/internal/server/config"
	"github.com/oxleyk/drawhub/internal/server/statusserver"
	"github.com/oxleyk/drawhub/internal/storage/memory"
	"github.com/oxleyk/drawhub/internal/telemetry/logger"
	"github.com/oxleyk/drawhub/internal/telemetry/metric"
)

func newTestServer(t *testing.T) (*statusserver.Server, *session.Registry) {
	t.Helper()

	discard, err := logger.New(logger.Config{Output: io.Discard})
	if err != nil {
		t.Fatalf("logger.New() error = %v", err)
	}

	reg, err := session.NewRegistry(session.Options{
		SizeLimit: 1 << 20,
		OpenBackend: func(string) (history.Backend, int64, int64, bool, error) {
			return memory.NewHistoryStore(), 0, 0, false, nil
		},
		Logger: discard,
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	t.Cleanup(reg.Close)

	cfg := config.StatusSection{Addr: "127.0.0.1:0"}
	srv := statusserver.New(cfg, reg, metric.New().Handler(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return srv, reg
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, *statusserver.Response) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reqBody)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp statusserver.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: invalid JSON body %q: %v", method, path, rec.Body.String(), err)
	}
	return rec, &resp
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := doRequest(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d, want 200", rec.Code)
	}
	if resp.Code != "OK" {
		t.Errorf("envelope code = %q, want OK", resp.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("go_goroutines")) {
		t.Error("metrics output missing runtime collector series")
	}
}

func TestOpenGetAndCloseSession(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/sessions", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/v1/sessions = %d, want 201", rec.Code)
	}

	data, _ := json.Marshal(resp.Data)
	var st history.Status
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("decode session status: %v", err)
	}
	if !domain.IsValidSessionID(st.ID) {
		t.Fatalf("created session id %q is malformed", st.ID)
	}
	if st.LastIndex != -1 {
		t.Errorf("fresh session LastIndex = %d, want -1", st.LastIndex)
	}

	rec, _ = doRequest(t, h, http.MethodGet, "/api/v1/sessions/"+st.ID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET session = %d, want 200", rec.Code)
	}

	rec, _ = doRequest(t, h, http.MethodDelete, "/api/v1/sessions/"+st.ID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("DELETE session = %d, want 200", rec.Code)
	}

	rec, resp = doRequest(t, h, http.MethodGet, "/api/v1/sessions/"+st.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET removed session = %d, want 404", rec.Code)
	}
	if resp.Code != "DH-SESS-4040" {
		t.Errorf("error code = %q, want DH-SESS-4040", resp.Code)
	}
}

func TestOpenSessionWithExplicitID(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	id := domain.GenerateSessionID()
	rec, _ := doRequest(t, h, http.MethodPost, "/api/v1/sessions",
		statusserver.OpenSessionRequest{ID: id})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST with explicit id = %d, want 201", rec.Code)
	}

	// Opening the same ID again is a conflict.
	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/sessions",
		statusserver.OpenSessionRequest{ID: id})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate open = %d, want 409", rec.Code)
	}
	if resp.Code != "DH-SESS-4090" {
		t.Errorf("error code = %q, want DH-SESS-4090", resp.Code)
	}

	rec, resp = doRequest(t, h, http.MethodPost, "/api/v1/sessions",
		statusserver.OpenSessionRequest{ID: "not-a-session-id"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed id = %d, want 400", rec.Code)
	}
	if resp.Code != "DH-ARG-1001" {
		t.Errorf("error code = %q, want DH-ARG-1001", resp.Code)
	}
}

func TestListSessionsReflectsHistory(t *testing.T) {
	srv, reg := newTestServer(t)
	h := srv.Handler()

	s, err := reg.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	err = reg.Dispatch(context.Background(), s.ID, func(hist *history.History) error {
		msg := domain.NewMessage(domain.KindCommand, 1, make([]byte, 90))
		if !hist.AddMessage(msg) {
			return fmt.Errorf("AddMessage(%v) rejected", msg)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	rec, resp := doRequest(t, h, http.MethodGet, "/api/v1/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/sessions = %d, want 200", rec.Code)
	}

	data, _ := json.Marshal(resp.Data)
	var list statusserver.ListSessionsResponse
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if list.Total != 1 || len(list.Sessions) != 1 {
		t.Fatalf("listing = %+v, want exactly one session", list)
	}
	got := list.Sessions[0]
	if got.ID != s.ID {
		t.Errorf("listed id = %q, want %q", got.ID, s.ID)
	}
	if got.LastIndex != 0 {
		t.Errorf("LastIndex = %d, want 0", got.LastIndex)
	}
	if got.SizeBytes != 100 {
		t.Errorf("SizeBytes = %d, want 100", got.SizeBytes)
	}
}

func TestInvitesEndpointMasksClientKeys(t *testing.T) {
	srv, reg := newTestServer(t)
	h := srv.Handler()

	s, err := reg.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	const clientKey = "client-key-fingerprint-1"
	var secret string
	err = reg.Dispatch(context.Background(), s.ID, func(hist *history.History) error {
		inv := hist.CreateInvite("operator", 3, true, false)
		if inv == nil {
			return domain.ErrInviteTableFull
		}
		secret = inv.Secret
		if res, _ := hist.CheckInvite(clientKey, "alice", secret, true); res != history.InviteUsed {
			t.Errorf("CheckInvite() = %v, want used", res)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("CreateInvite() error = %v", err)
	}

	rec, resp := doRequest(t, h, http.MethodGet, "/api/v1/sessions/"+s.ID+"/invites", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET invites = %d, want 200", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte(clientKey)) {
		t.Error("default invite listing leaked the client key")
	}

	rec, resp = doRequest(t, h, http.MethodGet,
		"/api/v1/sessions/"+s.ID+"/invites?full=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET invites?full=true = %d, want 200", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(clientKey)) {
		t.Error("full listing must include client keys")
	}

	data, _ := json.Marshal(resp.Data)
	var invites statusserver.InvitesResponse
	if err := json.Unmarshal(data, &invites); err != nil {
		t.Fatalf("decode invites: %v", err)
	}
	if len(invites.Invites) != 1 {
		t.Fatalf("invite count = %d, want 1", len(invites.Invites))
	}
	if invites.Invites[0]["secret"] != secret {
		t.Errorf("listed secret = %v, want %q", invites.Invites[0]["secret"], secret)
	}
}

func TestRateLimitReturns429(t *testing.T) {
	discard, err := logger.New(logger.Config{Output: io.Discard})
	if err != nil {
		t.Fatalf("logger.New() error = %v", err)
	}

	reg, err := session.NewRegistry(session.Options{
		OpenBackend: func(string) (history.Backend, int64, int64, bool, error) {
			return memory.NewHistoryStore(), 0, 0, false, nil
		},
		Logger: discard,
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	t.Cleanup(reg.Close)

	cfg := config.StatusSection{
		Addr:               "127.0.0.1:0",
		RateLimitPerSecond: 1,
		RateLimitBurst:     2,
	}
	srv := statusserver.New(cfg, reg, nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	var limited bool
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "192.0.2.10:1234"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("burst of requests was never rate limited")
	}

	// A different client IP has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "192.0.2.11:1234"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("fresh client = %d, want 200", rec.Code)
	}
}

func TestUnknownSessionInvites(t *testing.T) {
	srv, _ := newTestServer(t)

	path := fmt.Sprintf("/api/v1/sessions/%s/invites", domain.GenerateSessionID())
	rec, resp := doRequest(t, srv.Handler(), http.MethodGet, path, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET invites of unknown session = %d, want 404", rec.Code)
	}
	if resp.Code != "DH-SESS-4040" {
		t.Errorf("error code = %q, want DH-SESS-4040", resp.Code)
	}
}

func TestBanLifecycle(t *testing.T) {
	srv, reg := newTestServer(t)
	h := srv.Handler()

	s, err := reg.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	base := fmt.Sprintf("/api/v1/sessions/%s/bans", s.ID)

	// A ban needs at least one client identity.
	rec, resp := doRequest(t, h, http.MethodPost, base, statusserver.AddBanRequest{
		Username: "mallory",
		BannedBy: "operator",
	})
	if rec.Code != http.StatusBadRequest || resp.Code != "DH-ARG-1001" {
		t.Fatalf("identity-less ban = %d/%q, want 400/DH-ARG-1001", rec.Code, resp.Code)
	}

	rec, resp = doRequest(t, h, http.MethodPost, base, statusserver.AddBanRequest{
		Username: "mallory",
		AuthID:   "auth:7",
		BannedBy: "operator",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST ban = %d, want 201", rec.Code)
	}
	data, _ := json.Marshal(resp.Data)
	var entry domain.BanEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("decode ban entry: %v", err)
	}
	if entry.ID != 1 {
		t.Errorf("ban ID = %d, want 1", entry.ID)
	}

	// Re-banning the same identity resolves to the existing entry.
	rec, _ = doRequest(t, h, http.MethodPost, base, statusserver.AddBanRequest{
		Username: "mallory2",
		AuthID:   "auth:7",
		BannedBy: "operator",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("duplicate ban = %d, want 200", rec.Code)
	}

	rec, resp = doRequest(t, h, http.MethodGet, base, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET bans = %d, want 200", rec.Code)
	}
	data, _ = json.Marshal(resp.Data)
	var listing statusserver.BansResponse
	if err := json.Unmarshal(data, &listing); err != nil {
		t.Fatalf("decode ban listing: %v", err)
	}
	if len(listing.Bans) != 1 {
		t.Fatalf("ban listing has %d entries, want 1", len(listing.Bans))
	}

	rec, _ = doRequest(t, h, http.MethodDelete, base+"/1", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("DELETE ban = %d, want 200", rec.Code)
	}
	rec, resp = doRequest(t, h, http.MethodDelete, base+"/1", nil)
	if rec.Code != http.StatusNotFound || resp.Code != "DH-SESS-4040" {
		t.Errorf("re-delete = %d/%q, want 404/DH-SESS-4040", rec.Code, resp.Code)
	}
	rec, resp = doRequest(t, h, http.MethodDelete, base+"/one", nil)
	if rec.Code != http.StatusBadRequest || resp.Code != "DH-ARG-1001" {
		t.Errorf("non-numeric ban ID = %d/%q, want 400/DH-ARG-1001", rec.Code, resp.Code)
	}
}
