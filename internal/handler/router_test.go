package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gloriousnetworker/dcarbon-bff-go/internal/domain"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/handler"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/infra/cache"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/infra/dcarbon"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/infra/observability"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/infra/resilience"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/infra/sessiondb"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/service"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/utility"

	"go.uber.org/zap"
)

// newTestRouter wires a full stack against a fake upstream.
func newTestRouter(t *testing.T, upstream http.Handler) http.Handler {
	t.Helper()

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	store, err := sessiondb.Open(t.TempDir() + "/sessions.db")
	if err != nil {
		t.Fatalf("open session db: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	client := dcarbon.NewClient(srv.Client(), srv.URL,
		resilience.NewCircuitBreaker("dcarbon-test"),
		resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond},
		logger,
	)

	sessions := service.NewSessionService(store, []byte("test-secret"), time.Hour, time.Hour, logger)
	stages := service.NewStageService(client, cache.New[*domain.StageResult](time.Minute), metrics, logger)
	onboarding := service.NewOnboardingService(client, stages, metrics, logger)
	facilities := service.NewFacilityService(client, store, stages, metrics, logger)
	utilities := service.NewUtilityAuthService(client, utility.Default(), stages, metrics, logger)

	return handler.NewRouter(handler.Services{
		Sessions:   sessions,
		Stages:     stages,
		Onboarding: onboarding,
		Facilities: facilities,
		Utilities:  utilities,
	}, store.Ping, metrics, logger)
}

// fakeUpstream answers every probe as a fresh user.
func fakeUpstream() http.Handler {
	mux := http.NewServeMux()
	notFound := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}
	mux.HandleFunc("/api/user/get-commercial-user/", notFound)
	mux.HandleFunc("/api/user/agreement/", notFound)
	mux.HandleFunc("/api/user/financial-info/", notFound)
	mux.HandleFunc("/api/auth/user-meters/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "success", "data": []any{}})
	})
	mux.HandleFunc("/api/facility/get-user-facilities-by-userId/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "success", "data": map[string]any{"facilities": []any{}}})
	})
	return mux
}

const loginPayload = `{
	"status": "success",
	"data": {
		"token": "upstream-token",
		"user": {"id": "user-1", "firstName": "Ada", "profilePicture": ""}
	}
}`

func createSession(t *testing.T, router http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/session", bytes.NewBufferString(loginPayload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 from session create, got %d: %s", rec.Code, rec.Body.String())
	}
	var handle struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &handle); err != nil {
		t.Fatalf("decode session handle: %v", err)
	}
	if handle.AccessToken == "" {
		t.Fatal("expected access token")
	}
	return handle.AccessToken
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t, fakeUpstream())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	router := newTestRouter(t, fakeUpstream())

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, fakeUpstream())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t, fakeUpstream())

	req := httptest.NewRequest(http.MethodGet, "/v1/users/user-1/onboarding/stage", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
}

func TestStageEndpoint_FreshUser(t *testing.T) {
	router := newTestRouter(t, fakeUpstream())
	token := createSession(t, router)

	req := httptest.NewRequest(http.MethodGet, "/v1/users/user-1/onboarding/stage", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result domain.StageResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode stage result: %v", err)
	}
	if result.Stage != domain.StageRegistered {
		t.Errorf("expected stage 1, got %d", result.Stage)
	}
	if result.Degraded {
		t.Error("404 probes must not degrade the result")
	}
}

func TestStageEndpoint_ForbiddenForOtherUser(t *testing.T) {
	router := newTestRouter(t, fakeUpstream())
	token := createSession(t, router)

	req := httptest.NewRequest(http.MethodGet, "/v1/users/someone-else/onboarding/stage", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for another user's resources, got %d", rec.Code)
	}
}

func TestUtilitiesEndpointsArePerSession(t *testing.T) {
	router := newTestRouter(t, fakeUpstream())
	token := createSession(t, router)

	req := httptest.NewRequest(http.MethodGet, "/v1/utilities/authorization?provider=Duke+Energy", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var branch struct {
		GreenButton bool `json:"greenButton"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &branch); err != nil {
		t.Fatalf("decode branch: %v", err)
	}
	if !branch.GreenButton {
		t.Error("Duke Energy must take the green button branch")
	}
}

func TestSessionLifecycle(t *testing.T) {
	router := newTestRouter(t, fakeUpstream())
	token := createSession(t, router)

	// Read it back.
	req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var session domain.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.FirstName != "Ada" || session.HasVisitedDashboard {
		t.Errorf("unexpected session %+v", session)
	}

	// Mark dashboard visited.
	req = httptest.NewRequest(http.MethodPut, "/v1/session/dashboard-visited", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	// Logout, then the token is dead.
	req = httptest.NewRequest(http.MethodDelete, "/v1/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 from logout, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", rec.Code)
	}
}

func TestOnboardingMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, fakeUpstream())
	token := createSession(t, router)

	req := httptest.NewRequest(http.MethodGet, "/v1/metrics/onboarding", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
