package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"call-analytics/internal/analytics"
	"call-analytics/internal/apperr"
	"call-analytics/internal/assistants"
	"call-analytics/internal/audit"
	"call-analytics/internal/auth"
	"call-analytics/internal/calls"
	"call-analytics/internal/callsync"
	"call-analytics/internal/clients"
	"call-analytics/internal/jobs"
	"call-analytics/internal/provider"
	"call-analytics/internal/rbac"
	"call-analytics/internal/rollup"
	"call-analytics/internal/tenancy"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const (
	clientA = "0b6f3c1e-5a0d-4c1f-9d55-3f7b2b7f6a01"
	clientB = "9e2d4a7c-8b1f-4e3a-a6c2-5d9f0e1b2c03"
	secret  = "whsec"
)

var now = time.Date(2024, 6, 8, 15, 0, 0, 0, time.UTC)

type fakeCalls struct {
	res callsync.Result
	err error
}

func (f *fakeCalls) Sync(context.Context, int) (callsync.Result, error) { return f.res, f.err }

type fakeRollup struct {
	res    rollup.Result
	err    error
	window int
}

func (f *fakeRollup) RollupAll(_ context.Context, windowDays int) (rollup.Result, error) {
	f.window = windowDays
	return f.res, f.err
}

type fakeAssistantSource struct {
	list []provider.Assistant
	err  error
}

func (f *fakeAssistantSource) ListAssistants(context.Context) ([]provider.Assistant, error) {
	return f.list, f.err
}

type testEnv struct {
	router       *gin.Engine
	callRepo     *calls.MemoryRepo
	assistants   *assistants.MemoryRepo
	assistantSrc *fakeAssistantSource
	audit        *audit.MemoryRepo
	calls        *fakeCalls
	rollup       *fakeRollup
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		callRepo:     calls.NewMemoryRepo(),
		assistants:   assistants.NewMemoryRepo(),
		assistantSrc: &fakeAssistantSource{},
		audit:        audit.NewMemoryRepo(),
		calls:        &fakeCalls{res: callsync.Result{Success: true}},
		rollup:       &fakeRollup{},
	}
	clock := func() time.Time { return now }
	dir := clients.NewMemoryDirectory(clientA, clientB)
	syncer := assistants.NewSyncer(env.assistantSrc, env.assistants, dir, "US", nil)
	calc := rollup.NewCalculator(env.callRepo, 500, time.UTC)

	h := Handlers{
		Engine:        analytics.NewEngine(env.callRepo, rollup.NewMemoryRepo(), calc, analytics.Options{Clock: clock}),
		Resolver:      tenancy.NewResolver(dir, syncer, time.UTC),
		Calls:         env.calls,
		Rollup:        env.rollup,
		Assistants:    syncer,
		Audit:         audit.NewService(env.audit, nil),
		Location:      time.UTC,
		CallLimit:     100,
		WindowDays:    8,
		WebhookSecret: secret,
		Clock:         clock,
	}

	r := gin.New()
	r.POST("/webhooks/provider/assistants", h.AssistantWebhook)
	v1 := r.Group("/v1", withPrincipalHeader, rbac.RequireTenant())
	v1.GET("/analytics/dashboard", h.Dashboard)
	v1.GET("/analytics/real-time", h.RealTime)
	v1.GET("/analytics/calls", h.ListCalls)
	v1.GET("/analytics/daily", h.DailyView)
	v1.GET("/analytics/weekly", h.WeeklyTrend)
	admin := v1.Group("", rbac.RequireAnyRole(rbac.RoleAdmin))
	admin.POST("/sync", h.TriggerSync)
	admin.POST("/assistants/sync", h.SyncAssistants)
	env.router = r
	return env
}

// withPrincipalHeader stands in for the bearer-token middleware: X-Test-Role and
// X-Test-Client become the request principal.
func withPrincipalHeader(c *gin.Context) {
	role := c.GetHeader("X-Test-Role")
	if role == "" {
		c.Next()
		return
	}
	p := auth.Principal{UserID: "u1", Role: role, ClientID: c.GetHeader("X-Test-Client")}
	p.IsClientUser = rbac.IsClientRole(role)
	c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))
	c.Next()
}

func (e *testEnv) do(method, path, role, client string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	if client != "" {
		req.Header.Set("X-Test-Client", client)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) addCall(t *testing.T, ext, client string, created time.Time) {
	t.Helper()
	_, err := e.callRepo.Upsert(context.Background(), calls.CallRecord{
		ExternalCallID: ext,
		ClientID:       client,
		Status:         calls.StatusCompleted,
		CreatedAt:      created,
	})
	require.NoError(t, err)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestListCalls_PaginationAndTenantIsolation(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 25; i++ {
		env.addCall(t, fmt.Sprintf("a-%02d", i), clientA, now.Add(-time.Duration(i)*time.Minute))
	}
	env.addCall(t, "b-1", clientB, now)

	w := env.do(http.MethodGet, "/v1/analytics/calls?page=3&perPage=10", rbac.RoleClientUser, clientA, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	assert.Len(t, out["calls"], 5)
	pg := out["pagination"].(map[string]any)
	assert.Equal(t, 25.0, pg["total"])
	assert.Equal(t, 3.0, pg["pages"])
	assert.Equal(t, false, pg["hasNext"])
	assert.Equal(t, true, pg["hasPrev"])

	// contradicting clientId from a tenant-bound caller
	w = env.do(http.MethodGet, "/v1/analytics/calls?clientId="+clientB, rbac.RoleClientUser, clientA, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodGet, "/v1/analytics/calls?clientId="+clientB, rbac.RoleAdmin, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["calls"], 1)
}

func TestListCalls_BadInput(t *testing.T) {
	env := newTestEnv(t)

	cases := map[string]int{
		"/v1/analytics/calls?page=0":                      http.StatusBadRequest,
		"/v1/analytics/calls?page=abc":                    http.StatusBadRequest,
		"/v1/analytics/calls?perPage=x":                   http.StatusBadRequest,
		"/v1/analytics/calls?status=exploded":             http.StatusBadRequest,
		"/v1/analytics/calls?dateFrom=2024-13-01":         http.StatusBadRequest,
		"/v1/analytics/calls?clientId=not-a-uuid":         http.StatusBadRequest,
		"/v1/analytics/calls?clientId=" + unknownClientID: http.StatusNotFound,
	}
	for path, want := range cases {
		w := env.do(http.MethodGet, path, rbac.RoleAdmin, "", nil)
		assert.Equal(t, want, w.Code, path)
	}

	w := env.do(http.MethodGet, "/v1/analytics/calls", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

const unknownClientID = "11111111-2222-4333-8444-555555555555"

func TestDashboardAndDailyViews(t *testing.T) {
	env := newTestEnv(t)
	env.addCall(t, "a-1", clientA, now.Add(-time.Hour))
	env.addCall(t, "b-1", clientB, now.Add(-time.Hour))

	w := env.do(http.MethodGet, "/v1/analytics/dashboard", rbac.RoleClientAdmin, clientA, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	metrics := out["metrics"].(map[string]any)
	assert.Equal(t, 1.0, metrics["today"].(map[string]any)["totalCalls"])
	assert.Len(t, metrics["hourly_data"], 24)
	assert.Len(t, metrics["weekly_data"], 7)
	assert.Len(t, out["recent_calls"], 1)

	w = env.do(http.MethodGet, "/v1/analytics/daily?date=2024-06-08", rbac.RoleAdmin, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.0, decode(t, w)["totalCalls"])

	w = env.do(http.MethodGet, "/v1/analytics/daily?date=08-06-2024", rbac.RoleAdmin, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/v1/analytics/weekly?endDate=2024-06-08", rbac.RoleAdmin, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["days"], 7)

	w = env.do(http.MethodGet, "/v1/analytics/real-time", rbac.RoleAdmin, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rt := decode(t, w)
	assert.Equal(t, 2.0, rt["currentMetrics"].(map[string]any)["totalCalls"])
	assert.NotContains(t, rt, "providerStats")
}

func TestTriggerSync(t *testing.T) {
	env := newTestEnv(t)
	env.calls.res = callsync.Result{Success: true, Created: 3, Updated: 2}
	env.rollup.res = rollup.Result{DaysProcessed: 8}

	w := env.do(http.MethodPost, "/v1/sync", rbac.RoleAdmin, "", []byte(`{"type":"all"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, 3.0, out["newCalls"])
	assert.Equal(t, 2.0, out["updatedCalls"])
	assert.Equal(t, 8.0, out["daysProcessed"])
	assert.Equal(t, 8, env.rollup.window)

	w = env.do(http.MethodPost, "/v1/sync", rbac.RoleAdmin, "", []byte(`{"type":"metrics"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, decode(t, w), "newCalls")

	evs := env.audit.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, audit.EventTypeSyncTriggered, evs[0].Type)
}

func TestTriggerSync_Errors(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/v1/sync", rbac.RoleAdmin, "", []byte(`{"type":"everything"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/v1/sync", rbac.RoleClientAdmin, clientA, []byte(`{"type":"calls"}`))
	assert.Equal(t, http.StatusForbidden, w.Code)

	env.calls.err = apperr.Wrap(apperr.KindConflict, "call sync already running", jobs.ErrAlreadyRunning)
	w = env.do(http.MethodPost, "/v1/sync", rbac.RoleAdmin, "", []byte(`{"type":"calls"}`))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])

	env.calls.err = apperr.Upstream("list provider calls", errors.New("dial tcp: refused"))
	w = env.do(http.MethodPost, "/v1/sync", rbac.RoleAdmin, "", []byte(`{"type":"calls"}`))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	out := decode(t, w)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "call provider unavailable", out["error"])
	assert.NotContains(t, w.Body.String(), "refused")
}

func TestSyncAssistants_ReportsPerAssistantFailures(t *testing.T) {
	env := newTestEnv(t)
	env.assistantSrc.list = []provider.Assistant{
		{ID: "asst_1", Name: "Intake", IsActive: true, Metadata: provider.AssistantMetadata{ClientID: clientA}},
		{Config: []byte(`{"name":"no id"}`), DecodeErr: errors.New("assistant id missing")},
		{ID: "asst_3", Name: "Overflow"},
	}

	w := env.do(http.MethodPost, "/v1/assistants/sync", rbac.RoleAdmin, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	assert.Equal(t, true, out["success"])
	assert.Len(t, out["assistants"], 2)
	assert.Equal(t, 1.0, out["failed"])
	assert.Equal(t, []any{"#1: malformed assistant"}, out["errors"])

	stored, err := env.assistants.Get(context.Background(), "asst_3")
	require.NoError(t, err)
	assert.Equal(t, "Overflow", stored.Name)

	evs := env.audit.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, audit.EventTypeAssistantsSynced, evs[0].Type)

	env.assistantSrc.err = apperr.Upstream("list assistants", errors.New("dial tcp: refused"))
	w = env.do(http.MethodPost, "/v1/assistants/sync", rbac.RoleAdmin, "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "refused")
}

func TestAssistantWebhook(t *testing.T) {
	env := newTestEnv(t)
	post := func(body []byte, sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/provider/assistants", bytes.NewReader(body))
		req.Header.Set(provider.SignatureHeader, sig)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		return w
	}

	created := []byte(`{"type":"assistant.created","assistant":{"id":"asst_1","name":"Intake","is_active":true,"metadata":{"client_id":"` + clientA + `"}}}`)
	assert.Equal(t, http.StatusUnauthorized, post(created, "deadbeef").Code)

	w := post(created, provider.Sign(secret, created))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stored, err := env.assistants.Get(context.Background(), "asst_1")
	require.NoError(t, err)
	assert.Equal(t, clientA, stored.Owner())

	// the assistant is now resolvable for its own tenant only
	w = env.do(http.MethodGet, "/v1/analytics/dashboard?assistantId=asst_1", rbac.RoleClientUser, clientA, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodGet, "/v1/analytics/dashboard?assistantId=asst_1", rbac.RoleClientUser, clientB, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	bad := []byte(`{"type":"assistant.exploded","assistant":{"id":"asst_1"}}`)
	assert.Equal(t, http.StatusBadRequest, post(bad, provider.Sign(secret, bad)).Code)

	deleted := []byte(`{"type":"assistant.deleted","assistant":{"id":"asst_1"}}`)
	require.Equal(t, http.StatusOK, post(deleted, provider.Sign(secret, deleted)).Code)
	_, err = env.assistants.Get(context.Background(), "asst_1")
	assert.ErrorIs(t, err, assistants.ErrNotFound)

	evs := env.audit.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, audit.EventTypeAssistantChanged, evs[0].Type)
	assert.Equal(t, clientA, evs[0].ClientID)
	assert.Equal(t, audit.EventTypeAssistantDeleted, evs[1].Type)
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/sync", RateLimit(rate.NewLimiter(rate.Every(time.Hour), 1)), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for i, want := range []int{http.StatusNoContent, http.StatusTooManyRequests} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sync", nil))
		assert.Equal(t, want, w.Code, "request %d", i)
	}
}
