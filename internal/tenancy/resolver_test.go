package tenancy

import (
	"context"
	"net/http"
	"testing"
	"time"

	"call-analytics/internal/apperr"
	"call-analytics/internal/auth"
	"call-analytics/internal/rbac"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	clientA = "0f8c1d2e-3b4a-4c5d-8e9f-0a1b2c3d4e5f"
	clientB = "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d"
)

type fakeDir struct {
	clients    map[string]bool
	assistants map[string]string
}

func (f fakeDir) ClientExists(_ context.Context, id string) (bool, error) {
	return f.clients[id], nil
}

func (f fakeDir) AssistantOwner(_ context.Context, id string) (string, bool, error) {
	owner, ok := f.assistants[id]
	return owner, ok, nil
}

func newResolver() *Resolver {
	dir := fakeDir{
		clients:    map[string]bool{clientA: true, clientB: true},
		assistants: map[string]string{"asst-a": clientA, "asst-b": clientB, "asst-free": ""},
	}
	return NewResolver(dir, dir, time.UTC)
}

func clientUser(clientID string) *auth.Principal {
	return &auth.Principal{UserID: "u1", Role: rbac.RoleClientUser, ClientID: clientID, IsClientUser: true}
}

func admin() *auth.Principal {
	return &auth.Principal{UserID: "root", Role: rbac.RoleAdmin}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	return apperr.HTTPStatus(err)
}

func TestResolve_NoPrincipal(t *testing.T) {
	_, err := newResolver().Resolve(context.Background(), nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestResolve_ClientUserAlwaysOwnClient(t *testing.T) {
	r := newResolver()
	ctx := context.Background()

	s, err := r.Resolve(ctx, clientUser(clientA), "", "")
	require.NoError(t, err)
	assert.Equal(t, Scope{ClientID: clientA}, s)

	s, err = r.Resolve(ctx, clientUser(clientA), clientA, "asst-a")
	require.NoError(t, err)
	assert.Equal(t, Scope{ClientID: clientA, AssistantID: "asst-a"}, s)
}

func TestResolve_ClientUserContradictingClientRejected(t *testing.T) {
	_, err := newResolver().Resolve(context.Background(), clientUser(clientA), clientB, "")
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
}

func TestResolve_ClientUserForeignAssistantRejected(t *testing.T) {
	r := newResolver()
	ctx := context.Background()

	_, err := r.Resolve(ctx, clientUser(clientA), "", "asst-b")
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	_, err = r.Resolve(ctx, clientUser(clientA), "", "asst-free")
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	_, err = r.Resolve(ctx, clientUser(clientA), "", "asst-missing")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestResolve_AdminVerbatimAndGlobal(t *testing.T) {
	r := newResolver()
	ctx := context.Background()

	s, err := r.Resolve(ctx, admin(), "", "")
	require.NoError(t, err)
	assert.True(t, s.IsGlobal())

	s, err = r.Resolve(ctx, admin(), clientB, "asst-b")
	require.NoError(t, err)
	assert.Equal(t, Scope{ClientID: clientB, AssistantID: "asst-b"}, s)

	_, err = r.Resolve(ctx, admin(), "2b3c4d5e-6f7a-4b8c-9d0e-1f2a3b4c5d6e", "")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestResolve_MalformedIDs(t *testing.T) {
	r := newResolver()
	ctx := context.Background()

	_, err := r.Resolve(ctx, admin(), "not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	assert.Equal(t, "invalid clientId", apperr.PublicMessage(err))

	_, err = r.Resolve(ctx, admin(), "", "bad id;drop")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestResolve_UnknownRoleForbidden(t *testing.T) {
	_, err := newResolver().Resolve(context.Background(), &auth.Principal{UserID: "x", Role: "guest"}, "", "")
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
}

func TestFilter_ParsesRangeAndFlags(t *testing.T) {
	f, err := newResolver().Filter(context.Background(), clientUser(clientA), FilterRequest{
		Status:    "completed",
		Qualified: "true",
		DateFrom:  "2024-05-01",
		DateTo:    "2024-05-03",
	})
	require.NoError(t, err)
	assert.Equal(t, Scope{ClientID: clientA}, f.Scope)
	assert.Equal(t, "completed", f.Status)
	require.NotNil(t, f.Qualified)
	assert.True(t, *f.Qualified)
	require.NotNil(t, f.Range)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), f.Range.From)
	assert.Equal(t, time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC), f.Range.To)
	assert.True(t, f.Range.Contains(time.Date(2024, 5, 3, 23, 59, 0, 0, time.UTC)))
}

func TestFilter_RejectsMalformedInput(t *testing.T) {
	r := newResolver()
	ctx := context.Background()

	for _, req := range []FilterRequest{
		{Status: "exploded"},
		{Qualified: "maybe"},
		{DateFrom: "05/01/2024"},
		{DateFrom: "2024-05-03", DateTo: "2024-05-01"},
	} {
		_, err := r.Filter(ctx, admin(), req)
		assert.Equal(t, http.StatusBadRequest, statusOf(t, err), "%+v", req)
	}
}

func TestNewValidator_RegistersIDToken(t *testing.T) {
	v := NewValidator()
	type target struct {
		ID string `validate:"idtoken"`
	}
	assert.NoError(t, v.Struct(target{ID: "asst_01-AB"}))
	assert.Error(t, v.Struct(target{ID: "bad id;"}))
}
