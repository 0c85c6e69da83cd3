package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"call-analytics/internal/auth"

	"github.com/gin-gonic/gin"
)

func withPrincipal(p auth.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

func serve(t *testing.T, handlers ...gin.HandlerFunc) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) { c.Status(200) })
	r.GET("/x", handlers...)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole_SuperAdminBypasses(t *testing.T) {
	code := serve(t, withPrincipal(auth.Principal{UserID: "u", Role: RoleSuperAdmin}), RequireTenant(), RequireAnyRole(RoleAdmin))
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_ClientDeniedOnAdminRoute(t *testing.T) {
	p := auth.Principal{UserID: "u", Role: RoleClientAdmin, ClientID: "c1", IsClientUser: true}
	code := serve(t, withPrincipal(p), RequireTenant(), RequireAnyRole(RoleAdmin))
	if code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireTenant_ClientRoleNeedsBinding(t *testing.T) {
	code := serve(t, withPrincipal(auth.Principal{UserID: "u", Role: RoleClientUser}), RequireTenant())
	if code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireTenant_NoPrincipal(t *testing.T) {
	code := serve(t, RequireTenant())
	if code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}
