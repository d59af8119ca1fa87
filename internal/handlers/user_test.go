package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/vetrai/auth-service/internal/services"
)

func loginAs(t *testing.T, env *testEnv, email, password string) string {
	t.Helper()
	login, err := env.auth.Login(context.Background(), &services.LoginRequest{Email: email, Password: password}, "", "")
	if err != nil {
		t.Fatalf("Login(%s) error = %v", email, err)
	}
	return login.AccessToken
}

func TestUserList_RoleGate(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "user@x.com", "Secret123!", services.RoleUser, 1)
	env.seed(t, "admin@x.com", "Secret123!", services.RoleOrgAdmin, 1)

	// A base user never reaches the handler.
	userToken := loginAs(t, env, "user@x.com", "Secret123!")
	w := env.do(t, http.MethodGet, "/api/users", userToken, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("user listing users: status = %d, expected 403", w.Code)
	}

	// No token at all.
	w = env.do(t, http.MethodGet, "/api/users", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous listing users: status = %d, expected 401", w.Code)
	}

	adminToken := loginAs(t, env, "admin@x.com", "Secret123!")
	w = env.do(t, http.MethodGet, "/api/users", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin listing users: status = %d, body %s", w.Code, w.Body.String())
	}
	if body := decode(t, w); body["total"].(float64) != 2 {
		t.Errorf("total = %v, expected 2", body["total"])
	}
}

func TestUserGet_OrgScope(t *testing.T) {
	env := newTestEnv(t)
	target := env.seed(t, "target@x.com", "Secret123!", services.RoleUser, 2)
	env.seed(t, "admin1@x.com", "Secret123!", services.RoleOrgAdmin, 1)
	env.seed(t, "super@x.com", "Secret123!", services.RoleSuperAdmin, 1)

	// org_admin of a different org is scoped out.
	crossToken := loginAs(t, env, "admin1@x.com", "Secret123!")
	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d", target.ID), crossToken, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("cross-org get: status = %d, expected 403", w.Code)
	}

	// super_admin crosses organizations.
	superToken := loginAs(t, env, "super@x.com", "Secret123!")
	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d", target.ID), superToken, nil)
	if w.Code != http.StatusOK {
		t.Errorf("super_admin get: status = %d, body %s", w.Code, w.Body.String())
	}

	// Missing user, bad id.
	w = env.do(t, http.MethodGet, "/api/users/99999", superToken, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing user: status = %d, expected 404", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/users/abc", superToken, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric id: status = %d, expected 400", w.Code)
	}
}

func TestUserUpdate_RoleAssignment(t *testing.T) {
	env := newTestEnv(t)
	target := env.seed(t, "target@x.com", "Secret123!", services.RoleUser, 1)
	env.seed(t, "admin@x.com", "Secret123!", services.RoleOrgAdmin, 1)

	adminToken := loginAs(t, env, "admin@x.com", "Secret123!")
	path := fmt.Sprintf("/api/users/%d", target.ID)

	// org_admin may not grant super_admin.
	w := env.do(t, http.MethodPut, path, adminToken, gin.H{"role": "super_admin"})
	if w.Code != http.StatusForbidden {
		t.Errorf("granting super_admin: status = %d, expected 403", w.Code)
	}

	// Valid promotion within scope.
	w = env.do(t, http.MethodPut, path, adminToken, gin.H{"role": "support_agent"})
	if w.Code != http.StatusOK {
		t.Fatalf("promotion: status = %d, body %s", w.Code, w.Body.String())
	}
	if body := decode(t, w); body["role"] != "support_agent" {
		t.Errorf("role = %v, expected support_agent", body["role"])
	}
}

func TestUserDeactivate_SuperAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	target := env.seed(t, "target@x.com", "Secret123!", services.RoleUser, 1)
	env.seed(t, "admin@x.com", "Secret123!", services.RoleOrgAdmin, 1)
	env.seed(t, "super@x.com", "Secret123!", services.RoleSuperAdmin, 1)

	path := fmt.Sprintf("/api/users/%d", target.ID)
	targetToken := loginAs(t, env, "target@x.com", "Secret123!")

	// The delete route requires super_admin rank.
	adminToken := loginAs(t, env, "admin@x.com", "Secret123!")
	w := env.do(t, http.MethodDelete, path, adminToken, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("org_admin delete: status = %d, expected 403", w.Code)
	}

	superToken := loginAs(t, env, "super@x.com", "Secret123!")
	w = env.do(t, http.MethodDelete, path, superToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("super_admin delete: status = %d, body %s", w.Code, w.Body.String())
	}

	// The deactivated account's sessions died with it.
	w = env.do(t, http.MethodGet, "/api/auth/me", targetToken, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("deactivated user's token: status = %d, expected 401", w.Code)
	}

	// And it can no longer log in.
	w = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "target@x.com", "password": "Secret123!"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("deactivated login: status = %d, expected 401", w.Code)
	}
}
