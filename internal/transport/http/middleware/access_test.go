package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"minutehr/internal/domain/auth"
	"minutehr/internal/domain/permissions"
)

type fakePermStore struct {
	rows map[string][]permissions.EffectivePermissionRow
}

func (f *fakePermStore) EffectiveRows(_ context.Context, userID string) ([]permissions.EffectivePermissionRow, error) {
	return f.rows[userID], nil
}

func (f *fakePermStore) Actions(context.Context) ([]permissions.PermissionAction, error) {
	return nil, nil
}

func (f *fakePermStore) Workflows(context.Context) ([]permissions.ApprovalWorkflow, error) {
	return nil, nil
}

func (f *fakePermStore) FieldPermissions(context.Context) ([]permissions.FieldPermission, error) {
	return nil, nil
}

func withClaims(r *http.Request, claims auth.Claims) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), claimsKey, claims))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireActionDeniesAnonymous(t *testing.T) {
	resolver, err := permissions.NewResolver(permissions.DefaultPolicySet(), &fakePermStore{})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}

	guard := RequireAction(resolver, "audit", permissions.ActionRead)(okHandler())
	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireActionDeniesByRoleGate(t *testing.T) {
	store := &fakePermStore{rows: map[string][]permissions.EffectivePermissionRow{
		"u1": {{ModuleName: "audit", IsVisible: true, AllowedActions: []permissions.Action{permissions.ActionRead}}},
	}}
	resolver, err := permissions.NewResolver(permissions.DefaultPolicySet(), store)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}

	// Employee has no audit module grant, so even a permissive user row
	// cannot get through.
	guard := RequireAction(resolver, "audit", permissions.ActionRead)(okHandler())
	rec := httptest.NewRecorder()
	req := withClaims(httptest.NewRequest(http.MethodGet, "/", nil), auth.Claims{UserID: "u1", RoleName: permissions.RoleEmployee})
	guard.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRequireActionDeniesByUserRow(t *testing.T) {
	store := &fakePermStore{rows: map[string][]permissions.EffectivePermissionRow{}}
	resolver, err := permissions.NewResolver(permissions.DefaultPolicySet(), store)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}

	guard := RequireAction(resolver, "audit", permissions.ActionRead)(okHandler())
	rec := httptest.NewRecorder()
	req := withClaims(httptest.NewRequest(http.MethodGet, "/", nil), auth.Claims{UserID: "u1", RoleName: permissions.RoleAuditor})
	guard.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRequireActionAllowsWhenBothGatesPass(t *testing.T) {
	store := &fakePermStore{rows: map[string][]permissions.EffectivePermissionRow{
		"u1": {{ModuleName: "audit", IsVisible: true, AllowedActions: []permissions.Action{permissions.ActionRead}}},
	}}
	resolver, err := permissions.NewResolver(permissions.DefaultPolicySet(), store)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}

	guard := RequireAction(resolver, "audit", permissions.ActionRead)(okHandler())
	rec := httptest.NewRecorder()
	req := withClaims(httptest.NewRequest(http.MethodGet, "/", nil), auth.Claims{UserID: "u1", RoleName: permissions.RoleAuditor})
	guard.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRequireAuth(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireAuth(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := withClaims(httptest.NewRequest(http.MethodGet, "/", nil), auth.Claims{UserID: "u1"})
	RequireAuth(okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
