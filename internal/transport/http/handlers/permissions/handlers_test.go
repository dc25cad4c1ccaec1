package permissionshandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"minutehr/internal/domain/auth"
	"minutehr/internal/domain/permissions"
	"minutehr/internal/transport/http/middleware"
)

type fakeStore struct {
	rows      map[string][]permissions.EffectivePermissionRow
	actions   []permissions.PermissionAction
	workflows []permissions.ApprovalWorkflow
}

func (f *fakeStore) EffectiveRows(_ context.Context, userID string) ([]permissions.EffectivePermissionRow, error) {
	return f.rows[userID], nil
}

func (f *fakeStore) Actions(context.Context) ([]permissions.PermissionAction, error) {
	return f.actions, nil
}

func (f *fakeStore) Workflows(context.Context) ([]permissions.ApprovalWorkflow, error) {
	return f.workflows, nil
}

func (f *fakeStore) FieldPermissions(context.Context) ([]permissions.FieldPermission, error) {
	return []permissions.FieldPermission{
		{ModuleName: "employees", FieldName: "salary", PermissionType: permissions.FieldHidden},
	}, nil
}

const testSecret = "test-secret"

func newTestRouter(t *testing.T) (*chi.Mux, string) {
	t.Helper()
	store := &fakeStore{
		rows: map[string][]permissions.EffectivePermissionRow{
			"u1": {
				{ModuleName: "audit", IsVisible: true, AllowedActions: []permissions.Action{permissions.ActionRead, permissions.ActionExport}},
				{ModuleName: "settings", IsVisible: true, AllowedActions: []permissions.Action{permissions.ActionRead, permissions.ActionUpdate}},
			},
		},
		actions: []permissions.PermissionAction{
			{ActionKey: "delete", Category: "destructive", RequiresApproval: true, RiskLevel: "high"},
			{ActionKey: "export", Category: "data", RequiresApproval: true, RiskLevel: "medium"},
		},
		workflows: []permissions.ApprovalWorkflow{
			{ModuleName: "audit", ActionKey: "export", ApprovalChain: []permissions.Approver{{Role: permissions.RoleAdmin}}},
		},
	}
	resolver, err := permissions.NewResolver(permissions.DefaultPolicySet(), store)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	if err := resolver.LoadCatalog(context.Background()); err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	handler := NewHandler(resolver, nil)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Auth(testSecret))
	router.Route("/permissions", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/me", handler.HandleMe)
		r.Post("/check", handler.HandleCheck)
		r.Post("/fields/check", handler.HandleFieldCheck)
		r.Get("/matrix", handler.HandleMatrix)
		r.Get("/gaps", handler.HandleGaps)
	})

	token, err := auth.GenerateToken(testSecret, auth.Claims{
		UserID: "u1", RoleID: "r1", RoleName: permissions.RoleAuditor, CompanyID: "C1",
	}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return router, token
}

func doRequest(t *testing.T, router http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var envelope map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	}
	return rec, envelope
}

func TestMeReturnsEffectiveRows(t *testing.T) {
	router, token := newTestRouter(t)

	rec, envelope := doRequest(t, router, http.MethodGet, "/permissions/me", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	data := envelope["data"].(map[string]any)
	if data["role"] != permissions.RoleAuditor {
		t.Fatalf("role = %v", data["role"])
	}
	modules := data["modules"].([]any)
	if len(modules) != 2 {
		t.Fatalf("expected 2 module rows, got %d", len(modules))
	}
}

func TestCheckCombinesBothGates(t *testing.T) {
	router, token := newTestRouter(t)

	rec, envelope := doRequest(t, router, http.MethodPost, "/permissions/check", token,
		`{"module": "audit", "action": "read"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	data := envelope["data"].(map[string]any)
	if data["allowed"] != true {
		t.Fatalf("auditor with row read must be allowed: %v", data)
	}

	// Role gate blocks approve for Auditor even if a row granted it.
	rec, envelope = doRequest(t, router, http.MethodPost, "/permissions/check", token,
		`{"module": "audit", "action": "approve"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data = envelope["data"].(map[string]any)
	if data["allowed"] != false || data["roleAllowed"] != false {
		t.Fatalf("approve must be denied by the role gate: %v", data)
	}
}

func TestCheckReportsApprovalRequirement(t *testing.T) {
	router, token := newTestRouter(t)

	rec, envelope := doRequest(t, router, http.MethodPost, "/permissions/check", token,
		`{"module": "audit", "action": "export"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data := envelope["data"].(map[string]any)
	if data["requiresApproval"] != true {
		t.Fatalf("configured workflow plus catalog flag must require approval: %v", data)
	}
	chain := data["approvalChain"].([]any)
	if len(chain) != 1 {
		t.Fatalf("expected a one-step chain, got %v", chain)
	}
}

func TestGapsListsUncoveredRiskyActions(t *testing.T) {
	router, token := newTestRouter(t)

	rec, envelope := doRequest(t, router, http.MethodGet, "/permissions/gaps", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data := envelope["data"].(map[string]any)
	// The audit module has an export workflow but no delete workflow.
	auditGaps := data["audit"].([]any)
	if len(auditGaps) != 1 || auditGaps[0] != "delete" {
		t.Fatalf("audit gaps = %v, want [delete]", auditGaps)
	}
}

func TestFieldCheckHiddenField(t *testing.T) {
	router, token := newTestRouter(t)

	rec, envelope := doRequest(t, router, http.MethodPost, "/permissions/fields/check", token,
		`{"module": "employees", "field": "salary", "access": "read"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data := envelope["data"].(map[string]any)
	if data["allowed"] != false {
		t.Fatalf("hidden field must deny read: %v", data)
	}
	if data["payrollVisibility"] != string(permissions.VisibilityMasked) {
		t.Fatalf("auditor payroll visibility = %v, want masked", data["payrollVisibility"])
	}

	rec, envelope = doRequest(t, router, http.MethodPost, "/permissions/fields/check", token,
		`{"module": "employees", "field": "first_name"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data = envelope["data"].(map[string]any)
	if data["allowed"] != true {
		t.Fatalf("unconfigured field must default open: %v", data)
	}
}
