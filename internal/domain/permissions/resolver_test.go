package permissions

import (
	"context"
	"errors"
	"testing"
)

type fakeStore struct {
	rows      map[string][]EffectivePermissionRow
	actions   []PermissionAction
	workflows []ApprovalWorkflow
	fields    []FieldPermission
	rowsErr   error
}

func (f *fakeStore) EffectiveRows(_ context.Context, userID string) ([]EffectivePermissionRow, error) {
	if f.rowsErr != nil {
		return nil, f.rowsErr
	}
	return f.rows[userID], nil
}

func (f *fakeStore) Actions(_ context.Context) ([]PermissionAction, error)   { return f.actions, nil }
func (f *fakeStore) Workflows(_ context.Context) ([]ApprovalWorkflow, error) { return f.workflows, nil }
func (f *fakeStore) FieldPermissions(_ context.Context) ([]FieldPermission, error) {
	return f.fields, nil
}

func newTestResolver(t *testing.T, store *fakeStore) *Resolver {
	t.Helper()
	resolver, err := NewResolver(DefaultPolicySet(), store)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	if err := resolver.LoadCatalog(context.Background()); err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return resolver
}

func absenceRow() EffectivePermissionRow {
	return EffectivePermissionRow{
		ModuleName:     "absence",
		IsVisible:      true,
		AllowedActions: []Action{ActionRead, ActionCreate},
		AllowedNotifications: map[string]bool{
			"request_submitted": true,
		},
		ReportPermissions:     map[string]bool{"team_summary": true},
		AuditPermissions:      map[string]bool{},
		AutomationPermissions: map[string]bool{"auto_approve_short": false},
	}
}

func TestModuleAccessFailsClosed(t *testing.T) {
	store := &fakeStore{rows: map[string][]EffectivePermissionRow{"u1": {absenceRow()}}}
	resolver := newTestResolver(t, store)

	if resolver.HasModuleAccess("u1", "absence") {
		t.Fatal("user not loaded yet; must deny")
	}
	if err := resolver.LoadUser(context.Background(), "u1"); err != nil {
		t.Fatalf("load user: %v", err)
	}
	if !resolver.HasModuleAccess("u1", "absence") {
		t.Fatal("visible row must grant module access")
	}
	if resolver.HasModuleAccess("u1", "nonexistent-module") {
		t.Fatal("missing row must deny")
	}
	if resolver.HasModuleAccess("u2", "absence") {
		t.Fatal("unloaded user must deny")
	}
}

func TestHasActionUsesRowMembership(t *testing.T) {
	store := &fakeStore{rows: map[string][]EffectivePermissionRow{"u1": {absenceRow()}}}
	resolver := newTestResolver(t, store)
	if err := resolver.LoadUser(context.Background(), "u1"); err != nil {
		t.Fatalf("load user: %v", err)
	}

	if !resolver.HasAction("u1", "absence", ActionRead) {
		t.Fatal("read is in the row's allowed set")
	}
	if resolver.HasAction("u1", "absence", ActionApprove) {
		t.Fatal("approve is not in the row's allowed set")
	}
	if resolver.HasAction("u1", "payroll", ActionRead) {
		t.Fatal("missing row must deny")
	}
}

func TestInvisibleRowDeniesActions(t *testing.T) {
	row := absenceRow()
	row.IsVisible = false
	store := &fakeStore{rows: map[string][]EffectivePermissionRow{"u1": {row}}}
	resolver := newTestResolver(t, store)
	if err := resolver.LoadUser(context.Background(), "u1"); err != nil {
		t.Fatalf("load user: %v", err)
	}
	if resolver.HasAction("u1", "absence", ActionRead) {
		t.Fatal("invisible module must deny every action")
	}
}

func TestFieldAccessDefaultsOpen(t *testing.T) {
	store := &fakeStore{
		fields: []FieldPermission{
			{ModuleName: "employees", FieldName: "salary", PermissionType: FieldHidden},
			{ModuleName: "employees", FieldName: "iban", PermissionType: FieldRead},
			{ModuleName: "employees", FieldName: "notes", PermissionType: FieldWrite},
		},
	}
	resolver := newTestResolver(t, store)

	// Unconfigured fields are visible by explicit product decision.
	if !resolver.HasFieldAccess("employees", "first_name", FieldRead) {
		t.Fatal("unconfigured field must default to allowed")
	}
	if !resolver.HasFieldAccess("employees", "first_name", FieldWrite) {
		t.Fatal("unconfigured field must default to writable")
	}
	if resolver.HasFieldAccess("employees", "salary", FieldRead) {
		t.Fatal("hidden field must deny read")
	}
	if resolver.HasFieldAccess("employees", "iban", FieldWrite) {
		t.Fatal("read-only field must deny write")
	}
	if !resolver.HasFieldAccess("employees", "notes", FieldWrite) {
		t.Fatal("write field must allow write")
	}
	if !resolver.HasFieldAccess("employees", "notes", FieldRead) {
		t.Fatal("write field must allow read")
	}
}

func TestRequiresApprovalNeedsCatalogAndWorkflow(t *testing.T) {
	store := &fakeStore{
		actions: []PermissionAction{
			{ActionKey: "delete", Category: "destructive", RequiresApproval: true, RiskLevel: "high"},
			{ActionKey: "export", Category: "data", RequiresApproval: true, RiskLevel: "medium"},
			{ActionKey: "read", Category: "basic", RequiresApproval: false},
		},
		workflows: []ApprovalWorkflow{
			{ModuleName: "employees", ActionKey: "delete", ApprovalChain: []Approver{{Role: RoleHR}, {Role: RoleAdmin}}},
		},
	}
	resolver := newTestResolver(t, store)

	if !resolver.RequiresApproval("employees", "delete") {
		t.Fatal("catalog flag plus workflow must require approval")
	}
	// Risky action without a configured chain: does not require approval.
	if resolver.RequiresApproval("employees", "export") {
		t.Fatal("no workflow configured; approval not required")
	}
	if resolver.RequiresApproval("employees", "read") {
		t.Fatal("catalog does not flag read")
	}

	chain := resolver.ApprovalChain("employees", "delete")
	if len(chain) != 2 || chain[0].Role != RoleHR || chain[1].Role != RoleAdmin {
		t.Fatalf("unexpected chain: %+v", chain)
	}
	if resolver.ApprovalChain("employees", "export") != nil {
		t.Fatal("no chain expected")
	}

	missing := resolver.MissingWorkflows("employees")
	if len(missing) != 1 || missing[0] != "export" {
		t.Fatalf("missing workflows = %v, want [export]", missing)
	}
}

func TestRowFlagChecks(t *testing.T) {
	store := &fakeStore{rows: map[string][]EffectivePermissionRow{"u1": {absenceRow()}}}
	resolver := newTestResolver(t, store)
	if err := resolver.LoadUser(context.Background(), "u1"); err != nil {
		t.Fatalf("load user: %v", err)
	}

	if !resolver.CanReceiveNotification("u1", "absence", "request_submitted") {
		t.Fatal("flagged notification must be allowed")
	}
	if resolver.CanReceiveNotification("u1", "absence", "request_rejected") {
		t.Fatal("missing key must deny")
	}
	if !resolver.HasReportAccess("u1", "absence", "team_summary") {
		t.Fatal("granted report must be allowed")
	}
	if resolver.HasAuditAccess("u1", "absence", "setting_changes") {
		t.Fatal("empty audit map must deny")
	}
	if resolver.CanManageAutomations("u1", "absence", "auto_approve_short") {
		t.Fatal("false flag must deny")
	}
	if resolver.CanManageAutomations("u2", "absence", "auto_approve_short") {
		t.Fatal("unloaded user must deny")
	}
}

func TestInvalidateForcesReload(t *testing.T) {
	store := &fakeStore{rows: map[string][]EffectivePermissionRow{"u1": {absenceRow()}}}
	resolver := newTestResolver(t, store)
	ctx := context.Background()

	if err := resolver.LoadUser(ctx, "u1"); err != nil {
		t.Fatalf("load user: %v", err)
	}
	resolver.Invalidate("u1")
	if resolver.UserLoaded("u1") {
		t.Fatal("invalidate must drop the session rows")
	}
	if _, err := resolver.EffectiveRows("u1"); !errors.Is(err, ErrUserNotLoaded) {
		t.Fatalf("expected ErrUserNotLoaded, got %v", err)
	}
}

func TestLoadUserSurfacesStoreError(t *testing.T) {
	store := &fakeStore{rowsErr: errors.New("rpc failed")}
	resolver := newTestResolver(t, store)
	if err := resolver.LoadUser(context.Background(), "u1"); err == nil {
		t.Fatal("store failure must surface")
	}
}
