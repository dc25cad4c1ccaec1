package db

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"minutehr/internal/domain/auth"
	"minutehr/internal/domain/permissions"
	"minutehr/internal/platform/config"
)

// Seed is idempotent: every ensure step checks before inserting, so the
// server can run it on every boot.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	companyID, err := ensureCompany(ctx, pool, cfg.SeedCompanyName)
	if err != nil {
		return err
	}

	locationID, err := ensureOrgUnit(ctx, pool, "locations", "company_id", companyID, "Headquarters")
	if err != nil {
		return err
	}
	departmentID, err := ensureOrgUnit(ctx, pool, "departments", "location_id", locationID, "People Operations")
	if err != nil {
		return err
	}
	teamID, err := ensureOrgUnit(ctx, pool, "teams", "department_id", departmentID, "Core HR")
	if err != nil {
		return err
	}

	policies := permissions.DefaultPolicySet()

	roleIDs, err := ensureRoles(ctx, pool, companyID, policies)
	if err != nil {
		return err
	}

	if err := ensureSettingDefinitions(ctx, pool); err != nil {
		return err
	}
	if err := ensurePermissionActions(ctx, pool); err != nil {
		return err
	}
	if err := ensureApprovalWorkflows(ctx, pool); err != nil {
		return err
	}
	if err := ensureFieldPermissions(ctx, pool); err != nil {
		return err
	}

	adminID, err := ensureAdminUser(ctx, pool, companyID, locationID, departmentID, teamID, roleIDs[permissions.RoleAdmin], cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	if err != nil {
		return err
	}
	if adminID != "" {
		if err := ensureUserGrants(ctx, pool, adminID, permissions.RoleAdmin, policies); err != nil {
			return err
		}
	}

	return nil
}

func ensureCompany(ctx context.Context, pool *pgxpool.Pool, name string) (string, error) {
	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM companies WHERE name = $1", name).Scan(&id)
	if err == nil {
		return id, nil
	}

	err = pool.QueryRow(ctx, "INSERT INTO companies (name) VALUES ($1) RETURNING id", name).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func ensureOrgUnit(ctx context.Context, pool *pgxpool.Pool, table, parentCol, parentID, name string) (string, error) {
	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM "+table+" WHERE "+parentCol+" = $1 AND name = $2", parentID, name).Scan(&id)
	if err == nil {
		return id, nil
	}

	err = pool.QueryRow(ctx, "INSERT INTO "+table+" ("+parentCol+", name) VALUES ($1, $2) RETURNING id", parentID, name).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func ensureRoles(ctx context.Context, pool *pgxpool.Pool, companyID string, policies permissions.PolicySet) (map[string]string, error) {
	roleIDs := map[string]string{}
	for roleName := range policies.Roles {
		var id string
		err := pool.QueryRow(ctx, "SELECT id FROM roles WHERE company_id = $1 AND name = $2", companyID, roleName).Scan(&id)
		if err == nil {
			roleIDs[roleName] = id
			continue
		}

		err = pool.QueryRow(ctx, "INSERT INTO roles (company_id, name) VALUES ($1, $2) RETURNING id", companyID, roleName).Scan(&id)
		if err != nil {
			return nil, err
		}
		roleIDs[roleName] = id
	}
	return roleIDs, nil
}

type seedDefinition struct {
	module       string
	key          string
	name         string
	valueType    string
	defaultValue any
	category     string
	sortOrder    int
}

var seedDefinitions = []seedDefinition{
	{"timetracking", "allow_manual_entry", "Allow manual time entries", "boolean", false, "entries", 10},
	{"timetracking", "rounding_minutes", "Round entries to minutes", "number", 15, "entries", 20},
	{"timetracking", "overtime_notification", "Notify managers on overtime", "boolean", true, "notifications", 30},
	{"absence", "auto_approve_threshold_days", "Auto-approve requests up to (days)", "number", 0, "approvals", 10},
	{"absence", "require_medical_certificate", "Require certificate for sick leave", "boolean", true, "compliance", 20},
	{"absence", "carryover_enabled", "Allow vacation carryover", "boolean", true, "entitlements", 30},
	{"employees", "show_birthdays", "Show birthdays in directory", "boolean", true, "directory", 10},
	{"employees", "default_page_size", "Directory page size", "number", 25, "directory", 20},
	{"documents", "max_upload_mb", "Maximum upload size (MB)", "number", 10, "uploads", 10},
	{"documents", "allowed_extensions", "Allowed file extensions", "array", []string{"pdf", "png", "jpg", "docx"}, "uploads", 20},
	{"audit", "retention_days", "Audit retention (days)", "number", 365, "retention", 10},
}

func ensureSettingDefinitions(ctx context.Context, pool *pgxpool.Pool) error {
	for _, def := range seedDefinitions {
		defaultJSON, err := json.Marshal(def.defaultValue)
		if err != nil {
			return err
		}
		_, err = pool.Exec(ctx, `
      INSERT INTO settings_definitions (module, key, name, value_type, default_value, category, sort_order)
      VALUES ($1, $2, $3, $4, $5, $6, $7)
      ON CONFLICT (module, key) DO NOTHING
    `, def.module, def.key, def.name, def.valueType, defaultJSON, def.category, def.sortOrder)
		if err != nil {
			return err
		}
	}
	return nil
}

func ensurePermissionActions(ctx context.Context, pool *pgxpool.Pool) error {
	actions := []struct {
		key              string
		category         string
		requiresApproval bool
		riskLevel        string
	}{
		{"read", "basic", false, "low"},
		{"create", "basic", false, "low"},
		{"update", "basic", false, "medium"},
		{"delete", "destructive", true, "high"},
		{"approve", "workflow", false, "medium"},
		{"export", "data", true, "medium"},
		{"impersonate", "administrative", true, "critical"},
	}
	for _, action := range actions {
		_, err := pool.Exec(ctx, `
      INSERT INTO permission_actions (action_key, category, requires_approval, risk_level)
      VALUES ($1, $2, $3, $4)
      ON CONFLICT (action_key) DO NOTHING
    `, action.key, action.category, action.requiresApproval, action.riskLevel)
		if err != nil {
			return err
		}
	}
	return nil
}

func ensureApprovalWorkflows(ctx context.Context, pool *pgxpool.Pool) error {
	workflows := []struct {
		module string
		action string
		chain  []permissions.Approver
	}{
		{"employees", "delete", []permissions.Approver{{Role: permissions.RoleHR}, {Role: permissions.RoleAdmin}}},
		{"documents", "delete", []permissions.Approver{{Role: permissions.RoleHR}}},
		{"audit", "export", []permissions.Approver{{Role: permissions.RoleAdmin}}},
	}
	for _, wf := range workflows {
		chainJSON, err := json.Marshal(wf.chain)
		if err != nil {
			return err
		}
		_, err = pool.Exec(ctx, `
      INSERT INTO approval_workflows (module_name, action_key, approval_chain)
      VALUES ($1, $2, $3)
      ON CONFLICT (module_name, action_key) DO NOTHING
    `, wf.module, wf.action, chainJSON)
		if err != nil {
			return err
		}
	}
	return nil
}

func ensureFieldPermissions(ctx context.Context, pool *pgxpool.Pool) error {
	fields := []struct {
		module, field, permType string
	}{
		{"employees", "salary", "hidden"},
		{"employees", "iban", "read"},
		{"employees", "notes", "write"},
		{"documents", "signed_url", "read"},
	}
	for _, f := range fields {
		_, err := pool.Exec(ctx, `
      INSERT INTO field_permissions (module_name, field_name, permission_type)
      VALUES ($1, $2, $3)
      ON CONFLICT (module_name, field_name) DO NOTHING
    `, f.module, f.field, f.permType)
		if err != nil {
			return err
		}
	}
	return nil
}

func ensureAdminUser(ctx context.Context, pool *pgxpool.Pool, companyID, locationID, departmentID, teamID, roleID, email, password string) (string, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return "", nil
	}

	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM users WHERE company_id = $1 AND email = $2", companyID, email).Scan(&id)
	if err == nil {
		return id, nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}

	err = pool.QueryRow(ctx, `
    INSERT INTO users (company_id, location_id, department_id, team_id, email, password_hash, role_id)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    RETURNING id
  `, companyID, locationID, departmentID, teamID, email, hash, roleID).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ensureUserGrants materializes the static policy intersection into per-user
// rows so get_user_effective_permissions has something to serve on day one.
func ensureUserGrants(ctx context.Context, pool *pgxpool.Pool, userID, roleName string, policies permissions.PolicySet) error {
	emptyFlags := []byte("{}")
	for moduleName, byRole := range policies.Modules {
		grant, ok := byRole[roleName]
		if !ok {
			continue
		}
		actions := make([]string, 0, len(grant.Actions))
		for _, action := range grant.Actions {
			if policies.Allows(roleName, moduleName, action) {
				actions = append(actions, string(action))
			}
		}
		_, err := pool.Exec(ctx, `
      INSERT INTO user_module_permissions
        (user_id, module_name, is_visible, allowed_actions,
         allowed_notifications, report_permissions, audit_permissions, automation_permissions)
      VALUES ($1, $2, true, $3, $4, $4, $4, $4)
      ON CONFLICT (user_id, module_name) DO NOTHING
    `, userID, moduleName, actions, emptyFlags)
		if err != nil {
			return err
		}
	}
	return nil
}
