package permissions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store loads the dynamic permission tables from Postgres. Per-user rows come
// from the get_user_effective_permissions SQL function, which pre-joins role
// grants server-side.
type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) EffectiveRows(ctx context.Context, userID string) ([]EffectivePermissionRow, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT module_name, is_visible, allowed_actions,
           allowed_notifications, report_permissions, audit_permissions, automation_permissions
    FROM get_user_effective_permissions($1)
  `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EffectivePermissionRow
	for rows.Next() {
		var row EffectivePermissionRow
		var actions []string
		var notifJSON, reportJSON, auditJSON, autoJSON []byte
		if err := rows.Scan(&row.ModuleName, &row.IsVisible, &actions,
			&notifJSON, &reportJSON, &auditJSON, &autoJSON); err != nil {
			return nil, err
		}
		for _, a := range actions {
			row.AllowedActions = append(row.AllowedActions, Action(a))
		}
		// The sub-maps are stored as jsonb. Decoding into map[string]bool is
		// the load-boundary validation: a loosely typed blob that is not a
		// flat flag map fails the load instead of silently denying later.
		if row.AllowedNotifications, err = decodeFlagMap(notifJSON, row.ModuleName, "allowed_notifications"); err != nil {
			return nil, err
		}
		if row.ReportPermissions, err = decodeFlagMap(reportJSON, row.ModuleName, "report_permissions"); err != nil {
			return nil, err
		}
		if row.AuditPermissions, err = decodeFlagMap(auditJSON, row.ModuleName, "audit_permissions"); err != nil {
			return nil, err
		}
		if row.AutomationPermissions, err = decodeFlagMap(autoJSON, row.ModuleName, "automation_permissions"); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func decodeFlagMap(raw []byte, module, column string) (map[string]bool, error) {
	if len(raw) == 0 {
		return map[string]bool{}, nil
	}
	var flags map[string]bool
	if err := json.Unmarshal(raw, &flags); err != nil {
		return nil, fmt.Errorf("decode %s for module %s: %w", column, module, err)
	}
	return flags, nil
}

func (s *Store) Actions(ctx context.Context) ([]PermissionAction, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT action_key, COALESCE(category, ''), requires_approval, COALESCE(risk_level, '')
    FROM permission_actions
    ORDER BY action_key
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PermissionAction
	for rows.Next() {
		var a PermissionAction
		if err := rows.Scan(&a.ActionKey, &a.Category, &a.RequiresApproval, &a.RiskLevel); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) Workflows(ctx context.Context) ([]ApprovalWorkflow, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT module_name, action_key, approval_chain
    FROM approval_workflows
    ORDER BY module_name, action_key
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ApprovalWorkflow
	for rows.Next() {
		var w ApprovalWorkflow
		var chainJSON []byte
		if err := rows.Scan(&w.ModuleName, &w.ActionKey, &chainJSON); err != nil {
			return nil, err
		}
		if len(chainJSON) > 0 {
			if err := json.Unmarshal(chainJSON, &w.ApprovalChain); err != nil {
				return nil, fmt.Errorf("decode approval chain %s/%s: %w", w.ModuleName, w.ActionKey, err)
			}
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) FieldPermissions(ctx context.Context) ([]FieldPermission, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT module_name, field_name, permission_type
    FROM field_permissions
    ORDER BY module_name, field_name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FieldPermission
	for rows.Next() {
		var f FieldPermission
		if err := rows.Scan(&f.ModuleName, &f.FieldName, &f.PermissionType); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
