package permissions

import "context"

// StoreAPI provides the dynamic halves of the permission model: per-user
// pre-joined rows and the catalog/workflow/field tables.
type StoreAPI interface {
	// EffectiveRows loads the pre-computed permission rows for one user,
	// one row per visible module.
	EffectiveRows(ctx context.Context, userID string) ([]EffectivePermissionRow, error)

	// Actions returns the permission action catalog.
	Actions(ctx context.Context) ([]PermissionAction, error)

	// Workflows returns all configured approval workflows.
	Workflows(ctx context.Context) ([]ApprovalWorkflow, error)

	// FieldPermissions returns all per-field overrides.
	FieldPermissions(ctx context.Context) ([]FieldPermission, error)
}
