package permissions

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"minutehr/internal/domain/settings"
)

// Resolver answers fine-grained permission questions by combining the static
// policy set with per-user effective rows and the catalog tables. All lookups
// are pure functions over loaded state and fail closed on missing data, with
// one deliberate exception: unconfigured field permissions default to allowed.
type Resolver struct {
	policies PolicySet
	store    StoreAPI

	mu        sync.RWMutex
	rows      map[string]map[string]EffectivePermissionRow // userID -> module -> row
	actions   map[string]PermissionAction                  // actionKey -> catalog entry
	workflows map[string]ApprovalWorkflow                  // module|action -> workflow
	fields    map[string]FieldPermission                   // module|field -> override
}

func NewResolver(policies PolicySet, store StoreAPI) (*Resolver, error) {
	if err := policies.Validate(); err != nil {
		return nil, fmt.Errorf("policy set: %w", err)
	}
	return &Resolver{
		policies: policies,
		store:    store,
		rows:     map[string]map[string]EffectivePermissionRow{},
	}, nil
}

// LoadCatalog fetches the action catalog, approval workflows and field
// permissions. Called once at startup; call again to pick up changes.
func (r *Resolver) LoadCatalog(ctx context.Context) error {
	actions, err := r.store.Actions(ctx)
	if err != nil {
		return fmt.Errorf("load action catalog: %w", err)
	}
	workflows, err := r.store.Workflows(ctx)
	if err != nil {
		return fmt.Errorf("load approval workflows: %w", err)
	}
	fields, err := r.store.FieldPermissions(ctx)
	if err != nil {
		return fmt.Errorf("load field permissions: %w", err)
	}

	actionMap := make(map[string]PermissionAction, len(actions))
	for _, a := range actions {
		actionMap[a.ActionKey] = a
	}
	workflowMap := make(map[string]ApprovalWorkflow, len(workflows))
	for _, w := range workflows {
		workflowMap[w.ModuleName+"|"+w.ActionKey] = w
	}
	fieldMap := make(map[string]FieldPermission, len(fields))
	for _, f := range fields {
		fieldMap[f.ModuleName+"|"+f.FieldName] = f
	}

	r.mu.Lock()
	r.actions = actionMap
	r.workflows = workflowMap
	r.fields = fieldMap
	r.mu.Unlock()
	return nil
}

// LoadUser fetches and caches the user's effective rows. Fetched once per
// session; Invalidate forces a refresh.
func (r *Resolver) LoadUser(ctx context.Context, userID string) error {
	rows, err := r.store.EffectiveRows(ctx, userID)
	if err != nil {
		return fmt.Errorf("load effective permissions for %s: %w", userID, err)
	}
	byModule := make(map[string]EffectivePermissionRow, len(rows))
	for _, row := range rows {
		byModule[row.ModuleName] = row
	}
	r.mu.Lock()
	r.rows[userID] = byModule
	r.mu.Unlock()
	return nil
}

// Invalidate drops the cached rows for one user.
func (r *Resolver) Invalidate(userID string) {
	r.mu.Lock()
	delete(r.rows, userID)
	r.mu.Unlock()
}

// UserLoaded reports whether rows for the user are in the session cache.
func (r *Resolver) UserLoaded(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rows[userID]
	return ok
}

func (r *Resolver) row(userID, module string) (EffectivePermissionRow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byModule, ok := r.rows[userID]
	if !ok {
		return EffectivePermissionRow{}, false
	}
	row, ok := byModule[module]
	return row, ok
}

// HasModuleAccess is true iff the user's row for the module is visible.
// A missing row, or a user never loaded, denies.
func (r *Resolver) HasModuleAccess(userID, module string) bool {
	row, ok := r.row(userID, module)
	return ok && row.IsVisible
}

// HasAction is true iff the action appears in the module row's allowed set.
func (r *Resolver) HasAction(userID, module string, action Action) bool {
	row, ok := r.row(userID, module)
	if !ok || !row.IsVisible {
		return false
	}
	return containsAction(row.AllowedActions, action)
}

// RoleAllows is the static dual gate: role capability ceiling intersected
// with the module grant.
func (r *Resolver) RoleAllows(role, module string, action Action) bool {
	return r.policies.Allows(role, module, action)
}

// HasFieldAccess consults the per-field override table. Unconfigured fields
// default to allowed by explicit product decision; read is denied only by a
// hidden override, write requires a write override exactly.
func (r *Resolver) HasFieldAccess(module, field string, access PermissionType) bool {
	r.mu.RLock()
	perm, ok := r.fields[module+"|"+field]
	r.mu.RUnlock()
	if !ok {
		return true
	}
	switch access {
	case FieldRead:
		return perm.PermissionType != FieldHidden
	case FieldWrite:
		return perm.PermissionType == FieldWrite
	}
	return false
}

// RequiresApproval is true iff the catalog marks the action as requiring
// approval AND a workflow is configured for the module/action pair. A risky
// action with no chain does not require approval; MissingWorkflows makes
// those pairs visible to operators.
func (r *Resolver) RequiresApproval(module, actionKey string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.actions[actionKey]
	if !ok || !entry.RequiresApproval {
		return false
	}
	_, configured := r.workflows[module+"|"+actionKey]
	return configured
}

// ApprovalChain returns the ordered approver list, or nil when none is
// configured.
func (r *Resolver) ApprovalChain(module, actionKey string) []Approver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	workflow, ok := r.workflows[module+"|"+actionKey]
	if !ok {
		return nil
	}
	return workflow.ApprovalChain
}

// MissingWorkflows lists catalog actions marked requires_approval that have
// no configured workflow for the module.
func (r *Resolver) MissingWorkflows(module string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []string
	for key, entry := range r.actions {
		if !entry.RequiresApproval {
			continue
		}
		if _, ok := r.workflows[module+"|"+key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

func (r *Resolver) CanReceiveNotification(userID, module, notification string) bool {
	row, ok := r.row(userID, module)
	return ok && row.AllowedNotifications[notification]
}

func (r *Resolver) HasReportAccess(userID, module, report string) bool {
	row, ok := r.row(userID, module)
	return ok && row.ReportPermissions[report]
}

func (r *Resolver) HasAuditAccess(userID, module, kind string) bool {
	row, ok := r.row(userID, module)
	return ok && row.AuditPermissions[kind]
}

func (r *Resolver) CanManageAutomations(userID, module, automation string) bool {
	row, ok := r.row(userID, module)
	return ok && row.AutomationPermissions[automation]
}

// FieldVisibilityFor reports the role's visibility tag for a sensitivity
// class. Descriptive only; callers enforce it.
func (r *Resolver) FieldVisibilityFor(role string, tag SensitivityTag) FieldVisibility {
	return r.policies.FieldVisibilityFor(role, tag)
}

// RoleScope returns the role's operating ceiling.
func (r *Resolver) RoleScope(role string) (settings.ScopeLevel, bool) {
	return r.policies.RoleScope(role)
}

// EffectiveRows returns the user's cached rows sorted by module name.
func (r *Resolver) EffectiveRows(userID string) ([]EffectivePermissionRow, error) {
	r.mu.RLock()
	byModule, ok := r.rows[userID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotLoaded, userID)
	}
	out := make([]EffectivePermissionRow, 0, len(byModule))
	for _, row := range byModule {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleName < out[j].ModuleName })
	return out, nil
}

// PolicySet exposes the injected policy table for matrix rendering.
func (r *Resolver) PolicySet() PolicySet {
	return r.policies
}
