package permissions

import (
	"fmt"

	"minutehr/internal/domain/settings"
)

// RolePolicy is a role's global capability ceiling: the scope it may act at,
// the blanket action set, and the sensitivity-tag visibility map.
type RolePolicy struct {
	Scope   settings.ScopeLevel                `json:"scope"`
	Actions []Action                           `json:"actions"`
	Fields  map[SensitivityTag]FieldVisibility `json:"fields"`
}

// ModulePolicy is the module-specific grant for one role. It may grant fewer
// actions than the role's blanket list, down to none at all.
type ModulePolicy struct {
	Actions []Action `json:"actions"`
}

// PolicySet is the static dual-gate policy table. It is an immutable value
// injected at construction, never package state, so tests can run alternate
// policy sets.
type PolicySet struct {
	Roles   map[string]RolePolicy              `json:"roles"`
	Modules map[string]map[string]ModulePolicy `json:"modules"`
}

// Validate checks that every role referenced by a module policy exists in the
// role table.
func (p PolicySet) Validate() error {
	for module, byRole := range p.Modules {
		for role := range byRole {
			if _, ok := p.Roles[role]; !ok {
				return fmt.Errorf("%w: %q referenced by module %q", ErrUnknownRole, role, module)
			}
		}
	}
	return nil
}

// Allows computes the dual gate: an action is permitted only when it appears
// in both the role's global action set and the module-specific grant. The
// module table is the authoritative, more specific gate; a module with no
// entry for the role grants nothing.
func (p PolicySet) Allows(role, module string, action Action) bool {
	rolePolicy, ok := p.Roles[role]
	if !ok {
		return false
	}
	if !containsAction(rolePolicy.Actions, action) {
		return false
	}
	byRole, ok := p.Modules[module]
	if !ok {
		return false
	}
	modulePolicy, ok := byRole[role]
	if !ok {
		return false
	}
	return containsAction(modulePolicy.Actions, action)
}

// FieldVisibilityFor returns the role's visibility for a sensitivity tag,
// falling back to the wildcard entry, then to none.
func (p PolicySet) FieldVisibilityFor(role string, tag SensitivityTag) FieldVisibility {
	rolePolicy, ok := p.Roles[role]
	if !ok {
		return VisibilityNone
	}
	if vis, ok := rolePolicy.Fields[tag]; ok {
		return vis
	}
	if vis, ok := rolePolicy.Fields[TagWildcard]; ok {
		return vis
	}
	return VisibilityNone
}

// RoleScope returns the role's operating ceiling.
func (p PolicySet) RoleScope(role string) (settings.ScopeLevel, bool) {
	rolePolicy, ok := p.Roles[role]
	if !ok {
		return "", false
	}
	return rolePolicy.Scope, true
}

func containsAction(actions []Action, action Action) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

const (
	RoleAdmin     = "Admin"
	RoleHR        = "HR"
	RoleManager   = "Manager"
	RoleEmployee  = "Employee"
	RoleRecruiter = "Recruiter"
	RoleAuditor   = "Auditor"
)

// DefaultPolicySet is the policy table the server ships with. Module grants
// deliberately narrow the role ceilings: ordinary employees cannot read the
// employee directory even though their role nominally allows read.
func DefaultPolicySet() PolicySet {
	return PolicySet{
		Roles: map[string]RolePolicy{
			RoleAdmin: {
				Scope:   settings.ScopeGlobal,
				Actions: []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionApprove, ActionExport, ActionImpersonate},
				Fields:  map[SensitivityTag]FieldVisibility{TagWildcard: VisibilityFull},
			},
			RoleHR: {
				Scope:   settings.ScopeCompany,
				Actions: []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionApprove, ActionExport},
				Fields: map[SensitivityTag]FieldVisibility{
					TagPII:      VisibilityFull,
					TagPayroll:  VisibilityFull,
					TagMedical:  VisibilityLimited,
					TagWildcard: VisibilityFull,
				},
			},
			RoleManager: {
				Scope:   settings.ScopeTeam,
				Actions: []Action{ActionRead, ActionUpdate, ActionApprove},
				Fields: map[SensitivityTag]FieldVisibility{
					TagPII:      VisibilityLimited,
					TagPayroll:  VisibilityAggregated,
					TagMedical:  VisibilityNone,
					TagWildcard: VisibilityLimited,
				},
			},
			RoleEmployee: {
				Scope:   settings.ScopeUser,
				Actions: []Action{ActionRead, ActionCreate, ActionUpdate},
				Fields: map[SensitivityTag]FieldVisibility{
					TagPII:      VisibilityOwnOnly,
					TagPayroll:  VisibilityOwnOnly,
					TagMedical:  VisibilityOwnOnly,
					TagWildcard: VisibilityOwnOnly,
				},
			},
			RoleRecruiter: {
				Scope:   settings.ScopeDepartment,
				Actions: []Action{ActionRead, ActionCreate, ActionUpdate},
				Fields: map[SensitivityTag]FieldVisibility{
					TagPII:      VisibilityLimited,
					TagPayroll:  VisibilityNone,
					TagMedical:  VisibilityNone,
					TagWildcard: VisibilityLimited,
				},
			},
			RoleAuditor: {
				Scope:   settings.ScopeCompany,
				Actions: []Action{ActionRead, ActionExport},
				Fields: map[SensitivityTag]FieldVisibility{
					TagPII:      VisibilityMasked,
					TagPayroll:  VisibilityMasked,
					TagMedical:  VisibilityMasked,
					TagWildcard: VisibilityMasked,
				},
			},
		},
		Modules: map[string]map[string]ModulePolicy{
			"employees": {
				RoleAdmin:     {Actions: []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionExport}},
				RoleHR:        {Actions: []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionExport}},
				RoleManager:   {Actions: []Action{ActionRead}},
				RoleEmployee:  {Actions: []Action{}},
				RoleRecruiter: {Actions: []Action{ActionRead, ActionCreate}},
				RoleAuditor:   {Actions: []Action{ActionRead, ActionExport}},
			},
			"absence": {
				RoleAdmin:     {Actions: []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionApprove, ActionExport}},
				RoleHR:        {Actions: []Action{ActionRead, ActionCreate, ActionUpdate, ActionApprove, ActionExport}},
				RoleManager:   {Actions: []Action{ActionRead, ActionUpdate, ActionApprove}},
				RoleEmployee:  {Actions: []Action{ActionRead, ActionCreate}},
				RoleRecruiter: {Actions: []Action{}},
				RoleAuditor:   {Actions: []Action{ActionRead}},
			},
			"timetracking": {
				RoleAdmin:    {Actions: []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionApprove, ActionExport}},
				RoleHR:       {Actions: []Action{ActionRead, ActionUpdate, ActionApprove, ActionExport}},
				RoleManager:  {Actions: []Action{ActionRead, ActionApprove}},
				RoleEmployee: {Actions: []Action{ActionRead, ActionCreate, ActionUpdate}},
				RoleAuditor:  {Actions: []Action{ActionRead}},
			},
			"documents": {
				RoleAdmin:     {Actions: []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionExport}},
				RoleHR:        {Actions: []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete}},
				RoleManager:   {Actions: []Action{ActionRead, ActionCreate}},
				RoleEmployee:  {Actions: []Action{ActionRead}},
				RoleRecruiter: {Actions: []Action{ActionRead, ActionCreate}},
				RoleAuditor:   {Actions: []Action{ActionRead, ActionExport}},
			},
			"settings": {
				RoleAdmin:   {Actions: []Action{ActionRead, ActionUpdate}},
				RoleHR:      {Actions: []Action{ActionRead, ActionUpdate}},
				RoleAuditor: {Actions: []Action{ActionRead}},
			},
			"audit": {
				RoleAdmin:   {Actions: []Action{ActionRead, ActionExport}},
				RoleAuditor: {Actions: []Action{ActionRead, ActionExport}},
			},
		},
	}
}
