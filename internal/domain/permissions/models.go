package permissions

import "errors"

// Action is a generic capability verb. Module policies grant subsets of these
// per role.
type Action string

const (
	ActionRead        Action = "read"
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionApprove     Action = "approve"
	ActionExport      Action = "export"
	ActionImpersonate Action = "impersonate"
)

// FieldVisibility is a descriptive sensitivity tag consumed by the query/UI
// layer. The resolver reports it; enforcement (masking, filtering) is the
// caller's responsibility. This is not row-level security.
type FieldVisibility string

const (
	VisibilityFull       FieldVisibility = "full"
	VisibilityLimited    FieldVisibility = "limited"
	VisibilityAggregated FieldVisibility = "aggregated"
	VisibilityMasked     FieldVisibility = "masked"
	VisibilityNone       FieldVisibility = "none"
	VisibilityOwnOnly    FieldVisibility = "own_only"
)

// SensitivityTag classifies a field group for role-level visibility mapping.
type SensitivityTag string

const (
	TagPII      SensitivityTag = "PII"
	TagPayroll  SensitivityTag = "PAYROLL"
	TagMedical  SensitivityTag = "MEDICAL"
	TagWildcard SensitivityTag = "*"
)

type PermissionType string

const (
	FieldRead   PermissionType = "read"
	FieldWrite  PermissionType = "write"
	FieldHidden PermissionType = "hidden"
)

// PermissionAction is one entry of the dynamic action catalog.
type PermissionAction struct {
	ActionKey        string `json:"actionKey"`
	Category         string `json:"category"`
	RequiresApproval bool   `json:"requiresApproval"`
	RiskLevel        string `json:"riskLevel"`
}

// Approver is one step of an approval chain, in order.
type Approver struct {
	Role  string `json:"role"`
	Title string `json:"title,omitempty"`
}

type ApprovalWorkflow struct {
	ModuleName    string     `json:"moduleName"`
	ActionKey     string     `json:"actionKey"`
	ApprovalChain []Approver `json:"approvalChain"`
}

type FieldPermission struct {
	ModuleName     string         `json:"moduleName"`
	FieldName      string         `json:"fieldName"`
	PermissionType PermissionType `json:"permissionType"`
}

// EffectivePermissionRow is the per-user, server-side pre-joined permission
// state for one module. The sub-maps carry closed key sets validated at the
// load boundary; a typo'd key denies and is easy to spot in the decoded form.
type EffectivePermissionRow struct {
	ModuleName            string          `json:"moduleName"`
	IsVisible             bool            `json:"isVisible"`
	AllowedActions        []Action        `json:"allowedActions"`
	AllowedNotifications  map[string]bool `json:"allowedNotifications"`
	ReportPermissions     map[string]bool `json:"reportPermissions"`
	AuditPermissions      map[string]bool `json:"auditPermissions"`
	AutomationPermissions map[string]bool `json:"automationPermissions"`
}

var (
	ErrUserNotLoaded = errors.New("effective permissions not loaded for user")
	ErrUnknownRole   = errors.New("unknown role")
)
