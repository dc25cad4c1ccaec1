package permissionshandler

import (
	"encoding/json"
	"net/http"

	"minutehr/internal/domain/audit"
	"minutehr/internal/domain/permissions"
	"minutehr/internal/transport/http/api"
	"minutehr/internal/transport/http/middleware"
)

type Handler struct {
	Resolver *permissions.Resolver
	Audit    *audit.Service
}

func NewHandler(resolver *permissions.Resolver, auditSvc *audit.Service) *Handler {
	return &Handler{Resolver: resolver, Audit: auditSvc}
}

func (h *Handler) ensureLoaded(r *http.Request, userID string) error {
	if h.Resolver.UserLoaded(userID) {
		return nil
	}
	return h.Resolver.LoadUser(r.Context(), userID)
}

// HandleMe returns the caller's effective rows plus the role's scope and
// sensitivity visibilities, loading the session rows on first use.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	claims, _ := middleware.GetClaims(r.Context())

	if err := h.ensureLoaded(r, claims.UserID); err != nil {
		api.FailError(w, err, reqID)
		return
	}
	rows, err := h.Resolver.EffectiveRows(claims.UserID)
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}

	scope, _ := h.Resolver.RoleScope(claims.RoleName)
	_ = h.Audit.Record(r.Context(), claims.CompanyID, claims.UserID, audit.ActionPermissionsViewed,
		"permissions", claims.UserID, reqID, r.RemoteAddr, nil, nil)

	api.Success(w, map[string]any{
		"role":    claims.RoleName,
		"scope":   scope,
		"modules": rows,
	}, reqID)
}

type checkRequest struct {
	Module string             `json:"module"`
	Action permissions.Action `json:"action"`
}

type checkResponse struct {
	Allowed          bool                   `json:"allowed"`
	RoleAllowed      bool                   `json:"roleAllowed"`
	UserAllowed      bool                   `json:"userAllowed"`
	RequiresApproval bool                   `json:"requiresApproval"`
	ApprovalChain    []permissions.Approver `json:"approvalChain,omitempty"`
}

// HandleCheck evaluates both gates for one module/action pair and reports the
// approval requirement alongside. Denial is a 200 with allowed=false.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	claims, _ := middleware.GetClaims(r.Context())

	var payload checkRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	if payload.Module == "" || payload.Action == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "module and action are required", reqID)
		return
	}

	if err := h.ensureLoaded(r, claims.UserID); err != nil {
		api.FailError(w, err, reqID)
		return
	}

	roleAllowed := h.Resolver.RoleAllows(claims.RoleName, payload.Module, payload.Action)
	userAllowed := h.Resolver.HasAction(claims.UserID, payload.Module, payload.Action)
	result := checkResponse{
		Allowed:          roleAllowed && userAllowed,
		RoleAllowed:      roleAllowed,
		UserAllowed:      userAllowed,
		RequiresApproval: h.Resolver.RequiresApproval(payload.Module, string(payload.Action)),
		ApprovalChain:    h.Resolver.ApprovalChain(payload.Module, string(payload.Action)),
	}

	_ = h.Audit.Record(r.Context(), claims.CompanyID, claims.UserID, audit.ActionPermissionChecked,
		"permission", payload.Module+"."+string(payload.Action), reqID, r.RemoteAddr, nil, result)

	api.Success(w, result, reqID)
}

// HandleMatrix renders the full static policy table.
func (h *Handler) HandleMatrix(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	api.Success(w, h.Resolver.PolicySet(), reqID)
}

// HandleGaps lists risky actions with no configured approval workflow, per
// module. These actions proceed without approval until a chain is configured.
func (h *Handler) HandleGaps(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	claims, _ := middleware.GetClaims(r.Context())

	gaps := map[string][]string{}
	for module := range h.Resolver.PolicySet().Modules {
		if missing := h.Resolver.MissingWorkflows(module); len(missing) > 0 {
			gaps[module] = missing
		}
	}

	_ = h.Audit.Record(r.Context(), claims.CompanyID, claims.UserID, audit.ActionWorkflowGapsViewed,
		"permissions", "gaps", reqID, r.RemoteAddr, nil, nil)

	api.Success(w, gaps, reqID)
}

type fieldCheckRequest struct {
	Module string                     `json:"module"`
	Field  string                     `json:"field"`
	Access permissions.PermissionType `json:"access"`
}

// HandleFieldCheck reports whether a field is accessible at the requested
// level, plus the caller's visibility tier for sensitive classes.
func (h *Handler) HandleFieldCheck(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	claims, _ := middleware.GetClaims(r.Context())

	var payload fieldCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	if payload.Access == "" {
		payload.Access = permissions.FieldRead
	}

	api.Success(w, map[string]any{
		"module":            payload.Module,
		"field":             payload.Field,
		"access":            payload.Access,
		"allowed":           h.Resolver.HasFieldAccess(payload.Module, payload.Field, payload.Access),
		"piiVisibility":     h.Resolver.FieldVisibilityFor(claims.RoleName, permissions.TagPII),
		"payrollVisibility": h.Resolver.FieldVisibilityFor(claims.RoleName, permissions.TagPayroll),
	}, reqID)
}
