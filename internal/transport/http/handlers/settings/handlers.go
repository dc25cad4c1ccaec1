package settingshandler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"minutehr/internal/domain/audit"
	"minutehr/internal/domain/settings"
	"minutehr/internal/transport/http/api"
	"minutehr/internal/transport/http/middleware"
)

type Handler struct {
	Resolver *settings.Resolver
	Audit    *audit.Service
}

func NewHandler(resolver *settings.Resolver, auditSvc *audit.Service) *Handler {
	return &Handler{Resolver: resolver, Audit: auditSvc}
}

// HandleGetModule resolves every setting of the module for the caller's
// scope chain.
func (h *Handler) HandleGetModule(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	claims, _ := middleware.GetClaims(r.Context())
	module := chi.URLParam(r, "module")

	resolved, err := h.Resolver.Load(r.Context(), module, claims.UserContext())
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, resolved, reqID)
}

func (h *Handler) HandleGetKey(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	claims, _ := middleware.GetClaims(r.Context())
	module := chi.URLParam(r, "module")
	key := chi.URLParam(r, "key")

	resolved, err := h.Resolver.Load(r.Context(), module, claims.UserContext())
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	setting, ok := resolved[key]
	if !ok {
		api.Fail(w, http.StatusNotFound, "not_found", "unknown setting key", reqID)
		return
	}
	api.Success(w, setting, reqID)
}

// HandleCheck answers a permission-style question about one setting. The
// result is always 200 with a structured body; denial is data, not an error.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	claims, _ := middleware.GetClaims(r.Context())
	module := chi.URLParam(r, "module")
	key := chi.URLParam(r, "key")

	result := h.Resolver.CheckPermission(r.Context(), module, key, claims.UserContext())
	api.Success(w, result, reqID)
}

type saveKeyRequest struct {
	Value           any                      `json:"value"`
	ScopeLevel      settings.ScopeLevel      `json:"scopeLevel"`
	ScopeEntityID   string                   `json:"scopeEntityId"`
	InheritanceMode settings.InheritanceMode `json:"inheritanceMode"`
}

func (h *Handler) HandleSaveKey(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	claims, _ := middleware.GetClaims(r.Context())
	module := chi.URLParam(r, "module")
	key := chi.URLParam(r, "key")

	var payload saveKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	write := settings.ValueWrite{
		Key:             key,
		Value:           payload.Value,
		ScopeLevel:      payload.ScopeLevel,
		ScopeEntityID:   payload.ScopeEntityID,
		InheritanceMode: payload.InheritanceMode,
	}
	if err := h.Resolver.SaveSetting(r.Context(), module, write); err != nil {
		api.FailError(w, err, reqID)
		return
	}

	_ = h.Audit.Record(r.Context(), claims.CompanyID, claims.UserID, audit.ActionSettingSaved,
		"setting", module+"."+key, reqID, r.RemoteAddr, nil, write)

	resolved, err := h.Resolver.Load(r.Context(), module, claims.UserContext())
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, resolved[key], reqID)
}

type saveModuleRequest struct {
	Values []settings.ValueWrite `json:"values"`
}

// HandleSaveModule writes several keys of one module all-or-nothing.
func (h *Handler) HandleSaveModule(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	claims, _ := middleware.GetClaims(r.Context())
	module := chi.URLParam(r, "module")

	var payload saveModuleRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	if len(payload.Values) == 0 {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "values must not be empty", reqID)
		return
	}

	if err := h.Resolver.SaveModuleSettings(r.Context(), module, payload.Values); err != nil {
		api.FailError(w, err, reqID)
		return
	}

	_ = h.Audit.Record(r.Context(), claims.CompanyID, claims.UserID, audit.ActionSettingsBulkSaved,
		"settings", module, reqID, r.RemoteAddr, nil, payload.Values)

	resolved, err := h.Resolver.Load(r.Context(), module, claims.UserContext())
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}
	api.Success(w, resolved, reqID)
}

func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	claims, _ := middleware.GetClaims(r.Context())
	module := chi.URLParam(r, "module")

	resolved, err := h.Resolver.Refresh(r.Context(), module, claims.UserContext())
	if err != nil {
		api.FailError(w, err, reqID)
		return
	}

	_ = h.Audit.Record(r.Context(), claims.CompanyID, claims.UserID, audit.ActionSettingsRefreshed,
		"settings", module, reqID, r.RemoteAddr, nil, nil)

	api.Success(w, resolved, reqID)
}
