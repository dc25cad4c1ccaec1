package authhandler

import (
	"encoding/json"
	"net/http"
	"time"

	"minutehr/internal/domain/audit"
	"minutehr/internal/domain/auth"
	"minutehr/internal/transport/http/api"
	"minutehr/internal/transport/http/middleware"
)

type Handler struct {
	Store    *auth.Store
	Audit    *audit.Service
	Secret   string
	TokenTTL time.Duration
}

func NewHandler(store *auth.Store, auditSvc *audit.Service, secret string, ttl time.Duration) *Handler {
	return &Handler{Store: store, Audit: auditSvc, Secret: secret, TokenTTL: ttl}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	Role      string `json:"role"`
	CompanyID string `json:"companyId"`
	ExpiresIn int64  `json:"expiresIn"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	account, err := h.Store.FindByEmail(r.Context(), payload.Email)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	}

	if err := auth.CheckPassword(account.PasswordHash, payload.Password); err != nil {
		_ = h.Audit.Record(r.Context(), account.CompanyID, account.ID, audit.ActionLoginFailed, "user", account.ID, reqID, r.RemoteAddr, nil, nil)
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	}

	claims := auth.Claims{
		UserID:       account.ID,
		RoleID:       account.RoleID,
		RoleName:     account.RoleName,
		TeamID:       account.TeamID,
		DepartmentID: account.DepartmentID,
		LocationID:   account.LocationID,
		CompanyID:    account.CompanyID,
	}
	token, err := auth.GenerateToken(h.Secret, claims, h.TokenTTL)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "token_error", "failed to issue token", reqID)
		return
	}

	_ = h.Audit.Record(r.Context(), account.CompanyID, account.ID, audit.ActionLoginSucceeded, "user", account.ID, reqID, r.RemoteAddr, nil, nil)

	api.Success(w, loginResponse{
		Token:     token,
		UserID:    account.ID,
		Role:      account.RoleName,
		CompanyID: account.CompanyID,
		ExpiresIn: int64(h.TokenTTL.Seconds()),
	}, reqID)
}
