package reportshandler

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"minutehr/internal/domain/audit"
	"minutehr/internal/domain/permissions"
	"minutehr/internal/domain/settings"
	"minutehr/internal/transport/http/middleware"
)

type Handler struct {
	Settings    *settings.Resolver
	Permissions *permissions.Resolver
	Audit       *audit.Service
}

func NewHandler(settingsResolver *settings.Resolver, permResolver *permissions.Resolver, auditSvc *audit.Service) *Handler {
	return &Handler{Settings: settingsResolver, Permissions: permResolver, Audit: auditSvc}
}

// HandlePermissionMatrixPDF renders the static policy table as a PDF, one
// section per module with a role/actions line each.
func (h *Handler) HandlePermissionMatrixPDF(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	claims, _ := middleware.GetClaims(r.Context())
	policies := h.Permissions.PolicySet()

	modules := make([]string, 0, len(policies.Modules))
	for module := range policies.Modules {
		modules = append(modules, module)
	}
	sort.Strings(modules)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Permission Matrix")
	pdf.Ln(12)

	for _, module := range modules {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, module)
		pdf.Ln(7)
		pdf.SetFont("Helvetica", "", 10)

		byRole := policies.Modules[module]
		roles := make([]string, 0, len(byRole))
		for role := range byRole {
			roles = append(roles, role)
		}
		sort.Strings(roles)

		for _, role := range roles {
			grant := byRole[role]
			actions := make([]string, 0, len(grant.Actions))
			for _, action := range grant.Actions {
				// The PDF shows effective grants, so the role ceiling applies.
				if policies.Allows(role, module, action) {
					actions = append(actions, string(action))
				}
			}
			line := fmt.Sprintf("%s: %s", role, strings.Join(actions, ", "))
			if len(actions) == 0 {
				line = role + ": (none)"
			}
			pdf.Cell(0, 6, line)
			pdf.Ln(5)
		}
		pdf.Ln(4)
	}

	_ = h.Audit.Record(r.Context(), claims.CompanyID, claims.UserID, audit.ActionReportGenerated,
		"report", "permission-matrix", reqID, r.RemoteAddr, nil, nil)

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=permission-matrix.pdf")
	if err := pdf.Output(w); err != nil {
		slog.Warn("permission matrix pdf failed", "err", err)
	}
}

// HandleSettingsCSV exports the caller's effective settings, one row per
// module/key with the winning scope.
func (h *Handler) HandleSettingsCSV(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	claims, _ := middleware.GetClaims(r.Context())
	uc := claims.UserContext()

	modules := make([]string, 0, len(h.Permissions.PolicySet().Modules))
	for module := range h.Permissions.PolicySet().Modules {
		modules = append(modules, module)
	}
	sort.Strings(modules)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=effective-settings.csv")
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"module", "key", "value", "type", "source_level", "source_entity"}); err != nil {
		slog.Warn("settings export header failed", "err", err)
		return
	}

	for _, module := range modules {
		resolved, err := h.Settings.Load(r.Context(), module, uc)
		if err != nil {
			// Modules without definitions are simply absent from the export.
			continue
		}
		keys := make([]string, 0, len(resolved))
		for key := range resolved {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			setting := resolved[key]
			valueJSON, _ := json.Marshal(setting.Value)
			record := []string{
				module, key, string(valueJSON), string(setting.Definition.ValueType),
				string(setting.Source.Level), setting.Source.EntityID,
			}
			if err := writer.Write(record); err != nil {
				slog.Warn("settings export row failed", "err", err)
				return
			}
		}
	}
	writer.Flush()

	_ = h.Audit.Record(r.Context(), claims.CompanyID, claims.UserID, audit.ActionReportGenerated,
		"report", "effective-settings", reqID, r.RemoteAddr, nil, nil)
}
