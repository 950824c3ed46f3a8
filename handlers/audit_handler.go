package handlers

import (
	"net/http"
	"time"

	"github.com/clinisight/agent-orchestrator/app"
	"github.com/clinisight/agent-orchestrator/models"
	"github.com/clinisight/agent-orchestrator/utils"
	"go.uber.org/zap"
)

// defaultAuditWindow is the query window applied when the caller gives no
// start bound.
const defaultAuditWindow = 24 * time.Hour

// auditQueryParams is the query-string surface of GET /audit. The timestamps
// are validated during parsing; only the tenant has a structural rule.
type auditQueryParams struct {
	TenantID string `validate:"required,tenantid"`
	Start    string
	End      string
}

// auditQueryResponse is the response body for GET /audit.
type auditQueryResponse struct {
	TenantID string               `json:"tenantId"`
	Start    time.Time            `json:"start"`
	End      time.Time            `json:"end"`
	Count    int                  `json:"count"`
	Entries  []*models.AuditEntry `json:"entries"`
}

// AuditQueryHandler serves the compliance read surface (GET /audit). The
// window is half-open [start, end); end defaults to now and start to 24 hours
// before end. Reading the trail is itself not audited.
func AuditQueryHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := auditQueryParams{
			TenantID: r.URL.Query().Get("tenantId"),
			Start:    r.URL.Query().Get("start"),
			End:      r.URL.Query().Get("end"),
		}
		if err := utils.ValidateStruct(params); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}
		tenantID := params.TenantID

		end := time.Now().UTC()
		if params.End != "" {
			parsed, err := time.Parse(time.RFC3339, params.End)
			if err != nil {
				_ = utils.WriteBadRequest(w, "invalid end timestamp, expected RFC3339", nil)
				return
			}
			end = parsed
		}

		start := end.Add(-defaultAuditWindow)
		if params.Start != "" {
			parsed, err := time.Parse(time.RFC3339, params.Start)
			if err != nil {
				_ = utils.WriteBadRequest(w, "invalid start timestamp, expected RFC3339", nil)
				return
			}
			start = parsed
		}

		if !start.Before(end) {
			_ = utils.WriteBadRequest(w, "start must be before end", nil)
			return
		}

		entries, err := deps.AuditLog.Query(r.Context(), tenantID, start, end)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}

		if err := utils.WriteJSON(w, http.StatusOK, auditQueryResponse{
			TenantID: tenantID,
			Start:    start,
			End:      end,
			Count:    len(entries),
			Entries:  entries,
		}); err != nil {
			deps.Logger.Error("failed to write audit query response", zap.Error(err))
		}
	}
}
