package handlers

import (
	"io"
	"net/http"

	"github.com/clinisight/agent-orchestrator/app"
	"github.com/clinisight/agent-orchestrator/models"
	"github.com/clinisight/agent-orchestrator/utils"
	"go.uber.org/zap"
)

// maxEventBodyBytes caps inbound webhook payloads. Epic webhooks are a few KB;
// anything near the cap is malformed or hostile.
const maxEventBodyBytes = 1 << 20

// rawEventFromRequest builds the wire-shape event from an HTTP request so the
// orchestrator sees the same shape regardless of how the event arrived.
func rawEventFromRequest(r *http.Request, body string) *models.RawEvent {
	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		headers[name] = r.Header.Get(name)
	}

	query := make(map[string]string)
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			query[name] = values[0]
		}
	}

	return &models.RawEvent{
		HTTPMethod:            r.Method,
		Path:                  r.URL.Path,
		Headers:               headers,
		QueryStringParameters: query,
		Body:                  body,
	}
}

// WebhookHandler accepts product webhook events (POST /webhook). Rejected
// events still answer 200: a business-rule rejection is a valid outcome and
// the response body carries the reason.
func WebhookHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBodyBytes))
		if err != nil {
			deps.Logger.Warn("failed to read webhook body", zap.Error(err))
			_ = utils.WriteBadRequest(w, "unreadable request body", nil)
			return
		}

		result, err := deps.Orchestrator.ProcessRaw(r.Context(), rawEventFromRequest(r, string(body)))
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}

		if err := utils.WriteJSON(w, http.StatusOK, result); err != nil {
			deps.Logger.Error("failed to write webhook response", zap.Error(err))
		}
	}
}

// InsightsHandler serves the dashboard summary (GET /insights). The request
// has no body; tenant selection comes from the query string with a sentinel
// fallback inside normalization.
func InsightsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := deps.Orchestrator.ProcessRaw(r.Context(), rawEventFromRequest(r, ""))
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}

		if err := utils.WriteJSON(w, http.StatusOK, result); err != nil {
			deps.Logger.Error("failed to write insights response", zap.Error(err))
		}
	}
}
