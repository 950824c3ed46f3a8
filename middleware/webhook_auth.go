package middleware

import (
	"net/http"
	"strings"

	"github.com/clinisight/agent-orchestrator/utils"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// WebhookAuth verifies inbound webhook calls with an HS256 shared-secret
// token. With no secret configured verification is disabled entirely, the
// development mode; there is no partial enforcement.
type WebhookAuth struct {
	secret []byte
	logger *zap.Logger
}

// NewWebhookAuth creates the webhook verifier. An empty secret disables it.
func NewWebhookAuth(secret string, logger *zap.Logger) *WebhookAuth {
	if secret == "" {
		logger.Warn("webhook signing secret not configured, verification disabled")
	}
	return &WebhookAuth{
		secret: []byte(secret),
		logger: logger,
	}
}

// Verify checks the Bearer token on the request when a secret is configured.
func (m *WebhookAuth) Verify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(m.secret) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		tokenString := extractBearerToken(r)
		if tokenString == "" {
			_ = utils.WriteUnauthorized(w, "missing webhook token")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return m.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			m.logger.Warn("webhook token rejected", zap.Error(err))
			_ = utils.WriteUnauthorized(w, "invalid webhook token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
