package http

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// ActionSecretHeader is the header Hasura is configured to forward on action calls.
const ActionSecretHeader = "ACTION_SECRET"

// ActionAuthMiddleware rejects action calls that do not carry the shared secret.
// With disabled set every request passes, matching deployments that rely on network isolation.
func ActionAuthMiddleware(secret string, disabled bool, logger *slog.Logger) func(next http.Handler) http.Handler {
	logger = logger.With("component", "action_auth")
	return func(next http.Handler) http.Handler {
		if disabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(ActionSecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				logger.WarnContext(r.Context(), "Unauthorized action request", "path", r.URL.Path, "secret_present", provided != "")
				respondWithJSON(w, logger, http.StatusForbidden, map[string]string{"message": "Unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
