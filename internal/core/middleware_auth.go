package core

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"tempguard/internal/types"
)

// CronSecretHeader carries the shared secret on scheduler-triggered
// requests.
const CronSecretHeader = "X-Cron-Secret"

// CronSecretMiddleware rejects requests whose X-Cron-Secret header does not
// match the configured secret with 403. An unset secret rejects everything.
func (s *Server) CronSecretMiddleware(next http.Handler) http.Handler {
	var expected []byte
	if s.Config != nil {
		expected = []byte(s.Config.Security.CronSecret.Unmask())
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get(CronSecretHeader))
		if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
			s.Logger.WarnContext(r.Context(), "cron request rejected",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Bool("header_present", len(got) > 0),
			)
			Error(w, r, types.NewAppError(types.ErrCodeAuthCronSecret, "invalid cron secret", nil))
			return
		}
		next.ServeHTTP(w, r)
	})
}
