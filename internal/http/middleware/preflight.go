package middleware

import (
	"net/http"

	"github.com/wolfman30/sms-email-bridge/internal/preflight"
	"github.com/wolfman30/sms-email-bridge/pkg/logging"
)

// RequirePreflight refuses every request with 500 and the operator message
// while the startup configuration report has problems.
func RequirePreflight(report preflight.Report, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		if report.OK() {
			return next
		}
		problem := report.Problem()
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Warn(problem, "path", r.URL.Path)
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(problem))
		})
	}
}
